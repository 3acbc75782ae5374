package capacity

// MonitorConfig parameterizes the resource monitor's bounded metric log.
type MonitorConfig struct {
	MaxMetrics int
}

func DefaultMonitorConfig() MonitorConfig { return MonitorConfig{MaxMetrics: 50_000} }

func (c MonitorConfig) Validate() error {
	if c.MaxMetrics <= 0 {
		return &ConfigError{Field: "MaxMetrics", Reason: "must be positive"}
	}
	return nil
}

// ForecasterConfig parameterizes Forecast's history window and smoothing.
type ForecasterConfig struct {
	SmoothingAlpha     float64
	SeasonalityCutoff  float64
	MaxAccuracySamples int
}

func DefaultForecasterConfig() ForecasterConfig {
	return ForecasterConfig{SmoothingAlpha: 0.3, SeasonalityCutoff: 0.3, MaxAccuracySamples: 500}
}

func (c ForecasterConfig) Validate() error {
	switch {
	case c.SmoothingAlpha <= 0 || c.SmoothingAlpha >= 1:
		return &ConfigError{Field: "SmoothingAlpha", Reason: "must be in (0,1)"}
	case c.SeasonalityCutoff <= 0 || c.SeasonalityCutoff >= 1:
		return &ConfigError{Field: "SeasonalityCutoff", Reason: "must be in (0,1)"}
	case c.MaxAccuracySamples <= 0:
		return &ConfigError{Field: "MaxAccuracySamples", Reason: "must be positive"}
	}
	return nil
}

// ScalingManagerConfig parameterizes the execution gate and hourly cap.
type ScalingManagerConfig struct {
	EnableAutoScaling      bool
	MaxActionsPerHour      int
	MaxHistory             int
}

func DefaultScalingManagerConfig() ScalingManagerConfig {
	return ScalingManagerConfig{EnableAutoScaling: true, MaxActionsPerHour: 10, MaxHistory: 5_000}
}

func (c ScalingManagerConfig) Validate() error {
	switch {
	case c.MaxActionsPerHour <= 0:
		return &ConfigError{Field: "MaxActionsPerHour", Reason: "must be positive"}
	case c.MaxHistory <= 0:
		return &ConfigError{Field: "MaxHistory", Reason: "must be positive"}
	}
	return nil
}

// CostAnalyzerConfig parameterizes savings/right-sizing thresholds.
type CostAnalyzerConfig struct {
	SavingsUtilThreshold float64
	IdleUtilThreshold    float64
	DownsizeUtilBelow    float64
	UpsizeUtilAbove      float64
	MonthlyHours         float64
	MonthlyGrowthRate    float64
}

func DefaultCostAnalyzerConfig() CostAnalyzerConfig {
	return CostAnalyzerConfig{
		SavingsUtilThreshold: 50.0,
		IdleUtilThreshold:    5.0,
		DownsizeUtilBelow:    30.0,
		UpsizeUtilAbove:      80.0,
		MonthlyHours:         730.0,
		MonthlyGrowthRate:    0.05,
	}
}

func (c CostAnalyzerConfig) Validate() error {
	switch {
	case c.SavingsUtilThreshold <= 0 || c.SavingsUtilThreshold > 100:
		return &ConfigError{Field: "SavingsUtilThreshold", Reason: "must be in (0,100]"}
	case c.MonthlyHours <= 0:
		return &ConfigError{Field: "MonthlyHours", Reason: "must be positive"}
	}
	return nil
}
