package tradepipeline

// PipelineConfig parameterizes the five-stage executor.
type PipelineConfig struct {
	MinConfidence    float64
	BlockedSymbols   []string
	MaxPositions     int
	MaxPositionPct   float64
	DailyLossLimitPct float64
	MinOrderValue    float64
	MaxOrderValue    float64
	PaperMode        bool
	DefaultFillPrice float64
	MaxResultLog     int
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MinConfidence:     0.5,
		MaxPositions:      20,
		MaxPositionPct:    10.0,
		DailyLossLimitPct: 5.0,
		MinOrderValue:     10.0,
		MaxOrderValue:     1_000_000.0,
		PaperMode:         true,
		DefaultFillPrice:  100.0,
		MaxResultLog:      10_000,
	}
}

func (c PipelineConfig) Validate() error {
	switch {
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return &ConfigError{Field: "MinConfidence", Reason: "must be in [0,1]"}
	case c.MaxPositions <= 0:
		return &ConfigError{Field: "MaxPositions", Reason: "must be positive"}
	case c.MaxPositionPct <= 0:
		return &ConfigError{Field: "MaxPositionPct", Reason: "must be positive"}
	case c.DailyLossLimitPct <= 0:
		return &ConfigError{Field: "DailyLossLimitPct", Reason: "must be positive"}
	case c.MaxOrderValue <= c.MinOrderValue:
		return &ConfigError{Field: "MaxOrderValue", Reason: "must exceed MinOrderValue"}
	case c.MaxResultLog <= 0:
		return &ConfigError{Field: "MaxResultLog", Reason: "must be positive"}
	}
	return nil
}

// ReconcilerConfig parameterizes the reconciler's bounded record log.
type ReconcilerConfig struct {
	MaxRecords int
}

func DefaultReconcilerConfig() ReconcilerConfig { return ReconcilerConfig{MaxRecords: 10_000} }

func (c ReconcilerConfig) Validate() error {
	if c.MaxRecords <= 0 {
		return &ConfigError{Field: "MaxRecords", Reason: "must be positive"}
	}
	return nil
}

// BridgeConfig parameterizes the signal bridge's share-count computation.
type BridgeConfig struct {
	Equity float64
}

func DefaultBridgeConfig() BridgeConfig { return BridgeConfig{Equity: 100_000} }

func (c BridgeConfig) Validate() error {
	if c.Equity <= 0 {
		return &ConfigError{Field: "Equity", Reason: "must be positive"}
	}
	return nil
}
