package capacity

import "time"

// HealthStatus is the rolled-up verdict TakeSnapshot produces.
type HealthStatus string

const (
	HealthHealthy        HealthStatus = "HEALTHY"
	HealthWarning        HealthStatus = "WARNING"
	HealthCritical       HealthStatus = "CRITICAL"
	HealthOverProvisioned HealthStatus = "OVER_PROVISIONED"
)

// ScalingDirection is the decision a ScalingRule evaluation produces.
type ScalingDirection string

const (
	ScaleOut  ScalingDirection = "SCALE_OUT"
	ScaleIn   ScalingDirection = "SCALE_IN"
	NoAction  ScalingDirection = "NO_ACTION"
)

// ResourceMetric is one observation appended to the monitor's log.
type ResourceMetric struct {
	ResourceType string
	Service      string
	Utilization  float64 // 0-100
	Timestamp    time.Time
}

// Thresholds parameterizes the health rollup for one (resource, service).
type Thresholds struct {
	Warning   float64
	Critical  float64
	ScaleDown float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 75, Critical: 90, ScaleDown: 20}
}

// SnapshotEntry is the latest-per-(resource,service) picture TakeSnapshot
// returns for one key.
type SnapshotEntry struct {
	ResourceType string
	Service      string
	Utilization  float64
	Health       HealthStatus
	ObservedAt   time.Time
}

// Snapshot is the full picture across every tracked (resource, service).
type Snapshot struct {
	Entries      []SnapshotEntry
	OverallHealth HealthStatus
	TakenAt      time.Time
}

// ForecastPoint is one point in a DemandForecast's projected series.
type ForecastPoint struct {
	Offset     time.Duration
	Value      float64
	LowerBound float64
	UpperBound float64
}

// DemandForecast is the output of Forecast.
type DemandForecast struct {
	ResourceType string
	Service      string
	Method       string // "flat", "moving_average", "exponential_smoothing"
	SeasonalPeriod int
	Points       []ForecastPoint
	Accuracy     float64 // 0-100, MAPE-based; 0 until actuals recorded
	GeneratedAt  time.Time
}

// ScalingRule binds a (resource, service) pair to up/down thresholds,
// instance bounds, and a cooldown.
type ScalingRule struct {
	Name          string
	ResourceType  string
	Service       string
	ScaleUpAt     float64
	ScaleDownAt   float64
	MinInstances  int
	MaxInstances  int
	CooldownSecs  int
	lastActionAt  time.Time
	currentCount  int
}

// ScalingAction is one decision produced by the scaling manager's
// evaluation, whether or not it was actually executed.
type ScalingAction struct {
	RuleName   string
	Direction  ScalingDirection
	FromCount  int
	ToCount    int
	Executed   bool
	Success    bool
	Reason     string
	DecidedAt  time.Time
}

// ResourceCostProfile is the hourly rate used by the cost analyzer for one
// (resource, service).
type ResourceCostProfile struct {
	ResourceType  string
	Service       string
	HourlyRate    float64
	Utilization   float64
	InstanceCount int
}
