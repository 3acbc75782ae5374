package tradepipeline

import "time"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderMarket    OrderType = "market"
	OrderLimit     OrderType = "limit"
	OrderStop      OrderType = "stop"
	OrderStopLimit OrderType = "stop_limit"
)

type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// ResultStatus is the PipelineResult lifecycle state.
type ResultStatus string

const (
	StatusPending       ResultStatus = "PENDING"
	StatusValidated     ResultStatus = "VALIDATED"
	StatusRiskApproved  ResultStatus = "RISK_APPROVED"
	StatusRouted        ResultStatus = "ROUTED"
	StatusExecuted      ResultStatus = "EXECUTED"
	StatusRejected      ResultStatus = "REJECTED"
	StatusFailed        ResultStatus = "FAILED"
)

// PipelineOrder is the unified, immutable post-normalization trade intent
// consumed by the pipeline executor. Construct via the signal bridge or a
// struct literal; fields should not be mutated afterward.
type PipelineOrder struct {
	OrderID          string
	Symbol           string
	Side             Side
	OrderType        OrderType
	Qty              float64
	LimitPrice       *float64
	StopPrice        *float64
	AssetType        string
	SignalType       string
	Confidence       float64
	PositionSizePct  float64
	StopLossPct      float64
	TakeProfitPct    float64
	TimeHorizon      string
	RiskLevel        string
	Reasoning        string
	SourceData       map[string]any
	CreatedAt        time.Time
}

// PipelineResult is the outcome of running an order through the five
// stages.
type PipelineResult struct {
	ResultID         string
	Order            PipelineOrder
	Status           ResultStatus
	RejectionReason  string
	BrokerName       string
	FillPrice        float64
	FillQty          float64
	Fee              float64
	LatencyMS        float64
	StagesPassed     []string
	CreatedAt        time.Time
}

// TrackedPosition is a held quantity of a symbol, averaged across buys and
// realized down across reductions.
type TrackedPosition struct {
	Symbol         string
	Qty            float64
	AvgEntryPrice  float64
	CurrentPrice   float64
	Side           PositionSide
	SignalType     string
	StopLossPrice  float64
	TargetPrice    float64
	OpenedAt       time.Time
	OrderIDs       []string
}

// MarketValue is |qty| * current_price.
func (p *TrackedPosition) MarketValue() float64 {
	return absF(p.Qty) * p.CurrentPrice
}

// UnrealizedPnL is direction-signed: positive for a long whose price rose,
// positive for a short whose price fell.
func (p *TrackedPosition) UnrealizedPnL() float64 {
	diff := p.CurrentPrice - p.AvgEntryPrice
	if p.Side == PositionShort {
		diff = -diff
	}
	return diff * absF(p.Qty)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ReconciliationRecord compares an expected fill to the actual one.
type ReconciliationRecord struct {
	RecordID      string
	OrderID       string
	Symbol        string
	ExpectedPrice float64
	ActualPrice   float64
	ExpectedQty   float64
	ActualQty     float64
	SlippagePct   float64
	FillRatio     float64
	BrokerName    string
	LatencyMS     float64
	Timestamp     time.Time
}

// BrokerOrder is the flat broker-facing shape of a PipelineOrder, built by
// toBrokerOrder. The pipeline itself does not emit it: in live mode Process
// leaves the result ROUTED and sends nothing to a broker.
type BrokerOrder struct {
	Symbol          string
	Side            string
	Qty             float64
	OrderType       string
	AssetType       string
	PipelineOrderID string
	LimitPrice      *float64
	StopPrice       *float64
}

// FillResult is what a broker executor collaborator returns for a routed
// BrokerOrder.
type FillResult struct {
	BrokerName string
	FillPrice  float64
	FillQty    float64
	Fee        float64
	Success    bool
	Reason     string
}

// BrokerExecutor is the collaborator contract an external broker integration fulfills, supplied by the
// embedding application. Pipeline does not hold or call a BrokerExecutor;
// invoking one for a live-mode ROUTED result is left to the embedding
// application.
type BrokerExecutor interface {
	Execute(order BrokerOrder) (FillResult, error)
}

func (o *PipelineOrder) toBrokerOrder() BrokerOrder {
	return BrokerOrder{
		Symbol:          o.Symbol,
		Side:            string(o.Side),
		Qty:             o.Qty,
		OrderType:       string(o.OrderType),
		AssetType:       o.AssetType,
		PipelineOrderID: o.OrderID,
		LimitPrice:      o.LimitPrice,
		StopPrice:       o.StopPrice,
	}
}
