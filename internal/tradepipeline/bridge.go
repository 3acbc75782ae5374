package tradepipeline

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FusionRecommendation mirrors the signal_fusion recommender's output
// shape, one of the three signal formats the bridge normalizes.
type FusionRecommendation struct {
	Symbol          string
	Action          string // "STRONG_BUY", "BUY", "SELL", "STRONG_SELL", "HOLD"
	Confidence      float64
	PositionSizePct float64
	StopLossPct     float64
	TakeProfitPct   float64
	TimeHorizon     string
	RiskLevel       string
	Reasoning       string
	SourceData      map[string]any
}

// SocialTradingSignal mirrors the social_intelligence generator's output.
type SocialTradingSignal struct {
	Symbol     string
	Action     string // "strong_buy", "buy", "sell", "strong_sell", "hold", "watch"
	Confidence float64 // 0-100
	Reasons    []string
	FinalScore float64
}

// EMATradeSignal mirrors the ema_signals detector's output.
type EMATradeSignal struct {
	Ticker     string
	Direction  string // "long" or "short"
	Conviction float64 // 0-100
	EntryPrice float64
	StopLoss   float64
	TargetPrice *float64
	Timeframe  string
	SignalType string
}

// SignalBridge normalizes the three recognized signal shapes into a single
// PipelineOrder currency. It is safe for concurrent use; the only
// mutable state is AccountEquity.
type SignalBridge struct {
	mu      sync.RWMutex
	equity  float64
}

func NewSignalBridge(cfg BridgeConfig) *SignalBridge {
	if err := cfg.Validate(); err != nil {
		cfg = DefaultBridgeConfig()
	}
	return &SignalBridge{equity: cfg.Equity}
}

func (b *SignalBridge) AccountEquity() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.equity
}

func (b *SignalBridge) SetAccountEquity(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v < 0 {
		v = 0
	}
	b.equity = v
}

// pctToShares converts a portfolio percentage to a share count: floor with
// a floor of 1 (deviating from the original's
// round(); see DESIGN.md).
func (b *SignalBridge) pctToShares(pct, price float64) float64 {
	if price <= 0 {
		price = 100.0
	}
	dollarAmount := b.AccountEquity() * (pct / 100.0)
	shares := math.Floor(dollarAmount / price)
	if shares < 1 {
		shares = 1
	}
	return shares
}

func newOrder() PipelineOrder {
	return PipelineOrder{
		OrderID:   uuid.NewString(),
		CreatedAt: time.Now(),
	}
}

// FromFusionRecommendation converts a fusion recommendation. Returns nil
// for a HOLD action or one outside the recognized buy/sell vocabulary.
func (b *SignalBridge) FromFusionRecommendation(rec FusionRecommendation) *PipelineOrder {
	var side Side
	switch rec.Action {
	case "STRONG_BUY", "BUY":
		side = SideBuy
	case "SELL", "STRONG_SELL":
		side = SideSell
	default:
		return nil
	}

	orderType := OrderLimit
	if strings.HasPrefix(rec.Action, "STRONG") {
		orderType = OrderMarket
	}

	posSizePct := rec.PositionSizePct
	if posSizePct == 0 {
		posSizePct = 5.0
	}
	stopLossPct := rec.StopLossPct
	if stopLossPct == 0 {
		stopLossPct = 3.0
	}
	takeProfitPct := rec.TakeProfitPct
	if takeProfitPct == 0 {
		takeProfitPct = 6.0
	}
	timeHorizon := rec.TimeHorizon
	if timeHorizon == "" {
		timeHorizon = "swing"
	}
	riskLevel := rec.RiskLevel
	if riskLevel == "" {
		riskLevel = "medium"
	}

	order := newOrder()
	order.Symbol = rec.Symbol
	order.Side = side
	order.OrderType = orderType
	order.Qty = b.pctToShares(posSizePct, 100.0)
	order.AssetType = "stock"
	order.SignalType = "fusion"
	order.Confidence = rec.Confidence
	order.PositionSizePct = posSizePct
	order.StopLossPct = stopLossPct
	order.TakeProfitPct = takeProfitPct
	order.TimeHorizon = timeHorizon
	order.RiskLevel = riskLevel
	order.Reasoning = rec.Reasoning
	order.SourceData = rec.SourceData
	return &order
}

// FromSocialSignal converts a social trading signal. Returns nil outside
// the recognized buy/sell vocabulary.
func (b *SignalBridge) FromSocialSignal(sig SocialTradingSignal) *PipelineOrder {
	action := strings.ToLower(sig.Action)
	var side Side
	switch action {
	case "strong_buy", "buy":
		side = SideBuy
	case "sell", "strong_sell":
		side = SideSell
	default:
		return nil
	}

	confidence := math.Max(0, math.Min(1, sig.Confidence/100.0))
	posSizePct := math.Max(2.0, math.Min(10.0, confidence*12.0))

	orderType := OrderLimit
	if strings.HasPrefix(action, "strong") {
		orderType = OrderMarket
	}

	reasoning := "Social signal: " + action
	if len(sig.Reasons) > 0 {
		reasoning = strings.Join(sig.Reasons, "; ")
	}

	riskLevel := "medium"
	if confidence < 0.5 {
		riskLevel = "high"
	}

	order := newOrder()
	order.Symbol = sig.Symbol
	order.Side = side
	order.OrderType = orderType
	order.Qty = b.pctToShares(posSizePct, 100.0)
	order.AssetType = "stock"
	order.SignalType = "social"
	order.Confidence = confidence
	order.PositionSizePct = posSizePct
	order.StopLossPct = 4.0
	order.TakeProfitPct = 8.0
	order.TimeHorizon = "swing"
	order.RiskLevel = riskLevel
	order.Reasoning = reasoning
	order.SourceData = map[string]any{"action": action, "final_score": sig.FinalScore}
	return &order
}

// FromEMATradeSignal converts an EMA trade signal. currentPrice, if
// positive, is used for the share-count calculation in preference to the
// signal's own entry price. Returns nil when conviction < 30.
func (b *SignalBridge) FromEMATradeSignal(sig EMATradeSignal, currentPrice float64) *PipelineOrder {
	if sig.Conviction < 30 {
		return nil
	}

	side := SideBuy
	if sig.Direction != "long" {
		side = SideSell
	}

	confidence := sig.Conviction / 100.0
	posSizePct := math.Max(2.0, math.Min(15.0, confidence*15.0))

	price := currentPrice
	if price <= 0 {
		price = sig.EntryPrice
	}
	if price <= 0 {
		price = 100.0
	}
	qty := b.pctToShares(posSizePct, price)

	var stopLossPct float64
	if sig.EntryPrice > 0 && sig.StopLoss > 0 {
		stopLossPct = math.Abs(sig.EntryPrice-sig.StopLoss) / sig.EntryPrice * 100.0
	} else {
		stopLossPct = 3.0
	}

	var takeProfitPct float64
	if sig.EntryPrice > 0 && sig.TargetPrice != nil && *sig.TargetPrice > 0 {
		takeProfitPct = math.Abs(*sig.TargetPrice-sig.EntryPrice) / sig.EntryPrice * 100.0
	} else {
		takeProfitPct = stopLossPct * 2.0
	}

	orderType := OrderLimit
	if sig.Conviction >= 70 {
		orderType = OrderMarket
	}

	riskLevel := "medium"
	switch {
	case sig.Conviction >= 70:
		riskLevel = "low"
	case sig.Conviction < 50:
		riskLevel = "high"
	}

	timeHorizon := sig.Timeframe
	if timeHorizon == "" {
		timeHorizon = "short_term"
	}

	order := newOrder()
	order.Symbol = sig.Ticker
	order.Side = side
	order.OrderType = orderType
	order.Qty = qty
	if orderType == OrderLimit && sig.EntryPrice > 0 {
		entry := sig.EntryPrice
		order.LimitPrice = &entry
	}
	if sig.StopLoss > 0 {
		stop := sig.StopLoss
		order.StopPrice = &stop
	}
	order.AssetType = "stock"
	order.SignalType = "ema_cloud"
	order.Confidence = confidence
	order.PositionSizePct = posSizePct
	order.StopLossPct = round2(stopLossPct)
	order.TakeProfitPct = round2(takeProfitPct)
	order.TimeHorizon = timeHorizon
	order.RiskLevel = riskLevel
	order.Reasoning = "EMA signal: " + sig.SignalType
	order.SourceData = map[string]any{"conviction": sig.Conviction}
	return &order
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
