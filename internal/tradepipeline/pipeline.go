package tradepipeline

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.\-]+$`)

// PipelineStats is the pipeline's aggregate throughput/outcome view.
type PipelineStats struct {
	TotalProcessed int
	Executed       int
	Rejected       int
	Failed         int
	ExecutionRate  float64
	AvgLatencyMS   float64
	DailyPnL       float64
}

// Pipeline is the five-stage sequential order processor. It owns an
// in-memory position map and a bounded result log; it has no knowledge of
// tenancy or resilience wiring, both of which are the caller's concern
// (tenant context should already be established, and Process itself should
// be invoked from within a bulkhead/circuit-breaker guarded call site).
type Pipeline struct {
	cfg PipelineConfig
	log zerolog.Logger

	mu        sync.Mutex
	positions map[string]*TrackedPosition
	results   []PipelineResult
	startEquity float64
	realizedPnL float64
}

func NewPipeline(cfg PipelineConfig, startEquity float64, log zerolog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:         cfg,
		log:         log.With().Str("component", "tradepipeline").Logger(),
		positions:   make(map[string]*TrackedPosition),
		startEquity: startEquity,
	}, nil
}

// Process runs an order through validate, risk-check, route, execute,
// record. It never returns a Go error for business rejections; those are
// represented as a PipelineResult with Status REJECTED/FAILED.
func (p *Pipeline) Process(order PipelineOrder) PipelineResult {
	start := time.Now()
	result := PipelineResult{
		ResultID:  uuid.NewString(),
		Order:     order,
		Status:    StatusPending,
		CreatedAt: start,
	}

	if reason := p.validate(order); reason != "" {
		result.Status = StatusRejected
		result.RejectionReason = reason
		p.finish(&result, start)
		p.mu.Lock()
		p.appendResult(result)
		p.mu.Unlock()
		return result
	}
	result.StagesPassed = append(result.StagesPassed, "validate:passed")

	if reason := p.riskCheck(order); reason != "" {
		result.Status = StatusRejected
		result.RejectionReason = reason
		p.finish(&result, start)
		p.mu.Lock()
		p.appendResult(result)
		p.mu.Unlock()
		return result
	}
	result.StagesPassed = append(result.StagesPassed, "risk_check:passed")

	routeLabel, executeLabel := "route:paper", "execute:simulated"
	if !p.cfg.PaperMode {
		routeLabel, executeLabel = "route:live", "execute:deferred"
	}

	p.route(order, &result)
	result.StagesPassed = append(result.StagesPassed, routeLabel)

	p.execute(order, &result)
	result.StagesPassed = append(result.StagesPassed, executeLabel)

	p.record(order, &result)
	result.StagesPassed = append(result.StagesPassed, "record:logged")

	p.finish(&result, start)
	return result
}

func (p *Pipeline) validate(o PipelineOrder) string {
	if strings.TrimSpace(o.Symbol) == "" || !symbolPattern.MatchString(o.Symbol) {
		return "invalid symbol"
	}
	if o.Qty <= 0 {
		return "qty must be positive"
	}
	if o.Confidence < p.cfg.MinConfidence {
		return fmt.Sprintf("confidence %.4f below minimum %.4f", o.Confidence, p.cfg.MinConfidence)
	}
	if (o.OrderType == OrderLimit || o.OrderType == OrderStopLimit) && o.LimitPrice == nil {
		return "limit_price required for " + string(o.OrderType)
	}
	if (o.OrderType == OrderStop || o.OrderType == OrderStopLimit) && o.StopPrice == nil {
		return "stop_price required for " + string(o.OrderType)
	}
	return ""
}

func (p *Pipeline) riskCheck(o PipelineOrder) string {
	for _, s := range p.cfg.BlockedSymbols {
		if strings.EqualFold(s, o.Symbol) {
			return "symbol is blocked: " + o.Symbol
		}
	}

	p.mu.Lock()
	openPositions := len(p.positions)
	_, haveExisting := p.positions[o.Symbol]
	realized := p.realizedPnL
	p.mu.Unlock()

	if o.Side == SideBuy && !haveExisting && openPositions >= p.cfg.MaxPositions {
		return fmt.Sprintf("max_positions reached (%d)", p.cfg.MaxPositions)
	}
	if o.PositionSizePct > p.cfg.MaxPositionPct {
		return fmt.Sprintf("position_size_pct %.2f exceeds max %.2f", o.PositionSizePct, p.cfg.MaxPositionPct)
	}

	if p.startEquity > 0 {
		dailyLossPct := -realized / p.startEquity * 100.0
		if dailyLossPct >= p.cfg.DailyLossLimitPct {
			return fmt.Sprintf("daily loss limit reached (%.2f%%)", dailyLossPct)
		}
	}

	estPrice := p.estimatedPrice(o)
	estValue := o.Qty * estPrice
	if estValue < p.cfg.MinOrderValue || estValue > p.cfg.MaxOrderValue {
		return fmt.Sprintf("order value %.2f outside [%.2f, %.2f]", estValue, p.cfg.MinOrderValue, p.cfg.MaxOrderValue)
	}
	return ""
}

func (p *Pipeline) estimatedPrice(o PipelineOrder) float64 {
	if o.LimitPrice != nil {
		return *o.LimitPrice
	}
	return p.cfg.DefaultFillPrice
}

func (p *Pipeline) route(o PipelineOrder, result *PipelineResult) {
	if p.cfg.PaperMode {
		result.BrokerName = "paper"
		result.FillPrice = p.estimatedPrice(o)
		result.FillQty = o.Qty
		result.Fee = 0
		result.Status = StatusRouted
		return
	}
	result.Status = StatusRouted
}

func (p *Pipeline) execute(o PipelineOrder, result *PipelineResult) {
	if p.cfg.PaperMode {
		result.Status = StatusExecuted
	}
	// Live mode: a broker executor collaborator would be invoked by the
	// embedding application between route and record; the core leaves the
	// result ROUTED for that caller to finish.
}

func (p *Pipeline) record(o PipelineOrder, result *PipelineResult) {
	if result.Status != StatusExecuted {
		p.appendResult(*result)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	side := PositionLong
	if o.Side == SideSell {
		side = PositionShort
	}

	if o.Side == SideBuy {
		if pos, ok := p.positions[o.Symbol]; ok {
			totalQty := pos.Qty + result.FillQty
			pos.AvgEntryPrice = (pos.AvgEntryPrice*pos.Qty + result.FillPrice*result.FillQty) / totalQty
			pos.Qty = totalQty
			pos.OrderIDs = append(pos.OrderIDs, o.OrderID)
		} else {
			p.positions[o.Symbol] = &TrackedPosition{
				Symbol:        o.Symbol,
				Qty:           result.FillQty,
				AvgEntryPrice: result.FillPrice,
				CurrentPrice:  result.FillPrice,
				Side:          side,
				SignalType:    o.SignalType,
				OpenedAt:      time.Now(),
				OrderIDs:      []string{o.OrderID},
			}
		}
	} else {
		if pos, ok := p.positions[o.Symbol]; ok {
			closeQty := result.FillQty
			if closeQty > pos.Qty {
				closeQty = pos.Qty
			}
			p.realizedPnL += (result.FillPrice - pos.AvgEntryPrice) * closeQty
			pos.Qty -= closeQty
			if pos.Qty <= 0 {
				delete(p.positions, o.Symbol)
			}
		}
	}

	p.appendResult(*result)
}

func (p *Pipeline) appendResult(result PipelineResult) {
	if len(p.results) >= p.cfg.MaxResultLog {
		p.results = p.results[1:]
	}
	p.results = append(p.results, result)
}

func (p *Pipeline) finish(result *PipelineResult, start time.Time) {
	result.LatencyMS = float64(time.Since(start).Microseconds()) / 1000.0
}

// Stats returns the current aggregate view.
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := PipelineStats{TotalProcessed: len(p.results), DailyPnL: p.realizedPnL}
	var totalLatency float64
	for _, r := range p.results {
		totalLatency += r.LatencyMS
		switch r.Status {
		case StatusExecuted:
			stats.Executed++
		case StatusRejected:
			stats.Rejected++
		case StatusFailed:
			stats.Failed++
		}
	}
	if stats.TotalProcessed > 0 {
		stats.ExecutionRate = float64(stats.Executed) / float64(stats.TotalProcessed)
		stats.AvgLatencyMS = totalLatency / float64(stats.TotalProcessed)
	}
	return stats
}

// Positions returns a snapshot copy of the current position map.
func (p *Pipeline) Positions() map[string]TrackedPosition {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]TrackedPosition, len(p.positions))
	for k, v := range p.positions {
		out[k] = *v
	}
	return out
}

// Results returns a copy of the bounded result log.
func (p *Pipeline) Results() []PipelineResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PipelineResult, len(p.results))
	copy(out, p.results)
	return out
}
