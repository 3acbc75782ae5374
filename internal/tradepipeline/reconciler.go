package tradepipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReconciliationStats is the aggregate slippage/fill-quality view.
type ReconciliationStats struct {
	Count           int
	AvgSlippagePct  float64
	MaxSlippagePct  float64
	MinSlippagePct  float64
	AvgFillRatio    float64
	FullFillRate    float64
	AvgLatencyMS    float64
	AvgSlippageByBroker map[string]float64
}

// Reconciler compares expected fills to actual ones and aggregates
// slippage/fill-ratio statistics.
type Reconciler struct {
	cfg ReconcilerConfig
	log zerolog.Logger

	mu      sync.Mutex
	records []ReconciliationRecord
}

func NewReconciler(cfg ReconcilerConfig, log zerolog.Logger) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Reconciler{cfg: cfg, log: log.With().Str("component", "reconciler").Logger()}, nil
}

// Submit records one fill comparison and returns it with slippage_pct and
// fill_ratio computed.
func (r *Reconciler) Submit(orderID, symbol, broker string, expectedPrice, actualPrice, expectedQty, actualQty, latencyMS float64) ReconciliationRecord {
	rec := ReconciliationRecord{
		RecordID:      uuid.NewString(),
		OrderID:       orderID,
		Symbol:        symbol,
		ExpectedPrice: expectedPrice,
		ActualPrice:   actualPrice,
		ExpectedQty:   expectedQty,
		ActualQty:     actualQty,
		BrokerName:    broker,
		LatencyMS:     latencyMS,
		Timestamp:     time.Now(),
	}

	if expectedPrice != 0 {
		rec.SlippagePct = (actualPrice - expectedPrice) / expectedPrice * 100.0
	}
	if expectedQty != 0 {
		ratio := actualQty / expectedQty
		if ratio > 1 {
			ratio = 1
		}
		if ratio < 0 {
			ratio = 0
		}
		rec.FillRatio = ratio
	}

	r.mu.Lock()
	if len(r.records) >= r.cfg.MaxRecords {
		r.records = r.records[1:]
	}
	r.records = append(r.records, rec)
	r.mu.Unlock()

	return rec
}

// Stats aggregates every retained record.
func (r *Reconciler) Stats() ReconciliationStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := ReconciliationStats{Count: len(r.records), AvgSlippageByBroker: map[string]float64{}}
	if len(r.records) == 0 {
		return stats
	}

	brokerTotals := map[string]float64{}
	brokerCounts := map[string]int{}
	var sumSlippage, sumFillRatio, sumLatency float64
	var fullFills int
	stats.MinSlippagePct = r.records[0].SlippagePct
	stats.MaxSlippagePct = r.records[0].SlippagePct

	for _, rec := range r.records {
		sumSlippage += rec.SlippagePct
		sumFillRatio += rec.FillRatio
		sumLatency += rec.LatencyMS
		if rec.FillRatio >= 1.0 {
			fullFills++
		}
		if rec.SlippagePct > stats.MaxSlippagePct {
			stats.MaxSlippagePct = rec.SlippagePct
		}
		if rec.SlippagePct < stats.MinSlippagePct {
			stats.MinSlippagePct = rec.SlippagePct
		}
		brokerTotals[rec.BrokerName] += rec.SlippagePct
		brokerCounts[rec.BrokerName]++
	}

	n := float64(len(r.records))
	stats.AvgSlippagePct = sumSlippage / n
	stats.AvgFillRatio = sumFillRatio / n
	stats.FullFillRate = float64(fullFills) / n
	stats.AvgLatencyMS = sumLatency / n
	for broker, total := range brokerTotals {
		stats.AvgSlippageByBroker[broker] = total / float64(brokerCounts[broker])
	}
	return stats
}

// Records returns a copy of the retained reconciliation log.
func (r *Reconciler) Records() []ReconciliationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReconciliationRecord, len(r.records))
	copy(out, r.records)
	return out
}
