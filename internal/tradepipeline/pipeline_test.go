package tradepipeline

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, cfg PipelineConfig, equity float64) *Pipeline {
	t.Helper()
	p, err := NewPipeline(cfg, equity, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func validOrder() PipelineOrder {
	return PipelineOrder{
		OrderID:         "o1",
		Symbol:          "AAPL",
		Side:            SideBuy,
		OrderType:       OrderMarket,
		Qty:             10,
		AssetType:       "stock",
		Confidence:      0.9,
		PositionSizePct: 2,
	}
}

func TestPipeline_PaperExecution(t *testing.T) {
	p := newTestPipeline(t, DefaultPipelineConfig(), 100_000)
	result := p.Process(validOrder())

	assert.Equal(t, StatusExecuted, result.Status)
	assert.Equal(t, "paper", result.BrokerName)
	assert.Equal(t, 10.0, result.FillQty)
	assert.Equal(t, []string{"validate:passed", "risk_check:passed", "route:paper", "execute:simulated", "record:logged"}, result.StagesPassed)

	positions := p.Positions()
	pos, ok := positions["AAPL"]
	require.True(t, ok)
	assert.Equal(t, 10.0, pos.Qty)
	assert.Equal(t, PositionLong, pos.Side)
}

func TestPipeline_LowConfidenceRejectedWithoutMutation(t *testing.T) {
	p := newTestPipeline(t, DefaultPipelineConfig(), 100_000)
	order := validOrder()
	order.Confidence = 0.1

	result := p.Process(order)
	assert.Equal(t, StatusRejected, result.Status)
	assert.Empty(t, p.Positions())
	// AvgLatencyMS is the measured wall-clock latency of the rejected order,
	// so it is taken from the result rather than fixed at zero.
	assert.Equal(t, PipelineStats{TotalProcessed: 1, Rejected: 1, AvgLatencyMS: result.LatencyMS}, p.Stats())
}

func TestPipeline_BlockedSymbolRejected(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.BlockedSymbols = []string{"AAPL"}
	p := newTestPipeline(t, cfg, 100_000)

	result := p.Process(validOrder())
	assert.Equal(t, StatusRejected, result.Status)
	assert.Contains(t, result.RejectionReason, "blocked")
}

func TestPipeline_LimitOrderRequiresLimitPrice(t *testing.T) {
	p := newTestPipeline(t, DefaultPipelineConfig(), 100_000)
	order := validOrder()
	order.OrderType = OrderLimit

	result := p.Process(order)
	assert.Equal(t, StatusRejected, result.Status)
	assert.Contains(t, result.RejectionReason, "limit_price")
}

func TestPipeline_AveragesEntryPriceOnRepeatBuy(t *testing.T) {
	p := newTestPipeline(t, DefaultPipelineConfig(), 100_000)
	limit1 := 100.0
	order1 := validOrder()
	order1.OrderType = OrderLimit
	order1.LimitPrice = &limit1
	require.Equal(t, StatusExecuted, p.Process(order1).Status)

	limit2 := 200.0
	order2 := validOrder()
	order2.OrderID = "o2"
	order2.OrderType = OrderLimit
	order2.LimitPrice = &limit2
	require.Equal(t, StatusExecuted, p.Process(order2).Status)

	pos := p.Positions()["AAPL"]
	assert.Equal(t, 20.0, pos.Qty)
	assert.Equal(t, 150.0, pos.AvgEntryPrice)
}

func TestPipeline_SellReducesAndClosesPosition(t *testing.T) {
	p := newTestPipeline(t, DefaultPipelineConfig(), 100_000)
	buy := validOrder()
	buy.OrderType = OrderLimit
	price := 100.0
	buy.LimitPrice = &price
	require.Equal(t, StatusExecuted, p.Process(buy).Status)

	sell := validOrder()
	sell.OrderID = "o2"
	sell.Side = SideSell
	sell.OrderType = OrderLimit
	sellPrice := 120.0
	sell.LimitPrice = &sellPrice
	result := p.Process(sell)

	require.Equal(t, StatusExecuted, result.Status)
	assert.Empty(t, p.Positions())
	assert.Equal(t, 200.0, p.Stats().DailyPnL)
}

func TestPipeline_MaxPositionsEnforced(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.MaxPositions = 1
	p := newTestPipeline(t, cfg, 100_000)

	require.Equal(t, StatusExecuted, p.Process(validOrder()).Status)

	order2 := validOrder()
	order2.OrderID = "o2"
	order2.Symbol = "MSFT"
	result := p.Process(order2)
	assert.Equal(t, StatusRejected, result.Status)
	assert.Contains(t, result.RejectionReason, "max_positions")
}
