package tradepipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(equity float64) *SignalBridge {
	return NewSignalBridge(BridgeConfig{Equity: equity})
}

func TestSignalBridge_FromFusionRecommendation_Buy(t *testing.T) {
	b := newTestBridge(100_000)
	order := b.FromFusionRecommendation(FusionRecommendation{
		Symbol:          "AAPL",
		Action:          "STRONG_BUY",
		Confidence:      0.8,
		PositionSizePct: 10,
	})
	require.NotNil(t, order)
	assert.Equal(t, SideBuy, order.Side)
	assert.Equal(t, OrderMarket, order.OrderType)
	// floor(100000 * 0.10 / 100) = 100
	assert.Equal(t, 100.0, order.Qty)
	assert.Equal(t, "stock", order.AssetType)
	assert.Equal(t, "fusion", order.SignalType)
}

func TestSignalBridge_FromFusionRecommendation_HoldIsNil(t *testing.T) {
	b := newTestBridge(100_000)
	order := b.FromFusionRecommendation(FusionRecommendation{Symbol: "AAPL", Action: "HOLD"})
	assert.Nil(t, order)
}

func TestSignalBridge_PctToShares_FloorsNotRounds(t *testing.T) {
	b := newTestBridge(1_000)
	// A case where floor and round diverge: pct tuned so the quotient is x.6.
	order := b.FromFusionRecommendation(FusionRecommendation{
		Symbol: "T", Action: "BUY", PositionSizePct: 16,
	})
	require.NotNil(t, order)
	// dollarAmount = 1000*0.16 = 160; price 100 => 1.6 -> floor gives 1, round() would give 2
	assert.Equal(t, 1.0, order.Qty)
}

func TestSignalBridge_FromSocialSignal_Sell(t *testing.T) {
	b := newTestBridge(50_000)
	order := b.FromSocialSignal(SocialTradingSignal{
		Symbol:     "TSLA",
		Action:     "strong_sell",
		Confidence: 90,
		Reasons:    []string{"bearish volume spike"},
	})
	require.NotNil(t, order)
	assert.Equal(t, SideSell, order.Side)
	assert.Equal(t, OrderMarket, order.OrderType)
	assert.Equal(t, "bearish volume spike", order.Reasoning)
}

func TestSignalBridge_FromSocialSignal_WatchIsNil(t *testing.T) {
	b := newTestBridge(50_000)
	order := b.FromSocialSignal(SocialTradingSignal{Symbol: "TSLA", Action: "watch"})
	assert.Nil(t, order)
}

func TestSignalBridge_FromEMATradeSignal_LowConvictionRejected(t *testing.T) {
	b := newTestBridge(100_000)
	order := b.FromEMATradeSignal(EMATradeSignal{Ticker: "MSFT", Direction: "long", Conviction: 10}, 300)
	assert.Nil(t, order)
}

func TestSignalBridge_FromEMATradeSignal_Long(t *testing.T) {
	b := newTestBridge(100_000)
	target := 330.0
	order := b.FromEMATradeSignal(EMATradeSignal{
		Ticker:      "MSFT",
		Direction:   "long",
		Conviction:  80,
		EntryPrice:  300,
		StopLoss:    285,
		TargetPrice: &target,
		Timeframe:   "1d",
		SignalType:  "golden_cross",
	}, 300)
	require.NotNil(t, order)
	assert.Equal(t, SideBuy, order.Side)
	assert.Equal(t, OrderMarket, order.OrderType)
	assert.Equal(t, "low", order.RiskLevel)
	assert.InDelta(t, 5.0, order.StopLossPct, 0.01)
	assert.InDelta(t, 10.0, order.TakeProfitPct, 0.01)
	require.NotNil(t, order.StopPrice)
	assert.Equal(t, 285.0, *order.StopPrice)
}

func TestSignalBridge_AccountEquitySetter(t *testing.T) {
	b := newTestBridge(10_000)
	b.SetAccountEquity(20_000)
	assert.Equal(t, 20_000.0, b.AccountEquity())
	b.SetAccountEquity(-5)
	assert.Equal(t, 0.0, b.AccountEquity())
}
