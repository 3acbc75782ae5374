package capacity

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCostAnalyzer(t *testing.T) *CostAnalyzer {
	t.Helper()
	c, err := NewCostAnalyzer(DefaultCostAnalyzerConfig(), zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestCostAnalyzer_PeriodCosts(t *testing.T) {
	c := newTestCostAnalyzer(t)
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "api", HourlyRate: 0.5, InstanceCount: 4, Utilization: 60})

	costs := c.PeriodCosts()
	require.Len(t, costs, 1)
	assert.True(t, costs[0].Hourly.Equal(decimal.NewFromFloat(2.0)))
	assert.True(t, costs[0].Daily.Equal(decimal.NewFromFloat(48.0)))
	assert.True(t, costs[0].Monthly.Equal(decimal.NewFromFloat(2.0).Mul(decimal.NewFromFloat(730))))
}

func TestCostAnalyzer_SavingsOpportunityBelowThreshold(t *testing.T) {
	c := newTestCostAnalyzer(t)
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "batch", HourlyRate: 1.0, InstanceCount: 2, Utilization: 20})
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "api", HourlyRate: 1.0, InstanceCount: 2, Utilization: 70})

	opps := c.SavingsOpportunities()
	require.Len(t, opps, 1)
	assert.Equal(t, "batch", opps[0].Service)
	assert.True(t, opps[0].EstimatedSavings.GreaterThan(decimal.Zero))
}

func TestCostAnalyzer_IdleDetectionUsesLowerThreshold(t *testing.T) {
	c := newTestCostAnalyzer(t)
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "idle-worker", HourlyRate: 1.0, InstanceCount: 1, Utilization: 2})
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "busy-worker", HourlyRate: 1.0, InstanceCount: 1, Utilization: 40})

	assert.True(t, c.IsIdle("compute", "idle-worker"))
	assert.False(t, c.IsIdle("compute", "busy-worker"))
}

func TestCostAnalyzer_RightSizingBuckets(t *testing.T) {
	c := newTestCostAnalyzer(t)
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "low", HourlyRate: 1, InstanceCount: 1, Utilization: 10})
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "mid", HourlyRate: 1, InstanceCount: 1, Utilization: 50})
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "high", HourlyRate: 1, InstanceCount: 1, Utilization: 95})

	byService := map[string]RightSizingAction{}
	for _, rec := range c.RightSizingRecommendations() {
		byService[rec.Service] = rec.Action
	}
	assert.Equal(t, RightSizeDownsize, byService["low"])
	assert.Equal(t, RightSizeMaintain, byService["mid"])
	assert.Equal(t, RightSizeUpsize, byService["high"])
}

func TestCostAnalyzer_EfficiencyScorePeaksAt65(t *testing.T) {
	c := newTestCostAnalyzer(t)
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "api", HourlyRate: 1, InstanceCount: 1, Utilization: 65})
	assert.Equal(t, 100.0, c.EfficiencyScore())

	c2 := newTestCostAnalyzer(t)
	c2.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "api", HourlyRate: 1, InstanceCount: 1, Utilization: 5})
	assert.InDelta(t, 10.0, c2.EfficiencyScore(), 0.01)
}

func TestCostAnalyzer_ForecastMonthsCompounds(t *testing.T) {
	c := newTestCostAnalyzer(t)
	c.SetProfile(ResourceCostProfile{ResourceType: "compute", Service: "api", HourlyRate: 1, InstanceCount: 1, Utilization: 50})

	forecast := c.ForecastMonths(3)
	require.Len(t, forecast, 3)
	assert.True(t, forecast[1].GreaterThan(forecast[0]))
	assert.True(t, forecast[2].GreaterThan(forecast[1]))
}
