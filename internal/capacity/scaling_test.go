package capacity

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScalingManager(t *testing.T, cfg ScalingManagerConfig, m *Monitor) *ScalingManager {
	t.Helper()
	sm, err := NewScalingManager(cfg, m, zerolog.Nop())
	require.NoError(t, err)
	return sm
}

func TestScalingManager_ScalesOutOnHighUtilization(t *testing.T) {
	m := newTestMonitor(t)
	sm := newTestScalingManager(t, DefaultScalingManagerConfig(), m)
	sm.AddRule(ScalingRule{
		Name: "api", ResourceType: "cpu", Service: "api",
		ScaleUpAt: 80, ScaleDownAt: 20, MinInstances: 1, MaxInstances: 5, CooldownSecs: 0,
	}, 2)

	m.IngestMetric("cpu", "api", 90)
	actions := sm.Evaluate()

	require.Len(t, actions, 1)
	assert.Equal(t, ScaleOut, actions[0].Direction)
	assert.Equal(t, 3, actions[0].ToCount)
	assert.True(t, actions[0].Executed)
	assert.True(t, actions[0].Success)

	count, ok := sm.CurrentCount("api")
	require.True(t, ok)
	assert.Equal(t, 3, count)
}

func TestScalingManager_CooldownBlocksReEvaluation(t *testing.T) {
	m := newTestMonitor(t)
	cfg := DefaultScalingManagerConfig()
	sm := newTestScalingManager(t, cfg, m)
	sm.AddRule(ScalingRule{
		Name: "api", ResourceType: "cpu", Service: "api",
		ScaleUpAt: 80, ScaleDownAt: 20, MinInstances: 1, MaxInstances: 5, CooldownSecs: 3600,
	}, 2)

	m.IngestMetric("cpu", "api", 90)
	first := sm.Evaluate()
	require.Len(t, first, 1)
	assert.True(t, first[0].Success)

	m.IngestMetric("cpu", "api", 95)
	second := sm.Evaluate()
	assert.Empty(t, second)

	count, _ := sm.CurrentCount("api")
	assert.Equal(t, 3, count)
}

func TestScalingManager_OutOfBoundsMarkedUnsuccessfulAndNotRecorded(t *testing.T) {
	m := newTestMonitor(t)
	sm := newTestScalingManager(t, DefaultScalingManagerConfig(), m)
	sm.AddRule(ScalingRule{
		Name: "api", ResourceType: "cpu", Service: "api",
		ScaleUpAt: 80, ScaleDownAt: 20, MinInstances: 1, MaxInstances: 3, CooldownSecs: 0,
	}, 3)

	m.IngestMetric("cpu", "api", 99)
	actions := sm.Evaluate()
	require.Len(t, actions, 1)
	assert.True(t, actions[0].Executed)
	assert.False(t, actions[0].Success)
	assert.Empty(t, sm.History())
}

func TestScalingManager_DisabledGatesExecution(t *testing.T) {
	m := newTestMonitor(t)
	cfg := DefaultScalingManagerConfig()
	cfg.EnableAutoScaling = false
	sm := newTestScalingManager(t, cfg, m)
	sm.AddRule(ScalingRule{
		Name: "api", ResourceType: "cpu", Service: "api",
		ScaleUpAt: 80, ScaleDownAt: 20, MinInstances: 1, MaxInstances: 5, CooldownSecs: 0,
	}, 2)

	m.IngestMetric("cpu", "api", 90)
	actions := sm.Evaluate()
	require.Len(t, actions, 1)
	assert.True(t, actions[0].Executed)
	assert.False(t, actions[0].Success)
	assert.Empty(t, sm.History())
}

func TestScalingManager_HourlyCapEnforced(t *testing.T) {
	m := newTestMonitor(t)
	cfg := DefaultScalingManagerConfig()
	cfg.MaxActionsPerHour = 1
	sm := newTestScalingManager(t, cfg, m)
	sm.AddRule(ScalingRule{
		Name: "api", ResourceType: "cpu", Service: "api",
		ScaleUpAt: 80, ScaleDownAt: 20, MinInstances: 1, MaxInstances: 10, CooldownSecs: 0,
	}, 2)

	m.IngestMetric("cpu", "api", 90)
	first := sm.Evaluate()
	require.Len(t, first, 1)
	assert.True(t, first[0].Success)

	m.IngestMetric("cpu", "api", 90)
	second := sm.Evaluate()
	require.Len(t, second, 1)
	assert.False(t, second[0].Success)
	assert.Len(t, sm.History(), 1)
}
