package capacity

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m, err := NewMonitor(DefaultMonitorConfig(), zerolog.Nop())
	require.NoError(t, err)
	return m
}

func TestMonitor_SnapshotHealthyByDefault(t *testing.T) {
	m := newTestMonitor(t)
	m.IngestMetric("cpu", "api", 50)
	snap := m.TakeSnapshot()
	assert.Equal(t, HealthHealthy, snap.OverallHealth)
}

func TestMonitor_SnapshotCriticalWins(t *testing.T) {
	m := newTestMonitor(t)
	m.IngestMetric("cpu", "api", 50)
	m.IngestMetric("memory", "api", 95)
	snap := m.TakeSnapshot()
	assert.Equal(t, HealthCritical, snap.OverallHealth)
}

func TestMonitor_SnapshotWarningWithoutCritical(t *testing.T) {
	m := newTestMonitor(t)
	m.IngestMetric("cpu", "api", 80)
	m.IngestMetric("memory", "api", 40)
	snap := m.TakeSnapshot()
	assert.Equal(t, HealthWarning, snap.OverallHealth)
}

func TestMonitor_SnapshotOverProvisionedRequiresAll(t *testing.T) {
	m := newTestMonitor(t)
	m.IngestMetric("cpu", "api", 10)
	m.IngestMetric("memory", "api", 10)
	snap := m.TakeSnapshot()
	assert.Equal(t, HealthOverProvisioned, snap.OverallHealth)

	m.IngestMetric("disk", "api", 50)
	snap2 := m.TakeSnapshot()
	assert.Equal(t, HealthHealthy, snap2.OverallHealth)
}

func TestMonitor_LatestIndexTracksMostRecent(t *testing.T) {
	m := newTestMonitor(t)
	m.IngestMetric("cpu", "api", 10)
	m.IngestMetric("cpu", "api", 20)

	latest, ok := m.Latest("cpu", "api")
	require.True(t, ok)
	assert.Equal(t, 20.0, latest.Utilization)
	assert.Len(t, m.History("cpu", "api"), 2)
}

func TestMonitor_BoundedMetricLog(t *testing.T) {
	cfg := MonitorConfig{MaxMetrics: 2}
	m, err := NewMonitor(cfg, zerolog.Nop())
	require.NoError(t, err)

	m.IngestMetric("cpu", "api", 1)
	m.IngestMetric("cpu", "api", 2)
	m.IngestMetric("cpu", "api", 3)

	assert.Len(t, m.History("cpu", "api"), 2)
}

func TestMonitor_CustomThresholds(t *testing.T) {
	m := newTestMonitor(t)
	m.SetThresholds("gpu", "ml", Thresholds{Warning: 60, Critical: 85, ScaleDown: 5})
	m.IngestMetric("gpu", "ml", 65)
	snap := m.TakeSnapshot()
	assert.Equal(t, HealthWarning, snap.OverallHealth)
}
