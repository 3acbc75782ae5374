package capacity

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

func metricKey(resourceType, service string) string { return resourceType + "|" + service }

// Monitor is an append-only metric log with a
// latest-per-(resource_type,service) index and a configurable health
// threshold per key. The index is updated eagerly by every IngestMetric
// call; it is not built lazily on lookup.
type Monitor struct {
	cfg MonitorConfig
	log zerolog.Logger

	mu         sync.RWMutex
	metrics    []ResourceMetric
	latest     map[string]ResourceMetric
	thresholds map[string]Thresholds
}

func NewMonitor(cfg MonitorConfig, log zerolog.Logger) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:        cfg,
		log:        log.With().Str("component", "resource_monitor").Logger(),
		latest:     make(map[string]ResourceMetric),
		thresholds: make(map[string]Thresholds),
	}, nil
}

// SetThresholds overrides the default health thresholds for one
// (resource, service) pair.
func (m *Monitor) SetThresholds(resourceType, service string, t Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds[metricKey(resourceType, service)] = t
}

// IngestMetric appends one observation and refreshes the latest-value
// index for its key.
func (m *Monitor) IngestMetric(resourceType, service string, utilization float64) ResourceMetric {
	metric := ResourceMetric{
		ResourceType: resourceType,
		Service:      service,
		Utilization:  utilization,
		Timestamp:    time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.metrics) >= m.cfg.MaxMetrics {
		m.metrics = m.metrics[1:]
	}
	m.metrics = append(m.metrics, metric)
	m.latest[metricKey(resourceType, service)] = metric
	return metric
}

// IngestHostStats samples live CPU and memory utilization via gopsutil and
// records them under service "host".
func (m *Monitor) IngestHostStats() error {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return fmt.Errorf("capacity: read cpu stats: %w", err)
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	m.IngestMetric("cpu", "host", cpuAvg)

	vm, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("capacity: read memory stats: %w", err)
	}
	m.IngestMetric("memory", "host", vm.UsedPercent)
	return nil
}

// History returns the retained observations for one (resource, service)
// key, oldest first.
func (m *Monitor) History(resourceType, service string) []ResourceMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ResourceMetric
	for _, metric := range m.metrics {
		if metric.ResourceType == resourceType && metric.Service == service {
			out = append(out, metric)
		}
	}
	return out
}

func (m *Monitor) thresholdsFor(key string) Thresholds {
	if t, ok := m.thresholds[key]; ok {
		return t
	}
	return DefaultThresholds()
}

func healthFor(util float64, t Thresholds) HealthStatus {
	switch {
	case util >= t.Critical:
		return HealthCritical
	case util >= t.Warning:
		return HealthWarning
	case util <= t.ScaleDown:
		return HealthOverProvisioned
	default:
		return HealthHealthy
	}
}

// TakeSnapshot returns the current picture across every tracked key, with
// an overall rollup: any CRITICAL entry makes the whole snapshot CRITICAL;
// else any WARNING makes it WARNING; else if every entry is
// OVER_PROVISIONED the snapshot is OVER_PROVISIONED; else HEALTHY.
func (m *Monitor) TakeSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{TakenAt: time.Now(), OverallHealth: HealthHealthy}
	if len(m.latest) == 0 {
		return snap
	}

	allOverProvisioned := true
	sawWarning := false
	sawCritical := false

	for key, metric := range m.latest {
		health := healthFor(metric.Utilization, m.thresholdsFor(key))
		snap.Entries = append(snap.Entries, SnapshotEntry{
			ResourceType: metric.ResourceType,
			Service:      metric.Service,
			Utilization:  metric.Utilization,
			Health:       health,
			ObservedAt:   metric.Timestamp,
		})
		switch health {
		case HealthCritical:
			sawCritical = true
			allOverProvisioned = false
		case HealthWarning:
			sawWarning = true
			allOverProvisioned = false
		case HealthHealthy:
			allOverProvisioned = false
		}
	}

	switch {
	case sawCritical:
		snap.OverallHealth = HealthCritical
	case sawWarning:
		snap.OverallHealth = HealthWarning
	case allOverProvisioned:
		snap.OverallHealth = HealthOverProvisioned
	default:
		snap.OverallHealth = HealthHealthy
	}
	return snap
}

// Latest returns the most recent metric for a key, if any.
func (m *Monitor) Latest(resourceType, service string) (ResourceMetric, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metric, ok := m.latest[metricKey(resourceType, service)]
	return metric, ok
}
