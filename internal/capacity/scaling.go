package capacity

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ScalingManager evaluates ScalingRules against a Monitor's latest metrics
// and executes scale decisions subject to cooldowns, an hourly action cap,
// and a global enable gate.
type ScalingManager struct {
	cfg     ScalingManagerConfig
	monitor *Monitor
	log     zerolog.Logger

	mu      sync.Mutex
	rules   map[string]*ScalingRule
	history []ScalingAction
}

func NewScalingManager(cfg ScalingManagerConfig, monitor *Monitor, log zerolog.Logger) (*ScalingManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ScalingManager{
		cfg:     cfg,
		monitor: monitor,
		log:     log.With().Str("component", "scaling_manager").Logger(),
		rules:   make(map[string]*ScalingRule),
	}, nil
}

// AddRule registers a rule, seeding its current instance count.
func (m *ScalingManager) AddRule(rule ScalingRule, currentCount int) {
	rule.currentCount = currentCount
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.Name] = &rule
}

func (m *ScalingManager) inCooldown(rule *ScalingRule) bool {
	if rule.lastActionAt.IsZero() {
		return false
	}
	return time.Since(rule.lastActionAt) < time.Duration(rule.CooldownSecs)*time.Second
}

func (m *ScalingManager) actionsInLastHour() int {
	cutoff := time.Now().Add(-time.Hour)
	count := 0
	for _, a := range m.history {
		if a.DecidedAt.After(cutoff) {
			count++
		}
	}
	return count
}

// Evaluate runs every registered rule once against the monitor's latest
// metric. Rules with no metric yet are skipped.
func (m *ScalingManager) Evaluate() []ScalingAction {
	m.mu.Lock()
	defer m.mu.Unlock()

	var actions []ScalingAction
	for _, rule := range m.rules {
		action, ok := m.evaluateRuleLocked(rule)
		if ok {
			actions = append(actions, action)
		}
	}
	return actions
}

func (m *ScalingManager) evaluateRuleLocked(rule *ScalingRule) (ScalingAction, bool) {
	metric, ok := m.monitor.Latest(rule.ResourceType, rule.Service)
	if !ok {
		return ScalingAction{}, false
	}

	if m.inCooldown(rule) {
		return ScalingAction{}, false
	}

	direction := NoAction
	target := rule.currentCount
	requested := rule.currentCount
	switch {
	case metric.Utilization >= rule.ScaleUpAt:
		direction = ScaleOut
		requested = rule.currentCount + 1
		target = requested
		if target > rule.MaxInstances {
			target = rule.MaxInstances
		}
	case metric.Utilization <= rule.ScaleDownAt:
		direction = ScaleIn
		requested = rule.currentCount - 1
		target = requested
		if target < rule.MinInstances {
			target = rule.MinInstances
		}
	}

	if direction == NoAction {
		return ScalingAction{}, false
	}

	action := ScalingAction{
		RuleName:  rule.Name,
		Direction: direction,
		FromCount: rule.currentCount,
		ToCount:   target,
		DecidedAt: time.Now(),
	}

	if requested < rule.MinInstances || requested > rule.MaxInstances {
		action.Executed = true
		action.Success = false
		action.Reason = "target out of bounds"
		return action, true
	}

	if !m.cfg.EnableAutoScaling {
		action.Executed = true
		action.Success = false
		action.Reason = "auto-scaling disabled"
		return action, true
	}

	if m.actionsInLastHour() >= m.cfg.MaxActionsPerHour {
		action.Executed = true
		action.Success = false
		action.Reason = "hourly action cap reached"
		return action, true
	}

	action.Executed = true
	action.Success = true
	rule.currentCount = target
	rule.lastActionAt = action.DecidedAt
	m.appendHistoryLocked(action)
	return action, true
}

func (m *ScalingManager) appendHistoryLocked(action ScalingAction) {
	if len(m.history) >= m.cfg.MaxHistory {
		m.history = m.history[1:]
	}
	m.history = append(m.history, action)
}

// History returns a copy of the successfully executed scaling actions.
func (m *ScalingManager) History() []ScalingAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ScalingAction, len(m.history))
	copy(out, m.history)
	return out
}

// CurrentCount returns a rule's tracked instance count.
func (m *ScalingManager) CurrentCount(ruleName string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[ruleName]
	if !ok {
		return 0, false
	}
	return rule.currentCount, true
}
