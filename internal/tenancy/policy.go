package tenancy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PolicyAction is the terminal decision a matching policy carries.
type PolicyAction string

const (
	ActionAllow PolicyAction = "ALLOW"
	ActionDeny  PolicyAction = "DENY"
)

// Policy is an access-control rule. An empty WorkspaceID means
// global (applies to every workspace).
type Policy struct {
	PolicyID     string
	WorkspaceID  string
	ResourceType string
	Role         Role
	AccessLevel  AccessLevel
	Action       PolicyAction
	Priority     int
	Conditions   map[string]any // scalar (equality) or []any (membership)
	Enabled      bool
	Description  string
}

// AccessRequest is the caller-supplied evaluation input.
type AccessRequest struct {
	WorkspaceID  string
	ResourceType string
	Roles        []Role
	Level        AccessLevel
	Conditions   map[string]any
}

// PolicyEvaluation is the ephemeral result of one Evaluate call.
type PolicyEvaluation struct {
	Allowed          bool
	PolicyID         string
	Reason           string
	AccessLevel      AccessLevel
	EvaluatedPolicies int
	Cached           bool
	ElapsedMS        float64
}

type cacheEntry struct {
	eval    PolicyEvaluation
	expires time.Time
}

// PolicyEngine evaluates AccessRequests against a registered policy set,
// with a TTL-bounded result cache invalidated wholesale on any mutation.
type PolicyEngine struct {
	cfg PolicyEngineConfig
	log zerolog.Logger

	mu       sync.RWMutex
	policies map[string]*Policy

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

func NewPolicyEngine(cfg PolicyEngineConfig, log zerolog.Logger) *PolicyEngine {
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("policy engine config invalid, using as-is")
	}
	return &PolicyEngine{
		cfg:      cfg,
		log:      log.With().Str("component", "policy_engine").Logger(),
		policies: make(map[string]*Policy),
		cache:    make(map[string]cacheEntry),
	}
}

// AddPolicy registers p (assigning a PolicyID if absent) and invalidates
// the evaluation cache.
func (e *PolicyEngine) AddPolicy(p Policy) *Policy {
	if p.PolicyID == "" {
		p.PolicyID = uuid.NewString()
	}
	e.mu.Lock()
	e.policies[p.PolicyID] = &p
	e.mu.Unlock()
	e.invalidateCache()
	return &p
}

// RemovePolicy deletes a policy by id and invalidates the cache.
func (e *PolicyEngine) RemovePolicy(policyID string) {
	e.mu.Lock()
	delete(e.policies, policyID)
	e.mu.Unlock()
	e.invalidateCache()
}

// Policies returns a snapshot slice of every registered policy, for
// introspection endpoints.
func (e *PolicyEngine) Policies() []*Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Policy, 0, len(e.policies))
	for _, p := range e.policies {
		out = append(out, p)
	}
	return out
}

func (e *PolicyEngine) invalidateCache() {
	e.cacheMu.Lock()
	e.cache = make(map[string]cacheEntry)
	e.cacheMu.Unlock()
}

func (e *PolicyEngine) cacheKey(req AccessRequest) string {
	roles := append([]Role(nil), req.Roles...)
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return fmt.Sprintf("%s|%s|%s|%s", req.WorkspaceID, strings.Join(parts, ","), req.ResourceType, req.Level)
}

// Evaluate runs the matching + sorting + decision algorithm, consulting
// the TTL cache first.
func (e *PolicyEngine) Evaluate(req AccessRequest) PolicyEvaluation {
	start := time.Now()
	key := e.cacheKey(req)

	if e.cfg.CacheTTL > 0 {
		e.cacheMu.Lock()
		if entry, ok := e.cache[key]; ok && time.Now().Before(entry.expires) {
			e.cacheMu.Unlock()
			cached := entry.eval
			cached.Cached = true
			cached.ElapsedMS = time.Since(start).Seconds() * 1000
			return cached
		}
		e.cacheMu.Unlock()
	}

	matching := e.matchingPolicies(req)
	eval := e.decide(matching, req)
	eval.EvaluatedPolicies = len(matching)
	eval.ElapsedMS = time.Since(start).Seconds() * 1000

	if e.cfg.CacheTTL > 0 {
		e.cacheMu.Lock()
		e.cache[key] = cacheEntry{eval: eval, expires: time.Now().Add(e.cfg.CacheTTL)}
		e.cacheMu.Unlock()
	}
	return eval
}

func (e *PolicyEngine) matchingPolicies(req AccessRequest) []*Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	highest := HighestRole(req.Roles)
	var matches []*Policy
	for _, p := range e.policies {
		if !p.Enabled {
			continue
		}
		if p.WorkspaceID != "" && p.WorkspaceID != req.WorkspaceID {
			continue
		}
		if p.ResourceType != req.ResourceType {
			continue
		}
		if highest.rank() < p.Role.rank() {
			continue
		}
		if !conditionsSatisfied(p.Conditions, req.Conditions) {
			continue
		}
		matches = append(matches, p)
	}
	return matches
}

func conditionsSatisfied(required, supplied map[string]any) bool {
	for k, want := range required {
		got, ok := supplied[k]
		if !ok {
			return false
		}
		switch w := want.(type) {
		case []any:
			found := false
			for _, item := range w {
				if item == got {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if got != want {
				return false
			}
		}
	}
	return true
}

func (e *PolicyEngine) decide(matches []*Policy, req AccessRequest) PolicyEvaluation {
	if len(matches) == 0 {
		return PolicyEvaluation{Allowed: false, Reason: "no matching policy", AccessLevel: AccessNone}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		// DENY before ALLOW at equal priority.
		return matches[i].Action == ActionDeny && matches[j].Action != ActionDeny
	})

	top := matches[0]
	if top.Action == ActionDeny {
		return PolicyEvaluation{
			Allowed: false, PolicyID: top.PolicyID, Reason: "denied by policy " + top.PolicyID,
			AccessLevel: AccessNone,
		}
	}

	allowed := top.AccessLevel.AtLeast(req.Level)
	reason := "allowed by policy " + top.PolicyID
	if !allowed {
		reason = fmt.Sprintf("policy %s grants %s, requested %s", top.PolicyID, top.AccessLevel, req.Level)
	}
	return PolicyEvaluation{Allowed: allowed, PolicyID: top.PolicyID, Reason: reason, AccessLevel: top.AccessLevel}
}

// GetEffectiveAccess probes ADMIN -> WRITE -> READ and returns the highest
// level the context is granted for resource (NONE if none).
func (e *PolicyEngine) GetEffectiveAccess(tc *TenantContext, resourceType string) AccessLevel {
	if tc == nil {
		return AccessNone
	}
	for _, level := range []AccessLevel{AccessAdmin, AccessWrite, AccessRead} {
		req := AccessRequest{
			WorkspaceID:  tc.WorkspaceID,
			ResourceType: resourceType,
			Roles:        tc.Roles,
			Level:        level,
		}
		if e.Evaluate(req).Allowed {
			return level
		}
	}
	return AccessNone
}
