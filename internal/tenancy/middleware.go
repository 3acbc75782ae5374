package tenancy

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	HeaderWorkspaceID = "X-Workspace-ID"
	HeaderUserID      = "X-User-ID"
	HeaderUserRoles   = "X-User-Roles"
)

// Headers is the framework-agnostic view of an inbound request's claims,
// (a decision function taking an explicit parameter
// rather than reaching into a specific HTTP library's request type).
type Headers map[string]string

func (h Headers) get(key string) string {
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// MiddlewareAuditEntry records one isolation-middleware decision.
type MiddlewareAuditEntry struct {
	WorkspaceID string
	UserID      string
	Action      string
	IP          string
	Allowed     bool
	Reason      string
	Timestamp   time.Time
}

type slidingWindow struct {
	mu    sync.Mutex
	hits  []time.Time
}

func (w *slidingWindow) count(now time.Time, window time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-window)
	kept := w.hits[:0]
	for _, t := range w.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.hits = kept
	return len(w.hits)
}

func (w *slidingWindow) record(now time.Time) {
	w.mu.Lock()
	w.hits = append(w.hits, now)
	w.mu.Unlock()
}

// IsolationMiddleware enforces tenant identity extraction, IP allowlisting,
// IP fan-out caps, per-workspace rate limiting and cross-tenant blocking
// establishing a TenantContext on success.
type IsolationMiddleware struct {
	cfg     MiddlewareConfig
	log     zerolog.Logger
	manager *Manager
	audit   *ringBuffer[MiddlewareAuditEntry]

	mu              sync.Mutex
	ipAllowlist     map[string]map[string]bool // workspace -> allowed IPs
	ipWorkspaces    map[string]map[string]bool // ip -> distinct workspaces seen
	workspaceWindows map[string]*slidingWindow
}

func NewIsolationMiddleware(cfg MiddlewareConfig, manager *Manager, log zerolog.Logger) *IsolationMiddleware {
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("middleware config invalid, using as-is")
	}
	return &IsolationMiddleware{
		cfg:              cfg,
		log:              log.With().Str("component", "isolation_middleware").Logger(),
		manager:          manager,
		audit:            newRingBuffer[MiddlewareAuditEntry](cfg.AuditMaxEntries),
		ipAllowlist:      make(map[string]map[string]bool),
		ipWorkspaces:     make(map[string]map[string]bool),
		workspaceWindows: make(map[string]*slidingWindow),
	}
}

// AllowIP adds ip to workspace's allowlist. Calling this at all implicitly
// scopes EnforceIPRestriction checks to workspaces that have an allowlist
// configured; a workspace with no entries is unrestricted.
func (m *IsolationMiddleware) AllowIP(workspaceID, ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ipAllowlist[workspaceID] == nil {
		m.ipAllowlist[workspaceID] = make(map[string]bool)
	}
	m.ipAllowlist[workspaceID][ip] = true
}

// Process runs the decision pipeline and returns (allowed, context,
// reason) rather than an error, so the caller shapes the HTTP response.
func (m *IsolationMiddleware) Process(ctx context.Context, headers Headers, ip string) (bool, context.Context, string) {
	workspaceID := headers.get(HeaderWorkspaceID)
	userID := headers.get(HeaderUserID)
	rolesRaw := headers.get(HeaderUserRoles)

	var roles []Role
	if rolesRaw != "" {
		for _, r := range strings.Split(rolesRaw, ",") {
			r = strings.TrimSpace(r)
			if r != "" {
				roles = append(roles, Role(r))
			}
		}
	}

	if workspaceID == "" || userID == "" {
		reason := "missing workspace_id or user_id claim"
		m.record(workspaceID, userID, ip, false, reason)
		return false, ctx, reason
	}

	if m.cfg.EnforceIPRestriction {
		if !m.ipAllowed(workspaceID, ip) {
			reason := "ip not in workspace allowlist"
			m.record(workspaceID, userID, ip, false, reason)
			return false, ctx, reason
		}
	}

	if m.fanOutExceeded(ip, workspaceID) {
		reason := "max_workspaces_per_ip exceeded"
		m.record(workspaceID, userID, ip, false, reason)
		return false, ctx, reason
	}

	if m.rateLimited(workspaceID) {
		reason := "Rate limit exceeded for workspace"
		m.record(workspaceID, userID, ip, false, reason)
		return false, ctx, reason
	}

	if m.cfg.BlockCrossTenantRequests {
		if existing, ok := m.manager.Get(ctx); ok && existing.WorkspaceID != workspaceID {
			reason := "cross-tenant request blocked"
			m.record(workspaceID, userID, ip, false, reason)
			return false, ctx, reason
		}
	}

	tc := &TenantContext{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Roles:       roles,
		Permissions: map[string]bool{},
		IPAddress:   ip,
	}
	newCtx, err := m.manager.Set(ctx, tc)
	if err != nil {
		reason := err.Error()
		m.record(workspaceID, userID, ip, false, reason)
		return false, ctx, reason
	}
	m.record(workspaceID, userID, ip, true, "established")
	return true, newCtx, ""
}

func (m *IsolationMiddleware) ipAllowed(workspaceID, ip string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed, configured := m.ipAllowlist[workspaceID]
	if !configured || len(allowed) == 0 {
		return true
	}
	return allowed[ip]
}

func (m *IsolationMiddleware) fanOutExceeded(ip, workspaceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := m.ipWorkspaces[ip]
	if seen == nil {
		seen = make(map[string]bool)
		m.ipWorkspaces[ip] = seen
	}
	if seen[workspaceID] {
		return false
	}
	if len(seen) >= m.cfg.MaxWorkspacesPerIP {
		return true
	}
	seen[workspaceID] = true
	return false
}

func (m *IsolationMiddleware) rateLimited(workspaceID string) bool {
	m.mu.Lock()
	w := m.workspaceWindows[workspaceID]
	if w == nil {
		w = &slidingWindow{}
		m.workspaceWindows[workspaceID] = w
	}
	m.mu.Unlock()

	now := time.Now()
	if w.count(now, m.cfg.RateLimitWindow) >= m.cfg.RateLimitPerWorkspace {
		return true
	}
	w.record(now)
	return false
}

func (m *IsolationMiddleware) record(workspaceID, userID, ip string, allowed bool, reason string) {
	entry := MiddlewareAuditEntry{
		WorkspaceID: workspaceID, UserID: userID, Action: "ingress",
		IP: ip, Allowed: allowed, Reason: reason, Timestamp: time.Now(),
	}
	m.audit.append(entry)
	if !allowed {
		m.log.Warn().Str("workspace_id", workspaceID).Str("reason", reason).Msg("isolation middleware denied request")
	}
}

// AuditLog returns a copy of the recorded decisions, oldest first.
func (m *IsolationMiddleware) AuditLog() []MiddlewareAuditEntry { return m.audit.all() }

// Cleanup clears the active context at task completion; the Go translation
// is a no-op returning a cleared context.Context for callers threading it
// explicitly (context.Context itself does not support in-place mutation).
func (m *IsolationMiddleware) Cleanup(ctx context.Context) context.Context { return m.manager.Clear(ctx) }

// HTTPMiddleware adapts Process to a chi-compatible func(http.Handler)
// http.Handler, shaping the 403/429 responses.
func (m *IsolationMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := Headers{
			HeaderWorkspaceID: r.Header.Get(HeaderWorkspaceID),
			HeaderUserID:      r.Header.Get(HeaderUserID),
			HeaderUserRoles:   r.Header.Get(HeaderUserRoles),
		}
		ip := clientIP(r)

		allowed, ctx, reason := m.Process(r.Context(), headers, ip)
		if !allowed {
			if strings.Contains(strings.ToLower(reason), "rate limit") {
				writeRateLimited(w, m.cfg.RateLimitWindow)
				return
			}
			writeForbidden(w, reason)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}

func writeForbidden(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": reason})
}

// writeRateLimited shapes the 429 response: Retry-After is
// ceil(seconds)+1 and the body is the fixed {"detail": ...} shape.
func writeRateLimited(w http.ResponseWriter, window time.Duration) {
	retryAfter := int(math.Ceil(window.Seconds())) + 1
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Rate limit exceeded"})
}
