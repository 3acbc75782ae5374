package tenancy

import (
	"time"

	"github.com/rs/zerolog"
)

// QueryAuditEntry records one Filter decision.
type QueryAuditEntry struct {
	Table       string
	WorkspaceID string
	UserID      string
	Allowed     bool
	Reason      string
	Timestamp   time.Time
}

// QueryFilter injects a workspace_id predicate into query parameter maps
// and enforces cross-workspace access.
type QueryFilter struct {
	cfg   QueryFilterConfig
	log   zerolog.Logger
	audit *ringBuffer[QueryAuditEntry]
	shared map[string]bool
}

func NewQueryFilter(cfg QueryFilterConfig, log zerolog.Logger) *QueryFilter {
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("query filter config invalid, using as-is")
	}
	shared := make(map[string]bool, len(cfg.SharedResourceTables))
	for _, t := range cfg.SharedResourceTables {
		shared[t] = true
	}
	return &QueryFilter{
		cfg:    cfg,
		log:    log.With().Str("component", "query_filter").Logger(),
		audit:  newRingBuffer[QueryAuditEntry](cfg.AuditMaxEntries),
		shared: shared,
	}
}

// Filter produces a new params map with workspace_id injected/validated per
// Runs the four-step filter decision. params may be nil, treated as empty.
func (f *QueryFilter) Filter(table string, params map[string]any, tc *TenantContext) (map[string]any, error) {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}

	if f.shared[table] {
		f.record(table, tc, true, "shared resource table")
		return out, nil
	}

	if tc == nil {
		if f.cfg.EnforceRowLevelSecurity {
			f.record(table, tc, false, "no-context")
			return nil, &PermissionDeniedError{Reason: "no-context"}
		}
		f.record(table, tc, true, "row-level security not enforced")
		return out, nil
	}

	if existing, ok := out["workspace_id"]; ok {
		if existingStr, _ := existing.(string); existingStr != tc.WorkspaceID {
			if f.hasCrossWorkspaceRole(tc) {
				out["workspace_id"] = tc.WorkspaceID
				f.record(table, tc, true, "cross-workspace access granted")
				return out, nil
			}
			f.record(table, tc, false, "cross-workspace")
			return nil, &PermissionDeniedError{Reason: "cross-workspace"}
		}
	}

	out["workspace_id"] = tc.WorkspaceID
	f.record(table, tc, true, "workspace scoped")
	return out, nil
}

func (f *QueryFilter) hasCrossWorkspaceRole(tc *TenantContext) bool {
	for _, allowed := range f.cfg.AllowedCrossWorkspaceRoles {
		if tc.HasRole(allowed) {
			return true
		}
	}
	return false
}

func (f *QueryFilter) record(table string, tc *TenantContext, allowed bool, reason string) {
	if !f.cfg.AuditEnabled {
		return
	}
	entry := QueryAuditEntry{Table: table, Allowed: allowed, Reason: reason, Timestamp: time.Now()}
	if tc != nil {
		entry.WorkspaceID = tc.WorkspaceID
		entry.UserID = tc.UserID
	}
	f.audit.append(entry)
	if !allowed {
		f.log.Warn().Str("table", table).Str("reason", reason).Msg("query filter denied")
	}
}

// AuditLog returns a copy of the recorded decisions, oldest first.
func (f *QueryFilter) AuditLog() []QueryAuditEntry { return f.audit.all() }
