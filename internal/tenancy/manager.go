package tenancy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// tenantCtxKey is the unexported context.Context key under which a
// *TenantContext is stored. Using an explicit context.Context parameter
// threaded through the handler chain is this module's Go translation of the
// source's thread-local storage. A process-wide
// mutable global is deliberately never used.
type tenantCtxKey struct{}

// Manager is the context manager: it mints and validates TenantContexts,
// threads them through context.Context, and retains a bounded history for
// ByID lookups (the Go equivalent of the original's _context_history dict,
// bounded by a ring buffer rather than left unbounded).
type Manager struct {
	mu         sync.Mutex
	log        zerolog.Logger
	maxHistory int
	history    map[string]*TenantContext
	order      []string
}

// NewManager constructs a Manager whose ByID history retains at most
// maxHistory entries, oldest evicted first.
func NewManager(maxHistory int, log zerolog.Logger) *Manager {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &Manager{
		maxHistory: maxHistory,
		log:        log.With().Str("component", "tenant_context_manager").Logger(),
		history:    make(map[string]*TenantContext),
	}
}

// Set validates tc, assigns ContextID/CreatedAt defaults, records it in the
// bounded history, and returns a derived context.Context carrying it.
// Setting an invalid context (empty workspace or user) fails with
// InvalidContextError.
func (m *Manager) Set(parent context.Context, tc *TenantContext) (context.Context, error) {
	if err := tc.Validate(); err != nil {
		return parent, err
	}
	if tc.ContextID == "" {
		tc.ContextID = uuid.NewString()
	}
	if tc.CreatedAt.IsZero() {
		tc.CreatedAt = time.Now()
	}
	m.record(tc)
	return context.WithValue(parent, tenantCtxKey{}, tc), nil
}

func (m *Manager) record(tc *TenantContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.history[tc.ContextID]; !exists {
		m.order = append(m.order, tc.ContextID)
	}
	m.history[tc.ContextID] = tc
	for len(m.order) > m.maxHistory {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.history, oldest)
	}
}

// Get returns the context's active TenantContext, if any.
func (m *Manager) Get(ctx context.Context) (*TenantContext, bool) {
	tc, ok := ctx.Value(tenantCtxKey{}).(*TenantContext)
	return tc, ok && tc != nil
}

// Clear returns a derived context.Context with no active tenant context.
func (m *Manager) Clear(ctx context.Context) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, (*TenantContext)(nil))
}

// Require returns the active TenantContext or a *ContextMissingError.
func (m *Manager) Require(ctx context.Context) (*TenantContext, error) {
	tc, ok := m.Get(ctx)
	if !ok {
		return nil, &ContextMissingError{}
	}
	return tc, nil
}

// ByID looks up a previously Set context by its ContextID, for callers that
// retained only the identifier (e.g. across an async boundary).
func (m *Manager) ByID(id string) (*TenantContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.history[id]
	return tc, ok
}

// CreateBackground derives a child TenantContext from the context active on
// ctx: it inherits workspace and roles, records ParentContextID, and sets
// IsBackground. Spawning a background task that needs tenant identity must
// go through this explicit handoff rather than implicitly sharing ctx.
func (m *Manager) CreateBackground(ctx context.Context) (context.Context, *TenantContext, error) {
	parent, err := m.Require(ctx)
	if err != nil {
		return ctx, nil, err
	}
	child := &TenantContext{
		WorkspaceID:     parent.WorkspaceID,
		UserID:          parent.UserID,
		Roles:           append([]Role(nil), parent.Roles...),
		Permissions:     parent.Permissions,
		ParentContextID: parent.ContextID,
		IsBackground:    true,
	}
	newCtx, err := m.Set(ctx, child)
	if err != nil {
		return ctx, nil, err
	}
	m.log.Debug().Str("parent", parent.ContextID).Str("child", child.ContextID).Msg("background context created")
	return newCtx, child, nil
}
