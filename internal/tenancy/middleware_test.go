package tenancy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMiddleware(cfg MiddlewareConfig) *IsolationMiddleware {
	return NewIsolationMiddleware(cfg, NewManager(100, zerolog.Nop()), zerolog.Nop())
}

func TestIsolationMiddleware_RejectsMissingClaims(t *testing.T) {
	mw := newTestMiddleware(DefaultMiddlewareConfig())
	allowed, _, reason := mw.Process(context.Background(), Headers{}, "1.2.3.4")
	assert.False(t, allowed)
	assert.Contains(t, reason, "missing")
}

func TestIsolationMiddleware_EstablishesContext(t *testing.T) {
	mw := newTestMiddleware(DefaultMiddlewareConfig())
	headers := Headers{HeaderWorkspaceID: "ws_a", HeaderUserID: "u1", HeaderUserRoles: "viewer,editor"}
	allowed, ctx, _ := mw.Process(context.Background(), headers, "1.2.3.4")
	require.True(t, allowed)

	tc, ok := mw.manager.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "ws_a", tc.WorkspaceID)
	assert.Equal(t, []Role{RoleViewer, RoleEditor}, tc.Roles)
}

func TestIsolationMiddleware_RateLimitsPerWorkspace(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.RateLimitPerWorkspace = 3
	cfg.RateLimitWindow = time.Minute
	mw := newTestMiddleware(cfg)
	headers := Headers{HeaderWorkspaceID: "ws_a", HeaderUserID: "u1"}

	var outcomes []bool
	for i := 0; i < 4; i++ {
		allowed, _, reason := mw.Process(context.Background(), headers, "1.2.3.4")
		outcomes = append(outcomes, allowed)
		if !allowed {
			assert.Contains(t, strings.ToLower(reason), "rate limit")
		}
	}
	assert.Equal(t, []bool{true, true, true, false}, outcomes)
}

func TestIsolationMiddleware_IPFanOutCap(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.MaxWorkspacesPerIP = 1
	mw := newTestMiddleware(cfg)

	allowed1, _, _ := mw.Process(context.Background(), Headers{HeaderWorkspaceID: "ws_a", HeaderUserID: "u1"}, "9.9.9.9")
	require.True(t, allowed1)

	allowed2, _, reason := mw.Process(context.Background(), Headers{HeaderWorkspaceID: "ws_b", HeaderUserID: "u1"}, "9.9.9.9")
	assert.False(t, allowed2)
	assert.Contains(t, reason, "max_workspaces_per_ip")
}

func TestIsolationMiddleware_IPRestriction(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.EnforceIPRestriction = true
	mw := newTestMiddleware(cfg)
	mw.AllowIP("ws_a", "5.5.5.5")

	allowed, _, reason := mw.Process(context.Background(), Headers{HeaderWorkspaceID: "ws_a", HeaderUserID: "u1"}, "6.6.6.6")
	assert.False(t, allowed)
	assert.Contains(t, reason, "allowlist")

	allowed2, _, _ := mw.Process(context.Background(), Headers{HeaderWorkspaceID: "ws_a", HeaderUserID: "u1"}, "5.5.5.5")
	assert.True(t, allowed2)
}

func TestIsolationMiddleware_CrossTenantBlocked(t *testing.T) {
	mw := newTestMiddleware(DefaultMiddlewareConfig())
	_, ctx, _ := mw.Process(context.Background(), Headers{HeaderWorkspaceID: "ws_a", HeaderUserID: "u1"}, "1.1.1.1")

	allowed, _, reason := mw.Process(ctx, Headers{HeaderWorkspaceID: "ws_b", HeaderUserID: "u1"}, "1.1.1.1")
	assert.False(t, allowed)
	assert.Contains(t, reason, "cross-tenant")
}

func TestIsolationMiddleware_HTTPMiddlewareShapes429(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.RateLimitPerWorkspace = 1
	cfg.RateLimitWindow = time.Minute
	mw := newTestMiddleware(cfg)
	handler := mw.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderWorkspaceID, "ws_a")
	req.Header.Set(HeaderUserID, "u1")

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.NotEmpty(t, w2.Header().Get("Retry-After"))
}
