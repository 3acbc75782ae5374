package tenancy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SetAndGet(t *testing.T) {
	m := NewManager(10, zerolog.Nop())
	ctx, err := m.Set(context.Background(), &TenantContext{WorkspaceID: "ws_a", UserID: "u1"})
	require.NoError(t, err)

	tc, ok := m.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "ws_a", tc.WorkspaceID)
	assert.NotEmpty(t, tc.ContextID)
}

func TestManager_SetRejectsInvalidContext(t *testing.T) {
	m := NewManager(10, zerolog.Nop())
	_, err := m.Set(context.Background(), &TenantContext{WorkspaceID: "", UserID: "u1"})
	var invalidErr *InvalidContextError
	require.ErrorAs(t, err, &invalidErr)
}

func TestManager_RequireFailsWithoutContext(t *testing.T) {
	m := NewManager(10, zerolog.Nop())
	_, err := m.Require(context.Background())
	var missingErr *ContextMissingError
	require.ErrorAs(t, err, &missingErr)
}

func TestManager_ByIDLooksUpHistory(t *testing.T) {
	m := NewManager(10, zerolog.Nop())
	ctx, err := m.Set(context.Background(), &TenantContext{WorkspaceID: "ws_a", UserID: "u1"})
	require.NoError(t, err)
	tc, _ := m.Get(ctx)

	found, ok := m.ByID(tc.ContextID)
	require.True(t, ok)
	assert.Equal(t, "ws_a", found.WorkspaceID)
}

func TestManager_HistoryEvictsOldest(t *testing.T) {
	m := NewManager(2, zerolog.Nop())
	var ids []string
	for i := 0; i < 3; i++ {
		ctx, err := m.Set(context.Background(), &TenantContext{WorkspaceID: "ws", UserID: "u"})
		require.NoError(t, err)
		tc, _ := m.Get(ctx)
		ids = append(ids, tc.ContextID)
	}
	_, ok := m.ByID(ids[0])
	assert.False(t, ok)
	_, ok = m.ByID(ids[2])
	assert.True(t, ok)
}

func TestManager_CreateBackgroundInheritsAndMarks(t *testing.T) {
	m := NewManager(10, zerolog.Nop())
	ctx, err := m.Set(context.Background(), &TenantContext{WorkspaceID: "ws_a", UserID: "u1", Roles: []Role{RoleEditor}})
	require.NoError(t, err)

	bgCtx, child, err := m.CreateBackground(ctx)
	require.NoError(t, err)
	assert.True(t, child.IsBackground)
	assert.Equal(t, "ws_a", child.WorkspaceID)

	got, ok := m.Get(bgCtx)
	require.True(t, ok)
	assert.Equal(t, child.ContextID, got.ContextID)
	assert.NotEmpty(t, child.ParentContextID)
}
