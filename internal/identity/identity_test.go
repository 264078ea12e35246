package identity

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/store"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewResolver(st)
}

func TestSessionID_GeneratedOnceAndStable(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	first, err := r.SessionID(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "session_"), "session id %q should carry the session_ prefix", first)

	second, err := r.SessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second, "session id must be stable across calls")
}

func TestUserID_AbsentUntilLogin(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	_, ok, err := r.UserID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.SetCurrentUser(ctx, api.User{ID: 42, Username: "ana", Role: "CUSTOMER"}))

	uid, ok, err := r.UserID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), uid)

	require.NoError(t, r.ClearCurrentUser(ctx))
	_, ok, err = r.UserID(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "user id must be absent after logout")
}

func TestHeaders(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	headers, err := r.Headers(ctx)
	require.NoError(t, err)
	assert.Contains(t, headers, api.HeaderSessionID)
	assert.NotContains(t, headers, api.HeaderUserID)

	require.NoError(t, r.SetCurrentUser(ctx, api.User{ID: 7, Username: "ana", Role: "CUSTOMER"}))

	headers, err = r.Headers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7", headers[api.HeaderUserID])
	assert.NotEmpty(t, headers[api.HeaderSessionID])
}

func TestHeaders_SessionSurvivesLogout(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	before, err := r.Headers(ctx)
	require.NoError(t, err)

	require.NoError(t, r.SetCurrentUser(ctx, api.User{ID: 7, Username: "ana"}))
	require.NoError(t, r.ClearCurrentUser(ctx))

	after, err := r.Headers(ctx)
	require.NoError(t, err)
	assert.Equal(t, before[api.HeaderSessionID], after[api.HeaderSessionID])
}
