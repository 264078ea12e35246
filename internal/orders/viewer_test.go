package orders

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/identity"
	"github.com/roach88/caffinity/internal/store"
	"github.com/roach88/caffinity/internal/testutil"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from api.OrderStatus
		want api.OrderStatus
		ok   bool
	}{
		{api.OrderPending, api.OrderConfirmed, true},
		{api.OrderConfirmed, api.OrderCompleted, true},
		{api.OrderCompleted, "", false},
		{api.OrderCancelled, "", false},
	}
	for _, tt := range tests {
		got, ok := NextStatus(tt.from)
		assert.Equal(t, tt.ok, ok, "from %s", tt.from)
		assert.Equal(t, tt.want, got, "from %s", tt.from)
	}
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(api.OrderPending))
	assert.True(t, CanCancel(api.OrderConfirmed))
	assert.False(t, CanCancel(api.OrderCompleted))
	assert.False(t, CanCancel(api.OrderCancelled))
}

type viewerFixture struct {
	viewer  *Viewer
	backend *testutil.Backend
	ids     *identity.Resolver
}

func newViewerFixture(t *testing.T, user api.User) *viewerFixture {
	t.Helper()

	backend := testutil.NewBackend()
	srv := backend.Server(t)

	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ids := identity.NewResolver(st)
	if user.ID != 0 {
		require.NoError(t, ids.SetCurrentUser(context.Background(), user))
	}

	client := api.New(srv.URL, 2*time.Second, nil)
	return &viewerFixture{
		viewer:  NewViewer(client, ids, nil),
		backend: backend,
		ids:     ids,
	}
}

var (
	customer = api.User{ID: 2, Username: "ana@example.com", Role: "CUSTOMER"}
	admin    = api.User{ID: 1, Username: "admin@example.com", Role: "ADMIN"}
)

func seedOrders(b *testutil.Backend) (mine, theirs int64) {
	mine = b.SeedOrder(api.Order{UserID: 2, Status: api.OrderPending, TotalAmount: decimal.RequireFromString("251.60")})
	theirs = b.SeedOrder(api.Order{UserID: 7, Status: api.OrderConfirmed, TotalAmount: decimal.RequireFromString("125.00")})
	return mine, theirs
}

func TestRefresh_CustomerSeesOwnOrdersOnly(t *testing.T) {
	f := newViewerFixture(t, customer)
	mine, _ := seedOrders(f.backend)

	require.NoError(t, f.viewer.Refresh(context.Background()))
	orders := f.viewer.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, mine, orders[0].ID)
}

func TestRefresh_AdminSeesEverything(t *testing.T) {
	f := newViewerFixture(t, admin)
	seedOrders(f.backend)

	require.NoError(t, f.viewer.Refresh(context.Background()))
	assert.Len(t, f.viewer.Orders(), 2)
}

func TestRefresh_RequiresLogin(t *testing.T) {
	f := newViewerFixture(t, api.User{})
	assert.ErrorIs(t, f.viewer.Refresh(context.Background()), ErrNotLoggedIn)
}

func TestFilterByStatus(t *testing.T) {
	f := newViewerFixture(t, admin)
	seedOrders(f.backend)
	require.NoError(t, f.viewer.Refresh(context.Background()))

	pending := f.viewer.FilterByStatus(api.OrderPending)
	require.Len(t, pending, 1)
	assert.Equal(t, api.OrderPending, pending[0].Status)
	assert.Empty(t, f.viewer.FilterByStatus(api.OrderCompleted))
}

func TestAdvanceStatus_WalksTheLifecycle(t *testing.T) {
	f := newViewerFixture(t, admin)
	ctx := context.Background()
	id := f.backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderPending})
	require.NoError(t, f.viewer.Refresh(ctx))

	next, err := f.viewer.AdvanceStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.OrderConfirmed, next)

	next, err = f.viewer.AdvanceStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.OrderCompleted, next)

	stored, _ := f.backend.Order(id)
	assert.Equal(t, api.OrderCompleted, stored.Status)

	// COMPLETED is terminal.
	_, err = f.viewer.AdvanceStatus(ctx, id)
	assert.ErrorIs(t, err, ErrNoSuchTransition)
}

func TestAdvanceStatus_AdminOnly(t *testing.T) {
	f := newViewerFixture(t, customer)
	ctx := context.Background()
	id := f.backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderPending})
	require.NoError(t, f.viewer.Refresh(ctx))

	_, err := f.viewer.AdvanceStatus(ctx, id)
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestAdvanceStatus_RollsBackOnServerRefusal(t *testing.T) {
	f := newViewerFixture(t, admin)
	ctx := context.Background()
	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	id := f.backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderPending, UpdatedAt: stamp})
	require.NoError(t, f.viewer.Refresh(ctx))

	f.backend.SetFail(testutil.OpUpdateStatus, true)
	_, err := f.viewer.AdvanceStatus(ctx, id)
	require.Error(t, err)

	assert.Equal(t, api.OrderPending, f.viewer.Orders()[0].Status, "optimistic status must roll back")
	assert.True(t, f.viewer.Orders()[0].UpdatedAt.Equal(stamp), "timestamp rolls back with the status")
	stored, _ := f.backend.Order(id)
	assert.Equal(t, api.OrderPending, stored.Status)
}

func TestAdvanceStatus_TouchesTimestamp(t *testing.T) {
	f := newViewerFixture(t, admin)
	ctx := context.Background()
	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	id := f.backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderPending, UpdatedAt: stamp})
	require.NoError(t, f.viewer.Refresh(ctx))

	_, err := f.viewer.AdvanceStatus(ctx, id)
	require.NoError(t, err)
	assert.True(t, f.viewer.Orders()[0].UpdatedAt.After(stamp), "status change moves the local timestamp")
}

func TestCancel(t *testing.T) {
	f := newViewerFixture(t, customer)
	ctx := context.Background()
	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	id := f.backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderConfirmed, UpdatedAt: stamp})
	require.NoError(t, f.viewer.Refresh(ctx))

	require.NoError(t, f.viewer.Cancel(ctx, id))
	assert.Equal(t, api.OrderCancelled, f.viewer.Orders()[0].Status)
	assert.True(t, f.viewer.Orders()[0].UpdatedAt.After(stamp))

	stored, _ := f.backend.Order(id)
	assert.Equal(t, api.OrderCancelled, stored.Status)
}

func TestCancel_RefusedForTerminalStatus(t *testing.T) {
	f := newViewerFixture(t, customer)
	ctx := context.Background()
	id := f.backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderCompleted})
	require.NoError(t, f.viewer.Refresh(ctx))

	before := len(f.backend.Requests())
	err := f.viewer.Cancel(ctx, id)
	assert.ErrorIs(t, err, ErrNoSuchTransition)
	assert.Equal(t, before, len(f.backend.Requests()), "refused cancel must not reach the network")
}

func TestCancel_RollsBackOnServerRefusal(t *testing.T) {
	f := newViewerFixture(t, customer)
	ctx := context.Background()
	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	id := f.backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderPending, UpdatedAt: stamp})
	require.NoError(t, f.viewer.Refresh(ctx))

	f.backend.SetFail(testutil.OpCancelOrder, true)
	err := f.viewer.Cancel(ctx, id)
	require.Error(t, err)
	assert.Equal(t, api.OrderPending, f.viewer.Orders()[0].Status)
	assert.True(t, f.viewer.Orders()[0].UpdatedAt.Equal(stamp))
}

func TestUnknownOrder(t *testing.T) {
	f := newViewerFixture(t, admin)
	ctx := context.Background()
	require.NoError(t, f.viewer.Refresh(ctx))

	_, err := f.viewer.AdvanceStatus(ctx, 404)
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.ErrorIs(t, f.viewer.Cancel(ctx, 404), ErrUnknownOrder)
}
