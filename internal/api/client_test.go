package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/testutil"
)

func newClient(t *testing.T) (*api.Client, *testutil.Backend) {
	t.Helper()
	backend := testutil.NewBackend()
	srv := backend.Server(t)
	return api.New(srv.URL, 2*time.Second, nil), backend
}

func sessionHeaders(sid string) map[string]string {
	return map[string]string{api.HeaderSessionID: sid}
}

func TestClient_ScopesCartBySessionHeader(t *testing.T) {
	client, backend := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.AddCartItem(ctx, sessionHeaders("s1"), 2, 1))
	require.NoError(t, client.AddCartItem(ctx, sessionHeaders("s2"), 5, 3))

	s1, err := client.GetCart(ctx, sessionHeaders("s1"))
	require.NoError(t, err)
	require.Len(t, s1, 1)
	assert.Equal(t, int64(2), s1[0].ProductID)

	assert.Len(t, backend.Cart("session:s2"), 1)
}

func TestClient_UserHeaderWinsOverSession(t *testing.T) {
	client, backend := newClient(t)
	ctx := context.Background()

	headers := map[string]string{
		api.HeaderSessionID: "s1",
		api.HeaderUserID:    "2",
	}
	require.NoError(t, client.AddCartItem(ctx, headers, 1, 1))

	assert.Len(t, backend.Cart("user:2"), 1)
	assert.Empty(t, backend.Cart("session:s1"))
}

func TestClient_StatusErrorCarriesServerMessage(t *testing.T) {
	client, _ := newClient(t)

	err := client.UpdateCartItem(context.Background(), sessionHeaders("s1"), 999, 2)
	require.Error(t, err)

	var se *api.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.StatusCode)
	assert.Equal(t, "cart item not found", se.Message)
	assert.True(t, api.IsNotFound(err))
	assert.False(t, api.IsNetworkError(err))
}

func TestClient_NetworkErrorWhenServerGone(t *testing.T) {
	backend := testutil.NewBackend()
	srv := backend.Server(t)
	url := srv.URL
	srv.Close()

	client := api.New(url, 500*time.Millisecond, nil)
	_, err := client.GetCart(context.Background(), sessionHeaders("s1"))
	require.Error(t, err)
	assert.True(t, api.IsNetworkError(err))
	assert.False(t, api.IsNotFound(err))
}

func TestClient_GetCartNormalizesVariantPayloads(t *testing.T) {
	client, backend := newClient(t)
	backend.WrapCartPayload = true
	backend.StringPrices = true
	ctx := context.Background()

	require.NoError(t, client.AddCartItem(ctx, sessionHeaders("s1"), 3, 1))

	items, err := client.GetCart(ctx, sessionHeaders("s1"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].ProductID)
	assert.True(t, items[0].UnitPrice.Equal(decimal.RequireFromString("170.00")), "got %s", items[0].UnitPrice)
}

func TestClient_CreateOrder(t *testing.T) {
	client, backend := newClient(t)
	ctx := context.Background()

	backend.SeedCart("user:2", []api.CartItem{
		{ProductID: 2, Name: "Espresso", UnitPrice: decimal.RequireFromString("90.00"), Quantity: 2},
	})

	order, err := client.CreateOrder(ctx, 2, "12 Katipunan Ave, QC", "ring twice")
	require.NoError(t, err)
	assert.Equal(t, api.OrderPending, order.Status)
	assert.Equal(t, "ring twice", order.CustomerNotes)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("180.00")))

	_, err = client.CreateOrder(ctx, 2, "", "")
	require.Error(t, err)
	var se *api.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 400, se.StatusCode)
}

func TestClient_PaymentLifecycle(t *testing.T) {
	client, backend := newClient(t)
	ctx := context.Background()

	orderID := backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderPending})

	payment, err := client.CreatePayment(ctx, orderID, api.MethodGCash, decimal.RequireFromString("251.60"))
	require.NoError(t, err)
	assert.Equal(t, api.PaymentPending, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("251.60")))

	require.NoError(t, client.CompletePayment(ctx, payment.ID, "TXN_1_abc"))
	stored, ok := backend.PaymentByOrder(orderID)
	require.True(t, ok)
	assert.Equal(t, api.PaymentCompleted, stored.Status)
	assert.Equal(t, "TXN_1_abc", stored.TransactionID)

	order, _ := backend.Order(orderID)
	assert.Equal(t, api.OrderConfirmed, order.Status)
}

func TestClient_Login(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	user, err := client.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.ID)
	assert.False(t, user.IsAdmin())

	_, err = client.Login(ctx, "ana@example.com", "wrong")
	require.Error(t, err)
	var se *api.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 401, se.StatusCode)
	assert.Equal(t, "Invalid email or password", se.Message)
}

func TestClient_ListProducts(t *testing.T) {
	client, _ := newClient(t)

	products, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 5)
	assert.Equal(t, "Cappuccino", products[0].Name)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("125.00")))
}
