package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/testutil"
)

func mustAmount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// setupEnv points the CLI at a fresh fake backend and an empty data
// directory through the environment, the same way a user would
// configure it.
func setupEnv(t *testing.T) *testutil.Backend {
	t.Helper()
	backend := testutil.NewBackend()
	srv := backend.Server(t)
	t.Setenv("CAFFINITY_BASE_URL", srv.URL)
	t.Setenv("CAFFINITY_DATA_DIR", t.TempDir())
	t.Setenv("CAFFINITY_PAYMENT_DELAY", "0s")
	return backend
}

// runCommand executes one CLI invocation and captures stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--quiet"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func login(t *testing.T, username string) {
	t.Helper()
	_, err := runCommand(t, "login", username, "--password", "secret")
	require.NoError(t, err)
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	_, err := runCommand(t, "--format", "xml", "products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestProducts_Text(t *testing.T) {
	setupEnv(t)

	out, err := runCommand(t, "products")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "products_list", []byte(out))
}

func TestProducts_JSON(t *testing.T) {
	setupEnv(t)

	out, err := runCommand(t, "--format", "json", "products")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var products []api.Product
	require.NoError(t, json.Unmarshal(data, &products))
	assert.Len(t, products, 5)
}

func TestCart_AddShowRemove(t *testing.T) {
	setupEnv(t)

	out, err := runCommand(t, "cart", "add", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Added Espresso")

	_, err = runCommand(t, "cart", "quantity", "2", "2")
	require.NoError(t, err)

	out, err = runCommand(t, "cart", "show")
	require.NoError(t, err)
	g := goldie.New(t)
	g.Assert(t, "cart_show", []byte(out))

	out, err = runCommand(t, "cart", "remove", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 item(s).")

	out, err = runCommand(t, "cart", "show")
	require.NoError(t, err)
	assert.Equal(t, "Cart is empty.\n", out)
}

func TestCart_AddUnknownProduct(t *testing.T) {
	setupEnv(t)

	_, err := runCommand(t, "cart", "add", "99")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCart_AddTwiceIsRefused(t *testing.T) {
	setupEnv(t)

	_, err := runCommand(t, "cart", "add", "1")
	require.NoError(t, err)

	_, err = runCommand(t, "cart", "add", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCart_QuantityZeroSuggestsRemove(t *testing.T) {
	setupEnv(t)

	_, err := runCommand(t, "cart", "add", "1")
	require.NoError(t, err)

	out, err := runCommand(t, "cart", "quantity", "1", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "cart remove 1")
}

func TestLogin_MigratesCart(t *testing.T) {
	backend := setupEnv(t)

	_, err := runCommand(t, "cart", "add", "2")
	require.NoError(t, err)

	out, err := runCommand(t, "login", "ana@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ana")

	// The anonymous cart followed the user in.
	require.Len(t, backend.Cart("user:2"), 1)

	out, err = runCommand(t, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Espresso")
}

func TestLogin_BadPassword(t *testing.T) {
	setupEnv(t)

	_, err := runCommand(t, "login", "ana@example.com", "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCheckout_EndToEnd(t *testing.T) {
	backend := setupEnv(t)
	login(t, "ana@example.com")

	_, err := runCommand(t, "cart", "add", "2")
	require.NoError(t, err)
	_, err = runCommand(t, "cart", "quantity", "2", "2")
	require.NoError(t, err)

	out, err := runCommand(t, "checkout", "--address", "12 Katipunan Ave, QC", "--method", "GCASH")
	require.NoError(t, err)
	assert.Contains(t, out, "Subtotal:   ₱180.00")
	assert.Contains(t, out, "Tax (12%):  ₱21.60")
	assert.Contains(t, out, "Total:      ₱251.60")
	assert.Contains(t, out, "Order #1 confirmed.")
	assert.Contains(t, out, "Transaction: TXN_")

	order, ok := backend.Order(1)
	require.True(t, ok)
	assert.Equal(t, api.OrderConfirmed, order.Status)
	assert.Empty(t, backend.Cart("user:2"))
}

func TestCheckout_EmptyCart(t *testing.T) {
	setupEnv(t)
	login(t, "ana@example.com")

	_, err := runCommand(t, "checkout", "--address", "12 Katipunan Ave, QC")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckout_RequiresLogin(t *testing.T) {
	setupEnv(t)

	_, err := runCommand(t, "cart", "add", "1")
	require.NoError(t, err)

	_, err = runCommand(t, "checkout", "--address", "12 Katipunan Ave, QC")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckout_PaymentFailureExitsNonZero(t *testing.T) {
	backend := setupEnv(t)
	login(t, "ana@example.com")

	_, err := runCommand(t, "cart", "add", "1")
	require.NoError(t, err)

	backend.SetFail(testutil.OpCompletePayment, true)
	_, err = runCommand(t, "checkout", "--address", "12 Katipunan Ave, QC")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// Cart survives the failed payment for a retry.
	assert.Len(t, backend.Cart("user:2"), 1)
}

func TestOrders_ListAndCancel(t *testing.T) {
	backend := setupEnv(t)
	login(t, "ana@example.com")

	backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderPending,
		TotalAmount: mustAmount("251.60"), ShippingAddress: "12 Katipunan Ave, QC"})
	backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderCompleted,
		TotalAmount: mustAmount("125.00"), ShippingAddress: "35 Maginhawa St, QC"})

	out, err := runCommand(t, "orders", "list")
	require.NoError(t, err)
	g := goldie.New(t)
	g.Assert(t, "orders_list", []byte(out))

	out, err = runCommand(t, "orders", "list", "--status", "PENDING")
	require.NoError(t, err)
	assert.Contains(t, out, "#1")
	assert.NotContains(t, out, "#2")

	out, err = runCommand(t, "orders", "cancel", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Order #1 cancelled.")

	// COMPLETED is terminal.
	_, err = runCommand(t, "orders", "cancel", "2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOrders_AdvanceIsAdminOnly(t *testing.T) {
	backend := setupEnv(t)
	id := backend.SeedOrder(api.Order{UserID: 2, Status: api.OrderPending, TotalAmount: mustAmount("90.00")})

	login(t, "ana@example.com")
	_, err := runCommand(t, "orders", "advance", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	login(t, "admin@example.com")
	out, err := runCommand(t, "orders", "advance", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Order #1 is now CONFIRMED.")

	order, _ := backend.Order(id)
	assert.Equal(t, api.OrderConfirmed, order.Status)
}

func TestOrders_RequiresLogin(t *testing.T) {
	setupEnv(t)

	_, err := runCommand(t, "orders", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLogout(t *testing.T) {
	setupEnv(t)
	login(t, "ana@example.com")

	out, err := runCommand(t, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out.\n", out)

	_, err = runCommand(t, "orders", "list")
	require.Error(t, err)
}
