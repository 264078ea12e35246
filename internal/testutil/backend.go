// Package testutil provides an in-memory Caffinity backend for tests.
//
// The fake implements the REST slice the client consumes, with
// switches for the payload-shape quirks the real backend exhibits
// (wrapper vs bare cart lists, string vs numeric prices) and
// per-operation failure and connection-drop injection for exercising
// rollback and offline paths.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/money"
)

// Operation names accepted by SetFail.
const (
	OpGetCart         = "get_cart"
	OpAddCartItem     = "add_cart_item"
	OpUpdateCartItem  = "update_cart_item"
	OpRemoveCartItem  = "remove_cart_item"
	OpClearCart       = "clear_cart"
	OpMigrateCart     = "migrate_cart"
	OpCreateOrder     = "create_order"
	OpUpdateStatus    = "update_order_status"
	OpCancelOrder     = "cancel_order"
	OpCreatePayment   = "create_payment"
	OpCompletePayment = "complete_payment"
	OpFailPayment     = "fail_payment"
)

type userRecord struct {
	user     api.User
	password string
}

// Backend is an in-memory stand-in for the storefront REST API.
// Carts are scoped the way the real backend scopes them: by user id
// when the user header is present, by session id otherwise.
type Backend struct {
	mu       sync.Mutex
	products map[int64]api.Product
	carts    map[string][]api.CartItem
	orders   map[int64]*api.Order
	payments map[int64]*api.Payment
	users    map[string]userRecord
	failures map[string]bool
	drops    map[string]bool

	nextCartItemID int64
	nextOrderID    int64
	nextPaymentID  int64

	// WrapCartPayload serves {"cartItems": [...]} instead of a bare
	// list; StringPrices serves "₱1,234.50"-style price strings.
	WrapCartPayload bool
	StringPrices    bool

	requests []string
}

// NewBackend returns a fake seeded with the demo catalog and one
// customer and one admin account (password "secret" for both).
func NewBackend() *Backend {
	b := &Backend{
		products: map[int64]api.Product{},
		carts:    map[string][]api.CartItem{},
		orders:   map[int64]*api.Order{},
		payments: map[int64]*api.Payment{},
		users:    map[string]userRecord{},
		failures: map[string]bool{},
		drops:    map[string]bool{},
	}

	for _, p := range []api.Product{
		{ID: 1, Name: "Cappuccino", Price: decimal.RequireFromString("125.00"), Category: "Hot Coffee"},
		{ID: 2, Name: "Espresso", Price: decimal.RequireFromString("90.00"), Category: "Hot Coffee"},
		{ID: 3, Name: "Iced Caramel Macchiato", Price: decimal.RequireFromString("170.00"), Category: "Iced Coffee"},
		{ID: 4, Name: "Latte", Price: decimal.RequireFromString("130.00"), Category: "Hot Coffee"},
		{ID: 5, Name: "Tiramisu", Price: decimal.RequireFromString("180.00"), Category: "Dessert"},
	} {
		b.products[p.ID] = p
	}

	b.users["ana@example.com"] = userRecord{
		user:     api.User{ID: 2, Username: "ana@example.com", FirstName: "Ana", Role: "CUSTOMER"},
		password: "secret",
	}
	b.users["admin@example.com"] = userRecord{
		user:     api.User{ID: 1, Username: "admin@example.com", FirstName: "Io", Role: "ADMIN"},
		password: "secret",
	}
	return b
}

// Server starts an httptest server around the fake and registers its
// shutdown with the test.
func (b *Backend) Server(t interface{ Cleanup(func()) }) *httptest.Server {
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	return srv
}

// SetFail toggles failure injection for one operation. Failing
// operations respond 500 with a structured error body.
func (b *Backend) SetFail(op string, fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = fail
}

// SetDrop toggles connection-drop injection for one operation. A
// dropped operation aborts the connection without writing a response,
// so the client sees a transport error rather than a status code.
func (b *Backend) SetDrop(op string, drop bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drops[op] = drop
}

// Cart returns a copy of the cart stored under the given scope key
// ("user:<id>" or "session:<sid>").
func (b *Backend) Cart(scope string) []api.CartItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.CartItem(nil), b.carts[scope]...)
}

// SeedCart installs a cart under a scope key directly.
func (b *Backend) SeedCart(scope string, items []api.CartItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range items {
		if items[i].ID == 0 {
			b.nextCartItemID++
			items[i].ID = b.nextCartItemID
		}
	}
	b.carts[scope] = append([]api.CartItem(nil), items...)
}

// SeedOrder installs an order directly and returns its id.
func (b *Backend) SeedOrder(o api.Order) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o.ID == 0 {
		b.nextOrderID++
		o.ID = b.nextOrderID
	}
	b.orders[o.ID] = &o
	return o.ID
}

// Order returns a copy of a stored order.
func (b *Backend) Order(id int64) (api.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return api.Order{}, false
	}
	return *o, true
}

// PaymentByOrder returns a copy of the payment attached to an order.
func (b *Backend) PaymentByOrder(orderID int64) (api.Payment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.payments {
		if p.OrderID == orderID {
			return *p, true
		}
	}
	return api.Payment{}, false
}

// Requests returns the method+path log of every request served.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func scopeKey(r *http.Request) string {
	if uid := r.Header.Get(api.HeaderUserID); uid != "" {
		return "user:" + uid
	}
	return "session:" + r.Header.Get(api.HeaderSessionID)
}

func (b *Backend) failing(op string) bool {
	return b.failures[op]
}

// dropped aborts the handler mid-flight when drop injection is on for
// the operation. Callers hold b.mu; the deferred unlock still runs.
func (b *Backend) dropped(op string) {
	if b.drops[op] {
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (b *Backend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/cart", b.handleGetCart)
	mux.HandleFunc("POST /api/cart/add", b.handleAddCartItem)
	mux.HandleFunc("PUT /api/cart/update", b.handleUpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/remove/{productId}", b.handleRemoveCartItem)
	mux.HandleFunc("DELETE /api/cart/clear", b.handleClearCart)
	mux.HandleFunc("POST /api/cart/migrate", b.handleMigrateCart)

	mux.HandleFunc("POST /api/orders/create", b.handleCreateOrder)
	mux.HandleFunc("GET /api/orders", b.handleListOrders)
	mux.HandleFunc("GET /api/orders/user/{userId}", b.handleListUserOrders)
	mux.HandleFunc("PUT /api/orders/{orderId}/status", b.handleUpdateOrderStatus)
	mux.HandleFunc("PUT /api/orders/{orderId}/cancel", b.handleCancelOrder)

	mux.HandleFunc("POST /api/payments/create", b.handleCreatePayment)
	mux.HandleFunc("PUT /api/payments/{paymentId}/complete", b.handleCompletePayment)
	mux.HandleFunc("PUT /api/payments/order/{orderId}/fail", b.handleFailPayment)

	mux.HandleFunc("GET /api/products", b.handleListProducts)
	mux.HandleFunc("POST /api/users/login", b.handleLogin)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func (b *Backend) handleGetCart(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpGetCart) {
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}

	items := b.carts[scopeKey(r)]
	payload := b.encodeCart(items)
	if b.WrapCartPayload {
		writeJSON(w, http.StatusOK, map[string]any{"cartItems": payload})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// encodeCart renders items the way the configured backend variant
// would: flat items with numeric prices, or nested product objects
// with display-string prices.
func (b *Backend) encodeCart(items []api.CartItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		entry := map[string]any{
			"id":       it.ID,
			"quantity": it.Quantity,
		}
		var price any = it.UnitPrice
		if b.StringPrices {
			price = money.Format(it.UnitPrice)
		}
		if b.WrapCartPayload {
			entry["price"] = price
			entry["product"] = map[string]any{
				"id":       it.ProductID,
				"name":     it.Name,
				"category": it.Category,
				"imageUrl": it.ImageURL,
				"price":    price,
			}
		} else {
			entry["productId"] = it.ProductID
			entry["name"] = it.Name
			entry["category"] = it.Category
			entry["imageUrl"] = it.ImageURL
			entry["price"] = price
		}
		out = append(out, entry)
	}
	return out
}

func (b *Backend) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpAddCartItem) {
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	var in struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	product, ok := b.products[in.ProductID]
	if !ok {
		writeError(w, http.StatusBadRequest, "product does not exist")
		return
	}
	if in.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	scope := scopeKey(r)
	cart := b.carts[scope]
	for i := range cart {
		if cart[i].ProductID == in.ProductID {
			cart[i].Quantity += in.Quantity
			b.carts[scope] = cart
			writeJSON(w, http.StatusOK, b.encodeCart(cart))
			return
		}
	}

	b.nextCartItemID++
	cart = append(cart, api.CartItem{
		ID:        b.nextCartItemID,
		ProductID: product.ID,
		Name:      product.Name,
		Category:  product.Category,
		ImageURL:  product.ImageURL,
		UnitPrice: product.Price,
		Quantity:  in.Quantity,
	})
	b.carts[scope] = cart
	writeJSON(w, http.StatusCreated, b.encodeCart(cart))
}

func (b *Backend) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpUpdateCartItem) {
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	var in struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if in.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	scope := scopeKey(r)
	cart := b.carts[scope]
	for i := range cart {
		if cart[i].ProductID == in.ProductID {
			cart[i].Quantity = in.Quantity
			b.carts[scope] = cart
			writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "cart item not found")
}

func (b *Backend) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpRemoveCartItem) {
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	productID, err := strconv.ParseInt(r.PathValue("productId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	scope := scopeKey(r)
	cart := b.carts[scope]
	for i := range cart {
		if cart[i].ProductID == productID {
			b.carts[scope] = append(cart[:i], cart[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "cart item not found")
}

func (b *Backend) handleClearCart(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropped(OpClearCart)
	if b.failing(OpClearCart) {
		writeError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}
	delete(b.carts, scopeKey(r))
	writeJSON(w, http.StatusOK, map[string]string{"message": "cleared"})
}

func (b *Backend) handleMigrateCart(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpMigrateCart) {
		writeError(w, http.StatusInternalServerError, "migration failed")
		return
	}

	sid := r.Header.Get(api.HeaderSessionID)
	uid := r.Header.Get(api.HeaderUserID)
	if sid == "" || uid == "" {
		writeError(w, http.StatusBadRequest, "both session and user headers required")
		return
	}

	from := "session:" + sid
	to := "user:" + uid
	for _, item := range b.carts[from] {
		merged := false
		for i := range b.carts[to] {
			if b.carts[to][i].ProductID == item.ProductID {
				b.carts[to][i].Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			b.carts[to] = append(b.carts[to], item)
		}
	}
	delete(b.carts, from)
	writeJSON(w, http.StatusOK, map[string]string{"message": "migrated"})
}

func (b *Backend) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpCreateOrder) {
		writeError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId")
		return
	}
	address := q.Get("shippingAddress")
	if address == "" {
		writeError(w, http.StatusBadRequest, "shipping address required")
		return
	}

	// Snapshot whatever cart is visible for the user scope; the live
	// cart stays untouched until the explicit clear after payment.
	var items []api.OrderItem
	total := decimal.Zero
	for _, c := range b.carts["user:"+strconv.FormatInt(userID, 10)] {
		sub := c.LineTotal()
		items = append(items, api.OrderItem{
			ProductID: c.ProductID,
			Name:      c.Name,
			UnitPrice: c.UnitPrice,
			Quantity:  c.Quantity,
			Subtotal:  sub,
		})
		total = total.Add(sub)
	}

	b.nextOrderID++
	order := &api.Order{
		ID:              b.nextOrderID,
		UserID:          userID,
		Status:          api.OrderPending,
		TotalAmount:     total,
		ShippingAddress: address,
		CustomerNotes:   q.Get("customerNotes"),
		Items:           items,
		OrderDate:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	b.orders[order.ID] = order
	writeJSON(w, http.StatusCreated, order)
}

func (b *Backend) handleListOrders(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := make([]api.Order, 0, len(b.orders))
	for _, o := range b.orders {
		orders = append(orders, *o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	writeJSON(w, http.StatusOK, orders)
}

func (b *Backend) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	userID, err := strconv.ParseInt(r.PathValue("userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	orders := make([]api.Order, 0)
	for _, o := range b.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	writeJSON(w, http.StatusOK, orders)
}

func (b *Backend) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpUpdateStatus) {
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	orderID, _ := strconv.ParseInt(r.PathValue("orderId"), 10, 64)
	order, ok := b.orders[orderID]
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	order.Status = api.OrderStatus(r.URL.Query().Get("status"))
	order.UpdatedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, order)
}

func (b *Backend) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpCancelOrder) {
		writeError(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}

	orderID, _ := strconv.ParseInt(r.PathValue("orderId"), 10, 64)
	order, ok := b.orders[orderID]
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	order.Status = api.OrderCancelled
	order.UpdatedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, order)
}

func (b *Backend) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpCreatePayment) {
		writeError(w, http.StatusInternalServerError, "failed to create payment")
		return
	}

	q := r.URL.Query()
	orderID, err := strconv.ParseInt(q.Get("orderId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid orderId")
		return
	}
	if _, ok := b.orders[orderID]; !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	b.nextPaymentID++
	payment := &api.Payment{
		ID:      b.nextPaymentID,
		OrderID: orderID,
		Method:  api.PaymentMethod(q.Get("paymentMethod")),
		Status:  api.PaymentPending,
		Amount:  amount,
	}
	b.payments[payment.ID] = payment
	writeJSON(w, http.StatusCreated, payment)
}

func (b *Backend) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpCompletePayment) {
		writeError(w, http.StatusInternalServerError, "failed to complete payment")
		return
	}

	paymentID, _ := strconv.ParseInt(r.PathValue("paymentId"), 10, 64)
	payment, ok := b.payments[paymentID]
	if !ok {
		writeError(w, http.StatusNotFound, "payment not found")
		return
	}
	payment.Status = api.PaymentCompleted
	payment.TransactionID = r.URL.Query().Get("transactionId")

	// Payment received: the order moves to CONFIRMED.
	if order, ok := b.orders[payment.OrderID]; ok {
		order.Status = api.OrderConfirmed
		order.UpdatedAt = time.Now().UTC()
	}
	writeJSON(w, http.StatusOK, payment)
}

func (b *Backend) handleFailPayment(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing(OpFailPayment) {
		writeError(w, http.StatusInternalServerError, "failed to mark payment failed")
		return
	}

	orderID, _ := strconv.ParseInt(r.PathValue("orderId"), 10, 64)
	for _, p := range b.payments {
		if p.OrderID == orderID {
			p.Status = api.PaymentFailed
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("no payment for order %d", orderID))
}

func (b *Backend) handleListProducts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	products := make([]api.Product, 0, len(b.products))
	for _, p := range b.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	writeJSON(w, http.StatusOK, products)
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	rec, ok := b.users[in.Username]
	if !ok || rec.password != in.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": rec.user})
}
