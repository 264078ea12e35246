package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Identity headers attached to cart-affecting requests.
const (
	HeaderSessionID = "X-Session-Id"
	HeaderUserID    = "X-User-Id"
)

// Client talks to the Caffinity backend. All methods classify
// failures into NetworkError (no response) or StatusError (non-2xx);
// any other error is a local encode/decode problem.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// request is one backend call. Body (if any) is sent as JSON; out (if
// non-nil) receives the decoded response body. rawOut short-circuits
// decoding for callers that normalize the payload themselves.
type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	headers map[string]string
	body    any
	out     any
	rawOut  *[]byte
}

func (c *Client) do(ctx context.Context, req request) error {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", req.op, err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", req.op, err)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("backend request",
		zap.String("op", req.op),
		zap.String("method", req.method),
		zap.String("path", req.path))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &NetworkError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: req.op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Op:         req.op,
			StatusCode: resp.StatusCode,
			Message:    serverMessage(data),
		}
	}

	if req.rawOut != nil {
		*req.rawOut = data
		return nil
	}
	if req.out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, req.out); err != nil {
			return fmt.Errorf("%s: decode response: %w", req.op, err)
		}
	}
	return nil
}

// serverMessage extracts the error text from a structured error body.
// Falls back to the raw body for plain-text responses.
func serverMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var structured struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &structured); err == nil {
		if structured.Error != "" {
			return structured.Error
		}
		if structured.Message != "" {
			return structured.Message
		}
	}
	return truncate(data, 200)
}

// --- Cart ---

// GetCart fetches the cart scoped by the identity headers and runs it
// through the normalization boundary.
func (c *Client) GetCart(ctx context.Context, headers map[string]string) ([]CartItem, error) {
	var raw []byte
	err := c.do(ctx, request{
		op:      "get cart",
		method:  http.MethodGet,
		path:    "/api/cart",
		headers: headers,
		rawOut:  &raw,
	})
	if err != nil {
		return nil, err
	}
	return NormalizeCart(raw)
}

type cartMutation struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// AddCartItem adds quantity units of a product to the scoped cart.
func (c *Client) AddCartItem(ctx context.Context, headers map[string]string, productID int64, quantity int) error {
	return c.do(ctx, request{
		op:      "add cart item",
		method:  http.MethodPost,
		path:    "/api/cart/add",
		headers: headers,
		body:    cartMutation{ProductID: productID, Quantity: quantity},
	})
}

// UpdateCartItem sets the quantity for a product already in the cart.
func (c *Client) UpdateCartItem(ctx context.Context, headers map[string]string, productID int64, quantity int) error {
	return c.do(ctx, request{
		op:      "update cart item",
		method:  http.MethodPut,
		path:    "/api/cart/update",
		headers: headers,
		body:    cartMutation{ProductID: productID, Quantity: quantity},
	})
}

// RemoveCartItem deletes a product from the scoped cart.
func (c *Client) RemoveCartItem(ctx context.Context, headers map[string]string, productID int64) error {
	return c.do(ctx, request{
		op:      "remove cart item",
		method:  http.MethodDelete,
		path:    "/api/cart/remove/" + strconv.FormatInt(productID, 10),
		headers: headers,
	})
}

// ClearCart empties the scoped cart.
func (c *Client) ClearCart(ctx context.Context, headers map[string]string) error {
	return c.do(ctx, request{
		op:      "clear cart",
		method:  http.MethodDelete,
		path:    "/api/cart/clear",
		headers: headers,
	})
}

// MigrateCart asks the server to reassign the anonymous session's
// cart to the authenticated user. Both identity headers must be set.
func (c *Client) MigrateCart(ctx context.Context, headers map[string]string) error {
	return c.do(ctx, request{
		op:      "migrate cart",
		method:  http.MethodPost,
		path:    "/api/cart/migrate",
		headers: headers,
	})
}

// --- Orders ---

// CreateOrder creates a PENDING order for the user. The backend takes
// these as query parameters, not a JSON body.
func (c *Client) CreateOrder(ctx context.Context, userID int64, shippingAddress, customerNotes string) (*Order, error) {
	q := url.Values{}
	q.Set("userId", strconv.FormatInt(userID, 10))
	q.Set("shippingAddress", shippingAddress)
	if customerNotes != "" {
		q.Set("customerNotes", customerNotes)
	}

	var order Order
	err := c.do(ctx, request{
		op:     "create order",
		method: http.MethodPost,
		path:   "/api/orders/create",
		query:  q,
		out:    &order,
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListUserOrders fetches the orders belonging to one user.
func (c *Client) ListUserOrders(ctx context.Context, userID int64) ([]Order, error) {
	var orders []Order
	err := c.do(ctx, request{
		op:     "list user orders",
		method: http.MethodGet,
		path:   "/api/orders/user/" + strconv.FormatInt(userID, 10),
		out:    &orders,
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrders fetches every order. Admin use only.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	err := c.do(ctx, request{
		op:     "list orders",
		method: http.MethodGet,
		path:   "/api/orders",
		out:    &orders,
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus sets an order's status. Admin use only; the
// viewer enforces the transition table before calling this.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	q := url.Values{}
	q.Set("status", string(status))
	return c.do(ctx, request{
		op:     "update order status",
		method: http.MethodPut,
		path:   "/api/orders/" + strconv.FormatInt(orderID, 10) + "/status",
		query:  q,
	})
}

// CancelOrder cancels an order.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	return c.do(ctx, request{
		op:     "cancel order",
		method: http.MethodPut,
		path:   "/api/orders/" + strconv.FormatInt(orderID, 10) + "/cancel",
	})
}

// --- Payments ---

// CreatePayment creates a PENDING payment record for an order.
func (c *Client) CreatePayment(ctx context.Context, orderID int64, method PaymentMethod, amount decimal.Decimal) (*Payment, error) {
	q := url.Values{}
	q.Set("orderId", strconv.FormatInt(orderID, 10))
	q.Set("paymentMethod", string(method))
	q.Set("amount", amount.StringFixed(2))

	var payment Payment
	err := c.do(ctx, request{
		op:     "create payment",
		method: http.MethodPost,
		path:   "/api/payments/create",
		query:  q,
		out:    &payment,
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// CompletePayment marks a payment COMPLETED with its transaction id.
func (c *Client) CompletePayment(ctx context.Context, paymentID int64, transactionID string) error {
	q := url.Values{}
	q.Set("transactionId", transactionID)
	return c.do(ctx, request{
		op:     "complete payment",
		method: http.MethodPut,
		path:   "/api/payments/" + strconv.FormatInt(paymentID, 10) + "/complete",
		query:  q,
	})
}

// FailPaymentByOrder marks an order's current payment FAILED.
func (c *Client) FailPaymentByOrder(ctx context.Context, orderID int64) error {
	return c.do(ctx, request{
		op:     "fail payment",
		method: http.MethodPut,
		path:   "/api/payments/order/" + strconv.FormatInt(orderID, 10) + "/fail",
	})
}

// --- Catalog and users (external collaborators, interface slice only) ---

// ListProducts fetches the catalog for browsing and cart adds.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := c.do(ctx, request{
		op:     "list products",
		method: http.MethodGet,
		path:   "/api/products",
		out:    &products,
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User User `json:"user"`
}

// Login authenticates against the backend and returns the user
// record to persist client-side.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var resp loginResponse
	err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/api/users/login",
		body:   loginRequest{Username: username, Password: password},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}
