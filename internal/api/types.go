package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
//
// Transitions are monotonic along PENDING → CONFIRMED → COMPLETED;
// CANCELLED is reachable from PENDING or CONFIRMED only. COMPLETED
// and CANCELLED are terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// PaymentStatus is the lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodDebitCard    PaymentMethod = "DEBIT_CARD"
	MethodGCash        PaymentMethod = "GCASH"
	MethodPayMaya      PaymentMethod = "PAYMAYA"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCash         PaymentMethod = "CASH"
)

// PaymentMethods lists every method the backend accepts.
var PaymentMethods = []PaymentMethod{
	MethodCreditCard,
	MethodDebitCard,
	MethodGCash,
	MethodPayMaya,
	MethodBankTransfer,
	MethodCash,
}

// ValidPaymentMethod reports whether m is one of PaymentMethods.
func ValidPaymentMethod(m PaymentMethod) bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Product is a catalog entry, owned by the external catalog service.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
}

// CartItem is the canonical client-side shape of one cart line.
//
// Name, Category, ImageURL and UnitPrice are a denormalized snapshot
// of the product at add-time, used for display without a join.
// ID is the server-assigned cart item id; it is zero for local-only
// items written to the mirror while the server was unreachable.
type CartItem struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns UnitPrice × Quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// OrderItem is a snapshot copy of a cart line at order-creation time,
// decoupled from the live cart.
type OrderItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is a server-owned order record. The client holds a transient,
// possibly-stale mirror used for rendering and optimistic interaction.
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"userId,omitempty"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
	CustomerNotes   string          `json:"customerNotes,omitempty"`
	Items           []OrderItem     `json:"orderItems,omitempty"`
	OrderDate       time.Time       `json:"orderDate,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt,omitempty"`
}

// Payment is a server-owned payment record, one-to-one with the order
// being paid. TransactionID is assigned on completion.
type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"orderId"`
	Method        PaymentMethod   `json:"paymentMethod"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transactionId,omitempty"`
}

// User is the authenticated user record returned by the login
// endpoint and persisted client-side for the identity resolver.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      string `json:"role"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == "ADMIN"
}
