// Package checkout drives the shipping → payment → confirmation flow.
//
// The flow holds the order being placed and enforces step order:
// totals and address collection in shipping, the payment pipeline in
// payment, and a terminal confirmation. Each completed checkout is one
// order; starting over means a new Flow.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/cart"
	"github.com/roach88/caffinity/internal/identity"
	"github.com/roach88/caffinity/internal/money"
)

// Step is a checkout stage.
type Step string

const (
	StepShipping     Step = "shipping"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
)

var (
	// ErrEmptyCart is returned by Begin when there is nothing to buy.
	// The caller sends the user back to browsing.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrNotLoggedIn is returned when checkout is attempted without an
	// authenticated user; orders belong to users, not sessions.
	ErrNotLoggedIn = errors.New("checkout requires login")

	// ErrBlankAddress rejects a whitespace-only shipping address
	// before anything reaches the network.
	ErrBlankAddress = errors.New("shipping address must not be blank")

	// ErrWrongStep is returned when an operation is called outside the
	// step it belongs to.
	ErrWrongStep = errors.New("operation not available in this step")

	// ErrBadPaymentMethod rejects a method the backend does not know.
	ErrBadPaymentMethod = errors.New("unknown payment method")
)

// Totals is the order cost breakdown shown in the shipping step and
// charged in the payment step.
type Totals struct {
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// Options carries the pricing and pacing knobs, typically sourced
// from config.
type Options struct {
	ShippingFee  decimal.Decimal
	TaxRate      decimal.Decimal
	PaymentDelay time.Duration
}

// Flow is one checkout attempt. Not safe for concurrent use; the
// caller drives it sequentially the way a checkout page would.
type Flow struct {
	client *api.Client
	cart   *cart.Synchronizer
	ids    *identity.Resolver
	logger *zap.Logger
	opts   Options

	step  Step
	order *api.Order

	// newTransactionID is swapped in tests for determinism.
	newTransactionID func() string
}

// NewFlow creates a Flow in the shipping step. Call Begin before
// anything else.
func NewFlow(client *api.Client, sync *cart.Synchronizer, ids *identity.Resolver, opts Options, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		client:           client,
		cart:             sync,
		ids:              ids,
		logger:           logger,
		opts:             opts,
		step:             StepShipping,
		newTransactionID: NewTransactionID,
	}
}

// Step returns the current stage.
func (f *Flow) Step() Step { return f.step }

// Order returns the order created by PlaceOrder, or nil before it.
func (f *Flow) Order() *api.Order { return f.order }

// Begin refreshes the cart and verifies there is something to check
// out. An empty cart aborts with ErrEmptyCart.
func (f *Flow) Begin(ctx context.Context) error {
	if _, ok, err := f.ids.UserID(ctx); err != nil {
		return err
	} else if !ok {
		return ErrNotLoggedIn
	}
	if items := f.cart.Fetch(ctx); len(items) == 0 {
		return ErrEmptyCart
	}
	return nil
}

// Totals computes the cost breakdown from the current cart. Tax is
// rounded half-up to centavos before it enters the total, so the
// total always equals the sum of its displayed parts.
func (f *Flow) Totals() Totals {
	subtotal := f.cart.Subtotal()
	tax := money.Round2(subtotal.Mul(f.opts.TaxRate))
	return Totals{
		Subtotal:    subtotal,
		ShippingFee: f.opts.ShippingFee,
		Tax:         tax,
		Total:       subtotal.Add(f.opts.ShippingFee).Add(tax),
	}
}

// PlaceOrder validates the address, creates a PENDING order and moves
// to the payment step. On failure the flow stays in shipping and no
// order exists.
func (f *Flow) PlaceOrder(ctx context.Context, shippingAddress, customerNotes string) (*api.Order, error) {
	if f.step != StepShipping {
		return nil, fmt.Errorf("place order in %s: %w", f.step, ErrWrongStep)
	}
	if strings.TrimSpace(shippingAddress) == "" {
		return nil, ErrBlankAddress
	}

	uid, ok, err := f.ids.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotLoggedIn
	}

	order, err := f.client.CreateOrder(ctx, uid, shippingAddress, customerNotes)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	f.order = order
	f.step = StepPayment
	f.logger.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)))
	return order, nil
}

// Back returns from payment to shipping. The placed order is
// abandoned; the next PlaceOrder creates a fresh one. Any other
// transition is refused.
func (f *Flow) Back() error {
	if f.step != StepPayment {
		return fmt.Errorf("back from %s: %w", f.step, ErrWrongStep)
	}
	f.step = StepShipping
	f.order = nil
	return nil
}
