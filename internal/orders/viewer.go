// Package orders renders and mutates order status for customers and
// admins.
//
// Status mutations are optimistic: the local list updates first, the
// server call follows, and a snapshot rollback undoes the change when
// the server refuses. Customers see their own orders and may cancel;
// admins see everything and may advance along the one-way lifecycle.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/identity"
)

var (
	// ErrNoSuchTransition is returned when an order has no next status
	// or the requested action is not allowed from its current status.
	ErrNoSuchTransition = errors.New("no transition from this status")

	// ErrNotAdmin guards the admin-only mutations.
	ErrNotAdmin = errors.New("requires admin role")

	// ErrNotLoggedIn is returned when no user record is present.
	ErrNotLoggedIn = errors.New("requires login")

	// ErrUnknownOrder is returned when the order id is not in the
	// viewer's current list.
	ErrUnknownOrder = errors.New("order not in view")
)

// NextStatus returns the unique successor along the order lifecycle,
// or ok=false for terminal statuses.
func NextStatus(s api.OrderStatus) (api.OrderStatus, bool) {
	switch s {
	case api.OrderPending:
		return api.OrderConfirmed, true
	case api.OrderConfirmed:
		return api.OrderCompleted, true
	default:
		return "", false
	}
}

// CanCancel reports whether an order in this status may still be
// cancelled. Fulfilled and already-cancelled orders may not.
func CanCancel(s api.OrderStatus) bool {
	return s == api.OrderPending || s == api.OrderConfirmed
}

// Viewer holds a point-in-time order list and applies status changes
// against it. Refresh replaces the list wholesale.
type Viewer struct {
	client *api.Client
	ids    *identity.Resolver
	logger *zap.Logger

	orders []api.Order
}

// NewViewer creates a Viewer with an empty list.
func NewViewer(client *api.Client, ids *identity.Resolver, logger *zap.Logger) *Viewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Viewer{client: client, ids: ids, logger: logger}
}

// Orders returns a copy of the current list.
func (v *Viewer) Orders() []api.Order {
	return append([]api.Order(nil), v.orders...)
}

// FilterByStatus returns the subset of the current list in the given
// status.
func (v *Viewer) FilterByStatus(status api.OrderStatus) []api.Order {
	var out []api.Order
	for _, o := range v.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// Refresh reloads the list: the caller's own orders for customers,
// every order for admins.
func (v *Viewer) Refresh(ctx context.Context) error {
	acct, err := v.ids.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrNotLoggedIn
	}

	var orders []api.Order
	if acct.Role == "ADMIN" {
		orders, err = v.client.ListOrders(ctx)
	} else {
		orders, err = v.client.ListUserOrders(ctx, acct.UserID)
	}
	if err != nil {
		return fmt.Errorf("refresh orders: %w", err)
	}

	v.orders = orders
	return nil
}

// AdvanceStatus moves an order to its unique next status. Admin only.
// The local list updates before the call and rolls back to the prior
// snapshot when the server refuses.
func (v *Viewer) AdvanceStatus(ctx context.Context, orderID int64) (api.OrderStatus, error) {
	acct, err := v.ids.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrNotLoggedIn
	}
	if acct.Role != "ADMIN" {
		return "", ErrNotAdmin
	}

	idx := v.index(orderID)
	if idx < 0 {
		return "", fmt.Errorf("advance order %d: %w", orderID, ErrUnknownOrder)
	}

	current := v.orders[idx].Status
	next, ok := NextStatus(current)
	if !ok {
		return "", fmt.Errorf("advance order %d from %s: %w", orderID, current, ErrNoSuchTransition)
	}

	prev := v.orders[idx]
	v.orders[idx].Status = next
	v.orders[idx].UpdatedAt = time.Now().UTC()
	if err := v.client.UpdateOrderStatus(ctx, orderID, next); err != nil {
		v.orders[idx] = prev
		return "", fmt.Errorf("advance order %d: %w", orderID, err)
	}

	v.logger.Info("order status advanced",
		zap.Int64("order_id", orderID),
		zap.String("from", string(current)),
		zap.String("to", string(next)))
	return next, nil
}

// Cancel cancels an order still in a cancellable status, with the
// same optimistic-update-and-rollback shape as AdvanceStatus.
func (v *Viewer) Cancel(ctx context.Context, orderID int64) error {
	acct, err := v.ids.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrNotLoggedIn
	}

	idx := v.index(orderID)
	if idx < 0 {
		return fmt.Errorf("cancel order %d: %w", orderID, ErrUnknownOrder)
	}

	current := v.orders[idx].Status
	if !CanCancel(current) {
		return fmt.Errorf("cancel order %d from %s: %w", orderID, current, ErrNoSuchTransition)
	}

	prev := v.orders[idx]
	v.orders[idx].Status = api.OrderCancelled
	v.orders[idx].UpdatedAt = time.Now().UTC()
	if err := v.client.CancelOrder(ctx, orderID); err != nil {
		v.orders[idx] = prev
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}

	v.logger.Info("order cancelled", zap.Int64("order_id", orderID))
	return nil
}

func (v *Viewer) index(orderID int64) int {
	for i, o := range v.orders {
		if o.ID == orderID {
			return i
		}
	}
	return -1
}
