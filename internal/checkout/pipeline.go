package checkout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/caffinity/internal/api"
)

// NewTransactionID mints a payment reference: TXN_<unix-ms>_<uuid8>.
func NewTransactionID() string {
	return "TXN_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + uuid.NewString()[:8]
}

// pipelineStep is one stage of the payment pipeline. Steps run in
// order; the first failure aborts the rest.
type pipelineStep struct {
	name string
	run  func(ctx context.Context) error
}

// Pay runs the payment pipeline for the placed order:
//
//	create payment → processing delay → complete → clear cart
//
// On success the flow reaches confirmation, which is terminal. On any
// step failure the order's payment is fail-marked best-effort, the
// flow stays in payment for a retry, and the cart is left untouched.
func (f *Flow) Pay(ctx context.Context, method api.PaymentMethod) (*api.Payment, error) {
	if f.step != StepPayment {
		return nil, fmt.Errorf("pay in %s: %w", f.step, ErrWrongStep)
	}
	if !api.ValidPaymentMethod(method) {
		return nil, fmt.Errorf("pay with %q: %w", method, ErrBadPaymentMethod)
	}

	order := f.order
	amount := f.Totals().Total

	var payment *api.Payment
	steps := []pipelineStep{
		{
			name: "create payment",
			run: func(ctx context.Context) error {
				p, err := f.client.CreatePayment(ctx, order.ID, method, amount)
				if err != nil {
					return err
				}
				payment = p
				return nil
			},
		},
		{
			name: "process",
			run: func(ctx context.Context) error {
				return f.wait(ctx, f.opts.PaymentDelay)
			},
		},
		{
			name: "complete payment",
			run: func(ctx context.Context) error {
				txn := f.newTransactionID()
				if err := f.client.CompletePayment(ctx, payment.ID, txn); err != nil {
					return err
				}
				payment.Status = api.PaymentCompleted
				payment.TransactionID = txn
				return nil
			},
		},
		{
			// The clear must be server-acknowledged: a connectivity
			// failure here is a pipeline failure, not an offline
			// degrade, or the purchased items would resurface on the
			// next fetch.
			name: "clear cart",
			run: func(ctx context.Context) error {
				return f.cart.ClearConfirmed(ctx)
			},
		},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			f.logger.Warn("payment pipeline step failed",
				zap.String("step", step.name),
				zap.Int64("order_id", order.ID),
				zap.Error(err))
			f.markFailed(order.ID)
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	f.step = StepConfirmation
	f.logger.Info("payment completed",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.String("transaction_id", payment.TransactionID))
	return payment, nil
}

// wait blocks for the simulated processing window, honoring ctx.
func (f *Flow) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// markFailed fail-marks the order's payment so the backend record
// matches reality. Best effort: a failure here is logged and dropped,
// never retried, because the user-facing outcome is already decided.
func (f *Flow) markFailed(orderID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.client.FailPaymentByOrder(ctx, orderID); err != nil {
		f.logger.Warn("mark payment failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
}
