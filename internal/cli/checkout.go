package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/checkout"
	"github.com/roach88/caffinity/internal/money"
)

// checkoutResult is the JSON payload for a completed checkout.
type checkoutResult struct {
	Order   *api.Order     `json:"order"`
	Payment *api.Payment   `json:"payment"`
	Totals  checkoutTotals `json:"totals"`
}

type checkoutTotals struct {
	Subtotal    string `json:"subtotal"`
	ShippingFee string `json:"shippingFee"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		address string
		notes   string
		method  string
	)

	cmd := &cobra.Command{
		Use:           "checkout",
		Short:         "Place and pay for an order from the current cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckout(rootOpts, cmd, address, notes, method)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "shipping address")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the order")
	cmd.Flags().StringVar(&method, "method", string(api.MethodCash), "payment method")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func runCheckout(opts *RootOptions, cmd *cobra.Command, address, notes, method string) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()

	flow := checkout.NewFlow(app.Client, app.Cart, app.IDs, app.CheckoutOptions(), app.Logger)

	if err := flow.Begin(ctx); err != nil {
		_ = formatter.Error("checkout", err.Error())
		switch {
		case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrNotLoggedIn):
			return WrapExitError(ExitCommandError, "checkout", err)
		default:
			return WrapExitError(ExitFailure, "checkout", err)
		}
	}

	totals := flow.Totals()
	if opts.Format == "text" {
		renderTotals(formatter, totals, app.Config.TaxRateValue())
	}

	order, err := flow.PlaceOrder(ctx, address, notes)
	if err != nil {
		_ = formatter.Error("checkout", err.Error())
		if errors.Is(err, checkout.ErrBlankAddress) {
			return WrapExitError(ExitCommandError, "checkout", err)
		}
		return WrapExitError(ExitFailure, "place order", err)
	}

	payment, err := flow.Pay(ctx, api.PaymentMethod(method))
	if err != nil {
		_ = formatter.Error("checkout", err.Error())
		if errors.Is(err, checkout.ErrBadPaymentMethod) {
			return WrapExitError(ExitCommandError, "checkout", err)
		}
		return WrapExitError(ExitFailure, "payment", err)
	}

	if opts.Format == "json" {
		return formatter.Success(checkoutResult{
			Order:   order,
			Payment: payment,
			Totals: checkoutTotals{
				Subtotal:    totals.Subtotal.StringFixed(2),
				ShippingFee: totals.ShippingFee.StringFixed(2),
				Tax:         totals.Tax.StringFixed(2),
				Total:       totals.Total.StringFixed(2),
			},
		})
	}

	fmt.Fprintf(formatter.Writer, "Order #%d confirmed.\n", order.ID)
	fmt.Fprintf(formatter.Writer, "Transaction: %s\n", payment.TransactionID)
	return nil
}

func renderTotals(f *OutputFormatter, t checkout.Totals, taxRate decimal.Decimal) {
	ratePct := taxRate.Mul(decimal.NewFromInt(100))
	fmt.Fprintf(f.Writer, "Subtotal:   %s\n", money.Format(t.Subtotal))
	fmt.Fprintf(f.Writer, "Shipping:   %s\n", money.Format(t.ShippingFee))
	fmt.Fprintf(f.Writer, "Tax (%s%%):  %s\n", ratePct.String(), money.Format(t.Tax))
	fmt.Fprintf(f.Writer, "Total:      %s\n", money.Format(t.Total))
}
