package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/money"
	"github.com/roach88/caffinity/internal/orders"
)

// NewOrdersCommand creates the orders command group.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "View and manage orders",
	}

	cmd.AddCommand(newOrdersListCommand(rootOpts))
	cmd.AddCommand(newOrdersCancelCommand(rootOpts))
	cmd.AddCommand(newOrdersAdvanceCommand(rootOpts))
	return cmd
}

func newOrdersListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List orders (your own, or all of them for admins)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersList(rootOpts, cmd, status)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show orders in this status")
	return cmd
}

func runOrdersList(opts *RootOptions, cmd *cobra.Command, status string) error {
	formatter := newFormatter(opts, cmd)

	app, viewer, err := openViewer(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := viewer.Refresh(cmd.Context()); err != nil {
		_ = formatter.Error("orders", err.Error())
		if errors.Is(err, orders.ErrNotLoggedIn) {
			return WrapExitError(ExitCommandError, "orders", err)
		}
		return WrapExitError(ExitFailure, "list orders", err)
	}

	list := viewer.Orders()
	if status != "" {
		list = viewer.FilterByStatus(api.OrderStatus(status))
	}

	if opts.Format == "json" {
		return formatter.Success(list)
	}
	renderOrders(formatter, list)
	return nil
}

func renderOrders(f *OutputFormatter, list []api.Order) {
	if len(list) == 0 {
		fmt.Fprintln(f.Writer, "No orders.")
		return
	}
	for _, o := range list {
		fmt.Fprintf(f.Writer, "#%-4d %-10s %10s  %s\n",
			o.ID, o.Status, money.Format(o.TotalAmount), o.ShippingAddress)
	}
}

func newOrdersCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cancel <order-id>",
		Short:         "Cancel a pending or confirmed order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersCancel(rootOpts, cmd, args[0])
		},
	}
}

func runOrdersCancel(opts *RootOptions, cmd *cobra.Command, rawID string) error {
	formatter := newFormatter(opts, cmd)

	orderID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid order id", err)
	}

	app, viewer, err := openViewer(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()

	if err := viewer.Refresh(ctx); err != nil {
		_ = formatter.Error("orders", err.Error())
		return WrapExitError(ExitFailure, "list orders", err)
	}

	if err := viewer.Cancel(ctx, orderID); err != nil {
		_ = formatter.Error("orders", err.Error())
		if errors.Is(err, orders.ErrNoSuchTransition) || errors.Is(err, orders.ErrUnknownOrder) {
			return WrapExitError(ExitCommandError, "cancel order", err)
		}
		return WrapExitError(ExitFailure, "cancel order", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{"orderId": orderID, "status": api.OrderCancelled})
	}
	fmt.Fprintf(formatter.Writer, "Order #%d cancelled.\n", orderID)
	return nil
}

func newOrdersAdvanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "advance <order-id>",
		Short:         "Advance an order to its next status (admin)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersAdvance(rootOpts, cmd, args[0])
		},
	}
}

func runOrdersAdvance(opts *RootOptions, cmd *cobra.Command, rawID string) error {
	formatter := newFormatter(opts, cmd)

	orderID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid order id", err)
	}

	app, viewer, err := openViewer(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()

	if err := viewer.Refresh(ctx); err != nil {
		_ = formatter.Error("orders", err.Error())
		return WrapExitError(ExitFailure, "list orders", err)
	}

	next, err := viewer.AdvanceStatus(ctx, orderID)
	if err != nil {
		_ = formatter.Error("orders", err.Error())
		switch {
		case errors.Is(err, orders.ErrNotAdmin),
			errors.Is(err, orders.ErrNoSuchTransition),
			errors.Is(err, orders.ErrUnknownOrder):
			return WrapExitError(ExitCommandError, "advance order", err)
		default:
			return WrapExitError(ExitFailure, "advance order", err)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{"orderId": orderID, "status": next})
	}
	fmt.Fprintf(formatter.Writer, "Order #%d is now %s.\n", orderID, next)
	return nil
}

// openViewer opens the app and builds an order viewer over it.
func openViewer(opts *RootOptions) (*App, *orders.Viewer, error) {
	app, err := openApp(opts)
	if err != nil {
		return nil, nil, err
	}
	return app, orders.NewViewer(app.Client, app.IDs, app.Logger), nil
}
