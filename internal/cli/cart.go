package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/cart"
	"github.com/roach88/caffinity/internal/money"
)

// NewCartCommand creates the cart command group.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the shopping cart",
	}

	cmd.AddCommand(newCartShowCommand(rootOpts))
	cmd.AddCommand(newCartAddCommand(rootOpts))
	cmd.AddCommand(newCartRemoveCommand(rootOpts))
	cmd.AddCommand(newCartQuantityCommand(rootOpts))
	cmd.AddCommand(newCartClearCommand(rootOpts))
	return cmd
}

func newCartShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the cart contents",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartShow(rootOpts, cmd)
		},
	}
}

func runCartShow(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	items := app.Cart.Fetch(cmd.Context())
	if opts.Format == "json" {
		return formatter.Success(items)
	}
	renderCart(formatter, items, app.Cart.Subtotal())
	return nil
}

func renderCart(f *OutputFormatter, items []api.CartItem, subtotal decimal.Decimal) {
	if len(items) == 0 {
		fmt.Fprintln(f.Writer, "Cart is empty.")
		return
	}
	for _, it := range items {
		fmt.Fprintf(f.Writer, "%3d x %-26s @ %10s = %s\n",
			it.Quantity, it.Name, money.Format(it.UnitPrice), money.Format(it.LineTotal()))
	}
	fmt.Fprintf(f.Writer, "Subtotal: %s\n", money.Format(subtotal))
}

func newCartAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "add <product-id>",
		Short:         "Add a product to the cart",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartAdd(rootOpts, cmd, args[0])
		},
	}
}

func runCartAdd(opts *RootOptions, cmd *cobra.Command, rawID string) error {
	formatter := newFormatter(opts, cmd)

	productID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid product id", err)
	}

	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()

	products, err := app.Client.ListProducts(ctx)
	if err != nil {
		_ = formatter.Error("cart", err.Error())
		return WrapExitError(ExitFailure, "load catalog", err)
	}
	var product *api.Product
	for i := range products {
		if products[i].ID == productID {
			product = &products[i]
			break
		}
	}
	if product == nil {
		msg := fmt.Sprintf("no product with id %d", productID)
		_ = formatter.Error("cart", msg)
		return NewExitError(ExitCommandError, msg)
	}

	app.Cart.Fetch(ctx)
	if app.Cart.Contains(productID) {
		msg := fmt.Sprintf("%s is already in the cart; use 'cart quantity' to change the amount", product.Name)
		_ = formatter.Error("cart", msg)
		return NewExitError(ExitCommandError, msg)
	}

	if _, err := app.Cart.AddOrRemove(ctx, *product); err != nil {
		_ = formatter.Error("cart", err.Error())
		return WrapExitError(ExitFailure, "add to cart", err)
	}

	if opts.Format == "json" {
		return formatter.Success(app.Cart.Items())
	}
	fmt.Fprintf(formatter.Writer, "Added %s (%s).\n", product.Name, money.Format(product.Price))
	return nil
}

func newCartRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <product-id>...",
		Short:         "Remove products from the cart",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartRemove(rootOpts, cmd, args)
		},
	}
}

func runCartRemove(opts *RootOptions, cmd *cobra.Command, rawIDs []string) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()

	items := app.Cart.Fetch(ctx)
	var itemIDs []int64
	for _, raw := range rawIDs {
		productID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid product id", err)
		}
		found := false
		for _, it := range items {
			if it.ProductID == productID {
				itemIDs = append(itemIDs, it.ID)
				found = true
				break
			}
		}
		if !found {
			msg := fmt.Sprintf("product %d is not in the cart", productID)
			_ = formatter.Error("cart", msg)
			return NewExitError(ExitCommandError, msg)
		}
	}

	if err := app.Cart.RemoveMany(ctx, itemIDs); err != nil {
		_ = formatter.Error("cart", err.Error())
		return WrapExitError(ExitFailure, "remove from cart", err)
	}

	if opts.Format == "json" {
		return formatter.Success(app.Cart.Items())
	}
	fmt.Fprintf(formatter.Writer, "Removed %d item(s).\n", len(itemIDs))
	return nil
}

func newCartQuantityCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "quantity <product-id> <quantity>",
		Short:         "Set the quantity for a cart item",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartQuantity(rootOpts, cmd, args[0], args[1])
		},
	}
}

func runCartQuantity(opts *RootOptions, cmd *cobra.Command, rawID, rawQty string) error {
	formatter := newFormatter(opts, cmd)

	productID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid product id", err)
	}
	qty, err := strconv.Atoi(rawQty)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid quantity", err)
	}

	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()

	items := app.Cart.Fetch(ctx)
	var itemID int64
	for _, it := range items {
		if it.ProductID == productID {
			itemID = it.ID
			break
		}
	}
	if itemID == 0 {
		msg := fmt.Sprintf("product %d is not in the cart", productID)
		_ = formatter.Error("cart", msg)
		return NewExitError(ExitCommandError, msg)
	}

	err = app.Cart.UpdateQuantity(ctx, itemID, qty)
	if errors.Is(err, cart.ErrConfirmRemoval) {
		msg := fmt.Sprintf("quantity below 1 removes the item; run 'caffinity cart remove %d' instead", productID)
		_ = formatter.Error("cart", msg)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		_ = formatter.Error("cart", err.Error())
		return WrapExitError(ExitFailure, "update quantity", err)
	}

	if opts.Format == "json" {
		return formatter.Success(app.Cart.Items())
	}
	fmt.Fprintf(formatter.Writer, "Quantity set to %d.\n", qty)
	return nil
}

func newCartClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Empty the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartClear(rootOpts, cmd)
		},
	}
}

func runCartClear(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Cart.Clear(cmd.Context()); err != nil {
		_ = formatter.Error("cart", err.Error())
		return WrapExitError(ExitFailure, "clear cart", err)
	}

	if opts.Format == "json" {
		return formatter.Success([]api.CartItem{})
	}
	fmt.Fprintln(formatter.Writer, "Cart cleared.")
	return nil
}
