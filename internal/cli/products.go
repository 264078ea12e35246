package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/money"
)

// NewProductsCommand creates the products command.
func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "products",
		Short:         "List the product catalog",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducts(rootOpts, cmd)
		},
	}
}

func runProducts(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	products, err := app.Client.ListProducts(cmd.Context())
	if err != nil {
		_ = formatter.Error("products", err.Error())
		return WrapExitError(ExitFailure, "list products", err)
	}

	if opts.Format == "json" {
		return formatter.Success(products)
	}
	renderProducts(formatter, products)
	return nil
}

func renderProducts(f *OutputFormatter, products []api.Product) {
	if len(products) == 0 {
		fmt.Fprintln(f.Writer, "No products available.")
		return
	}
	for _, p := range products {
		fmt.Fprintf(f.Writer, "%3d  %-26s %-12s %s\n", p.ID, p.Name, p.Category, money.Format(p.Price))
	}
}
