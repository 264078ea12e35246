package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/cart"
	"github.com/roach88/caffinity/internal/checkout"
	"github.com/roach88/caffinity/internal/config"
	"github.com/roach88/caffinity/internal/identity"
	"github.com/roach88/caffinity/internal/logging"
	"github.com/roach88/caffinity/internal/store"
)

// App bundles the wired services a command needs. Each command opens
// an App, does its work, and closes it.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Store  *store.Store
	Client *api.Client
	IDs    *identity.Resolver
	Cart   *cart.Synchronizer
}

// openApp loads configuration, opens the local state database and
// wires the services. Failures here are command errors (exit code 2).
func openApp(opts *RootOptions) (*App, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, opts.Quiet)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure logging", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "create data directory", err)
	}
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open state database", err)
	}

	client := api.New(cfg.BaseURL, cfg.RequestTimeout, logger)
	ids := identity.NewResolver(st)

	return &App{
		Config: cfg,
		Logger: logger,
		Store:  st,
		Client: client,
		IDs:    ids,
		Cart:   cart.NewSynchronizer(client, ids, st, logger),
	}, nil
}

// Close releases the App's resources.
func (a *App) Close() {
	_ = a.Logger.Sync()
	_ = a.Store.Close()
}

// CheckoutOptions derives the checkout pricing knobs from config.
func (a *App) CheckoutOptions() checkout.Options {
	return checkout.Options{
		ShippingFee:  a.Config.ShippingFeeAmount(),
		TaxRate:      a.Config.TaxRateValue(),
		PaymentDelay: a.Config.PaymentDelay,
	}
}

// newFormatter builds the output formatter for a command invocation.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
