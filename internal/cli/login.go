package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:           "login <username>",
		Short:         "Log in and move the session cart to your account",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(rootOpts, cmd, args[0], password)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runLogin(opts *RootOptions, cmd *cobra.Command, username, password string) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	user, err := app.Client.Login(ctx, username, password)
	if err != nil {
		_ = formatter.Error("login", err.Error())
		return WrapExitError(ExitFailure, "login", err)
	}
	if err := app.IDs.SetCurrentUser(ctx, *user); err != nil {
		_ = formatter.Error("login", err.Error())
		return WrapExitError(ExitCommandError, "persist login", err)
	}

	// Whatever was in the anonymous cart follows the user in.
	if err := app.Cart.Migrate(ctx); err != nil {
		app.Logger.Warn("cart migration after login failed", zap.Error(err))
		formatter.VerboseLog("cart migration failed: %v", err)
	}

	if opts.Format == "json" {
		return formatter.Success(user)
	}
	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	fmt.Fprintf(formatter.Writer, "Logged in as %s (%s).\n", name, user.Username)
	return nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Log out of the current account",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(rootOpts, cmd)
		},
	}
}

func runLogout(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.IDs.ClearCurrentUser(cmd.Context()); err != nil {
		_ = formatter.Error("logout", err.Error())
		return WrapExitError(ExitCommandError, "logout", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]bool{"loggedOut": true})
	}
	fmt.Fprintln(formatter.Writer, "Logged out.")
	return nil
}
