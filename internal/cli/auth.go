package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewAuthURLCommand creates the auth-url command.
func NewAuthURLCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth-url",
		Short: "Print the integration consent URL",
		Long: `Print the URL that authorizes the integration to schedule webinars.
Open it as the scheduling user. When the server is not running, copy the
code parameter of the redirect and pass it to auth-code.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.Config.RequireServe(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), app.OAuth().AuthCodeURL(uuid.NewString()))
			return nil
		},
	}
}

// NewAuthCodeCommand creates the auth-code command.
func NewAuthCodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "auth-code <code>",
		Short:         "Exchange an authorization code and save the credential",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			app.Out = cmd.OutOrStdout()
			return app.Authorize(cmd.Context(), args[0])
		},
	}
}

// Authorize exchanges code for a token, saves it and reports who it
// belongs to.
func (a *App) Authorize(ctx context.Context, code string) error {
	if err := a.Config.RequireServe(); err != nil {
		return err
	}
	token, err := a.OAuth().Exchange(ctx, code)
	if err != nil {
		return err
	}
	creds := a.Credentials()
	if err := creds.Save(ctx, token); err != nil {
		return err
	}
	me, err := a.Webex(creds, a.Logger).GetMe(ctx)
	if err != nil {
		return fmt.Errorf("credential saved but not usable: %w", err)
	}
	fmt.Fprintf(a.Out, "Authorized as %s (%s)\n", me.DisplayName, me.PrimaryEmail())
	return nil
}
