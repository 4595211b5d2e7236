package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/webinar-sync/internal/paramstore"
	"github.com/corey/webinar-sync/internal/sheet"
)

// NewSetSheetCommand creates the set-sheet command.
func NewSetSheetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-sheet <id|url>",
		Short: "Choose the sheet to schedule from",
		Long: `Verify that the sheet can be read and save its id to the param store.
Accepts a numeric sheet id or a sheet URL.

Example:
  webinar-sync set-sheet 4997590048630660
  webinar-sync set-sheet https://app.smartsheet.com/sheets/4997590048630660`,
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
			return app.SetSheet(cmd.Context(), args[0])
		},
	}
}

// SetSheet verifies and saves the sheet to schedule from.
func (a *App) SetSheet(ctx context.Context, input string) error {
	if err := a.Config.RequireSmartsheet(); err != nil {
		return err
	}
	id := sheet.ParseSheetID(input)
	s, err := a.Smartsheet(a.Logger).GetSheet(ctx, id)
	if err != nil {
		return fmt.Errorf("cannot use sheet %s: %w", id, err)
	}
	if err := a.Store.Put(ctx, a.key(paramstore.SheetIDName), id, false); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Scheduling from %q (%s)\n", s.Name, id)
	return nil
}

// NewTemplateCommand creates the template command.
func NewTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	var use bool

	cmd := &cobra.Command{
		Use:           "template",
		Short:         "Create an empty planning sheet with the default columns",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			app.Out = cmd.OutOrStdout()
			return app.Template(cmd.Context(), use)
		},
	}

	cmd.Flags().BoolVar(&use, "use", false, "schedule from the new sheet")

	return cmd
}

// Template creates a planning sheet and, when use is set, saves it as the
// sheet to schedule from.
func (a *App) Template(ctx context.Context, use bool) error {
	if err := a.Config.RequireSmartsheet(); err != nil {
		return err
	}
	s, err := a.Smartsheet(a.Logger).CreateTemplate(ctx, a.Now())
	if err != nil {
		return err
	}
	id := fmt.Sprint(s.ID)
	fmt.Fprintf(a.Out, "Created %q (%s)\n%s\n", s.Name, id, s.Permalink)
	if !use {
		return nil
	}
	if err := a.Store.Put(ctx, a.key(paramstore.SheetIDName), id, false); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Scheduling from the new sheet")
	return nil
}
