package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corey/webinar-sync/internal/credential"
	"github.com/corey/webinar-sync/internal/report"
	"github.com/corey/webinar-sync/internal/schedule"
	"github.com/corey/webinar-sync/internal/sheet"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reconcile the sheet once and deliver the report",
		Long: `Read every row of the configured sheet, create or update the webinar of
each row marked Create = yes, reconcile its panelists and cohosts, and
deliver the run report to the configured sink.

Example:
  webinar-sync run
  REPORT_SINK=stdout webinar-sync run --config params.yaml -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.RunOnce(ctx)
		},
	}
}

const deliverTimeout = 30 * time.Second

// RunOnce performs one reconciliation run and delivers its report. Setup
// errors stop the run before any row is touched; they are logged to the
// report, which is still delivered.
func (a *App) RunOnce(ctx context.Context) error {
	rep := report.New(a.Console, a.ConsoleLevel, a.Now())
	log := rep.Logger()
	log.Warn("starting")
	ctx = credential.ContextWithLogger(ctx, log)

	sink, err := a.Sink(ctx, log)
	if err != nil {
		log.Error("report sink unavailable, falling back to stdout", "error", err)
		sink = report.NewStdoutSink(a.Out)
	}

	outcomes, err := a.reconcile(ctx, rep)
	if err != nil {
		log.Error(err.Error())
	}
	for _, o := range outcomes {
		rep.Record(o.State.String())
	}
	log.Warn("done")

	// A cancelled run still reports what it did
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
	defer cancel()
	rep.Deliver(deliverCtx, sink)
	return err
}

func (a *App) reconcile(ctx context.Context, rep *report.Report) ([]schedule.Outcome, error) {
	log := rep.Logger()
	if err := a.Config.RequireRun(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}

	provider := a.Webex(a.Credentials(), log)
	me, err := provider.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: integration not authorized: %w", ErrSetup, err)
	}
	log.Info("scheduling as " + me.PrimaryEmail())

	sheetID, err := a.SheetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	smartsheet := a.Smartsheet(log)
	s, err := smartsheet.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	log.Info("loaded sheet", "name", s.Name, "rows", len(s.Rows))

	table, err := sheet.Bind(s, a.Config.Columns, smartsheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}

	r := schedule.NewReconciler(provider, table, schedule.Config{
		Defaults:  a.Config.Defaults,
		Directory: a.Config.Directory(),
	}, schedule.WithClock(a.Now), schedule.WithLogger(log))
	return r.Run(ctx)
}
