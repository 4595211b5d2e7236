package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/webinar-sync/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the OAuth consent flow and the run trigger",
		Long: `Start the web server. Visit /auth to authorize the integration, POST
/schedule to start a run in the background and GET /status to see who
is authorized and which sheet is used.

Serves HTTPS when TLS_CERT_FILE and TLS_KEY_FILE are set.`,
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
			if err := app.Config.RequireServe(); err != nil {
				return err
			}
			return server.NewServer(app.ServerConfig()).Start(ctx)
		},
	}
}

// ServerConfig wires the web server to this app.
func (a *App) ServerConfig() *server.Config {
	creds := a.Credentials()
	return &server.Config{
		OAuth:       a.OAuth(),
		Credentials: creds,
		Identity:    a.Webex(creds, a.Logger),
		Run:         a.RunOnce,
		SheetID:     a.SheetID,
		Logger:      a.Logger,
		Port:        a.Config.Port,
		CertFile:    a.Config.CertFile,
		KeyFile:     a.Config.KeyFile,
	}
}
