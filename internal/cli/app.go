package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/corey/webinar-sync/internal/config"
	"github.com/corey/webinar-sync/internal/credential"
	"github.com/corey/webinar-sync/internal/paramstore"
	"github.com/corey/webinar-sync/internal/report"
	"github.com/corey/webinar-sync/internal/sheet"
	"github.com/corey/webinar-sync/internal/webex"
)

// ErrSetup marks failures that stop a run before any row is processed.
var ErrSetup = errors.New("setup failed")

// App wires the configuration into the clients a command needs.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  paramstore.Store

	// Out receives command output and the stdout report sink.
	Out io.Writer
	// Console receives run logs at ConsoleLevel and above.
	Console      io.Writer
	ConsoleLevel slog.Level

	// Base URLs are overridden in tests.
	WebexBaseURL string
	SheetBaseURL string
	Now          func() time.Time

	closeStore func() error
	creds      *credential.Manager
}

// NewApp loads the configuration and opens the param store.
func NewApp(ctx context.Context, opts *RootOptions) (*App, error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(opts.ConfigPath, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Out:          os.Stdout,
		Console:      os.Stderr,
		ConsoleLevel: slog.LevelDebug,
		WebexBaseURL: webex.DefaultBaseURL,
		SheetBaseURL: sheet.DefaultBaseURL,
		Now:          time.Now,
	}
	if a.Store, a.closeStore, err = openStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	return a, nil
}

// Close releases the param store.
func (a *App) Close() error {
	if a.closeStore != nil {
		return a.closeStore()
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (paramstore.Store, func() error, error) {
	switch cfg.StoreType {
	case config.StoreSSM:
		s, err := paramstore.NewSSMStore(ctx)
		return s, nil, err
	case config.StoreSQLite:
		s, err := paramstore.OpenSQLite(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreMemory:
		return paramstore.NewMemoryStore(), nil, nil
	default:
		s, err := paramstore.NewFileStore(cfg.StorePath)
		return s, nil, err
	}
}

func (a *App) key(name string) string {
	return paramstore.Key(a.Config.StorePrefix, name)
}

// OAuth returns the integration's OAuth settings.
func (a *App) OAuth() *webex.OAuthConfig {
	return &webex.OAuthConfig{
		ClientID:     a.Config.ClientID,
		ClientSecret: a.Config.ClientSecret,
		RedirectURL:  a.Config.RedirectURL,
		Scopes:       webex.DefaultScopes,
		BaseURL:      a.WebexBaseURL,
	}
}

// Credentials returns the manager over the stored integration token. It is
// shared so the server and background runs never refresh the same record
// twice.
func (a *App) Credentials() *credential.Manager {
	if a.creds == nil {
		a.creds = credential.NewManager(a.Store, a.OAuth(), a.key(paramstore.TokensName),
			credential.WithClock(a.Now),
			credential.WithLogger(a.Logger),
		)
	}
	return a.creds
}

// Webex returns an integration client authenticated by tokens.
func (a *App) Webex(tokens webex.TokenSource, logger *slog.Logger) *webex.Client {
	return webex.NewClient(tokens, webex.WithBaseURL(a.WebexBaseURL), webex.WithLogger(logger))
}

// Smartsheet returns a sheet client.
func (a *App) Smartsheet(logger *slog.Logger) *sheet.Client {
	return sheet.NewClient(a.Config.SmartsheetToken, sheet.WithBaseURL(a.SheetBaseURL), sheet.WithLogger(logger))
}

// SheetID returns the configured sheet, preferring the environment over the
// param store.
func (a *App) SheetID(ctx context.Context) (string, error) {
	if a.Config.SheetID != "" {
		return sheet.ParseSheetID(a.Config.SheetID), nil
	}
	id, err := a.Store.Get(ctx, a.key(paramstore.SheetIDName))
	if err != nil {
		return "", fmt.Errorf("no sheet configured, use set-sheet: %w", err)
	}
	return id, nil
}

// Sink builds the configured report sink and checks that it can deliver.
func (a *App) Sink(ctx context.Context, logger *slog.Logger) (report.Sink, error) {
	switch a.Config.ReportSink {
	case config.SinkStdout:
		return report.NewStdoutSink(a.Out), nil
	case config.SinkEmail:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return report.NewEmailSink(sesv2.NewFromConfig(awsCfg), a.Config.EmailFrom, a.Config.EmailTo), nil
	default:
		bot := a.Webex(webex.StaticToken(a.Config.BotToken), logger)
		room, err := bot.GetRoom(ctx, a.Config.BotRoomID)
		if err != nil {
			return nil, fmt.Errorf("bot cannot access room %s: %w", a.Config.BotRoomID, err)
		}
		logger.Info("bot room ready", "room", room.Title)
		return report.NewWebexSink(bot, a.Config.BotRoomID), nil
	}
}
