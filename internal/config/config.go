// Package config loads the service settings from the environment and an
// optional YAML file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corey/webinar-sync/internal/contacts"
	"github.com/corey/webinar-sync/internal/sheet"
)

// ErrInvalidConfig wraps every setup problem found by Load and the Require
// checks.
var ErrInvalidConfig = errors.New("invalid configuration")

// Param store backends.
const (
	StoreSSM    = "ssm"
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// Report sinks.
const (
	SinkWebex  = "webex"
	SinkEmail  = "email"
	SinkStdout = "stdout"
)

// Config is the immutable service configuration.
type Config struct {
	SmartsheetToken string
	// SheetID overrides the sheet id kept in the param store.
	SheetID string

	ClientID     string
	ClientSecret string
	RedirectURL  string
	BotToken     string
	BotRoomID    string

	// Columns maps property names to sheet column titles.
	Columns   map[string]string
	Nicknames map[string]contacts.Contact
	// Defaults supplies webinar properties for empty cells.
	Defaults map[string]any

	StoreType   string
	StorePrefix string
	StorePath   string

	ReportSink string
	EmailFrom  string
	EmailTo    []string

	Port     int
	CertFile string
	KeyFile  string
}

// Directory returns the nickname directory.
func (c *Config) Directory() contacts.Directory {
	return contacts.NewDirectory(c.Nicknames)
}

type fileConfig struct {
	Columns   map[string]string           `yaml:"columns"`
	Nicknames map[string]contacts.Contact `yaml:"nicknames"`
	Defaults  map[string]any              `yaml:"defaults"`
}

type smartsheetParams struct {
	Columns   map[string]string           `json:"columns"`
	Nicknames map[string]contacts.Contact `json:"nicknames"`
}

// Load reads the environment and, when path is set, a YAML file with
// columns, nicknames and defaults. JSON parameters from the environment
// override the file. Malformed optional JSON is logged and ignored.
func Load(path string, logger *slog.Logger) (*Config, error) {
	c := &Config{
		SmartsheetToken: os.Getenv("SMARTSHEET_ACCESS_TOKEN"),
		SheetID:         os.Getenv("SMARTSHEET_SHEET_ID"),
		ClientID:        os.Getenv("WEBEX_INTEGRATION_CLIENT_ID"),
		ClientSecret:    os.Getenv("WEBEX_INTEGRATION_CLIENT_SECRET"),
		RedirectURL:     os.Getenv("REDIRECT_URL"),
		BotToken:        os.Getenv("WEBEX_BOT_TOKEN"),
		BotRoomID:       os.Getenv("WEBEX_BOT_ROOM_ID"),
		Columns:         sheet.DefaultColumns(),
		Nicknames:       map[string]contacts.Contact{},
		Defaults:        map[string]any{},
		StoreType:       envOr("PARAM_STORE_TYPE", StoreFile),
		StorePrefix:     envOr("PARAM_STORE_PREFIX", "/daedalus"),
		StorePath:       os.Getenv("PARAM_STORE_PATH"),
		ReportSink:      envOr("REPORT_SINK", SinkWebex),
		EmailFrom:       os.Getenv("REPORT_EMAIL_FROM"),
		CertFile:        os.Getenv("TLS_CERT_FILE"),
		KeyFile:         os.Getenv("TLS_KEY_FILE"),
	}
	var problems []string

	for _, addr := range strings.Split(os.Getenv("REPORT_EMAIL_TO"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			c.EmailTo = append(c.EmailTo, addr)
		}
	}

	c.Port = 8080
	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 {
			problems = append(problems, fmt.Sprintf("PORT %q is not a port number", p))
		} else {
			c.Port = port
		}
	}

	if c.RedirectURL == "" {
		scheme := "http"
		if c.CertFile != "" && c.KeyFile != "" {
			scheme = "https"
		}
		c.RedirectURL = fmt.Sprintf("%s://localhost:%d/callback", scheme, c.Port)
	}

	switch c.StoreType {
	case StoreSSM, StoreMemory:
	case StoreFile:
		if c.StorePath == "" {
			c.StorePath = "data/params.json"
		}
	case StoreSQLite:
		if c.StorePath == "" {
			c.StorePath = "data/params.db"
		}
	default:
		problems = append(problems, fmt.Sprintf("PARAM_STORE_TYPE %q is not one of ssm, sqlite, file, memory", c.StoreType))
	}

	switch c.ReportSink {
	case SinkWebex, SinkEmail, SinkStdout:
	default:
		problems = append(problems, fmt.Sprintf("REPORT_SINK %q is not one of webex, email, stdout", c.ReportSink))
	}

	if path != "" {
		if err := c.loadFile(path); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if raw := os.Getenv("SMARTSHEET_PARAMS"); raw != "" {
		var p smartsheetParams
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logger.Info("could not load optional Smartsheet parameters", "error", err)
		} else {
			for prop, title := range p.Columns {
				c.Columns[prop] = title
			}
			for nick, contact := range p.Nicknames {
				c.Nicknames[nick] = contact
			}
			logger.Info("optional Smartsheet parameters loaded from env")
		}
	}

	if raw := os.Getenv("WEBEX_INTEGRATION_PARAMS"); raw != "" {
		var defaults map[string]any
		if err := json.Unmarshal([]byte(raw), &defaults); err != nil {
			logger.Info("could not load optional Webex integration parameters", "error", err)
		} else {
			for k, v := range defaults {
				c.Defaults[k] = v
			}
			logger.Info("optional Webex integration parameters loaded from env")
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %v", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config file %s: %v", path, err)
	}
	for prop, title := range f.Columns {
		c.Columns[prop] = title
	}
	for nick, contact := range f.Nicknames {
		c.Nicknames[nick] = contact
	}
	for k, v := range f.Defaults {
		c.Defaults[k] = v
	}
	return nil
}

// RequireRun checks the settings a reconciliation run needs.
func (c *Config) RequireRun() error {
	missing := c.missing(map[string]string{
		"SMARTSHEET_ACCESS_TOKEN":         c.SmartsheetToken,
		"WEBEX_INTEGRATION_CLIENT_ID":     c.ClientID,
		"WEBEX_INTEGRATION_CLIENT_SECRET": c.ClientSecret,
	})
	switch c.ReportSink {
	case SinkWebex:
		missing = append(missing, c.missing(map[string]string{
			"WEBEX_BOT_TOKEN":   c.BotToken,
			"WEBEX_BOT_ROOM_ID": c.BotRoomID,
		})...)
	case SinkEmail:
		missing = append(missing, c.missing(map[string]string{"REPORT_EMAIL_FROM": c.EmailFrom})...)
		if len(c.EmailTo) == 0 {
			missing = append(missing, "REPORT_EMAIL_TO")
		}
	}
	return missingError(missing)
}

// RequireServe checks the settings the web server needs.
func (c *Config) RequireServe() error {
	return missingError(c.missing(map[string]string{
		"WEBEX_INTEGRATION_CLIENT_ID":     c.ClientID,
		"WEBEX_INTEGRATION_CLIENT_SECRET": c.ClientSecret,
	}))
}

// RequireSmartsheet checks the settings sheet commands need.
func (c *Config) RequireSmartsheet() error {
	return missingError(c.missing(map[string]string{"SMARTSHEET_ACCESS_TOKEN": c.SmartsheetToken}))
}

func (c *Config) missing(vars map[string]string) []string {
	var out []string
	for name, v := range vars {
		if strings.TrimSpace(v) == "" {
			out = append(out, name)
		}
	}
	return out
}

func missingError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
