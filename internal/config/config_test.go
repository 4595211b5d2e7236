package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/webinar-sync/internal/contacts"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SMARTSHEET_ACCESS_TOKEN", "SMARTSHEET_SHEET_ID", "SMARTSHEET_PARAMS",
		"WEBEX_INTEGRATION_CLIENT_ID", "WEBEX_INTEGRATION_CLIENT_SECRET", "WEBEX_INTEGRATION_PARAMS",
		"WEBEX_BOT_TOKEN", "WEBEX_BOT_ROOM_ID", "REDIRECT_URL",
		"PARAM_STORE_TYPE", "PARAM_STORE_PREFIX", "PARAM_STORE_PATH",
		"REPORT_SINK", "REPORT_EMAIL_FROM", "REPORT_EMAIL_TO",
		"PORT", "TLS_CERT_FILE", "TLS_KEY_FILE",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load("", quiet)
	require.NoError(t, err)

	assert.Equal(t, StoreFile, c.StoreType)
	assert.Equal(t, "data/params.json", c.StorePath)
	assert.Equal(t, "/daedalus", c.StorePrefix)
	assert.Equal(t, SinkWebex, c.ReportSink)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "http://localhost:8080/callback", c.RedirectURL)
	assert.Equal(t, "Start Date", c.Columns["startdate"])
	assert.Empty(t, c.Defaults)
}

func TestLoad_EnvParams(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTSHEET_PARAMS", `{"columns": {"title": "Session"}, "nicknames": {"Bob": {"name": "Bob", "email": "bob@x.com"}}}`)
	t.Setenv("WEBEX_INTEGRATION_PARAMS", `{"timezone": "Europe/Berlin", "noCohosts": true}`)
	t.Setenv("REPORT_EMAIL_TO", "ops@x.com, lead@x.com ,")
	t.Setenv("TLS_CERT_FILE", "cert.pem")
	t.Setenv("TLS_KEY_FILE", "key.pem")
	t.Setenv("PORT", "8443")

	c, err := Load("", quiet)
	require.NoError(t, err)

	assert.Equal(t, "Session", c.Columns["title"])
	assert.Equal(t, "Start Time", c.Columns["starttime"])
	bob, ok := c.Directory().Lookup("bob")
	require.True(t, ok)
	assert.Equal(t, "bob@x.com", bob.Email)
	assert.Equal(t, map[string]any{"timezone": "Europe/Berlin", "noCohosts": true}, c.Defaults)
	assert.Equal(t, []string{"ops@x.com", "lead@x.com"}, c.EmailTo)
	assert.Equal(t, "https://localhost:8443/callback", c.RedirectURL)
}

func TestLoad_MalformedOptionalJSONIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTSHEET_PARAMS", `{"columns": `)
	t.Setenv("WEBEX_INTEGRATION_PARAMS", `not json`)

	c, err := Load("", quiet)
	require.NoError(t, err)
	assert.Equal(t, "Title", c.Columns["title"])
	assert.Empty(t, c.Defaults)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
columns:
  title: Webinar Name
  agenda: Description
nicknames:
  carol:
    name: Carol
    email: carol@x.com
defaults:
  duration: 45
  alwaysInvitePanelists: Producer <prod@x.com>
  registration:
    autoAcceptRequest: false
`), 0o600))
	t.Setenv("SMARTSHEET_PARAMS", `{"columns": {"agenda": "Agenda Text"}}`)

	c, err := Load(path, quiet)
	require.NoError(t, err)

	assert.Equal(t, "Webinar Name", c.Columns["title"])
	assert.Equal(t, "Agenda Text", c.Columns["agenda"], "env overrides file")
	assert.Equal(t, contacts.Contact{Name: "Carol", Email: "carol@x.com"}, c.Nicknames["carol"])
	assert.Equal(t, 45, c.Defaults["duration"])
	assert.Equal(t, map[string]any{"autoAcceptRequest": false}, c.Defaults["registration"])
}

func TestLoad_CollectsProblems(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARAM_STORE_TYPE", "redis")
	t.Setenv("REPORT_SINK", "pager")
	t.Setenv("PORT", "http")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), quiet)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	for _, want := range []string{"PARAM_STORE_TYPE", "REPORT_SINK", "PORT", "config file"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRequireRun(t *testing.T) {
	clearEnv(t)
	c, err := Load("", quiet)
	require.NoError(t, err)

	err = c.RequireRun()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Equal(t, "invalid configuration: missing SMARTSHEET_ACCESS_TOKEN, WEBEX_BOT_ROOM_ID, WEBEX_BOT_TOKEN, WEBEX_INTEGRATION_CLIENT_ID, WEBEX_INTEGRATION_CLIENT_SECRET", err.Error())

	c.SmartsheetToken, c.ClientID, c.ClientSecret = "s", "id", "secret"
	c.ReportSink = SinkEmail
	assert.EqualError(t, c.RequireRun(), "invalid configuration: missing REPORT_EMAIL_FROM, REPORT_EMAIL_TO")

	c.ReportSink = SinkStdout
	assert.NoError(t, c.RequireRun())
}

func TestRequireServe(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBEX_INTEGRATION_CLIENT_ID", "id")
	c, err := Load("", quiet)
	require.NoError(t, err)
	assert.EqualError(t, c.RequireServe(), "invalid configuration: missing WEBEX_INTEGRATION_CLIENT_SECRET")
}
