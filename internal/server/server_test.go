package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/webinar-sync/internal/webex"
)

type mockOAuth struct {
	code  string
	token *webex.Token
	err   error
}

func (m *mockOAuth) AuthCodeURL(state string) string {
	return "https://webexapis.com/v1/authorize?state=" + url.QueryEscape(state)
}

func (m *mockOAuth) Exchange(_ context.Context, code string) (*webex.Token, error) {
	m.code = code
	return m.token, m.err
}

type mockCredentials struct {
	saved *webex.Token
	err   error
}

func (m *mockCredentials) Save(_ context.Context, token *webex.Token) error {
	m.saved = token
	return m.err
}

type mockIdentity struct {
	person *webex.Person
	err    error
}

func (m *mockIdentity) GetMe(context.Context) (*webex.Person, error) {
	return m.person, m.err
}

func newTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewServer(cfg)
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &Config{})
	w := serve(s, "GET", "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func authorize(t *testing.T, s *Server) string {
	t.Helper()
	w := serve(s, "GET", "/auth")
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestOAuthFlow(t *testing.T) {
	oauth := &mockOAuth{token: &webex.Token{AccessToken: "access", RefreshToken: "refresh"}}
	creds := &mockCredentials{}
	s := newTestServer(t, &Config{OAuth: oauth, Credentials: creds})

	state := authorize(t, s)

	w := serve(s, "GET", "/callback?code=abc&state="+state)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", oauth.code)
	require.NotNil(t, creds.saved)
	assert.Equal(t, "access", creds.saved.AccessToken)

	// A state is single use
	w = serve(s, "GET", "/callback?code=abc&state="+state)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallback_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		query  func(state string) string
		oauth  *mockOAuth
		creds  *mockCredentials
		status int
	}{
		{
			name:   "declined",
			query:  func(string) string { return "?error=access_denied" },
			status: http.StatusBadRequest,
		},
		{
			name:   "missing code",
			query:  func(state string) string { return "?state=" + state },
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown state",
			query:  func(string) string { return "?code=abc&state=forged" },
			status: http.StatusBadRequest,
		},
		{
			name:   "exchange fails",
			query:  func(state string) string { return "?code=abc&state=" + state },
			oauth:  &mockOAuth{err: errors.New("invalid_grant")},
			status: http.StatusBadGateway,
		},
		{
			name:   "save fails",
			query:  func(state string) string { return "?code=abc&state=" + state },
			creds:  &mockCredentials{err: errors.New("store offline")},
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oauth := tt.oauth
			if oauth == nil {
				oauth = &mockOAuth{token: &webex.Token{AccessToken: "access"}}
			}
			creds := tt.creds
			if creds == nil {
				creds = &mockCredentials{}
			}
			s := newTestServer(t, &Config{OAuth: oauth, Credentials: creds})
			state := authorize(t, s)

			w := serve(s, "GET", "/callback"+tt.query(state))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestCallback_ExpiredState(t *testing.T) {
	s := newTestServer(t, &Config{OAuth: &mockOAuth{token: &webex.Token{}}, Credentials: &mockCredentials{}})
	issued := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	state := authorize(t, s)

	s.now = func() time.Time { return issued.Add(stateTTL + time.Second) }
	w := serve(s, "GET", "/callback?code=abc&state="+state)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchedule_OneRunAtATime(t *testing.T) {
	release := make(chan struct{})
	done := make(chan error, 1)
	runs := 0
	s := newTestServer(t, &Config{Run: func(ctx context.Context) error {
		runs++
		<-release
		done <- nil
		return nil
	}})

	w := serve(s, "POST", "/schedule")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = serve(s, "POST", "/schedule")
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Eventually(t, func() bool { return !s.running.Load() }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, runs)

	w = serve(s, "POST", "/schedule")
	assert.Equal(t, http.StatusAccepted, w.Code)
	<-done
	s.Stop()
}

func TestSchedule_RunOutlivesRequestButNotServer(t *testing.T) {
	started := make(chan struct{})
	done := make(chan error, 1)
	s := newTestServer(t, &Config{Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}})

	reqCtx, cancelReq := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("POST", "/schedule", nil).WithContext(reqCtx))
	require.Equal(t, http.StatusAccepted, w.Code)
	<-started

	// The trigger request ending leaves the run going
	cancelReq()
	select {
	case <-done:
		t.Fatal("run stopped with its request")
	case <-time.After(50 * time.Millisecond):
	}

	s.Stop()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, s.running.Load())
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, &Config{
		Identity: &mockIdentity{person: &webex.Person{DisplayName: "Scheduler", Emails: []string{"sched@x.com"}}},
		SheetID:  func(context.Context) (string, error) { return "4997590048630660", nil },
	})

	body := decode(t, serve(s, "GET", "/status"))
	assert.Equal(t, true, body["authorized"])
	assert.Equal(t, "sched@x.com", body["email"])
	assert.Equal(t, "4997590048630660", body["sheetId"])
	assert.Equal(t, false, body["running"])
}

func TestStatus_Unauthorized(t *testing.T) {
	s := newTestServer(t, &Config{
		Identity: &mockIdentity{err: errors.New("credential unavailable")},
	})

	body := decode(t, serve(s, "GET", "/status"))
	assert.Equal(t, false, body["authorized"])
	assert.Equal(t, "credential unavailable", body["authError"])
	_, hasSheet := body["sheetId"]
	assert.False(t, hasSheet)
}
