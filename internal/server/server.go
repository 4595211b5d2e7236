// Package server exposes the OAuth consent flow and a manual trigger for
// reconciliation runs over HTTP.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/corey/webinar-sync/internal/webex"
)

// stateTTL bounds how long a consent redirect may take.
const stateTTL = 10 * time.Minute

// OAuth builds the consent URL and exchanges the returned code.
// Implemented by *webex.OAuthConfig.
type OAuth interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*webex.Token, error)
}

// CredentialSaver persists a freshly issued token. Implemented by
// *credential.Manager.
type CredentialSaver interface {
	Save(ctx context.Context, token *webex.Token) error
}

// Identity reports who the stored credential belongs to. Implemented by
// *webex.Client.
type Identity interface {
	GetMe(ctx context.Context) (*webex.Person, error)
}

type Config struct {
	OAuth       OAuth
	Credentials CredentialSaver
	Identity    Identity
	// Run performs one reconciliation run.
	Run func(ctx context.Context) error
	// SheetID returns the sheet currently scheduled from.
	SheetID func(ctx context.Context) (string, error)
	Logger  *slog.Logger

	Port     int
	CertFile string
	KeyFile  string
}

type Server struct {
	config  *Config
	router  *gin.Engine
	logger  *slog.Logger
	running atomic.Bool

	// runCtx bounds background runs to the server's lifetime.
	runCtx  context.Context
	stopRun context.CancelFunc
	runs    sync.WaitGroup

	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

func NewServer(config *Config) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.Default()
	runCtx, stopRun := context.WithCancel(context.Background())
	server := &Server{
		runCtx:  runCtx,
		stopRun: stopRun,
		config: config,
		router: router,
		logger: logger,
		states: map[string]time.Time{},
		now:    time.Now,
	}

	router.GET("/", server.handleHealth)
	router.GET("/auth", server.handleAuthorize)
	router.GET("/callback", server.handleCallback)
	router.POST("/schedule", server.handleSchedule)
	router.GET("/status", server.handleStatus)

	return server
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, over TLS when a certificate is
// configured.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	defer s.Stop()

	var err error
	if s.config.CertFile != "" && s.config.KeyFile != "" {
		s.logger.Info("starting HTTPS server", "addr", addr)
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		err = server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
	} else {
		s.logger.Info("starting HTTP server", "addr", addr)
		err = server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop cancels a background run in progress and waits for it to deliver
// its report.
func (s *Server) Stop() {
	s.stopRun()
	s.runs.Wait()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAuthorize(c *gin.Context) {
	state := uuid.NewString()

	s.mu.Lock()
	now := s.now()
	for st, issued := range s.states {
		if now.Sub(issued) > stateTTL {
			delete(s.states, st)
		}
	}
	s.states[state] = now
	s.mu.Unlock()

	c.Redirect(http.StatusTemporaryRedirect, s.config.OAuth.AuthCodeURL(state))
}

// consumeState accepts a state once, within stateTTL of issuing it.
func (s *Server) consumeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	issued, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return s.now().Sub(issued) <= stateTTL
}

func (s *Server) handleCallback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		s.logger.Warn("authorization declined", "error", e)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authorization was declined: " + e})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}
	if !s.consumeState(c.Query("state")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown or expired state"})
		return
	}

	token, err := s.config.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		s.logger.Error("failed to exchange authorization code", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to exchange authorization code"})
		return
	}

	if err := s.config.Credentials.Save(c.Request.Context(), token); err != nil {
		s.logger.Error("failed to save credential", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save token"})
		return
	}

	s.logger.Warn("integration authorized")
	c.JSON(http.StatusOK, gin.H{"status": "authorized"})
}

func (s *Server) handleSchedule(c *gin.Context) {
	if !s.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "A run is already in progress"})
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer s.running.Store(false)
		if err := s.config.Run(s.runCtx); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	status := gin.H{"running": s.running.Load()}

	if me, err := s.config.Identity.GetMe(ctx); err != nil {
		status["authorized"] = false
		status["authError"] = err.Error()
	} else {
		status["authorized"] = true
		status["user"] = me.DisplayName
		status["email"] = me.PrimaryEmail()
	}

	if s.config.SheetID != nil {
		if id, err := s.config.SheetID(ctx); err == nil {
			status["sheetId"] = id
		}
	}

	c.JSON(http.StatusOK, status)
}
