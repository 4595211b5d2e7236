// Package credential keeps the integration's delegated OAuth token usable.
//
// Access tokens have a fixed provider lifetime. The Manager renews them
// proactively once half of that lifetime has passed, so a run never starts
// with a token that could expire halfway through the row loop.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/corey/webinar-sync/internal/paramstore"
	"github.com/corey/webinar-sync/internal/webex"
)

// DefaultLifetime is the documented Webex integration access token lifetime.
const DefaultLifetime = 14 * 24 * time.Hour

var (
	// ErrCredentialUnavailable means no record exists or the store could not
	// be read.
	ErrCredentialUnavailable = errors.New("credential unavailable")

	// ErrCredentialRefreshFailed means the provider rejected the refresh or
	// the renewed record could not be persisted.
	ErrCredentialRefreshFailed = errors.New("credential refresh failed")
)

// Record is the persisted token pair. Created is epoch seconds and may carry
// a fractional part.
type Record struct {
	AccessToken           string  `json:"access_token"`
	RefreshToken          string  `json:"refresh_token"`
	ExpiresIn             int     `json:"expires_in,omitempty"`
	RefreshTokenExpiresIn int     `json:"refresh_token_expires_in,omitempty"`
	Created               float64 `json:"created"`
}

// CreatedAt returns Created as a time.
func (r *Record) CreatedAt() time.Time {
	sec, frac := math.Modf(r.Created)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// NewRecord stamps a token endpoint response with its creation time.
func NewRecord(token *webex.Token, created time.Time) *Record {
	return &Record{
		AccessToken:           token.AccessToken,
		RefreshToken:          token.RefreshToken,
		ExpiresIn:             token.ExpiresIn,
		RefreshTokenExpiresIn: token.RefreshTokenExpiresIn,
		Created:               float64(created.UnixNano()) / 1e9,
	}
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*webex.Token, error)
}

// Manager hands out a valid access token, refreshing and persisting the
// record when it has passed half of its lifetime. It is safe for concurrent
// use; callers are serialized so a record is refreshed at most once.
type Manager struct {
	mu        sync.Mutex
	store     paramstore.Store
	refresher Refresher
	key       string
	lifetime  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	record *Record
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) { m.lifetime = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

type loggerKey struct{}

// ContextWithLogger returns a context whose token refreshes are logged to
// logger instead of the Manager's own logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func (m *Manager) loggerFor(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return m.logger
}

// NewManager creates a Manager reading and writing the record at key.
func NewManager(store paramstore.Store, refresher Refresher, key string, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		key:       key,
		lifetime:  DefaultLifetime,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns a token that is less than half its lifetime old.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		record, err := m.load(ctx)
		if err != nil {
			return "", err
		}
		m.record = record
	}

	now := m.now()
	age := now.Sub(m.record.CreatedAt())
	if age < m.lifetime/2 {
		return m.record.AccessToken, nil
	}

	log := m.loggerFor(ctx)
	log.Info("access token past half of its lifetime, refreshing",
		"age", age.Round(time.Second).String())

	token, err := m.refresher.RefreshToken(ctx, m.record.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCredentialRefreshFailed, err)
	}

	record := NewRecord(token, now)
	if err := m.put(ctx, record); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCredentialRefreshFailed, err)
	}
	m.record = record

	log.Info("access token refreshed and saved")
	return record.AccessToken, nil
}

// Save persists a freshly issued token, e.g. from the authorization-code
// callback, stamped with the current time.
func (m *Manager) Save(ctx context.Context, token *webex.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := NewRecord(token, m.now())
	if err := m.put(ctx, record); err != nil {
		return err
	}
	m.record = record
	return nil
}

func (m *Manager) load(ctx context.Context) (*Record, error) {
	raw, err := m.store.Get(ctx, m.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal record: %w", ErrCredentialUnavailable, err)
	}
	if record.AccessToken == "" {
		return nil, fmt.Errorf("%w: record has no access token", ErrCredentialUnavailable)
	}
	return &record, nil
}

func (m *Manager) put(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := m.store.Put(ctx, m.key, string(data), true); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}
