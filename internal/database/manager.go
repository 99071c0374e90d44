package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultProbeTimeout   = 2 * time.Second

	// Reconnects across all callers are limited to a small burst and then one
	// attempt per interval.
	reconnectInterval = 200 * time.Millisecond
	reconnectBurst    = 3

	retirePollInterval = 50 * time.Millisecond
	retireTimeout      = 30 * time.Second
)

// Config holds the connection settings consumed by the Manager.
type Config struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	Charset  string

	// Path is the database file used by the sqlite driver.
	Path string

	ConnectTimeout  time.Duration
	ProbeTimeout    time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	Reconnect RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Port == 0 && c.Driver == DriverMySQL {
		c.Port = 3306
	}
	if c.Charset == "" && c.Driver == DriverMySQL {
		c.Charset = "utf8mb4"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect = DefaultRetryPolicy()
	}
	return c
}

// State is the lifecycle state of the managed connection.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Opener opens and verifies a new database handle.
type Opener func(ctx context.Context, cfg Config) (*sqlx.DB, error)

// Option configures a Manager.
type Option func(*Manager)

// WithOpener replaces the driver-backed opener.
func WithOpener(open Opener) Option {
	return func(m *Manager) {
		m.open = open
	}
}

// WithReconnectLimiter replaces the limiter shared by reconnect attempts.
func WithReconnectLimiter(l *rate.Limiter) Option {
	return func(m *Manager) {
		m.limiter = l
	}
}

// ConnStats is a snapshot of the manager's connection bookkeeping.
type ConnStats struct {
	State             string      `json:"state"`
	Driver            string      `json:"driver"`
	Connects          int64       `json:"connects"`
	ReconnectAttempts int64       `json:"reconnect_attempts"`
	Failures          int64       `json:"failures"`
	LastError         string      `json:"last_error,omitempty"`
	Pool              sql.DBStats `json:"pool"`
}

// Manager owns the single shared database handle. It connects lazily,
// probes the handle before every hand-out and reconnects under a bounded
// retry policy when the probe shows the connection is gone. A probe that
// only timed out waiting for a free pooled connection keeps the handle.
type Manager struct {
	cfg     Config
	dialect *dialect
	open    Opener
	limiter *rate.Limiter

	// connect collapses concurrent connects and reconnects into one.
	connect singleflight.Group

	mu       sync.Mutex
	db       *sqlx.DB
	state    State
	closed   bool
	stats    ConnStats
	done     chan struct{}
	retiring sync.WaitGroup
}

// NewManager creates a manager for cfg without connecting.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:     cfg,
		dialect: d,
		open:    openDB,
		limiter: rate.NewLimiter(rate.Every(reconnectInterval), reconnectBurst),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Conn returns a live handle. A handle that fails its liveness probe is
// retired and replaced; if the reconnect policy is exhausted the returned
// error wraps ErrConnectionLost. The probe runs without holding the
// manager lock.
func (m *Manager) Conn(ctx context.Context) (*sqlx.DB, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: manager closed", ErrConnectionLost)
	}
	db := m.db
	m.mu.Unlock()

	if db == nil {
		return m.establish(ctx, nil, nil)
	}

	err := m.probe(ctx, db)
	switch {
	case err == nil:
		return db, nil
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %w", ErrConnectionLost, ctx.Err())
	case m.saturated(db, err):
		// Every pooled connection is checked out; the caller queues on
		// the pool under its own deadline.
		log.Debug().
			Int("in_use", db.Stats().InUse).
			Int("max_open", m.cfg.MaxOpenConns).
			Msg("Database pool saturated, keeping handle")
		return db, nil
	}

	log.Warn().Err(err).Str("driver", m.cfg.Driver).Msg("Database liveness probe failed")
	return m.establish(ctx, db, err)
}

// saturated reports whether a probe failed only because it timed out
// waiting for a connection from a fully checked-out pool.
func (m *Manager) saturated(db *sqlx.DB, err error) bool {
	if !errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return db.Stats().InUse >= m.cfg.MaxOpenConns
}

// establish connects or reconnects once per wave of callers. stale is the
// handle whose probe failed, or nil when there is no handle yet.
func (m *Manager) establish(ctx context.Context, stale *sqlx.DB, cause error) (*sqlx.DB, error) {
	v, err, _ := m.connect.Do("connect", func() (any, error) {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: manager closed", ErrConnectionLost)
		}
		if m.db != nil && m.db != stale {
			// Replaced by an earlier wave.
			db := m.db
			m.mu.Unlock()
			return db, nil
		}
		if stale != nil && m.db == stale {
			m.db = nil
			m.retireLocked(stale)
		}
		initial := m.state == StateUninitialized
		if initial {
			m.setStateLocked(StateConnecting)
		}
		m.mu.Unlock()

		if initial {
			db, err := m.open(ctx, m.cfg)
			if err == nil {
				return m.attach(db)
			}
			cause = err
			log.Error().Err(err).Str("driver", m.cfg.Driver).Msg("Failed to connect to database")
		}
		return m.reconnect(ctx, cause)
	})
	if err != nil {
		return nil, err
	}
	return v.(*sqlx.DB), nil
}

func (m *Manager) reconnect(ctx context.Context, cause error) (*sqlx.DB, error) {
	m.mu.Lock()
	m.setStateLocked(StateReconnecting)
	m.mu.Unlock()

	attempts := m.cfg.Reconnect.attempts()
	lastErr := cause
	made := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := sleep(ctx, m.cfg.Reconnect.delay(attempt)); err != nil {
			lastErr = err
			break
		}
		if err := m.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		made++
		m.mu.Lock()
		m.stats.ReconnectAttempts++
		m.mu.Unlock()
		log.Warn().
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Str("driver", m.cfg.Driver).
			Msg("Reconnecting to database")

		db, err := m.open(ctx, m.cfg)
		if err == nil {
			log.Info().Int("attempt", attempt).Msg("Database connection re-established")
			return m.attach(db)
		}
		lastErr = err
		log.Error().Err(err).Int("attempt", attempt).Msg("Database reconnect attempt failed")
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no reconnect attempt made")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Failures++
	m.stats.LastError = lastErr.Error()
	if !m.closed {
		m.setStateLocked(StateFailed)
	}
	return nil, fmt.Errorf("%w after %d attempt(s): %w", ErrConnectionLost, made, lastErr)
}

// attach installs a freshly opened handle, unless the manager was closed
// while it was being opened.
func (m *Manager) attach(db *sqlx.DB) (*sqlx.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		_ = db.Close()
		return nil, fmt.Errorf("%w: manager closed", ErrConnectionLost)
	}
	m.db = db
	m.stats.Connects++
	m.stats.LastError = ""
	m.setStateLocked(StateConnected)
	return db, nil
}

// retireLocked closes a replaced handle once no caller has a connection
// checked out from it, or after retireTimeout.
func (m *Manager) retireLocked(db *sqlx.DB) {
	if db.Stats().InUse == 0 {
		if err := db.Close(); err != nil {
			log.Debug().Err(err).Msg("Error closing stale database handle (ignored)")
		}
		return
	}

	m.retiring.Add(1)
	go func() {
		defer m.retiring.Done()

		ticker := time.NewTicker(retirePollInterval)
		defer ticker.Stop()
		deadline := time.NewTimer(retireTimeout)
		defer deadline.Stop()

	wait:
		for db.Stats().InUse > 0 {
			select {
			case <-ticker.C:
			case <-deadline.C:
				break wait
			case <-m.done:
				break wait
			}
		}
		if err := db.Close(); err != nil {
			log.Debug().Err(err).Msg("Error closing stale database handle (ignored)")
		}
	}()
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	log.Debug().Str("from", m.state.String()).Str("to", s.String()).Msg("Database connection state changed")
	m.state = s
}

func (m *Manager) probe(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("liveness probe failed: %w", err)
	}
	return nil
}

// HealthCheck probes the current handle without reconnecting.
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	db := m.db
	m.mu.Unlock()

	if db == nil {
		return fmt.Errorf("%w: no open handle", ErrConnectionLost)
	}
	return m.probe(ctx, db)
}

// Stats returns a snapshot of connection bookkeeping.
func (m *Manager) Stats() ConnStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.State = m.state.String()
	s.Driver = m.cfg.Driver
	if m.db != nil {
		s.Pool = m.db.Stats()
	}
	return s
}

// Close closes the handle and any retired ones. The manager cannot be used
// afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	m.setStateLocked(StateClosed)
	db := m.db
	m.db = nil
	m.mu.Unlock()

	m.retiring.Wait()
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// openDB is the default Opener: open, size the pool, then ping within the
// connect timeout.
func openDB(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	connStr, err := dsn(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(cfg.Driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug().Str("driver", cfg.Driver).Str("name", cfg.Name).Str("path", cfg.Path).Msg("Database connection established")
	return sqlx.NewDb(sqlDB, cfg.Driver), nil
}
