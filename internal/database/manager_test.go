package database

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"
)

// countingOpener opens real SQLite handles until failAfter successful opens,
// then fails every later call.
type countingOpener struct {
	calls     atomic.Int32
	failAfter int32
}

func (o *countingOpener) open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	n := o.calls.Add(1)
	if o.failAfter >= 0 && n > o.failAfter {
		return nil, errors.New("connection refused")
	}
	return openDB(ctx, cfg)
}

func newTestManager(t *testing.T, o *countingOpener, policy RetryPolicy) *Manager {
	t.Helper()
	cfg := testConfig(t)
	cfg.Reconnect = policy
	m, err := NewManager(cfg,
		WithOpener(o.open),
		WithReconnectLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNewManager_IsLazy(t *testing.T) {
	o := &countingOpener{failAfter: -1}
	m := newTestManager(t, o, DefaultRetryPolicy())

	if got := o.calls.Load(); got != 0 {
		t.Fatalf("expected no connection before first use, opener called %d times", got)
	}
	if m.State() != StateUninitialized {
		t.Fatalf("expected state uninitialized, got %s", m.State())
	}
}

func TestConn_ReturnsSameHandleWhileHealthy(t *testing.T) {
	o := &countingOpener{failAfter: -1}
	m := newTestManager(t, o, DefaultRetryPolicy())
	ctx := context.Background()

	first, err := m.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn returned error: %v", err)
	}
	second, err := m.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn returned error: %v", err)
	}

	if first != second {
		t.Fatal("expected the same handle on consecutive calls")
	}
	if got := o.calls.Load(); got != 1 {
		t.Fatalf("expected one open, got %d", got)
	}
	if m.State() != StateConnected {
		t.Fatalf("expected state connected, got %s", m.State())
	}
}

func TestConn_ConcurrentCallersShareOneHandle(t *testing.T) {
	o := &countingOpener{failAfter: -1}
	m := newTestManager(t, o, DefaultRetryPolicy())

	const workers = 16
	handles := make([]*sqlx.DB, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			db, err := m.Conn(context.Background())
			if err != nil {
				t.Errorf("Conn returned error: %v", err)
				return
			}
			handles[i] = db
		}()
	}
	wg.Wait()

	for i, h := range handles {
		if h != handles[0] {
			t.Fatalf("worker %d got a different handle", i)
		}
	}
	if got := o.calls.Load(); got != 1 {
		t.Fatalf("expected one open, got %d", got)
	}
}

func TestConn_ReconnectsOnceAfterHandleIsClosed(t *testing.T) {
	o := &countingOpener{failAfter: -1}
	m := newTestManager(t, o, DefaultRetryPolicy())
	ctx := context.Background()

	db, err := m.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn returned error: %v", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE kept (id INTEGER PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO kept (v) VALUES ('x')"); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	// Simulate the server dropping the connection.
	_ = db.Close()

	fresh, err := m.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn after close returned error: %v", err)
	}
	if fresh == db {
		t.Fatal("expected a replacement handle")
	}

	var n int
	if err := fresh.QueryRowContext(ctx, "SELECT COUNT(*) FROM kept").Scan(&n); err != nil {
		t.Fatalf("query after reconnect failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row after reconnect, got %d", n)
	}

	stats := m.Stats()
	if stats.ReconnectAttempts != 1 {
		t.Fatalf("expected exactly one reconnect attempt, got %d", stats.ReconnectAttempts)
	}
	if stats.Connects != 2 {
		t.Fatalf("expected 2 connects, got %d", stats.Connects)
	}
	if got := o.calls.Load(); got != 2 {
		t.Fatalf("expected 2 opens, got %d", got)
	}
}

// saturatedManager returns a connected manager whose single pooled
// connection is held by an open transaction until release is called.
func saturatedManager(t *testing.T, o *countingOpener, probeTimeout time.Duration) (m *Manager, db *sqlx.DB, release func()) {
	t.Helper()
	cfg := testConfig(t)
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.ProbeTimeout = probeTimeout
	m, err := NewManager(cfg,
		WithOpener(o.open),
		WithReconnectLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	db, err = m.Conn(context.Background())
	if err != nil {
		t.Fatalf("Conn returned error: %v", err)
	}
	tx, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	var once sync.Once
	release = func() { once.Do(func() { _ = tx.Rollback() }) }
	t.Cleanup(release)
	return m, db, release
}

func TestConn_SaturatedPoolKeepsHandle(t *testing.T) {
	o := &countingOpener{failAfter: -1}
	m, db, release := saturatedManager(t, o, 100*time.Millisecond)

	// A request that already holds the handle queues on the pool.
	queued := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var one int
		queued <- db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	}()

	got, err := m.Conn(context.Background())
	if err != nil {
		t.Fatalf("Conn on a saturated pool returned error: %v", err)
	}
	if got != db {
		t.Fatal("expected the saturated handle to be kept")
	}

	release()
	if err := <-queued; err != nil {
		t.Fatalf("queued request failed after release: %v", err)
	}

	if got := o.calls.Load(); got != 1 {
		t.Fatalf("expected no reconnect against a healthy database, got %d opens", got)
	}
	stats := m.Stats()
	if stats.ReconnectAttempts != 0 {
		t.Fatalf("expected no reconnect attempts, got %d", stats.ReconnectAttempts)
	}
	if stats.State != StateConnected.String() {
		t.Fatalf("expected state connected, got %s", stats.State)
	}
}

func TestConn_ProbesDoNotSerialize(t *testing.T) {
	o := &countingOpener{failAfter: -1}
	probeTimeout := 200 * time.Millisecond
	m, _, _ := saturatedManager(t, o, probeTimeout)

	const callers = 4
	var wg sync.WaitGroup
	start := time.Now()
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Conn(context.Background()); err != nil {
				t.Errorf("Conn returned error: %v", err)
			}
		}()
	}

	// Bookkeeping stays readable while probes are in flight.
	time.Sleep(20 * time.Millisecond)
	statsStart := time.Now()
	_ = m.Stats()
	if waited := time.Since(statsStart); waited > probeTimeout/2 {
		t.Fatalf("Stats blocked behind in-flight probes for %s", waited)
	}

	wg.Wait()
	if elapsed := time.Since(start); elapsed >= callers*probeTimeout/2 {
		t.Fatalf("%d concurrent probes took %s, expected them to overlap", callers, elapsed)
	}
}

func TestConn_ManagerCloseAfterReconnect(t *testing.T) {
	o := &countingOpener{failAfter: -1}
	m := newTestManager(t, o, DefaultRetryPolicy())
	ctx := context.Background()

	db, err := m.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn returned error: %v", err)
	}
	_ = db.Close()
	if _, err := m.Conn(ctx); err != nil {
		t.Fatalf("Conn after close returned error: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestConn_FailedReconnectReturnsConnectionLost(t *testing.T) {
	o := &countingOpener{failAfter: 1}
	m := newTestManager(t, o, DefaultRetryPolicy())
	ctx := context.Background()

	db, err := m.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn returned error: %v", err)
	}
	_ = db.Close()

	_, err = m.Conn(ctx)
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	if got := o.calls.Load(); got != 2 {
		t.Fatalf("expected exactly one reconnect attempt (2 opens), got %d opens", got)
	}
	if m.State() != StateFailed {
		t.Fatalf("expected state failed, got %s", m.State())
	}

	// The next acquisition tries again, once.
	_, err = m.Conn(ctx)
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	if got := o.calls.Load(); got != 3 {
		t.Fatalf("expected 3 opens, got %d", got)
	}

	stats := m.Stats()
	if stats.Failures != 2 {
		t.Fatalf("expected 2 failures, got %d", stats.Failures)
	}
	if stats.LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
}

func TestConn_InitialConnectFailureGetsOneRetry(t *testing.T) {
	o := &countingOpener{failAfter: 0}
	m := newTestManager(t, o, DefaultRetryPolicy())

	_, err := m.Conn(context.Background())
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	if got := o.calls.Load(); got != 2 {
		t.Fatalf("expected initial open plus one retry, got %d opens", got)
	}
}

func TestConn_RetryPolicyAllowsMoreAttempts(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig(t)
	cfg.Reconnect = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	m, err := NewManager(cfg,
		WithReconnectLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithOpener(func(ctx context.Context, cfg Config) (*sqlx.DB, error) {
			// initial open and the first two reconnects fail
			if calls.Add(1) <= 3 {
				return nil, errors.New("connection refused")
			}
			return openDB(ctx, cfg)
		}),
	)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer m.Close()

	if _, err := m.Conn(context.Background()); err != nil {
		t.Fatalf("expected third reconnect to succeed, got %v", err)
	}
	if got := m.Stats().ReconnectAttempts; got != 3 {
		t.Fatalf("expected 3 reconnect attempts, got %d", got)
	}
}

func TestConn_CancelledContextStopsRetrying(t *testing.T) {
	o := &countingOpener{failAfter: 0}
	m := newTestManager(t, o, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Conn(ctx)
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if got := o.calls.Load(); got != 1 {
		t.Fatalf("expected no reconnect opens after cancel, got %d opens", got)
	}
}

func TestConn_AfterCloseFails(t *testing.T) {
	o := &countingOpener{failAfter: -1}
	m := newTestManager(t, o, DefaultRetryPolicy())

	if _, err := m.Conn(context.Background()); err != nil {
		t.Fatalf("Conn returned error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	_, err := m.Conn(context.Background())
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	if m.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", m.State())
	}
}

func TestHealthCheck(t *testing.T) {
	o := &countingOpener{failAfter: -1}
	m := newTestManager(t, o, DefaultRetryPolicy())
	ctx := context.Background()

	if err := m.HealthCheck(ctx); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost before connecting, got %v", err)
	}

	db, err := m.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn returned error: %v", err)
	}
	if err := m.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}

	_ = db.Close()
	if err := m.HealthCheck(ctx); err == nil {
		t.Fatal("expected HealthCheck to fail on a closed handle")
	}
	if got := o.calls.Load(); got != 1 {
		t.Fatalf("HealthCheck must not reconnect, got %d opens", got)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		attempt int
		want    time.Duration
	}{
		{"first attempt is immediate", RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}, 1, 0},
		{"second attempt waits base", RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}, 2, time.Second},
		{"third attempt doubles", RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}, 3, 2 * time.Second},
		{"capped", RetryPolicy{MaxAttempts: 9, BaseDelay: time.Second, MaxDelay: 3 * time.Second}, 5, 3 * time.Second},
		{"no base delay", RetryPolicy{MaxAttempts: 3}, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.delay(tt.attempt); got != tt.want {
				t.Fatalf("delay(%d) = %s, want %s", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_AttemptsFloor(t *testing.T) {
	if got := (RetryPolicy{}).attempts(); got != 1 {
		t.Fatalf("expected zero policy to make one attempt, got %d", got)
	}
}

func TestNewManager_UnknownDriver(t *testing.T) {
	if _, err := NewManager(Config{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestDSN_MySQL(t *testing.T) {
	cfg := Config{
		Driver:   DriverMySQL,
		Host:     "db.internal",
		Name:     "rumi",
		User:     "shop",
		Password: "secret",
	}.withDefaults()

	got, err := dsn(cfg)
	if err != nil {
		t.Fatalf("dsn returned error: %v", err)
	}
	for _, want := range []string{"shop:secret@tcp(db.internal:3306)/rumi", "charset=utf8mb4", "clientFoundRows=true", "parseTime=true", "timeout=5s"} {
		if !strings.Contains(got, want) {
			t.Fatalf("dsn %q missing %q", got, want)
		}
	}
}

func TestDSN_MySQLCharsetRoundTrip(t *testing.T) {
	cfg := Config{
		Driver:  DriverMySQL,
		Host:    "db.internal",
		Name:    "rumi",
		User:    "shop",
		Charset: "utf8mb4,utf8",
	}.withDefaults()

	got, err := dsn(cfg)
	if err != nil {
		t.Fatalf("dsn returned error: %v", err)
	}
	if strings.Count(got, "charset=") != 1 {
		t.Fatalf("dsn %q should carry exactly one charset param", got)
	}

	parsed, err := mysql.ParseDSN(got)
	if err != nil {
		t.Fatalf("driver rejected dsn %q: %v", got, err)
	}
	if len(parsed.Params) != 0 {
		t.Fatalf("charset must not become a session variable, got params %v", parsed.Params)
	}
	if parsed.DBName != "rumi" || parsed.User != "shop" {
		t.Fatalf("unexpected parsed config %+v", parsed)
	}
}
