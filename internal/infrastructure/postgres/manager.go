package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Retry and backoff tuning. Together these bound how long any caller can
// wait for connectivity before a terminal ErrDisconnected surfaces.
const (
	// defaultConnectBackoff is the fixed delay between physical connection
	// attempts, and between a connection dying and the next connect cycle.
	defaultConnectBackoff = 500 * time.Millisecond

	// defaultPollInterval is the delay between state polls while waiting
	// for a connection or for an in-flight prepare on another goroutine.
	defaultPollInterval = 100 * time.Millisecond

	// defaultMaxRetries is the bounded retry ceiling shared by connection
	// acquisition, statement acquisition, and closed-connection dispatch
	// retries.
	defaultMaxRetries = 10

	// closeTimeout caps how long a dead connection's close handshake may
	// take during rotation or shutdown.
	closeTimeout = time.Second
)

// Conn is the subset of *pgx.Conn the connectivity layer depends on.
// Narrowing the surface keeps connection loss simulable in tests.
type Conn interface {
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	IsClosed() bool
	Close(ctx context.Context) error
}

// DialFunc opens one physical database connection.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// pgxDial is the production DialFunc backed by pgx.
func pgxDial(ctx context.Context, url string) (Conn, error) {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Logger is the logging interface used by the connectivity layer.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// nopLogger discards everything. Used when no logger is configured.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// phase describes whether a physical connection exists, is being
// established, or has failed.
type phase int

const (
	phaseDisconnected phase = iota
	phaseConnecting
	phaseConnected
)

// String returns the phase name for logs and health output.
func (p phase) String() string {
	switch p {
	case phaseConnecting:
		return "connecting"
	case phaseConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// connState is one published snapshot of the connection state. conn is
// set only in phaseConnected. The version strictly increases each time
// the manager (re)starts the connect sequence and never repeats for the
// lifetime of the process.
type connState struct {
	phase   phase
	version uint64
	conn    Conn
}

// ConnHandle is a versioned reference to the live physical connection.
// Holders are not forcibly invalidated when the connection rotates; they
// discover staleness through Manager.CheckVersion.
type ConnHandle struct {
	Version uint64
	Conn    Conn
}

// Config contains connection manager settings.
type Config struct {
	// URL is the Postgres connection string.
	URL string

	// Logger receives connectivity events. Optional.
	Logger Logger

	// Dial overrides the physical dialer. Tests use this to simulate
	// connection loss; production leaves it nil for pgx.
	Dial DialFunc

	// ConnectBackoff, PollInterval, and MaxRetries override the retry
	// tuning. Zero values select the defaults.
	ConnectBackoff time.Duration
	PollInterval   time.Duration
	MaxRetries     int
}

// Manager produces and continuously repairs exactly one live physical
// connection per process, and lets waiters observe it safely.
//
// Thread Safety: all methods are safe for concurrent use. Only the
// background loop mutates the connection state; everyone else reads
// published snapshots.
type Manager struct {
	url        string
	dial       DialFunc
	log        Logger
	backoff    time.Duration
	poll       time.Duration
	maxRetries int

	mu sync.RWMutex
	st connState

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a Manager and immediately starts its background
// reconnect loop. It never blocks waiting for the database; use
// GetConnection or Statement.Prepare to wait for connectivity.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.URL == "" && cfg.Dial == nil {
		return nil, fmt.Errorf("database URL is required")
	}

	m := &Manager{
		url:        cfg.URL,
		dial:       cfg.Dial,
		log:        cfg.Logger,
		backoff:    cfg.ConnectBackoff,
		poll:       cfg.PollInterval,
		maxRetries: cfg.MaxRetries,
		st:         connState{phase: phaseDisconnected, version: 0},
		done:       make(chan struct{}),
	}
	if m.dial == nil {
		m.dial = pgxDial
	}
	if m.log == nil {
		m.log = nopLogger{}
	}
	if m.backoff <= 0 {
		m.backoff = defaultConnectBackoff
	}
	if m.poll <= 0 {
		m.poll = defaultPollInterval
	}
	if m.maxRetries <= 0 {
		m.maxRetries = defaultMaxRetries
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)

	return m, nil
}

// run is the perpetual connect/serve/reconnect loop. It stops only when
// the manager is closed.
func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	version := uint64(0)
	for {
		version++
		m.setState(connState{phase: phaseConnecting, version: version})
		m.log.Debug("connecting to database", "version", version)

		conn, ok := m.connect(ctx, version)
		if !ok {
			m.setState(connState{phase: phaseDisconnected, version: version})
			return
		}
		m.setState(connState{phase: phaseConnected, version: version, conn: conn})
		m.log.Info("database connected", "version", version)

		m.watch(ctx, conn)

		m.closeConn(conn)
		m.setState(connState{phase: phaseDisconnected, version: version})
		if ctx.Err() != nil {
			return
		}
		m.log.Warn("database connection lost, reconnecting", "version", version)
		if !sleep(ctx, m.backoff) {
			return
		}
	}
}

// connect retries the physical dial until it succeeds or the manager is
// closed. The inner retry keeps the same version: no connection was ever
// established, so there is nothing to invalidate.
func (m *Manager) connect(ctx context.Context, version uint64) (Conn, bool) {
	for {
		conn, err := m.dial(ctx, m.url)
		if err == nil {
			return conn, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		m.log.Debug("database connect failed", "version", version, "error", err)
		if !sleep(ctx, m.backoff) {
			return nil, false
		}
	}
}

// watch blocks until conn dies or the manager is closed. Closure is
// polled cheaply; a ping goes out once per backoff interval to catch
// half-open sockets nothing has touched.
func (m *Manager) watch(ctx context.Context, conn Conn) {
	lastPing := time.Now()
	for {
		if !sleep(ctx, m.poll) {
			return
		}
		if conn.IsClosed() {
			return
		}
		if time.Since(lastPing) < m.backoff {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, m.backoff)
		err := conn.Ping(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				m.log.Debug("database ping failed", "error", err)
			}
			return
		}
		lastPing = time.Now()
	}
}

// closeConn closes a dead or retired connection, best effort.
func (m *Manager) closeConn(conn Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		m.log.Debug("closing database connection", "error", err)
	}
}

// GetConnection returns a handle to the live connection, polling until
// one is available. After the bounded retry ceiling it fails with
// ErrDisconnected so callers surface failure instead of hanging.
func (m *Manager) GetConnection(ctx context.Context) (ConnHandle, error) {
	retries := 0
	for {
		st := m.state()
		if st.phase == phaseConnected {
			return ConnHandle{Version: st.version, Conn: st.conn}, nil
		}
		if !sleep(ctx, m.poll) {
			return ConnHandle{}, ctx.Err()
		}
		retries++
		if retries >= m.maxRetries {
			return ConnHandle{}, fmt.Errorf("waiting for database connection: %w", ErrDisconnected)
		}
	}
}

// CheckVersion reports whether version matches the live Connected
// version. Statement handles use it to detect staleness without
// re-fetching the connection.
func (m *Manager) CheckVersion(version uint64) bool {
	st := m.state()
	return st.phase == phaseConnected && st.version == version
}

// State returns the current phase name and version, for health output.
func (m *Manager) State() (string, uint64) {
	st := m.state()
	return st.phase.String(), st.version
}

// HealthCheck verifies a live connection exists.
func (m *Manager) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("database health check: %w", ctx.Err())
	default:
	}

	if st := m.state(); st.phase != phaseConnected {
		return fmt.Errorf("database health check: %s (version %d): %w", st.phase, st.version, ErrDisconnected)
	}
	return nil
}

// Close stops the background loop and closes the physical connection.
func (m *Manager) Close() error {
	m.cancel()
	<-m.done
	return nil
}

// state returns the current published snapshot.
func (m *Manager) state() connState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st
}

// setState publishes a new snapshot.
func (m *Manager) setState(st connState) {
	m.mu.Lock()
	m.st = st
	m.mu.Unlock()
}

// sleep waits for d or until ctx is done. Returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
