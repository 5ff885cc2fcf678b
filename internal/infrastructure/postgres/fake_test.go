package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// errConnClosed mimics the message pgconn produces when the socket is gone.
var errConnClosed = errors.New("conn closed")

// fakeConn is an in-memory Conn. Tests flip closed to simulate the
// physical connection dying and inspect call counts afterwards.
type fakeConn struct {
	mu           sync.Mutex
	closed       bool
	prepareErr   error
	prepareCalls int
	execCalls    int
	execSQL      []string
	queryFn      func(name string, args []any) (pgx.Rows, error)
	execFn       func(name string, args []any) (pgconn.CommandTag, error)
	pingErr      error
}

func (c *fakeConn) Prepare(_ context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepareCalls++
	if c.closed {
		return nil, errConnClosed
	}
	if c.prepareErr != nil {
		return nil, c.prepareErr
	}
	return &pgconn.StatementDescription{Name: name, SQL: sql}, nil
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.mu.Lock()
	closed, fn := c.closed, c.queryFn
	c.mu.Unlock()
	if closed {
		return nil, errConnClosed
	}
	if fn != nil {
		return fn(sql, args)
	}
	return &fakeRows{}, nil
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	c.execCalls++
	c.execSQL = append(c.execSQL, sql)
	closed, fn := c.closed, c.execFn
	c.mu.Unlock()
	if closed {
		return pgconn.CommandTag{}, errConnClosed
	}
	if fn != nil {
		return fn(sql, args)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (c *fakeConn) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	return c.pingErr
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) kill() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) prepares() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepareCalls
}

func (c *fakeConn) execs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execCalls
}

// dialScript hands out fresh fakeConns, optionally failing the first
// few dial attempts.
type dialScript struct {
	mu       sync.Mutex
	failures int
	dials    int
	conns    []*fakeConn
	setup    func(*fakeConn)
}

func (s *dialScript) dial(context.Context, string) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	}
	c := &fakeConn{}
	if s.setup != nil {
		s.setup(c)
	}
	s.conns = append(s.conns, c)
	return c, nil
}

// setFailures makes the next n dial attempts fail. Tests use it to keep
// the manager disconnected after an established connection dies.
func (s *dialScript) setFailures(n int) {
	s.mu.Lock()
	s.failures = n
	s.mu.Unlock()
}

func (s *dialScript) conn(i int) *fakeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.conns) {
		return nil
	}
	return s.conns[i]
}

func (s *dialScript) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// newTestManager builds a manager with millisecond timing so retry
// ceilings are exercised quickly.
func newTestManager(t *testing.T, script *dialScript) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Dial:           script.dial,
		ConnectBackoff: time.Millisecond,
		PollInterval:   time.Millisecond,
		MaxRetries:     10,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// fakeRows is a minimal pgx.Rows over canned values.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func assign(dest, val any) error {
	switch d := dest.(type) {
	case *int64:
		*d = val.(int64)
	case *int:
		*d = val.(int)
	case *string:
		*d = val.(string)
	case **string:
		if val == nil {
			*d = nil
		} else {
			s := val.(string)
			*d = &s
		}
	case *bool:
		*d = val.(bool)
	case *time.Time:
		*d = val.(time.Time)
	default:
		return fmt.Errorf("scan: unsupported destination %T", dest)
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
