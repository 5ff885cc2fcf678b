package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
)

// stmtSeq assigns each Statement a unique server-side name. Names must
// never collide within a session or a reprepare would fail.
var stmtSeq atomic.Uint64

// stmtPhase tracks where a Statement is in its prepare lifecycle.
type stmtPhase int

const (
	stmtInit stmtPhase = iota
	stmtWaiting
	stmtPreparing
	stmtPrepared
)

// stmtState is one snapshot of a Statement's lifecycle. conn is set
// only in stmtPrepared; version records the connection version the
// statement was prepared under.
type stmtState struct {
	phase   stmtPhase
	version uint64
	conn    Conn
}

// Statement is a versioned handle to one prepared query. It prepares
// lazily on first use, detects when the connection it was prepared on
// has been replaced, and transparently reprepares on the new one.
//
// A Statement is safe for concurrent use and is meant to live for the
// whole process, one per logical query.
type Statement struct {
	mgr   *Manager
	query string
	name  string

	mu sync.Mutex
	st stmtState
}

// NewStatement creates a handle for query. No database work happens
// until the statement is first used.
func NewStatement(mgr *Manager, query string) *Statement {
	return &Statement{
		mgr:   mgr,
		query: query,
		name:  fmt.Sprintf("conduit_stmt_%d", stmtSeq.Add(1)),
	}
}

// acquired is a prepared statement pinned to the connection it was
// prepared on.
type acquired struct {
	conn Conn
	name string
}

// acquire drives the statement to Prepared against the live connection
// and returns it, repreparing first if the connection version rotated
// since the last use. Bounded like GetConnection: after the retry
// ceiling it fails with ErrDisconnected.
func (s *Statement) acquire(ctx context.Context) (acquired, error) {
	retries := 0
	for {
		s.mu.Lock()
		switch s.st.phase {
		case stmtInit:
			s.st = stmtState{phase: stmtWaiting}
			s.mu.Unlock()

			handle, err := s.mgr.GetConnection(ctx)
			if err != nil {
				s.reset()
				return acquired{}, err
			}

			s.mu.Lock()
			s.st = stmtState{phase: stmtPreparing}
			s.mu.Unlock()

			if _, err := handle.Conn.Prepare(ctx, s.name, s.query); err != nil {
				s.reset()
				if isConnectionClosed(err) {
					// The connection died under us. Start over against
					// whatever the manager establishes next.
					s.mgr.log.Debug("prepare hit closed connection, retrying",
						"statement", s.name, "error", err)
					break
				}
				return acquired{}, fmt.Errorf("preparing statement: %w", err)
			}

			s.mu.Lock()
			s.st = stmtState{
				phase:   stmtPrepared,
				version: handle.Version,
				conn:    handle.Conn,
			}
			s.mu.Unlock()
			continue

		case stmtWaiting, stmtPreparing:
			// Another goroutine is mid-prepare. Wait for it to settle.
			s.mu.Unlock()

		case stmtPrepared:
			if s.mgr.CheckVersion(s.st.version) {
				a := acquired{conn: s.st.conn, name: s.name}
				s.mu.Unlock()
				return a, nil
			}
			// Prepared against a connection that no longer exists.
			s.st = stmtState{phase: stmtInit}
			s.mu.Unlock()
			continue

		default:
			phase := s.st.phase
			s.mu.Unlock()
			return acquired{}, fmt.Errorf("statement %s phase %d: %w", s.name, phase, ErrInvalidState)
		}

		if !sleep(ctx, s.mgr.poll) {
			return acquired{}, ctx.Err()
		}
		retries++
		if retries >= s.mgr.maxRetries {
			return acquired{}, fmt.Errorf("acquiring statement: %w", ErrDisconnected)
		}
	}
}

// reset returns the statement to Init so a later caller can retry from
// scratch. Called on any failed prepare attempt, fatal or not, so the
// handle is never left stuck in a transitional phase.
func (s *Statement) reset() {
	s.mu.Lock()
	s.st = stmtState{phase: stmtInit}
	s.mu.Unlock()
}

// dispatch runs op against the prepared statement, repreparing and
// retrying on connection-closed failures up to the retry ceiling. Any
// other error propagates immediately and verbatim from op.
func dispatch[T any](ctx context.Context, s *Statement, op func(ctx context.Context, conn Conn, name string) (T, error)) (T, error) {
	var zero T
	retries := 0
	for {
		a, err := s.acquire(ctx)
		if err != nil {
			return zero, err
		}

		result, err := op(ctx, a.conn, a.name)
		if err == nil {
			return result, nil
		}
		if !isConnectionClosed(err) {
			return zero, err
		}

		// The connection died mid-flight. Drop the stale prepare and go
		// again once the manager has had a chance to rotate.
		s.reset()
		retries++
		if retries >= s.mgr.maxRetries {
			return zero, fmt.Errorf("statement dispatch: %w", ErrDisconnected)
		}
		s.mgr.log.Debug("statement dispatch hit closed connection, retrying",
			"statement", s.name, "attempt", retries, "error", err)
		if !sleep(ctx, s.mgr.poll) {
			return zero, ctx.Err()
		}
	}
}

// Query runs the statement and collects every row through fn.
func Query[T any](ctx context.Context, s *Statement, fn pgx.RowToFunc[T], args ...any) ([]T, error) {
	return dispatch(ctx, s, func(ctx context.Context, conn Conn, name string) ([]T, error) {
		rows, err := conn.Query(ctx, name, args...)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, fn)
	})
}

// QueryOne runs the statement and collects exactly one row through fn.
// Zero rows yields pgx.ErrNoRows, more than one pgx.ErrTooManyRows.
func QueryOne[T any](ctx context.Context, s *Statement, fn pgx.RowToFunc[T], args ...any) (T, error) {
	return dispatch(ctx, s, func(ctx context.Context, conn Conn, name string) (T, error) {
		var zero T
		rows, err := conn.Query(ctx, name, args...)
		if err != nil {
			return zero, err
		}
		return pgx.CollectExactlyOneRow(rows, fn)
	})
}

// QueryOpt runs the statement expecting at most one row. Zero rows is
// not an error; it yields a nil pointer.
func QueryOpt[T any](ctx context.Context, s *Statement, fn pgx.RowToFunc[T], args ...any) (*T, error) {
	result, err := dispatch(ctx, s, func(ctx context.Context, conn Conn, name string) (*T, error) {
		rows, err := conn.Query(ctx, name, args...)
		if err != nil {
			return nil, err
		}
		v, err := pgx.CollectExactlyOneRow(rows, fn)
		if err != nil {
			return nil, err
		}
		return &v, nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

// Exec runs the statement and returns the number of rows affected.
func Exec(ctx context.Context, s *Statement, args ...any) (int64, error) {
	return dispatch(ctx, s, func(ctx context.Context, conn Conn, name string) (int64, error) {
		tag, err := conn.Exec(ctx, name, args...)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
}

// Prepare forces the statement through its prepare cycle without
// executing it. Used at boot to warm the whole statement set and fail
// fast on broken SQL.
func (s *Statement) Prepare(ctx context.Context) error {
	_, err := s.acquire(ctx)
	return err
}
