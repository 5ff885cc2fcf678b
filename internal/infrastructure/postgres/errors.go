package postgres

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for the connectivity layer.
var (
	// ErrDisconnected is returned once a caller has exhausted its bounded
	// retry budget while waiting for a usable connection or statement.
	// Upstream layers map it to a service-unavailable response.
	ErrDisconnected = errors.New("database disconnected")

	// ErrInvalidState reports a statement state machine observation that
	// should be impossible. Reported as an error rather than a panic so a
	// single corrupted handle cannot take the process down.
	ErrInvalidState = errors.New("invalid statement state")
)

// IsServerError reports whether err is a server-side Postgres error, one
// carrying a SQLSTATE code: constraint violations, syntax errors, type
// mismatches. Server-side errors are never retried.
func IsServerError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}

// isConnectionClosed classifies err into the transient connection-closed
// failure class: the physical socket died or was never usable. Only this
// class is retried; every other error is treated as non-transient.
//
// Classification is structural wherever the driver allows it. The raw
// message check at the end is a fallback for pgconn failures that carry
// no wrapped cause, and is intentionally last.
func isConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	// Caller cancellation is terminal, never a reason to retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsServerError(err) {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, pgx.ErrTooManyRows) {
		return false
	}
	// pgconn marks requests that never reached the server as retry-safe.
	if pgconn.SafeToRetry(err) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "conn closed") || strings.Contains(msg, "connection closed")
}
