// Package postgres provides resilient PostgreSQL connectivity for Conduit.
//
// This package manages:
//   - Exactly one physical connection per worker process
//   - Transparent reconnection when the connection drops
//   - Versioned prepared statements that can never be dispatched against
//     a dead or replaced connection
//   - Embedded SQL schema migrations
//
// # Architecture
//
// A Manager owns the connection state and runs one perpetual background
// loop: connect, serve the connection until it dies, reconnect. Every
// (re)start of the connect sequence bumps a monotonically increasing
// version number. A Statement lazily prepares its query against the
// current connection, records the version it was prepared under, and
// reprepares itself the first time it is used after the version rotates.
//
//	handlers → Statement.Exec / Query[T] → Manager → *pgx.Conn
//
// A prepared statement is server-side session state: once the session is
// gone the statement is garbage. The version check is what guarantees a
// stale statement is discarded instead of dispatched.
//
// # Error Classification
//
// The dispatch path distinguishes two failure classes:
//   - Connection-closed (client-side, transient): retried automatically
//     up to a bounded ceiling, then surfaced as ErrDisconnected.
//   - Everything else (server-side SQLSTATE errors, unknown client-side
//     errors): propagated immediately and verbatim.
//
// Callers therefore never hang indefinitely and never receive a result
// produced by a stale connection.
//
// # Usage
//
//	mgr, err := postgres.NewManager(postgres.Config{URL: cfg.Database.URL})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close()
//
//	stmt := postgres.NewStatement(mgr, "SELECT id, username FROM users WHERE id = $1")
//	user, err := postgres.QueryOne(ctx, stmt, rowToUser, id)
package postgres
