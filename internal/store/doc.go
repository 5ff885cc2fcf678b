// Package store implements Conduit's persistence layer.
//
// Each entity gets a fixed set of prepared statements (postgres.Statement
// handles) created once at construction and reused for the life of the
// process. Statements prepare lazily on first use; Store.Prepare warms
// the whole set at boot so broken SQL fails the boot instead of the
// first request.
//
// Queries that render another user's data take the viewing user's ID as
// their first parameter, so follow and favorite flags come back in the
// same round trip. Anonymous viewers pass ID 0, which matches no rows in
// followers or favorite_articles.
package store
