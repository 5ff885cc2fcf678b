// Package auth provides authentication primitives for Conduit.
//
// It implements:
//   - Argon2id password hashing (OWASP 2025 recommendation) in PHC
//     string format
//   - HS256 JWT session tokens carrying the user ID, validated by
//     signature and expiry only (no database hit)
//
// Tokens are presented by clients in the Authorization header using the
// "Token <jwt>" scheme.
package auth
