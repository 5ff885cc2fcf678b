package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound reports that the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken reports a registration or update against an email
	// address another account already uses.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUsernameTaken reports a registration or update against a
	// username another account already uses.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrDuplicate reports any other unique constraint violation.
	ErrDuplicate = errors.New("already exists")
)

// mapUniqueViolation converts a Postgres unique-violation error into the
// matching sentinel, using the violated constraint's name. Any other
// error passes through untouched.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return ErrEmailTaken
	case strings.Contains(pgErr.ConstraintName, "username"):
		return ErrUsernameTaken
	default:
		return ErrDuplicate
	}
}

// isUniqueViolation reports whether err is a Postgres unique-violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
