package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/conduitapp/conduit/internal/infrastructure/postgres"
)

// userSelect lists the full users row in rowToUser order.
const userSelect = `SELECT id, username, email, password, bio, image, created_at, updated_at FROM users`

// profileSelect renders a user as seen by viewer $1. The LEFT JOIN row
// exists only when the viewer follows them.
const profileSelect = `
SELECT u.id, u.username, u.bio, u.image,
  (CASE WHEN f.user_id IS NOT NULL THEN 1 ELSE 0 END)::bigint AS following
FROM users u LEFT JOIN followers f
  ON f.user_id = u.id AND f.follower_id = $1
WHERE u.username = $2`

// UserStore holds the fixed statement set for users, profiles, and
// follow relationships.
type UserStore struct {
	byID           *postgres.Statement
	byEmail        *postgres.Statement
	byUsername     *postgres.Statement
	insert         *postgres.Statement
	update         *postgres.Statement
	updatePassword *postgres.Statement
	profile        *postgres.Statement
	follow         *postgres.Statement
	unfollow       *postgres.Statement
}

// NewUserStore creates the statement handles. No database work happens
// until the statements are first used or Prepare is called.
func NewUserStore(mgr *postgres.Manager) *UserStore {
	return &UserStore{
		byID:       postgres.NewStatement(mgr, userSelect+` WHERE id = $1`),
		byEmail:    postgres.NewStatement(mgr, userSelect+` WHERE email = $1`),
		byUsername: postgres.NewStatement(mgr, userSelect+` WHERE username = $1`),

		insert: postgres.NewStatement(mgr, `
			INSERT INTO users(username, email, password)
			VALUES($1, $2, $3)
			RETURNING id, username, email, password, bio, image, created_at, updated_at`),

		update: postgres.NewStatement(mgr, `
			UPDATE users SET
				username = COALESCE($2, username),
				email = COALESCE($3, email),
				bio = COALESCE($4, bio),
				image = COALESCE($5, image),
				updated_at = now()
			WHERE id = $1
			RETURNING id, username, email, password, bio, image, created_at, updated_at`),

		updatePassword: postgres.NewStatement(mgr,
			`UPDATE users SET password = $1, updated_at = now() WHERE id = $2`),

		profile: postgres.NewStatement(mgr, profileSelect),

		follow: postgres.NewStatement(mgr, `
			INSERT INTO followers(user_id, follower_id) VALUES($1, $2)
			ON CONFLICT (user_id, follower_id) DO NOTHING`),
		unfollow: postgres.NewStatement(mgr,
			`DELETE FROM followers WHERE user_id = $1 AND follower_id = $2`),
	}
}

// Prepare warms every statement in the set.
func (s *UserStore) Prepare(ctx context.Context) error {
	stmts := []*postgres.Statement{
		s.byID, s.byEmail, s.byUsername,
		s.insert, s.update, s.updatePassword,
		s.profile, s.follow, s.unfollow,
	}
	for _, stmt := range stmts {
		if err := stmt.Prepare(ctx); err != nil {
			return fmt.Errorf("preparing user statements: %w", err)
		}
	}
	return nil
}

// GetByID returns the user with the given ID, or nil if none exists.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*User, error) {
	return postgres.QueryOpt(ctx, s.byID, rowToUser, id)
}

// GetByEmail returns the user with the given email, or nil if none exists.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return postgres.QueryOpt(ctx, s.byEmail, rowToUser, email)
}

// GetByUsername returns the user with the given username, or nil if none exists.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return postgres.QueryOpt(ctx, s.byUsername, rowToUser, username)
}

// Register inserts a new user and returns the stored row. The password
// must already be hashed. Duplicate email or username maps to
// ErrEmailTaken / ErrUsernameTaken.
func (s *UserStore) Register(ctx context.Context, username, email, passwordHash string) (User, error) {
	u, err := postgres.QueryOne(ctx, s.insert, rowToUser, username, email, passwordHash)
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	return u, nil
}

// Update applies the non-nil profile fields to the user and returns the
// stored row. Passwords change through UpdatePassword. Updating a user
// that does not exist fails with ErrNotFound.
func (s *UserStore) Update(ctx context.Context, id int64, username, email, bio, image *string) (User, error) {
	u, err := postgres.QueryOne(ctx, s.update, rowToUser,
		id, username, email, bio, image)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	return u, nil
}

// UpdatePassword replaces the user's password hash. The hash must be
// computed by the caller.
func (s *UserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) (int64, error) {
	return postgres.Exec(ctx, s.updatePassword, passwordHash, id)
}

// GetProfile returns username's profile as seen by viewerID, or nil if
// no such user exists. viewerID 0 renders the anonymous view.
func (s *UserStore) GetProfile(ctx context.Context, viewerID int64, username string) (*Profile, error) {
	return postgres.QueryOpt(ctx, s.profile, rowToProfile, viewerID, username)
}

// Follow records followerID following userID. Idempotent.
func (s *UserStore) Follow(ctx context.Context, userID, followerID int64) error {
	_, err := postgres.Exec(ctx, s.follow, userID, followerID)
	return err
}

// Unfollow removes the follow relationship. Idempotent.
func (s *UserStore) Unfollow(ctx context.Context, userID, followerID int64) error {
	_, err := postgres.Exec(ctx, s.unfollow, userID, followerID)
	return err
}
