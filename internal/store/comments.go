package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/conduitapp/conduit/internal/infrastructure/postgres"
)

// commentSelect renders comments for viewer $1 with the author's profile
// and follow flag resolved in the same round trip.
const commentSelect = `
SELECT c.id, c.body, c.created_at, c.updated_at,
  u.id, u.username, u.bio, u.image,
  (SELECT COUNT(*) FROM followers WHERE user_id = u.id AND follower_id = $1) AS following
FROM comments c INNER JOIN users u ON c.user_id = u.id`

// CommentStore holds the fixed statement set for comments.
type CommentStore struct {
	byID   *postgres.Statement
	bySlug *postgres.Statement
	insert *postgres.Statement
	delete *postgres.Statement
}

// NewCommentStore creates the statement handles.
func NewCommentStore(mgr *postgres.Manager) *CommentStore {
	return &CommentStore{
		byID: postgres.NewStatement(mgr, commentSelect+` WHERE c.id = $2`),
		bySlug: postgres.NewStatement(mgr, commentSelect+`
			INNER JOIN articles a ON c.article_id = a.id
			WHERE a.slug = $2
			ORDER BY c.id DESC`),
		insert: postgres.NewStatement(mgr, `
			INSERT INTO comments(article_id, user_id, body)
			VALUES($1, $2, $3) RETURNING id`),
		delete: postgres.NewStatement(mgr, `DELETE FROM comments WHERE id = $1`),
	}
}

// Prepare warms every statement in the set.
func (s *CommentStore) Prepare(ctx context.Context) error {
	stmts := []*postgres.Statement{s.byID, s.bySlug, s.insert, s.delete}
	for _, stmt := range stmts {
		if err := stmt.Prepare(ctx); err != nil {
			return fmt.Errorf("preparing comment statements: %w", err)
		}
	}
	return nil
}

// GetByID returns the comment with the given ID as seen by viewerID, or
// nil if none exists.
func (s *CommentStore) GetByID(ctx context.Context, viewerID, commentID int64) (*CommentDetails, error) {
	return postgres.QueryOpt(ctx, s.byID, rowToCommentDetails, viewerID, commentID)
}

// ListBySlug returns the article's comments, newest first, as seen by
// viewerID.
func (s *CommentStore) ListBySlug(ctx context.Context, viewerID int64, slug string) ([]CommentDetails, error) {
	return postgres.Query(ctx, s.bySlug, rowToCommentDetails, viewerID, slug)
}

// Create inserts a comment and returns its ID.
func (s *CommentStore) Create(ctx context.Context, articleID, userID int64, body string) (int64, error) {
	return postgres.QueryOne(ctx, s.insert, pgx.RowTo[int64], articleID, userID, body)
}

// Delete removes the comment and reports how many rows went away.
func (s *CommentStore) Delete(ctx context.Context, commentID int64) (int64, error) {
	return postgres.Exec(ctx, s.delete, commentID)
}
