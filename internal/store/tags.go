package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/conduitapp/conduit/internal/infrastructure/postgres"
)

// TagStore holds the fixed statement set for tags.
type TagStore struct {
	list *postgres.Statement
}

// NewTagStore creates the statement handles.
func NewTagStore(mgr *postgres.Manager) *TagStore {
	return &TagStore{
		list: postgres.NewStatement(mgr,
			`SELECT tag_name FROM article_tags GROUP BY tag_name ORDER BY tag_name`),
	}
}

// Prepare warms every statement in the set.
func (s *TagStore) Prepare(ctx context.Context) error {
	if err := s.list.Prepare(ctx); err != nil {
		return fmt.Errorf("preparing tag statements: %w", err)
	}
	return nil
}

// List returns every tag in use, sorted.
func (s *TagStore) List(ctx context.Context) ([]string, error) {
	return postgres.Query(ctx, s.list, pgx.RowTo[string])
}
