package store

import (
	"context"

	"github.com/conduitapp/conduit/internal/infrastructure/postgres"
)

// Store aggregates the per-entity statement sets behind one handle.
type Store struct {
	Users    *UserStore
	Articles *ArticleStore
	Comments *CommentStore
	Tags     *TagStore
}

// New creates all statement sets against the manager. No database work
// happens until the statements are used or Prepare is called.
func New(mgr *postgres.Manager) *Store {
	return &Store{
		Users:    NewUserStore(mgr),
		Articles: NewArticleStore(mgr),
		Comments: NewCommentStore(mgr),
		Tags:     NewTagStore(mgr),
	}
}

// Prepare warms every statement in every set. Called at boot when
// database.prepare_on_boot is set, so broken SQL fails fast.
func (s *Store) Prepare(ctx context.Context) error {
	if err := s.Users.Prepare(ctx); err != nil {
		return err
	}
	if err := s.Articles.Prepare(ctx); err != nil {
		return err
	}
	if err := s.Comments.Prepare(ctx); err != nil {
		return err
	}
	return s.Tags.Prepare(ctx)
}
