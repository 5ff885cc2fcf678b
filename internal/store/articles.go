package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/conduitapp/conduit/internal/infrastructure/postgres"
)

// DefaultPageSize is the article page size when the request does not
// specify a limit.
const DefaultPageSize = 20

// articleSelect renders articles for viewer $1: tags aggregated into a
// comma-joined string, favorite state and count, and the author's
// profile with follow flag, all in one statement.
const articleSelect = `
SELECT a.id, a.slug, a.title, a.description, a.body, a.created_at, a.updated_at,
  (SELECT STRING_AGG(tag_name, ',' ORDER BY tag_name) FROM article_tags WHERE article_id = a.id) AS tag_list,
  (SELECT COUNT(*) FROM favorite_articles WHERE article_id = a.id AND user_id = $1) AS favorited,
  (SELECT COUNT(*) FROM favorite_articles WHERE article_id = a.id) AS favorites_count,
  u.id, u.username, u.bio, u.image,
  (SELECT COUNT(*) FROM followers WHERE user_id = u.id AND follower_id = $1) AS following
FROM articles a INNER JOIN users u ON a.author_id = u.id`

// feedSelect renders only articles authored by users viewer $1 follows.
// Following is constant: a feed row's author is followed by definition.
const feedSelect = `
WITH following(author_id) AS (
  SELECT user_id FROM followers WHERE follower_id = $1
)
SELECT a.id, a.slug, a.title, a.description, a.body, a.created_at, a.updated_at,
  (SELECT STRING_AGG(tag_name, ',' ORDER BY tag_name) FROM article_tags WHERE article_id = a.id) AS tag_list,
  (SELECT COUNT(*) FROM favorite_articles WHERE article_id = a.id AND user_id = $1) AS favorited,
  (SELECT COUNT(*) FROM favorite_articles WHERE article_id = a.id) AS favorites_count,
  u.id, u.username, u.bio, u.image,
  1::bigint AS following
FROM following f INNER JOIN articles a ON a.author_id = f.author_id
  INNER JOIN users u ON a.author_id = u.id`

// ArticleStore holds the fixed statement set for articles, their tags,
// and favorites.
type ArticleStore struct {
	bySlug     *postgres.Statement
	byID       *postgres.Statement
	list       *postgres.Statement
	feed       *postgres.Statement
	insert     *postgres.Statement
	insertTag  *postgres.Statement
	deleteTags *postgres.Statement
	update     *postgres.Statement
	delete     *postgres.Statement
	favorite   *postgres.Statement
	unfavorite *postgres.Statement
}

// NewArticleStore creates the statement handles.
func NewArticleStore(mgr *postgres.Manager) *ArticleStore {
	return &ArticleStore{
		bySlug: postgres.NewStatement(mgr, articleSelect+` WHERE a.slug = $2`),
		byID:   postgres.NewStatement(mgr, articleSelect+` WHERE a.id = $2`),
		list:   postgres.NewStatement(mgr, articleSelect+` ORDER BY a.id DESC LIMIT $2 OFFSET $3`),
		feed:   postgres.NewStatement(mgr, feedSelect+` ORDER BY a.id DESC LIMIT $2 OFFSET $3`),

		insert: postgres.NewStatement(mgr, `
			INSERT INTO articles(author_id, slug, title, description, body)
			VALUES($1, $2, $3, $4, $5) RETURNING id`),
		insertTag: postgres.NewStatement(mgr, `
			INSERT INTO article_tags(article_id, tag_name) VALUES($1, $2)
			ON CONFLICT (article_id, tag_name) DO NOTHING`),
		deleteTags: postgres.NewStatement(mgr,
			`DELETE FROM article_tags WHERE article_id = $1`),

		update: postgres.NewStatement(mgr, `
			UPDATE articles SET
				slug = $2,
				title = COALESCE($3, title),
				description = COALESCE($4, description),
				body = COALESCE($5, body),
				updated_at = now()
			WHERE id = $1`),
		delete: postgres.NewStatement(mgr, `DELETE FROM articles WHERE id = $1`),

		favorite: postgres.NewStatement(mgr, `
			INSERT INTO favorite_articles(user_id, article_id) VALUES($1, $2)
			ON CONFLICT (user_id, article_id) DO NOTHING`),
		unfavorite: postgres.NewStatement(mgr,
			`DELETE FROM favorite_articles WHERE user_id = $1 AND article_id = $2`),
	}
}

// Prepare warms every statement in the set.
func (s *ArticleStore) Prepare(ctx context.Context) error {
	stmts := []*postgres.Statement{
		s.bySlug, s.byID, s.list, s.feed,
		s.insert, s.insertTag, s.deleteTags,
		s.update, s.delete,
		s.favorite, s.unfavorite,
	}
	for _, stmt := range stmts {
		if err := stmt.Prepare(ctx); err != nil {
			return fmt.Errorf("preparing article statements: %w", err)
		}
	}
	return nil
}

// GetBySlug returns the article with the given slug as seen by viewerID,
// or nil if none exists.
func (s *ArticleStore) GetBySlug(ctx context.Context, viewerID int64, slug string) (*ArticleDetails, error) {
	return postgres.QueryOpt(ctx, s.bySlug, rowToArticleDetails, viewerID, slug)
}

// GetByID returns the article with the given ID as seen by viewerID, or
// nil if none exists.
func (s *ArticleStore) GetByID(ctx context.Context, viewerID, id int64) (*ArticleDetails, error) {
	return postgres.QueryOpt(ctx, s.byID, rowToArticleDetails, viewerID, id)
}

// List returns the newest articles as seen by viewerID. A non-positive
// limit selects DefaultPageSize.
func (s *ArticleStore) List(ctx context.Context, viewerID int64, limit, offset int64) ([]ArticleDetails, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return postgres.Query(ctx, s.list, rowToArticleDetails, viewerID, limit, offset)
}

// Feed returns the newest articles by authors userID follows.
func (s *ArticleStore) Feed(ctx context.Context, userID int64, limit, offset int64) ([]ArticleDetails, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return postgres.Query(ctx, s.feed, rowToArticleDetails, userID, limit, offset)
}

// Create inserts a new article with its tags and returns the new ID. The
// slug derives from the title; on a slug collision a random suffix is
// appended and the insert retried once.
func (s *ArticleStore) Create(ctx context.Context, authorID int64, title, description, body string, tags []string) (int64, error) {
	slug := Slugify(title)
	id, err := postgres.QueryOne(ctx, s.insert, pgx.RowTo[int64],
		authorID, slug, title, description, body)
	if isUniqueViolation(err) {
		id, err = postgres.QueryOne(ctx, s.insert, pgx.RowTo[int64],
			authorID, uniqueSlug(slug), title, description, body)
	}
	if err != nil {
		return 0, fmt.Errorf("inserting article: %w", err)
	}

	if err := s.replaceTags(ctx, id, tags); err != nil {
		return 0, err
	}
	return id, nil
}

// Update applies the non-nil fields to the article. slug must be the
// article's new slug (recomputed by the caller when the title changes).
// A nil tags slice leaves the tag set untouched.
func (s *ArticleStore) Update(ctx context.Context, id int64, slug string, title, description, body *string, tags []string) error {
	if _, err := postgres.Exec(ctx, s.update, id, slug, title, description, body); err != nil {
		return mapUniqueViolation(err)
	}
	if tags == nil {
		return nil
	}
	if _, err := postgres.Exec(ctx, s.deleteTags, id); err != nil {
		return fmt.Errorf("clearing article tags: %w", err)
	}
	return s.replaceTags(ctx, id, tags)
}

// Delete removes the article. Tags, favorites, and comments go with it
// through the schema's cascading deletes.
func (s *ArticleStore) Delete(ctx context.Context, id int64) (int64, error) {
	return postgres.Exec(ctx, s.delete, id)
}

// Favorite records userID favoriting the article. Idempotent.
func (s *ArticleStore) Favorite(ctx context.Context, userID, articleID int64) error {
	_, err := postgres.Exec(ctx, s.favorite, userID, articleID)
	return err
}

// Unfavorite removes the favorite. Idempotent.
func (s *ArticleStore) Unfavorite(ctx context.Context, userID, articleID int64) error {
	_, err := postgres.Exec(ctx, s.unfavorite, userID, articleID)
	return err
}

func (s *ArticleStore) replaceTags(ctx context.Context, articleID int64, tags []string) error {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, err := postgres.Exec(ctx, s.insertTag, articleID, tag); err != nil {
			return fmt.Errorf("inserting article tag %q: %w", tag, err)
		}
	}
	return nil
}
