package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/conduitapp/conduit/internal/store"
)

// createArticleRequest is the POST /api/articles body.
type createArticleRequest struct {
	Article struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Body        string   `json:"body"`
		TagList     []string `json:"tagList"`
	} `json:"article"`
}

// updateArticleRequest is the PUT /api/articles/{slug} body. Absent
// fields stay unchanged; a present tagList replaces the tag set.
type updateArticleRequest struct {
	Article struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Body        *string  `json:"body"`
		TagList     []string `json:"tagList"`
	} `json:"article"`
}

// pageParams reads limit/offset query parameters, falling back to the
// store's default page size on absent or malformed values.
func pageParams(r *http.Request) (limit, offset int64) {
	limit = store.DefaultPageSize
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// writeArticles writes the list envelope with its count.
func writeArticles(w http.ResponseWriter, articles []store.ArticleDetails) {
	writeJSON(w, http.StatusOK, map[string]any{
		"articles":      articles,
		"articlesCount": len(articles),
	})
}

// handleListArticles returns the newest articles, most recent first.
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	articles, err := s.articles.List(r.Context(), userID(r), limit, offset)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeArticles(w, articles)
}

// handleFeed returns articles by authors the authenticated user follows.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	articles, err := s.articles.Feed(r.Context(), userID(r), limit, offset)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeArticles(w, articles)
}

// handleGetArticle returns a single article by slug.
func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.articles.GetBySlug(r.Context(), userID(r), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if a == nil {
		writeNotFound(w, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"article": a})
}

// handleCreateArticle creates an article authored by the authenticated
// user.
func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var req createArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	title := strings.TrimSpace(req.Article.Title)
	if title == "" {
		writeValidationError(w, "title is required")
		return
	}

	authorID := userID(r)
	id, err := s.articles.Create(r.Context(), authorID,
		title, req.Article.Description, req.Article.Body, req.Article.TagList)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	a, err := s.articles.GetByID(r.Context(), authorID, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if a == nil {
		writeInternalError(w, "internal server error")
		return
	}

	s.logger.Info("article created",
		"article_id", id, "author_id", authorID, "request_id", requestID(r))
	writeJSON(w, http.StatusCreated, map[string]any{"article": a})
}

// handleUpdateArticle applies a partial update to an article. Only the
// author may update it. A title change recomputes the slug.
func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	var req updateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	viewerID := userID(r)
	a, err := s.articles.GetBySlug(r.Context(), viewerID, chi.URLParam(r, "slug"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if a == nil {
		writeNotFound(w, "article not found")
		return
	}
	if a.Author.UserID != viewerID {
		writeForbidden(w, "only the author may update this article")
		return
	}

	slug := a.Slug
	if req.Article.Title != nil {
		slug = store.Slugify(*req.Article.Title)
	}

	if err := s.articles.Update(r.Context(), a.ID, slug,
		req.Article.Title, req.Article.Description, req.Article.Body,
		req.Article.TagList); err != nil {
		s.respondError(w, r, err)
		return
	}

	updated, err := s.articles.GetByID(r.Context(), viewerID, a.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if updated == nil {
		writeNotFound(w, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"article": updated})
}

// handleDeleteArticle removes an article. Only the author may delete it.
func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	viewerID := userID(r)
	a, err := s.articles.GetBySlug(r.Context(), viewerID, chi.URLParam(r, "slug"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if a == nil {
		writeNotFound(w, "article not found")
		return
	}
	if a.Author.UserID != viewerID {
		writeForbidden(w, "only the author may delete this article")
		return
	}

	if _, err := s.articles.Delete(r.Context(), a.ID); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.logger.Info("article deleted",
		"article_id", a.ID, "author_id", viewerID, "request_id", requestID(r))
	writeJSON(w, http.StatusOK, map[string]any{})
}

// handleFavorite marks the article as favorited by the authenticated
// user.
func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	s.setFavorite(w, r, true)
}

// handleUnfavorite removes the favorite.
func (s *Server) handleUnfavorite(w http.ResponseWriter, r *http.Request) {
	s.setFavorite(w, r, false)
}

func (s *Server) setFavorite(w http.ResponseWriter, r *http.Request, favorite bool) {
	viewerID := userID(r)
	a, err := s.articles.GetBySlug(r.Context(), viewerID, chi.URLParam(r, "slug"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if a == nil {
		writeNotFound(w, "article not found")
		return
	}

	if favorite {
		err = s.articles.Favorite(r.Context(), viewerID, a.ID)
	} else {
		err = s.articles.Unfavorite(r.Context(), viewerID, a.ID)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	updated, err := s.articles.GetByID(r.Context(), viewerID, a.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if updated == nil {
		writeNotFound(w, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"article": updated})
}
