package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// createCommentRequest is the POST /api/articles/{slug}/comments body.
type createCommentRequest struct {
	Comment struct {
		Body string `json:"body"`
	} `json:"comment"`
}

// handleListComments returns an article's comments, newest first.
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.comments.ListBySlug(r.Context(), userID(r), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// handleCreateComment adds a comment to an article.
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	body := strings.TrimSpace(req.Comment.Body)
	if body == "" {
		writeValidationError(w, "comment body is required")
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

	id, err := s.comments.Create(r.Context(), a.ID, viewerID, body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	c, err := s.comments.GetByID(r.Context(), viewerID, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if c == nil {
		writeInternalError(w, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": c})
}

// handleDeleteComment removes a comment. Only the comment's author may
// delete it.
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid comment id")
		return
	}

	viewerID := userID(r)
	c, err := s.comments.GetByID(r.Context(), viewerID, commentID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if c == nil {
		writeNotFound(w, "comment not found")
		return
	}
	if c.Author.UserID != viewerID {
		writeForbidden(w, "only the author may delete this comment")
		return
	}

	if _, err := s.comments.Delete(r.Context(), commentID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}
