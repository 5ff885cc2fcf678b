package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleGetProfile returns a user's public profile as seen by the
// viewer. Anonymous viewers see following=false.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.users.GetProfile(r.Context(), userID(r), chi.URLParam(r, "username"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if p == nil {
		writeNotFound(w, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

// handleFollow makes the authenticated user follow the named user.
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	s.setFollow(w, r, true)
}

// handleUnfollow removes the follow relationship.
func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	s.setFollow(w, r, false)
}

func (s *Server) setFollow(w http.ResponseWriter, r *http.Request, follow bool) {
	username := chi.URLParam(r, "username")
	viewerID := userID(r)

	target, err := s.users.GetByUsername(r.Context(), username)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if target == nil {
		writeNotFound(w, "profile not found")
		return
	}

	if follow {
		err = s.users.Follow(r.Context(), target.ID, viewerID)
	} else {
		err = s.users.Unfollow(r.Context(), target.ID, viewerID)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := s.users.GetProfile(r.Context(), viewerID, username)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if p == nil {
		writeNotFound(w, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}
