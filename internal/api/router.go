package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the database probe on the health endpoint.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Registration and login (no auth required)
		r.Post("/users", s.handleRegister)
		r.Post("/users/login", s.handleLogin)

		// Current user
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/user", s.handleCurrentUser)
			r.Put("/user", s.handleUpdateUser)
		})

		// Profiles
		r.Route("/profiles/{username}", func(r chi.Router) {
			r.With(s.optionalAuth).Get("/", s.handleGetProfile)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/follow", s.handleFollow)
				r.Delete("/follow", s.handleUnfollow)
			})
		})

		// Articles
		r.Route("/articles", func(r chi.Router) {
			r.With(s.optionalAuth).Get("/", s.handleListArticles)
			r.With(s.requireAuth).Get("/feed", s.handleFeed)
			r.With(s.requireAuth).Post("/", s.handleCreateArticle)

			r.Route("/{slug}", func(r chi.Router) {
				r.With(s.optionalAuth).Get("/", s.handleGetArticle)
				r.Group(func(r chi.Router) {
					r.Use(s.requireAuth)
					r.Put("/", s.handleUpdateArticle)
					r.Delete("/", s.handleDeleteArticle)
					r.Post("/favorite", s.handleFavorite)
					r.Delete("/favorite", s.handleUnfavorite)
				})

				// Comments
				r.With(s.optionalAuth).Get("/comments", s.handleListComments)
				r.Group(func(r chi.Router) {
					r.Use(s.requireAuth)
					r.Post("/comments", s.handleCreateComment)
					r.Delete("/comments/{id}", s.handleDeleteComment)
				})
			})
		})

		// Tags (no auth required)
		r.Get("/tags", s.handleListTags)
	})

	return r
}

// handleHealth returns the server health status including database
// connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall := "ok"
	dbStatus := "connected"
	status := http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			overall = "degraded"
			dbStatus = "disconnected"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, map[string]any{
		"status":   overall,
		"version":  s.version,
		"database": dbStatus,
	})
}
