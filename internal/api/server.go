// Package api provides the HTTP REST API for Conduit.
//
// It exposes the RealWorld endpoint surface: user registration and
// login, profiles and follows, articles with tags and favorites, and
// comments. All persistence flows through the store interfaces, which
// in turn dispatch over the resilient postgres connectivity core.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/conduitapp/conduit/internal/infrastructure/config"
	"github.com/conduitapp/conduit/internal/infrastructure/logging"
	"github.com/conduitapp/conduit/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// UserStore is the user persistence surface the handlers depend on.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*store.User, error)
	GetByEmail(ctx context.Context, email string) (*store.User, error)
	GetByUsername(ctx context.Context, username string) (*store.User, error)
	Register(ctx context.Context, username, email, passwordHash string) (store.User, error)
	Update(ctx context.Context, id int64, username, email, bio, image *string) (store.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) (int64, error)
	GetProfile(ctx context.Context, viewerID int64, username string) (*store.Profile, error)
	Follow(ctx context.Context, userID, followerID int64) error
	Unfollow(ctx context.Context, userID, followerID int64) error
}

// ArticleStore is the article persistence surface the handlers depend on.
type ArticleStore interface {
	GetBySlug(ctx context.Context, viewerID int64, slug string) (*store.ArticleDetails, error)
	GetByID(ctx context.Context, viewerID, id int64) (*store.ArticleDetails, error)
	List(ctx context.Context, viewerID int64, limit, offset int64) ([]store.ArticleDetails, error)
	Feed(ctx context.Context, userID int64, limit, offset int64) ([]store.ArticleDetails, error)
	Create(ctx context.Context, authorID int64, title, description, body string, tags []string) (int64, error)
	Update(ctx context.Context, id int64, slug string, title, description, body *string, tags []string) error
	Delete(ctx context.Context, id int64) (int64, error)
	Favorite(ctx context.Context, userID, articleID int64) error
	Unfavorite(ctx context.Context, userID, articleID int64) error
}

// CommentStore is the comment persistence surface the handlers depend on.
type CommentStore interface {
	GetByID(ctx context.Context, viewerID, commentID int64) (*store.CommentDetails, error)
	ListBySlug(ctx context.Context, viewerID int64, slug string) ([]store.CommentDetails, error)
	Create(ctx context.Context, articleID, userID int64, body string) (int64, error)
	Delete(ctx context.Context, commentID int64) (int64, error)
}

// TagStore is the tag persistence surface the handlers depend on.
type TagStore interface {
	List(ctx context.Context) ([]string, error)
}

// HealthChecker reports database connectivity for the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Users    UserStore
	Articles ArticleStore
	Comments CommentStore
	Tags     TagStore
	DB       HealthChecker
	Version  string
}

// Server is the HTTP API server for Conduit.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	users    UserStore
	articles ArticleStore
	comments CommentStore
	tags     TagStore
	db       HealthChecker
	version  string
	server   *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Users == nil || deps.Articles == nil || deps.Comments == nil || deps.Tags == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}

	return &Server{
		cfg:      deps.Config,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		users:    deps.Users,
		articles: deps.Articles,
		comments: deps.Comments,
		tags:     deps.Tags,
		db:       deps.DB,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server. It waits up to 10 seconds
// for in-flight requests to complete, then forcefully closes remaining
// connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
