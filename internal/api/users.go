package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/conduitapp/conduit/internal/auth"
	"github.com/conduitapp/conduit/internal/store"
)

// userResponse is the authenticated user envelope payload.
type userResponse struct {
	Email    string  `json:"email"`
	Token    string  `json:"token"`
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

// registerRequest is the POST /api/users body.
type registerRequest struct {
	User struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"user"`
}

// loginRequest is the POST /api/users/login body.
type loginRequest struct {
	User struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"user"`
}

// updateUserRequest is the PUT /api/user body. Absent fields stay
// unchanged.
type updateUserRequest struct {
	User struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
		Bio      *string `json:"bio"`
		Image    *string `json:"image"`
	} `json:"user"`
}

// tokenTTL returns the configured token lifetime.
func (s *Server) tokenTTL() time.Duration {
	if s.secCfg.JWT.TokenTTLDays > 0 {
		return time.Duration(s.secCfg.JWT.TokenTTLDays) * 24 * time.Hour
	}
	return auth.DefaultTokenTTL
}

// respondUser issues a fresh token for the user and writes the user
// envelope.
func (s *Server) respondUser(w http.ResponseWriter, r *http.Request, status int, u *store.User) {
	token, err := auth.GenerateToken(u.ID, s.secCfg.JWT.Secret, s.tokenTTL())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, status, map[string]any{"user": userResponse{
		Email:    u.Email,
		Token:    token,
		Username: u.Username,
		Bio:      u.Bio,
		Image:    u.Image,
	}})
}

// handleRegister creates a new user account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	username := strings.TrimSpace(req.User.Username)
	email := strings.TrimSpace(req.User.Email)
	if username == "" || email == "" || req.User.Password == "" {
		writeValidationError(w, "username, email, and password are required")
		return
	}

	hash, err := auth.HashPassword(req.User.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	u, err := s.users.Register(r.Context(), username, email, hash)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.logger.Info("user registered", "user_id", u.ID, "request_id", requestID(r))
	s.respondUser(w, r, http.StatusCreated, &u)
}

// handleLogin authenticates a user by email and password.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	u, err := s.users.GetByEmail(r.Context(), strings.TrimSpace(req.User.Email))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if u == nil {
		s.respondError(w, r, auth.ErrInvalidCredentials)
		return
	}

	ok, err := auth.VerifyPassword(req.User.Password, u.PasswordHash)
	if err != nil || !ok {
		s.respondError(w, r, auth.ErrInvalidCredentials)
		return
	}

	s.respondUser(w, r, http.StatusOK, u)
}

// handleCurrentUser returns the authenticated user.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetByID(r.Context(), userID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if u == nil {
		writeNotFound(w, "user not found")
		return
	}
	s.respondUser(w, r, http.StatusOK, u)
}

// handleUpdateUser applies a partial update to the authenticated user.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	id := userID(r)
	if req.User.Password != nil {
		if *req.User.Password == "" {
			writeValidationError(w, "password must not be empty")
			return
		}
		hash, err := auth.HashPassword(*req.User.Password)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if _, err := s.users.UpdatePassword(r.Context(), id, hash); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	u, err := s.users.Update(r.Context(), id,
		req.User.Username, req.User.Email, req.User.Bio, req.User.Image)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondUser(w, r, http.StatusOK, &u)
}
