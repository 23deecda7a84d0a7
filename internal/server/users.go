// ABOUTME: User registration and login handlers issuing bearer tokens
// ABOUTME: Passwords are bcrypt-hashed; tokens are HS256 JWTs

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partforge/partforge/internal/auth"
	"github.com/partforge/partforge/internal/store"
)

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	FullAccess  bool      `json:"full_access"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u *store.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		FullAccess:  u.FullAccess,
		CreatedAt:   u.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeValidation(w, "email and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.writeError(w, err)
		return
	}

	s.audit.Record(r.Context(), &user.ID, "registerUser")
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeReason(w, http.StatusUnauthorized, "InvalidCredentials", "")
			return
		}
		s.writeError(w, err)
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		writeReason(w, http.StatusUnauthorized, "InvalidCredentials", "")
		return
	}

	token, err := s.verifier.Generate(user.ID, user.FullAccess, s.tokenTTL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.audit.Record(r.Context(), &user.ID, "login")
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  toUserResponse(user),
	})
}
