package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alecgard/huddle/internal/auth"
	"github.com/alecgard/huddle/internal/user"
)

// UserStore is the slice of the user store the API needs.
type UserStore interface {
	Create(ctx context.Context, in user.CreateUserInput) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	CreateSession(ctx context.Context, userID string) (string, *user.Session, error)
	DeleteSession(ctx context.Context, plaintext string) error
}

// authHandler groups registration and session HTTP handlers.
type authHandler struct {
	users UserStore
}

func newAuthHandler(users UserStore) *authHandler {
	return &authHandler{users: users}
}

// sessionResponse is returned by register and login.
type sessionResponse struct {
	User      *user.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Register handles POST /api/v1/auth/register.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req user.CreateUserInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if err := user.ValidateCreate(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	u, err := h.users.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			writeError(w, http.StatusConflict, "conflict", "username or email already in use")
			return
		}
		writeStoreError(w, err, "failed to create user")
		return
	}

	token, sess, err := h.users.CreateSession(r.Context(), u.ID)
	if err != nil {
		writeStoreError(w, err, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		User:      u,
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Login handles POST /api/v1/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Same answer as a bad password so the response does not reveal
			// which accounts exist.
			writeError(w, http.StatusUnauthorized, "invalid_credential", "invalid email or password")
			return
		}
		writeStoreError(w, err, "failed to look up user")
		return
	}

	if !user.CheckPassword(u, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credential", "invalid email or password")
		return
	}

	token, sess, err := h.users.CreateSession(r.Context(), u.ID)
	if err != nil {
		writeStoreError(w, err, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User:      u,
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if err := h.users.DeleteSession(r.Context(), token); err != nil {
		writeStoreError(w, err, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	u, err := h.users.GetByID(r.Context(), caller.ID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		writeStoreError(w, err, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, u)
}
