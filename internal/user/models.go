package user

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Validation errors returned by ValidateCreate.
var (
	ErrUsernameInvalid = errors.New("username must be 6-20 characters")
	ErrNameInvalid     = errors.New("name must be at most 30 characters")
	ErrEmailRequired   = errors.New("email is required")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters")
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrDuplicate is returned when the username or email is already taken.
var ErrDuplicate = errors.New("username or email already in use")

// User represents a registered account. Group membership is not stored on the
// user record; it lives in the group_members join table owned by the group
// store, so the two directions of the relation can never disagree.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateUserInput holds the fields required to register a new user.
type CreateUserInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session represents an active login session.
type Session struct {
	TokenHash string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidateCreate checks registration input against the account constraints.
func ValidateCreate(in CreateUserInput) error {
	if l := utf8.RuneCountInString(strings.TrimSpace(in.Username)); l < 6 || l > 20 {
		return ErrUsernameInvalid
	}
	if utf8.RuneCountInString(in.Name) > 30 {
		return ErrNameInvalid
	}
	if strings.TrimSpace(in.Email) == "" {
		return ErrEmailRequired
	}
	if len(in.Password) < 8 {
		return ErrPasswordTooWeak
	}
	return nil
}
