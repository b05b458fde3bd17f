package user

import (
	"context"

	"github.com/alecgard/huddle/internal/auth"
)

// AuthAdapter wraps a user Store to satisfy auth.SessionLookup.
type AuthAdapter struct {
	store *Store
}

// NewAuthAdapter creates an adapter that bridges user.Store to auth.SessionLookup.
func NewAuthAdapter(store *Store) *AuthAdapter {
	return &AuthAdapter{store: store}
}

// LookupSession resolves a session token and converts the user to auth.Identity.
func (a *AuthAdapter) LookupSession(ctx context.Context, token string) (*auth.Identity, error) {
	u, err := a.store.GetSessionUser(ctx, token)
	if err != nil {
		return nil, err
	}
	return &auth.Identity{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
	}, nil
}
