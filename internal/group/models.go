package group

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrNameRequired = errors.New("group name is required")
	ErrNameTooLong  = errors.New("group name must be at most 30 characters")

	// ErrNotFound is returned when the group id does not resolve.
	ErrNotFound = errors.New("group not found")
	// ErrAlreadyMember is returned when the user is already in the member set.
	ErrAlreadyMember = errors.New("user is already a member of this group")
	// ErrInviteNotFound is returned when no group holds the invite code.
	ErrInviteNotFound = errors.New("invite code not found")
	// ErrInviteExpired is returned when the invite's validity window has passed.
	ErrInviteExpired = errors.New("invite code has expired")
)

// Group is a shared task space. The leader is fixed at creation and is always
// a member. At most one invite code is active at a time; issuing a new one
// invalidates the old code immediately.
type Group struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	LeaderID        string    `json:"leader_id"`
	MemberIDs       []string  `json:"member_ids"`
	InviteCode      string    `json:"invite_code"`
	InviteLink      string    `json:"invite_link"`
	InviteExpiresAt time.Time `json:"invite_expires_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Member is a user's public profile as seen in a group's member list.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// ValidateName checks a group display name against the length constraints.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(trimmed) > 30 {
		return ErrNameTooLong
	}
	return nil
}

// inviteExpired reports whether an invite whose window ends at expiresAt is
// expired at instant now. The boundary instant itself counts as expired.
func inviteExpired(now, expiresAt time.Time) bool {
	return !now.Before(expiresAt)
}
