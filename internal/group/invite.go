package group

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// inviteAlphabet is the symbol set invite codes are drawn from. 62^10 possible
// codes makes guessing infeasible within an invite's lifetime.
const (
	inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	inviteCodeLen  = 10
)

// Invite describes a group's currently active invite.
type Invite struct {
	Code      string    `json:"code"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewInviteCode generates a random invite code using crypto/rand.
func NewInviteCode() (string, error) {
	var b strings.Builder
	b.Grow(inviteCodeLen)
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := 0; i < inviteCodeLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating invite code: %w", err)
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// InviteLink derives the shareable join URL for a code.
func InviteLink(linkBase, code string) string {
	return strings.TrimSuffix(linkBase, "/") + "/join/" + code
}

// mintInvite produces a fresh invite valid for ttl from now.
func mintInvite(linkBase string, ttl time.Duration) (Invite, error) {
	code, err := NewInviteCode()
	if err != nil {
		return Invite{}, err
	}
	return Invite{
		Code:      code,
		Link:      InviteLink(linkBase, code),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}
