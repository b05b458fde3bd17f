package group

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// inviteCodeAttempts bounds the regenerate-on-collision loop when minting an
// invite code. With a 62^10 space a single retry is already vanishingly rare.
const inviteCodeAttempts = 5

// Store provides database operations for groups and their membership.
//
// Membership is a single group_members join table, so "the group's member
// set" and "the user's group list" are two reads of the same rows and cannot
// drift apart. Every multi-row write runs in one transaction.
type Store struct {
	pool      *pgxpool.Pool
	linkBase  string
	inviteTTL time.Duration
}

// NewStore creates a new group store backed by the given connection pool.
// linkBase and inviteTTL control the invites the store mints.
func NewStore(pool *pgxpool.Pool, linkBase string, inviteTTL time.Duration) *Store {
	return &Store{pool: pool, linkBase: linkBase, inviteTTL: inviteTTL}
}

const groupColumns = `id, name, leader_id, invite_code, invite_link, invite_expires_at, created_at, updated_at`

func scanGroup(scan func(dest ...any) error) (*Group, error) {
	g := &Group{}
	err := scan(&g.ID, &g.Name, &g.LeaderID, &g.InviteCode, &g.InviteLink,
		&g.InviteExpiresAt, &g.CreatedAt, &g.UpdatedAt, &g.MemberIDs)
	if err != nil {
		return nil, err
	}
	if g.MemberIDs == nil {
		g.MemberIDs = []string{}
	}
	return g, nil
}

// groupQuery selects a group row with its aggregated member ids.
const groupQuery = `
	SELECT g.id, g.name, g.leader_id, g.invite_code, g.invite_link,
	       g.invite_expires_at, g.created_at, g.updated_at,
	       (SELECT coalesce(array_agg(gm.user_id ORDER BY gm.joined_at), '{}')
	        FROM group_members gm WHERE gm.group_id = g.id) AS member_ids
	FROM groups g`

// Create inserts a new group led by leaderID, minting a fresh invite. The
// group row and the leader's membership row commit in one transaction, so a
// reader can never observe a group without its leader in the member set.
func (s *Store) Create(ctx context.Context, name, leaderID string) (*Group, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		inv, err := mintInvite(s.linkBase, s.inviteTTL)
		if err != nil {
			return nil, err
		}

		g, err := s.createOnce(ctx, name, leaderID, inv)
		if isInviteCodeCollision(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, errors.New("could not allocate a unique invite code")
}

func (s *Store) createOnce(ctx context.Context, name, leaderID string, inv Invite) (*Group, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	g := &Group{MemberIDs: []string{leaderID}}
	err = tx.QueryRow(ctx,
		`INSERT INTO groups (name, leader_id, invite_code, invite_link, invite_expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+groupColumns,
		name, leaderID, inv.Code, inv.Link, inv.ExpiresAt,
	).Scan(&g.ID, &g.Name, &g.LeaderID, &g.InviteCode, &g.InviteLink,
		&g.InviteExpiresAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`,
		g.ID, leaderID,
	)
	if err != nil {
		return nil, fmt.Errorf("adding leader membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing group create: %w", err)
	}
	return g, nil
}

// GetByID retrieves a group and its member set.
func (s *Store) GetByID(ctx context.Context, id string) (*Group, error) {
	g, err := scanGroup(func(dest ...any) error {
		return s.pool.QueryRow(ctx, groupQuery+` WHERE g.id = $1`, id).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting group by id: %w", err)
	}
	return g, nil
}

// IsMember reports whether userID is in the group's member set. Returns
// ErrNotFound when the group id does not resolve.
func (s *Store) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var groupExists, isMember bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1),
		        EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID,
	).Scan(&groupExists, &isMember)
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	if !groupExists {
		return false, ErrNotFound
	}
	return isMember, nil
}

// AddMember inserts userID into the group's member set. The membership row is
// the single source of truth for both directions of the relation, so one
// insert keeps group and user views consistent. Concurrent adds of the same
// user are serialized by the primary key; the loser gets ErrAlreadyMember.
func (s *Store) AddMember(ctx context.Context, groupID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`,
		groupID, userID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrAlreadyMember
			case "23503":
				// FK violation: either the group or the user is missing.
				if strings.Contains(pgErr.ConstraintName, "user") {
					return fmt.Errorf("adding member: %w", err)
				}
				return ErrNotFound
			}
		}
		return fmt.Errorf("adding member: %w", err)
	}
	return nil
}

// MemberIDs returns the ids of the group's current members.
func (s *Store) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var exists bool
	var ids []string
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1),
		        (SELECT coalesce(array_agg(user_id ORDER BY joined_at), '{}')
		         FROM group_members WHERE group_id = $1)`,
		groupID,
	).Scan(&exists, &ids)
	if err != nil {
		return nil, fmt.Errorf("listing member ids: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return ids, nil
}

// ListMembers returns the member profiles for a group.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]*Member, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.username, u.name, u.email
		 FROM group_members gm JOIN users u ON gm.user_id = u.id
		 WHERE gm.group_id = $1
		 ORDER BY gm.joined_at`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.ID, &m.Username, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListForUser returns every group the user belongs to.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Group, error) {
	rows, err := s.pool.Query(ctx,
		groupQuery+`
		 JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.user_id = $1
		 ORDER BY gm.joined_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing groups for user: %w", err)
	}
	defer rows.Close()

	groups := []*Group{}
	for rows.Next() {
		g, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// RefreshInvite mints a fresh invite for the group, invalidating the previous
// code immediately.
func (s *Store) RefreshInvite(ctx context.Context, groupID string) (*Group, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		inv, err := mintInvite(s.linkBase, s.inviteTTL)
		if err != nil {
			return nil, err
		}

		tag, err := s.pool.Exec(ctx,
			`UPDATE groups
			 SET invite_code = $1, invite_link = $2, invite_expires_at = $3, updated_at = now()
			 WHERE id = $4`,
			inv.Code, inv.Link, inv.ExpiresAt, groupID,
		)
		if isInviteCodeCollision(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("refreshing invite: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrNotFound
		}
		return s.GetByID(ctx, groupID)
	}
	return nil, errors.New("could not allocate a unique invite code")
}

// RedeemInvite resolves an invite code and admits userID to the group it
// belongs to. Redemption does not consume the code; distinct users may redeem
// the same code until it expires. Expiry is checked lazily here, never swept.
func (s *Store) RedeemInvite(ctx context.Context, code, userID string) (*Group, error) {
	g, err := scanGroup(func(dest ...any) error {
		return s.pool.QueryRow(ctx, groupQuery+` WHERE g.invite_code = $1`, code).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("resolving invite code: %w", err)
	}

	if inviteExpired(time.Now(), g.InviteExpiresAt) {
		return nil, ErrInviteExpired
	}

	if err := s.AddMember(ctx, g.ID, userID); err != nil {
		return nil, err
	}

	return s.GetByID(ctx, g.ID)
}

func isInviteCodeCollision(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" &&
		strings.Contains(pgErr.ConstraintName, "invite_code")
}
