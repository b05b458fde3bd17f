package group

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests run against a real Postgres with the migrations applied and are
// skipped unless HUDDLE_TEST_DATABASE_URL is set:
//
//	HUDDLE_TEST_DATABASE_URL=postgres://localhost:5432/huddle_test?sslmode=disable go test ./internal/group/
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("HUDDLE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("HUDDLE_TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func createTestUser(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	suffix := uuid.NewString()[:8]
	var id string
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (username, name, email, password_hash)
		 VALUES ($1, $2, $3, 'x') RETURNING id`,
		"user-"+suffix, "Test User", suffix+"@example.com",
	).Scan(&id)
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return id
}

func TestInviteRoundTrip(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, "https://huddle.test/join", time.Hour)
	ctx := context.Background()

	leader := createTestUser(t, pool)
	joiner := createTestUser(t, pool)

	g, err := store.Create(ctx, "Road Trip", leader)
	if err != nil {
		t.Fatalf("creating group: %v", err)
	}
	if g.InviteCode == "" || g.InviteLink == "" {
		t.Fatalf("expected an invite to be minted at creation, got %+v", g)
	}

	joined, err := store.RedeemInvite(ctx, g.InviteCode, joiner)
	if err != nil {
		t.Fatalf("redeeming invite: %v", err)
	}
	if joined.ID != g.ID {
		t.Errorf("redeem resolved group %s, want %s", joined.ID, g.ID)
	}
	if len(joined.MemberIDs) != 2 {
		t.Errorf("expected 2 members after redeem, got %v", joined.MemberIDs)
	}

	if _, err := store.RedeemInvite(ctx, g.InviteCode, joiner); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("second redeem by the same user: got %v, want ErrAlreadyMember", err)
	}

	refreshed, err := store.RefreshInvite(ctx, g.ID)
	if err != nil {
		t.Fatalf("refreshing invite: %v", err)
	}
	if refreshed.InviteCode == g.InviteCode {
		t.Error("refresh did not rotate the invite code")
	}
	if _, err := store.RedeemInvite(ctx, g.InviteCode, createTestUser(t, pool)); !errors.Is(err, ErrInviteNotFound) {
		t.Errorf("redeeming the rotated-out code: got %v, want ErrInviteNotFound", err)
	}
}

// Concurrent redeems by distinct users must all commit their own member row:
// the membership PK makes redemption idempotent per user without serializing
// different users against each other.
func TestRedeemInvite_Concurrent(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, "https://huddle.test/join", time.Hour)
	ctx := context.Background()

	leader := createTestUser(t, pool)
	g, err := store.Create(ctx, "Potluck", leader)
	if err != nil {
		t.Fatalf("creating group: %v", err)
	}

	const joiners = 8
	ids := make([]string, joiners)
	for i := range ids {
		ids[i] = createTestUser(t, pool)
	}

	var wg sync.WaitGroup
	errs := make([]error, joiners)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.RedeemInvite(ctx, g.InviteCode, ids[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent redeem %d failed: %v", i, err)
		}
	}

	members, err := store.MemberIDs(ctx, g.ID)
	if err != nil {
		t.Fatalf("listing member ids: %v", err)
	}
	if len(members) != joiners+1 {
		t.Fatalf("expected %d members, got %d", joiners+1, len(members))
	}
	seen := make(map[string]bool, len(members))
	for _, id := range members {
		if seen[id] {
			t.Fatalf("duplicate member row for %s", id)
		}
		seen[id] = true
	}
}

// Two racing redeems for the same user resolve through the membership PK:
// exactly one inserts the row, the other observes ErrAlreadyMember.
func TestRedeemInvite_ConcurrentSameUser(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, "https://huddle.test/join", time.Hour)
	ctx := context.Background()

	leader := createTestUser(t, pool)
	g, err := store.Create(ctx, "Board Games", leader)
	if err != nil {
		t.Fatalf("creating group: %v", err)
	}
	joiner := createTestUser(t, pool)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.RedeemInvite(ctx, g.InviteCode, joiner)
		}(i)
	}
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyMember):
			already++
		default:
			t.Fatalf("unexpected redeem error: %v", err)
		}
	}
	if ok != 1 || already != 1 {
		t.Fatalf("got %d successes and %d ErrAlreadyMember, want 1 and 1", ok, already)
	}

	members, err := store.MemberIDs(ctx, g.ID)
	if err != nil {
		t.Fatalf("listing member ids: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected leader plus one member, got %v", members)
	}
}
