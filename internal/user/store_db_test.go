package user

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Runs against a real Postgres with the migrations applied; skipped unless
// HUDDLE_TEST_DATABASE_URL is set.
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

func TestCreate_TrimsWhitespace(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, time.Hour)
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	u, err := store.Create(ctx, CreateUserInput{
		Username: "  pad-" + suffix + "  ",
		Name:     " Padded Name ",
		Email:    "  " + suffix + "@example.com ",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if u.Username != "pad-"+suffix {
		t.Errorf("stored username %q, want it trimmed", u.Username)
	}
	if u.Name != "Padded Name" {
		t.Errorf("stored name %q, want it trimmed", u.Name)
	}
	if u.Email != suffix+"@example.com" {
		t.Errorf("stored email %q, want it trimmed", u.Email)
	}

	got, err := store.GetByEmail(ctx, suffix+"@example.com")
	if err != nil {
		t.Fatalf("looking up by trimmed email: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("lookup resolved %s, want %s", got.ID, u.ID)
	}
}
