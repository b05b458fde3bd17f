package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists the event audit trail.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new event store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// BatchInsert writes a batch of records in a single statement.
func (s *Store) BatchInsert(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO events (event_type, group_id, payload, occurred_at) VALUES `)

	args := make([]any, 0, len(recs)*4)
	for i, rec := range recs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
		args = append(args, rec.Type, rec.GroupID, rec.Payload, rec.Timestamp)
	}

	_, err := s.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("inserting event records: %w", err)
	}
	return nil
}

// ListByGroup returns the most recent audit records for a group, newest first.
func (s *Store) ListByGroup(ctx context.Context, groupID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT event_type, group_id, payload, occurred_at
		 FROM events WHERE group_id = $1
		 ORDER BY occurred_at DESC LIMIT $2`,
		groupID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing event records: %w", err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Type, &rec.GroupID, &rec.Payload, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning event record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
