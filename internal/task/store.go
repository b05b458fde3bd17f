package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for tasks.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new task store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const taskColumns = `id, group_id, name, description, is_completed, due_date, assigned_to, created_by, created_at, updated_at`

func scanTask(scan func(dest ...any) error) (*Task, error) {
	t := &Task{}
	err := scan(&t.ID, &t.GroupID, &t.Name, &t.Description, &t.IsCompleted,
		&t.DueDate, &t.AssignedTo, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// isMemberTx checks group membership inside the caller's transaction so the
// assignee constraint holds against the member set at commit time.
func isMemberTx(ctx context.Context, tx pgx.Tx, groupID, userID string) (bool, error) {
	var ok bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking assignee membership: %w", err)
	}
	return ok, nil
}

// Create inserts a new task. If an assignee is given it must be a current
// member of the owning group; the check and the insert share a transaction.
func (s *Store) Create(ctx context.Context, in CreateTaskInput) (*Task, error) {
	if err := ValidateName(in.Name); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if in.AssignedTo != nil {
		ok, err := isMemberTx(ctx, tx, in.GroupID, *in.AssignedTo)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidAssignee
		}
	}

	t, err := scanTask(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`INSERT INTO tasks (group_id, name, description, due_date, assigned_to, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+taskColumns,
			in.GroupID, strings.TrimSpace(in.Name), in.Description, in.DueDate, in.AssignedTo, in.CreatedBy,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing task create: %w", err)
	}
	return t, nil
}

// GetByID retrieves a task by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting task by id: %w", err)
	}
	return t, nil
}

// ListByGroup returns all tasks owned by a group, newest first.
func (s *Store) ListByGroup(ctx context.Context, groupID string) ([]*Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE group_id = $1 ORDER BY created_at DESC, id DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Update applies a partial update to the task with the given id. Only fields
// present in the patch are touched; explicit nulls clear the optional fields.
// groupID must match the task's stored group.
func (s *Store) Update(ctx context.Context, taskID, groupID string, in UpdateTaskInput) (*Task, error) {
	if in.Name.Set {
		if in.Name.Value == nil {
			return nil, ErrNameRequired
		}
		if err := ValidateName(*in.Name.Value); err != nil {
			return nil, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var storedGroupID string
	err = tx.QueryRow(ctx,
		`SELECT group_id FROM tasks WHERE id = $1 FOR UPDATE`, taskID,
	).Scan(&storedGroupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("locking task: %w", err)
	}
	if storedGroupID != groupID {
		return nil, ErrGroupMismatch
	}

	if in.AssignedTo.Set && in.AssignedTo.Value != nil {
		ok, err := isMemberTx(ctx, tx, storedGroupID, *in.AssignedTo.Value)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidAssignee
		}
	}

	var setClauses []string
	var args []any
	argIdx := 1

	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if in.Name.Set {
		add("name", strings.TrimSpace(*in.Name.Value))
	}
	if in.Description.Set {
		add("description", in.Description.Value)
	}
	if in.IsCompleted.Set && in.IsCompleted.Value != nil {
		add("is_completed", *in.IsCompleted.Value)
	}
	if in.DueDate.Set {
		add("due_date", in.DueDate.Value)
	}
	if in.AssignedTo.Set {
		add("assigned_to", in.AssignedTo.Value)
	}

	if len(setClauses) == 0 {
		// Nothing to change; return the task as stored.
		t, err := scanTask(func(dest ...any) error {
			return tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID).Scan(dest...)
		})
		if err != nil {
			return nil, fmt.Errorf("reading task: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("committing task update: %w", err)
		}
		return t, nil
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, taskID)
	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE id = $%d RETURNING `+taskColumns,
		strings.Join(setClauses, ", "), argIdx,
	)

	t, err := scanTask(func(dest ...any) error {
		return tx.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing task update: %w", err)
	}
	return t, nil
}

// Delete removes a task by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Shuffle reassigns every task in the group to an independently, uniformly
// random member of the group. The member set is read inside the transaction,
// so the draws reflect the membership at commit time. The assignments are
// computed first, then every update commits in a single transaction: either
// all reassignments land or none do. Returns the updated tasks in no
// guaranteed order.
func (s *Store) Shuffle(ctx context.Context, groupID string) ([]*Task, error) {
	tasks, err := s.shuffleTx(ctx, groupID)
	if err != nil {
		if errors.Is(err, ErrNoMembers) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrShuffleFailed, err)
	}
	return tasks, nil
}

func (s *Store) shuffleTx(ctx context.Context, groupID string) ([]*Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Holding FOR SHARE on the membership rows keeps a concurrent join or
	// leave from landing between the read and the reassignments.
	memberRows, err := tx.Query(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1 FOR SHARE`, groupID)
	if err != nil {
		return nil, fmt.Errorf("locking group members: %w", err)
	}
	var memberIDs []string
	for memberRows.Next() {
		var id string
		if err := memberRows.Scan(&id); err != nil {
			memberRows.Close()
			return nil, fmt.Errorf("scanning member id: %w", err)
		}
		memberIDs = append(memberIDs, id)
	}
	memberRows.Close()
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member ids: %w", err)
	}
	if len(memberIDs) == 0 {
		return nil, ErrNoMembers
	}

	rows, err := tx.Query(ctx, `SELECT id FROM tasks WHERE group_id = $1 FOR UPDATE`, groupID)
	if err != nil {
		return nil, fmt.Errorf("locking group tasks: %w", err)
	}
	var taskIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning task id: %w", err)
		}
		taskIDs = append(taskIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task ids: %w", err)
	}

	assignments := assignRandom(taskIDs, memberIDs, nil)

	updated := make([]*Task, 0, len(taskIDs))
	for _, id := range taskIDs {
		t, err := scanTask(func(dest ...any) error {
			return tx.QueryRow(ctx,
				`UPDATE tasks SET assigned_to = $1, updated_at = now()
				 WHERE id = $2
				 RETURNING `+taskColumns,
				assignments[id], id,
			).Scan(dest...)
		})
		if err != nil {
			return nil, fmt.Errorf("reassigning task %s: %w", id, err)
		}
		updated = append(updated, t)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing shuffle: %w", err)
	}
	return updated, nil
}
