package task

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrNameRequired = errors.New("task name is required")
	ErrNameTooLong  = errors.New("task name must be at most 50 characters")

	// ErrNotFound is returned when the task id does not resolve.
	ErrNotFound = errors.New("task not found")
	// ErrGroupMismatch is returned when the task belongs to a different group
	// than the one named in the request.
	ErrGroupMismatch = errors.New("task does not belong to this group")
	// ErrInvalidAssignee is returned when the assignee is not a member of the
	// task's group.
	ErrInvalidAssignee = errors.New("assignee is not a member of this group")
	// ErrNoMembers is returned by Shuffle when the group has no members to
	// draw from.
	ErrNoMembers = errors.New("group has no members")
	// ErrShuffleFailed is returned when the bulk reassignment could not commit
	// as a whole. No task is left partially updated relative to the others.
	ErrShuffleFailed = errors.New("shuffle failed, no assignments were changed")
)

// Task is a unit of work owned by a group.
type Task struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	IsCompleted bool       `json:"is_completed"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  *string    `json:"assigned_to"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateTaskInput holds the fields for a new task.
type CreateTaskInput struct {
	GroupID     string     `json:"-"`
	CreatedBy   string     `json:"-"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  *string    `json:"assigned_to"`
}

// Optional distinguishes an absent JSON field from an explicit null: absent
// leaves Set false, null sets Set with a nil Value. This is what gives task
// updates their patch semantics.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// UpdateTaskInput is a partial update. Omitted fields are untouched; explicit
// nulls clear the optional fields.
type UpdateTaskInput struct {
	Name        Optional[string]    `json:"name"`
	Description Optional[string]    `json:"description"`
	IsCompleted Optional[bool]      `json:"is_completed"`
	DueDate     Optional[time.Time] `json:"due_date"`
	AssignedTo  Optional[string]    `json:"assigned_to"`
}

// ValidateName checks a task name against the length constraints.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(trimmed) > 50 {
		return ErrNameTooLong
	}
	return nil
}
