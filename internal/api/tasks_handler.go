package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/huddle/internal/group"
	"github.com/alecgard/huddle/internal/task"
)

// TaskStore is the slice of the task store the API needs.
type TaskStore interface {
	Create(ctx context.Context, in task.CreateTaskInput) (*task.Task, error)
	GetByID(ctx context.Context, id string) (*task.Task, error)
	ListByGroup(ctx context.Context, groupID string) ([]*task.Task, error)
	Update(ctx context.Context, taskID, groupID string, in task.UpdateTaskInput) (*task.Task, error)
	Delete(ctx context.Context, id string) error
	Shuffle(ctx context.Context, groupID string) ([]*task.Task, error)
}

// EventSink receives domain events after the corresponding store call has
// committed. The dispatcher fans them out to websocket rooms and the audit trail.
type EventSink interface {
	GroupCreated(g *group.Group)
	MemberJoined(groupID, userID string)
	TaskCreated(t *task.Task)
	TaskUpdated(t *task.Task)
	TaskDeleted(groupID, taskID string)
	TasksShuffled(tasks []*task.Task)
}

// tasksHandler groups task HTTP handlers.
type tasksHandler struct {
	tasks  TaskStore
	groups GroupStore
	events EventSink
}

func newTasksHandler(tasks TaskStore, groups GroupStore, events EventSink) *tasksHandler {
	return &tasksHandler{tasks: tasks, groups: groups, events: events}
}

// CreateTask handles POST /api/v1/groups/{groupID}/tasks.
func (h *tasksHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	caller, ok := requireMember(w, r, h.groups, groupID)
	if !ok {
		return
	}

	var req task.CreateTaskInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if err := task.ValidateName(req.Name); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	req.GroupID = groupID
	req.CreatedBy = caller.ID

	t, err := h.tasks.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, task.ErrInvalidAssignee) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_assignee", "assignee is not a member of this group")
			return
		}
		writeStoreError(w, err, "failed to create task")
		return
	}

	h.events.TaskCreated(t)
	writeJSON(w, http.StatusCreated, t)
}

// ListTasks handles GET /api/v1/groups/{groupID}/tasks.
func (h *tasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, ok := requireMember(w, r, h.groups, groupID); !ok {
		return
	}

	tasks, err := h.tasks.ListByGroup(r.Context(), groupID)
	if err != nil {
		writeStoreError(w, err, "failed to list tasks")
		return
	}

	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
	})
}

// UpdateTask handles PUT /api/v1/groups/{groupID}/tasks/{taskID}.
func (h *tasksHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	taskID := chi.URLParam(r, "taskID")
	if _, ok := requireMember(w, r, h.groups, groupID); !ok {
		return
	}

	var req task.UpdateTaskInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if req.Name.Set {
		if req.Name.Value == nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", "task name cannot be null")
			return
		}
		if err := task.ValidateName(*req.Name.Value); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
	}

	t, err := h.tasks.Update(r.Context(), taskID, groupID, req)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		case errors.Is(err, task.ErrGroupMismatch):
			writeError(w, http.StatusNotFound, "not_found", "task does not belong to this group")
		case errors.Is(err, task.ErrInvalidAssignee):
			writeError(w, http.StatusUnprocessableEntity, "invalid_assignee", "assignee is not a member of this group")
		default:
			writeStoreError(w, err, "failed to update task")
		}
		return
	}

	h.events.TaskUpdated(t)
	writeJSON(w, http.StatusOK, t)
}

// DeleteTask handles DELETE /api/v1/tasks/{taskID}. The group is resolved from
// the task itself; the caller must be a member of that group.
func (h *tasksHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	t, err := h.tasks.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		writeStoreError(w, err, "failed to get task")
		return
	}

	if _, ok := requireMember(w, r, h.groups, t.GroupID); !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), taskID); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		writeStoreError(w, err, "failed to delete task")
		return
	}

	h.events.TaskDeleted(t.GroupID, taskID)
	w.WriteHeader(http.StatusNoContent)
}

// ShuffleTasks handles POST /api/v1/groups/{groupID}/tasks/shuffle.
func (h *tasksHandler) ShuffleTasks(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, ok := requireMember(w, r, h.groups, groupID); !ok {
		return
	}

	tasks, err := h.tasks.Shuffle(r.Context(), groupID)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrNoMembers):
			writeError(w, http.StatusUnprocessableEntity, "no_members", "group has no members to assign")
		case errors.Is(err, task.ErrShuffleFailed):
			writeError(w, http.StatusConflict, "shuffle_failed", "shuffle failed, no assignments were changed")
		default:
			writeStoreError(w, err, "failed to shuffle tasks")
		}
		return
	}

	h.events.TasksShuffled(tasks)

	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
	})
}
