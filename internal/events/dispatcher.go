package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alecgard/huddle/internal/group"
	"github.com/alecgard/huddle/internal/realtime"
	"github.com/alecgard/huddle/internal/task"
)

// Event type names on the wire. Clients switch on these.
const (
	TypeGroupCreated = "groupCreated"
	TypeUserJoined   = "userJoined"
	TypeTaskCreated  = "taskCreated"
	TypeTaskUpdated  = "taskUpdated"
	TypeTaskDeleted  = "taskDeleted"
)

// Publisher fans an event out to a group's room.
type Publisher interface {
	Publish(groupID string, e realtime.Event) (delivered, dropped int)
}

// Recorder accepts audit records. The audit trail is best-effort and must
// never block or fail a request.
type Recorder interface {
	Record(rec Record)
}

// Dispatcher turns successful domain mutations into typed events and hands
// them to the broadcast hub. Callers invoke it only after the mutation has
// committed, never speculatively.
type Dispatcher struct {
	hub   Publisher
	audit Recorder
	// onPublish, if non-nil, observes each publish for metrics.
	onPublish func(eventType string, delivered, dropped int)
}

// NewDispatcher creates a dispatcher. audit and onPublish may be nil.
func NewDispatcher(hub Publisher, audit Recorder, onPublish func(eventType string, delivered, dropped int)) *Dispatcher {
	return &Dispatcher{hub: hub, audit: audit, onPublish: onPublish}
}

// GroupCreated announces a new group to its room. At creation time the only
// member is the leader, who is unlikely to be subscribed yet; the event exists
// for clients that race the create response with their subscription.
func (d *Dispatcher) GroupCreated(g *group.Group) {
	d.dispatch(g.ID, realtime.Event{Type: TypeGroupCreated, Payload: g})
}

// MemberJoined announces a successful invite redemption.
func (d *Dispatcher) MemberJoined(groupID, userID string) {
	d.dispatch(groupID, realtime.Event{
		Type:    TypeUserJoined,
		Payload: map[string]string{"user_id": userID, "group_id": groupID},
	})
}

// TaskCreated announces a new task with its full record.
func (d *Dispatcher) TaskCreated(t *task.Task) {
	d.dispatch(t.GroupID, realtime.Event{Type: TypeTaskCreated, Payload: t})
}

// TaskUpdated announces an updated task with its full record.
func (d *Dispatcher) TaskUpdated(t *task.Task) {
	d.dispatch(t.GroupID, realtime.Event{Type: TypeTaskUpdated, Payload: t})
}

// TaskDeleted announces a deletion. Only the ids are carried; the record no
// longer exists.
func (d *Dispatcher) TaskDeleted(groupID, taskID string) {
	d.dispatch(groupID, realtime.Event{
		Type:    TypeTaskDeleted,
		Payload: map[string]string{"task_id": taskID, "group_id": groupID},
	})
}

// TasksShuffled announces a bulk reassignment as one taskUpdated event per
// task, so clients reuse their single-task update path.
func (d *Dispatcher) TasksShuffled(tasks []*task.Task) {
	for _, t := range tasks {
		d.TaskUpdated(t)
	}
}

func (d *Dispatcher) dispatch(groupID string, e realtime.Event) {
	delivered, dropped := d.hub.Publish(groupID, e)
	if d.onPublish != nil {
		d.onPublish(e.Type, delivered, dropped)
	}

	if d.audit != nil {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			slog.Error("failed to marshal audit payload", "type", e.Type, "error", err)
			return
		}
		d.audit.Record(Record{
			Type:      e.Type,
			GroupID:   groupID,
			Payload:   payload,
			Timestamp: time.Now(),
		})
	}
}
