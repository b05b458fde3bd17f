package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgard/huddle/internal/group"
	"github.com/alecgard/huddle/internal/realtime"
	"github.com/alecgard/huddle/internal/task"
)

// fakeHub captures published events per group.
type fakeHub struct {
	mu     sync.Mutex
	events map[string][]realtime.Event
}

func newFakeHub() *fakeHub {
	return &fakeHub{events: make(map[string][]realtime.Event)}
}

func (f *fakeHub) Publish(groupID string, e realtime.Event) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[groupID] = append(f.events[groupID], e)
	return 1, 0
}

func TestDispatcherEventShapes(t *testing.T) {
	hub := newFakeHub()
	d := NewDispatcher(hub, nil, nil)

	g := &group.Group{ID: "g1", Name: "Chores", LeaderID: "u1", MemberIDs: []string{"u1"}}
	d.GroupCreated(g)
	d.MemberJoined("g1", "u2")

	tk := &task.Task{ID: "t1", GroupID: "g1", Name: "Dishes"}
	d.TaskCreated(tk)
	d.TaskUpdated(tk)
	d.TaskDeleted("g1", "t1")

	evs := hub.events["g1"]
	require.Len(t, evs, 5)

	assert.Equal(t, TypeGroupCreated, evs[0].Type)
	assert.Equal(t, g, evs[0].Payload)

	assert.Equal(t, TypeUserJoined, evs[1].Type)
	assert.Equal(t, map[string]string{"user_id": "u2", "group_id": "g1"}, evs[1].Payload)

	assert.Equal(t, TypeTaskCreated, evs[2].Type)
	assert.Equal(t, TypeTaskUpdated, evs[3].Type)

	assert.Equal(t, TypeTaskDeleted, evs[4].Type)
	assert.Equal(t, map[string]string{"task_id": "t1", "group_id": "g1"}, evs[4].Payload)
}

func TestTasksShuffledEmitsOneUpdatePerTask(t *testing.T) {
	hub := newFakeHub()
	d := NewDispatcher(hub, nil, nil)

	tasks := []*task.Task{
		{ID: "t1", GroupID: "g1"},
		{ID: "t2", GroupID: "g1"},
		{ID: "t3", GroupID: "g1"},
	}
	d.TasksShuffled(tasks)

	evs := hub.events["g1"]
	require.Len(t, evs, 3)
	for _, e := range evs {
		assert.Equal(t, TypeTaskUpdated, e.Type)
	}
}

func TestDispatcherObservesPublishes(t *testing.T) {
	hub := newFakeHub()
	var types []string
	d := NewDispatcher(hub, nil, func(eventType string, delivered, dropped int) {
		types = append(types, eventType)
		assert.Equal(t, 1, delivered)
		assert.Equal(t, 0, dropped)
	})

	d.MemberJoined("g1", "u2")
	d.TaskDeleted("g1", "t1")

	assert.Equal(t, []string{TypeUserJoined, TypeTaskDeleted}, types)
}

// fakeInserter records batches handed to the audit writer.
type fakeInserter struct {
	mu      sync.Mutex
	batches [][]Record
	err     error
}

func (f *fakeInserter) BatchInsert(_ context.Context, recs []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]Record, len(recs))
	copy(batch, recs)
	f.batches = append(f.batches, batch)
	return f.err
}

func (f *fakeInserter) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestAuditWriterFlushesOnBatchSize(t *testing.T) {
	store := &fakeInserter{}
	w := NewAuditWriter(store, 2, time.Hour, nil)

	w.Record(Record{Type: TypeTaskCreated, GroupID: "g1"})
	assert.Equal(t, 0, store.batchCount())

	w.Record(Record{Type: TypeTaskUpdated, GroupID: "g1"})
	require.Equal(t, 1, store.batchCount())
	assert.Len(t, store.batches[0], 2)
}

func TestAuditWriterFlushesOnStop(t *testing.T) {
	store := &fakeInserter{}
	w := NewAuditWriter(store, 100, time.Hour, nil)

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	w.Record(Record{Type: TypeUserJoined, GroupID: "g1"})
	w.Stop()
	<-done

	require.Equal(t, 1, store.batchCount())
	assert.Len(t, store.batches[0], 1)
}

func TestDispatcherRecordsAudit(t *testing.T) {
	hub := newFakeHub()
	store := &fakeInserter{}
	w := NewAuditWriter(store, 1, time.Hour, nil)
	d := NewDispatcher(hub, w, nil)

	d.TaskCreated(&task.Task{ID: "t1", GroupID: "g1", Name: "Dishes"})

	require.Equal(t, 1, store.batchCount())
	rec := store.batches[0][0]
	assert.Equal(t, TypeTaskCreated, rec.Type)
	assert.Equal(t, "g1", rec.GroupID)
	assert.Contains(t, string(rec.Payload), `"Dishes"`)
	assert.False(t, rec.Timestamp.IsZero())
}
