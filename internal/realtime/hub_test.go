package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain reads every buffered message from a client's send channel.
func drain(c *Client) []Event {
	var events []Event
	for {
		select {
		case data := <-c.send:
			var e Event
			if err := json.Unmarshal(data, &e); err == nil {
				events = append(events, e)
			}
		default:
			return events
		}
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, nil, "u1")

	hub.Subscribe(c, "g1")
	hub.Subscribe(c, "g1")

	assert.Equal(t, 1, hub.Subscribers("g1"))

	delivered, dropped := hub.Publish("g1", Event{Type: "taskCreated"})
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, dropped)
	assert.Len(t, drain(c), 1, "re-subscribed client must receive each event once")
}

func TestPublishReachesOnlyRoomSubscribers(t *testing.T) {
	hub := NewHub()
	inRoom := newClient(hub, nil, "u1")
	otherRoom := newClient(hub, nil, "u2")
	noRoom := newClient(hub, nil, "u3")

	hub.Subscribe(inRoom, "g1")
	hub.Subscribe(otherRoom, "g2")

	delivered, _ := hub.Publish("g1", Event{Type: "taskUpdated", Payload: map[string]string{"id": "t1"}})
	require.Equal(t, 1, delivered)

	events := drain(inRoom)
	require.Len(t, events, 1)
	assert.Equal(t, "taskUpdated", events[0].Type)
	assert.Empty(t, drain(otherRoom))
	assert.Empty(t, drain(noRoom))
}

func TestRemoveDropsAllRooms(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, nil, "u1")
	stayer := newClient(hub, nil, "u2")

	hub.Subscribe(c, "g1")
	hub.Subscribe(c, "g2")
	hub.Subscribe(stayer, "g1")

	hub.Remove(c)

	assert.Equal(t, 1, hub.Subscribers("g1"))
	assert.Equal(t, 0, hub.Subscribers("g2"))
	assert.Equal(t, 1, hub.Rooms(), "empty rooms are deleted")

	// A disconnected subscriber receives nothing for later publishes.
	hub.Publish("g1", Event{Type: "taskUpdated"})
	hub.Publish("g2", Event{Type: "taskUpdated"})
	assert.Empty(t, drain(c))
	assert.Len(t, drain(stayer), 1)
}

func TestUnsubscribeSingleRoom(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, nil, "u1")

	hub.Subscribe(c, "g1")
	hub.Subscribe(c, "g2")
	hub.Unsubscribe(c, "g1")

	hub.Publish("g1", Event{Type: "taskCreated"})
	hub.Publish("g2", Event{Type: "taskCreated"})

	events := drain(c)
	require.Len(t, events, 1)
}

func TestPublishDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, nil, "u1")
	hub.Subscribe(c, "g1")

	for i := 0; i < sendBufferSize; i++ {
		delivered, dropped := hub.Publish("g1", Event{Type: "taskUpdated"})
		assert.Equal(t, 1, delivered)
		assert.Equal(t, 0, dropped)
	}

	delivered, dropped := hub.Publish("g1", Event{Type: "taskUpdated"})
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 1, dropped, "full buffer must not block the publisher")
}

func TestConcurrentSubscribePublish(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	clients := make([]*Client, 50)
	for i := range clients {
		clients[i] = newClient(hub, nil, fmt.Sprintf("u%d", i))
	}

	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.Subscribe(c, "g1")
			hub.Subscribe(c, "g1")
		}(c)
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Publish("g1", Event{Type: "taskUpdated"})
		}()
	}
	wg.Wait()

	assert.Equal(t, len(clients), hub.Subscribers("g1"))

	delivered, dropped := hub.Publish("g1", Event{Type: "taskCreated"})
	assert.Equal(t, len(clients), delivered+dropped)
}
