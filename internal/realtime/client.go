package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum inbound message size; clients only send small control frames.
	maxMessageSize = 512
	// Outbound buffer per connection. A subscriber that falls this far
	// behind starts missing events.
	sendBufferSize = 64
	// Bound on the membership lookup a subscribe frame triggers.
	subscribeTimeout = 5 * time.Second
)

// MembershipChecker authorizes subscribe requests. Implementations return
// group.ErrNotFound-style errors for unknown groups.
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Client is one live websocket connection and its room subscriptions.
type Client struct {
	ID     string
	UserID string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	// joined is the set of room ids this client is in. Guarded by hub.mu.
	joined map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		joined: make(map[string]struct{}),
	}
}

// ServeConn starts the read and write pumps for an upgraded connection and
// returns the client. The client removes itself from every room when the
// connection closes; callers never unsubscribe explicitly.
func ServeConn(hub *Hub, checker MembershipChecker, conn *websocket.Conn, userID string) *Client {
	c := newClient(hub, conn, userID)
	go c.writePump()
	go c.readPump(checker)
	return c
}

// Done is closed when the connection has been torn down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// clientFrame is an inbound control message.
type clientFrame struct {
	Action  string `json:"action"` // "subscribe" or "unsubscribe"
	GroupID string `json:"group_id"`
}

func (c *Client) readPump(checker MembershipChecker) {
	defer func() {
		c.hub.Remove(c)
		_ = c.conn.Close()
		close(c.done)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed unexpectedly", "client", c.ID, "error", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("invalid_frame", "could not parse message")
			continue
		}
		c.handleFrame(checker, frame)
	}
}

func (c *Client) handleFrame(checker MembershipChecker, frame clientFrame) {
	switch frame.Action {
	case "subscribe":
		ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
		defer cancel()

		ok, err := checker.IsMember(ctx, frame.GroupID, c.UserID)
		if err != nil {
			c.sendError("not_found", "group not found")
			return
		}
		if !ok {
			c.sendError("forbidden", "you are not a member of this group")
			return
		}
		c.hub.Subscribe(c, frame.GroupID)
		c.sendEvent(Event{Type: "subscribed", Payload: map[string]string{"group_id": frame.GroupID}})
	case "unsubscribe":
		c.hub.Unsubscribe(c, frame.GroupID)
		c.sendEvent(Event{Type: "unsubscribed", Payload: map[string]string{"group_id": frame.GroupID}})
	default:
		c.sendError("invalid_frame", "unknown action "+frame.Action)
	}
}

func (c *Client) sendEvent(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	c.sendEvent(Event{Type: "error", Payload: map[string]string{"code": code, "message": message}})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
