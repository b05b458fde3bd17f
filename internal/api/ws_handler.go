package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/alecgard/huddle/internal/auth"
	"github.com/alecgard/huddle/internal/realtime"
)

// wsHandler upgrades authenticated requests to websocket connections and
// hands them to the hub.
type wsHandler struct {
	hub     *realtime.Hub
	checker realtime.MembershipChecker

	// onConnect and onDisconnect, if non-nil, are invoked as connections come
	// and go so the caller can track gauges.
	onConnect    func()
	onDisconnect func()

	upgrader websocket.Upgrader
}

func newWSHandler(hub *realtime.Hub, checker realtime.MembershipChecker, allowedOrigins []string, onConnect, onDisconnect func()) *wsHandler {
	allowAll := false
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = struct{}{}
	}

	return &wsHandler{
		hub:          hub,
		checker:      checker,
		onConnect:    onConnect,
		onDisconnect: onDisconnect,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				_, ok := originSet[origin]
				return ok
			},
		},
	}
}

// Serve handles GET /ws. The session middleware has already authenticated the
// request; browsers cannot set an Authorization header on a websocket dial, so
// the token also rides in the "token" query parameter.
func (h *wsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		slog.Warn("websocket upgrade failed", "error", err, "user_id", caller.ID)
		return
	}

	client := realtime.ServeConn(h.hub, h.checker, conn, caller.ID)
	if h.onConnect != nil {
		h.onConnect()
	}
	slog.Info("websocket connected", "user_id", caller.ID, "client_id", client.ID)

	go func() {
		<-client.Done()
		if h.onDisconnect != nil {
			h.onDisconnect()
		}
		slog.Info("websocket disconnected", "user_id", caller.ID, "client_id", client.ID)
	}()
}
