package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/huddle/internal/events"
)

// EventReader reads back the persisted audit trail.
type EventReader interface {
	ListByGroup(ctx context.Context, groupID string, limit int) ([]events.Record, error)
}

// eventsHandler serves a group's recent activity from the audit trail.
type eventsHandler struct {
	reader EventReader
	groups GroupStore
}

func newEventsHandler(reader EventReader, groups GroupStore) *eventsHandler {
	return &eventsHandler{reader: reader, groups: groups}
}

// ListGroupEvents handles GET /api/v1/groups/{groupID}/events.
func (h *eventsHandler) ListGroupEvents(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, ok := requireMember(w, r, h.groups, groupID); !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	recs, err := h.reader.ListByGroup(r.Context(), groupID, limit)
	if err != nil {
		writeStoreError(w, err, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": recs,
	})
}
