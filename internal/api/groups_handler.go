package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/huddle/internal/auth"
	"github.com/alecgard/huddle/internal/group"
)

// GroupStore is the slice of the group store the API needs.
type GroupStore interface {
	Create(ctx context.Context, name, leaderID string) (*group.Group, error)
	GetByID(ctx context.Context, id string) (*group.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	ListMembers(ctx context.Context, groupID string) ([]*group.Member, error)
	ListForUser(ctx context.Context, userID string) ([]*group.Group, error)
	RefreshInvite(ctx context.Context, groupID string) (*group.Group, error)
	RedeemInvite(ctx context.Context, code, userID string) (*group.Group, error)
}

// groupsHandler groups group and membership HTTP handlers.
type groupsHandler struct {
	groups GroupStore
	events EventSink
}

func newGroupsHandler(groups GroupStore, events EventSink) *groupsHandler {
	return &groupsHandler{groups: groups, events: events}
}

// requireMember resolves the caller and checks membership of the group named
// in the URL. It writes the error response itself; callers bail out on ok=false.
func requireMember(w http.ResponseWriter, r *http.Request, groups GroupStore, groupID string) (*auth.Identity, bool) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return nil, false
	}

	ok, err := groups.IsMember(r.Context(), groupID, caller.ID)
	if err != nil {
		if errors.Is(err, group.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "group not found")
			return nil, false
		}
		writeStoreError(w, err, "failed to check membership")
		return nil, false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "not a member of this group")
		return nil, false
	}
	return caller, true
}

// CreateGroup handles POST /api/v1/groups.
func (h *groupsHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if err := group.ValidateName(req.Name); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	g, err := h.groups.Create(r.Context(), req.Name, caller.ID)
	if err != nil {
		writeStoreError(w, err, "failed to create group")
		return
	}

	h.events.GroupCreated(g)
	writeJSON(w, http.StatusCreated, g)
}

// GetGroup handles GET /api/v1/groups/{groupID}.
func (h *groupsHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, ok := requireMember(w, r, h.groups, groupID); !ok {
		return
	}

	g, err := h.groups.GetByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, group.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "group not found")
			return
		}
		writeStoreError(w, err, "failed to get group")
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// JoinGroup handles POST /api/v1/groups/join.
func (h *groupsHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "invite code is required")
		return
	}

	g, err := h.groups.RedeemInvite(r.Context(), req.Code, caller.ID)
	if err != nil {
		switch {
		case errors.Is(err, group.ErrInviteNotFound):
			writeError(w, http.StatusNotFound, "invite_not_found", "invite code not found")
		case errors.Is(err, group.ErrInviteExpired):
			writeError(w, http.StatusGone, "invite_expired", "invite code has expired")
		case errors.Is(err, group.ErrAlreadyMember):
			writeError(w, http.StatusConflict, "already_member", "already a member of this group")
		default:
			writeStoreError(w, err, "failed to join group")
		}
		return
	}

	h.events.MemberJoined(g.ID, caller.ID)
	writeJSON(w, http.StatusOK, g)
}

// RefreshInvite handles POST /api/v1/groups/{groupID}/invite.
func (h *groupsHandler) RefreshInvite(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, ok := requireMember(w, r, h.groups, groupID); !ok {
		return
	}

	g, err := h.groups.RefreshInvite(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, group.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "group not found")
			return
		}
		writeStoreError(w, err, "failed to refresh invite")
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// ListMembers handles GET /api/v1/groups/{groupID}/members.
func (h *groupsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, ok := requireMember(w, r, h.groups, groupID); !ok {
		return
	}

	members, err := h.groups.ListMembers(r.Context(), groupID)
	if err != nil {
		writeStoreError(w, err, "failed to list members")
		return
	}

	if members == nil {
		members = []*group.Member{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
	})
}

// ListUserGroups handles GET /api/v1/users/{userID}/groups.
// A user may only list their own groups.
func (h *groupsHandler) ListUserGroups(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID != caller.ID {
		writeError(w, http.StatusForbidden, "forbidden", "cannot list another user's groups")
		return
	}

	groups, err := h.groups.ListForUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "failed to list groups")
		return
	}

	if groups == nil {
		groups = []*group.Group{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
	})
}
