package permissions

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/signhub/signhub/internal/platform/httpx"
	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
)

// Manager is the service contract used by the HTTP handler.
type Manager interface {
	ListPermissions(ctx context.Context, actor rbac.Actor, kind string, objectID int64, opts ListOptions) ([]*Record, error)
	UpdatePermissions(ctx context.Context, actor rbac.Actor, req UpdateRequest) error
}

// Handler exposes the permissions grid over JSON.
type Handler struct {
	logger   *slog.Logger
	service  Manager
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service Manager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers permission routes. Callers mount it behind RequireActor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{entity}/{id}", h.list)
	r.Post("/{entity}/{id}", h.update)
}

// flag accepts numeric, boolean and "on" style checkbox values. Any non-zero
// number is set.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	value := strings.ToLower(string(bytes.Trim(data, `"`)))
	switch value {
	case "true", "on", "yes":
		*f = true
		return nil
	case "", "false", "off", "no", "null":
		*f = false
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return shared.InvalidInput("groupIds", "Permission flags must be numeric or boolean")
	}
	*f = n != 0
	return nil
}

type grantPayload struct {
	View   flag `json:"view"`
	Edit   flag `json:"edit"`
	Delete flag `json:"delete"`
}

type updatePayload struct {
	GroupIDs map[string]grantPayload `json:"groupIds"`
	OwnerID  int64                   `json:"ownerId" validate:"gte=0"`
	Cascade  flag                    `json:"cascade"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAccessDenied)
		return
	}
	objectID, err := parseObjectID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	opts := ListOptions{
		Name:     strings.TrimSpace(q.Get("name")),
		SetOnly:  q.Get("setOnly") == "1",
		SortDesc: strings.EqualFold(q.Get("sort"), "desc"),
	}
	records, err := h.service.ListPermissions(r.Context(), actor, chi.URLParam(r, "entity"), objectID, opts)
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	if records == nil {
		records = []*Record{}
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAccessDenied)
		return
	}
	objectID, err := parseObjectID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload updatePayload
	if err := httpx.DecodeAndValidate(r, h.validate, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	groups := make(GroupUpdates, len(payload.GroupIDs))
	for raw, g := range payload.GroupIDs {
		groupID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || groupID <= 0 {
			httpx.RespondError(w, shared.InvalidInput("groupIds", "Group ids must be positive integers"))
			return
		}
		groups[groupID] = Grant{View: bool(g.View), Edit: bool(g.Edit), Delete: bool(g.Delete)}
	}
	req := UpdateRequest{
		Kind:     chi.URLParam(r, "entity"),
		ObjectID: objectID,
		Groups:   groups,
		OwnerID:  payload.OwnerID,
		Cascade:  bool(payload.Cascade),
	}
	if err := h.service.UpdatePermissions(r.Context(), actor, req); err != nil {
		h.fail(w, "update permissions", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseObjectID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, shared.InvalidInput("objectId", "Object id must be a number")
	}
	return id, nil
}

var _ Manager = (*Service)(nil)
var _ json.Unmarshaler = (*flag)(nil)
