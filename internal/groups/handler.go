package groups

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/signhub/signhub/internal/platform/httpx"
	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
)

// Handler manages group endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers group routes. Callers mount it behind RequireActor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/{id}/members", h.addMember)
	r.Delete("/{id}/members/{userId}", h.removeMember)
}

type groupView struct {
	ID             int64     `json:"groupId"`
	Name           string    `json:"group"`
	IsUserSpecific bool      `json:"isUserSpecific"`
	IsEveryone     bool      `json:"isEveryone"`
	Members        int       `json:"members"`
	CreatedAt      time.Time `json:"createdAt"`
}

type createRequest struct {
	Name string `json:"group" validate:"required,max=50"`
}

type memberRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAccessDenied)
		return
	}
	q := r.URL.Query()
	groups, err := h.service.List(r.Context(), actor, ListFilters{
		Name:                q.Get("name"),
		IncludeUserSpecific: q.Get("userSpecific") == "1",
	})
	if err != nil {
		h.fail(w, "list groups", err)
		return
	}
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, groupView(g))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAccessDenied)
		return
	}
	var req createRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	g, err := h.service.Create(r.Context(), actor, req.Name)
	if err != nil {
		h.fail(w, "create group", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, groupView(g))
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAccessDenied)
		return
	}
	groupID, err := parseID(chi.URLParam(r, "id"), "groupId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req memberRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.AddMember(r.Context(), actor, groupID, req.UserID); err != nil {
		h.fail(w, "add group member", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAccessDenied)
		return
	}
	groupID, err := parseID(chi.URLParam(r, "id"), "groupId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := parseID(chi.URLParam(r, "userId"), "userId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveMember(r.Context(), actor, groupID, userID); err != nil {
		h.fail(w, "remove group member", err)
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

func parseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.InvalidInput(field, "Id must be a positive number")
	}
	return id, nil
}
