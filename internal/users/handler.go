package users

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
	"github.com/signhub/signhub/internal/twofactor"
)

// sessionPendingEnrollment keeps the App enrollment between the setup and
// profile requests.
const sessionPendingEnrollment = "tfa_pending"

// Handler manages user endpoints.
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

// MountRoutes registers self-service user routes. Callers mount it behind
// RequireActor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Put("/profile", h.editProfile)
	r.Get("/profile/setup", h.setup)
	r.Post("/profile/recovery/generate", h.generateRecovery)
	r.Get("/profile/recovery", h.showRecovery)
	r.Post("/password/force", h.forceChangePassword)
}

// MountAdminRoutes registers user administration routes. Callers mount it
// behind RequireActor and RequireSuperAdmin.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Put("/{id}", h.adminEdit)
}

type userView struct {
	ID                       int64     `json:"userId"`
	UserName                 string    `json:"userName"`
	Email                    string    `json:"email"`
	UserTypeID               int       `json:"userTypeId"`
	GroupID                  int64     `json:"groupId"`
	IsPasswordChangeRequired bool      `json:"isPasswordChangeRequired"`
	Retired                  bool      `json:"retired"`
	TwoFactorTypeID          int       `json:"twoFactorTypeId"`
	CreatedAt                time.Time `json:"createdAt"`
}

func viewOf(u *User) userView {
	return userView{
		ID:                       u.ID,
		UserName:                 u.UserName,
		Email:                    u.Email,
		UserTypeID:               u.UserTypeID,
		GroupID:                  u.GroupID,
		IsPasswordChangeRequired: u.IsPasswordChangeRequired,
		Retired:                  u.Retired,
		TwoFactorTypeID:          int(u.TwoFactor.Type),
		CreatedAt:                u.CreatedAt,
	}
}

type createRequest struct {
	UserName string `json:"userName" validate:"required,max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Email             string `json:"email" validate:"omitempty,email"`
	TwoFactorTypeID   int    `json:"twoFactorTypeId"`
	Password          string `json:"password"`
	NewPassword       string `json:"newPassword"`
	RetypeNewPassword string `json:"retypeNewPassword"`
	Code              string `json:"code"`
}

type forcePasswordRequest struct {
	NewPassword       string `json:"newPassword"`
	RetypeNewPassword string `json:"retypeNewPassword"`
}

type adminEditRequest struct {
	Email                    *string `json:"email" validate:"omitempty,email"`
	Retired                  *bool   `json:"retired"`
	IsPasswordChangeRequired *bool   `json:"isPasswordChangeRequired"`
	NewPassword              string  `json:"newPassword"`
	RetypeNewPassword        string  `json:"retypeNewPassword"`
	DisableTwoFactor         bool    `json:"disableTwoFactor"`
}

type setupResponse struct {
	URI       string `json:"uri"`
	QRCodeURL string `json:"qrCodeUrl"`
}

type codesResponse struct {
	Codes []string `json:"codes"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	users, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, viewOf(&users[i]))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Create(r.Context(), actor, CreateInput{UserName: req.UserName, Email: req.Email, Password: req.Password})
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewOf(user))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), actor.UserID)
	if err != nil {
		h.fail(w, "load current user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(user))
}

func (h *Handler) setup(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	enrollment, err := h.service.TwoFactorSetup(r.Context(), actor.UserID)
	if err != nil {
		h.fail(w, "two factor setup", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.keepEnrollment(sess, enrollment)
	}
	httpx.JSON(w, http.StatusOK, setupResponse{URI: enrollment.URI, QRCodeURL: enrollment.QRCodeURL})
}

func (h *Handler) editProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	target, err := twofactor.ParseFactorType(req.TwoFactorTypeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	var enrollment twofactor.Enrollment
	if sess != nil {
		sess.GetJSON(sessionPendingEnrollment, &enrollment)
	}
	user, err := h.service.EditProfile(r.Context(), actor.UserID, ProfileInput{
		Email:          req.Email,
		TwoFactorType:  target,
		OldPassword:    req.Password,
		NewPassword:    req.NewPassword,
		RetypePassword: req.RetypeNewPassword,
		Code:           req.Code,
	}, &enrollment)
	if sess != nil {
		h.keepEnrollment(sess, enrollment)
	}
	if err != nil {
		h.fail(w, "edit profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(user))
}

func (h *Handler) generateRecovery(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	codes, err := h.service.GenerateRecoveryCodes(r.Context(), actor.UserID)
	if err != nil {
		h.fail(w, "generate recovery codes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, codesResponse{Codes: codes})
}

func (h *Handler) showRecovery(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	codes, err := h.service.RecoveryCodes(r.Context(), actor.UserID)
	if err != nil {
		h.fail(w, "show recovery codes", err)
		return
	}
	if codes == nil {
		codes = []string{}
	}
	httpx.JSON(w, http.StatusOK, codesResponse{Codes: codes})
}

func (h *Handler) forceChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req forcePasswordRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ForceChangePassword(r.Context(), actor.UserID, req.NewPassword, req.RetypeNewPassword); err != nil {
		h.fail(w, "force change password", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) adminEdit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.RespondError(w, shared.InvalidInput("userId", "User id must be a number"))
		return
	}
	var req adminEditRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.AdminEdit(r.Context(), actor, userID, AdminEditInput{
		Email:                    req.Email,
		Retired:                  req.Retired,
		IsPasswordChangeRequired: req.IsPasswordChangeRequired,
		NewPassword:              req.NewPassword,
		RetypePassword:           req.RetypeNewPassword,
		DisableTwoFactor:         req.DisableTwoFactor,
	})
	if err != nil {
		h.fail(w, "admin edit user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(user))
}

func (h *Handler) keepEnrollment(sess *shared.Session, enrollment twofactor.Enrollment) {
	if !enrollment.Pending() {
		sess.Delete(sessionPendingEnrollment)
		return
	}
	if err := sess.SetJSON(sessionPendingEnrollment, enrollment); err != nil {
		h.logger.Error("store pending enrollment", slog.Any("error", err))
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (rbac.Actor, bool) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAccessDenied)
	}
	return actor, ok
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
