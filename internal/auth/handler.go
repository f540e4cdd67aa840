package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/signhub/signhub/internal/platform/httpx"
	"github.com/signhub/signhub/internal/shared"
	"github.com/signhub/signhub/internal/twofactor"
	"github.com/signhub/signhub/jobs"
)

// sessionTwoFactorUser holds the user id between the password and code steps.
const sessionTwoFactorUser = "tfa_user"

// MailQueue submits outbound mail.
type MailQueue interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	twoFactor      *twofactor.Service
	mail           MailQueue
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. mail may be nil when the Email
// factor is not offered.
func NewHandler(logger *slog.Logger, service *Service, twoFactor *twofactor.Service, mail MailQueue, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		twoFactor:      twoFactor,
		mail:           mail,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      httpx.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.handleCSRF)
	r.Post("/login", h.handleLogin)
	r.Post("/login/verify", h.handleVerify)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	UserName string `json:"userName" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	Code string `json:"code" validate:"required"`
}

type loginResponse struct {
	UserID    int64  `json:"userId,omitempty"`
	TwoFactor string `json:"twoFactor,omitempty"`
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	var req loginRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), strings.TrimSpace(req.UserName), req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	switch user.TwoFactor.Type {
	case twofactor.FactorApp:
		sess.Set(sessionTwoFactorUser, strconv.FormatInt(user.ID, 10))
		httpx.JSON(w, http.StatusAccepted, loginResponse{TwoFactor: twofactor.FactorApp.String()})
	case twofactor.FactorEmail:
		if err := h.mailCode(r.Context(), user); err != nil {
			h.logger.Error("send two factor email", slog.Int64("user_id", user.ID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		sess.Set(sessionTwoFactorUser, strconv.FormatInt(user.ID, 10))
		httpx.JSON(w, http.StatusAccepted, loginResponse{TwoFactor: twofactor.FactorEmail.String()})
	default:
		h.completeLogin(r, sess, user)
		httpx.JSON(w, http.StatusOK, loginResponse{UserID: user.ID})
	}
}

func (h *Handler) mailCode(ctx context.Context, user *User) error {
	if h.mail == nil {
		return shared.Misconfigured("Email two factor authentication is not available")
	}
	code, err := h.twoFactor.EmailCode(user.TwoFactor)
	if err != nil {
		return err
	}
	_, err = h.mail.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      user.Email,
		Subject: "Your access code",
		Body:    "Your two factor access code is " + code + ".",
	})
	return err
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.Get(sessionTwoFactorUser) == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Login required")
		return
	}
	var req verifyRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := strconv.ParseInt(sess.Get(sessionTwoFactorUser), 10, 64)
	if err != nil {
		sess.Delete(sessionTwoFactorUser)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Login required")
		return
	}
	user, err := h.service.UserByID(r.Context(), userID)
	if err != nil || !user.Active() {
		sess.Delete(sessionTwoFactorUser)
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}

	code := strings.TrimSpace(req.Code)
	if !h.twoFactor.VerifyCode(code, twofactor.Enrollment{}, user.TwoFactor) {
		if !h.twoFactor.RedeemRecoveryCode(&user.TwoFactor, code) {
			httpx.RespondError(w, shared.InvalidInput("code", "Access Code is incorrect"))
			return
		}
		if err := h.service.SaveRecoveryCodes(r.Context(), user.ID, user.TwoFactor.RecoveryCodes); err != nil {
			h.logger.Error("consume recovery code", slog.Int64("user_id", user.ID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		h.logger.Info("recovery code used", slog.Int64("user_id", user.ID), slog.Int("remaining", len(user.TwoFactor.RecoveryCodes)))
	}

	sess.Delete(sessionTwoFactorUser)
	h.completeLogin(r, sess, user)
	httpx.JSON(w, http.StatusOK, loginResponse{UserID: user.ID})
}

func (h *Handler) completeLogin(r *http.Request, sess *shared.Session, user *User) {
	h.sessionManager.Renew(sess)
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.NoContent(w)
}
