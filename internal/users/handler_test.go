package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signhub/signhub/internal/platform/httpx"
	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
	"github.com/signhub/signhub/internal/twofactor"
)

type handlerHarness struct {
	t      *testing.T
	router chi.Router
	sess   *shared.Session
	actor  rbac.Actor
}

func newHandlerHarness(t *testing.T, f *fixture, actor rbac.Actor) *handlerHarness {
	t.Helper()
	manager := shared.NewSessionManager(nil, "test_session", "secret", time.Hour, false)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	h := &handlerHarness{t: t, sess: sess, actor: actor}
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithSession(r.Context(), h.sess)
			ctx = rbac.ContextWithActor(ctx, h.actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	handler := NewHandler(nil, f.svc)
	handler.MountRoutes(router)
	router.With(rbac.Middleware{}.RequireSuperAdmin).Group(handler.MountAdminRoutes)
	h.router = router
	return h
}

func (h *handlerHarness) do(method, path, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func TestHandlerAppEnrollmentRoundTripsThroughSession(t *testing.T) {
	f := newFixture("", alice())
	h := newHandlerHarness(t, f, plain)

	rr := h.do(http.MethodGet, "/profile/setup", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var setup map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &setup))
	assert.True(t, strings.HasPrefix(setup["uri"], "otpauth://totp/"))
	assert.NotContains(t, rr.Body.String(), "pendingSecret")

	var enrollment twofactor.Enrollment
	require.True(t, h.sess.GetJSON(sessionPendingEnrollment, &enrollment))
	require.True(t, enrollment.Pending())

	body := `{"email":"alice@example.com","twoFactorTypeId":2,"code":"` + currentCode(t, enrollment.PendingSecret) + `"}`
	rr = h.do(http.MethodPut, "/profile", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var view map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.EqualValues(t, 2, view["twoFactorTypeId"])
	assert.Equal(t, "", h.sess.Get(sessionPendingEnrollment))
	assert.Equal(t, enrollment.PendingSecret, f.repo.users[2].TwoFactor.Secret)
}

func TestHandlerProfileRejectsUnknownFactor(t *testing.T) {
	f := newFixture("", alice())
	h := newHandlerHarness(t, f, plain)

	rr := h.do(http.MethodPut, "/profile", `{"email":"alice@example.com","twoFactorTypeId":7}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, "twoFactorTypeId", problem.Field)
}

func TestHandlerRecoveryCodes(t *testing.T) {
	u := alice()
	u.TwoFactor = twofactor.State{Type: twofactor.FactorApp, Secret: knownSecret}
	f := newFixture("", u)
	h := newHandlerHarness(t, f, plain)

	rr := h.do(http.MethodGet, "/profile/recovery", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"codes":[]}`, rr.Body.String())

	rr = h.do(http.MethodPost, "/profile/recovery/generate", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var generated codesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &generated))
	assert.Len(t, generated.Codes, 4)
}

func TestHandlerForcePasswordMismatch(t *testing.T) {
	f := newFixture("", alice())
	h := newHandlerHarness(t, f, plain)

	rr := h.do(http.MethodPost, "/password/force", `{"newPassword":"a","retypeNewPassword":"b"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = h.do(http.MethodPost, "/password/force", `{"newPassword":"a","retypeNewPassword":"a"}`)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandlerAdminRoutes(t *testing.T) {
	u := alice()
	u.TwoFactor = twofactor.State{Type: twofactor.FactorApp, Secret: "S"}
	f := newFixture("", u)

	h := newHandlerHarness(t, f, plain)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, "/2", `{"disableTwoFactor":true}`).Code)

	h.actor = admin
	rr := h.do(http.MethodPut, "/2", `{"disableTwoFactor":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, twofactor.FactorOff, f.repo.users[2].TwoFactor.Type)

	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPut, "/abc", `{}`).Code)

	rr = h.do(http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "admin fixture user 1 does not exist")

	rr = h.do(http.MethodPost, "/", `{"userName":"carol","password":"pw","email":"not-an-email"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = h.do(http.MethodPost, "/", `{"userName":"carol","password":"pw"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
}
