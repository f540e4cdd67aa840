package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signhub/signhub/internal/auth"
	"github.com/signhub/signhub/internal/observability"
	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
	"github.com/signhub/signhub/internal/twofactor"
	_ "github.com/signhub/signhub/testing"
)

type emptyAuthRepo struct{}

func (emptyAuthRepo) FindByUserName(context.Context, string) (*auth.User, error) {
	return nil, shared.ErrNotFound
}
func (emptyAuthRepo) FindByID(context.Context, int64) (*auth.User, error) {
	return nil, shared.ErrNotFound
}
func (emptyAuthRepo) UpdatePasswordHash(context.Context, int64, string) error    { return nil }
func (emptyAuthRepo) UpdateRecoveryCodes(context.Context, int64, []string) error { return nil }
func (emptyAuthRepo) CreateSession(context.Context, string, int64, time.Time, string, string) error {
	return nil
}
func (emptyAuthRepo) DeleteSession(context.Context, string) error { return nil }

type denyLoader struct{}

func (denyLoader) ActorForUser(context.Context, int64) (rbac.Actor, error) {
	return rbac.Actor{}, shared.ErrAccessDenied
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &Config{AppEnv: "test", AppRequestTimeout: time.Second, AppRateLimit: 1000}
	sessions := shared.NewSessionManager(client, "signhub_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf")
	logger := NewLogger(cfg)
	tfa := twofactor.NewService(twofactor.Config{}, nil)

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		RBACMiddleware: rbac.Middleware{Loader: denyLoader{}, Logger: logger},
		AuthHandler:    auth.NewHandler(logger, auth.NewService(emptyAuthRepo{}, nil), tfa, nil, sessions, csrf),
		Metrics:        observability.NewMetrics(),
	})
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestCSRFProtectsStateChangingRequests(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookies[0])
	req.Header.Set(shared.CSRFHeader, body["csrfToken"])
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/user/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "Signhub", cfg.Issuer())
	assert.Equal(t, "https://quickchart.io", cfg.QuickChartURL)
	assert.Equal(t, rbac.UserTypeUser, cfg.DefaultUserType)

	t.Setenv("TWOFACTOR_ISSUER", "Lobby Screens")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "Lobby Screens", cfg.Issuer())

	t.Setenv("DEFAULT_USER_TYPE", "9")
	_, err = LoadConfig()
	assert.Error(t, err)
}
