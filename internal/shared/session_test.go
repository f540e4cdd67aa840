package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendingValue struct {
	Secret string `json:"secret"`
}

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "signhub_session", "secret", time.Hour, false), mr
}

func TestSessionRoundTripsThroughRedis(t *testing.T) {
	manager, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("42")
	require.NoError(t, sess.SetJSON("tfa_pending", pendingValue{Secret: "ABC"}))

	rr := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	assert.True(t, mr.Exists("session:"+sess.ID))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	loaded, err := manager.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "42", loaded.User())
	var pending pendingValue
	require.True(t, loaded.GetJSON("tfa_pending", &pending))
	assert.Equal(t, "ABC", pending.Secret)
	assert.False(t, loaded.GetJSON("missing", &pending))
}

func TestDestroyedSessionIsRemoved(t *testing.T) {
	manager, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, manager.Commit(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), sess))
	require.True(t, mr.Exists("session:"+sess.ID))

	manager.Destroy(sess)
	rr := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	assert.False(t, mr.Exists("session:"+sess.ID))
	require.Len(t, rr.Result().Cookies(), 1)
	assert.Equal(t, -1, rr.Result().Cookies()[0].MaxAge)
}

func TestCSRFTokenLifecycle(t *testing.T) {
	manager, _ := newTestManager(t)
	csrf := NewCSRFManager("csrf-secret")
	ctx := context.Background()
	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, "anything"), ErrCSRFTokenMissing)

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, token+"x"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "Passwords do not match", UserSafeMessage(InvalidInput("password", "Passwords do not match")))
	assert.Equal(t, "Cannot change owner on this Object", UserSafeMessage(Misconfigured("Cannot change owner on this Object")))
	assert.Equal(t, "Something went wrong, please try again.", UserSafeMessage(assert.AnError))
	assert.Empty(t, UserSafeMessage(nil))
}

func TestCSRFTokenIsBoundToSession(t *testing.T) {
	manager, _ := newTestManager(t)
	csrf := NewCSRFManager("csrf-secret")
	ctx := context.Background()

	first, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	second, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(ctx, first)
	require.NoError(t, err)

	second.Set(CSRFSessionKey, token)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, second, token), ErrCSRFTokenMismatch)

	fresh, err := csrf.EnsureToken(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
	assert.NoError(t, csrf.VerifyToken(ctx, second, fresh))
}

func TestRenewMovesSessionToFreshID(t *testing.T) {
	manager, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("k", "v")
	rr := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rr.Result().Cookies()[0])
	loaded, err := manager.Load(ctx, req)
	require.NoError(t, err)
	oldID := loaded.ID
	loaded.Set(CSRFSessionKey, "stale")

	manager.Renew(loaded)
	require.NotEqual(t, oldID, loaded.ID)
	require.NoError(t, manager.Commit(ctx, httptest.NewRecorder(), req, loaded))

	assert.False(t, mr.Exists("session:"+oldID))
	assert.True(t, mr.Exists("session:"+loaded.ID))
	assert.Equal(t, "v", loaded.Get("k"))
	assert.Empty(t, loaded.Get(CSRFSessionKey))
}
