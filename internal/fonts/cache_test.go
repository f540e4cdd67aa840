package fonts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signhub/signhub/internal/content"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
}

type stubLister struct {
	fonts []content.Media
	calls int
}

func (s *stubLister) ListFonts(ctx context.Context) ([]content.Media, error) {
	s.calls++
	return s.fonts, nil
}

func TestStylesheetIsCachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	calls := 0
	build := func(context.Context) (string, error) {
		calls++
		return "css", nil
	}

	css, err := cache.Stylesheet(ctx, build)
	require.NoError(t, err)
	assert.Equal(t, "css", css)
	_, err = cache.Stylesheet(ctx, build)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	before, err := cache.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))
	after, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	_, err = cache.Stylesheet(ctx, build)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestNilCacheBuildsEveryTime(t *testing.T) {
	var cache *Cache
	css, err := cache.Stylesheet(context.Background(), func(context.Context) (string, error) { return "x", nil })
	require.NoError(t, err)
	assert.Equal(t, "x", css)
	assert.NoError(t, cache.Invalidate(context.Background()))
}

func TestHandlerServesStylesheet(t *testing.T) {
	lister := &stubLister{fonts: []content.Media{{MediaID: 4, Name: "Roboto", MediaType: content.MediaTypeFont}}}
	h := NewHandler(nil, newTestCache(t), lister)
	r := chi.NewRouter()
	h.MountRoutes(r)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fonts.css", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `font-family: "Roboto"`)
		assert.Contains(t, rr.Body.String(), `/library/download/4`)
	}
	assert.Equal(t, 1, lister.calls)
}
