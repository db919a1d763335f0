package assetcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapFetcher struct {
	mu    sync.Mutex
	body  map[string]string
	fail  map[string]error
	calls []string
}

func (f *mapFetcher) Fetch(ctx context.Context, asset string) (Entry, error) {
	f.mu.Lock()
	f.calls = append(f.calls, asset)
	f.mu.Unlock()
	if err := f.fail[asset]; err != nil {
		return Entry{}, err
	}
	b, ok := f.body[asset]
	if !ok {
		return Entry{}, fmt.Errorf("fetch %s: http 404", asset)
	}
	return Entry{Status: http.StatusOK, ContentType: "text/plain", Body: []byte(b)}, nil
}

func manifest() Manifest {
	return Manifest{Name: "flipbook-v2", Assets: []string{"/", "/static/app.js", "/static/style.css"}}
}

func fullFetcher() *mapFetcher {
	return &mapFetcher{body: map[string]string{
		"/":                 "<html>",
		"/static/app.js":    "console.log(1)",
		"/static/style.css": "body{}",
	}}
}

func TestInstallStoresEveryAsset(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(manifest(), store, fullFetcher())

	require.NoError(t, m.Install(context.Background()))
	assert.True(t, m.Installed())

	n, err := store.Len(context.Background(), "flipbook-v2")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	e, ok, err := store.Get(context.Background(), "flipbook-v2", "/static/app.js")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "console.log(1)", string(e.Body))
	assert.Equal(t, "/static/app.js", e.URL)
}

func TestInstallIsAllOrNothing(t *testing.T) {
	store := NewMemoryStore()
	f := fullFetcher()
	f.fail = map[string]error{"/static/style.css": errors.New("connection refused")}
	m := NewManager(manifest(), store, f)

	err := m.Install(context.Background())
	assert.ErrorContains(t, err, "connection refused")
	assert.False(t, m.Installed())
	n, err := store.Len(context.Background(), "flipbook-v2")
	require.NoError(t, err)
	assert.Zero(t, n)

	// a later install retries from scratch
	f.fail = nil
	require.NoError(t, m.Install(context.Background()))
	n, err = store.Len(context.Background(), "flipbook-v2")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestInstallFailureKeepsPreviousCache(t *testing.T) {
	store := NewMemoryStore()
	f := fullFetcher()
	m := NewManager(manifest(), store, f)
	require.NoError(t, m.Install(context.Background()))

	f.body["/static/app.js"] = "console.log(2)"
	f.fail = map[string]error{"/": errors.New("timeout")}
	require.Error(t, m.Install(context.Background()))

	e, ok, err := store.Get(context.Background(), "flipbook-v2", "/static/app.js")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "console.log(1)", string(e.Body))
}

func TestInstallEmptyManifest(t *testing.T) {
	m := NewManager(Manifest{Name: "x"}, NewMemoryStore(), fullFetcher())
	assert.ErrorIs(t, m.Install(context.Background()), ErrEmptyManifest)
}

func installed(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(manifest(), NewMemoryStore(), fullFetcher())
	require.NoError(t, m.Install(context.Background()))
	return m
}

func TestMiddlewareHit(t *testing.T) {
	m := installed(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run on a hit")
	})

	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "console.log(1)", rec.Body.String())
}

func TestMiddlewareHeadHitHasNoBody(t *testing.T) {
	m := installed(t)
	rec := httptest.NewRecorder()
	m.Middleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))

	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "6", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.String())
}

func TestMiddlewareMissDoesNotStore(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(manifest(), store, fullFetcher())
	require.NoError(t, m.Install(context.Background()))

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("live"))
	})
	h := m.Middleware(next)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
		assert.Equal(t, "live", rec.Body.String())
	}
	assert.Equal(t, 2, calls)

	n, err := store.Len(context.Background(), "flipbook-v2")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMiddlewareBypass(t *testing.T) {
	m := installed(t)
	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"post", func() *http.Request { return httptest.NewRequest(http.MethodPost, "/", nil) }},
		{"range", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/static/app.js", nil)
			r.Header.Set("Range", "bytes=0-3")
			return r
		}},
		{"no-cache", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/static/app.js", nil)
			r.Header.Set("Cache-Control", "no-cache")
			return r
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
			rec := httptest.NewRecorder()
			m.Middleware(next).ServeHTTP(rec, tt.req())
			assert.True(t, called)
			assert.Empty(t, rec.Header().Get("X-Cache"))
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		switch r.URL.Path {
		case "/static/app.js":
			w.Header().Set("Content-Type", "application/javascript")
			w.Write([]byte("ok"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), srv.URL+"/", 0)
	e, err := f.Fetch(context.Background(), "/static/app.js")
	require.NoError(t, err)
	assert.Equal(t, "/static/app.js", e.URL)
	assert.Equal(t, "application/javascript", e.ContentType)
	assert.Equal(t, "ok", string(e.Body))
	assert.False(t, e.CachedAt.IsZero())

	_, err = f.Fetch(context.Background(), "static/app.js")
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "/missing.js")
	assert.ErrorContains(t, err, "http 404")

	// absolute URLs ignore the base
	e, err = f.Fetch(context.Background(), srv.URL+"/static/app.js")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(e.Body))

	_, err = NewHTTPFetcher(nil, "", 5).Fetch(context.Background(), "/static/app.js")
	assert.ErrorContains(t, err, "without base url")
}

func TestHTTPFetcherHonoursContext(t *testing.T) {
	f := NewHTTPFetcher(nil, "http://127.0.0.1:1", 0.001)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, "/a")
	assert.Error(t, err)
}

func TestServiceWorker(t *testing.T) {
	m := NewManager(manifest(), NewMemoryStore(), fullFetcher())
	rec := httptest.NewRecorder()
	m.ServeServiceWorker(rec, httptest.NewRequest(http.MethodGet, "/sw.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Service-Worker-Allowed"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/javascript"))

	body := rec.Body.String()
	assert.Contains(t, body, `const CACHE_NAME = "flipbook-v2";`)
	assert.Contains(t, body, `const ASSETS = ["/","/static/app.js","/static/style.css"];`)
	assert.Contains(t, body, "cache.addAll(ASSETS)")
	assert.NotContains(t, body, ".pdf")
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := NewRedisStore(url)
	require.NoError(t, err)
	defer s.Close()
	s.prefix = "assetcache-test:"
	ctx := context.Background()
	defer s.client.Del(ctx, s.key("v1"))

	require.NoError(t, s.Replace(ctx, "v1", []Entry{{URL: "/a", Body: []byte("A")}, {URL: "/b", Body: []byte("B")}}))
	n, err := s.Len(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Replace(ctx, "v1", []Entry{{URL: "/c", Body: []byte("C")}}))
	_, ok, err := s.Get(ctx, "v1", "/a")
	require.NoError(t, err)
	assert.False(t, ok)
	e, ok, err := s.Get(ctx, "v1", "/c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "C", string(e.Body))
}
