// Package web serves the flipbook viewer: the page, its assets, the rendered
// pages and the per-browser session API.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"

	"github.com/local/flipbook/internal/assetcache"
	"github.com/local/flipbook/internal/flipbook"
	"github.com/local/flipbook/internal/imagerender"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// LoadProgress is the loader view the status endpoints need.
type LoadProgress interface {
	State() flipbook.State
	Progress() (done, failed int)
}

// Options configures the viewer.
type Options struct {
	Title           string
	Board           *Board
	Loader          LoadProgress
	Factory         flipbook.FlipperFactory
	Encoder         imagerender.Encoder
	Cache           *assetcache.Manager
	Health          http.Handler
	Interval        time.Duration
	AllowFullscreen bool
	SessionTTL      time.Duration
	RateLimit       int
	// BaseContext outlives requests; auto-flip schedulers stop when it ends.
	BaseContext context.Context
	Ticker      func(time.Duration) flipbook.Ticker
}

type Web struct {
	tpl      *template.Template
	opts     Options
	sessions *sessions

	mu   sync.RWMutex
	book *flipbook.Book
}

func New(opts Options) *Web {
	tpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	if opts.Title == "" {
		opts.Title = "Flipbook"
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 120
	}
	return &Web{tpl: tpl, opts: opts, sessions: newSessions(opts.SessionTTL)}
}

// SetBook publishes the loaded book. Sessions can only be created afterwards.
func (w *Web) SetBook(b *flipbook.Book) {
	w.mu.Lock()
	w.book = b
	w.mu.Unlock()
}

// Book returns the loaded book or nil.
func (w *Web) Book() *flipbook.Book {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.book
}

// Handler builds the router with the asset cache in front of every route.
func (w *Web) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if w.opts.Cache != nil {
		r.Use(w.opts.Cache.Middleware)
	}
	w.RegisterRoutes(r)
	return r
}

func (w *Web) RegisterRoutes(r chi.Router) {
	static, _ := fs.Sub(staticFS, "static")
	r.Get("/", w.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Get("/manifest.json", w.handleManifest)
	r.Get("/sw.js", w.handleServiceWorker)
	r.Get("/health", func(wr http.ResponseWriter, r *http.Request) { wr.Write([]byte("ok")) })
	if w.opts.Health != nil {
		r.Method(http.MethodGet, "/api/health", w.opts.Health)
	}

	r.Get("/api/book", w.handleBook)
	r.Get("/api/status", w.handleStatus)
	r.Get("/pages/{n}", w.handlePage)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(w.opts.RateLimit, time.Minute))
		r.Get("/api/session", w.handleSession)
		r.Post("/api/session/mode", w.handleMode)
		r.Post("/api/session/next", w.handleNext)
	})
}

func (w *Web) render(wr http.ResponseWriter, name string, data any) {
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := w.tpl.ExecuteTemplate(wr, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render template")
	}
}

// handleIndex serves the page shell. It always carries the initial status:
// the shell is stored by the asset cache, and app.js takes over from /api/status.
func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
	w.render(wr, "index.html", map[string]any{
		"Title":  w.opts.Title,
		"Status": w.opts.Board.Initial(),
	})
}

func (w *Web) handleManifest(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, map[string]any{
		"name":             w.opts.Title,
		"short_name":       w.opts.Title,
		"start_url":        "/",
		"display":          "fullscreen",
		"background_color": "#333333",
		"theme_color":      "#333333",
		"icons": []map[string]string{
			{"src": "/static/icon.svg", "sizes": "any", "type": "image/svg+xml"},
		},
	})
}

func (w *Web) handleServiceWorker(wr http.ResponseWriter, r *http.Request) {
	if w.opts.Cache == nil {
		http.NotFound(wr, r)
		return
	}
	w.opts.Cache.ServeServiceWorker(wr, r)
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	if err := json.NewEncoder(wr).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(wr http.ResponseWriter, status int, msg string) {
	writeJSON(wr, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(wr, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
