package assetcache

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/flipbook/internal/metrics"
)

// Manager installs a manifest into a store and serves from it.
type Manager struct {
	manifest Manifest
	store    Store
	fetcher  Fetcher

	mu        sync.Mutex
	installed bool
}

// NewManager wires a manifest to its store and fetcher.
func NewManager(m Manifest, s Store, f Fetcher) *Manager {
	return &Manager{manifest: m, store: s, fetcher: f}
}

// Manifest returns the installed asset list.
func (m *Manager) Manifest() Manifest { return m.manifest }

// Installed reports whether an install has completed.
func (m *Manager) Installed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installed
}

// Install fetches every asset and stores them all, or stores nothing.
// The first failure cancels the remaining fetches.
func (m *Manager) Install(ctx context.Context) error {
	if len(m.manifest.Assets) == 0 {
		return ErrEmptyManifest
	}
	entries := make([]Entry, len(m.manifest.Assets))
	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range m.manifest.Assets {
		i, asset := i, asset
		g.Go(func() error {
			e, err := m.fetcher.Fetch(gctx, asset)
			if err != nil {
				return err
			}
			e.URL = asset
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.IncCacheInstall(m.manifest.Name, "error")
		log.Error().Err(err).Str("cache", m.manifest.Name).Msg("asset cache install failed")
		return err
	}
	if err := m.store.Replace(ctx, m.manifest.Name, entries); err != nil {
		metrics.IncCacheInstall(m.manifest.Name, "error")
		log.Error().Err(err).Str("cache", m.manifest.Name).Msg("asset cache store failed")
		return err
	}

	m.mu.Lock()
	m.installed = true
	m.mu.Unlock()
	metrics.IncCacheInstall(m.manifest.Name, "success")
	log.Info().Str("cache", m.manifest.Name).Int("assets", len(entries)).Msg("asset cache installed")
	return nil
}

// Middleware answers GET and HEAD requests from the cache when an entry exists
// and passes everything else to next. Responses from next are never stored.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cacheable(r) {
			metrics.IncCache("bypass")
			next.ServeHTTP(w, r)
			return
		}
		e, ok, err := m.store.Get(r.Context(), m.manifest.Name, r.URL.RequestURI())
		if err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("asset cache lookup failed")
		}
		if !ok || err != nil {
			metrics.IncCache("miss")
			w.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(w, r)
			return
		}

		metrics.IncCache("hit")
		h := w.Header()
		h.Set("X-Cache", "HIT")
		if e.ContentType != "" {
			h.Set("Content-Type", e.ContentType)
		}
		h.Set("Content-Length", strconv.Itoa(len(e.Body)))
		w.WriteHeader(defaultStatus(e))
		if r.Method != http.MethodHead {
			_, _ = w.Write(e.Body)
		}
	})
}

func cacheable(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if r.Header.Get("Range") != "" {
		return false
	}
	return !strings.Contains(r.Header.Get("Cache-Control"), "no-cache")
}
