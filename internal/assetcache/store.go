// Package assetcache pre-fetches the viewer's static assets into a named,
// versioned cache and serves them cache-first.
package assetcache

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrEmptyManifest is returned when there is nothing to install.
var ErrEmptyManifest = errors.New("asset manifest is empty")

// Manifest is a named asset list. The name carries the version.
type Manifest struct {
	Name   string   `json:"name"`
	Assets []string `json:"assets"`
}

// Entry is one cached response.
type Entry struct {
	URL         string    `json:"url"`
	Status      int       `json:"status"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	CachedAt    time.Time `json:"cached_at"`
}

// Store holds named caches. Replace swaps a whole cache in one step.
type Store interface {
	Replace(ctx context.Context, name string, entries []Entry) error
	Get(ctx context.Context, name, url string) (Entry, bool, error)
	Len(ctx context.Context, name string) (int, error)
}

// MemoryStore keeps caches in process memory.
type MemoryStore struct {
	c *cache.Cache
}

// NewMemoryStore returns an empty in-memory store. Caches never expire.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New(cache.NoExpiration, time.Hour)}
}

func (s *MemoryStore) Replace(ctx context.Context, name string, entries []Entry) error {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.URL] = e
	}
	s.c.Set(name, m, cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, name, url string) (Entry, bool, error) {
	v, ok := s.c.Get(name)
	if !ok {
		return Entry{}, false, nil
	}
	e, ok := v.(map[string]Entry)[url]
	return e, ok, nil
}

func (s *MemoryStore) Len(ctx context.Context, name string) (int, error) {
	v, ok := s.c.Get(name)
	if !ok {
		return 0, nil
	}
	return len(v.(map[string]Entry)), nil
}

func defaultStatus(e Entry) int {
	if e.Status == 0 {
		return http.StatusOK
	}
	return e.Status
}
