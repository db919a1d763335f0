package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/local/flipbook/internal/flipbook"
	"github.com/local/flipbook/internal/metrics"
)

const sessionCookie = "flipbook_session"

var (
	errBookNotReady       = errors.New("book is not ready")
	errFullscreenDisabled = errors.New("fullscreen is disabled")
)

// viewerUI is the per-session part of the page: its selector and fullscreen state.
type viewerUI struct {
	mu              sync.Mutex
	selectorHidden  bool
	fullscreen      bool
	allowFullscreen bool
}

func (u *viewerUI) HideModeSelector() {
	u.mu.Lock()
	u.selectorHidden = true
	u.mu.Unlock()
}

func (u *viewerUI) EnterFullscreen() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.allowFullscreen {
		return errFullscreenDisabled
	}
	u.fullscreen = true
	return nil
}

func (u *viewerUI) state() (selectorHidden, fullscreen bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.selectorHidden, u.fullscreen
}

type viewer struct {
	session *flipbook.Session
	ui      *viewerUI

	// ctx bounds the viewer's auto-flip loop; cancel runs on eviction.
	ctx    context.Context
	cancel context.CancelFunc
}

// sessions keeps one viewer per browser, keyed by cookie, with a sliding TTL.
type sessions struct {
	c   *cache.Cache
	ttl time.Duration
}

func newSessions(ttl time.Duration) *sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &sessions{c: cache.New(ttl, 10*time.Minute), ttl: ttl}
	s.c.OnEvicted(func(id string, item interface{}) {
		if v, ok := item.(*viewer); ok && v.cancel != nil {
			v.cancel()
		}
		log.Debug().Str("session", id).Msg("session expired")
		metrics.SetSessions(s.c.ItemCount())
	})
	return s
}

func (s *sessions) lookup(r *http.Request) (*viewer, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	v, ok := s.c.Get(c.Value)
	if !ok {
		return nil, false
	}
	s.c.Set(c.Value, v, cache.DefaultExpiration)
	return v.(*viewer), true
}

func (s *sessions) add(v *viewer) {
	s.c.Set(v.session.ID, v, cache.DefaultExpiration)
	metrics.SetSessions(s.c.ItemCount())
}

func (s *sessions) count() int { return s.c.ItemCount() }

// session returns the caller's viewer, creating one (and its cookie) on first use.
func (w *Web) session(wr http.ResponseWriter, r *http.Request) (*viewer, error) {
	if v, ok := w.sessions.lookup(r); ok {
		return v, nil
	}
	book := w.Book()
	if book == nil {
		return nil, errBookNotReady
	}
	f, err := book.NewFlipper(w.opts.Factory)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	sess := flipbook.NewSession(id, f, w.opts.Interval)
	if w.opts.Ticker != nil {
		sess.WithTicker(w.opts.Ticker)
	}
	ctx, cancel := context.WithCancel(w.opts.BaseContext)
	v := &viewer{
		session: sess,
		ui:      &viewerUI{allowFullscreen: w.opts.AllowFullscreen},
		ctx:     ctx,
		cancel:  cancel,
	}
	w.sessions.add(v)

	http.SetCookie(wr, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(w.sessions.ttl.Seconds()),
	})
	log.Info().Str("session", id).Int("active", w.sessions.count()).Msg("session created")
	return v, nil
}
