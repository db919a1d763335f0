package flipbook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Mode is the paging mode picked from the selector.
type Mode string

const (
	ModeNone   Mode = ""
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
)

// ParseMode accepts "manual" or "auto".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeManual, ModeAuto:
		return m, nil
	}
	return ModeNone, fmt.Errorf("unknown mode %q", s)
}

// ModeUI is the per-viewer surface touched by mode selection.
type ModeUI interface {
	HideModeSelector()
	EnterFullscreen() error
}

// Session is one viewer's flipper plus its optional auto-flip scheduler.
type Session struct {
	ID       string
	Flipper  Flipper
	interval time.Duration
	ticker   func(time.Duration) Ticker

	mu        sync.Mutex
	mode      Mode
	scheduler *Scheduler
}

// NewSession wraps a flipper. interval is the auto-flip period.
func NewSession(id string, f Flipper, interval time.Duration) *Session {
	return &Session{ID: id, Flipper: f, interval: interval}
}

// WithTicker sets the ticker used by the auto-flip scheduler.
func (s *Session) WithTicker(fn func(time.Duration) Ticker) *Session {
	s.ticker = fn
	return s
}

// Mode returns the selected mode, ModeNone before selection.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Scheduler returns the auto-flip scheduler, nil unless auto mode was selected.
func (s *Session) Scheduler() *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler
}

// SelectMode dismisses the selector, optionally requests fullscreen and, in auto
// mode, starts the scheduler. A fullscreen rejection is logged and otherwise ignored.
func (s *Session) SelectMode(ctx context.Context, ui ModeUI, mode Mode, fullscreen bool) error {
	if mode != ModeManual && mode != ModeAuto {
		return fmt.Errorf("unknown mode %q", mode)
	}
	s.mu.Lock()
	if s.mode != ModeNone {
		s.mu.Unlock()
		return ErrModeSelected
	}
	s.mode = mode
	s.mu.Unlock()

	ui.HideModeSelector()
	if fullscreen {
		if err := ui.EnterFullscreen(); err != nil {
			fe := &FullscreenError{Err: err}
			var existing *FullscreenError
			if errors.As(err, &existing) {
				fe = existing
			}
			log.Warn().Err(fe).Str("session", s.ID).Msg("fullscreen request failed")
		}
	}

	log.Info().Str("session", s.ID).Str("mode", string(mode)).Msg("mode selected")
	if mode != ModeAuto {
		return nil
	}
	sch := NewScheduler(s.Flipper, s.Flipper.PageCount(), s.interval)
	if s.ticker != nil {
		sch.WithTicker(s.ticker)
	}
	s.mu.Lock()
	s.scheduler = sch
	s.mu.Unlock()
	sch.Start(ctx)
	return nil
}
