package flipbook

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/flipbook/internal/metrics"
)

// DefaultAutoFlipInterval is the period between automatic page turns.
const DefaultAutoFlipInterval = 5 * time.Second

// Ticker is the repeating timer driving a Scheduler.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Scheduler advances a flipper on every tick until the last page is reached,
// then cancels itself. It owns its cancellation; there is no pause or resume.
type Scheduler struct {
	flipper   Flipper
	total     int
	interval  time.Duration
	newTicker func(time.Duration) Ticker

	mu       sync.Mutex
	started  bool
	finished bool
	advances int
	done     chan struct{}
}

// NewScheduler creates a scheduler for a book of totalPages pages.
func NewScheduler(f Flipper, totalPages int, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultAutoFlipInterval
	}
	return &Scheduler{
		flipper:   f,
		total:     totalPages,
		interval:  interval,
		newTicker: NewTimeTicker,
		done:      make(chan struct{}),
	}
}

// WithTicker replaces the ticker constructor.
func (s *Scheduler) WithTicker(fn func(time.Duration) Ticker) *Scheduler {
	s.newTicker = fn
	return s
}

// Start runs the tick loop in the background. Calling it twice has no effect.
// ctx only ends the loop on shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.finished {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	t := s.newTicker(s.interval)
	log.Info().Int("total_pages", s.total).Dur("interval", s.interval).Msg("auto-flip started")
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-t.C():
				if !s.Tick() {
					return
				}
			}
		}
	}()
}

// Tick performs one step. It returns false once the scheduler has cancelled itself.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	metrics.IncAutoFlip("tick")
	current := s.flipper.CurrentPageIndex()
	if current < s.total-1 {
		s.flipper.FlipNext()
		s.advances++
		metrics.IncAutoFlip("advance")
		return true
	}
	s.finished = true
	close(s.done)
	metrics.IncAutoFlip("finished")
	log.Info().Int("advances", s.advances).Msg("auto-flip finished")
	return false
}

// Done is closed when the scheduler has reached the last page.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Advances returns the number of FlipNext calls issued so far.
func (s *Scheduler) Advances() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advances
}

// Running reports whether the scheduler was started and has not finished.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.finished
}
