package flipbook

import (
	"errors"
	"sync"
	"time"
)

// stepFlipper advances one index per FlipNext, like a single-page book.
type stepFlipper struct {
	mu      sync.Mutex
	total   int
	current int
	flips   int
	pages   []*Page
	opts    FlipOptions
	loadErr error
}

func (f *stepFlipper) LoadPages(pages []*Page) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.mu.Lock()
	f.pages = pages
	f.total = len(pages)
	f.mu.Unlock()
	return nil
}

func (f *stepFlipper) FlipNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flips++
	if f.current < f.total-1 {
		f.current++
	}
}

func (f *stepFlipper) CurrentPageIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *stepFlipper) PageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func (f *stepFlipper) Flips() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flips
}

type recordingFactory struct {
	mu      sync.Mutex
	created []*stepFlipper
	loadErr error
}

func (r *recordingFactory) New(opts FlipOptions) Flipper {
	f := &stepFlipper{opts: opts, loadErr: r.loadErr}
	r.mu.Lock()
	r.created = append(r.created, f)
	r.mu.Unlock()
	return f
}

// fakeUI records what the loader and sessions did to the visible surface.
type fakeUI struct {
	mu            sync.Mutex
	statuses      []string
	errors        int
	lastErr       bool
	pages         []*Page
	loadingHidden bool
	selectorShown bool
	selectorGone  bool
	fullscreenErr error
	fullscreen    int
}

func (u *fakeUI) SetStatus(text string, isError bool) {
	u.mu.Lock()
	u.statuses = append(u.statuses, text)
	u.lastErr = isError
	if isError {
		u.errors++
	}
	u.mu.Unlock()
}

func (u *fakeUI) AttachPages(p []*Page) {
	u.mu.Lock()
	u.pages = p
	u.mu.Unlock()
}

func (u *fakeUI) HideLoading() {
	u.mu.Lock()
	u.loadingHidden = true
	u.mu.Unlock()
}

func (u *fakeUI) ShowModeSelector() {
	u.mu.Lock()
	u.selectorShown = true
	u.mu.Unlock()
}

func (u *fakeUI) HideModeSelector() {
	u.mu.Lock()
	u.selectorGone = true
	u.mu.Unlock()
}

func (u *fakeUI) EnterFullscreen() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fullscreen++
	return u.fullscreenErr
}

func (u *fakeUI) lastStatus() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.statuses) == 0 {
		return ""
	}
	return u.statuses[len(u.statuses)-1]
}

func (u *fakeUI) lastIsError() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastErr
}

func (u *fakeUI) hasStatus(s string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, v := range u.statuses {
		if v == s {
			return true
		}
	}
	return false
}

// manualTicker only fires when the test sends on ch.
type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

var errDecode = errors.New("decode failure")
