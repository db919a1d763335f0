package flipbook

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/flipbook/internal/document"
	"github.com/local/flipbook/internal/metrics"
)

// State is a step of the load sequence. Transitions only move forward.
type State int

const (
	StateIdle State = iota
	StateOpened
	StateSizing
	StateBuildingSurfaces
	StateInitializingFlip
	StateRendering
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpened:
		return "opened"
	case StateSizing:
		return "sizing"
	case StateBuildingSurfaces:
		return "building_surfaces"
	case StateInitializingFlip:
		return "initializing_flip"
	case StateRendering:
		return "rendering"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// UI is the loading surface the orchestrator drives.
type UI interface {
	SetStatus(text string, isError bool)
	AttachPages(pages []*Page)
	HideLoading()
	ShowModeSelector()
}

// Progress is emitted after every page render, successful or not.
type Progress struct {
	Page   int   `json:"page"`
	Done   int   `json:"done"`
	Failed int   `json:"failed"`
	Total  int   `json:"total"`
	Err    error `json:"-"`
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Source       string
	Sizer        Sizer
	Flip         FlipOptions
	AwaitRenders bool
	Concurrency  int
	FailureText  string
}

// Loader owns one document load from open to ready.
type Loader struct {
	opener  document.Opener
	factory FlipperFactory
	ui      UI
	opts    LoaderOptions

	mu        sync.Mutex
	state     State
	done      int
	failed    int
	observers []func(Progress)
}

// NewLoader wires the collaborators of a load.
func NewLoader(opener document.Opener, factory FlipperFactory, ui UI, opts LoaderOptions) *Loader {
	return &Loader{opener: opener, factory: factory, ui: ui, opts: opts}
}

// Observe registers fn to receive progress events. It must be called before Load.
func (l *Loader) Observe(fn func(Progress)) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

// State returns the current step.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Progress returns the render counters.
func (l *Loader) Progress() (done, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done, l.failed
}

// Book is the outcome of a successful load.
type Book struct {
	Doc     document.Document
	Pages   []*Page
	Layout  Dimensions
	Flip    FlipOptions
	Flipper Flipper

	renders chan struct{}
	err     error
}

// Wait blocks until every page render has finished and returns the first render error.
func (b *Book) Wait() error {
	<-b.renders
	return b.err
}

// RendersDone is closed once every page render has finished.
func (b *Book) RendersDone() <-chan struct{} { return b.renders }

// NewFlipper builds another flipper over the same pages, one per viewer session.
func (b *Book) NewFlipper(factory FlipperFactory) (Flipper, error) {
	f := factory(b.Flip)
	if err := f.LoadPages(b.Pages); err != nil {
		return nil, err
	}
	return f, nil
}

// Close releases the document once renders are finished.
func (b *Book) Close() error {
	<-b.renders
	return b.Doc.Close()
}

// Load runs the full sequence. Failures before rendering abort the load; page
// render failures do not.
func (l *Loader) Load(ctx context.Context) (*Book, error) {
	l.setState(StateIdle)
	log.Info().Str("source", l.opts.Source).Msg("loading document")

	doc, err := l.opener.Open(ctx, l.opts.Source)
	if err != nil {
		return nil, l.fail(StateIdle, err)
	}
	l.setState(StateOpened)

	total := doc.PageCount()
	if total < 1 {
		_ = doc.Close()
		return nil, l.fail(StateOpened, fmt.Errorf("%w: %d", ErrInvalidPageCount, total))
	}
	first, err := doc.Page(ctx, 1)
	if err != nil {
		_ = doc.Close()
		return nil, l.fail(StateOpened, err)
	}
	vp := first.Viewport(1)
	log.Info().Int("pages", total).Float64("width", vp.Width).Float64("height", vp.Height).Msg("document opened")

	l.setState(StateSizing)
	layout, err := l.opts.Sizer.Size(vp.AspectRatio())
	if err != nil {
		_ = doc.Close()
		return nil, l.fail(StateSizing, err)
	}
	log.Info().Float64("width", layout.Width).Float64("height", layout.Height).Bool("spread", layout.Spread).Msg("layout sized")

	l.setState(StateBuildingSurfaces)
	pages, err := BuildPages(total)
	if err != nil {
		_ = doc.Close()
		return nil, l.fail(StateBuildingSurfaces, err)
	}
	l.ui.AttachPages(pages)

	l.setState(StateInitializingFlip)
	opts := flipOptions(layout, l.opts.Flip)
	flipper := l.factory(opts)
	if err := flipper.LoadPages(pages); err != nil {
		_ = doc.Close()
		return nil, l.fail(StateInitializingFlip, err)
	}

	book := &Book{Doc: doc, Pages: pages, Layout: layout, Flip: opts, Flipper: flipper, renders: make(chan struct{})}

	l.setState(StateRendering)
	l.ui.SetStatus(progressText(0, total), false)
	if l.opts.AwaitRenders {
		book.err = l.renderAll(ctx, doc, pages)
		close(book.renders)
	} else {
		go func() {
			book.err = l.renderAll(ctx, doc, pages)
			close(book.renders)
		}()
	}

	l.setState(StateReady)
	metrics.IncLoad("ready")
	if l.opts.AwaitRenders && book.err != nil {
		// leave the failing page's message visible
		log.Warn().Err(book.err).Msg("ready with page render failures")
	} else {
		l.ui.HideLoading()
	}
	l.ui.ShowModeSelector()
	log.Info().Bool("await_renders", l.opts.AwaitRenders).Msg("flipbook ready")
	return book, nil
}

// renderAll renders every page concurrently and joins them. Each failure is
// handled on its own; the first one is returned after all renders finish.
func (l *Loader) renderAll(ctx context.Context, doc document.Document, pages []*Page) error {
	var g errgroup.Group
	if l.opts.Concurrency > 0 {
		g.SetLimit(l.opts.Concurrency)
	}
	total := len(pages)
	for _, p := range pages {
		p := p
		g.Go(func() error {
			err := RenderPage(ctx, doc, p, func(p *Page) { l.pageDone(p.Number, total) })
			if err != nil {
				l.pageFailed(p.Number, total, err)
			}
			return err
		})
	}
	return g.Wait()
}

func (l *Loader) pageDone(page, total int) {
	l.mu.Lock()
	l.done++
	ev := Progress{Page: page, Done: l.done, Failed: l.failed, Total: total}
	obs := l.observers
	// The first page error stays on screen; progress must not hide it.
	if l.failed == 0 {
		l.ui.SetStatus(progressText(ev.Done, total), false)
	}
	l.mu.Unlock()
	for _, fn := range obs {
		fn(ev)
	}
}

func (l *Loader) pageFailed(page, total int, err error) {
	l.mu.Lock()
	l.failed++
	ev := Progress{Page: page, Done: l.done, Failed: l.failed, Total: total, Err: err}
	obs := l.observers
	if l.failed == 1 {
		l.ui.SetStatus(err.Error(), true)
	}
	l.mu.Unlock()
	for _, fn := range obs {
		fn(ev)
	}
}

func (l *Loader) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	log.Debug().Stringer("state", s).Msg("loader state")
}

func (l *Loader) fail(stage State, err error) error {
	l.setState(StateFailed)
	metrics.IncLoad("failed")
	l.ui.SetStatus(l.opts.FailureText+err.Error(), true)
	log.Error().Err(err).Stringer("stage", stage).Msg("document load failed")
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	return &LoadError{Stage: stage, Err: err}
}

func progressText(done, total int) string {
	return fmt.Sprintf("Rendering pages: %d/%d", done, total)
}
