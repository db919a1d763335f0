// Package pageflip keeps the flip state of one viewer: which pages are visible,
// how spreads are paired and where the next turn lands.
package pageflip

import (
	"errors"
	"sync"

	"github.com/local/flipbook/internal/flipbook"
)

// Orientation is the page arrangement of a book.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Book implements flipbook.Flipper.
type Book struct {
	opts flipbook.FlipOptions

	mu      sync.Mutex
	pages   []*flipbook.Page
	current int
}

// New creates an empty book. It is a flipbook.FlipperFactory.
func New(opts flipbook.FlipOptions) flipbook.Flipper {
	return &Book{opts: opts}
}

var _ flipbook.FlipperFactory = New

// Options returns the options the book was created with.
func (b *Book) Options() flipbook.FlipOptions { return b.opts }

// Orientation is portrait when single pages are requested, landscape otherwise.
func (b *Book) Orientation() Orientation {
	if b.opts.UsePortrait {
		return Portrait
	}
	return Landscape
}

// LoadPages replaces the page list and rewinds to the first page.
func (b *Book) LoadPages(pages []*flipbook.Page) error {
	if len(pages) == 0 {
		return errors.New("pageflip: no pages to load")
	}
	b.mu.Lock()
	b.pages = append([]*flipbook.Page(nil), pages...)
	b.current = 0
	b.mu.Unlock()
	return nil
}

// PageCount returns the number of loaded pages.
func (b *Book) PageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pages)
}

// CurrentPageIndex returns the 0-based index of the focused page.
func (b *Book) CurrentPageIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// FlipNext turns to the next spread. On the final spread it moves focus to the
// last page, so repeated turns always reach index PageCount-1.
func (b *Book) FlipNext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.pages)
	if n == 0 {
		return
	}
	next := b.spreadStart(b.current) + b.step(b.current)
	if next > n-1 {
		next = n - 1
	}
	b.current = next
}

// FlipPrev turns back one spread.
func (b *Book) FlipPrev() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pages) == 0 {
		return
	}
	start := b.spreadStart(b.current)
	if start == 0 {
		b.current = 0
		return
	}
	b.current = b.spreadStart(start - 1)
}

// FlipTo focuses the spread holding index i. Out-of-range indexes are clamped.
func (b *Book) FlipTo(i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.pages)
	if n == 0 {
		return
	}
	if i < 0 {
		i = 0
	}
	if i > n-1 {
		i = n - 1
	}
	b.current = b.spreadStart(i)
}

// Visible returns the indexes shown for the current position.
func (b *Book) Visible() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pages) == 0 {
		return nil
	}
	start := b.spreadStart(b.current)
	out := []int{start}
	if b.step(start) == 2 && start+1 < len(b.pages) {
		out = append(out, start+1)
	}
	return out
}

// spreadStart returns the first index of the spread holding i.
func (b *Book) spreadStart(i int) int {
	if b.opts.UsePortrait {
		return i
	}
	if b.opts.ShowCover {
		// the front cover stands alone, then pairs (1,2), (3,4), ...
		if i == 0 {
			return 0
		}
		return i - (i+1)%2
	}
	return i - i%2
}

// step is the width of the spread starting at start.
func (b *Book) step(start int) int {
	if b.opts.UsePortrait {
		return 1
	}
	if b.opts.ShowCover && start == 0 {
		return 1
	}
	return 2
}
