package web

import (
	"sync"

	"github.com/local/flipbook/internal/flipbook"
)

// Board is the shared loading surface every viewer sees. It implements flipbook.UI.
type Board struct {
	mu       sync.RWMutex
	initial  string
	status   string
	isError  bool
	loading  bool
	selector bool
	pages    []*flipbook.Page
}

// BoardState is a copy of the board for JSON responses.
type BoardState struct {
	Status          string `json:"status"`
	Error           bool   `json:"error"`
	LoadingVisible  bool   `json:"loading_visible"`
	SelectorVisible bool   `json:"selector_visible"`
	Pages           int    `json:"pages"`
}

// NewBoard starts with the loading indicator visible and showing initial.
func NewBoard(initial string) *Board {
	return &Board{initial: initial, status: initial, loading: true}
}

func (b *Board) SetStatus(text string, isError bool) {
	b.mu.Lock()
	b.status = text
	b.isError = isError
	b.mu.Unlock()
}

func (b *Board) AttachPages(pages []*flipbook.Page) {
	b.mu.Lock()
	b.pages = pages
	b.mu.Unlock()
}

func (b *Board) HideLoading() {
	b.mu.Lock()
	b.loading = false
	b.mu.Unlock()
}

func (b *Board) ShowModeSelector() {
	b.mu.Lock()
	b.selector = true
	b.mu.Unlock()
}

// Pages returns the attached pages, nil before surfaces are built.
func (b *Board) Pages() []*flipbook.Page {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pages
}

// Page returns page n (1-based).
func (b *Board) Page(n int) (*flipbook.Page, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n < 1 || n > len(b.pages) {
		return nil, false
	}
	return b.pages[n-1], true
}

// State snapshots the board.
func (b *Board) State() BoardState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BoardState{
		Status:          b.status,
		Error:           b.isError,
		LoadingVisible:  b.loading,
		SelectorVisible: b.selector,
		Pages:           len(b.pages),
	}
}

var _ flipbook.UI = (*Board)(nil)

// Initial returns the text the board started with.
func (b *Board) Initial() string { return b.initial }
