package flipbook

import (
	"errors"
	"fmt"
)

// ErrInvalidPageCount is returned when a document reports fewer than one page.
var ErrInvalidPageCount = errors.New("invalid page count")

// ErrModeSelected is returned when a session's mode has already been chosen.
var ErrModeSelected = errors.New("mode already selected")

// LoadError aborts the whole load. Stage names the state the loader was in.
type LoadError struct {
	Stage State
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed at %s: %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PageRenderError is one page failing to rasterize. Sibling renders are unaffected.
type PageRenderError struct {
	Page int
	Err  error
}

func (e *PageRenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *PageRenderError) Unwrap() error { return e.Err }

// FullscreenError is a rejected fullscreen request. It is logged, never surfaced.
type FullscreenError struct {
	Err error
}

func (e *FullscreenError) Error() string {
	return fmt.Sprintf("fullscreen rejected: %v", e.Err)
}

func (e *FullscreenError) Unwrap() error { return e.Err }
