// Package document abstracts the PDF rasterizer behind small capability interfaces
// so the flipbook pipeline can run against MuPDF in production and fakes in tests.
package document

import (
	"context"
	"errors"
	"image"
	"math"
)

// Viewport is the pixel size of a page at a given scale.
type Viewport struct {
	Width  float64
	Height float64
	Scale  float64
}

// PixelSize returns the integer surface size a viewport needs.
func (v Viewport) PixelSize() (int, int) {
	return int(math.Ceil(v.Width)), int(math.Ceil(v.Height))
}

// AspectRatio returns width / height, or 0 for a degenerate viewport.
func (v Viewport) AspectRatio() float64 {
	if v.Height <= 0 {
		return 0
	}
	return v.Width / v.Height
}

// Document is an opened PDF.
type Document interface {
	PageCount() int
	Page(ctx context.Context, number int) (Page, error)
	Close() error
}

// Page is a single page of an opened document. Numbers are 1-based.
type Page interface {
	Number() int
	Viewport(scale float64) Viewport
	// Render rasterizes the page at vp. The image origin is (0,0); its size is
	// the rasterizer's own rounding of vp and may differ from PixelSize by a pixel.
	Render(ctx context.Context, vp Viewport) (*image.RGBA, error)
}

// Opener opens a local path into a Document.
type Opener interface {
	Open(ctx context.Context, path string) (Document, error)
}

// defaultOpener is provided in fitz.go using go-fitz.
var defaultOpener Opener

// setDefaultOpener allows swapping the default opener for alternate backends.
func setDefaultOpener(o Opener) { defaultOpener = o }

// Default returns the configured default opener.
func Default() (Opener, error) {
	if defaultOpener == nil {
		return nil, errors.New("no PDF opener configured")
	}
	return defaultOpener, nil
}

// ErrPageRange is returned for page numbers outside 1..PageCount.
var ErrPageRange = errors.New("page out of range")
