// Package documenttest provides an in-memory document.Document for tests.
package documenttest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/local/flipbook/internal/document"
)

// Doc is a synthetic document. Each page paints a deterministic pattern derived
// from its number so renders can be compared pixel by pixel.
type Doc struct {
	Pages int
	// Page size in points.
	Width  float64
	Height float64
	// Page and Render fail for the listed page numbers.
	PageErr    map[int]error
	RenderErr  map[int]error
	RenderHook func(number int)

	mu      sync.Mutex
	renders map[int]int
	closed  bool
}

// New returns a document of n pages sized w×h points.
func New(n int, w, h float64) *Doc {
	return &Doc{Pages: n, Width: w, Height: h, PageErr: map[int]error{}, RenderErr: map[int]error{}}
}

func (d *Doc) PageCount() int { return d.Pages }

func (d *Doc) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (d *Doc) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Renders returns how many times page n was rendered successfully.
func (d *Doc) Renders(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renders[n]
}

func (d *Doc) Page(ctx context.Context, n int) (document.Page, error) {
	if err := d.PageErr[n]; err != nil {
		return nil, err
	}
	if n < 1 || n > d.Pages {
		return nil, fmt.Errorf("page %d of %d: %w", n, d.Pages, document.ErrPageRange)
	}
	return &page{doc: d, number: n}, nil
}

type page struct {
	doc    *Doc
	number int
}

func (p *page) Number() int { return p.number }

func (p *page) Viewport(scale float64) document.Viewport {
	return document.Viewport{Width: p.doc.Width * scale, Height: p.doc.Height * scale, Scale: scale}
}

func (p *page) Render(ctx context.Context, vp document.Viewport) (*image.RGBA, error) {
	if h := p.doc.RenderHook; h != nil {
		h(p.number)
	}
	if err := p.doc.RenderErr[p.number]; err != nil {
		return nil, err
	}
	w, h := vp.PixelSize()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetRGBA(x, y, color.RGBA{R: uint8(p.number * 40), G: uint8(x), B: uint8(y), A: 0xff})
		}
	}
	p.doc.mu.Lock()
	if p.doc.renders == nil {
		p.doc.renders = map[int]int{}
	}
	p.doc.renders[p.number]++
	p.doc.mu.Unlock()
	return dst, nil
}

// Opener opens the wrapped Doc regardless of path, or fails with Err.
type Opener struct {
	Doc  *Doc
	Err  error
	Path string
}

func (o *Opener) Open(ctx context.Context, path string) (document.Document, error) {
	o.Path = path
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Doc, nil
}
