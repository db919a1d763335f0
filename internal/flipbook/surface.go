package flipbook

import (
	"fmt"
	"image"
	"image/draw"
	"sync"
)

// Density is the flip stiffness of a page.
type Density string

const (
	DensityHard Density = "hard"
	DensitySoft Density = "soft"
)

// Surface is a page's drawing surface. It starts empty and takes the size of
// whatever raster the renderer hands it.
type Surface struct {
	mu  sync.RWMutex
	img *image.RGBA
}

// set swaps in a finished raster. Readers never observe a half-painted page.
func (s *Surface) set(img *image.RGBA) {
	if img.Bounds().Min != (image.Point{}) {
		img = rebase(img)
	}
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
}

func rebase(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	return out
}

// Size returns the current pixel size, zero before the first render.
func (s *Surface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Snapshot copies the current pixels. It returns nil before the first render.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return nil
	}
	out := image.NewRGBA(s.img.Bounds())
	draw.Draw(out, out.Bounds(), s.img, s.img.Bounds().Min, draw.Src)
	return out
}

// Page describes one flipbook page.
type Page struct {
	Number  int
	Cover   bool
	Surface *Surface

	mu       sync.Mutex
	rendered bool
}

// Density returns hard for covers and soft for interior pages.
func (p *Page) Density() Density {
	if p.Cover {
		return DensityHard
	}
	return DensitySoft
}

// Rendered reports whether the page has been painted at least once.
func (p *Page) Rendered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rendered
}

func (p *Page) markRendered() {
	p.mu.Lock()
	p.rendered = true
	p.mu.Unlock()
}

// BuildPages creates n pages in ascending order. The first and last pages are covers.
func BuildPages(n int) ([]*Page, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageCount, n)
	}
	pages := make([]*Page, 0, n)
	for num := 1; num <= n; num++ {
		pages = append(pages, &Page{
			Number:  num,
			Cover:   num == 1 || num == n,
			Surface: &Surface{},
		})
	}
	return pages, nil
}
