package document

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// baseDPI is the PDF user-space resolution; scale 1 renders one pixel per point.
const baseDPI = 72.0

// fitzOpener implements Opener using github.com/gen2brain/go-fitz.
type fitzOpener struct{}

func (fitzOpener) Open(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	d := &fitzDoc{doc: doc}
	sizes, err := readPageSizes(path)
	switch {
	case err != nil:
		log.Debug().Err(err).Str("file", path).Msg("falling back to integer page bounds")
	case len(sizes) != doc.NumPage():
		log.Debug().Int("boxes", len(sizes)).Int("pages", doc.NumPage()).Msg("page box count mismatch, using integer bounds")
	default:
		d.sizes = sizes
	}
	return d, nil
}

// NewFitzOpener returns the MuPDF-backed opener.
func NewFitzOpener() Opener { return fitzOpener{} }

func init() {
	setDefaultOpener(fitzOpener{})
}

// --- Adapters ---

type fitzDoc struct {
	doc   *fitz.Document
	sizes []pageSize // nil when the boxes could not be read
}

func (d *fitzDoc) PageCount() int { return d.doc.NumPage() }

func (d *fitzDoc) Close() error { return d.doc.Close() }

func (d *fitzDoc) Page(ctx context.Context, number int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if number < 1 || number > d.doc.NumPage() {
		return nil, fmt.Errorf("page %d of %d: %w", number, d.doc.NumPage(), ErrPageRange)
	}
	if d.sizes != nil {
		return &fitzPage{doc: d.doc, number: number, size: d.sizes[number-1]}, nil
	}
	// go-fitz uses 0-based indexing
	bounds, err := d.doc.Bound(number - 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read bounds of page %d: %w", number, err)
	}
	size := pageSize{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}
	return &fitzPage{doc: d.doc, number: number, size: size}, nil
}

type fitzPage struct {
	doc    *fitz.Document
	number int
	size   pageSize
}

func (p *fitzPage) Number() int { return p.number }

func (p *fitzPage) Viewport(scale float64) Viewport {
	return Viewport{
		Width:  p.size.Width * scale,
		Height: p.size.Height * scale,
		Scale:  scale,
	}
}

func (p *fitzPage) Render(ctx context.Context, vp Viewport) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := p.doc.ImageDPI(p.number-1, baseDPI*vp.Scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", p.number, err)
	}
	if img.Bounds().Min != (image.Point{}) {
		out := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
		draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
		img = out
	}

	log.Debug().
		Int("page", p.number).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Float64("scale", vp.Scale).
		Msg("rasterized page")
	return img, nil
}
