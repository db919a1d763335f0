package flipbook

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/flipbook/internal/document"
	"github.com/local/flipbook/internal/metrics"
)

// RenderScale is the fixed oversampling factor for display sharpness.
const RenderScale = 2.0

// RenderPage rasterizes one page into its surface. onDone, if set, runs once on success.
// Callers must not render the same page concurrently.
func RenderPage(ctx context.Context, doc document.Document, p *Page, onDone func(*Page)) error {
	start := time.Now()
	err := renderPage(ctx, doc, p)
	if err != nil {
		metrics.ObserveRender("error", time.Since(start))
		log.Warn().Err(err).Int("page", p.Number).Msg("page render failed")
		return &PageRenderError{Page: p.Number, Err: err}
	}
	metrics.ObserveRender("success", time.Since(start))
	p.markRendered()
	log.Debug().Int("page", p.Number).Dur("took", time.Since(start)).Msg("page rendered")
	if onDone != nil {
		onDone(p)
	}
	return nil
}

func renderPage(ctx context.Context, doc document.Document, p *Page) error {
	pg, err := doc.Page(ctx, p.Number)
	if err != nil {
		return err
	}
	img, err := pg.Render(ctx, pg.Viewport(RenderScale))
	if err != nil {
		return err
	}
	p.Surface.set(img)
	return nil
}
