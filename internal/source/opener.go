package source

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/flipbook/internal/document"
)

// Opener fetches and validates a source, then hands the local file to Backend.
// It implements document.Opener.
type Opener struct {
	Fetcher *Fetcher
	Backend document.Opener
}

// NewOpener wraps backend with fetching and validation.
func NewOpener(f *Fetcher, backend document.Opener) *Opener {
	return &Opener{Fetcher: f, Backend: backend}
}

// Open resolves ref, probes it and opens it with the backend. The temp copy of
// a remote source lives until the returned document is closed.
func (o *Opener) Open(ctx context.Context, ref string) (document.Document, error) {
	local, err := o.Fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	info, err := Probe(local.Path)
	if err != nil {
		_ = local.Remove()
		return nil, err
	}
	if info.Pages < 1 {
		_ = local.Remove()
		return nil, fmt.Errorf("source has %d pages", info.Pages)
	}

	doc, err := o.Backend.Open(ctx, local.Path)
	if err != nil {
		_ = local.Remove()
		return nil, err
	}
	log.Info().Str("source", ref).Int("pages", info.Pages).Bool("temp", local.Temp).Msg("source ready")
	return &fetchedDoc{Document: doc, local: local}, nil
}

type fetchedDoc struct {
	document.Document
	local *Local
}

func (d *fetchedDoc) Close() error {
	err := d.Document.Close()
	if rerr := d.local.Remove(); err == nil {
		err = rerr
	}
	return err
}
