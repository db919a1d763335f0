package source

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

const pdfMIME = "application/pdf"

// ErrNotPDF is returned when the magic bytes do not identify a PDF.
var ErrNotPDF = errors.New("source is not a PDF")

// Info describes a validated source.
type Info struct {
	MIME  string
	Pages int
}

// Probe checks the magic bytes and counts pages without rendering anything.
func Probe(path string) (Info, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("detect file type: %w", err)
	}
	info := Info{MIME: mtype.String()}
	if !mtype.Is(pdfMIME) {
		return info, fmt.Errorf("%w: detected %s", ErrNotPDF, info.MIME)
	}

	n, err := api.PageCountFile(path)
	if err != nil {
		return info, fmt.Errorf("pdf page count failed: %w", err)
	}
	info.Pages = n
	log.Debug().Str("mime", info.MIME).Int("pages", n).Str("file", path).Msg("probed source")
	return info, nil
}
