package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewportPixelSizeRoundsUp(t *testing.T) {
	w, h := Viewport{Width: 1190.4, Height: 1684, Scale: 2}.PixelSize()
	assert.Equal(t, 1191, w)
	assert.Equal(t, 1684, h)
}

func TestViewportAspectRatio(t *testing.T) {
	assert.InDelta(t, 0.7, Viewport{Width: 420, Height: 600}.AspectRatio(), 1e-9)
	assert.Zero(t, Viewport{Width: 420}.AspectRatio())
}

func TestDefaultOpenerIsFitz(t *testing.T) {
	o, err := Default()
	require.NoError(t, err)
	assert.IsType(t, fitzOpener{}, o)
}

func TestFitzOpenMissingFile(t *testing.T) {
	_, err := NewFitzOpener().Open(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open PDF")
}

func TestFitzOpenHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFitzOpener().Open(ctx, "whatever.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}

// writePDF writes an empty PDF whose pages carry the given page dictionary extras.
func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	var buf bytes.Buffer
	offsets := []int{}
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}
	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	for _, extra := range pages {
		obj("<< /Type /Page /Parent 2 0 R /Resources << >> " + extra + " >>")
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	path := filepath.Join(t.TempDir(), "book.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestFitzFractionalMediaBox(t *testing.T) {
	path := writePDF(t, "/MediaBox [0 0 595.28 841.89]")
	doc, err := NewFitzOpener().Open(context.Background(), path)
	require.NoError(t, err)
	defer doc.Close()

	pg, err := doc.Page(context.Background(), 1)
	require.NoError(t, err)
	vp := pg.Viewport(2)
	assert.InDelta(t, 1190.56, vp.Width, 1e-6)
	assert.InDelta(t, 1683.78, vp.Height, 1e-6)
	assert.InDelta(t, 595.28/841.89, vp.AspectRatio(), 1e-9)

	img, err := pg.Render(context.Background(), vp)
	require.NoError(t, err)
	w, h := vp.PixelSize()
	assert.Equal(t, 1191, w)
	assert.Equal(t, 1684, h)
	assert.Equal(t, w, img.Bounds().Dx())
	assert.Equal(t, h, img.Bounds().Dy())
	assert.Equal(t, 0, img.Bounds().Min.X)
}

func TestFitzCropBoxAndRotation(t *testing.T) {
	path := writePDF(t,
		"/MediaBox [0 0 612 792] /CropBox [36 36 576.5 756]",
		"/MediaBox [0 0 595.28 841.89] /Rotate 90",
	)
	doc, err := NewFitzOpener().Open(context.Background(), path)
	require.NoError(t, err)
	defer doc.Close()

	cropped, err := doc.Page(context.Background(), 1)
	require.NoError(t, err)
	vp := cropped.Viewport(1)
	assert.InDelta(t, 540.5, vp.Width, 1e-6)
	assert.InDelta(t, 720, vp.Height, 1e-6)

	rotated, err := doc.Page(context.Background(), 2)
	require.NoError(t, err)
	vp = rotated.Viewport(1)
	assert.InDelta(t, 841.89, vp.Width, 1e-6)
	assert.InDelta(t, 595.28, vp.Height, 1e-6)
}

func TestFitzPageOutOfRange(t *testing.T) {
	doc, err := NewFitzOpener().Open(context.Background(), writePDF(t, "/MediaBox [0 0 100 100]"))
	require.NoError(t, err)
	defer doc.Close()

	_, err = doc.Page(context.Background(), 2)
	assert.ErrorIs(t, err, ErrPageRange)
}
