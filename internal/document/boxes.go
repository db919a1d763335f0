package document

import (
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pageSize is a page's visible size in points, after rotation.
type pageSize struct {
	Width  float64
	Height float64
}

// readPageSizes reads the unrounded visible box of every page: the CropBox
// clipped to the MediaBox, swapped for quarter-turn rotations. MuPDF only
// exposes integer bounds, which skews the aspect ratio of pages like A4.
func readPageSizes(path string) ([]pageSize, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page boxes: %w", err)
	}
	sizes := make([]pageSize, 0, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		_, _, attrs, err := ctx.PageDict(i, false)
		if err != nil {
			return nil, fmt.Errorf("page %d dict: %w", i, err)
		}
		if attrs == nil || attrs.MediaBox == nil {
			return nil, fmt.Errorf("page %d has no media box", i)
		}
		box := visibleBox(attrs.MediaBox, attrs.CropBox)
		sz := pageSize{Width: box.Width(), Height: box.Height()}
		if r := ((attrs.Rotate % 360) + 360) % 360; r == 90 || r == 270 {
			sz.Width, sz.Height = sz.Height, sz.Width
		}
		sizes = append(sizes, sz)
	}
	return sizes, nil
}

func visibleBox(media, crop *types.Rectangle) *types.Rectangle {
	if crop == nil {
		return media
	}
	llx, lly := math.Max(media.LL.X, crop.LL.X), math.Max(media.LL.Y, crop.LL.Y)
	urx, ury := math.Min(media.UR.X, crop.UR.X), math.Min(media.UR.Y, crop.UR.Y)
	if urx <= llx || ury <= lly {
		return media
	}
	return types.NewRectangle(llx, lly, urx, ury)
}
