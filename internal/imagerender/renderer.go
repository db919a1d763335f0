// Package imagerender encodes rendered page surfaces for HTTP delivery.
package imagerender

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/rs/zerolog/log"
)

// ColorMode defines the color mode for encoding
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Format is the output image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ParseFormat accepts jpeg, jpg or png. Empty means JPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Encoder turns page pixels into image bytes.
type Encoder struct {
	Quality int
	Color   ColorMode
}

// NewEncoder clamps quality to 1..100 and defaults the color mode to RGB.
func NewEncoder(quality int, color string) Encoder {
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	c := ColorMode(strings.ToLower(color))
	if c != ColorGray {
		c = ColorRGB
	}
	return Encoder{Quality: quality, Color: c}
}

// Encode converts img to the configured color mode and encodes it.
func (e Encoder) Encode(img *image.RGBA, format Format) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to encode")
	}
	bounds := img.Bounds()

	var final image.Image = img
	if e.Color == ColorGray {
		gray := image.NewGray(bounds)
		draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
		final = gray
	}

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := png.Encode(&buf, final); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, final, &jpeg.Options{Quality: e.Quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
	}

	log.Debug().
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Str("format", string(format)).
		Str("color", string(e.Color)).
		Int("size", buf.Len()).
		Msg("encoded page image")
	return buf.Bytes(), nil
}
