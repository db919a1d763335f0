package flipbook

import (
	"errors"
	"fmt"
	"strings"
)

// Policy selects how the base layout is sized.
type Policy string

const (
	// PolicyFixed derives width from a constant base height and the page ratio.
	PolicyFixed Policy = "fixed"
	// PolicyViewport fits a two-page spread into the available viewport.
	PolicyViewport Policy = "viewport"
)

// ParsePolicy maps a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyFixed:
		return PolicyFixed, nil
	case PolicyViewport, "":
		return PolicyViewport, nil
	}
	return "", fmt.Errorf("unknown layout policy %q", s)
}

// Dimensions is the base size handed to the flipper. In spread mode it covers two pages.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Spread bool    `json:"spread"`
}

// PageWidth is the width of a single page.
func (d Dimensions) PageWidth() float64 {
	if d.Spread {
		return d.Width / 2
	}
	return d.Width
}

// FixedHeight sizes a single page from a constant height.
func FixedHeight(baseHeight, pageAspect float64) Dimensions {
	return Dimensions{Width: baseHeight * pageAspect, Height: baseHeight}
}

// FitViewport returns the largest rectangle of the given aspect ratio inside availW×availH.
// Width-constrained sizing wins whenever it fits.
func FitViewport(availW, availH, aspect float64) (Dimensions, error) {
	if availW <= 0 || availH <= 0 {
		return Dimensions{}, fmt.Errorf("available box %.0fx%.0f must be positive", availW, availH)
	}
	if aspect <= 0 {
		return Dimensions{}, errors.New("aspect ratio must be positive")
	}
	w, h := availW, availW/aspect
	if h > availH {
		h = availH
		w = availH * aspect
	}
	return Dimensions{Width: w, Height: h}, nil
}

// Sizer applies the configured policy.
type Sizer struct {
	Policy     Policy
	BaseHeight float64
	ViewportW  float64
	ViewportH  float64
	Padding    float64
}

// Size computes the layout for a page of the given aspect ratio (width / height).
func (s Sizer) Size(pageAspect float64) (Dimensions, error) {
	if pageAspect <= 0 {
		return Dimensions{}, errors.New("page aspect ratio must be positive")
	}
	switch s.Policy {
	case PolicyFixed:
		if s.BaseHeight <= 0 {
			return Dimensions{}, errors.New("base height must be positive")
		}
		return FixedHeight(s.BaseHeight, pageAspect), nil
	case PolicyViewport:
		d, err := FitViewport(s.ViewportW-s.Padding, s.ViewportH-s.Padding, pageAspect*2)
		if err != nil {
			return Dimensions{}, err
		}
		d.Spread = true
		return d, nil
	}
	return Dimensions{}, fmt.Errorf("unknown layout policy %q", s.Policy)
}
