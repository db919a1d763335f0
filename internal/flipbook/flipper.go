package flipbook

// SizeMode is how the flipper treats the base dimensions.
type SizeMode string

const (
	SizeFixed   SizeMode = "fixed"
	SizeStretch SizeMode = "stretch"
)

// FlipOptions configures a flipper instance.
type FlipOptions struct {
	Width            float64  `json:"width"`
	Height           float64  `json:"height"`
	Size             SizeMode `json:"size"`
	MinWidth         float64  `json:"minWidth,omitempty"`
	MaxWidth         float64  `json:"maxWidth,omitempty"`
	MinHeight        float64  `json:"minHeight,omitempty"`
	MaxHeight        float64  `json:"maxHeight,omitempty"`
	ShowCover        bool     `json:"showCover"`
	MaxShadowOpacity float64  `json:"maxShadowOpacity"`
	UsePortrait      bool     `json:"usePortrait"`
}

// Flipper is the page-turn collaborator. CurrentPageIndex is 0-based.
type Flipper interface {
	LoadPages(pages []*Page) error
	FlipNext()
	CurrentPageIndex() int
	PageCount() int
}

// FlipperFactory constructs a flipper from options.
type FlipperFactory func(opts FlipOptions) Flipper

// flipOptions derives flipper options from the computed layout. Stretch mode keeps
// the configured bounds; fixed mode drops them.
func flipOptions(d Dimensions, base FlipOptions) FlipOptions {
	opts := base
	opts.Width = d.PageWidth()
	opts.Height = d.Height
	if opts.Size == "" {
		opts.Size = SizeFixed
	}
	if opts.Size == SizeFixed {
		opts.MinWidth, opts.MaxWidth, opts.MinHeight, opts.MaxHeight = 0, 0, 0, 0
	}
	if d.Spread {
		// two-page spread is forced in viewport mode
		opts.UsePortrait = false
	}
	return opts
}
