// Package postcard composes a photo, a caption and an optional SVG sketch
// into a single image.
//
// # Layouts
//
// [LayoutPostcard] keeps the photo at the top of the canvas, pasted at the
// origin, and appends a text area below it. The text area is at least
// [Config.MinTextArea] pixels tall and grows with the caption. When an SVG
// sketch is supplied a further band is appended below the text, holding the
// rasterized sketch under a separator line.
//
// [LayoutCard] ignores the photo and draws the caption on a fixed-width
// card, each line centered horizontally, followed by the sketch. It is used for text-only flows
// such as poetry.
//
// # Failure semantics
//
// Undecodable input fails with INVALID_IMAGE. A sketch that cannot be
// rasterized never fails the composition: a visible notice is drawn in its
// place and [Result.SVGFailed] is set. Any other failure is
// COMPOSITION_FAILED and no partial image is returned.
//
// # Concurrency
//
// A [Composer] holds only immutable configuration and a shared font
// resolver. Every call owns its canvas, so a Composer can be used from
// many goroutines at once.
package postcard

import (
	"fmt"
	"strings"

	"github.com/matzehuels/postcard/pkg/fonts"
	"github.com/matzehuels/postcard/pkg/layout"
)

// Layout selects how the canvas is arranged.
type Layout string

const (
	LayoutPostcard Layout = "postcard"
	LayoutCard     Layout = "card"
)

// ParseLayout normalizes a layout name. An empty string selects
// [LayoutPostcard].
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LayoutPostcard, nil
	case LayoutPostcard, LayoutCard:
		return l, nil
	default:
		return "", fmt.Errorf("unsupported layout %q (want postcard or card)", s)
	}
}

// Format is an output image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatPDF  Format = "pdf"
)

// Encoding selects how encoded bytes are returned to callers.
type Encoding string

const (
	EncodingRaw    Encoding = "raw"
	EncodingBase64 Encoding = "base64"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[Format]bool{
	FormatJPEG: true,
	FormatPNG:  true,
	FormatWebP: true,
	FormatPDF:  true,
}

// ParseFormat normalizes a user-supplied format name. "jpg" is accepted as
// an alias of jpeg.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpg" {
		f = FormatJPEG
	}
	if !ValidFormats[f] {
		return "", fmt.Errorf("unsupported format %q (want jpeg, png, webp or pdf)", s)
	}
	return f, nil
}

// MIMEType returns the media type of the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatPDF:
		return "application/pdf"
	default:
		return "image/jpeg"
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultMaxDimension = 2048
	DefaultMinTextArea  = 200
	DefaultMargin       = 40
	DefaultPadding      = 20
	DefaultQuality      = 95

	DefaultSVGWidth  = 280
	DefaultSVGHeight = 380

	// DefaultSeparatorGap is the space between a text block and the
	// separator line above the sketch.
	DefaultSeparatorGap = 25

	DefaultBackground     = "#FFFFFF"
	DefaultTextColor      = "#333333"
	DefaultTextBackground = "#FFFFFF"
	DefaultSeparatorColor = "#333333"
	DefaultFailureColor   = "#FF0000"

	// SVGFailureText is drawn in place of a sketch that could not be
	// rasterized.
	SVGFailureText = "SVG渲染失败"
)

// Card defaults.
const (
	DefaultCardWidth      = 360
	DefaultCardHeight     = 600
	DefaultCardPadding    = 30
	DefaultCardBackground = "#F8F8F8"
	DefaultCardTopMargin  = 0.10
)

// Config holds every tunable of the composer. The zero value is not
// usable; start from [DefaultConfig].
type Config struct {
	Layout       Layout      `toml:"layout"`
	Format       Format      `toml:"format"`
	Quality      int         `toml:"quality"`
	MaxDimension int         `toml:"max_dimension"`
	MinTextArea  int         `toml:"min_text_area"`
	Margin       int         `toml:"margin"`
	Padding      int         `toml:"padding"`
	FontSize     float64     `toml:"font_size"`
	LineSpacing  float64     `toml:"line_spacing"`
	WrapMode     layout.Mode `toml:"-"`
	Wrap         string      `toml:"wrap"`

	Background     string `toml:"background"`
	TextColor      string `toml:"text_color"`
	TextBackground string `toml:"text_background"`
	SeparatorColor string `toml:"separator_color"`
	FailureColor   string `toml:"failure_color"`

	SVGWidth     int `toml:"svg_width"`
	SVGHeight    int `toml:"svg_height"`
	SeparatorGap int `toml:"separator_gap"`

	Card CardConfig `toml:"card"`
}

// CardConfig configures [LayoutCard].
type CardConfig struct {
	Width      int     `toml:"width"`
	Height     int     `toml:"height"`
	Padding    int     `toml:"padding"`
	TopMargin  float64 `toml:"top_margin"` // fraction of Height
	Background string  `toml:"background"`
}

// DefaultConfig returns the stock postcard settings.
func DefaultConfig() Config {
	return Config{
		Layout:         LayoutPostcard,
		Format:         FormatJPEG,
		Quality:        DefaultQuality,
		MaxDimension:   DefaultMaxDimension,
		MinTextArea:    DefaultMinTextArea,
		Margin:         DefaultMargin,
		Padding:        DefaultPadding,
		FontSize:       fonts.DefaultSize,
		LineSpacing:    fonts.DefaultSize + 10,
		WrapMode:       layout.CharBudget,
		Wrap:           layout.CharBudget.String(),
		Background:     DefaultBackground,
		TextColor:      DefaultTextColor,
		TextBackground: DefaultTextBackground,
		SeparatorColor: DefaultSeparatorColor,
		FailureColor:   DefaultFailureColor,
		SVGWidth:       DefaultSVGWidth,
		SVGHeight:      DefaultSVGHeight,
		SeparatorGap:   DefaultSeparatorGap,
		Card: CardConfig{
			Width:      DefaultCardWidth,
			Height:     DefaultCardHeight,
			Padding:    DefaultCardPadding,
			TopMargin:  DefaultCardTopMargin,
			Background: DefaultCardBackground,
		},
	}
}

// Validate checks ranges and resolves [Config.Wrap] into
// [Config.WrapMode]. A zero MaxDimension disables resizing.
func (c *Config) Validate() error {
	if c.Layout != LayoutPostcard && c.Layout != LayoutCard {
		return fmt.Errorf("unknown layout %q", c.Layout)
	}
	if !ValidFormats[c.Format] {
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be 1-100, got %d", c.Quality)
	}
	if c.MaxDimension < 0 {
		return fmt.Errorf("max_dimension cannot be negative")
	}
	if c.MinTextArea < 0 || c.Margin < 0 || c.Padding < 0 || c.SeparatorGap < 0 {
		return fmt.Errorf("spacing values cannot be negative")
	}
	if c.FontSize <= 0 {
		return fmt.Errorf("font_size must be positive")
	}
	if c.LineSpacing <= 0 {
		c.LineSpacing = c.FontSize + 10
	}
	if c.SVGWidth <= 0 || c.SVGHeight <= 0 {
		return fmt.Errorf("svg size must be positive, got %dx%d", c.SVGWidth, c.SVGHeight)
	}
	if c.Card.Width <= 2*c.Card.Padding || c.Card.Height <= 0 {
		return fmt.Errorf("card size %dx%d leaves no room for padding %d", c.Card.Width, c.Card.Height, c.Card.Padding)
	}
	if c.Card.TopMargin < 0 || c.Card.TopMargin >= 1 {
		return fmt.Errorf("card top_margin must be in [0, 1)")
	}
	for name, hex := range map[string]string{
		"background":      c.Background,
		"text_color":      c.TextColor,
		"text_background": c.TextBackground,
		"separator_color": c.SeparatorColor,
		"failure_color":   c.FailureColor,
		"card.background": c.Card.Background,
	} {
		if !validHex(hex) {
			return fmt.Errorf("%s: invalid hex color %q", name, hex)
		}
	}
	if c.Wrap != "" {
		mode, err := layout.ParseMode(c.Wrap)
		if err != nil {
			return err
		}
		c.WrapMode = mode
	}
	return nil
}

// validHex accepts #RGB, #RRGGBB and #RRGGBBAA.
func validHex(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	s = s[1:]
	if len(s) != 3 && len(s) != 6 && len(s) != 8 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
