// Package svg rasterizes the small SVG sketches that accompany generated
// captions.
//
// Two engines are available. [OKSVG] is pure Go and always present; it
// handles the path, shape and gradient subset that chat models produce.
// [RSVG] shells out to librsvg's rsvg-convert for full SVG support (text,
// filters, CSS) when the binary is installed.
package svg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"
)

// Engine names accepted by [New].
const (
	EngineOKSVG = "oksvg"
	EngineRSVG  = "rsvg"
)

// ErrNotSVG is returned for markup without an <svg> element.
var ErrNotSVG = errors.New("markup has no <svg> element")

// Rasterizer renders SVG markup to a raster of the given size.
type Rasterizer interface {
	Rasterize(ctx context.Context, markup string, width, height int) (image.Image, error)
}

// New returns the engine registered under name. An empty name selects
// [EngineOKSVG].
func New(name string) (Rasterizer, error) {
	switch name {
	case "", EngineOKSVG:
		return OKSVG{}, nil
	case EngineRSVG:
		return RSVG{}, nil
	default:
		return nil, fmt.Errorf("unknown svg engine %q (want %s or %s)", name, EngineOKSVG, EngineRSVG)
	}
}

var svgElement = regexp.MustCompile(`(?s)<svg.*?</svg>`)

// Extract returns the first complete <svg>...</svg> element in text.
func Extract(text string) (string, bool) {
	m := svgElement.FindString(text)
	return m, m != ""
}

func checkMarkup(markup string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if !strings.Contains(markup, "<svg") {
		return ErrNotSVG
	}
	return nil
}
