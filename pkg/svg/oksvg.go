package svg

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// OKSVG rasterizes with the pure-Go oksvg/rasterx stack. Unsupported
// elements are skipped; XML syntax errors fail.
type OKSVG struct{}

// Rasterize implements [Rasterizer]. Markup without a viewBox is drawn in a
// coordinate space of the target size.
func (OKSVG) Rasterize(ctx context.Context, markup string, width, height int) (img image.Image, err error) {
	if err := checkMarkup(markup, width, height); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// rasterx panics on some degenerate paths.
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("rasterize svg: %v", r)
		}
	}()

	icon, err := oksvg.ReadIconStream(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = float64(width), float64(height)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)
	return rgba, nil
}
