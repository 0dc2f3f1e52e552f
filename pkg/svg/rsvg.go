package svg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
)

// RSVG rasterizes by piping markup through rsvg-convert.
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
type RSVG struct{}

// Available reports whether rsvg-convert is on PATH.
func (RSVG) Available() bool {
	_, err := exec.LookPath("rsvg-convert")
	return err == nil
}

// Rasterize implements [Rasterizer].
func (r RSVG) Rasterize(ctx context.Context, markup string, width, height int) (image.Image, error) {
	if err := checkMarkup(markup, width, height); err != nil {
		return nil, err
	}
	if !r.Available() {
		return nil, fmt.Errorf("svg rasterizing with %s requires librsvg. Install with:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin", EngineRSVG)
	}

	cmd := exec.CommandContext(ctx, "rsvg-convert",
		"-f", "png",
		"-w", strconv.Itoa(width),
		"-h", strconv.Itoa(height),
	)
	cmd.Stdin = strings.NewReader(markup)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rsvg-convert: %v: %s", err, errBuf.String())
	}
	img, err := png.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("rsvg-convert output: %w", err)
	}
	return img, nil
}
