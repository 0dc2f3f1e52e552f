package postcard

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/fonts"
	"github.com/matzehuels/postcard/pkg/layout"
	"github.com/matzehuels/postcard/pkg/svg"
)

// Input is one composition request. Layout and Format override the
// composer's configured defaults when set.
type Input struct {
	Image   []byte
	Caption string
	SVG     string

	Layout Layout
	Format Format
}

// Option configures a [Composer].
type Option func(*Composer)

// WithFonts shares a font resolver between composers.
func WithFonts(r *fonts.Resolver) Option { return func(c *Composer) { c.fonts = r } }

// WithRasterizer selects the SVG engine.
func WithRasterizer(r svg.Rasterizer) Option { return func(c *Composer) { c.svg = r } }

// WithLogger sets the logger used for recoverable failures.
func WithLogger(l *log.Logger) Option { return func(c *Composer) { c.logger = l } }

// Composer turns photos and captions into postcards.
type Composer struct {
	cfg    Config
	fonts  *fonts.Resolver
	svg    svg.Rasterizer
	logger *log.Logger
}

// NewComposer validates cfg and builds a composer. Without options the
// composer resolves fonts from the default platform candidates and
// rasterizes sketches with oksvg.
func NewComposer(cfg Config, opts ...Option) (*Composer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid compose config")
	}
	c := &Composer{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.fonts == nil {
		c.fonts = fonts.NewResolver(fonts.Options{Logger: c.logger})
	}
	if c.svg == nil {
		c.svg = svg.OKSVG{}
	}
	return c, nil
}

// Config returns the composer's validated configuration.
func (c *Composer) Config() Config { return c.cfg }

// Compose renders in and encodes the result.
func (c *Composer) Compose(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lay := in.Layout
	if lay == "" {
		lay = c.cfg.Layout
	}
	format := in.Format
	if format == "" {
		format = c.cfg.Format
	}
	if !ValidFormats[format] {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format)
	}
	if err := errors.ValidateCaption(in.Caption); err != nil {
		return nil, err
	}

	var (
		fr  *frame
		err error
	)
	switch lay {
	case LayoutPostcard:
		src, derr := decode(in.Image, c.cfg.MaxDimension)
		if derr != nil {
			return nil, derr
		}
		fr, err = c.drawPostcard(ctx, src, in)
	case LayoutCard:
		fr, err = c.drawCard(ctx, in)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown layout %q", lay)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompositionFailed, err, "compose %s", lay)
	}

	data, err := encode(fr.img, format, c.cfg.Quality)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompositionFailed, err, "encode %s", format)
	}

	b := fr.img.Bounds()
	var svgMsg string
	if fr.svgErr != nil {
		svgMsg = fr.svgErr.Error()
	}
	return &Result{
		Data:            data,
		Format:          format,
		Layout:          lay,
		Width:           b.Dx(),
		Height:          b.Dy(),
		SourceHeight:    fr.sourceHeight,
		TextAreaHeight:  fr.textArea,
		Lines:           fr.lines,
		SVGFailed:       fr.svgErr != nil,
		SVGError:        fr.svgErr,
		SVGErrorMessage: svgMsg,
	}, nil
}

// frame is a finished canvas plus what was learned drawing it.
type frame struct {
	img          image.Image
	sourceHeight int
	textArea     int
	lines        []string
	svgErr       error
}

// TextAreaHeight returns the height reserved below the photo for a caption
// of runes characters that wrapped into lines lines with charsPerLine
// characters per line. It never drops below MinTextArea and never shrinks
// as the caption grows.
func (c Config) TextAreaHeight(runes, charsPerLine, lines int) int {
	if charsPerLine < 1 {
		charsPerLine = 1
	}
	est := (runes + charsPerLine - 1) / charsPerLine
	if lines > est {
		est = lines
	}
	h := int(math.Ceil(float64(est)*c.LineSpacing)) + 2*(c.Padding+c.Margin)
	if est == 0 || h < c.MinTextArea {
		return c.MinTextArea
	}
	return h
}

func (c *Composer) drawPostcard(ctx context.Context, src image.Image, in Input) (*frame, error) {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	face := c.fonts.Resolve(c.cfg.FontSize)

	caption := strings.TrimSpace(in.Caption)
	textWidth := float64(w - 2*c.cfg.Margin)
	if textWidth < 1 {
		textWidth = 1
	}
	lines := layout.Wrap(caption, textWidth, face, c.cfg.WrapMode)
	block := layout.Measure(lines, face, c.cfg.LineSpacing)
	textArea := c.cfg.TextAreaHeight(utf8.RuneCountInString(caption), layout.CharsPerLine(textWidth, face), len(lines))

	svgBand := 0
	hasSVG := strings.TrimSpace(in.SVG) != ""
	svgW, svgH := c.svgBox(w)
	if hasSVG {
		svgBand = c.cfg.SeparatorGap + svgH + c.cfg.Padding
	}

	dc := gg.NewContext(w, h+textArea+svgBand)
	dc.SetHexColor(c.cfg.Background)
	dc.Clear()
	dc.DrawImage(src, 0, 0)

	if len(lines) > 0 {
		top := float64(h) + (float64(textArea)-block.Height)/2
		c.drawBlock(dc, face, block, float64(w)/2, top)
	}

	fr := &frame{sourceHeight: h, textArea: textArea + svgBand, lines: lines}
	if hasSVG {
		bandTop := float64(h + textArea)
		c.drawSeparator(dc, float64(c.cfg.Margin), float64(w-c.cfg.Margin), bandTop)
		x := (w - svgW) / 2
		y := h + textArea + c.cfg.SeparatorGap
		fr.svgErr = c.drawSketch(ctx, dc, in.SVG, x, y, svgW, svgH, face)
	}
	fr.img = dc.Image()
	return fr, nil
}

// svgBox scales the configured sketch size down to fit a canvas of width w.
func (c *Composer) svgBox(w int) (int, int) {
	sw, sh := c.cfg.SVGWidth, c.cfg.SVGHeight
	avail := w - 2*c.cfg.Margin
	if avail < 1 {
		avail = w
	}
	if sw > avail {
		sh = max(1, sh*avail/sw)
		sw = max(1, avail)
	}
	return sw, sh
}

// drawBlock paints the opaque backing rectangle and the centered lines.
func (c *Composer) drawBlock(dc *gg.Context, face font.Face, block layout.Result, centerX, top float64) {
	pad := float64(c.cfg.Padding)
	dc.SetHexColor(c.cfg.TextBackground)
	dc.DrawRectangle(centerX-block.Width/2-pad, top-pad, block.Width+2*pad, block.Height+2*pad)
	dc.Fill()

	dc.SetFontFace(face)
	dc.SetHexColor(c.cfg.TextColor)
	lead := (block.LineSpacing - faceHeight(face)) / 2
	for i, line := range block.Lines {
		baseline := top + float64(i)*block.LineSpacing + lead + block.Ascent
		dc.DrawString(line.Text, centerX-line.Width/2, baseline)
	}
}

// drawSeparator draws a two-pixel rule whose lower row is half transparent.
func (c *Composer) drawSeparator(dc *gg.Context, x0, x1, y float64) {
	if x1 <= x0 {
		return
	}
	dc.SetHexColor(c.cfg.SeparatorColor)
	dc.DrawRectangle(x0, y, x1-x0, 1)
	dc.Fill()

	r, g, b, _ := parseHex(c.cfg.SeparatorColor)
	dc.SetRGBA255(r, g, b, 128)
	dc.DrawRectangle(x0, y+1, x1-x0, 1)
	dc.Fill()
}

// drawSketch rasterizes markup into the box at (x, y). On failure it draws
// the failure notice instead and returns the cause.
func (c *Composer) drawSketch(ctx context.Context, dc *gg.Context, markup string, x, y, w, h int, face font.Face) error {
	img, err := c.svg.Rasterize(ctx, markup, w, h)
	if err == nil {
		if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
			img = imaging.Fit(img, w, h, imaging.Lanczos)
		}
		b := img.Bounds()
		dc.DrawImage(img, x+(w-b.Dx())/2, y+(h-b.Dy())/2)
		return nil
	}

	c.logger.Warn("svg render failed, drawing notice", "error", err)
	dc.SetFontFace(face)
	dc.SetHexColor(c.cfg.FailureColor)
	dc.DrawStringAnchored(SVGFailureText, float64(x)+float64(w)/2, float64(y)+float64(h)/2, 0.5, 0.5)
	return errors.Wrap(errors.ErrCodeSvgRenderFailed, err, "rasterize sketch")
}

func (c *Composer) drawCard(ctx context.Context, in Input) (*frame, error) {
	card := c.cfg.Card
	face := c.fonts.Resolve(c.cfg.FontSize)

	lines := layout.Wrap(strings.TrimSpace(in.Caption), float64(card.Width-2*card.Padding), face, layout.Greedy)
	spacing := c.cfg.LineSpacing
	top := float64(card.Height) * card.TopMargin

	hasSVG := strings.TrimSpace(in.SVG) != ""
	textEnd := top + float64(len(lines))*spacing
	svgW, svgH := min(c.cfg.SVGWidth, card.Width-2*card.Padding), c.cfg.SVGHeight
	if svgW < c.cfg.SVGWidth {
		svgH = c.cfg.SVGHeight * svgW / c.cfg.SVGWidth
	}

	height := card.Height
	if hasSVG {
		need := int(math.Ceil(textEnd)) + 2*c.cfg.SeparatorGap + svgH + card.Padding
		height = max(height, need)
	} else {
		height = max(height, int(math.Ceil(textEnd))+card.Padding)
	}

	dc := gg.NewContext(card.Width, height)
	dc.SetHexColor(card.Background)
	dc.Clear()

	dc.SetFontFace(face)
	dc.SetHexColor(c.cfg.TextColor)
	block := layout.Measure(lines, face, spacing)
	for i, line := range block.Lines {
		x := (float64(card.Width) - line.Width) / 2
		dc.DrawString(line.Text, x, top+float64(i)*spacing+block.Ascent)
	}

	fr := &frame{textArea: height, lines: lines}
	if hasSVG {
		sepY := textEnd + float64(c.cfg.SeparatorGap)
		c.drawSeparator(dc, float64(card.Padding), float64(card.Width-card.Padding), sepY)
		x := (card.Width - svgW) / 2
		y := int(math.Ceil(textEnd)) + 2*c.cfg.SeparatorGap
		fr.svgErr = c.drawSketch(ctx, dc, in.SVG, x, y, svgW, svgH, face)
	}
	fr.img = dc.Image()
	return fr, nil
}

func faceHeight(face font.Face) float64 {
	m := face.Metrics()
	return float64(m.Ascent+m.Descent) / 64
}

// parseHex decodes a color already checked by validHex.
func parseHex(s string) (r, g, b, a int) {
	s = strings.TrimPrefix(s, "#")
	a = 255
	switch len(s) {
	case 3:
		fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b)
		r, g, b = r*17, g*17, b*17
	case 6:
		fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b)
	case 8:
		fmt.Sscanf(s, "%02x%02x%02x%02x", &r, &g, &b, &a)
	}
	return r, g, b, a
}
