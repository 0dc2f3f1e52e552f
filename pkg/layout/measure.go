package layout

import (
	"golang.org/x/image/font"
)

// Line is one wrapped line and its drawn width in pixels.
type Line struct {
	Text  string
	Width float64
}

// Result describes a measured text block.
type Result struct {
	Lines       []Line
	Width       float64 // widest line
	Height      float64 // len(Lines) * LineSpacing
	LineSpacing float64 // baseline-to-baseline distance
	Ascent      float64 // baseline offset of the first line from the block top
}

// Texts returns the line strings.
func (r Result) Texts() []string {
	out := make([]string, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = l.Text
	}
	return out
}

// Measure computes per-line widths and the bounds of the block. A
// non-positive lineSpacing uses the face's natural line height.
func Measure(lines []string, face font.Face, lineSpacing float64) Result {
	m := face.Metrics()
	if lineSpacing <= 0 {
		lineSpacing = toFloat(m.Height)
	}

	res := Result{
		Lines:       make([]Line, len(lines)),
		LineSpacing: lineSpacing,
		Ascent:      toFloat(m.Ascent),
		Height:      float64(len(lines)) * lineSpacing,
	}
	for i, text := range lines {
		w := toFloat(font.MeasureString(face, text))
		res.Lines[i] = Line{Text: text, Width: w}
		if w > res.Width {
			res.Width = w
		}
	}
	return res
}
