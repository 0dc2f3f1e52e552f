// Package layout breaks caption text into lines that fit a pixel width and
// measures the resulting block.
//
// Two wrapping strategies are offered. [CharBudget] estimates how many wide
// characters fit on a line and packs words by character count, keeping
// Latin words intact; lines the estimate lets run past the width are then
// re-packed by measured width. [Greedy] measures every rune with the face
// and starts a new line as soon as the next rune would overflow, which is
// exact for mixed CJK and Latin text.
//
// Both strategies treat newlines as hard breaks, never drop a rune that is
// wider than the whole line, and are stable: wrapping the output lines again
// (joined with newlines) yields the same partition.
package layout

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Mode selects a wrapping strategy.
type Mode int

const (
	// CharBudget derives a characters-per-line budget from the width of a
	// representative wide glyph and packs whole words into that budget.
	// Lines that still measure wider than the limit are split again.
	CharBudget Mode = iota
	// Greedy accumulates runes by measured advance.
	Greedy
)

// budgetRune is the glyph whose advance estimates the width of one
// character in CharBudget mode.
const budgetRune = '中'

// String returns the mode name accepted by [ParseMode].
func (m Mode) String() string {
	switch m {
	case CharBudget:
		return "budget"
	case Greedy:
		return "greedy"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "budget" or "greedy".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "budget", "char-budget", "chars":
		return CharBudget, nil
	case "greedy", "measure":
		return Greedy, nil
	default:
		return 0, fmt.Errorf("unknown wrap mode %q (want budget or greedy)", s)
	}
}

// Wrap breaks text into lines no wider than maxWidth pixels when drawn with
// face. Empty text yields no lines. A single rune wider than maxWidth is
// placed on a line of its own.
func Wrap(text string, maxWidth float64, face font.Face, mode Mode) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		switch mode {
		case Greedy:
			lines = append(lines, wrapGreedy(para, fixed.Int26_6(maxWidth*64), face)...)
		default:
			budget := wrapBudget(para, CharsPerLine(maxWidth, face))
			lines = append(lines, fitWidth(budget, fixed.Int26_6(maxWidth*64), face)...)
		}
	}
	return lines
}

// CharsPerLine estimates how many wide characters fit in maxWidth. The
// result is at least one.
func CharsPerLine(maxWidth float64, face font.Face) int {
	w := toFloat(advance(face, budgetRune))
	if w <= 0 {
		w = toFloat(face.Metrics().Height)
	}
	if w <= 0 {
		return 1
	}
	n := int(maxWidth / w)
	if n < 1 {
		return 1
	}
	return n
}

func wrapGreedy(para string, maxWidth fixed.Int26_6, face font.Face) []string {
	var (
		lines []string
		cur   []rune
		width fixed.Int26_6
		prev  rune = -1
	)
	for _, r := range para {
		step := advance(face, r)
		if prev >= 0 {
			step += face.Kern(prev, r)
		}
		if len(cur) > 0 && width+step > maxWidth {
			lines = append(lines, string(cur))
			cur, width = cur[:0:0], 0
			step = advance(face, r)
		}
		cur = append(cur, r)
		width += step
		prev = r
	}
	if len(cur) > 0 || len(lines) == 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

func wrapBudget(para string, n int) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return []string{""}
	}

	var (
		lines []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, string(cur))
			cur = cur[:0:0]
		}
	}
	for _, word := range words {
		w := []rune(word)
		if len(cur) > 0 && len(cur)+1+len(w) <= n {
			cur = append(append(cur, ' '), w...)
			continue
		}
		flush()
		for len(w) > n {
			lines = append(lines, string(w[:n]))
			w = w[n:]
		}
		cur = append(cur, w...)
	}
	flush()
	return lines
}

// fitWidth re-packs every line that measures wider than maxWidth, keeping
// words whole where they fit and breaking the rest rune by rune.
func fitWidth(lines []string, maxWidth fixed.Int26_6, face font.Face) []string {
	out := lines[:0:0]
	for _, l := range lines {
		if utf8.RuneCountInString(l) <= 1 || font.MeasureString(face, l) <= maxWidth {
			out = append(out, l)
			continue
		}
		out = append(out, wrapWords(l, maxWidth, face)...)
	}
	return out
}

func wrapWords(line string, maxWidth fixed.Int26_6, face font.Face) []string {
	var (
		lines []string
		cur   string
	)
	for _, word := range strings.Fields(line) {
		if cur != "" && font.MeasureString(face, cur+" "+word) <= maxWidth {
			cur += " " + word
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
			cur = ""
		}
		if font.MeasureString(face, word) <= maxWidth {
			cur = word
			continue
		}
		parts := wrapGreedy(word, maxWidth, face)
		lines = append(lines, parts[:len(parts)-1]...)
		cur = parts[len(parts)-1]
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func advance(face font.Face, r rune) fixed.Int26_6 {
	adv, _ := face.GlyphAdvance(r)
	return adv
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
