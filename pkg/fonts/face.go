package fonts

import (
	"image"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// syncFace serializes access to a face. Faces from opentype and truetype
// keep scratch buffers and glyph caches, so a face shared between
// concurrent compositions must be locked.
type syncFace struct {
	mu   sync.Mutex
	face font.Face
}

func newSyncFace(f font.Face) font.Face {
	return &syncFace{face: f}
}

func (s *syncFace) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.face.Close()
}

func (s *syncFace) Glyph(dot fixed.Point26_6, r rune) (image.Rectangle, image.Image, image.Point, fixed.Int26_6, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dr, mask, maskp, advance, ok := s.face.Glyph(dot, r)
	if mask == nil {
		return dr, mask, maskp, advance, ok
	}
	// The mask aliases the face's internal buffer; hand out a copy.
	return dr, cloneMask(mask), maskp, advance, ok
}

func (s *syncFace) GlyphBounds(r rune) (fixed.Rectangle26_6, fixed.Int26_6, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.face.GlyphBounds(r)
}

func (s *syncFace) GlyphAdvance(r rune) (fixed.Int26_6, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.face.GlyphAdvance(r)
}

func (s *syncFace) Kern(r0, r1 rune) fixed.Int26_6 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.face.Kern(r0, r1)
}

func (s *syncFace) Metrics() font.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.face.Metrics()
}

func cloneMask(m image.Image) image.Image {
	switch src := m.(type) {
	case *image.Alpha:
		dst := &image.Alpha{
			Pix:    append([]uint8(nil), src.Pix...),
			Stride: src.Stride,
			Rect:   src.Rect,
		}
		return dst
	default:
		// basicfont and other static masks are immutable.
		return m
	}
}
