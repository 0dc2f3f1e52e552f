package postcard

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/postcard/pkg/errors"
)

// pdfDPI maps canvas pixels to PDF millimetres.
const pdfDPI = 96.0

// decode reads JPEG, PNG, GIF or WebP data, applies EXIF orientation and
// shrinks the image so its long edge is at most maxDim. Resizing happens
// before any canvas is allocated.
func decode(data []byte, maxDim int) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "image is empty")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "decode image")
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "image has no pixels")
	}
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}
	return img, nil
}

func encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, err
		}
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, err
		}
	case FormatWebP:
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return nil, fmt.Errorf("webp options: %w", err)
		}
		if err := webp.Encode(&buf, img, options); err != nil {
			return nil, err
		}
	case FormatPDF:
		return encodePDF(img)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return buf.Bytes(), nil
}

// encodePDF places the canvas on a single page of the same size at 96 DPI.
func encodePDF(img image.Image) ([]byte, error) {
	dpmm := pdfDPI / 25.4
	b := img.Bounds()
	w, h := float64(b.Dx())/dpmm, float64(b.Dy())/dpmm

	var buf bytes.Buffer
	writer := pdf.New(&buf, w, h, nil)
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.DrawImage(0, 0, img, canvas.DPMM(dpmm))
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Result is an encoded postcard.
type Result struct {
	Data   []byte `json:"data"`
	Format Format `json:"format"`
	Layout Layout `json:"layout"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// SourceHeight is the height of the photo after resizing. Zero for
	// LayoutCard.
	SourceHeight int `json:"source_height"`

	// TextAreaHeight is everything below the photo, including the sketch
	// band when a sketch was requested.
	TextAreaHeight int `json:"text_area_height"`

	// Lines are the wrapped caption lines as drawn.
	Lines []string `json:"lines"`

	// SVGFailed reports that the sketch was replaced by the failure notice.
	// SVGError holds the SVG_RENDER_FAILED cause; it does not survive
	// caching, SVGErrorMessage does.
	SVGFailed       bool   `json:"svg_failed"`
	SVGError        error  `json:"-"`
	SVGErrorMessage string `json:"svg_error,omitempty"`
}

// SVGFailure describes why the sketch was not drawn, or "" if it was.
func (r *Result) SVGFailure() string {
	if r.SVGError != nil {
		return r.SVGError.Error()
	}
	return r.SVGErrorMessage
}

// MIMEType returns the media type of Data.
func (r *Result) MIMEType() string { return r.Format.MIMEType() }

// Base64 returns Data in standard base64.
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.Data)
}

// DataURI returns Data as a data: URI.
func (r *Result) DataURI() string {
	return "data:" + r.MIMEType() + ";base64," + r.Base64()
}

// Encoded returns the bytes to hand to a caller that asked for enc.
func (r *Result) Encoded(enc Encoding) []byte {
	if enc == EncodingBase64 {
		return []byte(r.DataURI())
	}
	return r.Data
}

// ParseEncoding validates an encoding name; empty selects raw.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingRaw:
		return EncodingRaw, nil
	case EncodingBase64:
		return EncodingBase64, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q (want raw or base64)", s)
	}
}
