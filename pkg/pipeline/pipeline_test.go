package pipeline

import (
	"testing"

	"github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/integrations/coze"
	"github.com/matzehuels/postcard/pkg/postcard"
)

func TestValidateAndSetDefaults(t *testing.T) {
	opts := Options{ImageURL: " https://example.com/a.jpg ", Format: "jpg"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error: %v", err)
	}
	if opts.ImageURL != "https://example.com/a.jpg" {
		t.Errorf("ImageURL not trimmed: %q", opts.ImageURL)
	}
	if opts.style != coze.StyleMood || opts.layout != postcard.LayoutPostcard || opts.format != postcard.FormatJPEG {
		t.Errorf("defaults = %q %q %q", opts.style, opts.layout, opts.format)
	}
	if opts.Logger == nil {
		t.Error("logger should default to a discard logger")
	}

	// Idempotent
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second call error: %v", err)
	}
}

func TestValidateAndSetDefaultsErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want errors.Code
	}{
		{"no image", Options{}, errors.ErrCodeInvalidInput},
		{"bad scheme", Options{ImageURL: "file:///etc/passwd"}, errors.ErrCodeInvalidInput},
		{"unknown style", Options{ImageURL: "https://x/a.jpg", Style: "haiku"}, errors.ErrCodeInvalidStyle},
		{"text style on photo", Options{ImageURL: "https://x/a.jpg", Style: "poetry"}, errors.ErrCodeInvalidStyle},
		{"bad format", Options{ImageURL: "https://x/a.jpg", Format: "bmp"}, errors.ErrCodeInvalidFormat},
		{"bad layout", Options{ImageURL: "https://x/a.jpg", Layout: "poster"}, errors.ErrCodeInvalidInput},
		{"control chars", Options{ImageURL: "https://x/a.jpg", Caption: "a\x00b"}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if got := errors.GetCode(err); got != tt.want {
				t.Errorf("code = %s, want %s (%v)", got, tt.want, err)
			}
		})
	}
}

func TestTextStyleAllowedWithCaption(t *testing.T) {
	opts := Options{Image: []byte{1}, Style: "story", Caption: "given"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("supplied caption should bypass the style check: %v", err)
	}
	if opts.NeedsCaption() {
		t.Error("NeedsCaption() should be false with a caption")
	}
}

func TestArtifactKeyOpts(t *testing.T) {
	cfg := postcard.DefaultConfig()
	opts := Options{ImageURL: "https://x/a.jpg"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	k := opts.ArtifactKeyOpts(cfg, "c", "s")
	if k.Format != string(cfg.Format) || k.Layout != "postcard" || k.Caption != "c" || k.SVG != "s" {
		t.Errorf("ArtifactKeyOpts() = %+v", k)
	}

	opts.format = postcard.FormatPNG
	if opts.ArtifactKeyOpts(cfg, "c", "s").Format != "png" {
		t.Error("explicit format should win")
	}
}
