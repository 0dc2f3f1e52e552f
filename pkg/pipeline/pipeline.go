// Package pipeline provides the postcard generation pipeline.
//
// This package implements the complete fetch → caption → compose → upload
// pipeline used by the CLI and the HTTP service. By centralizing this
// logic, both entry points cache, log and report errors the same way.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Fetch: download the source photo (skipped when bytes are supplied)
//  2. Caption: run the caption workflow for the chosen style (skipped when
//     a caption is supplied); runs concurrently with Fetch
//  3. Compose: render photo, caption and sketch into one image
//  4. Upload: host the result and return its public URL (optional)
//
// Every stage result is cached through [cache.Cache] under keys from
// [cache.Keyer], so repeating a request is cheap.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger,
//	    pipeline.WithComposer(composer),
//	    pipeline.WithFetcher(imagefetch.NewClient()),
//	    pipeline.WithWorkflows(cozeClient),
//	)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    ImageURL: "https://example.com/photo.jpg",
//	    Style:    "mood",
//	})
//
// Text-only cards come from [Runner.Poetry].
package pipeline

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/postcard/pkg/cache"
	"github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/integrations/coze"
	"github.com/matzehuels/postcard/pkg/integrations/imgbb"
	"github.com/matzehuels/postcard/pkg/postcard"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Source photo: a URL, or bytes already in hand.
	ImageURL string `json:"image_url,omitempty"`
	Image    []byte `json:"-"`

	// Caption skips generation when set. SVG is an optional sketch to go
	// with a supplied caption.
	Caption string `json:"caption,omitempty"`
	SVG     string `json:"svg,omitempty"`
	Style   string `json:"style,omitempty"`

	// Output
	Layout string `json:"layout,omitempty"`
	Format string `json:"format,omitempty"`
	Upload bool   `json:"upload,omitempty"`

	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	style     coze.Style
	layout    postcard.Layout
	format    postcard.Format
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// ID identifies the run in logs and API responses.
	ID string

	// Caption and SVG are what was composed.
	Caption string
	SVG     string

	// Artifact is the composed postcard.
	Artifact *postcard.Result

	// Upload is set when the artifact was hosted.
	Upload *imgbb.Upload

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// URL returns the hosted URL, or "" when nothing was uploaded.
func (r *Result) URL() string {
	if r.Upload == nil {
		return ""
	}
	return r.Upload.URL
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ImageBytes  int
	OutputBytes int
	FetchTime   time.Duration
	CaptionTime time.Duration
	ComposeTime time.Duration
	UploadTime  time.Duration
	UploadTries int
	TotalTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	FetchHit   bool `json:"fetch"`   // Whether the source photo came from cache
	CaptionHit bool `json:"caption"` // Whether the caption came from cache
	ComposeHit bool `json:"compose"` // Whether the artifact came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.ImageURL = strings.TrimSpace(o.ImageURL)
	if o.ImageURL == "" && len(o.Image) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "image_url or image is required")
	}
	if o.ImageURL != "" {
		if err := errors.ValidateURL(o.ImageURL); err != nil {
			return err
		}
	}
	if err := errors.ValidateCaption(o.Caption); err != nil {
		return err
	}

	style, err := coze.ParseStyle(o.Style)
	if err != nil {
		return err
	}
	if style.TextInput() && o.Caption == "" {
		return errors.New(errors.ErrCodeInvalidStyle, "style %q captions text, not photos", style)
	}
	o.style = style

	if err := o.parseOutput(); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

func (o *Options) parseOutput() error {
	l, err := postcard.ParseLayout(o.Layout)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "%v", err)
	}
	o.layout = l
	if o.Format != "" {
		f, err := postcard.ParseFormat(o.Format)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "%v", err)
		}
		o.format = f
	}
	return nil
}

// NeedsCaption reports whether the caption stage has to run.
func (o *Options) NeedsCaption() bool {
	return strings.TrimSpace(o.Caption) == ""
}

// ArtifactKeyOpts returns cache key options for the compose stage.
func (o *Options) ArtifactKeyOpts(cfg postcard.Config, caption, svg string) cache.ArtifactKeyOpts {
	format := o.format
	if format == "" {
		format = cfg.Format
	}
	return cache.ArtifactKeyOpts{
		Caption:      caption,
		SVG:          svg,
		Layout:       string(o.layout),
		Format:       string(format),
		Quality:      cfg.Quality,
		MaxDimension: cfg.MaxDimension,
		FontSize:     cfg.FontSize,
		WrapMode:     cfg.WrapMode.String(),
	}
}
