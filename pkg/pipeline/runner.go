package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/postcard/pkg/cache"
	"github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/integrations/chat"
	"github.com/matzehuels/postcard/pkg/integrations/coze"
	"github.com/matzehuels/postcard/pkg/integrations/imagefetch"
	"github.com/matzehuels/postcard/pkg/integrations/imgbb"
	"github.com/matzehuels/postcard/pkg/observability"
	"github.com/matzehuels/postcard/pkg/postcard"
)

// Fetcher downloads source photos.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*imagefetch.Image, error)
}

// Workflows generates captions for a style.
type Workflows interface {
	Name() string
	Has(style coze.Style) bool
	Run(ctx context.Context, style coze.Style, input string) (*coze.Reply, error)
}

// Uploader hosts composed images.
type Uploader interface {
	Upload(ctx context.Context, data []byte, name string) (*imgbb.Upload, error)
}

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for its collaborators and cache - it
// doesn't store pipeline results. Multiple goroutines can safely use the
// same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	Composer  *postcard.Composer
	Fetcher   Fetcher
	Workflows Workflows
	Chat      chat.Provider
	Uploader  Uploader
}

// RunnerOption wires a collaborator into a [Runner].
type RunnerOption func(*Runner)

// WithComposer sets the composer used by every run.
func WithComposer(c *postcard.Composer) RunnerOption { return func(r *Runner) { r.Composer = c } }

// WithFetcher sets the image downloader.
func WithFetcher(f Fetcher) RunnerOption { return func(r *Runner) { r.Fetcher = f } }

// WithWorkflows sets the caption workflow backend.
func WithWorkflows(w Workflows) RunnerOption { return func(r *Runner) { r.Workflows = w } }

// WithChat sets the chat provider used for text-only cards.
func WithChat(p chat.Provider) RunnerOption { return func(r *Runner) { r.Chat = p } }

// WithUploader sets the image host.
func WithUploader(u Uploader) RunnerOption { return func(r *Runner) { r.Uploader = u } }

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// Without a composer option, a composer with the default configuration is
// built; collaborators left unset disable the stages that need them.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger, opts ...RunnerOption) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Composer == nil {
		r.Composer, _ = postcard.NewComposer(postcard.DefaultConfig(), postcard.WithLogger(logger))
	}
	return r
}

// Execute runs the complete fetch → caption → compose → upload pipeline
// with caching. Fetch and caption run concurrently; the first failure
// cancels the other.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	start := time.Now()
	result := &Result{
		ID:      uuid.New().String(),
		Caption: opts.Caption,
		SVG:     opts.SVG,
	}
	logger := opts.Logger.With("id", result.ID)

	// The caption workflow reads the photo by URL. Bytes without a URL
	// are hosted first so the workflow can see them.
	captionInput := opts.ImageURL
	if opts.NeedsCaption() && captionInput == "" {
		up, err := r.upload(ctx, opts.Image, result.ID+"-source")
		if err != nil {
			return nil, err
		}
		captionInput = up.URL
		logger.Debug("hosted source photo for captioning", "url", captionInput)
	}

	var img []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.Now()
		data, hit, err := r.FetchWithCacheInfo(gctx, opts)
		if err != nil {
			return err
		}
		img = data
		result.Stats.FetchTime = time.Since(t)
		result.Stats.ImageBytes = len(data)
		result.CacheInfo.FetchHit = hit
		return nil
	})
	if opts.NeedsCaption() {
		g.Go(func() error {
			t := time.Now()
			reply, hit, err := r.CaptionWithCacheInfo(gctx, opts.style, captionInput, opts.Refresh)
			if err != nil {
				return err
			}
			result.Caption, result.SVG = reply.Comment, reply.SVG
			result.Stats.CaptionTime = time.Since(t)
			result.CacheInfo.CaptionHit = hit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("prepared inputs",
		"image_bytes", result.Stats.ImageBytes,
		"caption_runes", len([]rune(result.Caption)),
		"sketch", result.SVG != "",
		"fetch_cached", result.CacheInfo.FetchHit,
		"caption_cached", result.CacheInfo.CaptionHit)

	t := time.Now()
	artifact, hit, err := r.ComposeWithCacheInfo(ctx, opts, img, result.Caption, result.SVG)
	if err != nil {
		return nil, err
	}
	result.Artifact = artifact
	result.Stats.ComposeTime = time.Since(t)
	result.Stats.OutputBytes = len(artifact.Data)
	result.CacheInfo.ComposeHit = hit
	if artifact.SVGFailed {
		logger.Warn("sketch replaced by failure notice", "error", artifact.SVGFailure())
	}
	logger.Info("composed postcard",
		"layout", artifact.Layout,
		"format", artifact.Format,
		"size", [2]int{artifact.Width, artifact.Height},
		"cached", hit,
		"duration", result.Stats.ComposeTime)

	if opts.Upload {
		t := time.Now()
		up, err := r.upload(ctx, artifact.Data, result.ID)
		if err != nil {
			return nil, err
		}
		result.Upload = up
		result.Stats.UploadTime = time.Since(t)
		result.Stats.UploadTries = up.Attempts
		logger.Info("uploaded postcard", "url", up.URL, "attempts", up.Attempts)
	}

	result.Stats.TotalTime = time.Since(start)
	return result, nil
}

// FetchWithCacheInfo returns the source photo and whether it came from
// cache. Supplied bytes are returned as is.
func (r *Runner) FetchWithCacheInfo(ctx context.Context, opts Options) ([]byte, bool, error) {
	if len(opts.Image) > 0 {
		return opts.Image, false, nil
	}
	if r.Fetcher == nil {
		return nil, false, errors.New(errors.ErrCodeFetchFailed, "no image fetcher configured")
	}

	key := r.Keyer.ImageKey(opts.ImageURL)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "image")
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "image")
	}

	hooks := observability.Pipeline()
	hooks.OnFetchStart(ctx, opts.ImageURL)
	t := time.Now()
	img, err := r.Fetcher.Fetch(ctx, opts.ImageURL)
	size := 0
	if img != nil {
		size = len(img.Data)
	}
	hooks.OnFetchComplete(ctx, opts.ImageURL, size, time.Since(t), err)
	if err != nil {
		return nil, false, err
	}

	r.cacheSet(ctx, "image", key, img.Data, cache.TTLImage)
	return img.Data, false, nil
}

// CaptionWithCacheInfo runs the workflow for style on input and returns
// the reply and whether it came from cache.
func (r *Runner) CaptionWithCacheInfo(ctx context.Context, style coze.Style, input string, refresh bool) (*coze.Reply, bool, error) {
	if r.Workflows == nil || !r.Workflows.Has(style) {
		return nil, false, errors.New(errors.ErrCodeCaptionFailed, "no caption workflow configured for style %q", style)
	}
	key := r.Keyer.CaptionKey(cache.CaptionKeyOpts{
		Provider: r.Workflows.Name(),
		Style:    string(style),
		Input:    input,
	})

	var reply coze.Reply
	hit, err := r.cached(ctx, "caption", key, refresh, cache.TTLCaption, &reply, func() error {
		hooks := observability.Pipeline()
		hooks.OnCaptionStart(ctx, r.Workflows.Name(), string(style))
		t := time.Now()
		out, err := r.Workflows.Run(ctx, style, input)
		hooks.OnCaptionComplete(ctx, r.Workflows.Name(), string(style), time.Since(t), err)
		if err != nil {
			return err
		}
		reply = *out
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &reply, hit, nil
}

// ComposeWithCacheInfo composes img with caption and svg and returns the
// artifact and whether it came from cache.
func (r *Runner) ComposeWithCacheInfo(ctx context.Context, opts Options, img []byte, caption, svg string) (*postcard.Result, bool, error) {
	if r.Composer == nil {
		return nil, false, errors.New(errors.ErrCodeInternal, "no composer configured")
	}
	if err := opts.parseOutput(); err != nil {
		return nil, false, err
	}
	cfg := r.Composer.Config()
	keyOpts := opts.ArtifactKeyOpts(cfg, caption, svg)
	key := r.Keyer.ArtifactKey(cache.Hash(img), keyOpts)

	var artifact postcard.Result
	hit, err := r.cached(ctx, "artifact", key, opts.Refresh, cache.TTLArtifact, &artifact, func() error {
		hooks := observability.Pipeline()
		hooks.OnComposeStart(ctx, keyOpts.Layout, keyOpts.Format)
		t := time.Now()
		out, err := r.Composer.Compose(ctx, postcard.Input{
			Image:   img,
			Caption: caption,
			SVG:     svg,
			Layout:  opts.layout,
			Format:  opts.format,
		})
		size, failed := 0, false
		if out != nil {
			size, failed = len(out.Data), out.SVGFailed
		}
		hooks.OnComposeComplete(ctx, keyOpts.Layout, keyOpts.Format, size, failed, time.Since(t), err)
		if err != nil {
			return err
		}
		artifact = *out
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &artifact, hit, nil
}

// Poetry turns text into a card: the chat provider (or the poetry
// workflow when no provider is set) writes a comment and sketch, which
// are composed with [postcard.LayoutCard].
func (r *Runner) Poetry(ctx context.Context, text string) (*Result, error) {
	if err := errors.ValidateCaption(text); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "text cannot be empty")
	}
	start := time.Now()
	result := &Result{ID: uuid.New().String()}
	logger := r.Logger.With("id", result.ID)

	t := time.Now()
	reply, hit, err := r.replyFor(ctx, text)
	if err != nil {
		return nil, err
	}
	result.Caption, result.SVG = reply.Comment, reply.SVG
	result.Stats.CaptionTime = time.Since(t)
	result.CacheInfo.CaptionHit = hit
	logger.Info("generated poem reply", "cached", hit, "sketch", reply.SVG != "")

	t = time.Now()
	opts := Options{Layout: string(postcard.LayoutCard), Logger: logger}
	artifact, hit, err := r.ComposeWithCacheInfo(ctx, opts, nil, reply.Comment, reply.SVG)
	if err != nil {
		return nil, err
	}
	result.Artifact = artifact
	result.Stats.ComposeTime = time.Since(t)
	result.Stats.OutputBytes = len(artifact.Data)
	result.CacheInfo.ComposeHit = hit
	result.Stats.TotalTime = time.Since(start)
	return result, nil
}

func (r *Runner) replyFor(ctx context.Context, text string) (*chat.Reply, bool, error) {
	if r.Chat == nil {
		cr, hit, err := r.CaptionWithCacheInfo(ctx, coze.StylePoetry, text, false)
		if err != nil {
			return nil, false, err
		}
		return &chat.Reply{Comment: cr.Comment, SVG: cr.SVG}, hit, nil
	}

	key := r.Keyer.CaptionKey(cache.CaptionKeyOpts{
		Provider: r.Chat.Name(),
		Model:    r.Chat.Model(),
		Style:    string(coze.StylePoetry),
		Input:    text,
	})
	var reply chat.Reply
	hit, err := r.cached(ctx, "caption", key, false, cache.TTLCaption, &reply, func() error {
		hooks := observability.Pipeline()
		hooks.OnCaptionStart(ctx, r.Chat.Name(), string(coze.StylePoetry))
		t := time.Now()
		out, err := r.Chat.Generate(ctx, chat.Request{Text: text})
		hooks.OnCaptionComplete(ctx, r.Chat.Name(), string(coze.StylePoetry), time.Since(t), err)
		if err != nil {
			return err
		}
		reply = *out
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &reply, hit, nil
}

func (r *Runner) upload(ctx context.Context, data []byte, name string) (*imgbb.Upload, error) {
	if r.Uploader == nil {
		return nil, errors.New(errors.ErrCodeUploadFailed, "no image host configured")
	}
	return r.Uploader.Upload(ctx, data, name)
}

// cached loads key into v, or runs compute (which fills v) and stores
// the JSON encoding of v. It reports whether v came from cache.
func (r *Runner) cached(ctx context.Context, kind, key string, refresh bool, ttl time.Duration, v any, compute func() error) (bool, error) {
	if !refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if json.Unmarshal(data, v) == nil {
				observability.Cache().OnCacheHit(ctx, kind)
				return true, nil
			}
			// If deserialization fails, fall through to recompute
		}
		observability.Cache().OnCacheMiss(ctx, kind)
	}
	if err := compute(); err != nil {
		return false, err
	}
	if data, err := json.Marshal(v); err == nil {
		r.cacheSet(ctx, kind, key, data, ttl)
	}
	return false, nil
}

func (r *Runner) cacheSet(ctx context.Context, kind, key string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Debug("cache write failed", "kind", kind, "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, kind, len(data))
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
