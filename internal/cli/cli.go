// Package cli implements the postcard command-line interface.
//
// This package provides commands for composing postcards from photos,
// generating captions and poetry cards, serving the HTTP API and managing
// the response cache. The CLI is built using cobra and supports verbose
// logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - compose: Fetch a photo, caption it and render a postcard
//   - caption: Run a caption workflow without composing
//   - poetry: Turn a line of text into a poetry card
//   - serve: Run the HTTP API
//   - fonts: Show which font the composer resolves
//   - cache: Manage the response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Example
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/postcard/pkg/cache"
	"github.com/matzehuels/postcard/pkg/config"
	"github.com/matzehuels/postcard/pkg/fonts"
	"github.com/matzehuels/postcard/pkg/integrations"
	"github.com/matzehuels/postcard/pkg/integrations/chat"
	"github.com/matzehuels/postcard/pkg/integrations/coze"
	"github.com/matzehuels/postcard/pkg/integrations/imagefetch"
	"github.com/matzehuels/postcard/pkg/integrations/imgbb"
	"github.com/matzehuels/postcard/pkg/pipeline"
	"github.com/matzehuels/postcard/pkg/postcard"
	"github.com/matzehuels/postcard/pkg/svg"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "postcard"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath is set by --config. Empty means $POSTCARD_CONFIG or
	// ./postcard.toml.
	ConfigPath string

	// loadConfig defaults to config.Load; tests replace it.
	loadConfig func(path string) (config.Config, error)
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:     newLogger(w, level),
		loadConfig: config.Load,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Config loads the configuration once and returns it.
func (c *CLI) Config() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	load := c.loadConfig
	if load == nil {
		load = config.Load
	}
	cfg, err := load(c.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	c.cfg = &cfg
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner with every collaborator the
// configuration enables. Missing API keys leave the matching stage
// unavailable rather than failing here.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}
	logger := c.Logger

	composer, err := newComposer(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := newCache(ctx, cfg.Cache, noCache)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.RunnerOption{
		pipeline.WithComposer(composer),
		pipeline.WithFetcher(imagefetch.NewClient(integrations.WithLogger(logger))),
	}
	if cfg.Coze.APIKey != "" {
		opts = append(opts, pipeline.WithWorkflows(newWorkflows(cfg.Coze, logger)))
	} else {
		logger.Debug("coze api key not set; caption workflows disabled")
	}
	if cfg.Upload.APIKey != "" {
		opts = append(opts, pipeline.WithUploader(newUploader(cfg.Upload, logger)))
	} else {
		logger.Debug("imgbb api key not set; uploads disabled")
	}
	provider, err := newChat(cfg.Chat, logger)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		opts = append(opts, pipeline.WithChat(provider))
	}

	return pipeline.NewRunner(store, nil, logger, opts...), nil
}

// newComposer builds the composer with the configured fonts and SVG engine.
// An unavailable rsvg-convert falls back to oksvg.
func newComposer(cfg config.Config, logger *log.Logger) (*postcard.Composer, error) {
	resolver := fonts.NewResolver(fonts.Options{
		OverridePath: cfg.Fonts.Path,
		Names:        cfg.Fonts.Names,
		Logger:       logger,
	})
	engine, err := svg.New(cfg.Compose.SVGEngine)
	if err != nil {
		return nil, err
	}
	if r, ok := engine.(svg.RSVG); ok && !r.Available() {
		logger.Warn("rsvg-convert not found, using oksvg")
		engine = svg.OKSVG{}
	}
	return postcard.NewComposer(cfg.Compose.Config,
		postcard.WithFonts(resolver),
		postcard.WithRasterizer(engine),
		postcard.WithLogger(logger),
	)
}

func newWorkflows(cfg config.Coze, logger *log.Logger) *coze.Client {
	clientOpts := []integrations.ClientOption{
		integrations.WithLogger(logger),
		integrations.WithTimeout(cfg.Timeout),
	}
	if cfg.RateLimit > 0 {
		clientOpts = append(clientOpts, integrations.WithRateLimit(cfg.RateLimit, 1))
	}
	var opts []coze.Option
	if cfg.BaseURL != "" {
		opts = append(opts, coze.WithBaseURL(cfg.BaseURL))
	}
	return coze.NewClient(cfg.APIKey, cfg.WorkflowIDs(), opts, clientOpts...)
}

func newUploader(cfg config.Upload, logger *log.Logger) *imgbb.Client {
	var opts []imgbb.Option
	if cfg.BaseURL != "" {
		opts = append(opts, imgbb.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Expiration > 0 {
		opts = append(opts, imgbb.WithExpiration(cfg.Expiration))
	}
	return imgbb.NewClient(cfg.APIKey, opts, integrations.WithLogger(logger))
}

// newChat returns the configured chat provider, or nil when chat is
// disabled or DeepSeek has no key.
func newChat(cfg config.Chat, logger *log.Logger) (chat.Provider, error) {
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderOllama:
		p, err := chat.NewOllama(chat.OllamaConfig{
			Host:   cfg.OllamaHost,
			Model:  cfg.OllamaModel,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		if cfg.APIKey == "" {
			logger.Debug("deepseek api key not set; poetry falls back to the workflow")
			return nil, nil
		}
		p, err := chat.NewOpenAI(chat.OpenAIConfig{
			Name:    config.ProviderDeepSeek,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// newCache opens the configured backend. The file backend defaults to
// the user cache directory; if that cannot be determined caching is
// disabled.
func newCache(ctx context.Context, cfg config.Cache, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	opts := cache.Options{Backend: cfg.Backend, Dir: cfg.Dir, RedisURL: cfg.RedisURL}
	if (opts.Backend == "" || opts.Backend == cache.BackendFile) && opts.Dir == "" {
		dir, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		opts.Dir = dir
	}
	return cache.Open(ctx, opts)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/postcard/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
