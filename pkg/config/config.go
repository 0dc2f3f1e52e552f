// Package config loads postcard settings from a TOML file, a .env file and
// the process environment, in that order of increasing precedence.
//
// A minimal postcard.toml:
//
//	[compose]
//	format = "jpeg"
//	quality = 95
//	svg_engine = "oksvg"
//
//	[fonts]
//	path = "/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc"
//
//	[coze.workflows]
//	mood = "7431..."
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
// Secrets are normally left out of the file and supplied through the
// environment (IMGBB_API_KEY, COZE_API_KEY, DEEPSEEK_API_KEY).
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/postcard/pkg/cache"
	"github.com/matzehuels/postcard/pkg/integrations/chat"
	"github.com/matzehuels/postcard/pkg/integrations/coze"
	"github.com/matzehuels/postcard/pkg/integrations/imgbb"
	"github.com/matzehuels/postcard/pkg/postcard"
	"github.com/matzehuels/postcard/pkg/svg"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "postcard.toml"

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "POSTCARD_CONFIG"

// Chat provider names.
const (
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
	ProviderNone     = "none"
)

// Config is the complete application configuration.
type Config struct {
	Compose Compose `toml:"compose"`
	Fonts   Fonts   `toml:"fonts"`
	Upload  Upload  `toml:"upload"`
	Coze    Coze    `toml:"coze"`
	Chat    Chat    `toml:"chat"`
	Cache   Cache   `toml:"cache"`
	Server  Server  `toml:"server"`
}

// Compose extends the composer settings with the SVG engine choice.
type Compose struct {
	postcard.Config
	SVGEngine string `toml:"svg_engine"`
}

// Fonts configures font discovery.
type Fonts struct {
	Path  string   `toml:"path"`  // tried first
	Names []string `toml:"names"` // file names searched in system font dirs
}

// Upload configures ImgBB hosting.
type Upload struct {
	APIKey     string        `toml:"api_key"`
	BaseURL    string        `toml:"base_url"`
	Expiration time.Duration `toml:"expiration"` // zero keeps images forever
}

// Coze configures the caption workflows.
type Coze struct {
	APIKey    string            `toml:"api_key"`
	BaseURL   string            `toml:"base_url"`
	Workflows map[string]string `toml:"workflows"` // style name → workflow ID
	RateLimit float64           `toml:"rate_limit"` // requests per second, zero disables
	Timeout   time.Duration     `toml:"timeout"`
}

// Chat selects and configures the text-reply provider.
type Chat struct {
	Provider    string `toml:"provider"` // deepseek, ollama or none
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	Model       string `toml:"model"`
	OllamaHost  string `toml:"ollama_host"`
	OllamaModel string `toml:"ollama_model"`
}

// Cache selects the response cache backend.
type Cache struct {
	Backend  string `toml:"backend"` // file, redis or none
	Dir      string `toml:"dir"`     // defaults to the user cache dir
	RedisURL string `toml:"redis_url"`
}

// Server configures `postcard serve`.
type Server struct {
	Addr         string        `toml:"addr"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	MaxBodyBytes int64         `toml:"max_body_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Compose: Compose{Config: postcard.DefaultConfig(), SVGEngine: svg.EngineOKSVG},
		Upload:  Upload{BaseURL: imgbb.DefaultBaseURL},
		Coze: Coze{
			BaseURL:   coze.DefaultBaseURL,
			Workflows: map[string]string{},
			Timeout:   coze.DefaultTimeout,
		},
		Chat: Chat{
			Provider:    ProviderDeepSeek,
			BaseURL:     chat.DeepSeekBaseURL,
			Model:       chat.DeepSeekModel,
			OllamaHost:  chat.OllamaHost,
			OllamaModel: chat.OllamaModel,
		},
		Cache: Cache{Backend: cache.BackendFile},
		Server: Server{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 3 * time.Minute,
			MaxBodyBytes: 10 << 20,
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Loader reads configuration. The zero value reads the real environment.
type Loader struct {
	// Path is the config file. When empty, $POSTCARD_CONFIG and then
	// [DefaultFile] are tried; a missing default file is not an error.
	Path string

	// EnvFiles are loaded with godotenv before the environment is read.
	// Variables already set in the process win. Missing files are skipped.
	EnvFiles []string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load is shorthand for Loader{Path: path, EnvFiles: [".env", ".env.local"]}.Load().
func Load(path string) (Config, error) {
	return Loader{Path: path, EnvFiles: []string{".env", ".env.local"}}.Load()
}

// Load builds a validated Config from defaults, the TOML file and the
// environment.
func (l Loader) Load() (Config, error) {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, f := range l.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	path, required := l.Path, l.Path != ""
	if path == "" {
		if path = getenv(EnvConfigPath); path != "" {
			required = true
		} else {
			path = DefaultFile
		}
	}
	if err := decodeFile(path, required, &cfg); err != nil {
		return Config{}, err
	}

	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, required bool, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// applyEnv overlays non-empty environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Upload.APIKey, "IMGBB_API_KEY")
	set(&c.Coze.APIKey, "COZE_API_KEY")
	set(&c.Coze.BaseURL, "COZE_API_URL")
	set(&c.Chat.APIKey, "DEEPSEEK_API_KEY")
	set(&c.Chat.BaseURL, "DEEPSEEK_API_BASE")
	set(&c.Chat.OllamaHost, "OLLAMA_HOST")
	set(&c.Fonts.Path, "POSTCARD_FONT_PATH")
	set(&c.Cache.RedisURL, "REDIS_URL")

	if c.Coze.Workflows == nil {
		c.Coze.Workflows = map[string]string{}
	}
	for _, style := range coze.Styles() {
		if v := strings.TrimSpace(getenv("WORKFLOW_ID_" + strings.ToUpper(style))); v != "" {
			c.Coze.Workflows[style] = v
		}
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks every section and normalizes the compose settings.
func (c *Config) Validate() error {
	if err := c.Compose.Config.Validate(); err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	if _, err := svg.New(c.Compose.SVGEngine); err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	for name := range c.Coze.Workflows {
		if _, err := coze.ParseStyle(name); err != nil {
			return fmt.Errorf("coze.workflows: %w", err)
		}
	}
	if c.Coze.RateLimit < 0 {
		return fmt.Errorf("coze.rate_limit cannot be negative")
	}
	if c.Upload.Expiration < 0 {
		return fmt.Errorf("upload.expiration cannot be negative")
	}
	switch c.Chat.Provider {
	case "", ProviderDeepSeek, ProviderOllama, ProviderNone:
	default:
		return fmt.Errorf("chat.provider: unknown provider %q (want %s, %s or %s)",
			c.Chat.Provider, ProviderDeepSeek, ProviderOllama, ProviderNone)
	}
	switch c.Cache.Backend {
	case "", cache.BackendFile, cache.BackendRedis, cache.BackendNone:
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == cache.BackendRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required for the redis backend")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	return nil
}

// WorkflowIDs converts the configured workflow IDs into coze form.
func (c Coze) WorkflowIDs() coze.Workflows {
	w := make(coze.Workflows, len(c.Workflows))
	for name, id := range c.Workflows {
		if style, err := coze.ParseStyle(name); err == nil && id != "" {
			w[style] = id
		}
	}
	return w
}

// ConfiguredStyles lists the styles that have a workflow ID, sorted.
func (c Coze) ConfiguredStyles() []string {
	var out []string
	for name, id := range c.Workflows {
		if id != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
