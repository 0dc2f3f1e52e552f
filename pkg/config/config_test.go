package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/postcard/pkg/integrations/coze"
	"github.com/matzehuels/postcard/pkg/postcard"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
	if cfg.Compose.Format != postcard.FormatJPEG || cfg.Compose.Quality != 95 {
		t.Errorf("compose defaults = %s/%d", cfg.Compose.Format, cfg.Compose.Quality)
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Loader{Getenv: envMap(nil)}.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Loader{Path: filepath.Join(t.TempDir(), "nope.toml"), Getenv: envMap(nil)}.Load()
	if err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "postcard.toml", `
[compose]
format = "png"
quality = 80
svg_engine = "rsvg"
wrap = "greedy"

[compose.card]
width = 400

[fonts]
names = ["NotoSansCJK-Regular.ttc"]

[upload]
expiration = "10m"

[coze]
rate_limit = 2.5

[coze.workflows]
mood = "wf-mood"

[chat]
provider = "ollama"

[cache]
backend = "none"

[server]
addr = "127.0.0.1:9000"
`)
	cfg, err := Loader{Path: path, Getenv: envMap(nil)}.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Compose.Format != postcard.FormatPNG || cfg.Compose.Quality != 80 || cfg.Compose.SVGEngine != "rsvg" {
		t.Errorf("compose = %+v", cfg.Compose)
	}
	if cfg.Compose.Card.Width != 400 || cfg.Compose.Card.Height != postcard.DefaultCardHeight {
		t.Errorf("card = %+v", cfg.Compose.Card)
	}
	if cfg.Compose.WrapMode.String() != "greedy" {
		t.Errorf("WrapMode = %s", cfg.Compose.WrapMode)
	}
	if cfg.Upload.Expiration != 10*time.Minute || cfg.Cache.Backend != "none" {
		t.Errorf("expiration/backend = %v %s", cfg.Upload.Expiration, cfg.Cache.Backend)
	}
	if cfg.Coze.RateLimit != 2.5 || cfg.Coze.Workflows["mood"] != "wf-mood" {
		t.Errorf("coze = %+v", cfg.Coze)
	}
	if cfg.Chat.Provider != ProviderOllama || cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("chat/server = %s %s", cfg.Chat.Provider, cfg.Server.Addr)
	}
	if len(cfg.Fonts.Names) != 1 {
		t.Errorf("fonts = %+v", cfg.Fonts)
	}
}

func TestLoadPathFromEnv(t *testing.T) {
	path := writeFile(t, "custom.toml", "[server]\naddr = \":7000\"\n")
	cfg, err := Loader{Getenv: envMap(map[string]string{EnvConfigPath: path})}.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadUnknownKey(t *testing.T) {
	path := writeFile(t, "postcard.toml", "[compose]\nqualty = 80\n")
	_, err := Loader{Path: path, Getenv: envMap(nil)}.Load()
	if err == nil || !strings.Contains(err.Error(), "compose.qualty") {
		t.Errorf("error = %v, want unknown key compose.qualty", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "postcard.toml", "[upload]\napi_key = \"from-file\"\n")
	env := map[string]string{
		"IMGBB_API_KEY":         "imgbb-env",
		"COZE_API_KEY":          "coze-env",
		"COZE_API_URL":          "https://coze.example/run",
		"WORKFLOW_ID_MOOD":      "wf-1",
		"WORKFLOW_ID_SARCASTIC": "wf-2",
		"WORKFLOW_ID_POETRY":    " wf-3 ",
		"DEEPSEEK_API_KEY":      "sk-env",
		"DEEPSEEK_API_BASE":     "https://llm.example/v1",
		"OLLAMA_HOST":           "gpu:11434",
		"POSTCARD_FONT_PATH":    "/fonts/x.ttf",
		"REDIS_URL":             "redis://cache:6379/1",
	}
	cfg, err := Loader{Path: path, Getenv: envMap(env)}.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	checks := map[string][2]string{
		"upload.api_key": {cfg.Upload.APIKey, "imgbb-env"},
		"coze.api_key":   {cfg.Coze.APIKey, "coze-env"},
		"coze.base_url":  {cfg.Coze.BaseURL, "https://coze.example/run"},
		"chat.api_key":   {cfg.Chat.APIKey, "sk-env"},
		"chat.base_url":  {cfg.Chat.BaseURL, "https://llm.example/v1"},
		"ollama_host":    {cfg.Chat.OllamaHost, "gpu:11434"},
		"fonts.path":     {cfg.Fonts.Path, "/fonts/x.ttf"},
		"redis_url":      {cfg.Cache.RedisURL, "redis://cache:6379/1"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", name, c[0], c[1])
		}
	}

	ids := cfg.Coze.WorkflowIDs()
	if ids[coze.StyleMood] != "wf-1" || ids[coze.StyleSarcastic] != "wf-2" || ids[coze.StylePoetry] != "wf-3" {
		t.Errorf("WorkflowIDs() = %v", ids)
	}
	if _, ok := ids[coze.StyleStory]; ok {
		t.Error("story should be unconfigured")
	}
	if got := strings.Join(cfg.Coze.ConfiguredStyles(), ","); got != "mood,poetry,sarcastic" {
		t.Errorf("ConfiguredStyles() = %s", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "POSTCARD_TEST_DOTENV_KEY"
	t.Cleanup(func() { os.Unsetenv(key) })
	envFile := writeFile(t, ".env", key+"=from-dotenv\n")

	_, err := Loader{
		Path:     writeFile(t, "postcard.toml", ""),
		EnvFiles: []string{envFile, filepath.Join(t.TempDir(), "missing.env")},
	}.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Errorf("%s = %q", key, got)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad quality", func(c *Config) { c.Compose.Quality = 0 }, "compose"},
		{"bad engine", func(c *Config) { c.Compose.SVGEngine = "inkscape" }, "svg engine"},
		{"bad style", func(c *Config) { c.Coze.Workflows["haiku"] = "x" }, "coze.workflows"},
		{"negative rate", func(c *Config) { c.Coze.RateLimit = -1 }, "rate_limit"},
		{"bad provider", func(c *Config) { c.Chat.Provider = "gemini" }, "chat.provider"},
		{"bad backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis without url", func(c *Config) { c.Cache.Backend = "redis" }, "redis_url"},
		{"zero body", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "max_body_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
