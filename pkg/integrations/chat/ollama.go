package chat

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"

	perrors "github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/httputil"
)

// Ollama defaults.
const (
	OllamaHost    = "http://localhost:11434"
	OllamaModel   = "qwen2.5"
	ollamaTimeout = 30 * time.Second
	healthTimeout = 5 * time.Second
)

// OllamaConfig configures a local Ollama provider.
type OllamaConfig struct {
	Host       string // default OllamaHost
	Model      string // default OllamaModel
	HTTPClient *http.Client
	Policy     *httputil.Policy
	Logger     *log.Logger
}

// Ollama generates replies with a locally served model. The system prompt
// is folded into the prompt as "<system>\n\n用户输入：<text>".
type Ollama struct {
	client *api.Client
	model  string
	policy httputil.Policy
	logger *log.Logger
}

// NewOllama creates a provider for the Ollama server at cfg.Host.
func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	if cfg.Host == "" {
		cfg.Host = OllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = OllamaModel
	}
	if !strings.Contains(cfg.Host, "://") {
		cfg.Host = "http://" + cfg.Host
	}
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "invalid ollama host %q", cfg.Host)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: ollamaTimeout}
	}
	policy := httputil.Policy{MaxAttempts: 1}
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Ollama{
		client: api.NewClient(base, cfg.HTTPClient),
		model:  cfg.Model,
		policy: policy,
		logger: cfg.Logger,
	}, nil
}

func (p *Ollama) Name() string  { return "ollama" }
func (p *Ollama) Model() string { return p.model }

// Generate streams the completion and joins the fragments.
func (p *Ollama) Generate(ctx context.Context, req Request) (*Reply, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "prompt text is empty")
	}
	req = req.withDefaults(p.model)

	reply, err := finish(ctx, p.policy, func() (string, error) {
		var sb strings.Builder
		err := p.client.Generate(ctx, &api.GenerateRequest{
			Model:  req.Model,
			Prompt: req.System + "\n\n用户输入：" + req.Text,
			Options: map[string]any{
				"temperature": req.Temperature,
				"num_predict": req.MaxTokens,
			},
		}, func(r api.GenerateResponse) error {
			sb.WriteString(r.Response)
			return nil
		})
		if err != nil {
			return "", classify(ollamaStatus(err), err, "ollama generate")
		}
		return sb.String(), nil
	})
	if err != nil {
		return nil, err
	}
	p.logger.Debug("generated reply", "provider", "ollama", "model", req.Model, "svg", reply.SVG != "")
	return reply, nil
}

// Health queries the server version with a short deadline.
func (p *Ollama) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if _, err := p.client.Version(ctx); err != nil {
		return classify(ollamaStatus(err), err, "ollama health check")
	}
	return nil
}

func ollamaStatus(err error) int {
	var se api.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

var _ Provider = (*Ollama)(nil)
