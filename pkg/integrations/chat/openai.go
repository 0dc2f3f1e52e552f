package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"

	perrors "github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/httputil"
	"github.com/matzehuels/postcard/pkg/integrations"
)

// DeepSeek endpoint defaults.
const (
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	DeepSeekModel   = "deepseek-chat"
)

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	Name       string // provider name, default "deepseek"
	APIKey     string
	BaseURL    string // default DeepSeekBaseURL
	Model      string // default DeepSeekModel
	HTTPClient *http.Client
	Policy     *httputil.Policy
	Logger     *log.Logger
}

// OpenAI talks to any OpenAI-compatible chat endpoint. DeepSeek is the
// default target.
type OpenAI struct {
	client *openai.Client
	name   string
	model  string
	policy httputil.Policy
	logger *log.Logger
}

// NewOpenAI creates a provider. It fails when no API key is configured.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, perrors.New(perrors.ErrCodeUnauthorized, "chat api key is not configured")
	}
	if cfg.Name == "" {
		cfg.Name = "deepseek"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DeepSeekBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DeepSeekModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = integrations.NewHTTPClient()
	}
	policy := httputil.DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = cfg.HTTPClient

	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		name:   cfg.Name,
		model:  cfg.Model,
		policy: policy,
		logger: cfg.Logger,
	}, nil
}

func (p *OpenAI) Name() string  { return p.name }
func (p *OpenAI) Model() string { return p.model }

// Generate sends the system prompt and the user's text as one exchange.
func (p *OpenAI) Generate(ctx context.Context, req Request) (*Reply, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "prompt text is empty")
	}
	req = req.withDefaults(p.model)

	reply, err := finish(ctx, p.policy, func() (string, error) {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: req.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.System},
				{Role: openai.ChatMessageRoleUser, Content: req.Text},
			},
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			return "", classify(openAIStatus(err), err, "%s completion", p.name)
		}
		if len(resp.Choices) == 0 {
			return "", perrors.New(perrors.ErrCodeCaptionFailed, "%s returned no choices", p.name)
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, err
	}
	p.logger.Debug("generated reply", "provider", p.name, "comment", reply.Comment, "svg", reply.SVG != "")
	return reply, nil
}

// Health lists models, which every compatible endpoint serves cheaply.
func (p *OpenAI) Health(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return classify(openAIStatus(err), err, "%s health check", p.name)
	}
	return nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

var _ Provider = (*OpenAI)(nil)
