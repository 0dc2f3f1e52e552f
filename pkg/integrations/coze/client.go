// Package coze runs caption workflows on the Coze platform.
//
// Each caption style maps to a configured workflow. Image styles receive
// the photo URL as "image_url"; text styles receive the prompt as
// "BOT_USER_INPUT". A workflow answers with a JSON document whose "output"
// is the caption and whose optional "output1" carries SVG markup.
package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/postcard/pkg/cache"
	perrors "github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/httputil"
	"github.com/matzehuels/postcard/pkg/integrations"
	"github.com/matzehuels/postcard/pkg/svg"
)

// DefaultBaseURL is the synchronous workflow endpoint.
const DefaultBaseURL = "https://api.coze.cn/v1/workflow/run"

// DefaultTimeout bounds one workflow run. Workflows call models and are slow.
const DefaultTimeout = 2 * time.Minute

// Style names a caption workflow.
type Style string

const (
	StyleMood      Style = "mood"
	StyleSarcastic Style = "sarcastic"
	StylePoetry    Style = "poetry"
	StyleStory     Style = "story"
)

// Styles lists every supported style name.
func Styles() []string {
	return []string{string(StyleMood), string(StyleSarcastic), string(StylePoetry), string(StyleStory)}
}

// ParseStyle validates s. An empty string selects [StyleMood].
func ParseStyle(s string) (Style, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StyleMood, nil
	}
	if err := perrors.ValidateStyle(s, Styles()); err != nil {
		return "", err
	}
	return Style(s), nil
}

// TextInput reports whether the style takes a text prompt instead of an
// image URL.
func (s Style) TextInput() bool {
	return s == StylePoetry || s == StyleStory
}

// Workflows maps each style to its workflow ID.
type Workflows map[Style]string

// Reply is a parsed workflow result.
type Reply struct {
	Comment  string `json:"comment"`
	SVG      string `json:"svg,omitempty"`
	DebugURL string `json:"debug_url,omitempty"`
}

type runRequest struct {
	WorkflowID string            `json:"workflow_id"`
	Parameters map[string]string `json:"parameters"`
	IsAsync    bool              `json:"is_async"`
}

type runResponse struct {
	Code     int             `json:"code"`
	Msg      string          `json:"msg"`
	Data     json.RawMessage `json:"data"`
	DebugURL string          `json:"debug_url"`
}

type workflowOutput struct {
	Output  string `json:"output"`
	Output1 string `json:"output1"`
}

// Client runs Coze workflows.
//
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL   string
	apiKey    string
	workflows Workflows
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL overrides the workflow endpoint.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// DefaultPolicy retries throttling and gateway errors once. A 504 means the
// workflow itself ran out of time and is not retried.
func DefaultPolicy() httputil.Policy {
	return httputil.Policy{
		MaxAttempts: 2,
		Backoff:     time.Second,
		Statuses:    []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable},
	}
}

// NewClient creates a Coze client authenticated with apiKey.
func NewClient(apiKey string, workflows Workflows, opts []Option, clientOpts ...integrations.ClientOption) *Client {
	clientOpts = append([]integrations.ClientOption{
		integrations.WithTimeout(DefaultTimeout),
		integrations.WithPolicy(DefaultPolicy()),
	}, clientOpts...)
	c := &Client{
		Client: integrations.NewClient(cache.NewNullCache(), "coze", 0, map[string]string{
			"Authorization": "Bearer " + apiKey,
			"Accept":        "*/*",
		}, clientOpts...),
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		workflows: workflows,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the provider in cache keys and metrics.
func (c *Client) Name() string { return "coze" }

// Has reports whether a workflow is configured for style.
func (c *Client) Has(style Style) bool { return c.workflows[style] != "" }

// Run executes the workflow for style with input, which is an image URL or
// prompt text depending on [Style.TextInput].
//
// Returns CAPTION_FAILED when the workflow is missing, fails or returns no
// caption, and TIMEOUT when the gateway reports 504.
func (c *Client) Run(ctx context.Context, style Style, input string) (*Reply, error) {
	id := c.workflows[style]
	if id == "" {
		return nil, perrors.New(perrors.ErrCodeCaptionFailed, "no workflow configured for style %q", style)
	}
	if c.apiKey == "" {
		return nil, perrors.New(perrors.ErrCodeUnauthorized, "coze api key is not configured")
	}
	if strings.TrimSpace(input) == "" {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "workflow input is empty")
	}

	param := "image_url"
	if style.TextInput() {
		param = "BOT_USER_INPUT"
	}
	req := runRequest{
		WorkflowID: id,
		Parameters: map[string]string{param: input},
	}

	var resp runResponse
	err := c.Retry(ctx, func() error {
		resp = runResponse{}
		return c.PostJSON(ctx, c.baseURL, nil, req, &resp)
	})
	if err != nil {
		return nil, integrations.Classify(perrors.ErrCodeCaptionFailed, err, "run %s workflow", style)
	}
	if resp.Code != 0 {
		return nil, perrors.New(perrors.ErrCodeCaptionFailed, "%s workflow returned code %d: %s", style, resp.Code, resp.Msg)
	}

	out, err := decodeOutput(resp.Data)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeCaptionFailed, err, "decode %s workflow output", style)
	}
	if strings.TrimSpace(out.Output) == "" {
		return nil, perrors.New(perrors.ErrCodeCaptionFailed, "%s workflow returned no output", style)
	}

	reply := &Reply{
		Comment:  strings.TrimSpace(out.Output),
		DebugURL: resp.DebugURL,
	}
	if markup, ok := svg.Extract(out.Output1); ok {
		reply.SVG = markup
	}
	return reply, nil
}

// decodeOutput accepts data either as a JSON string holding the document
// or as the document itself.
func decodeOutput(data json.RawMessage) (workflowOutput, error) {
	var out workflowOutput
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out, fmt.Errorf("empty data")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return out, err
		}
		data = []byte(s)
	}
	err := json.Unmarshal(data, &out)
	return out, err
}
