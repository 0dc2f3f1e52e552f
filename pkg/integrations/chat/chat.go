// Package chat generates captions with chat-completion models.
//
// A provider receives the user's text plus a system prompt and answers
// with free text that usually carries a 【点评】 comment section and an
// 【SVG】 section. [ParseReply] splits such text into a [Reply].
package chat

import (
	"context"
	"errors"
	"net/http"

	perrors "github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/httputil"
)

// Defaults shared by providers.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

// SystemPrompt asks the model for a short comment and a matching sketch.
const SystemPrompt = `你是一位温暖又机敏的明信片作者。请根据用户输入完成两件事：
1. 用不超过80个汉字写一段点评，语言生动，有画面感。
2. 画一幅与点评呼应的简笔画，使用完整的SVG代码，viewBox为"0 0 280 380"，只使用基本图形，不要引用外部资源。

严格按以下格式输出，不要添加其他内容：
【点评】
点评内容
【SVG】
<svg ...>...</svg>`

// Request is one generation call.
type Request struct {
	Text        string
	System      string // empty selects SystemPrompt
	Model       string // empty selects the provider default
	Temperature float32
	MaxTokens   int
}

func (r Request) withDefaults(model string) Request {
	if r.System == "" {
		r.System = SystemPrompt
	}
	if r.Model == "" {
		r.Model = model
	}
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	return r
}

// Reply is a parsed model answer.
type Reply struct {
	Comment string `json:"comment"`
	SVG     string `json:"svg,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

// Provider is a chat-completion backend.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req Request) (*Reply, error)
	Health(ctx context.Context) error
}

// retryableStatus is the status set providers retry on.
var retryableStatus = httputil.DefaultStatuses

// classify maps a provider failure with an optional HTTP status to a
// structured error. Retryable statuses are marked for the policy.
func classify(status int, err error, format string, args ...any) error {
	code := perrors.ErrCodeCaptionFailed
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = perrors.ErrCodeUnauthorized
	case http.StatusTooManyRequests:
		code = perrors.ErrCodeRateLimited
	case http.StatusGatewayTimeout:
		code = perrors.ErrCodeTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		code = perrors.ErrCodeTimeout
	}
	wrapped := perrors.Wrap(code, err, format, args...)
	for _, s := range retryableStatus {
		if s == status {
			return httputil.Retryable(wrapped)
		}
	}
	return wrapped
}

// finish runs the retry policy around fn and parses the raw answer.
func finish(ctx context.Context, policy httputil.Policy, fn func() (string, error)) (*Reply, error) {
	var raw string
	err := policy.Do(ctx, func() error {
		var err error
		raw, err = fn()
		return err
	})
	if err != nil {
		var re *httputil.RetryableError
		if errors.As(err, &re) {
			err = re.Err
		}
		return nil, err
	}
	reply := ParseReply(raw)
	if reply.Comment == "" && reply.SVG == "" {
		return nil, perrors.New(perrors.ErrCodeCaptionFailed, "model returned an empty reply")
	}
	return reply, nil
}
