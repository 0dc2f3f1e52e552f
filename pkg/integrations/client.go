package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/matzehuels/postcard/pkg/cache"
	"github.com/matzehuels/postcard/pkg/httputil"
	"github.com/matzehuels/postcard/pkg/observability"
)

// Client provides shared HTTP functionality for all service clients.
// It handles caching, the retry policy, rate limiting and common headers.
//
// All methods are safe for concurrent use.
type Client struct {
	http      *http.Client
	cache     cache.Cache
	keyer     cache.Keyer
	namespace string
	ttl       time.Duration
	headers   map[string]string
	policy    httputil.Policy
	limiter   *rate.Limiter
	maxBody   int64
	logger    *log.Logger
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithPolicy replaces the default retry policy.
func WithPolicy(p httputil.Policy) ClientOption { return func(c *Client) { c.policy = p } }

// WithRateLimit caps outgoing requests at rps per second with the given burst.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption { return func(c *Client) { c.http = h } }

// WithTimeout sets the total per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithKeyer replaces the cache keyer.
func WithKeyer(k cache.Keyer) ClientOption { return func(c *Client) { c.keyer = k } }

// WithMaxBody caps the number of response bytes read.
func WithMaxBody(n int64) ClientOption { return func(c *Client) { c.maxBody = n } }

// WithLogger sets the logger used for retry notices.
func WithLogger(l *log.Logger) ClientOption { return func(c *Client) { c.logger = l } }

// NewClient creates a Client that caches under namespace for ttl.
// Headers are applied to all requests made through this client.
// A nil backend disables caching.
func NewClient(backend cache.Cache, namespace string, ttl time.Duration, headers map[string]string, opts ...ClientOption) *Client {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	c := &Client{
		http:      NewHTTPClient(),
		cache:     backend,
		keyer:     cache.NewDefaultKeyer(),
		namespace: namespace,
		ttl:       ttl,
		headers:   headers,
		policy:    httputil.DefaultPolicy(),
		maxBody:   DefaultMaxBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// Policy returns the client's retry policy.
func (c *Client) Policy() httputil.Policy { return c.policy }

// Cached retrieves a value from cache or executes fetch under the retry
// policy and caches the JSON encoding of v. If refresh is true, the cache
// is bypassed and fetch is always called.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	ck := c.keyer.HTTPKey(c.namespace, key)
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, ck); ok && json.Unmarshal(data, v) == nil {
			observability.Cache().OnCacheHit(ctx, c.namespace)
			return nil
		}
		observability.Cache().OnCacheMiss(ctx, c.namespace)
	}
	if err := c.Retry(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, ck, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, c.namespace, len(data))
		}
	}
	return nil
}

// Retry runs fn under the client's policy, logging each retry.
func (c *Client) Retry(ctx context.Context, fn func() error) error {
	_, err := c.RetryCount(ctx, fn)
	return err
}

// RetryCount is [Client.Retry] that also reports how many attempts ran.
func (c *Client) RetryCount(ctx context.Context, fn func() error) (int, error) {
	attempts := 0
	err := c.policy.DoNotify(ctx, func() error {
		attempts++
		return fn()
	}, func(retry int, err error, wait time.Duration) {
		c.logger.Warn("request failed, retrying", "service", c.namespace, "retry", retry, "wait", wait, "error", err)
	})
	return attempts, err
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, rawURL string, v any) error {
	data, _, err := c.GetBytes(ctx, rawURL, nil)
	if err != nil {
		return err
	}
	return decodeJSON(data, v)
}

// GetBytes performs one HTTP GET and returns the body and its content type.
// It does not retry; wrap calls in [Client.Retry].
func (c *Client) GetBytes(ctx context.Context, rawURL string, headers map[string]string) ([]byte, string, error) {
	return c.Do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}, headers)
}

// PostJSON sends body as JSON and decodes the JSON response into v.
func (c *Client) PostJSON(ctx context.Context, rawURL string, headers map[string]string, body, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	data, _, err := c.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, headers)
	if err != nil {
		return err
	}
	return decodeJSON(data, v)
}

// PostForm sends form URL-encoded and decodes the JSON response into v.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, v any) error {
	encoded := form.Encode()
	data, _, err := c.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewBufferString(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, nil)
	if err != nil {
		return err
	}
	return decodeJSON(data, v)
}

// Do sends the request built by newReq once and returns the body. Non-2xx
// statuses are classified with the client's policy; transport failures are
// retryable.
func (c *Client) Do(ctx context.Context, newReq func() (*http.Request, error), headers map[string]string) ([]byte, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}
	}

	req, err := newReq()
	if err != nil {
		return nil, "", err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := req.URL.Host, req.URL.Path
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		if isTimeout(err) {
			return nil, "", httputil.Retryable(fmt.Errorf("%w: %v", ErrTimeout, err))
		}
		return nil, "", httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, "", httputil.Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
	}
	if int64(len(body)) > c.maxBody {
		return nil, "", fmt.Errorf("%w: response exceeds %d bytes", ErrTooLarge, c.maxBody)
	}
	if err := c.checkStatus(resp.StatusCode); err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) checkStatus(code int) error {
	var base error
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code == http.StatusTooManyRequests:
		base = ErrRateLimited
	case code == http.StatusGatewayTimeout:
		base = ErrTimeout
	default:
		base = ErrNetwork
	}
	return c.policy.Classify(code, base)
}

func decodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
