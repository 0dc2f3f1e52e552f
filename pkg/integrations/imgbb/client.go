// Package imgbb uploads images to the ImgBB hosting API.
package imgbb

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/postcard/pkg/cache"
	perrors "github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/integrations"
	"github.com/matzehuels/postcard/pkg/observability"
)

// DefaultBaseURL is the ImgBB upload endpoint.
const DefaultBaseURL = "https://api.imgbb.com/1/upload"

// ErrRejected is returned when ImgBB answers 200 with success=false.
var ErrRejected = errors.New("upload rejected")

// Upload describes a hosted image.
type Upload struct {
	URL        string `json:"url"`
	DisplayURL string `json:"display_url"`
	DeleteURL  string `json:"delete_url"`
	Attempts   int    `json:"-"`
}

type response struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Data    Upload `json:"data"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client uploads images to ImgBB.
//
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL    string
	apiKey     string
	expiration time.Duration
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL overrides the upload endpoint.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithExpiration asks ImgBB to delete the image after d. Zero keeps it.
func WithExpiration(d time.Duration) Option { return func(c *Client) { c.expiration = d } }

// NewClient creates an ImgBB client for apiKey. Client options tune the
// shared transport; the default policy is 3 attempts with a 1s backoff.
func NewClient(apiKey string, opts []Option, clientOpts ...integrations.ClientOption) *Client {
	c := &Client{
		Client:  integrations.NewClient(cache.NewNullCache(), "imgbb", 0, nil, clientOpts...),
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload hosts raw image bytes and returns the public URLs.
func (c *Client) Upload(ctx context.Context, data []byte, name string) (*Upload, error) {
	if len(data) == 0 {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "image is empty")
	}
	return c.UploadBase64(ctx, base64.StdEncoding.EncodeToString(data), name)
}

// UploadBase64 hosts an already base64-encoded image. A data URI prefix is
// stripped.
//
// Returns UPLOAD_FAILED once the retry policy is exhausted or ImgBB rejects
// the image; TIMEOUT, RATE_LIMITED and UNAUTHORIZED keep their own codes.
func (c *Client) UploadBase64(ctx context.Context, encoded, name string) (*Upload, error) {
	if c.apiKey == "" {
		return nil, perrors.New(perrors.ErrCodeUnauthorized, "imgbb api key is not configured")
	}
	if _, payload, ok := strings.Cut(encoded, ";base64,"); ok {
		encoded = payload
	}
	if encoded == "" {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "image is empty")
	}

	form := url.Values{
		"key":   {c.apiKey},
		"image": {encoded},
	}
	if name != "" {
		form.Set("name", name)
	}
	if c.expiration > 0 {
		form.Set("expiration", strconv.Itoa(int(c.expiration.Seconds())))
	}

	start := time.Now()
	var resp response
	attempts, err := c.RetryCount(ctx, func() error {
		resp = response{}
		return c.PostForm(ctx, c.baseURL, form, &resp)
	})
	if err == nil && (!resp.Success || resp.Data.URL == "") {
		msg := "no url in response"
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		err = errors.Join(ErrRejected, errors.New(msg))
	}
	observability.Pipeline().OnUploadComplete(ctx, "imgbb", attempts, time.Since(start), err)
	if err != nil {
		return nil, integrations.Classify(perrors.ErrCodeUploadFailed, err, "upload to imgbb after %d attempt(s)", attempts)
	}

	up := resp.Data
	up.Attempts = attempts
	return &up, nil
}
