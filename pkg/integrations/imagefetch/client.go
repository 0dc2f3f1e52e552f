// Package imagefetch downloads source photos over HTTP.
package imagefetch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/postcard/pkg/buildinfo"
	"github.com/matzehuels/postcard/pkg/cache"
	perrors "github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/integrations"
)

// DefaultTimeout bounds a single download.
const DefaultTimeout = 30 * time.Second

// Image is a downloaded source photo.
type Image struct {
	Data        []byte
	ContentType string
}

// Client fetches images with its own timeout and retry policy.
//
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
}

// NewClient creates an image fetcher. Downloads are not cached here; the
// pipeline caches decoded inputs by URL.
func NewClient(opts ...integrations.ClientOption) *Client {
	opts = append([]integrations.ClientOption{integrations.WithTimeout(DefaultTimeout)}, opts...)
	return &Client{
		Client: integrations.NewClient(cache.NewNullCache(), "image", 0, map[string]string{
			"Accept":     "image/*",
			"User-Agent": buildinfo.UserAgent(),
		}, opts...),
	}
}

// Fetch downloads rawURL and returns its bytes.
//
// Returns a FETCH_FAILED error when the URL is invalid, the request fails
// after all retries, or the body is not an image. Timeouts surface as
// TIMEOUT.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	if err := perrors.ValidateURL(rawURL); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeFetchFailed, err, "invalid image url")
	}

	var img Image
	err := c.Retry(ctx, func() error {
		data, ct, err := c.GetBytes(ctx, rawURL, nil)
		if err != nil {
			return err
		}
		img = Image{Data: data, ContentType: ct}
		return nil
	})
	if err != nil {
		return nil, integrations.Classify(perrors.ErrCodeFetchFailed, err, "fetch image")
	}
	if len(img.Data) == 0 {
		return nil, perrors.New(perrors.ErrCodeFetchFailed, "fetch image: empty body")
	}

	ct := ContentType(img.ContentType, img.Data)
	if !strings.HasPrefix(ct, "image/") {
		return nil, perrors.New(perrors.ErrCodeFetchFailed, "fetch image: unexpected content type %q", ct)
	}
	img.ContentType = ct
	return &img, nil
}

// ContentType returns the declared media type when it names an image and
// otherwise sniffs the body. Some hosts serve photos as
// application/octet-stream.
func ContentType(declared string, data []byte) string {
	mt, _, _ := strings.Cut(declared, ";")
	mt = strings.ToLower(strings.TrimSpace(mt))
	if strings.HasPrefix(mt, "image/") {
		return mt
	}
	sniffed, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return sniffed
}
