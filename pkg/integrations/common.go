package integrations

import (
	"errors"
	"net/http"
	"time"

	perrors "github.com/matzehuels/postcard/pkg/errors"
)

const httpTimeout = 30 * time.Second

// DefaultMaxBody caps response bodies at 20 MiB.
const DefaultMaxBody = 20 << 20

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrTimeout is returned when the request or the upstream gateway timed out.
	ErrTimeout = errors.New("request timed out")

	// ErrRateLimited is returned for 429 responses.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadResponse is returned when a response body cannot be decoded.
	ErrBadResponse = errors.New("malformed response")

	// ErrTooLarge is returned when a response exceeds the client's body cap.
	ErrTooLarge = errors.New("response too large")
)

// NewHTTPClient creates an HTTP client with the standard timeout for
// upstream services.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// Classify wraps err in a structured error. Transport sentinels map to
// their own codes; anything else gets fallback.
func Classify(fallback perrors.Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	code := fallback
	switch {
	case errors.Is(err, ErrTimeout):
		code = perrors.ErrCodeTimeout
	case errors.Is(err, ErrRateLimited):
		code = perrors.ErrCodeRateLimited
	case errors.Is(err, ErrUnauthorized):
		code = perrors.ErrCodeUnauthorized
	case errors.Is(err, ErrNotFound) && fallback != perrors.ErrCodeFetchFailed:
		code = perrors.ErrCodeNotFound
	}
	return perrors.Wrap(code, err, format, args...)
}
