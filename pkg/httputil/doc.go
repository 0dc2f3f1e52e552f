// Package httputil provides retry utilities for the outbound HTTP clients.
//
// # Retry
//
// [Retry] wraps an operation with automatic retry for transient failures.
// Only errors wrapped in [RetryableError] are retried:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// The delay doubles after each failed attempt:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    return upload(ctx, data)
//	})
//
// # Policies
//
// A [Policy] bundles the attempt limit, backoff factor and the list of
// retryable HTTP statuses so each collaborator owns one explicit schedule
// instead of ad hoc sleep loops:
//
//	p := httputil.DefaultPolicy() // 3 attempts, 1s, 429/500/502/503/504
//	err := p.Do(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    defer resp.Body.Close()
//	    return p.Classify(resp.StatusCode, ErrUpload)
//	})
package httputil
