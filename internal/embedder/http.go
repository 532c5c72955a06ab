package embedder

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mnemo-org/mnemo/internal/cmn/backoff"
)

const (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 10 * time.Second
	retryBackoffFactor   = 2.0
)

// HTTPClient wraps resty with the retry behavior shared by embedding
// providers. Embedding calls are plain request/response exchanges, so
// parsed responses are safe here; only streaming transports need the
// raw body.
type HTTPClient struct {
	rest       *resty.Client
	provider   string
	maxRetries int
}

// NewHTTPClient creates an HTTP client bound to a provider's base URL
// and credentials.
func NewHTTPClient(provider string, config Config) *HTTPClient {
	rest := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json")
	if config.APIKey != "" {
		rest.SetAuthToken(config.APIKey)
	}
	return &HTTPClient{
		rest:       rest,
		provider:   provider,
		maxRetries: config.MaxRetries,
	}
}

// SetHeader adds a header to every request sent by this client.
func (c *HTTPClient) SetHeader(key, value string) *HTTPClient {
	c.rest.SetHeader(key, value)
	return c
}

// PostJSON sends body as JSON to path and decodes the response into
// result, retrying transient failures with exponential backoff and
// full jitter.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body, result any) error {
	op := func(ctx context.Context) error {
		resp, err := c.rest.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(result).
			Post(path)
		if err != nil {
			return err
		}
		return c.classifyResponse(resp)
	}
	return backoff.Retry(ctx, op, newEmbedRetryPolicy(c.maxRetries), isRetriableError)
}

// newEmbedRetryPolicy creates the standard retry policy for embedding
// calls: exponential backoff + FullJitter.
func newEmbedRetryPolicy(maxRetries int) backoff.RetryPolicy {
	base := backoff.NewExponentialBackoffPolicy(retryInitialInterval)
	base.BackoffFactor = retryBackoffFactor
	base.MaxInterval = retryMaxInterval
	base.MaxRetries = maxRetries
	return backoff.WithJitter(base, backoff.FullJitter)
}

// classifyResponse converts a non-2xx response into an APIError.
func (c *HTTPClient) classifyResponse(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	return NewAPIError(c.provider, code, resp.String())
}

// isRetriableError classifies errors for retry decisions:
//   - APIError 429, 500-504 → retry
//   - APIError other (4xx) → never retry
//   - everything else (network, io) → retry
func isRetriableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || (apiErr.StatusCode >= 500 && apiErr.StatusCode <= 504)
	}
	return true
}
