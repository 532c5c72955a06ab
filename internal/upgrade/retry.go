package upgrade

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mnemo-org/mnemo/internal/cmn/backoff"
)

const (
	retryInitialInterval = 1 * time.Second
	retryMaxInterval     = 5 * time.Second
	retryMaxRetries      = 3
	retryBackoffFactor   = 2.0
)

// newUpgradeRetryPolicy builds the retry policy used for release API and
// checksum requests: exponential backoff with full jitter.
func newUpgradeRetryPolicy() backoff.RetryPolicy {
	base := backoff.NewExponentialBackoffPolicy(retryInitialInterval)
	base.BackoffFactor = retryBackoffFactor
	base.MaxInterval = retryMaxInterval
	base.MaxRetries = retryMaxRetries
	return backoff.WithJitter(base, backoff.FullJitter)
}

// httpError carries an HTTP status code for retry classification.
type httpError struct {
	statusCode int
	message    string
}

func (e *httpError) Error() string { return e.message }

// isRetriableError classifies errors for retry decisions: rate limits and
// server errors retry, other HTTP statuses do not, transport errors do.
func isRetriableError(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.statusCode == 429 || (he.statusCode >= 500 && he.statusCode <= 504)
	}
	return true
}

// classifyResponse maps an HTTP response onto the retry classification:
// 2xx is success, everything else becomes an httpError.
func classifyResponse(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	return &httpError{
		statusCode: code,
		message:    fmt.Sprintf("HTTP %d: %s", code, resp.String()),
	}
}
