package embedder

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all embedding providers.
var (
	// ErrUnknownProvider is returned when resolving an embedder type that
	// has no registered factory.
	ErrUnknownProvider = errors.New("unknown embedder provider")

	// ErrInvalidParameter is returned when an embedder section carries an
	// unknown key or an out-of-domain value.
	ErrInvalidParameter = errors.New("invalid embedder parameter")

	// ErrMissingCredential is returned by clients that require an API key
	// when none could be found.
	ErrMissingCredential = errors.New("missing API key")
)

// ProviderError wraps an error with the provider name that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// APIError represents a non-2xx response from an embedding API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// NewAPIError creates an APIError.
func NewAPIError(provider string, statusCode int, body string) error {
	return &APIError{Provider: provider, StatusCode: statusCode, Body: body}
}
