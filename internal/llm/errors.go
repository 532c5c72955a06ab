package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned when a provider name is empty or not
	// present in the provider registry.
	ErrUnknownProvider = errors.New("unknown llm provider")

	// ErrInvalidParameter is returned when a provider section carries a key
	// the provider does not accept, or a value outside its domain.
	ErrInvalidParameter = errors.New("invalid llm parameter")

	// ErrMissingCredential is returned by provider constructors when no API
	// key could be found for a provider that requires one.
	ErrMissingCredential = errors.New("missing API key")
)

// ProviderError wraps an error with the name of the provider that produced it.
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

// WrapError wraps err with the provider name for error reporting.
func WrapError(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}

// APIError represents a non-2xx response from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// NewAPIError creates an APIError for the given provider and response.
func NewAPIError(provider string, statusCode int, body string) error {
	return &APIError{Provider: provider, StatusCode: statusCode, Body: body}
}
