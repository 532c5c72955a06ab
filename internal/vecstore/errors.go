package vecstore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned when a provider name is empty or not
	// present in the store registry.
	ErrUnknownProvider = errors.New("unknown vector store provider")

	// ErrInvalidParameter is returned when a store section carries a key
	// the provider does not accept, or a value outside its domain.
	ErrInvalidParameter = errors.New("invalid vector store parameter")

	// ErrMissingCredential is returned by store constructors when a
	// required credential is absent.
	ErrMissingCredential = errors.New("missing credential")

	// ErrNotFound is returned when a record ID does not exist.
	ErrNotFound = errors.New("record not found")
)

// StoreError wraps an error with the name of the store that produced it.
type StoreError struct {
	Provider string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with the provider name for error reporting.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Provider: provider, Err: err}
}
