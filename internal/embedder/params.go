package embedder

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

// Params is the validated form of an embedder section's config map.
type Params struct {
	// Model is the embedding model identifier. Required.
	Model string `mapstructure:"model"`

	// Dimensions requests a specific output width for models that
	// support shortening (text-embedding-3 family). Must be positive
	// when set.
	Dimensions *int `mapstructure:"dimensions"`

	// BatchSize caps the number of texts sent per request. Zero means
	// a single request carries all texts.
	BatchSize *int `mapstructure:"batch_size"`

	// APIKey is an inline credential. Prefer APIKeyRef.
	APIKey string `mapstructure:"api_key"`

	// APIKeyRef is a secret reference such as "env:OPENAI_API_KEY".
	APIKeyRef string `mapstructure:"api_key_ref"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds a single embedding request.
	Timeout *time.Duration `mapstructure:"timeout"`

	// MaxRetries caps transient-failure retries.
	MaxRetries *int `mapstructure:"max_retries"`
}

// ParseParams decodes and validates an embedder config map. Unknown
// keys are rejected so typos fail at resolve time instead of being
// silently dropped.
func ParseParams(raw map[string]any) (Params, error) {
	var params Params
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &params,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

// Validate checks that every populated field is within its domain.
func (p Params) Validate() error {
	if p.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidParameter)
	}
	if p.Dimensions != nil && *p.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidParameter, *p.Dimensions)
	}
	if p.BatchSize != nil && *p.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidParameter, *p.BatchSize)
	}
	if p.Timeout != nil && *p.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidParameter, *p.Timeout)
	}
	if p.MaxRetries != nil && *p.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative, got %d", ErrInvalidParameter, *p.MaxRetries)
	}
	if p.APIKeyRef != "" {
		if _, err := secrets.ParseRef(p.APIKeyRef); err != nil {
			return fmt.Errorf("%w: api_key_ref: %v", ErrInvalidParameter, err)
		}
	}
	return nil
}
