package llm

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

// Params are the validated provider parameters from a configuration section.
// Keys not listed here are rejected at resolve time.
type Params struct {
	// Model is the model identifier. Required for every provider.
	Model string `mapstructure:"model"`

	// Sampling parameters. Nil means provider default.
	Temperature *float64 `mapstructure:"temperature"`
	TopP        *float64 `mapstructure:"top_p"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
	Stop        []string `mapstructure:"stop"`

	// Credential and endpoint overrides.
	APIKey    string `mapstructure:"api_key"`
	APIKeyRef string `mapstructure:"api_key_ref"`
	BaseURL   string `mapstructure:"base_url"`

	// Transport overrides.
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries *int          `mapstructure:"max_retries"`
}

// ParseParams decodes a raw provider config map into Params.
// Unknown keys and values outside their domain return ErrInvalidParameter.
func ParseParams(raw map[string]any) (Params, error) {
	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Params{}, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks that every parameter is within its domain.
func (p Params) Validate() error {
	if p.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidParameter)
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("%w: temperature must be within [0, 2], got %v", ErrInvalidParameter, *p.Temperature)
	}
	if p.TopP != nil && (*p.TopP <= 0 || *p.TopP > 1) {
		return fmt.Errorf("%w: top_p must be within (0, 1], got %v", ErrInvalidParameter, *p.TopP)
	}
	if p.MaxTokens != nil && *p.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidParameter, *p.MaxTokens)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidParameter, p.Timeout)
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
