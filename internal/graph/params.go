package graph

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

const (
	// DefaultURI is the bolt endpoint assumed when the section leaves it
	// unset.
	DefaultURI = "bolt://localhost:7687"

	// DefaultUsername is the username assumed when unset.
	DefaultUsername = "neo4j"

	// DefaultThreshold is the minimum cosine similarity for node reuse.
	DefaultThreshold = 0.7
)

// Params is the validated form of a graph store section's config map.
type Params struct {
	// URI is the bolt endpoint. Defaults to bolt://localhost:7687.
	URI string `mapstructure:"uri"`

	// Username authenticates the connection. Defaults to "neo4j".
	Username string `mapstructure:"username"`

	// Password is an inline credential. Prefer PasswordRef.
	Password    string `mapstructure:"password"`
	PasswordRef string `mapstructure:"password_ref"`

	// Database selects a named database; empty uses the server default.
	Database string `mapstructure:"database"`

	// Threshold is the minimum cosine similarity for two nodes to be
	// treated as the same entity. Defaults to 0.7.
	Threshold *float64 `mapstructure:"threshold"`

	// Timeout bounds a single graph operation.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ParseParams decodes a raw graph config map into Params. Unknown keys
// and values outside their domain return ErrInvalidParameter.
func ParseParams(raw map[string]any) (Params, error) {
	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if err := dec.Decode(raw); err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if p.URI == "" {
		p.URI = DefaultURI
	}
	if p.Username == "" {
		p.Username = DefaultUsername
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks that every populated field is within its domain.
func (p Params) Validate() error {
	if p.Threshold != nil && (*p.Threshold < 0 || *p.Threshold > 1) {
		return fmt.Errorf("%w: threshold must be in [0, 1], got %g", ErrInvalidParameter, *p.Threshold)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidParameter, p.Timeout)
	}
	if p.PasswordRef != "" {
		if _, err := secrets.ParseRef(p.PasswordRef); err != nil {
			return fmt.Errorf("%w: password_ref: %v", ErrInvalidParameter, err)
		}
	}
	return nil
}
