package vecstore

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

const (
	// DefaultCollectionName names the collection when the section leaves
	// it unset.
	DefaultCollectionName = "mnemo"

	// DefaultDimensions is the vector width assumed when unset. It must
	// match the embedder's output width.
	DefaultDimensions = 1536
)

// Params is the validated form of a vector store section's config map.
// It is the union of all provider parameters; Validate enforces the
// subset the selected provider requires.
type Params struct {
	// CollectionName namespaces records. Defaults to "mnemo".
	CollectionName string `mapstructure:"collection_name"`

	// Dimensions is the vector width. Must match the embedder.
	Dimensions *int `mapstructure:"dimensions"`

	// Path locates file-backed stores. Defaults under the data dir.
	Path string `mapstructure:"path"`

	// URL is the endpoint for qdrant (http://...) and redis (redis://...).
	URL string `mapstructure:"url"`

	// DSN is the pgvector connection string. Required for pgvector.
	DSN string `mapstructure:"dsn"`

	// APIKey is an inline credential (qdrant). Prefer APIKeyRef.
	APIKey    string `mapstructure:"api_key"`
	APIKeyRef string `mapstructure:"api_key_ref"`

	// Timeout bounds a single store operation.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ParseParams decodes a raw store config map into Params. Unknown keys
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
	if p.CollectionName == "" {
		p.CollectionName = DefaultCollectionName
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks that every populated field is within its domain.
// Provider-specific requirements are enforced by ValidateFor.
func (p Params) Validate() error {
	if p.Dimensions != nil && *p.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidParameter, *p.Dimensions)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidParameter, p.Timeout)
	}
	if p.APIKeyRef != "" {
		if _, err := secrets.ParseRef(p.APIKeyRef); err != nil {
			return fmt.Errorf("%w: api_key_ref: %v", ErrInvalidParameter, err)
		}
	}
	return nil
}

// ValidateFor enforces the parameters the selected provider requires.
func (p Params) ValidateFor(t ProviderType) error {
	switch t {
	case ProviderPGVector:
		if p.DSN == "" {
			return fmt.Errorf("%w: dsn is required for pgvector", ErrInvalidParameter)
		}
	case ProviderMemvec, ProviderQdrant, ProviderRedis, ProviderSQLiteVec:
		// Endpoints and paths all have workable defaults.
	}
	return nil
}
