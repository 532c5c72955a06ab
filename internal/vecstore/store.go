// Package vecstore resolves configured vector store providers into clients
// that persist and search embedded memory records.
//
// A provider section from the root configuration is resolved once into an
// immutable handle binding a canonical provider type to validated
// parameters. Resolution is pure; connections are only opened when a store
// is constructed from the handle.
package vecstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderType identifies a supported vector store provider.
type ProviderType string

const (
	// ProviderMemvec is the in-process HNSW store with optional snapshot
	// persistence.
	ProviderMemvec ProviderType = "memvec"
	// ProviderQdrant is the Qdrant REST API.
	ProviderQdrant ProviderType = "qdrant"
	// ProviderRedis is Redis with the RediSearch vector extension.
	ProviderRedis ProviderType = "redis"
	// ProviderPGVector is Postgres with the pgvector extension.
	ProviderPGVector ProviderType = "pgvector"
	// ProviderSQLiteVec is SQLite with the sqlite-vec extension.
	ProviderSQLiteVec ProviderType = "sqlitevec"
)

// ParseProviderType normalizes a provider name to its canonical type.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "memvec", "memory", "inmemory":
		return ProviderMemvec, nil
	case "qdrant":
		return ProviderQdrant, nil
	case "redis":
		return ProviderRedis, nil
	case "pgvector", "postgres", "pg":
		return ProviderPGVector, nil
	case "sqlitevec", "sqlite_vec", "sqlite-vec", "sqlite":
		return ProviderSQLiteVec, nil
	case "":
		return "", fmt.Errorf("%w: provider name is empty", ErrUnknownProvider)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// Record is a stored memory: an ID, its embedding and an arbitrary payload.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is a search result with its similarity score (higher is closer).
type Hit struct {
	Record
	Score float32
}

// Filters narrow operations to a memory scope. Empty fields match
// everything; set fields require payload equality.
type Filters struct {
	UserID  string
	AgentID string
	RunID   string
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.UserID == "" && f.AgentID == "" && f.RunID == ""
}

// Match reports whether a payload satisfies every set filter. Stores
// without server-side filtering use this to post-filter candidates.
func (f Filters) Match(payload map[string]any) bool {
	match := func(key, want string) bool {
		if want == "" {
			return true
		}
		got, _ := payload[key].(string)
		return got == want
	}
	return match("user_id", f.UserID) && match("agent_id", f.AgentID) && match("run_id", f.RunID)
}

// Store persists and searches embedded records. Implementations are safe
// for concurrent use.
type Store interface {
	// Name returns the provider name.
	Name() string

	// Insert adds records. Existing IDs are overwritten.
	Insert(ctx context.Context, records []Record) error

	// Search returns up to limit records nearest to vector, most similar
	// first, restricted to the filter scope.
	Search(ctx context.Context, vector []float32, limit int, filters Filters) ([]Hit, error)

	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records in the filter scope, in no
	// particular order. limit <= 0 means no limit.
	List(ctx context.Context, filters Filters, limit int) ([]Record, error)

	// Update replaces the record with the same ID.
	Update(ctx context.Context, record Record) error

	// Delete removes the record with the given ID.
	Delete(ctx context.Context, id string) error

	// Reset drops every record in the collection.
	Reset(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// Config holds the construction parameters shared by store factories.
// Which fields matter depends on the provider.
type Config struct {
	CollectionName string
	Dimensions     int

	// Path locates file-backed stores (memvec snapshot, sqlitevec db).
	Path string
	// URL is the endpoint for HTTP stores (qdrant) and redis.
	URL string
	// DSN is the connection string for pgvector.
	DSN string

	APIKey  string
	Timeout time.Duration
}

// StoreFactory constructs a store from a Config.
type StoreFactory func(ctx context.Context, cfg Config) (Store, error)

var registry = make(map[ProviderType]StoreFactory)

// RegisterStore registers a store factory. Called from provider package
// init functions; the registry is read-only afterwards.
func RegisterStore(t ProviderType, factory StoreFactory) {
	registry[t] = factory
}

// NewStore builds a store for a registered provider type.
func NewStore(ctx context.Context, t ProviderType, cfg Config) (Store, error) {
	factory, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrUnknownProvider, t)
	}
	return factory(ctx, cfg)
}
