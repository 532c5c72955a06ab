// Package graph resolves configured graph store providers into clients
// that maintain an entity-relationship view of memories.
//
// Like the other provider sections, a graph section resolves once into an
// immutable handle; connections are only opened when a store is built from
// the handle. Entity extraction out of free text is a separate concern
// handled by Extractor, which any resolved chat provider can back.
package graph

import (
	"context"
	"fmt"
	"strings"
)

// ProviderType identifies a supported graph store provider.
type ProviderType string

const (
	// ProviderNeo4j is the Neo4j bolt protocol driver.
	ProviderNeo4j ProviderType = "neo4j"
)

// ParseProviderType normalizes a provider name to its canonical type.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neo4j", "bolt":
		return ProviderNeo4j, nil
	case "":
		return "", fmt.Errorf("%w: provider name is empty", ErrUnknownProvider)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// Node is a graph entity with its embedding for similarity matching.
type Node struct {
	Name      string
	Type      string
	Embedding []float32
}

// Relation connects two nodes with a typed edge.
type Relation struct {
	Source       Node
	Relationship string
	Destination  Node
}

// Triple is a relation in its plain text form.
type Triple struct {
	Source       string `json:"source"`
	Relationship string `json:"relationship"`
	Destination  string `json:"destination"`
}

// Filters narrow graph operations to a memory scope.
type Filters struct {
	UserID  string
	AgentID string
	RunID   string
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.UserID == "" && f.AgentID == "" && f.RunID == ""
}

// Store maintains the entity-relationship graph. Implementations are safe
// for concurrent use.
type Store interface {
	// Name returns the provider name.
	Name() string

	// AddRelations merges relations into the scope's graph. Nodes whose
	// embedding is close enough to an existing node reuse it instead of
	// creating a duplicate.
	AddRelations(ctx context.Context, relations []Relation, filters Filters) error

	// SearchRelations returns triples whose nodes are similar to the query
	// embedding, most similar first.
	SearchRelations(ctx context.Context, embedding []float32, limit int, filters Filters) ([]Triple, error)

	// GetAll returns up to limit triples in the scope. limit <= 0 means no
	// limit.
	GetAll(ctx context.Context, filters Filters, limit int) ([]Triple, error)

	// DeleteRelations removes the given triples from the scope's graph.
	DeleteRelations(ctx context.Context, triples []Triple, filters Filters) error

	// DeleteAll removes every node and edge in the scope.
	DeleteAll(ctx context.Context, filters Filters) error

	// Close releases the store's resources.
	Close(ctx context.Context) error
}

// Config holds the construction parameters shared by store factories.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	// Threshold is the minimum cosine similarity for two nodes to be
	// considered the same entity.
	Threshold float64
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
