// Package neo4j implements the graph store on Neo4j over bolt. Entities
// are nodes carrying their embedding and scope properties; relations are
// typed edges. Node identity is approximate: a new entity reuses an
// existing node when their embeddings are close enough.
package neo4j

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mnemo-org/mnemo/internal/graph"
)

const providerName = "neo4j"

func init() {
	graph.RegisterStore(graph.ProviderNeo4j, New)
}

var _ graph.Store = (*Store)(nil)

// Store talks to a Neo4j database.
type Store struct {
	driver    neo4j.DriverWithContext
	database  string
	threshold float64
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg graph.Config) (graph.Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, graph.WrapError(providerName, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, graph.WrapError(providerName, fmt.Errorf("failed to connect: %w", err))
	}
	return &Store{
		driver:    driver,
		database:  cfg.Database,
		threshold: cfg.Threshold,
	}, nil
}

// Name returns the provider name.
func (s *Store) Name() string {
	return providerName
}

func (s *Store) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
}

// AddRelations merges relations into the scope's graph.
func (s *Store) AddRelations(ctx context.Context, relations []graph.Relation, filters graph.Filters) error {
	for _, rel := range relations {
		srcID, err := s.mergeNode(ctx, rel.Source, filters)
		if err != nil {
			return graph.WrapError(providerName, err)
		}
		dstID, err := s.mergeNode(ctx, rel.Destination, filters)
		if err != nil {
			return graph.WrapError(providerName, err)
		}
		relType, err := relationshipType(rel.Relationship)
		if err != nil {
			return graph.WrapError(providerName, err)
		}
		query := fmt.Sprintf(`
			MATCH (s), (d)
			WHERE elementId(s) = $src AND elementId(d) = $dst
			MERGE (s)-[r:%s]->(d)
			SET r.updated_at = timestamp()`, relType)
		if _, err := s.run(ctx, query, map[string]any{"src": srcID, "dst": dstID}); err != nil {
			return graph.WrapError(providerName, err)
		}
	}
	return nil
}

// mergeNode finds a node similar enough to reuse, or creates one, and
// returns its element ID.
func (s *Store) mergeNode(ctx context.Context, node graph.Node, filters graph.Filters) (string, error) {
	where, params := scopeClause(filters, "n")
	params["embedding"] = toFloat64(node.Embedding)
	params["threshold"] = s.threshold

	query := fmt.Sprintf(`
		MATCH (n:Entity)
		WHERE n.embedding IS NOT NULL AND %s
		WITH n, vector.similarity.cosine(n.embedding, $embedding) AS similarity
		WHERE similarity >= $threshold
		RETURN elementId(n) AS id
		ORDER BY similarity DESC
		LIMIT 1`, where)
	result, err := s.run(ctx, query, params)
	if err != nil {
		return "", err
	}
	if len(result.Records) > 0 {
		id, _ := result.Records[0].Get("id")
		return id.(string), nil
	}

	createParams := map[string]any{
		"name":      node.Name,
		"type":      node.Type,
		"embedding": toFloat64(node.Embedding),
	}
	for k, v := range scopeProps(filters) {
		createParams[k] = v
	}
	props := []string{"name: $name", "type: $type", "embedding: $embedding", "created_at: timestamp()"}
	for k := range scopeProps(filters) {
		props = append(props, fmt.Sprintf("%s: $%s", k, k))
	}
	query = fmt.Sprintf(`CREATE (n:Entity {%s}) RETURN elementId(n) AS id`, strings.Join(props, ", "))
	result, err = s.run(ctx, query, createParams)
	if err != nil {
		return "", err
	}
	if len(result.Records) == 0 {
		return "", fmt.Errorf("node creation returned no record")
	}
	id, _ := result.Records[0].Get("id")
	return id.(string), nil
}

// SearchRelations returns triples around nodes similar to the query
// embedding, in both edge directions.
func (s *Store) SearchRelations(ctx context.Context, embedding []float32, limit int, filters graph.Filters) ([]graph.Triple, error) {
	where, params := scopeClause(filters, "n")
	params["embedding"] = toFloat64(embedding)
	params["threshold"] = s.threshold
	params["limit"] = limit

	query := fmt.Sprintf(`
		MATCH (n:Entity)
		WHERE n.embedding IS NOT NULL AND %s
		WITH n, vector.similarity.cosine(n.embedding, $embedding) AS similarity
		WHERE similarity >= $threshold
		CALL {
			WITH n
			MATCH (n)-[r]->(m:Entity)
			RETURN n.name AS source, type(r) AS relationship, m.name AS destination
			UNION
			WITH n
			MATCH (m:Entity)-[r]->(n)
			RETURN m.name AS source, type(r) AS relationship, n.name AS destination
		}
		RETURN source, relationship, destination, similarity
		ORDER BY similarity DESC
		LIMIT $limit`, where)
	result, err := s.run(ctx, query, params)
	if err != nil {
		return nil, graph.WrapError(providerName, err)
	}
	return recordTriples(result), nil
}

// GetAll returns triples in the scope.
func (s *Store) GetAll(ctx context.Context, filters graph.Filters, limit int) ([]graph.Triple, error) {
	where, params := scopeClause(filters, "n")
	query := fmt.Sprintf(`
		MATCH (n:Entity)-[r]->(m:Entity)
		WHERE %s
		RETURN n.name AS source, type(r) AS relationship, m.name AS destination`, where)
	if limit > 0 {
		params["limit"] = limit
		query += "\n\t\tLIMIT $limit"
	}
	result, err := s.run(ctx, query, params)
	if err != nil {
		return nil, graph.WrapError(providerName, err)
	}
	return recordTriples(result), nil
}

// DeleteRelations removes the given edges; nodes stay.
func (s *Store) DeleteRelations(ctx context.Context, triples []graph.Triple, filters graph.Filters) error {
	for _, t := range triples {
		relType, err := relationshipType(t.Relationship)
		if err != nil {
			return graph.WrapError(providerName, err)
		}
		where, params := scopeClause(filters, "s")
		params["source"] = t.Source
		params["destination"] = t.Destination
		query := fmt.Sprintf(`
			MATCH (s:Entity {name: $source})-[r:%s]->(d:Entity {name: $destination})
			WHERE %s
			DELETE r`, relType, where)
		if _, err := s.run(ctx, query, params); err != nil {
			return graph.WrapError(providerName, err)
		}
	}
	return nil
}

// DeleteAll detaches and deletes every node in the scope.
func (s *Store) DeleteAll(ctx context.Context, filters graph.Filters) error {
	where, params := scopeClause(filters, "n")
	query := fmt.Sprintf(`MATCH (n:Entity) WHERE %s DETACH DELETE n`, where)
	if _, err := s.run(ctx, query, params); err != nil {
		return graph.WrapError(providerName, err)
	}
	return nil
}

// Close closes the driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

var relTypePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// relationshipType validates a relationship name for use as a Cypher
// relationship type, which cannot be parameterized.
func relationshipType(name string) (string, error) {
	if !relTypePattern.MatchString(name) {
		return "", fmt.Errorf("%w: relationship %q is not a valid type name", graph.ErrInvalidParameter, name)
	}
	return name, nil
}

// scopeProps returns the node properties a scope stamps on creation.
func scopeProps(f graph.Filters) map[string]any {
	props := make(map[string]any)
	if f.UserID != "" {
		props["user_id"] = f.UserID
	}
	if f.AgentID != "" {
		props["agent_id"] = f.AgentID
	}
	if f.RunID != "" {
		props["run_id"] = f.RunID
	}
	return props
}

// scopeClause builds the WHERE fragment matching a scope on alias. An
// empty scope matches everything.
func scopeClause(f graph.Filters, alias string) (string, map[string]any) {
	params := make(map[string]any)
	var conds []string
	for k, v := range scopeProps(f) {
		conds = append(conds, fmt.Sprintf("%s.%s = $%s", alias, k, k))
		params[k] = v
	}
	if len(conds) == 0 {
		return "true", params
	}
	return strings.Join(conds, " AND "), params
}

func recordTriples(result *neo4j.EagerResult) []graph.Triple {
	triples := make([]graph.Triple, 0, len(result.Records))
	for _, rec := range result.Records {
		src, _ := rec.Get("source")
		rel, _ := rec.Get("relationship")
		dst, _ := rec.Get("destination")
		triple := graph.Triple{}
		triple.Source, _ = src.(string)
		triple.Relationship, _ = rel.(string)
		triple.Destination, _ = dst.(string)
		triples = append(triples, triple)
	}
	return triples
}

func toFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
