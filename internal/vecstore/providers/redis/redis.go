// Package redis implements the vector store on Redis with the RediSearch
// vector extension. Records live in hashes under "<collection>:<id>" and
// a single FLAT index over the vector field serves KNN queries.
package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mnemo-org/mnemo/internal/vecstore"
)

const providerName = "redis"

const defaultURL = "redis://localhost:6379"

func init() {
	vecstore.RegisterStore(vecstore.ProviderRedis, New)
}

var _ vecstore.Store = (*Store)(nil)

// Store talks to a RediSearch vector index.
type Store struct {
	client     *goredis.Client
	collection string
	dimensions int
}

// New connects to Redis and creates the search index if missing.
func New(ctx context.Context, cfg vecstore.Config) (vecstore.Store, error) {
	url := cfg.URL
	if url == "" {
		url = defaultURL
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, vecstore.WrapError(providerName, fmt.Errorf("%w: url: %v", vecstore.ErrInvalidParameter, err))
	}
	if cfg.APIKey != "" && opts.Password == "" {
		opts.Password = cfg.APIKey
	}
	if cfg.Timeout > 0 {
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}

	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, vecstore.WrapError(providerName, fmt.Errorf("failed to connect: %w", err))
	}

	s := &Store{client: client, collection: cfg.CollectionName, dimensions: cfg.Dimensions}
	if err := s.ensureIndex(ctx); err != nil {
		_ = client.Close()
		return nil, vecstore.WrapError(providerName, err)
	}
	return s, nil
}

// Name returns the provider name.
func (s *Store) Name() string {
	return providerName
}

func (s *Store) indexName() string {
	return s.collection + "_idx"
}

func (s *Store) key(id string) string {
	return s.collection + ":" + id
}

func (s *Store) ensureIndex(ctx context.Context) error {
	if _, err := s.client.FTInfo(ctx, s.indexName()).Result(); err == nil {
		return nil
	}
	err := s.client.FTCreate(ctx, s.indexName(),
		&goredis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{s.collection + ":"},
		},
		&goredis.FieldSchema{FieldName: "user_id", FieldType: goredis.SearchFieldTypeTag},
		&goredis.FieldSchema{FieldName: "agent_id", FieldType: goredis.SearchFieldTypeTag},
		&goredis.FieldSchema{FieldName: "run_id", FieldType: goredis.SearchFieldTypeTag},
		&goredis.FieldSchema{
			FieldName: "vector",
			FieldType: goredis.SearchFieldTypeVector,
			VectorArgs: &goredis.FTVectorArgs{
				FlatOptions: &goredis.FTFlatOptions{
					Type:           "FLOAT32",
					Dim:            s.dimensions,
					DistanceMetric: "COSINE",
				},
			},
		},
	).Err()
	if err != nil && !strings.Contains(err.Error(), "Index already exists") {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Insert writes each record as a hash.
func (s *Store) Insert(ctx context.Context, records []vecstore.Record) error {
	pipe := s.client.Pipeline()
	for _, rec := range records {
		fields, err := hashFields(rec)
		if err != nil {
			return vecstore.WrapError(providerName, err)
		}
		pipe.HSet(ctx, s.key(rec.ID), fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return vecstore.WrapError(providerName, err)
	}
	return nil
}

// Search runs a KNN query restricted to the filter scope.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, filters vecstore.Filters) ([]vecstore.Hit, error) {
	query := fmt.Sprintf("(%s)=>[KNN %d @vector $vec AS score]", filterQuery(filters), limit)
	result, err := s.client.FTSearchWithArgs(ctx, s.indexName(), query, &goredis.FTSearchOptions{
		Params:         map[string]any{"vec": encodeVector(vector)},
		SortBy:         []goredis.FTSearchSortBy{{FieldName: "score", Asc: true}},
		DialectVersion: 2,
		LimitOffset:    0,
		Limit:          limit,
		Return: []goredis.FTSearchReturn{
			{FieldName: "score"},
			{FieldName: "payload"},
			{FieldName: "vector"},
		},
	}).Result()
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}

	hits := make([]vecstore.Hit, 0, len(result.Docs))
	for _, doc := range result.Docs {
		rec, err := docRecord(s.collection, doc.ID, doc.Fields)
		if err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		var distance float64
		_, _ = fmt.Sscanf(doc.Fields["score"], "%g", &distance)
		hits = append(hits, vecstore.Hit{Record: rec, Score: float32(1 - distance)})
	}
	return hits, nil
}

// Get reads a record's hash by ID.
func (s *Store) Get(ctx context.Context, id string) (*vecstore.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	if len(fields) == 0 {
		return nil, vecstore.WrapError(providerName, fmt.Errorf("%w: %s", vecstore.ErrNotFound, id))
	}
	rec, err := docRecord(s.collection, s.key(id), fields)
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	return &rec, nil
}

// List returns records matching the filter scope.
func (s *Store) List(ctx context.Context, filters vecstore.Filters, limit int) ([]vecstore.Record, error) {
	if limit <= 0 {
		limit = 10000
	}
	result, err := s.client.FTSearchWithArgs(ctx, s.indexName(), filterQuery(filters), &goredis.FTSearchOptions{
		DialectVersion: 2,
		LimitOffset:    0,
		Limit:          limit,
		Return: []goredis.FTSearchReturn{
			{FieldName: "payload"},
			{FieldName: "vector"},
		},
	}).Result()
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}

	records := make([]vecstore.Record, 0, len(result.Docs))
	for _, doc := range result.Docs {
		rec, err := docRecord(s.collection, doc.ID, doc.Fields)
		if err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Update overwrites the record's hash.
func (s *Store) Update(ctx context.Context, record vecstore.Record) error {
	return s.Insert(ctx, []vecstore.Record{record})
}

// Delete removes the record's hash.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return vecstore.WrapError(providerName, err)
	}
	if n == 0 {
		return vecstore.WrapError(providerName, fmt.Errorf("%w: %s", vecstore.ErrNotFound, id))
	}
	return nil
}

// Reset drops the index with its documents and recreates it.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.client.FTDropIndexWithArgs(ctx, s.indexName(), &goredis.FTDropIndexOptions{DeleteDocs: true}).Err(); err != nil {
		if !strings.Contains(err.Error(), "Unknown Index") && !strings.Contains(err.Error(), "no such index") {
			return vecstore.WrapError(providerName, err)
		}
	}
	if err := s.ensureIndex(ctx); err != nil {
		return vecstore.WrapError(providerName, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func hashFields(rec vecstore.Record) (map[string]any, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	fields := map[string]any{
		"vector":  encodeVector(rec.Vector),
		"payload": string(payload),
	}
	for _, k := range []string{"user_id", "agent_id", "run_id"} {
		if v, ok := rec.Payload[k].(string); ok && v != "" {
			fields[k] = v
		}
	}
	return fields, nil
}

func docRecord(collection, docID string, fields map[string]string) (vecstore.Record, error) {
	rec := vecstore.Record{
		ID:     strings.TrimPrefix(docID, collection+":"),
		Vector: decodeVector(fields["vector"]),
	}
	if raw := fields["payload"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Payload); err != nil {
			return vecstore.Record{}, fmt.Errorf("failed to decode payload for %s: %w", docID, err)
		}
	}
	return rec, nil
}

// filterQuery builds the RediSearch tag filter, "*" when unscoped.
func filterQuery(f vecstore.Filters) string {
	if f.IsZero() {
		return "*"
	}
	var parts []string
	add := func(field, value string) {
		if value != "" {
			parts = append(parts, fmt.Sprintf("@%s:{%s}", field, escapeTag(value)))
		}
	}
	add("user_id", f.UserID)
	add("agent_id", f.AgentID)
	add("run_id", f.RunID)
	return strings.Join(parts, " ")
}

var tagEscaper = strings.NewReplacer(
	"-", "\\-", ".", "\\.", "@", "\\@", ":", "\\:", "|", "\\|",
	"{", "\\{", "}", "\\}", "(", "\\(", ")", "\\)", " ", "\\ ",
)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}

// encodeVector packs float32s little-endian, the layout FT.SEARCH expects
// for FLOAT32 vector fields.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw string) []float32 {
	if len(raw) < 4 {
		return nil
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(raw[i*4 : i*4+4])))
	}
	return vec
}
