// Package qdrant implements the vector store against the Qdrant REST API.
package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mnemo-org/mnemo/internal/vecstore"
)

const providerName = "qdrant"

const defaultURL = "http://localhost:6333"

func init() {
	vecstore.RegisterStore(vecstore.ProviderQdrant, New)
}

var _ vecstore.Store = (*Store)(nil)

// Store talks to a Qdrant collection over REST.
type Store struct {
	client     *resty.Client
	collection string
}

// New connects to Qdrant and creates the collection if it does not exist.
func New(ctx context.Context, cfg vecstore.Config) (vecstore.Store, error) {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}

	s := &Store{client: client, collection: cfg.CollectionName}
	if err := s.ensureCollection(ctx, cfg.Dimensions); err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	return s, nil
}

// Name returns the provider name.
func (s *Store) Name() string {
	return providerName
}

func (s *Store) ensureCollection(ctx context.Context, dimensions int) error {
	resp, err := s.client.R().SetContext(ctx).
		Get("/collections/" + s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if resp.StatusCode() == http.StatusOK {
		return nil
	}

	resp, err = s.client.R().SetContext(ctx).
		SetBody(map[string]any{
			"vectors": map[string]any{
				"size":     dimensions,
				"distance": "Cosine",
			},
		}).
		Put("/collections/" + s.collection)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to create collection: %s: %s", resp.Status(), resp.String())
	}
	return nil
}

// Insert upserts records into the collection.
func (s *Store) Insert(ctx context.Context, records []vecstore.Record) error {
	points := make([]point, 0, len(records))
	for _, rec := range records {
		points = append(points, point{
			ID:      pointID(rec.ID),
			Vector:  rec.Vector,
			Payload: rec.Payload,
		})
	}
	resp, err := s.client.R().SetContext(ctx).
		SetBody(map[string]any{"points": points}).
		SetQueryParam("wait", "true").
		Put("/collections/" + s.collection + "/points")
	if err != nil {
		return vecstore.WrapError(providerName, err)
	}
	if resp.IsError() {
		return vecstore.WrapError(providerName, fmt.Errorf("upsert failed: %s: %s", resp.Status(), resp.String()))
	}
	return nil
}

// Search runs a nearest-neighbor query with server-side scope filtering.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, filters vecstore.Filters) ([]vecstore.Hit, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	if f := filterClause(filters); f != nil {
		body["filter"] = f
	}

	var result searchResponse
	resp, err := s.client.R().SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/collections/" + s.collection + "/points/search")
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	if resp.IsError() {
		return nil, vecstore.WrapError(providerName, fmt.Errorf("search failed: %s: %s", resp.Status(), resp.String()))
	}

	hits := make([]vecstore.Hit, 0, len(result.Result))
	for _, p := range result.Result {
		hits = append(hits, vecstore.Hit{Record: p.toRecord(), Score: p.Score})
	}
	return hits, nil
}

// Get retrieves a single record by ID.
func (s *Store) Get(ctx context.Context, id string) (*vecstore.Record, error) {
	var result retrieveResponse
	resp, err := s.client.R().SetContext(ctx).
		SetBody(map[string]any{
			"ids":          []any{pointID(id)},
			"with_payload": true,
			"with_vector":  true,
		}).
		SetResult(&result).
		Post("/collections/" + s.collection + "/points")
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	if resp.IsError() {
		return nil, vecstore.WrapError(providerName, fmt.Errorf("retrieve failed: %s: %s", resp.Status(), resp.String()))
	}
	if len(result.Result) == 0 {
		return nil, vecstore.WrapError(providerName, fmt.Errorf("%w: %s", vecstore.ErrNotFound, id))
	}
	rec := result.Result[0].toRecord()
	return &rec, nil
}

// List scrolls through records in the filter scope.
func (s *Store) List(ctx context.Context, filters vecstore.Filters, limit int) ([]vecstore.Record, error) {
	body := map[string]any{
		"with_payload": true,
		"with_vector":  true,
	}
	if limit > 0 {
		body["limit"] = limit
	}
	if f := filterClause(filters); f != nil {
		body["filter"] = f
	}

	var result scrollResponse
	resp, err := s.client.R().SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/collections/" + s.collection + "/points/scroll")
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	if resp.IsError() {
		return nil, vecstore.WrapError(providerName, fmt.Errorf("scroll failed: %s: %s", resp.Status(), resp.String()))
	}

	records := make([]vecstore.Record, 0, len(result.Result.Points))
	for _, p := range result.Result.Points {
		records = append(records, p.toRecord())
	}
	return records, nil
}

// Update upserts a single record.
func (s *Store) Update(ctx context.Context, record vecstore.Record) error {
	return s.Insert(ctx, []vecstore.Record{record})
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	resp, err := s.client.R().SetContext(ctx).
		SetBody(map[string]any{"points": []any{pointID(id)}}).
		SetQueryParam("wait", "true").
		Post("/collections/" + s.collection + "/points/delete")
	if err != nil {
		return vecstore.WrapError(providerName, err)
	}
	if resp.IsError() {
		return vecstore.WrapError(providerName, fmt.Errorf("delete failed: %s: %s", resp.Status(), resp.String()))
	}
	return nil
}

// Reset drops and recreates the collection.
func (s *Store) Reset(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).
		Delete("/collections/" + s.collection)
	if err != nil {
		return vecstore.WrapError(providerName, err)
	}
	if resp.IsError() {
		return vecstore.WrapError(providerName, fmt.Errorf("drop failed: %s: %s", resp.Status(), resp.String()))
	}
	return nil
}

// Close is a no-op; resty pools its connections.
func (s *Store) Close() error {
	return nil
}

// pointID maps a record ID to a Qdrant point ID. Qdrant accepts unsigned
// integers and UUIDs; numeric IDs are sent as numbers.
func pointID(id string) any {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}
	return id
}

func filterClause(f vecstore.Filters) map[string]any {
	if f.IsZero() {
		return nil
	}
	var must []map[string]any
	add := func(key, value string) {
		if value != "" {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
	}
	add("user_id", f.UserID)
	add("agent_id", f.AgentID)
	add("run_id", f.RunID)
	return map[string]any{"must": must}
}

type point struct {
	ID      any            `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float32        `json:"score"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (p scoredPoint) toRecord() vecstore.Record {
	var id string
	switch v := p.ID.(type) {
	case string:
		id = v
	case float64:
		id = strconv.FormatUint(uint64(v), 10)
	default:
		id = fmt.Sprint(v)
	}
	return vecstore.Record{ID: id, Vector: p.Vector, Payload: p.Payload}
}

type searchResponse struct {
	Result []scoredPoint `json:"result"`
}

type retrieveResponse struct {
	Result []scoredPoint `json:"result"`
}

type scrollResponse struct {
	Result struct {
		Points []scoredPoint `json:"points"`
	} `json:"result"`
}
