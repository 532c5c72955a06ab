// Package pgvector implements the vector store on Postgres with the
// pgvector extension. Each collection is a table with a vector column
// and a JSONB payload; cosine distance drives similarity search.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver

	"github.com/mnemo-org/mnemo/internal/vecstore"
)

const providerName = "pgvector"

func init() {
	vecstore.RegisterStore(vecstore.ProviderPGVector, New)
}

var _ vecstore.Store = (*Store)(nil)

// Store persists records in a Postgres table.
type Store struct {
	db    *sql.DB
	table string
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// New connects to Postgres and creates the collection table if missing.
func New(ctx context.Context, cfg vecstore.Config) (vecstore.Store, error) {
	table := strings.ToLower(cfg.CollectionName)
	if !identPattern.MatchString(table) {
		return nil, vecstore.WrapError(providerName,
			fmt.Errorf("%w: collection_name %q is not a valid table name", vecstore.ErrInvalidParameter, cfg.CollectionName))
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, vecstore.WrapError(providerName, fmt.Errorf("failed to connect: %w", err))
	}

	s := &Store{db: db, table: table}
	if err := s.migrate(ctx, cfg.Dimensions); err != nil {
		_ = db.Close()
		return nil, vecstore.WrapError(providerName, err)
	}
	return s, nil
}

// Name returns the provider name.
func (s *Store) Name() string {
	return providerName
}

func (s *Store) migrate(ctx context.Context, dimensions int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}'
		)`, s.table, dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
			USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Insert upserts records.
func (s *Store) Insert(ctx context.Context, records []vecstore.Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, embedding, payload) VALUES ($1, $2::vector, $3)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`, s.table)
	for _, rec := range records {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return vecstore.WrapError(providerName, fmt.Errorf("failed to encode payload: %w", err))
		}
		if _, err := s.db.ExecContext(ctx, query, rec.ID, vectorLiteral(rec.Vector), payload); err != nil {
			return vecstore.WrapError(providerName, err)
		}
	}
	return nil
}

// Search orders by cosine distance within the filter scope.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, filters vecstore.Filters) ([]vecstore.Hit, error) {
	where, args := filterWhere(filters, 2)
	query := fmt.Sprintf(`SELECT id, embedding::text, payload, 1 - (embedding <=> $1::vector) AS score
		FROM %s %s ORDER BY embedding <=> $1::vector LIMIT %d`, s.table, where, limit)
	args = append([]any{vectorLiteral(vector)}, args...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	defer func() { _ = rows.Close() }()

	var hits []vecstore.Hit
	for rows.Next() {
		var (
			rec   vecstore.Record
			emb   string
			raw   []byte
			score float64
		)
		if err := rows.Scan(&rec.ID, &emb, &raw, &score); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		if err := fillRecord(&rec, emb, raw); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		hits = append(hits, vecstore.Hit{Record: rec, Score: float32(score)})
	}
	return hits, vecstore.WrapError(providerName, rows.Err())
}

// Get returns a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*vecstore.Record, error) {
	query := fmt.Sprintf(`SELECT id, embedding::text, payload FROM %s WHERE id = $1`, s.table)
	var (
		rec vecstore.Record
		emb string
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &emb, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vecstore.WrapError(providerName, fmt.Errorf("%w: %s", vecstore.ErrNotFound, id))
	}
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	if err := fillRecord(&rec, emb, raw); err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	return &rec, nil
}

// List returns records in the filter scope.
func (s *Store) List(ctx context.Context, filters vecstore.Filters, limit int) ([]vecstore.Record, error) {
	where, args := filterWhere(filters, 1)
	query := fmt.Sprintf(`SELECT id, embedding::text, payload FROM %s %s`, s.table, where)
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	defer func() { _ = rows.Close() }()

	var records []vecstore.Record
	for rows.Next() {
		var (
			rec vecstore.Record
			emb string
			raw []byte
		)
		if err := rows.Scan(&rec.ID, &emb, &raw); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		if err := fillRecord(&rec, emb, raw); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		records = append(records, rec)
	}
	return records, vecstore.WrapError(providerName, rows.Err())
}

// Update upserts a single record.
func (s *Store) Update(ctx context.Context, record vecstore.Record) error {
	return s.Insert(ctx, []vecstore.Record{record})
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id)
	if err != nil {
		return vecstore.WrapError(providerName, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return vecstore.WrapError(providerName, fmt.Errorf("%w: %s", vecstore.ErrNotFound, id))
	}
	return nil
}

// Reset truncates the collection table.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s`, s.table)); err != nil {
		return vecstore.WrapError(providerName, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// vectorLiteral renders the pgvector text form, "[1,2,3]".
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVectorLiteral(s string) []float32 {
	s = strings.Trim(s, "[]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		vec = append(vec, float32(f))
	}
	return vec
}

func fillRecord(rec *vecstore.Record, emb string, payload []byte) error {
	rec.Vector = parseVectorLiteral(emb)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return fmt.Errorf("failed to decode payload for %s: %w", rec.ID, err)
		}
	}
	return nil
}

// filterWhere builds the WHERE clause for scope filters with parameter
// numbering starting at argStart.
func filterWhere(f vecstore.Filters, argStart int) (string, []any) {
	if f.IsZero() {
		return "", nil
	}
	var (
		conds []string
		args  []any
	)
	add := func(key, value string) {
		if value != "" {
			conds = append(conds, fmt.Sprintf("payload->>'%s' = $%d", key, argStart+len(args)))
			args = append(args, value)
		}
	}
	add("user_id", f.UserID)
	add("agent_id", f.AgentID)
	add("run_id", f.RunID)
	return "WHERE " + strings.Join(conds, " AND "), args
}
