// Package sqlitevec implements the vector store on SQLite with the
// sqlite-vec extension. Embeddings live in a vec0 virtual table keyed by
// rowid; a sidecar table maps record IDs to rowids and holds payloads.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces" // registers vec0
	_ "github.com/ncruces/go-sqlite3/driver"             // registers the sqlite3 driver
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mnemo-org/mnemo/internal/vecstore"
)

const providerName = "sqlitevec"

func init() {
	vecstore.RegisterStore(vecstore.ProviderSQLiteVec, New)
}

var _ vecstore.Store = (*Store)(nil)

// Store persists records in a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at cfg.Path. An empty path opens an
// in-memory database.
func New(ctx context.Context, cfg vecstore.Config) (vecstore.Store, error) {
	dsn := cfg.Path
	if dsn == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0750); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	// The vec0 table shares rowids with the sidecar; serialize writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
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
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			payload TEXT NOT NULL DEFAULT '{}'
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(
			embedding float[%d] distance_metric=cosine
		)`, dimensions),
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vecstore.WrapError(providerName, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		if err := upsert(ctx, tx, rec); err != nil {
			return vecstore.WrapError(providerName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return vecstore.WrapError(providerName, err)
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, rec vecstore.Record) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	// Replace any previous row for this ID; vec0 has no upsert.
	var rowid int64
	err = tx.QueryRowContext(ctx, `SELECT rowid FROM records WHERE id = ?`, rec.ID).Scan(&rowid)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE rowid = ?`, rowid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE records SET payload = ? WHERE rowid = ?`, string(payload), rowid); err != nil {
			return err
		}
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `INSERT INTO records (id, payload) VALUES (?, ?)`, rec.ID, string(payload))
		if err != nil {
			return err
		}
		rowid, err = res.LastInsertId()
		if err != nil {
			return err
		}
	default:
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO vectors (rowid, embedding) VALUES (?, ?)`,
		rowid, vectorJSON(rec.Vector))
	return err
}

// Search runs a KNN query and post-filters by scope.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, filters vecstore.Filters) ([]vecstore.Hit, error) {
	// Over-fetch when filtered; vec0 cannot filter inside the MATCH.
	k := limit
	if !filters.IsZero() {
		k = limit * 4
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, v.embedding, r.payload, v.distance
		FROM vectors v JOIN records r ON r.rowid = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`, vectorJSON(vector), k)
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]vecstore.Hit, 0, limit)
	for rows.Next() {
		var (
			rec      vecstore.Record
			emb      []byte
			raw      string
			distance float64
		)
		if err := rows.Scan(&rec.ID, &emb, &raw, &distance); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		if err := fillRecord(&rec, emb, raw); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		if !filters.Match(rec.Payload) {
			continue
		}
		hits = append(hits, vecstore.Hit{Record: rec, Score: float32(1 - distance)})
		if len(hits) == limit {
			break
		}
	}
	return hits, vecstore.WrapError(providerName, rows.Err())
}

// Get returns a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*vecstore.Record, error) {
	var (
		rec vecstore.Record
		emb []byte
		raw string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, v.embedding, r.payload
		FROM records r JOIN vectors v ON v.rowid = r.rowid
		WHERE r.id = ?`, id).Scan(&rec.ID, &emb, &raw)
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, v.embedding, r.payload
		FROM records r JOIN vectors v ON v.rowid = r.rowid`)
	if err != nil {
		return nil, vecstore.WrapError(providerName, err)
	}
	defer func() { _ = rows.Close() }()

	var records []vecstore.Record
	for rows.Next() {
		var (
			rec vecstore.Record
			emb []byte
			raw string
		)
		if err := rows.Scan(&rec.ID, &emb, &raw); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		if err := fillRecord(&rec, emb, raw); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
		if !filters.Match(rec.Payload) {
			continue
		}
		records = append(records, rec)
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, vecstore.WrapError(providerName, rows.Err())
}

// Update upserts a single record.
func (s *Store) Update(ctx context.Context, record vecstore.Record) error {
	return s.Insert(ctx, []vecstore.Record{record})
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vecstore.WrapError(providerName, err)
	}
	defer func() { _ = tx.Rollback() }()

	var rowid int64
	err = tx.QueryRowContext(ctx, `SELECT rowid FROM records WHERE id = ?`, id).Scan(&rowid)
	if errors.Is(err, sql.ErrNoRows) {
		return vecstore.WrapError(providerName, fmt.Errorf("%w: %s", vecstore.ErrNotFound, id))
	}
	if err != nil {
		return vecstore.WrapError(providerName, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE rowid = ?`, rowid); err != nil {
		return vecstore.WrapError(providerName, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE rowid = ?`, rowid); err != nil {
		return vecstore.WrapError(providerName, err)
	}
	if err := tx.Commit(); err != nil {
		return vecstore.WrapError(providerName, err)
	}
	return nil
}

// Reset drops every record.
func (s *Store) Reset(ctx context.Context) error {
	for _, stmt := range []string{`DELETE FROM vectors`, `DELETE FROM records`} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return vecstore.WrapError(providerName, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// vectorJSON renders the JSON text form vec0 accepts for float vectors.
func vectorJSON(vec []float32) string {
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

// fillRecord decodes the raw embedding blob (little-endian float32) and
// the payload JSON into rec.
func fillRecord(rec *vecstore.Record, emb []byte, payload string) error {
	if len(emb) >= 4 {
		rec.Vector = make([]float32, len(emb)/4)
		for i := range rec.Vector {
			bits := uint32(emb[i*4]) | uint32(emb[i*4+1])<<8 | uint32(emb[i*4+2])<<16 | uint32(emb[i*4+3])<<24
			rec.Vector[i] = math.Float32frombits(bits)
		}
	}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return fmt.Errorf("failed to decode payload for %s: %w", rec.ID, err)
		}
	}
	return nil
}
