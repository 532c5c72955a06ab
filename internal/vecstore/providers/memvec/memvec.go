// Package memvec implements the in-process vector store: an HNSW index
// over cosine similarity with an optional gob snapshot on disk.
//
// The HNSW index does not support removal, so deletes are tombstones:
// the index keeps the node, the store stops returning it, and the
// snapshot drops it. A process restart therefore compacts the index.
package memvec

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/fogfish/hnsw"
	hnswvector "github.com/fogfish/hnsw/vector"
	"github.com/gofrs/flock"
	kvector "github.com/kshard/vector"

	"github.com/mnemo-org/mnemo/internal/vecstore"
)

const providerName = "memvec"

// minEfSearch keeps recall reasonable for small k.
const minEfSearch = 100

func init() {
	vecstore.RegisterStore(vecstore.ProviderMemvec, New)
}

var _ vecstore.Store = (*Store)(nil)

type entry struct {
	key     uint32
	record  vecstore.Record
	deleted bool
}

// Store is the in-process HNSW store.
type Store struct {
	mu      sync.RWMutex
	index   *hnsw.HNSW[hnswvector.VF32]
	byID    map[string]*entry
	byKey   map[uint32]string
	nextKey uint32

	dimensions int
	path       string
	lock       *flock.Flock
}

// snapshot is the on-disk form: live records only, index rebuilt on load.
type snapshot struct {
	Records []vecstore.Record
}

// New opens the store and loads the snapshot at cfg.Path when present.
func New(_ context.Context, cfg vecstore.Config) (vecstore.Store, error) {
	s := &Store{
		index:      newIndex(),
		byID:       make(map[string]*entry),
		byKey:      make(map[uint32]string),
		dimensions: cfg.Dimensions,
		path:       cfg.Path,
	}
	if cfg.Path != "" {
		s.lock = flock.New(cfg.Path + ".lock")
		if err := s.load(); err != nil {
			return nil, vecstore.WrapError(providerName, err)
		}
	}
	return s, nil
}

func newIndex() *hnsw.HNSW[hnswvector.VF32] {
	return hnsw.New[hnswvector.VF32](hnswvector.SurfaceVF32(kvector.Cosine()))
}

// Name returns the provider name.
func (s *Store) Name() string {
	return providerName
}

// Insert adds records, overwriting records with the same ID.
func (s *Store) Insert(_ context.Context, records []vecstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if err := s.put(rec); err != nil {
			return vecstore.WrapError(providerName, err)
		}
	}
	return nil
}

// put assumes the write lock is held.
func (s *Store) put(rec vecstore.Record) error {
	if len(rec.Vector) == 0 {
		return fmt.Errorf("record %q has no vector", rec.ID)
	}
	if s.dimensions > 0 && len(rec.Vector) != s.dimensions {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimensions, len(rec.Vector))
	}
	if old, ok := s.byID[rec.ID]; ok {
		// Tombstone the previous node; HNSW cannot remove it.
		old.deleted = true
		delete(s.byKey, old.key)
	}
	s.nextKey++
	key := s.nextKey
	s.index.Insert(hnswvector.VF32{Key: key, Vec: rec.Vector})
	s.byID[rec.ID] = &entry{key: key, record: rec}
	s.byKey[key] = rec.ID
	return nil
}

// Search returns the nearest live records in the filter scope.
func (s *Store) Search(_ context.Context, vector []float32, limit int, filters vecstore.Filters) ([]vecstore.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.index.Size() == 0 {
		return nil, nil
	}

	// Over-fetch to survive tombstones and filter misses.
	k := limit * 4
	if k < minEfSearch {
		k = minEfSearch
	}
	ef := k * 2

	query := hnswvector.VF32{Vec: vector}
	neighbors := s.index.Search(query, k, ef)

	hits := make([]vecstore.Hit, 0, limit)
	for _, n := range neighbors {
		id, ok := s.byKey[n.Key]
		if !ok {
			continue // tombstone
		}
		e := s.byID[id]
		if e.deleted || !filters.Match(e.record.Payload) {
			continue
		}
		hits = append(hits, vecstore.Hit{
			Record: e.record,
			Score:  cosineSimilarity(vector, e.record.Vector),
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// Get returns the record with the given ID.
func (s *Store) Get(_ context.Context, id string) (*vecstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok || e.deleted {
		return nil, vecstore.WrapError(providerName, fmt.Errorf("%w: %s", vecstore.ErrNotFound, id))
	}
	rec := e.record
	return &rec, nil
}

// List returns records in the filter scope.
func (s *Store) List(_ context.Context, filters vecstore.Filters, limit int) ([]vecstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []vecstore.Record
	for _, e := range s.byID {
		if e.deleted || !filters.Match(e.record.Payload) {
			continue
		}
		records = append(records, e.record)
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, nil
}

// Update replaces the record with the same ID.
func (s *Store) Update(_ context.Context, record vecstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[record.ID]
	if !ok || e.deleted {
		return vecstore.WrapError(providerName, fmt.Errorf("%w: %s", vecstore.ErrNotFound, record.ID))
	}
	if len(record.Vector) == 0 {
		// Payload-only update keeps the existing vector.
		record.Vector = e.record.Vector
		e.record = record
		return nil
	}
	if err := s.put(record); err != nil {
		return vecstore.WrapError(providerName, err)
	}
	return nil
}

// Delete tombstones the record with the given ID.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok || e.deleted {
		return vecstore.WrapError(providerName, fmt.Errorf("%w: %s", vecstore.ErrNotFound, id))
	}
	e.deleted = true
	delete(s.byKey, e.key)
	delete(s.byID, id)
	return nil
}

// Reset drops every record and starts a fresh index.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = newIndex()
	s.byID = make(map[string]*entry)
	s.byKey = make(map[uint32]string)
	s.nextKey = 0
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return vecstore.WrapError(providerName, err)
		}
	}
	return nil
}

// Close persists the snapshot when a path is configured.
func (s *Store) Close() error {
	if s.path == "" {
		return nil
	}
	if err := s.save(); err != nil {
		return vecstore.WrapError(providerName, err)
	}
	return nil
}

func (s *Store) save() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock snapshot: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	s.mu.RLock()
	snap := snapshot{}
	for _, e := range s.byID {
		if !e.deleted {
			snap.Records = append(snap.Records, e.record)
		}
	}
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) load() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock snapshot: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	for _, rec := range snap.Records {
		if err := s.put(rec); err != nil {
			return err
		}
	}
	return nil
}

// cosineSimilarity recomputes the exact score for a hit; the index only
// ranks, it does not report distances.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
