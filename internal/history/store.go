// Package history keeps the append-only change log of memories: every
// add, update and delete is recorded with its before/after text. The log
// lives in a local SQLite database migrated with goose on open.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the sqlite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Event names the kind of change an entry records.
type Event string

const (
	EventAdd    Event = "ADD"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
)

// Entry is one change to one memory.
type Entry struct {
	ID        string    `json:"id"`
	MemoryID  string    `json:"memory_id"`
	OldMemory string    `json:"old_memory,omitempty"`
	NewMemory string    `json:"new_memory,omitempty"`
	Event     Event     `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	IsDeleted bool      `json:"is_deleted"`
	ActorID   string    `json:"actor_id,omitempty"`
	Role      string    `json:"role,omitempty"`
}

// Store is the SQLite-backed history log. Safe for concurrent use; the
// database is opened in WAL mode with a busy timeout.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and applies
// pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate history database: %w", err)
	}
	return nil
}

// Record appends an entry. A missing ID or CreatedAt is filled in.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var updatedAt any
	if !entry.UpdatedAt.IsZero() {
		updatedAt = entry.UpdatedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, memory_id, old_memory, new_memory, event, created_at, updated_at, is_deleted, actor_id, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.MemoryID, entry.OldMemory, entry.NewMemory, string(entry.Event),
		entry.CreatedAt, updatedAt, entry.IsDeleted, entry.ActorID, entry.Role)
	if err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}
	return nil
}

// List returns the entries for a memory, oldest first.
func (s *Store) List(ctx context.Context, memoryID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory_id, old_memory, new_memory, event, created_at, updated_at, is_deleted, actor_id, role
		FROM history WHERE memory_id = ? ORDER BY created_at ASC, id ASC`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			updatedAt sql.NullTime
			actorID   sql.NullString
			role      sql.NullString
			oldMem    sql.NullString
			newMem    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.MemoryID, &oldMem, &newMem, &e.Event,
			&e.CreatedAt, &updatedAt, &e.IsDeleted, &actorID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.OldMemory = oldMem.String
		e.NewMemory = newMem.String
		e.UpdatedAt = updatedAt.Time
		e.ActorID = actorID.String
		e.Role = role.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Reset drops every entry.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to reset history: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
