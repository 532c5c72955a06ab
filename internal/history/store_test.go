package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Record(ctx, Entry{
		MemoryID:  "m1",
		NewMemory: "Likes coffee",
		Event:     EventAdd,
		ActorID:   "alice",
		Role:      "user",
	}))
	require.NoError(t, s.Record(ctx, Entry{
		MemoryID:  "m1",
		OldMemory: "Likes coffee",
		NewMemory: "Likes espresso",
		Event:     EventUpdate,
		CreatedAt: time.Now().UTC().Add(time.Second),
	}))
	require.NoError(t, s.Record(ctx, Entry{
		MemoryID: "m2",
		Event:    EventAdd,
	}))

	entries, err := s.List(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventAdd, entries[0].Event)
	assert.Equal(t, "Likes coffee", entries[0].NewMemory)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, "alice", entries[0].ActorID)
	assert.Equal(t, EventUpdate, entries[1].Event)
	assert.Equal(t, "Likes coffee", entries[1].OldMemory)
	assert.Equal(t, "Likes espresso", entries[1].NewMemory)
}

func TestStore_ListUnknownMemory(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	entries, err := s.List(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Record(ctx, Entry{MemoryID: "m1", Event: EventAdd}))
	require.NoError(t, s.Reset(ctx))

	entries, err := s.List(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ReopenKeepsEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, Entry{MemoryID: "m1", NewMemory: "kept", Event: EventAdd}))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	entries, err := reopened.List(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].NewMemory)
}
