package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/history"
	"github.com/mnemo-org/mnemo/internal/llm"
)

// scriptedChat returns canned responses in order.
type scriptedChat struct {
	responses []string
	calls     int
}

func (s *scriptedChat) Name() string { return "scripted" }

func (s *scriptedChat) Chat(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	if s.calls >= len(s.responses) {
		return &llm.ChatResponse{Content: `{}`}, nil
	}
	content := s.responses[s.calls]
	s.calls++
	return &llm.ChatResponse{Content: content}, nil
}

func (s *scriptedChat) ChatStream(_ context.Context, _ *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent)
	close(ch)
	return ch, nil
}

// mapEmbedder returns fixed vectors per text, defaulting to [1,0,0].
type mapEmbedder struct {
	vectors map[string][]float32
}

func (e *mapEmbedder) Name() string    { return "map" }
func (e *mapEmbedder) Dimensions() int { return 3 }

func (e *mapEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := e.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func newTestMemory(t *testing.T, chat llm.Provider) *Memory {
	t.Helper()
	cfg := &config.Config{
		Paths: config.PathsConfig{
			HistoryDB: filepath.Join(t.TempDir(), "history.db"),
			VectorDir: t.TempDir(),
		},
	}
	require.NoError(t, cfg.Memory.ApplyDefaults())

	if chat == nil {
		chat = &scriptedChat{}
	}
	m, err := New(context.Background(), cfg,
		WithChatProvider(chat),
		WithEmbedder(&mapEmbedder{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func TestMemory_AddVerbatim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestMemory(t, nil)

	infer := false
	result, err := m.Add(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: "I like coffee"},
		{Role: llm.RoleAssistant, Content: "Noted!"},
	}, AddOptions{
		Scope:    Scope{UserID: "alice"},
		Metadata: map[string]any{"source": "chat"},
		Infer:    &infer,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, history.EventAdd, result.Results[0].Event)
	assert.Equal(t, "I like coffee", result.Results[0].Memory)

	items, err := m.GetAll(ctx, Scope{UserID: "alice"}, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, "alice", item.UserID)
		assert.Equal(t, "chat", item.Metadata["source"])
		assert.NotEmpty(t, item.Hash)
		assert.False(t, item.CreatedAt.IsZero())
	}

	entries, err := m.History(ctx, result.Results[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.EventAdd, entries[0].Event)
}

func TestContentHashCanonicalizes(t *testing.T) {
	t.Parallel()

	// Whitespace runs and Unicode composition must not change the
	// fingerprint; an exact duplicate would otherwise slip past
	// hash-based comparison.
	base := contentHash("Likes green tea")
	assert.Equal(t, base, contentHash("  Likes   green tea  "))
	assert.Equal(t, base, contentHash("Likes\tgreen\ntea"))
	// Precomposed NFC é vs NFD e + combining acute.
	assert.Equal(t, contentHash("Café loyalist"), contentHash("Cafe\u0301 loyalist"))

	assert.NotEqual(t, base, contentHash("Likes green teas"))
}

func TestMemory_AddInferred(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	chat := &scriptedChat{responses: []string{
		`{"facts": ["Likes coffee"]}`,
		"```json\n{\"memory\": [{\"id\": \"new-0\", \"text\": \"Likes coffee\", \"event\": \"ADD\"}]}\n```",
	}}
	m := newTestMemory(t, chat)

	result, err := m.Add(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: "I really like coffee"},
	}, AddOptions{Scope: Scope{UserID: "alice"}})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, history.EventAdd, result.Results[0].Event)
	assert.Equal(t, "Likes coffee", result.Results[0].Memory)
	assert.Equal(t, 2, chat.calls)

	items, err := m.GetAll(ctx, Scope{UserID: "alice"}, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Likes coffee", items[0].Memory)
}

func TestMemory_AddInferredUpdatesExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seedChat := &scriptedChat{responses: []string{
		`{"facts": ["Likes coffee"]}`,
		`{"memory": [{"id": "x", "text": "Likes coffee", "event": "ADD"}]}`,
	}}
	m := newTestMemory(t, seedChat)

	_, err := m.Add(ctx, []llm.Message{{Role: llm.RoleUser, Content: "I like coffee"}},
		AddOptions{Scope: Scope{UserID: "alice"}})
	require.NoError(t, err)

	// Surrogate id 0 refers to the seeded memory in the second call.
	seedChat.responses = append(seedChat.responses,
		`{"facts": ["Likes espresso more than coffee"]}`,
		`{"memory": [{"id": "0", "text": "Likes espresso more than coffee", "event": "UPDATE", "old_memory": "Likes coffee"}]}`,
	)
	result, err := m.Add(ctx, []llm.Message{{Role: llm.RoleUser, Content: "Actually I prefer espresso"}},
		AddOptions{Scope: Scope{UserID: "alice"}})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, history.EventUpdate, result.Results[0].Event)
	assert.Equal(t, "Likes coffee", result.Results[0].PreviousMemory)

	items, err := m.GetAll(ctx, Scope{UserID: "alice"}, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Likes espresso more than coffee", items[0].Memory)

	entries, err := m.History(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, history.EventUpdate, entries[1].Event)
	assert.Equal(t, "Likes coffee", entries[1].OldMemory)
}

func TestMemory_AddDropsInventedIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	chat := &scriptedChat{responses: []string{
		`{"facts": ["Some fact"]}`,
		`{"memory": [{"id": "not-a-surrogate", "text": "whatever", "event": "DELETE"}]}`,
	}}
	m := newTestMemory(t, chat)

	result, err := m.Add(ctx, []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
		AddOptions{Scope: Scope{UserID: "alice"}})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}

func TestMemory_AddRequiresScopeAndMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestMemory(t, nil)

	_, err := m.Add(ctx, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, AddOptions{})
	assert.Error(t, err)

	_, err = m.Add(ctx, nil, AddOptions{Scope: Scope{UserID: "alice"}})
	assert.Error(t, err)
}

func TestMemory_Search(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := &config.Config{
		Paths: config.PathsConfig{
			HistoryDB: filepath.Join(t.TempDir(), "history.db"),
			VectorDir: t.TempDir(),
		},
	}
	require.NoError(t, cfg.Memory.ApplyDefaults())
	emb := &mapEmbedder{vectors: map[string][]float32{
		"Likes coffee":    {1, 0, 0},
		"Plays tennis":    {0, 1, 0},
		"coffee opinions": {0.9, 0.1, 0},
	}}
	m, err := New(ctx, cfg, WithChatProvider(&scriptedChat{}), WithEmbedder(emb))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(ctx) })

	infer := false
	_, err = m.Add(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: "Likes coffee"},
		{Role: llm.RoleUser, Content: "Plays tennis"},
	}, AddOptions{Scope: Scope{UserID: "alice"}, Infer: &infer})
	require.NoError(t, err)

	result, err := m.Search(ctx, "coffee opinions", SearchOptions{Scope: Scope{UserID: "alice"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "Likes coffee", result.Results[0].Memory)
	assert.Greater(t, result.Results[0].Score, float32(0.9))

	_, err = m.Search(ctx, "  ", SearchOptions{Scope: Scope{UserID: "alice"}})
	assert.Error(t, err)
}

func TestMemory_UpdateAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestMemory(t, nil)

	infer := false
	result, err := m.Add(ctx, []llm.Message{{Role: llm.RoleUser, Content: "Old text"}},
		AddOptions{Scope: Scope{UserID: "alice"}, Infer: &infer})
	require.NoError(t, err)
	id := result.Results[0].ID

	ev, err := m.Update(ctx, id, "New text")
	require.NoError(t, err)
	assert.Equal(t, "Old text", ev.PreviousMemory)

	item, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New text", item.Memory)
	assert.NotNil(t, item.UpdatedAt)

	_, err = m.Delete(ctx, id)
	require.NoError(t, err)
	_, err = m.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	entries, err := m.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, history.EventDelete, entries[2].Event)
}

func TestMemory_DeleteAllScoped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestMemory(t, nil)

	infer := false
	_, err := m.Add(ctx, []llm.Message{{Role: llm.RoleUser, Content: "alice memory"}},
		AddOptions{Scope: Scope{UserID: "alice"}, Infer: &infer})
	require.NoError(t, err)
	_, err = m.Add(ctx, []llm.Message{{Role: llm.RoleUser, Content: "bob memory"}},
		AddOptions{Scope: Scope{UserID: "bob"}, Infer: &infer})
	require.NoError(t, err)

	_, err = m.DeleteAll(ctx, Scope{})
	assert.Error(t, err)

	n, err := m.DeleteAll(ctx, Scope{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := m.GetAll(ctx, Scope{UserID: "bob"}, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestMemory_Reset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestMemory(t, nil)

	infer := false
	result, err := m.Add(ctx, []llm.Message{{Role: llm.RoleUser, Content: "gone soon"}},
		AddOptions{Scope: Scope{UserID: "alice"}, Infer: &infer})
	require.NoError(t, err)

	require.NoError(t, m.Reset(ctx))

	items, err := m.GetAll(ctx, Scope{UserID: "alice"}, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	entries, err := m.History(ctx, result.Results[0].ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
