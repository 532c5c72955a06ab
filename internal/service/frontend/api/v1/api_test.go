package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/history"
	"github.com/mnemo-org/mnemo/internal/llm"
	"github.com/mnemo-org/mnemo/internal/memory"
)

// fakePipeline backs handlers with an in-memory map keyed by ID.
type fakePipeline struct {
	items   map[string]memory.Item
	history map[string][]history.Entry
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		items:   make(map[string]memory.Item),
		history: make(map[string][]history.Entry),
	}
}

func (p *fakePipeline) Add(_ context.Context, messages []llm.Message, opts memory.AddOptions) (*memory.AddResult, error) {
	result := &memory.AddResult{}
	for i, msg := range messages {
		id := "mem-" + string(rune('a'+i))
		p.items[id] = memory.Item{
			ID:        id,
			Memory:    msg.Content,
			UserID:    opts.UserID,
			CreatedAt: time.Now(),
		}
		result.Results = append(result.Results, memory.Event{ID: id, Memory: msg.Content, Event: history.EventAdd})
	}
	return result, nil
}

func (p *fakePipeline) Search(_ context.Context, query string, opts memory.SearchOptions) (*memory.SearchResult, error) {
	result := &memory.SearchResult{Results: []memory.Item{}}
	for _, item := range p.items {
		if strings.Contains(item.Memory, query) {
			result.Results = append(result.Results, item)
		}
	}
	return result, nil
}

func (p *fakePipeline) Get(_ context.Context, id string) (*memory.Item, error) {
	item, ok := p.items[id]
	if !ok {
		return nil, memory.ErrNotFound
	}
	return &item, nil
}

func (p *fakePipeline) GetAll(_ context.Context, scope memory.Scope, _ int) ([]memory.Item, error) {
	var items []memory.Item
	for _, item := range p.items {
		if scope.UserID == "" || item.UserID == scope.UserID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (p *fakePipeline) Update(_ context.Context, id, text string) (*memory.Event, error) {
	item, ok := p.items[id]
	if !ok {
		return nil, memory.ErrNotFound
	}
	old := item.Memory
	item.Memory = text
	p.items[id] = item
	return &memory.Event{ID: id, Memory: text, Event: history.EventUpdate, PreviousMemory: old}, nil
}

func (p *fakePipeline) Delete(_ context.Context, id string) (*memory.Event, error) {
	item, ok := p.items[id]
	if !ok {
		return nil, memory.ErrNotFound
	}
	delete(p.items, id)
	return &memory.Event{ID: id, Memory: item.Memory, Event: history.EventDelete}, nil
}

func (p *fakePipeline) DeleteAll(_ context.Context, scope memory.Scope) (int, error) {
	var deleted int
	for id, item := range p.items {
		if scope.UserID == "" || item.UserID == scope.UserID {
			delete(p.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func (p *fakePipeline) History(_ context.Context, id string) ([]history.Entry, error) {
	return p.history[id], nil
}

func (p *fakePipeline) Reset(_ context.Context) error {
	p.items = make(map[string]memory.Item)
	return nil
}

type fakeChatter struct{}

func (fakeChatter) Chat(_ context.Context, _ []llm.Message, _ memory.Scope) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: "hello there", FinishReason: "stop"}, nil
}

func (fakeChatter) ChatStream(_ context.Context, _ []llm.Message, _ memory.Scope) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent, 3)
	ch <- llm.StreamEvent{Delta: "hello "}
	ch <- llm.StreamEvent{Delta: "there"}
	ch <- llm.StreamEvent{Done: true}
	close(ch)
	return ch, nil
}

func newTestRouter(p *fakePipeline) *chi.Mux {
	r := chi.NewMux()
	New(p, fakeChatter{}).ConfigureRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAPI_CreateMemories(t *testing.T) {
	t.Parallel()
	r := newTestRouter(newFakePipeline())

	rec := doJSON(t, r, http.MethodPost, "/memories", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Likes tea"}},
		"user_id":  "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var result memory.AddResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Results, 1)
	assert.Equal(t, "Likes tea", result.Results[0].Memory)
}

func TestAPI_CreateMemoriesRequiresMessages(t *testing.T) {
	t.Parallel()
	r := newTestRouter(newFakePipeline())

	rec := doJSON(t, r, http.MethodPost, "/memories", map[string]any{"user_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateMemoriesRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	r := newTestRouter(newFakePipeline())

	rec := doJSON(t, r, http.MethodPost, "/memories", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "x"}},
		"userid":   "alice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetMemory(t *testing.T) {
	t.Parallel()
	p := newFakePipeline()
	p.items["m1"] = memory.Item{ID: "m1", Memory: "Likes tea", UserID: "alice"}
	r := newTestRouter(p)

	rec := doJSON(t, r, http.MethodGet, "/memories/m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var item memory.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "Likes tea", item.Memory)
}

func TestAPI_GetMemoryNotFound(t *testing.T) {
	t.Parallel()
	r := newTestRouter(newFakePipeline())

	rec := doJSON(t, r, http.MethodGet, "/memories/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListMemoriesScoped(t *testing.T) {
	t.Parallel()
	p := newFakePipeline()
	p.items["m1"] = memory.Item{ID: "m1", Memory: "a", UserID: "alice"}
	p.items["m2"] = memory.Item{ID: "m2", Memory: "b", UserID: "bob"}
	r := newTestRouter(p)

	rec := doJSON(t, r, http.MethodGet, "/memories?user_id=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []memory.Item `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "m1", resp.Results[0].ID)
}

func TestAPI_UpdateMemory(t *testing.T) {
	t.Parallel()
	p := newFakePipeline()
	p.items["m1"] = memory.Item{ID: "m1", Memory: "old", UserID: "alice"}
	r := newTestRouter(p)

	rec := doJSON(t, r, http.MethodPut, "/memories/m1", map[string]string{"text": "new"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new", p.items["m1"].Memory)
}

func TestAPI_DeleteMemories(t *testing.T) {
	t.Parallel()
	p := newFakePipeline()
	p.items["m1"] = memory.Item{ID: "m1", UserID: "alice"}
	p.items["m2"] = memory.Item{ID: "m2", UserID: "alice"}
	r := newTestRouter(p)

	// Unscoped bulk delete is refused.
	rec := doJSON(t, r, http.MethodDelete, "/memories", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, "/memories?user_id=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, p.items)
}

func TestAPI_Search(t *testing.T) {
	t.Parallel()
	p := newFakePipeline()
	p.items["m1"] = memory.Item{ID: "m1", Memory: "Likes green tea", UserID: "alice"}
	r := newTestRouter(p)

	rec := doJSON(t, r, http.MethodPost, "/search", map[string]any{
		"query":   "tea",
		"user_id": "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result memory.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Results, 1)
}

func TestAPI_Chat(t *testing.T) {
	t.Parallel()
	r := newTestRouter(newFakePipeline())

	rec := doJSON(t, r, http.MethodPost, "/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"user_id":  "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello there", resp.Content)
}

func TestAPI_ChatStream(t *testing.T) {
	t.Parallel()
	r := newTestRouter(newFakePipeline())

	rec := doJSON(t, r, http.MethodPost, "/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"user_id":  "alice",
		"stream":   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var deltas []string
	var done bool
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Delta string `json:"delta"`
			Done  bool   `json:"done"`
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		if ev.Delta != "" {
			deltas = append(deltas, ev.Delta)
		}
		done = done || ev.Done
	}
	assert.Equal(t, "hello there", strings.Join(deltas, ""))
	assert.True(t, done)
}

func TestAPI_Reset(t *testing.T) {
	t.Parallel()
	p := newFakePipeline()
	p.items["m1"] = memory.Item{ID: "m1"}
	r := newTestRouter(p)

	rec := doJSON(t, r, http.MethodPost, "/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, p.items)
}
