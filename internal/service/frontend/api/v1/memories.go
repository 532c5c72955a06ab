package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mnemo-org/mnemo/internal/llm"
	"github.com/mnemo-org/mnemo/internal/memory"
)

type createMemoriesRequest struct {
	Messages []llm.Message  `json:"messages"`
	UserID   string         `json:"user_id,omitempty"`
	AgentID  string         `json:"agent_id,omitempty"`
	RunID    string         `json:"run_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Infer    *bool          `json:"infer,omitempty"`
}

func (r createMemoriesRequest) scope() memory.Scope {
	return memory.Scope{UserID: r.UserID, AgentID: r.AgentID, RunID: r.RunID}
}

func (a *API) createMemories(w http.ResponseWriter, r *http.Request) {
	var req createMemoriesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("messages are required"))
		return
	}

	result, err := a.pipeline.Add(r.Context(), req.Messages, memory.AddOptions{
		Scope:    req.scope(),
		Metadata: req.Metadata,
		Infer:    req.Infer,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func scopeFromQuery(r *http.Request) memory.Scope {
	q := r.URL.Query()
	return memory.Scope{
		UserID:  q.Get("user_id"),
		AgentID: q.Get("agent_id"),
		RunID:   q.Get("run_id"),
	}
}

type listMemoriesResponse struct {
	Results []memory.Item `json:"results"`
}

func (a *API) listMemories(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromQuery(r)

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		limit = n
	}

	items, err := a.pipeline.GetAll(r.Context(), scope, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if items == nil {
		items = []memory.Item{}
	}
	writeJSON(w, http.StatusOK, listMemoriesResponse{Results: items})
}

type deleteMemoriesResponse struct {
	Deleted int `json:"deleted"`
}

func (a *API) deleteMemories(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromQuery(r)
	if scope.IsZero() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("at least one of user_id, agent_id or run_id is required"))
		return
	}

	deleted, err := a.pipeline.DeleteAll(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteMemoriesResponse{Deleted: deleted})
}

func (a *API) getMemory(w http.ResponseWriter, r *http.Request) {
	item, err := a.pipeline.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type updateMemoryRequest struct {
	Text string `json:"text"`
}

func (a *API) updateMemory(w http.ResponseWriter, r *http.Request) {
	var req updateMemoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("text is required"))
		return
	}

	event, err := a.pipeline.Update(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (a *API) deleteMemory(w http.ResponseWriter, r *http.Request) {
	event, err := a.pipeline.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type historyResponse struct {
	Entries []historyEntry `json:"entries"`
}

type historyEntry struct {
	ID        string `json:"id"`
	MemoryID  string `json:"memory_id"`
	OldMemory string `json:"old_memory,omitempty"`
	NewMemory string `json:"new_memory,omitempty"`
	Event     string `json:"event"`
	CreatedAt string `json:"created_at"`
}

func (a *API) memoryHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := a.pipeline.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := historyResponse{Entries: make([]historyEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, historyEntry{
			ID:        e.ID,
			MemoryID:  e.MemoryID,
			OldMemory: e.OldMemory,
			NewMemory: e.NewMemory,
			Event:     string(e.Event),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query   string `json:"query"`
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := a.pipeline.Search(r.Context(), req.Query, memory.SearchOptions{
		Scope: memory.Scope{UserID: req.UserID, AgentID: req.AgentID, RunID: req.RunID},
		Limit: req.Limit,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) reset(w http.ResponseWriter, r *http.Request) {
	if err := a.pipeline.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
