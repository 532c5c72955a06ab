// Package api implements the v1 REST surface over the memory pipeline.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mnemo-org/mnemo/internal/cmn/logger"
	"github.com/mnemo-org/mnemo/internal/cmn/logger/tag"
	"github.com/mnemo-org/mnemo/internal/history"
	"github.com/mnemo-org/mnemo/internal/llm"
	"github.com/mnemo-org/mnemo/internal/memory"
)

// Pipeline is the memory surface the API serves. *memory.Memory
// implements it; tests substitute a fake.
type Pipeline interface {
	Add(ctx context.Context, messages []llm.Message, opts memory.AddOptions) (*memory.AddResult, error)
	Search(ctx context.Context, query string, opts memory.SearchOptions) (*memory.SearchResult, error)
	Get(ctx context.Context, id string) (*memory.Item, error)
	GetAll(ctx context.Context, scope memory.Scope, limit int) ([]memory.Item, error)
	Update(ctx context.Context, id, text string) (*memory.Event, error)
	Delete(ctx context.Context, id string) (*memory.Event, error)
	DeleteAll(ctx context.Context, scope memory.Scope) (int, error)
	History(ctx context.Context, id string) ([]history.Entry, error)
	Reset(ctx context.Context) error
}

// Chatter answers chat completions with memory context. *proxy.Proxy
// implements it.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, scope memory.Scope) (*llm.ChatResponse, error)
	ChatStream(ctx context.Context, messages []llm.Message, scope memory.Scope) (<-chan llm.StreamEvent, error)
}

// API holds the route handlers for /api/v1.
type API struct {
	pipeline Pipeline
	chatter  Chatter
}

// New constructs the API over a pipeline and chat surface.
func New(pipeline Pipeline, chatter Chatter) *API {
	return &API{pipeline: pipeline, chatter: chatter}
}

// ConfigureRoutes mounts all v1 routes on the router.
func (a *API) ConfigureRoutes(r chi.Router) {
	r.Post("/memories", a.createMemories)
	r.Get("/memories", a.listMemories)
	r.Delete("/memories", a.deleteMemories)
	r.Get("/memories/{id}", a.getMemory)
	r.Put("/memories/{id}", a.updateMemory)
	r.Delete("/memories/{id}", a.deleteMemory)
	r.Get("/memories/{id}/history", a.memoryHistory)
	r.Post("/search", a.search)
	r.Post("/reset", a.reset)
	r.Post("/chat", a.chat)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(context.Background(), "Failed to encode response", tag.Error(err))
	}
}

// writeError maps an error onto a JSON error payload. Not-found errors
// become 404 regardless of the suggested status.
func writeError(w http.ResponseWriter, status int, err error) {
	if errors.Is(err, memory.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeBody strictly decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
