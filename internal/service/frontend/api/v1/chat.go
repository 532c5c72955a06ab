package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mnemo-org/mnemo/internal/cmn/logger"
	"github.com/mnemo-org/mnemo/internal/cmn/logger/tag"
	"github.com/mnemo-org/mnemo/internal/llm"
	"github.com/mnemo-org/mnemo/internal/memory"
)

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
	UserID   string        `json:"user_id,omitempty"`
	AgentID  string        `json:"agent_id,omitempty"`
	RunID    string        `json:"run_id,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *chatUsage `json:"usage,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatStreamEvent struct {
	Delta string     `json:"delta,omitempty"`
	Done  bool       `json:"done,omitempty"`
	Usage *chatUsage `json:"usage,omitempty"`
	Error string     `json:"error,omitempty"`
}

func (a *API) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("messages are required"))
		return
	}
	scope := memory.Scope{UserID: req.UserID, AgentID: req.AgentID, RunID: req.RunID}

	if req.Stream {
		a.chatStream(w, r, req.Messages, scope)
		return
	}

	resp, err := a.chatter.Chat(r.Context(), req.Messages, scope)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	out := chatResponse{Content: resp.Content, FinishReason: resp.FinishReason}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &chatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// chatStream relays the provider stream as server-sent events, one JSON
// payload per event.
func (a *API) chatStream(w http.ResponseWriter, r *http.Request, messages []llm.Message, scope memory.Scope) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	events, err := a.chatter.ChatStream(r.Context(), messages, scope)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		out := chatStreamEvent{Delta: ev.Delta, Done: ev.Done}
		if ev.Usage != nil {
			out.Usage = &chatUsage{
				PromptTokens:     ev.Usage.PromptTokens,
				CompletionTokens: ev.Usage.CompletionTokens,
				TotalTokens:      ev.Usage.TotalTokens,
			}
		}
		if ev.Error != nil {
			out.Error = ev.Error.Error()
		}
		if err := writeSSE(w, out); err != nil {
			logger.Warn(r.Context(), "Client disconnected during chat stream", tag.Error(err))
			return
		}
		flusher.Flush()
		if ev.Done {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
