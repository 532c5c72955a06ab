package openaistructured

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/llm"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("RequiresAPIKey", func(t *testing.T) {
		t.Parallel()
		_, err := New(llm.Config{})
		assert.ErrorIs(t, err, llm.ErrMissingCredential)
	})

	t.Run("Name", func(t *testing.T) {
		t.Parallel()
		p, err := New(llm.Config{APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, "openai_structured", p.Name())
	})
}

func TestChat_ForcesJSONObject(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"facts\":[]}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	}))
	defer srv.Close()

	p, err := New(llm.Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	req := &llm.ChatRequest{
		Model:    "gpt-4o-2024-08-06",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "extract facts"}},
	}
	resp, err := p.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"facts":[]}`, resp.Content)

	rf, ok := gotBody["response_format"].(map[string]any)
	require.True(t, ok, "response_format should be set")
	assert.Equal(t, "json_object", rf["type"])

	// The caller's request must not be mutated.
	assert.Nil(t, req.ResponseFormat)
}

func TestChat_ExplicitFormatWins(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{}"}, "finish_reason": "stop"}],
			"usage": {}
		}`))
	}))
	defer srv.Close()

	p, err := New(llm.Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), &llm.ChatRequest{
		Model:    "gpt-4o-2024-08-06",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "extract"}},
		ResponseFormat: &llm.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &llm.JSONSchema{Name: "facts", Schema: map[string]any{"type": "object"}},
		},
	})
	require.NoError(t, err)

	rf := gotBody["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
}
