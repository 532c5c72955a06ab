package local

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/llm"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("NoAPIKeyRequired", func(t *testing.T) {
		t.Parallel()
		p, err := New(llm.Config{})
		require.NoError(t, err)
		assert.Equal(t, "local", p.Name())
	})

	t.Run("DefaultBaseURL", func(t *testing.T) {
		t.Parallel()
		p, err := New(llm.Config{})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:11434/v1", p.(*Provider).config.BaseURL)
	})
}

func TestAuthHeaders(t *testing.T) {
	t.Parallel()

	t.Run("EmptyWithoutKey", func(t *testing.T) {
		t.Parallel()
		p := &Provider{config: llm.Config{}}
		assert.Nil(t, p.authHeaders())
	})

	t.Run("BearerWithKey", func(t *testing.T) {
		t.Parallel()
		p := &Provider{config: llm.Config{APIKey: "local-key"}}
		assert.Equal(t, "Bearer local-key", p.authHeaders()["Authorization"])
	})
}

func TestBuildRequestBody(t *testing.T) {
	t.Parallel()

	provider := &Provider{config: llm.Config{}}

	t.Run("OmitsResponseFormat", func(t *testing.T) {
		t.Parallel()
		body, err := provider.buildRequestBody(&llm.ChatRequest{
			Model:          "llama3",
			Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			ResponseFormat: &llm.ResponseFormat{Type: "json_object"},
		}, false)
		require.NoError(t, err)

		var parsed map[string]any
		require.NoError(t, json.Unmarshal(body, &parsed))
		assert.NotContains(t, parsed, "response_format")
	})

	t.Run("IncludesTools", func(t *testing.T) {
		t.Parallel()
		body, err := provider.buildRequestBody(&llm.ChatRequest{
			Model:    "llama3",
			Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			Tools: []llm.Tool{{
				Type:     "function",
				Function: llm.ToolFunction{Name: "add_memory"},
			}},
		}, false)
		require.NoError(t, err)

		var parsed map[string]any
		require.NoError(t, json.Unmarshal(body, &parsed))
		tools := parsed["tools"].([]any)
		require.Len(t, tools, 1)
	})
}
