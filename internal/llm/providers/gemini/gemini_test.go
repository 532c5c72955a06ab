package gemini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/llm"
)

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(llm.Config{})
	assert.ErrorIs(t, err, llm.ErrMissingCredential)
}

func TestBuildRequestBody(t *testing.T) {
	t.Parallel()

	provider := &Provider{config: llm.Config{APIKey: "test-key"}}

	t.Run("SystemInstructionSeparated", func(t *testing.T) {
		t.Parallel()
		body, err := provider.buildRequestBody(&llm.ChatRequest{
			Model: "gemini-2.0-flash",
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "Be brief."},
				{Role: llm.RoleUser, Content: "Hello"},
				{Role: llm.RoleAssistant, Content: "Hi"},
			},
		})
		require.NoError(t, err)

		var parsed generateContentRequest
		require.NoError(t, json.Unmarshal(body, &parsed))
		require.NotNil(t, parsed.SystemInstruction)
		require.Len(t, parsed.SystemInstruction.Parts, 1)
		assert.Equal(t, "Be brief.", parsed.SystemInstruction.Parts[0].Text)

		require.Len(t, parsed.Contents, 2)
		assert.Equal(t, "user", parsed.Contents[0].Role)
		// Gemini uses "model" for assistant turns.
		assert.Equal(t, "model", parsed.Contents[1].Role)
	})

	t.Run("GenerationConfig", func(t *testing.T) {
		t.Parallel()
		temp := 0.2
		maxTokens := 2000
		body, err := provider.buildRequestBody(&llm.ChatRequest{
			Model:       "gemini-2.0-flash",
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
			Temperature: &temp,
			MaxTokens:   &maxTokens,
		})
		require.NoError(t, err)

		var parsed generateContentRequest
		require.NoError(t, json.Unmarshal(body, &parsed))
		require.NotNil(t, parsed.GenerationConfig)
		assert.Equal(t, 0.2, *parsed.GenerationConfig.Temperature)
		assert.Equal(t, 2000, *parsed.GenerationConfig.MaxOutputTokens)
	})

	t.Run("JSONResponseFormat", func(t *testing.T) {
		t.Parallel()
		body, err := provider.buildRequestBody(&llm.ChatRequest{
			Model:          "gemini-2.0-flash",
			Messages:       []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
			ResponseFormat: &llm.ResponseFormat{Type: "json_object"},
		})
		require.NoError(t, err)

		var parsed generateContentRequest
		require.NoError(t, json.Unmarshal(body, &parsed))
		require.NotNil(t, parsed.GenerationConfig)
		assert.Equal(t, "application/json", parsed.GenerationConfig.ResponseMIMEType)
	})

	t.Run("ToolsAsFunctionDeclarations", func(t *testing.T) {
		t.Parallel()
		body, err := provider.buildRequestBody(&llm.ChatRequest{
			Model:    "gemini-2.0-flash",
			Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
			Tools: []llm.Tool{{
				Type:     "function",
				Function: llm.ToolFunction{Name: "add_memory"},
			}},
			ToolChoice: "required",
		})
		require.NoError(t, err)

		var parsed generateContentRequest
		require.NoError(t, json.Unmarshal(body, &parsed))
		require.Len(t, parsed.Tools, 1)
		require.Len(t, parsed.Tools[0].FunctionDeclarations, 1)
		assert.Equal(t, "add_memory", parsed.Tools[0].FunctionDeclarations[0].Name)
		require.NotNil(t, parsed.ToolConfig)
		assert.Equal(t, "ANY", parsed.ToolConfig.FunctionCallingConfig.Mode)
	})

	t.Run("ToolResultsAsFunctionResponse", func(t *testing.T) {
		t.Parallel()
		body, err := provider.buildRequestBody(&llm.ChatRequest{
			Model: "gemini-2.0-flash",
			Messages: []llm.Message{
				{Role: llm.RoleUser, Content: "Hello"},
				{Role: llm.RoleTool, Name: "add_memory", Content: `{"stored": true}`},
			},
		})
		require.NoError(t, err)

		var parsed generateContentRequest
		require.NoError(t, json.Unmarshal(body, &parsed))
		require.Len(t, parsed.Contents, 2)
		require.Len(t, parsed.Contents[1].Parts, 1)
		fr := parsed.Contents[1].Parts[0].FunctionResponse
		require.NotNil(t, fr)
		assert.Equal(t, "add_memory", fr.Name)
	})
}
