package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected Role
	}{
		{"Canonical", "system", RoleSystem},
		{"SysAlias", "sys", RoleSystem},
		{"HumanAlias", "human", RoleUser},
		{"AIAlias", "ai", RoleAssistant},
		{"BotAlias", "bot", RoleAssistant},
		{"FunctionAlias", "function", RoleTool},
		{"CaseInsensitive", "ASSISTANT", RoleAssistant},
		{"TrimsWhitespace", "  user ", RoleUser},
		{"UnknownPassesThrough", "custom", Role("custom")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ParseRole(tc.input))
		})
	}
}

func TestMessageToolCallWire(t *testing.T) {
	t.Parallel()

	// An assistant turn requesting a call, answered by a tool turn that
	// links back through tool_call_id.
	turns := []Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: ToolCallFunction{
					Name:      "extract_entities",
					Arguments: `{"text":"Alice moved to Lisbon"}`,
				},
			}},
		},
		{
			Role:       RoleTool,
			Name:       "extract_entities",
			ToolCallID: "call_1",
			Content:    `{"entities":["Alice","Lisbon"]}`,
		},
	}

	data, err := json.Marshal(turns)
	require.NoError(t, err)

	var decoded []Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "call_1", decoded[0].ToolCalls[0].ID)
	assert.Equal(t, "extract_entities", decoded[0].ToolCalls[0].Function.Name)
	assert.Equal(t, "call_1", decoded[1].ToolCallID)
	assert.Equal(t, RoleTool, decoded[1].Role)

	// Plain user messages must not leak empty tool fields onto the wire.
	plain, err := json.Marshal(Message{Role: RoleUser, Content: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(plain))
}

func TestResponseFormatWire(t *testing.T) {
	t.Parallel()

	obj, err := json.Marshal(ResponseFormat{Type: "json_object"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"json_object"}`, string(obj))

	withSchema, err := json.Marshal(ResponseFormat{
		Type: "json_schema",
		JSONSchema: &JSONSchema{
			Name:   "facts",
			Schema: map[string]any{"type": "object"},
			Strict: true,
		},
	})
	require.NoError(t, err)

	var decoded ResponseFormat
	require.NoError(t, json.Unmarshal(withSchema, &decoded))
	require.NotNil(t, decoded.JSONSchema)
	assert.Equal(t, "facts", decoded.JSONSchema.Name)
	assert.True(t, decoded.JSONSchema.Strict)
}
