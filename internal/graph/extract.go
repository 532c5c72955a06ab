package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mnemo-org/mnemo/internal/llm"
)

// Extractor pulls entities and relations out of free text with a chat
// provider's tool calling. It holds no graph state; results feed Store
// operations.
type Extractor struct {
	handle   *llm.Resolved
	provider llm.Provider
}

// NewExtractor builds an extractor on a resolved chat provider.
func NewExtractor(handle *llm.Resolved, provider llm.Provider) *Extractor {
	return &Extractor{handle: handle, provider: provider}
}

// ExtractedEntity is an entity name with its type.
type ExtractedEntity struct {
	// Entity is the entity name, lowercased with underscores.
	Entity string `json:"entity"`
	// EntityType classifies the entity, e.g. person, place, event.
	EntityType string `json:"entity_type"`
}

type entityArgs struct {
	Entities []ExtractedEntity `json:"entities"`
}

type relationArgs struct {
	Entities []Triple `json:"entities"`
}

const extractEntitiesPrompt = `You are a smart assistant who understands entities and their types in a given text. If user message contains self reference such as 'I', 'me', 'my' etc. then use %s as the source entity. Extract all the entities from the text. ***DO NOT*** answer the question itself if the given text is a question.`

const extractRelationsPrompt = `You are an algorithm designed to extract structured information from text to construct knowledge graphs. Your goal is to capture comprehensive and accurate information. Follow these key principles:

1. Extract only explicitly stated information from the text.
2. Establish relationships among the entities provided.
3. Use "%s" as the source entity for any self-references (such as "I", "me", "my" etc.) in user messages.

Relationships:
    - Use consistent, general, and timeless relationship types.
    - Example: Prefer "professor" over "became_professor".
    - Relationships should only be established among the entities explicitly mentioned in the user message.

Entity Consistency:
    - Ensure that relationships are coherent and logically align with the context of the message.
    - Maintain consistent naming for entities across the extracted data.

Strive to construct a coherent and easily understandable knowledge graph by establishing all the relationships among the entities and adherence to the user's context.`

const extractDeletionsPrompt = `You are a graph memory manager specializing in identifying, managing, and optimizing relationships within graph-based memories. Your primary task is to analyze a list of existing relationships and determine which ones should be deleted based on the new information provided.

Guidelines:
1. Identification: Use the new information to evaluate existing relationships in the memory graph.
2. Deletion criteria: Delete a relationship only if it directly contradicts or is made invalid by the new information.
3. DO NOT DELETE if a relationship is about a different aspect of the same entity.
4. DO NOT DELETE if the new information is about a different entity entirely.
5. Use "%s" as the source node for any self-references (such as "I", "me", "my" etc.) in user messages.

Existing relationships:
%s

Only request deletions for relationships that appear in the existing list.`

// ExtractEntities returns the entities mentioned in text. selfReference
// replaces first-person pronouns, typically the scope's user ID.
func (e *Extractor) ExtractEntities(ctx context.Context, text, selfReference string) ([]ExtractedEntity, error) {
	tool := newTool("extract_entities",
		"Extract entities and their types from the text.",
		schemaFor[entityArgs]())

	req := e.handle.NewChatRequest([]llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(extractEntitiesPrompt, selfReference)},
		{Role: llm.RoleUser, Content: text},
	}, llm.WithTools(tool), llm.WithToolChoice("auto"))

	resp, err := e.provider.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("entity extraction failed: %w", err)
	}

	var entities []ExtractedEntity
	for _, call := range resp.ToolCalls {
		if call.Function.Name != "extract_entities" {
			continue
		}
		var args entityArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("entity extraction returned malformed arguments: %w", err)
		}
		entities = append(entities, args.Entities...)
	}
	for i := range entities {
		entities[i].Entity = normalizeName(entities[i].Entity)
	}
	return entities, nil
}

// ExtractRelations returns relations among the given entities found in
// text.
func (e *Extractor) ExtractRelations(ctx context.Context, text, selfReference string, entities []ExtractedEntity) ([]Triple, error) {
	tool := newTool("establish_relationships",
		"Establish relationships among the entities based on the text.",
		schemaFor[relationArgs]())

	names := make([]string, 0, len(entities))
	for _, ent := range entities {
		names = append(names, ent.Entity)
	}

	req := e.handle.NewChatRequest([]llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(extractRelationsPrompt, selfReference)},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Entities: %s.\n\nText: %s", strings.Join(names, ", "), text)},
	}, llm.WithTools(tool), llm.WithToolChoice("auto"))

	resp, err := e.provider.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("relation extraction failed: %w", err)
	}
	return parseTripleCalls(resp.ToolCalls, "establish_relationships")
}

// ExtractDeletions returns existing triples invalidated by text.
func (e *Extractor) ExtractDeletions(ctx context.Context, text, selfReference string, existing []Triple) ([]Triple, error) {
	if len(existing) == 0 {
		return nil, nil
	}
	tool := newTool("delete_graph_memory",
		"Delete relationships that the new information contradicts.",
		schemaFor[relationArgs]())

	var list strings.Builder
	for _, t := range existing {
		fmt.Fprintf(&list, "%s -- %s -- %s\n", t.Source, t.Relationship, t.Destination)
	}

	req := e.handle.NewChatRequest([]llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(extractDeletionsPrompt, selfReference, list.String())},
		{Role: llm.RoleUser, Content: text},
	}, llm.WithTools(tool), llm.WithToolChoice("auto"))

	resp, err := e.provider.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("deletion extraction failed: %w", err)
	}
	return parseTripleCalls(resp.ToolCalls, "delete_graph_memory")
}

func parseTripleCalls(calls []llm.ToolCall, name string) ([]Triple, error) {
	var triples []Triple
	for _, call := range calls {
		if call.Function.Name != name {
			continue
		}
		var args relationArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("%s returned malformed arguments: %w", name, err)
		}
		triples = append(triples, args.Entities...)
	}
	for i := range triples {
		triples[i].Source = normalizeName(triples[i].Source)
		triples[i].Relationship = normalizeName(triples[i].Relationship)
		triples[i].Destination = normalizeName(triples[i].Destination)
	}
	return triples, nil
}

func newTool(name, description string, params map[string]any) llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// schemaFor derives the JSON schema of a tool's argument struct. The
// argument types are static, so generation cannot fail at runtime.
func schemaFor[T any]() map[string]any {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("graph: tool schema generation failed: %v", err))
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("graph: tool schema encoding failed: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("graph: tool schema decoding failed: %v", err))
	}
	return out
}

// normalizeName canonicalizes node and relationship names the way the
// prompts request them: lowercased, underscores for spaces.
func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
