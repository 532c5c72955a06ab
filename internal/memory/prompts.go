package memory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// defaultFactExtractionPrompt asks the model to distill conversation text
// into discrete facts. Overridable per deployment through the
// memory.factExtractionPrompt config key.
const defaultFactExtractionPrompt = `You are a Personal Information Organizer, specialized in accurately storing facts, user memories, and preferences. Your primary role is to extract relevant pieces of information from conversations and organize them into distinct, manageable facts.

Types of Information to Remember:
1. Personal Preferences: likes, dislikes, and specific preferences in food, products, activities, and entertainment.
2. Personal Details: names, relationships, and important dates.
3. Plans and Intentions: upcoming events, trips, goals, and any other plans.
4. Activity and Service Preferences: preferences for dining, travel, hobbies, and other services.
5. Health and Wellness Preferences: dietary restrictions, fitness routines, and other wellness-related information.
6. Professional Details: job titles, work habits, career goals, and other professional information.
7. Miscellaneous: favorite books, movies, brands, and other details the user shares.

Return the facts in a JSON object with a "facts" key holding a list of strings.

Remember:
- Today's date is %s.
- Do not return anything from the example prompts above.
- If you do not find anything relevant, return an empty list for the "facts" key.
- Extract facts only from user and assistant messages, never from system messages.
- Detect the language of the input and record the facts in the same language.`

// updateMemoryPromptTemplate compares retrieved memories against new facts
// and decides, per fact, whether to add, update, delete, or do nothing.
// Overridable through the memory.updateMemoryPrompt config key.
const updateMemoryPromptTemplate = `You are a smart memory manager which controls the memory of a system. You can perform four operations: (1) add into the memory, (2) update the memory, (3) delete from the memory, and (4) no change.

Compare newly retrieved facts with the existing memory. For each new fact, decide whether to:
- ADD: Add it to the memory as a new element
- UPDATE: Update an existing memory element
- DELETE: Delete an existing memory element
- NONE: Make no change (if the fact is already present or irrelevant)

Guidelines:
1. ADD when the fact contains new information not present in the memory. Generate a new id for it.
2. UPDATE when the fact refines or extends an existing element; keep the existing id and record the previous text in "old_memory".
3. DELETE when the fact contradicts an existing element.
4. NONE when the fact is already covered.

Existing memory:
%s

Newly retrieved facts:
%s

Return a JSON object with a "memory" key holding a list of elements, each with "id", "text", "event", and, for updates, "old_memory". Use only ids from the existing memory for UPDATE and DELETE. Do not return anything except the JSON object.`

func factExtractionPrompt(override string) string {
	if override != "" {
		return override
	}
	return fmt.Sprintf(defaultFactExtractionPrompt, time.Now().Format("2006-01-02"))
}

func updateMemoryPrompt(override string, existing []existingMemory, facts []string) (string, error) {
	existingJSON, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode existing memory: %w", err)
	}
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return "", fmt.Errorf("failed to encode facts: %w", err)
	}
	template := updateMemoryPromptTemplate
	if override != "" {
		template = override
	}
	return fmt.Sprintf(template, existingJSON, factsJSON), nil
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models emit even when asked for bare JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
