// Package allproviders registers every built-in LLM provider.
// Import for side effects wherever resolved handles are turned into clients.
package allproviders

import (
	_ "github.com/mnemo-org/mnemo/internal/llm/providers/anthropic"
	_ "github.com/mnemo-org/mnemo/internal/llm/providers/gemini"
	_ "github.com/mnemo-org/mnemo/internal/llm/providers/local"
	_ "github.com/mnemo-org/mnemo/internal/llm/providers/openai"
	_ "github.com/mnemo-org/mnemo/internal/llm/providers/openaistructured"
	_ "github.com/mnemo-org/mnemo/internal/llm/providers/openrouter"
)
