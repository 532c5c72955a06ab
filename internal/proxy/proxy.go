// Package proxy is the memory-augmented chat surface: it answers chat
// requests with the configured provider after injecting relevant
// memories, and records each exchange back into memory in the
// background.
package proxy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mnemo-org/mnemo/internal/cmn/logger"
	"github.com/mnemo-org/mnemo/internal/cmn/logger/tag"
	"github.com/mnemo-org/mnemo/internal/llm"
	"github.com/mnemo-org/mnemo/internal/memory"
)

// searchLimit caps how many memories are injected into the context.
const searchLimit = 6

const preambleHeader = "You have access to the following memories about the user. Use them when relevant; do not mention that they were provided.\n\nMemories:\n"

// Proxy augments chat completions with memory.
type Proxy struct {
	memory *memory.Memory
	chat   llm.Provider
	handle *llm.Resolved

	// wg tracks background memory writes so Wait can drain them.
	wg sync.WaitGroup
}

// New builds a proxy on an opened memory pipeline.
func New(m *memory.Memory) *Proxy {
	return &Proxy{
		memory: m,
		chat:   m.ChatClient(),
		handle: m.LLMHandle(),
	}
}

// Chat answers messages with relevant memories injected, then records
// the exchange in the background.
func (p *Proxy) Chat(ctx context.Context, messages []llm.Message, scope memory.Scope) (*llm.ChatResponse, error) {
	augmented, err := p.augment(ctx, messages, scope)
	if err != nil {
		return nil, err
	}
	resp, err := p.chat.Chat(ctx, p.handle.NewChatRequest(augmented))
	if err != nil {
		return nil, err
	}
	p.recordAsync(ctx, messages, resp.Content, scope)
	return resp, nil
}

// ChatStream is Chat with a streamed response. The exchange is recorded
// once the stream completes.
func (p *Proxy) ChatStream(ctx context.Context, messages []llm.Message, scope memory.Scope) (<-chan llm.StreamEvent, error) {
	augmented, err := p.augment(ctx, messages, scope)
	if err != nil {
		return nil, err
	}
	upstream, err := p.chat.ChatStream(ctx, p.handle.NewChatRequest(augmented))
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)
		var reply strings.Builder
		for ev := range upstream {
			reply.WriteString(ev.Delta)
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Done {
				if ev.Error == nil {
					p.recordAsync(ctx, messages, reply.String(), scope)
				}
				return
			}
		}
	}()
	return out, nil
}

// Wait blocks until pending background memory writes finish.
func (p *Proxy) Wait() {
	p.wg.Wait()
}

// augment prepends a system preamble carrying the memories relevant to
// the latest user message.
func (p *Proxy) augment(ctx context.Context, messages []llm.Message, scope memory.Scope) ([]llm.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages")
	}
	query := latestUserContent(messages)
	if query == "" || scope.IsZero() {
		return messages, nil
	}

	result, err := p.memory.Search(ctx, query, memory.SearchOptions{Scope: scope, Limit: searchLimit})
	if err != nil {
		// Degrade to a plain completion rather than failing the chat.
		logger.Warn(ctx, "Memory search failed, answering without context", tag.Error(err))
		return messages, nil
	}
	if len(result.Results) == 0 {
		return messages, nil
	}

	var preamble strings.Builder
	preamble.WriteString(preambleHeader)
	for _, item := range result.Results {
		fmt.Fprintf(&preamble, "- %s\n", item.Memory)
	}

	augmented := make([]llm.Message, 0, len(messages)+1)
	augmented = append(augmented, llm.Message{Role: llm.RoleSystem, Content: preamble.String()})
	augmented = append(augmented, messages...)
	return augmented, nil
}

// recordAsync stores the exchange without blocking the response path.
func (p *Proxy) recordAsync(ctx context.Context, messages []llm.Message, reply string, scope memory.Scope) {
	if scope.IsZero() {
		return
	}
	exchange := make([]llm.Message, 0, len(messages)+1)
	exchange = append(exchange, messages...)
	if reply != "" {
		exchange = append(exchange, llm.Message{Role: llm.RoleAssistant, Content: reply})
	}

	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if _, err := p.memory.Add(ctx, exchange, memory.AddOptions{Scope: scope}); err != nil {
			logger.Warn(ctx, "Failed to record chat exchange", tag.Error(err))
		}
	}()
}

func latestUserContent(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
