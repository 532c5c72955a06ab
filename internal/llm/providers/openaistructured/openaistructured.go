// Package openaistructured provides an LLM provider that forces structured
// output from OpenAI's Chat Completions API. Requests without an explicit
// response format are constrained to a single JSON object, so callers can
// rely on parseable output without prompt gymnastics.
package openaistructured

import (
	"context"

	"github.com/mnemo-org/mnemo/internal/llm"
	"github.com/mnemo-org/mnemo/internal/llm/providers/openai"
)

const providerName = "openai_structured"

func init() {
	llm.RegisterProvider(llm.ProviderOpenAIStructured, New)
}

// Provider implements the llm.Provider interface on top of the openai
// provider, constraining every response to JSON.
var _ llm.Provider = (*Provider)(nil)

type Provider struct {
	inner llm.Provider
}

// New creates a new structured-output OpenAI provider.
func New(cfg llm.Config) (llm.Provider, error) {
	inner, err := openai.New(cfg)
	if err != nil {
		return nil, llm.WrapError(providerName, err)
	}
	return &Provider{inner: inner}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Chat sends messages and returns the complete response as JSON.
func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return p.inner.Chat(ctx, withStructuredFormat(req))
}

// ChatStream sends messages and streams the JSON response.
func (p *Provider) ChatStream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	return p.inner.ChatStream(ctx, withStructuredFormat(req))
}

// withStructuredFormat returns a shallow copy of req constrained to JSON
// output. An explicit response format on the request wins; the caller's
// request is never mutated.
func withStructuredFormat(req *llm.ChatRequest) *llm.ChatRequest {
	if req.ResponseFormat != nil {
		return req
	}
	out := *req
	out.ResponseFormat = &llm.ResponseFormat{Type: "json_object"}
	return &out
}
