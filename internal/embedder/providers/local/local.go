// Package local implements an embedding provider for local
// OpenAI-compatible servers such as Ollama, vLLM and LocalAI.
// No API key is required.
package local

import (
	"context"
	"fmt"

	"github.com/mnemo-org/mnemo/internal/embedder"
)

const (
	providerName   = "local"
	embeddingsPath = "/embeddings"
)

func init() {
	embedder.RegisterProvider(embedder.ProviderLocal, New)
}

var _ embedder.Provider = (*Provider)(nil)

// Provider implements embedder.Provider against a local server.
type Provider struct {
	config embedder.Config
	client *embedder.HTTPClient
}

// New creates a local embedding provider.
func New(config embedder.Config) (embedder.Provider, error) {
	if config.Model == "" {
		return nil, embedder.WrapError(providerName, fmt.Errorf("%w: model is required", embedder.ErrInvalidParameter))
	}
	if config.BaseURL == "" {
		config.BaseURL = embedder.DefaultBaseURL(embedder.ProviderLocal)
	}
	return &Provider{
		config: config,
		client: embedder.NewHTTPClient(providerName, config),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Dimensions reports the configured vector width, or 0 when the local
// model's width is not known up front.
func (p *Provider) Dimensions() int {
	return p.config.Dimensions
}

// Embed sends texts to the local embeddings endpoint. Local servers
// accept the OpenAI wire shape, minus dimensions shortening which most
// models do not support.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := embeddingRequest{
		Model: p.config.Model,
		Input: texts,
	}
	var result embeddingResponse
	if err := p.client.PostJSON(ctx, embeddingsPath, body, &result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, embedder.WrapError(providerName, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data)))
	}
	out := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, embedder.WrapError(providerName, fmt.Errorf("embedding index %d out of range", d.Index))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// OpenAI-compatible embeddings wire types.

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}
