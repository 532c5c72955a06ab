// Package openai implements the OpenAI embeddings provider.
package openai

import (
	"context"
	"fmt"

	"github.com/mnemo-org/mnemo/internal/embedder"
)

const (
	providerName   = "openai"
	embeddingsPath = "/embeddings"

	// encodingFormat requests plain float arrays instead of base64.
	encodingFormat = "float"
)

func init() {
	embedder.RegisterProvider(embedder.ProviderOpenAI, New)
}

var _ embedder.Provider = (*Provider)(nil)

// Provider implements embedder.Provider for the OpenAI embeddings API.
type Provider struct {
	config embedder.Config
	client *embedder.HTTPClient
}

// New creates an OpenAI embedding provider.
func New(config embedder.Config) (embedder.Provider, error) {
	if config.APIKey == "" {
		return nil, embedder.WrapError(providerName, embedder.ErrMissingCredential)
	}
	if config.Model == "" {
		return nil, embedder.WrapError(providerName, fmt.Errorf("%w: model is required", embedder.ErrInvalidParameter))
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

// Dimensions reports the vector width. A configured dimensions value
// wins; otherwise the model's native width is used when known.
func (p *Provider) Dimensions() int {
	if p.config.Dimensions > 0 {
		return p.config.Dimensions
	}
	return nativeDimensions(p.config.Model)
}

// Embed sends texts to the embeddings endpoint in configured batch
// sizes and returns one vector per text, in input order.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += p.batchSize(len(texts)) {
		end := start + p.batchSize(len(texts))
		if end > len(texts) {
			end = len(texts)
		}
		if err := p.embedBatch(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Provider) batchSize(total int) int {
	if p.config.BatchSize > 0 {
		return p.config.BatchSize
	}
	return total
}

func (p *Provider) embedBatch(ctx context.Context, texts []string, out [][]float32) error {
	body := embeddingRequest{
		Model:          p.config.Model,
		Input:          texts,
		EncodingFormat: encodingFormat,
	}
	if p.config.Dimensions > 0 {
		body.Dimensions = &p.config.Dimensions
	}

	var result embeddingResponse
	if err := p.client.PostJSON(ctx, embeddingsPath, body, &result); err != nil {
		return err
	}
	if len(result.Data) != len(texts) {
		return embedder.WrapError(providerName, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data)))
	}
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return embedder.WrapError(providerName, fmt.Errorf("embedding index %d out of range", d.Index))
		}
		out[d.Index] = d.Embedding
	}
	return nil
}

// nativeDimensions returns the default output width of known OpenAI
// embedding models.
func nativeDimensions(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	default:
		return 0
	}
}

// OpenAI embeddings API types.

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Dimensions     *int     `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
