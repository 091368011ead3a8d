// Package openai provides an embedder.Provider backed by the OpenAI Embeddings API
// (or any endpoint speaking the same {model, input} -> {data:[{embedding}]} contract).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/axonworks/advisor-go/pkg/core"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "text-embedding-3-small"

// Client is an OpenAI Embedder client.
// It implements the embedder.Provider interface.
type Client struct {
	client     *openai.Client
	apiKey     string
	model      openai.EmbeddingModel
	dimensions int

	// requestDimensions is sent upstream when the caller chose a size.
	requestDimensions int
}

// Config is the configuration for OpenAI Embedder.
// APIKey: OpenAI API key (required at call time)
// Model: Model name to use, defaults to text-embedding-3-small
// BaseURL: API base URL, defaults to OpenAI official address
// Dimensions: Vector dimensions, defaults to 1536. When set it is also sent
// upstream so models that support shortening return vectors of this size.
// HTTPClient: Custom HTTP client (optional)
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	HTTPClient *http.Client
}

// NewClient creates a new OpenAI Embedder client.
//
// Parameters:
//   - cfg: Embedder configuration (APIKey, Model, BaseURL, Dimensions, HTTPClient)
//
// Returns:
//   - *Client: Embedder client instance
//   - error: Always nil; kept for symmetry with the other providers
//
// A missing API key does not fail construction; Embed and EmbedBatch report
// core.ErrNotConfigured instead, so callers can degrade per request.
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		apiKey:     cfg.APIKey,
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,

		requestDimensions: cfg.Dimensions,
	}, nil
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := c.create(ctx, []string{text})
	if err != nil {
		return nil, core.NewAdvisorError("Embed", err)
	}
	if len(embeddings) == 0 {
		return nil, core.NewAdvisorError("Embed", &core.TransportError{
			Service: "embedding",
			Err:     errors.New("no data returned"),
		})
	}
	return embeddings[0], nil
}

// EmbedBatch converts multiple texts to vectors in a single request.
//
// Returns an error if the number of returned vectors does not match the input.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	embeddings, err := c.create(ctx, texts)
	if err != nil {
		return nil, core.NewAdvisorError("EmbedBatch", err)
	}
	if len(embeddings) != len(texts) {
		return nil, core.NewAdvisorError("EmbedBatch", &core.TransportError{
			Service: "embedding",
			Err:     fmt.Errorf("unexpected number of results (got %d, expected %d)", len(embeddings), len(texts)),
		})
	}
	return embeddings, nil
}

func (c *Client) create(ctx context.Context, input []string) ([][]float64, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: embedding API key", core.ErrNotConfigured)
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      input,
		Model:      c.model,
		Dimensions: c.requestDimensions,
	})
	if err != nil {
		return nil, transportError(err)
	}

	// Results carry an index; order them by it rather than trusting response order.
	embeddings := make([][]float64, len(resp.Data))
	for i, data := range resp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(embeddings) || embeddings[idx] != nil {
			idx = i
		}
		if len(data.Embedding) != c.dimensions {
			return nil, &core.TransportError{
				Service: "embedding",
				Err:     fmt.Errorf("embedding has %d dimensions, expected %d", len(data.Embedding), c.dimensions),
			}
		}
		embedding64 := make([]float64, len(data.Embedding))
		for j, v := range data.Embedding {
			embedding64[j] = float64(v)
		}
		embeddings[idx] = embedding64
	}
	return embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the OpenAI SDK client does not hold resources.
func (c *Client) Close() error {
	return nil
}

func transportError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &core.TransportError{Service: "embedding", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &core.TransportError{Service: "embedding", StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &core.TransportError{Service: "embedding", Err: err}
}
