// Package embedder provides interfaces for text embedding providers.
//
// Embeddings feed the knowledge store lookup that augments the chat system
// prompt, and the batch form is used when ingesting knowledge passages.
package embedder

import "context"

// Provider defines the interface for embedding providers.
//
// All embedding implementations (OpenAI, Qwen) must implement this interface.
// Implementations do not retry: a failed upstream call is returned as is and
// the caller decides whether to degrade.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Returns core.ErrNotConfigured when the API credential is absent and a
	// *core.TransportError when the upstream call does not succeed.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of embedding vectors produced by this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
