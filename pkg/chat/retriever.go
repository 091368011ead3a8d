package chat

import (
	"context"
	"log"

	"github.com/axonworks/advisor-go/pkg/embedder"
	"github.com/axonworks/advisor-go/pkg/knowledge"
)

// Retriever turns the user's latest utterance into a context block.
type Retriever struct {
	embedder embedder.Provider
	store    *knowledge.Store
	topK     int
}

// NewRetriever creates a Retriever. Either dependency may be nil, which
// disables retrieval.
func NewRetriever(emb embedder.Provider, store *knowledge.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	return &Retriever{embedder: emb, store: store, topK: topK}
}

// Enabled reports whether both the embedder and the store are configured.
func (r *Retriever) Enabled() bool {
	return r != nil && r.embedder != nil && r.store.Configured()
}

// Retrieve returns the formatted context for query, or NoContextPlaceholder.
// It never fails.
func (r *Retriever) Retrieve(ctx context.Context, query string) string {
	if query == "" || !r.Enabled() {
		return NoContextPlaceholder
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("Warning: retrieval skipped, embedding failed: %v", err)
		return NoContextPlaceholder
	}

	passages := r.store.Query(ctx, embedding, r.topK)
	if len(passages) == 0 {
		return NoContextPlaceholder
	}
	return FormatContext(passages)
}
