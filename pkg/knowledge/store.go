// Package knowledge exposes best-effort retrieval over a storage.VectorStore.
//
// Retrieval is an enhancement, never a dependency for answering: Query never
// returns an error. An unconfigured store and any backend failure both yield
// an empty result.
package knowledge

import (
	"context"
	"log"

	"github.com/axonworks/advisor-go/pkg/storage"
)

// DefaultTopK is the number of passages fetched per chat request.
const DefaultTopK = 3

// Passage is a retrieved snippet handed to the prompt builder.
type Passage struct {
	Text           string  `json:"text"`
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// Store wraps a vector store backend. A nil backend means retrieval is not
// configured.
type Store struct {
	backend storage.VectorStore
}

// NewStore creates a Store. backend may be nil.
func NewStore(backend storage.VectorStore) *Store {
	return &Store{backend: backend}
}

// Configured reports whether a backend is attached.
func (s *Store) Configured() bool {
	return s != nil && s.backend != nil
}

// Query returns up to topK passages nearest to embedding, in the order the
// backend reports them.
func (s *Store) Query(ctx context.Context, embedding []float64, topK int) []Passage {
	if !s.Configured() || len(embedding) == 0 {
		return []Passage{}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	results, err := s.backend.Search(ctx, embedding, topK)
	if err != nil {
		log.Printf("Warning: knowledge query failed: %v", err)
		return []Passage{}
	}

	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		passages = append(passages, Passage{
			Text:           r.Text,
			Source:         r.Source,
			RelevanceScore: r.Score,
		})
	}
	return passages
}

// Close releases the backend.
func (s *Store) Close() error {
	if !s.Configured() {
		return nil
	}
	return s.backend.Close()
}
