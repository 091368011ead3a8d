// Package storage provides the vector store abstraction that holds knowledge passages.
//
// It defines the VectorStore interface implemented by the redis, sqlite,
// postgres and oceanbase backends.
package storage

import (
	"context"
	"math"
	"sort"
	"time"
)

// Passage is a stored knowledge snippet.
type Passage struct {
	// ID is the unique identifier of the passage.
	ID int64

	// Text is the passage content inserted into the system prompt.
	Text string

	// Source names where the passage came from (file path, URL, title).
	Source string

	// Embedding is the vector representation of Text.
	Embedding []float64

	// CreatedAt is when the passage was stored.
	CreatedAt time.Time

	// Score is the similarity to the query vector, set by Search (higher is better).
	Score float64
}

// VectorStore defines the interface for passage storage backends.
type VectorStore interface {
	// Insert stores a passage together with its embedding.
	Insert(ctx context.Context, passage *Passage) error

	// Search returns up to limit passages ordered by descending similarity.
	Search(ctx context.Context, embedding []float64, limit int) ([]*Passage, error)

	// Count returns the number of stored passages.
	Count(ctx context.Context) (int, error)

	// DeleteAll removes every stored passage.
	DeleteAll(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 when the
// vectors differ in length or either has zero norm.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SortByScore sorts passages by descending score and truncates to limit (if > 0).
// Ties keep insertion order.
func SortByScore(passages []*Passage, limit int) []*Passage {
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if limit > 0 && len(passages) > limit {
		passages = passages[:limit]
	}
	return passages
}
