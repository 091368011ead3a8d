package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axonworks/advisor-go/pkg/chat"
	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/knowledge"
	"github.com/axonworks/advisor-go/pkg/storage"
)

type fakeEmbedder struct {
	err    error
	calls  int
	inputs []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	f.inputs = append(f.inputs, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float64{0.1, 0.2}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2}
	}
	return out, f.err
}

func (f *fakeEmbedder) Dimensions() int { return 2 }
func (f *fakeEmbedder) Close() error    { return nil }

type fakeBackend struct {
	passages []*storage.Passage
	err      error
	limit    int
}

func (b *fakeBackend) Insert(ctx context.Context, p *storage.Passage) error { return nil }
func (b *fakeBackend) Search(ctx context.Context, emb []float64, limit int) ([]*storage.Passage, error) {
	b.limit = limit
	return b.passages, b.err
}
func (b *fakeBackend) Count(ctx context.Context) (int, error) { return len(b.passages), nil }
func (b *fakeBackend) DeleteAll(ctx context.Context) error    { return nil }
func (b *fakeBackend) Close() error                           { return nil }

func twoPassages() *fakeBackend {
	return &fakeBackend{passages: []*storage.Passage{
		{Text: "Finance teams often start with anomaly detection.", Source: "kb/finance.md", Score: 0.91},
		{Text: "2M records/day fits a single batch job.", Source: "kb/scale.md", Score: 0.84},
	}}
}

func TestRetrieveFormatsPassages(t *testing.T) {
	emb := &fakeEmbedder{}
	backend := twoPassages()
	r := chat.NewRetriever(emb, knowledge.NewStore(backend), 0)

	got := r.Retrieve(context.Background(), "we process 2M records/day in finance")

	assert.Equal(t,
		"[1] Finance teams often start with anomaly detection.\nSource: kb/finance.md\n\n"+
			"[2] 2M records/day fits a single batch job.\nSource: kb/scale.md",
		got)
	assert.Equal(t, []string{"we process 2M records/day in finance"}, emb.inputs)
	assert.Equal(t, 3, backend.limit)
}

func TestRetrieveDegrades(t *testing.T) {
	tests := []struct {
		name      string
		embedder  *fakeEmbedder
		backend   storage.VectorStore
		query     string
		wantEmbed int
	}{
		{name: "empty query skips embedding", embedder: &fakeEmbedder{}, backend: twoPassages(), query: "", wantEmbed: 0},
		{name: "no store", embedder: &fakeEmbedder{}, backend: nil, query: "q", wantEmbed: 0},
		{name: "embedding not configured", embedder: &fakeEmbedder{err: core.ErrNotConfigured}, backend: twoPassages(), query: "q", wantEmbed: 1},
		{name: "embedding transport failure", embedder: &fakeEmbedder{err: &core.TransportError{Service: "embedding", StatusCode: 500}}, backend: twoPassages(), query: "q", wantEmbed: 1},
		{name: "store failure", embedder: &fakeEmbedder{}, backend: &fakeBackend{err: errors.New("ERR unknown index")}, query: "q", wantEmbed: 1},
		{name: "no passages", embedder: &fakeEmbedder{}, backend: &fakeBackend{}, query: "q", wantEmbed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chat.NewRetriever(tt.embedder, knowledge.NewStore(tt.backend), 3)

			got := r.Retrieve(context.Background(), tt.query)

			assert.Equal(t, chat.NoContextPlaceholder, got)
			assert.Equal(t, tt.wantEmbed, tt.embedder.calls)
		})
	}
}

func TestRetrieverDisabledWithoutEmbedder(t *testing.T) {
	r := chat.NewRetriever(nil, knowledge.NewStore(twoPassages()), 3)
	assert.False(t, r.Enabled())
	assert.Equal(t, chat.NoContextPlaceholder, r.Retrieve(context.Background(), "q"))

	var nilRetriever *chat.Retriever
	assert.False(t, nilRetriever.Enabled())
	assert.Equal(t, chat.NoContextPlaceholder, nilRetriever.Retrieve(context.Background(), "q"))
}
