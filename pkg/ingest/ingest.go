// Package ingest loads documents into the knowledge store: it extracts text,
// splits it into passages, embeds them in batches and inserts them with
// snowflake IDs.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/embedder"
	"github.com/axonworks/advisor-go/pkg/storage"
	"github.com/bwmarrin/snowflake"
)

// DefaultBatchSize is the number of passages embedded per request.
const DefaultBatchSize = 32

// Extensions lists the file types LoadDocument understands.
var Extensions = []string{".md", ".markdown", ".txt", ".html", ".htm"}

// Document is a loaded source file.
type Document struct {
	// Source is the path relative to the ingested directory.
	Source string

	// Title is the HTML title, if any.
	Title string

	// Text is the extracted plain text.
	Text string
}

// Stats summarizes an ingestion run.
type Stats struct {
	Documents int
	Passages  int
	Skipped   int
}

// Ingester writes passages into a vector store.
type Ingester struct {
	embedder  embedder.Provider
	store     storage.VectorStore
	node      *snowflake.Node
	chunkSize int
	batchSize int
}

// Config contains ingester configuration.
type Config struct {
	Embedder embedder.Provider
	Store    storage.VectorStore

	// NodeID is the snowflake node number (0-1023).
	NodeID int64

	// ChunkSize is the maximum passage length in characters.
	ChunkSize int

	// BatchSize is the number of passages embedded per call.
	BatchSize int
}

// NewIngester creates an Ingester.
func NewIngester(cfg *Config) (*Ingester, error) {
	if cfg.Embedder == nil || cfg.Store == nil {
		return nil, core.NewAdvisorError("NewIngester", fmt.Errorf("%w: embedder and store are required", core.ErrNotConfigured))
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, core.NewAdvisorError("NewIngester", err)
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Ingester{
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		node:      node,
		chunkSize: chunkSize,
		batchSize: batchSize,
	}, nil
}

// LoadDocument reads path and extracts its text. source is recorded as the
// passage source.
func LoadDocument(path, source string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := &Document{Source: source}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		doc.Title, doc.Text, err = ExtractHTML(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
	default:
		doc.Text = string(data)
	}
	return doc, nil
}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// IngestDir ingests every supported file under dir.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (*Stats, error) {
	stats := &Stats{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !supported(path) {
			stats.Skipped++
			return nil
		}

		source, err := filepath.Rel(dir, path)
		if err != nil {
			source = path
		}
		doc, err := LoadDocument(path, filepath.ToSlash(source))
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}

		n, err := in.IngestDocument(ctx, doc)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		stats.Documents++
		stats.Passages += n
		log.Printf("Ingested %s: %d passages", doc.Source, n)
		return nil
	})
	if err != nil {
		return stats, core.NewAdvisorError("IngestDir", err)
	}
	return stats, nil
}

// IngestDocument chunks, embeds and stores doc. It returns the number of
// passages inserted.
func (in *Ingester) IngestDocument(ctx context.Context, doc *Document) (int, error) {
	chunks := Chunk(doc.Text, in.chunkSize)
	if len(chunks) == 0 {
		return 0, nil
	}

	source := doc.Source
	if doc.Title != "" {
		source = fmt.Sprintf("%s (%s)", doc.Title, doc.Source)
	}

	inserted := 0
	for start := 0; start < len(chunks); start += in.batchSize {
		end := start + in.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		embeddings, err := in.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return inserted, err
		}

		now := time.Now()
		for i, text := range batch {
			passage := &storage.Passage{
				ID:        in.node.Generate().Int64(),
				Text:      text,
				Source:    source,
				Embedding: embeddings[i],
				CreatedAt: now,
			}
			if err := in.store.Insert(ctx, passage); err != nil {
				return inserted, err
			}
			inserted++
		}
	}
	return inserted, nil
}
