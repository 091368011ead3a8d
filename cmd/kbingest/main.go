// Command kbingest loads a directory of documents into the knowledge store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/ingest"
	"github.com/axonworks/advisor-go/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON or YAML config file (default: environment / .env)")
	chunkSize := flag.Int("chunk-size", ingest.DefaultChunkSize, "Maximum passage length in characters")
	batchSize := flag.Int("batch-size", ingest.DefaultBatchSize, "Passages embedded per request")
	nodeID := flag.Int64("node", 1, "Snowflake node ID (0-1023)")
	reset := flag.Bool("reset", false, "Delete all stored passages before ingesting")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	dir := flag.Arg(0)

	var (
		config *core.Config
		err    error
	)
	if *configPath != "" {
		config, err = core.LoadConfigFromFile(*configPath)
	} else {
		config, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !config.RetrievalEnabled() {
		log.Fatalf("Embedding API key and knowledge store settings are required for ingestion")
	}

	emb, err := server.NewEmbedder(config.Embedder)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	defer func() { _ = emb.Close() }()

	store, err := server.NewVectorStore(config.Knowledge, config.Embedder.Dimensions)
	if err != nil {
		log.Fatalf("Failed to open knowledge store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Warning: failed to close store: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *reset {
		if err := store.DeleteAll(ctx); err != nil {
			log.Fatalf("Failed to reset store: %v", err)
		}
		fmt.Println("✓ Existing passages deleted")
	}

	ingester, err := ingest.NewIngester(&ingest.Config{
		Embedder:  emb,
		Store:     store,
		NodeID:    *nodeID,
		ChunkSize: *chunkSize,
		BatchSize: *batchSize,
	})
	if err != nil {
		log.Fatalf("Failed to create ingester: %v", err)
	}

	stats, err := ingester.IngestDir(ctx, dir)
	if err != nil {
		log.Fatalf("Ingestion failed after %d documents: %v", stats.Documents, err)
	}

	total, err := store.Count(ctx)
	if err != nil {
		log.Printf("Warning: failed to count passages: %v", err)
	}
	fmt.Printf("✓ Ingested %d documents (%d passages, %d files skipped). Store now holds %d passages.\n",
		stats.Documents, stats.Passages, stats.Skipped, total)
}
