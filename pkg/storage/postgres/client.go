package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/axonworks/advisor-go/pkg/storage"
	_ "github.com/lib/pq"
)

// Client is a PostgreSQL + pgvector client.
type Client struct {
	db             *sql.DB
	collectionName string
	dimensions     int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	CollectionName     string
	EmbeddingModelDims int
	SSLMode            string
}

// NewClient creates a new PostgreSQL client.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	collection := cfg.CollectionName
	if collection == "" {
		collection = "knowledge"
	}
	dims := cfg.EmbeddingModelDims
	if dims <= 0 {
		dims = 1536
	}

	client := &Client{
		db:             db,
		collectionName: collection,
		dimensions:     dims,
	}

	// Initialize pgvector extension and table structure
	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			text TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, c.collectionName, c.dimensions)

	if _, err = c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s
		USING hnsw (embedding vector_cosine_ops)
	`, c.collectionName, c.collectionName)
	if _, err = c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	return nil
}

// Insert inserts a passage.
func (c *Client) Insert(ctx context.Context, passage *storage.Passage) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, text, source, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.collectionName)

	createdAt := passage.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx, query,
		passage.ID,
		passage.Text,
		passage.Source,
		vectorToString(passage.Embedding),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Search performs vector search using pgvector's cosine distance operator.
func (c *Client) Search(ctx context.Context, embedding []float64, limit int) ([]*storage.Passage, error) {
	// <=> is cosine distance, so similarity is 1 - distance.
	query := fmt.Sprintf(`
		SELECT id, text, source, embedding, created_at,
			1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, c.collectionName)

	rows, err := c.db.QueryContext(ctx, query, vectorToString(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var passages []*storage.Passage
	for rows.Next() {
		var p storage.Passage
		var embeddingStr string
		if err := rows.Scan(&p.ID, &p.Text, &p.Source, &embeddingStr, &p.CreatedAt, &p.Score); err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		if p.Embedding, err = parseVectorString(embeddingStr); err != nil {
			return nil, fmt.Errorf("Search: parse embedding: %w", err)
		}
		passages = append(passages, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	return passages, nil
}

// Count returns the number of stored passages.
func (c *Client) Count(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.collectionName)
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

// DeleteAll deletes all passages.
func (c *Client) DeleteAll(ctx context.Context) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s", c.collectionName)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("DeleteAll: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
