package oceanbase

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/axonworks/advisor-go/pkg/storage"
	_ "github.com/go-sql-driver/mysql"
)

// Client is an OceanBase client.
type Client struct {
	db             *sql.DB
	config         *Config
	collectionName string
}

// Config contains OceanBase configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	CollectionName     string
	EmbeddingModelDims int
}

// NewClient creates a new OceanBase client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	collection := cfg.CollectionName
	if collection == "" {
		collection = "knowledge"
	}
	if cfg.EmbeddingModelDims <= 0 {
		cfg.EmbeddingModelDims = 1536
	}

	client := &Client{
		db:             db,
		config:         cfg,
		collectionName: collection,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table. The hash column makes
// re-ingesting an identical passage a no-op.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			embedding VECTOR(%d),
			document LONGTEXT,
			source VARCHAR(512),
			hash VARCHAR(32),
			created_at DATETIME,
			UNIQUE KEY uk_hash (hash)
		)
	`, c.collectionName, c.config.EmbeddingModelDims)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Insert inserts a passage. Duplicates (same source and text) are ignored.
func (c *Client) Insert(ctx context.Context, passage *storage.Passage) error {
	query := fmt.Sprintf(`
		INSERT IGNORE INTO %s (id, document, source, embedding, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
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
		generateHash(passage.Source+"\x00"+passage.Text),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Search performs vector search ordered by cosine distance.
func (c *Client) Search(ctx context.Context, embedding []float64, limit int) ([]*storage.Passage, error) {
	query := fmt.Sprintf(`
		SELECT id, document, source, embedding, created_at,
			cosine_distance(embedding, ?) AS distance
		FROM %s
		ORDER BY distance ASC
		LIMIT ?
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
		var source sql.NullString
		var distance float64
		if err := rows.Scan(&p.ID, &p.Text, &source, &embeddingStr, &p.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		p.Source = source.String
		p.Score = 1 - distance
		if p.Embedding, err = stringToVector(embeddingStr); err != nil {
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
	query := fmt.Sprintf("DELETE FROM %s", c.collectionName)
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
