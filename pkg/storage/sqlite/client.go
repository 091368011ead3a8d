// Package sqlite provides SQLite implementation for passage storage.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small knowledge bases. Vectors are stored as JSON strings in TEXT fields,
// and similarity search uses in-memory cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/axonworks/advisor-go/pkg/storage"
	_ "github.com/mattn/go-sqlite3"
)

// Client implements VectorStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing passages.
	tableName string
}

// Config contains configuration for creating a SQLite VectorStore.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use (default: "knowledge").
	TableName string
}

// NewClient creates a new SQLite VectorStore client and ensures the table exists.
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "knowledge"
	}

	client := &Client{
		db:        db,
		tableName: tableName,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			text TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			embedding TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Insert inserts a passage. Vectors are stored as JSON strings.
func (c *Client) Insert(ctx context.Context, passage *storage.Passage) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, text, source, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.tableName)

	embeddingJSON, err := json.Marshal(passage.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := passage.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.db.ExecContext(ctx, query,
		passage.ID,
		passage.Text,
		passage.Source,
		string(embeddingJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Search performs vector similarity search using cosine similarity.
//
// SQLite does not have native vector operations, so similarity is calculated
// in memory after loading every row.
func (c *Client) Search(ctx context.Context, embedding []float64, limit int) ([]*storage.Passage, error) {
	query := fmt.Sprintf(`
		SELECT id, text, source, embedding, created_at
		FROM %s
		ORDER BY id
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var passages []*storage.Passage
	for rows.Next() {
		passage, err := scanPassage(rows)
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		passage.Score = storage.CosineSimilarity(embedding, passage.Embedding)
		passages = append(passages, passage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	return storage.SortByScore(passages, limit), nil
}

// Count returns the number of stored passages.
func (c *Client) Count(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.tableName)
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

// DeleteAll deletes all passages.
func (c *Client) DeleteAll(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s", c.tableName)
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

func scanPassage(rows *sql.Rows) (*storage.Passage, error) {
	var passage storage.Passage
	var embeddingStr string

	if err := rows.Scan(
		&passage.ID,
		&passage.Text,
		&passage.Source,
		&embeddingStr,
		&passage.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(embeddingStr), &passage.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	return &passage, nil
}
