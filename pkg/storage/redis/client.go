// Package redis provides a VectorStore backed by a Redis-compatible search
// index (RediSearch FT.* commands).
//
// Passages are stored as hashes under "<index>:<id>" with the embedding
// encoded as a little-endian float32 blob. Queries use KNN search over the
// "embedding" field.
package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/axonworks/advisor-go/pkg/storage"
	goredis "github.com/redis/go-redis/v9"
)

// Client implements storage.VectorStore on top of go-redis.
type Client struct {
	rdb        *goredis.Client
	index      string
	dimensions int

	mu         sync.Mutex
	indexReady bool
}

// Config contains Redis search configuration.
type Config struct {
	// URL is the connection URL (redis:// or rediss://).
	URL string

	// Token is sent as the connection password when set.
	Token string

	// Index is the search index name (default: "knowledge").
	Index string

	// Dimensions is the embedding dimension used when the index is created.
	Dimensions int
}

// NewClient creates a new Redis search client. The connection is lazy; no
// command is sent until the first operation.
func NewClient(cfg *Config) (*Client, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("NewRedisClient: %w", err)
	}
	if cfg.Token != "" {
		opts.Password = cfg.Token
	}
	// FT.SEARCH replies are decoded from the RESP2 flat array form.
	opts.Protocol = 2

	index := cfg.Index
	if index == "" {
		index = "knowledge"
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1536
	}

	return &Client{
		rdb:        goredis.NewClient(opts),
		index:      index,
		dimensions: dims,
	}, nil
}

func (c *Client) key(id int64) string {
	return c.index + ":" + strconv.FormatInt(id, 10)
}

// ensureIndex creates the search index if this client has not done so yet.
func (c *Client) ensureIndex(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexReady {
		return nil
	}

	err := c.rdb.Do(ctx,
		"FT.CREATE", c.index,
		"ON", "HASH",
		"PREFIX", "1", c.index+":",
		"SCHEMA",
		"text", "TEXT",
		"source", "TAG",
		"embedding", "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(c.dimensions),
		"DISTANCE_METRIC", "COSINE",
	).Err()
	if err != nil && !isIndexExists(err) {
		return fmt.Errorf("ensureIndex: %w", err)
	}
	c.indexReady = true
	return nil
}

// Insert stores a passage as a hash.
func (c *Client) Insert(ctx context.Context, passage *storage.Passage) error {
	if err := c.ensureIndex(ctx); err != nil {
		return err
	}

	createdAt := passage.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := c.rdb.HSet(ctx, c.key(passage.ID),
		"text", passage.Text,
		"source", passage.Source,
		"embedding", encodeVector(passage.Embedding),
		"created_at", createdAt.Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Search runs a KNN query and returns up to limit passages in the order the
// index reports them. The index reports cosine distance; Score is the
// similarity 1 - distance, or 0 when the field is absent or unparseable.
func (c *Client) Search(ctx context.Context, embedding []float64, limit int) ([]*storage.Passage, error) {
	if limit <= 0 {
		limit = 3
	}

	query := fmt.Sprintf("*=>[KNN %d @embedding $vec AS score]", limit)
	reply, err := c.rdb.Do(ctx,
		"FT.SEARCH", c.index, query,
		"PARAMS", "2", "vec", encodeVector(embedding),
		"RETURN", "3", "text", "source", "score",
		"SORTBY", "score",
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	return parseSearchReply(reply), nil
}

// Count returns the number of indexed passages.
func (c *Client) Count(ctx context.Context) (int, error) {
	reply, err := c.rdb.Do(ctx, "FT.INFO", c.index).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("Count: %w", err)
	}
	return parseNumDocs(reply), nil
}

// DeleteAll drops the index together with its documents. The index is
// recreated by the next Insert.
func (c *Client) DeleteAll(ctx context.Context) error {
	err := c.rdb.Do(ctx, "FT.DROPINDEX", c.index, "DD").Err()
	if err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("DeleteAll: %w", err)
	}
	c.mu.Lock()
	c.indexReady = false
	c.mu.Unlock()
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float64) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(f)))
	}
	return string(buf)
}

// parseSearchReply decodes the RESP2 FT.SEARCH reply
// [total, id1, [field, value, ...], id2, [...], ...].
// A missing or short payload yields no passages.
func parseSearchReply(reply interface{}) []*storage.Passage {
	items, ok := reply.([]interface{})
	if !ok || len(items) < 3 {
		return []*storage.Passage{}
	}

	passages := make([]*storage.Passage, 0, (len(items)-1)/2)
	for i := 1; i+1 < len(items); i += 2 {
		fields, ok := items[i+1].([]interface{})
		if !ok {
			continue
		}

		p := &storage.Passage{}
		if id, ok := items[i].(string); ok {
			if n := strings.LastIndexByte(id, ':'); n >= 0 {
				p.ID, _ = strconv.ParseInt(id[n+1:], 10, 64)
			}
		}
		for j := 0; j+1 < len(fields); j += 2 {
			name := asString(fields[j])
			value := asString(fields[j+1])
			switch name {
			case "text":
				p.Text = value
			case "source":
				p.Source = value
			case "score":
				if distance, err := strconv.ParseFloat(value, 64); err == nil {
					p.Score = 1 - distance
				}
			}
		}
		passages = append(passages, p)
	}
	return passages
}

// parseNumDocs extracts num_docs from a RESP2 FT.INFO reply.
func parseNumDocs(reply interface{}) int {
	items, ok := reply.([]interface{})
	if !ok {
		return 0
	}
	for i := 0; i+1 < len(items); i += 2 {
		if asString(items[i]) != "num_docs" {
			continue
		}
		switch v := items[i+1].(type) {
		case int64:
			return int(v)
		default:
			n, _ := strconv.Atoi(asString(v))
			return n
		}
	}
	return 0
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func isIndexExists(err error) bool {
	var rerr goredis.Error
	return errors.As(err, &rerr) && strings.Contains(strings.ToLower(rerr.Error()), "index already exists")
}

func isUnknownIndex(err error) bool {
	var rerr goredis.Error
	if !errors.As(err, &rerr) {
		return false
	}
	msg := strings.ToLower(rerr.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}
