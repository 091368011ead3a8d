package server

import (
	"fmt"
	"log"

	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/embedder"
	openaiEmbedder "github.com/axonworks/advisor-go/pkg/embedder/openai"
	qwenEmbedder "github.com/axonworks/advisor-go/pkg/embedder/qwen"
	"github.com/axonworks/advisor-go/pkg/knowledge"
	"github.com/axonworks/advisor-go/pkg/llm"
	anthropicLLM "github.com/axonworks/advisor-go/pkg/llm/anthropic"
	deepseekLLM "github.com/axonworks/advisor-go/pkg/llm/deepseek"
	ollamaLLM "github.com/axonworks/advisor-go/pkg/llm/ollama"
	openaiLLM "github.com/axonworks/advisor-go/pkg/llm/openai"
	qwenLLM "github.com/axonworks/advisor-go/pkg/llm/qwen"
	"github.com/axonworks/advisor-go/pkg/storage"
	oceanbaseStore "github.com/axonworks/advisor-go/pkg/storage/oceanbase"
	postgresStore "github.com/axonworks/advisor-go/pkg/storage/postgres"
	redisStore "github.com/axonworks/advisor-go/pkg/storage/redis"
	sqliteStore "github.com/axonworks/advisor-go/pkg/storage/sqlite"
)

// NewLLM initializes the completion provider. Anthropic has its own Messages
// API client; the others speak the OpenAI-compatible streaming API.
func NewLLM(cfg core.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "deepseek":
		return deepseekLLM.NewClient(&deepseekLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "qwen":
		return qwenLLM.NewClient(&qwenLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "ollama":
		return ollamaLLM.NewClient(&ollamaLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "anthropic":
		return anthropicLLM.NewClient(&anthropicLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, core.NewAdvisorError("NewLLM", fmt.Errorf("%w: llm provider %q", core.ErrInvalidConfig, cfg.Provider))
	}
}

// NewEmbedder initializes the embedding provider.
func NewEmbedder(cfg core.EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "qwen":
		return qwenEmbedder.NewClient(&qwenEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, core.NewAdvisorError("NewEmbedder", fmt.Errorf("%w: embedding provider %q", core.ErrInvalidConfig, cfg.Provider))
	}
}

// NewVectorStore initializes the passage storage backend.
func NewVectorStore(cfg core.KnowledgeConfig, dims int) (storage.VectorStore, error) {
	switch cfg.Provider {
	case "redis":
		return redisStore.NewClient(&redisStore.Config{
			URL:        cfg.URL,
			Token:      cfg.Token,
			Index:      cfg.Index,
			Dimensions: dims,
		})
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:    stringValue(cfg.Config, "db_path", "./data/knowledge.db"),
			TableName: cfg.Index,
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:               stringValue(cfg.Config, "host", "localhost"),
			Port:               intValue(cfg.Config, "port", 5432),
			User:               stringValue(cfg.Config, "user", "postgres"),
			Password:           stringValue(cfg.Config, "password", ""),
			DBName:             stringValue(cfg.Config, "db_name", "advisor"),
			CollectionName:     cfg.Index,
			EmbeddingModelDims: dims,
			SSLMode:            stringValue(cfg.Config, "ssl_mode", "disable"),
		})
	case "oceanbase":
		return oceanbaseStore.NewClient(&oceanbaseStore.Config{
			Host:               stringValue(cfg.Config, "host", "localhost"),
			Port:               intValue(cfg.Config, "port", 2881),
			User:               stringValue(cfg.Config, "user", "root@sys"),
			Password:           stringValue(cfg.Config, "password", ""),
			DBName:             stringValue(cfg.Config, "db_name", "advisor"),
			CollectionName:     cfg.Index,
			EmbeddingModelDims: dims,
		})
	default:
		return nil, core.NewAdvisorError("NewVectorStore", fmt.Errorf("%w: knowledge provider %q", core.ErrInvalidConfig, cfg.Provider))
	}
}

// NewKnowledgeStore returns a store over the configured backend. Missing
// settings or a backend that cannot be opened leave the store unconfigured.
func NewKnowledgeStore(cfg *core.Config) *knowledge.Store {
	if !cfg.KnowledgeConfigured() {
		return knowledge.NewStore(nil)
	}
	backend, err := NewVectorStore(cfg.Knowledge, cfg.Embedder.Dimensions)
	if err != nil {
		log.Printf("Warning: knowledge store disabled: %v", err)
		return knowledge.NewStore(nil)
	}
	return knowledge.NewStore(backend)
}

func stringValue(m map[string]interface{}, key, def string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}

// intValue accepts int (env, YAML) and float64 (JSON) values.
func intValue(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
