package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains the complete configuration for the advisor service.
//
// It includes settings for:
//   - LLM provider (streaming completions with tool calling, required)
//   - Embedding provider (retrieval, optional)
//   - Knowledge store (retrieval, optional)
//   - Model catalog (search tool)
//   - HTTP server
//
// Example:
//
//	config := &core.Config{
//	    LLM: core.LLMConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	        Model:    "gpt-4o-mini",
//	    },
//	    Knowledge: core.KnowledgeConfig{
//	        Provider: "redis",
//	        URL:      "rediss://example.upstash.io:6379",
//	        Token:    "...",
//	    },
//	}
type Config struct {
	// LLM contains completion provider configuration.
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`

	// Knowledge contains knowledge store configuration.
	Knowledge KnowledgeConfig `json:"knowledge" yaml:"knowledge"`

	// Catalog contains model catalog configuration for the search tool.
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server" yaml:"server"`
}

// LLMConfig contains configuration for the completion provider.
//
// Supported providers: openai, deepseek, qwen, ollama and anthropic. All but
// anthropic are reached through the OpenAI-compatible chat completions API.
type LLMConfig struct {
	// Provider is the LLM provider name.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the LLM provider.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the model name to use (e.g., "gpt-4o-mini", "deepseek-chat").
	Model string `json:"model" yaml:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Temperature is the sampling temperature. Nil means DefaultTemperature;
	// an explicit 0 is kept.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// MaxSteps bounds the number of completion rounds when the model keeps calling tools.
	MaxSteps int `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, qwen
type EmbedderConfig struct {
	// Provider is the embedding provider name.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the embedding provider. Retrieval is disabled without it.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model" yaml:"model"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors.
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// KnowledgeConfig contains configuration for the knowledge store.
//
// Supported providers: redis, sqlite, postgres, oceanbase
type KnowledgeConfig struct {
	// Provider is the knowledge store backend.
	Provider string `json:"provider" yaml:"provider"`

	// URL is the connection URL of a redis-compatible search store.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Token authenticates against the redis-compatible store.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// Index is the search index (redis) or table (SQL backends) holding passages.
	Index string `json:"index" yaml:"index"`

	// TopK is the number of passages retrieved per request.
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty"`

	// Config contains SQL backend settings.
	// For SQLite: db_path
	// For PostgreSQL: host, port, user, password, db_name, ssl_mode
	// For OceanBase: host, port, user, password, db_name
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// CatalogConfig contains configuration for the model catalog search tool.
type CatalogConfig struct {
	// APIKey is sent as a bearer token when present.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL is the catalog base URL (default: https://huggingface.co).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr"`

	// ChatPath is the route of the chat endpoint.
	ChatPath string `json:"chat_path" yaml:"chat_path"`

	// RequestTimeout is the outer deadline applied to every chat request.
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`

	// Mode is the gin mode (debug, release, test).
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.7

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}

// Duration is a time.Duration that decodes from strings such as "30s".
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// UnmarshalYAML accepts a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - LLM_PROVIDER, LLM_API_KEY (or ANTHROPIC_API_KEY, OPENAI_API_KEY), LLM_MODEL, LLM_BASE_URL
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMS
//   - KNOWLEDGE_PROVIDER, KNOWLEDGE_URL, KNOWLEDGE_TOKEN, KNOWLEDGE_INDEX, KNOWLEDGE_TOP_K
//   - SQLITE_PATH, POSTGRES_*, OCEANBASE_*
//   - HF_API_KEY, HF_BASE_URL
//   - SERVER_ADDR, CHAT_PATH, REQUEST_TIMEOUT, GIN_MODE
//
// Returns a Config instance, or an error if a value cannot be parsed.
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	llmProvider := getEnvOrDefault("LLM_PROVIDER", "openai")
	llmBaseURL := os.Getenv("LLM_BASE_URL")
	var defaultModel string

	switch llmProvider {
	case "deepseek":
		if llmBaseURL == "" {
			llmBaseURL = "https://api.deepseek.com"
		}
		defaultModel = "deepseek-chat"
	case "qwen":
		if llmBaseURL == "" {
			llmBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
		}
		defaultModel = "qwen-plus"
	case "ollama":
		if llmBaseURL == "" {
			llmBaseURL = "http://localhost:11434/v1"
		}
		defaultModel = "llama3.1"
	case "anthropic":
		if llmBaseURL == "" {
			llmBaseURL = "https://api.anthropic.com"
		}
		defaultModel = "claude-sonnet-4-20250514"
	default:
		defaultModel = "gpt-4o-mini"
	}

	llmAPIKey := os.Getenv("LLM_API_KEY")
	if llmAPIKey == "" && llmProvider == "anthropic" {
		llmAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if llmAPIKey == "" {
		llmAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	embedderProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	embedderModel := os.Getenv("EMBEDDING_MODEL")
	embedderBaseURL := os.Getenv("EMBEDDING_BASE_URL")
	switch embedderProvider {
	case "qwen":
		if embedderBaseURL == "" {
			embedderBaseURL = "https://dashscope.aliyuncs.com/api/v1"
		}
		if embedderModel == "" {
			embedderModel = "text-embedding-v4"
		}
	default:
		if embedderModel == "" {
			embedderModel = "text-embedding-3-small"
		}
	}

	embedDims, err := atoiEnv("EMBEDDING_DIMS", "1536")
	if err != nil {
		return nil, err
	}
	topK, err := atoiEnv("KNOWLEDGE_TOP_K", "3")
	if err != nil {
		return nil, err
	}

	knowledgeProvider := getEnvOrDefault("KNOWLEDGE_PROVIDER", "redis")
	knowledgeConfig := make(map[string]interface{})

	switch knowledgeProvider {
	case "sqlite":
		if path := os.Getenv("SQLITE_PATH"); path != "" {
			knowledgeConfig["db_path"] = path
		}
	case "postgres":
		port, err := atoiEnv("POSTGRES_PORT", "5432")
		if err != nil {
			return nil, err
		}
		if host := os.Getenv("POSTGRES_HOST"); host != "" {
			knowledgeConfig = map[string]interface{}{
				"host":     host,
				"port":     port,
				"user":     getEnvOrDefault("POSTGRES_USER", "postgres"),
				"password": os.Getenv("POSTGRES_PASSWORD"),
				"db_name":  getEnvOrDefault("POSTGRES_DATABASE", "advisor"),
				"ssl_mode": getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
			}
		}
	case "oceanbase":
		port, err := atoiEnv("OCEANBASE_PORT", "2881")
		if err != nil {
			return nil, err
		}
		if host := os.Getenv("OCEANBASE_HOST"); host != "" {
			knowledgeConfig = map[string]interface{}{
				"host":     host,
				"port":     port,
				"user":     getEnvOrDefault("OCEANBASE_USER", "root@sys"),
				"password": os.Getenv("OCEANBASE_PASSWORD"),
				"db_name":  getEnvOrDefault("OCEANBASE_DATABASE", "advisor"),
			}
		}
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, NewAdvisorError("LoadConfigFromEnv", fmt.Errorf("REQUEST_TIMEOUT: %w", err))
	}

	config := &Config{
		LLM: LLMConfig{
			Provider:    llmProvider,
			APIKey:      llmAPIKey,
			Model:       getEnvOrDefault("LLM_MODEL", defaultModel),
			BaseURL:     llmBaseURL,
			Temperature: Float64(DefaultTemperature),
			MaxSteps:    5,
		},
		Embedder: EmbedderConfig{
			Provider:   embedderProvider,
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      embedderModel,
			BaseURL:    embedderBaseURL,
			Dimensions: embedDims,
		},
		Knowledge: KnowledgeConfig{
			Provider: knowledgeProvider,
			URL:      os.Getenv("KNOWLEDGE_URL"),
			Token:    os.Getenv("KNOWLEDGE_TOKEN"),
			Index:    getEnvOrDefault("KNOWLEDGE_INDEX", "knowledge"),
			TopK:     topK,
			Config:   knowledgeConfig,
		},
		Catalog: CatalogConfig{
			APIKey:  os.Getenv("HF_API_KEY"),
			BaseURL: getEnvOrDefault("HF_BASE_URL", "https://huggingface.co"),
		},
		Server: ServerConfig{
			Addr:           getEnvOrDefault("SERVER_ADDR", ":8080"),
			ChatPath:       getEnvOrDefault("CHAT_PATH", "/api/chat"),
			RequestTimeout: Duration(timeout),
			Mode:           os.Getenv("GIN_MODE"),
		},
	}

	return config, nil
}

// LoadConfigFromFile loads configuration from a JSON or YAML file, chosen by extension.
//
// Parameters:
//   - path: Path to a .json, .yaml or .yml file
//
// Returns a Config instance with defaults applied, or an error if loading or parsing fails.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewAdvisorError("LoadConfigFromFile", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		err = fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, NewAdvisorError("LoadConfigFromFile", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills zero values with the service defaults.
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Temperature == nil {
		c.LLM.Temperature = Float64(DefaultTemperature)
	}
	if c.LLM.MaxSteps <= 0 {
		c.LLM.MaxSteps = 5
	}
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = "openai"
	}
	if c.Knowledge.Provider == "" {
		c.Knowledge.Provider = "redis"
	}
	if c.Knowledge.Index == "" {
		c.Knowledge.Index = "knowledge"
	}
	if c.Knowledge.TopK <= 0 {
		c.Knowledge.TopK = 3
	}
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = "https://huggingface.co"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ChatPath == "" {
		c.Server.ChatPath = "/api/chat"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = Duration(30 * time.Second)
	}
}

// Validate validates the configuration.
//
// The completion API key is the only credential whose absence is fatal; retrieval
// and the search tool degrade when their settings are missing.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" && c.LLM.Provider != "ollama" {
		return NewAdvisorError("Validate", fmt.Errorf("%w: LLM API key", ErrNotConfigured))
	}
	switch c.LLM.Provider {
	case "openai", "deepseek", "qwen", "ollama", "anthropic":
	default:
		return NewAdvisorError("Validate", fmt.Errorf("%w: llm provider %q", ErrInvalidConfig, c.LLM.Provider))
	}
	switch c.Embedder.Provider {
	case "openai", "qwen":
	default:
		return NewAdvisorError("Validate", fmt.Errorf("%w: embedding provider %q", ErrInvalidConfig, c.Embedder.Provider))
	}
	switch c.Knowledge.Provider {
	case "redis", "sqlite", "postgres", "oceanbase":
	default:
		return NewAdvisorError("Validate", fmt.Errorf("%w: knowledge provider %q", ErrInvalidConfig, c.Knowledge.Provider))
	}
	return nil
}

// KnowledgeConfigured reports whether the knowledge store connection settings are present.
func (c *Config) KnowledgeConfigured() bool {
	switch c.Knowledge.Provider {
	case "redis":
		return c.Knowledge.URL != "" && c.Knowledge.Token != ""
	case "sqlite":
		_, ok := c.Knowledge.Config["db_path"].(string)
		return ok
	case "postgres", "oceanbase":
		_, ok := c.Knowledge.Config["host"].(string)
		return ok
	default:
		return false
	}
}

// RetrievalEnabled reports whether both the embedding credential and the
// knowledge store connection are configured.
func (c *Config) RetrievalEnabled() bool {
	return c.Embedder.APIKey != "" && c.KnowledgeConfigured()
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func atoiEnv(key, defaultValue string) (int, error) {
	v, err := strconv.Atoi(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, NewAdvisorError("LoadConfigFromEnv", fmt.Errorf("%s: %w", key, err))
	}
	return v, nil
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
