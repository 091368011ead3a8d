package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/advisor-go/pkg/core"
)

var envKeys = []string{
	"LLM_PROVIDER", "LLM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LLM_MODEL", "LLM_BASE_URL",
	"EMBEDDING_PROVIDER", "EMBEDDING_API_KEY", "EMBEDDING_MODEL", "EMBEDDING_BASE_URL", "EMBEDDING_DIMS",
	"KNOWLEDGE_PROVIDER", "KNOWLEDGE_URL", "KNOWLEDGE_TOKEN", "KNOWLEDGE_INDEX", "KNOWLEDGE_TOP_K",
	"SQLITE_PATH", "POSTGRES_HOST", "POSTGRES_PORT", "OCEANBASE_HOST", "OCEANBASE_PORT",
	"HF_API_KEY", "HF_BASE_URL", "SERVER_ADDR", "CHAT_PATH", "REQUEST_TIMEOUT", "GIN_MODE",
}

// clearEnv marks every key as present and empty so that a stray .env file
// cannot leak values into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
	assert.Equal(t, 5, config.LLM.MaxSteps)
	require.NotNil(t, config.LLM.Temperature)
	assert.Equal(t, core.DefaultTemperature, *config.LLM.Temperature)
	assert.Equal(t, "text-embedding-3-small", config.Embedder.Model)
	assert.Equal(t, 1536, config.Embedder.Dimensions)
	assert.Equal(t, "redis", config.Knowledge.Provider)
	assert.Equal(t, "knowledge", config.Knowledge.Index)
	assert.Equal(t, 3, config.Knowledge.TopK)
	assert.Equal(t, "https://huggingface.co", config.Catalog.BaseURL)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, "/api/chat", config.Server.ChatPath)
	assert.Equal(t, 30*time.Second, config.Server.RequestTimeout.Std())

	assert.NoError(t, config.Validate())
	assert.False(t, config.RetrievalEnabled())
}

func TestLoadConfigFromEnvProviders(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		validate func(t *testing.T, c *core.Config)
	}{
		{
			name: "deepseek defaults",
			env:  map[string]string{"LLM_PROVIDER": "deepseek", "LLM_API_KEY": "k"},
			validate: func(t *testing.T, c *core.Config) {
				assert.Equal(t, "https://api.deepseek.com", c.LLM.BaseURL)
				assert.Equal(t, "deepseek-chat", c.LLM.Model)
			},
		},
		{
			name: "anthropic defaults",
			env:  map[string]string{"LLM_PROVIDER": "anthropic", "ANTHROPIC_API_KEY": "sk-ant"},
			validate: func(t *testing.T, c *core.Config) {
				assert.Equal(t, "https://api.anthropic.com", c.LLM.BaseURL)
				assert.Equal(t, "claude-sonnet-4-20250514", c.LLM.Model)
				assert.Equal(t, "sk-ant", c.LLM.APIKey)
				assert.NoError(t, c.Validate())
			},
		},
		{
			name: "ollama defaults",
			env:  map[string]string{"LLM_PROVIDER": "ollama"},
			validate: func(t *testing.T, c *core.Config) {
				assert.Equal(t, "http://localhost:11434/v1", c.LLM.BaseURL)
				assert.NoError(t, c.Validate())
			},
		},
		{
			name: "qwen embedder",
			env:  map[string]string{"EMBEDDING_PROVIDER": "qwen", "EMBEDDING_API_KEY": "e"},
			validate: func(t *testing.T, c *core.Config) {
				assert.Equal(t, "text-embedding-v4", c.Embedder.Model)
				assert.Equal(t, "https://dashscope.aliyuncs.com/api/v1", c.Embedder.BaseURL)
			},
		},
		{
			name: "redis retrieval enabled",
			env: map[string]string{
				"EMBEDDING_API_KEY": "e",
				"KNOWLEDGE_URL":     "rediss://example:6379",
				"KNOWLEDGE_TOKEN":   "tok",
			},
			validate: func(t *testing.T, c *core.Config) {
				assert.True(t, c.KnowledgeConfigured())
				assert.True(t, c.RetrievalEnabled())
			},
		},
		{
			name: "postgres settings",
			env: map[string]string{
				"KNOWLEDGE_PROVIDER": "postgres",
				"POSTGRES_HOST":      "db",
				"POSTGRES_PORT":      "6543",
			},
			validate: func(t *testing.T, c *core.Config) {
				assert.Equal(t, "db", c.Knowledge.Config["host"])
				assert.Equal(t, 6543, c.Knowledge.Config["port"])
				assert.True(t, c.KnowledgeConfigured())
				assert.False(t, c.RetrievalEnabled())
			},
		},
		{
			name: "postgres without host",
			env:  map[string]string{"KNOWLEDGE_PROVIDER": "postgres"},
			validate: func(t *testing.T, c *core.Config) {
				assert.False(t, c.KnowledgeConfigured())
			},
		},
		{
			name: "sqlite path",
			env:  map[string]string{"KNOWLEDGE_PROVIDER": "sqlite", "SQLITE_PATH": "/tmp/kb.db"},
			validate: func(t *testing.T, c *core.Config) {
				assert.Equal(t, "/tmp/kb.db", c.Knowledge.Config["db_path"])
				assert.True(t, c.KnowledgeConfigured())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			config, err := core.LoadConfigFromEnv()
			require.NoError(t, err)
			tt.validate(t, config)
		})
	}
}

func TestLoadConfigFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "dims", key: "EMBEDDING_DIMS", val: "many"},
		{name: "top k", key: "KNOWLEDGE_TOP_K", val: "x"},
		{name: "timeout", key: "REQUEST_TIMEOUT", val: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := core.LoadConfigFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
llm:
  provider: deepseek
  api_key: k
  model: deepseek-chat
knowledge:
  provider: sqlite
  config:
    db_path: /tmp/kb.db
server:
  request_timeout: 45s
`), 0o600))

	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
  "llm": {"provider": "openai", "api_key": "k", "temperature": 0},
  "embedder": {"api_key": "e"},
  "knowledge": {"url": "rediss://x:6379", "token": "t", "top_k": 5},
  "server": {"request_timeout": "10s"}
}`), 0o600))

	t.Run("yaml", func(t *testing.T) {
		config, err := core.LoadConfigFromFile(yamlPath)
		require.NoError(t, err)
		assert.Equal(t, "deepseek", config.LLM.Provider)
		require.NotNil(t, config.LLM.Temperature)
		assert.Equal(t, core.DefaultTemperature, *config.LLM.Temperature)
		assert.Equal(t, 5, config.LLM.MaxSteps)
		assert.Equal(t, 45*time.Second, config.Server.RequestTimeout.Std())
		assert.Equal(t, "knowledge", config.Knowledge.Index)
		assert.Equal(t, "openai", config.Embedder.Provider)
		assert.True(t, config.KnowledgeConfigured())
		assert.NoError(t, config.Validate())
	})

	t.Run("json", func(t *testing.T) {
		config, err := core.LoadConfigFromFile(jsonPath)
		require.NoError(t, err)
		assert.Equal(t, "redis", config.Knowledge.Provider)
		require.NotNil(t, config.LLM.Temperature)
		assert.Equal(t, 0.0, *config.LLM.Temperature)
		assert.Equal(t, 5, config.Knowledge.TopK)
		assert.Equal(t, 10*time.Second, config.Server.RequestTimeout.Std())
		assert.Equal(t, "/api/chat", config.Server.ChatPath)
		assert.True(t, config.RetrievalEnabled())
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o600))
		_, err := core.LoadConfigFromFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := core.LoadConfigFromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *core.Config {
		c := &core.Config{LLM: core.LLMConfig{APIKey: "k"}}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *core.Config)
		wantErr error
	}{
		{name: "valid", mutate: func(c *core.Config) {}},
		{name: "missing llm key", mutate: func(c *core.Config) { c.LLM.APIKey = "" }, wantErr: core.ErrNotConfigured},
		{name: "ollama without key", mutate: func(c *core.Config) { c.LLM.APIKey = ""; c.LLM.Provider = "ollama" }},
		{name: "unknown llm", mutate: func(c *core.Config) { c.LLM.Provider = "gemini" }, wantErr: core.ErrInvalidConfig},
		{name: "unknown embedder", mutate: func(c *core.Config) { c.Embedder.Provider = "cohere" }, wantErr: core.ErrInvalidConfig},
		{name: "unknown store", mutate: func(c *core.Config) { c.Knowledge.Provider = "milvus" }, wantErr: core.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDurationUnmarshalJSON(t *testing.T) {
	var d core.Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000000000`)))
	assert.Equal(t, time.Second, d.Std())

	assert.Error(t, d.UnmarshalJSON([]byte(`"later"`)))
}
