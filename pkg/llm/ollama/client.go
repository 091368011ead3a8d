package ollama

import (
	"net/http"
	"time"

	openaiLLM "github.com/axonworks/advisor-go/pkg/llm/openai"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint of a local Ollama server.
	DefaultBaseURL = "http://localhost:11434/v1"

	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "llama3.1"

	// placeholderKey is sent when no key is set; local servers ignore it.
	placeholderKey = "ollama"
)

// Config is the configuration for Ollama LLM.
// APIKey: optional, only needed for authenticated remote deployments
// Model: Model name to use, defaults to "llama3.1"
// BaseURL: Ollama OpenAI-compatible address, defaults to "http://localhost:11434/v1"
// HTTPClient: Custom HTTP client, if nil uses a client with a 120 seconds timeout
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new Ollama LLM client.
//
// Args:
//   - cfg: Ollama configuration containing Model, BaseURL, etc. (APIKey is optional)
//
// Returns:
//   - *openaiLLM.Client: streaming client pointed at the Ollama OpenAI-compatible endpoint
//   - error: Returns an error if initialization fails
func NewClient(cfg *Config) (*openaiLLM.Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = placeholderKey
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client := cfg.HTTPClient
	if client == nil {
		// Local models can be slow to produce the first token.
		client = &http.Client{Timeout: 120 * time.Second}
	}

	return openaiLLM.NewClient(&openaiLLM.Config{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    baseURL,
		HTTPClient: client,
	})
}
