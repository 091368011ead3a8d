// Package deepseek provides the DeepSeek completion provider.
//
// DeepSeek uses the OpenAI-compatible API format, so the streaming client of
// the openai package is reused with DeepSeek defaults.
package deepseek

import (
	"fmt"
	"net/http"

	"github.com/axonworks/advisor-go/pkg/core"
	openaiLLM "github.com/axonworks/advisor-go/pkg/llm/openai"
)

const (
	// DefaultBaseURL is the DeepSeek API address.
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "deepseek-chat"
)

// Config is the configuration for DeepSeek LLM.
// APIKey: DeepSeek API key (required)
// Model: Model name to use, defaults to "deepseek-chat"
// BaseURL: API base URL, defaults to "https://api.deepseek.com"
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new DeepSeek LLM client.
//
// Args:
//   - cfg: DeepSeek configuration containing APIKey, Model, BaseURL, etc.
//
// Returns:
//   - *openaiLLM.Client: streaming client pointed at DeepSeek
//   - error: core.ErrNotConfigured when the API key is missing
func NewClient(cfg *Config) (*openaiLLM.Client, error) {
	if cfg.APIKey == "" {
		return nil, core.NewAdvisorError("deepseek.NewClient", fmt.Errorf("%w: API key", core.ErrNotConfigured))
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return openaiLLM.NewClient(&openaiLLM.Config{
		APIKey:     cfg.APIKey,
		Model:      model,
		BaseURL:    baseURL,
		HTTPClient: cfg.HTTPClient,
	})
}
