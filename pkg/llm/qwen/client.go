// Package qwen provides the Qwen completion provider using the DashScope
// OpenAI-compatible mode.
package qwen

import (
	"fmt"
	"net/http"

	"github.com/axonworks/advisor-go/pkg/core"
	openaiLLM "github.com/axonworks/advisor-go/pkg/llm/openai"
)

const (
	// DefaultBaseURL is the DashScope compatible-mode endpoint.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "qwen-plus"
)

// Config contains configuration for creating a Qwen LLM client.
type Config struct {
	// APIKey is the DashScope API key (required).
	APIKey string

	// Model is the model name to use (default: "qwen-plus").
	Model string

	// BaseURL is the API base URL (default: DashScope compatible mode).
	BaseURL string

	// HTTPClient is a custom HTTP client (uses default if nil).
	HTTPClient *http.Client
}

// NewClient creates a new Qwen LLM client.
//
// Parameters:
//   - cfg: Qwen configuration containing APIKey, Model, BaseURL, etc.
//
// Returns:
//   - *openaiLLM.Client: streaming client pointed at the DashScope compatible mode
//   - error: core.ErrNotConfigured when the API key is missing
func NewClient(cfg *Config) (*openaiLLM.Client, error) {
	if cfg.APIKey == "" {
		return nil, core.NewAdvisorError("qwen.NewClient", fmt.Errorf("%w: API key", core.ErrNotConfigured))
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
