// Package catalog searches a public model catalog (Hugging Face Hub API) and
// exposes the search as a tool the chat model can call.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/axonworks/advisor-go/pkg/core"
)

// DefaultBaseURL is the public Hugging Face Hub.
const DefaultBaseURL = "https://huggingface.co"

// Client handles communication with the model catalog.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config contains catalog client configuration.
type Config struct {
	// APIKey is sent as a bearer token when set. Public search works without it.
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Timeout bounds a single search request (default 10s).
	Timeout time.Duration

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client
}

// NewClient creates a new catalog client.
func NewClient(cfg *Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// Validate checks input without contacting the catalog and fills in the
// default limit.
func (in *SearchInput) Validate() error {
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return fmt.Errorf("%w: query is required", core.ErrInvalidInput)
	}
	if in.Task != "" && !ValidTask(in.Task) {
		return fmt.Errorf("%w: unsupported task %q (expected one of: %s)",
			core.ErrInvalidInput, in.Task, strings.Join(Tasks, ", "))
	}
	if in.Limit <= 0 {
		in.Limit = DefaultLimit
	}
	if in.Limit > MaxLimit {
		in.Limit = MaxLimit
	}
	return nil
}

// Search queries the catalog for models matching in, sorted by downloads.
//
// Invalid input fails with core.ErrInvalidInput before any request is made.
// A non-success upstream status fails with *core.TransportError.
func (c *Client) Search(ctx context.Context, in SearchInput) (*SearchResult, error) {
	if err := in.Validate(); err != nil {
		return nil, core.NewAdvisorError("Search", err)
	}

	params := url.Values{}
	params.Set("search", in.Query)
	if in.Task != "" {
		params.Set("filter", in.Task)
	}
	params.Set("limit", strconv.Itoa(in.Limit))
	params.Set("sort", "downloads")
	params.Set("direction", "-1")

	fullURL := fmt.Sprintf("%s/api/models?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, core.NewAdvisorError("Search", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.NewAdvisorError("Search", &core.TransportError{Service: "catalog", Err: err})
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, core.NewAdvisorError("Search", &core.TransportError{
			Service:    "catalog",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		})
	}

	var records []apiModel
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, core.NewAdvisorError("Search", &core.TransportError{
			Service:    "catalog",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		})
	}

	models := make([]Model, 0, len(records))
	for _, r := range records {
		models = append(models, r.normalize())
	}
	if len(models) > in.Limit {
		models = models[:in.Limit]
	}

	return &SearchResult{
		Models:         models,
		Recommendation: recommend(models, in),
	}, nil
}

func recommend(models []Model, in SearchInput) string {
	if len(models) == 0 {
		if in.Task != "" {
			return fmt.Sprintf("No models found for %q with task %s.", in.Query, in.Task)
		}
		return fmt.Sprintf("No models found for %q.", in.Query)
	}
	top := models[0]
	return fmt.Sprintf("Top recommendation: %s (%d downloads, %d likes).", top.ID, top.Downloads, top.Likes)
}
