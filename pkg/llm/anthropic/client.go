// Package anthropic provides an llm.Provider backed by the Anthropic Messages
// API with server-sent event streaming and tool use.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/llm"
)

const (
	// DefaultBaseURL is the Anthropic API address.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "claude-sonnet-4-20250514"

	apiVersion = "2023-06-01"
)

// Client is an Anthropic LLM client.
// It implements the llm.Provider interface. System prompts are sent in the
// top-level "system" field, as the Messages API requires.
type Client struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

// Config is the configuration for Anthropic LLM.
// APIKey: Anthropic API key (required)
// Model: Model name to use, defaults to DefaultModel
// BaseURL: API base URL, defaults to "https://api.anthropic.com"
// HTTPClient: Custom HTTP client, if nil uses default client (120 seconds timeout)
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new Anthropic LLM client.
//
// Args:
//   - cfg: Anthropic configuration containing APIKey, Model, BaseURL, etc.
//
// Returns:
//   - *Client: Anthropic client instance
//   - error: core.ErrNotConfigured when the API key is missing
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, core.NewAdvisorError("anthropic.NewClient", fmt.Errorf("%w: API key", core.ErrNotConfigured))
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: 120 * time.Second,
		}
	}

	return &Client{
		client:  client,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Stream runs req, executing tool_use blocks between rounds, and reports
// every text delta, tool call and tool result to sink.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - req: System prompt, conversation, tools and generation options
//   - sink: Receives stream events in order
//
// Returns:
//   - error: A transport failure, the context error, or the error returned by sink
func (c *Client) Stream(ctx context.Context, req *llm.Request, sink llm.Sink) error {
	options := llm.ApplyGenerateOptions(req.Options)
	system, messages := toMessages(req.System, req.Messages)
	tools := toTools(req.Tools)

	for step := 0; step < options.MaxSteps; step++ {
		body := map[string]interface{}{
			"model":       c.model,
			"max_tokens":  options.MaxTokens,
			"temperature": options.Temperature,
			"messages":    messages,
			"stream":      true,
		}
		if system != "" {
			body["system"] = system
		}
		if options.TopP > 0 && options.TopP < 1 {
			body["top_p"] = options.TopP
		}
		if len(options.Stop) > 0 {
			body["stop_sequences"] = options.Stop
		}
		if len(tools) > 0 {
			body["tools"] = tools
		}

		resp, err := c.send(ctx, body)
		if err != nil {
			return core.NewAdvisorError("Stream", err)
		}
		round, err := consume(ctx, resp.Body, sink)
		_ = resp.Body.Close()
		if err != nil {
			return err
		}

		if len(round.calls) == 0 {
			if err := sink(llm.Event{Type: llm.EventStepFinish, FinishReason: round.finishReason}); err != nil {
				return err
			}
			return sink(llm.Event{Type: llm.EventFinish, FinishReason: round.finishReason})
		}

		assistant := message{Role: llm.RoleAssistant}
		if round.text != "" {
			assistant.Content = append(assistant.Content, contentBlock{Type: "text", Text: round.text})
		}
		for _, call := range round.calls {
			assistant.Content = append(assistant.Content, contentBlock{
				Type:  "tool_use",
				ID:    call.ID,
				Name:  call.Name,
				Input: call.Arguments,
			})
		}
		messages = append(messages, assistant)

		results := message{Role: llm.RoleUser}
		for i := range round.calls {
			call := round.calls[i]
			if err := sink(llm.Event{Type: llm.EventToolCall, ToolCall: &call}); err != nil {
				return err
			}
			result := req.RunTool(ctx, call)
			if err := sink(llm.Event{Type: llm.EventToolResult, ToolCall: &call, ToolResult: result}); err != nil {
				return err
			}

			content, err := json.Marshal(result)
			if err != nil {
				content = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
			}
			_, failed := result.(llm.ToolError)
			results.Content = append(results.Content, contentBlock{
				Type:      "tool_result",
				ToolUseID: call.ID,
				Content:   string(content),
				IsError:   failed,
			})
		}
		messages = append(messages, results)

		if err := sink(llm.Event{Type: llm.EventStepFinish, FinishReason: "tool_calls"}); err != nil {
			return err
		}
	}

	return sink(llm.Event{Type: llm.EventFinish, FinishReason: "max-steps"})
}

// Close closes the client connection.
// HTTP client does not require explicit closing; this method is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

// send opens one streaming request. Non-success statuses are read fully and
// reported as a transport error before anything reaches the sink.
func (c *Client) send(ctx context.Context, body map[string]interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, streamError(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(resp.Body)
		return nil, &core.TransportError{Service: "completion", StatusCode: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type toolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// streamEvent is the union of the event payloads the Messages API streams.
type streamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type roundResult struct {
	text         string
	calls        []llm.ToolCall
	finishReason string
}

type partialToolUse struct {
	id   string
	name string
	args strings.Builder
}

// consume drains one SSE response. The step-start event is sent on the first
// event so that nothing reaches sink before the upstream has answered.
func consume(ctx context.Context, r io.Reader, sink llm.Sink) (*roundResult, error) {
	var text strings.Builder
	toolUses := make(map[int]*partialToolUse)
	result := &roundResult{}
	started := false

	start := func() error {
		if started {
			return nil
		}
		started = true
		return sink(llm.Event{Type: llm.EventStepStart})
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, core.NewAdvisorError("Stream", &core.TransportError{
				Service: "completion",
				Err:     fmt.Errorf("decode stream event: %w", err),
			})
		}

		switch event.Type {
		case "error":
			return nil, core.NewAdvisorError("Stream", &core.TransportError{
				Service: "completion",
				Body:    event.Error.Message,
				Err:     fmt.Errorf("%s: %s", event.Error.Type, event.Error.Message),
			})
		case "ping":
			continue
		}

		if err := start(); err != nil {
			return nil, err
		}

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				toolUses[event.Index] = &partialToolUse{
					id:   event.ContentBlock.ID,
					name: event.ContentBlock.Name,
				}
			}
		case "content_block_delta":
			switch event.Delta.Type {
			case "text_delta":
				if event.Delta.Text == "" {
					continue
				}
				text.WriteString(event.Delta.Text)
				if err := sink(llm.Event{Type: llm.EventTextDelta, Text: event.Delta.Text}); err != nil {
					return nil, err
				}
			case "input_json_delta":
				if p, ok := toolUses[event.Index]; ok {
					p.args.WriteString(event.Delta.PartialJSON)
				}
			}
		case "message_delta":
			if event.Delta.StopReason != "" {
				result.finishReason = finishReason(event.Delta.StopReason)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, core.NewAdvisorError("Stream", streamError(ctx, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, core.NewAdvisorError("Stream", err)
	}

	if err := start(); err != nil {
		return nil, err
	}

	indexes := make([]int, 0, len(toolUses))
	for idx := range toolUses {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		p := toolUses[idx]
		args := strings.TrimSpace(p.args.String())
		if args == "" || !json.Valid([]byte(args)) {
			args = "{}"
		}
		result.calls = append(result.calls, llm.ToolCall{
			ID:        p.id,
			Name:      p.name,
			Arguments: json.RawMessage(args),
		})
	}

	result.text = text.String()
	if result.finishReason == "" {
		result.finishReason = "stop"
	}
	return result, nil
}

// finishReason maps Anthropic stop reasons onto the names the openai provider reports.
func finishReason(stopReason string) string {
	switch stopReason {
	case "tool_use":
		return "tool_calls"
	case "max_tokens":
		return "length"
	default:
		return "stop"
	}
}

// toMessages moves system content to the top-level prompt, turns tool
// messages into tool_result blocks and merges consecutive same-role turns.
func toMessages(system string, messages []llm.Message) (string, []message) {
	prompts := []string{}
	if system != "" {
		prompts = append(prompts, system)
	}

	out := make([]message, 0, len(messages))
	appendBlocks := func(role string, blocks ...contentBlock) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, message{Role: role, Content: blocks})
	}

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			if msg.Content != "" {
				prompts = append(prompts, msg.Content)
			}
		case llm.RoleTool:
			appendBlocks(llm.RoleUser, contentBlock{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   msg.Content,
			})
		case llm.RoleAssistant:
			var blocks []contentBlock
			if msg.Content != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				input := call.Arguments
				if len(input) == 0 || !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, contentBlock{Type: "tool_use", ID: call.ID, Name: call.Name, Input: input})
			}
			appendBlocks(llm.RoleAssistant, blocks...)
		default:
			if msg.Content != "" {
				appendBlocks(llm.RoleUser, contentBlock{Type: "text", Text: msg.Content})
			}
		}
	}
	return strings.Join(prompts, "\n\n"), out
}

func toTools(tools []llm.Tool) []toolDefinition {
	out := make([]toolDefinition, 0, len(tools))
	for _, t := range tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		out = append(out, toolDefinition{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return out
}

// streamError reports a cancelled or expired ctx as such; anything else is a
// transport failure.
func streamError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &core.TransportError{Service: "completion", Err: err}
}
