// Package openai provides an llm.Provider backed by the OpenAI chat completions
// streaming API. DeepSeek, Qwen (compatible mode) and Ollama expose the same API
// and are reached through BaseURL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// Client is an OpenAI-compatible streaming LLM client.
// It implements the llm.Provider interface.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for OpenAI LLM.
// APIKey: API key
// Model: Model name to use, defaults to "gpt-4o-mini"
// BaseURL: API base URL, defaults to OpenAI official address
// HTTPClient: Custom HTTP client (optional)
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new OpenAI LLM client.
//
// Args:
//   - cfg: OpenAI configuration containing APIKey, Model, BaseURL, etc.
//
// Returns:
//   - *Client: OpenAI client instance
//   - error: Returns an error if initialization fails
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Stream runs req, executing tool calls between completion rounds, and reports
// every text delta, tool call and tool result to sink.
//
// Parameters:
//   - ctx: Context for controlling request lifecycle
//   - req: System prompt, message history, tools and generation options
//   - sink: Receives stream events in order
//
// Returns:
//   - error: A core.TransportError, the context error when ctx ends first, or the
//     error returned by sink
func (c *Client) Stream(ctx context.Context, req *llm.Request, sink llm.Sink) error {
	options := llm.ApplyGenerateOptions(req.Options)
	messages := toChatMessages(req.System, req.Messages)
	tools := toTools(req.Tools)

	for step := 0; step < options.MaxSteps; step++ {
		chatReq := openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: float32(options.Temperature),
			MaxTokens:   options.MaxTokens,
			TopP:        float32(options.TopP),
			Stop:        options.Stop,
			Stream:      true,
		}
		if len(tools) > 0 {
			chatReq.Tools = tools
		}

		stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return core.NewAdvisorError("Stream", streamError(ctx, err))
		}

		round, err := consume(ctx, stream, sink)
		stream.Close()
		if err != nil {
			return err
		}

		if len(round.calls) == 0 {
			if err := sink(llm.Event{Type: llm.EventStepFinish, FinishReason: round.finishReason}); err != nil {
				return err
			}
			return sink(llm.Event{Type: llm.EventFinish, FinishReason: round.finishReason})
		}

		assistant := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: round.text,
		}
		for _, call := range round.calls {
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(call.Arguments),
				},
			})
		}
		messages = append(messages, assistant)

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
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(content),
				ToolCallID: call.ID,
			})
		}

		if err := sink(llm.Event{Type: llm.EventStepFinish, FinishReason: string(openai.FinishReasonToolCalls)}); err != nil {
			return err
		}
	}

	return sink(llm.Event{Type: llm.EventFinish, FinishReason: "max-steps"})
}

// Close is a no-op; the OpenAI SDK client does not hold resources.
func (c *Client) Close() error {
	return nil
}

type roundResult struct {
	text         string
	calls        []llm.ToolCall
	finishReason string
}

type partialCall struct {
	id   string
	name string
	args strings.Builder
}

// consume drains one completion stream. The step-start event is sent on the
// first chunk so that nothing reaches sink before the upstream has answered.
func consume(ctx context.Context, stream *openai.ChatCompletionStream, sink llm.Sink) (*roundResult, error) {
	var text strings.Builder
	partials := make(map[int]*partialCall)
	result := &roundResult{}
	started := false

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.NewAdvisorError("Stream", streamError(ctx, err))
		}
		if !started {
			started = true
			if err := sink(llm.Event{Type: llm.EventStepStart}); err != nil {
				return nil, err
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if delta := choice.Delta.Content; delta != "" {
			text.WriteString(delta)
			if err := sink(llm.Event{Type: llm.EventTextDelta, Text: delta}); err != nil {
				return nil, err
			}
		}
		for pos, tc := range choice.Delta.ToolCalls {
			idx := pos
			if tc.Index != nil {
				idx = *tc.Index
			}
			p, ok := partials[idx]
			if !ok {
				p = &partialCall{}
				partials[idx] = p
			}
			if tc.ID != "" {
				p.id = tc.ID
			}
			if tc.Function.Name != "" {
				p.name = tc.Function.Name
			}
			p.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			result.finishReason = string(choice.FinishReason)
		}
	}

	if !started {
		if err := sink(llm.Event{Type: llm.EventStepStart}); err != nil {
			return nil, err
		}
	}

	indexes := make([]int, 0, len(partials))
	for idx := range partials {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		p := partials[idx]
		args := strings.TrimSpace(p.args.String())
		if args == "" {
			args = "{}"
		}
		id := p.id
		if id == "" {
			id = fmt.Sprintf("call_%d", idx)
		}
		result.calls = append(result.calls, llm.ToolCall{
			ID:        id,
			Name:      p.name,
			Arguments: json.RawMessage(args),
		})
	}

	result.text = text.String()
	if result.finishReason == "" {
		result.finishReason = string(openai.FinishReasonStop)
	}
	return result, nil
}

func toChatMessages(system string, messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(call.Arguments),
				},
			})
		}
		out = append(out, m)
	}
	return out
}

func toTools(tools []llm.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// streamError reports a cancelled or expired ctx as such; anything else is a
// transport failure.
func streamError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return transportError(err)
}

func transportError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &core.TransportError{Service: "completion", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &core.TransportError{Service: "completion", StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &core.TransportError{Service: "completion", Err: err}
}
