// Package llm provides interfaces and types for streaming Large Language Model providers.
//
// A Provider drives one conversation turn: it streams text deltas, executes the
// tools the model asks for, feeds their results back to the model and keeps
// going until the model produces a final answer or the step budget runs out.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Provider defines the interface for streaming LLM providers.
type Provider interface {
	// Stream runs the request and reports progress through sink.
	//
	// Stream does not call sink before the upstream stream has been opened,
	// so an error returned with no events delivered means nothing was produced.
	// An error returned by sink aborts the stream and is returned unchanged.
	Stream(ctx context.Context, req *Request, sink Sink) error

	// Close closes the provider and releases resources.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", "assistant" or "tool".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`

	// ToolCalls holds the tool invocations requested by an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolFunc executes a tool with the raw JSON arguments produced by the model.
//
// A returned error is reported back to the model as a tool result; it never
// aborts the stream.
type ToolFunc func(ctx context.Context, arguments json.RawMessage) (interface{}, error)

// Tool is a function the model may call during generation.
type Tool struct {
	// Name is the tool name exposed to the model.
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Parameters is the JSON schema of the tool arguments.
	Parameters json.RawMessage

	// Execute runs the tool.
	Execute ToolFunc
}

// Request is a single streaming generation request.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation history, oldest first.
	Messages []Message

	// Tools are the tools available to the model.
	Tools []Tool

	// Options are generation options.
	Options []GenerateOption
}

// FindTool returns the tool with the given name.
func (r *Request) FindTool(name string) (Tool, bool) {
	for _, t := range r.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// EventType identifies a stream event.
type EventType string

const (
	// EventStepStart marks the start of one completion round.
	EventStepStart EventType = "step-start"

	// EventTextDelta carries a chunk of generated text.
	EventTextDelta EventType = "text-delta"

	// EventToolCall reports a complete tool call about to be executed.
	EventToolCall EventType = "tool-call"

	// EventToolResult reports the result of an executed tool call.
	EventToolResult EventType = "tool-result"

	// EventStepFinish marks the end of one completion round.
	EventStepFinish EventType = "step-finish"

	// EventFinish marks the end of the whole generation.
	EventFinish EventType = "finish"
)

// Event is a single streaming event.
type Event struct {
	Type EventType

	// Text is set for EventTextDelta.
	Text string

	// ToolCall is set for EventToolCall and EventToolResult.
	ToolCall *ToolCall

	// ToolResult is set for EventToolResult.
	ToolResult interface{}

	// FinishReason is set for EventStepFinish and EventFinish.
	FinishReason string
}

// Sink receives stream events in order.
type Sink func(Event) error

// ToolError is the tool result reported to the model when a tool fails.
type ToolError struct {
	Error string `json:"error"`
}

// RunTool executes call against the request's tools. Unknown tools and tool
// failures become a ToolError result.
func (r *Request) RunTool(ctx context.Context, call ToolCall) interface{} {
	tool, ok := r.FindTool(call.Name)
	if !ok || tool.Execute == nil {
		return ToolError{Error: "unknown tool: " + call.Name}
	}
	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		return ToolError{Error: err.Error()}
	}
	return result
}

// GenerateOptions contains options for text generation.
type GenerateOptions struct {
	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens per completion round.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0). Higher = more diverse.
	TopP float64

	// Stop contains stop sequences that will end generation.
	Stop []string

	// MaxSteps bounds the number of completion rounds (tool call loops).
	MaxSteps int
}

// GenerateOption is a function type for configuring generation options.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the temperature for text generation.
//
// Example:
//
//	req.Options = append(req.Options, llm.WithTemperature(0.7))
func WithTemperature(temp float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens per completion round.
func WithMaxTokens(max int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the top-p (nucleus sampling) parameter.
func WithTopP(topP float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.TopP = topP
	}
}

// WithMaxSteps sets the maximum number of completion rounds.
func WithMaxSteps(steps int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxSteps = steps
	}
}

// ApplyGenerateOptions applies a slice of GenerateOption functions to create GenerateOptions.
//
// Default values: Temperature=0.7, MaxTokens=1000, TopP=1.0, MaxSteps=5.
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		TopP:        1.0,
		MaxSteps:    5,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.MaxSteps < 1 {
		options.MaxSteps = 1
	}
	return options
}
