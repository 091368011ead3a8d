package chat

import (
	"encoding/json"
	"strings"

	"github.com/axonworks/advisor-go/pkg/llm"
)

// UI part types and tool part states understood by ToModelMessages.
const (
	PartText        = "text"
	PartStepStart   = "step-start"
	PartDynamicTool = "dynamic-tool"

	toolPartPrefix = "tool-"

	StateOutputAvailable = "output-available"
	StateOutputError     = "output-error"
)

// Message is a conversation message as sent by the chat front end.
type Message struct {
	ID    string `json:"id,omitempty"`
	Role  string `json:"role"`
	Parts []Part `json:"parts,omitempty"`

	// Content is accepted from clients that send plain-text messages
	// without parts.
	Content string `json:"content,omitempty"`
}

// Part is one typed element of a message.
type Part struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	State      string          `json:"state,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

// Request is the chat request body.
type Request struct {
	Messages []Message `json:"messages"`
}

// text joins the message's text parts with a space, falling back to Content.
func (m Message) text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	if len(texts) == 0 {
		return m.Content
	}
	return strings.Join(texts, " ")
}

// toolName returns the tool a part refers to, or "" for non-tool parts.
func (p Part) toolName() string {
	if p.Type == PartDynamicTool {
		return p.ToolName
	}
	if strings.HasPrefix(p.Type, toolPartPrefix) {
		return strings.TrimPrefix(p.Type, toolPartPrefix)
	}
	return ""
}

// LastUserText returns the text of the most recent user message, or "" if
// the history has none.
func LastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].text()
		}
	}
	return ""
}

// ToModelMessages converts UI messages into model messages. System messages
// from the client are dropped. Completed tool parts of assistant messages
// become tool calls followed by their tool results; each step-start part
// begins a new assistant turn.
func ToModelMessages(messages []Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.text()})
		case llm.RoleAssistant:
			out = append(out, assistantMessages(m)...)
		}
	}
	return out
}

func assistantMessages(m Message) []llm.Message {
	if len(m.Parts) == 0 {
		if m.Content == "" {
			return nil
		}
		return []llm.Message{{Role: llm.RoleAssistant, Content: m.Content}}
	}

	var out []llm.Message
	var texts []string
	var calls []llm.ToolCall
	var results []llm.Message

	flush := func() {
		if len(texts) == 0 && len(calls) == 0 {
			return
		}
		out = append(out, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   strings.Join(texts, ""),
			ToolCalls: calls,
		})
		out = append(out, results...)
		texts, calls, results = nil, nil, nil
	}

	for _, p := range m.Parts {
		switch {
		case p.Type == PartStepStart:
			flush()
		case p.Type == PartText:
			texts = append(texts, p.Text)
		case p.toolName() != "":
			result, ok := toolResultContent(p)
			if !ok {
				continue
			}
			args := p.Input
			if len(args) == 0 || !json.Valid(args) {
				args = json.RawMessage("{}")
			}
			calls = append(calls, llm.ToolCall{ID: p.ToolCallID, Name: p.toolName(), Arguments: args})
			results = append(results, llm.Message{Role: llm.RoleTool, Content: result, ToolCallID: p.ToolCallID})
		}
	}
	flush()
	return out
}

// toolResultContent returns the tool message content for a finished tool
// part. Parts still streaming input are skipped.
func toolResultContent(p Part) (string, bool) {
	switch p.State {
	case StateOutputAvailable:
		if len(p.Output) == 0 {
			return "null", true
		}
		return string(p.Output), true
	case StateOutputError:
		data, _ := json.Marshal(llm.ToolError{Error: p.ErrorText})
		return string(data), true
	default:
		return "", false
	}
}
