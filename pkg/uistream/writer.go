// Package uistream writes the UI message stream consumed by chat front ends:
// server-sent events whose data lines are JSON parts (start, text-delta,
// tool-output-available, finish, ...) terminated by "data: [DONE]".
//
// Headers are written lazily on the first part, so a handler can still
// answer with a plain JSON error as long as Started reports false.
package uistream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Header names and values of the stream protocol.
const (
	ProtocolHeader  = "x-vercel-ai-ui-message-stream"
	ProtocolVersion = "v1"
	ContentType     = "text/event-stream"
)

// Part types.
const (
	PartStart               = "start"
	PartStartStep           = "start-step"
	PartTextStart           = "text-start"
	PartTextDelta           = "text-delta"
	PartTextEnd             = "text-end"
	PartToolInputAvailable  = "tool-input-available"
	PartToolOutputAvailable = "tool-output-available"
	PartFinishStep          = "finish-step"
	PartFinish              = "finish"
	PartError               = "error"
)

// Part is one stream chunk. Unused fields are omitted.
type Part struct {
	Type       string      `json:"type"`
	MessageID  string      `json:"messageId,omitempty"`
	ID         string      `json:"id,omitempty"`
	Delta      string      `json:"delta,omitempty"`
	ToolCallID string      `json:"toolCallId,omitempty"`
	ToolName   string      `json:"toolName,omitempty"`
	Input      interface{} `json:"input,omitempty"`
	Output     interface{} `json:"output,omitempty"`
	ErrorText  string      `json:"errorText,omitempty"`
}

// Writer emits parts to an http.ResponseWriter. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher

	messageID string
	textID    string
	started   bool
	closed    bool
}

// NewWriter creates a Writer. Nothing is written until the first part.
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{
		w:         w,
		flusher:   flusher,
		messageID: "msg-" + uuid.NewString(),
	}
}

// Started reports whether headers (and at least one part) have been written.
func (s *Writer) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// MessageID returns the id announced in the start part.
func (s *Writer) MessageID() string {
	return s.messageID
}

func (s *Writer) writeHeaders() {
	h := s.w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(ProtocolHeader, ProtocolVersion)
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

// write sends one part. Callers hold s.mu.
func (s *Writer) write(p Part) error {
	if s.closed {
		return fmt.Errorf("uistream: write %s after close", p.Type)
	}
	if !s.started {
		s.writeHeaders()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("uistream: encode %s: %w", p.Type, err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("uistream: write %s: %w", p.Type, err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Start announces the assistant message.
func (s *Writer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(Part{Type: PartStart, MessageID: s.messageID})
}

// StartStep opens a model round.
func (s *Writer) StartStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(Part{Type: PartStartStep})
}

// TextDelta appends text, opening a text part if none is open.
func (s *Writer) TextDelta(delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.textID == "" {
		s.textID = uuid.NewString()
		if err := s.write(Part{Type: PartTextStart, ID: s.textID}); err != nil {
			return err
		}
	}
	return s.write(Part{Type: PartTextDelta, ID: s.textID, Delta: delta})
}

// EndText closes the open text part, if any.
func (s *Writer) EndText() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endText()
}

func (s *Writer) endText() error {
	if s.textID == "" {
		return nil
	}
	id := s.textID
	s.textID = ""
	return s.write(Part{Type: PartTextEnd, ID: id})
}

// ToolInput reports a complete tool call.
func (s *Writer) ToolInput(toolCallID, toolName string, input interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.endText(); err != nil {
		return err
	}
	if input == nil {
		input = map[string]interface{}{}
	}
	return s.write(Part{Type: PartToolInputAvailable, ToolCallID: toolCallID, ToolName: toolName, Input: input})
}

// ToolOutput reports the result of a tool call.
func (s *Writer) ToolOutput(toolCallID string, output interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(Part{Type: PartToolOutputAvailable, ToolCallID: toolCallID, Output: output})
}

// FinishStep closes a model round.
func (s *Writer) FinishStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.endText(); err != nil {
		return err
	}
	return s.write(Part{Type: PartFinishStep})
}

// Finish ends the message and terminates the stream.
func (s *Writer) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.endText(); err != nil {
		return err
	}
	if err := s.write(Part{Type: PartFinish}); err != nil {
		return err
	}
	return s.done()
}

// Error reports a failure after the stream has started and terminates it.
// errorText is shown to the user and must not carry upstream details.
func (s *Writer) Error(errorText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.write(Part{Type: PartError, ErrorText: errorText}); err != nil {
		return err
	}
	return s.done()
}

func (s *Writer) done() error {
	_, err := fmt.Fprint(s.w, "data: [DONE]\n\n")
	if s.flusher != nil {
		s.flusher.Flush()
	}
	s.closed = true
	return err
}
