// Package chat implements the advisor chat endpoint: rate limiting,
// best-effort retrieval, prompt assembly and a streamed model answer with
// model-search tool calls.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/llm"
	"github.com/axonworks/advisor-go/pkg/ratelimit"
	"github.com/axonworks/advisor-go/pkg/uistream"
	"github.com/gin-gonic/gin"
)

// DefaultTimeout bounds a whole chat request, stream included.
const DefaultTimeout = 30 * time.Second

// User-facing error messages. Upstream details are only logged.
const (
	msgInvalidBody  = "Invalid request body"
	msgRateLimited  = "Rate limit exceeded"
	msgInternal     = "An error occurred while processing your request. Please try again."
	msgTimeout      = "The request took too long to complete. Please try again."
	msgStreamFailed = "An error occurred while generating the response."
)

// Handler serves the chat endpoint.
type Handler struct {
	limiter   *ratelimit.Limiter
	retriever *Retriever
	provider  llm.Provider
	tools     []llm.Tool
	options   []llm.GenerateOption
	timeout   time.Duration
	now       func() time.Time
}

// HandlerConfig contains the handler's collaborators.
type HandlerConfig struct {
	// Limiter throttles requests per client IP. Required.
	Limiter *ratelimit.Limiter

	// Retriever supplies the context block. Nil disables retrieval.
	Retriever *Retriever

	// Provider streams the model answer. Required.
	Provider llm.Provider

	// Tools are offered to the model on every request.
	Tools []llm.Tool

	// Options are passed to the provider (temperature, max steps).
	Options []llm.GenerateOption

	// Timeout bounds each request (default DefaultTimeout).
	Timeout time.Duration
}

// NewHandler creates a chat handler.
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if cfg.Limiter == nil {
		return nil, core.NewAdvisorError("NewHandler", fmt.Errorf("%w: limiter is required", core.ErrInvalidConfig))
	}
	if cfg.Provider == nil {
		return nil, core.NewAdvisorError("NewHandler", fmt.Errorf("%w: completion provider is required", core.ErrNotConfigured))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Handler{
		limiter:   cfg.Limiter,
		retriever: cfg.Retriever,
		provider:  cfg.Provider,
		tools:     cfg.Tools,
		options:   cfg.Options,
		timeout:   timeout,
		now:       time.Now,
	}, nil
}

// Register mounts the handler on path.
func (h *Handler) Register(r gin.IRoutes, path string) {
	r.POST(path, h.Chat)
}

// Chat handles one chat request.
func (h *Handler) Chat(c *gin.Context) {
	clientIP := ratelimit.ClientIP(c.Request.Header)
	limit := h.limiter.Check(clientIP)
	if !limit.Allowed {
		h.rejectRateLimited(c, clientIP, limit)
		return
	}
	c.Header("X-RateLimit-Remaining", strconv.Itoa(limit.Remaining))

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil || req.Messages == nil {
		if err == nil {
			err = errors.New("messages is required")
		}
		log.Printf("Chat: rejecting request from %s: %v", clientIP, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	query := LastUserText(req.Messages)
	contextBlock := h.retriever.Retrieve(ctx, query)

	modelReq := &llm.Request{
		System:   BuildSystemPrompt(contextBlock),
		Messages: ToModelMessages(req.Messages),
		Tools:    h.tools,
		Options:  h.options,
	}

	stream := uistream.NewWriter(c.Writer)
	err := h.provider.Stream(ctx, modelReq, streamSink(stream))
	if err == nil {
		return
	}

	switch {
	case c.Request.Context().Err() != nil:
		// The client went away; there is nobody left to report to.
		log.Printf("Chat: client %s disconnected: %v", clientIP, err)
	case !stream.Started():
		log.Printf("Chat: request from %s failed before streaming: %v", clientIP, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
	default:
		log.Printf("Chat: stream for %s failed: %v", clientIP, err)
		text := msgStreamFailed
		if errors.Is(err, context.DeadlineExceeded) {
			text = msgTimeout
		}
		if werr := stream.Error(text); werr != nil {
			log.Printf("Chat: could not report stream error to %s: %v", clientIP, werr)
		}
	}
}

func (h *Handler) rejectRateLimited(c *gin.Context, clientIP string, limit ratelimit.Result) {
	log.Printf("Chat: rate limited %s: %s", clientIP, limit.Reason)

	reset := h.now().Add(limit.ResetIn)
	c.Header("Retry-After", strconv.Itoa(limit.RetryAfterSeconds()))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(limit.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":   msgRateLimited,
		"message": limit.Reason,
	})
}

// streamSink translates provider events into UI stream parts.
func streamSink(w *uistream.Writer) llm.Sink {
	return func(e llm.Event) error {
		switch e.Type {
		case llm.EventStepStart:
			if !w.Started() {
				if err := w.Start(); err != nil {
					return err
				}
			}
			return w.StartStep()
		case llm.EventTextDelta:
			return w.TextDelta(e.Text)
		case llm.EventToolCall:
			return w.ToolInput(e.ToolCall.ID, e.ToolCall.Name, toolInput(e.ToolCall.Arguments))
		case llm.EventToolResult:
			return w.ToolOutput(e.ToolCall.ID, e.ToolResult)
		case llm.EventStepFinish:
			return w.FinishStep()
		case llm.EventFinish:
			return w.Finish()
		}
		return nil
	}
}

// toolInput returns the arguments as JSON when they parse, else as a string.
func toolInput(args json.RawMessage) interface{} {
	if len(args) > 0 && json.Valid(args) {
		return args
	}
	return string(args)
}
