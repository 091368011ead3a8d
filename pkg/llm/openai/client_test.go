package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/llm"
	openaiLLM "github.com/axonworks/advisor-go/pkg/llm/openai"
)

func chunk(delta string, finish string) string {
	finishJSON := "null"
	if finish != "" {
		finishJSON = fmt.Sprintf("%q", finish)
	}
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":%s,"finish_reason":%s}]}`, delta, finishJSON)
}

// scriptedServer replies to the n-th completion request with rounds[n].
func scriptedServer(t *testing.T, rounds ...[]string) (*httptest.Server, *[]map[string]interface{}) {
	t.Helper()
	var mu sync.Mutex
	var requests []map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		n := len(requests)
		requests = append(requests, body)
		mu.Unlock()

		if n >= len(rounds) {
			t.Errorf("unexpected completion request #%d", n+1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range rounds[n] {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", c)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func collect(events *[]llm.Event) llm.Sink {
	return func(e llm.Event) error {
		*events = append(*events, e)
		return nil
	}
}

func textOf(events []llm.Event) string {
	var b strings.Builder
	for _, e := range events {
		if e.Type == llm.EventTextDelta {
			b.WriteString(e.Text)
		}
	}
	return b.String()
}

func TestStreamText(t *testing.T) {
	srv, requests := scriptedServer(t, []string{
		chunk(`{"role":"assistant","content":"Hello"}`, ""),
		chunk(`{"content":" there"}`, ""),
		chunk(`{}`, "stop"),
	})

	client, err := openaiLLM.NewClient(&openaiLLM.Config{APIKey: "k", BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)

	var events []llm.Event
	err = client.Stream(context.Background(), &llm.Request{
		System:   "be brief",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	}, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, "Hello there", textOf(events))
	assert.Equal(t, llm.EventStepStart, events[0].Type)
	last := events[len(events)-1]
	assert.Equal(t, llm.EventFinish, last.Type)
	assert.Equal(t, "stop", last.FinishReason)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "test-model", req["model"])
	assert.Equal(t, true, req["stream"])
	msgs := req["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, "be brief", msgs[0].(map[string]interface{})["content"])
	_, hasTools := req["tools"]
	assert.False(t, hasTools)
}

func TestStreamExecutesToolCalls(t *testing.T) {
	srv, requests := scriptedServer(t,
		[]string{
			chunk(`{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"searchModels","arguments":""}}]}`, ""),
			chunk(`{"tool_calls":[{"index":0,"function":{"arguments":"{\"query\":"}}]}`, ""),
			chunk(`{"tool_calls":[{"index":0,"function":{"arguments":"\"bert\"}"}}]}`, ""),
			chunk(`{}`, "tool_calls"),
		},
		[]string{
			chunk(`{"content":"Try bert-base."}`, ""),
			chunk(`{}`, "stop"),
		},
	)

	client, err := openaiLLM.NewClient(&openaiLLM.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	var gotArgs string
	tool := llm.Tool{
		Name:        "searchModels",
		Description: "search",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		Execute: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			gotArgs = string(args)
			return map[string]string{"summary": "found bert-base"}, nil
		},
	}

	var events []llm.Event
	err = client.Stream(context.Background(), &llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "find a model"}},
		Tools:    []llm.Tool{tool},
	}, collect(&events))
	require.NoError(t, err)

	assert.JSONEq(t, `{"query":"bert"}`, gotArgs)
	assert.Equal(t, "Try bert-base.", textOf(events))

	var types []llm.EventType
	for _, e := range events {
		if e.Type != llm.EventTextDelta {
			types = append(types, e.Type)
		}
	}
	assert.Equal(t, []llm.EventType{
		llm.EventStepStart, llm.EventToolCall, llm.EventToolResult, llm.EventStepFinish,
		llm.EventStepStart, llm.EventStepFinish, llm.EventFinish,
	}, types)

	require.Len(t, *requests, 2)
	first := (*requests)[0]
	tools := first["tools"].([]interface{})
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]interface{})["function"].(map[string]interface{})
	assert.Equal(t, "searchModels", fn["name"])

	second := (*requests)[1]["messages"].([]interface{})
	require.Len(t, second, 3)
	assistant := second[1].(map[string]interface{})
	assert.Equal(t, "assistant", assistant["role"])
	toolMsg := second[2].(map[string]interface{})
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_1", toolMsg["tool_call_id"])
	assert.JSONEq(t, `{"summary":"found bert-base"}`, toolMsg["content"].(string))
}

func TestStreamToolFailureIsReportedToModel(t *testing.T) {
	srv, requests := scriptedServer(t,
		[]string{
			chunk(`{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"searchModels","arguments":"{}"}}]}`, "tool_calls"),
		},
		[]string{
			chunk(`{"content":"The search failed."}`, "stop"),
		},
	)

	client, err := openaiLLM.NewClient(&openaiLLM.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	tool := llm.Tool{
		Name:       "searchModels",
		Parameters: json.RawMessage(`{"type":"object"}`),
		Execute: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			return nil, errors.New("catalog unavailable")
		},
	}

	var events []llm.Event
	err = client.Stream(context.Background(), &llm.Request{Tools: []llm.Tool{tool}}, collect(&events))
	require.NoError(t, err)

	var result interface{}
	for _, e := range events {
		if e.Type == llm.EventToolResult {
			result = e.ToolResult
		}
	}
	assert.Equal(t, llm.ToolError{Error: "catalog unavailable"}, result)

	toolMsg := (*requests)[1]["messages"].([]interface{})[1].(map[string]interface{})
	assert.JSONEq(t, `{"error":"catalog unavailable"}`, toolMsg["content"].(string))
}

func TestStreamUpstreamFailureDeliversNoEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	client, err := openaiLLM.NewClient(&openaiLLM.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	var events []llm.Event
	err = client.Stream(context.Background(), &llm.Request{}, collect(&events))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransport)
	assert.Empty(t, events)
}

func TestStreamSinkErrorAborts(t *testing.T) {
	srv, _ := scriptedServer(t, []string{
		chunk(`{"content":"a"}`, ""),
		chunk(`{"content":"b"}`, ""),
		chunk(`{}`, "stop"),
	})

	client, err := openaiLLM.NewClient(&openaiLLM.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	errGone := errors.New("client gone")
	deltas := 0
	err = client.Stream(context.Background(), &llm.Request{}, func(e llm.Event) error {
		if e.Type == llm.EventTextDelta {
			deltas++
			return errGone
		}
		return nil
	})
	assert.ErrorIs(t, err, errGone)
	assert.Equal(t, 1, deltas)
}

func TestStreamCancelledMidStream(t *testing.T) {
	upstreamClosed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk(`{"content":"Let me"}`, ""))
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
			close(upstreamClosed)
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	client, err := openaiLLM.NewClient(&openaiLLM.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []llm.Event
	err = client.Stream(ctx, &llm.Request{}, func(e llm.Event) error {
		events = append(events, e)
		if e.Type == llm.EventTextDelta {
			cancel()
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrTransport)
	assert.Equal(t, "Let me", textOf(events))
	for _, e := range events {
		assert.NotEqual(t, llm.EventFinish, e.Type)
	}

	select {
	case <-upstreamClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream request was not closed after cancel")
	}
}

func TestStreamStopsAtMaxSteps(t *testing.T) {
	looping := []string{
		chunk(`{"tool_calls":[{"index":0,"id":"call_x","type":"function","function":{"name":"searchModels","arguments":"{}"}}]}`, "tool_calls"),
	}
	srv, requests := scriptedServer(t, looping, looping)

	client, err := openaiLLM.NewClient(&openaiLLM.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	var events []llm.Event
	err = client.Stream(context.Background(), &llm.Request{
		Tools: []llm.Tool{{
			Name:       "searchModels",
			Parameters: json.RawMessage(`{"type":"object"}`),
			Execute: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
				return "ok", nil
			},
		}},
		Options: []llm.GenerateOption{llm.WithMaxSteps(2)},
	}, collect(&events))
	require.NoError(t, err)

	assert.Len(t, *requests, 2)
	assert.Equal(t, "max-steps", events[len(events)-1].FinishReason)
}
