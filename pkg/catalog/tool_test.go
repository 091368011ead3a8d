package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/advisor-go/pkg/catalog"
)

func TestToolDefinition(t *testing.T) {
	client := catalog.NewClient(&catalog.Config{})
	tool := client.Tool()

	assert.Equal(t, catalog.ToolName, tool.Name)
	assert.NotEmpty(t, tool.Description)
	assert.JSONEq(t, string(catalog.Schema()), string(tool.Parameters))
	assert.NotNil(t, tool.Execute)
}

func TestHandleSuccess(t *testing.T) {
	srv, _, _ := newCatalogServer(t, http.StatusOK, `[{"modelId":"a/model","downloads":10,"likes":1}]`)
	client := catalog.NewClient(&catalog.Config{BaseURL: srv.URL})

	out, err := client.Handle(context.Background(), json.RawMessage(`{"query":"anomaly"}`))
	require.NoError(t, err)

	res, ok := out.(catalog.ToolResult)
	require.True(t, ok)
	assert.Empty(t, res.Error)
	require.Len(t, res.Models, 1)
	assert.Contains(t, res.Summary, "a/model")
	assert.Contains(t, res.Recommendation, "a/model")
}

func TestHandleFailuresStayInResult(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		args        string
		wantCalls   int32
		errContains string
	}{
		{name: "bad json", status: http.StatusOK, args: `{"query":`, wantCalls: 0, errContains: "invalid arguments"},
		{name: "bad task", status: http.StatusOK, args: `{"query":"x","task":"painting"}`, wantCalls: 0, errContains: "unsupported task"},
		{name: "missing query", status: http.StatusOK, args: `{}`, wantCalls: 0, errContains: "query is required"},
		{name: "upstream down", status: http.StatusBadGateway, args: `{"query":"x"}`, wantCalls: 1, errContains: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls, _ := newCatalogServer(t, tt.status, `[]`)
			client := catalog.NewClient(&catalog.Config{BaseURL: srv.URL})

			out, err := client.Handle(context.Background(), json.RawMessage(tt.args))
			require.NoError(t, err)

			res := out.(catalog.ToolResult)
			assert.Contains(t, res.Error, tt.errContains)
			assert.NotEmpty(t, res.Summary)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
		})
	}
}
