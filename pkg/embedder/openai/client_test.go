package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/advisor-go/pkg/core"
	openaiEmbedder "github.com/axonworks/advisor-go/pkg/embedder/openai"
)

func newEmbeddingServer(t *testing.T, status int, body string) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestEmbed(t *testing.T) {
	srv, captured := newEmbeddingServer(t, http.StatusOK,
		`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}],"model":"text-embedding-3-small"}`)

	client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{APIKey: "test-key", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)

	vec, err := client.Embed(context.Background(), "we process 2M records/day")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, vec)
	assert.Equal(t, "text-embedding-3-small", (*captured)["model"])
	assert.Equal(t, []interface{}{"we process 2M records/day"}, (*captured)["input"])
	assert.Equal(t, float64(2), (*captured)["dimensions"])
	assert.Equal(t, 2, client.Dimensions())
}

func TestDefaultDimensionsNotSent(t *testing.T) {
	vector := make([]string, 1536)
	for i := range vector {
		vector[i] = "0"
	}
	srv, captured := newEmbeddingServer(t, http.StatusOK,
		`{"data":[{"index":0,"embedding":[`+strings.Join(vector, ",")+`]}]}`)

	client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 1536, client.Dimensions())

	vec, err := client.Embed(context.Background(), "hi")
	require.NoError(t, err)
	assert.Len(t, vec, 1536)
	_, sent := (*captured)["dimensions"]
	assert.False(t, sent)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv, captured := newEmbeddingServer(t, http.StatusOK,
		`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`)

	client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "text-embedding-3-small",
		Dimensions: 512,
	})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransport)
	assert.Contains(t, err.Error(), "expected 512")
	assert.Equal(t, float64(512), (*captured)["dimensions"])

	_, err = client.EmbedBatch(context.Background(), []string{"hi"})
	assert.ErrorIs(t, err, core.ErrTransport)
}

func TestEmbedBatchOrdersByIndex(t *testing.T) {
	srv, _ := newEmbeddingServer(t, http.StatusOK,
		`{"object":"list","data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]}]}`)

	client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{APIKey: "test-key", BaseURL: srv.URL, Model: "custom", Dimensions: 1})
	require.NoError(t, err)

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}, {2}}, vecs)
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	srv, _ := newEmbeddingServer(t, http.StatusOK, `{"data":[{"index":0,"embedding":[1]}]}`)

	client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{APIKey: "test-key", BaseURL: srv.URL, Dimensions: 1})
	require.NoError(t, err)

	_, err = client.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, core.ErrTransport)
}

func TestEmbedMissingAPIKey(t *testing.T) {
	client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, core.ErrNotConfigured)

	_, err = client.EmbedBatch(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestEmbedUpstreamFailure(t *testing.T) {
	srv, _ := newEmbeddingServer(t, http.StatusUnauthorized,
		`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)

	client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransport)

	var transportErr *core.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
	assert.Contains(t, transportErr.Body, "Incorrect API key")
}
