package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/advisor-go/pkg/storage"
	"github.com/axonworks/advisor-go/pkg/storage/sqlite"
)

func setupSQLite(t *testing.T) *sqlite.Client {
	t.Helper()
	client, err := sqlite.NewClient(&sqlite.Config{
		DBPath:    filepath.Join(t.TempDir(), "knowledge.db"),
		TableName: "knowledge",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSQLiteInsertAndSearch(t *testing.T) {
	client := setupSQLite(t)
	ctx := context.Background()

	passages := []*storage.Passage{
		{ID: 1, Text: "Batch pipelines on Spark", Source: "wiki/data.md", Embedding: []float64{1, 0, 0}},
		{ID: 2, Text: "Fraud detection in finance", Source: "wiki/finance.md", Embedding: []float64{0, 1, 0}},
		{ID: 3, Text: "Realtime scoring for payments", Source: "wiki/payments.md", Embedding: []float64{0.1, 0.9, 0}},
	}
	for _, p := range passages {
		require.NoError(t, client.Insert(ctx, p))
	}

	n, err := client.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := client.Search(ctx, []float64{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].ID)
	assert.Equal(t, "wiki/finance.md", results[0].Source)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, int64(3), results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSQLiteDeleteAll(t *testing.T) {
	client := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, &storage.Passage{ID: 1, Text: "x", Embedding: []float64{1}}))
	require.NoError(t, client.DeleteAll(ctx))

	n, err := client.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	results, err := client.Search(ctx, []float64{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}
