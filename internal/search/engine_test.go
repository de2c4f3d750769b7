// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivo-dev/scrivo/internal/embed"
	"github.com/scrivo-dev/scrivo/internal/ingest"
	"github.com/scrivo-dev/scrivo/internal/search"
	"github.com/scrivo-dev/scrivo/internal/store"
	"github.com/scrivo-dev/scrivo/internal/store/memory"
)

const testDims = 64

// seedEngine stores documents through the real ingest pipeline so engine
// tests exercise the same chunking and embeddings production uses.
func seedEngine(t *testing.T, docs []store.Document) *search.Engine {
	t.Helper()

	chunks := memory.NewChunkStore(testDims)
	embedder := embed.NewMock(testDims)
	chunker := ingest.NewChunker(ingest.WithChunkSize(200), ingest.WithOverlap(0))
	svc := ingest.NewService(chunker, embedder, chunks)

	results := svc.Upsert(context.Background(), docs)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	return search.NewEngine(embedder, chunks, chunks)
}

func TestRunQueriesFindsRelevantDocument(t *testing.T) {
	engine := seedEngine(t, []store.Document{
		{ID: "budget", Text: "quarterly budget review meeting notes and spending targets"},
		{ID: "recipe", Text: "pasta carbonara recipe with eggs pecorino and guanciale"},
		{ID: "travel", Text: "itinerary for the lisbon trip flights and hotel bookings"},
	})

	results := engine.RunQueries(context.Background(), []store.Query{
		{Query: "budget review spending", TopK: 1},
	})
	require.Len(t, results, 1)
	require.Empty(t, results[0].Error)
	require.Len(t, results[0].Results, 1)
	assert.Equal(t, "budget_0", results[0].Results[0].ID)
	assert.Greater(t, results[0].Results[0].Score, 0.0)
}

func TestRunQueriesDefaultTopK(t *testing.T) {
	engine := seedEngine(t, []store.Document{
		{ID: "a", Text: "alpha document"},
		{ID: "b", Text: "beta document"},
		{ID: "c", Text: "gamma document"},
		{ID: "d", Text: "delta document"},
	})

	results := engine.RunQueries(context.Background(), []store.Query{
		{Query: "document"},
	})
	require.Len(t, results, 1)
	assert.Len(t, results[0].Results, store.DefaultTopK)
}

func TestRunQueriesBatchOrderAndIsolation(t *testing.T) {
	engine := seedEngine(t, []store.Document{
		{ID: "a", Text: "alpha document text"},
	})

	results := engine.RunQueries(context.Background(), []store.Query{
		{Query: "alpha", TopK: 1},
		{Query: "", TopK: 1}, // invalid, fails alone
		{Query: "alpha document", TopK: 1},
	})
	require.Len(t, results, 3)

	assert.Equal(t, "alpha", results[0].Query)
	assert.Empty(t, results[0].Error)
	assert.Len(t, results[0].Results, 1)

	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[1].Results)

	assert.Empty(t, results[2].Error)
	assert.Len(t, results[2].Results, 1)
}

func TestRunQueriesNegativeTopK(t *testing.T) {
	engine := seedEngine(t, nil)

	results := engine.RunQueries(context.Background(), []store.Query{
		{Query: "anything", TopK: -2},
	})
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)
}

func TestRunQueriesAppliesMetadataFilter(t *testing.T) {
	engine := seedEngine(t, []store.Document{
		{ID: "mail", Text: "project status update", Metadata: store.DocumentMetadata{Source: store.SourceEmail}},
		{ID: "chat", Text: "project status update", Metadata: store.DocumentMetadata{Source: store.SourceChat}},
	})

	results := engine.RunQueries(context.Background(), []store.Query{
		{Query: "project status", TopK: 5, Filter: &store.MetadataFilter{Source: store.SourceChat}},
	})
	require.Len(t, results, 1)
	require.Empty(t, results[0].Error)
	require.Len(t, results[0].Results, 1)
	assert.Equal(t, "chat_0", results[0].Results[0].ID)
	assert.Equal(t, store.SourceChat, results[0].Results[0].Metadata.Source)
}

func TestRunQueriesFilterWithNoMatches(t *testing.T) {
	engine := seedEngine(t, []store.Document{
		{ID: "a", Text: "some text", Metadata: store.DocumentMetadata{Author: "ada"}},
	})

	results := engine.RunQueries(context.Background(), []store.Query{
		{Query: "some text", TopK: 3, Filter: &store.MetadataFilter{Author: "nobody"}},
	})
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.Empty(t, results[0].Results)
	assert.NotNil(t, results[0].Results)
}

func TestRunQueriesDateFilter(t *testing.T) {
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	engine := seedEngine(t, []store.Document{
		{ID: "dated", Text: "release planning notes", Metadata: store.DocumentMetadata{CreatedAt: feb}},
		{ID: "undated", Text: "release planning notes"},
	})

	// Date bounds fail closed: the undated document never matches.
	results := engine.RunQueries(context.Background(), []store.Query{
		{Query: "release planning", TopK: 5, Filter: &store.MetadataFilter{
			StartDate: feb.AddDate(0, -1, 0),
			EndDate:   feb.AddDate(0, 1, 0),
		}},
	})
	require.Len(t, results, 1)
	require.Empty(t, results[0].Error)
	require.Len(t, results[0].Results, 1)
	assert.Equal(t, "dated_0", results[0].Results[0].ID)
}

func TestRunQueriesEmptyBatch(t *testing.T) {
	engine := seedEngine(t, nil)
	results := engine.RunQueries(context.Background(), nil)
	assert.Empty(t, results)
}
