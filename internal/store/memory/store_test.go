// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivo-dev/scrivo/internal/store"
	"github.com/scrivo-dev/scrivo/internal/store/memory"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

func chunk(id, docID string, embedding []float32) *store.Chunk {
	return &store.Chunk{
		ID:        id,
		Text:      "text for " + id,
		Embedding: embedding,
		Metadata:  store.ChunkMetadata{DocumentID: docID},
	}
}

func TestReplaceDocumentStoresAndReplaces(t *testing.T) {
	ctx := context.Background()
	s := memory.NewChunkStore(3)

	require.NoError(t, s.ReplaceDocument(ctx, "doc-1", []*store.Chunk{
		chunk("doc-1_0", "doc-1", []float32{1, 0, 0}),
		chunk("doc-1_1", "doc-1", []float32{0, 1, 0}),
	}))

	got, err := s.Get(ctx, "doc-1_0")
	require.NoError(t, err)
	assert.Equal(t, "text for doc-1_0", got.Text)

	// Re-upsert replaces prior chunks wholesale, including stale ids.
	require.NoError(t, s.ReplaceDocument(ctx, "doc-1", []*store.Chunk{
		chunk("doc-1_0", "doc-1", []float32{0, 0, 1}),
	}))

	_, err = s.Get(ctx, "doc-1_1")
	require.Error(t, err)
	assert.True(t, scrivoerr.IsNotFound(err))

	ids, err := s.ListIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1_0"}, ids)
}

func TestReplaceDocumentRejectsWrongDimension(t *testing.T) {
	s := memory.NewChunkStore(3)

	err := s.ReplaceDocument(context.Background(), "doc-1", []*store.Chunk{
		chunk("doc-1_0", "doc-1", []float32{1, 0}),
	})
	require.Error(t, err)
	assert.True(t, scrivoerr.IsDimensionMismatch(err))

	// Nothing was stored.
	ids, err := s.ListIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGetMissingChunk(t *testing.T) {
	s := memory.NewChunkStore(3)
	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, scrivoerr.IsNotFound(err))
}

func TestListIDsAppliesFilter(t *testing.T) {
	ctx := context.Background()
	s := memory.NewChunkStore(2)

	c1 := chunk("a_0", "a", []float32{1, 0})
	c1.Metadata.Author = "ada"
	c2 := chunk("b_0", "b", []float32{0, 1})
	c2.Metadata.Author = "grace"
	require.NoError(t, s.ReplaceDocument(ctx, "a", []*store.Chunk{c1}))
	require.NoError(t, s.ReplaceDocument(ctx, "b", []*store.Chunk{c2}))

	ids, err := s.ListIDs(ctx, &store.MetadataFilter{Author: "ada"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a_0"}, ids)

	ids, err = s.ListIDs(ctx, &store.MetadataFilter{Author: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDeleteDocumentAndFilterAndAll(t *testing.T) {
	ctx := context.Background()
	s := memory.NewChunkStore(2)

	c1 := chunk("a_0", "a", []float32{1, 0})
	c1.Metadata.Source = store.SourceEmail
	c2 := chunk("b_0", "b", []float32{0, 1})
	c2.Metadata.Source = store.SourceChat
	require.NoError(t, s.ReplaceDocument(ctx, "a", []*store.Chunk{c1}))
	require.NoError(t, s.ReplaceDocument(ctx, "b", []*store.Chunk{c2}))

	n, err := s.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteByFilter(ctx, &store.MetadataFilter{Source: store.SourceChat})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.ReplaceDocument(ctx, "c", []*store.Chunk{chunk("c_0", "c", []float32{1, 1})}))
	require.NoError(t, s.DeleteAll(ctx))

	ids, err := s.ListIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	s := memory.NewChunkStore(2)

	require.NoError(t, s.ReplaceDocument(ctx, "d", []*store.Chunk{
		chunk("d_0", "d", []float32{1, 0}),   // identical direction
		chunk("d_1", "d", []float32{1, 1}),   // 45 degrees
		chunk("d_2", "d", []float32{-1, 0}),  // opposite
		chunk("d_3", "d", []float32{0, 0.5}), // orthogonal
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 4, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "d_0", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "d_1", results[1].ID)
	assert.Equal(t, "d_3", results[2].ID)
	assert.Equal(t, "d_2", results[3].ID)
	assert.InDelta(t, -1.0, results[3].Score, 1e-9)
}

func TestSearchTieBreaksByID(t *testing.T) {
	ctx := context.Background()
	s := memory.NewChunkStore(2)

	require.NoError(t, s.ReplaceDocument(ctx, "d", []*store.Chunk{
		chunk("d_2", "d", []float32{1, 0}),
		chunk("d_0", "d", []float32{1, 0}),
		chunk("d_1", "d", []float32{1, 0}),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "d_0", results[0].ID)
	assert.Equal(t, "d_1", results[1].ID)
	assert.Equal(t, "d_2", results[2].ID)
}

func TestSearchCandidateRestriction(t *testing.T) {
	ctx := context.Background()
	s := memory.NewChunkStore(2)

	require.NoError(t, s.ReplaceDocument(ctx, "d", []*store.Chunk{
		chunk("d_0", "d", []float32{1, 0}),
		chunk("d_1", "d", []float32{0.9, 0.1}),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 5, []string{"d_1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d_1", results[0].ID)

	// Empty non-nil candidate set means no results, not unrestricted.
	results, err = s.Search(ctx, []float32{1, 0}, 5, []string{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchRejectsWrongQueryDimension(t *testing.T) {
	s := memory.NewChunkStore(3)
	_, err := s.Search(context.Background(), []float32{1, 0}, 3, nil)
	require.Error(t, err)
	assert.True(t, scrivoerr.IsDimensionMismatch(err))
}

func TestSearchTruncatesToK(t *testing.T) {
	ctx := context.Background()
	s := memory.NewChunkStore(2)

	chunks := make([]*store.Chunk, 10)
	for i := range chunks {
		chunks[i] = chunk(fmt.Sprintf("d_%d", i), "d", []float32{1, float32(i) / 10})
	}
	require.NoError(t, s.ReplaceDocument(ctx, "d", chunks))

	results, err := s.Search(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchConcurrentWithWrites(t *testing.T) {
	ctx := context.Background()
	s := memory.NewChunkStore(2)
	require.NoError(t, s.ReplaceDocument(ctx, "d", []*store.Chunk{chunk("d_0", "d", []float32{1, 0})}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = s.ReplaceDocument(ctx, "d", []*store.Chunk{chunk("d_0", "d", []float32{1, 0})})
		}
	}()

	deadline := time.After(5 * time.Second)
	for i := 0; i < 50; i++ {
		select {
		case <-deadline:
			t.Fatal("timed out")
		default:
		}
		_, err := s.Search(ctx, []float32{0, 1}, 1, nil)
		require.NoError(t, err)
	}
	<-done
}
