// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

// Package search orchestrates batched similarity queries: embed the query
// text, narrow candidates by metadata, rank by cosine similarity.
package search

import (
	"context"
	"log/slog"
	"sync"

	"github.com/scrivo-dev/scrivo/internal/embed"
	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// Engine runs query batches against the chunk store and vector index.
type Engine struct {
	embedder embed.Embedder
	chunks   store.ChunkStore
	index    store.VectorIndex
}

// NewEngine creates a query engine.
func NewEngine(embedder embed.Embedder, chunks store.ChunkStore, index store.VectorIndex) *Engine {
	return &Engine{embedder: embedder, chunks: chunks, index: index}
}

// RunQueries executes every query in the batch concurrently. The returned
// slice is positionally aligned with the input regardless of completion
// order, and a failing query only marks its own result's Error field.
func (e *Engine) RunQueries(ctx context.Context, queries []store.Query) []store.QueryResult {
	results := make([]store.QueryResult, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q store.Query) {
			defer wg.Done()
			results[i] = e.runOne(ctx, q)
		}(i, q)
	}
	wg.Wait()

	return results
}

func (e *Engine) runOne(ctx context.Context, q store.Query) store.QueryResult {
	result := store.QueryResult{Query: q.Query, Results: []store.ScoredChunk{}}

	topK := q.TopK
	if topK == 0 {
		topK = store.DefaultTopK
	}
	if topK < 0 {
		result.Error = scrivoerr.Errorf(scrivoerr.CodeSearchQueryInvalid, "top_k must be positive, got %d", topK).Error()
		return result
	}
	if q.Query == "" {
		result.Error = scrivoerr.New(scrivoerr.CodeSearchQueryInvalid, "query text is required").Error()
		return result
	}

	vec, err := e.embedder.Embed(ctx, q.Query)
	if err != nil {
		slog.Warn("query embedding failed", "query", q.Query, "error", err)
		result.Error = err.Error()
		return result
	}

	// A nil candidate slice means unrestricted; an explicit filter always
	// narrows first so ranking cost tracks filter selectivity.
	var candidates []string
	if !q.Filter.Empty() {
		candidates, err = e.chunks.ListIDs(ctx, q.Filter)
		if err != nil {
			result.Error = err.Error()
			return result
		}
	}

	hits, err := e.index.Search(ctx, vec, topK, candidates)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	for _, hit := range hits {
		chunk, err := e.chunks.Get(ctx, hit.ID)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Results = append(result.Results, store.ScoredChunk{
			ID:       chunk.ID,
			Text:     chunk.Text,
			Metadata: chunk.Metadata.DocumentMetadata,
			Score:    hit.Score,
		})
	}
	return result
}
