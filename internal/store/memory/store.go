// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

// Package memory provides an in-process storage backend. It is the default
// for tests and zero-setup runs; ranking behaviour is identical to the
// sqlite backend for any store state.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

func init() {
	store.RegisterBackend("memory", func(_ string, vectorDims int) (*store.Stores, error) {
		cs := NewChunkStore(vectorDims)
		return &store.Stores{Chunks: cs, Vectors: cs, Commands: NewCommandStore()}, nil
	})
}

// Compile-time interface checks.
var (
	_ store.ChunkStore  = (*ChunkStore)(nil)
	_ store.VectorIndex = (*ChunkStore)(nil)
)

// ChunkStore holds chunks and their embeddings behind one mutex, doubling
// as the vector index. Similarity scoring copies under the read lock so
// slow math never blocks writers.
type ChunkStore struct {
	dims int

	mu     sync.RWMutex
	chunks map[string]*store.Chunk
}

// NewChunkStore creates an empty in-memory chunk store expecting
// embeddings of the given dimension.
func NewChunkStore(dims int) *ChunkStore {
	return &ChunkStore{
		dims:   dims,
		chunks: make(map[string]*store.Chunk),
	}
}

func (s *ChunkStore) ReplaceDocument(_ context.Context, documentID string, chunks []*store.Chunk) error {
	if documentID == "" {
		return scrivoerr.New(scrivoerr.CodeStoreInvalidInput, "document id is required")
	}
	for _, c := range chunks {
		if len(c.Embedding) != s.dims {
			return scrivoerr.Errorf(scrivoerr.CodeStoreVectorDimension,
				"chunk %s embedding has %d dimensions, store expects %d", c.ID, len(c.Embedding), s.dims)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chunks {
		if c.Metadata.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	for _, c := range chunks {
		cp := *c
		cp.Embedding = append([]float32(nil), c.Embedding...)
		s.chunks[c.ID] = &cp
	}
	return nil
}

func (s *ChunkStore) Get(_ context.Context, id string) (*store.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[id]
	if !ok {
		return nil, scrivoerr.New(scrivoerr.CodeStoreChunkNotFound, "chunk not found", scrivoerr.FieldChunkID(id))
	}
	cp := *c
	return &cp, nil
}

func (s *ChunkStore) ListIDs(_ context.Context, filter *store.MetadataFilter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.chunks))
	for id, c := range s.chunks {
		if filter.Matches(c.Metadata) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *ChunkStore) DeleteDocument(_ context.Context, documentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.chunks {
		if c.Metadata.DocumentID == documentID {
			delete(s.chunks, id)
			n++
		}
	}
	return n, nil
}

func (s *ChunkStore) DeleteByFilter(_ context.Context, filter *store.MetadataFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.chunks {
		if filter.Matches(c.Metadata) {
			delete(s.chunks, id)
			n++
		}
	}
	return n, nil
}

func (s *ChunkStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]*store.Chunk)
	return nil
}

func (s *ChunkStore) Close() error { return nil }

// Search brute-force scores every candidate by cosine similarity.
func (s *ChunkStore) Search(_ context.Context, query []float32, k int, candidates []string) ([]store.VectorResult, error) {
	if len(query) != s.dims {
		return nil, scrivoerr.Errorf(scrivoerr.CodeStoreQueryDimension,
			"query vector has %d dimensions, store expects %d", len(query), s.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	var allowed map[string]bool
	if candidates != nil {
		allowed = make(map[string]bool, len(candidates))
		for _, id := range candidates {
			allowed[id] = true
		}
	}

	s.mu.RLock()
	scored := make([]store.VectorResult, 0, len(s.chunks))
	for id, c := range s.chunks {
		if allowed != nil && !allowed[id] {
			continue
		}
		scored = append(scored, store.VectorResult{ID: id, Score: cosine(query, c.Embedding)})
	}
	s.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// cosine returns the cosine similarity of two equal-length vectors.
// Zero vectors score 0 rather than dividing by zero.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
