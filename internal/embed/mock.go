// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Compile-time interface check.
var _ Embedder = (*Mock)(nil)

// Mock is a deterministic embedder for tests and offline runs. Vectors are
// derived from word hashes, so identical texts embed identically and texts
// sharing words land closer together than unrelated ones.
type Mock struct {
	dims int
}

// NewMock returns a deterministic embedder of the given dimension.
func NewMock(dims int) *Mock {
	if dims <= 0 {
		dims = 384
	}
	return &Mock{dims: dims}
}

func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32())%m.dims] += 1
	}

	// Normalize to unit length for cosine similarity.
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := float32(1.0 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec, nil
}

func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (m *Mock) Dimensions() int { return m.dims }
