// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

// Package embed wraps the external embedding model behind a narrow
// interface: text in, fixed-length vector out.
package embed

import "context"

// Embedder turns text into a fixed-length vector. Implementations must
// return vectors of exactly Dimensions() length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
