// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package ingest

import (
	"fmt"

	"github.com/scrivo-dev/scrivo/internal/store"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits document text into fixed-size overlapping windows. The
// split is deterministic for a given text and configuration, and chunk ids
// are derived from the document id and window position, so re-upserting a
// document reproduces the same chunks.
type Chunker struct {
	chunkSize int
	overlap   int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the window size in runes.
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in runes.
func WithOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker creates a Chunker with the given options.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave the window moving forward.
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Split chunks a document's text. Embeddings are left unset; the upsert
// service fills them in before storage.
func (c *Chunker) Split(doc store.Document) []*store.Chunk {
	if doc.Text == "" {
		return nil
	}

	runes := []rune(doc.Text)
	step := c.chunkSize - c.overlap

	var chunks []*store.Chunk
	for start, position := 0, 0; start < len(runes); start, position = start+step, position+1 {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, &store.Chunk{
			ID:   fmt.Sprintf("%s_%d", doc.ID, position),
			Text: string(runes[start:end]),
			Metadata: store.ChunkMetadata{
				DocumentMetadata: doc.Metadata,
				DocumentID:       doc.ID,
			},
		})

		if end == len(runes) {
			break
		}
	}
	return chunks
}
