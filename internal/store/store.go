// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package store

import (
	"context"
	"time"
)

// ChunkStore is the durable chunk mapping: id to (text, metadata, embedding).
type ChunkStore interface {
	// ReplaceDocument atomically swaps the stored chunks for a document:
	// prior chunks for documentID are removed and the given chunks inserted
	// in one step. Every chunk embedding must match the configured dimension
	// or the call fails with a dimension_mismatch code and the store is
	// left unchanged.
	ReplaceDocument(ctx context.Context, documentID string, chunks []*Chunk) error

	// Get returns the chunk with the given id, or a not_found code.
	Get(ctx context.Context, id string) (*Chunk, error)

	// ListIDs returns the ids of chunks matching the filter, ascending.
	// A nil or empty filter returns every stored chunk id.
	ListIDs(ctx context.Context, filter *MetadataFilter) ([]string, error)

	// DeleteDocument removes all chunks for a document id and reports how
	// many were removed. Deleting an unknown document is not an error.
	DeleteDocument(ctx context.Context, documentID string) (int64, error)

	// DeleteByFilter removes all chunks matching the filter.
	DeleteByFilter(ctx context.Context, filter *MetadataFilter) (int64, error)

	// DeleteAll removes every stored chunk.
	DeleteAll(ctx context.Context) error

	Close() error
}

// VectorIndex ranks stored embeddings against a query vector by cosine
// similarity. Results are descending by score with ties broken by chunk id
// ascending, so a given store state always ranks identically.
type VectorIndex interface {
	// Search returns the k nearest stored vectors. A non-nil candidates
	// slice restricts ranking to those ids; an empty non-nil slice yields
	// no results. The query vector length must match the configured
	// dimension or the call fails with a dimension_mismatch code.
	Search(ctx context.Context, query []float32, k int, candidates []string) ([]VectorResult, error)
}

// CommandStore is the durable command record store. Status transitions are
// compare-and-swap on the current status so concurrent executors can never
// double-claim or regress a record.
type CommandStore interface {
	// Create persists a command in status NEW.
	Create(ctx context.Context, cmd *Command) error

	// Get returns the command with the given id, or a not_found code.
	Get(ctx context.Context, id string) (*Command, error)

	// ClaimNext atomically claims one NEW command, moving it to PROCESSING,
	// and returns it. Returns (nil, nil) when nothing is claimable.
	ClaimNext(ctx context.Context) (*Command, error)

	// Finish moves a PROCESSING command to the given terminal status,
	// recording errMsg for ERROR outcomes. Fails with a conflict code when
	// the command is not currently PROCESSING.
	Finish(ctx context.Context, id string, status CommandStatus, errMsg string) error

	// AbandonStale moves commands stuck in NEW or PROCESSING with
	// updated_at older than the cutoff to ABANDONED, recording errMsg.
	// Returns how many records were transitioned.
	AbandonStale(ctx context.Context, cutoff time.Time, errMsg string) (int64, error)

	Close() error
}
