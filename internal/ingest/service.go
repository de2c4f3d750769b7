// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

// Package ingest turns documents into stored, embedded chunks.
package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/scrivo-dev/scrivo/internal/embed"
	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// Result reports the outcome for one document in an upsert batch. Err is
// nil on success; ID is the document id the chunks were stored under.
type Result struct {
	ID  string
	Err error
}

// Service chunks, embeds, and stores documents.
type Service struct {
	chunker  *Chunker
	embedder embed.Embedder
	chunks   store.ChunkStore
}

// NewService creates an upsert service.
func NewService(chunker *Chunker, embedder embed.Embedder, chunks store.ChunkStore) *Service {
	return &Service{chunker: chunker, embedder: embedder, chunks: chunks}
}

/// Upsert processes each document independently and concurrently: split into
// chunks, embed every chunk, then atomically replace the document's prior
// chunks. A document with any failing embedding is not stored at all; its
// failure is reported in its Result without affecting the rest of the
// batch. Results are positionally aligned with the input.
func (s *Service) Upsert(ctx context.Context, docs []store.Document) []Result {
	results := make([]Result, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc store.Document) {
			defer wg.Done()
			results[i] = s.upsertOne(ctx, doc)
		}(i, doc)
	}
	wg.Wait()

	return results
}

func (s *Service) upsertOne(ctx context.Context, doc store.Document) Result {
	if doc.Text == "" {
		return Result{Err: scrivoerr.New(scrivoerr.CodeIngestDocumentInvalid, "document text is required")}
	}
	if !doc.Metadata.Source.Valid() {
		return Result{Err: scrivoerr.Errorf(scrivoerr.CodeIngestDocumentInvalid, "unknown source %q", doc.Metadata.Source)}
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	chunks := s.chunker.Split(doc)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{ID: doc.ID, Err: scrivoerr.Wrap(err, scrivoerr.CodeIngestEmbedFailure, "embedding document", scrivoerr.FieldDocumentID(doc.ID))}
	}
	for i, c := range chunks {
		c.Embedding = vecs[i]
	}

	if err := s.chunks.ReplaceDocument(ctx, doc.ID, chunks); err != nil {
		return Result{ID: doc.ID, Err: err}
	}

	slog.Debug("upserted document", "document_id", doc.ID, "chunks", len(chunks))
	return Result{ID: doc.ID}
}
