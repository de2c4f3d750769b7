// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface checks.
var (
	_ store.ChunkStore  = (*ChunkStore)(nil)
	_ store.VectorIndex = (*ChunkStore)(nil)
)

// ChunkStore implements store.ChunkStore and store.VectorIndex backed by
// SQLite with sqlite-vec. Chunk rows and their embedding blobs live in the
// same database so a document replace covers both in one transaction.
//
// Embeddings are scored with vec_distance_cosine over a plain blob column
// rather than a vec0 MATCH query: ranking must honour an arbitrary
// candidate id subset and break score ties by id, which the KNN virtual
// table does not guarantee.
type ChunkStore struct {
	db   *sql.DB
	dims int
}

// NewChunkStoreWithDB initialises the chunk tables on an already-open
// database handle. The caller owns the handle's lifetime; Close on the
// returned store closes it.
func NewChunkStoreWithDB(db *sql.DB, dims int) (*ChunkStore, error) {
	if err := migrateChunks(db); err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "migrating chunk tables")
	}
	return &ChunkStore{db: db, dims: dims}, nil
}

func migrateChunks(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	text        TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	source_id   TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	author      TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

CREATE TABLE IF NOT EXISTS chunk_vectors (
	id        TEXT PRIMARY KEY,
	embedding BLOB NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *ChunkStore) Close() error {
	return s.db.Close()
}

// ReplaceDocument swaps a document's chunks in one transaction. Dimension
// checks run before any write so a bad batch leaves the store unchanged.
func (s *ChunkStore) ReplaceDocument(ctx context.Context, documentID string, chunks []*store.Chunk) error {
	if documentID == "" {
		return scrivoerr.New(scrivoerr.CodeStoreInvalidInput, "document id is required")
	}
	for _, c := range chunks {
		if len(c.Embedding) != s.dims {
			return scrivoerr.Errorf(scrivoerr.CodeStoreVectorDimension,
				"chunk %s embedding has %d dimensions, store expects %d", c.ID, len(c.Embedding), s.dims)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	const delVectors = `DELETE FROM chunk_vectors WHERE id IN (SELECT id FROM chunks WHERE document_id = ?)`
	if _, err := tx.ExecContext(ctx, delVectors, documentID); err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeStoreDocumentReplaceFailed, "deleting prior vectors", scrivoerr.FieldDocumentID(documentID))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeStoreDocumentReplaceFailed, "deleting prior chunks", scrivoerr.FieldDocumentID(documentID))
	}

	const insChunk = `INSERT INTO chunks (id, document_id, text, source, source_id, url, author, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	const insVector = `INSERT INTO chunk_vectors (id, embedding) VALUES (?, ?)`

	for _, c := range chunks {
		_, err := tx.ExecContext(ctx, insChunk,
			c.ID,
			documentID,
			c.Text,
			string(c.Metadata.Source),
			c.Metadata.SourceID,
			c.Metadata.URL,
			c.Metadata.Author,
			formatTime(c.Metadata.CreatedAt),
		)
		if err != nil {
			return scrivoerr.Wrap(err, scrivoerr.CodeStoreDocumentReplaceFailed, "inserting chunk", scrivoerr.FieldChunkID(c.ID))
		}

		blob, err := sqlite_vec.SerializeFloat32(c.Embedding)
		if err != nil {
			return scrivoerr.Wrap(err, scrivoerr.CodeStoreDocumentReplaceFailed, "serializing embedding", scrivoerr.FieldChunkID(c.ID))
		}
		if _, err := tx.ExecContext(ctx, insVector, c.ID, blob); err != nil {
			return scrivoerr.Wrap(err, scrivoerr.CodeStoreDocumentReplaceFailed, "inserting vector", scrivoerr.FieldChunkID(c.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeStoreDocumentReplaceFailed, "committing document replace", scrivoerr.FieldDocumentID(documentID))
	}
	return nil
}

func (s *ChunkStore) Get(ctx context.Context, id string) (*store.Chunk, error) {
	const q = `SELECT id, document_id, text, source, source_id, url, author, created_at
FROM chunks WHERE id = ?`

	var c store.Chunk
	var src, createdAt string

	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID,
		&c.Metadata.DocumentID,
		&c.Text,
		&src,
		&c.Metadata.SourceID,
		&c.Metadata.URL,
		&c.Metadata.Author,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, scrivoerr.New(scrivoerr.CodeStoreChunkNotFound, "chunk not found", scrivoerr.FieldChunkID(id))
	}
	if err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "getting chunk", scrivoerr.FieldChunkID(id))
	}

	c.Metadata.Source = store.Source(src)
	c.Metadata.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListIDs translates the metadata filter into a WHERE clause. The stored
// created_at strings are RFC3339 in UTC, so range bounds compare correctly
// as text.
func (s *ChunkStore) ListIDs(ctx context.Context, filter *store.MetadataFilter) ([]string, error) {
	q := `SELECT id FROM chunks`
	where, args := filterClauses(filter)
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "listing chunk ids")
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "scanning chunk id")
		}
		ids = append(ids, id)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, rows.Err()
}

func filterClauses(filter *store.MetadataFilter) ([]string, []any) {
	if filter == nil {
		return nil, nil
	}

	var where []string
	var args []any
	if filter.DocumentID != "" {
		where = append(where, `document_id = ?`)
		args = append(args, filter.DocumentID)
	}
	if filter.Source != "" {
		where = append(where, `source = ?`)
		args = append(args, string(filter.Source))
	}
	if filter.SourceID != "" {
		where = append(where, `source_id = ?`)
		args = append(args, filter.SourceID)
	}
	if filter.Author != "" {
		where = append(where, `author = ?`)
		args = append(args, filter.Author)
	}
	// Date bounds fail closed on chunks without created_at.
	if !filter.StartDate.IsZero() {
		where = append(where, `created_at != '' AND created_at >= ?`)
		args = append(args, formatTime(filter.StartDate))
	}
	if !filter.EndDate.IsZero() {
		where = append(where, `created_at != '' AND created_at <= ?`)
		args = append(args, formatTime(filter.EndDate))
	}
	return where, args
}

func (s *ChunkStore) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	return s.deleteWhere(ctx, `document_id = ?`, []any{documentID})
}

func (s *ChunkStore) DeleteByFilter(ctx context.Context, filter *store.MetadataFilter) (int64, error) {
	where, args := filterClauses(filter)
	return s.deleteWhere(ctx, strings.Join(where, ` AND `), args)
}

func (s *ChunkStore) DeleteAll(ctx context.Context) error {
	_, err := s.deleteWhere(ctx, ``, nil)
	return err
}

func (s *ChunkStore) deleteWhere(ctx context.Context, where string, args []any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	suffix := ``
	if where != `` {
		suffix = ` WHERE ` + where
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE id IN (SELECT id FROM chunks`+suffix+`)`, args...); err != nil {
		return 0, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "deleting vectors")
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM chunks`+suffix, args...)
	if err != nil {
		return 0, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "deleting chunks")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "checking rows affected")
	}

	if err := tx.Commit(); err != nil {
		return 0, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "committing delete")
	}
	return n, nil
}

// Search scores candidates with vec_distance_cosine and returns cosine
// similarity (1 - distance), descending, ties by id ascending.
func (s *ChunkStore) Search(ctx context.Context, query []float32, k int, candidates []string) ([]store.VectorResult, error) {
	if len(query) != s.dims {
		return nil, scrivoerr.Errorf(scrivoerr.CodeStoreQueryDimension,
			"query vector has %d dimensions, store expects %d", len(query), s.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	if candidates != nil && len(candidates) == 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "serializing query vector")
	}

	q := `SELECT id, vec_distance_cosine(embedding, ?) AS distance FROM chunk_vectors`
	args := []any{blob}
	if candidates != nil {
		placeholders := strings.Repeat("?,", len(candidates))
		placeholders = placeholders[:len(placeholders)-1]
		q += ` WHERE id IN (` + placeholders + `)`
		for _, id := range candidates {
			args = append(args, id)
		}
	}
	q += ` ORDER BY distance ASC, id ASC LIMIT ?`
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	var results []store.VectorResult
	for rows.Next() {
		var r store.VectorResult
		var distance float64
		if err := rows.Scan(&r.ID, &distance); err != nil {
			return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "scanning vector result")
		}
		r.Score = 1 - distance
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "iterating vector results")
	}

	return results, nil
}

// formatTime serialises a time.Time to RFC3339 UTC at second precision.
// Fixed-width UTC strings compare correctly as text, which the date range
// clauses in ListIDs rely on.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// Open opens (or creates) a SQLite database with the connection options
// every scrivo store uses.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return db, nil
}
