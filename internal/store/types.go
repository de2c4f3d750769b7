// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package store

import "time"

// --- Document and chunk types ---

// Source identifies where an ingested document came from.
type Source string

const (
	SourceEmail Source = "EMAIL"
	SourceFile  Source = "FILE"
	SourceChat  Source = "CHAT"
)

// Valid reports whether s is a known source value. The empty string is
// accepted because metadata fields are optional on ingest.
func (s Source) Valid() bool {
	switch s {
	case "", SourceEmail, SourceFile, SourceChat:
		return true
	}
	return false
}

// DocumentMetadata describes an ingested document. All fields are optional.
type DocumentMetadata struct {
	Source    Source    `json:"source,omitempty"`
	SourceID  string    `json:"source_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// ChunkMetadata is document metadata plus the owning document id.
type ChunkMetadata struct {
	DocumentMetadata
	DocumentID string `json:"document_id,omitempty"`
}

// Chunk is the atomic retrievable unit: a span of document text with its
// embedding and metadata. Chunks are immutable once stored; they are only
// replaced wholesale when their document is re-upserted, or removed by a
// cascading delete on the document id.
type Chunk struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Embedding []float32     `json:"embedding,omitempty"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// Document is the ingest input unit. An absent ID is generated by the
// upsert service; re-upserting the same ID replaces the prior chunks.
type Document struct {
	ID       string           `json:"id,omitempty"`
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata,omitzero"`
}

// --- Query types ---

// MetadataFilter is a conjunctive predicate over chunk metadata. Zero-valued
// fields impose no constraint. The date range is inclusive on both ends.
type MetadataFilter struct {
	DocumentID string    `json:"document_id,omitempty"`
	Source     Source    `json:"source,omitempty"`
	SourceID   string    `json:"source_id,omitempty"`
	Author     string    `json:"author,omitempty"`
	StartDate  time.Time `json:"start_date,omitzero"`
	EndDate    time.Time `json:"end_date,omitzero"`
}

// Matches reports whether chunk metadata satisfies every constraint the
// filter carries. A nil filter matches everything. Date bounds fail closed:
// a chunk without created_at is excluded when either bound is set.
func (f *MetadataFilter) Matches(m ChunkMetadata) bool {
	if f == nil {
		return true
	}
	if f.DocumentID != "" && m.DocumentID != f.DocumentID {
		return false
	}
	if f.Source != "" && m.Source != f.Source {
		return false
	}
	if f.SourceID != "" && m.SourceID != f.SourceID {
		return false
	}
	if f.Author != "" && m.Author != f.Author {
		return false
	}
	if !f.StartDate.IsZero() || !f.EndDate.IsZero() {
		if m.CreatedAt.IsZero() {
			return false
		}
		if !f.StartDate.IsZero() && m.CreatedAt.Before(f.StartDate) {
			return false
		}
		if !f.EndDate.IsZero() && m.CreatedAt.After(f.EndDate) {
			return false
		}
	}
	return true
}

// Empty reports whether the filter carries no constraints.
func (f *MetadataFilter) Empty() bool {
	if f == nil {
		return true
	}
	return f.DocumentID == "" && f.Source == "" && f.SourceID == "" &&
		f.Author == "" && f.StartDate.IsZero() && f.EndDate.IsZero()
}

// DefaultTopK is the number of results returned when a query does not set top_k.
const DefaultTopK = 3

// Query is one similarity search in a batch.
type Query struct {
	Query  string          `json:"query"`
	Filter *MetadataFilter `json:"filter,omitempty"`
	TopK   int             `json:"top_k,omitempty"`
}

// ScoredChunk is a chunk projected for query responses: document metadata
// (without the grouping id) plus a cosine similarity score in [-1, 1].
type ScoredChunk struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
	Score    float64          `json:"score"`
}

// QueryResult pairs one input query with its ranked results. Error is set
// when this query failed; the rest of the batch is unaffected.
type QueryResult struct {
	Query   string        `json:"query"`
	Results []ScoredChunk `json:"results"`
	Error   string        `json:"error,omitempty"`
}

// VectorResult is a single hit from a vector similarity search.
type VectorResult struct {
	ID    string
	Score float64 // Cosine similarity: higher = more similar; 1.0 = identical direction.
}

// --- Command types ---

// CommandType identifies the note operation a command performs.
type CommandType string

const (
	CommandCreateNote CommandType = "CREATE_NOTE"
	CommandModifyNote CommandType = "MODIFY_NOTE"
	CommandDeleteNote CommandType = "DELETE_NOTE"
)

// Valid reports whether t is a known command type.
func (t CommandType) Valid() bool {
	switch t {
	case CommandCreateNote, CommandModifyNote, CommandDeleteNote:
		return true
	}
	return false
}

// CommandStatus is the lifecycle state of a command.
type CommandStatus string

const (
	CommandStatusNew        CommandStatus = "NEW"
	CommandStatusProcessing CommandStatus = "PROCESSING"
	CommandStatusCompleted  CommandStatus = "COMPLETED"
	CommandStatusAbandoned  CommandStatus = "ABANDONED"
	CommandStatusError      CommandStatus = "ERROR"
)

// Terminal reports whether no further transition can leave s.
func (s CommandStatus) Terminal() bool {
	switch s {
	case CommandStatusCompleted, CommandStatusAbandoned, CommandStatusError:
		return true
	}
	return false
}

// validCommandTransitions is the command state machine as an adjacency list.
var validCommandTransitions = map[CommandStatus]map[CommandStatus]bool{
	CommandStatusNew: {
		CommandStatusProcessing: true,
		CommandStatusAbandoned:  true,
	},
	CommandStatusProcessing: {
		CommandStatusCompleted: true,
		CommandStatusAbandoned: true,
		CommandStatusError:     true,
	},
	CommandStatusCompleted: {},
	CommandStatusAbandoned: {},
	CommandStatusError:     {},
}

// ValidCommandTransition reports whether a command may move from one status
// to another. Terminal states have no outgoing transitions.
func ValidCommandTransition(from, to CommandStatus) bool {
	allowed, exists := validCommandTransitions[from][to]
	return exists && allowed
}

// CommandContent is the note payload a command carries.
type CommandContent struct {
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata,omitzero"`
}

// Command is a durable note-mutation record. Status is owned exclusively by
// the command queue; once terminal the record is immutable.
type Command struct {
	ID        string         `json:"id"`
	Type      CommandType    `json:"type"`
	Content   CommandContent `json:"content"`
	Status    CommandStatus  `json:"status"`
	Errors    string         `json:"errors,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
