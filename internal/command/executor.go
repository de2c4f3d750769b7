// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package command

import (
	"context"

	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// NoteWriter is the external collaborator that materializes note
// operations. Implementations must be idempotent-safe: re-running a create
// for an existing note overwrites rather than duplicates, and deleting a
// missing note is not an error. Abandoned commands may be resubmitted, so
// every operation can run more than once.
type NoteWriter interface {
	CreateNote(ctx context.Context, text string, meta store.DocumentMetadata) error
	ModifyNote(ctx context.Context, id string, text string, meta store.DocumentMetadata) error
	DeleteNote(ctx context.Context, id string) error
}

// Executor applies a claimed command through the note collaborator.
type Executor struct {
	notes NoteWriter
}

// NewExecutor creates an executor delegating to the given collaborator.
func NewExecutor(notes NoteWriter) *Executor {
	return &Executor{notes: notes}
}

// Execute dispatches on the command type. Modify and delete key the target
// note by the source_id carried in the content metadata.
func (e *Executor) Execute(ctx context.Context, cmd *store.Command) error {
	switch cmd.Type {
	case store.CommandCreateNote:
		if err := e.notes.CreateNote(ctx, cmd.Content.Text, cmd.Content.Metadata); err != nil {
			return scrivoerr.Wrap(err, scrivoerr.CodeCommandExecuteFailure, "creating note", scrivoerr.FieldCommandID(cmd.ID))
		}
		return nil

	case store.CommandModifyNote:
		id := cmd.Content.Metadata.SourceID
		if id == "" {
			return scrivoerr.New(scrivoerr.CodeNotesIDMissing, "modify requires metadata.source_id", scrivoerr.FieldCommandID(cmd.ID))
		}
		if err := e.notes.ModifyNote(ctx, id, cmd.Content.Text, cmd.Content.Metadata); err != nil {
			return scrivoerr.Wrap(err, scrivoerr.CodeCommandExecuteFailure, "modifying note", scrivoerr.FieldCommandID(cmd.ID))
		}
		return nil

	case store.CommandDeleteNote:
		id := cmd.Content.Metadata.SourceID
		if id == "" {
			return scrivoerr.New(scrivoerr.CodeNotesIDMissing, "delete requires metadata.source_id", scrivoerr.FieldCommandID(cmd.ID))
		}
		if err := e.notes.DeleteNote(ctx, id); err != nil {
			return scrivoerr.Wrap(err, scrivoerr.CodeCommandExecuteFailure, "deleting note", scrivoerr.FieldCommandID(cmd.ID))
		}
		return nil

	default:
		return scrivoerr.Errorf(scrivoerr.CodeCommandTypeUnsupported, "unknown command type %q", cmd.Type)
	}
}
