// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

// Package notes materializes note commands on the local filesystem. It is
// the stand-in collaborator used when scrivo runs without a host
// note-taking application attached.
package notes

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// FS writes notes as markdown files under a vault directory. Note identity
// maps to a sanitized file name, so repeated creates overwrite the same
// file and deleting a missing note is a no-op, which gives the command
// executor the idempotency it requires of collaborators.
type FS struct {
	vaultDir string
}

// NewFS creates a filesystem note writer rooted at vaultDir. The directory
// is created on first use.
func NewFS(vaultDir string) *FS {
	return &FS{vaultDir: vaultDir}
}

func (f *FS) CreateNote(_ context.Context, text string, meta store.DocumentMetadata) error {
	id := meta.SourceID
	if id == "" {
		id = titleOf(text)
	}
	return f.write(id, text)
}

func (f *FS) ModifyNote(_ context.Context, id string, text string, _ store.DocumentMetadata) error {
	return f.write(id, text)
}

func (f *FS) DeleteNote(_ context.Context, id string) error {
	path, err := f.notePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return scrivoerr.Wrap(err, scrivoerr.CodeNotesDeleteFailure, "removing note file", scrivoerr.Field("note_id", id))
	}
	return nil
}

func (f *FS) write(id, text string) error {
	path, err := f.notePath(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.vaultDir, 0o755); err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeNotesWriteFailure, "creating vault directory")
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeNotesWriteFailure, "writing note file", scrivoerr.Field("note_id", id))
	}
	return nil
}

func (f *FS) notePath(id string) (string, error) {
	name := sanitize(id)
	if name == "" {
		return "", scrivoerr.New(scrivoerr.CodeNotesIDMissing, "note id is empty after sanitizing", scrivoerr.Field("note_id", id))
	}
	return filepath.Join(f.vaultDir, name+".md"), nil
}

// titleOf derives a note identity from the first line of its text.
func titleOf(text string) string {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "# "))
	if len(line) > 60 {
		line = line[:60]
	}
	return line
}

// sanitize keeps the file name inside the vault: path separators and
// traversal sequences are squashed to underscores.
func sanitize(id string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return strings.TrimSpace(replacer.Replace(id))
}
