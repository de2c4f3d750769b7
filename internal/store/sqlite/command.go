// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// Compile-time interface check.
var _ store.CommandStore = (*CommandStore)(nil)

// CommandStore implements store.CommandStore backed by SQLite. Every status
// transition is a conditional UPDATE keyed on the current status, so the
// claim and finish paths are compare-and-swap even with concurrent workers
// on separate connections.
//
// Timestamps are stored as Unix milliseconds so staleness comparisons in
// AbandonStale are exact.
type CommandStore struct {
	db *sql.DB
}

// NewCommandStoreWithDB initialises the commands table on an already-open
// database handle.
func NewCommandStoreWithDB(db *sql.DB) (*CommandStore, error) {
	if err := migrateCommands(db); err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "migrating commands table")
	}
	return &CommandStore{db: db}, nil
}

func migrateCommands(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS commands (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	content    TEXT NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL DEFAULT 'NEW',
	errors     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_commands_status ON commands(status, created_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *CommandStore) Close() error {
	return s.db.Close()
}

func (s *CommandStore) Create(ctx context.Context, cmd *store.Command) error {
	if cmd.ID == "" {
		return scrivoerr.New(scrivoerr.CodeStoreInvalidInput, "command id is required")
	}

	content, err := json.Marshal(cmd.Content)
	if err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeStoreInvalidInput, "marshalling command content", scrivoerr.FieldCommandID(cmd.ID))
	}

	const q = `INSERT INTO commands (id, type, content, status, errors, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		cmd.ID,
		string(cmd.Type),
		string(content),
		string(cmd.Status),
		cmd.Errors,
		cmd.CreatedAt.UnixMilli(),
		cmd.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "creating command", scrivoerr.FieldCommandID(cmd.ID))
	}
	return nil
}

func (s *CommandStore) Get(ctx context.Context, id string) (*store.Command, error) {
	const q = `SELECT id, type, content, status, errors, created_at, updated_at
FROM commands WHERE id = ?`

	return scanCommand(s.db.QueryRowContext(ctx, q, id), id)
}

func scanCommand(row *sql.Row, id string) (*store.Command, error) {
	var cmd store.Command
	var typ, content, status string
	var createdAt, updatedAt int64

	err := row.Scan(&cmd.ID, &typ, &content, &status, &cmd.Errors, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, scrivoerr.New(scrivoerr.CodeStoreCommandNotFound, "command not found", scrivoerr.FieldCommandID(id))
	}
	if err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "getting command", scrivoerr.FieldCommandID(id))
	}

	if err := json.Unmarshal([]byte(content), &cmd.Content); err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "unmarshalling command content", scrivoerr.FieldCommandID(id))
	}
	cmd.Type = store.CommandType(typ)
	cmd.Status = store.CommandStatus(status)
	cmd.CreatedAt = time.UnixMilli(createdAt).UTC()
	cmd.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &cmd, nil
}

// ClaimNext claims the oldest NEW command with a single conditional UPDATE.
// The nested SELECT and the status guard run in one statement, so two
// workers racing on the same record see exactly one winning UPDATE.
func (s *CommandStore) ClaimNext(ctx context.Context) (*store.Command, error) {
	const q = `UPDATE commands SET status = ?, updated_at = ?
WHERE id = (SELECT id FROM commands WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1)
AND status = ?
RETURNING id, type, content, status, errors, created_at, updated_at`

	now := time.Now().UTC().UnixMilli()
	row := s.db.QueryRowContext(ctx, q,
		string(store.CommandStatusProcessing), now,
		string(store.CommandStatusNew),
		string(store.CommandStatusNew),
	)

	cmd, err := scanCommand(row, "")
	if scrivoerr.IsNotFound(err) {
		return nil, nil // nothing claimable
	}
	if err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "claiming next command")
	}
	return cmd, nil
}

func (s *CommandStore) Finish(ctx context.Context, id string, status store.CommandStatus, errMsg string) error {
	if !status.Terminal() {
		return scrivoerr.Errorf(scrivoerr.CodeStoreInvalidInput, "finish requires a terminal status, got %s", status)
	}

	const q = `UPDATE commands SET status = ?, errors = ?, updated_at = ?
WHERE id = ? AND status = ?`

	result, err := s.db.ExecContext(ctx, q,
		string(status),
		errMsg,
		time.Now().UTC().UnixMilli(),
		id,
		string(store.CommandStatusProcessing),
	)
	if err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "finishing command", scrivoerr.FieldCommandID(id))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "checking rows affected", scrivoerr.FieldCommandID(id))
	}
	if rows == 0 {
		// Either unknown, or not PROCESSING anymore (reaped or finished).
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return scrivoerr.Errorf(scrivoerr.CodeStoreCommandTerminal, "command %s is not processing", id)
	}
	return nil
}

func (s *CommandStore) AbandonStale(ctx context.Context, cutoff time.Time, errMsg string) (int64, error) {
	const q = `UPDATE commands SET status = ?, errors = ?, updated_at = ?
WHERE status IN (?, ?) AND updated_at < ?`

	result, err := s.db.ExecContext(ctx, q,
		string(store.CommandStatusAbandoned),
		errMsg,
		time.Now().UTC().UnixMilli(),
		string(store.CommandStatusNew),
		string(store.CommandStatusProcessing),
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, scrivoerr.Wrap(err, scrivoerr.CodeStoreDatabaseFailure, "abandoning stale commands")
	}
	return result.RowsAffected()
}
