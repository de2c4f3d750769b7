// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// Compile-time interface check.
var _ store.CommandStore = (*CommandStore)(nil)

// CommandStore holds command records behind one mutex; claim and finish
// re-check the current status under the lock, which gives the same
// compare-and-swap guarantee the sqlite backend gets from conditional
// UPDATE statements.
type CommandStore struct {
	mu       sync.RWMutex
	commands map[string]*store.Command
}

// NewCommandStore creates an empty in-memory command store.
func NewCommandStore() *CommandStore {
	return &CommandStore{commands: make(map[string]*store.Command)}
}

func (s *CommandStore) Create(_ context.Context, cmd *store.Command) error {
	if cmd.ID == "" {
		return scrivoerr.New(scrivoerr.CodeStoreInvalidInput, "command id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.commands[cmd.ID]; exists {
		return scrivoerr.New(scrivoerr.CodeStoreCommandClaimConflict, "command already exists", scrivoerr.FieldCommandID(cmd.ID))
	}
	cp := *cmd
	s.commands[cmd.ID] = &cp
	return nil
}

func (s *CommandStore) Get(_ context.Context, id string) (*store.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cmd, ok := s.commands[id]
	if !ok {
		return nil, scrivoerr.New(scrivoerr.CodeStoreCommandNotFound, "command not found", scrivoerr.FieldCommandID(id))
	}
	cp := *cmd
	return &cp, nil
}

func (s *CommandStore) ClaimNext(_ context.Context) (*store.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Oldest NEW first, id as tiebreak, for a stable claim order.
	var next *store.Command
	for _, cmd := range s.commands {
		if cmd.Status != store.CommandStatusNew {
			continue
		}
		if next == nil || cmd.CreatedAt.Before(next.CreatedAt) ||
			(cmd.CreatedAt.Equal(next.CreatedAt) && cmd.ID < next.ID) {
			next = cmd
		}
	}
	if next == nil {
		return nil, nil
	}

	next.Status = store.CommandStatusProcessing
	next.UpdatedAt = time.Now().UTC()
	cp := *next
	return &cp, nil
}

func (s *CommandStore) Finish(_ context.Context, id string, status store.CommandStatus, errMsg string) error {
	if !status.Terminal() {
		return scrivoerr.Errorf(scrivoerr.CodeStoreInvalidInput, "finish requires a terminal status, got %s", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cmd, ok := s.commands[id]
	if !ok {
		return scrivoerr.New(scrivoerr.CodeStoreCommandNotFound, "command not found", scrivoerr.FieldCommandID(id))
	}
	if !store.ValidCommandTransition(cmd.Status, status) {
		return scrivoerr.Errorf(scrivoerr.CodeStoreCommandTerminal,
			"command %s cannot move %s -> %s", id, cmd.Status, status)
	}

	cmd.Status = status
	cmd.Errors = errMsg
	cmd.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *CommandStore) AbandonStale(_ context.Context, cutoff time.Time, errMsg string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, cmd := range s.commands {
		if cmd.Status.Terminal() || !cmd.UpdatedAt.Before(cutoff) {
			continue
		}
		cmd.Status = store.CommandStatusAbandoned
		cmd.Errors = errMsg
		cmd.UpdatedAt = time.Now().UTC()
		n++
	}
	return n, nil
}

func (s *CommandStore) Close() error { return nil }
