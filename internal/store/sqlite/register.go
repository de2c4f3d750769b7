// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package sqlite

import (
	"fmt"
	"path/filepath"

	"github.com/scrivo-dev/scrivo/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newStores)
}

// newStores opens one database file shared by the chunk and command stores
// so document replacement and vector writes commit together.
func newStores(dataPath string, vectorDims int) (*store.Stores, error) {
	db, err := Open(filepath.Join(dataPath, "scrivo.db"))
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}

	cs, err := NewChunkStoreWithDB(db, vectorDims)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating chunk store: %w", err)
	}

	cmds, err := NewCommandStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating command store: %w", err)
	}

	// Both stores share db; Stores.Close closes it once through the chunk
	// store, the command store's Close is then a no-op on a closed handle.
	return &store.Stores{Chunks: cs, Vectors: cs, Commands: noCloseCommandStore{cmds}}, nil
}

// noCloseCommandStore suppresses Close on a command store sharing another
// store's database handle.
type noCloseCommandStore struct {
	*CommandStore
}

func (noCloseCommandStore) Close() error { return nil }
