// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package store

import (
	"sync"

	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// defaultVectorDimensions matches OpenAI text-embedding-3-small.
const defaultVectorDimensions = 1536

// Stores bundles the three stores a backend provides. The vector index is
// typically backed by the same database as the chunk store so document
// replacement can cover both atomically.
type Stores struct {
	Chunks   ChunkStore
	Vectors  VectorIndex
	Commands CommandStore
}

// Close closes the chunk and command stores. The vector index shares the
// chunk store's connection and has no separate lifetime.
func (s *Stores) Close() error {
	var errs []error
	if err := s.Chunks.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Commands.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return scrivoerr.Join(errs...)
	}
	return nil
}

// BackendFactory creates a backend's stores given a data directory and the
// embedding dimension.
type BackendFactory func(dataPath string, vectorDims int) (*Stores, error)

var (
	backendFactories = map[string]BackendFactory{}
	factoriesMu      sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory BackendFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	backendFactories[name] = factory
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewStores creates the stores for the configured backend. The dataPath
// directory is used to derive database file paths.
func NewStores(cfg *StorageConfig, dataPath string) (*Stores, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := backendFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, scrivoerr.Errorf(scrivoerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	dims := defaultVectorDimensions
	if cfg.VectorDimensions > 0 {
		dims = cfg.VectorDimensions
	}

	return factory(dataPath, dims)
}
