// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package sqlite_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrivo-dev/scrivo/internal/store/sqlite"
)

// testDir creates a temp directory for a test and returns cleanup func.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "scrivo-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDB opens a temp SQLite database closed on test cleanup.
func testDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(testDir(t), name+".db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
