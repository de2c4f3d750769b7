// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/scrivo-dev/scrivo/internal/secrets"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

func init() {
	// Use the mock keyring so tests never touch the real OS keyring.
	keyring.MockInit()
}

func TestKeyringStoreAndRetrieve(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-store-retrieve"

	require.NoError(t, ks.Store(svc, "api-key", "sk-secret-123"))

	val, err := ks.Retrieve(svc, "api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-123", val)
}

func TestKeyringRetrieveNotFound(t *testing.T) {
	ks := secrets.NewKeyringStore()

	_, err := ks.Retrieve("no-such-service", "no-key")
	require.Error(t, err)
	assert.True(t, scrivoerr.HasCode(err, scrivoerr.CodeSecretNotFound), "got: %v", err)
}

func TestKeyringDelete(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-delete"

	require.NoError(t, ks.Store(svc, "temp-key", "temp-value"))
	require.NoError(t, ks.Delete(svc, "temp-key"))

	_, err := ks.Retrieve(svc, "temp-key")
	assert.True(t, scrivoerr.HasCode(err, scrivoerr.CodeSecretNotFound))
}

func TestKeyringDeleteNotFound(t *testing.T) {
	ks := secrets.NewKeyringStore()

	err := ks.Delete("test-delete-missing", "never-stored")
	require.Error(t, err)
	assert.True(t, scrivoerr.HasCode(err, scrivoerr.CodeSecretNotFound))
}

func TestKeyringListTracksKeys(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-list"

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, ks.Store(svc, "alpha", "1"))
	require.NoError(t, ks.Store(svc, "beta", "2"))
	// Re-storing must not duplicate the index entry.
	require.NoError(t, ks.Store(svc, "alpha", "1b"))

	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, keys)

	require.NoError(t, ks.Delete(svc, "alpha"))

	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, keys)
}

func TestKeyringRejectsEmptyServiceOrKey(t *testing.T) {
	ks := secrets.NewKeyringStore()

	assert.True(t, scrivoerr.HasCode(ks.Store("", "k", "v"), scrivoerr.CodeSecretInvalidInput))
	assert.True(t, scrivoerr.HasCode(ks.Store("svc", "", "v"), scrivoerr.CodeSecretInvalidInput))

	_, err := ks.Retrieve("svc", "")
	assert.True(t, scrivoerr.HasCode(err, scrivoerr.CodeSecretInvalidInput))

	assert.True(t, scrivoerr.HasCode(ks.Delete("", "k"), scrivoerr.CodeSecretInvalidInput))
}
