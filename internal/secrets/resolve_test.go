// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package secrets_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivo-dev/scrivo/internal/secrets"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

func TestParseKeyringURI(t *testing.T) {
	svc, key, err := secrets.ParseKeyringURI("keyring://scrivo/openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "scrivo", svc)
	assert.Equal(t, "openai-api-key", key)
}

func TestParseKeyringURIMalformed(t *testing.T) {
	for _, uri := range []string{
		"keyring://",
		"keyring://scrivo",
		"keyring:///key",
		"keyring://scrivo/",
		"sk-plaintext",
	} {
		_, _, err := secrets.ParseKeyringURI(uri)
		assert.True(t, scrivoerr.HasCode(err, scrivoerr.CodeSecretInvalidInput), "uri %q: %v", uri, err)
	}
}

func TestResolveKeyringURIPassesThroughPlainValues(t *testing.T) {
	ks := secrets.NewKeyringStore()

	val, err := secrets.ResolveKeyringURI(ks, "sk-plaintext-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-plaintext-key", val)
}

func TestResolveKeyringURIFetchesSecret(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("test-resolve", "api-key", "sk-from-keyring"))

	val, err := secrets.ResolveKeyringURI(ks, "keyring://test-resolve/api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-keyring", val)
}

func TestResolveKeyringURIMissingSecret(t *testing.T) {
	ks := secrets.NewKeyringStore()

	_, err := secrets.ResolveKeyringURI(ks, "keyring://test-resolve/absent")
	require.Error(t, err)
	assert.True(t, scrivoerr.HasCode(err, scrivoerr.CodeSecretResolveFailure))
}

func TestResolveViperSecrets(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("test-viper", "api-key", "sk-resolved"))

	v := viper.New()
	v.Set("embedding.api_key", "keyring://test-viper/api-key")
	v.Set("embedding.model", "text-embedding-3-small")
	v.Set("embedding.endpoint", "keyring://test-viper/absent")

	secrets.ResolveViperSecrets(v, ks)

	assert.Equal(t, "sk-resolved", v.GetString("embedding.api_key"))
	assert.Equal(t, "text-embedding-3-small", v.GetString("embedding.model"))
	// Unresolvable URIs are left in place.
	assert.Equal(t, "keyring://test-viper/absent", v.GetString("embedding.endpoint"))
}
