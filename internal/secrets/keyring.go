// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"

	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// indexSuffix is appended to the service name to form the key under which a
// JSON index of stored key names lives. go-keyring cannot enumerate keys, so
// List works off this index instead.
const indexSuffix = "::keys-index"

// KeyringStore implements Store on the OS keyring via zalando/go-keyring:
// Keychain on macOS, secret-service (D-Bus) on Linux, Credential Manager on
// Windows.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkServiceKey(service, key); err != nil {
		return err
	}

	if err := keyring.Set(service, key, value); err != nil {
		return scrivoerr.Wrapf(err, scrivoerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.indexAdd(service, key)
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkServiceKey(service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", scrivoerr.Errorf(scrivoerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", scrivoerr.Wrapf(err, scrivoerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkServiceKey(service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return scrivoerr.Errorf(scrivoerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return scrivoerr.Wrapf(err, scrivoerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.indexRemove(service, key)
}

func (s *KeyringStore) List(service string) ([]string, error) {
	return s.indexLoad(service)
}

func checkServiceKey(service, key string) error {
	if service == "" {
		return scrivoerr.New(scrivoerr.CodeSecretInvalidInput, "secret service must not be empty")
	}
	if key == "" {
		return scrivoerr.New(scrivoerr.CodeSecretInvalidInput, "secret key must not be empty")
	}
	return nil
}

func (s *KeyringStore) indexLoad(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexSuffix)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, scrivoerr.Wrapf(err, scrivoerr.CodeSecretListFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, scrivoerr.Wrapf(err, scrivoerr.CodeSecretListFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) indexSave(service string, keys []string) error {
	indexKey := service + indexSuffix

	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to remove empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return scrivoerr.Wrapf(err, scrivoerr.CodeSecretListFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return scrivoerr.Wrapf(err, scrivoerr.CodeSecretListFailure, "saving key index for service %s", service)
	}
	return nil
}

func (s *KeyringStore) indexAdd(service, key string) error {
	keys, err := s.indexLoad(service)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return s.indexSave(service, append(keys, key))
}

func (s *KeyringStore) indexRemove(service, key string) error {
	keys, err := s.indexLoad(service)
	if err != nil {
		return err
	}
	kept := keys[:0]
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	return s.indexSave(service, kept)
}
