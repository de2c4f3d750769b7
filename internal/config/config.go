// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/scrivo-dev/scrivo/internal/secrets"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// secretStore builds the Store used for keyring:// resolution.
var secretStore = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// Config is the top-level Scrivo configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Commands  CommandsConfig  `mapstructure:"commands"`
	Notes     NotesConfig     `mapstructure:"notes"`
}

// ServerConfig controls how Scrivo listens for connections.
type ServerConfig struct {
	Listen         string        `mapstructure:"listen"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// StorageConfig selects the storage backend and its data location.
type StorageConfig struct {
	Backend          string `mapstructure:"backend"`
	Path             string `mapstructure:"path"`
	VectorDimensions int    `mapstructure:"vector_dimensions"`
}

// EmbeddingConfig holds credentials and model selection for the embedding
// provider.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Endpoint string `mapstructure:"endpoint"`
}

// IngestConfig controls document chunking.
type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// CommandsConfig controls the note command queue.
type CommandsConfig struct {
	Workers       int           `mapstructure:"workers"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	AbandonAfter  time.Duration `mapstructure:"abandon_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// NotesConfig controls where note commands write their files.
type NotesConfig struct {
	VaultDir string `mapstructure:"vault_dir"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix SCRIVO_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.listen", "127.0.0.1:8214")
	v.SetDefault("server.command_timeout", "60s")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", defaultDataDir())
	v.SetDefault("storage.vector_dimensions", 1536)
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("commands.workers", 2)
	v.SetDefault("commands.poll_interval", "1s")
	v.SetDefault("commands.abandon_after", "30s")
	v.SetDefault("commands.sweep_interval", "5s")
	v.SetDefault("notes.vault_dir", defaultVaultDir())

	// Environment
	v.SetEnvPrefix("SCRIVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, scrivoerr.Errorf(scrivoerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	// Secrets: values like embedding.api_key may be keyring://service/key
	// URIs instead of plaintext.
	secrets.ResolveViperSecrets(v, secretStore())

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateIngest()...)
	errs = append(errs, c.validateCommands()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
	} else {
		host, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
				"config: server.listen must be a valid host:port address, got %q: %w",
				c.Server.Listen, err,
			))
		} else {
			_ = host // host can be empty (e.g., ":8214"), which is valid
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	if c.Server.CommandTimeout <= 0 {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
			"config: server.command_timeout must be greater than 0, got %s",
			c.Server.CommandTimeout,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	if c.Storage.VectorDimensions <= 0 {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
			"config: storage.vector_dimensions must be greater than 0, got %d",
			c.Storage.VectorDimensions,
		))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	validProviders := map[string]bool{"openai": true, "mock": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
			"config: embedding.provider must be one of [openai, mock], got %q",
			c.Embedding.Provider,
		))
	}

	if c.Embedding.Provider == "openai" && c.Embedding.Model == "" {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
			"config: embedding.model must not be empty"))
	}

	return errs
}

func (c *Config) validateIngest() []error {
	var errs []error

	if c.Ingest.ChunkSize <= 0 {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
			"config: ingest.chunk_size must be greater than 0, got %d",
			c.Ingest.ChunkSize,
		))
	}

	if c.Ingest.ChunkOverlap < 0 {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
			"config: ingest.chunk_overlap must not be negative, got %d",
			c.Ingest.ChunkOverlap,
		))
	}

	if c.Ingest.ChunkSize > 0 && c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
			"config: ingest.chunk_overlap must be smaller than ingest.chunk_size, got %d >= %d",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize,
		))
	}

	return errs
}

func (c *Config) validateCommands() []error {
	var errs []error

	if c.Commands.Workers <= 0 {
		errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
			"config: commands.workers must be greater than 0, got %d",
			c.Commands.Workers,
		))
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"commands.poll_interval", c.Commands.PollInterval},
		{"commands.abandon_after", c.Commands.AbandonAfter},
		{"commands.sweep_interval", c.Commands.SweepInterval},
	} {
		if d.value <= 0 {
			errs = append(errs, scrivoerr.Errorf(scrivoerr.CodeConfigValidateInvalidValue,
				"config: %s must be greater than 0, got %s",
				d.name, d.value,
			))
		}
	}

	return errs
}
