// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the guardrail service file.
//
// The file is YAML. It carries the server, logging, telemetry and result
// log settings together with the engine tunables and the pattern library,
// so a running service can be retuned by editing one file (see Watcher).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/patterns"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/telemetry"
)

// ErrInvalidFile indicates a config file that could not be parsed or
// failed validation.
var ErrInvalidFile = errors.New("invalid config file")

// File is the on-disk service configuration.
type File struct {
	Server    ServerConfig     `yaml:"server" validate:"required"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Store     StoreConfig      `yaml:"store"`
	Engine    guardrail.Config `yaml:"engine"`

	// Patterns replaces the built-in pattern library when non-empty.
	Patterns []patterns.Spec `yaml:"patterns,omitempty" validate:"dive"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// RateLimit is the sustained validate requests per second. 0 disables
	// rate limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`

	// RateBurst is the token bucket size.
	RateBurst int `yaml:"rate_burst" validate:"gte=0"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gt=0"`

	// AdminToken guards the reconfiguration and reset endpoints with a
	// bearer token. Empty leaves them open, which suits a localhost bind.
	AdminToken string `yaml:"admin_token,omitempty"`
}

// LoggingConfig configures the service logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// StoreConfig configures the result log.
type StoreConfig struct {
	// Enabled turns result logging on.
	Enabled bool `yaml:"enabled"`

	// Path is the badger directory. Empty keeps the log in memory.
	Path string `yaml:"path,omitempty"`

	// Retention drops records older than this. 0 keeps them forever.
	Retention time.Duration `yaml:"retention" validate:"gte=0"`
}

// DefaultFile returns the config used when no file exists.
func DefaultFile() File {
	return File{
		Server: ServerConfig{
			Addr:            "localhost:12230",
			RateLimit:       20,
			RateBurst:       40,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
		Store: StoreConfig{
			Enabled:   true,
			Path:      defaultStorePath(),
			Retention: 30 * 24 * time.Hour,
		},
		Engine: guardrail.DefaultConfig(),
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aleutian", "guardrail", "results")
}

var fileValidate = validator.New()

// Load reads and validates a config file.
//
// Fields missing from the file keep their DefaultFile values.
//
// Outputs:
//
//	*File - The loaded config.
//	error - ErrInvalidFile (wrapped) for parse and validation failures, or
//	        the read error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates config bytes.
func Parse(data []byte) (*File, error) {
	f := DefaultFile()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks struct tags, engine tunables and pattern specs.
func (f *File) Validate() error {
	if err := fileValidate.Struct(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if err := f.Engine.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if _, err := f.PatternSet(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return nil
}

// PatternSet compiles the configured patterns, or the built-in library when
// none are configured.
func (f *File) PatternSet() (*patterns.Set, error) {
	if len(f.Patterns) == 0 {
		return patterns.Default(), nil
	}
	return patterns.Compile(f.Patterns)
}

// Update builds the engine reconfiguration this file describes.
func (f *File) Update() (guardrail.Update, error) {
	set, err := f.PatternSet()
	if err != nil {
		return guardrail.Update{}, err
	}
	engine := f.Engine
	return guardrail.Update{Config: &engine, Patterns: set}, nil
}

// ApplyEnv overrides file values from the environment:
//
//   - GUARDRAIL_ADDR: server.addr
//   - GUARDRAIL_LOG_LEVEL: logging.level
//   - GUARDRAIL_STORE_PATH: store.path
//   - GUARDRAIL_RATE_LIMIT: server.rate_limit
//
// The result is validated again.
func (f *File) ApplyEnv() error {
	if v := os.Getenv("GUARDRAIL_ADDR"); v != "" {
		f.Server.Addr = v
	}
	if v := os.Getenv("GUARDRAIL_LOG_LEVEL"); v != "" {
		f.Logging.Level = v
	}
	if v := os.Getenv("GUARDRAIL_ADMIN_TOKEN"); v != "" {
		f.Server.AdminToken = v
	}
	if v := os.Getenv("GUARDRAIL_STORE_PATH"); v != "" {
		f.Store.Path = v
	}
	if v := os.Getenv("GUARDRAIL_RATE_LIMIT"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: GUARDRAIL_RATE_LIMIT: %w", ErrInvalidFile, err)
		}
		f.Server.RateLimit = rate
	}
	return f.Validate()
}

// WriteDefault writes DefaultFile to path, creating parent directories.
// The built-in pattern library is written out so it can be edited in place.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f := DefaultFile()
	f.Patterns = patterns.DefaultSpecs()
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultPath returns ~/.aleutian/guardrail.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".aleutian", "guardrail.yaml"), nil
}
