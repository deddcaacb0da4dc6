// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the typecore CLI configuration.
//
// Configuration comes from, in increasing precedence: built-in defaults,
// the YAML file (~/.typecore/typecore.yaml unless --config names another),
// and TYPECORE_* environment variables. Command-line flags are applied by
// the CLI on top of the loaded value.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/typecore/pkg/telemetry"
)

// ErrInvalidConfig wraps every validation and decode failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Config is the typecore CLI configuration.
type Config struct {
	// LogLevel is the minimum log level: debug, info, warn or error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects console log encoding: auto, text or json.
	LogFormat string `yaml:"log_format" validate:"oneof=auto text json"`

	// LogDir additionally writes JSON logs to this directory when set.
	LogDir string `yaml:"log_dir"`

	// MetricsAddr serves /metrics on this address while a command runs.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`

	// ComplexityLimit caps the rows built by deep-product. 0 is unlimited.
	ComplexityLimit int `yaml:"complexity_limit" validate:"gte=0"`

	Telemetry telemetry.Config `yaml:"telemetry"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:        "info",
		LogFormat:       "auto",
		ComplexityLimit: 0,
		Telemetry:       telemetry.DefaultConfig(),
	}
}

// DefaultPath returns ~/.typecore/typecore.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".typecore", "typecore.yaml"), nil
}

// Load reads the configuration.
//
// Description:
//
//	Starts from DefaultConfig, overlays the YAML file, then environment
//	overrides, and validates the result. With an empty path the default
//	location is used, and a missing file there is not an error. A missing
//	file at an explicit path is.
//
// Inputs:
//
//   - path: Config file path, or "" for DefaultPath.
//
// Outputs:
//
//   - Config: The effective configuration.
//   - error: Wraps ErrInvalidConfig for decode and validation failures.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cfg against its field constraints.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// WriteDefault writes DefaultConfig as YAML to path, creating parent
// directories. An existing file is left untouched and reported through
// fs.ErrExist.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("TYPECORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TYPECORE_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("TYPECORE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("TYPECORE_COMPLEXITY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TYPECORE_COMPLEXITY_LIMIT: %w", ErrInvalidConfig, err)
		}
		cfg.ComplexityLimit = n
	}
	return nil
}
