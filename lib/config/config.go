// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for falcond: a single
// YAML file (Default() gives every key a working value first, then
// LoadFile merges the file on top of it). falcond's command-line flags
// are parsed in cmd/falcond and do not override any key.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is falcond's full configuration.
type Config struct {
	// WorkingDirectory is where rule commands run. Defaults to the
	// PWD environment variable.
	WorkingDirectory string `yaml:"working-directory"`
	// Graph is the path to the JSONC graph file.
	Graph string `yaml:"graph"`
	// APIPort is the RPC (lib/rpc) listen port.
	APIPort int `yaml:"api-port"`
	// StreamPort is the transcript stream (lib/stream) listen port.
	StreamPort int `yaml:"stream-port"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log-level"`
	// LogDir, if set, receives a rotating JSON log file in addition
	// to the console handler.
	LogDir string `yaml:"log-dir"`
}

// Default returns a Config with every field set to falcond's
// documented default value.
func Default() *Config {
	return &Config{
		WorkingDirectory: os.Getenv("PWD"),
		Graph:            "makefile.json",
		APIPort:          4242,
		StreamPort:       4343,
		LogLevel:         "info",
	}
}

// LoadFile reads path as YAML and merges it onto Default(). A field
// absent from the file keeps its default value, since yaml.Unmarshal
// only overwrites keys actually present in the document.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if c.WorkingDirectory == "" {
		return fmt.Errorf("config: working-directory is empty and PWD is not set")
	}
	if c.Graph == "" {
		return fmt.Errorf("config: graph must not be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("config: api-port %d out of range", c.APIPort)
	}
	if c.StreamPort <= 0 || c.StreamPort > 65535 {
		return fmt.Errorf("config: stream-port %d out of range", c.StreamPort)
	}
	if c.APIPort == c.StreamPort {
		return fmt.Errorf("config: api-port and stream-port must differ")
	}
	return nil
}
