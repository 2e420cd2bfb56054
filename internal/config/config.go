// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-coalesce.
//
// go-coalesce is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-coalesce is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-coalesce.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads coalesce settings from defaults, an optional YAML
// file and COALESCE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. COALESCE_JOBS or
// COALESCE_SERVE_ADDR.
const EnvPrefix = "COALESCE"

// Config is the resolved configuration.
type Config struct {
	Database    string      `mapstructure:"database"     yaml:"database"`
	LogLevel    string      `mapstructure:"log_level"    yaml:"log_level"`
	Destination string      `mapstructure:"destination"  yaml:"destination,omitempty"`
	Digests     string      `mapstructure:"digests"      yaml:"digests"`
	ClonePolicy string      `mapstructure:"clone_policy" yaml:"clone_policy"`
	Serve       ServeConfig `mapstructure:"serve"        yaml:"serve"`
	Jobs        int         `mapstructure:"jobs"         yaml:"jobs"`
}

// ServeConfig configures the HTTP ingest server.
type ServeConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "coalesce", "config.yml")
}

// New returns a viper instance carrying the defaults and environment
// bindings. Commands bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("database", defaultDatabase())
	v.SetDefault("jobs", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("destination", "")
	v.SetDefault("digests", "sha1,xxh3,crc32")
	v.SetDefault("clone_policy", "flatten")
	v.SetDefault("serve.addr", "127.0.0.1:8080")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path into v and returns the merged configuration. An empty path
// means DefaultPath. A missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !os.IsNotExist(err) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Database = ExpandHome(cfg.Database)
	cfg.Destination = ExpandHome(cfg.Destination)
	return &cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // path chosen by the user
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// ExpandHome expands a leading ~/ in a path.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func defaultDatabase() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "coalesce", "coalesce.db")
}
