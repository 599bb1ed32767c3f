// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads and persists application settings. Settings come
// from, in ascending precedence: built-in defaults, the YAML config file,
// and FERRYMAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"
)

const (
	appDirName  = "ferryman"
	fileName    = "ferryman.yaml"
	vaultName   = "vault.dat"
	logName     = "ferryman.log"
	hostsDBName = "known_hosts.db"
)

// Config is the resolved application configuration.
type Config struct {
	VaultPath        string        `mapstructure:"vault_path"`
	LogPath          string        `mapstructure:"log_path"`
	KnownHostsPath   string        `mapstructure:"known_hosts_path"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
}

// fileConfig is the on-disk shape; durations are written in their
// human-readable form.
type fileConfig struct {
	VaultPath        string `yaml:"vault_path"`
	LogPath          string `yaml:"log_path"`
	KnownHostsPath   string `yaml:"known_hosts_path"`
	ChunkSize        int    `yaml:"chunk_size"`
	ProgressInterval string `yaml:"progress_interval"`
	ConnectTimeout   string `yaml:"connect_timeout"`
}

// Dir returns the application config directory, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads the configuration from path, or from the default location
// when path is empty. A missing file is not an error; defaults and
// environment variables still apply.
func Load(path string) (Config, error) {
	var dir string
	if path == "" {
		var err error
		dir, err = Dir()
		if err != nil {
			return Config{}, err
		}
		path = filepath.Join(dir, fileName)
	} else {
		dir = filepath.Dir(path)
	}

	v := viper.New()
	v.SetDefault("vault_path", filepath.Join(dir, vaultName))
	v.SetDefault("log_path", filepath.Join(dir, logName))
	v.SetDefault("known_hosts_path", filepath.Join(dir, hostsDBName))
	v.SetDefault("chunk_size", 32*1024)
	v.SetDefault("progress_interval", "250ms")
	v.SetDefault("connect_timeout", "10s")

	v.SetEnvPrefix("FERRYMAN")
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, or to the default location when
// path is empty.
func Save(cfg Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}
	out := fileConfig{
		VaultPath:        cfg.VaultPath,
		LogPath:          cfg.LogPath,
		KnownHostsPath:   cfg.KnownHostsPath,
		ChunkSize:        cfg.ChunkSize,
		ProgressInterval: cfg.ProgressInterval.String(),
		ConnectTimeout:   cfg.ConnectTimeout.String(),
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
