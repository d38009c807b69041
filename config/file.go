// Package config loads the harvester's YAML configuration file and keeps the
// runtime settings that can be changed while the service runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pevans/newsharvest/fetch"
	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/logging"
	"github.com/pevans/newsharvest/target"
	"gopkg.in/yaml.v3"
)

// BackendConfig selects a storage backend.
type BackendConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// StorageConfig represents storage configuration from config file.
type StorageConfig struct {
	// Content holds accepted items and run reports.
	Content BackendConfig `yaml:"content"`
	// Metadata holds targets added at runtime and settings. Always SQLite.
	Metadata BackendConfig `yaml:"metadata"`
}

// ExtractConfig tunes the extraction chain.
type ExtractConfig struct {
	MinViableChars int  `yaml:"min_viable_chars"`
	Markdown       bool `yaml:"markdown"`
}

// EngineConfig tunes collection runs.
type EngineConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// NATSConfig enables publishing of accepted items. An empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// APIConfig configures the HTTP server of the serve command.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// FileConfig represents the structure of ~/.newsharvest/config.yaml.
type FileConfig struct {
	Storage StorageConfig   `yaml:"storage"`
	Fetch   fetch.Config    `yaml:"fetch"`
	Extract ExtractConfig   `yaml:"extract"`
	Filter  filter.Config   `yaml:"filter"`
	Engine  EngineConfig    `yaml:"engine"`
	Logging logging.Config  `yaml:"logging"`
	NATS    NATSConfig      `yaml:"nats"`
	API     APIConfig       `yaml:"api"`
	Targets []target.Target `yaml:"targets"`
}

// Dir returns ~/.newsharvest.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".newsharvest"), nil
}

// DefaultPath returns ~/.newsharvest/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the configuration used when no file exists. Storage lives
// under dir.
func Default(dir string) *FileConfig {
	return &FileConfig{
		Storage: StorageConfig{
			Content:  BackendConfig{Type: "sqlite", DSN: filepath.Join(dir, "content.db")},
			Metadata: BackendConfig{Type: "sqlite", DSN: filepath.Join(dir, "metadata.db")},
		},
		Fetch:   fetch.DefaultConfig(),
		Extract: ExtractConfig{Markdown: true},
		Filter:  filter.DefaultConfig(),
		Engine:  EngineConfig{Concurrency: 1},
		Logging: logging.DefaultConfig(),
		API:     APIConfig{Addr: ":8080"},
	}
}

// Load reads the configuration file at path over the defaults. A missing
// file is not an error; a file that exists but cannot be parsed is.
func Load(path string) (*FileConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	cfg := Default(dir)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}
