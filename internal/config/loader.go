package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the prober.
// Zero values mean "unspecified" and are replaced by Default in the CLI.
type Config struct {
	// APIBase is the base URL of the model serving API.
	APIBase string `json:"api_base" yaml:"api_base" toml:"api_base"`
	// RequestTimeoutSec bounds metadata calls.
	RequestTimeoutSec int `json:"request_timeout_sec" yaml:"request_timeout_sec" toml:"request_timeout_sec"`
	// InvokeTimeoutSec bounds inference calls; model loads are slow, so
	// the default is generous.
	InvokeTimeoutSec int `json:"invoke_timeout_sec" yaml:"invoke_timeout_sec" toml:"invoke_timeout_sec"`
	// DataDir is where result and usage files live.
	DataDir string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	// CatalogFile is the model catalog JSON produced outside this tool.
	CatalogFile string `json:"catalog_file" yaml:"catalog_file" toml:"catalog_file"`
	// SelectionFile holds the selected model:tag lines, one per line.
	SelectionFile string `json:"selection_file" yaml:"selection_file" toml:"selection_file"`
	// Granularity is the narrowing search's residual interval; 1 = exact.
	Granularity int `json:"granularity" yaml:"granularity" toml:"granularity"`
	// StatusAddr, when set, serves the read-only status API during sweeps.
	StatusAddr string `json:"status_addr" yaml:"status_addr" toml:"status_addr"`
	// CORSEnabled allows browser dashboards to read the status API.
	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	// LogLevel: debug|info|warn|error.
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Default returns the built-in configuration. OLLAMA_HOST, when set,
// overrides the API base the same way the serving CLI honors it.
func Default() Config {
	api := "http://localhost:11434"
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		api = v
	}
	return Config{
		APIBase:           api,
		RequestTimeoutSec: 30,
		InvokeTimeoutSec:  1200,
		DataDir:           ".",
		CatalogFile:       "ollama_models.json",
		SelectionFile:     "selected_tags.conf",
		Granularity:       1,
		LogLevel:          "info",
	}
}

// Merge overlays the set fields of over onto c and returns the result.
func (c Config) Merge(over Config) Config {
	if over.APIBase != "" {
		c.APIBase = over.APIBase
	}
	if over.RequestTimeoutSec > 0 {
		c.RequestTimeoutSec = over.RequestTimeoutSec
	}
	if over.InvokeTimeoutSec > 0 {
		c.InvokeTimeoutSec = over.InvokeTimeoutSec
	}
	if over.DataDir != "" {
		c.DataDir = over.DataDir
	}
	if over.CatalogFile != "" {
		c.CatalogFile = over.CatalogFile
	}
	if over.SelectionFile != "" {
		c.SelectionFile = over.SelectionFile
	}
	if over.Granularity > 0 {
		c.Granularity = over.Granularity
	}
	if over.StatusAddr != "" {
		c.StatusAddr = over.StatusAddr
	}
	if over.CORSEnabled {
		c.CORSEnabled = true
		c.CORSOrigins = append([]string(nil), over.CORSOrigins...)
	}
	if over.LogLevel != "" {
		c.LogLevel = over.LogLevel
	}
	return c
}

// RequestTimeout returns RequestTimeoutSec as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// InvokeTimeout returns InvokeTimeoutSec as a duration.
func (c Config) InvokeTimeout() time.Duration {
	return time.Duration(c.InvokeTimeoutSec) * time.Second
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
