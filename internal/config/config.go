// Package config holds the client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/shennong/internal/logging"
)

// ClientConfig holds configuration for the shennong client.
type ClientConfig struct {
	Server     string        `yaml:"server"`
	Bucket     string        `yaml:"bucket"`
	Region     string        `yaml:"region"`
	S3Endpoint string        `yaml:"s3_endpoint"`
	DataDir    string        `yaml:"data_dir"`
	LogLevel   string        `yaml:"log_level"`
	LogFormat  string        `yaml:"log_format"`
	Timeout    time.Duration `yaml:"timeout"`
	SchemaTTL  time.Duration `yaml:"schema_ttl"`
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Server:    "http://localhost:8000",
		Region:    "us-east-1",
		DataDir:   defaultDataDir(),
		LogLevel:  "warn",
		LogFormat: "text",
		Timeout:   30 * time.Second,
		SchemaTTL: 24 * time.Hour,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shennong"
	}
	return filepath.Join(home, ".shennong")
}

// DefaultPath is the config file read when no --config-file flag is given.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load returns the defaults overlaid by the YAML file at path. A missing
// file is not an error.
func Load(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. getenv is usually
// os.Getenv.
func (c *ClientConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv("SHENNONG_SERVER"); v != "" {
		c.Server = v
	}
	if v := getenv("BUCKET_NAME"); v != "" {
		c.Bucket = v
	}
	if v := getenv("AWS_DEFAULT_REGION"); v != "" {
		c.Region = v
	}
	if v := getenv("SHENNONG_S3_ENDPOINT"); v != "" {
		c.S3Endpoint = v
	}
	if v := getenv("SHENNONG_DATA_DIR"); v != "" {
		c.DataDir = v
	}
}

// Validate checks the fields every command depends on.
func (c ClientConfig) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", c.Server)
	}
	if c.S3Endpoint != "" {
		if u, err := url.Parse(c.S3Endpoint); err != nil || u.Host == "" {
			return fmt.Errorf("invalid s3 endpoint %q", c.S3Endpoint)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// DBPath is the workspace database inside DataDir.
func (c ClientConfig) DBPath() string {
	return filepath.Join(c.DataDir, "workspace.db")
}
