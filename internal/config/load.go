package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PathEnv names the variable that points at a YAML config file when no
// path is given explicitly.
const PathEnv = "VMCHAT_CONFIG"

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

// Load builds the configuration from defaults, an optional YAML file and
// the environment. Variables from .env fill in anything the process
// environment does not already set.
func Load(path string) (*Config, error) {
	environ := env.ToMap(os.Environ())

	dotenv, err := godotenv.Read(DotEnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", DotEnvFile, err)
	}
	for k, v := range dotenv {
		if _, ok := environ[k]; !ok {
			environ[k] = v
		}
	}

	if path == "" {
		path = environ[PathEnv]
	}
	return load(path, environ)
}

func load(path string, environ map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: maps.Clone(environ)}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Normalize user input before validation
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// readFile overlays a YAML file onto c. Keys absent from the file keep
// their current values.
func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}
