// Package config provides configuration loading and structs for docfill.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/docfill/internal/convert"
)

// Environment variables that override the config file.
const (
	EnvConverterPrimary  = "DOCFILL_CONVERTER_PRIMARY"
	EnvConverterFallback = "DOCFILL_CONVERTER_FALLBACK"
	EnvOutputDir         = "DOCFILL_OUTPUT_DIR"
	EnvTempDir           = "DOCFILL_TEMP_DIR"
	EnvDebug             = "DOCFILL_DEBUG"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogFile   string          `yaml:"log_file"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Converter ConverterConfig `yaml:"converter"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the journal database path and the default output directory.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	OutputDir    string `yaml:"output_dir"`
}

// ConverterConfig holds LibreOffice settings. Commands is keyed by GOOS.
type ConverterConfig struct {
	TempDir      string                     `yaml:"temp_dir"`
	VerifyOutput *bool                      `yaml:"verify_output"`
	Commands     map[string]convert.Command `yaml:"commands"`
}

// VerifyOrDefault reports whether converter output is checked; defaults to true when unset.
func (c *ConverterConfig) VerifyOrDefault() bool {
	if c.VerifyOutput != nil {
		return *c.VerifyOutput
	}
	return true
}

// JobsConfig holds the watched job folders.
type JobsConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (j *JobsConfig) RecursiveOrDefault() bool {
	if j.Recursive != nil {
		return *j.Recursive
	}
	return true
}

// ConverterCommand returns the command pair configured for goos.
func (c *Config) ConverterCommand(goos string) convert.Command {
	if cmd, ok := c.Converter.Commands[goos]; ok && cmd.Primary != "" {
		return cmd
	}
	return convert.CommandFor(goos)
}

// Load reads and parses the config file at path, applies defaults and
// environment overrides, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := finish(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// Relative paths resolve against the working directory.
func Default() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	var cfg Config
	if err := finish(&cfg, cwd); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config, configDir string) error {
	ApplyDefaults(cfg)
	if err := ApplyEnv(cfg, runtime.GOOS, os.Getenv); err != nil {
		return err
	}
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.OutputDir = expandPath(cfg.Storage.OutputDir, configDir)
	if cfg.Converter.TempDir != "" {
		cfg.Converter.TempDir = expandPath(cfg.Converter.TempDir, configDir)
	}
	if cfg.LogFile != "" {
		cfg.LogFile = expandPath(cfg.LogFile, configDir)
	}
	for i := range cfg.Jobs.Directories {
		cfg.Jobs.Directories[i] = expandPath(cfg.Jobs.Directories[i], configDir)
	}
	return nil
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables read through getenv.
// Converter overrides apply to the goos entry.
func ApplyEnv(cfg *Config, goos string, getenv func(string) string) error {
	primary, fallback := getenv(EnvConverterPrimary), getenv(EnvConverterFallback)
	if primary != "" || fallback != "" {
		cmd := cfg.ConverterCommand(goos)
		if primary != "" {
			cmd.Primary = primary
		}
		if fallback != "" {
			cmd.Fallback = fallback
		}
		if cfg.Converter.Commands == nil {
			cfg.Converter.Commands = map[string]convert.Command{}
		}
		cfg.Converter.Commands[goos] = cmd
	}
	if v := getenv(EnvOutputDir); v != "" {
		cfg.Storage.OutputDir = v
	}
	if v := getenv(EnvTempDir); v != "" {
		cfg.Converter.TempDir = v
	}
	if v := getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvDebug, v, err)
		}
		cfg.Debug = debug
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
