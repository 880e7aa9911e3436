package config

import "github.com/hyperjump/docfill/internal/convert"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	// Home-relative; expanded by Load.
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".docfill/runs.db"
	}
	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = "Documents/docfill"
	}
	if cfg.Converter.VerifyOutput == nil {
		t := true
		cfg.Converter.VerifyOutput = &t
	}
	if cfg.Converter.Commands == nil {
		cfg.Converter.Commands = make(map[string]convert.Command, len(convert.Commands))
	}
	for goos, cmd := range convert.Commands {
		if cur, ok := cfg.Converter.Commands[goos]; !ok || cur.Primary == "" {
			cfg.Converter.Commands[goos] = cmd
		}
	}
	if len(cfg.Jobs.Directories) > 0 && cfg.Jobs.Recursive == nil {
		t := true
		cfg.Jobs.Recursive = &t
	}
}
