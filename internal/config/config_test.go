package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/docfill/internal/convert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "/var/lib/docfill/runs.db"
  output_dir: "/srv/out"
converter:
  verify_output: false
  commands:
    linux:
      primary: /opt/libreoffice/program/soffice
      fallback: libreoffice
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath != "/var/lib/docfill/runs.db" || cfg.Storage.OutputDir != "/srv/out" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Converter.VerifyOrDefault() {
		t.Error("verify_output: false should be honoured")
	}
	got := cfg.ConverterCommand("linux")
	if got.Primary != "/opt/libreoffice/program/soffice" || got.Fallback != "libreoffice" {
		t.Errorf("linux command = %+v", got)
	}
	if cfg.ConverterCommand("windows") != convert.CommandFor("windows") {
		t.Errorf("windows entry should keep the default: %+v", cfg.ConverterCommand("windows"))
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_missingAndInvalid(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "server: [not, a, map")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/runs.db"
  output_dir: "./out"
converter:
  temp_dir: "./tmp"
jobs:
  directories: ["./jobs"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	checks := map[string][2]string{
		"database_path": {cfg.Storage.DatabasePath, filepath.Join(dir, "data", "runs.db")},
		"output_dir":    {cfg.Storage.OutputDir, filepath.Join(dir, "out")},
		"temp_dir":      {cfg.Converter.TempDir, filepath.Join(dir, "tmp")},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %s, want %s", name, c[0], c[1])
		}
	}
	if len(cfg.Jobs.Directories) != 1 || cfg.Jobs.Directories[0] != filepath.Join(dir, "jobs") {
		t.Errorf("jobs directories = %v", cfg.Jobs.Directories)
	}
	if !cfg.Jobs.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"./rel", "/cfg/rel"},
		{"../up", "/up"},
		{".", "/cfg"},
		{"Documents/docfill", filepath.Join(home, "Documents/docfill")},
		{"~/x", filepath.Join(home, "x")},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in, "/cfg"); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Storage.DatabasePath == "" || cfg.Storage.OutputDir == "" {
		t.Errorf("storage defaults missing: %+v", cfg.Storage)
	}
	if !cfg.Converter.VerifyOrDefault() {
		t.Error("verify_output should default to true")
	}
	for goos, want := range convert.Commands {
		if got := cfg.Converter.Commands[goos]; got != want {
			t.Errorf("commands[%s] = %+v, want %+v", goos, got, want)
		}
	}
	if cfg.Jobs.Recursive != nil {
		t.Error("recursive should stay unset without job directories")
	}
}

func TestApplyDefaults_JobsRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Jobs: JobsConfig{Directories: []string{"/tmp/jobs"}}}
	ApplyDefaults(cfg)
	if cfg.Jobs.Recursive == nil || !*cfg.Jobs.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestJobsConfig_RecursiveOrDefault(t *testing.T) {
	f := false
	if (&JobsConfig{}).RecursiveOrDefault() != true {
		t.Error("nil should mean recursive")
	}
	if (&JobsConfig{Recursive: &f}).RecursiveOrDefault() != false {
		t.Error("explicit false should be honoured")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvConverterPrimary: "/custom/soffice",
		EnvOutputDir:        "/env/out",
		EnvTempDir:          "/env/tmp",
		EnvDebug:            "true",
	}
	cfg := &Config{}
	ApplyDefaults(cfg)
	if err := ApplyEnv(cfg, "linux", func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	got := cfg.ConverterCommand("linux")
	if got.Primary != "/custom/soffice" || got.Fallback != "soffice" {
		t.Errorf("primary override should keep default fallback: %+v", got)
	}
	if cfg.ConverterCommand("darwin") != convert.CommandFor("darwin") {
		t.Error("override leaked into another OS entry")
	}
	if cfg.Storage.OutputDir != "/env/out" || cfg.Converter.TempDir != "/env/tmp" || !cfg.Debug {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestApplyEnv_fallbackOnlyWithoutCommands(t *testing.T) {
	cfg := &Config{}
	err := ApplyEnv(cfg, "windows", func(k string) string {
		if k == EnvConverterFallback {
			return "lowriter"
		}
		return ""
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.ConverterCommand("windows"); got.Primary != "soffice" || got.Fallback != "lowriter" {
		t.Errorf("got %+v", got)
	}
}

func TestApplyEnv_badDebug(t *testing.T) {
	cfg := &Config{}
	err := ApplyEnv(cfg, "linux", func(k string) string {
		if k == EnvDebug {
			return "maybe"
		}
		return ""
	})
	if err == nil {
		t.Error("expected error for unparsable DOCFILL_DEBUG")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("DOCFILL_TEST_LOADENV=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCFILL_TEST_LOADENV", "")
	_ = os.Unsetenv("DOCFILL_TEST_LOADENV")

	if err := LoadEnv(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("DOCFILL_TEST_LOADENV"); got != "from-file" {
		t.Errorf("DOCFILL_TEST_LOADENV = %q", got)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db", OutputDir: "/tmp/out"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Storage.OutputDir != "/tmp/out" {
		t.Errorf("loaded: %+v", loaded)
	}
}
