package main

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/docfill/internal/models"
	"github.com/hyperjump/docfill/internal/values"
)

func newFillFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("fill", flag.ContinueOnError)
	fs.String("format", "docx", "")
	fs.String("out", "", "")
	fs.Bool("interactive", false, "")
	var sets values.Assignments
	fs.Var(&sets, "set", "")
	return fs
}

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after template are moved first",
			args:     []string{"offer.docx", "-format", "pdf"},
			expected: []string{"-format", "pdf", "offer.docx"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-format", "pdf", "offer.docx"},
			expected: []string{"-format", "pdf", "offer.docx"},
		},
		{
			name:     "template between flags",
			args:     []string{"--format", "pdf", "t.docx", "--out", "x.pdf"},
			expected: []string{"--format", "pdf", "--out", "x.pdf", "t.docx"},
		},
		{
			name:     "bool flag does not take the template as its value",
			args:     []string{"--interactive", "t.docx", "--out", "x.pdf"},
			expected: []string{"--interactive", "--out", "x.pdf", "t.docx"},
		},
		{
			name:     "inline values stay single tokens",
			args:     []string{"--format=pdf", "t.docx", "--out=x.pdf"},
			expected: []string{"--format=pdf", "--out=x.pdf", "t.docx"},
		},
		{
			name:     "double dash ends flags",
			args:     []string{"--format", "pdf", "--", "-odd.docx"},
			expected: []string{"--format", "pdf", "-odd.docx"},
		},
		{
			name:     "template only returns unchanged",
			args:     []string{"offer.docx"},
			expected: []string{"offer.docx"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "repeated set flags after template",
			args:     []string{"offer.docx", "--set", "name=Ada", "--set", "role=engineer"},
			expected: []string{"--set", "name=Ada", "--set", "role=engineer", "offer.docx"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(newFillFlagSet(), tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReorderArgs_parsesOutAfterTemplate(t *testing.T) {
	fs := newFillFlagSet()
	if err := fs.Parse(reorderArgs(fs, []string{"--format", "pdf", "t.docx", "--out", "x.pdf"})); err != nil {
		t.Fatal(err)
	}
	if got := fs.Lookup("out").Value.String(); got != "x.pdf" {
		t.Errorf("out = %q, want %q", got, "x.pdf")
	}
	if got := fs.Args(); !reflect.DeepEqual(got, []string{"t.docx"}) {
		t.Errorf("Args() = %v, want [t.docx]", got)
	}
}

func TestGatherValues(t *testing.T) {
	dir := t.TempDir()
	valuesPath := filepath.Join(dir, "values.yaml")
	if err := os.WriteFile(valuesPath, []byte("name: Ada\nrole: engineer\n"), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := gatherValues(valuesPath, 1, []string{"role=manager", "date=Monday"})
	if err != nil {
		t.Fatal(err)
	}
	want := models.ValueMap{"name": "Ada", "role": "manager", "date": "Monday"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("gatherValues() = %v, want %v", got, want)
	}

	got, err = gatherValues("", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("gatherValues() with no sources = %v, want empty", got)
	}

	if _, err := gatherValues(filepath.Join(dir, "missing.yaml"), 1, nil); err == nil {
		t.Error("expected error for missing values file")
	}
	if _, err := gatherValues("", 1, []string{"no-equals-sign"}); err == nil {
		t.Error("expected error for malformed assignment")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_builtInWhenNoFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}
	dir := t.TempDir()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved path = %q, want built-in", resolved)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Converter.Commands["linux"].Primary != "libreoffice" {
		t.Errorf("linux converter = %+v, want libreoffice primary", cfg.Converter.Commands["linux"])
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "test.db") {
		t.Errorf("database path = %s, want relative to config dir", cfg.Storage.DatabasePath)
	}
}

func TestLoadConfig_explicitMissingFails(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}
