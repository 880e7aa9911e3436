package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/docfill/internal/docerr"
)

func TestReadTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.docx")
	if err := os.WriteFile(path, []byte("archive"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadTemplate(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "archive" {
		t.Errorf("got %q", got)
	}

	_, err = ReadTemplate(filepath.Join(dir, "missing.docx"))
	if !errors.Is(err, docerr.ErrIO) {
		t.Errorf("missing template: err = %v, want IO error", err)
	}
	var de *docerr.Error
	if !errors.As(err, &de) || de.Path == "" {
		t.Errorf("IO error should carry the path: %#v", err)
	}
}

func TestWriteOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "contract.docx")

	if err := WriteOutput(path, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := WriteOutput(path, []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want overwrite", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the output file, found %d entries", len(entries))
	}
}

func TestWriteOutput_parentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	err := WriteOutput(filepath.Join(blocker, "out.pdf"), []byte("x"))
	if !errors.Is(err, docerr.ErrIO) {
		t.Errorf("err = %v, want IO error", err)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	f1 := filepath.Join(dir, "f1.txt")
	if err := os.WriteFile(f1, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(filepath.Join(sub, "inner"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "inner", "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{f1}, 5},
		{"directory recursive", []string{sub}, 3},
		{"file and dir", []string{f1, sub}, 8},
		{"missing skipped", []string{f1, filepath.Join(dir, "nonexistent"), sub}, 8},
		{"empty skipped", []string{"", f1}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}
