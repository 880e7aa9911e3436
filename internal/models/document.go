// Package models defines the data carried through a template pipeline run.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Template is a loaded DOCX template. Data must not be modified once loaded.
type Template struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Data []byte `json:"-"`
}

// ValueMap maps placeholder names to replacement text.
type ValueMap map[string]string

// Clone returns an independent copy of m.
func (m ValueMap) Clone() ValueMap {
	out := make(ValueMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into m, overwriting existing keys.
func (m ValueMap) Merge(other ValueMap) {
	for k, v := range other {
		m[k] = v
	}
}

// OutputFormat is the export format of a run.
type OutputFormat string

const (
	FormatDOCX OutputFormat = "docx"
	FormatPDF  OutputFormat = "pdf"
)

// ParseFormat normalises s ("pdf", ".PDF", "docx") into an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "docx", "":
		return FormatDOCX, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use docx or pdf)", s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f OutputFormat) Extension() string {
	return "." + string(f)
}

// DefaultFileName is the file name offered when no destination is given.
func (f OutputFormat) DefaultFileName() string {
	return "contract" + f.Extension()
}

// RenderedDocument is a template archive after substitution.
type RenderedDocument struct {
	Data       []byte    `json:"-"`
	RenderedAt time.Time `json:"rendered_at"`
}

// ConvertedDocument is a fixed-layout rendition of a rendered document.
type ConvertedDocument struct {
	Format OutputFormat `json:"format"`
	Data   []byte       `json:"-"`
	Pages  int          `json:"pages,omitempty"`
}
