// Package extract provides plain-text access to DOCX templates and PDF renditions.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/docfill/internal/docerr"
)

// Extractor extracts plain text from template and output documents.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", docerr.IO("read document", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). An empty extension is
// treated as DOCX, the template format. DOCX paragraphs end up on separate lines.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".docx", ".docm", ".dotx", "":
		return ParagraphText(content)
	case ".pdf":
		info, err := PDFInfo(content)
		if err != nil {
			return "", err
		}
		return info.Text, nil
	default:
		return "", docerr.Malformed("extract", fmt.Errorf("unsupported document type %q", ext))
	}
}
