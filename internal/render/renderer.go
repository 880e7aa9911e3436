// Package render substitutes placeholder values into DOCX templates.
package render

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/lukasjarosch/go-docx"
	"go.uber.org/zap"

	"github.com/hyperjump/docfill/internal/docerr"
	"github.com/hyperjump/docfill/internal/extract"
	"github.com/hyperjump/docfill/internal/metrics"
	"github.com/hyperjump/docfill/internal/models"
	"github.com/hyperjump/docfill/internal/placeholder"
)

// Renderer produces a filled archive from template bytes and a value map.
// Implementations must not modify template and must be deterministic.
type Renderer interface {
	Render(ctx context.Context, template []byte, values models.ValueMap) ([]byte, error)
}

// DocxRenderer renders DOCX templates with github.com/lukasjarosch/go-docx.
// Placeholders without a value stay in the output as literal {name} text.
type DocxRenderer struct {
	logger *zap.Logger
}

// Option configures a DocxRenderer.
type Option func(*DocxRenderer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *DocxRenderer) { r.logger = l }
}

// NewDocxRenderer returns a renderer backed by go-docx.
func NewDocxRenderer(opts ...Option) *DocxRenderer {
	r := &DocxRenderer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render implements Renderer.
func (r *DocxRenderer) Render(ctx context.Context, template []byte, values models.ValueMap) (out []byte, err error) {
	defer func() { metrics.Renders.WithLabelValues(metrics.Result(err)).Inc() }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateValues(values); err != nil {
		return nil, err
	}
	// go-docx reads from the slice it is given; hand it a private copy.
	src := bytes.Clone(template)
	text, err := extract.DocumentText(src)
	if err != nil {
		return nil, err
	}
	// go-docx fails with a bare count mismatch on these.
	if err := placeholder.CheckBraces(text); err != nil {
		return nil, docerr.Malformed("render", fmt.Errorf("unbalanced or nested braces: %w", err))
	}
	doc, err := docx.OpenBytes(src)
	if err != nil {
		return nil, docerr.Malformed("render", err)
	}

	replacements := make(docx.PlaceholderMap, len(values))
	for k, v := range values {
		replacements[k] = v
	}
	if err := doc.ReplaceAll(replacements); err != nil {
		return nil, docerr.Render("render", err)
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, docerr.Render("render", fmt.Errorf("serialize: %w", err))
	}
	r.logger.Debug("template rendered",
		zap.Int("values", len(values)),
		zap.Int("template_bytes", len(template)),
		zap.Int("output_bytes", buf.Len()),
	)
	return buf.Bytes(), nil
}

// ValidateValues rejects values that cannot be stored in an XML text node
// (invalid UTF-8, C0 controls other than tab, line feed and carriage return,
// the noncharacters U+FFFE and U+FFFF) and values containing '{' or '}',
// which the replacement pass would match again. Keys are checked in sorted order.
func ValidateValues(values models.ValueMap) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := values[k]
		if !utf8.ValidString(v) {
			return docerr.Render("validate values", fmt.Errorf("value for %q is not valid UTF-8", k))
		}
		for i, c := range v {
			if c == '{' || c == '}' {
				return docerr.Render("validate values", fmt.Errorf("value for %q contains placeholder delimiter %q at byte %d", k, c, i))
			}
			if !xmlChar(c) {
				return docerr.Render("validate values", fmt.Errorf("value for %q contains forbidden character %U at byte %d", k, c, i))
			}
		}
	}
	return nil
}

func xmlChar(c rune) bool {
	switch {
	case c == '\t' || c == '\n' || c == '\r':
		return true
	case c < 0x20:
		return false
	case c == 0xFFFE || c == 0xFFFF:
		return false
	}
	return true
}
