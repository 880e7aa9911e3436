// Package cli provides output helpers for the docfill command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/docfill/internal/models"
	"github.com/hyperjump/docfill/internal/pipeline"
	"github.com/hyperjump/docfill/internal/placeholder"
	"github.com/hyperjump/docfill/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json" or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteFields writes the placeholder names found in template.
func WriteFields(w io.Writer, template string, names []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"template": template, "placeholders": nonNil(names)})
	}
	if len(names) == 0 {
		fmt.Fprintf(w, "No placeholders found in %s\n", template)
		return nil
	}
	fmt.Fprintf(w, "%d placeholder(s) in %s:\n", len(names), template)
	for _, n := range names {
		fmt.Fprintf(w, "  {%s}\n", n)
	}
	return nil
}

// WritePreview writes the text of a rendered document. maxLen bounds the
// text in text mode; 0 prints it whole.
func WritePreview(w io.Writer, p *pipeline.Preview, maxLen int, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{
			"text":         p.Text,
			"placeholders": nonNil(p.Placeholders),
			"unresolved":   nonNil(p.Unresolved),
		})
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, utils.Truncate(p.Text, maxLen))
	fmt.Fprintln(w, rule)
	if len(p.Unresolved) > 0 {
		fmt.Fprintf(w, "Unresolved: %s\n", strings.Join(p.Unresolved, ", "))
	}
	return nil
}

// WriteRun writes the result of an export.
func WriteRun(w io.Writer, rec *models.RunRecord, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rec)
	}
	fmt.Fprintf(w, "Wrote %s (%s, %d bytes, %dms)\n", rec.OutputPath, rec.Format, rec.Bytes, rec.DurationMillis)
	if len(rec.UnresolvedValues) > 0 {
		fmt.Fprintf(w, "Left unfilled: %s\n", strings.Join(rec.UnresolvedValues, ", "))
	}
	return nil
}

// WriteHistory writes journaled runs, newest first.
func WriteHistory(w io.Writer, runs []*models.RunRecord, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.RunRecord{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %-4s  %-30s -> %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			shortID(r.ID),
			r.Format,
			utils.Truncate(r.TemplateName, 27),
			r.OutputPath,
		)
	}
	return nil
}

// WriteStatus writes converter availability and journal size.
func WriteStatus(w io.Writer, st *pipeline.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{
			"status":              st,
			"converter_available": st.ConverterAvailable(),
		})
	}
	fmt.Fprintln(w, "Converter:")
	if len(st.Converter) == 0 {
		fmt.Fprintln(w, "  (none configured)")
	}
	for _, c := range st.Converter {
		if c.Found {
			fmt.Fprintf(w, "  %-8s %s -> %s\n", c.Role, c.Command, c.Resolved)
		} else {
			fmt.Fprintf(w, "  %-8s %s (not found)\n", c.Role, c.Command)
		}
	}
	if !st.ConverterAvailable() {
		fmt.Fprintln(w, "  PDF export unavailable: install LibreOffice or set converter.commands in config")
	}
	fmt.Fprintf(w, "Runs recorded: %d\n", st.Runs)
	fmt.Fprintf(w, "Output dir:    %s (%s)\n", st.OutputDir, FormatBytes(st.OutputBytes))
	return nil
}

// WarnUnused reports values whose key names no placeholder, with the
// closest placeholder when one is near.
func WarnUnused(w io.Writer, names []string, values models.ValueMap) {
	for _, k := range placeholder.Unused(names, values) {
		if s := placeholder.Suggest(k, names); s != "" {
			fmt.Fprintf(w, "Warning: value %q matches no placeholder (did you mean %q?)\n", k, s)
			continue
		}
		fmt.Fprintf(w, "Warning: value %q matches no placeholder\n", k)
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
