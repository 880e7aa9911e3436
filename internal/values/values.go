// Package values loads placeholder values from files and command-line assignments.
package values

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/docfill/internal/models"
)

// LoadFile reads a value map from a .yaml, .yml, .json or .xlsx file. For
// spreadsheets, row selects the data row (1 is the first row under the header).
func LoadFile(path string, row int) (models.ValueMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values file: %w", err)
	}
	return Parse(data, filepath.Ext(path), row)
}

// Parse decodes a value map from data according to ext.
func Parse(data []byte, ext string, row int) (models.ValueMap, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	case ".xlsx", ".xlsm":
		return ParseXLSX(data, "", row)
	default:
		return nil, fmt.Errorf("unsupported values file type %q (use .yaml, .json or .xlsx)", ext)
	}
}

// ParseYAML decodes a flat YAML mapping. Scalars are formatted as text;
// null becomes the empty string.
func ParseYAML(data []byte) (models.ValueMap, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML values: %w", err)
	}
	return fromRaw(raw)
}

// ParseJSON decodes a flat JSON object. Numbers keep their literal form.
func ParseJSON(data []byte) (models.ValueMap, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON values: %w", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw map[string]interface{}) (models.ValueMap, error) {
	out := make(models.ValueMap, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, err := scalar(raw[k])
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

func scalar(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case map[string]interface{}, []interface{}:
		return "", fmt.Errorf("nested values are not supported")
	default:
		return fmt.Sprint(t), nil
	}
}

// ParseXLSX reads sheet (the first sheet when empty): row 1 holds placeholder
// names, the given data row holds their values. Header cells are used verbatim;
// blank ones are ignored.
func ParseXLSX(data []byte, sheet string, row int) (models.ValueMap, error) {
	if row < 1 {
		row = 1
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	if row >= len(rows) {
		return nil, fmt.Errorf("sheet %q has no data row %d", sheet, row)
	}
	header, cells := rows[0], rows[row]
	out := make(models.ValueMap, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if i < len(cells) {
			out[name] = cells[i]
		} else {
			out[name] = ""
		}
	}
	return out, nil
}

// ParseAssignments turns "name=value" pairs into a value map. Only the first
// '=' separates; later assignments win.
func ParseAssignments(pairs []string) (models.ValueMap, error) {
	out := make(models.ValueMap, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q (want name=value)", p)
		}
		out[k] = v
	}
	return out, nil
}

// Assignments is a repeatable flag.Value collecting name=value pairs.
type Assignments []string

func (a *Assignments) String() string { return strings.Join(*a, ",") }

// Set implements flag.Value.
func (a *Assignments) Set(s string) error {
	if !strings.Contains(s, "=") {
		return fmt.Errorf("want name=value, got %q", s)
	}
	*a = append(*a, s)
	return nil
}
