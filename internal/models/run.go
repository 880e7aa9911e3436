package models

import "time"

// RunRecord is the journal entry for one delivered pipeline run.
type RunRecord struct {
	ID               string       `json:"id" db:"id"`
	TemplateName     string       `json:"template_name" db:"template_name"`
	TemplatePath     string       `json:"template_path,omitempty" db:"template_path"`
	TemplateHash     string       `json:"template_hash" db:"template_hash"`
	Format           OutputFormat `json:"format" db:"format"`
	OutputPath       string       `json:"output_path" db:"output_path"`
	Placeholders     []string     `json:"placeholders" db:"placeholders"`
	UnresolvedValues []string     `json:"unresolved,omitempty" db:"unresolved"`
	Bytes            int64        `json:"bytes" db:"bytes"`
	DurationMillis   int64        `json:"duration_ms" db:"duration_ms"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}
