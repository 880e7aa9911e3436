package pipeline

import (
	"context"

	"github.com/hyperjump/docfill/internal/convert"
	"github.com/hyperjump/docfill/internal/storage"
)

// Status summarises converter availability and journal size.
type Status struct {
	Converter   []convert.CommandStatus `json:"converter"`
	Runs        int64                   `json:"runs"`
	OutputDir   string                  `json:"output_dir"`
	OutputBytes int64                   `json:"output_bytes"`
}

// ConverterAvailable reports whether any configured command resolves.
func (s *Status) ConverterAvailable() bool {
	for _, c := range s.Converter {
		if c.Found {
			return true
		}
	}
	return false
}

// Status checks cmd and reads journal and output directory usage.
func (s *Service) Status(ctx context.Context, cmd convert.Command) (*Status, error) {
	st := &Status{
		Converter: convert.Detect(cmd),
		OutputDir: s.outputDir,
	}
	if s.settings.journal != nil {
		n, err := s.settings.journal.CountRuns(ctx)
		if err != nil {
			return nil, err
		}
		st.Runs = n
	}
	n, err := storage.DiskUsageBytes(s.outputDir)
	if err != nil {
		return nil, err
	}
	st.OutputBytes = n
	return st, nil
}
