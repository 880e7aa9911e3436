package pipeline

import (
	"context"
	"path/filepath"

	"github.com/hyperjump/docfill/internal/extract"
	"github.com/hyperjump/docfill/internal/models"
	"github.com/hyperjump/docfill/internal/storage"
)

// Source names a template either by path or by in-memory bytes.
// Data wins when both are set.
type Source struct {
	Path string
	Name string
	Data []byte
}

// Preview is an in-memory render.
type Preview struct {
	Document     []byte
	Text         string
	Placeholders []string
	Unresolved   []string
}

// Service runs the boundary operations, each on a fresh Run.
type Service struct {
	outputDir string
	settings  settings
}

// NewService returns a Service writing default outputs to outputDir. opts
// are applied to every Run it starts.
func NewService(outputDir string, opts ...Option) *Service {
	return &Service{outputDir: outputDir, settings: newSettings(opts)}
}

// NewRun starts a run configured like the service.
func (s *Service) NewRun() *Run {
	return newRun(s.settings)
}

// DefaultOutputPath is where RenderAndExport writes when no destination is given.
func (s *Service) DefaultOutputPath(format models.OutputFormat) string {
	return filepath.Join(s.outputDir, format.DefaultFileName())
}

func (s *Service) load(ctx context.Context, src Source) (*Run, error) {
	run := s.NewRun()
	if src.Data != nil {
		name := src.Name
		if name == "" {
			name = filepath.Base(src.Path)
		}
		if err := run.LoadBytes(name, src.Data); err != nil {
			return nil, err
		}
		return run, nil
	}
	if err := run.Load(ctx, src.Path); err != nil {
		return nil, err
	}
	return run, nil
}

// ExtractPlaceholders returns the placeholder names of a template.
func (s *Service) ExtractPlaceholders(ctx context.Context, src Source) ([]string, error) {
	run, err := s.load(ctx, src)
	if err != nil {
		return nil, err
	}
	return run.Placeholders(), nil
}

// RenderPreview renders in memory without writing anything.
func (s *Service) RenderPreview(ctx context.Context, src Source, values models.ValueMap) (*Preview, error) {
	run, err := s.load(ctx, src)
	if err != nil {
		return nil, err
	}
	if _, err := run.RequestValues(); err != nil {
		return nil, err
	}
	if err := run.Render(ctx, values); err != nil {
		return nil, err
	}
	doc, err := run.Preview()
	if err != nil {
		return nil, err
	}
	text, err := extract.ParagraphText(doc)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Document:     doc,
		Text:         text,
		Placeholders: run.Placeholders(),
		Unresolved:   run.Unresolved(),
	}, nil
}

// RenderAndExport renders, converts when format is pdf, and writes the result
// to dest, or to DefaultOutputPath when dest is empty.
func (s *Service) RenderAndExport(ctx context.Context, src Source, values models.ValueMap, format models.OutputFormat, dest string) (*models.RunRecord, error) {
	run, err := s.load(ctx, src)
	if err != nil {
		return nil, err
	}
	if _, err := run.RequestValues(); err != nil {
		return nil, err
	}
	if err := run.Render(ctx, values); err != nil {
		return nil, err
	}
	if err := run.RequestFormat(format); err != nil {
		return nil, err
	}
	if run.State() == ConversionRequested {
		if err := run.Convert(ctx); err != nil {
			return nil, err
		}
	}
	if dest == "" {
		dest = s.DefaultOutputPath(format)
	}
	return run.Deliver(ctx, dest)
}

// History lists journaled runs, newest first. It returns an empty list when
// the service has no journal.
func (s *Service) History(ctx context.Context, offset, limit int) ([]*models.RunRecord, error) {
	if s.settings.journal == nil {
		return []*models.RunRecord{}, nil
	}
	return s.settings.journal.ListRuns(ctx, offset, limit)
}

// GetRun looks up one journaled run.
func (s *Service) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	if s.settings.journal == nil {
		return nil, storage.ErrRunNotFound
	}
	return s.settings.journal.GetRun(ctx, id)
}

// OutputDir returns the directory default outputs are written to.
func (s *Service) OutputDir() string { return s.outputDir }
