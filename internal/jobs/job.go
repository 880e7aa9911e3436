// Package jobs executes YAML job files dropped into watched folders.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/docfill/internal/fileid"
	"github.com/hyperjump/docfill/internal/models"
	"github.com/hyperjump/docfill/internal/pipeline"
	"github.com/hyperjump/docfill/internal/placeholder"
	"github.com/hyperjump/docfill/internal/values"
)

// ErrUnchanged is returned when a job file has already run with the same content.
var ErrUnchanged = errors.New("job file unchanged since last run")

// Job is one render-and-export request. Relative paths resolve against the
// directory of the job file.
type Job struct {
	Template   string            `yaml:"template"`
	Values     map[string]string `yaml:"values"`
	ValuesFile string            `yaml:"values_file"`
	Row        int               `yaml:"row"`
	Format     string            `yaml:"format"`
	Output     string            `yaml:"output"`
}

// ParseJob decodes a job file and resolves its paths against baseDir.
func ParseJob(data []byte, baseDir string) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	if job.Template == "" {
		return nil, errors.New("job has no template")
	}
	if _, err := models.ParseFormat(job.Format); err != nil {
		return nil, err
	}
	job.Template = resolve(job.Template, baseDir)
	job.ValuesFile = resolve(job.ValuesFile, baseDir)
	job.Output = resolve(job.Output, baseDir)
	return &job, nil
}

func resolve(p, baseDir string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// ValueMap merges the values file (if any) with the inline values; inline wins.
func (j *Job) ValueMap() (models.ValueMap, error) {
	out := models.ValueMap{}
	if j.ValuesFile != "" {
		fromFile, err := values.LoadFile(j.ValuesFile, j.Row)
		if err != nil {
			return nil, err
		}
		out.Merge(fromFile)
	}
	out.Merge(j.Values)
	return out, nil
}

// Processor runs job files through a pipeline.Service.
type Processor struct {
	svc    *pipeline.Service
	logger *zap.Logger

	mu   sync.Mutex
	seen map[string]string
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(l *zap.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor returns a processor exporting through svc.
func NewProcessor(svc *pipeline.Service, opts ...ProcessorOption) *Processor {
	p := &Processor{svc: svc, logger: zap.NewNop(), seen: make(map[string]string)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle runs the job at path. A file whose content already ran returns ErrUnchanged.
func (p *Processor) Handle(ctx context.Context, path string) (*models.RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	key, hash := fileid.PathKey(path), fileid.ContentHash(data)
	p.mu.Lock()
	if p.seen[key] == hash {
		p.mu.Unlock()
		return nil, ErrUnchanged
	}
	p.mu.Unlock()

	job, err := ParseJob(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	vals, err := job.ValueMap()
	if err != nil {
		return nil, err
	}
	format, _ := models.ParseFormat(job.Format)
	rec, err := p.svc.RenderAndExport(ctx, pipeline.Source{Path: job.Template}, vals, format, job.Output)
	if err != nil {
		return nil, err
	}

	if unused := placeholder.Unused(rec.Placeholders, vals); len(unused) > 0 {
		p.logger.Warn("job values match no placeholder", zap.String("job", path), zap.Strings("keys", unused))
	}

	p.mu.Lock()
	p.seen[key] = hash
	p.mu.Unlock()
	return rec, nil
}

// HandleFunc adapts Handle to a watcher callback that logs the outcome.
func (p *Processor) HandleFunc(ctx context.Context) func(path string) {
	return func(path string) {
		rec, err := p.Handle(ctx, path)
		switch {
		case errors.Is(err, ErrUnchanged):
			p.logger.Debug("job skipped, unchanged", zap.String("job", path))
		case err != nil:
			p.logger.Error("job failed", zap.String("job", path), zap.Error(err))
		default:
			p.logger.Info("job completed",
				zap.String("job", path),
				zap.String("run_id", rec.ID),
				zap.String("output", rec.OutputPath),
			)
		}
	}
}
