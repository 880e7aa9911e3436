package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docfill/internal/convert"
	"github.com/hyperjump/docfill/internal/docerr"
	"github.com/hyperjump/docfill/internal/extract"
	"github.com/hyperjump/docfill/internal/fileid"
	"github.com/hyperjump/docfill/internal/metrics"
	"github.com/hyperjump/docfill/internal/models"
	"github.com/hyperjump/docfill/internal/placeholder"
	"github.com/hyperjump/docfill/internal/render"
	"github.com/hyperjump/docfill/internal/storage"
)

// settings are the collaborators shared by every Run a Service starts.
type settings struct {
	renderer  render.Renderer
	converter convert.Converter
	journal   storage.Journal
	logger    *zap.Logger
}

// Option configures a Run or a Service.
type Option func(*settings)

// WithRenderer replaces the DOCX renderer.
func WithRenderer(r render.Renderer) Option {
	return func(s *settings) { s.renderer = r }
}

// WithConverter replaces the PDF converter.
func WithConverter(c convert.Converter) Option {
	return func(s *settings) { s.converter = c }
}

// WithJournal records delivered runs in j.
func WithJournal(j storage.Journal) Option {
	return func(s *settings) { s.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func newSettings(opts []Option) settings {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.renderer == nil {
		s.renderer = render.NewDocxRenderer(render.WithLogger(s.logger))
	}
	if s.converter == nil {
		s.converter = convert.NewOfficeConverter(convert.WithLogger(s.logger))
	}
	return s
}

// Run is one pass of a template through the pipeline. Every operation either
// advances the state or fails and leaves it unchanged. Operations on one Run
// are serialised; separate Runs share nothing.
type Run struct {
	mu sync.Mutex
	settings

	id     string
	state  State
	logger *zap.Logger
	now    func() time.Time

	template     *models.Template
	placeholders []string
	values       models.ValueMap
	rendered     *models.RenderedDocument
	format       models.OutputFormat
	converted    *models.ConvertedDocument
	loadedAt     time.Time
}

// NewRun returns a Run in AwaitingTemplate.
func NewRun(opts ...Option) *Run {
	return newRun(newSettings(opts))
}

func newRun(s settings) *Run {
	id := uuid.NewString()
	return &Run{
		settings: s,
		id:       id,
		state:    AwaitingTemplate,
		logger:   s.logger.With(zap.String("run_id", id)),
		now:      time.Now,
	}
}

// ID returns the run identifier used in the journal.
func (r *Run) ID() string { return r.id }

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Template returns the loaded template, or nil before Load.
func (r *Run) Template() *models.Template {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.template
}

// Placeholders returns the names extracted from the template.
func (r *Run) Placeholders() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.placeholders...)
}

// Unresolved returns the placeholders the last Render had no value for.
func (r *Run) Unresolved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return placeholder.Missing(r.placeholders, r.values)
}

// Load reads the template at path and extracts its placeholders.
func (r *Run) Load(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := guard("load", r.state, AwaitingTemplate); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := storage.ReadTemplate(path)
	if err != nil {
		return err
	}
	return r.load(filepath.Base(path), path, data)
}

// LoadBytes uses data as the template. The slice is copied.
func (r *Run) LoadBytes(name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := guard("load", r.state, AwaitingTemplate); err != nil {
		return err
	}
	return r.load(name, "", data)
}

func (r *Run) load(name, path string, data []byte) (err error) {
	defer func() { metrics.Extractions.WithLabelValues(metrics.Result(err)).Inc() }()

	text, err := extract.DocumentText(data)
	if err != nil {
		var de *docerr.Error
		if errors.As(err, &de) && de.Path == "" {
			de.Path = path
		}
		return err
	}
	r.template = &models.Template{Name: name, Path: path, Data: bytes.Clone(data)}
	r.placeholders = placeholder.Extract(text)
	r.loadedAt = r.now()
	r.state = Extracted
	r.logger.Debug("template loaded",
		zap.String("template", name),
		zap.Strings("placeholders", r.placeholders),
	)
	return nil
}

// RequestValues moves to AwaitingValues and returns the placeholders to collect.
func (r *Run) RequestValues() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := guard("request values", r.state, Extracted); err != nil {
		return nil, err
	}
	r.state = AwaitingValues
	return append([]string{}, r.placeholders...), nil
}

// Render substitutes values into the template. A rendered run may be
// rendered again with different values.
func (r *Run) Render(ctx context.Context, values models.ValueMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := guard("render", r.state, AwaitingValues, Rendered); err != nil {
		return err
	}
	out, err := r.renderer.Render(ctx, r.template.Data, values)
	if err != nil {
		return err
	}
	r.values = values.Clone()
	r.rendered = &models.RenderedDocument{Data: out, RenderedAt: r.now()}
	r.state = Rendered
	if missing := placeholder.Missing(r.placeholders, r.values); len(missing) > 0 {
		r.logger.Info("placeholders left unresolved", zap.Strings("placeholders", missing))
	}
	return nil
}

// Preview returns a copy of the rendered document.
func (r *Run) Preview() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := guard("preview", r.state, Rendered); err != nil {
		return nil, err
	}
	return bytes.Clone(r.rendered.Data), nil
}

// RequestFormat chooses the export format: pdf needs a conversion, docx skips it.
func (r *Run) RequestFormat(format models.OutputFormat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := guard("request format", r.state, Rendered); err != nil {
		return err
	}
	switch format {
	case models.FormatPDF:
		r.state = ConversionRequested
	case models.FormatDOCX:
		r.state = Skipped
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	r.format = format
	return nil
}

// Convert produces the PDF rendition of the rendered document.
func (r *Run) Convert(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := guard("convert", r.state, ConversionRequested); err != nil {
		return err
	}
	out, err := r.converter.Convert(ctx, r.rendered.Data)
	if err != nil {
		return err
	}
	doc := &models.ConvertedDocument{Format: models.FormatPDF, Data: out}
	if info, err := extract.PDFInfo(out); err == nil {
		doc.Pages = info.Pages
	}
	r.converted = doc
	r.state = Converted
	return nil
}

// Deliver writes the output to dest and records the run in the journal.
// A journal failure is logged; the written file stands.
func (r *Run) Deliver(ctx context.Context, dest string) (*models.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := guard("deliver", r.state, Converted, Skipped); err != nil {
		return nil, err
	}
	if dest == "" {
		return nil, docerr.IO("deliver", "", errors.New("no destination given"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := r.rendered.Data
	if r.state == Converted {
		data = r.converted.Data
	}
	if err := storage.WriteOutput(dest, data); err != nil {
		return nil, err
	}
	r.state = Delivered
	metrics.Deliveries.WithLabelValues(string(r.format)).Inc()

	rec := &models.RunRecord{
		ID:               r.id,
		TemplateName:     r.template.Name,
		TemplatePath:     r.template.Path,
		TemplateHash:     fileid.ContentHash(r.template.Data),
		Format:           r.format,
		OutputPath:       dest,
		Placeholders:     append([]string{}, r.placeholders...),
		UnresolvedValues: placeholder.Missing(r.placeholders, r.values),
		Bytes:            int64(len(data)),
		DurationMillis:   r.now().Sub(r.loadedAt).Milliseconds(),
		CreatedAt:        r.now().UTC(),
	}
	if r.journal != nil {
		if err := r.journal.RecordRun(ctx, rec); err != nil {
			r.logger.Warn("could not journal run", zap.Error(err))
		}
	}
	r.logger.Info("document delivered",
		zap.String("template", rec.TemplateName),
		zap.String("format", string(rec.Format)),
		zap.String("output", dest),
		zap.Int64("bytes", rec.Bytes),
	)
	return rec, nil
}
