// Package convert turns rendered DOCX archives into PDF with an external office suite.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docfill/internal/docerr"
	"github.com/hyperjump/docfill/internal/extract"
	"github.com/hyperjump/docfill/internal/metrics"
)

// Converter turns a rendered document into a fixed-layout rendition.
type Converter interface {
	Convert(ctx context.Context, document []byte) ([]byte, error)
}

// OfficeConverter converts through LibreOffice in headless mode. Each call
// writes its own uniquely named temp files and removes them afterwards.
type OfficeConverter struct {
	command Command
	tempDir string
	runner  Runner
	verify  bool
	logger  *zap.Logger
	now     func() time.Time
	remove  func(string) error
}

// Option configures an OfficeConverter.
type Option func(*OfficeConverter)

// WithCommand overrides the platform command pair.
func WithCommand(cmd Command) Option {
	return func(c *OfficeConverter) { c.command = cmd }
}

// WithTempDir sets the directory for the temporary input and output files.
func WithTempDir(dir string) Option {
	return func(c *OfficeConverter) {
		if dir != "" {
			c.tempDir = dir
		}
	}
}

// WithRunner replaces the process launcher.
func WithRunner(r Runner) Option {
	return func(c *OfficeConverter) { c.runner = r }
}

// WithVerify makes a conversion count as failed unless the output parses as a PDF.
func WithVerify(verify bool) Option {
	return func(c *OfficeConverter) { c.verify = verify }
}

// WithLogger sets the logger used for attempts and cleanup warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *OfficeConverter) { c.logger = l }
}

// NewOfficeConverter returns a converter using the command pair for the host OS.
func NewOfficeConverter(opts ...Option) *OfficeConverter {
	c := &OfficeConverter{
		command: CommandFor(runtime.GOOS),
		tempDir: os.TempDir(),
		runner:  ExecRunner{},
		logger:  zap.NewNop(),
		now:     time.Now,
		remove:  os.Remove,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command returns the command pair in use.
func (c *OfficeConverter) Command() Command {
	return c.command
}

// Convert implements Converter. The primary command is tried first and the
// fallback exactly once after any primary failure. The context is checked
// before the first process starts; a started process is never killed.
func (c *OfficeConverter) Convert(ctx context.Context, document []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.ConversionDuration.Observe(time.Since(start).Seconds()) }()

	if err := os.MkdirAll(c.tempDir, 0755); err != nil {
		return nil, docerr.IO("create temp dir", c.tempDir, err)
	}
	stem := c.tempStem()
	input := filepath.Join(c.tempDir, stem+".docx")
	output := filepath.Join(c.tempDir, stem+".pdf")
	defer c.cleanup(input, output)

	if err := os.WriteFile(input, document, 0600); err != nil {
		return nil, docerr.IO("write temp input", input, err)
	}
	args := Args(input, c.tempDir)

	data, primaryErr := c.attempt("primary", c.command.Primary, args, output)
	if primaryErr == nil {
		return data, nil
	}
	c.logger.Warn("converter primary command failed, trying fallback",
		zap.String("command", c.command.Primary),
		zap.String("fallback", c.command.Fallback),
		zap.Error(primaryErr),
	)
	if c.command.Fallback == "" {
		return nil, docerr.Unavailable("convert", fmt.Errorf("%s: %w (no fallback configured)", c.command.Primary, primaryErr))
	}

	data, fallbackErr := c.attempt("fallback", c.command.Fallback, args, output)
	if fallbackErr == nil {
		return data, nil
	}
	c.logger.Error("converter fallback command failed",
		zap.String("command", c.command.Fallback),
		zap.Error(fallbackErr),
	)
	return nil, docerr.Unavailable("convert", fmt.Errorf(
		"LibreOffice conversion failed, ensure LibreOffice is installed: %s: %v; %s: %w",
		c.command.Primary, primaryErr, c.command.Fallback, fallbackErr,
	))
}

// attempt runs one invocation and reads back its output. An invocation that
// exits cleanly without producing the output file is a failure.
func (c *OfficeConverter) attempt(label, name string, args []string, output string) (data []byte, err error) {
	defer func() { metrics.ConversionAttempts.WithLabelValues(label, metrics.Result(err)).Inc() }()

	if err := c.remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("stale converter output not removed", zap.String("path", output), zap.Error(err))
	}
	c.logger.Info("running converter", zap.String("attempt", label), zap.String("command", name), zap.Strings("args", args))
	combined, err := c.runner.Run(name, args)
	if err != nil {
		if msg := strings.TrimSpace(string(combined)); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	data, err = os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("no output produced: %w", err)
	}
	if c.verify {
		if _, err := extract.PDFInfo(data); err != nil {
			return nil, fmt.Errorf("output is not a readable pdf: %w", err)
		}
	}
	c.logger.Debug("converter succeeded", zap.String("attempt", label), zap.Int("bytes", len(data)))
	return data, nil
}

func (c *OfficeConverter) tempStem() string {
	return fmt.Sprintf("docfill_%d_%s", c.now().UnixNano(), uuid.NewString()[:8])
}

// cleanup removes the temp files. Failures are logged, never returned.
func (c *OfficeConverter) cleanup(paths ...string) {
	for _, p := range paths {
		err := c.remove(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		metrics.CleanupFailures.Inc()
		c.logger.Warn("could not clean up temp file", zap.String("path", p), zap.Error(err))
	}
}
