// Package main is the docfill CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docfill/internal/cli"
	"github.com/hyperjump/docfill/internal/config"
	"github.com/hyperjump/docfill/internal/convert"
	"github.com/hyperjump/docfill/internal/extract"
	"github.com/hyperjump/docfill/internal/jobs"
	"github.com/hyperjump/docfill/internal/models"
	"github.com/hyperjump/docfill/internal/pipeline"
	"github.com/hyperjump/docfill/internal/prompt"
	"github.com/hyperjump/docfill/internal/server"
	"github.com/hyperjump/docfill/internal/storage"
	"github.com/hyperjump/docfill/internal/values"
	"github.com/hyperjump/docfill/internal/watcher"
	"github.com/hyperjump/docfill/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docfill/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present, and a missing default file yields the
// built-in configuration. Returns the config and the path actually loaded
// ("" for built-in).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			cfg, err := config.Default()
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// reorderArgs puts every flag (with its value) ahead of the positional
// arguments so flag.Parse sees them wherever they appear: the flag package
// stops at the first non-flag argument. Flags are looked up in fs to tell
// value flags from boolean ones. Everything after "--" stays positional.
func reorderArgs(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args))
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		f := fs.Lookup(name)
		if f == nil || isBoolFlag(f) {
			continue
		}
		if i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(f *flag.Flag) bool {
	bf, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && bf.IsBoolFlag()
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "fields":
		runFields()
	case "preview":
		runPreview()
	case "fill":
		runFill()
	case "server":
		runServer()
	case "watch":
		runWatch()
	case "text":
		runText()
	case "init":
		runInit()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("docfill version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

// Components holds the long-lived objects a command works with.
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Journal   *storage.SQLiteJournal
	Converter *convert.OfficeConverter
	Service   *pipeline.Service
}

// Close syncs the logger and closes the journal.
func (c *Components) Close() {
	if c.Journal != nil {
		_ = c.Journal.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

func initializeComponents(cfg *config.Config, debug bool) (*Components, error) {
	logger, err := utils.NewFileLogger(debug, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	journal, err := storage.NewSQLiteJournal(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	conv := convert.NewOfficeConverter(
		convert.WithCommand(cfg.ConverterCommand(runtime.GOOS)),
		convert.WithTempDir(cfg.Converter.TempDir),
		convert.WithVerify(cfg.Converter.VerifyOrDefault()),
		convert.WithLogger(logger),
	)
	svc := pipeline.NewService(cfg.Storage.OutputDir,
		pipeline.WithConverter(conv),
		pipeline.WithJournal(journal),
		pipeline.WithLogger(logger),
	)
	return &Components{
		Config:    cfg,
		Logger:    logger,
		Journal:   journal,
		Converter: conv,
		Service:   svc,
	}, nil
}

// setup loads config and builds components, exiting on failure.
func setup(configPath string, debugFlag bool) *Components {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatal("Failed to load config", err)
	}
	debug := cfg.Debug || debugFlag
	c, err := initializeComponents(cfg, debug)
	if err != nil {
		fatal("Failed to initialize", err)
	}
	c.Logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debug),
		zap.String("output_dir", cfg.Storage.OutputDir),
	)
	return c
}

// gatherValues merges the values file (if any) with --set assignments; the
// assignments win.
func gatherValues(valuesFile string, row int, sets []string) (models.ValueMap, error) {
	out := models.ValueMap{}
	if valuesFile != "" {
		fromFile, err := values.LoadFile(valuesFile, row)
		if err != nil {
			return nil, err
		}
		out.Merge(fromFile)
	}
	assigned, err := values.ParseAssignments(sets)
	if err != nil {
		return nil, err
	}
	out.Merge(assigned)
	return out, nil
}

// valueFlags registers the flags shared by preview and fill.
type valueFlags struct {
	valuesFile *string
	row        *int
	sets       values.Assignments
}

func addValueFlags(fs *flag.FlagSet) *valueFlags {
	vf := &valueFlags{
		valuesFile: fs.String("values", "", "values file (.yaml, .json or .xlsx)"),
		row:        fs.Int("row", 1, "data row for .xlsx values (1 = first row under the header)"),
	}
	fs.Var(&vf.sets, "set", "placeholder value as name=value (repeatable)")
	return vf
}

func (vf *valueFlags) collect() (models.ValueMap, error) {
	return gatherValues(*vf.valuesFile, *vf.row, vf.sets)
}

func templateArg(fs *flag.FlagSet, usage string) pipeline.Source {
	if fs.NArg() < 1 {
		fmt.Fprintf(fs.Output(), "Usage: %s\n\n", usage)
		fs.PrintDefaults()
		os.Exit(1)
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		fatal("Invalid template path", err)
	}
	return pipeline.Source{Path: path}
}

func outputFormat(s string) cli.OutputFormat {
	f, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatal("Invalid --output", err)
	}
	return f
}

func runFields() {
	fs := flag.NewFlagSet("fields", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(fs, os.Args[2:]))
	format := outputFormat(*output)
	src := templateArg(fs, "docfill fields [flags] <template.docx>")

	c := setup(*configPath, false)
	defer c.Close()

	names, err := c.Service.ExtractPlaceholders(context.Background(), src)
	if err != nil {
		fatal("Failed to read placeholders", err)
	}
	if err := cli.WriteFields(os.Stdout, src.Path, names, format); err != nil {
		fatal("Output failed", err)
	}
}

func runPreview() {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	vf := addValueFlags(fs)
	out := fs.String("out", "", "also write the rendered document here")
	docFormat := fs.String("format", "docx", "rendition to preview: docx (document text) or pdf (converted text)")
	maxLen := fs.Int("max", 0, "truncate printed text to this many characters (0 = no limit)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(fs, os.Args[2:]))
	format := outputFormat(*output)
	src := templateArg(fs, "docfill preview [flags] <template.docx>")
	rendition, err := models.ParseFormat(*docFormat)
	if err != nil {
		fatal("Invalid --format", err)
	}

	c := setup(*configPath, false)
	defer c.Close()

	vals, err := vf.collect()
	if err != nil {
		fatal("Failed to load values", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := c.Service.RenderPreview(ctx, src, vals)
	if err != nil {
		fatal("Failed to render preview", err)
	}
	doc := p.Document
	if rendition == models.FormatPDF {
		doc, err = c.Converter.Convert(ctx, p.Document)
		if err != nil {
			fatal("Failed to convert preview", err)
		}
		info, err := extract.PDFInfo(doc)
		if err != nil {
			fatal("Failed to read converted preview", err)
		}
		p.Text = info.Text
	}
	if *out != "" {
		if err := storage.WriteOutput(*out, doc); err != nil {
			fatal("Failed to write preview", err)
		}
		c.Logger.Info("preview written", zap.String("path", *out))
	}
	cli.WarnUnused(os.Stderr, p.Placeholders, vals)
	if err := cli.WritePreview(os.Stdout, p, *maxLen, format); err != nil {
		fatal("Output failed", err)
	}
}

func runFill() {
	fs := flag.NewFlagSet("fill", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	vf := addValueFlags(fs)
	interactive := fs.Bool("interactive", false, "prompt for placeholders without a value")
	docFormat := fs.String("format", "docx", "export format: docx or pdf")
	out := fs.String("out", "", "output path (default: contract.<format> in storage.output_dir)")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(reorderArgs(fs, os.Args[2:]))
	format := outputFormat(*output)
	src := templateArg(fs, "docfill fill [flags] <template.docx>")
	exportFormat, err := models.ParseFormat(*docFormat)
	if err != nil {
		fatal("Invalid --format", err)
	}

	c := setup(*configPath, *debug)
	defer c.Close()

	vals, err := vf.collect()
	if err != nil {
		fatal("Failed to load values", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dest := *out
	if dest == "" {
		dest = c.Service.DefaultOutputPath(exportFormat)
	}
	if *interactive {
		driver := prompt.NewSurveyDriver()
		names, err := c.Service.ExtractPlaceholders(ctx, src)
		if err != nil {
			fatal("Failed to read placeholders", err)
		}
		vals, err = prompt.Collect(ctx, driver, names, vals)
		if err != nil {
			fatal("Failed to collect values", err)
		}
		if _, statErr := os.Stat(dest); statErr == nil {
			ok, err := driver.Confirm(ctx, fmt.Sprintf("%s exists. Overwrite?", dest), false)
			if err != nil {
				fatal("Failed to confirm", err)
			}
			if !ok {
				fmt.Println("Nothing written.")
				return
			}
		}
	}

	rec, err := c.Service.RenderAndExport(ctx, src, vals, exportFormat, dest)
	if err != nil {
		fatal("Failed to fill template", err)
	}
	cli.WarnUnused(os.Stderr, rec.Placeholders, vals)
	if err := cli.WriteRun(os.Stdout, rec, format); err != nil {
		fatal("Output failed", err)
	}
}

// startJobWatcher watches the configured job directories until ctx ends.
// It returns nil when no directories are configured.
func startJobWatcher(ctx context.Context, c *Components) (*watcher.Watcher, error) {
	dirs := c.Config.Jobs.Directories
	if len(dirs) == 0 {
		return nil, nil
	}
	proc := jobs.NewProcessor(c.Service, jobs.WithLogger(c.Logger))
	w := watcher.NewWatcher(dirs, c.Config.Jobs.RecursiveOrDefault(), proc.HandleFunc(ctx), watcher.WithLogger(c.Logger))
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	w.SyncExisting()
	c.Logger.Info("watching job directories", zap.Strings("directories", w.Directories()))
	return w, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, conversions, job files)")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug)
	defer c.Close()
	logger := c.Logger

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	w, err := startJobWatcher(watchCtx, c)
	if err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}

	srv := server.NewServer(c.Service, c.Converter.Command(), &c.Config.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if w != nil {
		w.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	var dirs values.Assignments
	fs.Var(&dirs, "dir", "job directory to watch (repeatable; overrides jobs.directories)")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug)
	defer c.Close()
	if len(dirs) > 0 {
		c.Config.Jobs.Directories = nil
		for _, d := range dirs {
			abs, err := filepath.Abs(d)
			if err != nil {
				fatal("Invalid directory", err)
			}
			c.Config.Jobs.Directories = append(c.Config.Jobs.Directories, abs)
		}
	}
	if len(c.Config.Jobs.Directories) == 0 {
		fmt.Fprintln(os.Stderr, "No job directories: set jobs.directories in config or pass --dir")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	w, err := startJobWatcher(ctx, c)
	if err != nil {
		fatal("Failed to start watcher", err)
	}
	<-ctx.Done()
	c.Logger.Info("Shutting down...")
	w.Stop()
}

func runText() {
	fs := flag.NewFlagSet("text", flag.ExitOnError)
	maxLen := fs.Int("max", 0, "truncate printed text to this many characters (0 = no limit)")
	_ = fs.Parse(reorderArgs(fs, os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: docfill text [flags] <file.docx|file.pdf>")
		os.Exit(1)
	}
	text, err := extract.NewExtractor().Extract(fs.Arg(0))
	if err != nil {
		fatal("Failed to extract text", err)
	}
	fmt.Println(utils.Truncate(text, *maxLen))
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if _, err := os.Stat(*path); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s exists; use --force to overwrite\n", *path)
		os.Exit(1)
	}
	cfg, err := config.Default()
	if err != nil {
		fatal("Failed to build config", err)
	}
	if err := config.Save(*path, cfg); err != nil {
		fatal("Failed to write config", err)
	}
	fmt.Printf("Wrote %s\n", *path)
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", storage.DefaultListLimit, "number of runs to show")
	offset := fs.Int("offset", 0, "skip this many of the newest runs")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := outputFormat(*output)

	c := setup(*configPath, false)
	defer c.Close()

	runs, err := c.Service.History(context.Background(), *offset, *limit)
	if err != nil {
		fatal("Failed to read history", err)
	}
	if err := cli.WriteHistory(os.Stdout, runs, format); err != nil {
		fatal("Output failed", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := outputFormat(*output)

	c := setup(*configPath, false)
	defer c.Close()

	st, err := c.Service.Status(context.Background(), c.Converter.Command())
	if err != nil {
		fatal("Failed to read status", err)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fatal("Output failed", err)
	}
}

func printUsage() {
	fmt.Println(`docfill - Fill DOCX templates and export DOCX or PDF

Usage:
  docfill fields [flags] <template>    List the {placeholders} in a template
  docfill preview [flags] <template>   Render in memory and print the text
  docfill fill [flags] <template>      Render and export to DOCX or PDF
  docfill server [flags]               Start the HTTP API
  docfill watch [flags]                Run job files dropped in watched folders
  docfill text [flags] <file>          Print the text of a DOCX or PDF
  docfill init [flags]                 Write a config file with the defaults
  docfill history [flags]              List exported runs
  docfill status [flags]               Show converter availability and journal size
  docfill version                      Show version
  docfill help                         Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/docfill/config.yaml,
                     or ./config.yaml when present)

Value Flags (preview, fill):
  --values string    Values file (.yaml, .json or .xlsx)
  --row int          Data row for .xlsx values (default 1)
  --set name=value   Placeholder value; repeatable, wins over --values

Fill Flags:
  --format string    docx or pdf (default docx)
  --out string       Output path (default contract.<format> in storage.output_dir)
  --interactive      Prompt for placeholders without a value

Output Flags (fields, preview, fill, history, status):
  --output string    text or json (default text)

PDF export needs LibreOffice (soffice or libreoffice on PATH, or
converter.commands in config).`)
}
