// litec-analyzer maps the include graph and declarations of a Lite-C / C
// source tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/egammo/lite-c-dependency-analyzer/internal/analyze"
	"github.com/egammo/lite-c-dependency-analyzer/internal/classify"
	"github.com/egammo/lite-c-dependency-analyzer/internal/config"
	"github.com/egammo/lite-c-dependency-analyzer/internal/discover"
	"github.com/egammo/lite-c-dependency-analyzer/internal/export"
	"github.com/egammo/lite-c-dependency-analyzer/internal/graph"
	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
	"github.com/egammo/lite-c-dependency-analyzer/internal/parse"
	"github.com/egammo/lite-c-dependency-analyzer/internal/ranking"
	"github.com/egammo/lite-c-dependency-analyzer/internal/report"
	"github.com/egammo/lite-c-dependency-analyzer/internal/toon"
	"github.com/egammo/lite-c-dependency-analyzer/internal/watcher"
)

var version = "dev"

var errNoSourceFiles = errors.New("no source files found")

// options holds the command line flags.
type options struct {
	configPath  string
	format      string
	output      string
	header      string
	dryRun      bool
	maxFiles    int
	symbol      string
	file        string
	exclude     []string
	maxDepth    int
	checkSyntax bool
	watch       bool
	neo4jURI    string
	neo4jUser   string
	neo4jPass   string
	neo4jClean  bool
	logLevel    string
	logFile     string
	showVersion bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return runContext(ctx, args, stdout, stderr)
}

// runContext executes the command line; watch mode stops when ctx is done.
func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "litec-analyzer [flags] <source-root> [main-file]",
		Short: "Lite-C / C include and declaration analyzer",
		Long: `Analyze a Lite-C / C source tree without a compiler: resolve includes, ` +
			`detect include cycles and deep chains, and catalog declared callables, ` +
			`structs and static variables.

With a main file, includes are tracked from that file. Without one, every
source file of the tree is analyzed on its own.`,
		Args:          cobra.RangeArgs(0, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.showVersion {
				_, _ = fmt.Fprintf(stdout, "litec-analyzer %s\n", version)
				return nil
			}
			if len(args) == 0 {
				return errors.New("missing source root")
			}
			mainFile := ""
			if len(args) > 1 {
				mainFile = args[1]
			}
			return execute(cmd, o, args[0], mainFile, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "config file (default <source-root>/"+config.FileName+")")
	f.StringVarP(&o.format, "format", "f", "text", "output format: text, toon or json")
	f.StringVarP(&o.output, "output", "o", "", "write the report to this file instead of stdout")
	f.StringVar(&o.header, "header", "", "write forward declarations to this header file")
	f.BoolVar(&o.dryRun, "dry-run", false, "print the header instead of writing it")
	f.IntVarP(&o.maxFiles, "max-files", "n", 0, "report only the N highest ranked files")
	f.StringVar(&o.symbol, "symbol", "", "report only files declaring symbols containing this text")
	f.StringVar(&o.file, "file", "", "report only files whose path contains this text")
	f.StringArrayVar(&o.exclude, "exclude", nil, "doublestar pattern of files to skip in whole-tree mode (repeatable)")
	f.IntVar(&o.maxDepth, "max-depth", 0, "include depth limit (default from config)")
	f.BoolVar(&o.checkSyntax, "check-syntax", false, "count syntax errors with tree-sitter")
	f.BoolVarP(&o.watch, "watch", "w", false, "re-run the analysis when source files change")
	f.StringVar(&o.neo4jURI, "neo4j-uri", "", "load the result into Neo4j at this URI")
	f.StringVar(&o.neo4jUser, "neo4j-user", "", "Neo4j user")
	f.StringVar(&o.neo4jPass, "neo4j-pass", "", "Neo4j password")
	f.BoolVar(&o.neo4jClean, "neo4j-clean", false, "remove previously loaded data of this project first")
	f.StringVar(&o.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	f.StringVar(&o.logFile, "log-file", "", "write logs to this file instead of stderr")
	f.BoolVarP(&o.showVersion, "version", "V", false, "show version and exit")

	return cmd
}

func execute(cmd *cobra.Command, o *options, rootArg, mainFile string, stdout, stderr io.Writer) error {
	switch o.format {
	case "text", "toon", "json":
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}

	root, err := filepath.Abs(rootArg)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	cfg, err := loadConfig(cmd, o, root)
	if err != nil {
		return err
	}

	logger, closeLog := setupLogger(o.logLevel, o.logFile, stderr)
	defer closeLog()

	ctx := cmd.Context()
	fs := afero.NewOsFs()
	a := &analyzer{
		fs:        fs,
		cfg:       cfg,
		opts:      o,
		root:      filepath.ToSlash(root),
		mainFile:  mainFile,
		generated: generatedFiles(root, o.header, o.output),
		log:       logger,
		stdout:    stdout,
		stderr:    stderr,
	}

	if err := a.runOnce(ctx); err != nil {
		return err
	}
	if !o.watch {
		return nil
	}
	return a.watch(ctx)
}

// loadConfig reads the explicit config file, or the one in the project root
// when present, and applies flag overrides.
func loadConfig(cmd *cobra.Command, o *options, root string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadWithFallback(filepath.Join(root, config.FileName))
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("max-depth") {
		cfg.MaxDepth = o.maxDepth
	}
	if f.Changed("check-syntax") {
		cfg.CheckSyntax = o.checkSyntax
	}
	cfg.Exclude = append(cfg.Exclude, o.exclude...)
	if o.neo4jURI != "" {
		cfg.Neo4j.URI = o.neo4jURI
	}
	if o.neo4jUser != "" {
		cfg.Neo4j.User = o.neo4jUser
	}
	if o.neo4jPass != "" {
		cfg.Neo4j.Password = o.neo4jPass
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// generatedFiles returns the root-relative paths of the given output files
// that lie inside root. Empty paths and paths outside root are dropped.
func generatedFiles(root string, paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

// analyzer runs one configured analysis and writes its outputs.
type analyzer struct {
	fs        afero.Fs
	cfg       *config.Config
	opts      *options
	root      string
	mainFile  string
	generated []string
	log       *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
}

func (a *analyzer) runOnce(ctx context.Context) error {
	snap, err := a.analyze()
	if err != nil {
		return err
	}

	if err := a.writeReport(snap); err != nil {
		return err
	}

	if a.opts.header != "" {
		if err := writeHeader(a.fs, a.opts.header, snap, a.opts.dryRun, a.stdout); err != nil {
			return err
		}
		a.log.Info("header written", "path", a.opts.header, "dry_run", a.opts.dryRun)
	}

	if a.cfg.Neo4j.Enabled() {
		if err := a.export(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) analyze() (*model.Snapshot, error) {
	kw := a.cfg.Keywords
	opts := analyze.Options{
		Root:     a.root,
		MaxDepth: a.cfg.MaxDepth,
		MaxFiles: a.cfg.MaxFiles,
		Classifier: classify.NewHeuristic(classify.Options{
			Directives: a.cfg.SearchDirectives,
			Callables: []classify.Callable{
				{Keyword: kw.Void, Kind: model.VoidFunc},
				{Keyword: kw.Function, Kind: model.ValueFunc},
				{Keyword: kw.Action, Kind: model.Action},
			},
		}),
		Logger: a.log,
	}
	if a.cfg.CheckSyntax {
		opts.Syntax = parse.NewChecker()
	}
	s := analyze.New(a.fs, opts)

	if a.mainFile != "" {
		p := a.mainFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(a.root, p)
		}
		if err := s.Analyze(filepath.ToSlash(p)); err != nil {
			return nil, err
		}
	} else {
		entries, err := discover.Files(a.fs, a.root, a.discoverOptions())
		if err != nil {
			return nil, fmt.Errorf("discovering files: %w", err)
		}
		if len(entries) == 0 {
			return nil, errNoSourceFiles
		}
		if err := s.AnalyzeTree(discover.Paths(entries)); err != nil {
			return nil, err
		}
	}

	snap := s.Snapshot()
	if err := graph.Enrich(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (a *analyzer) discoverOptions() discover.Options {
	return discover.Options{
		Extensions: a.cfg.Extensions,
		Exclude:    a.cfg.Exclude,
		Skip:       a.generated,
	}
}

func (a *analyzer) writeReport(snap *model.Snapshot) error {
	view := snap
	if a.opts.symbol != "" {
		view = ranking.FilterBySymbol(view, a.opts.symbol)
	}
	if a.opts.file != "" {
		view = ranking.FilterByFile(view, a.opts.file)
	}
	if a.opts.maxFiles > 0 {
		view = ranking.SelectFiles(view, a.opts.maxFiles)
	}

	var out []byte
	switch a.opts.format {
	case "toon":
		out = []byte(toon.Encode(view) + "\n")
	case "json":
		data, err := report.JSON(view)
		if err != nil {
			return err
		}
		out = data
	default:
		out = []byte(report.Text(view))
	}

	if a.opts.output == "" {
		_, err := a.stdout.Write(out)
		return err
	}
	if err := afero.WriteFile(a.fs, a.opts.output, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", a.opts.output, err)
	}
	_, _ = fmt.Fprint(a.stderr, report.SummaryText(report.Summarize(snap)))
	_, _ = fmt.Fprintf(a.stderr, "report written to %s\n", a.opts.output)
	return nil
}

func (a *analyzer) export(ctx context.Context, snap *model.Snapshot) error {
	n := a.cfg.Neo4j
	loader, err := export.NewNeo4jLoader(ctx, n.URI, n.User, n.Password, a.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := loader.Close(ctx); err != nil {
			a.log.Warn("closing neo4j driver", "error", err)
		}
	}()
	if err := loader.Load(ctx, snap, a.opts.neo4jClean); err != nil {
		return fmt.Errorf("neo4j export: %w", err)
	}
	return nil
}

// watch re-runs the analysis after every batch of source changes until ctx
// is cancelled. Failed runs are logged and do not stop watching.
func (a *analyzer) watch(ctx context.Context) error {
	matcher, err := discover.NewMatcher(a.fs, a.root, a.discoverOptions())
	if err != nil {
		return err
	}
	w, err := watcher.New(a.root, matcher, watcher.DefaultInterval, a.log)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()
	go w.Run(ctx)

	a.log.Info("watching for changes", "root", a.root)
	_, _ = fmt.Fprintf(a.stderr, "watching %s for changes\n", a.root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-w.Events():
			a.log.Info("changes detected", "files", len(batch), "first", batch[0].Path)
			if err := a.runOnce(ctx); err != nil {
				a.log.Error("analysis failed", "error", err)
			}
		}
	}
}

// setupLogger creates an slog.Logger writing to stderr or a file. The
// returned func closes the log file.
func setupLogger(level, logFile string, stderr io.Writer) (*slog.Logger, func()) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}

	writer := stderr
	closeFn := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
		} else {
			writer = f
			closeFn = func() { _ = f.Close() }
		}
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler), closeFn
}
