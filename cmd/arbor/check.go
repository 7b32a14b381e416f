package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arbor/internal/audit"
	"arbor/internal/checker"
	"arbor/internal/checks"
	"arbor/internal/config"
	"arbor/internal/metrics"
	"arbor/internal/observ"
	"arbor/internal/parse"
	"arbor/internal/source"
	"arbor/internal/suppress"
	"arbor/internal/trace"
	"arbor/internal/version"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <path...>",
	Short: "Run the configured checks over files and directories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("config", "", "configuration file (default: "+config.FileName+" found upwards)")
	checkCmd.Flags().String("format", "plain", "report format (plain|sarif)")
	checkCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	checkCmd.Flags().Int("checker-threads", 1, "files checked in parallel")
	checkCmd.Flags().Int("tree-walker-threads", 1, "check tasks run in parallel within one file")
	checkCmd.Flags().Int("tab-width", source.DefaultTabWidth, "tab width used for columns")
	checkCmd.Flags().String("generate-suppressions", "", "write a suppressions file for every reported event")
	checkCmd.Flags().String("metrics", "", "write run metrics in prometheus text format to a file")
	checkCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	checkCmd.Flags().Bool("continue", false, "report failing files and go on instead of aborting")
	checkCmd.Flags().Bool("stacks", false, "print panic stacks of failing checks")
}

// checkFlags are the check command flags; cobra reports which were set.
type checkFlags struct {
	configPath  string
	format      string
	output      string
	generate    string
	metricsPath string
	ui          uiMode
	continueOn  bool
	stacks      bool
	checkerSet  bool
	checker     int
	walkerSet   bool
	walker      int
	tabWidthSet bool
	tabWidth    int
}

func readCheckFlags(cmd *cobra.Command) (checkFlags, error) {
	fs := cmd.Flags()
	var f checkFlags
	f.configPath, _ = fs.GetString("config")
	f.format, _ = fs.GetString("format")
	f.output, _ = fs.GetString("output")
	f.generate, _ = fs.GetString("generate-suppressions")
	f.metricsPath, _ = fs.GetString("metrics")
	f.continueOn, _ = fs.GetBool("continue")
	f.stacks, _ = fs.GetBool("stacks")
	f.checker, _ = fs.GetInt("checker-threads")
	f.walker, _ = fs.GetInt("tree-walker-threads")
	f.tabWidth, _ = fs.GetInt("tab-width")
	f.checkerSet = fs.Changed("checker-threads")
	f.walkerSet = fs.Changed("tree-walker-threads")
	f.tabWidthSet = fs.Changed("tab-width")

	f.format = strings.ToLower(f.format)
	if f.format != "plain" && f.format != "sarif" {
		return f, fmt.Errorf("unsupported format %q (must be plain or sarif)", f.format)
	}
	uiValue, _ := fs.GetString("ui")
	mode, err := readUIMode(uiValue)
	if err != nil {
		return f, err
	}
	f.ui = mode
	return f, nil
}

// apply overrides configuration values with flags that were set.
func (f checkFlags) apply(cfg *config.Config) error {
	if f.checkerSet {
		cfg.Run.CheckerThreads = f.checker
	}
	if f.walkerSet {
		cfg.Run.TreeWalkerThreads = f.walker
	}
	if f.tabWidthSet {
		cfg.Run.TabWidth = f.tabWidth
	}
	return cfg.Validate()
}

func runCheck(cmd *cobra.Command, args []string) error {
	runID := uuid.New()
	log := newLogger(cmd).With(zap.String("run", runID.String()))
	defer func() { _ = log.Sync() }()

	fatal := func(err error) error { return &exitError{code: exitFatal, err: err} }

	flags, err := readCheckFlags(cmd)
	if err != nil {
		return fatal(err)
	}
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return fatal(err)
	}
	defer stopProfiling()
	cleanup, err := setupTracing(cmd, runID)
	if err != nil {
		return fatal(err)
	}
	defer cleanup()

	var timer *observ.Timer
	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		timer = observ.NewTimer()
		defer func() { fmt.Fprint(cmd.ErrOrStderr(), timer.Summary()) }()
	}

	phase := timer.Begin("config")
	cfg, err := loadConfig(flags.configPath, log)
	if err != nil {
		return fatal(err)
	}
	if err := flags.apply(cfg); err != nil {
		return fatal(err)
	}
	settings, err := checker.NewThreadModeSettings(cfg.Run.CheckerThreads, cfg.Run.TreeWalkerThreads)
	if err != nil {
		return fatal(err)
	}

	registry := checks.Default()
	specs, err := checkSpecs(cfg, registry)
	if err != nil {
		return fatal(err)
	}
	timer.End(phase, cfg.Path)

	phase = timer.Begin("collect")
	files, err := checker.Collect(args, cfg.Accepts)
	if err != nil {
		return fatal(err)
	}
	timer.End(phase, fmt.Sprintf("%d files", len(files)))

	phase = timer.Begin("setup")
	filters, err := buildFilters(cfg, cfg.Run.TabWidth)
	if err != nil {
		return fatal(err)
	}

	useTUI := shouldUseTUI(flags.ui, len(files)) && flags.output == ""
	out, closeOut, err := reportWriter(cmd, flags.output, useTUI)
	if err != nil {
		return fatal(err)
	}

	listeners, closeListeners, err := reportListeners(flags, out, runID, args, log)
	if err != nil {
		return fatal(err)
	}
	defer closeListeners()

	cc, err := openCache(cfg, log)
	if err != nil {
		return fatal(err)
	}
	var m *metrics.Metrics
	if flags.metricsPath != "" {
		m = metrics.New()
	}

	pipeline := audit.New(
		audit.WithFilters(filters...),
		audit.WithListeners(listeners...),
		audit.WithLocator(suppress.NewLocator(cfg.Run.TabWidth)),
		audit.WithLogger(log),
	)
	opts := checker.Options{
		Parser:          parse.NewJava(),
		Registry:        registry,
		Specs:           specs,
		Settings:        settings,
		Pipeline:        pipeline,
		TabWidth:        cfg.Run.TabWidth,
		BaseDir:         baseDir(cfg),
		Charset:         cfg.Run.Charset,
		ContinueOnError: flags.continueOn,
		Cache:           cc,
		Metrics:         m,
		Logger:          log,
	}
	var events chan checker.Event
	if useTUI {
		events = newProgressChannel()
		opts.Progress = checker.ChannelSink{Ch: events}
	}
	c, err := checker.New(opts)
	if err != nil {
		return fatal(err)
	}
	defer c.Close()
	timer.End(phase, fmt.Sprintf("%d checks, %s", len(specs), settings))

	phase = timer.Begin("run")
	var sum checker.Summary
	if useTUI {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = c.FileSet().Name(f)
		}
		sum, err = runWithUI(cmd.Context(), c, files, names, events)
	} else {
		sum, err = c.Run(cmd.Context(), files)
	}
	if cerr := closeOut(); cerr != nil && err == nil {
		err = cerr
	}
	timer.End(phase, fmt.Sprintf("%d checked, %d cached", sum.Checked, sum.Cached))

	if flags.metricsPath != "" {
		if werr := m.WriteTextfile(flags.metricsPath); werr != nil {
			log.Warn("cannot write metrics", zap.Error(werr))
		}
	}
	printSummary(cmd.ErrOrStderr(), sum)

	if err != nil {
		printFileTrace(cmd.ErrOrStderr(), err)
		return fatal(err)
	}
	if sum.Counts.Error > 0 {
		return &exitError{code: exitViolations, silent: true}
	}
	return nil
}

// reportWriter returns where the report goes. With the progress view on,
// stdout output is held back until the view is closed.
func reportWriter(cmd *cobra.Command, path string, buffered bool) (io.Writer, func() error, error) {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
	if buffered {
		var buf bytes.Buffer
		return &buf, func() error {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}, nil
	}
	return cmd.OutOrStdout(), func() error { return nil }, nil
}

func reportListeners(f checkFlags, out io.Writer, runID uuid.UUID, args []string, log *zap.Logger) ([]audit.Listener, func(), error) {
	var (
		listeners []audit.Listener
		closers   []io.Closer
	)
	switch f.format {
	case "sarif":
		listeners = append(listeners, audit.NewSarifListener(out, audit.SarifMeta{
			ToolName:       "arbor",
			ToolVersion:    version.Get().Version,
			RunID:          runID,
			InvocationArgs: args,
		}))
	default:
		colorize := !color.NoColor && f.output == ""
		listeners = append(listeners, audit.NewPlainListener(out, colorize, f.stacks))
	}
	if f.generate != "" {
		gf, err := os.Create(f.generate)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, gf)
		listeners = append(listeners, suppress.NewGeneratorListener(gf, log))
	}
	return listeners, func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}, nil
}

func baseDir(cfg *config.Config) string {
	if cfg.Run.BaseDir != "" {
		return cfg.Resolve(cfg.Run.BaseDir)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return ""
}

func printSummary(w io.Writer, sum checker.Summary) {
	parts := []string{
		fmt.Sprintf("%d file(s)", sum.Files),
		color.RedString("%d error(s)", sum.Counts.Error),
		color.YellowString("%d warning(s)", sum.Counts.Warning),
	}
	if sum.Counts.Info > 0 {
		parts = append(parts, fmt.Sprintf("%d info", sum.Counts.Info))
	}
	if sum.Cached > 0 {
		parts = append(parts, fmt.Sprintf("%d cached", sum.Cached))
	}
	if sum.Failed > 0 {
		parts = append(parts, color.RedString("%d failed", sum.Failed))
	}
	if sum.Counts.Filtered > 0 {
		parts = append(parts, fmt.Sprintf("%d suppressed", sum.Counts.Filtered))
	}
	fmt.Fprintf(w, "%s in %s\n", strings.Join(parts, ", "), sum.Elapsed.Round(time.Millisecond))
}

// printFileTrace writes the trace events kept for the file that aborted the run.
func printFileTrace(w io.Writer, err error) {
	var ferr *checker.FileError
	if !errors.As(err, &ferr) || len(ferr.Trace) == 0 {
		return
	}
	fmt.Fprintf(w, "trace of %s:\n", ferr.Path)
	_ = trace.Write(w, ferr.Trace, trace.FormatText)
}
