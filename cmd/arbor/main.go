package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"arbor/internal/logging"
	"arbor/internal/version"
)

// Exit statuses.
const (
	exitViolations = 1 // reported events of severity error
	exitFatal      = 2 // run aborted or bad usage
)

var rootCmd = &cobra.Command{
	Use:           "arbor",
	Short:         "Tree-walking source checker",
	Long:          `arbor parses source files into syntax trees and runs configurable checks over them`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mode, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return err
		}
		return applyColorMode(mode)
	},
}

// exitError carries an exit status; silent errors print nothing.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func init() {
	rootCmd.Version = version.Get().Version

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(suppressCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error), default $"+logging.EnvLevel+" or warn")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console|json|pretty), default $"+logging.EnvFormat)
	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|run|file|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "ring", "trace storage mode (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "ring buffer size for trace events")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "trace heartbeat interval (0 disables)")
	rootCmd.PersistentFlags().Bool("timings", false, "print phase timings to stderr")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to file")
}

// main executes the root command; the exit status is 1 when errors were
// reported and 2 when the run could not complete.
func main() {
	os.Exit(execute())
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.silent {
			fmt.Fprintln(os.Stderr, color.RedString("error:"), ee.Error())
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
	return exitFatal
}

// newLogger builds the stderr logger from the persistent flags.
func newLogger(cmd *cobra.Command) *zap.Logger {
	level, _ := cmd.Root().PersistentFlags().GetString("log-level")
	format, _ := cmd.Root().PersistentFlags().GetString("log-format")
	return logging.FromEnv(level, format)
}

func applyColorMode(mode string) error {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
