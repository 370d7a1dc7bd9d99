package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"structnames/internal/trace"
	"structnames/internal/version"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "structnames",
		Short:        "Struct name interning toolkit",
		Long:         `structnames interns fully qualified struct names into dense handles and inspects the resulting tables`,
		SilenceUsage: true,
	}
	cmd.Version = version.Version

	cmd.AddCommand(newInternCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newTagCmd())
	cmd.AddCommand(newStressCmd())
	cmd.AddCommand(newMetricsCmd())
	cmd.AddCommand(newVersionCmd())

	// Глобальные флаги
	cmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	cmd.PersistentFlags().String("config", "", "path to structnames.toml (default: search upwards from the working directory)")
	cmd.PersistentFlags().Int("jobs", 0, "max parallel interning goroutines (0=auto)")
	cmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	cmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|session|table|entry)")
	cmd.PersistentFlags().String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	cmd.PersistentFlags().Int("trace-ring-size", trace.DefaultRingSize, "ring buffer capacity for ring/both trace modes")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := setupColor(cmd); err != nil {
			return err
		}
		cleanup, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		traceCleanup = cleanup
		return nil
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		runTraceCleanup()
	}
	return cmd
}

// traceCleanup flushes the tracer installed by PersistentPreRunE.
var traceCleanup func()

func runTraceCleanup() {
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
}

// main executes the root command and exits with status 1 on error.
func main() {
	err := rootCmd.Execute()
	// PersistentPostRun is skipped when RunE fails.
	runTraceCleanup()
	if err != nil {
		os.Exit(1)
	}
}

func setupColor(cmd *cobra.Command) error {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch colorFlag {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorFlag)
	}
	return nil
}

// numbers prints counts with digit grouping.
var numbers = message.NewPrinter(language.English)

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
