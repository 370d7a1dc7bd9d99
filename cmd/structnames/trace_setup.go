package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"structnames/internal/trace"
)

// setupTracing inspects trace-related flags and initializes the tracer.
// Values from the manifest's [trace] table apply when the matching flag was
// not given. It returns a cleanup function and an error if initialization fails.
func setupTracing(cmd *cobra.Command) (func(), error) {
	flags := cmd.Root().PersistentFlags()

	// Read trace configuration from flags
	traceOutput, err := flags.GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}

	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}

	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}

	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}

	formatStr := ""
	if m, ok, err := loadManifest(cmd); err == nil && ok {
		tc := m.Config.Trace
		if !flags.Changed("trace") && tc.Output != "" {
			traceOutput = tc.Output
		}
		if !flags.Changed("trace-level") && tc.Level != "" {
			levelStr = tc.Level
		}
		if !flags.Changed("trace-mode") && tc.Mode != "" {
			modeStr = tc.Mode
		}
		if !flags.Changed("trace-ring-size") && tc.RingSize > 0 {
			ringSize = tc.RingSize
		}
		formatStr = tc.Format
	}

	cfg, err := trace.ParseConfig(trace.Settings{
		Level:    levelStr,
		Mode:     modeStr,
		Format:   formatStr,
		Output:   traceOutput,
		RingSize: ringSize,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid trace configuration: %w", err)
	}

	// If level is off, skip tracing
	if cfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	// Attach tracer to context
	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)

	cleanup := func() {
		// Ring-only tracing has no stream; dump what was kept.
		if ring, ok := trace.RingOf(tracer); ok && cfg.Mode == trace.ModeRing {
			if err := ring.Dump(cmd.ErrOrStderr(), cfg.Format); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}

	return cleanup, nil
}
