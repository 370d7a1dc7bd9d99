package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"structnames/internal/loader"
	"structnames/internal/metrics"
	"structnames/internal/trace"
)

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Load the manifest's structs and dump table metrics",
		Long: `Metrics interns the manifest's structs --passes times into one table and
prints the resulting counters in the Prometheus text exposition format.
Passes after the first are served from the table and count as hits.`,
		Args: cobra.NoArgs,
		RunE: runMetrics,
	}
	cmd.Flags().Int("passes", 2, "number of load passes")
	cmd.Flags().Bool("flush", false, "end the session with a flush before dumping")
	return cmd
}

func runMetrics(cmd *cobra.Command, args []string) error {
	passes, err := cmd.Flags().GetInt("passes")
	if err != nil {
		return fmt.Errorf("failed to get passes flag: %w", err)
	}
	if passes < 1 {
		return fmt.Errorf("--passes must be at least 1, got %d", passes)
	}
	flush, err := cmd.Flags().GetBool("flush")
	if err != nil {
		return fmt.Errorf("failed to get flush flag: %w", err)
	}

	m, err := requireManifest(cmd)
	if err != nil {
		return err
	}
	ids, err := m.Identifiers()
	if err != nil {
		return err
	}
	jobs, err := jobsFor(cmd, m)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	observer, err := metrics.NewTable(reg)
	if err != nil {
		return err
	}
	l := loader.New(
		loader.WithTracer(trace.FromContext(cmd.Context())),
		loader.WithObserver(observer),
	)
	for range passes {
		if _, err := l.Load(cmd.Context(), ids, jobs); err != nil {
			return fmt.Errorf("load failed: %w", err)
		}
	}
	if flush {
		l.EndSession()
	}
	return metrics.WriteText(cmd.OutOrStdout(), reg)
}
