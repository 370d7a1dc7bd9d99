package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"structnames/internal/loader"
	"structnames/internal/trace"
	"structnames/internal/types"
)

func newInternCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intern ID...",
		Short: "Intern struct identifiers and print their handles",
		Long: `Intern interns every 0xADDR::module::Name argument into a fresh table
and prints the handle assigned to each, in argument order. Repeated
arguments receive the same handle. Interning is sequential unless --jobs
is given, so handles follow first occurrence in the argument list.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIntern,
	}
}

func runIntern(cmd *cobra.Command, args []string) error {
	ids := make([]types.StructIdentifier, len(args))
	for i, arg := range args {
		id, err := types.ParseStructIdentifier(arg)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	jobs, err := jobsFor(cmd, nil)
	if err != nil {
		return err
	}
	if !cmd.Root().PersistentFlags().Changed("jobs") {
		jobs = 1
	}

	l := loader.New(loader.WithTracer(trace.FromContext(cmd.Context())))
	handles, err := l.Load(cmd.Context(), ids, jobs)
	if err != nil {
		return fmt.Errorf("intern failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for i, h := range handles {
		fmt.Fprintf(out, "%s\t%s\n", handleColor.Sprint(h), ids[i])
	}
	return nil
}
