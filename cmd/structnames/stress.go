package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"structnames/internal/observ"
	"structnames/internal/prof"
	"structnames/internal/structidx"
	"structnames/internal/trace"
	"structnames/internal/types"
	"structnames/internal/ui"
)

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Intern concurrently and check the table's guarantees",
		Long: `Stress runs --workers goroutines against one table. By default every worker
interns the same identifier and all must receive the same handle. With
--distinct each worker interns its own pseudo-random identifiers; different
identifiers must end up with different handles that resolve back to them.
With --rounds the table is flushed between rounds and every round starts
again from handle #0.`,
		Args: cobra.NoArgs,
		RunE: runStress,
	}
	cmd.Flags().Int("workers", 0, "number of goroutines (0=GOMAXPROCS*4)")
	cmd.Flags().Int("names", 32, "identifiers per worker with --distinct")
	cmd.Flags().Bool("distinct", false, "intern distinct identifiers per worker")
	cmd.Flags().Uint64("seed", 1, "seed for generated identifiers")
	cmd.Flags().Int("rounds", 1, "number of rounds; the table is flushed between rounds")
	cmd.Flags().Bool("progress", false, "show live progress on stderr")
	cmd.Flags().Bool("timings", false, "print per-phase timings")
	cmd.Flags().String("cpuprofile", "", "write a CPU profile to file")
	cmd.Flags().String("memprofile", "", "write a heap profile to file")
	cmd.Flags().String("runtime-trace", "", "write a Go runtime trace to file")
	return cmd
}

type stressOptions struct {
	workers  int
	names    int
	rounds   int
	distinct bool
	seed     uint64
}

type stressResult struct {
	entries int
	handles int
}

func runStress(cmd *cobra.Command, args []string) error {
	var opts stressOptions
	var err error
	flags := cmd.Flags()
	if opts.workers, err = flags.GetInt("workers"); err != nil {
		return fmt.Errorf("failed to get workers flag: %w", err)
	}
	if opts.names, err = flags.GetInt("names"); err != nil {
		return fmt.Errorf("failed to get names flag: %w", err)
	}
	if opts.distinct, err = flags.GetBool("distinct"); err != nil {
		return fmt.Errorf("failed to get distinct flag: %w", err)
	}
	if opts.seed, err = flags.GetUint64("seed"); err != nil {
		return fmt.Errorf("failed to get seed flag: %w", err)
	}
	if opts.workers <= 0 {
		opts.workers = runtime.GOMAXPROCS(0) * 4
	}
	if opts.rounds, err = flags.GetInt("rounds"); err != nil {
		return fmt.Errorf("failed to get rounds flag: %w", err)
	}
	if opts.names <= 0 {
		return fmt.Errorf("--names must be positive, got %d", opts.names)
	}
	if opts.rounds <= 0 {
		return fmt.Errorf("--rounds must be positive, got %d", opts.rounds)
	}
	showProgress, err := flags.GetBool("progress")
	if err != nil {
		return fmt.Errorf("failed to get progress flag: %w", err)
	}
	timings, err := flags.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	var profOpts prof.Options
	if profOpts.CPU, err = flags.GetString("cpuprofile"); err != nil {
		return fmt.Errorf("failed to get cpuprofile flag: %w", err)
	}
	if profOpts.Mem, err = flags.GetString("memprofile"); err != nil {
		return fmt.Errorf("failed to get memprofile flag: %w", err)
	}
	if profOpts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}

	session, err := prof.Start(profOpts)
	if err != nil {
		return err
	}
	timer := observ.NewTimer()
	tbl := structidx.NewEmpty(structidx.WithTracer(trace.FromContext(cmd.Context())))

	var res stressResult
	if showProgress {
		events := make(chan ui.Event, opts.workers)
		errCh := make(chan error, 1)
		go func() {
			defer close(events)
			var err error
			res, err = stressRounds(cmd.Context(), tbl, opts, timer, events)
			errCh <- err
		}()
		uiErr := ui.Run(cmd.ErrOrStderr(), "stress", opts.workers, opts.rounds, events)
		for range events {
			// Drain if the UI stopped early.
		}
		err = <-errCh
		if err == nil {
			err = uiErr
		}
	} else {
		res, err = stressRounds(cmd.Context(), tbl, opts, timer, nil)
	}
	if stopErr := session.Stop(); err == nil {
		err = stopErr
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	numbers.Fprintf(out, "ok: %d workers, %d rounds, %d handles checked, %d entries at epoch %d in %s\n",
		opts.workers, opts.rounds, res.handles, res.entries, tbl.Epoch(), timer.Total().Round(time.Microsecond))
	if timings {
		fmt.Fprint(out, timer.Summary())
	}
	return nil
}

// stressRounds runs opts.rounds rounds against tbl, flushing between them.
// The result describes the last round.
func stressRounds(ctx context.Context, tbl *structidx.Table, opts stressOptions, timer *observ.Timer, events chan<- ui.Event) (stressResult, error) {
	var res stressResult
	for round := range opts.rounds {
		if round > 0 {
			tbl.Flush()
		}
		var err error
		res, err = stress(ctx, tbl, opts, round, timer, events)
		if err != nil {
			return stressResult{}, fmt.Errorf("round %d: %w", round, err)
		}
		notify(events, ui.Event{Round: round, Worker: -1, Entries: res.entries})
	}
	return res, nil
}

func notify(events chan<- ui.Event, ev ui.Event) {
	if events != nil {
		events <- ev
	}
}

func stress(ctx context.Context, tbl *structidx.Table, opts stressOptions, round int, timer *observ.Timer, events chan<- ui.Event) (stressResult, error) {
	phase := timer.Begin("generate")
	perWorker := make([][]types.StructIdentifier, opts.workers)
	for w := range perWorker {
		if opts.distinct {
			perWorker[w] = generateIdentifiers(opts.seed+uint64(round), w, opts.names)
		} else {
			perWorker[w] = []types.StructIdentifier{{
				Module: types.NewModuleID(types.AddressOne, types.MustIdentifier("foo")),
				Name:   types.MustIdentifier("Foo"),
			}}
		}
	}
	timer.End(phase, fmt.Sprintf("%d workers", opts.workers))

	phase = timer.Begin("intern")
	handles := make([][]structidx.StructNameIndex, opts.workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := range perWorker {
		g.Go(func() error {
			notify(events, ui.Event{Round: round, Worker: w, Status: ui.StatusWorking})
			out := make([]structidx.StructNameIndex, len(perWorker[w]))
			for i, id := range perWorker[w] {
				if err := gctx.Err(); err != nil {
					return err
				}
				idx, err := tbl.Intern(id)
				if err != nil {
					notify(events, ui.Event{Round: round, Worker: w, Status: ui.StatusError, Note: err.Error()})
					return err
				}
				out[i] = idx
			}
			handles[w] = out
			notify(events, ui.Event{Round: round, Worker: w, Status: ui.StatusDone,
				Note: fmt.Sprintf("%d handles", len(out))})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stressResult{}, err
	}
	timer.End(phase, "")

	phase = timer.Begin("verify")
	// Equal identifiers must share a handle and distinct ones must not.
	byID := make(map[types.StructIdentifier]structidx.StructNameIndex)
	byHandle := make(map[structidx.StructNameIndex]types.StructIdentifier)
	checked := 0
	for w, ids := range perWorker {
		for i, id := range ids {
			h := handles[w][i]
			if prev, ok := byID[id]; ok && prev != h {
				return stressResult{}, fmt.Errorf("%s interned as both %s and %s", id, prev, h)
			}
			if prev, ok := byHandle[h]; ok && prev != id {
				return stressResult{}, fmt.Errorf("handle %s assigned to both %s and %s", h, prev, id)
			}
			byID[id], byHandle[h] = h, id
			got, err := tbl.Lookup(h)
			if err != nil {
				return stressResult{}, err
			}
			if got != id {
				return stressResult{}, fmt.Errorf("handle %s resolves to %s, want %s", h, got, id)
			}
			checked++
		}
	}

	n, err := tbl.CheckedLen()
	if err != nil {
		return stressResult{}, err
	}
	if n != len(byID) {
		return stressResult{}, fmt.Errorf("table holds %d entries, %d distinct identifiers were interned", n, len(byID))
	}
	timer.End(phase, fmt.Sprintf("%d handles", checked))
	return stressResult{entries: n, handles: checked}, nil
}

// generateIdentifiers derives n identifiers for worker w; workers may collide
// with each other, which the checks above tolerate.
func generateIdentifiers(seed uint64, w, n int) []types.StructIdentifier {
	r := rand.New(rand.NewPCG(seed, uint64(w)))
	out := make([]types.StructIdentifier, n)
	for i := range out {
		var addr types.Address
		addr[types.AddressLength-1] = byte(r.IntN(4))
		id, err := types.NewStructIdentifier(addr,
			fmt.Sprintf("m%d", r.IntN(16)),
			fmt.Sprintf("S%d", r.IntN(64)))
		if err != nil {
			panic(err) // generated names are always valid
		}
		out[i] = id
	}
	return out
}
