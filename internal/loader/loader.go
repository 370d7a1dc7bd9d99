// Package loader owns the struct name table for one loading session.
package loader

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"structnames/internal/structidx"
	"structnames/internal/trace"
	"structnames/internal/types"
)

// Loader interns struct identifiers on behalf of a session. It holds the
// only long-lived reference to its table.
type Loader struct {
	table  *structidx.Table
	tracer trace.Tracer
}

// Option configures a Loader.
type Option func(*config)

type config struct {
	tracer   trace.Tracer
	observer structidx.Observer
}

// WithTracer routes session, table and entry events to t.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) { c.tracer = t }
}

// WithObserver forwards table activity to o.
func WithObserver(o structidx.Observer) Option {
	return func(c *config) { c.observer = o }
}

// New creates a loader with an empty table.
func New(opts ...Option) *Loader {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.tracer == nil {
		c.tracer = trace.Nop
	}
	tableOpts := []structidx.Option{structidx.WithTracer(c.tracer)}
	if c.observer != nil {
		tableOpts = append(tableOpts, structidx.WithObserver(c.observer))
	}
	return &Loader{
		table:  structidx.NewEmpty(tableOpts...),
		tracer: c.tracer,
	}
}

// Table returns the session table.
func (l *Loader) Table() *structidx.Table {
	return l.table
}

// Load interns ids using up to jobs goroutines and returns their handles
// positionally. jobs <= 0 means GOMAXPROCS. After interning, every handle is
// resolved back and compared against its identifier, and the table size is
// checked; any disagreement is returned as a defect.
func (l *Loader) Load(ctx context.Context, ids []types.StructIdentifier, jobs int) ([]structidx.StructNameIndex, error) {
	ctx, span := trace.Start(ctx, l.tracer, trace.ScopeSession, "load")
	span.WithExtra("identifiers", strconv.Itoa(len(ids)))
	defer span.End("")

	if len(ids) == 0 {
		return nil, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Each goroutine writes only its own slot.
	handles := make([]structidx.StructNameIndex, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(ids)))
	for i, id := range ids {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			idx, err := l.table.Intern(id)
			if err != nil {
				return fmt.Errorf("intern %s: %w", id, err)
			}
			handles[i] = idx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.WithExtra("error", err.Error())
		return nil, err
	}

	trace.Point(l.tracer, trace.ScopeTable, "verify", "", trace.CurrentSpan(ctx), "handles", strconv.Itoa(len(handles)))
	if err := l.verify(ids, handles); err != nil {
		span.WithExtra("error", err.Error())
		return nil, err
	}
	n, err := l.table.CheckedLen()
	if err != nil {
		return nil, err
	}
	span.WithExtra("entries", strconv.Itoa(n))
	return handles, nil
}

func (l *Loader) verify(ids []types.StructIdentifier, handles []structidx.StructNameIndex) error {
	for i, idx := range handles {
		ref, err := l.table.Ref(idx)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", ids[i], err)
		}
		if ref.Value() != ids[i] {
			return fmt.Errorf("%w: %s resolved to %s", structidx.ErrInvariantViolation, idx, ref)
		}
	}
	return nil
}

// EndSession flushes the table. Handles returned by earlier Load calls are
// invalid afterwards.
func (l *Loader) EndSession() uint64 {
	l.table.Flush()
	epoch := l.table.Epoch()
	trace.Point(l.tracer, trace.ScopeSession, "end", "", 0, "epoch", strconv.FormatUint(epoch, 10))
	return epoch
}
