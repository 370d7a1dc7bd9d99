// Package structidx interns struct identifiers into dense integer handles.
//
// A Table guarantees that equal identifiers always map to the same handle
// within an epoch, that handles are assigned densely from 0, and that an
// entry is never evicted or reassigned. Handles are embedded into runtime
// type representations, so handle inequality is treated as type inequality:
// any breach of these guarantees is reported as a defect (see Error).
package structidx

import (
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"structnames/internal/trace"
	"structnames/internal/types"
)

// Table maps struct identifiers to handles and back.
// The zero Table is empty and ready to use.
type Table struct {
	mu       sync.RWMutex
	forward  map[types.StructIdentifier]StructNameIndex
	backward []*types.StructIdentifier // shared, never mutated after insertion
	epoch    uint64

	tracer   trace.Tracer
	observer Observer
}

// Option configures a Table.
type Option func(*Table)

// WithTracer emits entry events for new identifiers and table events for flushes.
func WithTracer(t trace.Tracer) Option {
	return func(tbl *Table) { tbl.tracer = t }
}

// WithObserver installs an activity observer.
func WithObserver(o Observer) Option {
	return func(tbl *Table) { tbl.observer = o }
}

// NewEmpty returns a table with no entries at epoch 0.
func NewEmpty(opts ...Option) *Table {
	t := &Table{
		forward:  make(map[types.StructIdentifier]StructNameIndex),
		backward: make([]*types.StructIdentifier, 0, 64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Entry is one interned identifier with its handle.
type Entry struct {
	Index      StructNameIndex
	Identifier types.StructIdentifier
}

// Flush drops every entry and starts a new epoch. Handles issued before the
// flush must not be used afterwards; the table does not track them.
func (t *Table) Flush() {
	t.mu.Lock()
	dropped := len(t.backward)
	clear(t.forward)
	clear(t.backward)
	t.backward = t.backward[:0]
	t.epoch++
	epoch := t.epoch
	t.obs().Flushed(dropped)
	t.mu.Unlock()

	trace.Point(t.tr(), trace.ScopeTable, "flush", "", 0,
		"dropped", strconv.Itoa(dropped),
		"epoch", strconv.FormatUint(epoch, 10))
}

// Intern returns the handle of id, assigning the next free one when id is
// seen for the first time in this epoch. For any identifiers A and B with
// A == B, Intern(A) == Intern(B) regardless of the calling goroutine.
func (t *Table) Intern(id types.StructIdentifier) (StructNameIndex, error) {
	// The write lock is taken once for the whole check-then-insert. Checking
	// under a read lock first would let two goroutines both observe a miss
	// and bind the same identifier to two different handles.
	t.mu.Lock()
	if idx, ok := t.forward[id]; ok {
		t.mu.Unlock()
		t.obs().InternHit()
		return idx, nil
	}
	if t.forward == nil {
		t.forward = make(map[types.StructIdentifier]StructNameIndex)
	}

	n := len(t.backward)
	idx, err := indexFor(n)
	if err != nil {
		fwd := len(t.forward)
		t.mu.Unlock()
		return 0, t.report(indexOverflow(fwd, n, err))
	}
	before := len(t.forward)
	t.forward[id] = idx
	stored := id.Clone()
	t.backward = append(t.backward, &stored)
	fwd, bwd := len(t.forward), len(t.backward)
	if fwd == before {
		t.mu.Unlock()
		return 0, t.report(evicted(idx, fwd, bwd))
	}
	// Sizes reported under the lock arrive in table order.
	t.obs().InternMiss(bwd)
	t.mu.Unlock()

	trace.Point(t.tr(), trace.ScopeEntry, "intern", id.String(), 0, "index", idx.String())
	return idx, nil
}

// Ref returns a read-only view of the identifier stored under idx. The view
// shares the table's storage and stays valid after a flush.
func (t *Table) Ref(idx StructNameIndex) (NameRef, error) {
	id, err := t.at(idx, "accessing struct name reference")
	if err != nil {
		return NameRef{}, t.report(err)
	}
	return NameRef{id: id}, nil
}

// Lookup returns an independent copy of the identifier stored under idx.
func (t *Table) Lookup(idx StructNameIndex) (types.StructIdentifier, error) {
	id, err := t.at(idx, "accessing struct name")
	if err != nil {
		return types.StructIdentifier{}, t.report(err)
	}
	return id.Clone(), nil
}

// StructTag assembles the tag of the struct stored under idx. tyArgs are
// passed through verbatim; arity is the caller's responsibility.
func (t *Table) StructTag(idx StructNameIndex, tyArgs []types.TypeTag) (types.StructTag, error) {
	id, err := t.at(idx, "constructing a struct tag for struct name")
	if err != nil {
		return types.StructTag{}, t.report(err)
	}
	return id.Tag(tyArgs), nil
}

func (t *Table) at(idx StructNameIndex, what string) (*types.StructIdentifier, *Error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if uint64(idx) >= uint64(len(t.backward)) {
		e := outOfBounds(what, idx, len(t.backward))
		e.ForwardLen = len(t.forward)
		return nil, e
	}
	return t.backward[idx], nil
}

// CheckedLen returns the number of entries, asserting that the forward and
// backward structures agree.
func (t *Table) CheckedLen() (int, error) {
	t.mu.RLock()
	fwd, bwd := len(t.forward), len(t.backward)
	t.mu.RUnlock()

	if fwd != bwd {
		return 0, t.report(sizeMismatch(fwd, bwd))
	}
	return fwd, nil
}

// Epoch returns the number of flushes since construction.
func (t *Table) Epoch() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.epoch
}

// Entries returns every entry in handle order.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.backward))
	for i, id := range t.backward {
		out[i] = Entry{Index: StructNameIndex(i), Identifier: *id}
	}
	return out
}

// Fingerprint hashes the identifiers in handle order. Tables that interned
// the same identifiers in the same order share a fingerprint.
func (t *Table) Fingerprint() (uint64, error) {
	t.mu.RLock()
	fwd, bwd := len(t.forward), len(t.backward)
	if fwd != bwd {
		t.mu.RUnlock()
		return 0, t.report(sizeMismatch(fwd, bwd))
	}
	d := xxhash.New()
	for _, id := range t.backward {
		_, _ = d.WriteString(id.String())
		_, _ = d.Write([]byte{0})
	}
	t.mu.RUnlock()
	return d.Sum64(), nil
}

// Clone returns a detached point-in-time copy, including the epoch counter.
// Identifiers are shared with the source since they are immutable. Options
// apply to the copy; the source's tracer is inherited, its observer is not.
//
// Only for consumers that need a snapshot; everything else should share one
// live table.
func (t *Table) Clone(opts ...Option) *Table {
	t.mu.RLock()
	c := &Table{
		forward:  maps.Clone(t.forward),
		backward: slices.Clone(t.backward),
		epoch:    t.epoch,
		tracer:   t.tracer,
	}
	n := len(t.backward)
	t.mu.RUnlock()

	if c.forward == nil {
		c.forward = make(map[types.StructIdentifier]StructNameIndex)
	}
	for _, opt := range opts {
		opt(c)
	}
	trace.Point(c.tr(), trace.ScopeTable, "clone", "", 0, "entries", strconv.Itoa(n))
	return c
}

func (t *Table) report(e *Error) error {
	t.obs().Defect(e.Code)
	trace.Point(t.tr(), trace.ScopeDefect, e.Code.String(), e.Message, 0)
	return e
}

func (t *Table) tr() trace.Tracer {
	if t.tracer == nil {
		return trace.Nop
	}
	return t.tracer
}

func (t *Table) obs() Observer {
	if t.observer == nil {
		return nopObserver{}
	}
	return t.observer
}
