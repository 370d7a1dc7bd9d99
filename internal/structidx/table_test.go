package structidx

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"

	"structnames/internal/trace"
	"structnames/internal/types"
)

func makeStructName(module, name string) types.StructIdentifier {
	return types.StructIdentifier{
		Module: types.NewModuleID(types.AddressOne, types.MustIdentifier(module)),
		Name:   types.MustIdentifier(name),
	}
}

func mustIntern(t testing.TB, tbl *Table, id types.StructIdentifier) StructNameIndex {
	t.Helper()
	idx, err := tbl.Intern(id)
	if err != nil {
		t.Fatalf("Intern(%s): %v", id, err)
	}
	return idx
}

func mustLen(t testing.TB, tbl *Table) int {
	t.Helper()
	n, err := tbl.CheckedLen()
	if err != nil {
		t.Fatalf("CheckedLen: %v", err)
	}
	return n
}

func TestIndexMapMustContainIdx(t *testing.T) {
	tbl := NewEmpty()
	_, err := tbl.Ref(0)
	if err == nil {
		t.Fatal("Ref(0) on an empty table must fail")
	}
	if !errors.Is(err, ErrOutOfBounds) || !IsDefect(err) {
		t.Fatalf("expected out-of-bounds defect, got %v", err)
	}
	if errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("out-of-bounds must not match invariant violation: %v", err)
	}
}

func TestIndexMap(t *testing.T) {
	tbl := NewEmpty()

	// First-time access.
	foo := makeStructName("foo", "Foo")
	if idx := mustIntern(t, tbl, foo); idx != 0 {
		t.Fatalf("foo index = %d, want 0", idx)
	}
	bar := makeStructName("bar", "Bar")
	if idx := mustIntern(t, tbl, bar); idx != 1 {
		t.Fatalf("bar index = %d, want 1", idx)
	}

	// Struct names actually correspond to indices.
	gotFoo, err := tbl.Ref(0)
	if err != nil {
		t.Fatal(err)
	}
	if gotFoo.Value() != foo {
		t.Errorf("Ref(0) = %s, want %s", gotFoo, foo)
	}
	gotBar, err := tbl.Ref(1)
	if err != nil {
		t.Fatal(err)
	}
	if gotBar.Value() != bar {
		t.Errorf("Ref(1) = %s, want %s", gotBar, bar)
	}

	// Second access returns the same indices.
	if idx := mustIntern(t, tbl, foo); idx != 0 {
		t.Errorf("foo re-intern = %d, want 0", idx)
	}
	if idx := mustIntern(t, tbl, bar); idx != 1 {
		t.Errorf("bar re-intern = %d, want 1", idx)
	}

	if n := mustLen(t, tbl); n != 2 {
		t.Errorf("CheckedLen = %d, want 2", n)
	}
}

func TestInternEqualValuesShareIndex(t *testing.T) {
	tbl := NewEmpty()
	a := makeStructName("coin", "Coin")
	b, err := types.ParseStructIdentifier("0x1::coin::Coin")
	if err != nil {
		t.Fatal(err)
	}
	ia := mustIntern(t, tbl, a)
	mustIntern(t, tbl, makeStructName("other", "Thing"))
	ib := mustIntern(t, tbl, b)
	if ia != ib {
		t.Fatalf("equal identifiers got different handles: %s vs %s", ia, ib)
	}
}

func TestDenseHandles(t *testing.T) {
	tbl := NewEmpty()
	const n = 200
	for i := range n {
		idx := mustIntern(t, tbl, makeStructName(fmt.Sprintf("m%d", i), "S"))
		if int(idx) != i {
			t.Fatalf("handle %d assigned to the %d-th identifier", idx, i)
		}
	}
	if got := mustLen(t, tbl); got != n {
		t.Fatalf("CheckedLen = %d, want %d", got, n)
	}
	entries := tbl.Entries()
	for i, e := range entries {
		if int(e.Index) != i {
			t.Fatalf("entries[%d].Index = %d", i, e.Index)
		}
	}
}

func TestLookupReturnsIndependentCopy(t *testing.T) {
	tbl := NewEmpty()
	foo := makeStructName("foo", "Foo")
	idx := mustIntern(t, tbl, foo)

	owned, err := tbl.Lookup(idx)
	if err != nil {
		t.Fatal(err)
	}
	owned.Name = "Changed"

	ref, err := tbl.Ref(idx)
	if err != nil {
		t.Fatal(err)
	}
	if ref.Value() != foo {
		t.Fatalf("table entry changed through an owned copy: %s", ref)
	}
}

func TestRefSharesStoredValue(t *testing.T) {
	tbl := NewEmpty()
	idx := mustIntern(t, tbl, makeStructName("foo", "Foo"))
	r1, err := tbl.Ref(idx)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := tbl.Ref(idx)
	if err != nil {
		t.Fatal(err)
	}
	if !r1.Same(r2) {
		t.Fatal("Ref must hand out views of the shared stored value, not copies")
	}
	if (NameRef{}).Same(NameRef{}) || !(NameRef{}).IsZero() {
		t.Fatal("zero NameRef must view nothing")
	}
}

func TestRefCannotMutateTable(t *testing.T) {
	tbl := NewEmpty()
	foo := makeStructName("foo", "Foo")
	bar := makeStructName("bar", "Bar")
	idx := mustIntern(t, tbl, foo)

	ref, err := tbl.Ref(idx)
	if err != nil {
		t.Fatal(err)
	}
	v := ref.Value()
	v.Name = bar.Name
	if v == foo {
		t.Fatal("Value must return a copy")
	}

	got, err := tbl.Lookup(idx)
	if err != nil {
		t.Fatal(err)
	}
	if got != foo || ref.Value() != foo {
		t.Fatalf("entry %s changed through a reference: %s", idx, got)
	}
	if barIdx := mustIntern(t, tbl, bar); barIdx != 1 {
		t.Fatalf("bar interned as %s, want #1", barIdx)
	}
	if again := mustIntern(t, tbl, foo); again != idx {
		t.Fatalf("foo re-interned as %s, want %s", again, idx)
	}
	if n := mustLen(t, tbl); n != 2 {
		t.Fatalf("CheckedLen = %d, want 2", n)
	}
}

func TestOutOfBounds(t *testing.T) {
	tbl := NewEmpty()
	mustIntern(t, tbl, makeStructName("foo", "Foo"))

	checks := map[string]func(StructNameIndex) error{
		"Ref": func(i StructNameIndex) error {
			_, err := tbl.Ref(i)
			return err
		},
		"Lookup": func(i StructNameIndex) error {
			_, err := tbl.Lookup(i)
			return err
		},
		"StructTag": func(i StructNameIndex) error {
			_, err := tbl.StructTag(i, []types.TypeTag{types.U8})
			return err
		},
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			if err := call(0); err != nil {
				t.Fatalf("in-range handle failed: %v", err)
			}
			err := call(1)
			var defect *Error
			if !errors.As(err, &defect) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if defect.Code != CodeOutOfBounds || defect.Index != 1 || defect.BackwardLen != 1 {
				t.Errorf("unexpected defect detail: %+v", defect)
			}
			if CodeOf(err) != CodeOutOfBounds {
				t.Errorf("CodeOf = %s", CodeOf(err))
			}
		})
	}
}

func TestStructTagFidelity(t *testing.T) {
	tbl := NewEmpty()
	foo := makeStructName("foo", "Foo")
	idx := mustIntern(t, tbl, foo)

	t1 := types.MakeVector(types.U8)
	t2 := types.MakeStruct(makeStructName("bar", "Bar").Tag(nil))
	tag, err := tbl.StructTag(idx, []types.TypeTag{t1, t2})
	if err != nil {
		t.Fatal(err)
	}
	want := types.StructTag{
		Address:  types.AddressOne,
		Module:   "foo",
		Name:     "Foo",
		TypeArgs: []types.TypeTag{t1, t2},
	}
	if diff := cmp.Diff(want, tag); diff != "" {
		t.Errorf("tag mismatch (-want +got):\n%s", diff)
	}
	if got := tag.CanonicalString(); got != "0x1::foo::Foo<vector<u8>, 0x1::bar::Bar>" {
		t.Errorf("CanonicalString = %q", got)
	}
}

func TestStructTagPassesArgsThroughUnchecked(t *testing.T) {
	tbl := NewEmpty()
	idx := mustIntern(t, tbl, makeStructName("foo", "Foo"))

	tag, err := tbl.StructTag(idx, nil)
	if err != nil || tag.TypeArgs != nil {
		t.Fatalf("nil args: tag=%v err=%v", tag, err)
	}
	args := []types.TypeTag{types.Invalid, types.Signer, types.Signer}
	tag, err = tbl.StructTag(idx, args)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(args, tag.TypeArgs); diff != "" {
		t.Errorf("args altered (-want +got):\n%s", diff)
	}
}

func TestFlushResetsNumbering(t *testing.T) {
	tbl := NewEmpty()
	foo := makeStructName("foo", "Foo")
	bar := makeStructName("bar", "Bar")
	mustIntern(t, tbl, foo)
	mustIntern(t, tbl, bar)
	held, err := tbl.Ref(1)
	if err != nil {
		t.Fatal(err)
	}

	tbl.Flush()

	if n := mustLen(t, tbl); n != 0 {
		t.Fatalf("CheckedLen after flush = %d", n)
	}
	if tbl.Epoch() != 1 {
		t.Fatalf("Epoch = %d, want 1", tbl.Epoch())
	}
	if _, err := tbl.Ref(0); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("stale handle must be out of bounds, got %v", err)
	}
	if idx := mustIntern(t, tbl, bar); idx != 0 {
		t.Fatalf("first intern after flush = %d, want 0", idx)
	}
	if held.Value() != bar {
		t.Fatalf("reference held across flush changed: %s", held)
	}
}

func TestCheckedLenDetectsMismatch(t *testing.T) {
	tbl := NewEmpty()
	mustIntern(t, tbl, makeStructName("foo", "Foo"))
	extra := makeStructName("bar", "Bar")
	tbl.backward = append(tbl.backward, &extra)

	_, err := tbl.CheckedLen()
	var defect *Error
	if !errors.As(err, &defect) || defect.Code != CodeInvariantViolation {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if defect.ForwardLen != 1 || defect.BackwardLen != 2 {
		t.Errorf("lengths = %d/%d, want 1/2", defect.ForwardLen, defect.BackwardLen)
	}
	if _, err := tbl.Fingerprint(); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("Fingerprint must refuse an inconsistent table, got %v", err)
	}
}

func TestZeroTableUsable(t *testing.T) {
	var tbl Table
	if n := mustLen(t, &tbl); n != 0 {
		t.Fatalf("zero table len = %d", n)
	}
	if idx := mustIntern(t, &tbl, makeStructName("foo", "Foo")); idx != 0 {
		t.Fatalf("idx = %d", idx)
	}
	tbl.Flush()
	if n := mustLen(t, &tbl); n != 0 {
		t.Fatalf("len after flush = %d", n)
	}
}

func TestCloneIsDetached(t *testing.T) {
	tbl := NewEmpty()
	foo := makeStructName("foo", "Foo")
	mustIntern(t, tbl, foo)
	tbl.Flush()
	mustIntern(t, tbl, foo)

	clone := tbl.Clone()
	if clone.Epoch() != tbl.Epoch() {
		t.Errorf("clone epoch = %d, want %d", clone.Epoch(), tbl.Epoch())
	}
	mustIntern(t, tbl, makeStructName("bar", "Bar"))
	mustIntern(t, clone, makeStructName("baz", "Baz"))
	mustIntern(t, clone, makeStructName("qux", "Qux"))

	if n := mustLen(t, tbl); n != 2 {
		t.Errorf("source len = %d, want 2", n)
	}
	if n := mustLen(t, clone); n != 3 {
		t.Errorf("clone len = %d, want 3", n)
	}
	clone.Flush()
	if n := mustLen(t, tbl); n != 2 {
		t.Errorf("flushing the clone touched the source: len = %d", n)
	}
	if idx := mustIntern(t, tbl, foo); idx != 0 {
		t.Errorf("source handle for foo = %d, want 0", idx)
	}
}

func TestFingerprintTracksOrder(t *testing.T) {
	ids := []types.StructIdentifier{
		makeStructName("foo", "Foo"),
		makeStructName("bar", "Bar"),
		makeStructName("baz", "Baz"),
	}
	build := func(order []types.StructIdentifier) uint64 {
		tbl := NewEmpty()
		for _, id := range order {
			mustIntern(t, tbl, id)
		}
		fp, err := tbl.Fingerprint()
		if err != nil {
			t.Fatal(err)
		}
		return fp
	}
	a := build(ids)
	b := build(ids)
	c := build([]types.StructIdentifier{ids[2], ids[1], ids[0]})
	if a != b {
		t.Errorf("same order, different fingerprints: %x vs %x", a, b)
	}
	if a == c {
		t.Errorf("different order, same fingerprint %x", a)
	}
}

type recordingObserver struct {
	hits, misses, flushes, defects atomic.Int64
	lastCode                       atomic.Int64
}

func (o *recordingObserver) InternHit()     { o.hits.Add(1) }
func (o *recordingObserver) InternMiss(int) { o.misses.Add(1) }
func (o *recordingObserver) Flushed(int)    { o.flushes.Add(1) }
func (o *recordingObserver) Defect(c Code) {
	o.defects.Add(1)
	o.lastCode.Store(int64(c))
}

func TestObserverNotified(t *testing.T) {
	obs := &recordingObserver{}
	tbl := NewEmpty(WithObserver(obs))
	foo := makeStructName("foo", "Foo")
	mustIntern(t, tbl, foo)
	mustIntern(t, tbl, foo)
	mustIntern(t, tbl, makeStructName("bar", "Bar"))
	_, _ = tbl.Lookup(9)
	tbl.Flush()

	if obs.hits.Load() != 1 || obs.misses.Load() != 2 || obs.flushes.Load() != 1 || obs.defects.Load() != 1 {
		t.Fatalf("hits=%d misses=%d flushes=%d defects=%d",
			obs.hits.Load(), obs.misses.Load(), obs.flushes.Load(), obs.defects.Load())
	}
	if Code(obs.lastCode.Load()) != CodeOutOfBounds {
		t.Errorf("last defect = %s", Code(obs.lastCode.Load()))
	}
}

func TestTracerEvents(t *testing.T) {
	ring := trace.NewRingTracer(16, trace.LevelEntry)
	tbl := NewEmpty(WithTracer(ring))
	foo := makeStructName("foo", "Foo")
	mustIntern(t, tbl, foo)
	mustIntern(t, tbl, foo)
	_, _ = tbl.Ref(5)
	tbl.Flush()

	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Scope.String()+":"+ev.Name)
	}
	want := []string{"entry:intern", "defect:IDX2001", "table:flush"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexMapConcurrentSingleStructName(t *testing.T) {
	defer leaktest.Check(t)()

	tbl := NewEmpty()
	name := makeStructName("foo", "Foo")

	const workers = 50
	results := make([]StructNameIndex, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func() {
			defer wg.Done()
			idx, err := tbl.Intern(name)
			if err != nil {
				t.Errorf("Intern: %v", err)
				return
			}
			results[w] = idx
		}()
	}
	wg.Wait()

	// Only a single struct name must be cached.
	if n := mustLen(t, tbl); n != 1 {
		t.Fatalf("CheckedLen = %d, want 1", n)
	}
	for w, idx := range results {
		if idx != results[0] {
			t.Fatalf("worker %d observed %s, worker 0 observed %s", w, idx, results[0])
		}
	}
}

func randomIdentifier(r *rand.Rand) string {
	const first = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const rest = first + "0123456789_"
	b := []byte{first[r.IntN(len(first))]}
	for range r.IntN(12) {
		b = append(b, rest[r.IntN(len(rest))])
	}
	return string(b)
}

func randomStructNames(r *rand.Rand, n int) []types.StructIdentifier {
	seen := make(map[types.StructIdentifier]bool, n)
	out := make([]types.StructIdentifier, 0, n)
	for len(out) < n {
		var addr types.Address
		addr[types.AddressLength-1] = byte(r.IntN(4))
		id, err := types.NewStructIdentifier(addr, randomIdentifier(r), randomIdentifier(r))
		if err != nil {
			panic(err)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func TestIndexMapConcurrentArbitraryStructNames(t *testing.T) {
	defer leaktest.Check(t)()

	for seed := range uint64(20) {
		r := rand.New(rand.NewPCG(seed, 0x5eed))
		names := randomStructNames(r, 30+r.IntN(70))
		tbl := NewEmpty()

		// Each goroutine caches a struct name and reads it back.
		var wg sync.WaitGroup
		handles := make([]StructNameIndex, len(names))
		for i, name := range names {
			wg.Add(1)
			go func() {
				defer wg.Done()
				idx, err := tbl.Intern(name)
				if err != nil {
					t.Errorf("Intern: %v", err)
					return
				}
				got, err := tbl.Ref(idx)
				if err != nil {
					t.Errorf("Ref(%s): %v", idx, err)
					return
				}
				if got.Value() != name {
					t.Errorf("Ref(%s) = %s, want %s", idx, got, name)
				}
				handles[i] = idx
			}()
		}
		wg.Wait()

		if n := mustLen(t, tbl); n != len(names) {
			t.Fatalf("seed %d: CheckedLen = %d, want %d", seed, n, len(names))
		}
		slices.Sort(handles)
		for i, idx := range handles {
			if int(idx) != i {
				t.Fatalf("seed %d: handles are not exactly 0..%d: %v", seed, len(names)-1, handles)
			}
		}
	}
}

func TestConcurrentInternAndReaders(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	tbl := NewEmpty()
	names := randomStructNames(rand.New(rand.NewPCG(7, 7)), 100)

	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				switch (g + i) % 4 {
				case 0:
					if _, err := tbl.Intern(names[i%len(names)]); err != nil {
						t.Errorf("Intern: %v", err)
					}
				case 1:
					if _, err := tbl.CheckedLen(); err != nil {
						t.Errorf("CheckedLen: %v", err)
					}
				case 2:
					n, _ := tbl.CheckedLen()
					if n > 0 {
						if _, err := tbl.Lookup(StructNameIndex(i % n)); err != nil {
							t.Errorf("Lookup: %v", err)
						}
					}
				case 3:
					_ = tbl.Clone().Entries()
				}
			}
		}()
	}
	wg.Wait()

	for _, e := range tbl.Entries() {
		if idx := mustIntern(t, tbl, e.Identifier); idx != e.Index {
			t.Fatalf("%s moved from %s to %s", e.Identifier, e.Index, idx)
		}
	}
}
