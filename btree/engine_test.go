package btree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/patrickfweston/blocktree/block"
)

// fixture wraps a Tree over a MemCache alongside a reference map, in the
// teacher's newC()-style test-fixture pattern: every mutation through
// the fixture mirrors itself into ref, and tests compare the tree
// against ref rather than hardcoding expected traversal order.
type fixture struct {
	t    *testing.T
	tree *Tree
	ref  map[uint32]string
}

func newFixture(t *testing.T, keySize, valueSize int, blockSize, numBlocks uint32, unique bool) *fixture {
	t.Helper()
	cache := block.NewMemCache(blockSize, numBlocks)
	tree, err := New(Config{KeySize: keySize, ValueSize: valueSize, Unique: unique}, cache)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tree.Attach(0, true); err != nil {
		t.Fatalf("Attach(create): %v", err)
	}
	return &fixture{t: t, tree: tree, ref: map[uint32]string{}}
}

func key4(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func val4(s string) []byte {
	v := make([]byte, 4)
	copy(v, s)
	return v
}

func (f *fixture) add(n uint32, val string) error {
	f.t.Helper()
	err := f.tree.Insert(key4(n), val4(val))
	if err == nil {
		f.ref[n] = string(val4(val))
	}
	return err
}

func (f *fixture) checkAll() {
	f.t.Helper()
	for n, want := range f.ref {
		got, err := f.tree.Lookup(key4(n))
		if err != nil {
			f.t.Errorf("Lookup(%d): %v", n, err)
			continue
		}
		if string(got) != want {
			f.t.Errorf("Lookup(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestInsertAndLookup(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	for i := uint32(0); i < 40; i++ {
		if err := f.add(i, "v"); err != nil {
			t.Fatalf("add(%d): %v", i, err)
		}
	}
	f.checkAll()
	if err := f.tree.SanityCheck(); err != nil {
		t.Errorf("SanityCheck: %v", err)
	}
}

func TestInsertOutOfOrder(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	order := []uint32{50, 10, 90, 30, 70, 20, 80, 40, 60, 0, 5, 55, 95, 15, 65}
	for _, n := range order {
		if err := f.add(n, "v"); err != nil {
			t.Fatalf("add(%d): %v", n, err)
		}
	}
	f.checkAll()
	if err := f.tree.SanityCheck(); err != nil {
		t.Errorf("SanityCheck: %v", err)
	}
}

func TestLookupNonexistent(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	if err := f.add(1, "v"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.tree.Lookup(key4(2)); !errors.Is(err, ErrNonexistent) {
		t.Errorf("Lookup(2) = %v, want ErrNonexistent", err)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	if err := f.add(1, "old!"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.tree.Update(key4(1), val4("new!")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := f.tree.Lookup(key4(1))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if string(got) != "new!" {
		t.Errorf("Lookup after Update = %q, want \"new!\"", got)
	}
}

func TestUpdateNonexistent(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	if err := f.tree.Update(key4(1), val4("v")); !errors.Is(err, ErrNonexistent) {
		t.Errorf("Update on empty tree = %v, want ErrNonexistent", err)
	}
}

func TestInsertDuplicateAllowedWhenNotUnique(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	if err := f.add(1, "a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.tree.Insert(key4(1), val4("b")); err != nil {
		t.Fatalf("second Insert of same key without Unique: %v", err)
	}
}

func TestInsertDuplicateRejectedWhenUnique(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, true)
	if err := f.add(1, "a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.tree.Insert(key4(1), val4("b")); !errors.Is(err, ErrConflict) {
		t.Errorf("second Insert of same key with Unique = %v, want ErrConflict", err)
	}
}

func TestInsertWrongKeySize(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	if err := f.tree.Insert([]byte("toolong"), val4("v")); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Insert with wrong key size = %v, want ErrOutOfRange", err)
	}
}

func TestInsertWrongValueSize(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	if err := f.tree.Insert(key4(1), []byte("toolong")); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Insert with wrong value size = %v, want ErrOutOfRange", err)
	}
}

func TestDeleteNotImplemented(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	if err := f.tree.Delete(key4(1)); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Delete = %v, want ErrNotImplemented", err)
	}
}

func TestSplitsGrowHeight(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	h, err := f.tree.Height()
	if err != nil {
		t.Fatalf("Height: %v", err)
	}
	if h != 1 {
		t.Fatalf("initial Height() = %d, want 1", h)
	}
	for i := uint32(0); i < 100; i++ {
		if err := f.add(i, "v"); err != nil {
			t.Fatalf("add(%d): %v", i, err)
		}
	}
	h, err = f.tree.Height()
	if err != nil {
		t.Fatalf("Height: %v", err)
	}
	if h <= 1 {
		t.Errorf("Height() after 100 inserts = %d, want > 1", h)
	}
	if err := f.tree.SanityCheck(); err != nil {
		t.Errorf("SanityCheck: %v", err)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	for i := uint32(0); i < 50; i++ {
		if err := f.add(i, "v"); err != nil {
			t.Fatalf("add(%d): %v", i, err)
		}
	}
	stats, err := f.tree.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NumKeys != 50 {
		t.Errorf("Stats().NumKeys = %d, want 50", stats.NumKeys)
	}
	if stats.NumLeaves == 0 {
		t.Errorf("Stats().NumLeaves = 0, want > 0")
	}
}

func TestDisplayModesProduceOutput(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	for i := uint32(0); i < 30; i++ {
		if err := f.add(i, "v"); err != nil {
			t.Fatalf("add(%d): %v", i, err)
		}
	}
	for _, mode := range []DisplayMode{DisplayDepth, DisplayDepthDot, DisplaySortedKeyVal} {
		var buf bytes.Buffer
		if err := f.tree.Display(&buf, mode); err != nil {
			t.Errorf("Display(mode=%d): %v", mode, err)
		}
		if buf.Len() == 0 {
			t.Errorf("Display(mode=%d) produced no output", mode)
		}
	}
}

func TestAttachDetachRoundTrip(t *testing.T) {
	cache := block.NewMemCache(128, 64)
	tree, err := New(Config{KeySize: 4, ValueSize: 4}, cache)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tree.Attach(0, true); err != nil {
		t.Fatalf("Attach(create): %v", err)
	}
	if err := tree.Insert(key4(1), val4("v")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Detach(0); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	reopened, err := New(Config{KeySize: 4, ValueSize: 4}, cache)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	if err := reopened.Attach(0, false); err != nil {
		t.Fatalf("Attach(no create): %v", err)
	}
	got, err := reopened.Lookup(key4(1))
	if err != nil {
		t.Fatalf("Lookup after reattach: %v", err)
	}
	if string(got) != string(val4("v")) {
		t.Errorf("Lookup after reattach = %q, want %q", got, val4("v"))
	}
}

func TestSanityCheckEmptyTree(t *testing.T) {
	f := newFixture(t, 4, 4, 128, 64, false)
	if err := f.tree.SanityCheck(); err != nil {
		t.Errorf("SanityCheck on empty tree: %v", err)
	}
}
