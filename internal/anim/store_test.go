package anim

import (
	"testing"
	"time"
)

func mkEntry(offset time.Duration, gen, seq uint64) *entry {
	return &entry{job: Job{CycleOffset: offset}, gen: gen, seq: seq}
}

func TestStoreOrdersByOffsetThenInsertion(t *testing.T) {
	t.Parallel()
	var s store
	s.push(
		mkEntry(30*time.Millisecond, 1, 1),
		mkEntry(10*time.Millisecond, 1, 2),
		mkEntry(10*time.Millisecond, 1, 3),
		mkEntry(0, 1, 4),
	)

	want := []uint64{4, 2, 3, 1}
	for i, seq := range want {
		e, _ := s.popDue(1, time.Hour)
		if e == nil {
			t.Fatalf("pop %d: got nil", i)
		}
		if e.seq != seq {
			t.Fatalf("pop %d: seq = %d, want %d", i, e.seq, seq)
		}
		if e.index != -1 {
			t.Fatalf("pop %d: index = %d, want -1", i, e.index)
		}
	}
	if s.len() != 0 {
		t.Fatalf("len = %d, want 0", s.len())
	}
}

func TestStorePopDueRespectsElapsed(t *testing.T) {
	t.Parallel()
	var s store
	s.push(mkEntry(50*time.Millisecond, 1, 1))

	if e, _ := s.popDue(1, 49*time.Millisecond); e != nil {
		t.Fatal("fired before offset elapsed")
	}
	if e, _ := s.popDue(1, 50*time.Millisecond); e == nil {
		t.Fatal("not fired at offset")
	}
}

func TestStorePopDueGenerations(t *testing.T) {
	t.Parallel()
	var s store
	s.push(mkEntry(0, 1, 1), mkEntry(5*time.Millisecond, 1, 2), mkEntry(10*time.Millisecond, 3, 3))

	// Snapshot at generation 2: both gen-1 entries are stale, the gen-3 head
	// belongs to a cycle the caller has not seen yet.
	e, stale := s.popDue(2, time.Hour)
	if e != nil {
		t.Fatalf("fired entry seq=%d from a foreign generation", e.seq)
	}
	if stale != 2 {
		t.Fatalf("stale = %d, want 2", stale)
	}
	if s.len() != 1 {
		t.Fatalf("len = %d, want 1", s.len())
	}

	e, stale = s.popDue(3, time.Hour)
	if e == nil || e.seq != 3 || stale != 0 {
		t.Fatalf("popDue(3) = %v, %d", e, stale)
	}
}

func TestStoreTrimKeepsEarliest(t *testing.T) {
	t.Parallel()
	var s store
	for i := 14; i >= 0; i-- {
		s.push(mkEntry(time.Duration(i)*10*time.Millisecond, 1, uint64(i)))
	}

	if got := s.trim(10); got != 5 {
		t.Fatalf("trim dropped %d, want 5", got)
	}
	if got := s.trim(10); got != 0 {
		t.Fatalf("second trim dropped %d, want 0", got)
	}
	for i := 0; i < 10; i++ {
		e, _ := s.popDue(1, time.Hour)
		if e == nil {
			t.Fatalf("pop %d: nil", i)
		}
		if want := time.Duration(i) * 10 * time.Millisecond; e.job.CycleOffset != want {
			t.Fatalf("pop %d: offset = %v, want %v", i, e.job.CycleOffset, want)
		}
	}
	if s.len() != 0 {
		t.Fatalf("len = %d after draining kept entries", s.len())
	}
}

func TestStoreClearAndPeek(t *testing.T) {
	t.Parallel()
	var s store
	if _, ok := s.peek(); ok {
		t.Fatal("peek on empty store")
	}
	s.push(mkEntry(20*time.Millisecond, 1, 1), mkEntry(5*time.Millisecond, 1, 2))
	j, ok := s.peek()
	if !ok || j.CycleOffset != 5*time.Millisecond {
		t.Fatalf("peek = %v, %v", j, ok)
	}
	if n := s.clear(); n != 2 {
		t.Fatalf("clear = %d, want 2", n)
	}
	if s.len() != 0 {
		t.Fatal("store not empty after clear")
	}
}
