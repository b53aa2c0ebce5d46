package anim

import (
	"container/heap"
	"sync"
	"time"
)

// jobHeap is a min-heap ordered by (CycleOffset, seq).
type jobHeap []*entry

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].job.CycleOffset != h[j].job.CycleOffset {
		return h[i].job.CycleOffset < h[j].job.CycleOffset
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// store is the pending-job holding area shared by producer and dispatcher.
// Each method is atomic; nothing hands out the underlying slice.
type store struct {
	mu sync.Mutex
	h  jobHeap
}

func (s *store) push(es ...*entry) {
	if len(es) == 0 {
		return
	}
	s.mu.Lock()
	for _, e := range es {
		heap.Push(&s.h, e)
	}
	s.mu.Unlock()
}

func (s *store) len() int {
	s.mu.Lock()
	n := len(s.h)
	s.mu.Unlock()
	return n
}

// peek returns a copy of the earliest-due job.
func (s *store) peek() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.h) == 0 {
		return Job{}, false
	}
	return s.h[0].job, true
}

// clear drops every pending entry and returns how many were dropped.
func (s *store) clear() int {
	s.mu.Lock()
	n := len(s.h)
	for _, e := range s.h {
		e.index = -1
	}
	s.h = nil
	s.mu.Unlock()
	return n
}

// trim keeps the limit earliest-due entries and drops the rest.
func (s *store) trim(limit int) int {
	if limit < 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.h)
	if n <= limit {
		return 0
	}
	kept := make(jobHeap, 0, limit)
	for i := 0; i < limit; i++ {
		kept = append(kept, heap.Pop(&s.h).(*entry))
	}
	for _, e := range s.h {
		e.index = -1
	}
	// Popped in heap order, so kept is already a valid heap.
	for i, e := range kept {
		e.index = i
	}
	s.h = kept
	return n - limit
}

// popDue removes and returns the head entry when it belongs to generation
// gen and its offset has elapsed. Heads from older generations are discarded
// and counted in stale. A head from a newer generation is left alone: the
// caller's view of the cycle is out of date.
func (s *store) popDue(gen uint64, elapsed time.Duration) (due *entry, stale int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.h) > 0 && s.h[0].gen < gen {
		heap.Pop(&s.h)
		stale++
	}
	if len(s.h) == 0 {
		return nil, stale
	}
	head := s.h[0]
	if head.gen != gen || head.job.CycleOffset > elapsed {
		return nil, stale
	}
	return heap.Pop(&s.h).(*entry), stale
}
