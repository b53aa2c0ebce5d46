package anim

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeFreq struct{ bits atomic.Uint64 }

func (f *fakeFreq) Set(hz float64) { f.bits.Store(uint64(hz * 1000)) }
func (f *fakeFreq) CycleFrequencyHz() float64 { return float64(f.bits.Load()) / 1000 }

type recordedNotice struct {
	text string
	d    time.Duration
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (n *fakeNotifier) ShowText(text string, d time.Duration) {
	n.mu.Lock()
	n.notices = append(n.notices, recordedNotice{text: text, d: d})
	n.mu.Unlock()
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type fakeHistory struct {
	mu      sync.Mutex
	names   []string
	batches [][]Job
}

func (h *fakeHistory) AddInstruction(name string, jobs []Job) {
	h.mu.Lock()
	h.names = append(h.names, name)
	h.batches = append(h.batches, jobs)
	h.mu.Unlock()
}

// firedLog records the order in which labelled actions ran.
type firedLog struct {
	mu    sync.Mutex
	order []string
	count map[string]int
}

func newFiredLog() *firedLog { return &firedLog{count: map[string]int{}} }

func (l *firedLog) action(label string) Action {
	return func() {
		l.mu.Lock()
		l.order = append(l.order, label)
		l.count[label]++
		l.mu.Unlock()
	}
}

func (l *firedLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

func (l *firedLog) times(label string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count[label]
}

type harness struct {
	s      *Scheduler
	clock  *fakeClock
	freq   *fakeFreq
	notify *fakeNotifier
	hist   *fakeHistory
	fired  *firedLog
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clock:  newFakeClock(),
		freq:   &fakeFreq{},
		notify: &fakeNotifier{},
		hist:   &fakeHistory{},
		fired:  newFiredLog(),
	}
	h.freq.Set(1)
	h.s = New(cfg, Deps{
		Frequency: h.freq,
		Notifier:  h.notify,
		History:   h.hist,
		Clock:     h.clock,
	})
	return h
}

// drain ticks until nothing is pending or max ticks ran.
func (h *harness) drain(max int) {
	for i := 0; i < max && h.s.Pending() > 0; i++ {
		h.s.tick()
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
