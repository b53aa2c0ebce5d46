// Package history keeps the animation batches recorded per instruction so the
// visualisation can replay them later.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"animsched/internal/anim"
	"animsched/internal/eventbus"
	logx "animsched/pkg/logx"
)

const DefaultCapacity = 100

type Config struct {
	// Capacity bounds the number of records kept; the oldest go first.
	Capacity int
}

// Record is one recorded instruction batch.
type Record struct {
	ID         string
	Name       string
	RecordedAt time.Time
	Jobs       []anim.Job
}

// Summary is the persistable part of a Record (actions are not).
type Summary struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	RecordedAt         time.Time       `json:"recorded_at"`
	CycleOffsets       []time.Duration `json:"cycle_offsets"`
	InstructionOffsets []time.Duration `json:"instruction_offsets"`
}

func (r Record) Summary() Summary {
	s := Summary{
		ID:                 r.ID,
		Name:               r.Name,
		RecordedAt:         r.RecordedAt,
		CycleOffsets:       make([]time.Duration, len(r.Jobs)),
		InstructionOffsets: make([]time.Duration, len(r.Jobs)),
	}
	for i, j := range r.Jobs {
		s.CycleOffsets[i] = j.CycleOffset
		s.InstructionOffsets[i] = j.InstructionOffset
	}
	return s
}

type History struct {
	mu      sync.RWMutex
	cfg     Config
	records []Record // oldest first

	log logx.Logger
	bus eventbus.Bus
	now func() time.Time
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *History {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &History{cfg: withDefaults(cfg), log: log, bus: bus, now: time.Now}
}

func withDefaults(cfg Config) Config {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return cfg
}

// Apply changes capacity; excess records are evicted immediately.
func (h *History) Apply(cfg Config) {
	cfg = withDefaults(cfg)
	h.mu.Lock()
	h.cfg = cfg
	h.evictLocked()
	h.mu.Unlock()
}

// AddInstruction implements anim.HistorySink.
func (h *History) AddInstruction(name string, jobs []anim.Job) {
	if len(jobs) == 0 {
		return
	}
	rec := Record{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(name),
		RecordedAt: h.now(),
		Jobs:       append([]anim.Job(nil), jobs...),
	}

	h.mu.Lock()
	h.records = append(h.records, rec)
	h.evictLocked()
	h.mu.Unlock()

	h.log.Trace("instruction recorded", logx.String("name", rec.Name), logx.Int("jobs", len(rec.Jobs)), logx.String("id", rec.ID))
	if h.bus != nil {
		h.bus.Publish(eventbus.Event{Type: eventbus.TypeHistoryRecorded, Time: rec.RecordedAt, Data: rec.Summary()})
	}
}

func (h *History) evictLocked() {
	if over := len(h.records) - h.cfg.Capacity; over > 0 {
		clear(h.records[:over])
		h.records = append(h.records[:0], h.records[over:]...)
	}
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.records) {
		n = len(h.records)
	}
	out := make([]Record, 0, n)
	for i := len(h.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.records[i].clone())
	}
	return out
}

func (h *History) Get(id string) (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].ID == id {
			return h.records[i].clone(), true
		}
	}
	return Record{}, false
}

// Latest returns the most recent record for an instruction name.
func (h *History) Latest(name string) (Record, bool) {
	name = strings.TrimSpace(name)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.records) - 1; i >= 0; i-- {
		if strings.EqualFold(h.records[i].Name, name) {
			return h.records[i].clone(), true
		}
	}
	return Record{}, false
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Prune drops records older than maxAge. maxAge <= 0 is a no-op.
func (h *History) Prune(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	now := h.now()
	h.mu.Lock()
	cutoff := now.Add(-maxAge)
	kept := h.records[:0]
	for _, r := range h.records {
		if r.RecordedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	removed := len(h.records) - len(kept)
	clear(h.records[len(kept):])
	h.records = kept
	h.mu.Unlock()

	if removed > 0 {
		h.log.Debug("history pruned", logx.Int("removed", removed), logx.Duration("max_age", maxAge))
		if h.bus != nil {
			h.bus.Publish(eventbus.Event{Type: eventbus.TypeHistoryPruned, Time: now, Data: removed})
		}
	}
	return removed
}

func (r Record) clone() Record {
	r.Jobs = append([]anim.Job(nil), r.Jobs...)
	return r
}
