package anim

import (
	"sync/atomic"
	"time"
)

// CycleEvent is published when a cycle (real or replay) starts.
type CycleEvent struct {
	Generation uint64 `json:"generation"`
}

// FireEvent is published right before a job's action runs.
type FireEvent struct {
	Generation uint64        `json:"generation"`
	Offset     time.Duration `json:"offset"`
	Late       time.Duration `json:"late"`
}

// DropEvent is published whenever pending jobs are discarded.
type DropEvent struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// ReplayEvent is published after a recorded batch was re-enqueued.
type ReplayEvent struct {
	Generation uint64 `json:"generation"`
	Jobs       int    `json:"jobs"`
}

type counters struct {
	ticks           atomic.Uint64
	scheduled       atomic.Uint64
	fired           atomic.Uint64
	cycles          atomic.Uint64
	replays         atomic.Uint64
	notices         atomic.Uint64
	panics          atomic.Uint64
	droppedCycle    atomic.Uint64
	droppedTrim     atomic.Uint64
	droppedOverload atomic.Uint64
	droppedStale    atomic.Uint64
}

// Snapshot is a point-in-time diagnostic view of the scheduler.
type Snapshot struct {
	Generation        uint64        `json:"generation"`
	CycleStart        time.Time     `json:"cycle_start"`
	CumulativeDelay   time.Duration `json:"cumulative_delay"`
	Pending           int           `json:"pending"`
	Guard             GuardState    `json:"guard"`
	Running           bool          `json:"running"`
	TickInterval      time.Duration `json:"tick_interval"`
	Ticks             uint64        `json:"ticks"`
	Scheduled         uint64        `json:"scheduled"`
	Fired             uint64        `json:"fired"`
	Cycles            uint64        `json:"cycles"`
	Replays           uint64        `json:"replays"`
	Notices           uint64        `json:"notices"`
	ActionPanics      uint64        `json:"action_panics"`
	DroppedByCycle    uint64        `json:"dropped_cycle"`
	DroppedByTrim     uint64        `json:"dropped_trim"`
	DroppedByOverload uint64        `json:"dropped_overload"`
	DroppedStale      uint64        `json:"dropped_stale"`
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Generation:      s.gen,
		CycleStart:      s.cycleStart,
		CumulativeDelay: s.cumulative,
		TickInterval:    s.cfg.TickInterval,
	}
	s.mu.Unlock()

	s.lmu.Lock()
	snap.Running = s.sup != nil && !s.stopped
	s.lmu.Unlock()

	snap.Pending = s.jobs.len()
	snap.Guard = s.guard.State()
	snap.Ticks = s.stats.ticks.Load()
	snap.Scheduled = s.stats.scheduled.Load()
	snap.Fired = s.stats.fired.Load()
	snap.Cycles = s.stats.cycles.Load()
	snap.Replays = s.stats.replays.Load()
	snap.Notices = s.stats.notices.Load()
	snap.ActionPanics = s.stats.panics.Load()
	snap.DroppedByCycle = s.stats.droppedCycle.Load()
	snap.DroppedByTrim = s.stats.droppedTrim.Load()
	snap.DroppedByOverload = s.stats.droppedOverload.Load()
	snap.DroppedStale = s.stats.droppedStale.Load()
	return snap
}
