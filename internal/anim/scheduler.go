package anim

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"animsched/internal/eventbus"
	"animsched/internal/metrics"
	rtsup "animsched/internal/runtime/supervisor"
	logx "animsched/pkg/logx"
)

// Deps are the scheduler's collaborators. Only Frequency is needed for the
// overload guard to do anything; every other field may be left nil.
type Deps struct {
	Frequency FrequencySource
	Notifier  Notifier
	History   HistorySink
	Clock     Clock
	Log       logx.Logger
	Bus       eventbus.Bus
	Metrics   *metrics.Metrics
}

// Scheduler owns the job store and the cycle timing state.
type Scheduler struct {
	freq    FrequencySource
	notify  Notifier
	history HistorySink
	clock   Clock
	log     logx.Logger
	bus     eventbus.Bus
	m       *metrics.Metrics

	// mu guards cycle state and cfg. Scheduling pushes into the store while
	// holding mu so a concurrent NewCycle cannot interleave between reading
	// the generation and enqueueing.
	mu         sync.Mutex
	cfg        Config
	gen        uint64
	cycleStart time.Time
	cumulative time.Duration
	instr      time.Duration
	seq        uint64

	jobs  store
	guard *Guard

	warnLimiter *rate.Limiter

	// lifecycle
	lmu     sync.Mutex
	sup     *rtsup.Supervisor
	stopped bool

	stats counters
}

func New(cfg Config, deps Deps) *Scheduler {
	cfg = cfg.withDefaults()
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	s := &Scheduler{
		freq:        deps.Frequency,
		notify:      deps.Notifier,
		history:     deps.History,
		clock:       deps.Clock,
		log:         deps.Log,
		bus:         deps.Bus,
		m:           deps.Metrics,
		cfg:         cfg,
		guard:       NewGuard(cfg.MaxFrequencyHz),
		warnLimiter: rate.NewLimiter(rate.Every(warnThrottleEvery), 1),
	}
	s.cycleStart = s.clock.Now()
	return s
}

// Apply swaps the dispatcher config at runtime. A running loop picks up a
// new tick interval on its next tick.
func (s *Scheduler) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	s.mu.Unlock()
	s.guard.SetThreshold(cfg.MaxFrequencyHz)
	if prev != cfg {
		s.log.Info("scheduler config applied",
			logx.Duration("tick", cfg.TickInterval),
			logx.Float64("max_hz", cfg.MaxFrequencyHz),
			logx.Int("backlog_cap", cfg.BacklogCap),
		)
	}
}

func (s *Scheduler) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// NewCycle starts a new simulated cycle: the timing base moves to now, the
// running delay resets to zero and every pending job is discarded.
func (s *Scheduler) NewCycle() {
	s.mu.Lock()
	gen := s.newCycleLocked()
	s.mu.Unlock()

	s.publish(eventbus.TypeCycleStarted, CycleEvent{Generation: gen})
}

func (s *Scheduler) newCycleLocked() uint64 {
	now := s.clock.Now()
	// cycle start never moves backwards, even if the wall clock does.
	if now.After(s.cycleStart) {
		s.cycleStart = now
	}
	s.gen++
	s.cumulative = 0
	s.instr = 0
	if n := s.jobs.clear(); n > 0 {
		s.stats.droppedCycle.Add(uint64(n))
		s.m.JobsDropped(metrics.ReasonCycle, n)
		s.log.Debug("pending jobs cleared by new cycle", logx.Int("dropped", n), logx.Uint64("gen", s.gen))
	}
	s.stats.cycles.Add(1)
	s.m.CycleStarted()
	return s.gen
}

// ScheduleBatch enqueues actions so the first fires at the current cycle
// delay and each following one delay later.
func (s *Scheduler) ScheduleBatch(delay time.Duration, actions ...Action) error {
	_, err := s.schedule(delay, actions)
	return err
}

// ScheduleInstruction is ScheduleBatch that also records the batch under
// name in the instruction history.
func (s *Scheduler) ScheduleInstruction(name string, delay time.Duration, actions ...Action) error {
	jobs, err := s.schedule(delay, actions)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	if len(jobs) > 0 && s.history != nil {
		s.history.AddInstruction(name, jobs)
	}
	return nil
}

func (s *Scheduler) schedule(delay time.Duration, actions []Action) ([]Job, error) {
	if delay < 0 {
		return nil, ErrNegativeDelay
	}
	if len(actions) == 0 {
		return nil, nil
	}

	jobs := make([]Job, 0, len(actions))
	entries := make([]*entry, 0, len(actions))

	s.mu.Lock()
	s.instr = 0
	for _, a := range actions {
		j := Job{CycleOffset: s.cumulative, InstructionOffset: s.instr, Action: a}
		s.seq++
		entries = append(entries, &entry{job: j, gen: s.gen, seq: s.seq})
		jobs = append(jobs, j)
		s.cumulative += delay
		s.instr += delay
	}
	s.jobs.push(entries...)
	s.mu.Unlock()

	s.stats.scheduled.Add(uint64(len(entries)))
	s.m.JobsScheduled(len(entries))
	return jobs, nil
}

// Replay starts a fresh cycle and enqueues copies of jobs re-based to their
// within-instruction offsets. The caller's slice is left untouched.
func (s *Scheduler) Replay(jobs []Job) {
	s.mu.Lock()
	gen := s.newCycleLocked()
	entries := make([]*entry, 0, len(jobs))
	for _, j := range jobs {
		if j.Action == nil {
			continue
		}
		j.CycleOffset = j.InstructionOffset
		s.seq++
		entries = append(entries, &entry{job: j, gen: gen, seq: s.seq})
	}
	s.jobs.push(entries...)
	s.mu.Unlock()

	s.stats.replays.Add(1)
	s.stats.scheduled.Add(uint64(len(entries)))
	s.m.Replayed()
	s.m.JobsScheduled(len(entries))
	s.log.Debug("replay scheduled", logx.Int("jobs", len(entries)), logx.Uint64("gen", gen))
	s.publish(eventbus.TypeCycleStarted, CycleEvent{Generation: gen})
	s.publish(eventbus.TypeReplay, ReplayEvent{Generation: gen, Jobs: len(entries)})
}

// Pending returns the number of queued jobs.
func (s *Scheduler) Pending() int { return s.jobs.len() }

func (s *Scheduler) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: data})
}
