package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"animsched/internal/anim"
	logx "animsched/pkg/logx"
)

const (
	DefaultFrequencyHz = 1
	DefaultStepDelay   = 100 * time.Millisecond

	pausePoll = 100 * time.Millisecond
)

// DefaultProgram is used when Config.Program is empty.
var DefaultProgram = []string{"lw", "add", "sw", "beq"}

// Phases scheduled for every instruction, in order.
var Phases = []string{"fetch", "decode", "execute", "writeback"}

// Scheduler is the part of anim.Scheduler the driver needs.
type Scheduler interface {
	NewCycle()
	ScheduleInstruction(name string, delay time.Duration, actions ...anim.Action) error
}

type Config struct {
	FrequencyHz float64
	StepDelay   time.Duration
	Program     []string
}

func (c Config) withDefaults() Config {
	if c.FrequencyHz == 0 {
		c.FrequencyHz = DefaultFrequencyHz
	}
	if c.StepDelay <= 0 {
		c.StepDelay = DefaultStepDelay
	}
	prog := make([]string, 0, len(c.Program))
	for _, p := range c.Program {
		if p = strings.TrimSpace(p); p != "" {
			prog = append(prog, p)
		}
	}
	if len(prog) == 0 {
		prog = append(prog, DefaultProgram...)
	}
	c.Program = prog
	return c
}

// Step is one visual step executed by an animation action.
type Step struct {
	Cycle       uint64
	Instruction string
	Phase       string
}

type Option func(*Driver)

// WithStepFunc observes every executed step. It runs on the dispatch goroutine.
func WithStepFunc(fn func(Step)) Option {
	return func(d *Driver) { d.onStep = fn }
}

type Driver struct {
	clock *Clock
	sched Scheduler
	log   logx.Logger

	mu  sync.Mutex
	cfg Config
	pc  int

	cycles atomic.Uint64
	steps  atomic.Uint64
	onStep func(Step)
}

func NewDriver(cfg Config, clock *Clock, sched Scheduler, log logx.Logger, opts ...Option) *Driver {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = NewClock(cfg.FrequencyHz)
	}
	d := &Driver{clock: clock, sched: sched, log: log, cfg: cfg}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Driver) Clock() *Clock { return d.clock }

// Apply swaps the program and step delay and retunes the clock. The program
// counter restarts when the program changes.
func (d *Driver) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	d.mu.Lock()
	if strings.Join(cfg.Program, ",") != strings.Join(d.cfg.Program, ",") {
		d.pc = 0
	}
	d.cfg = cfg
	d.mu.Unlock()
	d.clock.SetFrequency(cfg.FrequencyHz)
}

// Cycle runs one processor cycle: a new animation cycle plus the steps of the
// next instruction in the program.
func (d *Driver) Cycle() (string, error) {
	d.mu.Lock()
	name := d.cfg.Program[d.pc%len(d.cfg.Program)]
	d.pc++
	delay := d.cfg.StepDelay
	d.mu.Unlock()

	n := d.cycles.Add(1)
	d.sched.NewCycle()

	actions := make([]anim.Action, len(Phases))
	for i, phase := range Phases {
		st := Step{Cycle: n, Instruction: name, Phase: phase}
		actions[i] = func() { d.step(st) }
	}
	if err := d.sched.ScheduleInstruction(name, delay, actions...); err != nil {
		return name, fmt.Errorf("cycle %d: %w", n, err)
	}
	d.log.Debug("cycle", logx.Uint64("n", n), logx.String("instr", name))
	return name, nil
}

func (d *Driver) step(s Step) {
	d.steps.Add(1)
	d.log.Trace("step", logx.Uint64("cycle", s.Cycle), logx.String("instr", s.Instruction), logx.String("phase", s.Phase))
	if d.onStep != nil {
		d.onStep(s)
	}
}

// Run cycles at the clock's frequency until ctx is done or maxCycles cycles
// ran (maxCycles <= 0 means unbounded). A zero frequency pauses the driver.
func (d *Driver) Run(ctx context.Context, maxCycles int) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	ran := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		hz := d.clock.CycleFrequencyHz()
		if hz <= 0 {
			timer.Reset(pausePoll)
			continue
		}
		if _, err := d.Cycle(); err != nil {
			if errors.Is(err, anim.ErrNegativeDelay) {
				return err
			}
			d.log.Warn("cycle failed", logx.Err(err))
		}
		ran++
		if maxCycles > 0 && ran >= maxCycles {
			return nil
		}
		timer.Reset(time.Duration(float64(time.Second) / hz))
	}
}

type Stats struct {
	Cycles uint64
	Steps  uint64
}

func (d *Driver) Stats() Stats {
	return Stats{Cycles: d.cycles.Load(), Steps: d.steps.Load()}
}
