package anim

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"animsched/internal/eventbus"
	"animsched/internal/metrics"
	rtsup "animsched/internal/runtime/supervisor"
	logx "animsched/pkg/logx"
)

const warnThrottleEvery = 5 * time.Second

// Start launches the dispatch loop. It is idempotent while running and
// returns ErrStopped after Shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.lmu.Lock()
	defer s.lmu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.sup != nil {
		return nil
	}

	s.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log),
		rtsup.WithCancelOnError(false),
	)
	// The loop only exits on cancellation; anything else is a bug worth a restart.
	s.sup.GoRestart("dispatch", func(c context.Context) error {
		s.loop(c)
		if c.Err() != nil {
			return c.Err()
		}
		return errors.New("dispatch loop exited unexpectedly")
	},
		rtsup.WithPublishFirstError(true),
		rtsup.WithRestartBackoff(s.config().TickInterval, time.Second),
	)
	s.log.Info("dispatcher started", logx.Duration("tick", s.config().TickInterval))
	return nil
}

// Shutdown stops dispatching for good. An action that is already running is
// allowed to finish, but Shutdown only waits for it until ctx is done.
// Jobs scheduled afterwards are accepted and never fire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.lmu.Lock()
	s.stopped = true
	sup := s.sup
	s.lmu.Unlock()

	if sup == nil {
		return nil
	}
	sup.Cancel()
	err := sup.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("dispatcher stop timed out; in-flight action left running", logx.Err(err))
		return nil
	}
	s.log.Info("dispatcher stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	interval := s.config().TickInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
		s.tick()

		if iv := s.config().TickInterval; iv != interval {
			interval = iv
			ticker.Reset(iv)
			s.log.Debug("dispatch tick interval changed", logx.Duration("tick", iv))
		}
	}
}

// tick runs one dispatch pass and reports whether a job fired.
func (s *Scheduler) tick() bool {
	s.stats.ticks.Add(1)
	if s.jobs.len() == 0 {
		return false
	}

	cfg := s.config()
	var hz float64
	if s.freq != nil {
		hz = s.freq.CycleFrequencyHz()
	}
	state, entered := s.guard.Observe(hz)
	s.m.SetSuppressed(state == GuardSuppressed)
	if state == GuardSuppressed {
		n := s.jobs.clear()
		s.dropped(metrics.ReasonOverload, n)
		if entered {
			s.stats.notices.Add(1)
			s.m.NoticeShown()
			s.log.Warn("clock too fast to animate; suppressing", logx.Float64("hz", hz), logx.Float64("max_hz", s.guard.Threshold()), logx.Int("dropped", n))
			if s.notify != nil {
				s.notify.ShowText(cfg.NoticeText, cfg.NoticeDuration)
			}
		}
		s.m.SetBacklog(0)
		return false
	}

	if cfg.BacklogCap >= 0 {
		if n := s.jobs.trim(cfg.BacklogCap); n > 0 {
			s.dropped(metrics.ReasonTrim, n)
		}
	}

	s.mu.Lock()
	gen := s.gen
	start := s.cycleStart
	s.mu.Unlock()
	elapsed := s.clock.Now().Sub(start)

	e, stale := s.jobs.popDue(gen, elapsed)
	if stale > 0 {
		s.dropped(metrics.ReasonStale, stale)
	}
	s.m.SetBacklog(s.jobs.len())
	if e == nil {
		return false
	}
	s.fire(e, elapsed)
	return true
}

func (s *Scheduler) fire(e *entry, elapsed time.Duration) {
	late := elapsed - e.job.CycleOffset
	defer func() {
		if r := recover(); r != nil {
			s.stats.panics.Add(1)
			s.m.ActionPanicked()
			s.log.Error("animation action panicked", logx.Any("panic", r), logx.Duration("offset", e.job.CycleOffset), logx.Stack(string(debug.Stack())))
		}
	}()

	s.stats.fired.Add(1)
	s.m.JobFired(late)
	s.log.Trace("job fired", logx.Duration("offset", e.job.CycleOffset), logx.Duration("late", late), logx.Uint64("gen", e.gen))
	s.publish(eventbus.TypeJobFired, FireEvent{Generation: e.gen, Offset: e.job.CycleOffset, Late: late})
	e.job.Action()
}

func (s *Scheduler) dropped(reason string, n int) {
	if n <= 0 {
		return
	}
	switch reason {
	case metrics.ReasonTrim:
		s.stats.droppedTrim.Add(uint64(n))
	case metrics.ReasonOverload:
		s.stats.droppedOverload.Add(uint64(n))
	case metrics.ReasonStale:
		s.stats.droppedStale.Add(uint64(n))
	}
	s.m.JobsDropped(reason, n)
	s.publish(eventbus.TypeJobsDropped, DropEvent{Reason: reason, Count: n})
	if reason != metrics.ReasonOverload && s.warnLimiter.Allow() {
		s.log.Warn("animation jobs dropped", logx.String("reason", reason), logx.Int("count", n))
	}
}

func (s *Scheduler) String() string {
	snap := s.Snapshot()
	return fmt.Sprintf("anim.Scheduler{gen=%d pending=%d guard=%s}", snap.Generation, snap.Pending, snap.Guard)
}
