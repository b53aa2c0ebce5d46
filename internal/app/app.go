package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"animsched/internal/anim"
	"animsched/internal/config"
	"animsched/internal/eventbus"
	"animsched/internal/history"
	"animsched/internal/housekeeping"
	"animsched/internal/metrics"
	"animsched/internal/observability/debugsrv"
	rtsup "animsched/internal/runtime/supervisor"
	"animsched/internal/sim"
	"animsched/internal/storage"
	"animsched/internal/surface"
	logx "animsched/pkg/logx"
)

var ErrNoRecord = errors.New("no recorded instruction")

// Options are command-line overrides on top of the config file.
type Options struct {
	// FrequencyHz overrides simulation.frequency_hz when > 0.
	FrequencyHz float64
	// Cycles stops the simulation driver after n cycles (0 = unbounded).
	Cycles int
	// ForceSimulation runs the driver even if simulation.enabled is false.
	ForceSimulation bool
}

type App struct {
	opts Options

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	m     *metrics.Metrics

	clock   *sim.Clock
	sched   *anim.Scheduler
	hist    *history.History
	driver  *sim.Driver
	screen  *surface.Console
	hk      *housekeeping.Service
	debug   *debugsrv.Service
	simDone chan struct{}

	maxAge atomic.Int64 // history.max_age
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, root := logx.New(mapLoggingConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	a := &App{
		opts:    opts,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		m:       metrics.New(),
		simDone: make(chan struct{}),
	}
	a.hk = housekeeping.New(mapHousekeepingConfig(cfg), root.With(logx.String("comp", "housekeeping")))
	a.hk.Register(housekeeping.JobPrune, "@every 1m", a.pruneHistory)
	a.hk.Register(housekeeping.JobStats, "@every 30s", a.reportStats)
	if err := validate(context.Background(), cfg, a.hk); err != nil {
		return nil, err
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	hc, maxAge, _ := mapHistoryConfig(cfg)
	a.maxAge.Store(int64(maxAge))
	a.hist = history.New(hc, root.With(logx.String("comp", "history")), a.bus)

	simCfg, _ := mapSimConfig(cfg, opts.FrequencyHz)
	a.clock = sim.NewClock(simCfg.FrequencyHz)
	a.screen = surface.NewConsole(root.With(logx.String("comp", "surface")), a.bus)

	schedCfg, _ := mapSchedulerConfig(cfg)
	a.sched = anim.New(schedCfg, anim.Deps{
		Frequency: a.clock,
		Notifier:  a.screen,
		History:   a.hist,
		Log:       root.With(logx.String("comp", "anim")),
		Bus:       a.bus,
		Metrics:   a.m,
	})
	a.driver = sim.NewDriver(simCfg, a.clock, a.sched, root.With(logx.String("comp", "sim")))

	dc, _ := mapDebugConfig(cfg)
	a.debug = debugsrv.New(dc, debugsrv.Handlers{
		Metrics:  a.m.Handler(),
		Snapshot: func() any { return a.Snapshot() },
	}, root.With(logx.String("comp", "debug")))

	return a, nil
}

func (a *App) Scheduler() *anim.Scheduler { return a.sched }
func (a *App) History() *history.History  { return a.hist }
func (a *App) Store() storage.Store       { return a.store }
func (a *App) Logger() logx.Logger        { return a.log }

// SimDone is closed when the simulation driver returns.
func (a *App) SimDone() <-chan struct{} { return a.simDone }

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) simEnabled() bool {
	cfg := a.cfgm.Get()
	return a.opts.ForceSimulation || (cfg != nil && cfg.Simulation.Enabled)
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *Config) error {
		return validate(c, cfg, a.hk)
	})

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.startRecorder()
	a.startEventLog()

	if err := a.hk.Start(a.sup.Context()); err != nil {
		a.log.Warn("housekeeping partially started", logx.Err(err))
	}
	if a.debug.Enabled() {
		a.debug.Start(a.sup.Context())
	}

	if a.simEnabled() {
		a.sup.Go("sim.driver", func(c context.Context) error {
			defer close(a.simDone)
			return a.driver.Run(c, a.opts.Cycles)
		})
	} else {
		close(a.simDone)
	}

	a.startConfigReload()
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started",
		logx.Bool("simulation", a.simEnabled()),
		logx.Float64("hz", a.clock.CycleFrequencyHz()),
		logx.Bool("storage", a.store != nil),
	)
	return nil
}

// ReplayLatest replays the most recent batch recorded for an instruction.
func (a *App) ReplayLatest(name string) (history.Record, error) {
	rec, ok := a.hist.Latest(name)
	if !ok {
		return history.Record{}, fmt.Errorf("%w: %q", ErrNoRecord, name)
	}
	a.sched.Replay(rec.Jobs)
	a.log.Info("replay", logx.String("instr", rec.Name), logx.String("id", rec.ID), logx.Int("jobs", len(rec.Jobs)))
	return rec, nil
}

// WaitIdle blocks until the scheduler backlog is empty or ctx is done.
func (a *App) WaitIdle(ctx context.Context) error {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for a.sched.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Snapshot is the app-wide diagnostic view served on /debug/scheduler.
type Snapshot struct {
	Scheduler    anim.Snapshot        `json:"scheduler"`
	Simulation   sim.Stats            `json:"simulation"`
	FrequencyHz  float64              `json:"frequency_hz"`
	History      int                  `json:"history"`
	Housekeeping []housekeeping.Entry `json:"housekeeping,omitempty"`
	Supervisor   rtsup.Counters       `json:"supervisor"`
}

func (a *App) Snapshot() Snapshot {
	s := Snapshot{
		Scheduler:    a.sched.Snapshot(),
		Simulation:   a.driver.Stats(),
		FrequencyHz:  a.clock.CycleFrequencyHz(),
		History:      a.hist.Len(),
		Housekeeping: a.hk.Entries(),
	}
	if a.sup != nil {
		s.Supervisor = a.sup.Counters()
	}
	return s
}

func (a *App) pruneHistory(ctx context.Context) error {
	maxAge := time.Duration(a.maxAge.Load())
	if maxAge <= 0 {
		return nil
	}
	n := a.hist.Prune(maxAge)
	var persisted int
	if a.store != nil {
		var err error
		persisted, err = a.store.PruneInstructions(ctx, time.Now().Add(-maxAge))
		if err != nil {
			return fmt.Errorf("prune storage: %w", err)
		}
	}
	if n > 0 || persisted > 0 {
		a.log.Info("history pruned", logx.Int("memory", n), logx.Int("storage", persisted))
	}
	return nil
}

func (a *App) reportStats(context.Context) error {
	snap := a.Snapshot()
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeSchedulerSnapshot, Data: snap})
	a.log.Info("stats",
		logx.Uint64("cycles", snap.Scheduler.Cycles),
		logx.Uint64("fired", snap.Scheduler.Fired),
		logx.Int("pending", snap.Scheduler.Pending),
		logx.String("guard", snap.Scheduler.Guard.String()),
		logx.Uint64("dropped_overload", snap.Scheduler.DroppedByOverload),
		logx.Uint64("dropped_trim", snap.Scheduler.DroppedByTrim),
		logx.Int("history", snap.History),
	)
	return nil
}

func (a *App) startEventLog() {
	events, unsub := a.bus.Subscribe(256)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				// Trace: fire events arrive every tick.
				a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})
}

func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
	}

	if sc, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(sc)
	}
	if sc, err := mapSimConfig(newCfg, a.opts.FrequencyHz); err != nil {
		a.log.Warn("invalid simulation config; keeping previous", logx.Err(err))
	} else {
		a.driver.Apply(sc)
	}
	if hc, maxAge, err := mapHistoryConfig(newCfg); err != nil {
		a.log.Warn("invalid history config; keeping previous", logx.Err(err))
	} else {
		a.hist.Apply(hc)
		a.maxAge.Store(int64(maxAge))
	}

	hkCfg := mapHousekeepingConfig(newCfg)
	wasRunning := a.hk.Enabled()
	if err := a.hk.Apply(hkCfg); err != nil {
		a.log.Warn("housekeeping apply failed", logx.Err(err))
	}
	if !wasRunning && hkCfg.Enabled {
		if err := a.hk.Start(ctx); err != nil {
			a.log.Warn("housekeeping start failed", logx.Err(err))
		}
	}

	if dc, err := mapDebugConfig(newCfg); err != nil {
		a.log.Warn("invalid debug config; keeping previous", logx.Err(err))
	} else {
		a.debug.Reconfigure(ctx, dc)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Cancel the run context so background loops start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "housekeeping", time.Second, func(c context.Context) error { a.hk.Stop(c); return nil })
	a.step(ctx, "debug", time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	a.step(ctx, "scheduler", 2*time.Second, a.sched.Shutdown)
	// Waits for the recorder to flush before storage closes.
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	snap := a.sched.Snapshot()
	a.log.Info("stopped",
		logx.Uint64("cycles", snap.Cycles),
		logx.Uint64("fired", snap.Fired),
		logx.Uint64("notices", snap.Notices),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max and the caller's deadline.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		max = min(max, time.Until(dl))
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
