// Package housekeeping runs periodic maintenance jobs (history pruning,
// stats reports) on cron schedules.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "animsched/pkg/logx"
)

const (
	JobPrune = "history.prune"
	JobStats = "scheduler.stats"

	defaultJobTimeout = 30 * time.Second
)

type Config struct {
	Enabled  bool
	Timezone string
	// Specs overrides a registered job's default spec by name. An "off"
	// spec disables the job.
	Specs map[string]string
}

// Func is a housekeeping job body. ctx is canceled on Stop or after the
// job timeout.
type Func func(ctx context.Context) error

type job struct {
	name        string
	defaultSpec string
	run         Func
	entryID     cron.EntryID
}

type Service struct {
	log    logx.Logger
	parser cron.Parser

	mu   sync.Mutex
	cfg  Config
	jobs []*job
	c    *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Register adds a job. Call before Start; a running service picks it up on
// the next Apply.
func (s *Service) Register(name, defaultSpec string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, defaultSpec: defaultSpec, run: fn})
}

// Validate checks the timezone and every effective spec.
func (s *Service) Validate(cfg Config) error {
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("housekeeping.timezone: invalid %q: %w", tz, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		spec := effectiveSpec(cfg, j)
		if spec == "" {
			continue
		}
		if _, err := s.parser.Parse(spec); err != nil {
			return fmt.Errorf("housekeeping spec %s=%q: %w", j.name, spec, err)
		}
	}
	return nil
}

func effectiveSpec(cfg Config, j *job) string {
	spec := j.defaultSpec
	if v, ok := cfg.Specs[j.name]; ok && strings.TrimSpace(v) != "" {
		spec = v
	}
	spec = strings.TrimSpace(spec)
	if strings.EqualFold(spec, "off") {
		return ""
	}
	return spec
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || !s.cfg.Enabled {
		return nil
	}
	s.ctx, s.stop = context.WithCancel(ctx)
	return s.startLocked()
}

func (s *Service) startLocked() error {
	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("housekeeping.timezone: %w", err)
		}
		loc = l
	}

	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	var errs []error
	for _, j := range s.jobs {
		j.entryID = 0
		spec := effectiveSpec(s.cfg, j)
		if spec == "" {
			continue
		}
		id, err := c.AddFunc(spec, s.wrap(s.ctx, j))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.name, err))
			continue
		}
		j.entryID = id
	}
	s.c = c
	c.Start()
	s.log.Info("housekeeping started", logx.String("tz", loc.String()), logx.Int("jobs", len(c.Entries())))
	return errors.Join(errs...)
}

// wrap binds the job to the service context. It must not take s.mu: Apply
// holds it while waiting for running jobs.
func (s *Service) wrap(parent context.Context, j *job) func() {
	return func() {
		if parent.Err() != nil {
			return
		}
		_ = s.runJob(parent, j)
	}
}

func (s *Service) runJob(parent context.Context, j *job) error {
	ctx, cancel := context.WithTimeout(parent, defaultJobTimeout)
	defer cancel()
	start := time.Now()
	err := j.run(ctx)
	if err != nil {
		s.log.Warn("housekeeping job failed", logx.String("job", j.name), logx.Err(err))
		return err
	}
	s.log.Debug("housekeeping job done", logx.String("job", j.name), logx.Duration("took", time.Since(start)))
	return nil
}

// RunNow runs a registered job synchronously.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var target *job
	for _, j := range s.jobs {
		if j.name == name {
			target = j
			break
		}
	}
	s.mu.Unlock()
	if target == nil {
		return fmt.Errorf("housekeeping job %q not registered", name)
	}
	return s.runJob(ctx, target)
}

// Apply swaps config; a running service restarts cron with the new specs.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	running := s.c != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case running && !cfg.Enabled:
		s.Stop(context.Background())
		return nil
	case !running:
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return nil
	}
	<-s.c.Stop().Done()
	return s.startLocked()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.stop
	s.c, s.stop = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("housekeeping stopped")
}

// Entry describes a scheduled job.
type Entry struct {
	Name string    `json:"name"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitempty"`
}

func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return nil
	}
	out := make([]Entry, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.entryID == 0 {
			continue
		}
		e := s.c.Entry(j.entryID)
		out = append(out, Entry{Name: j.name, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Trace("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Warn("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
