package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"animsched/internal/config"
	"animsched/internal/storage"
	logx "animsched/pkg/logx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "animsched.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunRecordsAndReplays(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := writeConfig(t, `
logging:
  level: error
scheduler:
  tick_interval: 5ms
simulation:
  enabled: true
  frequency_hz: 1.9
  step_delay: 10ms
  program: [lw, add]
storage:
  driver: file
  path: `+filepath.Join(dir, "store.db")+`
`)

	a, err := New(cfgPath, Options{Cycles: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-a.SimDone():
	case <-ctx.Done():
		t.Fatal("simulation did not finish")
	}
	if err := a.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if n := a.History().Len(); n != 2 {
		t.Fatalf("history len = %d, want 2", n)
	}

	rec, err := a.ReplayLatest("lw")
	if err != nil || len(rec.Jobs) != 4 {
		t.Fatalf("ReplayLatest = %+v, %v", rec, err)
	}
	if _, err := a.ReplayLatest("jal"); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("ReplayLatest(jal) = %v", err)
	}
	if err := a.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle after replay: %v", err)
	}

	snap := a.Snapshot()
	if snap.Scheduler.Replays != 1 || snap.Simulation.Cycles != 2 || snap.Scheduler.Fired != 12 {
		t.Fatalf("snapshot = %+v", snap)
	}

	if err := a.Stop(context.Background(), StopCompleted); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(dir, "store.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	recs, err := st.RecentInstructions(context.Background(), 0)
	if err != nil || len(recs) != 2 || recs[0].Name != "add" || recs[1].Name != "lw" {
		t.Fatalf("persisted = %+v, %v", recs, err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"bad tick":     "scheduler:\n  tick_interval: fast\n",
		"tiny tick":    "scheduler:\n  tick_interval: 10us\n",
		"neg freq":     "simulation:\n  frequency_hz: -1\n",
		"neg history":  "history:\n  capacity: -1\n",
		"bad driver":   "storage:\n  driver: redis\n  path: x\n",
		"no path":      "storage:\n  driver: sqlite\n",
		"bad cron":     "housekeeping:\n  enabled: true\n  prune_spec: sometimes\n",
		"bad debug":    "debug:\n  read_timeout: -1s\n",
		"unknown key":  "scheduler:\n  speed: 3\n",
		"bad timezone": "housekeeping:\n  timezone: Nowhere/Land\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(writeConfig(t, body), Options{}); err == nil {
				t.Fatalf("New accepted %q", body)
			}
		})
	}
}

func TestMapSchedulerAndSim(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Scheduler:  config.SchedulerConfig{MaxFrequencyHz: 4, BacklogCap: -1, NoticeText: "  slow  "},
		Simulation: config.SimulationConfig{FrequencyHz: 1, StepDelay: "50ms"},
	}
	sc, err := mapSchedulerConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if sc.TickInterval != 20*time.Millisecond || sc.MaxFrequencyHz != 4 || sc.BacklogCap != -1 || sc.NoticeText != "slow" {
		t.Fatalf("scheduler = %+v", sc)
	}

	simCfg, err := mapSimConfig(cfg, 3)
	if err != nil {
		t.Fatal(err)
	}
	if simCfg.FrequencyHz != 3 || simCfg.StepDelay != 50*time.Millisecond {
		t.Fatalf("sim = %+v", simCfg)
	}
	if simCfg, _ = mapSimConfig(cfg, 0); simCfg.FrequencyHz != 1 {
		t.Fatalf("override without flag: %v", simCfg.FrequencyHz)
	}
}
