package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "animsched/pkg/logx"
)

const sampleYAML = `
logging:
  level: debug
  console: true
scheduler:
  tick_interval: 20ms
  max_frequency_hz: 2
  backlog_cap: 10
simulation:
  enabled: true
  frequency_hz: 1.5
  program: [lw, add, sw]
history:
  capacity: 50
  max_age: 1h
storage:
  driver: sqlite
  path: ./data/animsched.db
debug:
  enabled: false
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("animsched.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Scheduler.TickInterval != "20ms" || cfg.Scheduler.BacklogCap != 10 || cfg.Scheduler.MaxFrequencyHz != 2 {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if got := strings.Join(cfg.Simulation.Program, ","); got != "lw,add,sw" || cfg.Simulation.FrequencyHz != 1.5 {
		t.Fatalf("simulation = %+v", cfg.Simulation)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Housekeeping != nil {
		t.Fatalf("housekeeping should be nil when omitted")
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name, file, data string
	}{
		{"unknown json field", "c.json", `{"scheduler":{"tick":"20ms"}}`},
		{"unknown yaml field", "c.yml", "history:\n  size: 3\n"},
		{"trailing json", "c.json", `{} {}`},
		{"bad yaml", "c.yaml", "scheduler: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tc.file, []byte(tc.data)); err == nil {
				t.Fatalf("Decode(%s) succeeded", tc.data)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{"", time.Second, time.Second, false},
		{"  ", 0, 0, false},
		{"20ms", time.Second, 20 * time.Millisecond, false},
		{"0s", 5 * time.Second, 5 * time.Second, false},
		{"-1s", 0, 0, true},
		{"soon", 0, 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDurationOrDefault("x", tc.raw, tc.def)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseDurationOrDefault(%q) err = %v, wantErr %v", tc.raw, err, tc.wantErr)
		}
		if err == nil && got != tc.want {
			t.Fatalf("ParseDurationOrDefault(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg, err := Decode("a.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	newCfg := *oldCfg
	newCfg.Scheduler.BacklogCap = 20
	newCfg.Simulation.Program = []string{"lw"}
	newCfg.Debug.Token = "secret"

	sections, attrs := SummarizeConfigChange(oldCfg, &newCfg)
	if got := strings.Join(sections, ","); got != "debug,scheduler,simulation" {
		t.Fatalf("sections = %s", got)
	}
	var buf bytes.Buffer
	logx.NewWriter(&buf, "debug").Info("summary", attrs...)
	if strings.Contains(buf.String(), "secret") {
		t.Fatalf("token leaked into summary: %s", buf.String())
	}

	if s, _ := SummarizeConfigChange(oldCfg, oldCfg); len(s) != 0 {
		t.Fatalf("identical configs reported %v", s)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "animsched.json")
	write := func(s string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write(`{"scheduler":{"backlog_cap":10}}`)

	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(_ context.Context, c *Config) error {
		if c.Scheduler.BacklogCap > 100 {
			return context.Canceled
		}
		return nil
	})
	sub := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	write(`{"scheduler":{"backlog_cap":500}}`)
	time.Sleep(2 * watchDebounce)
	write(`{"scheduler":{"backlog_cap":20}}`)

	select {
	case c := <-sub:
		if c.Scheduler.BacklogCap != 20 {
			t.Fatalf("published backlog_cap = %d, want 20", c.Scheduler.BacklogCap)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no config published")
	}
	if got := m.Get().Scheduler.BacklogCap; got != 20 {
		t.Fatalf("committed backlog_cap = %d", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
