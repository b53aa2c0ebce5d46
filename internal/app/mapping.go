package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"animsched/internal/anim"
	"animsched/internal/config"
	"animsched/internal/history"
	"animsched/internal/housekeeping"
	"animsched/internal/observability/debugsrv"
	"animsched/internal/sim"
	"animsched/internal/storage"
	logx "animsched/pkg/logx"
)

type Config = config.Config

func mapLoggingConfig(cfg *Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *Config) (anim.Config, error) {
	sc := cfg.Scheduler
	tick, err := config.ParseDurationOrDefault("scheduler.tick_interval", sc.TickInterval, anim.DefaultTickInterval)
	if err != nil {
		return anim.Config{}, err
	}
	if tick < time.Millisecond {
		return anim.Config{}, fmt.Errorf("scheduler.tick_interval must be >= 1ms")
	}
	notice, err := config.ParseDurationOrDefault("scheduler.notice_duration", sc.NoticeDuration, anim.DefaultNoticeDuration)
	if err != nil {
		return anim.Config{}, err
	}
	return anim.Config{
		TickInterval:   tick,
		MaxFrequencyHz: sc.MaxFrequencyHz,
		BacklogCap:     sc.BacklogCap,
		NoticeText:     strings.TrimSpace(sc.NoticeText),
		NoticeDuration: notice,
	}, nil
}

// mapSimConfig applies a CLI frequency override (> 0) on top of the file.
func mapSimConfig(cfg *Config, freqOverride float64) (sim.Config, error) {
	sc := cfg.Simulation
	if sc.FrequencyHz < 0 {
		return sim.Config{}, fmt.Errorf("simulation.frequency_hz must be >= 0")
	}
	step, err := config.ParseDurationOrDefault("simulation.step_delay", sc.StepDelay, sim.DefaultStepDelay)
	if err != nil {
		return sim.Config{}, err
	}
	hz := sc.FrequencyHz
	if freqOverride > 0 {
		hz = freqOverride
	}
	return sim.Config{FrequencyHz: hz, StepDelay: step, Program: sc.Program}, nil
}

func mapHistoryConfig(cfg *Config) (history.Config, time.Duration, error) {
	if cfg.History.Capacity < 0 {
		return history.Config{}, 0, fmt.Errorf("history.capacity must be >= 0")
	}
	maxAge, err := config.ParseDurationField("history.max_age", cfg.History.MaxAge)
	if err != nil {
		return history.Config{}, 0, err
	}
	return history.Config{Capacity: cfg.History.Capacity}, maxAge, nil
}

func mapHousekeepingConfig(cfg *Config) housekeeping.Config {
	if cfg.Housekeeping == nil {
		return housekeeping.Config{}
	}
	hk := cfg.Housekeeping
	return housekeeping.Config{
		Enabled:  hk.Enabled,
		Timezone: strings.TrimSpace(hk.Timezone),
		Specs: map[string]string{
			housekeeping.JobPrune: hk.PruneSpec,
			housekeeping.JobStats: hk.StatsSpec,
		},
	}
}

func mapStorageConfig(cfg *Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}

	switch driver {
	case "file":
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapDebugConfig(cfg *Config) (debugsrv.Config, error) {
	d := cfg.Debug
	rt, err := config.ParseDurationOrDefault("debug.read_timeout", d.ReadTimeout, 10*time.Second)
	if err != nil {
		return debugsrv.Config{}, err
	}
	// 0 by default so /profile (30s+) works.
	wt, err := config.ParseDurationField("debug.write_timeout", d.WriteTimeout)
	if err != nil {
		return debugsrv.Config{}, err
	}
	it, err := config.ParseDurationOrDefault("debug.idle_timeout", d.IdleTimeout, 60*time.Second)
	if err != nil {
		return debugsrv.Config{}, err
	}
	if d.MutexProfileFraction < 0 || d.BlockProfileRate < 0 {
		return debugsrv.Config{}, fmt.Errorf("debug profile rates must be >= 0")
	}
	return debugsrv.Config{
		Enabled:              d.Enabled,
		Addr:                 strings.TrimSpace(d.Addr),
		Prefix:               d.Prefix,
		MetricsPath:          d.MetricsPath,
		Token:                strings.TrimSpace(d.Token),
		AllowInsecure:        d.AllowInsecure,
		ReadTimeout:          rt,
		WriteTimeout:         wt,
		IdleTimeout:          it,
		MutexProfileFraction: d.MutexProfileFraction,
		BlockProfileRate:     d.BlockProfileRate,
	}, nil
}

// validate rejects a config before it is committed (startup and hot reload).
func validate(_ context.Context, cfg *Config, hk *housekeeping.Service) error {
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSimConfig(cfg, 0); err != nil {
		return err
	}
	if _, _, err := mapHistoryConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDebugConfig(cfg); err != nil {
		return err
	}
	if hk != nil {
		if err := hk.Validate(mapHousekeepingConfig(cfg)); err != nil {
			return err
		}
	}
	return nil
}
