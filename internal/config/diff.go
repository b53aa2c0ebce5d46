package config

import (
	"reflect"
	"sort"
	"strings"

	logx "animsched/pkg/logx"
)

// SummarizeConfigChange returns the changed section names and safe structured
// attrs for logging. Secrets (debug.token) are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.tick_interval", strings.TrimSpace(newCfg.Scheduler.TickInterval)),
			logx.Float64("scheduler.max_frequency_hz", newCfg.Scheduler.MaxFrequencyHz),
			logx.Int("scheduler.backlog_cap", newCfg.Scheduler.BacklogCap),
		)
	}

	if !reflect.DeepEqual(oldCfg.Simulation, newCfg.Simulation) {
		changed = append(changed, "simulation")
		attrs = append(attrs,
			logx.Bool("simulation.enabled", newCfg.Simulation.Enabled),
			logx.Float64("simulation.frequency_hz", newCfg.Simulation.FrequencyHz),
			logx.Int("simulation.program_len", len(newCfg.Simulation.Program)),
		)
	}

	if oldCfg.History != newCfg.History {
		changed = append(changed, "history")
		attrs = append(attrs,
			logx.Int("history.capacity", newCfg.History.Capacity),
			logx.String("history.max_age", strings.TrimSpace(newCfg.History.MaxAge)),
		)
	}

	oHK, nHK := derefHousekeeping(oldCfg.Housekeeping), derefHousekeeping(newCfg.Housekeeping)
	if oHK != nHK {
		changed = append(changed, "housekeeping")
		attrs = append(attrs,
			logx.Bool("housekeeping.enabled", nHK.Enabled),
			logx.String("housekeeping.prune_spec", nHK.PruneSpec),
			logx.String("housekeeping.stats_spec", nHK.StatsSpec),
		)
	}

	// Nil means disabled.
	oS, nS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if strings.TrimSpace(oS.Driver) != strings.TrimSpace(nS.Driver) ||
		strings.TrimSpace(oS.Path) != strings.TrimSpace(nS.Path) ||
		strings.TrimSpace(oS.BusyTimeout) != strings.TrimSpace(nS.BusyTimeout) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newCfg.Debug.Addr)),
			logx.Bool("debug.token_set", strings.TrimSpace(newCfg.Debug.Token) != ""),
			logx.Bool("debug.allow_insecure", newCfg.Debug.AllowInsecure),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefHousekeeping(h *HousekeepingConfig) HousekeepingConfig {
	if h == nil {
		return HousekeepingConfig{}
	}
	return *h
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}
