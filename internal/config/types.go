package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "20ms", "1s", "24h").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Simulation drives the scheduler with a synthetic clock. Without it the
	// scheduler only runs what callers enqueue.
	Simulation SimulationConfig `json:"simulation"`
	History    HistoryConfig    `json:"history"`

	Housekeeping *HousekeepingConfig `json:"housekeeping,omitempty"`
	Storage      *StorageConfig      `json:"storage,omitempty"`
	Debug        DebugConfig         `json:"debug,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the animation dispatch loop.
//
// Defaults (when fields are omitted/zero):
//   - tick_interval: "20ms"
//   - max_frequency_hz: 2 (negative disables the overload guard)
//   - backlog_cap: 10 (negative disables trimming)
//   - notice_duration: "1s"
type SchedulerConfig struct {
	TickInterval   string  `json:"tick_interval,omitempty"`
	MaxFrequencyHz float64 `json:"max_frequency_hz,omitempty"`
	BacklogCap     int     `json:"backlog_cap,omitempty"`
	NoticeText     string  `json:"notice_text,omitempty"`
	NoticeDuration string  `json:"notice_duration,omitempty"`
}

// SimulationConfig controls the demo clock driver.
type SimulationConfig struct {
	Enabled     bool    `json:"enabled"`
	FrequencyHz float64 `json:"frequency_hz,omitempty"` // default 1
	// StepDelay is the gap between the animation steps of one instruction.
	StepDelay string `json:"step_delay,omitempty"` // default "100ms"
	// Program lists instruction names executed round-robin, one per cycle.
	Program []string `json:"program,omitempty"`
}

type HistoryConfig struct {
	Capacity int `json:"capacity,omitempty"` // default 100
	// MaxAge is used by housekeeping pruning. Empty keeps records until
	// capacity evicts them.
	MaxAge string `json:"max_age,omitempty"`
}

// HousekeepingConfig controls periodic maintenance jobs.
//
// Specs are cron expressions with an optional seconds field, or descriptors
// like "@every 1m".
type HousekeepingConfig struct {
	Enabled   bool   `json:"enabled"`
	Timezone  string `json:"timezone,omitempty"`
	PruneSpec string `json:"prune_spec,omitempty"` // default "@every 1m"
	StatsSpec string `json:"stats_spec,omitempty"` // default "@every 30s"
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/animsched.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DebugConfig controls the optional debug HTTP server (pprof + metrics).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`         // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"`       // default: "/debug/pprof/"
	MetricsPath   string `json:"metrics_path,omitempty"` // default: "/metrics"
	Token         string `json:"token,omitempty"`        // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Runtime profiling rates. Leave 0 to keep Go defaults.
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}
