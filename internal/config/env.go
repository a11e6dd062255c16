package config

import (
	"os"
	"strconv"
)

// envOverrides maps SQUALL_* variables to config fields. Environment
// wins over the file so deployments can tweak one knob without
// editing it.
var envOverrides = map[string]func(*Config, string){
	"SQUALL_LOG_LEVEL": func(c *Config, v string) { c.Logging.Level = v },
	"SQUALL_LOG_FILE":  func(c *Config, v string) { c.Logging.File = v },

	"SQUALL_LOADER_CHUNK_KB":     func(c *Config, v string) { setInt(&c.Loader.ChunkKB, v) },
	"SQUALL_LOADER_THRESHOLD_KB": func(c *Config, v string) { setInt(&c.Loader.ParallelThresholdKB, v) },
	"SQUALL_LOADER_WORKERS":      func(c *Config, v string) { setInt(&c.Loader.MaxWorkers, v) },
	"SQUALL_LOADER_BATCH_LINES":  func(c *Config, v string) { setInt(&c.Loader.BatchLines, v) },

	"SQUALL_HIGHLIGHT_CHUNK_LINES": func(c *Config, v string) { setInt(&c.Highlight.ChunkLines, v) },

	"SQUALL_SYNC_SIGNALS_PER_TICK": func(c *Config, v string) { setInt(&c.Sync.SignalsPerTick, v) },
	"SQUALL_SYNC_LINES_PER_TICK":   func(c *Config, v string) { setInt(&c.Sync.LinesPerTick, v) },

	"SQUALL_SUPERVISOR_MAX_RESTARTS":    func(c *Config, v string) { setInt(&c.Supervisor.MaxRestarts, v) },
	"SQUALL_SUPERVISOR_INITIAL_BACKOFF": func(c *Config, v string) { c.Supervisor.InitialBackoff = v },
	"SQUALL_SUPERVISOR_MAX_BACKOFF":     func(c *Config, v string) { c.Supervisor.MaxBackoff = v },
}

// applyEnv applies every set override to cfg.
func applyEnv(cfg *Config) {
	for name, apply := range envOverrides {
		if v, ok := os.LookupEnv(name); ok {
			apply(cfg, v)
		}
	}
}

// setInt overwrites dst only when v parses; a garbage value keeps the
// configured one rather than silently zeroing it.
func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
