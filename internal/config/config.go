package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/squall/internal/loader"
	"github.com/dshills/squall/internal/lsp"
)

// Config is the root configuration.
type Config struct {
	Logging    LoggingConfig    `toml:"logging"`
	Loader     LoaderConfig     `toml:"loader"`
	Highlight  HighlightConfig  `toml:"highlight"`
	Sync       SyncConfig       `toml:"sync"`
	Supervisor SupervisorConfig `toml:"supervisor"`
	Servers    []ServerConfig   `toml:"servers"`
}

// LoggingConfig controls the log output.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `toml:"level"`

	// File is the log destination. A terminal editor cannot log to the
	// screen it draws on, so empty disables logging entirely.
	File string `toml:"file"`
}

// LoaderConfig tunes the streaming file loader.
type LoaderConfig struct {
	// ChunkKB is the sequential read size in KiB.
	ChunkKB int `toml:"chunk_kb"`

	// ParallelThresholdKB is the file size in KiB at which loading
	// switches to the parallel parser.
	ParallelThresholdKB int `toml:"parallel_threshold_kb"`

	// MaxWorkers caps the parallel parser pool.
	MaxWorkers int `toml:"max_workers"`

	// BatchLines is the line count per delivered batch.
	BatchLines int `toml:"batch_lines"`
}

// HighlightConfig tunes semantic highlighting.
type HighlightConfig struct {
	// ChunkLines is the background sweep size per request.
	ChunkLines int `toml:"chunk_lines"`
}

// SyncConfig bounds per-tick work in the synchronization loop.
type SyncConfig struct {
	// SignalsPerTick is the max loader batches applied per tick.
	SignalsPerTick int `toml:"signals_per_tick"`

	// LinesPerTick is the max lines joined per tick when assembling a
	// full-text document update.
	LinesPerTick int `toml:"lines_per_tick"`
}

// SupervisorConfig tunes language server crash recovery. Durations are
// strings in Go syntax ("1s", "500ms").
type SupervisorConfig struct {
	MaxRestarts       int     `toml:"max_restarts"`
	InitialBackoff    string  `toml:"initial_backoff"`
	MaxBackoff        string  `toml:"max_backoff"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
	ResetWindow       string  `toml:"reset_window"`
}

// ServerConfig declares one language server installation.
type ServerConfig struct {
	Command    string   `toml:"command"`
	Args       []string `toml:"args"`
	LanguageID string   `toml:"language_id"`
	Extensions []string `toml:"extensions"`
	Timeout    string   `toml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Loader: LoaderConfig{
			ChunkKB:             64,
			ParallelThresholdKB: 1024,
			MaxWorkers:          4,
			BatchLines:          50000,
		},
		Highlight: HighlightConfig{ChunkLines: 5000},
		Sync: SyncConfig{
			SignalsPerTick: 4,
			LinesPerTick:   20000,
		},
		Supervisor: SupervisorConfig{
			MaxRestarts:       5,
			InitialBackoff:    "1s",
			MaxBackoff:        "60s",
			BackoffMultiplier: 2.0,
			ResetWindow:       "5m",
		},
		Servers: []ServerConfig{
			{
				Command:    "gopls",
				LanguageID: "go",
				Extensions: []string{".go"},
				Timeout:    "5s",
			},
		},
	}
}

// Load reads the config file at path, layering it over the defaults
// and applying environment overrides. A missing file is not an error;
// defaults plus environment apply.
func Load(path string) (Config, error) {
	def := Default()
	cfg := def
	// Array-of-tables decoding appends to whatever the slice holds, so
	// the default server list is held back and restored only when the
	// file declares none.
	cfg.Servers = nil

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	if cfg.Servers == nil {
		cfg.Servers = def.Servers
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the runtime cannot work with.
func (c Config) Validate() error {
	if c.Loader.ChunkKB <= 0 {
		return fmt.Errorf("loader.chunk_kb must be positive, got %d", c.Loader.ChunkKB)
	}
	if c.Loader.MaxWorkers <= 0 {
		return fmt.Errorf("loader.max_workers must be positive, got %d", c.Loader.MaxWorkers)
	}
	if c.Loader.BatchLines <= 0 {
		return fmt.Errorf("loader.batch_lines must be positive, got %d", c.Loader.BatchLines)
	}
	if c.Highlight.ChunkLines <= 0 {
		return fmt.Errorf("highlight.chunk_lines must be positive, got %d", c.Highlight.ChunkLines)
	}
	if _, err := parseDuration(c.Supervisor.InitialBackoff, time.Second); err != nil {
		return fmt.Errorf("supervisor.initial_backoff: %w", err)
	}
	if _, err := parseDuration(c.Supervisor.MaxBackoff, time.Minute); err != nil {
		return fmt.Errorf("supervisor.max_backoff: %w", err)
	}
	for i, srv := range c.Servers {
		if srv.Command == "" {
			return fmt.Errorf("servers[%d]: command is required", i)
		}
		if len(srv.Extensions) == 0 {
			return fmt.Errorf("servers[%d] (%s): extensions are required", i, srv.Command)
		}
		if _, err := parseDuration(srv.Timeout, 5*time.Second); err != nil {
			return fmt.Errorf("servers[%d] (%s): timeout: %w", i, srv.Command, err)
		}
	}
	return nil
}

// LoaderConfig converts to the loader package's tunables.
func (c Config) LoaderConfig() loader.Config {
	return loader.Config{
		ChunkSize:         c.Loader.ChunkKB * 1024,
		ParallelThreshold: int64(c.Loader.ParallelThresholdKB) * 1024,
		MaxWorkers:        c.Loader.MaxWorkers,
		BatchLines:        c.Loader.BatchLines,
	}
}

// SupervisorConfig converts to the session supervisor's tunables.
func (c Config) SupervisorConfig() lsp.SupervisorConfig {
	initial, _ := parseDuration(c.Supervisor.InitialBackoff, time.Second)
	max, _ := parseDuration(c.Supervisor.MaxBackoff, time.Minute)
	reset, _ := parseDuration(c.Supervisor.ResetWindow, 5*time.Minute)
	return lsp.SupervisorConfig{
		MaxRestarts:       c.Supervisor.MaxRestarts,
		InitialBackoff:    initial,
		MaxBackoff:        max,
		BackoffMultiplier: c.Supervisor.BackoffMultiplier,
		ResetWindow:       reset,
	}
}

// Registry builds the language server registry from the server list.
func (c Config) Registry() *lsp.Registry {
	reg := lsp.NewRegistry()
	for _, srv := range c.Servers {
		timeout, _ := parseDuration(srv.Timeout, 5*time.Second)
		reg.Register(lsp.ServerConfig{
			Command:    srv.Command,
			Args:       srv.Args,
			LanguageID: srv.LanguageID,
			Extensions: srv.Extensions,
			Timeout:    timeout,
		})
	}
	return reg
}

// parseDuration parses a duration string, with a fallback for empty.
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
