// Package main is the entry point for the squall editor.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/squall/internal/config"
	"github.com/dshills/squall/internal/editor"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", defaultConfigPath(), "Path to configuration file")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Squall - terminal editor with language server support\n\n")
		fmt.Fprintf(os.Stderr, "Usage: squall [options] <file>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("squall %s (%s)\n", version, commit)
		return 0
	}
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, closeLog, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	ed := editor.New(cfg.Registry(), editor.Options{
		Loader:           cfg.LoaderConfig(),
		Supervisor:       cfg.SupervisorConfig(),
		ChunkLines:       cfg.Highlight.ChunkLines,
		SignalsPerTick:   cfg.Sync.SignalsPerTick,
		SyncLinesPerTick: cfg.Sync.LinesPerTick,
		Log:              log,
	})

	ui, err := NewUI(ed, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		ui.Stop()
	}()

	if err := ui.Run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// buildLogger opens the configured log sink. Logging to the terminal
// would corrupt the UI, so without a file it is disabled.
func buildLogger(cfg config.LoggingConfig) (*editor.Logger, func(), error) {
	if cfg.File == "" {
		return editor.NullLogger, func() {}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	log := editor.NewLogger(editor.LoggerConfig{
		Level:  editor.ParseLogLevel(cfg.Level),
		Output: f,
		Prefix: "squall",
	})
	return log, func() { f.Close() }, nil
}

// defaultConfigPath resolves ~/.config/squall/squall.toml.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir + "/squall/squall.toml"
}
