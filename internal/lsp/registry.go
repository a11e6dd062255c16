package lsp

import (
	"path/filepath"
	"strings"
	"time"
)

// ServerConfig defines how to launch a language server.
type ServerConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments.
	Args []string

	// LanguageID is the LSP language identifier sent in didOpen.
	LanguageID string

	// Extensions this server handles (with leading dot, e.g. ".go").
	Extensions []string

	// Timeout bounds graceful shutdown waits (default 5s).
	Timeout time.Duration
}

// Registry resolves file extensions to installed server configurations.
// It is populated once at startup from configuration and read by the
// main goroutine only.
type Registry struct {
	byExt map[string]ServerConfig
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]ServerConfig)}
}

// Register adds a server for each of its extensions. Later
// registrations win, matching config layering order.
func (r *Registry) Register(cfg ServerConfig) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	for _, ext := range cfg.Extensions {
		r.byExt[strings.ToLower(ext)] = cfg
	}
}

// Lookup returns the server configuration for a file path, or false if
// no server handles its extension.
func (r *Registry) Lookup(path string) (ServerConfig, bool) {
	cfg, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return cfg, ok
}

// Languages returns the distinct language IDs with a registered server.
func (r *Registry) Languages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, cfg := range r.byExt {
		if !seen[cfg.LanguageID] {
			seen[cfg.LanguageID] = true
			out = append(out, cfg.LanguageID)
		}
	}
	return out
}
