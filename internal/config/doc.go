// Package config loads editor configuration from a TOML file with
// environment overrides. Precedence, lowest to highest: built-in
// defaults, the config file, SQUALL_* environment variables.
//
// Configuration is read once at startup into an immutable Config
// value; there is no live reloading.
package config
