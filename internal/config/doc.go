// Package config loads, normalizes and validates the TOML configuration
// shared by the jumpcut daemon and CLI.
package config
