// Package config builds the logger shared by the command line tools.
package config

import (
	"github.com/retroenv/retrogolib/log"
)

// CreateLogger creates a logger with the level selected by the command line.
// debug wins over quiet when both are set.
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}
