// Package logger builds the logger used by the whitelist command.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Output formats accepted in Config.Format.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config describes how the command logs.
type Config struct {
	// Level is one of debug, info, warn or error. Anything else means info.
	Level string
	// Format is FormatJSON or FormatText. Anything else means JSON.
	Format string
	// Output defaults to stderr.
	Output io.Writer
	// Service, when set, is attached to every record as "service".
	Service string
}

// New returns a logger for cfg.
func New(cfg Config) *log.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	formatter := log.JSONFormatter
	if strings.EqualFold(cfg.Format, FormatText) {
		formatter = log.TextFormatter
	}

	l := log.NewWithOptions(cfg.Output, log.Options{
		Level:           ParseLevel(cfg.Level),
		Formatter:       formatter,
		ReportTimestamp: true,
	})
	if cfg.Service != "" {
		l = l.With("service", cfg.Service)
	}
	return l
}

// ParseLevel maps a level name to a log.Level, falling back to info.
func ParseLevel(s string) log.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := log.ParseLevel(s)
	if err != nil || s == "" {
		return log.InfoLevel
	}
	return level
}
