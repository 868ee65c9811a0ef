// Package logging configures the process-wide zerolog output.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the log level and output encoding.
type Config struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	TimeFormat  string `mapstructure:"time_format"`
	Caller      bool   `mapstructure:"caller"`
	PrettyPrint bool   `mapstructure:"pretty"`
}

func (c Config) level() zerolog.Level {
	if parsed, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err == nil {
		return parsed
	}
	return zerolog.InfoLevel
}

func (c Config) console() bool {
	return c.PrettyPrint || strings.EqualFold(c.Format, "console")
}

// NewLogger builds the root logger. Components derive scoped loggers from it
// with a "component" field.
func NewLogger(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	var logger zerolog.Logger
	if cfg.console() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: zerolog.TimeFieldFormat})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	ctx := logger.Level(cfg.level()).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}
