// Package logging provides structured operational logging via zerolog and
// the durable, append-only health log the engine writes its findings to.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the operational logger.
type Config struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
}

// New returns a zerolog logger writing to w. The health log is separate;
// this logger is the process's own diagnostic output.
func New(w io.Writer, cfg Config) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
		level = parsed
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// NewConsole returns a logger for interactive use on stderr.
func NewConsole(cfg Config) (zerolog.Logger, error) {
	return New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, cfg)
}
