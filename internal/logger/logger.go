package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level       string
	Development bool
	ServiceName string
	Output      io.Writer
}

// New builds the process logger. Development mode writes human-readable
// console output, everything else is JSON.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Development {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.ServiceName != "" {
		l = l.Str("service", cfg.ServiceName)
	}
	return l.Logger()
}
