// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level and destination.
type Options struct {
	// Level is a logrus level name; unknown names mean info
	Level string

	// File enables rotated JSON logs at this path instead of Out
	File string

	// MaxSizeMB rotates File at this size (default 10)
	MaxSizeMB int

	// Out receives text logs when File is empty (default stderr)
	Out io.Writer
}

// New returns a configured logger and a closer for its output. TB_DEBUG=true
// forces debug level.
func New(opts Options) (*log.Logger, io.Closer) {
	logger := log.New()
	logger.SetLevel(ParseLevel(opts.Level))
	if dbg, err := strconv.ParseBool(os.Getenv("TB_DEBUG")); err == nil && dbg {
		logger.SetLevel(log.DebugLevel)
	}

	if opts.File != "" {
		size := opts.MaxSizeMB
		if size <= 0 {
			size = 10
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    size,
			MaxBackups: 3,
			MaxAge:     28,
		}
		logger.SetOutput(rotator)
		logger.SetFormatter(&log.JSONFormatter{})
		return logger, rotator
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	return logger, nopCloser{}
}

// ParseLevel maps a level name onto a logrus level, defaulting to info.
func ParseLevel(name string) log.Level {
	lvl, err := log.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
