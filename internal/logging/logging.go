// Package logging configures the process-wide slog logger: human readable
// text on stderr plus rotated JSON files for info and error records.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	infoFile  = "receipt_vision_info.log"
	errorFile = "receipt_vision_error.log"

	infoMaxSizeMB  = 20
	errorMaxSizeMB = 10
	maxBackups     = 5
)

// Options selects where and how much to log
type Options struct {
	Level  string
	Dir    string
	Stderr io.Writer
}

// ParseLevel accepts debug, info, warn and error
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// New builds the logger. The returned closer flushes the log files.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	}
	var closers closers

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}

		info := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, infoFile),
			MaxSize:    infoMaxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		}
		errLog := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, errorFile),
			MaxSize:    errorMaxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		}
		closers = append(closers, info, errLog)

		infoLevel := level
		if infoLevel < slog.LevelInfo {
			infoLevel = slog.LevelInfo
		}
		handlers = append(handlers,
			slog.NewJSONHandler(info, &slog.HandlerOptions{Level: infoLevel}),
			slog.NewJSONHandler(errLog, &slog.HandlerOptions{Level: slog.LevelError, AddSource: true}),
		)
	}

	return slog.New(fanout(handlers)), closers, nil
}

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fanout sends each record to every handler that accepts its level
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
