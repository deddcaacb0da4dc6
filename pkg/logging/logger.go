// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the process logger for typecore commands.
//
// Library packages never construct loggers; they log through slog.Default()
// (with trace ids attached by telemetry.LoggerWithTrace). A command builds a
// Logger from its configuration and installs it as the default:
//
//	logger, err := logging.New(logging.Config{Level: logging.LevelDebug})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	restore := logger.InstallDefault()
//	defer restore()
//
// # Output
//
// Records go to Output (stderr by default) and, when LogDir is set, to a
// JSON file named "{service}_{YYYY-MM-DD}.log" in that directory. With
// FormatAuto the console output is text when it is a terminal and JSON
// otherwise, so piped output stays machine-readable.
//
// # Thread Safety
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ErrUnknownLevel is returned by ParseLevel for unrecognized names.
var ErrUnknownLevel = errors.New("unknown log level")

// Level is a log severity. Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a level name, case-insensitively. "warning" is accepted
// as an alias of "warn".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// Format selects the console encoding.
type Format string

const (
	// FormatAuto uses text on a terminal and JSON otherwise.
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config configures a Logger. The zero value logs Info and above to
// stderr, encoded per FormatAuto.
type Config struct {
	// Level is the minimum level written.
	Level Level

	// Format selects the console encoding. Empty means FormatAuto.
	Format Format

	// LogDir additionally writes JSON records to a dated file in this
	// directory. "~" expands to the home directory. Empty disables it.
	LogDir string

	// Service is attached to every record as "service" and names the log
	// file. Default for the file name: "typecore".
	Service string

	// Output is the console destination. Default: os.Stderr.
	Output io.Writer
}

// Logger is a configured slog logger with an optional log file.
type Logger struct {
	slog *slog.Logger
	file *os.File
	mu   sync.Mutex
}

// New builds a Logger.
//
// Description:
//
//	Creates the console handler and, if LogDir is set, the file handler,
//	fanning records out to both.
//
// Outputs:
//
//   - *Logger: The logger. Call Close to release the log file.
//   - error: Non-nil if the log directory or file cannot be created.
func New(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}

	var console slog.Handler
	if useJSON(cfg.Format, out) {
		console = slog.NewJSONHandler(out, opts)
	} else {
		console = slog.NewTextHandler(out, opts)
	}

	logger := &Logger{}
	handler := console

	if cfg.LogDir != "" {
		dir := expandPath(cfg.LogDir)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		service := cfg.Service
		if service == "" {
			service = "typecore"
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02")))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logger.file = file
		handler = fanout{console, slog.NewJSONHandler(file, opts)}
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	logger.slog = slog.New(handler)
	return logger, nil
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// InstallDefault makes l the slog default and returns a function that
// reinstates the previous default. slog.SetDefault also redirects the log
// package, so its output and flags are restored too.
func (l *Logger) InstallDefault() (restore func()) {
	prev := slog.Default()
	prevOut, prevFlags := log.Writer(), log.Flags()
	slog.SetDefault(l.slog)
	return func() {
		slog.SetDefault(prev)
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	}
}

// Close syncs and closes the log file, if any. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := errors.Join(l.file.Sync(), l.file.Close())
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// useJSON resolves the console format. Auto picks text only for
// terminals.
func useJSON(format Format, out io.Writer) bool {
	switch format {
	case FormatJSON:
		return true
	case FormatText:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return true
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (h fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h {
		if handler.Enabled(ctx, r.Level) {
			errs = append(errs, handler.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(h))
	for i, handler := range h {
		out[i] = handler.WithAttrs(attrs)
	}
	return out
}

func (h fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(h))
	for i, handler := range h {
		out[i] = handler.WithGroup(name)
	}
	return out
}

// expandPath expands a leading "~" to the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
