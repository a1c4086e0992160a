// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds falcond's slog.Logger:
// a console handler (text when stderr is a terminal, JSON otherwise)
// fanned out, when a log directory is configured, to a second JSON
// handler writing into that directory. Level is a shared slog.LevelVar
// so it can be adjusted after construction without rebuilding the
// logger.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/term"
)

// Level is shared by every handler New constructs, so callers can
// change the effective log level at runtime (e.g. a future SIGHUP
// reload) without swapping out the *slog.Logger in use.
var Level = new(slog.LevelVar)

// ParseLevel maps falcond's log-level config strings to a slog.Level.
// Unknown strings default to Info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to stderr and, if logDir is non-empty,
// also to a JSON file under logDir named for this process's start
// time. logLevel sets the initial value of the shared Level.
func New(logDir string, logLevel string) (*slog.Logger, error) {
	Level.Set(ParseLevel(logLevel))
	opts := &slog.HandlerOptions{Level: Level}

	var console slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		console = slog.NewTextHandler(os.Stderr, opts)
	} else {
		console = slog.NewJSONHandler(os.Stderr, opts)
	}

	if logDir == "" {
		return slog.New(console), nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: creating log directory %s: %w", logDir, err)
	}
	name := fmt.Sprintf("falcond-%s.log", time.Now().Format("20060102-150405"))
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: opening log file: %w", err)
	}
	file := slog.NewJSONHandler(f, opts)

	return slog.New(slogmulti.Fanout(console, file)), nil
}
