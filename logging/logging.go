// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging provides the minimal logging interface injected into the
// bridge components. Components never touch process-wide logging state;
// the slog setup happens once at the process boundary (cmd) and is handed
// down as a Logger.
package logging

import (
	"io"
	"log/slog"
)

// Logger is the minimal structured logging surface a component needs.
// Arguments follow slog conventions: alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewTextLogger creates a Logger writing slog text lines to w at the given
// level.
func NewTextLogger(w io.Writer, level slog.Level) Logger {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Nop returns a Logger that discards everything. It is the default when a
// component is constructed without a logger.
func Nop() Logger {
	return nop{}
}
