// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package klog is the kernel's kprintf-style logger: a small leveled
// Logger, grounded directly on the teacher module's vlog.Logger shape
// (vlog/model.go) but cut down to what a simulated kernel core actually
// needs — no on-disk log files, no stack-trace capture, just leveled
// console output gated by a verbosity threshold, since this kernel has
// no persistent-storage layer to write log files into (spec.md's
// Non-goals exclude an on-disk format; see SPEC_FULL.md §1). Severity
// levels and the V(level) gate are backed directly by
// github.com/cosmosnicolaou/llog, the same leveled-logging library
// vlog itself wraps.
package klog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cosmosnicolaou/llog"
)

// Severity orders kernel log lines the way glog-family loggers do
// (vlog's StderrThreshold wraps the same llog.Severity this package
// uses); the kernel only ever needs the three ordinary severities, not
// llog's Fatal, since a simulated kernel panics rather than os.Exits.
const (
	SeverityInfo llog.Severity = iota
	SeverityWarning
	SeverityError
)

// Logger is the kernel's logging surface. Every kernel component (sched,
// ksync, kernel) is handed one at construction time instead of reaching
// for a package-level global, so tests can install a silent or
// buffering Logger.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	lvl llog.Level
	sev llog.Severity
}

// New returns a Logger that writes to out, gated at the given verbosity
// level and minimum severity.
func New(out io.Writer, level llog.Level, sev llog.Severity) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{out: out, lvl: level, sev: sev}
}

// Discard returns a Logger that drops everything; useful for tests and
// benchmarks that don't want kernel chatter on stdout.
func Discard() *Logger {
	return New(io.Discard, 0, SeverityError+1)
}

// V reports whether level-gated logging at level should fire.
func (l *Logger) V(level llog.Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level <= l.lvl
}

func (l *Logger) write(sev llog.Severity, tag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sev < l.sev {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "%s: %s\n", tag, msg)
}

// Infof logs an informational line whenever the logger's minimum
// severity admits info; it is not gated by verbosity (callers gate
// verbose tracing themselves with V).
func (l *Logger) Infof(format string, args ...interface{}) {
	l.write(SeverityInfo, "I", format, args...)
}

// Warningf logs a warning line.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.write(SeverityWarning, "W", format, args...)
}

// Errorf logs an error line. It does not panic: use this for conditions
// the kernel can recover from (e.g. a scenario-level failed assertion),
// reserving panic for spec.md's invariant violations (double-release,
// negative semaphore count, ...).
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.write(SeverityError, "E", format, args...)
}

// Tracef logs only when the logger's level is >= level; used for the
// high-volume scheduler/wait-channel trace points that would otherwise
// drown out everything else.
func (l *Logger) Tracef(level llog.Level, format string, args ...interface{}) {
	if !l.V(level) {
		return
	}
	l.write(SeverityInfo, "T", format, args...)
}
