// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kenv bundles the optional, nil-safe cross-cutting facilities a
// synchronization primitive can be wired to at construction time: lock-order
// cycle detection, kprintf-style diagnostics, and Prometheus instrumentation.
// kernel.Kernel already holds exactly these three things (its Log, Metrics,
// and detector fields); kenv.Env exists only so that spinlock, sched, wchan
// and ksync can receive the same bundle without importing kernel, which
// would close an import cycle (kernel already imports sched).
//
// The zero Env disables all three, exactly as a nil *hangman.Detector
// already disabled cycle detection before this bundle existed.
package kenv

import (
	"kernelsim/hangman"
	"kernelsim/klog"
	"kernelsim/kmetrics"
)

// Env is a plain value: passing one by value is as cheap as passing the
// three pointers it wraps individually, and a zero Env is always valid.
type Env struct {
	Detector *hangman.Detector
	Metrics  *kmetrics.Registry
	Log      *klog.Logger
}

// Logger returns e.Log, or a discarding Logger if none was set, so callers
// never need to nil-check before logging.
func (e Env) Logger() *klog.Logger {
	if e.Log == nil {
		return klog.Discard()
	}
	return e.Log
}

// Errorf logs an error line through e's logger, a no-op if e.Log is nil.
func (e Env) Errorf(format string, args ...interface{}) {
	e.Logger().Errorf(format, args...)
}
