// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ipl models interrupt priority levels and the memory barriers
// that accompany them. A real MIPS kernel raises and lowers a hardware
// priority mask on the current CPU; this package tracks the same
// monotonic two-level state (NONE, HIGH) per simulated CPU, since Go
// gives us no hardware interrupt mask to manipulate.
package ipl

import (
	"sync/atomic"

	"kernelsim/klog"
)

// Level is an interrupt priority level. Only two are meaningful to the
// core: everything unmasked, or everything masked.
type Level uint32

const (
	// None permits all interrupts.
	None Level = 0
	// High masks all interrupts on the current CPU.
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "IPL_HIGH"
	}
	return "IPL_NONE"
}

// State is the per-CPU interrupt priority state. The zero value starts
// at None. It is not safe to share a State across more than one logical
// CPU; each sched.CPU owns exactly one.
type State struct {
	level uint32
	log   *klog.Logger
}

// SetLogger installs the Logger an invariant violation on this State is
// reported to before it panics. A State with no logger set logs nowhere and
// still panics; sched.NewCPU calls this once, at construction.
func (s *State) SetLogger(log *klog.Logger) {
	s.log = log
}

func (s *State) logger() *klog.Logger {
	if s.log == nil {
		return klog.Discard()
	}
	return s.log
}

// Current returns the level currently in effect on this State's CPU.
func (s *State) Current() Level {
	return Level(atomic.LoadUint32(&s.level))
}

// Raise requires old < new and sets the level to new, returning the
// previous level. It panics if the ordering is violated, since a raise
// that doesn't increase priority indicates the caller mismatched its
// save/restore pairing.
func (s *State) Raise(old, new Level) Level {
	if !(old < new) {
		s.logger().Errorf("ipl: Raise requires old < new, got old=%v new=%v", old, new)
		panic("ipl: Raise requires old < new")
	}
	return s.set(old, new)
}

// Lower requires old > new and sets the level to new, returning the
// previous level.
func (s *State) Lower(old, new Level) Level {
	if !(old > new) {
		s.logger().Errorf("ipl: Lower requires old > new, got old=%v new=%v", old, new)
		panic("ipl: Lower requires old > new")
	}
	return s.set(old, new)
}

func (s *State) set(expect, new Level) Level {
	prev := Level(atomic.SwapUint32(&s.level, uint32(new)))
	if prev != expect {
		s.logger().Errorf("ipl: level changed out from under caller: expected=%v actual=%v", expect, prev)
		panic("ipl: level changed out from under caller between read and set")
	}
	return prev
}

// Set unconditionally sets the level to new and returns the previous
// level, with no ordering requirement. It is used by the dispatcher
// trampoline, which has no "old" value to assert against when priming a
// freshly-forked thread.
func (s *State) Set(new Level) Level {
	return Level(atomic.SwapUint32(&s.level, uint32(new)))
}

// --- memory barriers ---
//
// Go's memory model is defined in terms of channel operations, mutexes,
// and the sync/atomic package; none of our barrier helpers need a real
// fence instruction, since every caller already goes through an atomic
// operation that gives the ordering it needs on the actual target
// architecture. They remain as named no-ops so that call sites read the
// same as the original kernel's membar_* calls and so that a future
// port to an environment with weaker guarantees has an obvious place to
// plug in runtime assembly.

// LoadLoad orders all prior loads on this goroutine before all
// subsequent loads.
func LoadLoad() {}

// StoreStore orders all prior stores before all subsequent stores.
func StoreStore() {}

// StoreAny orders all prior stores before any subsequent load or store.
// Spin lock acquire uses this after a successful test-and-set to
// publish the critical section.
func StoreAny() {}

// AnyStore orders all prior loads and stores before any subsequent
// store. Spin lock release uses this before clearing the lock flag.
func AnyStore() {}

// AnyAny is a full barrier: all prior loads/stores before all
// subsequent loads/stores.
func AnyAny() {}
