// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package spinlock implements the CPU-held, interrupt-masking mutual
// exclusion primitive described in spec.md §4.2. Unlike the blocking
// primitives in ksync, a spin lock never suspends its holder: it busy
// waits, and for the duration of the hold it masks interrupts on the
// holding CPU by raising that CPU's IPL to High. Acquire/release follow
// the same atomic test-and-set-with-backoff shape as the teacher
// module's nsync.Mu spinlock-protected waiter queue and the darvaza
// spinlock package's CAS-and-Gosched loop, generalized here to also
// drive IPL and an optional hangman cycle detector.
package spinlock

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"kernelsim/hangman"
	"kernelsim/ipl"
	"kernelsim/kenv"
)

// CPU is the subset of sched.CPU that a spin lock needs: identity for
// the hangman detector, IPL state to mask/unmask interrupts, and a
// per-CPU depth counter so nested spin-lock holds only restore
// interrupts when the outermost one releases. sched.CPU satisfies this
// interface structurally; spinlock does not import sched, to avoid a
// cycle (sched's own run-queue lock is a *spinlock.SpinLock).
type CPU interface {
	hangman.Actor
	IPL() *ipl.State
	// AdjustSpinlocks adds delta to the CPU's held-spinlock count and
	// returns the new value.
	AdjustSpinlocks(delta int32) int32
}

// SpinLock is a CPU-held mutex that busy-waits and masks interrupts for
// the duration of the hold. The zero value is unlocked and usable, but
// New is preferred so it carries a name for diagnostics and an optional
// hangman detector.
type SpinLock struct {
	name   string
	flag   uint32 // 0 = free, 1 = held
	holder atomic.Pointer[holderBox]
	env    kenv.Env
}

// holderBox boxes a CPU interface value so it can be swapped atomically
// as a single pointer; atomic.Pointer[CPU] is not usable directly
// because CPU is an interface, not the pointee type itself.
type holderBox struct {
	cpu CPU
}

func (s *SpinLock) loadHolder() CPU {
	b := s.holder.Load()
	if b == nil {
		return nil
	}
	return b.cpu
}

func (s *SpinLock) storeHolder(c CPU) {
	if c == nil {
		s.holder.Store(nil)
		return
	}
	s.holder.Store(&holderBox{cpu: c})
}

// New returns a named, unlocked spin lock. env's fields may each be left
// nil independently: a nil Detector disables lock-order cycle detection, a
// nil Metrics disables spin-wait instrumentation, a nil Log drops the
// error-before-panic diagnostics logged on an invariant violation.
func New(name string, env kenv.Env) *SpinLock {
	return &SpinLock{name: name, env: env}
}

// HangmanID implements hangman.Lockable.
func (s *SpinLock) HangmanID() string { return s.name }

func (s *SpinLock) String() string { return s.name }

// spinDelay backs off a busy-wait loop in three widening tiers: a short
// empty loop that grows quadratically with the attempt count, then a plain
// scheduler yield once that stops being worth the CPU cycles, then an
// actual (tiny) sleep once a spinner has been waiting long enough that
// pegging a core on it is wasteful. The tiering is in the same spirit as
// the teacher module's nsync.spinDelay busy-loop-then-Gosched backoff, but
// with its own thresholds, its own growth curve, and a third tier nsync's
// version doesn't have.
func spinDelay(attempts uint) uint {
	switch {
	case attempts < 4:
		n := (attempts + 1) * (attempts + 1)
		for i := uint(0); i != n; i++ {
		}
	case attempts < 10:
		runtime.Gosched()
	default:
		time.Sleep(time.Microsecond)
	}
	return attempts + 1
}

// Acquire busy-waits until the lock is free, then takes it, raising the
// owning CPU's IPL to High and recording the holder. It panics if cpu
// already holds this lock: spin locks are not recursive, and acquiring
// ourselves would deadlock the busy-wait loop.
func (s *SpinLock) Acquire(cpu CPU) {
	if s.loadHolder() == cpu {
		s.env.Errorf("spinlock %q: CPU %s already holds this lock", s.name, cpu.HangmanID())
		panic(fmt.Sprintf("spinlock %q: CPU %s already holds this lock", s.name, cpu.HangmanID()))
	}
	if s.env.Detector != nil {
		s.env.Detector.Wait(cpu, s)
	}

	cpu.IPL().Set(ipl.High)
	cpu.AdjustSpinlocks(1)

	var attempts uint
	for !atomic.CompareAndSwapUint32(&s.flag, 0, 1) {
		s.env.Metrics.IncSpinWait(s.name)
		attempts = spinDelay(attempts)
	}
	ipl.StoreAny()
	s.storeHolder(cpu)
	if s.env.Detector != nil {
		s.env.Detector.Acquire(cpu, s)
	}
}

// Release gives up the lock. It panics if cpu is not the current
// holder.
func (s *SpinLock) Release(cpu CPU) {
	if s.loadHolder() != cpu {
		s.env.Errorf("spinlock %q: release by non-holder %s", s.name, cpu.HangmanID())
		panic(fmt.Sprintf("spinlock %q: release by non-holder %s", s.name, cpu.HangmanID()))
	}
	if s.env.Detector != nil {
		s.env.Detector.Release(s)
	}
	ipl.AnyStore()
	s.storeHolder(nil)
	atomic.StoreUint32(&s.flag, 0)

	if left := cpu.AdjustSpinlocks(-1); left == 0 {
		cpu.IPL().Set(ipl.None)
	} else if left < 0 {
		s.env.Errorf("spinlock %q: CPU %s spinlock depth went negative", s.name, cpu.HangmanID())
		panic(fmt.Sprintf("spinlock %q: CPU %s spinlock depth went negative", s.name, cpu.HangmanID()))
	}
}

// DoIHold reports whether cpu currently holds the lock.
func (s *SpinLock) DoIHold(cpu CPU) bool {
	return s.loadHolder() == cpu
}
