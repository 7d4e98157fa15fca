// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import (
	"kernelsim/kenv"
	"kernelsim/sched"
	"kernelsim/spinlock"
	"kernelsim/wchan"
)

// CV is a Mesa-style condition variable (spec.md §4.7): Wait always
// returns with the associated Lock re-acquired, but with no guarantee
// the waited-for predicate still holds — every caller must re-check
// its condition in a loop, exactly as with the teacher module's
// nsync.CV (see nsync/cv.go's own doc comment on spurious wakeups).
type CV struct {
	name string
	splk *spinlock.SpinLock
	wc   *wchan.WaitChannel
}

// NewCV returns a condition variable with no associated waiters.
func NewCV(name string, env kenv.Env) *CV {
	return &CV{
		name: name,
		splk: spinlock.New(name+".splk", env),
		wc:   wchan.New(name+".wc", env.Metrics),
	}
}

func (cv *CV) String() string { return cv.name }

// Wait atomically releases l and blocks self on cv, then reacquires l
// before returning. l must be held by self on entry.
//
// Holding cv.splk across both the release of l and the enqueue onto
// cv.wc is what prevents the lost-wakeup race: a concurrent Signal must
// also acquire cv.splk, so it cannot run between "we gave up l" and "we
// are asleep on cv.wc". Sleep reacquires cv.splk itself before returning
// here, but cv has no further use for it once woken, so Wait releases it
// again immediately, before reacquiring l.
func (cv *CV) Wait(self *sched.Thread, l *Lock) {
	cpu := self.CPU()
	cv.splk.Acquire(cpu)
	l.Release(self)
	cv.wc.Sleep(self, cv.splk)
	cv.splk.Release(cpu)
	l.Acquire(self)
}

// Signal wakes one thread blocked in Wait, if any.
func (cv *CV) Signal(self *sched.Thread) {
	cpu := self.CPU()
	cv.splk.Acquire(cpu)
	cv.wc.WakeOne(cpu, cv.splk)
	cv.splk.Release(cpu)
}

// Broadcast wakes every thread blocked in Wait.
func (cv *CV) Broadcast(self *sched.Thread) {
	cpu := self.CPU()
	cv.splk.Acquire(cpu)
	cv.wc.WakeAll(cpu, cv.splk)
	cv.splk.Release(cpu)
}
