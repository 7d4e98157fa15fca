// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ksync implements spec.md §4.5-§4.8's L3 blocking
// synchronization primitives — counting semaphore, blocking mutex,
// Mesa-style condition variable, and writer-preference reader/writer
// lock — on top of wchan's wait channels and spinlock's CPU-held spin
// locks. The shape (an internal spin lock protecting a small piece of
// state, a wait channel threads block on, and a loop that re-tests the
// predicate after every wake) is adapted from the teacher module's
// nsync.Mu/nsync.CV, which use exactly this pattern with an internal
// spin-protected waiter FIFO instead of a wait channel; see nsync/mu.go
// and nsync/cv.go.
package ksync

import (
	"fmt"

	"kernelsim/kenv"
	"kernelsim/sched"
	"kernelsim/spinlock"
	"kernelsim/wchan"
)

// Semaphore is a classic counting semaphore: P blocks while the count
// is zero, V increments it and wakes one waiter (spec.md §4.5).
type Semaphore struct {
	name  string
	splk  *spinlock.SpinLock
	wc    *wchan.WaitChannel
	count int
}

// NewSemaphore returns a semaphore initialized to count, which must be
// non-negative.
func NewSemaphore(name string, count int, env kenv.Env) *Semaphore {
	if count < 0 {
		env.Errorf("semaphore %q: negative initial count %d", name, count)
		panic(fmt.Sprintf("semaphore %q: negative initial count %d", name, count))
	}
	return &Semaphore{
		name:  name,
		splk:  spinlock.New(name+".splk", env),
		wc:    wchan.New(name+".wc", env.Metrics),
		count: count,
	}
}

func (s *Semaphore) String() string { return s.name }

// P decrements the semaphore, blocking self while the count is zero.
func (s *Semaphore) P(self *sched.Thread) {
	cpu := self.CPU()
	s.splk.Acquire(cpu)
	for s.count == 0 {
		s.wc.Sleep(self, s.splk) // reacquires s.splk before returning
	}
	s.count--
	s.splk.Release(cpu)
}

// V increments the semaphore and wakes one thread blocked in P, if any.
func (s *Semaphore) V(self *sched.Thread) {
	cpu := self.CPU()
	s.splk.Acquire(cpu)
	s.count++
	s.wc.WakeOne(cpu, s.splk)
	s.splk.Release(cpu)
}

// Count returns the current count, for diagnostics and kmetrics; it is
// stale the instant it's read under concurrency.
func (s *Semaphore) Count(self *sched.Thread) int {
	cpu := self.CPU()
	s.splk.Acquire(cpu)
	defer s.splk.Release(cpu)
	return s.count
}
