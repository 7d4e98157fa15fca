// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import (
	"fmt"

	"kernelsim/kenv"
	"kernelsim/sched"
	"kernelsim/spinlock"
	"kernelsim/wchan"
)

// Lock is a blocking mutual-exclusion lock: a thread that finds it held
// sleeps instead of spinning, unlike spinlock.SpinLock (spec.md §4.6).
type Lock struct {
	name  string
	splk  *spinlock.SpinLock
	wc    *wchan.WaitChannel
	held  bool
	owner *sched.Thread
	env   kenv.Env
}

// NewLock returns an unheld blocking lock.
func NewLock(name string, env kenv.Env) *Lock {
	return &Lock{
		name: name,
		splk: spinlock.New(name+".splk", env),
		wc:   wchan.New(name+".wc", env.Metrics),
		env:  env,
	}
}

func (l *Lock) String() string { return l.name }

// Acquire blocks self until the lock is free, then takes it.
func (l *Lock) Acquire(self *sched.Thread) {
	cpu := self.CPU()
	l.splk.Acquire(cpu)
	for l.held {
		l.wc.Sleep(self, l.splk) // reacquires l.splk before returning
	}
	l.held = true
	l.owner = self
	l.splk.Release(cpu)
}

// Release gives up the lock, waking one waiter if any are blocked in
// Acquire. It panics if self does not currently hold the lock.
func (l *Lock) Release(self *sched.Thread) {
	cpu := self.CPU()
	l.splk.Acquire(cpu)
	if l.owner != self {
		l.splk.Release(cpu)
		l.env.Errorf("lock %q: release by non-owner %s", l.name, self)
		panic(fmt.Sprintf("lock %q: release by non-owner %s", l.name, self))
	}
	l.held = false
	l.owner = nil
	l.wc.WakeOne(cpu, l.splk)
	l.splk.Release(cpu)
}

// DoIHold reports whether self currently holds the lock.
func (l *Lock) DoIHold(self *sched.Thread) bool {
	cpu := self.CPU()
	l.splk.Acquire(cpu)
	defer l.splk.Release(cpu)
	return l.owner == self
}
