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

// RWLock is a writer-preference reader/writer lock (spec.md §4.8): once
// a writer is waiting, no new reader is admitted, so a steady stream of
// readers cannot starve a writer. Readers may run concurrently; a
// writer runs exclusively.
type RWLock struct {
	name string
	splk *spinlock.SpinLock
	rwc  *wchan.WaitChannel // readers wait here
	wwc  *wchan.WaitChannel // writers wait here
	env  kenv.Env

	activeReaders  int
	writerActive   bool
	waitingWriters int
}

// NewRWLock returns an unlocked reader/writer lock.
func NewRWLock(name string, env kenv.Env) *RWLock {
	return &RWLock{
		name: name,
		splk: spinlock.New(name+".splk", env),
		rwc:  wchan.New(name+".readers", env.Metrics),
		wwc:  wchan.New(name+".writers", env.Metrics),
		env:  env,
	}
}

func (rw *RWLock) String() string { return rw.name }

// RLock blocks self until no writer holds or is waiting for the lock,
// then registers self as an active reader.
func (rw *RWLock) RLock(self *sched.Thread) {
	cpu := self.CPU()
	rw.splk.Acquire(cpu)
	for rw.writerActive || rw.waitingWriters > 0 {
		rw.rwc.Sleep(self, rw.splk) // reacquires rw.splk before returning
	}
	rw.activeReaders++
	rw.splk.Release(cpu)
}

// RUnlock gives up a read hold, waking a waiting writer if self was the
// last active reader.
func (rw *RWLock) RUnlock(self *sched.Thread) {
	cpu := self.CPU()
	rw.splk.Acquire(cpu)
	if rw.activeReaders == 0 {
		rw.splk.Release(cpu)
		rw.env.Errorf("rwlock %q: RUnlock with no active readers", rw.name)
		panic(fmt.Sprintf("rwlock %q: RUnlock with no active readers", rw.name))
	}
	rw.activeReaders--
	if rw.activeReaders == 0 {
		rw.wwc.WakeOne(cpu, rw.splk)
	}
	rw.splk.Release(cpu)
}

// Lock blocks self until no reader or writer holds the lock, then takes
// it exclusively. Registering self in waitingWriters before blocking is
// what gives writers preference over newly arriving readers.
func (rw *RWLock) Lock(self *sched.Thread) {
	cpu := self.CPU()
	rw.splk.Acquire(cpu)
	rw.waitingWriters++
	for rw.writerActive || rw.activeReaders > 0 {
		rw.wwc.Sleep(self, rw.splk) // reacquires rw.splk before returning
	}
	rw.waitingWriters--
	rw.writerActive = true
	rw.splk.Release(cpu)
}

// Unlock gives up the write hold. A waiting writer, if any, is
// preferred over waking all blocked readers.
func (rw *RWLock) Unlock(self *sched.Thread) {
	cpu := self.CPU()
	rw.splk.Acquire(cpu)
	if !rw.writerActive {
		rw.splk.Release(cpu)
		rw.env.Errorf("rwlock %q: Unlock with no active writer", rw.name)
		panic(fmt.Sprintf("rwlock %q: Unlock with no active writer", rw.name))
	}
	rw.writerActive = false
	if rw.waitingWriters > 0 {
		rw.wwc.WakeOne(cpu, rw.splk)
	} else {
		rw.rwc.WakeAll(cpu, rw.splk)
	}
	rw.splk.Release(cpu)
}
