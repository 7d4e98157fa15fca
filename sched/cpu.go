// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sched implements spec.md's L2 layer: the per-CPU run queue and
// the thread/context-switch machinery built on top of it. Go gives us
// no way to save and restore an arbitrary goroutine's machine registers,
// so a "context switch" here is a single-token handoff between two
// goroutines (one per thread) instead of a register save/restore — see
// SPEC_FULL.md §0 for the full rationale. The run-queue/dispatcher shape
// is adapted from a toy P/M/G scheduler's per-processor run queue and
// block/unblock channel handoff, generalized to the spec's CPU/Thread
// vocabulary and to real suspension via wait channels rather than a
// single demo blockChan.
package sched

import (
	"fmt"
	"sync/atomic"

	"kernelsim/hangman"
	"kernelsim/internal/dlist"
	"kernelsim/ipl"
	"kernelsim/kenv"
	"kernelsim/spinlock"
)

// CPU is the per-CPU kernel record: an identifier, the ready queue, and
// the bookkeeping spin-lock acquire/release needs (IPL state and
// held-spinlock depth).
type CPU struct {
	id  string
	hw  int
	ipl ipl.State

	spinlocksHeld int32 // atomic

	rqLock *spinlock.SpinLock
	ready  *dlist.List[*Thread]
	zombie *dlist.List[*Thread]

	idle    *Thread
	current atomic.Pointer[Thread]

	pendingPreempt uint32 // atomic bool: hardclock wants a reschedule

	detector *hangman.Detector
	env      kenv.Env

	dispatchStarted uint32 // atomic bool, guards double Run()
}

// NewCPU creates a CPU record with the given hardware id and an idle
// thread, and starts its dispatch loop in a new goroutine. env's fields may
// each be left nil independently; see kenv.Env.
func NewCPU(hwID int, env kenv.Env) *CPU {
	c := &CPU{
		id:       fmt.Sprintf("cpu%d", hwID),
		hw:       hwID,
		ready:    dlist.New[*Thread](),
		zombie:   dlist.New[*Thread](),
		detector: env.Detector,
		env:      env,
	}
	c.ipl.SetLogger(env.Log)
	c.rqLock = spinlock.New(c.id+".rq", env)
	c.idle = c.newThread("idle:"+c.id, nil, idleLoop, nil, nil)
	go func() {
		idle := c.idle
		idle.awaitTurn()
		idle.cpu.ipl.Set(ipl.None)
		idle.entry(idle, nil, nil)
	}()
	go c.dispatch()
	return c
}

// HangmanID implements hangman.Actor.
func (c *CPU) HangmanID() string { return c.id }

func (c *CPU) String() string { return c.id }

// ID returns the CPU's hardware identifier.
func (c *CPU) ID() int { return c.hw }

// IPL implements spinlock.CPU.
func (c *CPU) IPL() *ipl.State { return &c.ipl }

// AdjustSpinlocks implements spinlock.CPU.
func (c *CPU) AdjustSpinlocks(delta int32) int32 {
	return atomic.AddInt32(&c.spinlocksHeld, delta)
}

// SpinlocksHeld returns the number of spin locks this CPU currently
// holds (for the "interrupts enabled iff spinlocksHeld==0" invariant
// and for metrics).
func (c *CPU) SpinlocksHeld() int32 { return atomic.LoadInt32(&c.spinlocksHeld) }

// Current returns the thread currently running on this CPU (its idle
// thread if the ready queue is empty).
func (c *CPU) Current() *Thread { return c.current.Load() }

// ReadyLen returns the number of threads on this CPU's ready queue;
// used only for metrics/diagnostics.
func (c *CPU) ReadyLen() int {
	c.rqLock.Acquire(c)
	defer c.rqLock.Release(c)
	return c.ready.Len()
}

func (c *CPU) newThread(name string, proc interface{}, entry EntryFunc, a1, a2 interface{}) *Thread {
	t := &Thread{
		name:    name,
		id:      threadIDs.next_(),
		cpu:     c,
		proc:    proc,
		entry:   entry,
		a1:      a1,
		a2:      a2,
		runGate: make(chan struct{}),
		yielded: make(chan struct{}),
	}
	t.node.Elem = t
	return t
}

// Fork creates a new thread bound to this CPU, appends it READY to this
// CPU's run queue, and returns it. The thread's goroutine is started
// immediately but will not execute entry until the dispatcher grants it
// the run token.
func (c *CPU) Fork(name string, proc interface{}, entry EntryFunc, a1, a2 interface{}) *Thread {
	t := c.newThread(name, proc, entry, a1, a2)
	t.setState(Ready)

	go func() {
		t.awaitTurn()
		// Trampoline: a fresh thread resumes with interrupts still
		// masked from whatever context switched into it; lower IPL to
		// None before running client code, exactly as spec.md §4.4 and
		// §9 require.
		t.cpu.ipl.Set(ipl.None)
		t.entry(t, t.a1, t.a2)
		c.exit(t)
	}()

	c.rqLock.Acquire(c)
	c.ready.PushBack(t.ListNode())
	c.env.Metrics.SetReadyQueueLen(c.id, c.ready.Len())
	c.rqLock.Release(c)
	return t
}

// Enqueue appends an already-Ready thread (e.g. one just woken from a
// wait channel) to this CPU's ready queue. caller is the CPU currently
// executing the enqueue (not necessarily t's home CPU, since a wake can
// be issued from any CPU).
func (c *CPU) Enqueue(caller *CPU, t *Thread) {
	t.setState(Ready)
	c.rqLock.Acquire(caller)
	c.ready.PushBack(t.ListNode())
	c.env.Metrics.SetReadyQueueLen(c.id, c.ready.Len())
	c.rqLock.Release(caller)
}

// Yield voluntarily gives up the CPU: self is requeued READY at the
// tail of its own CPU's run queue, and some other ready thread (or the
// idle thread) runs next.
func Yield(self *Thread) {
	c := self.cpu
	c.rqLock.Acquire(c)
	self.setState(Ready)
	c.ready.PushBack(self.ListNode())
	c.env.Metrics.SetReadyQueueLen(c.id, c.ready.Len())
	c.rqLock.Release(c)
	self.Park()
}

// exit marks t Zombie, links it onto its own CPU's zombie list, and
// lets the dispatcher move on. It returns once t has given up the CPU;
// t is never dispatched again, so the caller's goroutine must do no
// further thread work (Fork's trampoline ends, Exit parks forever).
func (c *CPU) exit(t *Thread) {
	c.rqLock.Acquire(c)
	t.setState(Zombie)
	c.zombie.PushBack(t.ListNode())
	c.env.Metrics.SetZombiesPending(c.id, c.zombie.Len())
	c.rqLock.Release(c)
	t.relinquish()
}

// Exit terminates the calling thread. It must be the last thing self's
// entry function's goroutine does; Exit does not return.
func Exit(self *Thread) {
	self.cpu.exit(self)
	select {} // the goroutine's work is done; park it forever
}

// Reap removes every zombie thread other than self from this CPU's
// zombie list. Real kernels do this to reclaim stacks; here it only
// drops the list's references to them. A thread whose entry function
// returned has no goroutine left; one that called Exit keeps its
// goroutine parked forever.
func (c *CPU) Reap(self *Thread) (reaped int) {
	c.rqLock.Acquire(c)
	defer c.rqLock.Release(c)

	var keep []*Thread
	c.zombie.DrainTo(func(t *Thread) {
		if t == self {
			keep = append(keep, t)
			return
		}
		reaped++
	})
	for _, t := range keep {
		c.zombie.PushBack(t.ListNode())
	}
	c.env.Metrics.SetZombiesPending(c.id, c.zombie.Len())
	return reaped
}

// Hardclock is the external timer-tick event routed into the core (see
// spec.md §4.4/§5). It never preempts mid-instruction; it only sets a
// flag. The scheduler does not read that flag: every dispatch-returning
// call on this CPU (Yield, wchan.Sleep, Exit) already reschedules
// fairly, tick or no tick. Hardclock's only externally visible effect
// is via PreemptPending/ClearPreempt, which callers that want to model
// bounded-time-slice behaviour (e.g. a scenario that yields after N
// iterations) can poll; only ClearPreempt clears the flag.
func (c *CPU) Hardclock() {
	atomic.StoreUint32(&c.pendingPreempt, 1)
}

// PreemptPending reports whether Hardclock has fired since the last
// ClearPreempt.
func (c *CPU) PreemptPending() bool {
	return atomic.LoadUint32(&c.pendingPreempt) != 0
}

// ClearPreempt clears the pending-preempt flag, returning whether it had
// been set.
func (c *CPU) ClearPreempt() bool {
	return atomic.CompareAndSwapUint32(&c.pendingPreempt, 1, 0)
}

// dispatch is this CPU's scheduler loop: pop the ready queue (or run the
// idle thread if it's empty), hand the run token to the chosen thread,
// and wait for it to give the CPU back up.
func (c *CPU) dispatch() {
	if !atomic.CompareAndSwapUint32(&c.dispatchStarted, 0, 1) {
		panic(fmt.Sprintf("%s: dispatch loop started twice", c.id))
	}
	for {
		c.rqLock.Acquire(c)
		next, ok := c.ready.PopFront()
		c.env.Metrics.SetReadyQueueLen(c.id, c.ready.Len())
		c.rqLock.Release(c)
		if !ok {
			next = c.idle
		}

		next.setState(Run)
		c.current.Store(next)
		next.runGate <- struct{}{}
		<-next.yielded
	}
}

// idleLoop is the body of every CPU's idle thread: when there is
// nothing else ready, the CPU "runs idle" by perpetually yielding,
// which is equivalent to spinning until the dispatcher has real work.
func idleLoop(self *Thread, _, _ interface{}) {
	for {
		Yield(self)
	}
}
