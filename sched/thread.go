// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"fmt"
	"sync/atomic"

	"kernelsim/internal/dlist"
)

// State is one of the four states a Thread may be in, per spec.md's
// data model.
type State int32

const (
	// Run: the thread is the one currently executing on its CPU.
	Run State = iota
	// Ready: the thread is linked into some CPU's ready queue.
	Ready
	// Sleep: the thread is linked into exactly one wait channel.
	Sleep
	// Zombie: the thread has exited and is linked into its CPU's
	// zombie list, awaiting reaping.
	Zombie
)

func (s State) String() string {
	switch s {
	case Run:
		return "RUN"
	case Ready:
		return "READY"
	case Sleep:
		return "SLEEP"
	case Zombie:
		return "ZOMBIE"
	default:
		return "INVALID"
	}
}

// EntryFunc is the function a forked thread runs. It receives the
// Thread identifying itself (the Go-native substitute for a
// register-pinned curthread, see SPEC_FULL.md §0) and the two
// caller-supplied arguments.
type EntryFunc func(self *Thread, a1, a2 interface{})

// Thread represents one kernel-schedulable flow of control, backed by
// exactly one goroutine. Every operation that the original ABI directs
// at "the current thread" takes a *Thread explicitly instead of
// consulting hidden per-goroutine state.
type Thread struct {
	name string
	id   uint64

	state int32 // atomic State
	cpu   *CPU  // the CPU this thread was forked onto; never migrates

	proc interface{} // opaque owning container; the core never looks inside

	entry  EntryFunc
	a1, a2 interface{}

	node dlist.Node[*Thread]

	// runGate is signalled by a CPU's dispatcher exactly when it has
	// chosen this thread to run next; the thread's goroutine blocks on
	// it whenever it isn't the one running.
	runGate chan struct{}
	// yielded is signalled by this thread's own goroutine the instant
	// it gives up the CPU (voluntarily or by exiting); the dispatcher
	// blocks on it to know when it's safe to schedule someone else.
	yielded chan struct{}
}

// HangmanID implements hangman.Actor indirectly through its CPU; a
// thread itself is never a hangman actor (only the CPU it runs on is,
// since spin locks are CPU-held, not thread-held).

// Name returns the thread's stable symbolic name.
func (t *Thread) Name() string { return t.name }

// String implements fmt.Stringer for diagnostics.
func (t *Thread) String() string { return fmt.Sprintf("%s#%d", t.name, t.id) }

// CPU returns the CPU this thread is forked onto.
func (t *Thread) CPU() *CPU { return t.cpu }

// Proc returns the opaque owning container supplied at fork time.
func (t *Thread) Proc() interface{} { return t.proc }

// State returns the thread's current state.
func (t *Thread) State() State { return State(atomic.LoadInt32(&t.state)) }

func (t *Thread) setState(s State) { atomic.StoreInt32(&t.state, int32(s)) }

// MarkSleeping transitions self to the Sleep state. Called by wchan
// immediately before linking self onto a wait channel's queue, while
// the caller still holds that wait channel's associated spin lock.
func (t *Thread) MarkSleeping() { t.setState(Sleep) }

// ListNode exposes the thread's single intrusive list node so that
// wchan (a different package) can link a sleeping thread into a wait
// channel's queue. A thread is on at most one list at a time: its own
// CPU's ready queue, a wait channel's queue, or its CPU's zombie list,
// never more than one simultaneously.
func (t *Thread) ListNode() *dlist.Node[*Thread] { return &t.node }

// relinquish tells this thread's CPU's dispatcher that the thread is
// giving up the CPU right now. The caller must have already updated
// the thread's state and queue placement before calling this.
func (t *Thread) relinquish() {
	t.yielded <- struct{}{}
}

// awaitTurn blocks until this thread's CPU dispatcher grants it the run
// token again.
func (t *Thread) awaitTurn() {
	<-t.runGate
}

// Park gives up the CPU and blocks until this thread is rescheduled.
// Callers (Yield, and wchan.Sleep) must arrange the thread's new state
// and queue membership before calling Park.
func (t *Thread) Park() {
	t.relinquish()
	t.awaitTurn()
}
