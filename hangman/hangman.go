// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hangman implements an opt-in lock-order cycle detector, named
// after the same detector in the originating kernel. It tracks two
// relations, "actor is waiting for lockable" and "lockable is held by
// actor", and panics the instant a new waits-for edge would close a
// cycle in the combined graph.
//
// The cycle search is the same depth-first, visiting/done bookkeeping
// used by the teacher module's toposort.Sorter.Sort, adapted from a
// batch "sort the whole graph, collect every cycle" pass into an online
// "would this one new edge create a cycle" check performed inside Wait.
package hangman

import (
	"fmt"
	"sync"

	"kernelsim/kmetrics"
)

// Actor is anything that can wait for or hold a Lockable. In this
// module it is always a *sched.CPU, but the detector is expressed
// against the interface so it has no import-cycle dependency on sched.
type Actor interface {
	HangmanID() string
}

// Lockable is anything that can be waited for and held. Spin locks
// implement it.
type Lockable interface {
	HangmanID() string
}

// Edge describes one waits-for relationship, used in panic messages and
// in the returned cycle trace.
type Edge struct {
	Actor    string
	Lockable string
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s", e.Actor, e.Lockable)
}

// CycleError is the panic value raised when Wait would close a cycle.
type CycleError struct {
	Cycle []Edge
}

func (e *CycleError) Error() string {
	s := "hangman: lock-order cycle detected:"
	for _, edge := range e.Cycle {
		s += " " + edge.String()
	}
	return s
}

// Detector tracks waits-for and held-by edges across a set of actors and
// lockables. Construct one with New; the zero Detector has nil maps and
// panics on its first Wait. A nil *Detector is a
// valid, permanently-disabled detector: all of its methods become
// no-ops, so callers can hold an optional *Detector field and only pay
// for the bookkeeping when one has actually been constructed.
type Detector struct {
	mu      sync.Mutex
	waiting map[string]string // actor id -> lockable id it is waiting for
	holder  map[string]string // lockable id -> actor id currently holding it
	names   map[string]string // id -> human-readable name, for messages
	metrics *kmetrics.Registry
}

// New returns an enabled Detector. metrics may be nil to skip cycle-count
// instrumentation.
func New(metrics *kmetrics.Registry) *Detector {
	return &Detector{
		waiting: make(map[string]string),
		holder:  make(map[string]string),
		names:   make(map[string]string),
		metrics: metrics,
	}
}

func (d *Detector) remember(id, name string) {
	if _, ok := d.names[id]; !ok {
		d.names[id] = name
	}
}

// Wait records that actor is about to block waiting for lockable, and
// panics with a *CycleError if doing so would close a cycle in the
// combined waits-for/held-by graph: actor -> lockable -> holder(lockable)
// -> waiting(holder) -> ... -> actor.
//
// Call this before the actor actually blocks (i.e. before the spin
// acquire's busy-wait loop), and call Acquire once the lock is won so
// the waiting edge is cleared.
func (d *Detector) Wait(actor Actor, lockable Lockable) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	aid, lid := actor.HangmanID(), lockable.HangmanID()
	d.remember(aid, aid)
	d.remember(lid, lid)
	d.waiting[aid] = lid

	if cycle := d.findCycle(aid); cycle != nil {
		d.metrics.IncHangmanCycle()
		panic(&CycleError{Cycle: cycle})
	}
}

// findCycle performs a depth-first walk starting from the waiting edge
// of start, in the style of toposort.node.visit: "visiting" marks nodes
// on the current path, "done" marks nodes fully explored with no cycle
// found through them. The walk alternates actor -> lockable (via
// d.waiting) and lockable -> actor (via d.holder) edges. A revisit of a
// node still marked "visiting" is a cycle; the edges accumulated on the
// way back up form the trace.
func (d *Detector) findCycle(start string) []Edge {
	visiting := make(map[string]bool)
	done := make(map[string]bool)
	var path []Edge

	var visit func(node string, isActor bool) bool
	visit = func(node string, isActor bool) bool {
		if done[node] {
			return false
		}
		if visiting[node] {
			return true
		}
		visiting[node] = true
		defer func() { visiting[node] = false; done[node] = true }()

		if isActor {
			next, ok := d.waiting[node]
			if !ok {
				return false
			}
			path = append(path, Edge{Actor: d.names[node], Lockable: d.names[next]})
			if visit(next, false) {
				return true
			}
			path = path[:len(path)-1]
			return false
		}
		next, ok := d.holder[node]
		if !ok {
			return false
		}
		path = append(path, Edge{Actor: d.names[next], Lockable: d.names[node]})
		if visit(next, true) {
			return true
		}
		path = path[:len(path)-1]
		return false
	}

	if visit(start, true) {
		out := make([]Edge, len(path))
		copy(out, path)
		return out
	}
	return nil
}

// Acquire records that actor now holds lockable, clearing its waiting
// edge.
func (d *Detector) Acquire(actor Actor, lockable Lockable) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	aid, lid := actor.HangmanID(), lockable.HangmanID()
	delete(d.waiting, aid)
	d.holder[lid] = aid
}

// Release records that lockable is no longer held.
func (d *Detector) Release(lockable Lockable) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.holder, lockable.HangmanID())
}
