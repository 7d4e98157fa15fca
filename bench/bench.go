// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bench captures wall-clock latency for kernel operations using
// the teacher module's own timing package (timing.FullTimer), the same
// hierarchical push/pop interval tree it already provides, instead of
// hand-rolling a stopwatch. RW-01 uses it to bound how long its writer
// waits to acquire the lock, by pushing and popping a named interval
// around that acquire.
package bench

import (
	"time"

	"kernelsim/timing"
)

// Recorder wraps a timing.Timer so callers can bracket an operation
// with a single defer.
type Recorder struct {
	t timing.Timer
}

// New starts a fresh named recording.
func New(name string) *Recorder {
	return &Recorder{t: timing.NewFullTimer(name)}
}

// Track pushes a named child interval and returns a func that pops it;
// intended use is `defer r.Track("acquire")()`.
func (r *Recorder) Track(name string) func() {
	r.t.Push(name)
	return r.t.Pop
}

// Finish closes out any still-open intervals.
func (r *Recorder) Finish() {
	r.t.Finish()
}

// String renders the recorded interval tree, matching
// timing.FullTimer's own String().
func (r *Recorder) String() string {
	return r.t.String()
}

// Root returns the root interval, for callers that want to compute
// their own statistics (e.g. max child duration) instead of just
// printing the tree.
func (r *Recorder) Root() timing.Interval {
	return r.t.Root()
}

// MaxChildDuration returns the longest single child interval under
// root, evaluated as of now. RW01 uses this to check that its writer's
// tracked acquire stayed under a wall-clock ceiling.
func MaxChildDuration(root timing.Interval, now time.Time) time.Duration {
	var max time.Duration
	for i := 0; i < root.NumChild(); i++ {
		d := timing.IntervalDuration(root.Child(i), now)
		if d > max {
			max = d
		}
	}
	return max
}
