// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"sync"
	"testing"
	"time"

	"kernelsim/hangman"
	"kernelsim/kenv"
)

func TestForkRunsEntryAndExits(t *testing.T) {
	c := NewCPU(0, kenv.Env{})
	done := make(chan struct{})
	c.Fork("worker", nil, func(self *Thread, _, _ interface{}) {
		close(done)
		Exit(self)
	}, nil, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forked thread never ran")
	}
}

func TestForkedThreadsRunToCompletionInOrder(t *testing.T) {
	// Every forked thread is appended to the tail of the ready queue, so
	// with no one yielding early they should each get a turn and finish,
	// in fork order, before the CPU falls back to idling.
	c := NewCPU(0, kenv.Env{})
	const n = 20
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		c.Fork("w", nil, func(self *Thread, _, _ interface{}) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
			Exit(self)
		}, nil, nil)
	}

	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != n {
		t.Fatalf("got %d completions, want %d", len(order), n)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("completion order = %v, want strictly increasing 0..%d", order, n-1)
		}
	}
}

func TestYieldLetsOtherThreadsRun(t *testing.T) {
	c := NewCPU(0, kenv.Env{})
	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	wg.Add(2)

	c.Fork("a", nil, func(self *Thread, _, _ interface{}) {
		Yield(self)
		mu.Lock()
		count++
		mu.Unlock()
		wg.Done()
		Exit(self)
	}, nil, nil)
	c.Fork("b", nil, func(self *Thread, _, _ interface{}) {
		mu.Lock()
		count++
		mu.Unlock()
		wg.Done()
		Exit(self)
	}, nil, nil)

	waitOrTimeout(t, &wg, time.Second)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestReapRemovesExitedThreads(t *testing.T) {
	c := NewCPU(0, kenv.Env{})
	done := make(chan struct{})
	c.Fork("w", nil, func(self *Thread, _, _ interface{}) {
		close(done)
		Exit(self)
	}, nil, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forked thread never ran")
	}

	// The thread signals done right before calling Exit, so give its
	// goroutine a moment to actually reach exit() and link onto the
	// zombie list before reaping.
	deadline := time.Now().Add(time.Second)
	for {
		n := c.Reap(nil)
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Reap never found the exited thread")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEnqueueFromAnotherCPUWakesParkedThread(t *testing.T) {
	c0 := NewCPU(0, kenv.Env{})
	c1 := NewCPU(1, kenv.Env{})

	resumed := make(chan struct{})
	var parked *Thread
	var parkedReady sync.WaitGroup
	parkedReady.Add(1)

	c0.Fork("sleeper", nil, func(self *Thread, _, _ interface{}) {
		parked = self
		self.MarkSleeping()
		parkedReady.Done()
		self.Park() // not linked onto any queue; only our Enqueue call below wakes it
		close(resumed)
		Exit(self)
	}, nil, nil)

	waitOrTimeout(t, &parkedReady, time.Second)
	// Give the sleeper's goroutine a moment to actually call Park (reach
	// the runGate receive) before another CPU wakes it.
	time.Sleep(10 * time.Millisecond)

	c0.Enqueue(c1, parked)

	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("thread enqueued from another CPU never resumed")
	}
}

func TestHardclockSetsAndClearsPendingPreempt(t *testing.T) {
	c := NewCPU(0, kenv.Env{})
	if c.PreemptPending() {
		t.Fatal("PreemptPending is true on a fresh CPU")
	}
	c.Hardclock()
	if !c.PreemptPending() {
		t.Fatal("PreemptPending is false right after Hardclock")
	}
	if !c.ClearPreempt() {
		t.Fatal("ClearPreempt returned false despite a pending preempt")
	}
	if c.PreemptPending() {
		t.Fatal("PreemptPending still true after ClearPreempt")
	}
	if c.ClearPreempt() {
		t.Fatal("ClearPreempt returned true with nothing pending")
	}
}

func TestNewCPUKeepsDetectorAndBuildsRunQueueLock(t *testing.T) {
	// NewCPU must build rqLock and keep the detector it was given rather
	// than silently dropping it; this only checks the CPU's own copy, and
	// spinlock's own tests cover cycle detection itself.
	d := hangman.New(nil)
	c := NewCPU(0, kenv.Env{Detector: d})
	if c.rqLock == nil {
		t.Fatal("rqLock is nil")
	}
	if c.detector != d {
		t.Fatal("NewCPU did not store the passed-in detector")
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for goroutines")
	}
}
