// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kernelsim/kenv"
	"kernelsim/sched"
)

func TestRWLockConcurrentReaders(t *testing.T) {
	const readers = 10
	cpus := newCPUs(4)
	rw := NewRWLock("rw", kenv.Env{})

	var active int32
	var maxActive int32
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		cpu := cpus[i%len(cpus)]
		cpu.Fork("reader", nil, func(self *sched.Thread, _, _ interface{}) {
			defer wg.Done()
			rw.RLock(self)
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			rw.RUnlock(self)
			sched.Exit(self)
		}, nil, nil)
	}

	waitOrTimeout(t, &wg, 2*time.Second)
	if atomic.LoadInt32(&maxActive) < 2 {
		t.Fatalf("maxActive = %d, readers never ran concurrently", maxActive)
	}
}

func TestRWLockWriterExclusion(t *testing.T) {
	const writers = 6
	cpus := newCPUs(3)
	rw := NewRWLock("rw", kenv.Env{})

	var active int32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		cpu := cpus[i%len(cpus)]
		cpu.Fork("writer", nil, func(self *sched.Thread, _, _ interface{}) {
			defer wg.Done()
			rw.Lock(self)
			n := atomic.AddInt32(&active, 1)
			if n != 1 {
				t.Errorf("active writers = %d, want 1", n)
			}
			atomic.AddInt32(&active, -1)
			rw.Unlock(self)
			sched.Exit(self)
		}, nil, nil)
	}

	waitOrTimeout(t, &wg, 2*time.Second)
}

func TestRWLockWriterPreference(t *testing.T) {
	// spec.md §4.8: once a writer is waiting, newly arriving readers must
	// not be admitted ahead of it. Hold a read lock, queue a writer
	// behind it, then queue a reader behind the writer; the writer must
	// acquire before the late reader does. reader0 blocks its goroutine
	// on a Go channel and so keeps cpus[0]; the writer and the late
	// reader run on cpus[1].
	cpus := newCPUs(2)
	rw := NewRWLock("rw", kenv.Env{})

	held := make(chan struct{})
	releaseReader := make(chan struct{})
	cpus[0].Fork("reader0", nil, func(self *sched.Thread, _, _ interface{}) {
		rw.RLock(self)
		close(held)
		<-releaseReader
		rw.RUnlock(self)
		sched.Exit(self)
	}, nil, nil)

	select {
	case <-held:
	case <-time.After(time.Second):
		t.Fatal("reader0 never acquired")
	}

	var order []string
	var mu sync.Mutex
	writerWaiting := make(chan struct{})
	cpus[1].Fork("writer", nil, func(self *sched.Thread, _, _ interface{}) {
		close(writerWaiting)
		rw.Lock(self)
		mu.Lock()
		order = append(order, "writer")
		mu.Unlock()
		rw.Unlock(self)
		sched.Exit(self)
	}, nil, nil)

	<-writerWaiting
	time.Sleep(20 * time.Millisecond) // let the writer register as waiting

	lateReaderDone := make(chan struct{})
	cpus[1].Fork("reader1", nil, func(self *sched.Thread, _, _ interface{}) {
		rw.RLock(self)
		mu.Lock()
		order = append(order, "reader1")
		mu.Unlock()
		rw.RUnlock(self)
		close(lateReaderDone)
		sched.Exit(self)
	}, nil, nil)

	close(releaseReader)

	select {
	case <-lateReaderDone:
	case <-time.After(time.Second):
		t.Fatal("late reader never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "writer" || order[1] != "reader1" {
		t.Fatalf("acquire order = %v, want [writer reader1]", order)
	}
}
