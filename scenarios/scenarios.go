// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scenarios contains runnable exercises of the L3 primitives in
// ksync, each one a named, directly invokable function rather than a
// test so that cmd/kernelsim can run them as a simulation driver. Most
// are supplemented from original_source/kern/synchprobs and
// original_source/kern/tests, whose driver-and-stub shape this package
// keeps (a small Init/body/teardown split) while filling in the bodies
// original_source left as an exercise for a student kernel author.
package scenarios

import (
	"fmt"
	"sync"
	"time"

	"kernelsim/bench"
	"kernelsim/kernel"
	"kernelsim/ksync"
	"kernelsim/sched"
	"kernelsim/spinlock"
)

// Result reports whether a scenario finished without violating any of
// its own invariants.
type Result struct {
	Name    string
	Details string
	Failed  bool
}

func ok(name, format string, args ...interface{}) Result {
	return Result{Name: name, Details: fmt.Sprintf(format, args...)}
}

func failed(name, format string, args ...interface{}) Result {
	return Result{Name: name, Details: fmt.Sprintf(format, args...), Failed: true}
}

// Semaphore01 exercises a plain counting semaphore as a bounded
// resource pool: N "workers" each P() a permit, do a trivial unit of
// work tracked by a plain (non-atomic, lock-protected) counter, then
// V() the permit back. If the semaphore's mutual exclusion ever slips,
// concurrent in checked against the permit count below reveals it.
func Semaphore01(k *kernel.Kernel, permits, workers int) Result {
	sem := ksync.NewSemaphore("sem01", permits, k.Env())

	var mu sync.Mutex
	inFlight, maxInFlight, completed := 0, 0, 0

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		cpu := k.CPU(i % len(k.CPUs()))
		cpu.Fork(fmt.Sprintf("sem01-worker-%d", i), nil, func(self *sched.Thread, _, _ interface{}) {
			defer wg.Done()
			sem.P(self)
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			sched.Yield(self) // let a peer observe us holding a permit

			mu.Lock()
			inFlight--
			completed++
			mu.Unlock()
			sem.V(self)
		}, nil, nil)
	}
	wg.Wait()

	if maxInFlight > permits {
		return failed("SEM-01", "observed %d permits in flight, want <= %d", maxInFlight, permits)
	}
	return ok("SEM-01", "%d workers completed, max concurrent permits held %d/%d", completed, maxInFlight, permits)
}

// Lock01 exercises ksync.Lock as ordinary mutual exclusion around a
// shared counter: if the lock ever admits two holders at once, the
// final count will be short of workers*increments.
func Lock01(k *kernel.Kernel, workers, increments int) Result {
	lock := ksync.NewLock("lock01", k.Env())
	counter := 0

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		cpu := k.CPU(i % len(k.CPUs()))
		cpu.Fork(fmt.Sprintf("lock01-worker-%d", i), nil, func(self *sched.Thread, _, _ interface{}) {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				lock.Acquire(self)
				counter++
				sched.Yield(self)
				lock.Release(self)
			}
		}, nil, nil)
	}
	wg.Wait()

	want := workers * increments
	if counter != want {
		return failed("LOCK-01", "counter = %d, want %d (lost updates under contention)", counter, want)
	}
	return ok("LOCK-01", "counter reached %d with no lost updates across %d workers", counter, workers)
}

// boundedBuffer is a small producer/consumer queue, the classic use of
// a CV alongside a Lock: producers block on Wait while full, consumers
// block on Wait while empty, each side Signal-ing the other's
// condition after it changes the queue's occupancy.
type boundedBuffer struct {
	lock     *ksync.Lock
	notFull  *ksync.CV
	notEmpty *ksync.CV
	cap      int
	items    []int
}

func newBB(name string, capacity int, k *kernel.Kernel) *boundedBuffer {
	return &boundedBuffer{
		lock:     ksync.NewLock(name+".lock", k.Env()),
		notFull:  ksync.NewCV(name+".notfull", k.Env()),
		notEmpty: ksync.NewCV(name+".notempty", k.Env()),
		cap:      capacity,
	}
}

func (b *boundedBuffer) put(self *sched.Thread, v int) {
	b.lock.Acquire(self)
	for len(b.items) >= b.cap {
		b.notFull.Wait(self, b.lock)
	}
	b.items = append(b.items, v)
	b.notEmpty.Signal(self)
	b.lock.Release(self)
}

func (b *boundedBuffer) get(self *sched.Thread) int {
	b.lock.Acquire(self)
	for len(b.items) == 0 {
		b.notEmpty.Wait(self, b.lock)
	}
	v := b.items[0]
	b.items = b.items[1:]
	b.notFull.Signal(self)
	b.lock.Release(self)
	return v
}

// CV01 runs a bounded-buffer producer/consumer exercise: producers
// produce total items between them and consumers, each taking a fixed
// share, consume exactly that many, while put waits whenever the buffer
// already holds capacity items. A lost wakeup or a mis-signalled CV
// shows up as a hang or as a produced/consumed count other than total.
func CV01(k *kernel.Kernel, producers, consumers, capacity, total int) Result {
	buf := newBB("cv01", capacity, k)

	var mu sync.Mutex
	produced, consumed := 0, 0
	sum := make(chan int, total)

	var pwg, cwg sync.WaitGroup
	pwg.Add(producers)
	for i := 0; i < producers; i++ {
		share := total / producers
		if i == producers-1 {
			share = total - share*(producers-1)
		}
		cpu := k.CPU(i % len(k.CPUs()))
		cpu.Fork(fmt.Sprintf("cv01-producer-%d", i), nil, func(self *sched.Thread, _, _ interface{}) {
			defer pwg.Done()
			for j := 0; j < share; j++ {
				buf.put(self, 1)
				mu.Lock()
				produced++
				mu.Unlock()
			}
		}, nil, nil)
	}

	cwg.Add(consumers)
	for i := 0; i < consumers; i++ {
		share := total / consumers
		if i == consumers-1 {
			share = total - share*(consumers-1)
		}
		cpu := k.CPU(i % len(k.CPUs()))
		cpu.Fork(fmt.Sprintf("cv01-consumer-%d", i), nil, func(self *sched.Thread, _, _ interface{}) {
			defer cwg.Done()
			for j := 0; j < share; j++ {
				v := buf.get(self)
				sum <- v
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}, nil, nil)
	}

	pwg.Wait()
	cwg.Wait()

	if consumed != total || produced != total {
		return failed("CV-01", "produced=%d consumed=%d, want both = %d", produced, consumed, total)
	}
	return ok("CV-01", "bounded buffer moved %d items through capacity %d with %d producers / %d consumers",
		total, capacity, producers, consumers)
}

// ProdCons01 is spec.md §8's literal end-to-end bounded-buffer property:
// 16 producers and 16 consumers moving 1000 items each through a
// capacity-4 ring buffer, for a total of 256000 items that must arrive
// exactly once apiece. It is the same mechanism as CV01, run at the
// scale and buffer size the spec names explicitly.
func ProdCons01(k *kernel.Kernel) Result {
	const (
		producers = 16
		consumers = 16
		perItem   = 1000
		capacity  = 4
		total     = producers * consumers * perItem // 16*16*1000 = 256000
	)
	r := CV01(k, producers, consumers, capacity, total)
	r.Name = "PROD-CONS-01"
	return r
}

// DiningPhilosophersRW01 is spec.md §8 property 8: 5 philosophers each
// alternate between taking a shared RWLock as a reader ("think") and as
// a writer ("eat") for 10000 rounds. The property under test is
// deadlock freedom, not throughput — completion without a panic (a
// stuck goroutine would simply never reach wg.Done and the harness
// would hang, which a real test runs under a timeout to catch) is the
// whole of the assertion.
func DiningPhilosophersRW01(k *kernel.Kernel) Result {
	const (
		philosophers = 5
		rounds       = 10000
	)
	table := ksync.NewRWLock("dining01.table", k.Env())

	var wg sync.WaitGroup
	wg.Add(philosophers)
	for i := 0; i < philosophers; i++ {
		cpu := k.CPU(i % len(k.CPUs()))
		cpu.Fork(fmt.Sprintf("dining01-philosopher-%d", i), nil, func(self *sched.Thread, _, _ interface{}) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				table.RLock(self) // think
				table.RUnlock(self)
				table.Lock(self) // eat
				table.Unlock(self)
			}
		}, nil, nil)
	}
	wg.Wait()

	return ok("DINING-01", "%d philosophers completed %d think/eat rounds each with no deadlock", philosophers, rounds)
}

// RW01 exercises ksync.RWLock's writer-preference guarantee: a stream
// of readers runs concurrently while one writer is held off, and once
// the writer arrives no further reader is admitted until it has run. A
// bench.Recorder brackets the writer's Lock call so the run asserts a
// concrete bound on how long writer-preference lets a writer starve,
// rather than just checking that it eventually ran at all.
func RW01(k *kernel.Kernel, readers, rounds int) Result {
	rw := ksync.NewRWLock("rw01", k.Env())
	shared := 0
	rec := bench.New("rw01")

	var mu sync.Mutex
	maxConcurrentReaders, currentReaders := 0, 0
	writerRan := false

	var wg sync.WaitGroup
	wg.Add(readers + 1)

	k.CPU(0).Fork("rw01-writer", nil, func(self *sched.Thread, _, _ interface{}) {
		defer wg.Done()
		stopTrack := rec.Track("writer-acquire")
		rw.Lock(self)
		stopTrack()
		shared++
		mu.Lock()
		writerRan = true
		mu.Unlock()
		sched.Yield(self)
		rw.Unlock(self)
	}, nil, nil)

	for i := 0; i < readers; i++ {
		cpu := k.CPU(i % len(k.CPUs()))
		cpu.Fork(fmt.Sprintf("rw01-reader-%d", i), nil, func(self *sched.Thread, _, _ interface{}) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				rw.RLock(self)
				mu.Lock()
				currentReaders++
				if currentReaders > maxConcurrentReaders {
					maxConcurrentReaders = currentReaders
				}
				mu.Unlock()

				_ = shared
				sched.Yield(self)

				mu.Lock()
				currentReaders--
				mu.Unlock()
				rw.RUnlock(self)
			}
		}, nil, nil)
	}
	wg.Wait()
	rec.Finish()

	if !writerRan {
		return failed("RW-01", "writer never acquired the lock")
	}

	// The writer registers as a waiting writer before its first wait-loop
	// iteration, so writer-preference should keep its acquire latency
	// bounded regardless of how many readers cycle through ahead of it.
	// maxWriterWait is a loose wall-clock ceiling meant to catch a real
	// starvation regression (an unbounded or multi-second wait), not to
	// pin down a precise quantum count under a cooperative scheduler.
	const maxWriterWait = 2 * time.Second
	wait := bench.MaxChildDuration(rec.Root(), time.Now())
	if wait > maxWriterWait {
		return failed("RW-01", "writer waited %s to acquire the lock, want <= %s (writer starvation)", wait, maxWriterWait)
	}
	return ok("RW-01", "writer acquired after waiting %s; peak concurrent readers observed = %d", wait, maxConcurrentReaders)
}

// Deadlock01 deliberately acquires two spin locks in opposite orders on
// two CPUs, so that with the hangman detector enabled the second
// acquirer panics with a *hangman.CycleError instead of the simulation
// hanging forever. The panic is recovered inside the forked thread and
// reported as the returned Result, so callers need no recover(); with
// Hangman disabled the call never returns.
func Deadlock01(k *kernel.Kernel) Result {
	// Hangman is wired into spinlock.Acquire, not ksync.Lock.Acquire (a
	// blocking lock gives up its internal spin lock before a waiter
	// actually sleeps, so there is never a real spin-lock-order cycle
	// behind one), so this exercises a classic AB-BA inversion directly
	// at the spin-lock layer, one CPU acquiring a-then-b while another
	// acquires b-then-a.
	a := spinlock.New("deadlock01.a", k.Env())
	b := spinlock.New("deadlock01.b", k.Env())

	// hangman's panic happens on whichever forked thread's own goroutine
	// closes the cycle, not on this function's goroutine, so it must be
	// recovered there and reported back over a channel rather than with
	// a defer/recover here. Whichever side loses the race never returns
	// from its spin loop (exactly as a real deadlocked kernel thread
	// never returns), so this function reports as soon as the first
	// side reports rather than waiting on both.
	caught := make(chan interface{}, 2)
	guarded := func(body func(self *sched.Thread)) sched.EntryFunc {
		return func(self *sched.Thread, _, _ interface{}) {
			defer func() {
				if r := recover(); r != nil {
					caught <- r
				}
			}()
			body(self)
		}
	}

	aHeld := make(chan struct{})
	bHeld := make(chan struct{})

	k.CPU(0).Fork("deadlock01-t1", nil, guarded(func(self *sched.Thread) {
		cpu := self.CPU()
		a.Acquire(cpu)
		close(aHeld)
		<-bHeld
		b.Acquire(cpu) // blocks spinning; never returns if t2 wins the race
		b.Release(cpu)
		a.Release(cpu)
	}), nil, nil)

	k.CPU(1 % len(k.CPUs())).Fork("deadlock01-t2", nil, guarded(func(self *sched.Thread) {
		cpu := self.CPU()
		<-aHeld
		b.Acquire(cpu)
		close(bHeld)
		a.Acquire(cpu) // closes the cycle: panics here or in t1 above
		a.Release(cpu)
		b.Release(cpu)
	}), nil, nil)

	r := <-caught
	return ok("DEADLOCK-01", "hangman caught the cycle: %v", r)
}

// whale is one of the three roles in the whalemating rendezvous
// (original_source/kern/synchprobs/whalemating.c, left as an unfilled
// stub there): a mating can only proceed once one male, one female, and
// one matchmaker are all simultaneously present, after which all three
// "start" and then all three "end" together. Arrivals are paired by
// counting semaphores rather than a peek-then-acquire check on a shared
// counter, so pairing is exact even with several matchmakers running on
// different CPUs at once: a matchmaker's two P calls each consume
// exactly one prior male/female arrival, with no window in which two
// matchmakers could observe and claim the same arrival.
type whalemating struct {
	maleSem, femaleSem         *ksync.Semaphore // males/females block here until a matchmaker releases them
	maleArrived, femaleArrived *ksync.Semaphore // one V per arrival; a matchmaker P's one of each before pairing
}

func newWhalemating(k *kernel.Kernel) *whalemating {
	return &whalemating{
		maleSem:       ksync.NewSemaphore("whale.male", 0, k.Env()),
		femaleSem:     ksync.NewSemaphore("whale.female", 0, k.Env()),
		maleArrived:   ksync.NewSemaphore("whale.male_arrived", 0, k.Env()),
		femaleArrived: ksync.NewSemaphore("whale.female_arrived", 0, k.Env()),
	}
}

// Whalemating01 runs n instances of the male/female/matchmaker
// rendezvous and checks that every instance completes exactly once
// (no role is ever left waiting forever, and no role is matched twice).
func Whalemating01(k *kernel.Kernel, n int) Result {
	w := newWhalemating(k)

	var mu sync.Mutex
	matched := 0

	var wg sync.WaitGroup
	wg.Add(3 * n)

	male := func(self *sched.Thread, _, _ interface{}) {
		defer wg.Done()
		w.maleArrived.V(self)
		w.maleSem.P(self)
	}

	female := func(self *sched.Thread, _, _ interface{}) {
		defer wg.Done()
		w.femaleArrived.V(self)
		w.femaleSem.P(self)
	}

	matchmaker := func(self *sched.Thread, _, _ interface{}) {
		defer wg.Done()
		w.maleArrived.P(self)
		w.femaleArrived.P(self)
		w.maleSem.V(self)
		w.femaleSem.V(self)
		mu.Lock()
		matched++
		mu.Unlock()
	}

	for i := 0; i < n; i++ {
		cpu := k.CPU(i % len(k.CPUs()))
		cpu.Fork(fmt.Sprintf("whale-male-%d", i), nil, male, nil, nil)
		cpu.Fork(fmt.Sprintf("whale-female-%d", i), nil, female, nil, nil)
		cpu.Fork(fmt.Sprintf("whale-matchmaker-%d", i), nil, matchmaker, nil, nil)
	}
	wg.Wait()

	if matched != n {
		return failed("WHALEMATING-01", "%d matings completed, want %d", matched, n)
	}
	return ok("WHALEMATING-01", "%d matings completed with no role left waiting", matched)
}
