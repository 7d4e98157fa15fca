// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// id.go adapts the teacher module's uniqueid.RandomGenerator into a
// monotonic, non-random allocator. Kernel object ids (CPU hardware ids,
// thread ids) need only be unique and small, not unpredictable: using
// crypto/rand the way uniqueid.NewID does would make every test run's
// diagnostic output (and the hangman cycle trace) gratuitously
// non-reproducible, so the random prefix is dropped and only the
// counter is kept, as a single atomic add rather than a mutex.
package sched

import "sync/atomic"

// idGenerator hands out small monotonically increasing ids.
type idGenerator struct {
	next uint64
}

func (g *idGenerator) next_() uint64 {
	return atomic.AddUint64(&g.next, 1) - 1
}

var (
	cpuIDs    idGenerator
	threadIDs idGenerator
)
