// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hangman

import "testing"

type fakeActor string

func (f fakeActor) HangmanID() string { return string(f) }

type fakeLockable string

func (f fakeLockable) HangmanID() string { return string(f) }

func TestNilDetectorIsANoop(t *testing.T) {
	var d *Detector
	a, l := fakeActor("A"), fakeLockable("L")
	// None of these should panic, and Wait in particular must not
	// treat a disabled detector as an immediate cycle.
	d.Wait(a, l)
	d.Acquire(a, l)
	d.Release(l)
}

func TestAcquireReleaseNoCycle(t *testing.T) {
	d := New(nil)
	a, l := fakeActor("A"), fakeLockable("L")

	d.Wait(a, l)
	d.Acquire(a, l)
	d.Release(l)

	// A second uncontended acquire must not spuriously detect a cycle
	// left over from the first.
	d.Wait(a, l)
	d.Acquire(a, l)
}

func TestTwoActorTwoLockCycleDetected(t *testing.T) {
	d := New(nil)
	a, b := fakeActor("A"), fakeActor("B")
	x, y := fakeLockable("X"), fakeLockable("Y")

	// A acquires X, then B acquires Y.
	d.Wait(a, x)
	d.Acquire(a, x)
	d.Wait(b, y)
	d.Acquire(b, y)

	// B now wants X: B -> X -> A (holds X, fine so far, no cycle yet
	// since A isn't waiting on anything).
	d.Wait(b, x)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic when A completes the A->Y->B->X->A cycle")
		}
		if _, ok := r.(*CycleError); !ok {
			t.Fatalf("panic value is %T, want *CycleError", r)
		}
	}()

	// A now wants Y, which B holds, and B is waiting on X, which A
	// holds: A -> Y -> B -> X -> A is a cycle.
	d.Wait(a, y)
}

func TestSelfWaitIsACycle(t *testing.T) {
	d := New(nil)
	a := fakeActor("A")
	l := fakeLockable("L")

	d.Wait(a, l)
	d.Acquire(a, l)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic: actor waiting on a lockable it already holds")
		}
	}()
	d.Wait(a, l)
}

func TestReleaseClearsHolderEdge(t *testing.T) {
	d := New(nil)
	a, b := fakeActor("A"), fakeActor("B")
	l := fakeLockable("L")

	d.Wait(a, l)
	d.Acquire(a, l)
	d.Release(l)

	// Once released, B can freely wait for and acquire l with no
	// leftover edge from A causing a false cycle.
	d.Wait(b, l)
	d.Acquire(b, l)
}

func TestCycleErrorMessageNamesEdges(t *testing.T) {
	e := &CycleError{Cycle: []Edge{{Actor: "A", Lockable: "X"}, {Actor: "B", Lockable: "Y"}}}
	msg := e.Error()
	if msg == "" {
		t.Fatal("CycleError.Error() returned empty string")
	}
	for _, want := range []string{"A -> X", "B -> Y"} {
		if !contains(msg, want) {
			t.Errorf("CycleError.Error() = %q, want it to contain %q", msg, want)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
