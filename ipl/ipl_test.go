// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipl

import "testing"

func TestStateStartsAtNone(t *testing.T) {
	var s State
	if got := s.Current(); got != None {
		t.Errorf("zero State.Current() = %v, want %v", got, None)
	}
}

func TestRaiseLowerRoundTrip(t *testing.T) {
	var s State
	prev := s.Raise(None, High)
	if prev != None {
		t.Fatalf("Raise returned %v, want %v", prev, None)
	}
	if got := s.Current(); got != High {
		t.Fatalf("after Raise, Current() = %v, want %v", got, High)
	}

	prev = s.Lower(High, None)
	if prev != High {
		t.Fatalf("Lower returned %v, want %v", prev, High)
	}
	if got := s.Current(); got != None {
		t.Fatalf("after Lower, Current() = %v, want %v", got, None)
	}
}

func TestRaiseRequiresIncrease(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Raise(High, None) did not panic")
		}
	}()
	var s State
	s.Raise(None, High)
	s.Raise(High, None) // wrong direction: must panic
}

func TestLowerRequiresDecrease(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Lower(None, High) did not panic")
		}
	}()
	var s State
	s.Lower(None, High)
}

func TestRaiseDetectsStaleOld(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Raise with a stale old value did not panic")
		}
	}()
	var s State
	s.Raise(None, High)
	// s is now High, but the caller claims it was still None.
	s.Raise(None, High)
}

func TestSetIsUnconditional(t *testing.T) {
	var s State
	prev := s.Set(High)
	if prev != None {
		t.Fatalf("Set returned %v, want %v", prev, None)
	}
	if got := s.Current(); got != High {
		t.Fatalf("Current() = %v, want %v", got, High)
	}
	// Set never asserts an expected prior value, unlike Raise/Lower.
	s.Set(High)
}

func TestLevelString(t *testing.T) {
	if None.String() != "IPL_NONE" {
		t.Errorf("None.String() = %q, want IPL_NONE", None.String())
	}
	if High.String() != "IPL_HIGH" {
		t.Errorf("High.String() = %q, want IPL_HIGH", High.String())
	}
}

func TestBarriersAreCallable(t *testing.T) {
	// The barrier helpers are no-ops in this simulation; this just
	// guards against a future change making them panic or block.
	LoadLoad()
	StoreStore()
	StoreAny()
	AnyStore()
	AnyAny()
}
