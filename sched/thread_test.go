// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"testing"

	"kernelsim/kenv"
)

func TestStateString(t *testing.T) {
	cases := []struct {
		s    State
		want string
	}{
		{Run, "RUN"},
		{Ready, "READY"},
		{Sleep, "SLEEP"},
		{Zombie, "ZOMBIE"},
		{State(99), "INVALID"},
	}
	for _, c := range cases {
		if got := c.s.String(); got != c.want {
			t.Errorf("State(%d).String() = %q, want %q", c.s, got, c.want)
		}
	}
}

func TestThreadNameProcAndString(t *testing.T) {
	c := NewCPU(0, kenv.Env{})
	th := c.newThread("probe", "owner", func(self *Thread, _, _ interface{}) {}, nil, nil)

	if th.Name() != "probe" {
		t.Fatalf("Name() = %q, want %q", th.Name(), "probe")
	}
	if th.Proc() != "owner" {
		t.Fatalf("Proc() = %v, want %q", th.Proc(), "owner")
	}
	if th.CPU() != c {
		t.Fatal("CPU() does not return the owning CPU")
	}
	if got := th.String(); got == "" {
		t.Fatal("String() returned empty")
	}
}

func TestMarkSleepingSetsState(t *testing.T) {
	c := NewCPU(0, kenv.Env{})
	th := c.newThread("t", nil, func(self *Thread, _, _ interface{}) {}, nil, nil)
	th.MarkSleeping()
	if th.State() != Sleep {
		t.Fatalf("State() after MarkSleeping = %v, want %v", th.State(), Sleep)
	}
}
