// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package klog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cosmosnicolaou/llog"
)

func TestInfofAlwaysWrites(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, 0, SeverityInfo)
	l.Infof("hello %d", 42)
	if got := buf.String(); !strings.Contains(got, "hello 42") {
		t.Fatalf("Infof output = %q, want it to contain %q", got, "hello 42")
	}
}

func TestWriteGatesBySeverity(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, 0, SeverityWarning)
	l.Infof("should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("Infof wrote output %q despite a SeverityWarning threshold", buf.String())
	}
	l.Warningf("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("Warningf output = %q, want it to contain %q", buf.String(), "should appear")
	}
}

func TestVGatesOnLevel(t *testing.T) {
	l := New(nil, llog.Level(2), SeverityInfo)
	if !l.V(llog.Level(1)) {
		t.Error("V(1) is false when logger level is 2")
	}
	if !l.V(llog.Level(2)) {
		t.Error("V(2) is false when logger level is 2")
	}
	if l.V(llog.Level(3)) {
		t.Error("V(3) is true when logger level is 2")
	}
}

func TestTracefRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, llog.Level(1), SeverityInfo)
	l.Tracef(llog.Level(5), "too verbose")
	if buf.Len() != 0 {
		t.Fatalf("Tracef at a level above the threshold wrote: %q", buf.String())
	}
	l.Tracef(llog.Level(1), "at threshold")
	if !strings.Contains(buf.String(), "at threshold") {
		t.Fatalf("Tracef at the threshold level did not write: %q", buf.String())
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	l := Discard()
	l.Infof("a")
	l.Warningf("b")
	l.Errorf("c")
	// Discard's only observable contract is that none of these panic and
	// nothing becomes visible anywhere a test could assert on; there is
	// no output surface to check directly since it writes to io.Discard.
}

func TestNewWithNilWriterDefaultsToStderr(t *testing.T) {
	l := New(nil, 0, SeverityError+1)
	if l.out == nil {
		t.Fatal("New(nil, ...) left out nil instead of defaulting to os.Stderr")
	}
}
