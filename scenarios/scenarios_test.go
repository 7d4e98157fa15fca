// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scenarios

import (
	"testing"

	"kernelsim/kconfig"
	"kernelsim/kernel"
)

func bootTestKernel(t *testing.T, hangman bool) *kernel.Kernel {
	t.Helper()
	cfg := kconfig.Default()
	cfg.NumCPUs = 4
	cfg.Hangman = hangman
	k, err := kernel.Boot(cfg, nil, nil)
	if err != nil {
		t.Fatalf("kernel.Boot: %v", err)
	}
	t.Cleanup(k.Shutdown)
	return k
}

func TestSemaphore01Passes(t *testing.T) {
	k := bootTestKernel(t, true)
	r := Semaphore01(k, 3, 20)
	if r.Failed {
		t.Fatalf("Semaphore01 failed: %s", r.Details)
	}
}

func TestLock01Passes(t *testing.T) {
	k := bootTestKernel(t, true)
	r := Lock01(k, 8, 200)
	if r.Failed {
		t.Fatalf("Lock01 failed: %s", r.Details)
	}
}

func TestCV01Passes(t *testing.T) {
	k := bootTestKernel(t, true)
	r := CV01(k, 4, 4, 3, 2000)
	if r.Failed {
		t.Fatalf("CV01 failed: %s", r.Details)
	}
}

func TestProdCons01Passes(t *testing.T) {
	k := bootTestKernel(t, true)
	r := ProdCons01(k)
	if r.Failed {
		t.Fatalf("ProdCons01 failed: %s", r.Details)
	}
	if r.Name != "PROD-CONS-01" {
		t.Fatalf("Name = %q, want PROD-CONS-01", r.Name)
	}
}

func TestRW01Passes(t *testing.T) {
	k := bootTestKernel(t, true)
	r := RW01(k, 6, 50)
	if r.Failed {
		t.Fatalf("RW01 failed: %s", r.Details)
	}
}

func TestDiningPhilosophersRW01Passes(t *testing.T) {
	k := bootTestKernel(t, true)
	r := DiningPhilosophersRW01(k)
	if r.Failed {
		t.Fatalf("DiningPhilosophersRW01 failed: %s", r.Details)
	}
}

func TestWhalemating01Passes(t *testing.T) {
	k := bootTestKernel(t, true)
	r := Whalemating01(k, 25)
	if r.Failed {
		t.Fatalf("Whalemating01 failed: %s", r.Details)
	}
}

func TestDeadlock01CatchesTheCycle(t *testing.T) {
	k := bootTestKernel(t, true)
	r := Deadlock01(k)
	if r.Failed {
		t.Fatalf("Deadlock01 reported failure: %s", r.Details)
	}
}
