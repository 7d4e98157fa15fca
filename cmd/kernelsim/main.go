// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command kernelsim boots the simulated kernel core and runs one or
// more synchronization scenarios against it, the way the original
// kernel's kern/tests driver ran menu-selected test cases against a
// booted OS/161 instance. Flags are bound via kconfig, which in turn
// uses the teacher module's own cmd/pflagvar to register them from the
// same struct tags that also drive kconfig's YAML boot file.
package main

import (
	"fmt"
	"os"

	"github.com/cosmosnicolaou/llog"
	"github.com/spf13/pflag"

	"kernelsim/kconfig"
	"kernelsim/kernel"
	"kernelsim/klog"
	"kernelsim/kmetrics"
	"kernelsim/scenarios"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	bootFile = pflag.String("boot-config", "", "path to a YAML boot configuration file (optional)")
	scenario = pflag.String("scenario", "all", "scenario to run: sem01, lock01, cv01, prodcons01, rw01, dining01, deadlock01, whalemating01, or all")
)

func run() error {
	cfg := kconfig.Default()
	if err := kconfig.BindFlags(pflag.CommandLine, &cfg); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	pflag.Parse()
	if *bootFile != "" {
		loaded, err := kconfig.Load(*bootFile)
		if err != nil {
			return err
		}
		cfg = loaded
		// Parse again so flags given on the command line override the file.
		if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
			return err
		}
	}

	log := klog.New(os.Stdout, llog.Level(cfg.LogLevel), klog.SeverityInfo)
	metrics := kmetrics.NewRegistry(prometheus.DefaultRegisterer)

	k, err := kernel.Boot(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	defer k.Shutdown()

	results := runScenarios(k, *scenario)
	failed := false
	for _, r := range results {
		status := "PASS"
		if r.Failed {
			status = "FAIL"
			failed = true
		}
		fmt.Printf("[%s] %s: %s\n", status, r.Name, r.Details)
	}
	if failed {
		return fmt.Errorf("one or more scenarios failed")
	}
	return nil
}

func runScenarios(k *kernel.Kernel, which string) []scenarios.Result {
	all := func() []scenarios.Result {
		return []scenarios.Result{
			scenarios.Semaphore01(k, 3, 12),
			scenarios.Lock01(k, 8, 200),
			scenarios.CV01(k, 4, 4, 8, 400),
			scenarios.ProdCons01(k),
			scenarios.RW01(k, 6, 50),
			scenarios.DiningPhilosophersRW01(k),
			scenarios.Whalemating01(k, 10),
			// Last: the losing side of its deadlock keeps spinning on
			// its CPU for the rest of the run.
			scenarios.Deadlock01(k),
		}
	}
	switch which {
	case "all":
		return all()
	case "sem01":
		return []scenarios.Result{scenarios.Semaphore01(k, 3, 12)}
	case "lock01":
		return []scenarios.Result{scenarios.Lock01(k, 8, 200)}
	case "cv01":
		return []scenarios.Result{scenarios.CV01(k, 4, 4, 8, 400)}
	case "prodcons01":
		return []scenarios.Result{scenarios.ProdCons01(k)}
	case "rw01":
		return []scenarios.Result{scenarios.RW01(k, 6, 50)}
	case "dining01":
		return []scenarios.Result{scenarios.DiningPhilosophersRW01(k)}
	case "deadlock01":
		return []scenarios.Result{scenarios.Deadlock01(k)}
	case "whalemating01":
		return []scenarios.Result{scenarios.Whalemating01(k, 10)}
	default:
		fmt.Fprintf(os.Stderr, "unknown scenario %q, running all\n", which)
		return all()
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "kernelsim:", err)
		os.Exit(1)
	}
}
