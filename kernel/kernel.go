// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel assembles the pieces spec.md's modules describe (CPUs,
// the hangman detector, boot configuration, logging, metrics, the
// hardclock) into one bootable simulation, the way a real kernel's
// main.c wires its subsystems together before dropping into the idle
// loop. The hardclock's tick source is golang.org/x/time/rate, one of
// the teacher module's own indirect dependencies: a rate.Limiter
// generates the periodic tick events fed to every CPU's Hardclock, in
// place of a real timer interrupt no Go program can receive.
package kernel

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"kernelsim/hangman"
	"kernelsim/kconfig"
	"kernelsim/kenv"
	"kernelsim/klog"
	"kernelsim/kmetrics"
	"kernelsim/sched"
)

// Kernel is a booted simulation: a fixed set of CPUs sharing one hangman
// detector, one logger, and one hardclock.
type Kernel struct {
	Config  kconfig.Config
	Log     *klog.Logger
	Metrics *kmetrics.Registry

	cpus     []*sched.CPU
	detector *hangman.Detector

	hardclockCancel context.CancelFunc
	hardclockDone    chan struct{}

	once sync.Once
}

// Boot validates cfg and brings up a Kernel: cfg.NumCPUs CPU records
// (each with its own dispatcher goroutine and idle thread already
// running) sharing one hangman detector, plus a hardclock goroutine
// that ticks every CPU at cfg.HardclockHZ.
func Boot(cfg kconfig.Config, log *klog.Logger, metrics *kmetrics.Registry) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = klog.Discard()
	}

	var detector *hangman.Detector
	if cfg.Hangman {
		detector = hangman.New(metrics)
	}

	k := &Kernel{
		Config:        cfg,
		Log:           log,
		Metrics:       metrics,
		detector:      detector,
		hardclockDone: make(chan struct{}),
	}
	env := k.Env()
	for i := 0; i < cfg.NumCPUs; i++ {
		k.cpus = append(k.cpus, sched.NewCPU(i, env))
	}

	ctx, cancel := context.WithCancel(context.Background())
	k.hardclockCancel = cancel
	go k.runHardclock(ctx)

	log.Infof("kernel booted: %d cpu(s), hangman=%v, hz=%d", cfg.NumCPUs, cfg.Hangman, cfg.HardclockHZ)
	return k, nil
}

// CPUs returns the kernel's CPU records, indexed by hardware id.
func (k *Kernel) CPUs() []*sched.CPU { return k.cpus }

// CPU returns the CPU with the given hardware id.
func (k *Kernel) CPU(id int) *sched.CPU {
	if id < 0 || id >= len(k.cpus) {
		panic(fmt.Sprintf("kernel: no such CPU %d", id))
	}
	return k.cpus[id]
}

// Detector returns the kernel's shared hangman detector, or nil if
// hangman was disabled in the boot configuration.
func (k *Kernel) Detector() *hangman.Detector { return k.detector }

// Env bundles the kernel's detector, logger, and metrics registry into the
// kenv.Env every spinlock/sched/wchan/ksync constructor accepts, so callers
// wiring up a new primitive don't have to thread the three pieces through
// individually.
func (k *Kernel) Env() kenv.Env {
	return kenv.Env{Detector: k.detector, Metrics: k.Metrics, Log: k.Log}
}

// Fork forks a new thread bound to CPU id, with proc as the opaque
// owning container passed through to the thread.
func (k *Kernel) Fork(cpuID int, name string, proc interface{}, entry sched.EntryFunc, a1, a2 interface{}) *sched.Thread {
	return k.CPU(cpuID).Fork(name, proc, entry, a1, a2)
}

// runHardclock fires every CPU's Hardclock at cfg.HardclockHZ until ctx
// is cancelled.
func (k *Kernel) runHardclock(ctx context.Context) {
	defer close(k.hardclockDone)

	hz := k.Config.HardclockHZ
	lim := rate.NewLimiter(rate.Limit(hz), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		for _, c := range k.cpus {
			c.Hardclock()
		}
	}
}

// Shutdown stops the hardclock goroutine. It is safe to call more than
// once.
func (k *Kernel) Shutdown() {
	k.once.Do(func() {
		k.hardclockCancel()
		<-k.hardclockDone
		k.Log.Infof("kernel shutdown")
	})
}
