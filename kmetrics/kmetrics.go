// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kmetrics instruments the kernel core with
// github.com/prometheus/client_golang, one of the teacher module's own
// indirect dependencies (pulled in, in the original go.mod, for exactly
// this kind of gauge/counter instrumentation). Every metric here is a
// simulation-observability counter: spin-lock contention, ready-queue
// depth, wait-channel occupancy, and zombie-thread backlog, none of
// which exist in the original kernel's own code (it has no metrics
// exporter) but all of which are natural Go-native additions once the
// kernel core is a long-running set of goroutines instead of a single
// booted machine image.
package kmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the kernel's collectors behind one name so
// cmd/kernelsim can register them with a single call and scenarios can
// reach the ones they need to update.
type Registry struct {
	SpinWaits      *prometheus.CounterVec
	ReadyQueueLen  *prometheus.GaugeVec
	WaitChanLen    *prometheus.GaugeVec
	ZombiesPending *prometheus.GaugeVec
	HangmanCycles  prometheus.Counter
}

// NewRegistry constructs a Registry and registers all of its collectors
// with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		SpinWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kernelsim",
			Subsystem: "spinlock",
			Name:      "wait_spins_total",
			Help:      "Number of busy-wait spin iterations observed while acquiring a spin lock.",
		}, []string{"lock"}),
		ReadyQueueLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kernelsim",
			Subsystem: "sched",
			Name:      "ready_queue_length",
			Help:      "Number of threads currently on a CPU's ready queue.",
		}, []string{"cpu"}),
		WaitChanLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kernelsim",
			Subsystem: "wchan",
			Name:      "sleepers",
			Help:      "Number of threads currently sleeping on a wait channel.",
		}, []string{"wchan"}),
		ZombiesPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kernelsim",
			Subsystem: "sched",
			Name:      "zombies_pending",
			Help:      "Number of zombie threads awaiting reaping on a CPU.",
		}, []string{"cpu"}),
		HangmanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kernelsim",
			Subsystem: "hangman",
			Name:      "cycles_detected_total",
			Help:      "Number of lock-order cycles the deadlock detector has caught.",
		}),
	}
	reg.MustRegister(r.SpinWaits, r.ReadyQueueLen, r.WaitChanLen, r.ZombiesPending, r.HangmanCycles)
	return r
}

// The Inc/Set methods below are nil-safe, the same way *hangman.Detector's
// methods are: a nil *Registry is a permanently-disabled Registry, so every
// call site along the spin/sched/wchan/hangman hot paths can hold an
// optional *Registry field and skip the nil check.

// IncSpinWait records one busy-wait spin iteration against lock.
func (r *Registry) IncSpinWait(lock string) {
	if r == nil {
		return
	}
	r.SpinWaits.WithLabelValues(lock).Inc()
}

// SetReadyQueueLen records cpu's current ready-queue depth.
func (r *Registry) SetReadyQueueLen(cpu string, n int) {
	if r == nil {
		return
	}
	r.ReadyQueueLen.WithLabelValues(cpu).Set(float64(n))
}

// SetWaitChanLen records wc's current sleeper count.
func (r *Registry) SetWaitChanLen(wc string, n int) {
	if r == nil {
		return
	}
	r.WaitChanLen.WithLabelValues(wc).Set(float64(n))
}

// SetZombiesPending records cpu's current zombie-list length.
func (r *Registry) SetZombiesPending(cpu string, n int) {
	if r == nil {
		return
	}
	r.ZombiesPending.WithLabelValues(cpu).Set(float64(n))
}

// IncHangmanCycle records one lock-order cycle caught by the detector.
func (r *Registry) IncHangmanCycle() {
	if r == nil {
		return
	}
	r.HangmanCycles.Inc()
}
