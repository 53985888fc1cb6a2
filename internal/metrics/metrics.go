// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package metrics holds the Prometheus collectors shared by the hvcore
// pipeline (codegen, VMCS/VMCB, NPT). Collectors are registered against
// prometheus.DefaultRegisterer in init(), so registration happens whenever
// this package is imported; callers that never scrape (tests included) just
// use the counters as plain in-process instruments.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CompileTotal counts IR builds, labeled by outcome (ok, build_error).
	CompileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hvcore",
		Subsystem: "jit",
		Name:      "compile_total",
		Help:      "Number of guest traces pushed through the IR builder.",
	}, []string{"outcome"})

	// EstimatedCycles observes the §4.3.4 per-block cycle estimate.
	EstimatedCycles = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hvcore",
		Subsystem: "jit",
		Name:      "estimated_cycles",
		Help:      "Estimated execution cycles of a codegen'd block.",
		Buckets:   prometheus.ExponentialBuckets(4, 2, 12),
	})

	// NPTTranslations counts nested-page-table translations.
	NPTTranslations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hvcore",
		Subsystem: "npt",
		Name:      "translations_total",
		Help:      "Nested-page-table translations, labeled by result.",
	}, []string{"result"})

	// VMEntries counts VM-entry attempts labeled by structure kind and outcome.
	VMEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hvcore",
		Subsystem: "vcpu",
		Name:      "entries_total",
		Help:      "VM entries, labeled by structure kind (vmcs, vmcb) and outcome.",
	}, []string{"kind", "outcome"})

	// VMExits counts VM exits labeled by exit reason.
	VMExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hvcore",
		Subsystem: "vcpu",
		Name:      "exits_total",
		Help:      "VM exits, labeled by exit reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(CompileTotal, EstimatedCycles, NPTTranslations, VMEntries, VMExits)
}
