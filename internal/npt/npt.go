// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package npt implements the nested-page-table translation map described
// in spec.md §4.4.2: guest-physical to host-physical page translation with
// an identity-mapping default, protected by a single RWMutex (spec.md §5).
package npt

import (
	"sync"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/metrics"
)

var nptLogger = logrus.WithField("source", "hvcore/npt")

// SetLogger redirects npt package logs into logger's field set.
func SetLogger(logger *logrus.Entry) {
	nptLogger = logger.WithFields(logrus.Fields{})
}

// PageSize is the nested-page-table page granularity (spec.md §4.4.2).
const PageSize = 0x1000
const pageMask = PageSize - 1

// MemoryType enumerates the NPT entry's caching attribute.
type MemoryType int

const (
	MemoryWriteBack MemoryType = iota
	MemoryUncacheable
	MemoryWriteCombining
	MemoryWriteThrough
	MemoryWriteProtected
)

// Entry is one nested-page-table entry (spec.md §3).
type Entry struct {
	HPA       uint64
	Present   bool
	Writable  bool
	User      bool
	NoExecute bool
	LargePage bool
	Accessed  bool
	Dirty     bool
	MemType   MemoryType
}

// Fault is returned by Translate when a write targets a read-only mapping
// (spec.md §4.4.2). Callers typically reflect this as a VM exit.
type Fault struct {
	GPA       uint64
	ErrorCode uint32
}

func (f *Fault) Error() string {
	return "npt: page fault"
}

// Error code bits mirrored from the x86 page-fault convention, set on Fault
// by Translate.
const (
	ErrorCodeWrite   uint32 = 1 << 1
	ErrorCodePresent uint32 = 1 << 0
)

// Stats is the small statistics record from spec.md §4.4.2, updated on
// every Translate call and also mirrored into Prometheus counters.
type Stats struct {
	Translations    uint64
	Faults          uint64
	Misconfigurations uint64
}

// Map is the nested-page-table state for one vCPU (or a shared guest
// address space): a hash map from GPA page to Entry, guarded by a single
// RWMutex so translate (reader) may run concurrently with other
// translations while map/unmap/invalidate-all (writers) are exclusive
// (spec.md §5).
type Map struct {
	mu      sync.RWMutex
	entries map[uint64]Entry
	stats   Stats
}

// New returns an empty nested-page-table map. With no mappings, every GPA
// translates to itself (identity mapping), per spec.md §4.4.2 / §9.
func New() *Map {
	return &Map{entries: make(map[uint64]Entry)}
}

// Translate implements translate(gpa) from spec.md §4.4.2: splits gpa into
// (page, offset), looks up page, and either returns hpa|offset, raises a
// Fault on a write to a non-writable present entry, or falls back to
// identity mapping when no entry exists.
func (m *Map) Translate(gpa uint64, isWrite bool) (uint64, error) {
	page := gpa &^ pageMask
	offset := gpa & pageMask

	m.mu.RLock()
	entry, ok := m.entries[page]
	m.mu.RUnlock()

	m.mu.Lock()
	m.stats.Translations++
	m.mu.Unlock()

	if !ok {
		metrics.NPTTranslations.WithLabelValues("identity").Inc()
		return gpa, nil
	}
	if !entry.Present {
		m.recordFault()
		metrics.NPTTranslations.WithLabelValues("fault").Inc()
		return 0, &Fault{GPA: gpa, ErrorCode: 0}
	}
	if isWrite && !entry.Writable {
		m.recordFault()
		metrics.NPTTranslations.WithLabelValues("fault").Inc()
		return 0, &Fault{GPA: gpa, ErrorCode: ErrorCodeWrite | ErrorCodePresent}
	}

	metrics.NPTTranslations.WithLabelValues("mapped").Inc()
	return entry.HPA | offset, nil
}

func (m *Map) recordFault() {
	m.mu.Lock()
	m.stats.Faults++
	m.mu.Unlock()
}

// MapPage installs (or replaces) the mapping for the page containing gpa to
// hpa with the given entry attributes. hpa must be page-aligned; a
// misaligned hpa is a programming error recorded as a misconfiguration and
// silently page-aligned down, matching spec.md §9's "invariant violations
// are programming errors" stance without panicking the core.
func (m *Map) MapPage(gpa, hpa uint64, writable, user, noExecute bool) {
	page := gpa &^ pageMask
	if hpa&pageMask != 0 {
		m.mu.Lock()
		m.stats.Misconfigurations++
		m.mu.Unlock()
		hpa &^= pageMask
	}
	m.mu.Lock()
	m.entries[page] = Entry{HPA: hpa, Present: true, Writable: writable, User: user, NoExecute: noExecute}
	count := len(m.entries)
	m.mu.Unlock()
	nptLogger.WithField("gpa", page).WithField("hpa", hpa).
		WithField("mapped_total", units.BytesSize(float64(count*PageSize))).
		Trace("npt mapping installed")
}

// Unmap removes the mapping for the page containing gpa, reverting it to
// the identity-mapping default.
func (m *Map) Unmap(gpa uint64) {
	page := gpa &^ pageMask
	m.mu.Lock()
	delete(m.entries, page)
	m.mu.Unlock()
}

// InvalidateAll clears every mapping.
func (m *Map) InvalidateAll() {
	m.mu.Lock()
	m.entries = make(map[uint64]Entry)
	m.mu.Unlock()
}

// Stats returns a copy of the current statistics record.
func (m *Map) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
