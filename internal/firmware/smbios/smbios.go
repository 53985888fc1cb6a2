// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package smbios generates the byte-exact SMBIOS table set from spec.md
// §4.5: the 2.x and 3.x entry points plus structure types 0, 1, 2, 3, 4,
// 16, 17, 32, and 127, written to fixed guest-physical addresses via
// internal/firmware.GuestMemory.
package smbios

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"
)

var smbiosLogger = logrus.WithField("source", "hvcore/firmware/smbios")

// SetLogger redirects smbios package logs into logger's field set.
func SetLogger(logger *logrus.Entry) {
	smbiosLogger = logger.WithFields(logrus.Fields{})
}

// Addresses holds the guest-physical addresses of the SMBIOS entry
// points and the structure table, per spec.md §6.
type Addresses struct {
	Entry2x uint64
	Entry3x uint64
	Tables  uint64
}

// DefaultAddresses returns the spec.md §6 addresses unchanged.
func DefaultAddresses() Addresses {
	return Addresses{
		Entry2x: 0x000F0000,
		Entry3x: 0x000F0020,
		Tables:  0x000F1000,
	}
}

// Config parameterizes table generation.
type Config struct {
	Board firmware.BoardConfig
	Addrs Addresses
}

// DefaultConfig returns a Config usable without an external board file.
func DefaultConfig() Config {
	return Config{Board: firmware.DefaultBoardConfig(), Addrs: DefaultAddresses()}
}

// Generate writes the SMBIOS structure table plus both entry points into
// mem, per spec.md §4.5's generate(guest_memory) contract. vcpuCount
// controls how many type-4 Processor structures are emitted; memSlots
// controls how many type-17 Memory Device structures are emitted.
func Generate(mem *firmware.GuestMemory, cfg Config, vcpuCount, memSlots int) error {
	smbiosLogger.WithField("vcpus", vcpuCount).WithField("mem_slots", memSlots).Debug("generating smbios tables")

	if err := firmware.ValidateBoardConfig(cfg.Board); err != nil {
		return errors.Wrap(err, "invalid board config")
	}

	b := newBuilder()
	b.add(buildType0(cfg.Board, b.allocHandle()))
	b.add(buildType1(cfg.Board, b.allocHandle()))
	baseboardHandle := b.allocHandle()
	chassisHandle := b.allocHandle()
	b.add(buildType2(cfg.Board, baseboardHandle, chassisHandle))
	b.add(buildType3(cfg.Board, chassisHandle))
	for i := 0; i < vcpuCount; i++ {
		b.add(buildType4(cfg.Board, i, b.allocHandle()))
	}
	arrayHandle := b.allocHandle()
	b.add(buildType16(memSlots, arrayHandle))
	for i := 0; i < memSlots; i++ {
		b.add(buildType17(i, arrayHandle, b.allocHandle()))
	}
	b.add(buildType32(b.allocHandle()))
	b.add(buildType127(b.allocHandle()))

	tableBytes := b.bytes()
	if err := mem.Write(cfg.Addrs.Tables, tableBytes); err != nil {
		return errors.Wrap(err, "write smbios tables")
	}

	ep2 := build2xEntryPoint(len(tableBytes), cfg.Addrs.Tables, b.count)
	if err := mem.Write(cfg.Addrs.Entry2x, ep2); err != nil {
		return errors.Wrap(err, "write smbios 2.x entry point")
	}

	ep3 := build3xEntryPoint(len(tableBytes), cfg.Addrs.Tables)
	if err := mem.Write(cfg.Addrs.Entry3x, ep3); err != nil {
		return errors.Wrap(err, "write smbios 3.x entry point")
	}

	return nil
}

// builder accumulates formatted structures into the single contiguous
// structure table SMBIOS requires.
type builder struct {
	buf   []byte
	count uint16
	next  uint16
}

func newBuilder() *builder { return &builder{} }

func (b *builder) add(s []byte) {
	b.buf = append(b.buf, s...)
	b.count++
}

func (b *builder) bytes() []byte { return b.buf }

// allocHandle returns the next unique structure handle.
func (b *builder) allocHandle() uint16 {
	h := b.next
	b.next++
	return h
}

// structHeader encodes the 4-byte SMBIOS structure header.
func structHeader(typ byte, length byte, handle uint16) []byte {
	return append([]byte{typ, length}, firmware.LE16(handle)...)
}

// stringPool appends strs as a sequence of NUL-terminated strings
// followed by the mandatory double-NUL terminator (spec.md §4.5). Empty
// strings are skipped; structures with no strings still get the
// double-NUL via the first NUL plus this terminator.
func stringPool(strs ...string) []byte {
	var out []byte
	any := false
	for _, s := range strs {
		if s == "" {
			continue
		}
		any = true
		out = append(out, []byte(s)...)
		out = append(out, 0)
	}
	if !any {
		out = append(out, 0)
	}
	out = append(out, 0)
	return out
}

// strRef returns the 1-based string-table index of s within strs, or 0
// ("no string") if s is empty.
func strRef(strs []string, s string) byte {
	if s == "" {
		return 0
	}
	for i, v := range strs {
		if v == s {
			return byte(i + 1)
		}
	}
	return 0
}
