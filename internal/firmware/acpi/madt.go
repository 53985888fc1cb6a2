// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package acpi

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"

const (
	madtLAPICEnabled = 1 << 0

	madtEntryLAPIC      = 0
	madtEntryIOAPIC     = 1
	madtEntryIRQOverride = 2
	madtEntryLAPICNMI   = 4
)

// lapicEntry builds a type-0 Processor Local APIC entry with the enabled
// flag set, per spec.md §4.5.
func lapicEntry(processorID, apicID uint8) []byte {
	return []byte{madtEntryLAPIC, 8, processorID, apicID,
		byte(madtLAPICEnabled), 0, 0, 0}
}

// ioapicEntry builds a single type-1 IO APIC entry.
func ioapicEntry(id uint8, address, gsiBase uint32) []byte {
	b := []byte{madtEntryIOAPIC, 12, id, 0}
	b = append(b, firmware.LE32(address)...)
	b = append(b, firmware.LE32(gsiBase)...)
	return b
}

// irqOverride builds a type-2 Interrupt Source Override entry. flags bit
// 1-0 = polarity, bit 3-2 = trigger mode; level/active-low is encoded as
// 0b1111 (polarity=active-low, trigger=level) matching spec.md §4.5's IRQ0
// -> GSI2 and IRQ9 -> GSI9 overrides.
func irqOverride(bus, irq uint8, gsi uint32, flags uint16) []byte {
	b := []byte{madtEntryIRQOverride, 10, bus, irq}
	b = append(b, firmware.LE32(gsi)...)
	b = append(b, firmware.LE16(flags)...)
	return b
}

// lapicNMI builds a type-4 Local APIC NMI entry wired to LINT1 for every
// processor (processorID = 0xFF).
func lapicNMI(processorID uint8, flags uint16, lint uint8) []byte {
	b := []byte{madtEntryLAPICNMI, 6, processorID}
	b = append(b, firmware.LE16(flags)...)
	b = append(b, lint)
	return b
}

// levelActiveLowFlags is the MPS INTI flags value for a level-triggered,
// active-low override (ISA IRQ0/IRQ9 -> APIC GSI overrides commonly need
// this polarity/trigger combination).
const levelActiveLowFlags uint16 = 0x000F

// buildMADT assembles the Multiple APIC Description Table: one Local
// APIC entry per vCPU, a single IO APIC entry, the IRQ0->GSI2 and
// IRQ9->GSI9 overrides, and a Local APIC NMI on LINT1 for every
// processor, per spec.md §4.5.
func buildMADT(cfg Config, vcpuCount int) []byte {
	var entries []byte
	for i := 0; i < vcpuCount; i++ {
		entries = append(entries, lapicEntry(uint8(i), uint8(i))...)
	}
	entries = append(entries, ioapicEntry(cfg.IOAPIC.ID, cfg.IOAPIC.Address, cfg.IOAPIC.GSIBase)...)
	entries = append(entries, irqOverride(0, 0, 2, levelActiveLowFlags)...)
	entries = append(entries, irqOverride(0, 9, 9, levelActiveLowFlags)...)
	entries = append(entries, lapicNMI(0xFF, 0, 1)...)

	length := uint32(36 + 8 + len(entries))
	buf := header("APIC", length, 4, cfg.Board.OEM)
	buf = append(buf, firmware.LE32(cfg.LAPICBase)...)
	buf = append(buf, firmware.LE32(0)...) // Flags: PCAT_COMPAT not set
	buf = append(buf, entries...)
	return finalize(buf)
}
