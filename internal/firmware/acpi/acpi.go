// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package acpi generates the byte-exact ACPI table set from spec.md §4.5:
// RSDP, RSDT/XSDT, FADT, DSDT, MADT, MCFG, HPET, and FACS, written to
// fixed guest-physical addresses via internal/firmware.GuestMemory.
package acpi

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"
)

var acpiLogger = logrus.WithField("source", "hvcore/firmware/acpi")

// SetLogger redirects acpi package logs into logger's field set.
func SetLogger(logger *logrus.Entry) {
	acpiLogger = logger.WithFields(logrus.Fields{})
}

// Addresses holds the guest-physical addresses of every generated table.
// Defaults place ACPI in the 0xE0000-0xEFFFF window, resolving spec.md
// §9's address-collision open question (SPEC_FULL.md §6): SMBIOS keeps
// the 0xF0000 window spec.md §6 lists unchanged.
type Addresses struct {
	RSDP uint64
	RSDT uint64
	XSDT uint64
	FADT uint64
	DSDT uint64
	MADT uint64
	MCFG uint64
	HPET uint64
	FACS uint64
}

// DefaultAddresses returns the resolved 0xE0000-window layout.
func DefaultAddresses() Addresses {
	return Addresses{
		RSDP: 0x000E0000,
		RSDT: 0x000E0030,
		XSDT: 0x000E0100,
		FADT: 0x000E0200,
		DSDT: 0x000E0400,
		MADT: 0x000E2000,
		MCFG: 0x000E3000,
		HPET: 0x000E3100,
		FACS: 0x000E3200,
	}
}

// IOAPIC describes the single IO-APIC entry emitted into MADT.
type IOAPIC struct {
	ID      uint8
	Address uint32
	GSIBase uint32
}

// DefaultIOAPIC mirrors the conventional PC IO-APIC placement.
func DefaultIOAPIC() IOAPIC {
	return IOAPIC{ID: 0, Address: 0xFEC00000, GSIBase: 0}
}

// Config parameterizes table generation beyond the board-wide
// firmware.BoardConfig: the vCPU count backing MADT's per-vCPU Local
// APIC entries and the ECAM base MCFG describes.
type Config struct {
	Board     firmware.BoardConfig
	Addrs     Addresses
	IOAPIC    IOAPIC
	LAPICBase uint32
	ECAMBase  uint64
}

// DefaultConfig returns a Config usable without an external board file.
func DefaultConfig() Config {
	return Config{
		Board:     firmware.DefaultBoardConfig(),
		Addrs:     DefaultAddresses(),
		IOAPIC:    DefaultIOAPIC(),
		LAPICBase: 0xFEE00000,
		ECAMBase:  0xB0000000,
	}
}

// header builds the common 36-byte ACPI table header (signature, length,
// revision, checksum placeholder, OEM fields) with the checksum left
// zero; callers append the checksum after the full table body is known.
func header(sig string, length uint32, revision uint8, oem firmware.OEMInfo) []byte {
	var b []byte
	b = append(b, []byte(sig)...)
	b = append(b, firmware.LE32(length)...)
	b = append(b, revision, 0) // checksum placeholder
	b = append(b, oem.OEMID[:]...)
	b = append(b, oem.OEMTableID[:]...)
	b = append(b, firmware.LE32(oem.OEMRevision)...)
	b = append(b, oem.CreatorID[:]...)
	b = append(b, firmware.LE32(oem.CreatorRevision)...)
	return b
}

const checksumOffset = 9

// finalize sets buf's checksum byte (offset 9, per the header layout
// above) so the additive-inverse-mod-256 checksum law holds (spec.md
// §4.5).
func finalize(buf []byte) []byte {
	buf[checksumOffset] = 0
	buf[checksumOffset] = firmware.ChecksumACPI(buf)
	return buf
}

// Generate writes the full ACPI table set into mem using cfg, per
// spec.md §4.5's generate(guest_memory) contract. vcpuCount controls how
// many Local APIC entries MADT carries.
func Generate(mem *firmware.GuestMemory, cfg Config, vcpuCount int) error {
	acpiLogger.WithField("vcpus", vcpuCount).Debug("generating acpi tables")

	if err := firmware.ValidateBoardConfig(cfg.Board); err != nil {
		return errors.Wrap(err, "invalid board config")
	}

	dsdt := buildDSDT(cfg.Board.OEM)
	if err := mem.Write(cfg.Addrs.DSDT, dsdt); err != nil {
		return errors.Wrap(err, "write dsdt")
	}

	facs := buildFACS()
	if err := mem.Write(cfg.Addrs.FACS, facs); err != nil {
		return errors.Wrap(err, "write facs")
	}

	fadt := buildFADT(cfg, uint32(cfg.Addrs.DSDT), uint32(cfg.Addrs.FACS))
	if err := mem.Write(cfg.Addrs.FADT, fadt); err != nil {
		return errors.Wrap(err, "write fadt")
	}

	madt := buildMADT(cfg, vcpuCount)
	if err := mem.Write(cfg.Addrs.MADT, madt); err != nil {
		return errors.Wrap(err, "write madt")
	}

	mcfg := buildMCFG(cfg)
	if err := mem.Write(cfg.Addrs.MCFG, mcfg); err != nil {
		return errors.Wrap(err, "write mcfg")
	}

	hpet := buildHPET(cfg)
	if err := mem.Write(cfg.Addrs.HPET, hpet); err != nil {
		return errors.Wrap(err, "write hpet")
	}

	tableAddrs := []uint64{cfg.Addrs.FADT, cfg.Addrs.MADT, cfg.Addrs.MCFG, cfg.Addrs.HPET}

	rsdt := buildRSDT(cfg.Board.OEM, tableAddrs)
	if err := mem.Write(cfg.Addrs.RSDT, rsdt); err != nil {
		return errors.Wrap(err, "write rsdt")
	}

	xsdt := buildXSDT(cfg.Board.OEM, tableAddrs)
	if err := mem.Write(cfg.Addrs.XSDT, xsdt); err != nil {
		return errors.Wrap(err, "write xsdt")
	}

	rsdp := buildRSDP(cfg.Addrs)
	if err := mem.Write(cfg.Addrs.RSDP, rsdp); err != nil {
		return errors.Wrap(err, "write rsdp")
	}

	return nil
}

// acpiMagicCookie is the little-endian RSDP->tables magic from spec.md §6.
// The real ACPI 2.0 RSDP layout has no field reserved for a value like
// this; its only genuinely free bytes are the 3-byte Reserved region at
// offset 33, so only the cookie's low 3 bytes are carried there. A
// consumer that wants the full 4-byte value back has to already know
// which 3 bytes this generator kept.
const acpiMagicCookie uint32 = 0x53438263

// buildRSDP assembles the 36-byte revision-2 RSDP: 20-byte primary region
// (its own checksum) plus the revision-2 extension (its own, separate
// checksum over all 36 bytes), per spec.md §4.5.
func buildRSDP(addrs Addresses) []byte {
	buf := make([]byte, 36)
	copy(buf[0:8], "RSD PTR ")
	// buf[8] = checksum (primary, bytes 0-19), set below.
	copy(buf[9:15], []byte{'H', 'V', 'C', 'R', ' ', ' '})
	buf[15] = 2 // ACPI revision 2
	copy(buf[16:20], firmware.LE32(uint32(addrs.RSDT)))
	copy(buf[20:24], firmware.LE32(36))
	copy(buf[24:32], firmware.LE64(addrs.XSDT))
	// buf[32] = extended checksum, set below.
	copy(buf[33:36], firmware.LE32(acpiMagicCookie)[0:3]) // Reserved: low 3 bytes of the magic cookie

	buf[8] = 0
	buf[8] = firmware.ChecksumRange(buf, 0, 20)
	buf[32] = 0
	buf[32] = firmware.ChecksumRange(buf, 0, 36)
	return buf
}

// buildRSDT builds the 32-bit-pointer root table.
func buildRSDT(oem firmware.OEMInfo, tableAddrs []uint64) []byte {
	length := uint32(36 + 4*len(tableAddrs))
	buf := header("RSDT", length, 1, oem)
	for _, a := range tableAddrs {
		buf = append(buf, firmware.LE32(uint32(a))...)
	}
	return finalize(buf)
}

// buildXSDT builds the 64-bit-pointer root table.
func buildXSDT(oem firmware.OEMInfo, tableAddrs []uint64) []byte {
	length := uint32(36 + 8*len(tableAddrs))
	buf := header("XSDT", length, 1, oem)
	for _, a := range tableAddrs {
		buf = append(buf, firmware.LE64(a)...)
	}
	return finalize(buf)
}
