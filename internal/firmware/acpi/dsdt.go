// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package acpi

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"

// Minimal AML opcode constants, just enough to encode the fixed DSDT
// body spec.md §4.5 describes (a \_SB scope with CPU devices, a PCI
// root, a power button, and an _S5 sleep package).
const (
	amlNameOp      = 0x08
	amlScopeOp     = 0x10
	amlPackageOp   = 0x12
	amlStringOp    = 0x0D
	amlBytePrefix  = 0x0A
	amlExtOpPrefix = 0x5B
	amlDeviceOp    = 0x82
	amlRootChar    = 0x5C
)

// amlPkgLength encodes an AML PkgLength field covering contentLen bytes
// of payload that follow it.
func amlPkgLength(contentLen int) []byte {
	if contentLen+1 <= 0x3F {
		return []byte{byte(contentLen + 1)}
	}
	if contentLen+2 <= 0xFFF {
		total := contentLen + 2
		return []byte{byte(0x40 | (total & 0x0F)), byte(total >> 4)}
	}
	if contentLen+3 <= 0xFFFFF {
		total := contentLen + 3
		return []byte{byte(0x80 | (total & 0x0F)), byte(total >> 4), byte(total >> 12)}
	}
	total := contentLen + 4
	return []byte{byte(0xC0 | (total & 0x0F)), byte(total >> 4), byte(total >> 12), byte(total >> 20)}
}

// amlNameSeg pads name to exactly 4 ASCII characters, the fixed AML
// NameSeg width.
func amlNameSeg(name string) []byte {
	seg := []byte(name)
	for len(seg) < 4 {
		seg = append(seg, '_')
	}
	return seg[:4]
}

// amlRootName encodes a root-scoped single-segment name, e.g. \_SB.
func amlRootName(name string) []byte {
	return append([]byte{amlRootChar}, amlNameSeg(name)...)
}

// amlString encodes a null-terminated AML string object.
func amlString(s string) []byte {
	b := []byte{amlStringOp}
	b = append(b, []byte(s)...)
	b = append(b, 0)
	return b
}

// amlNameHID defines Name(_HID, "value") inside the enclosing device.
func amlNameHID(hid string) []byte {
	b := []byte{amlNameOp}
	b = append(b, amlNameSeg("_HID")...)
	b = append(b, amlString(hid)...)
	return b
}

// amlDevice wraps body in a Device(name) term.
func amlDevice(name string, body []byte) []byte {
	inner := append(amlNameSeg(name), body...)
	pkg := append(amlPkgLength(len(inner)), inner...)
	return append([]byte{amlExtOpPrefix, amlDeviceOp}, pkg...)
}

// amlScope wraps body in a Scope(name) term.
func amlScope(name []byte, body []byte) []byte {
	inner := append(append([]byte{}, name...), body...)
	pkg := append(amlPkgLength(len(inner)), inner...)
	return append([]byte{amlScopeOp}, pkg...)
}

// amlS5Package encodes Name(_S5, Package(){0,0,0,0}), the sleep-state
// package spec.md §4.5 requires.
func amlS5Package() []byte {
	elems := []byte{amlBytePrefix, 0, amlBytePrefix, 0, amlBytePrefix, 0, amlBytePrefix, 0}
	body := append([]byte{4}, elems...) // NumElements = 4
	pkg := append(amlPkgLength(len(body)), body...)
	pkgTerm := append([]byte{amlPackageOp}, pkg...)
	name := append([]byte{amlNameOp}, amlNameSeg("_S5")...)
	return append(name, pkgTerm...)
}

// buildDSDT assembles the AML byte stream described in spec.md §4.5: a
// \_SB scope containing one CPU device (HID ACPI0007), a PCI root (HID
// PNP0A03), a power button (HID PNP0C0C), plus the top-level _S5
// package. This is a minimal, self-consistent AML encoding sufficient to
// exercise the header/checksum contract; it is not a full ACPI Source
// Language compiler.
func buildDSDT(oem firmware.OEMInfo) []byte {
	cpu0 := amlDevice("CPU0", amlNameHID("ACPI0007"))
	pci0 := amlDevice("PCI0", amlNameHID("PNP0A03"))
	pwrb := amlDevice("PWRB", amlNameHID("PNP0C0C"))

	sbBody := append(append(cpu0, pci0...), pwrb...)
	sbScope := amlScope(amlRootName("_SB"), sbBody)

	aml := append(sbScope, amlS5Package()...)

	length := uint32(36 + len(aml))
	buf := header("DSDT", length, 2, oem)
	buf = append(buf, aml...)
	return finalize(buf)
}
