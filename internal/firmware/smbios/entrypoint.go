// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package smbios

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"

// build2xEntryPoint assembles the 31-byte SMBIOS 2.1 entry point: two
// independent checksums, one over bytes 0-15 (the anchor-string region)
// and one over bytes 16-30 (the intermediate-anchor region), each
// ignoring its own slot, per spec.md §4.5.
func build2xEntryPoint(tableLength int, tableAddr uint64, numStructures uint16) []byte {
	buf := make([]byte, 31)
	copy(buf[0:4], "_SM_")
	// buf[4] = checksum over [0:16), set below.
	buf[5] = 31 // Entry Point Length
	buf[6] = 2  // SMBIOS major version
	buf[7] = 8  // SMBIOS minor version
	copy(buf[8:10], firmware.LE16(0xFF)) // Max structure size placeholder
	buf[10] = 0                          // Entry point revision
	// buf[11:16] formatted area, left zero.
	copy(buf[16:21], "_DMI_")
	// buf[21] = checksum over [16:31), set below.
	copy(buf[22:24], firmware.LE16(uint16(tableLength)))
	copy(buf[24:28], firmware.LE32(uint32(tableAddr)))
	copy(buf[28:30], firmware.LE16(numStructures))
	buf[30] = 0x28 // BCD revision 2.8

	buf[4] = 0
	buf[4] = firmware.ChecksumRange(buf, 0, 16)
	buf[21] = 0
	buf[21] = firmware.ChecksumRange(buf, 16, 31)
	return buf
}

// build3xEntryPoint assembles the 24-byte SMBIOS 3.x entry point: a
// single checksum covering the full entry point, per spec.md §4.5.
func build3xEntryPoint(tableLength int, tableAddr uint64) []byte {
	buf := make([]byte, 24)
	copy(buf[0:5], "_SM3_")
	// buf[5] = checksum, set below.
	buf[6] = 24 // Entry Point Length
	buf[7] = 3  // SMBIOS major version
	buf[8] = 3  // SMBIOS minor version
	buf[9] = 0  // Docrev
	buf[10] = 1 // Entry point revision
	buf[11] = 0 // Reserved
	copy(buf[12:16], firmware.LE32(uint32(tableLength)))
	copy(buf[16:24], firmware.LE64(tableAddr))

	buf[5] = 0
	buf[5] = firmware.ChecksumRange(buf, 0, 24)
	return buf
}
