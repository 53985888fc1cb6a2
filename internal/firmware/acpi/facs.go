// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package acpi

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"

// buildFACS assembles the 64-byte Firmware ACPI Control Structure, per
// spec.md §4.5. Unlike every other table, FACS has no checksum field.
func buildFACS() []byte {
	buf := make([]byte, 64)
	copy(buf[0:4], "FACS")
	copy(buf[4:8], firmware.LE32(64))
	copy(buf[8:12], firmware.LE32(0))  // Hardware Signature
	copy(buf[12:16], firmware.LE32(0)) // Firmware Waking Vector
	copy(buf[16:20], firmware.LE32(0)) // Global Lock
	copy(buf[20:24], firmware.LE32(0)) // Flags
	copy(buf[24:32], firmware.LE64(0)) // X Firmware Waking Vector
	buf[32] = 2                        // Version
	return buf
}
