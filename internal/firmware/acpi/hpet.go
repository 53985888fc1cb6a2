// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package acpi

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"

// hpetEventTimerBlockID is the architecturally-defined capabilities value
// spec.md §4.5 requires: 0x8086A201.
const hpetEventTimerBlockID uint32 = 0x8086A201

// hpetMinClockTick is the minimum clock tick in periodic femtoseconds
// spec.md §4.5 requires: 0x37EE.
const hpetMinClockTick uint16 = 0x37EE

// hpetBaseAddress is the conventional HPET MMIO base.
const hpetBaseAddress uint64 = 0xFED00000

// buildHPET assembles the HPET description table: event timer block id
// 0x8086A201 and min clock tick 0x37EE, per spec.md §4.5.
func buildHPET(cfg Config) []byte {
	const length = 56
	buf := header("HPET", length, 1, cfg.Board.OEM)
	buf = append(buf, firmware.LE32(hpetEventTimerBlockID)...)
	buf = append(buf, genericAddress(0, 64, 0, 0, hpetBaseAddress)...)
	buf = append(buf, 0)                             // HPET number
	buf = append(buf, firmware.LE16(hpetMinClockTick)...)
	buf = append(buf, 0) // Page Protection and OEM Attribute

	if len(buf) < length {
		buf = append(buf, make([]byte, length-len(buf))...)
	}
	return finalize(buf[:length])
}
