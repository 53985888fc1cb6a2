// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package acpi

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"

// buildMCFG assembles the single-segment PCIe Memory-mapped Configuration
// table: one ECAM entry covering buses 0-255, per spec.md §4.5.
func buildMCFG(cfg Config) []byte {
	length := uint32(36 + 8 + 16)
	buf := header("MCFG", length, 1, cfg.Board.OEM)
	buf = append(buf, firmware.LE64(0)...) // Reserved

	buf = append(buf, firmware.LE64(cfg.ECAMBase)...)
	buf = append(buf, firmware.LE16(0)...) // PCI Segment Group 0
	buf = append(buf, 0)                   // Start bus
	buf = append(buf, 255)                 // End bus
	buf = append(buf, firmware.LE32(0)...) // Reserved

	return finalize(buf)
}
