// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package acpi

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"

// gasIOPort is the Generic Address Structure address-space-id for
// system I/O space, per the ACPI GAS encoding FADT's extended PM block
// fields use.
const gasIOPort = 1

// genericAddress encodes a 12-byte ACPI Generic Address Structure.
func genericAddress(spaceID, bitWidth, bitOffset, accessSize byte, address uint64) []byte {
	var b []byte
	b = append(b, spaceID, bitWidth, bitOffset, accessSize)
	b = append(b, firmware.LE64(address)...)
	return b
}

// buildFADT assembles a revision-6 FADT with extended (X_) Generic
// Address Structures for the PM1a/PM1b/PM2/PMTimer/GPE0/GPE1 blocks, per
// spec.md §4.5: iapc_boot_arch = 0x0003, flags = 0x000004A5.
func buildFADT(cfg Config, dsdtAddr, facsAddr uint32) []byte {
	const length = 276
	buf := header("FACP", length, 6, cfg.Board.OEM)

	buf = append(buf, firmware.LE32(facsAddr)...) // FIRMWARE_CTRL
	buf = append(buf, firmware.LE32(dsdtAddr)...) // DSDT

	buf = append(buf, 0)       // Reserved (was INT_MODEL)
	buf = append(buf, 0)       // Preferred_PM_Profile
	buf = append(buf, firmware.LE16(9)...)  // SCI_INT
	buf = append(buf, firmware.LE32(0xB2)...) // SMI_CMD
	buf = append(buf, 0xA0)    // ACPI_ENABLE
	buf = append(buf, 0xA1)    // ACPI_DISABLE
	buf = append(buf, 0)       // S4BIOS_REQ
	buf = append(buf, 0)       // PSTATE_CNT
	buf = append(buf, firmware.LE32(0x600)...) // PM1a_EVT_BLK
	buf = append(buf, firmware.LE32(0)...)     // PM1b_EVT_BLK
	buf = append(buf, firmware.LE32(0x604)...) // PM1a_CNT_BLK
	buf = append(buf, firmware.LE32(0)...)     // PM1b_CNT_BLK
	buf = append(buf, firmware.LE32(0)...)     // PM2_CNT_BLK
	buf = append(buf, firmware.LE32(0x608)...) // PM_TMR_BLK
	buf = append(buf, firmware.LE32(0)...)     // GPE0_BLK
	buf = append(buf, firmware.LE32(0)...)     // GPE1_BLK
	buf = append(buf, 4)       // PM1_EVT_LEN
	buf = append(buf, 2)       // PM1_CNT_LEN
	buf = append(buf, 0)       // PM2_CNT_LEN
	buf = append(buf, 4)       // PM_TMR_LEN
	buf = append(buf, 0)       // GPE0_BLK_LEN
	buf = append(buf, 0)       // GPE1_BLK_LEN
	buf = append(buf, 0)       // GPE1_BASE
	buf = append(buf, 0)       // CST_CNT
	buf = append(buf, firmware.LE16(0)...) // P_LVL2_LAT
	buf = append(buf, firmware.LE16(0)...) // P_LVL3_LAT
	buf = append(buf, firmware.LE16(0)...) // FLUSH_SIZE
	buf = append(buf, firmware.LE16(0)...) // FLUSH_STRIDE
	buf = append(buf, 0)       // DUTY_OFFSET
	buf = append(buf, 0)       // DUTY_WIDTH
	buf = append(buf, 0)       // DAY_ALRM
	buf = append(buf, 0)       // MON_ALRM
	buf = append(buf, 0)       // CENTURY
	buf = append(buf, firmware.LE16(0x0003)...) // IAPC_BOOT_ARCH
	buf = append(buf, 0)       // Reserved
	buf = append(buf, firmware.LE32(0x000004A5)...) // Flags

	buf = append(buf, genericAddress(0, 0, 0, 0, 0)...) // RESET_REG (not implemented)
	buf = append(buf, 0)       // RESET_VALUE
	buf = append(buf, firmware.LE16(0)...) // ARM_BOOT_ARCH
	buf = append(buf, 2)       // FADT_MINOR_VERSION

	buf = append(buf, firmware.LE64(uint64(facsAddr))...) // X_FIRMWARE_CTRL
	buf = append(buf, firmware.LE64(uint64(dsdtAddr))...) // X_DSDT

	buf = append(buf, genericAddress(gasIOPort, 32, 0, 0, 0x600)...) // X_PM1a_EVT_BLK
	buf = append(buf, genericAddress(0, 0, 0, 0, 0)...)              // X_PM1b_EVT_BLK
	buf = append(buf, genericAddress(gasIOPort, 16, 0, 0, 0x604)...) // X_PM1a_CNT_BLK
	buf = append(buf, genericAddress(0, 0, 0, 0, 0)...)              // X_PM1b_CNT_BLK
	buf = append(buf, genericAddress(0, 0, 0, 0, 0)...)              // X_PM2_CNT_BLK
	buf = append(buf, genericAddress(gasIOPort, 32, 0, 0, 0x608)...) // X_PM_TMR_BLK
	buf = append(buf, genericAddress(0, 0, 0, 0, 0)...)              // X_GPE0_BLK
	buf = append(buf, genericAddress(0, 0, 0, 0, 0)...)              // X_GPE1_BLK
	buf = append(buf, genericAddress(0, 0, 0, 0, 0)...)              // SLEEP_CONTROL_REG
	buf = append(buf, genericAddress(0, 0, 0, 0, 0)...)              // SLEEP_STATUS_REG
	buf = append(buf, firmware.LE64(0)...)                           // Hypervisor Vendor ID

	if len(buf) < length {
		buf = append(buf, make([]byte, length-len(buf))...)
	}
	return finalize(buf[:length])
}
