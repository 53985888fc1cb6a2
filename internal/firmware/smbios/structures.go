// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package smbios

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"

// buildType0 assembles the BIOS Information structure.
func buildType0(board firmware.BoardConfig, handle uint16) []byte {
	strs := []string{board.BIOSVendor, board.BIOSVersion, "01/01/2024"}
	formatted := []byte{
		strRef(strs, board.BIOSVendor),
		strRef(strs, board.BIOSVersion),
		0, 0, // BIOS starting address segment
		strRef(strs, "01/01/2024"),
		0, // BIOS ROM size (64K * (n+1))
	}
	formatted = append(formatted, make([]byte, 8)...) // BIOS characteristics
	formatted = append(formatted, 0, 0)                // characteristics extension bytes
	formatted = append(formatted, 0, 0)                // system bios major/minor
	formatted = append(formatted, 0xFF, 0xFF)           // embedded controller major/minor (not applicable)

	body := append(structHeader(0, byte(4+len(formatted)), handle), formatted...)
	return append(body, stringPool(strs...)...)
}

func buildType1(board firmware.BoardConfig, handle uint16) []byte {
	strs := []string{board.SystemManufacturer, board.SystemProductName, "", "", ""}
	formatted := []byte{
		strRef(strs, board.SystemManufacturer),
		strRef(strs, board.SystemProductName),
		0, // Version
		0, // Serial Number
	}
	formatted = append(formatted, board.SystemUUID[:]...)
	formatted = append(formatted, 6) // Wake-up type: power switch
	formatted = append(formatted, 0) // SKU Number
	formatted = append(formatted, 0) // Family

	body := append(structHeader(1, byte(4+len(formatted)), handle), formatted...)
	return append(body, stringPool(board.SystemManufacturer, board.SystemProductName)...)
}

func buildType2(board firmware.BoardConfig, handle, chassisHandle uint16) []byte {
	strs := []string{board.BaseboardManufacturer, board.SystemProductName}
	formatted := []byte{
		strRef(strs, board.BaseboardManufacturer),
		strRef(strs, board.SystemProductName),
		0, // Version
		0, // Serial Number
		0, // Asset Tag
		0, // Feature Flags
		0, // Location in Chassis
	}
	formatted = append(formatted, firmware.LE16(chassisHandle)...)
	formatted = append(formatted, 0xA) // Board Type: Motherboard
	formatted = append(formatted, 0)   // Number of Contained Object Handles

	body := append(structHeader(2, byte(4+len(formatted)), handle), formatted...)
	return append(body, stringPool(strs...)...)
}

func buildType3(board firmware.BoardConfig, handle uint16) []byte {
	strs := []string{board.ChassisManufacturer}
	formatted := []byte{
		strRef(strs, board.ChassisManufacturer),
		0x03, // Type: Desktop
		0,    // Version
		0,    // Serial Number
		0,    // Asset Tag
		0x03, // Boot-up State: Safe
		0x03, // Power Supply State: Safe
		0x03, // Thermal State: Safe
		0x03, // Security Status: None
	}
	formatted = append(formatted, 0, 0, 0, 0) // OEM-defined
	formatted = append(formatted, 0)          // Height
	formatted = append(formatted, 0)          // Number of Power Cords
	formatted = append(formatted, 0)          // Contained Element Count
	formatted = append(formatted, 0)          // Contained Element Record Length

	body := append(structHeader(3, byte(4+len(formatted)), handle), formatted...)
	return append(body, stringPool(strs...)...)
}

// buildType4 assembles one Processor Information structure per vCPU,
// per spec.md §4.5.
func buildType4(board firmware.BoardConfig, index int, handle uint16) []byte {
	designation := vcpuDesignation(index)
	strs := []string{designation, "hvcore"}
	formatted := []byte{
		strRef(strs, designation),
		0x03, // Processor Type: Central Processor
		0xFE, // Processor Family: use Processor Family 2 field
		strRef(strs, "hvcore"),
	}
	formatted = append(formatted, make([]byte, 8)...) // Processor ID (CPUID leaf 1 eax/edx, unused)
	formatted = append(formatted, 0)                  // Processor Version (string index 0)
	formatted = append(formatted, 0)                  // Voltage
	formatted = append(formatted, firmware.LE16(0)...)    // External Clock: unknown
	formatted = append(formatted, firmware.LE16(3000)...) // Max Speed: 3000 MHz
	formatted = append(formatted, firmware.LE16(3000)...) // Current Speed
	formatted = append(formatted, 0x41)               // Status: CPU enabled, populated
	formatted = append(formatted, 0x02)               // Processor Upgrade: None
	formatted = append(formatted, firmware.LE16(0xFFFF)...) // L1 Cache Handle: not provided
	formatted = append(formatted, firmware.LE16(0xFFFF)...) // L2 Cache Handle
	formatted = append(formatted, firmware.LE16(0xFFFF)...) // L3 Cache Handle
	formatted = append(formatted, 0)                  // Serial Number
	formatted = append(formatted, 0)                  // Asset Tag
	formatted = append(formatted, 0)                  // Part Number
	formatted = append(formatted, 1)                  // Core Count
	formatted = append(formatted, 1)                  // Core Enabled
	formatted = append(formatted, 1)                  // Thread Count
	formatted = append(formatted, firmware.LE16(0x0004)...) // Processor Characteristics: 64-bit capable
	formatted = append(formatted, firmware.LE16(0x0003)...) // Processor Family 2: x86-64 family

	body := append(structHeader(4, byte(4+len(formatted)), handle), formatted...)
	return append(body, stringPool(strs...)...)
}

func vcpuDesignation(index int) string {
	digits := [10]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9'}
	if index < 10 {
		return "CPU" + string(digits[index])
	}
	return "CPUn"
}

// buildType16 assembles the Physical Memory Array structure shared by
// every type-17 Memory Device.
func buildType16(numDevices int, handle uint16) []byte {
	formatted := []byte{
		0x03, // Location: System board
		0x03, // Use: System memory
		0x03, // Memory Error Correction: None
	}
	formatted = append(formatted, firmware.LE32(0x80000000)...) // Maximum Capacity (KB), placeholder
	formatted = append(formatted, firmware.LE16(0xFFFE)...)      // Memory Error Information Handle: none
	formatted = append(formatted, firmware.LE16(uint16(numDevices))...)

	body := append(structHeader(16, byte(4+len(formatted)), handle), formatted...)
	return append(body, stringPool()...)
}

// buildType17 assembles one Memory Device structure per configured slot.
func buildType17(index int, arrayHandle, handle uint16) []byte {
	strs := []string{memDeviceLocator(index), board17Manufacturer}
	formatted := firmware.LE16(arrayHandle)
	formatted = append(formatted, firmware.LE16(0xFFFE)...) // Memory Error Information Handle: none
	formatted = append(formatted, firmware.LE16(64)...)     // Total Width
	formatted = append(formatted, firmware.LE16(64)...)     // Data Width
	formatted = append(formatted, firmware.LE16(0x4000)...) // Size: 16384 MB marker (bit15 clear => MB units)
	formatted = append(formatted, 0x09)                     // Form Factor: DIMM
	formatted = append(formatted, 0)                        // Device Set
	formatted = append(formatted, strRef(strs, memDeviceLocator(index)))
	formatted = append(formatted, 0) // Bank Locator
	formatted = append(formatted, 0x1A) // Memory Type: DDR4
	formatted = append(formatted, firmware.LE16(0x0080)...) // Type Detail: Synchronous
	formatted = append(formatted, firmware.LE16(2400)...)   // Speed (MT/s)
	formatted = append(formatted, strRef(strs, board17Manufacturer))
	formatted = append(formatted, 0) // Serial Number
	formatted = append(formatted, 0) // Asset Tag
	formatted = append(formatted, 0) // Part Number
	formatted = append(formatted, 0) // Attributes: rank unknown
	formatted = append(formatted, firmware.LE32(0)...) // Extended Size
	formatted = append(formatted, firmware.LE16(2400)...) // Configured Memory Speed

	body := append(structHeader(17, byte(4+len(formatted)), handle), formatted...)
	return append(body, stringPool(strs...)...)
}

const board17Manufacturer = "hvcore"

func memDeviceLocator(index int) string {
	digits := [10]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9'}
	if index < 10 {
		return "DIMM" + string(digits[index])
	}
	return "DIMMn"
}

// buildType32 assembles the System Boot Information structure: boot
// status "No errors".
func buildType32(handle uint16) []byte {
	formatted := make([]byte, 6) // Reserved
	formatted = append(formatted, 0) // Boot Status: No errors detected
	body := append(structHeader(32, byte(4+len(formatted)), handle), formatted...)
	return append(body, stringPool()...)
}

// buildType127 assembles the mandatory End-of-Table marker, which closes
// the structure table.
func buildType127(handle uint16) []byte {
	body := structHeader(127, 4, handle)
	return append(body, stringPool()...)
}
