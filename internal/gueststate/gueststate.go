// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package gueststate defines the fixed memory layout of the guest-state
// area that compiled JIT code (internal/codegen) reads and writes through
// the reserved guest-state-pointer host register, and that the
// virtualization control structures (internal/vmcontrol) unpack into before
// a VM entry and pack back from after a VM exit (spec.md §4.4.1's entry
// path contract).
package gueststate

// Area is the raw, fixed-offset guest register file shared by codegen and
// vmcontrol. Field order defines the byte layout; do not reorder without
// updating the Offset constants below.
type Area struct {
	GPR    [NumGPR]uint64
	RIP    uint64
	RFLAGS uint64
}

// NumGPR is the architectural GPR count (spec.md §3).
const NumGPR = 16

// Size is the byte size of Area.
const Size = (NumGPR + 2) * 8

// GPROffset returns the byte offset of GPR[i] within Area.
func GPROffset(i int) int32 { return int32(i * 8) }

// RIPOffset is the byte offset of the RIP field within Area.
const RIPOffset int32 = NumGPR * 8

// RFLAGSOffset is the byte offset of the RFLAGS field within Area.
const RFLAGSOffset int32 = NumGPR*8 + 8

// GPR index constants for the registers codegen/vmcontrol name explicitly.
const (
	RAX = 0
	RCX = 1
	RDX = 2
	RBX = 3
	RSP = 4
	RBP = 5
	RSI = 6
	RDI = 7
	R8  = 8
	R9  = 9
	R10 = 10
	R11 = 11
	R12 = 12
	R13 = 13
	R14 = 14
	R15 = 15
)
