// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package codegen

// ArgReg0 is the System V AMD64 register carrying the first argument (the
// guest-state pointer) on entry to compiled code.
const ArgReg0 = RDI

// emitPrologue pushes all callee-saved host registers in a fixed order,
// moves the guest-state pointer into GuestStateReg, and reserves
// spillAreaLen bytes on the stack (spec.md §4.3.3).
func emitPrologue(spillAreaLen int) []byte {
	var out []byte
	for _, r := range calleeSaved {
		out = append(out, pushReg(r)...)
	}
	if ArgReg0 != GuestStateReg {
		out = append(out, movRegReg(GuestStateReg, ArgReg0)...)
	}
	if spillAreaLen > 0 {
		out = append(out, subRSPImm32(int32(spillAreaLen))...)
	}
	return out
}

// emitEpilogue implements the exit path shared by every block terminator:
// restore the stack pointer, load the current guest RIP from the
// guest-state area into RAX, OR the exit kind into RAX's high byte if
// non-continue, pop callee-saved registers in reverse order, and return
// (spec.md §4.3.3). When payload is non-nil, the exit kind carries a
// kind-specific value (e.g. an interrupt vector) instead of the guest RIP;
// that value is always a compile-time constant (decoded directly from the
// instruction stream), so it is materialized with a single immediate move
// rather than loaded from guest state.
func emitEpilogue(spillAreaLen int, kind ExitKind, ripOffset int32, payload *int64) []byte {
	var out []byte
	if spillAreaLen > 0 {
		out = append(out, addRSPImm32(int32(spillAreaLen))...)
	}
	if payload != nil {
		out = append(out, movRegImm64(RAX, EncodeExit(kind, uint64(*payload)))...)
	} else {
		out = append(out, loadMem(8, RAX, GuestStateReg, ripOffset)...)
		if kind != ExitKindContinue {
			out = append(out, orRegImm64(RAX, int64(kind)<<56)...)
		}
	}
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		out = append(out, popReg(calleeSaved[i])...)
	}
	out = append(out, ret()...)
	return out
}

// subRSPImm32 emits `sub rsp, imm32`.
func subRSPImm32(imm int32) []byte {
	out := []byte{rex(true, false, false, false), 0x81, modrm(3, 5, regBit(RSP))}
	return append(out, le32Bytes(imm)...)
}

// addRSPImm32 emits `add rsp, imm32`.
func addRSPImm32(imm int32) []byte {
	out := []byte{rex(true, false, false, false), 0x81, modrm(3, 0, regBit(RSP))}
	return append(out, le32Bytes(imm)...)
}
