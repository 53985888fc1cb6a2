// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package codegen

// This file holds the minimal x86_64 instruction byte encoder needed by
// emit.go. It covers exactly the instruction shapes the rest of codegen
// emits; it is not a general assembler.

func rex(w, r, x, b bool) byte {
	rex := byte(0x40)
	if w {
		rex |= 0x08
	}
	if r {
		rex |= 0x04
	}
	if x {
		rex |= 0x02
	}
	if b {
		rex |= 0x01
	}
	return rex
}

func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 0x7) << 3) | (rm & 0x7)
}

func regBit(r HostReg) byte { return byte(r) & 0x7 }
func regExt(r HostReg) bool { return int(r) >= 8 }

func le32Bytes(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func le64Bytes(v int64) []byte {
	u := uint64(v)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * uint(i)))
	}
	return b
}

// movRegImm64 emits `movabs dst, imm64`.
func movRegImm64(dst HostReg, imm int64) []byte {
	out := []byte{rex(true, false, false, regExt(dst)), 0xB8 + regBit(dst)}
	out = append(out, le64Bytes(imm)...)
	return out
}

// movRegReg emits `mov dst, src` (64-bit).
func movRegReg(dst, src HostReg) []byte {
	return []byte{rex(true, regExt(src), false, regExt(dst)), 0x89, modrm(3, regBit(src), regBit(dst))}
}

// aluRegImm8 emits a REX.W group-1 ALU op (`op dst, imm8`) where opExt is
// the ModRM /digit selecting the operation (0=add,1=or,4=and,5=sub,6=xor,
// 7=cmp).
func aluRegImm8(opExt byte, dst HostReg, imm8 int8) []byte {
	return []byte{rex(true, false, false, regExt(dst)), 0x83, modrm(3, opExt, regBit(dst)), byte(imm8)}
}

// aluRegReg emits a REX.W two-operand ALU op (`op dst, src`) where opcode is
// the two-byte-encoded r/m,r opcode (e.g. 0x01=add, 0x29=sub, 0x31=xor).
func aluRegReg(opcode byte, dst, src HostReg) []byte {
	return []byte{rex(true, regExt(src), false, regExt(dst)), opcode, modrm(3, regBit(src), regBit(dst))}
}

// shiftRegImm8 emits `op dst, imm8` for shl(/4)/shr(/5)/sar(/7).
func shiftRegImm8(opExt byte, dst HostReg, imm8 uint8) []byte {
	return []byte{rex(true, false, false, regExt(dst)), 0xC1, modrm(3, opExt, regBit(dst)), imm8}
}

// loadMem emits `mov dst, [base+disp32]` at the given width (1/2/4/8 bytes).
func loadMem(width int, dst, base HostReg, disp int32) []byte {
	var out []byte
	switch width {
	case 1:
		out = []byte{rex(false, regExt(dst), false, regExt(base)), 0x8A}
	case 2:
		out = []byte{0x66, rex(false, regExt(dst), false, regExt(base)), 0x8B}
	case 4:
		out = []byte{rex(false, regExt(dst), false, regExt(base)), 0x8B}
	default:
		out = []byte{rex(true, regExt(dst), false, regExt(base)), 0x8B}
	}
	out = append(out, modrm(2, regBit(dst), regBit(base)))
	if regBit(base) == 4 {
		out = append(out, 0x24) // SIB: no index, base rsp/r12
	}
	out = append(out, le32Bytes(disp)...)
	return out
}

// storeMem emits `mov [base+disp32], src` at the given width.
func storeMem(width int, base, src HostReg, disp int32) []byte {
	var out []byte
	switch width {
	case 1:
		out = []byte{rex(false, regExt(src), false, regExt(base)), 0x88}
	case 2:
		out = []byte{0x66, rex(false, regExt(src), false, regExt(base)), 0x89}
	case 4:
		out = []byte{rex(false, regExt(src), false, regExt(base)), 0x89}
	default:
		out = []byte{rex(true, regExt(src), false, regExt(base)), 0x89}
	}
	out = append(out, modrm(2, regBit(src), regBit(base)))
	if regBit(base) == 4 {
		out = append(out, 0x24) // SIB: no index, base rsp/r12
	}
	out = append(out, le32Bytes(disp)...)
	return out
}

func pushReg(r HostReg) []byte {
	if regExt(r) {
		return []byte{rex(false, false, false, true), 0x50 + regBit(r)}
	}
	return []byte{0x50 + regBit(r)}
}

func popReg(r HostReg) []byte {
	if regExt(r) {
		return []byte{rex(false, false, false, true), 0x58 + regBit(r)}
	}
	return []byte{0x58 + regBit(r)}
}

func ret() []byte { return []byte{0xC3} }
func nopByte() []byte { return []byte{0x90} }

// orRegImm64 emits a 64-bit `or dst, imm64` by materializing imm64 into
// ScratchReg first (there is no single-instruction or-reg-imm64 form).
func orRegImm64(dst HostReg, imm64 int64) []byte {
	out := movRegImm64(ScratchReg, imm64)
	out = append(out, aluRegReg(0x09, dst, ScratchReg)...)
	return out
}
