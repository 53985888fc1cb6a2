// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package decoder turns a guest byte stream at a given RIP into structured
// instruction records. It is pure: the tuple (bytes, rip) fully determines
// the result, and it never touches any guest or hypervisor state.
package decoder

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var decLogger = logrus.WithField("source", "hvcore/decoder")

// SetLogger redirects decoder package logs into logger's field set.
func SetLogger(logger *logrus.Entry) {
	fields := logrus.Fields{}
	for k, v := range logger.Data {
		fields[k] = v
	}
	decLogger = logger.WithFields(fields)
}

// Mnemonic tags the decoded operation. Only the subset of x86_64 needed to
// exercise the IR builder (§4.2.1) is modeled; anything else fails with a
// DecoderError of Kind "unknown_opcode" so the caller can fall back to an
// external interpreter.
type Mnemonic int

const (
	MnemInvalid Mnemonic = iota
	MnemMov
	MnemAdd
	MnemSub
	MnemAnd
	MnemOr
	MnemXor
	MnemCmp
	MnemTest
	MnemLea
	MnemPush
	MnemPop
	MnemCall
	MnemRet
	MnemJmp
	MnemJcc
	MnemLoop
	MnemInt
	MnemInt3
	MnemHlt
	MnemIn
	MnemOut
	MnemSyscall
	MnemSysenter
	MnemIret
	MnemNop
	MnemCpuid
	MnemRdtsc
)

func (m Mnemonic) String() string {
	switch m {
	case MnemMov:
		return "mov"
	case MnemAdd:
		return "add"
	case MnemSub:
		return "sub"
	case MnemAnd:
		return "and"
	case MnemOr:
		return "or"
	case MnemXor:
		return "xor"
	case MnemCmp:
		return "cmp"
	case MnemTest:
		return "test"
	case MnemLea:
		return "lea"
	case MnemPush:
		return "push"
	case MnemPop:
		return "pop"
	case MnemCall:
		return "call"
	case MnemRet:
		return "ret"
	case MnemJmp:
		return "jmp"
	case MnemJcc:
		return "jcc"
	case MnemLoop:
		return "loop"
	case MnemInt:
		return "int"
	case MnemInt3:
		return "int3"
	case MnemHlt:
		return "hlt"
	case MnemIn:
		return "in"
	case MnemOut:
		return "out"
	case MnemSyscall:
		return "syscall"
	case MnemSysenter:
		return "sysenter"
	case MnemIret:
		return "iret"
	case MnemNop:
		return "nop"
	case MnemCpuid:
		return "cpuid"
	case MnemRdtsc:
		return "rdtsc"
	default:
		return fmt.Sprintf("<invalid mnemonic %d>", int(m))
	}
}

// OperandKind tags the sum type of §3's decoded operand.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandReg
	OperandImm
	OperandMem
	OperandPCRel
	OperandFarPtr
)

// RegKind further tags a register operand, including the RIP-relative case.
type RegKind int

const (
	RegKindGPR RegKind = iota
	RegKindRIP
)

// Operand is the fixed-layout sum type from spec.md §3. Only the fields
// relevant to Kind are meaningful.
type Operand struct {
	Kind OperandKind

	// OperandReg
	RegIndex int // 0-15 for GPRs
	RegSize  int // byte size: 1, 2, 4, 8
	RegKind  RegKind

	// OperandImm / OperandPCRel
	Imm int64

	// OperandMem
	HasBase  bool
	BaseReg  int
	HasIndex bool
	IndexReg int
	Scale    int // 1, 2, 4, 8
	Disp     int32
	MemSize  int // access size in bytes

	// OperandFarPtr
	FarSelector uint16
	FarOffset   uint64
}

// DecodedInstr is the fixed-capacity record produced by Decode.
type DecodedInstr struct {
	Mnemonic Mnemonic
	Length   int
	RIP      uint64
	Opcode   byte
	Operands [3]Operand
	NumOps   int

	// OperandSize/AddressSize record the effective sizes after legacy/REX
	// prefix decoding (16/32/64), used by the IR builder to pick the
	// correctly sized Load/Store op.
	OperandSize int
	AddressSize int

	// CondCode is set for MnemJcc, where it is the 4-bit condition field
	// from the opcode (e.g. 0x4 for JE/JZ), and for MnemLoop, where it
	// holds the whole opcode byte (0xE0-0xE2).
	CondCode byte

	// IsTerminator mirrors the §4.1 block-terminator rule.
	IsTerminator bool
}

// DecoderError is returned for any byte stream the decoder cannot parse.
// Per spec.md §7, this tells the caller to fall back to an interpreter for
// this RIP; no IR is produced.
type DecoderError struct {
	Kind string // "truncated", "unknown_opcode", "unsupported_prefix"
	RIP  uint64
	Byte byte
}

func (e *DecoderError) Error() string {
	return fmt.Sprintf("decoder: %s at rip=0x%x (byte=0x%02x)", e.Kind, e.RIP, e.Byte)
}

var (
	// ErrTruncated is wrapped into a *DecoderError with Kind "truncated".
	ErrTruncated = errors.New("truncated instruction stream")
)

// prefix state accumulated while scanning legacy/REX/VEX bytes.
type prefixState struct {
	rexW, rexR, rexX, rexB bool
	hasRex                 bool
	opSizeOverride         bool
	addrSizeOverride       bool
	lockOrRepPresent       bool
}

// Decode parses one instruction from bytes, which must begin exactly at the
// instruction's first byte. rip is the guest RIP the bytes were fetched
// from, recorded verbatim into the result for diagnostics.
func Decode(bytes []byte, rip uint64) (DecodedInstr, error) {
	if len(bytes) == 0 {
		return DecodedInstr{}, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip}, "decode")
	}

	cur := 0
	var pfx prefixState

	// Legacy and REX prefixes. VEX (0xC4/0xC5) is recognized but not
	// decoded further: any instruction that needs it falls back to the
	// interpreter, matching the "unsupported prefix combination" error
	// kind from spec.md §7.
	for cur < len(bytes) {
		b := bytes[cur]
		switch b {
		case 0x66:
			pfx.opSizeOverride = true
		case 0x67:
			pfx.addrSizeOverride = true
		case 0xF0, 0xF2, 0xF3:
			pfx.lockOrRepPresent = true
		case 0x2E, 0x36, 0x3E, 0x26, 0x64, 0x65:
			// segment override prefixes: accepted but not modeled.
		default:
			if b&0xF0 == 0x40 {
				pfx.hasRex = true
				pfx.rexW = b&0x08 != 0
				pfx.rexR = b&0x04 != 0
				pfx.rexX = b&0x02 != 0
				pfx.rexB = b&0x01 != 0
				cur++
				goto haveRex
			}
			goto prefixesDone
		}
		cur++
	}
haveRex:
prefixesDone:
	if cur >= len(bytes) {
		return DecodedInstr{}, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip}, "decode")
	}
	if bytes[cur] == 0xC4 || bytes[cur] == 0xC5 {
		return DecodedInstr{}, errors.Wrap(&DecoderError{Kind: "unsupported_prefix", RIP: rip, Byte: bytes[cur]}, "decode")
	}

	opSize := 4
	if pfx.rexW {
		opSize = 8
	} else if pfx.opSizeOverride {
		opSize = 2
	}
	addrSize := 8
	if pfx.addrSizeOverride {
		addrSize = 4
	}

	opcode := bytes[cur]
	cur++

	di := DecodedInstr{RIP: rip, Opcode: opcode, OperandSize: opSize, AddressSize: addrSize}

	var err error
	switch {
	case opcode == 0xC3:
		di.Mnemonic = MnemRet
		di.IsTerminator = true
	case opcode == 0xC9:
		di.Mnemonic = MnemLea // leave: recorded as an operand-less lea, which ir.Build rejects with an error
	case opcode == 0xCC:
		di.Mnemonic = MnemInt3
		di.IsTerminator = true
	case opcode == 0xCD:
		if cur >= len(bytes) {
			return DecodedInstr{}, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip}, "decode")
		}
		di.Mnemonic = MnemInt
		di.NumOps = 1
		di.Operands[0] = Operand{Kind: OperandImm, Imm: int64(bytes[cur])}
		cur++
		di.IsTerminator = true
	case opcode == 0xCF:
		di.Mnemonic = MnemIret
		di.IsTerminator = true
	case opcode == 0xF4:
		di.Mnemonic = MnemHlt
		di.IsTerminator = true
	case opcode == 0x90:
		di.Mnemonic = MnemNop
	case opcode == 0x0F:
		cur, err = decodeTwoByte(bytes, cur, &di)
	case opcode == 0xE8:
		cur, err = decodeCallRel32(bytes, cur, &di, rip)
	case opcode == 0xE9:
		cur, err = decodeJmpRel32(bytes, cur, &di, rip)
	case opcode == 0xEB:
		cur, err = decodeJmpRel8(bytes, cur, &di, rip)
	case opcode >= 0x70 && opcode <= 0x7F:
		cur, err = decodeJccRel8(bytes, cur, &di, rip, opcode)
	case opcode >= 0xE0 && opcode <= 0xE2:
		cur, err = decodeLoopRel8(bytes, cur, &di, rip, opcode)
	case opcode >= 0x50 && opcode <= 0x57:
		di.Mnemonic = MnemPush
		di.NumOps = 1
		di.Operands[0] = Operand{Kind: OperandReg, RegIndex: regIndex(opcode&0x7, pfx.rexB), RegSize: 8, RegKind: RegKindGPR}
	case opcode >= 0x58 && opcode <= 0x5F:
		di.Mnemonic = MnemPop
		di.NumOps = 1
		di.Operands[0] = Operand{Kind: OperandReg, RegIndex: regIndex(opcode&0x7, pfx.rexB), RegSize: 8, RegKind: RegKindGPR}
	case opcode == 0x89 || opcode == 0x8B:
		cur, err = decodeModRMArith(bytes, cur, &di, pfx, opSize, MnemMov, opcode == 0x8B)
	case opcode == 0x01 || opcode == 0x03:
		cur, err = decodeModRMArith(bytes, cur, &di, pfx, opSize, MnemAdd, opcode == 0x03)
	case opcode == 0x29 || opcode == 0x2B:
		cur, err = decodeModRMArith(bytes, cur, &di, pfx, opSize, MnemSub, opcode == 0x2B)
	case opcode == 0x21 || opcode == 0x23:
		cur, err = decodeModRMArith(bytes, cur, &di, pfx, opSize, MnemAnd, opcode == 0x23)
	case opcode == 0x09 || opcode == 0x0B:
		cur, err = decodeModRMArith(bytes, cur, &di, pfx, opSize, MnemOr, opcode == 0x0B)
	case opcode == 0x31 || opcode == 0x33:
		cur, err = decodeModRMArith(bytes, cur, &di, pfx, opSize, MnemXor, opcode == 0x33)
	case opcode == 0x39 || opcode == 0x3B:
		cur, err = decodeModRMArith(bytes, cur, &di, pfx, opSize, MnemCmp, opcode == 0x3B)
	case opcode == 0x85:
		cur, err = decodeModRMArith(bytes, cur, &di, pfx, opSize, MnemTest, true)
	case opcode == 0x8D:
		cur, err = decodeModRMArith(bytes, cur, &di, pfx, opSize, MnemLea, true)
	case opcode == 0x83:
		cur, err = decodeGroup1Imm8(bytes, cur, &di, pfx, opSize)
	case opcode == 0xE4 || opcode == 0xE6:
		if cur >= len(bytes) {
			return DecodedInstr{}, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip}, "decode")
		}
		if opcode == 0xE4 {
			di.Mnemonic = MnemIn
		} else {
			di.Mnemonic = MnemOut
		}
		di.OperandSize = 1
		di.NumOps = 1
		di.Operands[0] = Operand{Kind: OperandImm, Imm: int64(bytes[cur])}
		cur++
	case opcode == 0xEC || opcode == 0xED:
		di.Mnemonic = MnemIn
		di.OperandSize = 1
		if opcode == 0xED {
			di.OperandSize = opSize
		}
	case opcode == 0xEE || opcode == 0xEF:
		di.Mnemonic = MnemOut
		di.OperandSize = 1
		if opcode == 0xEF {
			di.OperandSize = opSize
		}
	case opcode == 0xB8:
		cur, err = decodeMovImm(bytes, cur, &di, pfx, opSize)
	default:
		err = errors.Wrap(&DecoderError{Kind: "unknown_opcode", RIP: rip, Byte: opcode}, "decode")
	}
	if err != nil {
		return DecodedInstr{}, err
	}

	di.Length = cur
	decLogger.WithField("mnemonic", di.Mnemonic.String()).Trace("decoded instruction")
	return di, nil
}

func regIndex(low byte, rexB bool) int {
	idx := int(low)
	if rexB {
		idx += 8
	}
	return idx
}

func decodeModRM(bytes []byte, cur int, pfx prefixState) (mod, reg, rm int, memOp Operand, next int, err error) {
	if cur >= len(bytes) {
		return 0, 0, 0, Operand{}, cur, ErrTruncated
	}
	modrm := bytes[cur]
	cur++
	mod = int(modrm >> 6)
	reg = int((modrm>>3)&0x7)
	rm = int(modrm & 0x7)
	if pfx.rexR {
		reg += 8
	}

	if mod == 3 {
		rmFull := rm
		if pfx.rexB {
			rmFull += 8
		}
		return mod, reg, rmFull, Operand{}, cur, nil
	}

	mem := Operand{Kind: OperandMem, Scale: 1}
	baseReg := rm
	if rm == 4 {
		if cur >= len(bytes) {
			return 0, 0, 0, Operand{}, cur, ErrTruncated
		}
		sib := bytes[cur]
		cur++
		scale := 1 << (sib >> 6)
		index := int((sib >> 3) & 0x7)
		base := int(sib & 0x7)
		if pfx.rexX {
			index += 8
		}
		if pfx.rexB {
			base += 8
		}
		if index != 4 {
			mem.HasIndex = true
			mem.IndexReg = index
			mem.Scale = scale
		}
		if base == 5 && mod == 0 {
			mem.HasBase = false
		} else {
			mem.HasBase = true
			mem.BaseReg = base
		}
		baseReg = -1
	} else if rm == 5 && mod == 0 {
		// RIP-relative: base is RIP itself, disp32 follows.
		mem.HasBase = true
		mem.BaseReg = -1 // sentinel meaning RIP, resolved by the IR builder
		baseReg = -2
	} else {
		if pfx.rexB {
			baseReg += 8
		}
		mem.HasBase = true
		mem.BaseReg = baseReg
	}

	switch mod {
	case 0:
		if baseReg == -2 || (rm == 4 && !mem.HasBase) {
			if cur+4 > len(bytes) {
				return 0, 0, 0, Operand{}, cur, ErrTruncated
			}
			mem.Disp = int32(le32(bytes[cur:]))
			cur += 4
		}
	case 1:
		if cur+1 > len(bytes) {
			return 0, 0, 0, Operand{}, cur, ErrTruncated
		}
		mem.Disp = int32(int8(bytes[cur]))
		cur++
	case 2:
		if cur+4 > len(bytes) {
			return 0, 0, 0, Operand{}, cur, ErrTruncated
		}
		mem.Disp = int32(le32(bytes[cur:]))
		cur += 4
	}

	return mod, reg, rm, mem, cur, nil
}

func decodeModRMArith(bytes []byte, cur int, di *DecodedInstr, pfx prefixState, opSize int, mnem Mnemonic, regIsDst bool) (int, error) {
	mod, reg, rm, mem, next, err := decodeModRM(bytes, cur, pfx)
	if err != nil {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: di.RIP}, "decode")
	}
	regOp := Operand{Kind: OperandReg, RegIndex: reg, RegSize: opSize, RegKind: RegKindGPR}
	var rmOp Operand
	if mod == 3 {
		rmOp = Operand{Kind: OperandReg, RegIndex: rm, RegSize: opSize, RegKind: RegKindGPR}
	} else {
		mem.MemSize = opSize
		rmOp = mem
	}
	di.Mnemonic = mnem
	di.NumOps = 2
	if regIsDst {
		di.Operands[0] = regOp
		di.Operands[1] = rmOp
	} else {
		di.Operands[0] = rmOp
		di.Operands[1] = regOp
	}
	return next, nil
}

func decodeGroup1Imm8(bytes []byte, cur int, di *DecodedInstr, pfx prefixState, opSize int) (int, error) {
	mod, reg, rm, mem, next, err := decodeModRM(bytes, cur, pfx)
	if err != nil {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: di.RIP}, "decode")
	}
	if next >= len(bytes) {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: di.RIP}, "decode")
	}
	imm := int8(bytes[next])
	next++

	// group 1 reg field: 0=ADD 1=OR 2=ADC 3=SBB 4=AND 5=SUB 6=XOR 7=CMP.
	// ADC/SBB are carry-aware and this IR has no carry-in ALU op to lower
	// them to, so they're unsupported rather than silently given the
	// wrong (carry-less) semantics; the caller falls back to an
	// interpreter (spec.md §4.1/§7).
	switch reg & 0x7 {
	case 2, 3:
		return cur, errors.Wrap(&DecoderError{Kind: "unknown_opcode", RIP: di.RIP}, "decode")
	}
	group := [8]Mnemonic{MnemAdd, MnemOr, 0, 0, MnemAnd, MnemSub, MnemXor, MnemCmp}
	di.Mnemonic = group[reg&0x7]

	var dstOp Operand
	if mod == 3 {
		dstOp = Operand{Kind: OperandReg, RegIndex: rm, RegSize: opSize, RegKind: RegKindGPR}
	} else {
		mem.MemSize = opSize
		dstOp = mem
	}
	di.NumOps = 2
	di.Operands[0] = dstOp
	di.Operands[1] = Operand{Kind: OperandImm, Imm: int64(imm)}
	return next, nil
}

func decodeMovImm(bytes []byte, cur int, di *DecodedInstr, pfx prefixState, opSize int) (int, error) {
	size := opSize
	width := size
	if width == 8 {
		width = 8
	}
	if cur+width > len(bytes) {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: di.RIP}, "decode")
	}
	var imm int64
	if width == 8 {
		imm = int64(le64(bytes[cur:]))
	} else {
		imm = int64(le32(bytes[cur:]))
	}
	cur += width
	di.Mnemonic = MnemMov
	di.NumOps = 2
	di.Operands[0] = Operand{Kind: OperandReg, RegIndex: regIndex(0, pfx.rexB), RegSize: opSize, RegKind: RegKindGPR}
	di.Operands[1] = Operand{Kind: OperandImm, Imm: imm}
	return cur, nil
}

func decodeCallRel32(bytes []byte, cur int, di *DecodedInstr, rip uint64) (int, error) {
	if cur+4 > len(bytes) {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip}, "decode")
	}
	rel := int32(le32(bytes[cur:]))
	cur += 4
	di.Mnemonic = MnemCall
	di.NumOps = 1
	di.Operands[0] = Operand{Kind: OperandPCRel, Imm: int64(rel)}
	di.IsTerminator = true
	return cur, nil
}

func decodeJmpRel32(bytes []byte, cur int, di *DecodedInstr, rip uint64) (int, error) {
	if cur+4 > len(bytes) {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip}, "decode")
	}
	rel := int32(le32(bytes[cur:]))
	cur += 4
	di.Mnemonic = MnemJmp
	di.NumOps = 1
	di.Operands[0] = Operand{Kind: OperandPCRel, Imm: int64(rel)}
	di.IsTerminator = true
	return cur, nil
}

func decodeJmpRel8(bytes []byte, cur int, di *DecodedInstr, rip uint64) (int, error) {
	if cur+1 > len(bytes) {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip}, "decode")
	}
	rel := int8(bytes[cur])
	cur++
	di.Mnemonic = MnemJmp
	di.NumOps = 1
	di.Operands[0] = Operand{Kind: OperandPCRel, Imm: int64(rel)}
	di.IsTerminator = true
	return cur, nil
}

func decodeJccRel8(bytes []byte, cur int, di *DecodedInstr, rip uint64, opcode byte) (int, error) {
	if cur+1 > len(bytes) {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip}, "decode")
	}
	rel := int8(bytes[cur])
	cur++
	di.Mnemonic = MnemJcc
	di.CondCode = opcode & 0x0F
	di.NumOps = 1
	di.Operands[0] = Operand{Kind: OperandPCRel, Imm: int64(rel)}
	di.IsTerminator = true
	return cur, nil
}

func decodeLoopRel8(bytes []byte, cur int, di *DecodedInstr, rip uint64, opcode byte) (int, error) {
	if cur+1 > len(bytes) {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip}, "decode")
	}
	rel := int8(bytes[cur])
	cur++
	di.Mnemonic = MnemLoop
	di.CondCode = opcode
	di.NumOps = 1
	di.Operands[0] = Operand{Kind: OperandPCRel, Imm: int64(rel)}
	di.IsTerminator = true
	return cur, nil
}

func decodeTwoByte(bytes []byte, cur int, di *DecodedInstr) (int, error) {
	if cur >= len(bytes) {
		return cur, errors.Wrap(&DecoderError{Kind: "truncated", RIP: di.RIP}, "decode")
	}
	b2 := bytes[cur]
	cur++
	switch {
	case b2 == 0x05:
		di.Mnemonic = MnemSyscall
		di.IsTerminator = true
		return cur, nil
	case b2 == 0x34:
		di.Mnemonic = MnemSysenter
		di.IsTerminator = true
		return cur, nil
	case b2 == 0xA2:
		di.Mnemonic = MnemCpuid
		return cur, nil
	case b2 == 0x31:
		di.Mnemonic = MnemRdtsc
		return cur, nil
	case b2 == 0x0B:
		return cur, errors.Wrap(&DecoderError{Kind: "unknown_opcode", RIP: di.RIP, Byte: b2}, "decode") // ud2
	default:
		return cur, errors.Wrap(&DecoderError{Kind: "unknown_opcode", RIP: di.RIP, Byte: b2}, "decode")
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	return uint64(le32(b)) | uint64(le32(b[4:]))<<32
}

// DecodeBlock decodes instructions starting at rip until either cap
// instructions have been produced or a terminator is decoded, whichever
// comes first (spec.md §4.1). At the first DecoderError it stops and
// returns the instructions decoded so far together with that error, so the
// caller can fall back to an interpreter at the failing RIP. If the bytes
// end right after a non-terminator instruction, it returns the decoded
// instructions with a "truncated" DecoderError.
func DecodeBlock(bytes []byte, rip uint64, cap int) ([]DecodedInstr, error) {
	var out []DecodedInstr
	offset := 0
	for len(out) < cap {
		di, err := Decode(bytes[offset:], rip+uint64(offset))
		if err != nil {
			return out, err
		}
		out = append(out, di)
		offset += di.Length
		if di.IsTerminator {
			break
		}
		if offset >= len(bytes) {
			return out, errors.Wrap(&DecoderError{Kind: "truncated", RIP: rip + uint64(offset)}, "decode block")
		}
	}
	return out, nil
}
