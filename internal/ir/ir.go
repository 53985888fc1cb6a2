// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package ir implements the SSA intermediate representation described in
// spec.md §3/§4.2: a builder that translates decoded instructions into SSA
// form, and an optimizer that runs constant folding, dead-code elimination,
// peephole cleanup, and latency-aware list scheduling over it.
package ir

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

var irLogger = logrus.WithField("source", "hvcore/ir")

// SetLogger redirects ir package logs into logger's field set.
func SetLogger(logger *logrus.Entry) {
	irLogger = logger.WithFields(logrus.Fields{})
}

// VReg is a dense SSA virtual register identifier.
type VReg uint32

// NoVReg is the sentinel meaning "no destination" (spec.md §3).
const NoVReg VReg = ^VReg(0)

// OpKind tags the IR op sum type (spec.md §3).
type OpKind int

const (
	OpConst OpKind = iota
	OpLoadGpr
	OpStoreGpr
	OpLoadFlags
	OpStoreFlags
	OpLoadRip
	OpStoreRip
	OpLoad8
	OpLoad16
	OpLoad32
	OpLoad64
	OpStore8
	OpStore16
	OpStore32
	OpStore64
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpMulS
	OpMulU
	OpDivS
	OpDivU
	OpShl
	OpShr
	OpSar
	OpRol
	OpRor
	OpCmp
	OpTest
	OpFlagBit // bit extraction per flag (ZF/SF/CF/...)
	OpSelect
	OpSExt
	OpZExt
	OpTrunc
	OpJmp
	OpBranch
	OpCall
	OpCallIndirect
	OpRet
	OpCpuid
	OpRdtsc
	OpSyscall
	OpHlt
	OpNop
	OpIoIn
	OpIoOut
	OpPhi
	OpExit
)

func (k OpKind) String() string {
	names := [...]string{
		"const", "load_gpr", "store_gpr", "load_flags", "store_flags",
		"load_rip", "store_rip", "load8", "load16", "load32", "load64",
		"store8", "store16", "store32", "store64",
		"add", "sub", "and", "or", "xor", "muls", "mulu", "divs", "divu",
		"shl", "shr", "sar", "rol", "ror", "cmp", "test", "flagbit",
		"select", "sext", "zext", "trunc", "jmp", "branch", "call",
		"call_indirect", "ret", "cpuid", "rdtsc", "syscall", "hlt", "nop",
		"io_in", "io_out", "phi", "exit",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// ExitReasonKind tags the Exit-with-reason sum type (spec.md §3).
type ExitReasonKind int

const (
	ExitNormal ExitReasonKind = iota
	ExitHalt
	ExitInterrupt
	ExitException
	ExitIoRead
	ExitIoWrite
	ExitMMIO
	ExitHypercall
	ExitReset
)

// ExitReason carries the kind-specific payload for OpExit.
type ExitReason struct {
	Kind ExitReasonKind

	Vector   int    // ExitInterrupt / ExitException
	Code     uint32 // ExitException
	Port     uint16 // ExitIoRead/Write
	Width    int    // ExitIoRead/Write/MMIO, in bytes
	Addr     uint64 // ExitMMIO
	IsWrite  bool   // ExitMMIO
}

// Flag bits attached to each Instruction (spec.md §3).
type Flag uint16

const (
	FlagMayTrap Flag = 1 << iota
	FlagSideEffect
	FlagTerminator
	FlagUpdatesFlags
	FlagReadsFlags
	FlagMemRead
	FlagMemWrite
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Operand to an IR instruction: either a vreg use or an immediate. GPR
// indices (for Load/StoreGpr) and block ids (for control-flow ops) are
// carried on Instruction itself, in GprIndex and Targets.
type Value struct {
	IsImm bool
	Imm   int64
	VReg  VReg
}

func ImmValue(v int64) Value { return Value{IsImm: true, Imm: v} }
func RegValue(v VReg) Value  { return Value{VReg: v} }

func (v Value) String() string {
	if v.IsImm {
		return fmt.Sprintf("%d", v.Imm)
	}
	return fmt.Sprintf("v%d", v.VReg)
}

// Instruction is one SSA IR instruction (spec.md §3).
type Instruction struct {
	Dst  VReg
	Op   OpKind
	Args []Value

	// GprIndex is meaningful for OpLoadGpr/OpStoreGpr (0-15).
	GprIndex int

	// Width in bits for sized memory/arith ops where it matters (8/16/32/64).
	Width int

	// Targets holds block ids for OpJmp (1 entry), OpBranch (2: taken,
	// fallthrough), OpCall (1, the callee entry block for a direct call
	// within the same function; -1 if external), OpPhi (one id per
	// predecessor, parallel to Args).
	Targets []int

	// Exit carries the payload for OpExit.
	Exit ExitReason

	// GuestRIP is the originating guest RIP, for diagnostics.
	GuestRIP uint64

	Flags Flag
}

func (i *Instruction) String() string {
	dst := "_"
	if i.Dst != NoVReg {
		dst = fmt.Sprintf("v%d", i.Dst)
	}
	args := make([]string, len(i.Args))
	for idx, a := range i.Args {
		args[idx] = a.String()
	}
	return fmt.Sprintf("%s = %s %v", dst, i.Op, args)
}

// BasicBlock is a dense-id block of instructions (spec.md §3).
type BasicBlock struct {
	ID      int
	EntryRIP uint64
	Instrs  []Instruction
	Preds   map[int]struct{}
	Succs   map[int]struct{}
}

func newBasicBlock(id int, entryRIP uint64) *BasicBlock {
	return &BasicBlock{ID: id, EntryRIP: entryRIP, Preds: map[int]struct{}{}, Succs: map[int]struct{}{}}
}

func (b *BasicBlock) addSucc(other *BasicBlock) {
	b.Succs[other.ID] = struct{}{}
	other.Preds[b.ID] = struct{}{}
}

// Metadata records the per-function summary fields from spec.md §3.
type Metadata struct {
	GuestInstrCount int
	IRInstrCount    int
	HasMemoryOps    bool
	HasIOOps        bool
	HasBranches     bool
	IsLoop          bool
	LoopDepth       int
}

// Function is an SSA function rooted at one entry guest RIP (spec.md §3).
type Function struct {
	EntryRIP      uint64
	GuestByteLen  int
	Blocks        []*BasicBlock
	EntryBlockID  int
	nextVReg      VReg
	Meta          Metadata
}

// NewFunction creates an empty function with a single entry block.
func NewFunction(entryRIP uint64) *Function {
	f := &Function{EntryRIP: entryRIP}
	entry := newBasicBlock(0, entryRIP)
	f.Blocks = append(f.Blocks, entry)
	f.EntryBlockID = 0
	return f
}

// Block returns the block with the given id, or nil.
func (f *Function) Block(id int) *BasicBlock {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// NewBlock allocates and appends a fresh block with the given entry RIP.
func (f *Function) NewBlock(entryRIP uint64) *BasicBlock {
	id := len(f.Blocks)
	b := newBasicBlock(id, entryRIP)
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewVReg allocates the next dense virtual register.
func (f *Function) NewVReg() VReg {
	v := f.nextVReg
	f.nextVReg++
	return v
}

// NumVRegs reports how many vregs have been allocated.
func (f *Function) NumVRegs() int { return int(f.nextVReg) }

// Emit appends instr to block b, updating Metadata counters.
func (f *Function) Emit(b *BasicBlock, instr Instruction) {
	b.Instrs = append(b.Instrs, instr)
	f.Meta.IRInstrCount++
	if instr.Flags.Has(FlagMemRead) || instr.Flags.Has(FlagMemWrite) {
		f.Meta.HasMemoryOps = true
	}
	if instr.Op == OpIoIn || instr.Op == OpIoOut {
		f.Meta.HasIOOps = true
	}
	if instr.Op == OpBranch {
		f.Meta.HasBranches = true
	}
}

// GPRCount is the number of architectural general-purpose registers.
const GPRCount = 16
