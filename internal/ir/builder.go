// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package ir

import (
	"github.com/pkg/errors"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/decoder"
	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/metrics"
)

// IRBuildError is returned when construction cannot proceed to completion
// (spec.md §7). The partially built Function is retained by the caller for
// diagnostics; Build returns it alongside the error.
type IRBuildError struct {
	Kind string // "instr_cap_exceeded", "unreachable_block"
	RIP  uint64
}

func (e *IRBuildError) Error() string {
	return errors.Errorf("ir build: %s at rip=0x%x", e.Kind, e.RIP).Error()
}

// DefaultInstrCap bounds the number of guest instructions folded into one
// trace before the builder gives up with IRBuildError{"instr_cap_exceeded"}.
const DefaultInstrCap = 512

// builderState tracks, for the active SSA construction, the current vreg
// for each architectural GPR plus RIP/RFLAGS cursors -- this is the
// GPR-map renaming state described in spec.md §4.2.1.
type builderState struct {
	f        *Function
	gpr      [GPRCount]VReg
	flags    VReg
	ripCur   VReg
	rspIndex int
}

// Build translates a sequence of decoded instructions, starting at
// instrs[0].RIP, into a new Function's entry block (and any additional blocks created for
// branch targets/fallthroughs). cap bounds the number of guest instructions
// translated; DefaultInstrCap is used if cap <= 0.
func Build(instrs []decoder.DecodedInstr, cap int) (*Function, error) {
	if cap <= 0 {
		cap = DefaultInstrCap
	}
	if len(instrs) == 0 {
		metrics.CompileTotal.WithLabelValues("build_error").Inc()
		return nil, errors.Wrap(&IRBuildError{Kind: "unreachable_block"}, "build")
	}

	f := NewFunction(instrs[0].RIP)
	st := &builderState{f: f, rspIndex: 4}
	entry := f.Block(f.EntryBlockID)

	for i := 0; i < GPRCount; i++ {
		v := f.NewVReg()
		f.Emit(entry, Instruction{Dst: v, Op: OpLoadGpr, GprIndex: i, GuestRIP: fn0(instrs)})
		st.gpr[i] = v
	}
	st.flags = f.NewVReg()
	f.Emit(entry, Instruction{Dst: st.flags, Op: OpLoadFlags, GuestRIP: fn0(instrs)})

	cur := entry
	count := 0
	for _, di := range instrs {
		if count >= cap {
			metrics.CompileTotal.WithLabelValues("build_error").Inc()
			return f, errors.Wrap(&IRBuildError{Kind: "instr_cap_exceeded", RIP: di.RIP}, "build")
		}
		count++
		f.Meta.GuestInstrCount++

		// A few mnemonics (IN/OUT, CPUID, RDTSC) end the IR block with an
		// Exit even though the decoder does not treat them as terminators
		// (spec.md §4.1's terminator list is a decode-time property, not an
		// IR one): decoding may legitimately continue past them within the
		// same instrs slice. When that happens, resume translation into a
		// fresh block re-seeded from guest state, exactly as Build seeds
		// the entry block.
		if blockIsTerminated(cur) {
			next := f.NewBlock(di.RIP)
			for i := 0; i < GPRCount; i++ {
				v := f.NewVReg()
				f.Emit(next, Instruction{Dst: v, Op: OpLoadGpr, GprIndex: i, GuestRIP: di.RIP})
				st.gpr[i] = v
			}
			st.flags = f.NewVReg()
			f.Emit(next, Instruction{Dst: st.flags, Op: OpLoadFlags, GuestRIP: di.RIP})
			cur = next
		}

		if err := st.translate(cur, di); err != nil {
			metrics.CompileTotal.WithLabelValues("build_error").Inc()
			return f, err
		}
	}
	metrics.CompileTotal.WithLabelValues("ok").Inc()
	return f, nil
}

// blockIsTerminated reports whether b's last instruction is already a
// terminator, meaning any further emission into b must start a new block.
func blockIsTerminated(b *BasicBlock) bool {
	if len(b.Instrs) == 0 {
		return false
	}
	return b.Instrs[len(b.Instrs)-1].Flags.Has(FlagTerminator)
}

func fn0(instrs []decoder.DecodedInstr) uint64 {
	if len(instrs) == 0 {
		return 0
	}
	return instrs[0].RIP
}

// translate emits the IR for one decoded instruction onto b, per the rules
// in spec.md §4.2.1.
func (st *builderState) translate(b *BasicBlock, di decoder.DecodedInstr) error {
	f := st.f
	nextRIP := di.RIP + uint64(di.Length)

	switch di.Mnemonic {
	case decoder.MnemMov:
		return st.translateMov(b, di)

	case decoder.MnemAdd, decoder.MnemSub, decoder.MnemAnd, decoder.MnemOr, decoder.MnemXor:
		return st.translateBinaryALU(b, di)

	case decoder.MnemCmp, decoder.MnemTest:
		return st.translateCmpTest(b, di)

	case decoder.MnemLea:
		return st.translateLea(b, di)

	case decoder.MnemPush:
		return st.translatePush(b, di)

	case decoder.MnemPop:
		return st.translatePop(b, di)

	case decoder.MnemJmp:
		return st.translateJmp(b, di, nextRIP)

	case decoder.MnemJcc:
		return st.translateJcc(b, di, nextRIP)

	case decoder.MnemCall:
		return st.translateCall(b, di, nextRIP)

	case decoder.MnemRet:
		return st.translateRet(b, di)

	case decoder.MnemInt, decoder.MnemInt3:
		return st.translateInt(b, di, nextRIP)

	case decoder.MnemHlt:
		return st.storeStateAndExit(b, ExitReason{Kind: ExitHalt}, nextRIP)

	case decoder.MnemIn:
		return st.translateIO(b, di, nextRIP, true)

	case decoder.MnemOut:
		return st.translateIO(b, di, nextRIP, false)

	case decoder.MnemSyscall, decoder.MnemSysenter:
		return st.storeStateAndExit(b, ExitReason{Kind: ExitHypercall}, nextRIP)

	case decoder.MnemNop:
		f.Emit(b, Instruction{Dst: NoVReg, Op: OpNop, GuestRIP: di.RIP})
		return nil

	case decoder.MnemCpuid, decoder.MnemRdtsc:
		// Neither is a block terminator for the decoder (spec.md §4.1), but
		// the Exit-reason sum type (spec.md §3) has no CPUID/RDTSC-specific
		// kind: both fall back to the catch-all store-state-and-exit with
		// ExitNormal, same as an unrecognized mnemonic, leaving the actual
		// emulation of the one instruction at nextRIP to the host's
		// interpreter fallback before it resumes the guest.
		return st.storeStateAndExit(b, ExitReason{Kind: ExitNormal}, nextRIP)

	default:
		return st.storeStateAndExit(b, ExitReason{Kind: ExitNormal}, nextRIP)
	}
}

// materialize returns a vreg holding val: if val is already a vreg, it is
// returned as-is (this is the MOV-rewires-the-GPR-map-entry rule of
// spec.md §4.2.1); if val is an immediate, a Const op is emitted.
func (st *builderState) materialize(b *BasicBlock, val Value, guestRIP uint64) VReg {
	if !val.IsImm {
		return val.VReg
	}
	v := st.f.NewVReg()
	st.f.Emit(b, Instruction{Dst: v, Op: OpConst, Args: []Value{val}, GuestRIP: guestRIP})
	return v
}

func (st *builderState) translateMov(b *BasicBlock, di decoder.DecodedInstr) error {
	f := st.f
	dst, src := di.Operands[0], di.Operands[1]
	srcVal, err := st.operandValue(b, src, di)
	if err != nil {
		return err
	}
	if dst.Kind == decoder.OperandReg {
		st.gpr[dst.RegIndex] = st.materialize(b, srcVal, di.RIP)
		return nil
	}
	if dst.Kind == decoder.OperandMem {
		addr := st.effectiveAddress(b, dst, di)
		f.Emit(b, Instruction{
			Dst: NoVReg, Op: storeOpForSize(dst.MemSize), Args: []Value{RegValue(addr), srcVal},
			Width: dst.MemSize * 8, GuestRIP: di.RIP, Flags: FlagMemWrite,
		})
		return nil
	}
	return errors.Errorf("mov: unsupported destination kind %d", dst.Kind)
}

func (st *builderState) translateBinaryALU(b *BasicBlock, di decoder.DecodedInstr) error {
	f := st.f
	dst, src := di.Operands[0], di.Operands[1]
	aVal, err := st.operandValue(b, dst, di)
	if err != nil {
		return err
	}
	bVal, err := st.operandValue(b, src, di)
	if err != nil {
		return err
	}
	op := aluOp(di.Mnemonic)
	result := f.NewVReg()
	f.Emit(b, Instruction{Dst: result, Op: op, Args: []Value{aVal, bVal}, Width: di.OperandSize * 8,
		GuestRIP: di.RIP, Flags: FlagUpdatesFlags})

	// The flag vreg is a synthetic Cmp(result, 0): spec.md §4.2.1's
	// documented compromise -- OF/AF/PF are never materialized.
	newFlags := f.NewVReg()
	f.Emit(b, Instruction{Dst: newFlags, Op: OpCmp, Args: []Value{RegValue(result), ImmValue(0)},
		GuestRIP: di.RIP, Flags: FlagUpdatesFlags})
	st.flags = newFlags

	if dst.Kind == decoder.OperandReg {
		st.gpr[dst.RegIndex] = result
	} else if dst.Kind == decoder.OperandMem {
		addr := st.effectiveAddress(b, dst, di)
		f.Emit(b, Instruction{Dst: NoVReg, Op: storeOpForSize(dst.MemSize), Args: []Value{RegValue(addr), RegValue(result)},
			Width: dst.MemSize * 8, GuestRIP: di.RIP, Flags: FlagMemWrite})
	}
	return nil
}

func aluOp(m decoder.Mnemonic) OpKind {
	switch m {
	case decoder.MnemAdd:
		return OpAdd
	case decoder.MnemSub:
		return OpSub
	case decoder.MnemAnd:
		return OpAnd
	case decoder.MnemOr:
		return OpOr
	case decoder.MnemXor:
		return OpXor
	default:
		return OpAdd
	}
}

func (st *builderState) translateCmpTest(b *BasicBlock, di decoder.DecodedInstr) error {
	f := st.f
	a, bOp := di.Operands[0], di.Operands[1]
	aVal, err := st.operandValue(b, a, di)
	if err != nil {
		return err
	}
	bVal, err := st.operandValue(b, bOp, di)
	if err != nil {
		return err
	}
	op := OpCmp
	if di.Mnemonic == decoder.MnemTest {
		op = OpTest
	}
	newFlags := f.NewVReg()
	f.Emit(b, Instruction{Dst: newFlags, Op: op, Args: []Value{aVal, bVal}, GuestRIP: di.RIP, Flags: FlagUpdatesFlags})
	st.flags = newFlags
	return nil
}

func (st *builderState) translateLea(b *BasicBlock, di decoder.DecodedInstr) error {
	src := di.Operands[1]
	if src.Kind != decoder.OperandMem {
		return errors.New("lea: source must be memory")
	}
	addr := st.effectiveAddress(b, src, di)
	dst := di.Operands[0]
	st.gpr[dst.RegIndex] = addr
	return nil
}

func (st *builderState) translatePush(b *BasicBlock, di decoder.DecodedInstr) error {
	f := st.f
	val, err := st.operandValue(b, di.Operands[0], di)
	if err != nil {
		return err
	}
	newRSP := f.NewVReg()
	f.Emit(b, Instruction{Dst: newRSP, Op: OpSub, Args: []Value{RegValue(st.gpr[st.rspIndex]), ImmValue(8)}, GuestRIP: di.RIP})
	f.Emit(b, Instruction{Dst: NoVReg, Op: OpStore64, Args: []Value{RegValue(newRSP), val}, Width: 64,
		GuestRIP: di.RIP, Flags: FlagMemWrite})
	st.gpr[st.rspIndex] = newRSP
	return nil
}

func (st *builderState) translatePop(b *BasicBlock, di decoder.DecodedInstr) error {
	f := st.f
	loaded := f.NewVReg()
	f.Emit(b, Instruction{Dst: loaded, Op: OpLoad64, Args: []Value{RegValue(st.gpr[st.rspIndex])}, Width: 64,
		GuestRIP: di.RIP, Flags: FlagMemRead})
	newRSP := f.NewVReg()
	f.Emit(b, Instruction{Dst: newRSP, Op: OpAdd, Args: []Value{RegValue(st.gpr[st.rspIndex]), ImmValue(8)}, GuestRIP: di.RIP})
	st.gpr[st.rspIndex] = newRSP
	dst := di.Operands[0]
	st.gpr[dst.RegIndex] = loaded
	return nil
}

// storeLiveState stores every GPR, RIP, and RFLAGS back into the guest-state
// area, as required before any block terminator (spec.md §4.2.1).
func (st *builderState) storeLiveState(b *BasicBlock, rip uint64, guestRIP uint64) {
	f := st.f
	for i := 0; i < GPRCount; i++ {
		f.Emit(b, Instruction{Dst: NoVReg, Op: OpStoreGpr, GprIndex: i, Args: []Value{RegValue(st.gpr[i])}, GuestRIP: guestRIP})
	}
	ripVal := f.NewVReg()
	f.Emit(b, Instruction{Dst: ripVal, Op: OpConst, Args: []Value{ImmValue(int64(rip))}, GuestRIP: guestRIP})
	f.Emit(b, Instruction{Dst: NoVReg, Op: OpStoreRip, Args: []Value{RegValue(ripVal)}, GuestRIP: guestRIP})
	f.Emit(b, Instruction{Dst: NoVReg, Op: OpStoreFlags, Args: []Value{RegValue(st.flags)}, GuestRIP: guestRIP})
}

func (st *builderState) translateJmp(b *BasicBlock, di decoder.DecodedInstr, nextRIP uint64) error {
	target := nextRIP
	if di.Operands[0].Kind == decoder.OperandPCRel {
		target = uint64(int64(nextRIP) + di.Operands[0].Imm)
	}
	markLoopIfBackward(st.f, di.RIP, target)
	st.storeLiveState(b, target, di.RIP)
	st.f.Emit(b, Instruction{Dst: NoVReg, Op: OpExit, Exit: ExitReason{Kind: ExitNormal}, GuestRIP: di.RIP,
		Flags: FlagTerminator})
	return nil
}

// markLoopIfBackward records spec.md §3's IsLoop/LoopDepth metadata: a
// branch whose guest target is at or before its own guest RIP is a
// backward branch, which for straight-line guest code only ever arises
// from a loop construct. This IR never merges a branch target into an
// already-built block (every Jcc creates fresh blocks off the decoded
// instruction stream and every Jmp ends in an Exit), so LoopDepth approximates nesting depth
// by counting distinct backward-branch sites rather than walking a loop-
// nest tree.
func markLoopIfBackward(f *Function, branchRIP, target uint64) {
	if target <= branchRIP {
		f.Meta.IsLoop = true
		f.Meta.LoopDepth++
	}
}

func (st *builderState) translateJcc(b *BasicBlock, di decoder.DecodedInstr, nextRIP uint64) error {
	f := st.f
	target := uint64(int64(nextRIP) + di.Operands[0].Imm)
	markLoopIfBackward(f, di.RIP, target)
	taken := f.NewBlock(target)
	fallthroughBlk := f.NewBlock(nextRIP)
	b.addSucc(taken)
	b.addSucc(fallthroughBlk)

	st.storeLiveState(taken, target, di.RIP)
	f.Emit(taken, Instruction{Dst: NoVReg, Op: OpExit, Exit: ExitReason{Kind: ExitNormal}, GuestRIP: di.RIP, Flags: FlagTerminator})

	st.storeLiveState(fallthroughBlk, nextRIP, di.RIP)
	f.Emit(fallthroughBlk, Instruction{Dst: NoVReg, Op: OpExit, Exit: ExitReason{Kind: ExitNormal}, GuestRIP: di.RIP, Flags: FlagTerminator})

	cond := f.NewVReg()
	f.Emit(b, Instruction{Dst: cond, Op: OpFlagBit, Args: []Value{RegValue(st.flags), ImmValue(int64(di.CondCode))}, GuestRIP: di.RIP, Flags: FlagReadsFlags})
	f.Emit(b, Instruction{Dst: NoVReg, Op: OpBranch, Args: []Value{RegValue(cond)}, Targets: []int{taken.ID, fallthroughBlk.ID},
		GuestRIP: di.RIP, Flags: FlagTerminator})
	return nil
}

func (st *builderState) translateCall(b *BasicBlock, di decoder.DecodedInstr, nextRIP uint64) error {
	f := st.f
	retVal := f.NewVReg()
	f.Emit(b, Instruction{Dst: retVal, Op: OpConst, Args: []Value{ImmValue(int64(nextRIP))}, GuestRIP: di.RIP})
	newRSP := f.NewVReg()
	f.Emit(b, Instruction{Dst: newRSP, Op: OpSub, Args: []Value{RegValue(st.gpr[st.rspIndex]), ImmValue(8)}, GuestRIP: di.RIP})
	f.Emit(b, Instruction{Dst: NoVReg, Op: OpStore64, Args: []Value{RegValue(newRSP), RegValue(retVal)}, Width: 64,
		GuestRIP: di.RIP, Flags: FlagMemWrite})
	st.gpr[st.rspIndex] = newRSP

	op := di.Operands[0]
	if op.Kind == decoder.OperandPCRel {
		target := uint64(int64(nextRIP) + op.Imm)
		st.storeLiveState(b, target, di.RIP)
		f.Emit(b, Instruction{Dst: NoVReg, Op: OpCall, GuestRIP: di.RIP, Flags: FlagSideEffect | FlagTerminator})
	} else {
		callee, err := st.operandValue(b, op, di)
		if err != nil {
			return err
		}
		st.storeLiveState(b, nextRIP, di.RIP)
		f.Emit(b, Instruction{Dst: NoVReg, Op: OpCallIndirect, Args: []Value{callee}, GuestRIP: di.RIP, Flags: FlagSideEffect | FlagTerminator})
	}
	return nil
}

func (st *builderState) translateRet(b *BasicBlock, di decoder.DecodedInstr) error {
	f := st.f
	retAddr := f.NewVReg()
	f.Emit(b, Instruction{Dst: retAddr, Op: OpLoad64, Args: []Value{RegValue(st.gpr[st.rspIndex])}, Width: 64,
		GuestRIP: di.RIP, Flags: FlagMemRead})
	newRSP := f.NewVReg()
	f.Emit(b, Instruction{Dst: newRSP, Op: OpAdd, Args: []Value{RegValue(st.gpr[st.rspIndex]), ImmValue(8)}, GuestRIP: di.RIP})
	st.gpr[st.rspIndex] = newRSP

	for i := 0; i < GPRCount; i++ {
		f.Emit(b, Instruction{Dst: NoVReg, Op: OpStoreGpr, GprIndex: i, Args: []Value{RegValue(st.gpr[i])}, GuestRIP: di.RIP})
	}
	f.Emit(b, Instruction{Dst: NoVReg, Op: OpStoreRip, Args: []Value{retAddr}, GuestRIP: di.RIP})
	f.Emit(b, Instruction{Dst: NoVReg, Op: OpStoreFlags, Args: []Value{RegValue(st.flags)}, GuestRIP: di.RIP})
	f.Emit(b, Instruction{Dst: NoVReg, Op: OpRet, GuestRIP: di.RIP, Flags: FlagTerminator})
	return nil
}

func (st *builderState) translateInt(b *BasicBlock, di decoder.DecodedInstr, nextRIP uint64) error {
	vector := 3
	if di.Mnemonic == decoder.MnemInt {
		vector = int(di.Operands[0].Imm)
	}
	return st.storeStateAndExit(b, ExitReason{Kind: ExitInterrupt, Vector: vector}, nextRIP)
}

func (st *builderState) translateIO(b *BasicBlock, di decoder.DecodedInstr, nextRIP uint64, isIn bool) error {
	f := st.f
	port := uint16(0)
	width := di.OperandSize
	if len(di.Operands) > 0 && di.Operands[0].Kind == decoder.OperandImm {
		port = uint16(di.Operands[0].Imm)
	}
	if isIn {
		f.Emit(b, Instruction{Dst: NoVReg, Op: OpIoIn, Args: []Value{ImmValue(int64(port))}, Width: width * 8, GuestRIP: di.RIP, Flags: FlagSideEffect})
		return st.storeStateAndExit(b, ExitReason{Kind: ExitIoRead, Port: port, Width: width}, nextRIP)
	}
	f.Emit(b, Instruction{Dst: NoVReg, Op: OpIoOut, Args: []Value{ImmValue(int64(port))}, Width: width * 8, GuestRIP: di.RIP, Flags: FlagSideEffect})
	return st.storeStateAndExit(b, ExitReason{Kind: ExitIoWrite, Port: port, Width: width}, nextRIP)
}

// storeStateAndExit implements the catch-all rule in spec.md §4.2.1 for
// INT/INT3/HLT/IN/OUT/unknown mnemonics: store all live state, set RIP to
// the next instruction, and terminate the block with the given reason.
func (st *builderState) storeStateAndExit(b *BasicBlock, reason ExitReason, nextRIP uint64) error {
	st.storeLiveState(b, nextRIP, b.EntryRIP)
	st.f.Emit(b, Instruction{Dst: NoVReg, Op: OpExit, Exit: reason, GuestRIP: nextRIP, Flags: FlagTerminator | FlagSideEffect})
	return nil
}

// operandValue materializes a decoded operand as an IR Value, reading
// through the vreg-tracked GPR map for register operands and emitting a
// Load for memory operands.
func (st *builderState) operandValue(b *BasicBlock, op decoder.Operand, di decoder.DecodedInstr) (Value, error) {
	switch op.Kind {
	case decoder.OperandReg:
		return RegValue(st.gpr[op.RegIndex]), nil
	case decoder.OperandImm:
		return ImmValue(op.Imm), nil
	case decoder.OperandMem:
		addr := st.effectiveAddress(b, op, di)
		loaded := st.f.NewVReg()
		st.f.Emit(b, Instruction{Dst: loaded, Op: loadOpForSize(op.MemSize), Args: []Value{RegValue(addr)},
			Width: op.MemSize * 8, GuestRIP: di.RIP, Flags: FlagMemRead})
		return RegValue(loaded), nil
	default:
		return Value{}, errors.Errorf("operandValue: unsupported operand kind %d", op.Kind)
	}
}

// effectiveAddress materializes (base + index*scale + displacement) as a
// chain of IR ops, per spec.md §4.2.1.
func (st *builderState) effectiveAddress(b *BasicBlock, op decoder.Operand, di decoder.DecodedInstr) VReg {
	f := st.f
	var addr VReg
	haveAddr := false

	if op.HasBase {
		if op.BaseReg == -1 {
			// RIP-relative: base is the next instruction's RIP.
			ripConst := f.NewVReg()
			f.Emit(b, Instruction{Dst: ripConst, Op: OpConst, Args: []Value{ImmValue(int64(di.RIP) + int64(di.Length))}, GuestRIP: di.RIP})
			addr = ripConst
		} else {
			addr = st.gpr[op.BaseReg]
		}
		haveAddr = true
	}
	if op.HasIndex {
		scaled := f.NewVReg()
		f.Emit(b, Instruction{Dst: scaled, Op: OpShl, Args: []Value{RegValue(st.gpr[op.IndexReg]), ImmValue(log2(op.Scale))}, GuestRIP: di.RIP})
		if haveAddr {
			sum := f.NewVReg()
			f.Emit(b, Instruction{Dst: sum, Op: OpAdd, Args: []Value{RegValue(addr), RegValue(scaled)}, GuestRIP: di.RIP})
			addr = sum
		} else {
			addr = scaled
			haveAddr = true
		}
	}
	if op.Disp != 0 || !haveAddr {
		dispConst := f.NewVReg()
		f.Emit(b, Instruction{Dst: dispConst, Op: OpConst, Args: []Value{ImmValue(int64(op.Disp))}, GuestRIP: di.RIP})
		if haveAddr {
			sum := f.NewVReg()
			f.Emit(b, Instruction{Dst: sum, Op: OpAdd, Args: []Value{RegValue(addr), RegValue(dispConst)}, GuestRIP: di.RIP})
			addr = sum
		} else {
			addr = dispConst
		}
	}
	return addr
}

func log2(v int) int64 {
	switch v {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}

func loadOpForSize(size int) OpKind {
	switch size {
	case 1:
		return OpLoad8
	case 2:
		return OpLoad16
	case 4:
		return OpLoad32
	default:
		return OpLoad64
	}
}

func storeOpForSize(size int) OpKind {
	switch size {
	case 1:
		return OpStore8
	case 2:
		return OpStore16
	case 4:
		return OpStore32
	default:
		return OpStore64
	}
}
