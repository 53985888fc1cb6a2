// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package codegen lowers ir.Function to x86_64 machine bytes: a linear
// single-pass register allocator (this file), an emitter implementing the
// three-pass-per-block protocol and prologue/epilogue/exit encoding
// (emit.go, prologue.go), and a per-op cycle estimator (cycles.go).
package codegen

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/ir"
)

var cgLogger = logrus.WithField("source", "hvcore/codegen")

// SetLogger redirects codegen package logs into logger's field set.
func SetLogger(logger *logrus.Entry) {
	cgLogger = logger.WithFields(logrus.Fields{})
}

// HostReg names a System V AMD64 general-purpose register.
type HostReg int

const (
	RAX HostReg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	NoHostReg HostReg = -1
)

func (r HostReg) String() string {
	names := [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	if int(r) >= 0 && int(r) < len(names) {
		return names[r]
	}
	return "invalid"
}

// GuestStateReg is the callee-saved host register that holds the guest-state
// pointer for the lifetime of the compiled body (spec.md §4.3.1).
const GuestStateReg = R15

// ScratchReg is reserved for loading spilled operands, storing spilled
// destinations, and materializing immediates whose destination is a spill
// slot. It is never assignable to any vreg (spec.md §4.3.1).
const ScratchReg = R11

// calleeSaved lists the registers pushed in the prologue, in push order
// (spec.md §4.3.3); popped in reverse in the epilogue.
var calleeSaved = []HostReg{RBX, RBP, R12, R13, R14, GuestStateReg}

// freePool is the ordered set of host registers available to the linear
// allocator, excluding RSP (stack pointer), GuestStateReg, and ScratchReg.
var freePool = []HostReg{RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R10, R12, R13, R14, RBP}

// Location is where a vreg's value lives after allocation: either a host
// register or a numbered spill slot (mutually exclusive).
type Location struct {
	IsReg bool
	Reg   HostReg
	Slot  int // spill slot index, valid when !IsReg
}

// CodegenError surfaces register-allocator/emission failures (spec.md §7).
type CodegenError struct {
	Kind string // "pool_exhausted", "unhandled_op"
	Op   ir.OpKind
}

func (e *CodegenError) Error() string {
	return errors.Errorf("codegen: %s (op=%s)", e.Kind, e.Op).Error()
}

// Allocation is the result of Allocate: a Location per vreg plus the total
// spill-area size in bytes (a multiple of 8).
type Allocation struct {
	Locations    []Location // indexed by VReg
	SpillSlots   int
	SpillAreaLen int // bytes, multiple of 8
}

func (a *Allocation) LocationOf(v ir.VReg) Location {
	if int(v) >= len(a.Locations) {
		return Location{IsReg: false, Slot: 0}
	}
	return a.Locations[v]
}

// Allocate walks f in program order and assigns each vreg a host register
// from freePool or a spill slot, as described in spec.md §4.3.1. There is
// no theoretical exhaustion case: every vreg not holding a host register
// simply spills, so CodegenError{"pool_exhausted"} is reserved for a future
// allocator variant with a hard register budget and is not raised by this
// linear-scan implementation. Decisions are stable: once assigned, a vreg's
// location never changes.
func Allocate(f *ir.Function) (*Allocation, error) {
	n := f.NumVRegs()
	alloc := &Allocation{Locations: make([]Location, n)}
	assigned := make([]bool, n)

	freeIdx := 0
	nextSpill := 0

	assign := func(v ir.VReg) {
		if assigned[v] {
			return
		}
		assigned[v] = true
		if freeIdx < len(freePool) {
			alloc.Locations[v] = Location{IsReg: true, Reg: freePool[freeIdx]}
			freeIdx++
			return
		}
		alloc.Locations[v] = Location{IsReg: false, Slot: nextSpill}
		nextSpill++
	}

	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for _, a := range in.Args {
				if !a.IsImm {
					assign(a.VReg)
				}
			}
			if in.Dst != ir.NoVReg {
				assign(in.Dst)
			}
		}
	}

	alloc.SpillSlots = nextSpill
	alloc.SpillAreaLen = nextSpill * 8
	if alloc.SpillAreaLen%8 != 0 {
		alloc.SpillAreaLen += 8 - alloc.SpillAreaLen%8
	}
	cgLogger.WithField("spill_slots", nextSpill).Debug("register allocation complete")
	return alloc, nil
}
