// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package vmcontrol implements the virtualization control structures from
// spec.md §5: VMCS (Intel VT-x style) and VMCB (AMD-V style) state
// machines, their control/state-save areas, intercept bitmaps, and the
// hypercall dispatch table. Both flavors share the lifecycle
// Created->Idle->Active->Launched/Running->Clear.
package vmcontrol

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/gueststate"
)

var vmLogger = logrus.WithField("source", "hvcore/vmcontrol")

// SetLogger redirects vmcontrol package logs into logger's field set.
func SetLogger(logger *logrus.Entry) {
	vmLogger = logger.WithFields(logrus.Fields{})
}

// State is a control-structure lifecycle state (spec.md §5.1).
type State int

const (
	StateCreated State = iota
	StateIdle
	StateActive
	StateLaunched
	StateRunning
	StateClear
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateLaunched:
		return "launched"
	case StateRunning:
		return "running"
	case StateClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Flavor distinguishes the Intel and AMD control-structure shapes.
type Flavor int

const (
	FlavorVMX Flavor = iota
	FlavorSVM
)

// VmxError reports an invalid VMCS lifecycle transition or field access
// (spec.md §5.1's "launch before clear" / "resume before launch" cases).
type VmxError struct {
	Op    string
	State State
}

func (e *VmxError) Error() string {
	return "vmcontrol: vmx " + e.Op + " invalid in state " + e.State.String()
}

// SvmError is the VMCB analogue of VmxError.
type SvmError struct {
	Op    string
	State State
}

func (e *SvmError) Error() string {
	return "vmcontrol: svm " + e.Op + " invalid in state " + e.State.String()
}

// ControlArea holds the intercept configuration common to both flavors:
// which exit reasons trap to the host (spec.md §5.2).
type ControlArea struct {
	InterceptIO       bool
	InterceptMSR      bool
	InterceptCPUID    bool
	InterceptHLT      bool
	InterceptRDTSC    bool
	InterceptINTR     bool
	NestedPagingEnable bool
	ASID              uint32
}

// StateSaveArea is the guest register snapshot packed/unpacked around VM
// entry/exit, backed by the same layout codegen writes through
// (internal/gueststate.Area), per spec.md §4.4.1's entry-path contract.
type StateSaveArea struct {
	Guest gueststate.Area
	CR0   uint64
	CR3   uint64
	CR4   uint64
	EFER  uint64
}

// VMCS is one Intel-style virtual-machine control structure. Per spec.md
// §5's concurrency model, readers (state introspection) may overlap;
// writers (entry, exit, field writes) are exclusive, hence an RWMutex
// rather than a plain Mutex.
type VMCS struct {
	mu      sync.RWMutex
	state   State
	control ControlArea
	save    StateSaveArea
	vpid    uint16
}

// NewVMCS returns a freshly created, unlaunched VMCS.
func NewVMCS(vpid uint16) *VMCS {
	return &VMCS{state: StateCreated, vpid: vpid}
}

func (v *VMCS) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Clear transitions Created/Idle/Active/Launched/Running -> Clear,
// discarding any launched state (spec.md §5.1 "vmclear").
func (v *VMCS) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateClear
}

// Activate transitions Created or Clear -> Idle -> Active ("vmptrld" then
// a successful "vmwrite" sequence, spec.md §5.1).
func (v *VMCS) Activate(control ControlArea, save StateSaveArea) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateCreated && v.state != StateClear {
		return &VmxError{Op: "activate", State: v.state}
	}
	v.control = control
	v.save = save
	v.state = StateActive
	return nil
}

// Launch performs the first VM entry ("vmlaunch"): only legal from Active.
func (v *VMCS) Launch(ctx *Context) (ExitInfo, error) {
	v.mu.Lock()
	if v.state != StateActive {
		st := v.state
		v.mu.Unlock()
		return ExitInfo{}, &VmxError{Op: "launch", State: st}
	}
	v.state = StateLaunched
	save := v.save
	control := v.control
	v.mu.Unlock()

	info := doVMEntry(ctx, FlavorVMX, control, &save)

	v.mu.Lock()
	v.save = save
	v.state = StateRunning
	v.mu.Unlock()
	return info, nil
}

// Resume performs a subsequent VM entry ("vmresume"): only legal from
// Running (i.e. after at least one Launch).
func (v *VMCS) Resume(ctx *Context) (ExitInfo, error) {
	v.mu.Lock()
	if v.state != StateRunning {
		st := v.state
		v.mu.Unlock()
		return ExitInfo{}, &VmxError{Op: "resume", State: st}
	}
	save := v.save
	control := v.control
	v.mu.Unlock()

	info := doVMEntry(ctx, FlavorVMX, control, &save)

	v.mu.Lock()
	v.save = save
	v.mu.Unlock()
	return info, nil
}

// VMCB is one AMD-style virtual-machine control block. It additionally
// carries the Global Interrupt Flag (GIF), which VMX has no analogue for
// (spec.md §5.3): while GIF is clear, all interrupts (including NMI) are
// masked regardless of RFLAGS.IF. Besides STGI/CLGI (here SetGIF), only
// Run changes it: it clears GIF on VM entry and sets it again on VM exit.
// VMCB carries the same reader/writer split as VMCS (spec.md §5).
type VMCB struct {
	mu      sync.RWMutex
	state   State
	control ControlArea
	save    StateSaveArea
	gif     bool
	asid    uint32
}

// NewVMCB returns a freshly created VMCB with GIF set, matching the
// AMD architectural reset value.
func NewVMCB(asid uint32) *VMCB {
	return &VMCB{state: StateCreated, gif: true, asid: asid}
}

func (v *VMCB) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// GIF reports the current Global Interrupt Flag value.
func (v *VMCB) GIF() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.gif
}

// SetGIF implements CLGI (false) / STGI (true).
func (v *VMCB) SetGIF(set bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gif = set
}

func (v *VMCB) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateClear
}

func (v *VMCB) Activate(control ControlArea, save StateSaveArea) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateCreated && v.state != StateClear {
		return &SvmError{Op: "activate", State: v.state}
	}
	v.control = control
	v.save = save
	v.state = StateActive
	return nil
}

// Run performs a VMRUN: legal from Active (first entry) or Running
// (subsequent entries) alike, unlike VMX's launch/resume split (spec.md
// §5.3).
func (v *VMCB) Run(ctx *Context) (ExitInfo, error) {
	v.mu.Lock()
	if v.state != StateActive && v.state != StateRunning {
		st := v.state
		v.mu.Unlock()
		return ExitInfo{}, &SvmError{Op: "vmrun", State: st}
	}
	if !v.gif {
		st := v.state
		v.mu.Unlock()
		vmLogger.Warn("vmrun attempted while gif clear")
		return ExitInfo{}, &SvmError{Op: "vmrun_gif_clear", State: st}
	}
	wasActive := v.state == StateActive
	v.state = StateRunning
	v.gif = false // VM entry clears GIF architecturally (spec.md §4.4.1)
	save := v.save
	control := v.control
	v.mu.Unlock()

	if wasActive {
		vmLogger.Debug("first vmrun entry")
	}
	info := doVMEntry(ctx, FlavorSVM, control, &save)

	v.mu.Lock()
	v.save = save
	v.gif = true // VM exit sets GIF architecturally (spec.md §4.4.1)
	v.mu.Unlock()
	return info, nil
}
