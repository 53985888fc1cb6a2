// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package vmcontrol

import (
	"context"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/metrics"
	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/trace"
)

// ExitReason enumerates why control returned to the host, mirrored from
// the compiled-code exit kinds of spec.md §4.3.3/§4.4.2 plus reasons
// (CPUID, RDTSC, NPT fault) that decodeExitInfo never produces from a
// JIT-compiled exit value.
type ExitReason int

const (
	ExitReasonContinue ExitReason = iota
	ExitReasonHLT
	ExitReasonIOIn
	ExitReasonIOOut
	ExitReasonCPUID
	ExitReasonRDTSC
	ExitReasonInterrupt
	ExitReasonException
	ExitReasonMMIO
	ExitReasonNPTFault
	ExitReasonHypercall
	ExitReasonShutdown
)

// ExitInfo is the result of a VM entry: why it exited and the payload
// data relevant to that reason.
type ExitInfo struct {
	Reason    ExitReason
	RIP       uint64
	Payload   uint64
	Hypercall HypercallResult
}

// Entry is the function signature of the actual (host-specific) low-level
// VM-entry primitive: execute compiled guest code described by
// entryPoint starting from *save, returning the raw encoded exit value
// defined by internal/codegen's exit-code round-trip law. Production
// wiring supplies this from the platform's VT-x/SVM ioctl layer; it is a
// field (not a package-level func) so tests can substitute a fake.
type Entry func(entryPoint uintptr, save *StateSaveArea) uint64

// Context carries everything a VM entry needs beyond the control
// structure itself: the compiled entry point to run and the low-level
// entry primitive.
type Context struct {
	context.Context
	EntryPoint uintptr
	DoEntry    Entry
}

// doVMEntry performs one VM entry/exit round trip, decoding the compiled
// code's exit value (spec.md §4.3.3), dispatching hypercalls synchronously
// (spec.md §5.4), and recording metrics/tracing around the whole
// transition.
func doVMEntry(ctx *Context, flavor Flavor, control ControlArea, save *StateSaveArea) ExitInfo {
	spanCtx, span := trace.Start(ctx.Context, "hvcore.vmcontrol.entry")
	defer span.End()
	_ = spanCtx

	kindLabel := "vmx"
	if flavor == FlavorSVM {
		kindLabel = "svm"
	}

	raw := ctx.DoEntry(ctx.EntryPoint, save)
	info := decodeExitInfo(raw)

	if info.Reason == ExitReasonHypercall {
		info.Hypercall = DispatchHypercall(save.Guest.GPR[gprRAX])
		save.Guest.GPR[gprRAX] = info.Hypercall.Value
	}

	metrics.VMEntries.WithLabelValues(kindLabel, "ok").Inc()
	metrics.VMExits.WithLabelValues(exitReasonLabel(info.Reason)).Inc()
	return info
}

const gprRAX = 0

func exitReasonLabel(r ExitReason) string {
	switch r {
	case ExitReasonContinue:
		return "continue"
	case ExitReasonHLT:
		return "hlt"
	case ExitReasonIOIn:
		return "io_in"
	case ExitReasonIOOut:
		return "io_out"
	case ExitReasonCPUID:
		return "cpuid"
	case ExitReasonRDTSC:
		return "rdtsc"
	case ExitReasonInterrupt:
		return "interrupt"
	case ExitReasonException:
		return "exception"
	case ExitReasonMMIO:
		return "mmio"
	case ExitReasonNPTFault:
		return "npt_fault"
	case ExitReasonHypercall:
		return "hypercall"
	case ExitReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// decodeExitInfo inverts the codegen exit-code encoding: high byte is the
// exit kind tag, low 56 bits the guest RIP or a kind-specific payload
// (spec.md §4.3.3). The kind tag values mirror
// internal/codegen.ExitKind's iota order exactly (Continue, Halt,
// Interrupt, IORead, IOWrite, MMIO, Hypercall, Reset, Exception);
// vmcontrol does not import codegen directly since codegen sits above it
// in the build (codegen produces the bytes vmcontrol's Entry primitive
// executes), so the tag values are duplicated here rather than shared.
func decodeExitInfo(raw uint64) ExitInfo {
	kind := raw >> 56
	payload := raw & 0x00FFFFFFFFFFFFFF

	switch kind {
	case 0:
		return ExitInfo{Reason: ExitReasonContinue, RIP: payload}
	case 1:
		return ExitInfo{Reason: ExitReasonHLT}
	case 2:
		return ExitInfo{Reason: ExitReasonInterrupt, Payload: payload}
	case 3:
		return ExitInfo{Reason: ExitReasonIOIn, Payload: payload}
	case 4:
		return ExitInfo{Reason: ExitReasonIOOut, Payload: payload}
	case 5:
		return ExitInfo{Reason: ExitReasonMMIO, Payload: payload}
	case 6:
		return ExitInfo{Reason: ExitReasonHypercall, Payload: payload}
	case 7:
		return ExitInfo{Reason: ExitReasonShutdown, RIP: payload}
	case 8:
		return ExitInfo{Reason: ExitReasonException, Payload: payload}
	default:
		return ExitInfo{Reason: ExitReasonException, Payload: payload}
	}
}
