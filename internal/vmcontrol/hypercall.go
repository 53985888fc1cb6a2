// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package vmcontrol

// HypercallResult carries the value written back to the guest's RAX after
// a hypercall exit (spec.md §5.4).
type HypercallResult struct {
	Value uint64
}

// Hypercall numbers, keyed off the guest's RAX value at the hypercall
// instruction (spec.md §5.4): 0 is a no-op probe, 1 reads the host TSC, 2
// returns the current vCPU id, and anything else returns the sentinel
// max value used to signal "unsupported" to the guest.
const (
	HypercallNoop   = 0
	HypercallTSC    = 1
	HypercallVCPUID = 2
)

// UnsupportedSentinel is returned for any hypercall number this
// dispatcher does not recognize.
const UnsupportedSentinel = ^uint64(0)

// TSCReader abstracts the timestamp-counter source so DispatchHypercall
// stays deterministic and testable; production wiring supplies the real
// RDTSC-backed reader.
var TSCReader func() uint64 = func() uint64 { return 0 }

// CurrentVCPUID is consulted by HypercallVCPUID; production wiring sets
// this per-entry before calling into a VMCS/VMCB Run/Launch/Resume.
var CurrentVCPUID uint64

// DispatchHypercall implements the synchronous hypercall table from
// spec.md §5.4.
func DispatchHypercall(rax uint64) HypercallResult {
	switch rax {
	case HypercallNoop:
		return HypercallResult{Value: 0}
	case HypercallTSC:
		return HypercallResult{Value: TSCReader()}
	case HypercallVCPUID:
		return HypercallResult{Value: CurrentVCPUID}
	default:
		return HypercallResult{Value: UnsupportedSentinel}
	}
}
