// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package codegen

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/ir"

// ExitKind is the bits-63-56 tag of the return-value encoding (spec.md
// §4.3.3).
type ExitKind byte

const (
	ExitKindContinue ExitKind = iota
	ExitKindHalt
	ExitKindInterrupt
	ExitKindIORead
	ExitKindIOWrite
	ExitKindMMIO
	ExitKindHypercall
	ExitKindReset
	ExitKindException
)

func exitKindForReason(k ir.ExitReasonKind) ExitKind {
	switch k {
	case ir.ExitNormal:
		return ExitKindContinue
	case ir.ExitHalt:
		return ExitKindHalt
	case ir.ExitInterrupt:
		return ExitKindInterrupt
	case ir.ExitException:
		return ExitKindException
	case ir.ExitIoRead:
		return ExitKindIORead
	case ir.ExitIoWrite:
		return ExitKindIOWrite
	case ir.ExitMMIO:
		return ExitKindMMIO
	case ir.ExitHypercall:
		return ExitKindHypercall
	case ir.ExitReset:
		return ExitKindReset
	default:
		return ExitKindContinue
	}
}

// payloadBits56 returns bits 55-0 of the return value for a given exit
// reason: the updated guest RIP for a normal continue, or a kind-specific
// payload otherwise.
func payloadBits56(reason ir.ExitReason, rip uint64) uint64 {
	switch reason.Kind {
	case ir.ExitNormal:
		return rip & ((1 << 56) - 1)
	case ir.ExitInterrupt, ir.ExitException:
		return uint64(reason.Vector) & ((1 << 56) - 1)
	case ir.ExitIoRead, ir.ExitIoWrite:
		return (uint64(reason.Port) | uint64(reason.Width)<<16) & ((1 << 56) - 1)
	case ir.ExitMMIO:
		return reason.Addr & ((1 << 56) - 1)
	default:
		return rip & ((1 << 56) - 1)
	}
}

// EncodeExit packs kind into the high byte and rip (or a kind-specific
// payload) into the low 56 bits, per spec.md §4.3.3.
func EncodeExit(kind ExitKind, rip uint64) uint64 {
	return uint64(kind)<<56 | (rip & ((1 << 56) - 1))
}

// DecodeExit is EncodeExit's inverse: it splits a return value into its
// exit kind and payload. encode_exit ∘ decode_exit is the identity
// round-trip law from spec.md §8 for every (kind, rip) with rip < 2^56.
func DecodeExit(v uint64) (ExitKind, uint64) {
	return ExitKind(v >> 56), v & ((1 << 56) - 1)
}
