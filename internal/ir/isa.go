// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package ir

import "github.com/intel-go/cpuid"

// ISALevel tags the minimum instruction-set requirement computed by
// RequiredISA (spec.md §4.2.3). Baseline is SSE2; wider vector ops (not yet
// modeled in this IR, reserved for future SIMD lowering) would narrow to
// whatever the host advertises.
type ISALevel int

const (
	ISABaseline ISALevel = iota // SSE2
	ISASSE41
	ISAAVX
	ISAAVX2
)

func (l ISALevel) String() string {
	switch l {
	case ISASSE41:
		return "sse4.1"
	case ISAAVX:
		return "avx"
	case ISAAVX2:
		return "avx2"
	default:
		return "sse2"
	}
}

// RequiredISA inspects every op in f and returns the minimum ISA level the
// compiled block needs. The current op set (scalar GPR arithmetic, loads/
// stores, control flow, specials) never requires more than the baseline;
// the pass exists so a caller can tag compiled blocks with an "execute only
// if ISA >= required" precondition once vector lowering is added, and so it
// can be narrowed against what the host actually advertises via
// HostSatisfies.
func RequiredISA(f *Function) ISALevel {
	required := ISABaseline
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if lvl := opISALevel(in.Op); lvl > required {
				required = lvl
			}
		}
	}
	return required
}

func opISALevel(op OpKind) ISALevel {
	// No op currently lowers to anything beyond the SSE2 baseline; this
	// switch is the extension point for future vector ops.
	switch op {
	default:
		return ISABaseline
	}
}

// HostSatisfies reports whether the running host's advertised CPU features
// (via github.com/intel-go/cpuid) meet required. SSE2 is assumed present
// (it is part of the x86_64 baseline ABI); narrower hosts than that are not
// supported targets for this JIT.
func HostSatisfies(required ISALevel) bool {
	switch required {
	case ISASSE41:
		return cpuid.HasFeature(cpuid.SSE4_1)
	case ISAAVX:
		return cpuid.HasFeature(cpuid.AVX)
	case ISAAVX2:
		return cpuid.HasExtendedFeature(cpuid.AVX2)
	default:
		return true
	}
}
