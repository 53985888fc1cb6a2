// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package ir

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Verify checks the SSA invariants enumerated in spec.md §8 (properties 1
// and 2) and returns every violation found, collected via go-multierror
// rather than stopping at the first one -- useful when Verify is run over
// a partially built function retained after an IRBuildError.
func Verify(f *Function) error {
	var result *multierror.Error

	defined := map[VReg]struct{}{}
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Dst != NoVReg {
				if _, dup := defined[in.Dst]; dup {
					result = multierror.Append(result, errors.Errorf("vreg v%d defined more than once", in.Dst))
				}
				defined[in.Dst] = struct{}{}
			}
		}
	}

	for _, b := range f.Blocks {
		defSoFar := map[VReg]struct{}{}
		for idx, in := range b.Instrs {
			for _, a := range in.Args {
				if a.IsImm {
					continue
				}
				if _, ok := defSoFar[a.VReg]; !ok {
					if _, okGlobal := defined[a.VReg]; !okGlobal {
						result = multierror.Append(result, errors.Errorf(
							"block %d instr %d: use of v%d before any definition", b.ID, idx, a.VReg))
					}
					// A use of a vreg defined in a different block is
					// accepted here without a dominance check; no
					// dominance computation is done. Same-block
					// forward-use is always an error.
					if _, definedLaterInBlock := blockDefinesAt(b, a.VReg, idx); definedLaterInBlock {
						result = multierror.Append(result, errors.Errorf(
							"block %d instr %d: use of v%d before its same-block definition", b.ID, idx, a.VReg))
					}
				}
			}
			if in.Dst != NoVReg {
				defSoFar[in.Dst] = struct{}{}
			}

			isLast := idx == len(b.Instrs)-1
			if in.Flags.Has(FlagTerminator) && !isLast {
				result = multierror.Append(result, errors.Errorf(
					"block %d instr %d: terminator is not the last instruction", b.ID, idx))
			}
			if isLast && len(b.Instrs) > 0 && !in.Flags.Has(FlagTerminator) {
				result = multierror.Append(result, errors.Errorf(
					"block %d: last instruction is not flagged as a terminator", b.ID))
			}
		}

		if in := phiOperandMismatch(b); in != "" {
			result = multierror.Append(result, errors.New(in))
		}
	}

	return result.ErrorOrNil()
}

// blockDefinesAt reports whether vreg v is defined later in block b, at or
// after index idx -- i.e. the use at idx is a forward reference within the
// same block, which SSA forbids.
func blockDefinesAt(b *BasicBlock, v VReg, idx int) (int, bool) {
	for i := idx; i < len(b.Instrs); i++ {
		if b.Instrs[i].Dst == v {
			return i, true
		}
	}
	return 0, false
}

// phiOperandMismatch checks that every OpPhi's operand count matches its
// predecessor count (spec.md §3's SSA invariant on phi operands).
func phiOperandMismatch(b *BasicBlock) string {
	for _, in := range b.Instrs {
		if in.Op != OpPhi {
			continue
		}
		if len(in.Args) != len(b.Preds) {
			return errors.Errorf("block %d: phi has %d operands but %d predecessors", b.ID, len(in.Args), len(b.Preds)).Error()
		}
	}
	return ""
}
