// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package codegen

import "github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/ir"

// estimateTable mirrors the latency weights from spec.md §4.2.2 point 4,
// reused here as the cheap per-op cost table for tier-up decisions
// (spec.md §4.3.4).
func estimateTable(op ir.OpKind) int {
	switch op {
	case ir.OpMulS, ir.OpMulU:
		return 3
	case ir.OpDivS, ir.OpDivU:
		return 20
	case ir.OpLoad8, ir.OpLoad16, ir.OpLoad32, ir.OpLoad64,
		ir.OpStore8, ir.OpStore16, ir.OpStore32, ir.OpStore64:
		return 4
	case ir.OpCall, ir.OpCallIndirect:
		return 5
	case ir.OpExit:
		return 10
	default:
		return 1
	}
}

// EstimateCycles sums the per-op cost table across every block of f,
// exposed to the caller as a tier-up heuristic (spec.md §4.3.4).
func EstimateCycles(f *ir.Function) int {
	total := 0
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			total += estimateTable(in.Op)
		}
	}
	return total
}
