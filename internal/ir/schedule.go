// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package ir

// latency is the per-op cost table from spec.md §4.2.2 point 4.
func latency(op OpKind) int {
	switch op {
	case OpMulS, OpMulU:
		return 3
	case OpDivS, OpDivU:
		return 20
	case OpLoad8, OpLoad16, OpLoad32, OpLoad64, OpStore8, OpStore16, OpStore32, OpStore64:
		return 4
	case OpCall, OpCallIndirect:
		return 5
	case OpExit:
		return 10
	default:
		return 1
	}
}

func isMemOp(op OpKind) bool {
	switch op {
	case OpLoad8, OpLoad16, OpLoad32, OpLoad64, OpStore8, OpStore16, OpStore32, OpStore64:
		return true
	default:
		return false
	}
}

func isStoreOp(op OpKind) bool {
	switch op {
	case OpStore8, OpStore16, OpStore32, OpStore64:
		return true
	default:
		return false
	}
}

func hasSideEffectOp(in *Instruction) bool {
	return in.Flags.Has(FlagSideEffect) || in.Op == OpIoIn || in.Op == OpIoOut ||
		in.Op == OpCall || in.Op == OpCallIndirect || in.Op == OpExit || in.Op == OpRet ||
		in.Op == OpCpuid || in.Op == OpRdtsc || in.Op == OpSyscall
}

// Schedule reorders instructions within blocks of length >= 3, preserving
// dependencies, per spec.md §4.2.2 point 4: builds a dependency DAG (RAW via
// last-definer map, memory-ordering edges between any pair of
// store/store-or-load that may alias, side-effect-to-side-effect edges, and
// a control edge from every non-terminator to the block terminator), then
// greedily schedules the ready set ordered by priority (distance-to-
// terminator weighted by latency), ties broken by original order.
func Schedule(f *Function) {
	for _, b := range f.Blocks {
		if len(b.Instrs) < 3 {
			continue
		}
		scheduleBlock(b)
	}
}

func scheduleBlock(b *BasicBlock) {
	n := len(b.Instrs)
	preds := make([][]int, n) // dependency predecessors (must run before i)
	succs := make([][]int, n)

	lastDef := map[VReg]int{}
	var lastStores []int
	var lastSideEffect = -1
	termIdx := n - 1

	addEdge := func(before, after int) {
		preds[after] = append(preds[after], before)
		succs[before] = append(succs[before], after)
	}

	for i := 0; i < n; i++ {
		in := &b.Instrs[i]

		for _, a := range in.Args {
			if !a.IsImm {
				if d, ok := lastDef[a.VReg]; ok && d != i {
					addEdge(d, i)
				}
			}
		}
		if in.Dst != NoVReg {
			lastDef[in.Dst] = i
		}

		if isMemOp(in.Op) {
			for _, prev := range lastStores {
				addEdge(prev, i)
			}
			if isStoreOp(in.Op) {
				lastStores = append(lastStores, i)
			}
		}

		if hasSideEffectOp(in) {
			if lastSideEffect >= 0 {
				addEdge(lastSideEffect, i)
			}
			lastSideEffect = i
		}

		if i != termIdx {
			addEdge(i, termIdx)
		}
	}

	// priority(i) = distance to terminator weighted by latency, computed
	// as the longest weighted path from i to the terminator along succs.
	priority := make([]int, n)
	memo := make([]bool, n)
	var computePriority func(i int) int
	computePriority = func(i int) int {
		if memo[i] {
			return priority[i]
		}
		memo[i] = true
		best := 0
		for _, s := range succs[i] {
			if p := computePriority(s); p+latency(b.Instrs[i].Op) > best {
				best = p + latency(b.Instrs[i].Op)
			}
		}
		priority[i] = best
		return best
	}
	for i := 0; i < n; i++ {
		computePriority(i)
	}

	remainingPreds := make([]int, n)
	for i := 0; i < n; i++ {
		remainingPreds[i] = len(preds[i])
	}

	scheduled := make([]bool, n)
	order := make([]int, 0, n)
	for len(order) < n {
		best := -1
		for i := 0; i < n; i++ {
			if scheduled[i] || remainingPreds[i] > 0 {
				continue
			}
			if best == -1 || priority[i] > priority[best] || (priority[i] == priority[best] && i < best) {
				best = i
			}
		}
		if best == -1 {
			// Dependency cycle should be impossible (DAG by construction);
			// fall back to original order defensively.
			for i := 0; i < n; i++ {
				if !scheduled[i] {
					best = i
					break
				}
			}
		}
		scheduled[best] = true
		order = append(order, best)
		for _, s := range succs[best] {
			remainingPreds[s]--
		}
	}

	newInstrs := make([]Instruction, n)
	for pos, origIdx := range order {
		newInstrs[pos] = b.Instrs[origIdx]
	}
	b.Instrs = newInstrs
}
