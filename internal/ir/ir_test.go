// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/decoder"
)

func decodeAll(t *testing.T, code []byte, rip uint64) []decoder.DecodedInstr {
	t.Helper()
	instrs, err := decoder.DecodeBlock(code, rip, 32)
	assert.NoError(t, err)
	return instrs
}

func TestBuildMovRet(t *testing.T) {
	assert := assert.New(t)
	// mov eax, 5 ; ret
	code := []byte{0xB8, 0x05, 0x00, 0x00, 0x00, 0xC3}
	instrs := decodeAll(t, code, 0x1000)

	f, err := Build(instrs, 0)
	assert.NoError(err)
	assert.NoError(Verify(f))
	assert.Equal(2, f.Meta.GuestInstrCount)
}

func TestBuildEmptyInstrsErrors(t *testing.T) {
	assert := assert.New(t)
	_, err := Build(nil, 0)
	assert.Error(err)
	var buildErr *IRBuildError
	assert.ErrorAs(err, &buildErr)
	assert.Equal("unreachable_block", buildErr.Kind)
}

func TestBuildRespectsInstrCap(t *testing.T) {
	assert := assert.New(t)
	code := append(
		append([]byte{0xB8, 0x01, 0x00, 0x00, 0x00}, []byte{0xB8, 0x02, 0x00, 0x00, 0x00}...),
		0xC3,
	)
	instrs := decodeAll(t, code, 0)
	_, err := Build(instrs, 1)
	assert.Error(err)
	var buildErr *IRBuildError
	assert.ErrorAs(err, &buildErr)
	assert.Equal("instr_cap_exceeded", buildErr.Kind)
}

func TestOptimizeFoldsConstantAdd(t *testing.T) {
	assert := assert.New(t)
	// mov eax, 2 ; add eax, 3 ; ret
	code := []byte{
		0xB8, 0x02, 0x00, 0x00, 0x00,
		0x83, 0xC0, 0x03,
		0xC3,
	}
	instrs := decodeAll(t, code, 0)
	f, err := Build(instrs, 0)
	assert.NoError(err)

	Optimize(f)
	assert.NoError(Verify(f))

	folded := false
	for _, in := range f.Block(f.EntryBlockID).Instrs {
		if in.Op == OpConst && in.Args[0].Imm == 5 {
			folded = true
		}
	}
	assert.True(folded, "add eax, 3 after mov eax, 2 folds to const 5")
}

func TestBuildSplitsBlockAfterMidStreamExit(t *testing.T) {
	assert := assert.New(t)
	// out 0x80, al ; mov eax, 1 ; ret
	// OUT is not a decoder terminator (spec.md §4.1) but does end the IR
	// block (spec.md §4.2.1), so the mov/ret that follow in the same
	// decoded sequence must land in a fresh block.
	code := append([]byte{0xE6, 0x80}, []byte{0xB8, 0x01, 0x00, 0x00, 0x00, 0xC3}...)
	instrs := decodeAll(t, code, 0x1000)
	assert.Len(instrs, 3)

	f, err := Build(instrs, 0)
	assert.NoError(err)
	assert.NoError(Verify(f))
	assert.Greater(len(f.Blocks), 1)
}

func TestBuildRoutesCpuidThroughExit(t *testing.T) {
	assert := assert.New(t)
	// cpuid ; ret
	code := []byte{0x0F, 0xA2, 0xC3}
	instrs := decodeAll(t, code, 0x2000)
	assert.Len(instrs, 2)

	f, err := Build(instrs, 0)
	assert.NoError(err)
	assert.NoError(Verify(f))
}

func TestBuildMarksBackwardJccAsLoop(t *testing.T) {
	assert := assert.New(t)
	// at 0x1000: jne -2 (branches back to itself)
	code := []byte{0x75, 0xFE}
	instrs := decodeAll(t, code, 0x1000)

	f, err := Build(instrs, 0)
	assert.NoError(err)
	assert.NoError(Verify(f))
	assert.True(f.Meta.IsLoop)
	assert.Equal(1, f.Meta.LoopDepth)
}

func TestBuildForwardJccIsNotALoop(t *testing.T) {
	assert := assert.New(t)
	// je +2 (forward branch)
	code := []byte{0x74, 0x02}
	instrs := decodeAll(t, code, 0x1000)

	f, err := Build(instrs, 0)
	assert.NoError(err)
	assert.False(f.Meta.IsLoop)
	assert.Zero(f.Meta.LoopDepth)
}

func TestEliminateDeadCodeShrinksBlock(t *testing.T) {
	assert := assert.New(t)
	code := []byte{0xB8, 0x09, 0x00, 0x00, 0x00, 0xC3}
	instrs := decodeAll(t, code, 0)
	f, err := Build(instrs, 0)
	assert.NoError(err)

	before := len(f.Block(f.EntryBlockID).Instrs)
	EliminateDeadCode(f)
	after := len(f.Block(f.EntryBlockID).Instrs)
	assert.Less(after, before)
	assert.NoError(Verify(f))
}
