// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package codegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/decoder"
	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/ir"
)

func buildFunction(t *testing.T, code []byte, rip uint64) *ir.Function {
	t.Helper()
	instrs, err := decoder.DecodeBlock(code, rip, 32)
	assert.NoError(t, err)
	f, err := ir.Build(instrs, 0)
	assert.NoError(t, err)
	return f
}

func TestAllocateAssignsEveryVReg(t *testing.T) {
	assert := assert.New(t)
	f := buildFunction(t, []byte{0xB8, 0x07, 0x00, 0x00, 0x00, 0xC3}, 0x1000)

	alloc, err := Allocate(f)
	assert.NoError(err)
	for v := ir.VReg(0); int(v) < f.NumVRegs(); v++ {
		loc := alloc.LocationOf(v)
		assert.True(loc.IsReg || loc.Slot >= 0)
	}
}

func TestGenerateProducesNonEmptyCode(t *testing.T) {
	assert := assert.New(t)
	f := buildFunction(t, []byte{
		0xB8, 0x02, 0x00, 0x00, 0x00,
		0x83, 0xC0, 0x03,
		0xC3,
	}, 0)

	alloc, err := Allocate(f)
	assert.NoError(err)

	res, err := Generate(context.Background(), f, alloc)
	assert.NoError(err)
	assert.NotEmpty(res.Code)
	assert.Greater(res.EstimatedCycles, 0)
}

func TestExitEncodeDecodeRoundTrip(t *testing.T) {
	assert := assert.New(t)
	cases := []struct {
		kind ExitKind
		rip  uint64
	}{
		{ExitKindContinue, 0x1234},
		{ExitKindHalt, 0},
		{ExitKindInterrupt, 13},
		{ExitKindHypercall, 2},
		{ExitKindReset, 0},
	}
	for _, c := range cases {
		encoded := EncodeExit(c.kind, c.rip)
		gotKind, gotPayload := DecodeExit(encoded)
		assert.Equal(c.kind, gotKind)
		assert.Equal(c.rip&((1<<56)-1), gotPayload)
	}
}

func TestEncodeExitPayloadNeverCorruptsKindByte(t *testing.T) {
	assert := assert.New(t)
	encoded := EncodeExit(ExitKindIORead, 0xFFFFFFFFFFFFFF)
	kind, payload := DecodeExit(encoded)
	assert.Equal(ExitKindIORead, kind)
	assert.EqualValues(0x00FFFFFFFFFFFFFF, payload)
}

func TestGenerateLowersJccConditionCode(t *testing.T) {
	assert := assert.New(t)
	// mov eax, 1 ; jne +0
	f := buildFunction(t, []byte{0xB8, 0x01, 0x00, 0x00, 0x00, 0x75, 0x00}, 0)

	alloc, err := Allocate(f)
	assert.NoError(err)

	res, err := Generate(context.Background(), f, alloc)
	assert.NoError(err)
	assert.NotEmpty(res.Code)

	// jne's condition code is 5 (NE/NZ); the lowered SETcc opcode byte
	// must be 0x90+5 = 0x95 (setne), not the hardcoded 0x94 (sete) a
	// fixed-condition-code bug would emit.
	foundSetcc := false
	for i := 0; i+2 < len(res.Code); i++ {
		if res.Code[i] == 0x0F && (res.Code[i+1]&0xF0) == 0x90 {
			foundSetcc = true
			assert.EqualValues(0x95, res.Code[i+1])
		}
	}
	assert.True(foundSetcc, "expected a SETcc opcode in the generated code")
}

func TestEstimateCyclesAccountsForEveryInstruction(t *testing.T) {
	assert := assert.New(t)
	f := buildFunction(t, []byte{0xB8, 0x01, 0x00, 0x00, 0x00, 0xC3}, 0)
	cycles := EstimateCycles(f)
	assert.Greater(cycles, 0)
}
