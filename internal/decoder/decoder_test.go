// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeMovImm32(t *testing.T) {
	assert := assert.New(t)
	// mov eax, 42
	code := []byte{0xB8, 0x2A, 0x00, 0x00, 0x00}
	di, err := Decode(code, 0x1000)
	assert.NoError(err)
	assert.Equal(MnemMov, di.Mnemonic)
	assert.Equal(2, di.NumOps)
	assert.Equal(OperandReg, di.Operands[0].Kind)
	assert.Equal(0, di.Operands[0].RegIndex)
	assert.Equal(OperandImm, di.Operands[1].Kind)
	assert.EqualValues(42, di.Operands[1].Imm)
	assert.Equal(5, di.Length)
}

func TestDecodeMovImm64WithRexW(t *testing.T) {
	assert := assert.New(t)
	// REX.W + mov rax, imm64 (the REX.W form reads a full 8-byte immediate)
	code := []byte{0x48, 0xB8, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	di, err := Decode(code, 0)
	assert.NoError(err)
	assert.Equal(8, di.OperandSize)
	assert.EqualValues(1, di.Operands[1].Imm)
}

func TestDecodeRet(t *testing.T) {
	assert := assert.New(t)
	di, err := Decode([]byte{0xC3}, 0x2000)
	assert.NoError(err)
	assert.Equal(MnemRet, di.Mnemonic)
	assert.True(di.IsTerminator)
	assert.Equal(1, di.Length)
}

func TestDecodeHlt(t *testing.T) {
	assert := assert.New(t)
	di, err := Decode([]byte{0xF4}, 0)
	assert.NoError(err)
	assert.Equal(MnemHlt, di.Mnemonic)
	assert.True(di.IsTerminator)
}

func TestDecodeTruncated(t *testing.T) {
	assert := assert.New(t)
	_, err := Decode([]byte{0xB8, 0x01}, 0)
	assert.Error(err)
	var decErr *DecoderError
	assert.ErrorAs(err, &decErr)
	assert.Equal("truncated", decErr.Kind)
}

func TestDecodeEmptyInput(t *testing.T) {
	assert := assert.New(t)
	_, err := Decode(nil, 0)
	assert.Error(err)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	assert := assert.New(t)
	_, err := Decode([]byte{0x0F, 0xFF}, 0)
	assert.Error(err)
}

func TestDecodeGroup1AdcIsUnknownOpcode(t *testing.T) {
	assert := assert.New(t)
	// adc eax, 1 (0x83 /2)
	_, err := Decode([]byte{0x83, 0xD0, 0x01}, 0)
	assert.Error(err)
	var decErr *DecoderError
	assert.ErrorAs(err, &decErr)
	assert.Equal("unknown_opcode", decErr.Kind)
}

func TestDecodeGroup1SbbIsUnknownOpcode(t *testing.T) {
	assert := assert.New(t)
	// sbb eax, 1 (0x83 /3)
	_, err := Decode([]byte{0x83, 0xD8, 0x01}, 0)
	assert.Error(err)
	var decErr *DecoderError
	assert.ErrorAs(err, &decErr)
	assert.Equal("unknown_opcode", decErr.Kind)
}

func TestDecodeGroup1AndStillWorks(t *testing.T) {
	assert := assert.New(t)
	// and eax, 1 (0x83 /4)
	di, err := Decode([]byte{0x83, 0xE0, 0x01}, 0)
	assert.NoError(err)
	assert.Equal(MnemAnd, di.Mnemonic)
}

func TestDecodeUnsupportedVEXPrefix(t *testing.T) {
	assert := assert.New(t)
	_, err := Decode([]byte{0xC5, 0xF8, 0x77}, 0)
	assert.Error(err)
	var decErr *DecoderError
	assert.ErrorAs(err, &decErr)
	assert.Equal("unsupported_prefix", decErr.Kind)
}

func TestDecodeJccRel8(t *testing.T) {
	assert := assert.New(t)
	// je +2
	di, err := Decode([]byte{0x74, 0x02}, 0x3000)
	assert.NoError(err)
	assert.Equal(MnemJcc, di.Mnemonic)
	assert.True(di.IsTerminator)
}

func TestDecodeBlockStopsAtTerminator(t *testing.T) {
	assert := assert.New(t)
	// mov eax, 1 ; ret ; (trailing byte never reached)
	code := []byte{0xB8, 0x01, 0x00, 0x00, 0x00, 0xC3, 0x90}
	instrs, err := DecodeBlock(code, 0, 10)
	assert.NoError(err)
	assert.Len(instrs, 2)
	assert.Equal(MnemMov, instrs[0].Mnemonic)
	assert.Equal(MnemRet, instrs[1].Mnemonic)
}

func TestDecodeCpuid(t *testing.T) {
	assert := assert.New(t)
	di, err := Decode([]byte{0x0F, 0xA2}, 0x4000)
	assert.NoError(err)
	assert.Equal(MnemCpuid, di.Mnemonic)
	assert.False(di.IsTerminator)
	assert.Equal(2, di.Length)
}

func TestDecodeRdtsc(t *testing.T) {
	assert := assert.New(t)
	di, err := Decode([]byte{0x0F, 0x31}, 0x4000)
	assert.NoError(err)
	assert.Equal(MnemRdtsc, di.Mnemonic)
	assert.False(di.IsTerminator)
	assert.Equal(2, di.Length)
}

func TestDecodeOutImm8(t *testing.T) {
	assert := assert.New(t)
	// out 0x80, al
	di, err := Decode([]byte{0xE6, 0x80}, 0)
	assert.NoError(err)
	assert.Equal(MnemOut, di.Mnemonic)
	assert.False(di.IsTerminator)
	assert.Equal(OperandImm, di.Operands[0].Kind)
	assert.EqualValues(0x80, di.Operands[0].Imm)
}

func TestDecodeInDX(t *testing.T) {
	assert := assert.New(t)
	// in al, dx
	di, err := Decode([]byte{0xEC}, 0)
	assert.NoError(err)
	assert.Equal(MnemIn, di.Mnemonic)
	assert.False(di.IsTerminator)
	assert.Equal(1, di.Length)
}

func TestDecodeBlockRespectsCapacity(t *testing.T) {
	assert := assert.New(t)
	code := []byte{0x90, 0x90, 0x90, 0x90}
	instrs, err := DecodeBlock(code, 0, 2)
	assert.NoError(err)
	assert.Len(instrs, 2)
}
