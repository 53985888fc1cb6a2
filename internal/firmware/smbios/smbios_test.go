// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package smbios

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"
)

func TestGenerateWritesTablesAndBothEntryPoints(t *testing.T) {
	assert := assert.New(t)
	buf := make([]byte, 1<<20)
	mem := firmware.NewGuestMemory(buf)
	cfg := DefaultConfig()

	assert.NoError(Generate(mem, cfg, 2, 2))

	a := cfg.Addrs
	assert.Equal("_SM_", string(buf[a.Entry2x:a.Entry2x+4]))
	assert.Equal(firmware.LE32(uint32(a.Tables)), buf[a.Entry2x+24:a.Entry2x+28])
	assert.Equal("_SM3_", string(buf[a.Entry3x:a.Entry3x+5]))
	assert.Equal(firmware.LE64(a.Tables), buf[a.Entry3x+16:a.Entry3x+24])
	assert.EqualValues(0, buf[a.Tables]) // first structure: type 0, BIOS Information
}

func Test2xEntryPointChecksumsAreIndependent(t *testing.T) {
	assert := assert.New(t)
	ep := build2xEntryPoint(512, 0x000F1000, 9)
	assert.Len(ep, 31)
	assert.Equal("_SM_", string(ep[0:4]))
	assert.Equal("_DMI_", string(ep[16:21]))

	var sum1 byte
	for _, b := range ep[0:16] {
		sum1 += b
	}
	assert.Zero(sum1)

	var sum2 byte
	for _, b := range ep[16:31] {
		sum2 += b
	}
	assert.Zero(sum2)
}

func Test3xEntryPointSingleChecksum(t *testing.T) {
	assert := assert.New(t)
	ep := build3xEntryPoint(512, 0x000F1000)
	assert.Len(ep, 24)
	assert.Equal("_SM3_", string(ep[0:5]))

	var sum byte
	for _, b := range ep {
		sum += b
	}
	assert.Zero(sum)
}

func TestStringPoolDoubleNullTerminated(t *testing.T) {
	assert := assert.New(t)
	pool := stringPool("hello", "world")
	assert.Equal([]byte("hello\x00world\x00\x00"), pool)
}

func TestStringPoolEmptyIsDoubleNull(t *testing.T) {
	assert := assert.New(t)
	pool := stringPool()
	assert.Equal([]byte{0, 0}, pool)
}

func TestType127EndOfTableHasNoBody(t *testing.T) {
	assert := assert.New(t)
	s := buildType127(5)
	assert.Equal([]byte{127, 4, 5, 0, 0, 0}, s)
}

func TestBuilderAssignsDistinctHandles(t *testing.T) {
	assert := assert.New(t)
	b := newBuilder()
	h1 := b.allocHandle()
	h2 := b.allocHandle()
	assert.NotEqual(h1, h2)
}
