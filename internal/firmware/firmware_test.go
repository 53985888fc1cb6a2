// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package firmware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumACPIMakesSumZero(t *testing.T) {
	assert := assert.New(t)
	buf := []byte{'T', 'E', 'S', 'T', 1, 2, 3, 0}
	buf[len(buf)-1] = ChecksumACPI(buf)

	var sum byte
	for _, b := range buf {
		sum += b
	}
	assert.Zero(sum)
}

func TestChecksumRangeIgnoresOutsideBytes(t *testing.T) {
	assert := assert.New(t)
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = byte(i)
	}
	buf[4] = 0
	buf[4] = ChecksumRange(buf, 0, 16)

	var sum byte
	for _, b := range buf[0:16] {
		sum += b
	}
	assert.Zero(sum)
}

func TestGuestMemoryWriteOutOfBounds(t *testing.T) {
	assert := assert.New(t)
	mem := NewGuestMemory(make([]byte, 16))
	err := mem.Write(10, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Error(err)
	var fwErr *FirmwareError
	assert.ErrorAs(err, &fwErr)
}

func TestGuestMemoryWriteInBounds(t *testing.T) {
	assert := assert.New(t)
	mem := NewGuestMemory(make([]byte, 16))
	assert.NoError(mem.Write(4, []byte{0xAA, 0xBB}))
}

func TestLoadBoardConfigMissingPathReturnsDefault(t *testing.T) {
	assert := assert.New(t)
	cfg, err := LoadBoardConfig("")
	assert.NoError(err)
	assert.Equal(DefaultBoardConfig(), cfg)

	cfg2, err := LoadBoardConfig("/nonexistent/path/board.toml")
	assert.NoError(err)
	assert.Equal(DefaultBoardConfig(), cfg2)
}

func TestValidateBoardConfigAcceptsDefault(t *testing.T) {
	assert := assert.New(t)
	assert.NoError(ValidateBoardConfig(DefaultBoardConfig()))
}

func TestValidateBoardConfigCollectsMultipleViolations(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultBoardConfig()
	cfg.NumVCPU = 0
	cfg.MemorySlots = -1
	cfg.SystemManufacturer = ""

	err := ValidateBoardConfig(cfg)
	assert.Error(err)
	assert.Contains(err.Error(), "NumVCPU")
	assert.Contains(err.Error(), "MemorySlots")
	assert.Contains(err.Error(), "SystemManufacturer")
}
