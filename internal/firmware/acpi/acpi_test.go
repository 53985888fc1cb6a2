// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package acpi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kata-containers/kata-containers/src/runtime/hvcore/internal/firmware"
)

func sumBytes(buf []byte) byte {
	var sum byte
	for _, b := range buf {
		sum += b
	}
	return sum
}

func TestGenerateWritesEveryTableChecksummedToZero(t *testing.T) {
	assert := assert.New(t)
	buf := make([]byte, 1<<20)
	mem := firmware.NewGuestMemory(buf)
	cfg := DefaultConfig()

	assert.NoError(Generate(mem, cfg, 2))

	a := cfg.Addrs
	for _, addr := range []uint64{a.RSDT, a.XSDT, a.FADT, a.DSDT, a.MADT, a.MCFG, a.HPET} {
		length := uint64(buf[addr+4]) | uint64(buf[addr+5])<<8 | uint64(buf[addr+6])<<16 | uint64(buf[addr+7])<<24
		assert.Zero(sumBytes(buf[addr:addr+length]), "table at 0x%x", addr)
	}
	assert.Zero(sumBytes(buf[a.RSDP : a.RSDP+20]))
	assert.Zero(sumBytes(buf[a.RSDP : a.RSDP+36]))
}

func TestRSDPChecksumsAreIndependent(t *testing.T) {
	assert := assert.New(t)
	addrs := DefaultAddresses()
	rsdp := buildRSDP(addrs)
	assert.Len(rsdp, 36)
	assert.Equal("RSD PTR ", string(rsdp[0:8]))
	assert.Zero(sumBytes(rsdp[0:20]))
	assert.Zero(sumBytes(rsdp))
}

func TestRSDPReservedBytesCarryMagicCookie(t *testing.T) {
	assert := assert.New(t)
	rsdp := buildRSDP(DefaultAddresses())
	want := firmware.LE32(acpiMagicCookie)[0:3]
	assert.Equal(want, rsdp[33:36])
}

func TestFADTHasExpectedFlags(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultConfig()
	fadt := buildFADT(cfg, uint32(cfg.Addrs.DSDT), uint32(cfg.Addrs.FACS))
	assert.Equal("FACP", string(fadt[0:4]))
	assert.Zero(sumBytes(fadt))
	assert.Equal(firmware.LE16(0x0003), fadt[109:111])     // IAPC_BOOT_ARCH
	assert.Equal(firmware.LE32(0x000004A5), fadt[112:116]) // Flags
}

func TestMADTContainsOneLocalAPICPerVCPU(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultConfig()
	madt := buildMADT(cfg, 4)
	assert.Equal("APIC", string(madt[0:4]))
	assert.Zero(sumBytes(madt))

	count := 0
	for i := 44; i+1 < len(madt); {
		entryType := madt[i]
		length := int(madt[i+1])
		if entryType == madtEntryLAPIC {
			count++
		}
		i += length
	}
	assert.Equal(4, count)
}

func TestHPETFixedFields(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultConfig()
	hpet := buildHPET(cfg)
	assert.Equal("HPET", string(hpet[0:4]))
	assert.Zero(sumBytes(hpet))
	assert.Equal(firmware.LE32(0x8086A201), hpet[36:40]) // event timer block id
	assert.Equal(firmware.LE16(0x37EE), hpet[53:55])     // min clock tick
}

func TestFACSHasNoChecksumField(t *testing.T) {
	assert := assert.New(t)
	facs := buildFACS()
	assert.Len(facs, 64)
	assert.Equal("FACS", string(facs[0:4]))
}

func TestDSDTEmbedsExpectedHIDs(t *testing.T) {
	assert := assert.New(t)
	dsdt := buildDSDT(firmware.DefaultOEMInfo())
	assert.Equal("DSDT", string(dsdt[0:4]))
	assert.Zero(sumBytes(dsdt))
	assert.Contains(string(dsdt), "ACPI0007")
	assert.Contains(string(dsdt), "PNP0A03")
	assert.Contains(string(dsdt), "PNP0C0C")
}
