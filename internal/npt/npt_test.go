// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package npt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateIdentityMapsUnmappedGPA(t *testing.T) {
	assert := assert.New(t)
	m := New()
	hpa, err := m.Translate(0x4000, false)
	assert.NoError(err)
	assert.EqualValues(0x4000, hpa)
}

func TestTranslateMappedPageAddsOffset(t *testing.T) {
	assert := assert.New(t)
	m := New()
	m.MapPage(0x4000, 0x90000, true, true, false)
	hpa, err := m.Translate(0x4010, false)
	assert.NoError(err)
	assert.EqualValues(0x90010, hpa)
}

func TestTranslateWriteToReadOnlyFaults(t *testing.T) {
	assert := assert.New(t)
	m := New()
	m.MapPage(0x4000, 0x90000, false, true, false)
	_, err := m.Translate(0x4000, true)
	assert.Error(err)
	var fault *Fault
	assert.ErrorAs(err, &fault)
	assert.NotZero(fault.ErrorCode & ErrorCodeWrite)
}

func TestUnmapRevertsToIdentity(t *testing.T) {
	assert := assert.New(t)
	m := New()
	m.MapPage(0x1000, 0x80000, true, true, false)
	m.Unmap(0x1000)
	hpa, err := m.Translate(0x1000, false)
	assert.NoError(err)
	assert.EqualValues(0x1000, hpa)
}

func TestInvalidateAllClearsEveryMapping(t *testing.T) {
	assert := assert.New(t)
	m := New()
	m.MapPage(0x1000, 0x80000, true, true, false)
	m.MapPage(0x2000, 0x81000, true, true, false)
	m.InvalidateAll()

	hpa1, _ := m.Translate(0x1000, false)
	hpa2, _ := m.Translate(0x2000, false)
	assert.EqualValues(0x1000, hpa1)
	assert.EqualValues(0x2000, hpa2)
}

func TestStatsCountTranslationsAndFaults(t *testing.T) {
	assert := assert.New(t)
	m := New()
	m.MapPage(0x1000, 0x80000, false, true, false)

	_, _ = m.Translate(0x1000, false)
	_, _ = m.Translate(0x1000, true)

	stats := m.Stats()
	assert.EqualValues(2, stats.Translations)
	assert.EqualValues(1, stats.Faults)
}

func TestMapPageAlignsMisalignedHPA(t *testing.T) {
	assert := assert.New(t)
	m := New()
	m.MapPage(0x1000, 0x80010, true, true, false)
	hpa, err := m.Translate(0x1000, false)
	assert.NoError(err)
	assert.EqualValues(0x80000, hpa)
	assert.EqualValues(1, m.Stats().Misconfigurations)
}
