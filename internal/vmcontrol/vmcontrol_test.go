// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package vmcontrol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fakeEntry(exitVal uint64) Entry {
	return func(entryPoint uintptr, save *StateSaveArea) uint64 {
		return exitVal
	}
}

// encodeRawExit mirrors decodeExitInfo's tag layout for test fixtures:
// high byte is the kind, low 56 bits the payload.
func encodeRawExit(kind byte, payload uint64) uint64 {
	return uint64(kind)<<56 | (payload & 0x00FFFFFFFFFFFFFF)
}

const (
	rawKindContinue  = 0
	rawKindHypercall = 6
)

func TestVMCSLifecycle(t *testing.T) {
	assert := assert.New(t)
	v := NewVMCS(1)
	assert.Equal(StateCreated, v.State())

	_, err := v.Launch(&Context{Context: context.Background(), DoEntry: fakeEntry(0)})
	assert.Error(err)

	assert.NoError(v.Activate(ControlArea{}, StateSaveArea{}))
	assert.Equal(StateActive, v.State())

	info, err := v.Launch(&Context{Context: context.Background(), DoEntry: fakeEntry(encodeRawExit(rawKindContinue, 0x2000))})
	assert.NoError(err)
	assert.Equal(ExitReasonContinue, info.Reason)
	assert.Equal(StateRunning, v.State())

	_, err = v.Resume(&Context{Context: context.Background(), DoEntry: fakeEntry(encodeRawExit(rawKindContinue, 0x2004))})
	assert.NoError(err)

	v.Clear()
	assert.Equal(StateClear, v.State())
	assert.NoError(v.Activate(ControlArea{}, StateSaveArea{}))
}

func TestVMCBGIFGatesEntry(t *testing.T) {
	assert := assert.New(t)
	v := NewVMCB(1)
	assert.True(v.GIF())
	assert.NoError(v.Activate(ControlArea{}, StateSaveArea{}))

	v.SetGIF(false)
	_, err := v.Run(&Context{Context: context.Background(), DoEntry: fakeEntry(0)})
	assert.Error(err)
	var svmErr *SvmError
	assert.ErrorAs(err, &svmErr)

	v.SetGIF(true)
	_, err = v.Run(&Context{Context: context.Background(), DoEntry: fakeEntry(encodeRawExit(rawKindContinue, 0))})
	assert.NoError(err)
}

func TestVMCBRunClearsGIFDuringEntryAndSetsItOnExit(t *testing.T) {
	assert := assert.New(t)
	v := NewVMCB(3)
	assert.NoError(v.Activate(ControlArea{}, StateSaveArea{}))
	assert.True(v.GIF())

	var gifDuringEntry bool
	entry := func(entryPoint uintptr, save *StateSaveArea) uint64 {
		gifDuringEntry = v.GIF()
		return encodeRawExit(rawKindContinue, 0)
	}

	_, err := v.Run(&Context{Context: context.Background(), DoEntry: entry})
	assert.NoError(err)
	assert.False(gifDuringEntry)
	assert.True(v.GIF())
}

func TestVMCBRunTwiceWithoutLaunchSplit(t *testing.T) {
	assert := assert.New(t)
	v := NewVMCB(2)
	assert.NoError(v.Activate(ControlArea{}, StateSaveArea{}))

	_, err := v.Run(&Context{Context: context.Background(), DoEntry: fakeEntry(encodeRawExit(rawKindContinue, 0))})
	assert.NoError(err)
	_, err = v.Run(&Context{Context: context.Background(), DoEntry: fakeEntry(encodeRawExit(rawKindContinue, 0))})
	assert.NoError(err)
}

func TestHypercallDispatch(t *testing.T) {
	assert := assert.New(t)
	CurrentVCPUID = 7
	assert.EqualValues(0, DispatchHypercall(HypercallNoop).Value)
	assert.EqualValues(7, DispatchHypercall(HypercallVCPUID).Value)
	assert.EqualValues(UnsupportedSentinel, DispatchHypercall(99).Value)
}

func TestHypercallExitRoutesThroughDispatch(t *testing.T) {
	assert := assert.New(t)
	v := NewVMCS(1)
	assert.NoError(v.Activate(ControlArea{}, StateSaveArea{Guest: stateWithRAX(HypercallTSC)}))

	TSCReader = func() uint64 { return 0xABCD }
	defer func() { TSCReader = func() uint64 { return 0 } }()

	info, err := v.Launch(&Context{
		Context:    context.Background(),
		DoEntry:    fakeEntry(encodeRawExit(rawKindHypercall, 0)), // ExitKindHypercall
		EntryPoint: 0,
	})
	assert.NoError(err)
	assert.Equal(ExitReasonHypercall, info.Reason)
	assert.EqualValues(0xABCD, info.Hypercall.Value)
}

func TestRegistryRegisterLookupRemove(t *testing.T) {
	assert := assert.New(t)
	r := NewRegistry()
	id := r.RegisterVMCS(NewVMCS(1))
	assert.Equal(1, r.Len())

	got, err := r.LookupVMCS(id)
	assert.NoError(err)
	assert.NotNil(got)

	r.Remove(id)
	assert.Equal(0, r.Len())
	_, err = r.LookupVMCS(id)
	assert.Error(err)
}

func stateWithRAX(v uint64) StateSaveArea {
	var s StateSaveArea
	s.Guest.GPR[0] = v
	return s
}
