// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package vmcontrol

import (
	"sync"

	"github.com/pkg/errors"
)

// Registry tracks every live VMCS/VMCB by integer id behind a single
// RWMutex, matching the reader/writer split mandated by spec.md §5: many
// goroutines may concurrently look up or enumerate structures (RLock)
// while registration/removal is exclusive (Lock).
type Registry struct {
	mu    sync.RWMutex
	vmcs  map[uint32]*VMCS
	vmcb  map[uint32]*VMCB
	nextID uint32
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{vmcs: make(map[uint32]*VMCS), vmcb: make(map[uint32]*VMCB)}
}

// RegisterVMCS assigns a fresh id to v and stores it.
func (r *Registry) RegisterVMCS(v *VMCS) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.vmcs[id] = v
	return id
}

// RegisterVMCB assigns a fresh id to v and stores it.
func (r *Registry) RegisterVMCB(v *VMCB) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.vmcb[id] = v
	return id
}

// LookupVMCS returns the VMCS registered under id.
func (r *Registry) LookupVMCS(id uint32) (*VMCS, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vmcs[id]
	if !ok {
		return nil, errors.Errorf("vmcontrol: no vmcs registered under id %d", id)
	}
	return v, nil
}

// LookupVMCB returns the VMCB registered under id.
func (r *Registry) LookupVMCB(id uint32) (*VMCB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vmcb[id]
	if !ok {
		return nil, errors.Errorf("vmcontrol: no vmcb registered under id %d", id)
	}
	return v, nil
}

// Remove deletes whichever structure (VMCS or VMCB) is registered under
// id, if any. Callers are expected to have already transitioned the
// structure to Clear.
func (r *Registry) Remove(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.vmcs, id)
	delete(r.vmcb, id)
}

// Len returns the total number of registered structures.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vmcs) + len(r.vmcb)
}
