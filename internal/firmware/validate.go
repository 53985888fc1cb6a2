// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package firmware

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ValidateBoardConfig checks cfg for the preconditions the ACPI and SMBIOS
// generators assume but never re-check themselves (a positive vCPU/memory-
// slot count and non-empty SystemManufacturer, SystemProductName and
// BIOSVendor strings), collecting every violation
// via go-multierror the way internal/ir/verify.go does for SSA invariants,
// rather than failing on the first one.
func ValidateBoardConfig(cfg BoardConfig) error {
	var result *multierror.Error

	if cfg.NumVCPU <= 0 {
		result = multierror.Append(result, errors.Errorf("board config: NumVCPU must be positive, got %d", cfg.NumVCPU))
	}
	if cfg.MemorySlots <= 0 {
		result = multierror.Append(result, errors.Errorf("board config: MemorySlots must be positive, got %d", cfg.MemorySlots))
	}
	if cfg.SystemManufacturer == "" {
		result = multierror.Append(result, errors.New("board config: SystemManufacturer must not be empty"))
	}
	if cfg.SystemProductName == "" {
		result = multierror.Append(result, errors.New("board config: SystemProductName must not be empty"))
	}
	if cfg.BIOSVendor == "" {
		result = multierror.Append(result, errors.New("board config: BIOSVendor must not be empty"))
	}

	return result.ErrorOrNil()
}
