// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package firmware

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// OEMInfo mirrors the ACPI/SMBIOS table header OEM fields, modeled on
// tinyrange-cc's ACPI Config.OEMInfo convention.
type OEMInfo struct {
	OEMID           [6]byte
	OEMTableID      [8]byte
	OEMRevision     uint32
	CreatorID       [4]byte
	CreatorRevision uint32
}

// DefaultOEMInfo returns the stand-in vendor metadata used when no board
// config file is supplied.
func DefaultOEMInfo() OEMInfo {
	return OEMInfo{
		OEMID:           [6]byte{'H', 'V', 'C', 'O', 'R', 'E'},
		OEMTableID:      [8]byte{'H', 'V', 'C', 'O', 'R', 'E', ' ', ' '},
		OEMRevision:     1,
		CreatorID:       [4]byte{'H', 'V', 'C', 'R'},
		CreatorRevision: 1,
	}
}

// BoardConfig threads OEM strings, vendor strings, and a system UUID
// explicitly into the firmware generators instead of hardcoding vendor
// bytes, per SPEC_FULL.md §5.
type BoardConfig struct {
	OEM OEMInfo

	BIOSVendor  string
	BIOSVersion string

	SystemManufacturer string
	SystemProductName  string
	SystemUUID         [16]byte

	BaseboardManufacturer string
	ChassisManufacturer   string

	NumVCPU     int
	MemorySlots int
}

// DefaultBoardConfig returns a BoardConfig usable without any external
// file.
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		OEM:                   DefaultOEMInfo(),
		BIOSVendor:            "hvcore",
		BIOSVersion:           "1.0",
		SystemManufacturer:    "hvcore",
		SystemProductName:     "hvcore-guest",
		BaseboardManufacturer: "hvcore",
		ChassisManufacturer:   "hvcore",
		NumVCPU:               1,
		MemorySlots:           1,
	}
}

// LoadBoardConfig reads an optional TOML board-config file, merging it
// over DefaultBoardConfig's values. A missing path is not an error: the
// default config is returned unchanged, since most callers never supply
// one (SPEC_FULL.md §2).
func LoadBoardConfig(path string) (BoardConfig, error) {
	cfg := DefaultBoardConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "load board config %s", path)
	}
	return cfg, nil
}
