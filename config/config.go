// Package config loads the bridge configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ssplus/constants"
)

// ErrInvalid marks configurations rejected by Validate.
var ErrInvalid = errors.New("config: invalid")

// Config holds every tunable of the bridge.
type Config struct {
	// Device exposing physical memory
	Device string `yaml:"device"`

	Instructions RegionConfig `yaml:"iram"`
	Results      RegionConfig `yaml:"pram"`
	Table        TableConfig  `yaml:"table"`
	Sorter       SorterConfig `yaml:"sorter"`
	Store        StoreConfig  `yaml:"store"`
	Log          LogConfig    `yaml:"log"`
	Emu          EmuConfig    `yaml:"emu"`
}

// RegionConfig locates one physical window.
type RegionConfig struct {
	Base uint64 `yaml:"base"`
	Size int    `yaml:"size"`
}

// TableConfig sizes the collision table.
type TableConfig struct {
	Capacity   uint32 `yaml:"capacity"`    // power of two
	ProbeLimit uint32 `yaml:"probe_limit"` // probes per insert
	C1         uint32 `yaml:"c1"`
	C2         uint32 `yaml:"c2"`
}

// SorterConfig tunes the background loop.
type SorterConfig struct {
	CPU           int  `yaml:"cpu"`             // core to pin the loop to, -1 = unpinned
	DrainOnUpdate bool `yaml:"drain_on_update"` // drop queued pairs of the superseded job
}

// StoreConfig locates the pair archive.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables archiving
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// EmuConfig tunes the software engine used by the simulate command.
type EmuConfig struct {
	TailBits uint   `yaml:"tail_bits"` // significant tail bits, controls collision rate
	Burst    uint32 `yaml:"burst"`     // readings written per step
}

// Default returns the configuration for the stock hardware.
func Default() *Config {
	return &Config{
		Device:       constants.MemDevice,
		Instructions: RegionConfig{Base: constants.InstructionBase, Size: constants.InstructionSize},
		Results:      RegionConfig{Base: constants.ResultBase, Size: constants.ResultSize},
		Table: TableConfig{
			Capacity:   constants.TableCapacity,
			ProbeLimit: constants.ProbeLimit,
			C1:         constants.ProbeC1,
			C2:         constants.ProbeC2,
		},
		Sorter: SorterConfig{CPU: -1, DrainOnUpdate: true},
		Store:  StoreConfig{Path: "ssplus_pairs.db"},
		Log:    LogConfig{Level: "info"},
		Emu:    EmuConfig{TailBits: 24, Burst: 4096},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints the hardware and table rely on.
func (c *Config) Validate() error {
	pow2 := func(v uint64) bool { return v != 0 && v&(v-1) == 0 }

	switch {
	case !pow2(uint64(c.Table.Capacity)):
		return fmt.Errorf("%w: table.capacity %d is not a power of two", ErrInvalid, c.Table.Capacity)
	case c.Table.ProbeLimit == 0:
		return fmt.Errorf("%w: table.probe_limit must be positive", ErrInvalid)
	case c.Instructions.Size < constants.SlotWords*4 || c.Instructions.Size%(constants.SlotWords*4) != 0:
		return fmt.Errorf("%w: iram.size %d is not a whole number of slots", ErrInvalid, c.Instructions.Size)
	case c.Results.Size <= 0 || c.Results.Size%8 != 0 || !pow2(uint64(c.Results.Size/8)):
		return fmt.Errorf("%w: pram.size %d is not a power-of-two count of entries", ErrInvalid, c.Results.Size)
	case c.Emu.TailBits == 0 || c.Emu.TailBits > 32:
		return fmt.Errorf("%w: emu.tail_bits %d out of range 1..32", ErrInvalid, c.Emu.TailBits)
	case c.Emu.Burst == 0:
		return fmt.Errorf("%w: emu.burst must be positive", ErrInvalid)
	}
	return nil
}
