// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: channel.go - Hasher instruction store
//
// Purpose:
//   - Uploads compiled programs slot by slot into the instruction window.
//   - Owns the inverted run indicator (word 31: 0 = running, 1 = halted).
//
// Notes:
//   - Slot i starts at word i*32: opcode, 16 payload words, flush marker.
//   - Callers serialise access; the sorter only touches it under its lock.
// ─────────────────────────────────────────────────────────────────────────────

package iram

import (
	"encoding/binary"
	"fmt"

	"ssplus/constants"
	"ssplus/mmio"
	"ssplus/program"
)

// Channel writes instructions and drives the run indicator.
type Channel struct {
	r     *mmio.Region
	slots uint32
}

// New binds a channel to an instruction window.
func New(r *mmio.Region) (*Channel, error) {
	if r.Words32() < constants.SlotWords {
		return nil, fmt.Errorf("iram: window of %d bytes holds no instruction slot", r.Size())
	}
	return &Channel{r: r, slots: uint32(r.Words32() / constants.SlotWords)}, nil
}

// Slots returns the number of addressable instructions.
func (c *Channel) Slots() uint32 { return c.slots }

// Write stores inst at slot index and commits it with the flush marker.
//
//go:norace
func (c *Channel) Write(index uint32, inst *program.Instruction) {
	base := int(index) * constants.SlotWords
	words := inst.Words()
	for i, w := range words {
		c.r.Store32(base+i, w)
	}
}

// Upload writes prog from slot 0.
func (c *Channel) Upload(prog []program.Instruction) error {
	if uint32(len(prog)) > c.slots {
		return fmt.Errorf("iram: program of %d instructions exceeds %d slots", len(prog), c.slots)
	}
	for i := range prog {
		c.Write(uint32(i), &prog[i])
	}
	return nil
}

// Read returns the instruction image held at slot index.
func (c *Channel) Read(index uint32) program.Instruction {
	base := int(index) * constants.SlotWords
	inst := program.Instruction{Opcode: c.r.Load32(base)}
	for i := 0; i < constants.PayloadWords; i++ {
		binary.BigEndian.PutUint32(inst.Data[i*4:], c.r.Load32(base+1+i))
	}
	return inst
}

// Halt stops the hasher.
func (c *Channel) Halt() { c.r.Store32(constants.HaltWord, 1) }

// Start releases the hasher.
func (c *Channel) Start() { c.r.Store32(constants.HaltWord, 0) }

// Running reports the run indicator.
func (c *Channel) Running() bool { return c.r.Load32(constants.HaltWord) == 0 }
