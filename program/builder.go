// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ HASHER PROGRAM BUILDER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: SSPlus Hasher Bridge
// Component: Work Template → Instruction Program Compiler
//
// Description:
//   Compiles one mining job into the sequential micro-program executed by the hasher:
//   a precomputed coinbase midstate, the post-midstate coinbase blocks with SHA-256
//   padding, the second coinbase pass, then one double-SHA-256 fold per merkle branch.
//
// Program Shape:
//   [0]            prehash midstate + nonce2 seed
//   [1..F]         full coinbase blocks (first carries the nonce2 bit position)
//   [F+1]          partial block + padding (only when the tail is not block aligned)
//   [next]         coinbase double hash
//   [next..+3M]    per branch: combine, pad512, double hash
//   [last]         done
//
// Pure function of the template: no I/O, safe to test without hardware.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package program

import (
	"crypto/sha256"
	"encoding"
	"encoding/binary"

	"ssplus/constants"
)

// Instruction is one hasher slot: an opcode word and a 64-byte block payload.
type Instruction struct {
	Opcode uint32
	Data   [constants.BlockSize]byte
}

// NextAddr encodes the index of the instruction to chain to.
//
//go:nosplit
func NextAddr(i uint32) uint32 {
	return (i & constants.NextAddrMask) << constants.NextAddrShift
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// BUILD
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Build validates t and emits its instruction program in address order.
func Build(t *Template) ([]Instruction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	prog := make([]Instruction, 0, Length(t))
	emit := func(op uint32, data *[constants.BlockSize]byte) {
		inst := Instruction{Opcode: op}
		if data != nil {
			inst.Data = *data
		}
		prog = append(prog, inst)
	}
	next := func() uint32 { return NextAddr(uint32(len(prog)) + 1) }

	coinbaseLen := uint32(len(t.Coinbase))
	pre := prehashLen(t.Nonce2Offset)

	// ───── Step 1: prehash midstate ─────
	// Bytes 28..31 seed nonce2 (zero), bytes 32..63 hold the running state.
	var block [constants.BlockSize]byte
	mid := Midstate(t.Coinbase[:pre])
	copy(block[32:], mid[:])
	emit(0, &block)

	// ───── Step 2: full coinbase blocks ─────
	post := coinbaseLen - pre
	full, rem := post/constants.BlockSize, post%constants.BlockSize
	for i := uint32(0); i < full; i++ {
		op := constants.OpDataIRAM | next()
		if i == 0 {
			op |= 63 - t.Nonce2Offset%constants.BlockSize
			op |= constants.OpMidInit
		} else {
			op |= constants.OpMidLastHash
		}
		off := pre + i*constants.BlockSize
		copy(block[:], t.Coinbase[off:off+constants.BlockSize])
		emit(op, &block)
	}

	// ───── Step 3: partial block with SHA-256 padding ─────
	if rem != 0 {
		block = [constants.BlockSize]byte{}
		copy(block[:], t.Coinbase[pre+full*constants.BlockSize:])
		block[rem] = 0x80
		binary.BigEndian.PutUint64(block[56:], uint64(coinbaseLen)*8)
		emit(constants.OpDataIRAM|constants.OpMidLastHash|next(), &block)
	}

	// ───── Step 4: second coinbase pass ─────
	emit(constants.OpDataLastHashPad|constants.OpMidInit|next(), nil)

	// ───── Step 5: merkle folding ─────
	for i := range t.Merkles {
		block = [constants.BlockSize]byte{}
		copy(block[32:], t.Merkles[i][:])
		emit(constants.OpDataLastHashIRAM|constants.OpMidInit|next(), &block)
		emit(constants.OpDataPad512|constants.OpMidLastHash|next(), nil)
		emit(constants.OpDataLastHashPad|constants.OpMidInit|next(), nil)
	}

	// ───── Step 6: terminal ─────
	emit(constants.OpDone, nil)
	return prog, nil
}

// Midstate returns the SHA-256 running state after absorbing msg, packed as eight
// big-endian words. len(msg) must be a multiple of the block size.
func Midstate(msg []byte) [32]byte {
	if len(msg)%constants.BlockSize != 0 {
		panic("program: midstate over a partial block")
	}
	h := sha256.New()
	h.Write(msg)

	// The marshaled digest is "sha\x03" followed by the eight state words, big endian.
	st, err := h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		panic("program: sha256 state: " + err.Error())
	}
	var out [32]byte
	copy(out[:], st[4:36])
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// WIRE ENCODING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Words returns the slot image of inst as written to the instruction store:
// the opcode, sixteen big-endian payload words and the flush marker.
func (inst *Instruction) Words() [constants.FlushWord + 1]uint32 {
	var w [constants.FlushWord + 1]uint32
	w[0] = inst.Opcode
	for i := 0; i < constants.PayloadWords; i++ {
		w[i+1] = binary.BigEndian.Uint32(inst.Data[i*4:])
	}
	w[constants.FlushWord] = constants.FlushMarker
	return w
}
