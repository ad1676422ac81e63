// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go - Hasher memory map, opcode encoding & sorter tunables
//
// Purpose:
//   - Fixes the physical windows of the instruction store and the result stream.
//   - Encodes the hasher opcode bit layout reproduced by the program builder.
//   - Supplies default sizing for the collision table.
//
// Notes:
//   - Region sizes are powers of two; cursors wrap with a mask.
//   - The instruction slot is 32 words wide; only words 0..17 carry data.
//
// ⚠️ No runtime logic here - all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Memory Windows ─────────────────────────────

const (
	// MemDevice is the character device exposing physical memory.
	MemDevice = "/dev/mem"

	// InstructionBase is the physical base address of the instruction store.
	InstructionBase = 0x42000000

	// InstructionSize is the byte size of the instruction store: 64 KiB.
	// 512 slots × 128 bytes, matching the 9-bit next-address field.
	InstructionSize = 1 << 16

	// ResultBase is the physical base address of the result stream.
	ResultBase = 0xfffc0000

	// ResultSize is the byte size of the result stream: 256 KiB.
	// 32,768 little-endian 64-bit entries (low = trial, high = tail).
	ResultSize = 256 << 10
)

// ─────────────────────────── Instruction Layout ───────────────────────────

const (
	// SlotWords is the stride of one instruction in 32-bit words.
	SlotWords = 32

	// PayloadWords is the number of big-endian payload words per instruction.
	PayloadWords = 16

	// FlushWord is the word offset of the flush marker inside a slot.
	FlushWord = 1 + PayloadWords

	// FlushMarker commits a slot to the hasher.
	FlushMarker = 0x1

	// HaltWord is the absolute word offset of the run indicator.
	// 0 = running, 1 = halted.
	HaltWord = 31

	// MaxInstructions is the number of addressable slots.
	MaxInstructions = InstructionSize / (SlotWords * 4)

	// BlockSize is the SHA-256 message block size in bytes.
	BlockSize = 64

	// Nonce2Size is the width of the per-trial nonce2 field spliced by the hasher.
	Nonce2Size = 4
)

// ───────────────────────────── Opcode Encoding ────────────────────────────

const (
	// OpDone terminates the program.
	OpDone = 0x00040000

	// OpDataIRAM feeds the raw 64-byte instruction payload.
	OpDataIRAM = 0x0

	// OpDataLastHashPad feeds the previous digest with single-block padding.
	OpDataLastHashPad = 0x14000000

	// OpDataLastHashIRAM feeds the previous digest as the first half of the
	// block, the payload supplying the second half.
	OpDataLastHashIRAM = 0x10000000

	// OpDataPad512 feeds the padding block of a 512-bit message.
	OpDataPad512 = 0x26000000

	// OpMidInit starts from the SHA-256 initial state.
	OpMidInit = 0x0

	// OpMidLastHash continues from the previous block's running state.
	OpMidLastHash = 0x00100000

	// NextAddrMask bounds the chained instruction index.
	NextAddrMask = 0x1ff

	// NextAddrShift positions the chained instruction index.
	NextAddrShift = 8
)

// ─────────────────────────── Collision Table Sizing ─────────────────────────

const (
	// TableCapacity is the default number of cells: 2^22 = 4,194,304.
	// A 32-bit tail space needs roughly 2^16 samples per expected collision,
	// so the table holds several birthday rounds per job before saturating.
	TableCapacity = 1 << 22

	// ProbeLimit caps the quadratic probe sequence per insert.
	ProbeLimit = 16

	// ProbeC1 is the linear probe coefficient.
	ProbeC1 = 1

	// ProbeC2 is the quadratic probe coefficient.
	ProbeC2 = 1
)

// ───────────────────────────── Pair Queue Sizing ──────────────────────────

const (
	// PairQueueInit is the initial pair queue capacity. The queue doubles on demand.
	PairQueueInit = 1 << 10
)
