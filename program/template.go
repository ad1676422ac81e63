// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: template.go - Work template model, validation & JSON intake
//
// Purpose:
//   - Describes one mining job as handed over by the pool layer.
//   - Rejects templates the hasher cannot execute before any program is built.
//
// Notes:
//   - JSON intake goes through sonnet, the same decoder the RPC layer uses.
//   - Hex fields are decoded once at load time; the builder never parses.
// ─────────────────────────────────────────────────────────────────────────────

package program

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"

	"ssplus/constants"
)

var (
	// ErrMalformedTemplate marks templates that cannot be compiled.
	ErrMalformedTemplate = errors.New("program: malformed work template")

	// ErrProgramTooLong marks programs exceeding the instruction store.
	ErrProgramTooLong = errors.New("program: instruction store overflow")
)

// Template is the read-only job description consumed by Build.
type Template struct {
	Coinbase     []byte     // serialized coinbase transaction with a zeroed nonce2 field
	Nonce2Offset uint32     // byte offset of nonce2 inside Coinbase
	Merkles      [][32]byte // merkle branches in fold order
}

// Validate checks the template against what the hasher program can express.
func (t *Template) Validate() error {
	n := uint32(len(t.Coinbase))
	if n == 0 {
		return fmt.Errorf("%w: empty coinbase", ErrMalformedTemplate)
	}
	if uint64(t.Nonce2Offset)+constants.Nonce2Size > uint64(n) {
		return fmt.Errorf("%w: nonce2 offset %d beyond coinbase length %d", ErrMalformedTemplate, t.Nonce2Offset, n)
	}
	if t.Nonce2Offset%constants.BlockSize > constants.BlockSize-constants.Nonce2Size {
		return fmt.Errorf("%w: nonce2 at offset %d straddles a block boundary", ErrMalformedTemplate, t.Nonce2Offset)
	}
	if n-prehashLen(t.Nonce2Offset) < constants.BlockSize {
		return fmt.Errorf("%w: fewer than %d coinbase bytes after the prehash", ErrMalformedTemplate, constants.BlockSize)
	}
	if l := Length(t); l > constants.MaxInstructions {
		return fmt.Errorf("%w: %d instructions, store holds %d", ErrProgramTooLong, l, constants.MaxInstructions)
	}
	return nil
}

// Length returns the number of instructions Build emits for t.
func Length(t *Template) int {
	post := uint32(len(t.Coinbase)) - prehashLen(t.Nonce2Offset)
	n := 1 + int(post/constants.BlockSize)
	if post%constants.BlockSize != 0 {
		n++
	}
	return n + 1 + 3*len(t.Merkles) + 1
}

// prehashLen is the largest multiple of the block size not past the nonce2 offset.
func prehashLen(offset uint32) uint32 {
	return offset - offset%constants.BlockSize
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// JSON INTAKE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// templateJSON is the on-disk form: hex strings as delivered by stratum.
type templateJSON struct {
	Coinbase     string   `json:"coinbase"`
	Nonce2Offset uint32   `json:"nonce2_offset"`
	Merkles      []string `json:"merkles"`
}

// DecodeTemplate parses and validates a JSON work template.
func DecodeTemplate(data []byte) (*Template, error) {
	var raw templateJSON
	if err := sonnet.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}

	cb, err := hex.DecodeString(raw.Coinbase)
	if err != nil {
		return nil, fmt.Errorf("%w: coinbase: %v", ErrMalformedTemplate, err)
	}

	t := &Template{
		Coinbase:     cb,
		Nonce2Offset: raw.Nonce2Offset,
		Merkles:      make([][32]byte, len(raw.Merkles)),
	}
	for i, m := range raw.Merkles {
		b, err := hex.DecodeString(m)
		if err != nil {
			return nil, fmt.Errorf("%w: merkle %d: %v", ErrMalformedTemplate, i, err)
		}
		if len(b) != 32 {
			return nil, fmt.Errorf("%w: merkle %d is %d bytes, want 32", ErrMalformedTemplate, i, len(b))
		}
		copy(t.Merkles[i][:], b)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadTemplate reads a JSON work template from path.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("program: read template: %w", err)
	}
	return DecodeTemplate(data)
}

// EncodeTemplate renders t in the JSON form accepted by DecodeTemplate.
func EncodeTemplate(t *Template) ([]byte, error) {
	raw := templateJSON{
		Coinbase:     hex.EncodeToString(t.Coinbase),
		Nonce2Offset: t.Nonce2Offset,
		Merkles:      make([]string, len(t.Merkles)),
	}
	for i := range t.Merkles {
		raw.Merkles[i] = hex.EncodeToString(t.Merkles[i][:])
	}
	return sonnet.Marshal(raw)
}
