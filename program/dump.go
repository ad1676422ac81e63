package program

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"ssplus/constants"
)

// Dump writes one line per instruction: address, opcode and payload in hex.
func Dump(w io.Writer, prog []Instruction) error {
	bw := bufio.NewWriter(w)
	var buf [2 * constants.BlockSize]byte
	for i := range prog {
		hex.Encode(buf[:], prog[i].Data[:])
		if _, err := fmt.Fprintf(bw, "%03d %08x %s\n", i, prog[i].Opcode, buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
