package hack

import (
	"fmt"
	"strconv"
	"strings"
)

// ----------------------------------------------------------------------------
// Binary decoding

// This section contains the structural inverse of 'CodeGenerator.Generate': turning
// the textual '.hack' binary format (one 16-char '0'/'1' line per instruction) back
// into the 16-bit words a disassembler or emulator actually operates on.

// Parses a set of 16-character binary lines into their numeric 'uint16' counterparts.
//
// Blank lines are skipped, matching the VM/asm comment-and-blank-line handling
// conventions elsewhere in this codebase; any other malformed line is a fatal error.
func ParseBinary(lines []string) ([]uint16, error) {
	words := make([]uint16, 0, len(lines))

	for n, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		word, err := strconv.ParseUint(trimmed, 2, 16)
		if err != nil {
			return nil, fmt.Errorf("unable to parse line %d ('%s') as a 16-bit binary word: %w", n+1, line, err)
		}
		words = append(words, uint16(word))
	}

	return words, nil
}
