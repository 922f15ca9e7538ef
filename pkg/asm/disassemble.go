package asm

import (
	"fmt"

	"its-hmny.dev/nand2tetris/pkg/hack"
)

// ----------------------------------------------------------------------------
// Disassembler

// Takes raw Hack machine words and recovers their Asm statement counterpart.
//
// This is the structural inverse of 'hack.CodeGenerator': instead of resolving
// mnemonics to bit-codes it resolves bit-codes back to mnemonics, using the very
// same 'CompTable'/'DestTable'/'JumpTable' from the hack package, inverted once
// at package init. Since the original label names are gone by the time a program
// reaches binary form, every A-instruction is recovered as a raw numeric address.
type Disassembler struct {
	words []uint16 // The program to disassemble, one 16-bit instruction per cell
}

// Initializes and returns to the caller a brand new 'Disassembler' struct.
func NewDisassembler(words []uint16) Disassembler {
	return Disassembler{words: words}
}

var (
	compByCode = invert(hack.CompTable)
	destByCode = invert(hack.DestTable)
	jumpByCode = invert(hack.JumpTable)
)

// Builds the bit-code -> mnemonic lookup, the mirror image of one of 'hack's tables.
func invert(table map[string]uint16) map[uint16]string {
	inverted := make(map[uint16]string, len(table))
	for mnemonic, code := range table {
		inverted[code] = mnemonic
	}
	return inverted
}

// Disassembles every word into its 'asm.Statement' counterpart, in program order.
//
// A-instructions always decode to a raw address (location/label names do not
// survive assembly); C-instructions decode their 'comp'/'dest'/'jump' bit-codes
// back to the mnemonics 'asm.CodeGenerator' expects as input.
func (d Disassembler) Disassemble() (Program, error) {
	program := make(Program, 0, len(d.words))

	for _, word := range d.words {
		if word&0x8000 == 0 { // A-instruction: top bit unset
			program = append(program, AInstruction{Location: fmt.Sprintf("%d", word&0x7FFF)})
			continue
		}

		// The 'comp' bit-code is 7 bits wide in 'hack.CompTable' (it folds in the 'a' bit),
		// matching the shift/width used by 'hack.CodeGenerator.TranslateCInst'.
		comp := (word >> 6) & 0x7F
		dest := (word >> 3) & 0x7
		jump := word & 0x7

		mnemonic, found := compByCode[comp]
		if !found {
			return nil, fmt.Errorf("unable to disassemble word '%016b': unknown 'comp' bit-code", word)
		}

		program = append(program, CInstruction{
			Comp: mnemonic,
			Dest: destByCode[dest], // "" resolves from DestTable[""] = 0b000, a legal empty dest
			Jump: jumpByCode[jump], // "" resolves from JumpTable[""] = 0b000, a legal empty jump
		})
	}

	return program, nil
}
