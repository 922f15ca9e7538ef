package emulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the Hack CPU model.
//
// The Hack computer is a Harvard architecture machine with a 16-bit word size, a flat
// 16-bit addressable RAM (data memory, also memory-mapped for Screen/Keyboard)
// and a separate ROM (instruction memory, read-only from the CPU's perspective).
// Every tick reads one ROM word, decodes it and mutates the CPU's registers
// and/or RAM accordingly, the sole observable effect being which RAM cells
// were ever written and their final value (the 'write log').

// CPU is the in-memory representation of the Hack computer's processor state.
//
// 'ROM' holds the program (as produced by the assembler or read straight from
// a '.hack' file); its length (not a sentinel value in RAM) determines when
// the program has run out of instructions, since a ROM cell that was never
// assembled can't be told apart from one that legitimately holds zero.
type CPU struct {
	PC, D, A uint16     // Program counter and the two general purpose registers
	RAM      [1 << 16]uint16 // Flat, 16-bit addressable data memory (includes Screen/Keyboard mappings)
	ROM      []uint16        // The program, one 16-bit instruction per cell, in execution order

	writes map[uint16]uint16 // Sole observable output: RAM address -> latest value written to it
}

// Builds a brand new 'CPU', with every register zeroed and 'rom' as its program.
//
// Every run gets a fresh 'CPU' rather than a shared/reset instance, mirroring the
// assembler's 'NewSymbolTable' policy (see DESIGN.md, REDESIGN FLAGS): determinism
// is a property of construction, not of remembering to reset mutable state.
func NewCPU(rom []uint16) *CPU {
	return &CPU{ROM: rom, writes: make(map[uint16]uint16)}
}

// ----------------------------------------------------------------------------
// Fetch-decode-execute

// Executes a single tick: fetch, decode and execute the instruction pointed by 'PC'.
//
// Returns true once the ROM has been exhausted (i.e. 'PC' points past the last
// assembled instruction), which is this CPU's only halt condition.
func (cpu *CPU) Step() bool {
	if int(cpu.PC) >= len(cpu.ROM) {
		return true
	}

	word := cpu.ROM[cpu.PC]
	if word&0x8000 == 0 { // A-instruction: top bit unset
		cpu.A = word & 0x7FFF
		cpu.PC++
		return false
	}

	// C-instruction: 111 a c1c2c3c4c5c6 d1d2d3 j1j2j3
	a := (word >> 12) & 0x1
	comp := (word >> 6) & 0x3F
	dest := (word >> 3) & 0x7
	jump := word & 0x7

	y := cpu.A
	if a == 1 {
		y = cpu.RAM[cpu.A]
	}
	out, zr, ng := alu(cpu.D, y, comp)
	addr := cpu.A // RAM[A] target must be the address before this instruction, not after d1 updates A

	if dest&0x4 != 0 { // d1: store to A
		cpu.A = out
	}
	if dest&0x2 != 0 { // d2: store to D
		cpu.D = out
	}
	if dest&0x1 != 0 { // d3: store to RAM[A], the only write that gets logged
		cpu.RAM[addr] = out
		cpu.writes[addr] = out
	}

	if evalJump(jump, zr, ng) {
		cpu.PC = cpu.A
	} else {
		cpu.PC++
	}
	return false
}

// Runs the CPU for up to 'ticks' steps, stopping early on halt.
//
// A negative 'ticks' selects the unbounded mode: run until halt, with no cap.
// This is the CPU's only notion of a timeout (see spec's Concurrency & Resource Model).
func (cpu *CPU) Run(ticks int) {
	if ticks < 0 {
		for !cpu.Step() {
		}
		return
	}
	for i := 0; i < ticks; i++ {
		if cpu.Step() {
			return
		}
	}
}

// ----------------------------------------------------------------------------
// ALU

// Applies the 6 Hack ALU control bits ('zx nx zy ny f no', packed MSB-first into
// 'comp') to the two 16-bit operands, following the spec's order of operations.
func alu(x, y, comp uint16) (out uint16, zr bool, ng bool) {
	zx, nx := comp&0x20 != 0, comp&0x10 != 0
	zy, ny := comp&0x08 != 0, comp&0x04 != 0
	f, no := comp&0x02 != 0, comp&0x01 != 0

	if zx {
		x = 0
	}
	if nx {
		x = ^x
	}
	if zy {
		y = 0
	}
	if ny {
		y = ^y
	}

	if f {
		out = x + y
	} else {
		out = x & y
	}
	if no {
		out = ^out
	}

	return out, out == 0, out&0x8000 != 0
}

// Resolves the 3-bit jump field against the ALU's zero/negative flags.
//
// The 8 combinations follow the fixed condition table from the spec
// (000 never ... 111 always), mirrors 'hack.JumpTable's own enumeration.
func evalJump(jump uint16, zr, ng bool) bool {
	switch jump {
	case 0b000:
		return false
	case 0b001:
		return !zr && !ng
	case 0b010:
		return zr
	case 0b011:
		return !ng
	case 0b100:
		return ng
	case 0b101:
		return !zr
	case 0b110:
		return ng || zr
	case 0b111:
		return true
	default:
		return false
	}
}

// ----------------------------------------------------------------------------
// Write log & trace

// A single RAM address and the last value that was ever stored into it.
type WriteLogEntry struct {
	Address uint16
	Value   uint16
}

// Returns the CPU's write log, sorted by ascending address.
//
// Reads never log (per spec): this is exactly the set of RAM cells that were
// the destination ('dest' bit M) of at least one C-instruction.
func (cpu *CPU) WriteLog() []WriteLogEntry {
	entries := make([]WriteLogEntry, 0, len(cpu.writes))
	for address, value := range cpu.writes {
		entries = append(entries, WriteLogEntry{Address: address, Value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
	return entries
}

// Trace is the JSON-serializable snapshot of a CPU's write log, the sole emitter output.
type Trace struct {
	RAM []WriteLogEntry
}

// Builds the 'Trace' for the CPU's current write log.
func (cpu *CPU) Trace() Trace {
	return Trace{RAM: cpu.WriteLog()}
}

// Renders the trace as '{"RAM": {"<addr>": <value>, ...}}' with keys in ascending
// numeric order.
//
// 'encoding/json' sorts map keys lexicographically, which misorders multi-digit
// addresses (e.g. "100" before "20"), so the object body is assembled by hand;
// each scalar is still produced by 'encoding/json', same as 'utils.OrderedMap'
// does for its own array-of-entries shape.
func (t Trace) MarshalJSON() ([]byte, error) {
	var body bytes.Buffer
	body.WriteString(`{"RAM":{`)

	for i, entry := range t.RAM {
		if i > 0 {
			body.WriteByte(',')
		}

		key, err := json.Marshal(fmt.Sprintf("%d", entry.Address))
		if err != nil {
			return nil, fmt.Errorf("unable to marshal RAM address '%d': %w", entry.Address, err)
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("unable to marshal RAM value at address '%d': %w", entry.Address, err)
		}

		body.Write(key)
		body.WriteByte(':')
		body.Write(value)
	}

	body.WriteString(`}}`)
	return body.Bytes(), nil
}
