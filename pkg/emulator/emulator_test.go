package emulator_test

import (
	"encoding/json"
	"testing"

	"its-hmny.dev/nand2tetris/pkg/emulator"
	"its-hmny.dev/nand2tetris/pkg/hack"
)

// ----------------------------------------------------------------------------
// Hand-assembly helpers

// These mirror the exact bit layout 'hack.CodeGenerator' produces, just skipping
// the intermediate textual representation: a C-instruction word is built straight
// from the same 'CompTable'/'DestTable'/'JumpTable' the assembler itself uses.

func aWord(addr uint16) uint16 { return addr & 0x7FFF }

func cWord(comp, dest, jump string) uint16 {
	return uint16(0b111<<13) | hack.CompTable[comp]<<6 | hack.DestTable[dest]<<3 | hack.JumpTable[jump]
}

// push constant <n>
func pushConstant(n uint16) []uint16 {
	return []uint16{
		aWord(n), cWord("A", "D", ""),
		aWord(0), cWord("M", "A", ""),
		cWord("D", "M", ""),
		aWord(0), cWord("M+1", "M", ""),
	}
}

// push <segment> <index>, 'base' being the RAM address holding the segment's pointer
func pushSegment(base, index uint16) []uint16 {
	return []uint16{
		aWord(base), cWord("M", "D", ""),
		aWord(index), cWord("D+A", "A", ""),
		cWord("M", "D", ""),
		aWord(0), cWord("M", "A", ""),
		cWord("D", "M", ""),
		aWord(0), cWord("M+1", "M", ""),
	}
}

// pop <segment> <index>, 'base' being the RAM address holding the segment's pointer
func popSegment(base, index uint16) []uint16 {
	return []uint16{
		aWord(base), cWord("M", "D", ""),
		aWord(index), cWord("D+A", "D", ""),
		aWord(13), cWord("D", "M", ""),
		aWord(0), cWord("M-1", "AM", ""),
		cWord("M", "D", ""),
		aWord(13), cWord("M", "A", ""),
		cWord("D", "M", ""),
	}
}

// add: pops the top two stack cells and pushes their sum
func addOp() []uint16 {
	return []uint16{
		aWord(0), cWord("M-1", "AM", ""),
		cWord("M", "D", ""),
		cWord("A-1", "A", ""),
		cWord("D+M", "M", ""),
	}
}

// ----------------------------------------------------------------------------
// ALU & jump semantics

func TestALU(t *testing.T) {
	cpu := emulator.NewCPU([]uint16{
		aWord(5), cWord("A", "D", ""), // D = 5
		aWord(3), cWord("D+A", "M", ""), // RAM[3] = D + A = 8
	})
	cpu.Run(-1)

	if got := cpu.RAM[3]; got != 8 {
		t.Fatalf("expected RAM[3] = 8, got %d", got)
	}
}

func TestJumpConditions(t *testing.T) {
	t.Run("JLT taken on negative D", func(t *testing.T) {
		rom := []uint16{
			aWord(0), cWord("-1", "D", ""), // 0: D = -1
			aWord(8), cWord("D", "", "JLT"), // 1: jump to ROM[8] if D < 0
			aWord(9), cWord("0", "M", ""), // 2: (fallthrough) RAM[9] = 0
			aWord(0), cWord("0", "", "JMP"), // 3: (unreachable skip, never executed)
			aWord(9), cWord("1", "M", ""), // 4: (jump target) RAM[9] = 1
		}
		cpu := emulator.NewCPU(rom)
		cpu.Run(-1)
		if got := cpu.RAM[9]; got != 1 {
			t.Fatalf("expected JLT to be taken, RAM[9] = 1, got %d", got)
		}
	})

	t.Run("JGT not taken on negative D", func(t *testing.T) {
		rom := []uint16{
			aWord(0), cWord("-1", "D", ""), // 0: D = -1
			aWord(4), cWord("D", "", "JGT"), // 1: jump to ROM[4] if D > 0 (false here)
			aWord(9), cWord("0", "M", ""), // 2: (fallthrough) RAM[9] = 0
		}
		cpu := emulator.NewCPU(rom)
		cpu.Run(-1)
		if got := cpu.RAM[9]; got != 0 {
			t.Fatalf("expected JGT to not be taken, RAM[9] = 0, got %d", got)
		}
	})
}

// ----------------------------------------------------------------------------
// Halting & write log

func TestHaltsOnExhaustedROM(t *testing.T) {
	cpu := emulator.NewCPU([]uint16{aWord(1)})
	if cpu.Step() {
		t.Fatalf("expected the first instruction to execute, not halt")
	}
	if !cpu.Step() {
		t.Fatalf("expected halt once ROM is exhausted")
	}
}

func TestWriteLogOnlyTracksWrites(t *testing.T) {
	cpu := emulator.NewCPU([]uint16{
		aWord(10), cWord("A", "D", ""), // D = 10, no RAM write
		aWord(2), cWord("D", "M", ""), // RAM[2] = 10
	})
	cpu.Run(-1)

	log := cpu.WriteLog()
	if len(log) != 1 || log[0].Address != 2 || log[0].Value != 10 {
		t.Fatalf("expected a single write log entry {2, 10}, got %+v", log)
	}
}

func TestWriteLogSortedAscending(t *testing.T) {
	cpu := emulator.NewCPU([]uint16{
		aWord(7), cWord("A", "D", ""), cWord("D", "M", ""), // RAM[7] = 7 (A still holds 7)
		aWord(1), cWord("0", "D", ""), aWord(1), cWord("D", "M", ""), // RAM[1] = 0
	})
	cpu.Run(-1)

	log := cpu.WriteLog()
	for i := 1; i < len(log); i++ {
		if log[i-1].Address >= log[i].Address {
			t.Fatalf("expected ascending addresses, got %+v", log)
		}
	}
}

// ----------------------------------------------------------------------------
// Determinism

func TestDeterminism(t *testing.T) {
	rom := append(pushConstant(3), append(pushConstant(4), addOp()...)...)

	first := emulator.NewCPU(rom)
	first.RAM[0] = 256
	first.Run(50)

	second := emulator.NewCPU(rom)
	second.RAM[0] = 256
	second.Run(50)

	firstLog, secondLog := first.WriteLog(), second.WriteLog()
	if len(firstLog) != len(secondLog) {
		t.Fatalf("expected identical write logs, got %+v vs %+v", firstLog, secondLog)
	}
	for i := range firstLog {
		if firstLog[i] != secondLog[i] {
			t.Fatalf("expected identical write logs, got %+v vs %+v", firstLog, secondLog)
		}
	}
}

// ----------------------------------------------------------------------------
// End to end scenarios (spec.md S3/S4)

func TestSimpleAdd(t *testing.T) {
	rom := append(pushConstant(7), append(pushConstant(8), addOp()...)...)

	cpu := emulator.NewCPU(rom)
	cpu.RAM[0] = 256 // SP
	cpu.Run(60)

	if got := cpu.RAM[256]; got != 15 {
		t.Errorf("expected RAM[256] = 15, got %d", got)
	}
	if got := cpu.RAM[0]; got != 257 {
		t.Errorf("expected RAM[0] = 257, got %d", got)
	}
}

func TestBasicSegmentOps(t *testing.T) {
	var rom []uint16
	rom = append(rom, pushConstant(10)...)
	rom = append(rom, popSegment(1, 0)...) // pop local 0
	rom = append(rom, pushConstant(21)...)
	rom = append(rom, popSegment(1, 1)...) // pop local 1
	rom = append(rom, pushSegment(1, 0)...)
	rom = append(rom, pushSegment(1, 1)...)
	rom = append(rom, addOp()...)
	rom = append(rom, popSegment(2, 0)...) // pop argument 0

	cpu := emulator.NewCPU(rom)
	cpu.RAM[0] = 256 // SP
	cpu.RAM[1] = 300 // LCL
	cpu.RAM[2] = 400 // ARG
	cpu.Run(-1)

	if got := cpu.RAM[300]; got != 10 {
		t.Errorf("expected RAM[300] = 10, got %d", got)
	}
	if got := cpu.RAM[301]; got != 21 {
		t.Errorf("expected RAM[301] = 21, got %d", got)
	}
	if got := cpu.RAM[400]; got != 31 {
		t.Errorf("expected RAM[400] = 31, got %d", got)
	}
}

// ----------------------------------------------------------------------------
// Trace serialization

func TestTraceMarshalJSON(t *testing.T) {
	cpu := emulator.NewCPU(append(pushConstant(7), pushConstant(8)...))
	cpu.RAM[0] = 256
	cpu.Run(-1)

	raw, err := json.Marshal(cpu.Trace())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		RAM map[string]uint16 `json:"RAM"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unable to decode trace: %v", err)
	}
	if decoded.RAM["0"] != 258 || decoded.RAM["256"] != 7 || decoded.RAM["257"] != 8 {
		t.Fatalf("unexpected trace contents: %+v", decoded.RAM)
	}
}
