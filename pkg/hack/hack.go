package hack

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the Hack instruction set.
//
// We declare a shared 'Instruction' interface for both A and C instructions as well
// as defining some useful constants for runtime assertions during the codegen phase
// such as the 'MaxAddressableMemory' that defines the upper limit to Memory capacity.

// Just used to put together A and C instructions struct, use type switch to disambiguate.
type Instruction interface{}

// A Hack program is just an ordered sequence of instructions, one per emitted line.
type Program []Instruction

// Maps a symbol (label or variable name) to its 15-bit RAM/ROM address.
type SymbolTable map[string]uint16

const MaxAddressableMemory uint16 = (1 << 15) // Max memory address indexable for an A Instruction.

const FirstFreeVariable uint16 = 16 // First RAM address handed out to a user-defined variable.

// ----------------------------------------------------------------------------
// A Instructions

// In memory representation of an A Instruction for the Hack architecture spec.
//
// The A instruction has only one functionality in the Hack computer, it instructs
// the CPU to load a specific memory address from the computer memory (this includes
// both the RAM as well as the memory mapped I/O such as Keyboard and Screen).
//
// The location can be expressed in multiple way:
// - A raw memory address (e.g. 1, 2, 3)
// - A user defined label (e.g. LOOP, ADD, TEMP)
// - A built-in symbols from the Hack architecture spec (e.g. SP, THIS, THAT)
type AInstruction struct {
	LocType LocationType // The type of the location identified by 'Name' field
	LocName string       // A generic "payload" (the label/builtin/raw symbol)
}

type LocationType uint8 // Enumeration for all the different type of location (built-in, label, raw)

const (
	Raw     LocationType = 0 // Raw address literal (e.g. @2345, @8989)
	Label   LocationType = 1 // User-defined location w/ a user given name (e.g. @MAIN, @LOOP)
	BuiltIn LocationType = 2 // Predefined  associations by the Hack specs (@SCREEN, @KBD, @R1)
)

// ----------------------------------------------------------------------------
// C Instructions

// In memory representation of an C Instruction for the Hack architecture spec.
//
// The C instruction handles the computation side of the Hack computer, it instructs
// the CPU on what operation to execute and which register to use, also it allows to
// specify jump conditions to change the execution flow at runtime.
type CInstruction struct {
	Comp string // The 'computation' bit-codes, defines the calculation that the CPU should perform
	Dest string // The 'destination' bit-codes, defines if/where the result should be saved
	Jump string // The 'jump' bit-codes, define on what premise the jump to another instruction should occur
}

// ----------------------------------------------------------------------------
// Symbol Table

// Predefined (built-in) symbols, available to every Hack program without declaration.
// Never written to: a user label sharing a predefined name does not override it, since
// predefined names are resolved against this table first (see 'asm.Lowerer.HandleAInst').
var BuiltInTable = map[string]uint16{
	// Virtual Machine specific aliases (see project 7)
	"SP": 0, "LCL": 1, "ARG": 2, "THIS": 3, "THAT": 4,
	// Named general purpose registers
	"R0": 0, "R1": 1, "R2": 2, "R3": 3, "R4": 4, "R5": 5,
	"R6": 6, "R7": 7, "R8": 8, "R9": 9, "R10": 10, "R11": 11,
	"R12": 12, "R13": 13, "R14": 14, "R15": 15,
	// Memory mapped I/O locations
	"SCREEN": 16384, "KBD": 24576,
}

// Builds a fresh SymbolTable seeded with the predefined entries.
//
// 'NewCodeGenerator' falls back to it when given no table; the assembler pipeline instead
// passes the label table freshly built by 'asm.Lowerer.Lower'. Either way no table is
// shared between runs, which keeps 'assemble' idempotent however many times it's invoked.
func NewSymbolTable() SymbolTable {
	table := make(SymbolTable, len(BuiltInTable))
	for symbol, addr := range BuiltInTable {
		table[symbol] = addr
	}
	return table
}
