package vm

import (
	"fmt"
	"sort"
	"strconv"

	"its-hmny.dev/nand2tetris/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' and produces its 'asm.Program' counterpart.
//
// Modules are lowered in alphabetical order (by file/module name) so that the generated
// assembly is deterministic regardless of map iteration order or command-line arg order.
//
// 'cmpIndex' and 'callIndex' generate globally-unique labels for comparisons and call
// return-addresses; they live on the Lowerer instance (one per translation run) rather
// than as package state, so two Lowerers never collide and a single Lowerer never needs
// resetting between runs.
type Lowerer struct {
	program Program

	cmpIndex  uint // Disambiguates 'eq'/'gt'/'lt' generated labels across the whole program
	callIndex uint // Disambiguates generated call return-address labels across the whole program

	module   string // Name of the module/file currently being lowered (for 'static' segment scoping)
	function string // Fully qualified name of the function currently being lowered (for label scoping)
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process for the whole program, module by module, in alphabetical order.
func (l *Lowerer) Lower() (asm.Program, error) {
	if l.program == nil || len(l.program) == 0 {
		return nil, fmt.Errorf("the given 'program' is empty")
	}

	names := make([]string, 0, len(l.program))
	for name := range l.program {
		names = append(names, name)
	}
	sort.Strings(names)

	compiled := asm.Program{}
	for _, name := range names {
		l.module = name
		lowered, err := l.HandleModule(l.program[name])
		if err != nil {
			return nil, fmt.Errorf("error lowering module '%s': %w", name, err)
		}
		compiled = append(compiled, lowered...)
	}

	return compiled, nil
}

// Lowers a single module/file, dispatching each operation to its specialized handler.
func (l *Lowerer) HandleModule(module Module) (asm.Program, error) {
	compiled := asm.Program{}

	for _, operation := range module {
		var lowered asm.Program
		var err error

		switch tOperation := operation.(type) {
		case MemoryOp:
			lowered, err = l.HandleMemoryOp(tOperation)
		case ArithmeticOp:
			lowered, err = l.HandleArithmeticOp(tOperation)
		case LabelDecl:
			lowered, err = l.HandleLabelDecl(tOperation)
		case GotoOp:
			lowered, err = l.HandleGotoOp(tOperation)
		case FuncDecl:
			lowered, err = l.HandleFuncDecl(tOperation)
		case ReturnOp:
			lowered, err = l.HandleReturnOp(tOperation)
		case FuncCallOp:
			lowered, err = l.HandleFuncCallOp(tOperation)
		default:
			return nil, fmt.Errorf("unrecognized operation '%T'", operation)
		}

		if err != nil {
			return nil, err
		}
		compiled = append(compiled, lowered...)
	}

	return compiled, nil
}

// ----------------------------------------------------------------------------
// Small helpers to build Asm statements without excessive boilerplate

func aInst(location string) asm.Statement { return asm.AInstruction{Location: location} }
func cInst(dest, comp, jump string) asm.Statement {
	return asm.CInstruction{Dest: dest, Comp: comp, Jump: jump}
}
func label(name string) asm.Statement { return asm.LabelDecl{Name: name} }

// Pushes the value currently held in the 'D' register onto the stack and advances 'SP'.
func pushD() asm.Program {
	return asm.Program{
		aInst("SP"), cInst("A", "M", ""), cInst("M", "D", ""),
		aInst("SP"), cInst("M", "M+1", ""),
	}
}

// Decrements 'SP' and loads the popped value into the 'D' register.
func popD() asm.Program {
	return asm.Program{
		aInst("SP"), cInst("M", "M-1", ""),
		aInst("SP"), cInst("A", "M", ""), cInst("D", "M", ""),
	}
}

// ----------------------------------------------------------------------------
// Memory Op

// The pointer register backing each indirect-addressed segment (local/argument/this/that).
var segmentRegister = map[SegmentType]string{
	Local: "LCL", Argument: "ARG", This: "THIS", That: "THAT",
}

// Lowers a 'MemoryOp' (push/pop) to its Asm counterpart, per segment addressing mode.
func (l *Lowerer) HandleMemoryOp(op MemoryOp) (asm.Program, error) {
	switch op.Segment {
	case Constant:
		if op.Operation == Pop {
			return nil, fmt.Errorf("'constant' segment does not support 'pop'")
		}
		return append(asm.Program{
			aInst(strconv.Itoa(int(op.Offset))), cInst("D", "A", ""),
		}, pushD()...), nil

	case Local, Argument, This, That:
		register := segmentRegister[op.Segment]
		if op.Operation == Push {
			return append(asm.Program{
				aInst(strconv.Itoa(int(op.Offset))), cInst("D", "A", ""),
				aInst(register), cInst("A", "D+M", ""), cInst("D", "M", ""),
			}, pushD()...), nil
		}
		program := asm.Program{
			aInst(strconv.Itoa(int(op.Offset))), cInst("D", "A", ""),
			aInst(register), cInst("D", "D+M", ""),
			aInst("R13"), cInst("M", "D", ""),
		}
		program = append(program, popD()...)
		return append(program, aInst("R13"), cInst("A", "M", ""), cInst("M", "D", "")), nil

	case Temp:
		if op.Offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
		}
		address := strconv.Itoa(5 + int(op.Offset))
		if op.Operation == Push {
			return append(asm.Program{aInst(address), cInst("D", "M", "")}, pushD()...), nil
		}
		program := popD()
		return append(program, aInst(address), cInst("M", "D", "")), nil

	case Pointer:
		if op.Offset > 1 {
			return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
		}
		register := "THIS"
		if op.Offset == 1 {
			register = "THAT"
		}
		if op.Operation == Push {
			return append(asm.Program{aInst(register), cInst("D", "M", "")}, pushD()...), nil
		}
		program := popD()
		return append(program, aInst(register), cInst("M", "D", "")), nil

	case Static:
		variable := fmt.Sprintf("%s.%d", l.module, op.Offset)
		if op.Operation == Push {
			return append(asm.Program{aInst(variable), cInst("D", "M", "")}, pushD()...), nil
		}
		program := popD()
		return append(program, aInst(variable), cInst("M", "D", "")), nil
	}

	return nil, fmt.Errorf("unrecognized segment '%s'", op.Segment)
}

// ----------------------------------------------------------------------------
// Arithmetic Op

// Lowers an 'ArithmeticOp' to its Asm counterpart.
//
// Binary ops pop two values (D = second operand, M via A-1 = first operand) and leave the
// result where the first operand used to be, adjusting 'SP' by -1 in total. Unary ops (neg,
// not) mutate the top of the stack in place, without touching 'SP'.
func (l *Lowerer) HandleArithmeticOp(op ArithmeticOp) (asm.Program, error) {
	switch op.Operation {
	case Add:
		return l.binaryOp("M+D"), nil
	case Sub:
		return l.binaryOp("M-D"), nil
	case And:
		return l.binaryOp("M&D"), nil
	case Or:
		return l.binaryOp("M|D"), nil
	case Neg:
		return asm.Program{aInst("SP"), cInst("A", "M-1", ""), cInst("M", "-M", "")}, nil
	case Not:
		return asm.Program{aInst("SP"), cInst("A", "M-1", ""), cInst("M", "!M", "")}, nil
	case Eq:
		return l.comparisonOp("JEQ"), nil
	case Gt:
		return l.comparisonOp("JGT"), nil
	case Lt:
		return l.comparisonOp("JLT"), nil
	}

	return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
}

// Generates the common prelude shared by every binary arithmetic operation: pops the
// second operand into 'D', then computes 'comp' against the first operand (still on the
// stack, accessed through 'M') and stores the result back in place of the first operand.
func (l *Lowerer) binaryOp(comp string) asm.Program {
	program := popD()
	return append(program, aInst("SP"), cInst("A", "M-1", ""), cInst("M", comp, ""))
}

// Generates a comparison operation (eq/gt/lt), each occurrence gets a fresh, globally
// unique pair of labels (via 'cmpIndex') so that nested/sequential comparisons never clash.
func (l *Lowerer) comparisonOp(jump string) asm.Program {
	trueLabel := fmt.Sprintf("CMP_TRUE_%d", l.cmpIndex)
	endLabel := fmt.Sprintf("CMP_END_%d", l.cmpIndex)
	l.cmpIndex++

	program := popD()
	program = append(program,
		aInst("SP"), cInst("A", "M-1", ""), cInst("D", "M-D", ""),
		aInst(trueLabel), cInst("", "D", jump),
		aInst("SP"), cInst("A", "M-1", ""), cInst("M", "0", ""),
		aInst(endLabel), cInst("", "0", "JMP"),
		label(trueLabel),
		aInst("SP"), cInst("A", "M-1", ""), cInst("M", "-1", ""),
		label(endLabel),
	)
	return program
}

// ----------------------------------------------------------------------------
// Flow control Op(s)

// Qualifies a VM-level label with the current function, so that two functions can each
// declare a label with the same name (e.g. 'WHILE_START') without colliding in the
// flattened Asm output.
func (l *Lowerer) scopedLabel(name string) string {
	if l.function == "" {
		return fmt.Sprintf("%s$%s", l.module, name)
	}
	return fmt.Sprintf("%s$%s", l.function, name)
}

// Lowers a 'LabelDecl' to its Asm counterpart.
func (l *Lowerer) HandleLabelDecl(op LabelDecl) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty label declaration")
	}
	return asm.Program{label(l.scopedLabel(op.Name))}, nil
}

// Lowers a 'GotoOp' (goto/if-goto) to its Asm counterpart.
func (l *Lowerer) HandleGotoOp(op GotoOp) (asm.Program, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to produce empty jump label")
	}

	target := l.scopedLabel(op.Label)
	if op.Jump == Unconditional {
		return asm.Program{aInst(target), cInst("", "0", "JMP")}, nil
	}

	program := popD()
	return append(program, aInst(target), cInst("", "D", "JNE")), nil
}

// ----------------------------------------------------------------------------
// Function Op(s)

// Lowers a 'FuncDecl' to its Asm counterpart: a label followed by zero-initializing
// every declared local variable.
func (l *Lowerer) HandleFuncDecl(op FuncDecl) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function declaration")
	}
	l.function = op.Name

	program := asm.Program{label(op.Name)}
	for i := uint16(0); i < op.NLocal; i++ {
		program = append(program, aInst("0"), cInst("D", "A", ""))
		program = append(program, pushD()...)
	}
	return program, nil
}

// Lowers a 'ReturnOp' to its Asm counterpart, following the standard frame-teardown
// convention: stash the frame base and return address in 'R13'/'R14' before the caller's
// segments are restored, since 'ARG' (used to relocate the return value) may itself be
// overwritten by the restore sequence.
func (l *Lowerer) HandleReturnOp(op ReturnOp) (asm.Program, error) {
	program := asm.Program{
		aInst("LCL"), cInst("D", "M", ""), aInst("R13"), cInst("M", "D", ""), // R13 = frame = LCL
		aInst("5"), cInst("A", "D-A", ""), cInst("D", "M", ""), aInst("R14"), cInst("M", "D", ""), // R14 = *(frame-5)
	}
	program = append(program, popD()...)
	program = append(program,
		aInst("ARG"), cInst("A", "M", ""), cInst("M", "D", ""), // *ARG = popped return value
		aInst("ARG"), cInst("D", "M+1", ""), aInst("SP"), cInst("M", "D", ""), // SP = ARG+1

		aInst("R13"), cInst("A", "M-1", ""), cInst("D", "M", ""), aInst("THAT"), cInst("M", "D", ""), // THAT = *(frame-1)
		aInst("R13"), cInst("D", "M", ""), aInst("2"), cInst("A", "D-A", ""), cInst("D", "M", ""), aInst("THIS"), cInst("M", "D", ""), // THIS = *(frame-2)
		aInst("R13"), cInst("D", "M", ""), aInst("3"), cInst("A", "D-A", ""), cInst("D", "M", ""), aInst("ARG"), cInst("M", "D", ""), // ARG = *(frame-3)
		aInst("R13"), cInst("D", "M", ""), aInst("4"), cInst("A", "D-A", ""), cInst("D", "M", ""), aInst("LCL"), cInst("M", "D", ""), // LCL = *(frame-4)

		aInst("R14"), cInst("A", "M", ""), cInst("", "0", "JMP"), // goto retAddr
	)
	return program, nil
}

// Lowers a 'FuncCallOp' to its Asm counterpart, following the standard call convention:
// push the return address and the caller's 4 segment pointers, then relocate 'ARG'/'LCL'
// for the callee before jumping to it.
func (l *Lowerer) HandleFuncCallOp(op FuncCallOp) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function call")
	}

	returnLabel := fmt.Sprintf("%s$ret.%d", op.Name, l.callIndex)
	l.callIndex++

	program := asm.Program{aInst(returnLabel), cInst("D", "A", "")}
	program = append(program, pushD()...)
	for _, segment := range []string{"LCL", "ARG", "THIS", "THAT"} {
		program = append(program, aInst(segment), cInst("D", "M", ""))
		program = append(program, pushD()...)
	}

	program = append(program,
		aInst("SP"), cInst("D", "M", ""),
		aInst(strconv.Itoa(5+int(op.NArgs))), cInst("D", "D-A", ""),
		aInst("ARG"), cInst("M", "D", ""),
		aInst("SP"), cInst("D", "M", ""),
		aInst("LCL"), cInst("M", "D", ""),
		aInst(op.Name), cInst("", "0", "JMP"),
		label(returnLabel),
	)
	return program, nil
}
