package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/nand2tetris/pkg/asm"
	"its-hmny.dev/nand2tetris/pkg/emulator"
	"its-hmny.dev/nand2tetris/pkg/hack"
	"its-hmny.dev/nand2tetris/pkg/jack"
	"its-hmny.dev/nand2tetris/pkg/vm"
)

var Description = strings.ReplaceAll(`
n2t is the umbrella entry point for the full Nand-to-Tetris toolchain: assemble,
translate_vm, compile, execute and disassemble, one subcommand per stage. Each
subcommand drives the very same parsing/lowering/codegen pipeline as its
standalone counterpart ('hack_assembler', 'vm_translator', 'jack_compiler',
'hack_emulator', 'hack_disassembler'); this is a single binary for convenience,
not a different implementation.
`, "\n", " ")

// Wraps a stage handler so every successful invocation prints "Done!", per the
// external CLI contract: all five verbs succeed with exit code 0 and that exact line.
func done(action func([]string, map[string]string) int) func([]string, map[string]string) int {
	return func(args []string, options map[string]string) int {
		code := action(args, options)
		if code == 0 {
			fmt.Println("Done!")
		}
		return code
	}
}

var N2T = cli.New(Description).
	WithCommand(cli.NewCommand("assemble", "Assembles a .asm file into Hack binary").
		WithArg(cli.NewArg("input", "The assembler (.asm) file to be compiled")).
		WithArg(cli.NewArg("output", "The compiled binary output (.hack)")).
		WithAction(done(Assemble))).
	WithCommand(cli.NewCommand("translate_vm", "Translates .vm file(s) into Hack assembly").
		WithArg(cli.NewArg("inputs", "The bytecode (.vm) file(s) to be compiled").
			AsOptional().WithType(cli.TypeString)).
		WithOption(cli.NewOption("output", "The compiled assembly output (.asm)").
			WithType(cli.TypeString)).
		WithOption(cli.NewOption("bootstrap", "Includes bootstrap code in the final .asm file").
			WithType(cli.TypeBool)).
		WithAction(done(TranslateVm))).
	WithCommand(cli.NewCommand("compile", "Compiles .jack file(s) into VM modules").
		WithArg(cli.NewArg("inputs", "The source (.jack) file(s) or directory to be compiled").
			AsOptional().WithType(cli.TypeString)).
		WithOption(cli.NewOption("stdlib", "Uses the built-in ABI of the standard library for lowering").
			WithType(cli.TypeBool)).
		WithAction(done(Compile))).
	WithCommand(cli.NewCommand("execute", "Executes a .hack (or .asm) program on the CPU emulator").
		WithArg(cli.NewArg("input", "The program (.hack or .asm) to be executed")).
		WithOption(cli.NewOption("cycles", "Runs for at most N ticks instead of until halt").
			WithType(cli.TypeInt)).
		WithAction(done(Execute))).
	WithCommand(cli.NewCommand("disassemble", "Disassembles a .hack file into Hack assembly").
		WithArg(cli.NewArg("input", "The binary (.hack) file to be disassembled")).
		WithAction(done(Disassemble)))

// ----------------------------------------------------------------------------
// assemble

func Assemble(args []string, options map[string]string) int {
	content, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("ERROR: Unable to open input file: %s\n", err)
		return -1
	}
	output, err := os.Create(args[1])
	if err != nil {
		fmt.Printf("ERROR: Unable to open output file: %s\n", err)
		return -1
	}
	defer output.Close()

	parser := asm.NewParser(bytes.NewReader(content))
	asmProgram, err := parser.Parse()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
		return -1
	}

	lowerer := asm.NewLowerer(asmProgram)
	hackProgram, table, err := lowerer.Lower()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	codegen := hack.NewCodeGenerator(hackProgram, table)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	for _, line := range compiled {
		output.Write([]byte(fmt.Sprintf("%s\n", line)))
	}
	return 0
}

// ----------------------------------------------------------------------------
// translate_vm

func TranslateVm(args []string, options map[string]string) int {
	if len(args) < 1 || options["output"] == "" {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	output, err := os.Create(options["output"])
	if err != nil {
		fmt.Printf("ERROR: Unable to open output file: %s\n", err)
		return -1
	}
	defer output.Close()

	program := vm.Program{}
	for _, input := range args {
		content, err := os.ReadFile(input)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		parser := vm.NewParser(bytes.NewReader(content))
		program[path.Base(input)], err = parser.Parse()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
			return -1
		}
	}

	lowerer := vm.NewLowerer(program)

	var bootstrap asm.Program
	if _, enabled := options["bootstrap"]; enabled {
		bootstrap = asm.Program{
			asm.AInstruction{Location: "256"},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
		call, err := lowerer.HandleFuncCallOp(vm.FuncCallOp{Name: "Sys.init", NArgs: 0})
		if err != nil {
			fmt.Printf("ERROR: Unable to generate bootstrap call to 'Sys.init': %s\n", err)
			return -1
		}
		bootstrap = append(bootstrap, call...)
	}

	asmProgram, err := lowerer.Lower()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}
	asmProgram = append(bootstrap, asmProgram...)

	codegen := asm.NewCodeGenerator(asmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	for _, line := range compiled {
		output.Write([]byte(fmt.Sprintf("%s\n", line)))
	}
	return 0
}

// ----------------------------------------------------------------------------
// compile

func Compile(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	TUs, program := []string{}, jack.Program{}
	for _, input := range args {
		filepath.Walk(input, func(walked string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Ext(walked) != ".jack" {
				return nil
			}
			TUs = append(TUs, walked)
			return nil
		})
	}

	for _, tu := range TUs {
		content, err := os.ReadFile(tu)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		parser := jack.NewParser(bytes.NewReader(content))
		filename, extension := path.Base(tu), path.Ext(tu)
		program[strings.TrimSuffix(filename, extension)], err = parser.Parse()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
			return -1
		}
	}

	// User-provided TUs take precedence over the ABI stub (see cmd/jack_compiler for the rationale).
	if _, enabled := options["stdlib"]; enabled {
		for name, class := range jack.StandardLibraryABI {
			if _, exists := program[name]; !exists {
				program[name] = class
			}
		}
	}

	lowerer := jack.NewLowerer(program)
	vmProgram, err := lowerer.Lower()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	codegen := vm.NewCodeGenerator(vmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	for _, tu := range TUs {
		filename, extension := path.Base(tu), path.Ext(tu)
		module, ok := compiled[strings.TrimSuffix(filename, extension)]
		if !ok {
			fmt.Printf("ERROR: Unable to compile module for class file '%s'\n", tu)
			return -1
		}

		output, err := os.Create(fmt.Sprintf("%s.vm", strings.TrimSuffix(tu, extension)))
		if err != nil {
			fmt.Printf("ERROR: Unable to open output file: %s\n", err)
			return -1
		}
		defer output.Close()

		for _, ops := range module {
			output.Write([]byte(fmt.Sprintf("%s\n", ops)))
		}
	}
	return 0
}

// ----------------------------------------------------------------------------
// execute

func Execute(args []string, options map[string]string) int {
	content, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("ERROR: Unable to open input file: %s\n", err)
		return -1
	}

	words, err := toMachineWords(args[0], content)
	if err != nil {
		fmt.Printf("ERROR: Unable to obtain machine code for input file: %s\n", err)
		return -1
	}

	ticks := -1
	if raw, given := options["cycles"]; given {
		ticks, err = strconv.Atoi(raw)
		if err != nil {
			fmt.Printf("ERROR: Invalid '--cycles' value: %s\n", err)
			return -1
		}
	}

	cpu := emulator.NewCPU(words)
	cpu.Run(ticks)

	trace, err := json.Marshal(cpu.Trace())
	if err != nil {
		fmt.Printf("ERROR: Unable to serialize emulator trace: %s\n", err)
		return -1
	}

	extension := path.Ext(args[0])
	output, err := os.Create(fmt.Sprintf("%s.json", strings.TrimSuffix(args[0], extension)))
	if err != nil {
		fmt.Printf("ERROR: Unable to open output file: %s\n", err)
		return -1
	}
	defer output.Close()

	output.Write(trace)
	return 0
}

func toMachineWords(filename string, content []byte) ([]uint16, error) {
	if strings.ToLower(path.Ext(filename)) == ".hack" {
		return hack.ParseBinary(strings.Split(string(content), "\n"))
	}

	parser := asm.NewParser(bytes.NewReader(content))
	asmProgram, err := parser.Parse()
	if err != nil {
		return nil, fmt.Errorf("unable to complete 'parsing' pass: %w", err)
	}

	lowerer := asm.NewLowerer(asmProgram)
	hackProgram, table, err := lowerer.Lower()
	if err != nil {
		return nil, fmt.Errorf("unable to complete 'lowering' pass: %w", err)
	}

	codegen := hack.NewCodeGenerator(hackProgram, table)
	compiled, err := codegen.Generate()
	if err != nil {
		return nil, fmt.Errorf("unable to complete 'codegen' pass: %w", err)
	}

	return hack.ParseBinary(compiled)
}

// ----------------------------------------------------------------------------
// disassemble

func Disassemble(args []string, options map[string]string) int {
	content, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("ERROR: Unable to open input file: %s\n", err)
		return -1
	}

	words, err := hack.ParseBinary(strings.Split(string(content), "\n"))
	if err != nil {
		fmt.Printf("ERROR: Unable to parse input file as Hack binary: %s\n", err)
		return -1
	}

	disassembler := asm.NewDisassembler(words)
	program, err := disassembler.Disassemble()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'disassemble' pass: %s\n", err)
		return -1
	}

	codegen := asm.NewCodeGenerator(program)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	extension := path.Ext(args[0])
	output, err := os.Create(fmt.Sprintf("%s.asm", strings.TrimSuffix(args[0], extension)))
	if err != nil {
		fmt.Printf("ERROR: Unable to open output file: %s\n", err)
		return -1
	}
	defer output.Close()

	for _, line := range compiled {
		output.Write([]byte(fmt.Sprintf("%s\n", line)))
	}
	return 0
}

func main() { os.Exit(N2T.Run(os.Args, os.Stdout)) }
