package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/nand2tetris/pkg/asm"
	"its-hmny.dev/nand2tetris/pkg/emulator"
	"its-hmny.dev/nand2tetris/pkg/hack"
)

var Description = strings.ReplaceAll(`
The Hack Emulator executes compiled Hack machine code (or assembly, which is assembled
first) on a simulated Hack CPU and reports every RAM address that was written during
the run, alongside its final value. Useful to inspect a program's effects without
needing the full graphical Hack computer.
`, "\n", " ")

var HackEmulator = cli.New(Description).
	WithArg(cli.NewArg("input", "The program (.hack or .asm) to be executed")).
	WithOption(cli.NewOption("cycles", "Runs for at most N ticks instead of until halt").
		WithType(cli.TypeInt)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	content, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("ERROR: Unable to open input file: %s\n", err)
		return -1
	}

	words, err := ToMachineWords(args[0], content)
	if err != nil {
		fmt.Printf("ERROR: Unable to obtain machine code for input file: %s\n", err)
		return -1
	}

	ticks := -1 // Unbounded: run until halt, unless the caller opts into a tick budget
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

// Converts the input file content to its 'uint16' machine-word counterpart.
//
// '.hack' input is already binary text and just needs decoding; '.asm' input is
// assembled first (parsing, lowering and codegen), reusing the exact same 'pkg/asm'
// + 'pkg/hack' pipeline 'cmd/hack_assembler' drives, so the emulator never
// duplicates assembly logic.
func ToMachineWords(filename string, content []byte) ([]uint16, error) {
	if strings.ToLower(path.Ext(filename)) == ".hack" {
		lines := strings.Split(string(content), "\n")
		return hack.ParseBinary(lines)
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

func main() { os.Exit(HackEmulator.Run(os.Args, os.Stdout)) }
