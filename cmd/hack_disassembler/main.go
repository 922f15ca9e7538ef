package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/nand2tetris/pkg/asm"
	"its-hmny.dev/nand2tetris/pkg/hack"
)

var Description = strings.ReplaceAll(`
The Hack Disassembler takes compiled Hack machine code and recovers its Assembly
language counterpart. Since label names don't survive assembly, every A instruction
is rendered with its raw numeric address rather than the original symbol.
`, "\n", " ")

var HackDisassembler = cli.New(Description).
	WithArg(cli.NewArg("input", "The binary (.hack) file to be disassembled")).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
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

func main() { os.Exit(HackDisassembler.Run(os.Args, os.Stdout)) }
