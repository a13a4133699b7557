package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/nand2tetris-go/toolchain/pkg/asm"
	"github.com/nand2tetris-go/toolchain/pkg/vm"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .vm file
	WithArg(cli.NewArg("inputs", "The bytecode (.vm) file to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("output", "The compiled binary output (.asm)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("bootstrap", "Includes bootstrap code in the final .asm file (always on for more than one input)").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
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

	// Each input .vm file is parsed and lowered independently (a Lowerer's label/call
	// counters are only unique within the module they're declared in, so the labels they
	// produce carry the module name), then the resulting asm.Program fragments are
	// concatenated into one monolithic compiled output.
	asmProgram := asm.Program{}

	for _, input := range args {
		content, err := os.ReadFile(input)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		moduleName := strings.TrimSuffix(path.Base(input), path.Ext(input))

		parser := vm.NewParser(bytes.NewReader(content))
		module, err := parser.Parse()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
			return -1
		}

		lowerer := vm.NewLowerer(moduleName)
		lowered, err := lowerer.Lower(module)
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
			return -1
		}
		asmProgram = append(asmProgram, lowered...)
	}

	// When more than one module is translated, or the user opts in, the 'bootstrap' code is
	// included as the first instructions of our translated program, this code does the
	// following things:
	// - Sets the Stack Pointer to its base location at memory location 256
	// - Jump to the Sys.init function (defined in one of the translated .vm modules)
	if _, enabled := options["bootstrap"]; enabled || len(args) > 1 {
		asmProgram = append(asm.Program{
			asm.AInstruction{Location: "256"},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "Sys.init"},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, asmProgram...)
	}

	// Now, instantiates a code generator for the Asm (compiled) program
	codegen := asm.NewCodeGenerator(asmProgram)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	for _, comp := range compiled {
		line := fmt.Sprintf("%s\n", comp)
		output.Write([]byte(line))
	}

	return 0
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
