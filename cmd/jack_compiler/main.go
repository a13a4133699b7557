package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nand2tetris-go/toolchain/pkg/jack"
	"github.com/nand2tetris-go/toolchain/pkg/vm"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The Jack Compiler compiles programs (composed of multiple classes/files) written in
the Jack language into VM modules that can be further elaborated. The Jack language
is a higher-level OOP language tailored for use with the Hack computer architecture.
`, "\n", " ")

var JackCompiler = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .jack file
	WithArg(cli.NewArg("inputs", "The source (.jack) files to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("typecheck", "Does a best-effort type check of source code before emitting any output").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	// TUs is the aggregation of all the Translation Units (TUs) found during the input
	// walk (just the paths); program is the full set of parsed classes, keyed by name.
	// As in the Jack spec, every source file is a class and every class is its own TU.
	TUs, program := []string{}, jack.Program{}

	for _, input := range args {
		filepath.Walk(input, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Ext(path) != ".jack" {
				return nil // We recurse on dirs and ignore other filetypes
			}

			TUs = append(TUs, path)
			return nil
		})
	}

	for _, tu := range TUs {
		content, err := os.ReadFile(tu)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		parser, err := jack.NewParser(bytes.NewReader(content))
		if err != nil {
			fmt.Printf("ERROR: Unable to tokenize input file '%s': %s\n", tu, err)
			return -1
		}

		class, err := parser.Parse()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'parsing' pass for '%s': %s\n", tu, err)
			return -1
		}
		program[class.Name] = class
	}

	if _, enabled := options["typecheck"]; enabled {
		// The standard library ABI is always available to the type checker (even when not
		// wired in the final binary) so calls into Math/String/Output/... resolve cleanly.
		checkerProgram := jack.Program{}
		for name, class := range program {
			checkerProgram[name] = class
		}
		for name, class := range jack.StandardLibraryABI {
			if _, exists := checkerProgram[name]; !exists {
				checkerProgram[name] = class
			}
		}

		checker := jack.NewTypeChecker(checkerProgram)
		if err := checker.Check(); err != nil {
			fmt.Printf("ERROR: Unable to complete 'typecheck' pass: %s\n", err)
			return -1
		}
	}

	for _, tu := range TUs {
		filename, extension := path.Base(tu), path.Ext(tu)
		className := strings.TrimSuffix(filename, extension)

		class, ok := program[className]
		if !ok {
			fmt.Printf("ERROR: Unable to find parsed class for file '%s'\n", tu)
			return -1
		}

		// Each class gets its own Lowerer: label/function-local counters only need to be
		// unique within the class they're declared in, and lowerer state never crosses class
		// boundaries (class scope is pushed and popped around Lower itself).
		lowerer := jack.NewLowerer()
		module, err := lowerer.Lower(class)
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'lowering' pass for '%s': %s\n", tu, err)
			return -1
		}

		codegen := vm.NewCodeGenerator(vm.Program{className: module})
		compiled, err := codegen.Generate()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'codegen' pass for '%s': %s\n", tu, err)
			return -1
		}

		output, err := os.Create(fmt.Sprintf("%s.vm", strings.TrimSuffix(tu, extension)))
		if err != nil {
			fmt.Printf("ERROR: Unable to open output file: %s\n", err)
			return -1
		}
		defer output.Close()

		for _, line := range compiled[className] {
			output.Write([]byte(fmt.Sprintf("%s\n", line)))
		}
	}

	return 0
}

func main() { os.Exit(JackCompiler.Run(os.Args, os.Stdout)) }
