package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/nand2tetris/pkg/asm"
	"its-hmny.dev/nand2tetris/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.

Accepts either a single '.vm' file (translated alone, no bootstrap) or a directory (every
'.vm' file inside is concatenated into a single '.asm' output, prefixed with the bootstrap
sequence whenever one of the inputs defines 'Sys.init').
`, "\n", " ")

var VmTranslator = cli.New(Description).
	WithArg(cli.NewArg("input", "The '.vm' file or directory to be translated").WithType(cli.TypeString)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	input := args[0]
	info, err := os.Stat(input)
	if err != nil {
		fmt.Printf("ERROR: Unable to stat input path: %s\n", err)
		return -1
	}

	inputFiles, outputPath := []string{input}, strings.TrimSuffix(input, ".vm")+".asm"
	if info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(input, "*.vm"))
		if err != nil {
			fmt.Printf("ERROR: Unable to list '.vm' files in directory: %s\n", err)
			return -1
		}
		inputFiles = matches
		outputPath = filepath.Join(filepath.Dir(input), filepath.Base(input)+".asm")
	}

	// Allocates a 'vm.Program' struct to save all the parsed translation unit
	// (the .vm files) that will be parsed and lowered independently and then
	// sent to the codegen phases (that will create a monolithic compiled output).
	program := vm.Program{}

	for _, file := range inputFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		parser := vm.NewParser(bytes.NewReader(content))
		module, err := parser.Parse()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
			return -1
		}

		moduleName := strings.TrimSuffix(filepath.Base(file), ".vm")
		program[moduleName] = module
	}

	lowerer := vm.NewLowerer(program)
	asmProgram, err := lowerer.Lowerer()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	// Only directory-mode translation ever prepends the bootstrap, and only when one of the
	// provided modules actually defines a function named 'Sys.init' (regardless of which
	// file it was declared in); a lone file is translated as-is.
	if info.IsDir() && definesSysInit(program) {
		asmProgram = vm.Bootstrap(asmProgram)
	}

	codegen := asm.NewCodeGenerator(asmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	output, err := os.Create(outputPath)
	if err != nil {
		fmt.Printf("ERROR: Unable to open output file: %s\n", err)
		return -1
	}
	defer output.Close()

	for _, line := range compiled {
		fmt.Fprintf(output, "%s\n", line)
	}

	return 0
}

// definesSysInit scans every module of 'program' for a function declaration named
// 'Sys.init', independent of which file it was found in.
func definesSysInit(program vm.Program) bool {
	for _, module := range program {
		for _, operation := range module {
			if decl, ok := operation.(vm.FuncDecl); ok && decl.Name == "Sys.init" {
				return true
			}
		}
	}
	return false
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
