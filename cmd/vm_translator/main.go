package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/hackc/pkg/asm"
	"its-hmny.dev/hackc/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	WithArg(cli.NewArg("input", "The bytecode (.vm) file or directory to be translated")).
	WithOption(cli.NewOption("output", "The translated assembly output (.asm)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("bootstrap", "Forces the bootstrap preamble also on single-file inputs").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	input := filepath.Clean(args[0])
	info, err := os.Stat(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to access input path: %s\n", err)
		return -1
	}

	// On a directory every '.vm' module inside is linked in one translation and the
	// output gets the bootstrap preamble (SP = 256, call Sys.init 0); on a single file
	// the module is translated alone and the preamble is only added behind its flag.
	inputs, output, bootstrap := []string{}, "", false

	if info.IsDir() {
		entries, err := os.ReadDir(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to list input directory: %s\n", err)
			return -1
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".vm" {
				inputs = append(inputs, filepath.Join(input, entry.Name()))
			}
		}

		output = filepath.Join(input, fmt.Sprintf("%s.asm", filepath.Base(input)))
		bootstrap = true
	} else {
		inputs = []string{input}
		output = fmt.Sprintf("%s.asm", strings.TrimSuffix(input, filepath.Ext(input)))
	}

	if len(inputs) == 0 {
		fmt.Fprintf(os.Stderr, "ERROR: No '.vm' file found in '%s'\n", input)
		return -1
	}
	if _, forced := options["bootstrap"]; forced {
		bootstrap = true
	}
	if options["output"] != "" {
		output = options["output"]
	}

	// Allocates a 'vm.Program' struct to save all the parsed translation units
	// (the .vm files) that will be parsed independently and then lowered together
	// (the lowering phase creates a monolithic assembly output).
	program := vm.Program{}

	for _, path := range inputs {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		// The module name (the file stem) namespaces the module's static segment
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		parser := vm.NewParser(bytes.NewReader(content))
		program[stem], err = parser.Parse()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: Unable to complete 'parsing' pass: %s\n", path, err)
			return -1
		}
	}

	// Instantiate a lowerer to convert the program from Vm to Asm
	lowerer := vm.NewLowerer(program, bootstrap)
	// Lowers the vm.Program to an in-memory/IR representation of its Asm counterpart 'asm.Program'.
	asmProgram, err := lowerer.Lower()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	// Now, instantiates a code generator for the Asm (translated) program
	codegen := asm.NewCodeGenerator(asmProgram)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	file, err := os.Create(output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to open output file: %s\n", err)
		return -1
	}
	defer file.Close()

	for _, line := range compiled {
		fmt.Fprintf(file, "%s\n", line)
	}

	return 0
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
