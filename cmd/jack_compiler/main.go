package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"its-hmny.dev/hackc/pkg/jack"
	"its-hmny.dev/hackc/pkg/vm"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The Jack Compiler compiles programs (composed of multiple classes/files) written in
the Jack language into VM modules that can be further elaborated. The Jack language
is a higher-level OOP language tailored for use with the Hack computer architecture.
`, "\n", " ")

var JackCompiler = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .jack file or directory
	WithArg(cli.NewArg("inputs", "The source (.jack) files or directories to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("xml", "Dumps the parse tree of each class as a sibling .xml file").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	// Aggregates all the Translation Units (TUs) found during the input walk: every '.jack'
	// file is one class and compiles to its own sibling '.vm' module, there is no cross-file
	// state to share beside the walk itself (dispatch in the language is fully static).
	TUs := []string{}

	for _, input := range args {
		err := filepath.Walk(input, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Ext(path) != ".jack" {
				return nil // We recurse on dirs and ignore other filetypes
			}

			TUs = append(TUs, path)
			return nil
		})

		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to walk input path '%s': %s\n", input, err)
			return -1
		}
	}

	for _, tu := range TUs {
		content, err := os.ReadFile(tu)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		// Removes root directory and file extension to use as module/class name
		stem := strings.TrimSuffix(tu, filepath.Ext(tu))
		className := filepath.Base(stem)

		// The optional parse tree recorder is only allocated behind its flag, the
		// engine treats a nil one as disabled.
		var recorder *jack.XMLRecorder
		if _, enabled := options["xml"]; enabled {
			recorder = jack.NewXMLRecorder()
		}

		// One tokenizer + engine pair per class, the engine emits the 'vm.Module'
		tokenizer := jack.NewTokenizer(content)
		engine := jack.NewEngine(tokenizer, recorder)

		module, err := engine.CompileClass()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", tu, err)
			return -1
		}

		// The same codegen that serves the VM translator renders the module to text
		codegen := vm.NewCodeGenerator(vm.Program{className: module})
		compiled, err := codegen.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'codegen' pass: %s\n", err)
			return -1
		}

		output, err := os.Create(fmt.Sprintf("%s.vm", stem))
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to open output file: %s\n", err)
			return -1
		}

		for _, line := range compiled[className] {
			fmt.Fprintf(output, "%s\n", line)
		}
		output.Close()

		if recorder != nil {
			if err := os.WriteFile(fmt.Sprintf("%s.xml", stem), recorder.Bytes(), 0644); err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: Unable to write parse tree dump: %s\n", err)
				return -1
			}
		}
	}

	return 0
}

func main() { os.Exit(JackCompiler.Run(os.Args, os.Stdout)) }
