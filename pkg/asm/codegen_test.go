package asm_test

import (
	"testing"

	"its-hmny.dev/hackc/pkg/asm"
)

func TestAInstructions(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := asm.NewCodeGenerator(asm.Program{})

	test := func(inst asm.AInstruction, expected string, fail bool) {
		res, err := codegen.GenerateAInst(inst)
		if res != expected {
			t.Errorf("expected '%s', got '%s'", expected, res)
		}
		if (err != nil) != fail {
			t.Errorf("unexpected error state for %+v: %v", inst, err)
		}
	}

	t.Run("Raw memory access", func(t *testing.T) {
		// The textual form just echoes the location, range checking on raw
		// addresses belongs to the Hack binary codegen downstream.
		test(asm.AInstruction{Location: "38"}, "@38", false)
		test(asm.AInstruction{Location: "42"}, "@42", false)
		test(asm.AInstruction{Location: "64"}, "@64", false)
		test(asm.AInstruction{Location: "1024"}, "@1024", false)
	})

	t.Run("Hack built-in labels", func(t *testing.T) {
		// Named specific purpose registries
		test(asm.AInstruction{Location: "SP"}, "@SP", false)
		test(asm.AInstruction{Location: "LCL"}, "@LCL", false)
		test(asm.AInstruction{Location: "ARG"}, "@ARG", false)
		test(asm.AInstruction{Location: "THIS"}, "@THIS", false)
		test(asm.AInstruction{Location: "THAT"}, "@THAT", false)
		// Named general purpose registers (R13 to R15 serve as VM temporaries)
		test(asm.AInstruction{Location: "R13"}, "@R13", false)
		test(asm.AInstruction{Location: "R14"}, "@R14", false)
		test(asm.AInstruction{Location: "R15"}, "@R15", false)
		// Memory mapped I/O address testing (SCREEN is a range but only the first word is named)
		test(asm.AInstruction{Location: "KBD"}, "@KBD", false)
		test(asm.AInstruction{Location: "SCREEN"}, "@SCREEN", false)
	})

	t.Run("User-defined labels", func(t *testing.T) {
		// Labels produced by the VM translator: static cells, scoped jumps, return sites
		test(asm.AInstruction{Location: "Foo.0"}, "@Foo.0", false)
		test(asm.AInstruction{Location: "Main.main$LOOP"}, "@Main.main$LOOP", false)
		test(asm.AInstruction{Location: "Main.main$ret.1"}, "@Main.main$ret.1", false)
		test(asm.AInstruction{Location: "EQ_TRUE_3"}, "@EQ_TRUE_3", false)
		// An empty location is the only malformed A instruction at this level
		test(asm.AInstruction{Location: ""}, "", true)
	})
}

func TestCInstructions(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := asm.NewCodeGenerator(asm.Program{})

	test := func(inst asm.CInstruction, expected string, fail bool) {
		res, err := codegen.GenerateCInst(inst)
		if res != expected {
			t.Errorf("expected '%s', got '%s'", expected, res)
		}
		if (err != nil) != fail {
			t.Errorf("unexpected error state for %+v: %v", inst, err)
		}
	}

	t.Run("Comps and Jumps", func(t *testing.T) {
		// Basic constant and identities operations with jump directives
		test(asm.CInstruction{Comp: "0", Jump: "JMP"}, "0;JMP", false)
		test(asm.CInstruction{Comp: "1", Jump: "JEQ"}, "1;JEQ", false)
		test(asm.CInstruction{Comp: "-1", Jump: "JEQ"}, "-1;JEQ", false)
		test(asm.CInstruction{Comp: "D", Jump: "JNE"}, "D;JNE", false)
		test(asm.CInstruction{Comp: "D", Jump: "JGT"}, "D;JGT", false)
		test(asm.CInstruction{Comp: "D", Jump: "JLT"}, "D;JLT", false)
	})

	t.Run("Comps and Dests", func(t *testing.T) {
		// Register with register operations with dest directives
		test(asm.CInstruction{Comp: "D+M", Dest: "M"}, "M=D+M", false)
		test(asm.CInstruction{Comp: "M-D", Dest: "M"}, "M=M-D", false)
		test(asm.CInstruction{Comp: "D-A", Dest: "A"}, "A=D-A", false)
		test(asm.CInstruction{Comp: "M-1", Dest: "AM"}, "AM=M-1", false)
		// Bitwise register with register operations with dest directives
		test(asm.CInstruction{Comp: "D&M", Dest: "M"}, "M=D&M", false)
		test(asm.CInstruction{Comp: "D|M", Dest: "MD"}, "MD=D|M", false)
		// Basic constant and identities operations with dest directives
		test(asm.CInstruction{Comp: "M", Dest: "D"}, "D=M", false)
		test(asm.CInstruction{Comp: "0", Dest: "M"}, "M=0", false)
		test(asm.CInstruction{Comp: "-1", Dest: "AMD"}, "AMD=-1", false)
	})

	t.Run("Malformed Inst", func(t *testing.T) {
		// A C Instruction needs exactly one of 'Dest' or 'Jump' beside 'Comp'
		test(asm.CInstruction{Comp: "D+1"}, "", true)
		test(asm.CInstruction{Comp: "A", Dest: "M", Jump: "JMP"}, "", true)
		// 'Comp' can never be missing
		test(asm.CInstruction{Dest: "AM", Jump: "JNE"}, "", true)
		test(asm.CInstruction{Dest: "AMD"}, "", true)
		test(asm.CInstruction{Jump: "JGT"}, "", true)
	})
}

func TestLabelDecl(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := asm.NewCodeGenerator(asm.Program{})

	test := func(inst asm.LabelDecl, expected string, fail bool) {
		res, err := codegen.GenerateLabelDecl(inst)
		if res != expected {
			t.Errorf("expected '%s', got '%s'", expected, res)
		}
		if (err != nil) != fail {
			t.Errorf("unexpected error state for %+v: %v", inst, err)
		}
	}

	t.Run("Fuzzy labels", func(t *testing.T) {
		// Fuzzy label declaration
		test(asm.LabelDecl{Name: "test123"}, "(test123)", false)
		test(asm.LabelDecl{Name: "ping"}, "(ping)", false)
		test(asm.LabelDecl{Name: "PONG"}, "(PONG)", false)
		test(asm.LabelDecl{Name: "Main.main$LOOP"}, "(Main.main$LOOP)", false)
		test(asm.LabelDecl{Name: "Sys.init$ret.0"}, "(Sys.init$ret.0)", false)
		// Malformed or conflicting label generation
		test(asm.LabelDecl{Name: ""}, "", true)
		test(asm.LabelDecl{Name: "SP"}, "", true)
		test(asm.LabelDecl{Name: "R1"}, "", true)
		test(asm.LabelDecl{Name: "LCL"}, "", true)
		test(asm.LabelDecl{Name: "R15"}, "", true)
	})
}
