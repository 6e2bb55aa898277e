package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Computes 2 + 3 into R0, the canonical first assembly program of the platform.
const addProgram = `
// Adds two constants and stores the result in R0
@2
D=A
@3
D=D+A
@0
M=D
`

func TestAssembleAddProgram(t *testing.T) {
	dir := t.TempDir()
	input, output := filepath.Join(dir, "Add.asm"), filepath.Join(dir, "Add.hack")
	if err := os.WriteFile(input, []byte(addProgram), 0644); err != nil {
		t.Fatalf("unable to seed input file: %v", err)
	}

	if status := Handler([]string{input, output}, map[string]string{}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("expected Add.hack to be emitted: %v", err)
	}

	expected := []string{
		"0000000000000010", // @2
		"1110110000010000", // D=A
		"0000000000000011", // @3
		"1110000010010000", // D=D+A
		"0000000000000000", // @0
		"1110001100001000", // M=D
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != len(expected) {
		t.Fatalf("expected %d instructions, got %d", len(expected), len(lines))
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("instruction %d: expected '%s', got '%s'", i, expected[i], lines[i])
		}
	}
}

func TestAssembleWithLabelsAndVariables(t *testing.T) {
	// An infinite loop over a user variable: the label resolves to an instruction
	// address, the variable gets the first free RAM slot (16).
	source := `
@counter
M=M+1
(LOOP)
@LOOP
0;JMP
`

	dir := t.TempDir()
	input, output := filepath.Join(dir, "Loop.asm"), filepath.Join(dir, "Loop.hack")
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("unable to seed input file: %v", err)
	}

	if status := Handler([]string{input, output}, map[string]string{}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("expected Loop.hack to be emitted: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 4 { // The label declaration occupies no instruction slot
		t.Fatalf("expected 4 instructions, got %d", len(lines))
	}
	if lines[0] != "0000000000010000" { // @counter -> address 16
		t.Errorf("expected the user variable at address 16, got %s", lines[0])
	}
	if lines[2] != "0000000000000010" { // @LOOP -> instruction 2
		t.Errorf("expected the label to resolve to instruction 2, got %s", lines[2])
	}
}

func TestAssembleFailure(t *testing.T) {
	dir := t.TempDir()
	input, output := filepath.Join(dir, "Broken.asm"), filepath.Join(dir, "Broken.hack")
	if err := os.WriteFile(input, []byte("(SP)\n@0\n0;JMP\n"), 0644); err != nil {
		t.Fatalf("unable to seed input file: %v", err)
	}

	if status := Handler([]string{input, output}, map[string]string{}); status == 0 {
		t.Fatalf("expected a non-zero exit status when overriding a built-in label")
	}
}
