package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

const sysModule = `
function Sys.init 0
push constant 5
push constant 3
call Main.sub 2
pop temp 0
label HALT
goto HALT
`

const mainModule = `
function Main.sub 0
push argument 0
push argument 1
sub
return
`

func TestTranslateDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Deduct")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("unable to create input directory: %v", err)
	}
	for name, source := range map[string]string{"Sys.vm": sysModule, "Main.vm": mainModule} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(source), 0644); err != nil {
			t.Fatalf("unable to seed input file: %v", err)
		}
	}

	if status := Handler([]string{dir}, map[string]string{}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	// A directory translates to a single <dirname>.asm with the bootstrap preamble
	content, err := os.ReadFile(filepath.Join(dir, "Deduct.asm"))
	if err != nil {
		t.Fatalf("expected Deduct.asm to be emitted: %v", err)
	}

	asm := string(content)
	if !strings.HasPrefix(asm, "@256\nD=A\n@SP\nM=D\n") {
		t.Errorf("expected the bootstrap preamble to open the output")
	}
	for _, expected := range []string{"@Sys.init", "(Sys.init)", "(Main.sub)", "(Sys.init$HALT)", "(Sys.init$ret.0)"} {
		if !strings.Contains(asm, expected) {
			t.Errorf("expected '%s' in the translated output", expected)
		}
	}

	snaps.MatchSnapshot(t, asm)
}

func TestTranslateSingleFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Main.vm")
	if err := os.WriteFile(input, []byte(mainModule), 0644); err != nil {
		t.Fatalf("unable to seed input file: %v", err)
	}

	if status := Handler([]string{input}, map[string]string{}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	content, err := os.ReadFile(filepath.Join(dir, "Main.asm"))
	if err != nil {
		t.Fatalf("expected Main.asm next to the input: %v", err)
	}

	// Single file invocations emit no bootstrap unless explicitly requested
	if strings.Contains(string(content), "@Sys.init") {
		t.Errorf("expected no bootstrap preamble on a single-file input")
	}
}

func TestForcedBootstrap(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Main.vm")
	if err := os.WriteFile(input, []byte(mainModule), 0644); err != nil {
		t.Fatalf("unable to seed input file: %v", err)
	}

	if status := Handler([]string{input}, map[string]string{"bootstrap": "true"}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	content, err := os.ReadFile(filepath.Join(dir, "Main.asm"))
	if err != nil {
		t.Fatalf("expected Main.asm next to the input: %v", err)
	}
	if !strings.Contains(string(content), "@Sys.init") {
		t.Errorf("expected the bootstrap preamble under --bootstrap")
	}
}

func TestOutputOverride(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Main.vm")
	if err := os.WriteFile(input, []byte(mainModule), 0644); err != nil {
		t.Fatalf("unable to seed input file: %v", err)
	}

	override := filepath.Join(dir, "custom_name.asm")
	if status := Handler([]string{input}, map[string]string{"output": override}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	if _, err := os.Stat(override); err != nil {
		t.Errorf("expected the output at the overridden path: %v", err)
	}
}
