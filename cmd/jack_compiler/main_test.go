package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

const mainClass = `
// Prints the sum of the first ten integers.
class Main {
	function void main() {
		var int sum, i;
		let sum = 0;
		let i = 1;
		while (~(i > 10)) {
			let sum = sum + i;
			let i = i + 1;
		}
		do Output.printInt(sum);
		return;
	}
}
`

const counterClass = `
class Counter {
	field int count;

	constructor Counter new() {
		let count = 0;
		return this;
	}

	method int bump() {
		let count = count + 1;
		return count;
	}
}
`

func TestCompileDirectory(t *testing.T) {
	dir := t.TempDir()
	for name, source := range map[string]string{"Main.jack": mainClass, "Counter.jack": counterClass} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(source), 0644); err != nil {
			t.Fatalf("unable to seed input file: %v", err)
		}
	}

	if status := Handler([]string{dir}, map[string]string{}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	// One .vm sibling per class, each opening with its first function declaration
	mainVM, err := os.ReadFile(filepath.Join(dir, "Main.vm"))
	if err != nil {
		t.Fatalf("expected Main.vm to be emitted: %v", err)
	}
	if !strings.HasPrefix(string(mainVM), "function Main.main 2\n") {
		t.Errorf("unexpected Main.vm head: %q", string(mainVM)[:40])
	}

	counterVM, err := os.ReadFile(filepath.Join(dir, "Counter.vm"))
	if err != nil {
		t.Fatalf("expected Counter.vm to be emitted: %v", err)
	}
	if !strings.Contains(string(counterVM), "function Counter.new 0") ||
		!strings.Contains(string(counterVM), "call Memory.alloc 1") {
		t.Errorf("expected the constructor lowering in Counter.vm")
	}

	snaps.MatchSnapshot(t, string(mainVM))
	snaps.MatchSnapshot(t, string(counterVM))
}

func TestCompileSingleFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Main.jack")
	if err := os.WriteFile(input, []byte(mainClass), 0644); err != nil {
		t.Fatalf("unable to seed input file: %v", err)
	}

	if status := Handler([]string{input}, map[string]string{}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	if _, err := os.Stat(filepath.Join(dir, "Main.vm")); err != nil {
		t.Errorf("expected Main.vm next to the input: %v", err)
	}
}

func TestParseTreeDump(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Main.jack")
	if err := os.WriteFile(input, []byte(mainClass), 0644); err != nil {
		t.Fatalf("unable to seed input file: %v", err)
	}

	if status := Handler([]string{input}, map[string]string{"xml": "true"}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	dump, err := os.ReadFile(filepath.Join(dir, "Main.xml"))
	if err != nil {
		t.Fatalf("expected Main.xml to be emitted under --xml: %v", err)
	}
	if !strings.HasPrefix(string(dump), "<class>") || !strings.Contains(string(dump), "<whileStatement>") {
		t.Errorf("unexpected parse tree dump content")
	}
}

func TestCompileFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Broken.jack")
	if err := os.WriteFile(input, []byte("class Broken { function void f() { let ; } }"), 0644); err != nil {
		t.Fatalf("unable to seed input file: %v", err)
	}

	if status := Handler([]string{input}, map[string]string{}); status == 0 {
		t.Fatalf("expected a non-zero exit status for malformed input")
	}
}
