package vm_test

import (
	"reflect"
	"strings"
	"testing"

	"its-hmny.dev/hackc/pkg/vm"
)

func TestParseModule(t *testing.T) {
	source := `
		// A small module exercising every command family
		function Main.main 1
		push constant 10
		pop local 0
		label LOOP
		push local 0
		push constant 0
		eq
		if-goto END
		call Main.step 0
		pop temp 0
		goto LOOP
		label END
		push constant 0
		return
	`

	parser := vm.NewParser(strings.NewReader(source))
	module, err := parser.Parse()
	if err != nil {
		t.Fatalf("unexpected parsing error: %v", err)
	}

	expected := vm.Module{
		vm.FuncDecl{Name: "Main.main", NLocal: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 10},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 0},
		vm.LabelDecl{Name: "LOOP"},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ArithmeticOp{Operation: vm.Eq},
		vm.GotoOp{Jump: vm.Conditional, Label: "END"},
		vm.FuncCallOp{Name: "Main.step", NArgs: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
		vm.GotoOp{Jump: vm.Unconditional, Label: "LOOP"},
		vm.LabelDecl{Name: "END"},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ReturnOp{},
	}

	if !reflect.DeepEqual(module, expected) {
		t.Errorf("parsed module does not match:\nexpected: %#v\ngot:      %#v", expected, module)
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	// Rendering a module and parsing the text again must yield the same module
	module := vm.Module{
		vm.FuncDecl{Name: "Foo.bar", NLocal: 2},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.This, Offset: 3},
		vm.ArithmeticOp{Operation: vm.Add},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 1},
		vm.ArithmeticOp{Operation: vm.Not},
		vm.ReturnOp{},
	}

	codegen := vm.NewCodeGenerator(vm.Program{"Foo": module})
	rendered, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected codegen error: %v", err)
	}

	parser := vm.NewParser(strings.NewReader(strings.Join(rendered["Foo"], "\n")))
	reparsed, err := parser.Parse()
	if err != nil {
		t.Fatalf("unexpected parsing error: %v", err)
	}

	if !reflect.DeepEqual(reparsed, module) {
		t.Errorf("round trip does not match:\nexpected: %#v\ngot:      %#v", module, reparsed)
	}
}

func TestParseComments(t *testing.T) {
	source := `
		// leading comment
		push constant 1 // trailing comment
		// comment in between
		pop temp 0
	`

	parser := vm.NewParser(strings.NewReader(source))
	module, err := parser.Parse()
	if err != nil {
		t.Fatalf("unexpected parsing error: %v", err)
	}

	if len(module) != 2 {
		t.Fatalf("expected 2 operations (comments dropped), got %d", len(module))
	}
}
