package vm

import (
	"fmt"
	"sort"
	"strings"

	"its-hmny.dev/hackc/pkg/asm"
	"its-hmny.dev/hackc/pkg/utils"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' and produces its 'asm.Program' counterpart.
//
// Module by module and operation by operation, each VM command is expanded to the canonical
// Hack assembly snippet implementing it: stack traffic goes through the 'SP' pointer with
// 'D' as scratch register, R13/R14 host the frame temporaries of the calling convention.
// Some expansions need fresh jump labels (comparisons, call return addresses), those are
// produced by monotonic counters so that every label is unique in the final output.
type Lowerer struct {
	program  utils.OrderedMap[string, Module] // The set of modules to lower, in a reproducible order
	module   string                           // Stem of the module being lowered, prefixes its 'static' cells
	function string                           // VM function being lowered, namespaces its labels ('f$X')

	nCompare map[ArithOpType]uint // Output-wide counters for the comparison skip labels, keyed on op
	nReturn  uint                 // Call-site counter of the current function ('f$ret.N'), reset per function

	bootstrap bool // Whether to prepend the 'SP = 256; call Sys.init 0' preamble
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program to be not nil nor empty.
func NewLowerer(p Program, bootstrap bool) Lowerer {
	// The Go built-in map is not ordered, so iterating the Program directly would interleave
	// the modules differently on every run and, since labels are allocated with counters as
	// we go, yield a different (if equivalent) output each time. Sorting the module names
	// once and freezing that order in an OrderedMap makes the whole lowering reproducible.
	names := []string{}
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	modules := []utils.MapEntry[string, Module]{}
	for _, name := range names {
		modules = append(modules, utils.MapEntry[string, Module]{Key: name, Value: p[name]})
	}

	return Lowerer{
		program:   utils.NewOrderedMapFromList(modules),
		nCompare:  map[ArithOpType]uint{},
		bootstrap: bootstrap,
	}
}

// Triggers the lowering process. It iterates module by module and then operation by
// operation, dispatching to the specialized helper function based on the operation type
// (much like a recursive descent parser but for lowering).
func (l *Lowerer) Lower() (asm.Program, error) {
	program := asm.Program{}
	if l.program.Size() == 0 {
		return nil, fmt.Errorf("the given 'program' is empty or nil")
	}

	if l.bootstrap {
		program = append(program, l.handleBootstrap()...)
	}

	for name, module := range l.program.Entries() {
		l.module, l.function, l.nReturn = name, "", 0

		for _, operation := range module {
			var instructions []asm.Instruction
			var err error

			switch tOperation := operation.(type) {
			case MemoryOp:
				instructions, err = l.handleMemoryOp(tOperation)
			case ArithmeticOp:
				instructions, err = l.handleArithmeticOp(tOperation)
			case LabelDecl:
				instructions, err = l.handleLabelDecl(tOperation)
			case GotoOp:
				instructions, err = l.handleGotoOp(tOperation)
			case FuncDecl:
				instructions, err = l.handleFuncDecl(tOperation)
			case FuncCallOp:
				instructions, err = l.handleFuncCallOp(tOperation)
			case ReturnOp:
				instructions, err = l.handleReturnOp(tOperation)
			default:
				err = fmt.Errorf("unrecognized operation '%T'", operation)
			}

			if err != nil {
				return nil, fmt.Errorf("error lowering module '%s': %w", name, err)
			}
			program = append(program, instructions...)
		}
	}

	return program, nil
}

// The assembly preamble for multi-module programs: points 'SP' to the base of the stack
// region (256) and transfers control to 'Sys.init' through the full calling convention,
// so that the init function can 'return' like any other should it ever want to.
func (l *Lowerer) handleBootstrap() []asm.Instruction {
	preamble := []asm.Instruction{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	l.function = "Bootstrap"
	call, _ := l.handleFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	l.function = ""

	return append(preamble, call...)
}

// ----------------------------------------------------------------------------
// Memory segments

// Shared epilogue of every push expansion: *SP = D; SP++
func pushD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// The four pointer-relative segments resolve through their base register, the
// remaining ones resolve to a fixed (or symbolic) address known at lowering time.
var segmentBase = map[SegmentType]string{
	Local: "LCL", Argument: "ARG", This: "THIS", That: "THAT",
}

// Resolves the direct-addressed segments to the location of cell 'offset': temp
// lives at 5..12, pointer is the THIS/THAT pair at 3/4 and each static cell is a
// symbolic variable namespaced by the module stem (the assembler allocates it).
func (l *Lowerer) directLocation(segment SegmentType, offset uint16) (string, error) {
	switch segment {
	case Temp:
		if offset > 7 {
			return "", fmt.Errorf("invalid 'temp' offset, got %d", offset)
		}
		return fmt.Sprint(5 + offset), nil
	case Pointer:
		if offset > 1 {
			return "", fmt.Errorf("invalid 'pointer' offset, got %d", offset)
		}
		return fmt.Sprint(3 + offset), nil
	case Static:
		return fmt.Sprintf("%s.%d", l.module, offset), nil
	}

	return "", fmt.Errorf("segment '%s' has no direct location", segment)
}

// Specialized function to convert a 'vm.MemoryOp' to a list of 'asm.Instruction'.
func (l *Lowerer) handleMemoryOp(op MemoryOp) ([]asm.Instruction, error) {
	if op.Operation == Push {
		return l.handlePush(op)
	}
	if op.Operation == Pop {
		return l.handlePop(op)
	}

	return nil, fmt.Errorf("unrecognized OperationType '%s'", op.Operation)
}

func (l *Lowerer) handlePush(op MemoryOp) ([]asm.Instruction, error) {
	switch op.Segment {
	case Constant: // D = offset
		return append([]asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}, pushD()...), nil

	case Local, Argument, This, That: // D = *(*base + offset)
		return append([]asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: segmentBase[op.Segment]},
			asm.CInstruction{Dest: "A", Comp: "D+M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil

	case Temp, Pointer, Static: // D = *location
		location, err := l.directLocation(op.Segment, op.Offset)
		if err != nil {
			return nil, err
		}
		return append([]asm.Instruction{
			asm.AInstruction{Location: location},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil
	}

	return nil, fmt.Errorf("unrecognized SegmentType '%s'", op.Segment)
}

func (l *Lowerer) handlePop(op MemoryOp) ([]asm.Instruction, error) {
	switch op.Segment {
	case Constant:
		return nil, fmt.Errorf("cannot pop into the 'constant' segment")

	case Local, Argument, This, That: // R13 = *base + offset; *R13 = pop()
		return []asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: segmentBase[op.Segment]},
			asm.CInstruction{Dest: "D", Comp: "D+M"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}, nil

	case Temp, Pointer, Static: // *location = pop()
		location, err := l.directLocation(op.Segment, op.Offset)
		if err != nil {
			return nil, err
		}
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: location},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}, nil
	}

	return nil, fmt.Errorf("unrecognized SegmentType '%s'", op.Segment)
}

// ----------------------------------------------------------------------------
// Arithmetic

// The 'comp' expression each binary operation applies to D (the popped right
// operand) and M (the left operand, still in place at the new stack top).
var binaryComp = map[ArithOpType]string{
	Add: "D+M", Sub: "M-D", And: "D&M", Or: "D|M",
}

// The jump condition that makes a comparison true after computing D = left - right.
var compareJump = map[ArithOpType]string{
	Eq: "JEQ", Gt: "JGT", Lt: "JLT",
}

// Specialized function to convert a 'vm.ArithmeticOp' to a list of 'asm.Instruction'.
func (l *Lowerer) handleArithmeticOp(op ArithmeticOp) ([]asm.Instruction, error) {
	// Unary operations rewrite the stack top in place, the stack pointer does not move
	if op.Operation == Neg || op.Operation == Not {
		comp := map[ArithOpType]string{Neg: "-M", Not: "!M"}[op.Operation]
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	// Binary operations pop the right operand into D and combine it with the left
	// operand directly in memory, so only one stack slot is released
	if comp, isBinary := binaryComp[op.Operation]; isBinary {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	// Comparisons compute left - right and fork on the sign of the result, leaving the
	// VM encoding of the outcome (-1 true, 0 false) at the stack top. The two fresh
	// labels come from a per-op monotonic counter, unique across the whole output.
	if jump, isCompare := compareJump[op.Operation]; isCompare {
		prefix := strings.ToUpper(string(op.Operation))
		count := l.nCompare[op.Operation]
		l.nCompare[op.Operation]++

		lTrue := fmt.Sprintf("%s_TRUE_%d", prefix, count)
		lEnd := fmt.Sprintf("%s_END_%d", prefix, count)

		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "D", Comp: "M-D"},
			asm.AInstruction{Location: lTrue},
			asm.CInstruction{Comp: "D", Jump: jump},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: lEnd},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
			asm.LabelDecl{Name: lTrue},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "-1"},
			asm.LabelDecl{Name: lEnd},
		}, nil
	}

	return nil, fmt.Errorf("unrecognized ArithOpType '%s'", op.Operation)
}

// ----------------------------------------------------------------------------
// Branching

// VM labels are only visible inside their enclosing VM function, so the assembly label
// gets the 'f$' namespace prefix. Labels outside any function keep their bare name.
func (l *Lowerer) scopedLabel(name string) string {
	if l.function == "" {
		return name
	}
	return fmt.Sprintf("%s$%s", l.function, name)
}

// Specialized function to convert a 'vm.LabelDecl' to a list of 'asm.Instruction'.
func (l *Lowerer) handleLabelDecl(op LabelDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower empty label declaration")
	}

	return []asm.Instruction{asm.LabelDecl{Name: l.scopedLabel(op.Name)}}, nil
}

// Specialized function to convert a 'vm.GotoOp' to a list of 'asm.Instruction'.
func (l *Lowerer) handleGotoOp(op GotoOp) ([]asm.Instruction, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to lower empty jump label")
	}

	if op.Jump == Unconditional {
		return []asm.Instruction{
			asm.AInstruction{Location: l.scopedLabel(op.Label)},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	}

	if op.Jump == Conditional { // The jump consumes the stack top, any non-zero value is true
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: l.scopedLabel(op.Label)},
			asm.CInstruction{Comp: "D", Jump: "JNE"},
		}, nil
	}

	return nil, fmt.Errorf("unrecognized JumpType '%s'", op.Jump)
}

// ----------------------------------------------------------------------------
// Function calling convention

// Specialized function to convert a 'vm.FuncDecl' to a list of 'asm.Instruction'.
//
// The declaration opens the label the callers jump to and zero-initializes the
// function's local segment, which sits at the stack top on entry (LCL == SP).
func (l *Lowerer) handleFuncDecl(op FuncDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower empty function declaration")
	}

	l.function, l.nReturn = op.Name, 0

	instructions := []asm.Instruction{asm.LabelDecl{Name: op.Name}}
	for range op.NLocal {
		instructions = append(instructions,
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M+1"},
		)
	}

	return instructions, nil
}

// Specialized function to convert a 'vm.FuncCallOp' to a list of 'asm.Instruction'.
//
// Saves the caller frame (return address, LCL, ARG, THIS, THAT), repoints ARG to the
// first of the NArgs already-pushed arguments, aligns LCL to the stack top and jumps.
// The fresh return label is declared right after the jump, it is where the callee's
// 'return' lands.
func (l *Lowerer) handleFuncCallOp(op FuncCallOp) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower empty function call")
	}

	caller := l.function
	if caller == "" {
		caller = l.module
	}
	retLabel := fmt.Sprintf("%s$ret.%d", caller, l.nReturn)
	l.nReturn++

	instructions := append([]asm.Instruction{
		asm.AInstruction{Location: retLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}, pushD()...)

	for _, saved := range []string{"LCL", "ARG", "THIS", "THAT"} {
		instructions = append(instructions,
			asm.AInstruction{Location: saved},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		instructions = append(instructions, pushD()...)
	}

	return append(instructions,
		// ARG = SP - NArgs - 5 (the five words just saved sit between them)
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(uint16(op.NArgs) + 5)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = SP
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// Transfer control and declare the landing point
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: retLabel},
	), nil
}

// Specialized function to convert a 'vm.ReturnOp' to a list of 'asm.Instruction'.
//
// Mirrors the call expansion: R13 holds the frame base (a copy of LCL), R14 the return
// address. The return value is copied onto what the caller sees as its stack top
// (*ARG), then the saved pointers are restored by walking the frame downwards.
// The return address must be read before the copy: with zero arguments *ARG and
// *(FRAME-5) are the same cell and the return value would overwrite it.
func (l *Lowerer) handleReturnOp(ReturnOp) ([]asm.Instruction, error) {
	return []asm.Instruction{
		// R13 = LCL (the frame base)
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// R14 = *(FRAME - 5) (the return address)
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// *ARG = pop() (the return value lands on the caller's stack top)
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// THAT = *(FRAME - 1)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THAT"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// THIS = *(FRAME - 2)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THIS"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// ARG = *(FRAME - 3)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = *(FRAME - 4)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// goto *R14
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	}, nil
}
