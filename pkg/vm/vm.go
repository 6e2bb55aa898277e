package vm

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the VM intermediate language.
//
// We declare a shared 'Operation' interface for every macro operation available for the
// language and we define some other useful top-level struct such as Program and Module.
// Is important to note that a VM program can be composed of multiple translation units
// that can be also referenced as file or modules or also classes.

// A VM Program is just a set of multiple modules/files, in the VM spec each Jack class is
// translated to its own .vm file (just like Java .class file) that can be handled as its
// own translation unit during the compilation or lowering phases. The map key is the module
// name (the file stem), it also acts as the namespace prefix for the 'static' segment.
type Program map[string]Module

// A VM Module is just a linear list of VM operations/instructions
type Module []Operation

// Used to put together all operation in the VM language (Memory, Arithmetic, ... ops).
type Operation interface{}

// ----------------------------------------------------------------------------
// Memory Op

// In memory representation of a Memory operation for the VM language.
//
// In the VM intermediate language there are only two possible memory operation on the stack.
// We could either push a new value taken from the specified segment location on the stack's
// top or take the stack's top and saves its value at the specified segment location.
type MemoryOp struct {
	Operation OperationType // The type of operation, either 'push' or 'pop'
	Segment   SegmentType   // The named memory segment to use (this, that, temp, ...)
	Offset    uint16        // The specific location/offset inside of the memory segment
}

type OperationType string // Enum to manage the operation allowed for a MemoryOp

const (
	Push OperationType = "push"
	Pop  OperationType = "pop"
)

type SegmentType string // Enum to manage the segment accessible for a MemoryOp

const (
	Temp     SegmentType = "temp"     // Real segment used to store intermediate computations
	Constant SegmentType = "constant" // Virtual segment used to access numeric constant

	Local    SegmentType = "local"    // Real segment used to store local function variables
	Static   SegmentType = "static"   // Real segment used to store shared/static variables
	Argument SegmentType = "argument" // Real segment used to store function's argument

	This    SegmentType = "this"    // Virtual segment used to point to a specific memory location
	That    SegmentType = "that"    // Virtual segment used to point to a specific memory location
	Pointer SegmentType = "pointer" // Real segment w/ 2 location used to set the 'this' and 'that' pointers
)

// ----------------------------------------------------------------------------
// Arithmetic Op

// In memory representation of a Arithmetic operation for the VM language.
//
// In the VM intermediate language there are just a handful of operation available.
// In particular each operation acts directly on the top of the stack, of course we have both unary
// and binary operation, the specific management of each op will be handled in the codegen phase.
type ArithmeticOp struct{ Operation ArithOpType }

type ArithOpType string // Enum to manage the operation allowed for an ArithmeticOp

const (
	Eq ArithOpType = "eq" // Comparison operations
	Gt ArithOpType = "gt"
	Lt ArithOpType = "lt"

	Add ArithOpType = "add" // Arithmetic operations
	Sub ArithOpType = "sub"
	Neg ArithOpType = "neg"

	Not ArithOpType = "not" // Bitwise operations
	And ArithOpType = "and"
	Or  ArithOpType = "or"
)

// ----------------------------------------------------------------------------
// Branching Ops

// In memory representation of the branching operations for the VM language.
//
// Labels declare a jump target scoped to the enclosing VM function, gotos jump to
// said target either unconditionally or based on the truthiness of the stack's top
// (consumed by the jump). Cross-function jumps are not allowed, only function calls.
type LabelDecl struct {
	Name string // The symbol/ident chosen for the jump target
}

type GotoOp struct {
	Jump  JumpType // Whether the jump is taken always or based on the stack's top
	Label string   // The jump target, must be declared in the same VM function
}

type JumpType string // Enum to manage the jump flavors allowed for a GotoOp

const (
	Conditional   JumpType = "if-goto"
	Unconditional JumpType = "goto"
)

// ----------------------------------------------------------------------------
// Function Ops

// In memory representation of the function-related operations for the VM language.
//
// A function declaration opens a new code unit with 'NLocal' zero-initialized local
// variables, a call transfers control to it after saving the caller frame (the callee
// finds 'NArgs' arguments in its 'argument' segment) and a return transfers control
// back leaving exactly one value on the caller's stack.
type FuncDecl struct {
	Name   string // Fully qualified function name (e.g. 'Main.main')
	NLocal uint8  // How many local variables to zero-initialize on entry
}

type FuncCallOp struct {
	Name  string // Fully qualified function name to transfer control to
	NArgs uint8  // How many arguments have been pushed by the caller
}

type ReturnOp struct{}
