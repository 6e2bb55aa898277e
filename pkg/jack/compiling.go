package jack

import (
	"fmt"

	"its-hmny.dev/hackc/pkg/vm"
)

// ----------------------------------------------------------------------------
// Compilation Engine

// The recursive-descent parser and code emitter for a single Jack class.
//
// Parsing and code generation are fused: there is no AST, each grammar rule is a
// method that consumes its tokens and appends the 'vm.Operation' counterpart of what
// it recognized to the module under construction. Memory stays proportional to the
// nesting depth of the source. The engine drives the two-scope 'ScopeTable' for name
// resolution and owns the per-subroutine counters that keep branch labels unique.
//
// The only lookahead ever needed is a single token ('Tokenizer.Peek'): when a term
// starts with an identifier the following token decides between a plain variable
// ('x'), an array subscript ('x['), a method of the current class ('x(') and a
// qualified subroutine call ('x.').
type Engine struct {
	tokens *Tokenizer
	scopes *ScopeTable
	xml    *XMLRecorder // Optional parse tree recorder, nil disables it

	class  string    // Name of the class being compiled, prefixes every emitted function
	module vm.Module // The operations emitted so far

	nIf    uint // Per-subroutine counter for the 'IF_FALSEn'/'IF_ENDn' label pairs
	nWhile uint // Per-subroutine counter for the 'WHILE_EXPn'/'WHILE_ENDn' label pairs
}

// Initializes and returns to the caller a brand new 'Engine' struct. The recorder
// may be nil, in which case no parse tree is captured.
func NewEngine(tokens *Tokenizer, xml *XMLRecorder) *Engine {
	return &Engine{tokens: tokens, scopes: NewScopeTable(), xml: xml}
}

// Compiles the whole class found in the token stream and returns its VM module.
// Aborts with the first syntax/resolution error encountered, per the one-shot
// compilation model: there is no error recovery.
func (e *Engine) CompileClass() (vm.Module, error) {
	e.xml.Open("class")

	if _, err := e.expectKeyword("class"); err != nil {
		return nil, err
	}
	name, err := e.expectIdentifier()
	if err != nil {
		return nil, err
	}
	e.class = name

	if err := e.expectSymbol('{'); err != nil {
		return nil, err
	}

	for {
		if _, matches := e.peekKeyword("static", "field"); !matches {
			break
		}
		if err := e.compileClassVarDec(); err != nil {
			return nil, err
		}
	}

	for {
		kind, matches := e.peekKeyword("constructor", "function", "method")
		if !matches {
			break
		}
		if err := e.compileSubroutineDec(kind); err != nil {
			return nil, err
		}
	}

	if err := e.expectSymbol('}'); err != nil {
		return nil, err
	}
	e.xml.Close()

	if e.tokens.HasMore() {
		token, _ := e.tokens.Peek()
		return nil, &SyntaxError{Line: token.Line, Column: token.Column, Token: token.Value, Reason: "expected end of file after class body"}
	}

	return e.module, nil
}

// classVarDec = ('static'|'field') type varName (',' varName)* ';'
func (e *Engine) compileClassVarDec() error {
	e.xml.Open("classVarDec")

	keyword, err := e.expectKeyword("static", "field")
	if err != nil {
		return err
	}
	kind := Static
	if keyword == "field" {
		kind = Field
	}

	dataType, err := e.expectType(false)
	if err != nil {
		return err
	}

	for {
		name, err := e.expectIdentifier()
		if err != nil {
			return err
		}
		e.scopes.Define(name, dataType, kind)

		if !e.acceptSymbol(',') {
			break
		}
	}

	if err := e.expectSymbol(';'); err != nil {
		return err
	}
	e.xml.Close()
	return nil
}

// subroutineDec = ('constructor'|'function'|'method') ('void'|type) subroutineName
//                 '(' parameterList ')' '{' varDec* statements '}'
func (e *Engine) compileSubroutineDec(kind string) error {
	e.xml.Open("subroutineDec")

	// A fresh subroutine scope plus fresh branch-label counters. For methods the
	// receiver is the implicit argument 0, defined before any declared parameter.
	e.scopes.StartSubroutine()
	e.nIf, e.nWhile = 0, 0
	if kind == "method" {
		e.scopes.Define("this", e.class, Argument)
	}

	if _, err := e.expectKeyword(kind); err != nil {
		return err
	}
	if _, err := e.expectType(true); err != nil {
		return err
	}
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}

	if err := e.expectSymbol('('); err != nil {
		return err
	}
	if err := e.compileParameterList(); err != nil {
		return err
	}
	if err := e.expectSymbol(')'); err != nil {
		return err
	}

	e.xml.Open("subroutineBody")
	if err := e.expectSymbol('{'); err != nil {
		return err
	}

	for {
		if _, matches := e.peekKeyword("var"); !matches {
			break
		}
		if err := e.compileVarDec(); err != nil {
			return err
		}
	}

	// Every local is now declared, so the function prologue can be emitted. The
	// constructor allocates the object it is building (one word per field) and
	// anchors 'this' to it; a method anchors 'this' to the received argument 0.
	e.emit(vm.FuncDecl{Name: fmt.Sprintf("%s.%s", e.class, name), NLocal: uint8(e.scopes.VarCount(Local))})

	switch kind {
	case "constructor":
		e.emitPush(vm.Constant, e.scopes.VarCount(Field))
		e.emit(vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1})
		e.emitPop(vm.Pointer, 0)
	case "method":
		e.emitPush(vm.Argument, 0)
		e.emitPop(vm.Pointer, 0)
	}

	if err := e.compileStatements(); err != nil {
		return err
	}

	if err := e.expectSymbol('}'); err != nil {
		return err
	}
	e.xml.Close()
	e.xml.Close()
	return nil
}

// parameterList = ( type varName (',' type varName)* )?
func (e *Engine) compileParameterList() error {
	e.xml.Open("parameterList")
	defer e.xml.Close()

	if e.peekSymbol(')') {
		return nil
	}

	for {
		dataType, err := e.expectType(false)
		if err != nil {
			return err
		}
		name, err := e.expectIdentifier()
		if err != nil {
			return err
		}
		e.scopes.Define(name, dataType, Argument)

		if !e.acceptSymbol(',') {
			return nil
		}
	}
}

// varDec = 'var' type varName (',' varName)* ';'
func (e *Engine) compileVarDec() error {
	e.xml.Open("varDec")

	if _, err := e.expectKeyword("var"); err != nil {
		return err
	}
	dataType, err := e.expectType(false)
	if err != nil {
		return err
	}

	for {
		name, err := e.expectIdentifier()
		if err != nil {
			return err
		}
		e.scopes.Define(name, dataType, Local)

		if !e.acceptSymbol(',') {
			break
		}
	}

	if err := e.expectSymbol(';'); err != nil {
		return err
	}
	e.xml.Close()
	return nil
}

// ----------------------------------------------------------------------------
// Statements

func (e *Engine) compileStatements() error {
	e.xml.Open("statements")
	defer e.xml.Close()

	for {
		keyword, matches := e.peekKeyword("let", "if", "while", "do", "return")
		if !matches {
			return nil
		}

		var err error
		switch keyword {
		case "let":
			err = e.compileLet()
		case "if":
			err = e.compileIf()
		case "while":
			err = e.compileWhile()
		case "do":
			err = e.compileDo()
		case "return":
			err = e.compileReturn()
		}

		if err != nil {
			return err
		}
	}
}

// letStatement = 'let' varName ('[' expression ']')? '=' expression ';'
func (e *Engine) compileLet() error {
	e.xml.Open("letStatement")

	if _, err := e.expectKeyword("let"); err != nil {
		return err
	}
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	symbol, err := e.resolve(name)
	if err != nil {
		return err
	}

	if e.acceptSymbol('[') {
		// Array store: compute the cell address (base + index) first, then the value.
		// The value is parked in temp 0 while THAT is repointed because the right hand
		// side may itself contain an array access that clobbers the THAT base.
		e.emitPush(KindSegment[symbol.Kind], symbol.Index)
		if err := e.compileExpression(); err != nil {
			return err
		}
		if err := e.expectSymbol(']'); err != nil {
			return err
		}
		e.emit(vm.ArithmeticOp{Operation: vm.Add})

		if err := e.expectSymbol('='); err != nil {
			return err
		}
		if err := e.compileExpression(); err != nil {
			return err
		}

		e.emitPop(vm.Temp, 0)
		e.emitPop(vm.Pointer, 1)
		e.emitPush(vm.Temp, 0)
		e.emitPop(vm.That, 0)
	} else {
		if err := e.expectSymbol('='); err != nil {
			return err
		}
		if err := e.compileExpression(); err != nil {
			return err
		}
		e.emitPop(KindSegment[symbol.Kind], symbol.Index)
	}

	if err := e.expectSymbol(';'); err != nil {
		return err
	}
	e.xml.Close()
	return nil
}

// ifStatement = 'if' '(' expression ')' '{' statements '}' ('else' '{' statements '}')?
//
// The condition is negated so that a single conditional jump skips the then-block;
// both labels are always allocated, an absent else-block just leaves them adjacent.
func (e *Engine) compileIf() error {
	e.xml.Open("ifStatement")

	count := e.nIf
	e.nIf++
	lFalse, lEnd := fmt.Sprintf("IF_FALSE%d", count), fmt.Sprintf("IF_END%d", count)

	if _, err := e.expectKeyword("if"); err != nil {
		return err
	}
	if err := e.expectSymbol('('); err != nil {
		return err
	}
	if err := e.compileExpression(); err != nil {
		return err
	}
	if err := e.expectSymbol(')'); err != nil {
		return err
	}

	e.emit(vm.ArithmeticOp{Operation: vm.Not})
	e.emit(vm.GotoOp{Jump: vm.Conditional, Label: lFalse})

	if err := e.expectSymbol('{'); err != nil {
		return err
	}
	if err := e.compileStatements(); err != nil {
		return err
	}
	if err := e.expectSymbol('}'); err != nil {
		return err
	}

	e.emit(vm.GotoOp{Jump: vm.Unconditional, Label: lEnd})
	e.emit(vm.LabelDecl{Name: lFalse})

	if _, matches := e.peekKeyword("else"); matches {
		if _, err := e.expectKeyword("else"); err != nil {
			return err
		}
		if err := e.expectSymbol('{'); err != nil {
			return err
		}
		if err := e.compileStatements(); err != nil {
			return err
		}
		if err := e.expectSymbol('}'); err != nil {
			return err
		}
	}

	e.emit(vm.LabelDecl{Name: lEnd})
	e.xml.Close()
	return nil
}

// whileStatement = 'while' '(' expression ')' '{' statements '}'
func (e *Engine) compileWhile() error {
	e.xml.Open("whileStatement")

	count := e.nWhile
	e.nWhile++
	lExp, lEnd := fmt.Sprintf("WHILE_EXP%d", count), fmt.Sprintf("WHILE_END%d", count)

	if _, err := e.expectKeyword("while"); err != nil {
		return err
	}

	e.emit(vm.LabelDecl{Name: lExp})

	if err := e.expectSymbol('('); err != nil {
		return err
	}
	if err := e.compileExpression(); err != nil {
		return err
	}
	if err := e.expectSymbol(')'); err != nil {
		return err
	}

	e.emit(vm.ArithmeticOp{Operation: vm.Not})
	e.emit(vm.GotoOp{Jump: vm.Conditional, Label: lEnd})

	if err := e.expectSymbol('{'); err != nil {
		return err
	}
	if err := e.compileStatements(); err != nil {
		return err
	}
	if err := e.expectSymbol('}'); err != nil {
		return err
	}

	e.emit(vm.GotoOp{Jump: vm.Unconditional, Label: lExp})
	e.emit(vm.LabelDecl{Name: lEnd})
	e.xml.Close()
	return nil
}

// doStatement = 'do' subroutineCall ';'
func (e *Engine) compileDo() error {
	e.xml.Open("doStatement")

	if _, err := e.expectKeyword("do"); err != nil {
		return err
	}
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	if err := e.compileSubroutineCall(name); err != nil {
		return err
	}
	if err := e.expectSymbol(';'); err != nil {
		return err
	}

	// Every subroutine leaves a value on the stack, a do statement ignores it
	e.emitPop(vm.Temp, 0)
	e.xml.Close()
	return nil
}

// returnStatement = 'return' expression? ';'
func (e *Engine) compileReturn() error {
	e.xml.Open("returnStatement")

	if _, err := e.expectKeyword("return"); err != nil {
		return err
	}

	if e.peekSymbol(';') {
		// Void subroutines still return a value by convention, the caller drops it
		e.emitPush(vm.Constant, 0)
	} else {
		if err := e.compileExpression(); err != nil {
			return err
		}
	}

	if err := e.expectSymbol(';'); err != nil {
		return err
	}

	e.emit(vm.ReturnOp{})
	e.xml.Close()
	return nil
}

// ----------------------------------------------------------------------------
// Expressions

// The binary operators and their VM lowering. Multiplication and division have no
// primitive instruction and compile to calls into the Math standard class.
var binaryOps = map[byte][]vm.Operation{
	'+': {vm.ArithmeticOp{Operation: vm.Add}},
	'-': {vm.ArithmeticOp{Operation: vm.Sub}},
	'*': {vm.FuncCallOp{Name: "Math.multiply", NArgs: 2}},
	'/': {vm.FuncCallOp{Name: "Math.divide", NArgs: 2}},
	'&': {vm.ArithmeticOp{Operation: vm.And}},
	'|': {vm.ArithmeticOp{Operation: vm.Or}},
	'<': {vm.ArithmeticOp{Operation: vm.Lt}},
	'>': {vm.ArithmeticOp{Operation: vm.Gt}},
	'=': {vm.ArithmeticOp{Operation: vm.Eq}},
}

// expression = term (op term)*
//
// Operands are evaluated strictly left to right, all operators have the same
// precedence: 'a + b * c' is '(a + b) * c', as the language defines.
func (e *Engine) compileExpression() error {
	e.xml.Open("expression")
	defer e.xml.Close()

	if err := e.compileTerm(); err != nil {
		return err
	}

	for {
		token, err := e.tokens.Peek()
		if err != nil || token.Type != SymbolToken {
			return nil
		}
		lowered, isOp := binaryOps[token.Value[0]]
		if !isOp {
			return nil
		}

		if _, err := e.next(); err != nil {
			return err
		}
		if err := e.compileTerm(); err != nil {
			return err
		}
		e.emit(lowered...)
	}
}

// term = intConst | strConst | keywordConst | varName | varName '[' expression ']'
//        | subroutineCall | '(' expression ')' | unaryOp term
func (e *Engine) compileTerm() error {
	e.xml.Open("term")
	defer e.xml.Close()

	token, err := e.tokens.Peek()
	if err != nil {
		return err
	}

	switch token.Type {
	case IntConstToken:
		if _, err := e.next(); err != nil {
			return err
		}
		e.emitPush(vm.Constant, e.tokens.IntVal())
		return nil

	case StringConstToken:
		if _, err := e.next(); err != nil {
			return err
		}
		e.compileStringConst(e.tokens.StringVal())
		return nil

	case KeywordToken:
		return e.compileKeywordConst()

	case SymbolToken:
		switch token.Value[0] {
		case '(':
			if _, err := e.next(); err != nil {
				return err
			}
			if err := e.compileExpression(); err != nil {
				return err
			}
			return e.expectSymbol(')')

		case '-':
			if _, err := e.next(); err != nil {
				return err
			}
			if err := e.compileTerm(); err != nil {
				return err
			}
			e.emit(vm.ArithmeticOp{Operation: vm.Neg})
			return nil

		case '~':
			if _, err := e.next(); err != nil {
				return err
			}
			if err := e.compileTerm(); err != nil {
				return err
			}
			e.emit(vm.ArithmeticOp{Operation: vm.Not})
			return nil
		}

	case IdentifierToken:
		return e.compileIdentifierTerm()
	}

	return &SyntaxError{Line: token.Line, Column: token.Column, Token: token.Value, Reason: "expected a term"}
}

// A term starting with an identifier is ambiguous, the token right after it decides:
// '[' array access, '(' method call on this, '.' qualified call, anything else a
// plain variable reference.
func (e *Engine) compileIdentifierTerm() error {
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}

	token, err := e.tokens.Peek()
	if err == nil && token.Type == SymbolToken {
		switch token.Value[0] {
		case '[':
			symbol, err := e.resolve(name)
			if err != nil {
				return err
			}

			if _, err := e.next(); err != nil { // '['
				return err
			}
			e.emitPush(KindSegment[symbol.Kind], symbol.Index)
			if err := e.compileExpression(); err != nil {
				return err
			}
			if err := e.expectSymbol(']'); err != nil {
				return err
			}

			// *(base + index): repoint THAT to the cell and read through it
			e.emit(vm.ArithmeticOp{Operation: vm.Add})
			e.emitPop(vm.Pointer, 1)
			e.emitPush(vm.That, 0)
			return nil

		case '(', '.':
			return e.compileSubroutineCall(name)
		}
	}

	symbol, err := e.resolve(name)
	if err != nil {
		return err
	}
	e.emitPush(KindSegment[symbol.Kind], symbol.Index)
	return nil
}

// keywordConst = 'true' | 'false' | 'null' | 'this'
func (e *Engine) compileKeywordConst() error {
	keyword, err := e.expectKeyword("true", "false", "null", "this")
	if err != nil {
		return err
	}

	switch keyword {
	case "true": // All bits set, the canonical VM encoding of true
		e.emitPush(vm.Constant, 0)
		e.emit(vm.ArithmeticOp{Operation: vm.Not})
	case "false", "null":
		e.emitPush(vm.Constant, 0)
	case "this":
		e.emitPush(vm.Pointer, 0)
	}

	return nil
}

// A string literal builds a String object at runtime: one allocation sized to the
// literal, then one appendChar per character. Each append returns the string itself
// so the object stays at the stack top throughout.
func (e *Engine) compileStringConst(value string) {
	e.emitPush(vm.Constant, uint16(len(value)))
	e.emit(vm.FuncCallOp{Name: "String.new", NArgs: 1})

	for i := 0; i < len(value); i++ {
		e.emitPush(vm.Constant, uint16(value[i]))
		e.emit(vm.FuncCallOp{Name: "String.appendChar", NArgs: 2})
	}
}

// subroutineCall = subroutineName '(' expressionList ')'
//                  | (className|varName) '.' subroutineName '(' expressionList ')'
//
// The leading identifier has already been consumed by the caller. Dispatch is fully
// static: a declared variable before the dot makes it a method call on that object
// (receiver pushed as argument 0, callee resolved through the variable's type), an
// undeclared one names a class and makes it a plain function call; the unqualified
// form is a method call on the current 'this'.
func (e *Engine) compileSubroutineCall(name string) error {
	callee, receiverArgs := "", 0

	if e.acceptSymbol('.') {
		subroutine, err := e.expectIdentifier()
		if err != nil {
			return err
		}

		if symbol, found := e.scopes.Lookup(name); found {
			e.emitPush(KindSegment[symbol.Kind], symbol.Index)
			callee, receiverArgs = fmt.Sprintf("%s.%s", symbol.DataType, subroutine), 1
		} else {
			callee = fmt.Sprintf("%s.%s", name, subroutine)
		}
	} else {
		e.emitPush(vm.Pointer, 0)
		callee, receiverArgs = fmt.Sprintf("%s.%s", e.class, name), 1
	}

	if err := e.expectSymbol('('); err != nil {
		return err
	}
	count, err := e.compileExpressionList()
	if err != nil {
		return err
	}
	if err := e.expectSymbol(')'); err != nil {
		return err
	}

	e.emit(vm.FuncCallOp{Name: callee, NArgs: uint8(receiverArgs + count)})
	return nil
}

// expressionList = ( expression (',' expression)* )?
func (e *Engine) compileExpressionList() (int, error) {
	e.xml.Open("expressionList")
	defer e.xml.Close()

	if e.peekSymbol(')') {
		return 0, nil
	}

	count := 0
	for {
		if err := e.compileExpression(); err != nil {
			return count, err
		}
		count++

		if !e.acceptSymbol(',') {
			return count, nil
		}
	}
}

// ----------------------------------------------------------------------------
// Token stream helpers

// Consumes the next token, forwarding it to the parse tree recorder.
func (e *Engine) next() (Token, error) {
	if err := e.tokens.Advance(); err != nil {
		return Token{}, err
	}

	token := e.tokens.Current()
	e.xml.Terminal(token)
	return token, nil
}

// Consumes the next token, requiring it to be one of the given keywords.
func (e *Engine) expectKeyword(keywords ...string) (string, error) {
	token, err := e.next()
	if err != nil {
		return "", err
	}

	if token.Type == KeywordToken {
		for _, keyword := range keywords {
			if token.Value == keyword {
				return token.Value, nil
			}
		}
	}

	return "", &SyntaxError{Line: token.Line, Column: token.Column, Token: token.Value, Reason: fmt.Sprintf("expected keyword '%s'", keywords[0])}
}

// Consumes the next token, requiring it to be the given symbol.
func (e *Engine) expectSymbol(symbol byte) error {
	token, err := e.next()
	if err != nil {
		return err
	}

	if token.Type != SymbolToken || token.Value[0] != symbol {
		return &SyntaxError{Line: token.Line, Column: token.Column, Token: token.Value, Reason: fmt.Sprintf("expected '%c'", symbol)}
	}
	return nil
}

// Consumes the next token, requiring it to be an identifier.
func (e *Engine) expectIdentifier() (string, error) {
	token, err := e.next()
	if err != nil {
		return "", err
	}

	if token.Type != IdentifierToken {
		return "", &SyntaxError{Line: token.Line, Column: token.Column, Token: token.Value, Reason: "expected an identifier"}
	}
	return token.Value, nil
}

// Consumes the next token, requiring it to be a type: one of the primitive type
// keywords or a class name ('void' is only a valid return type).
func (e *Engine) expectType(allowVoid bool) (string, error) {
	token, err := e.next()
	if err != nil {
		return "", err
	}

	if token.Type == IdentifierToken {
		return token.Value, nil
	}
	if token.Type == KeywordToken {
		switch token.Value {
		case "int", "char", "boolean":
			return token.Value, nil
		case "void":
			if allowVoid {
				return token.Value, nil
			}
		}
	}

	return "", &SyntaxError{Line: token.Line, Column: token.Column, Token: token.Value, Reason: "expected a type"}
}

// Reports whether the next token is one of the given keywords, without consuming it.
func (e *Engine) peekKeyword(keywords ...string) (string, bool) {
	token, err := e.tokens.Peek()
	if err != nil || token.Type != KeywordToken {
		return "", false
	}

	for _, keyword := range keywords {
		if token.Value == keyword {
			return keyword, true
		}
	}
	return "", false
}

// Reports whether the next token is the given symbol, without consuming it.
func (e *Engine) peekSymbol(symbol byte) bool {
	token, err := e.tokens.Peek()
	return err == nil && token.Type == SymbolToken && token.Value[0] == symbol
}

// Consumes the next token only when it is the given symbol.
func (e *Engine) acceptSymbol(symbol byte) bool {
	if !e.peekSymbol(symbol) {
		return false
	}

	_, _ = e.next()
	return true
}

// Resolves a variable name through the scope table, failing with the position of
// the token just consumed when the name is not defined anywhere.
func (e *Engine) resolve(name string) (Symbol, error) {
	symbol, found := e.scopes.Lookup(name)
	if !found {
		token := e.tokens.Current()
		return Symbol{}, &UndefinedIdentifier{Line: token.Line, Column: token.Column, Name: name}
	}
	return symbol, nil
}

// ----------------------------------------------------------------------------
// Emit helpers

func (e *Engine) emit(operations ...vm.Operation) {
	e.module = append(e.module, operations...)
}

func (e *Engine) emitPush(segment vm.SegmentType, offset uint16) {
	e.emit(vm.MemoryOp{Operation: vm.Push, Segment: segment, Offset: offset})
}

func (e *Engine) emitPop(segment vm.SegmentType, offset uint16) {
	e.emit(vm.MemoryOp{Operation: vm.Pop, Segment: segment, Offset: offset})
}
