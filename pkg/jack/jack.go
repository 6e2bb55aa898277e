package jack

import (
	"fmt"

	"its-hmny.dev/hackc/pkg/vm"
)

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the Jack programming language.
//
// A program is basically a container of classes (the only top-level object allowed)
// and the program is started by locating the Main class and executing its 'main' function.
// Each class compiles to its own VM module (just like a Java .class file), so the class
// is the translation unit of the language: the compilation engine consumes one '.jack'
// file at a time and emits one 'vm.Module' for it.

// ----------------------------------------------------------------------------
// Tokens

// The lexical categories of the language. Every character of a well-formed source file
// (outside comments and whitespace) belongs to exactly one token of one of these types.
type TokenType string

const (
	KeywordToken     TokenType = "keyword"
	SymbolToken      TokenType = "symbol"
	IntConstToken    TokenType = "integerConstant"
	StringConstToken TokenType = "stringConstant"
	IdentifierToken  TokenType = "identifier"
)

// A single classified token, with the position (1-based) it was scanned at.
// For string constants 'Value' holds the literal body without the enclosing quotes.
type Token struct {
	Type  TokenType
	Value string

	Line   int
	Column int
}

// The 21 reserved words of the language. An identifier-shaped lexeme found in this
// set is always retagged as a keyword, there is no way to escape it back.
var Keywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true,
	"int": true, "char": true, "boolean": true, "void": true,
	"true": true, "false": true, "null": true, "this": true,
	"let": true, "do": true, "if": true, "else": true, "while": true, "return": true,
}

// The 19 punctuation characters of the language, each one a single-char token.
const Symbols = "{}()[].,;+-*/&|<>=~"

// ----------------------------------------------------------------------------
// Symbols & scoping

// The four storage classes a Jack variable can have. The kind determines both the
// scope the name lives in (class vs subroutine) and the VM segment its cells map to.
type SymbolKind string

const (
	Static   SymbolKind = "static"   // Class scope, shared by all instances
	Field    SymbolKind = "field"    // Class scope, one cell per object instance
	Argument SymbolKind = "argument" // Subroutine scope, bound at call time
	Local    SymbolKind = "local"    // Subroutine scope, declared with 'var'
)

// A resolved variable: its declared data type (a primitive name or a class name),
// its kind and the 0-based index among the declarations of the same kind.
type Symbol struct {
	Name     string
	DataType string
	Kind     SymbolKind
	Index    uint16
}

// How each storage class lowers to the VM memory model: fields are reached through
// the 'this' pointer, the other three have a directly corresponding segment.
var KindSegment = map[SymbolKind]vm.SegmentType{
	Static:   vm.Static,
	Field:    vm.This,
	Argument: vm.Argument,
	Local:    vm.Local,
}

// ----------------------------------------------------------------------------
// Errors

// A SyntaxError pinpoints the first malformed construct of a source file, both
// lexical ("unexpected character") and grammatical ("expected X, got Y") failures
// are reported through it. Compilation of the file stops at the first one.
type SyntaxError struct {
	Line   int    // 1-based line of the offending token
	Column int    // 1-based column of the offending token
	Token  string // The offending lexeme, as found in the source
	Reason string // What the compiler expected to find instead
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("%d:%d: %s (at '%s')", e.Line, e.Column, e.Reason, e.Token)
}

// An UndefinedIdentifier reports the use of a name with no scope table entry in a
// context that requires one (variable read or write, array subscript, receiver).
type UndefinedIdentifier struct {
	Line   int
	Column int
	Name   string
}

func (e *UndefinedIdentifier) Error() string {
	return fmt.Sprintf("%d:%d: undefined identifier '%s'", e.Line, e.Column, e.Name)
}
