package jack

import (
	"bytes"
	"fmt"
	"strings"

	"its-hmny.dev/hackc/pkg/utils"
)

// ----------------------------------------------------------------------------
// XML Recorder

// Records the parse tree of a class as nand2tetris-style XML, for debugging.
//
// The compilation engine notifies the recorder of every grammar rule it enters and
// leaves ('Open'/'Close') and of every terminal it consumes; the recorder renders the
// nesting as indented XML elements. A nil recorder is valid and records nothing, so
// the engine can call it unconditionally.
type XMLRecorder struct {
	buffer bytes.Buffer
	open   utils.Stack[string] // The grammar rules entered but not yet left
}

// Initializes and returns to the caller a brand new 'XMLRecorder' struct.
func NewXMLRecorder() *XMLRecorder {
	return &XMLRecorder{open: utils.NewStack[string]()}
}

// Enters a grammar rule, opening its XML element.
func (r *XMLRecorder) Open(rule string) {
	if r == nil {
		return
	}

	fmt.Fprintf(&r.buffer, "%s<%s>\n", r.indent(), rule)
	r.open.Push(rule)
}

// Leaves the innermost open grammar rule, closing its XML element.
func (r *XMLRecorder) Close() {
	if r == nil {
		return
	}

	rule, err := r.open.Pop()
	if err != nil {
		return // Unbalanced Close, nothing to emit
	}
	fmt.Fprintf(&r.buffer, "%s</%s>\n", r.indent(), rule)
}

// Records a consumed terminal as a leaf element tagged with its token type.
func (r *XMLRecorder) Terminal(token Token) {
	if r == nil {
		return
	}

	fmt.Fprintf(&r.buffer, "%s<%s> %s </%s>\n", r.indent(), token.Type, escape(token.Value), token.Type)
}

// Returns the XML document accumulated so far.
func (r *XMLRecorder) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.buffer.Bytes()
}

func (r *XMLRecorder) indent() string {
	return strings.Repeat("  ", r.open.Count())
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(value string) string {
	return escaper.Replace(value)
}
