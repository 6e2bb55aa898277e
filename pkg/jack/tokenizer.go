package jack

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// ----------------------------------------------------------------------------
// Tokenizer

// Streams a '.jack' source file into classified tokens, on demand.
//
// The three comment forms (// line, /* block */ and /** doc */) plus whitespace are
// consumed between tokens and never reach the caller; string literals are recognized
// before comment stripping so that a "//" inside quotes stays part of the literal.
// The scanner keeps a one token lookahead buffer: 'Peek' fills it without consuming,
// which is what the compilation engine needs to disambiguate the 'term' alternatives
// (variable vs array subscript vs subroutine call).
//
// There is no "initial" current token: 'Advance' must be called once before using
// any of the typed accessors.
type Tokenizer struct {
	source []byte
	cursor int // Offset of the next unread byte in 'source'
	line   int // 1-based line of the cursor, maintained while stepping
	column int // 1-based column of the cursor, maintained while stepping

	current   Token  // The token loaded by the last 'Advance'
	lookahead *Token // Scanned-but-unconsumed token ('Peek' / 'HasMore' fill it)
	failure   error  // First lex error found, scanning never resumes past it
}

// Initializes and returns to the caller a brand new 'Tokenizer' struct.
// The source is expected to be UTF-8 but every meaningful character is ASCII.
func NewTokenizer(source []byte) *Tokenizer {
	return &Tokenizer{source: source, line: 1, column: 1}
}

// Reports whether there is at least one unconsumed token left in the source.
// Trailing whitespace and comments do not count as tokens.
func (t *Tokenizer) HasMore() bool {
	if t.lookahead != nil {
		return true
	}

	if err := t.fill(); err != nil {
		return false
	}
	return t.lookahead != nil
}

// Loads the next token as the current one. Returns an error both on malformed
// input (lex errors) and when the source is exhausted.
func (t *Tokenizer) Advance() error {
	if t.lookahead == nil {
		if err := t.fill(); err != nil {
			return err
		}
		if t.lookahead == nil {
			return &SyntaxError{Line: t.line, Column: t.column, Reason: "unexpected end of input"}
		}
	}

	t.current, t.lookahead = *t.lookahead, nil
	return nil
}

// Returns the next token without consuming it, leaving the current one in place.
func (t *Tokenizer) Peek() (Token, error) {
	if t.lookahead == nil {
		if err := t.fill(); err != nil {
			return Token{}, err
		}
		if t.lookahead == nil {
			return Token{}, &SyntaxError{Line: t.line, Column: t.column, Reason: "unexpected end of input"}
		}
	}

	return *t.lookahead, nil
}

// Returns the token loaded by the last 'Advance'.
func (t *Tokenizer) Current() Token {
	return t.current
}

// Typed accessors over the current token. Calling one whose type does not match
// the current token is a programmer error, not a user one: the engine always
// switches on the token type before reaching for the payload.

func (t *Tokenizer) Keyword() string {
	t.assertType(KeywordToken)
	return t.current.Value
}

func (t *Tokenizer) Symbol() byte {
	t.assertType(SymbolToken)
	return t.current.Value[0]
}

func (t *Tokenizer) Identifier() string {
	t.assertType(IdentifierToken)
	return t.current.Value
}

func (t *Tokenizer) IntVal() uint16 {
	t.assertType(IntConstToken)
	value, _ := strconv.ParseUint(t.current.Value, 10, 16)
	return uint16(value)
}

func (t *Tokenizer) StringVal() string {
	t.assertType(StringConstToken)
	return t.current.Value
}

func (t *Tokenizer) assertType(expected TokenType) {
	if t.current.Type != expected {
		log.Fatalf("accessor for '%s' called on a '%s' token ('%s')", expected, t.current.Type, t.current.Value)
	}
}

// ----------------------------------------------------------------------------
// Scanning internals

// Scans the next token into the lookahead buffer. At the end of input the buffer
// stays empty and no error is returned, malformed input does return one. A lex
// error is sticky: scanning a malformed token consumes its bytes, so resuming past
// it would silently drop it from the stream.
func (t *Tokenizer) fill() error {
	if t.failure != nil {
		return t.failure
	}

	if err := t.skipMeaningless(); err != nil {
		t.failure = err
		return err
	}
	if t.cursor >= len(t.source) {
		return nil
	}

	token, err := t.scan()
	if err != nil {
		t.failure = err
		return err
	}

	t.lookahead = &token
	return nil
}

// Discards whitespace and all three comment forms. Comments do not nest and a
// block comment left open at the end of the file is a lex error.
func (t *Tokenizer) skipMeaningless() error {
	for t.cursor < len(t.source) {
		c := t.source[t.cursor]

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			t.step()

		case c == '/' && t.at(1) == '/': // Line comment, runs up to (excluded) the newline
			for t.cursor < len(t.source) && t.source[t.cursor] != '\n' {
				t.step()
			}

		case c == '/' && t.at(1) == '*': // Block or doc comment, runs up to '*/'
			line, column := t.line, t.column
			t.step() // '/'
			t.step() // '*'
			for {
				if t.cursor >= len(t.source) {
					return &SyntaxError{Line: line, Column: column, Reason: "unterminated block comment"}
				}
				if t.source[t.cursor] == '*' && t.at(1) == '/' {
					t.step() // '*'
					t.step() // '/'
					break
				}
				t.step()
			}

		default:
			return nil
		}
	}

	return nil
}

// Classifies the token starting at the cursor. Priority order: integer literal,
// string literal, identifier-or-keyword, symbol; anything else is a lex error.
func (t *Tokenizer) scan() (Token, error) {
	line, column := t.line, t.column
	c := t.source[t.cursor]

	if c >= '0' && c <= '9' { // Maximal run of digits, bounded to the 15 bit range
		start := t.cursor
		for t.cursor < len(t.source) && t.source[t.cursor] >= '0' && t.source[t.cursor] <= '9' {
			t.step()
		}

		literal := string(t.source[start:t.cursor])
		if value, err := strconv.ParseUint(literal, 10, 16); err != nil || value > 32767 {
			return Token{}, &SyntaxError{Line: line, Column: column, Token: literal, Reason: "integer literal out of range (max 32767)"}
		}

		return Token{Type: IntConstToken, Value: literal, Line: line, Column: column}, nil
	}

	if c == '"' { // String literal, no escapes: quotes and newlines cannot appear in the body
		t.step() // opening '"'
		start := t.cursor
		for {
			if t.cursor >= len(t.source) || t.source[t.cursor] == '\n' {
				return Token{}, &SyntaxError{Line: line, Column: column, Reason: "unterminated string literal"}
			}
			if t.source[t.cursor] == '"' {
				break
			}
			t.step()
		}

		body := string(t.source[start:t.cursor])
		t.step() // closing '"'
		return Token{Type: StringConstToken, Value: body, Line: line, Column: column}, nil
	}

	if isIdentStart(c) { // Maximal identifier run, retagged as keyword when reserved
		start := t.cursor
		for t.cursor < len(t.source) && isIdentPart(t.source[t.cursor]) {
			t.step()
		}

		literal := string(t.source[start:t.cursor])
		if Keywords[literal] {
			return Token{Type: KeywordToken, Value: literal, Line: line, Column: column}, nil
		}
		return Token{Type: IdentifierToken, Value: literal, Line: line, Column: column}, nil
	}

	if strings.IndexByte(Symbols, c) >= 0 {
		t.step()
		return Token{Type: SymbolToken, Value: string(c), Line: line, Column: column}, nil
	}

	return Token{}, &SyntaxError{Line: line, Column: column, Token: string(c), Reason: fmt.Sprintf("unexpected character 0x%02x", c)}
}

// Consumes one byte keeping the line/column bookkeeping in sync.
func (t *Tokenizer) step() {
	if t.source[t.cursor] == '\n' {
		t.line, t.column = t.line+1, 1
	} else {
		t.column++
	}
	t.cursor++
}

// Returns the byte at the given distance from the cursor, 0 past the end.
func (t *Tokenizer) at(offset int) byte {
	if t.cursor+offset >= len(t.source) {
		return 0
	}
	return t.source[t.cursor+offset]
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
