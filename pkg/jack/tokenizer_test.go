package jack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"its-hmny.dev/hackc/pkg/jack"
)

// Drains the tokenizer and returns every scanned token, failing on lex errors.
func tokenize(t *testing.T, source string) []jack.Token {
	t.Helper()

	tokenizer := jack.NewTokenizer([]byte(source))
	tokens := []jack.Token{}
	for tokenizer.HasMore() {
		require.NoError(t, tokenizer.Advance())
		tokens = append(tokens, tokenizer.Current())
	}
	return tokens
}

func TestTokenClassification(t *testing.T) {
	tokens := tokenize(t, `class Point { field int x; let s = "hi"; let n = 32767; }`)

	expected := []jack.Token{
		{Type: jack.KeywordToken, Value: "class"},
		{Type: jack.IdentifierToken, Value: "Point"},
		{Type: jack.SymbolToken, Value: "{"},
		{Type: jack.KeywordToken, Value: "field"},
		{Type: jack.KeywordToken, Value: "int"},
		{Type: jack.IdentifierToken, Value: "x"},
		{Type: jack.SymbolToken, Value: ";"},
		{Type: jack.KeywordToken, Value: "let"},
		{Type: jack.IdentifierToken, Value: "s"},
		{Type: jack.SymbolToken, Value: "="},
		{Type: jack.StringConstToken, Value: "hi"},
		{Type: jack.SymbolToken, Value: ";"},
		{Type: jack.KeywordToken, Value: "let"},
		{Type: jack.IdentifierToken, Value: "n"},
		{Type: jack.SymbolToken, Value: "="},
		{Type: jack.IntConstToken, Value: "32767"},
		{Type: jack.SymbolToken, Value: ";"},
		{Type: jack.SymbolToken, Value: "}"},
	}

	require.Len(t, tokens, len(expected))
	for i, token := range tokens {
		assert.Equal(t, expected[i].Type, token.Type, "token %d", i)
		assert.Equal(t, expected[i].Value, token.Value, "token %d", i)
	}
}

func TestCommentsAreNeverObservable(t *testing.T) {
	source := `
		// a line comment
		class /* inline block */ Main {
			/** a doc comment
			    spanning lines */
			function void main() { return; } // trailing
		}
	`

	for _, token := range tokenize(t, source) {
		assert.NotContains(t, token.Value, "comment")
		assert.NotContains(t, token.Value, "/*")
	}
}

func TestStringLiteralsWinOverComments(t *testing.T) {
	// A "//" inside a string literal is part of the literal, not a comment opener
	tokens := tokenize(t, `let s = "a // b";`)

	require.Len(t, tokens, 5)
	assert.Equal(t, jack.StringConstToken, tokens[3].Type)
	assert.Equal(t, "a // b", tokens[3].Value)
}

func TestPeekDoesNotAdvance(t *testing.T) {
	tokenizer := jack.NewTokenizer([]byte("foo [ bar"))

	require.NoError(t, tokenizer.Advance())
	assert.Equal(t, "foo", tokenizer.Identifier())

	peeked, err := tokenizer.Peek()
	require.NoError(t, err)
	assert.Equal(t, jack.SymbolToken, peeked.Type)
	assert.Equal(t, "[", peeked.Value)
	// The current token is still the identifier after peeking
	assert.Equal(t, "foo", tokenizer.Identifier())

	require.NoError(t, tokenizer.Advance())
	assert.Equal(t, byte('['), tokenizer.Symbol())
}

func TestPositionTracking(t *testing.T) {
	tokens := tokenize(t, "class\n  Foo")

	require.Len(t, tokens, 2)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 3, tokens[1].Column)
}

func TestLexErrors(t *testing.T) {
	test := func(source string) *jack.SyntaxError {
		tokenizer := jack.NewTokenizer([]byte(source))
		for tokenizer.HasMore() {
			if err := tokenizer.Advance(); err != nil {
				var syntaxErr *jack.SyntaxError
				require.ErrorAs(t, err, &syntaxErr)
				return syntaxErr
			}
		}

		// Errors hidden behind 'HasMore' (e.g. a trailing malformed token)
		// still surface on the next explicit 'Advance'.
		err := tokenizer.Advance()
		var syntaxErr *jack.SyntaxError
		require.ErrorAs(t, err, &syntaxErr, "expected a lex error for %q", source)
		return syntaxErr
	}

	t.Run("Integer overflow", func(t *testing.T) {
		err := test("let x = 32768;")
		assert.Contains(t, err.Reason, "out of range")
	})

	t.Run("Unexpected character", func(t *testing.T) {
		err := test("let x = #;")
		assert.Contains(t, err.Reason, "unexpected character")
	})

	t.Run("Unterminated string", func(t *testing.T) {
		err := test("let s = \"never closed")
		assert.Contains(t, err.Reason, "unterminated string")
	})

	t.Run("Unterminated block comment", func(t *testing.T) {
		err := test("class Foo { /* never closed")
		assert.Contains(t, err.Reason, "unterminated block comment")
	})
}

func TestRetokenizationRoundTrip(t *testing.T) {
	// Re-rendering the token stream (with quotes restored and a single separating
	// space) and tokenizing again must produce the same sequence.
	source := `class Main { function void main() { do Output.printString("a // b"); return; } }`

	first := tokenize(t, source)

	rendered := ""
	for _, token := range first {
		if token.Type == jack.StringConstToken {
			rendered += "\"" + token.Value + "\" "
		} else {
			rendered += token.Value + " "
		}
	}

	second := tokenize(t, rendered)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Type, second[i].Type)
		assert.Equal(t, first[i].Value, second[i].Value)
	}
}
