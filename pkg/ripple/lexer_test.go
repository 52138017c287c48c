package ripple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenSummary struct {
	Type TokenType
	Text string
	Unit string
}

func summarize(tokens []*Token) []tokenSummary {
	var out []tokenSummary
	for _, t := range tokens {
		if t.Type == EOFToken {
			break
		}
		out = append(out, tokenSummary{t.Type, t.Text, t.Unit})
	}
	return out
}

func TestLex(t *testing.T) {
	for _, tt := range []struct {
		name     string
		input    string
		expected []tokenSummary
	}{
		{
			name:  "number with compound unit",
			input: "1m/s",
			expected: []tokenSummary{
				{NumberToken, "1", "m/s"},
			},
		},
		{
			name:  "superscript exponent",
			input: "9.8m·s⁻²",
			expected: []tokenSummary{
				{NumberToken, "9.8", "m·s⁻²"},
			},
		},
		{
			name:  "unit separated by space is a name",
			input: "2 x",
			expected: []tokenSummary{
				{NumberToken, "2", ""},
				{NameToken, "x", ""},
			},
		},
		{
			name:  "percent is an operator",
			input: "50%",
			expected: []tokenSummary{
				{NumberToken, "50", ""},
				{SymbolToken, "%", ""},
			},
		},
		{
			name:  "number type with unit",
			input: "#m/s",
			expected: []tokenSummary{
				{SymbolToken, "#", "m/s"},
			},
		},
		{
			name:  "ascii aliases",
			input: "2 * 3 / 4 != 5 <= 6 >= 7",
			expected: []tokenSummary{
				{NumberToken, "2", ""},
				{SymbolToken, "·", ""},
				{NumberToken, "3", ""},
				{SymbolToken, "÷", ""},
				{NumberToken, "4", ""},
				{SymbolToken, "≠", ""},
				{NumberToken, "5", ""},
				{SymbolToken, "≤", ""},
				{NumberToken, "6", ""},
				{SymbolToken, "≥", ""},
				{NumberToken, "7", ""},
			},
		},
		{
			name:  "word aliases",
			input: "fn true false none not changed",
			expected: []tokenSummary{
				{SymbolToken, "ƒ", ""},
				{SymbolToken, "⊤", ""},
				{SymbolToken, "⊥", ""},
				{SymbolToken, "ø", ""},
				{SymbolToken, "~", ""},
				{SymbolToken, "∆", ""},
			},
		},
		{
			name:  "function symbol",
			input: "ƒ(a b) a",
			expected: []tokenSummary{
				{SymbolToken, "ƒ", ""},
				{SymbolToken, "(", ""},
				{NameToken, "a", ""},
				{NameToken, "b", ""},
				{SymbolToken, ")", ""},
				{NameToken, "a", ""},
			},
		},
		{
			name:  "named function symbol",
			input: "ƒ double(x)",
			expected: []tokenSummary{
				{SymbolToken, "ƒ", ""},
				{NameToken, "double", ""},
				{SymbolToken, "(", ""},
				{NameToken, "x", ""},
				{SymbolToken, ")", ""},
			},
		},
		{
			name:  "none symbol",
			input: "ø",
			expected: []tokenSummary{
				{SymbolToken, "ø", ""},
			},
		},
		{
			name:  "symbols end names",
			input: "xø",
			expected: []tokenSummary{
				{NameToken, "x", ""},
				{SymbolToken, "ø", ""},
			},
		},
		{
			name:  "reaction ellipsis",
			input: "0 ... ⊤ … 1",
			expected: []tokenSummary{
				{NumberToken, "0", ""},
				{SymbolToken, "…", ""},
				{SymbolToken, "⊤", ""},
				{SymbolToken, "…", ""},
				{NumberToken, "1", ""},
			},
		},
		{
			name:  "text escapes",
			input: `'it\'s\n'`,
			expected: []tokenSummary{
				{TextToken, "it's\n", ""},
			},
		},
		{
			name:  "other quotes",
			input: `«hi» "there" ‘you’`,
			expected: []tokenSummary{
				{TextToken, "hi", ""},
				{TextToken, "there", ""},
				{TextToken, "you", ""},
			},
		},
		{
			name:  "comments are skipped",
			input: "1 // one\n2",
			expected: []tokenSummary{
				{NumberToken, "1", ""},
				{NumberToken, "2", ""},
			},
		},
		{
			name:  "unterminated text",
			input: "'open",
			expected: []tokenSummary{
				{IllegalToken, "unterminated text", ""},
			},
		},
		{
			name:  "unknown character",
			input: "1 @",
			expected: []tokenSummary{
				{NumberToken, "1", ""},
				{IllegalToken, "unexpected @", ""},
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, summarize(Lex(tt.input)))
		})
	}
}

func TestLexSpacing(t *testing.T) {
	tokens := Lex("f(1) f (1)")
	require.Len(t, tokens, 9)

	assert.False(t, tokens[1].SpaceBefore, "call paren is attached")
	assert.True(t, tokens[4].SpaceBefore)
	assert.True(t, tokens[5].SpaceBefore, "detached paren starts a block")
}

func TestLexPositions(t *testing.T) {
	tokens := Lex("a\n  bc")
	require.Len(t, tokens, 3)

	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Col)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 3, tokens[1].Col)
	assert.Equal(t, 2, tokens[1].Length)
	assert.Equal(t, EOFToken, tokens[2].Type)
}

func TestLexRawKeepsSpelling(t *testing.T) {
	tokens := Lex("!=")
	require.Equal(t, "≠", tokens[0].Text)
	require.Equal(t, "!=", tokens[0].Raw)
}
