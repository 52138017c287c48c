package ripple

import (
	"strings"
	"unicode"

	"github.com/vito/ripple/pkg/units"
)

// TokenType represents the kind of token.
type TokenType int

const (
	EOFToken TokenType = iota
	IllegalToken
	NumberToken
	TextToken
	NameToken
	SymbolToken
)

// Token is a lexical token. Symbols are stored in their canonical form, so
// '*' lexes as '·' and "fn" as 'ƒ'.
type Token struct {
	Type TokenType
	Text string
	// Unit is the unit text following a number or '#'.
	Unit string
	// Raw is the exact source text of the token.
	Raw    string
	Line   int
	Col    int
	Length int
	// SpaceBefore is set when whitespace separates the token from the
	// previous one. Calls and list access require its absence.
	SpaceBefore bool
}

func (t *Token) is(symbol string) bool {
	return t.Type == SymbolToken && t.Text == symbol
}

// aliases map ASCII spellings onto canonical symbols.
var aliases = map[string]string{
	"*":       "·",
	"/":       "÷",
	"!=":      "≠",
	"<=":      "≤",
	">=":      "≥",
	"...":     "…",
	"fn":      "ƒ",
	"true":    "⊤",
	"false":   "⊥",
	"none":    "ø",
	"not":     "~",
	"changed": "∆",
}

var multiSymbols = []string{"...", "!=", "<=", ">="}

const singleSymbols = "()[]{}:.…∆?•ƒ#|&~+-·*÷/^%=≠<>≤≥⊤⊥ø,"

var closingQuotes = map[rune]rune{
	'\'': '\'',
	'"':  '"',
	'‘':  '’',
	'“':  '”',
	'«':  '»',
}

// Lexer scans source text into tokens.
type Lexer struct {
	src              []rune
	start            int
	cur              int
	line             int // 1-based
	col              int // 1-based
	tokens           []*Token
	whitespaceBefore bool

	tokStartLine int
	tokStartCol  int
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1}
}

// Lex tokenizes source text. It never fails: characters it does not
// understand become IllegalTokens for the parser to wrap as Unparsable.
func Lex(src string) []*Token {
	return NewLexer(src).Tokens()
}

// Tokens scans the whole source, ending with an EOF token.
func (l *Lexer) Tokens() []*Token {
	for {
		l.skipWhitespace()
		l.start = l.cur
		l.tokStartLine, l.tokStartCol = l.line, l.col
		if l.isAtEnd() {
			l.addToken(EOFToken, "", "")
			return l.tokens
		}
		l.scanToken()
	}
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() rune {
	return l.peekN(0)
}

func (l *Lexer) peekN(n int) rune {
	if l.cur+n >= len(l.src) {
		return 0
	}
	return l.src[l.cur+n]
}

func (l *Lexer) advance() rune {
	r := l.src[l.cur]
	l.cur++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) addToken(tt TokenType, text, unit string) {
	raw := string(l.src[l.start:l.cur])
	l.tokens = append(l.tokens, &Token{
		Type:        tt,
		Text:        text,
		Unit:        unit,
		Raw:         raw,
		Line:        l.tokStartLine,
		Col:         l.tokStartCol,
		Length:      l.cur - l.start,
		SpaceBefore: l.whitespaceBefore,
	})
	l.whitespaceBefore = false
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.whitespaceBefore = true
			l.advance()
		case r == '/' && l.peekN(1) == '/':
			// line comment
			l.whitespaceBefore = true
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) scanToken() {
	r := l.peek()
	switch {
	case isDigit(r):
		l.scanNumber()
	case closingQuotes[r] != 0:
		l.scanText()
	case isSymbolLetter(r):
		l.scanSymbol()
	case unicode.IsLetter(r) || r == '_':
		l.scanName()
	default:
		l.scanSymbol()
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// isSymbolLetter reports whether r is a symbol that Unicode classifies as a
// letter, like 'ƒ' and 'ø'. These never start or continue a name.
func isSymbolLetter(r rune) bool {
	return unicode.IsLetter(r) && strings.ContainsRune(singleSymbols, r)
}

func isNameRune(r rune) bool {
	return (unicode.IsLetter(r) && !isSymbolLetter(r)) || unicode.IsDigit(r) || r == '_'
}

func isUnitDimensionRune(r rune) bool {
	return units.IsDimensionRune(r) && r != '%' && !isSymbolLetter(r)
}

func (l *Lexer) scanNumber() {
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekN(1)) {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	text := string(l.src[l.start:l.cur])
	l.addToken(NumberToken, text, l.scanUnit())
}

// scanUnit reads a unit directly following a number or '#': dimensions
// with optional exponents, joined by '·' or '/' only when another
// dimension follows immediately.
func (l *Lexer) scanUnit() string {
	if !isUnitDimensionRune(l.peek()) {
		return ""
	}
	unitStart := l.cur
	for {
		for isUnitDimensionRune(l.peek()) {
			l.advance()
		}
		l.scanExponent()
		sep := l.peek()
		if (sep == '·' || sep == '/') && unicode.IsLetter(l.peekN(1)) && !isSymbolLetter(l.peekN(1)) {
			l.advance()
			continue
		}
		break
	}
	return string(l.src[unitStart:l.cur])
}

func (l *Lexer) scanExponent() {
	if l.peek() == '^' && (isDigit(l.peekN(1)) || (l.peekN(1) == '-' && isDigit(l.peekN(2)))) {
		l.advance()
		if l.peek() == '-' {
			l.advance()
		}
		for isDigit(l.peek()) {
			l.advance()
		}
		return
	}
	for strings.ContainsRune("⁰¹²³⁴⁵⁶⁷⁸⁹⁻", l.peek()) && l.peek() != 0 {
		l.advance()
	}
}

func (l *Lexer) scanText() {
	open := l.advance()
	closing := closingQuotes[open]
	var out strings.Builder
	for !l.isAtEnd() {
		r := l.advance()
		if r == closing {
			l.addToken(TextToken, out.String(), "")
			return
		}
		if r == '\\' && !l.isAtEnd() {
			switch esc := l.advance(); esc {
			case 'n':
				out.WriteRune('\n')
			case 't':
				out.WriteRune('\t')
			default:
				out.WriteRune(esc)
			}
			continue
		}
		out.WriteRune(r)
	}
	l.addToken(IllegalToken, "unterminated text", "")
}

func (l *Lexer) scanName() {
	for isNameRune(l.peek()) {
		l.advance()
	}
	name := string(l.src[l.start:l.cur])
	if canonical, ok := aliases[name]; ok {
		l.addToken(SymbolToken, canonical, "")
		return
	}
	l.addToken(NameToken, name, "")
}

func (l *Lexer) scanSymbol() {
	rest := string(l.src[l.cur:min(len(l.src), l.cur+3)])
	for _, sym := range multiSymbols {
		if strings.HasPrefix(rest, sym) {
			for range []rune(sym) {
				l.advance()
			}
			l.addToken(SymbolToken, aliases[sym], "")
			return
		}
	}
	r := l.advance()
	if !strings.ContainsRune(singleSymbols, r) {
		l.addToken(IllegalToken, "unexpected "+string(r), "")
		return
	}
	sym := string(r)
	if canonical, ok := aliases[sym]; ok {
		sym = canonical
	}
	if sym == "#" {
		l.addToken(SymbolToken, sym, l.scanUnit())
		return
	}
	l.addToken(SymbolToken, sym, "")
}
