package ripple

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vito/ripple/pkg/units"
)

// Parser is a recursive descent parser over the lexer's tokens. It never
// fails: anything it cannot make sense of becomes an Unparsable node.
type Parser struct {
	tokens   []*Token
	pos      int
	filename string
}

// Parse parses a program. Syntax errors are reported as Unparsable nodes
// within the returned tree, surfaced as conflicts.
func Parse(text, filename string) *Source {
	p := &Parser{tokens: Lex(text), filename: filename}
	body := &Block{Loc: p.loc(p.cur())}
	body.Statements = p.statements(func(t *Token) bool { return t.Type == EOFToken })
	return &Source{
		Name: filename,
		Text: text,
		Body: body,
		Loc: &SourceLocation{
			Filename: filename,
			Line:     1,
			Column:   1,
			Length:   len([]rune(text)),
		},
	}
}

// ParseExpression parses a single expression, e.g. from a command line.
func ParseExpression(text string) Expression {
	p := &Parser{tokens: Lex(text), filename: "<expr>"}
	e := p.expr()
	if p.cur().Type != EOFToken {
		start := p.cur()
		for p.cur().Type != EOFToken {
			p.advance()
		}
		return p.unparsable(start, "unexpected trailing input", e)
	}
	return e
}

func (p *Parser) cur() *Token { return p.peek(0) }

func (p *Parser) peek(n int) *Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() *Token {
	t := p.cur()
	if t.Type != EOFToken {
		p.pos++
	}
	return t
}

func (p *Parser) previous() *Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}

// accept consumes the symbol if it is next.
func (p *Parser) accept(symbol string) bool {
	if p.cur().is(symbol) {
		p.advance()
		return true
	}
	return false
}

// attached reports whether the next token is the symbol and directly
// follows the previous token.
func (p *Parser) attached(symbol string) bool {
	return p.cur().is(symbol) && !p.cur().SpaceBefore
}

func (p *Parser) loc(t *Token) *SourceLocation {
	return &SourceLocation{
		Filename: p.filename,
		Line:     t.Line,
		Column:   t.Col,
		Length:   t.Length,
	}
}

// span covers from start through the last consumed token.
func (p *Parser) span(start *Token) *SourceLocation {
	l := p.loc(start)
	end := p.previous()
	if end.Line == start.Line && end.Col >= start.Col {
		l.Length = end.Col + end.Length - start.Col
	}
	return l
}

// textFrom reassembles the source text from start through the last
// consumed token.
func (p *Parser) textFrom(start *Token) string {
	first := slices.Index(p.tokens, start)
	if first < 0 || first >= p.pos {
		return start.Raw
	}
	var b strings.Builder
	for i, t := range p.tokens[first:p.pos] {
		if i > 0 && t.SpaceBefore {
			b.WriteByte(' ')
		}
		b.WriteString(t.Raw)
	}
	return b.String()
}

func (p *Parser) unparsable(start *Token, reason string, parts ...Node) *Unparsable {
	var kept []Node
	for _, part := range parts {
		if part != nil {
			kept = append(kept, part)
		}
	}
	return &Unparsable{
		Text:   p.textFrom(start),
		Reason: reason,
		Parts:  kept,
		Loc:    p.span(start),
	}
}

// statements parses until done matches the next token, which is left
// unconsumed.
func (p *Parser) statements(done func(*Token) bool) []Expression {
	var stmts []Expression
	for !done(p.cur()) && p.cur().Type != EOFToken {
		before := p.pos
		stmt := p.statement()
		if p.pos == before {
			// always make progress
			start := p.advance()
			stmt = p.unparsable(start, "unexpected "+describeToken(start))
		}
		stmts = append(stmts, stmt)
	}
	return stmts
}

func (p *Parser) closing(symbol string) func(*Token) bool {
	return func(t *Token) bool { return t.is(symbol) }
}

func (p *Parser) statement() Expression {
	if bind := p.tryBind(false); bind != nil {
		return bind
	}
	return p.expr()
}

// tryBind parses NAME ('•' type)? ':' value, backtracking when the tokens
// turn out to be an expression. Inputs may omit the value.
func (p *Parser) tryBind(input bool) *Bind {
	start := p.cur()
	if start.Type != NameToken {
		return nil
	}
	next := p.peek(1)
	if !input && !next.is(":") && !next.is("•") {
		return nil
	}
	saved := p.pos
	p.advance()
	bind := &Bind{Name: start.Text}
	if p.accept("•") {
		bind.Type = p.typ()
	}
	if p.accept(":") {
		bind.Value = p.expr()
	} else if !input {
		p.pos = saved
		return nil
	}
	bind.Loc = p.span(start)
	return bind
}

func (p *Parser) expr() Expression {
	start := p.cur()
	left := p.binary()
	switch {
	case p.accept("?"):
		yes := p.expr()
		no := p.expr()
		return &Conditional{Condition: left, Yes: yes, No: no, Loc: p.span(start)}
	case p.accept("…"):
		condition := p.binary()
		if !p.accept("…") {
			return p.unparsable(start, "expected … before the next value of a reaction", left, condition)
		}
		next := p.expr()
		return &Reaction{Initial: left, Condition: condition, Next: next, Loc: p.span(start)}
	}
	return left
}

func isBinaryOperator(t *Token) bool {
	return t.Type == SymbolToken && slices.Contains(BinaryOperators, t.Text)
}

func (p *Parser) binary() Expression {
	start := p.cur()
	left := p.unary()
	for isBinaryOperator(p.cur()) {
		op := p.advance()
		if p.cur().Type == EOFToken || p.cur().is(")") || p.cur().is("]") || p.cur().is("}") {
			return p.unparsable(start, "expected a value after "+op.Text, left)
		}
		right := p.unary()
		left = &BinaryEvaluate{Operator: op.Text, Left: left, Right: right, Loc: p.span(start)}
	}
	return left
}

func (p *Parser) unary() Expression {
	start := p.cur()
	switch {
	case start.is("-"), start.is("~"):
		p.advance()
		operand := p.unary()
		return &UnaryEvaluate{Operator: start.Text, Operand: operand, Loc: p.span(start)}
	case start.is("∆"):
		p.advance()
		stream := p.postfix()
		return &Changed{Stream: stream, Loc: p.span(start)}
	}
	return p.postfix()
}

func (p *Parser) postfix() Expression {
	start := p.cur()
	e := p.atom()
	for {
		switch {
		case p.attached(".") && p.peek(1).Type == NameToken && !p.peek(1).SpaceBefore:
			p.advance()
			name := p.advance()
			e = &PropertyReference{Structure: e, Name: name.Text, Loc: p.span(start)}
		case p.attached("("):
			p.advance()
			inputs := p.expressions(")")
			if !p.accept(")") {
				return p.unparsable(start, "expected ) to end the inputs", e)
			}
			e = &Evaluate{Function: e, Inputs: inputs, Loc: p.span(start)}
		case p.attached("["):
			p.advance()
			index := p.expr()
			if !p.accept("]") {
				return p.unparsable(start, "expected ] after the index", e, index)
			}
			e = &ListAccess{List: e, Index: index, Loc: p.span(start)}
		case p.attached("•"):
			p.advance()
			t := p.typ()
			e = &Is{Expression: e, Type: t, Loc: p.span(start)}
		default:
			return e
		}
	}
}

// expressions parses expressions up to the closing symbol, skipping
// commas.
func (p *Parser) expressions(closing string) []Expression {
	var exprs []Expression
	for !p.cur().is(closing) && p.cur().Type != EOFToken {
		if p.accept(",") {
			continue
		}
		before := p.pos
		e := p.expr()
		if p.pos == before {
			start := p.advance()
			e = p.unparsable(start, "unexpected "+describeToken(start))
		}
		exprs = append(exprs, e)
	}
	return exprs
}

func (p *Parser) atom() Expression {
	start := p.cur()
	switch start.Type {
	case NumberToken:
		return p.number()
	case TextToken:
		p.advance()
		return &TextLiteral{Text: start.Text, Loc: p.loc(start)}
	case NameToken:
		p.advance()
		return &Reference{Name: start.Text, Loc: p.loc(start)}
	case IllegalToken:
		p.advance()
		return p.unparsable(start, start.Text)
	case EOFToken:
		return p.unparsable(start, "expected an expression")
	}

	switch start.Text {
	case "⊤", "⊥":
		p.advance()
		return &BooleanLiteral{Value: start.Text == "⊤", Loc: p.loc(start)}
	case "ø":
		p.advance()
		return &NoneLiteral{Loc: p.loc(start)}
	case ".":
		p.advance()
		return &This{Loc: p.loc(start)}
	case "(":
		p.advance()
		stmts := p.statements(p.closing(")"))
		if !p.accept(")") {
			return p.unparsable(start, "expected ) to end the block", nodes(stmts)...)
		}
		return &Block{Statements: stmts, Loc: p.span(start)}
	case "[":
		p.advance()
		items := p.expressions("]")
		if !p.accept("]") {
			return p.unparsable(start, "expected ] to end the list", nodes(items)...)
		}
		return &ListLiteral{Items: items, Loc: p.span(start)}
	case "{":
		return p.setOrMap()
	case "ƒ":
		return p.function()
	case "•":
		return p.structure()
	}

	p.advance()
	return p.unparsable(start, "unexpected "+describeToken(start))
}

func (p *Parser) number() Expression {
	start := p.advance()
	num, err := decimal.NewFromString(start.Text)
	if err != nil {
		return p.unparsable(start, "invalid number: "+err.Error())
	}
	unit, err := units.Parse(start.Unit)
	if err != nil {
		return p.unparsable(start, "invalid unit: "+err.Error())
	}
	return &NumberLiteral{Text: start.Text, Number: num, Unit: unit, Loc: p.loc(start)}
}

func (p *Parser) setOrMap() Expression {
	start := p.advance()
	if p.cur().is(":") && p.peek(1).is("}") {
		p.advance()
		p.advance()
		return &MapLiteral{Loc: p.span(start)}
	}
	if p.accept("}") {
		return &SetLiteral{Loc: p.span(start)}
	}

	first := p.expr()
	if !p.cur().is(":") {
		items := append([]Expression{first}, p.expressions("}")...)
		if !p.accept("}") {
			return p.unparsable(start, "expected } to end the set", nodes(items)...)
		}
		return &SetLiteral{Items: items, Loc: p.span(start)}
	}

	m := &MapLiteral{}
	key := first
	for {
		kvStart := p.previous()
		if !p.accept(":") {
			return p.unparsable(start, "expected : after a map key", append(entryNodes(m.Entries), key)...)
		}
		value := p.expr()
		m.Entries = append(m.Entries, &KeyValue{Key: key, Value: value, Loc: p.span(kvStart)})
		p.accept(",")
		if p.accept("}") {
			m.Loc = p.span(start)
			return m
		}
		if p.cur().Type == EOFToken {
			return p.unparsable(start, "expected } to end the map", entryNodes(m.Entries)...)
		}
		key = p.expr()
	}
}

// inputs parses '(' bind* ')' for function and structure definitions.
func (p *Parser) inputs() ([]*Bind, bool) {
	if !p.accept("(") {
		return nil, false
	}
	var binds []*Bind
	for !p.cur().is(")") {
		if p.accept(",") {
			continue
		}
		bind := p.tryBind(true)
		if bind == nil {
			return binds, false
		}
		binds = append(binds, bind)
	}
	p.advance()
	return binds, true
}

func (p *Parser) function() Expression {
	start := p.advance()
	fn := &FunctionDefinition{}
	if p.cur().Type == NameToken {
		fn.Name = p.advance().Text
	}
	inputs, ok := p.inputs()
	if !ok {
		return p.unparsable(start, "expected (inputs) after ƒ", bindNodes(inputs)...)
	}
	fn.Inputs = inputs
	if p.accept("•") {
		fn.Output = p.typ()
	}
	fn.Body = p.expr()
	fn.Loc = p.span(start)
	return fn
}

func (p *Parser) structure() Expression {
	start := p.advance()
	if p.cur().Type != NameToken {
		return p.unparsable(start, "expected a structure name after •")
	}
	def := &StructureDefinition{Name: p.advance().Text}
	inputs, ok := p.inputs()
	if !ok {
		return p.unparsable(start, "expected (inputs) after the structure name", bindNodes(inputs)...)
	}
	def.Inputs = inputs
	bodyStart := p.cur()
	// the body must start on the line that ends the inputs
	if p.cur().is("(") && bodyStart.Line == p.previous().Line {
		p.advance()
		stmts := p.statements(p.closing(")"))
		if !p.accept(")") {
			return p.unparsable(start, "expected ) to end the structure body", nodes(stmts)...)
		}
		def.Body = &Block{Statements: stmts, Loc: p.span(bodyStart)}
	} else {
		def.Body = &Block{Loc: p.loc(bodyStart)}
	}
	def.Loc = p.span(start)
	return def
}

func (p *Parser) typ() TypeNode {
	start := p.cur()
	t := p.typeAtom()
	for p.cur().is("|") {
		p.advance()
		right := p.typeAtom()
		t = &UnionTypeNode{Left: t, Right: right, Loc: p.span(start)}
	}
	return t
}

func (p *Parser) typeAtom() TypeNode {
	start := p.cur()
	switch start.Type {
	case NumberToken:
		lit, ok := p.number().(*NumberLiteral)
		if !ok {
			return p.unparsable(start, "invalid number type")
		}
		return &LiteralTypeNode{Literal: lit, Loc: p.loc(start)}
	case TextToken:
		p.advance()
		if start.Text == "" {
			return &TextTypeNode{Loc: p.loc(start)}
		}
		return &LiteralTypeNode{Literal: &TextLiteral{Text: start.Text, Loc: p.loc(start)}, Loc: p.loc(start)}
	case NameToken:
		p.advance()
		return &NameTypeNode{Name: start.Text, Loc: p.loc(start)}
	case IllegalToken, EOFToken:
		p.advance()
		return p.unparsable(start, "expected a type")
	}

	p.advance()
	switch start.Text {
	case "#":
		unit := units.Wildcard
		if start.Unit != "" {
			parsed, err := units.Parse(start.Unit)
			if err != nil {
				return p.unparsable(start, "invalid unit: "+err.Error())
			}
			unit = parsed
		}
		return &NumberTypeNode{Unit: unit, Loc: p.loc(start)}
	case "?":
		return &BooleanTypeNode{Loc: p.loc(start)}
	case "⊤", "⊥":
		lit := &BooleanLiteral{Value: start.Text == "⊤", Loc: p.loc(start)}
		return &LiteralTypeNode{Literal: lit, Loc: p.loc(start)}
	case "ø":
		return &NoneTypeNode{Loc: p.loc(start)}
	case "[":
		item := p.typ()
		if !p.accept("]") {
			return p.unparsable(start, "expected ] to end the list type", item)
		}
		return &ListTypeNode{Item: item, Loc: p.span(start)}
	case "{":
		key := p.typ()
		if p.accept(":") {
			value := p.typ()
			if !p.accept("}") {
				return p.unparsable(start, "expected } to end the map type", key, value)
			}
			return &MapTypeNode{Key: key, Value: value, Loc: p.span(start)}
		}
		if !p.accept("}") {
			return p.unparsable(start, "expected } to end the set type", key)
		}
		return &SetTypeNode{Key: key, Loc: p.span(start)}
	case "(":
		t := p.typ()
		if !p.accept(")") {
			return p.unparsable(start, "expected ) after the type", t)
		}
		return t
	}
	return p.unparsable(start, "expected a type")
}

func describeToken(t *Token) string {
	switch t.Type {
	case EOFToken:
		return "end of input"
	case TextToken:
		return "text " + t.Raw
	case NumberToken:
		return "number " + t.Raw
	case NameToken:
		return "name " + t.Text
	}
	return "'" + t.Raw + "'"
}

func nodes[T Node](list []T) []Node {
	out := make([]Node, 0, len(list))
	for _, n := range list {
		out = append(out, n)
	}
	return out
}

func entryNodes(entries []*KeyValue) []Node { return nodes(entries) }

func bindNodes(binds []*Bind) []Node { return nodes(binds) }
