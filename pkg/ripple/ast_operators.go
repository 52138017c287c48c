package ripple

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vito/ripple/pkg/units"
)

var (
	binaryGrammar = Grammar{one("left", "Expression"), one("right", "Expression")}
	unaryGrammar  = Grammar{one("operand", "Expression")}
)

// BinaryOperators lists the infix operators. They are applied left to right
// without precedence.
var BinaryOperators = []string{"+", "-", "·", "÷", "^", "%", "<", ">", "≤", "≥", "=", "≠", "&", "|"}

func isLogical(op string) bool {
	return op == "&" || op == "|"
}

func isComparison(op string) bool {
	switch op {
	case "<", ">", "≤", "≥":
		return true
	}
	return false
}

func isEquality(op string) bool {
	return op == "=" || op == "≠"
}

// BinaryEvaluate is left op right.
type BinaryEvaluate struct {
	Operator string
	Left     Expression
	Right    Expression
	Loc      *SourceLocation
}

var _ Expression = (*BinaryEvaluate)(nil)

func (b *BinaryEvaluate) Kind() string                       { return "BinaryEvaluate" }
func (b *BinaryEvaluate) Grammar() Grammar                   { return binaryGrammar }
func (b *BinaryEvaluate) Label() string                      { return b.Operator }
func (b *BinaryEvaluate) GetSourceLocation() *SourceLocation { return b.Loc }

func (b *BinaryEvaluate) Get(field string) any {
	switch field {
	case "left":
		return b.Left
	case "right":
		return b.Right
	}
	panic(unknownField(b, field))
}

func (b *BinaryEvaluate) With(field string, value any) Node {
	c := *b
	switch field {
	case "left":
		c.Left = nodeOf[Expression](value)
	case "right":
		c.Right = nodeOf[Expression](value)
	default:
		panic(unknownField(b, field))
	}
	return &c
}

func (b *BinaryEvaluate) ComputeType(ctx *Context) Type {
	switch {
	case isLogical(b.Operator), isComparison(b.Operator), isEquality(b.Operator):
		return BooleanType{}
	}
	switch Concrete(ctx.TypeOf(b.Left)).(type) {
	case TextType:
		if b.Operator == "+" {
			return TextType{}
		}
	case NumberType:
		return NumberType{Deriver: unitDerivers[b.Operator], Left: b.Left, Right: b.Right}
	}
	return UnknownType{Reason: "unsupported operand for " + b.Operator}
}

var unitDerivers = map[string]UnitDeriver{
	"+": sameUnit,
	"-": sameUnit,
	"%": sameUnit,
	"·": func(l, r units.Unit, _ *decimal.Decimal) units.Unit { return l.Product(r) },
	"÷": func(l, r units.Unit, _ *decimal.Decimal) units.Unit { return l.Quotient(r) },
	"^": powerUnit,
}

func sameUnit(l, _ units.Unit, _ *decimal.Decimal) units.Unit {
	return l
}

// powerUnit raises the base's unit by a constant integer exponent. Without
// a known exponent the unit of a dimensioned base cannot be known.
func powerUnit(l, _ units.Unit, constant *decimal.Decimal) units.Unit {
	if l.IsUnitless() {
		return units.Empty
	}
	if constant == nil || !constant.IsInteger() || constant.Abs().GreaterThan(decimal.NewFromInt(maxExponent)) {
		return units.Wildcard
	}
	n := int(constant.IntPart())
	if l.MaxExponent()*max(n, -n) > maxExponent {
		return units.Wildcard
	}
	return l.Power(n)
}

func (b *BinaryEvaluate) Compile(ctx *Context) []*Step {
	left := ctx.Compile(b.Left)
	right := ctx.Compile(b.Right)
	switch b.Operator {
	case "&":
		return sequence(
			steps(NewStart(b, nil)),
			left,
			steps(NewJumpIf(b, len(right), false, true, False)),
			right,
			steps(NewFinish(b)),
		)
	case "|":
		return sequence(
			steps(NewStart(b, nil)),
			left,
			steps(NewJumpIf(b, len(right), true, true, True)),
			right,
			steps(NewFinish(b)),
		)
	}
	return sequence(steps(NewStart(b, nil)), left, right, steps(NewFinish(b)))
}

func (b *BinaryEvaluate) Evaluate(ev *Evaluator) Value {
	right := ev.PopValue()
	left := ev.PopValue()
	if exc := firstException(left, right); exc != nil {
		return exc
	}
	switch {
	case isLogical(b.Operator):
		l, ok := left.(Bool)
		if !ok {
			return ev.TypeMismatch(b.Left, BooleanType{}, left)
		}
		r, ok := right.(Bool)
		if !ok {
			return ev.TypeMismatch(b.Right, BooleanType{}, right)
		}
		if b.Operator == "&" {
			return Bool{Bool: l.Bool && r.Bool}
		}
		return Bool{Bool: l.Bool || r.Bool}
	case b.Operator == "=":
		return Bool{Bool: left.Equal(right)}
	case b.Operator == "≠":
		return Bool{Bool: !left.Equal(right)}
	}

	if lt, ok := left.(Text); ok && b.Operator == "+" {
		rt, ok := right.(Text)
		if !ok {
			return ev.TypeMismatch(b.Right, TextType{}, right)
		}
		return Text{Text: lt.Text + rt.Text}
	}

	l, ok := left.(Number)
	if !ok {
		return ev.TypeMismatch(b.Left, NumberType{Unit: units.Wildcard}, left)
	}
	r, ok := right.(Number)
	if !ok {
		return ev.TypeMismatch(b.Right, NumberType{Unit: units.Wildcard}, right)
	}
	return b.arithmetic(ev, l, r)
}

func (b *BinaryEvaluate) arithmetic(ev *Evaluator, l, r Number) Value {
	switch b.Operator {
	case "+", "-", "<", ">", "≤", "≥":
		if !l.Unit.Equal(r.Unit) {
			return ev.Exception(UnitMismatch, b, "cannot combine %s with %s using %s", l, r, b.Operator)
		}
	}
	switch b.Operator {
	case "+":
		return Number{Num: l.Num.Add(r.Num), Unit: l.Unit}
	case "-":
		return Number{Num: l.Num.Sub(r.Num), Unit: l.Unit}
	case "·":
		return Number{Num: l.Num.Mul(r.Num), Unit: l.Unit.Product(r.Unit)}
	case "÷":
		if r.Num.IsZero() {
			return ev.Exception(DivisionByZero, b, "cannot divide %s by zero", l)
		}
		return Number{Num: l.Num.Div(r.Num), Unit: l.Unit.Quotient(r.Unit)}
	case "%":
		if r.Num.IsZero() {
			return ev.Exception(DivisionByZero, b, "cannot take %s modulo zero", l)
		}
		if !r.Unit.IsUnitless() && !r.Unit.Equal(l.Unit) {
			return ev.Exception(UnitMismatch, b, "cannot take %s modulo %s", l, r)
		}
		return Number{Num: l.Num.Mod(r.Num), Unit: l.Unit}
	case "^":
		return b.power(ev, l, r)
	case "<":
		return Bool{Bool: l.Num.LessThan(r.Num)}
	case ">":
		return Bool{Bool: l.Num.GreaterThan(r.Num)}
	case "≤":
		return Bool{Bool: l.Num.LessThanOrEqual(r.Num)}
	case "≥":
		return Bool{Bool: l.Num.GreaterThanOrEqual(r.Num)}
	}
	panic(internalf("unknown operator %q", b.Operator))
}

// Powers are bounded so that a single step always finishes quickly.
const (
	maxExponent    = 4096
	maxPowerDigits = 1 << 14
)

func (b *BinaryEvaluate) power(ev *Evaluator, l, r Number) Value {
	if !r.Unit.IsUnitless() {
		return ev.Exception(UnitMismatch, b, "exponent %s must be unitless", r)
	}
	if !l.Unit.IsUnitless() && !r.Num.IsInteger() {
		return ev.Exception(UnitMismatch, b, "cannot raise %s to a fractional power", l)
	}
	if l.Num.IsZero() && r.Num.IsNegative() {
		return ev.Exception(DivisionByZero, b, "cannot raise zero to the negative power %s", r)
	}
	bound := r.Num.Abs().Ceil()
	if bound.GreaterThan(decimal.NewFromInt(maxExponent)) {
		return ev.Exception(NumberLimit, b, "exponent %s is beyond ±%d", r, maxExponent)
	}
	n := int(bound.IntPart())
	if l.Unit.MaxExponent()*n > maxExponent {
		return ev.Exception(NumberLimit, b, "the unit of %s ^ %s has an exponent beyond ±%d", l, r, maxExponent)
	}
	if !l.Num.IsZero() {
		size := l.Num.NumDigits() + max(int(l.Num.Exponent()), -int(l.Num.Exponent()))
		if size*n > maxPowerDigits {
			return ev.Exception(NumberLimit, b, "%s ^ %s has too many digits", l, r)
		}
	}
	return Number{Num: l.Num.Pow(r.Num), Unit: l.Unit.Power(int(r.Num.IntPart()))}
}

func (b *BinaryEvaluate) Conflicts(ctx *Context) []Conflict {
	var conflicts []Conflict
	if left, ok := b.Left.(*BinaryEvaluate); ok && left.Operator != b.Operator {
		conflicts = append(conflicts, Conflict{
			Kind: OrderOfOperations,
			Node: b,
			Message: fmt.Sprintf("operators are evaluated left to right; use parentheses to combine %s and %s",
				left.Operator, b.Operator),
			Related: []Node{left},
		})
	}

	lt := Concrete(ctx.TypeOf(b.Left))
	rt := Concrete(ctx.TypeOf(b.Right))
	if isUnknown(lt) || isUnknown(rt) {
		return conflicts
	}

	operand := func(side Expression, t Type, want string) Conflict {
		return Conflict{
			Kind:    IncompatibleOperand,
			Node:    side,
			Message: fmt.Sprintf("%s expects %s, got %s", b.Operator, want, t),
			Related: []Node{b},
		}
	}

	switch {
	case isEquality(b.Operator):
	case isLogical(b.Operator):
		if !Accepts(BooleanType{}, lt, ctx) {
			conflicts = append(conflicts, operand(b.Left, lt, "?"))
		}
		if !Accepts(BooleanType{}, rt, ctx) {
			conflicts = append(conflicts, operand(b.Right, rt, "?"))
		}
	case b.Operator == "+" && Accepts(TextType{}, lt, ctx):
		if !Accepts(TextType{}, rt, ctx) {
			conflicts = append(conflicts, operand(b.Right, rt, "''"))
		}
	default:
		ln, lok := lt.(NumberType)
		rn, rok := rt.(NumberType)
		if !lok {
			conflicts = append(conflicts, operand(b.Left, lt, "#"))
		}
		if !rok {
			conflicts = append(conflicts, operand(b.Right, rt, "#"))
		}
		if lok && rok {
			if c, bad := b.unitConflict(ctx, ln, rn); bad {
				conflicts = append(conflicts, c)
			}
		}
	}
	return conflicts
}

func (b *BinaryEvaluate) unitConflict(ctx *Context, l, r NumberType) (Conflict, bool) {
	lu, ru := l.ConcreteUnit(ctx), r.ConcreteUnit(ctx)
	if lu.IsWildcard() || ru.IsWildcard() {
		return Conflict{}, false
	}
	switch {
	case b.Operator == "^" && !ru.IsUnitless():
		return Conflict{
			Kind:    IncompatibleUnits,
			Node:    b.Right,
			Message: "exponent must be unitless, got " + ru.String(),
			Related: []Node{b},
		}, true
	case b.Operator == "+" || b.Operator == "-" || isComparison(b.Operator):
		if !lu.Equal(ru) {
			return Conflict{
				Kind:    IncompatibleUnits,
				Node:    b,
				Message: fmt.Sprintf("%s needs matching units, got #%s and #%s", b.Operator, lu, ru),
				Related: []Node{b.Left, b.Right},
			}, true
		}
	}
	return Conflict{}, false
}

// UnaryEvaluate is -number or ~boolean.
type UnaryEvaluate struct {
	Operator string
	Operand  Expression
	Loc      *SourceLocation
}

var _ Expression = (*UnaryEvaluate)(nil)

func (u *UnaryEvaluate) Kind() string                       { return "UnaryEvaluate" }
func (u *UnaryEvaluate) Grammar() Grammar                   { return unaryGrammar }
func (u *UnaryEvaluate) Label() string                      { return u.Operator }
func (u *UnaryEvaluate) GetSourceLocation() *SourceLocation { return u.Loc }

func (u *UnaryEvaluate) Get(field string) any {
	if field == "operand" {
		return u.Operand
	}
	panic(unknownField(u, field))
}

func (u *UnaryEvaluate) With(field string, value any) Node {
	if field != "operand" {
		panic(unknownField(u, field))
	}
	c := *u
	c.Operand = nodeOf[Expression](value)
	return &c
}

func (u *UnaryEvaluate) ComputeType(ctx *Context) Type {
	if u.Operator == "~" {
		return BooleanType{}
	}
	if _, ok := Concrete(ctx.TypeOf(u.Operand)).(NumberType); ok {
		return NumberType{Deriver: sameUnit, Left: u.Operand}
	}
	return UnknownType{Reason: "unsupported operand for " + u.Operator}
}

func (u *UnaryEvaluate) Compile(ctx *Context) []*Step {
	return sequence(steps(NewStart(u, nil)), ctx.Compile(u.Operand), steps(NewFinish(u)))
}

func (u *UnaryEvaluate) Evaluate(ev *Evaluator) Value {
	v := ev.PopValue()
	if exc, ok := v.(*Exception); ok {
		return exc
	}
	switch u.Operator {
	case "~":
		b, ok := v.(Bool)
		if !ok {
			return ev.TypeMismatch(u.Operand, BooleanType{}, v)
		}
		return Bool{Bool: !b.Bool}
	case "-":
		n, ok := v.(Number)
		if !ok {
			return ev.TypeMismatch(u.Operand, NumberType{Unit: units.Wildcard}, v)
		}
		return Number{Num: n.Num.Neg(), Unit: n.Unit}
	}
	panic(internalf("unknown unary operator %q", u.Operator))
}

func (u *UnaryEvaluate) Conflicts(ctx *Context) []Conflict {
	t := Concrete(ctx.TypeOf(u.Operand))
	var want Type = NumberType{Unit: units.Wildcard}
	if u.Operator == "~" {
		want = BooleanType{}
	}
	if Accepts(want, t, ctx) {
		return nil
	}
	return []Conflict{{
		Kind:    IncompatibleOperand,
		Node:    u.Operand,
		Message: fmt.Sprintf("%s expects %s, got %s", u.Operator, want, t),
		Related: []Node{u},
	}}
}
