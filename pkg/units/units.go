// Package units implements the unit algebra used by numbers: a unit is a
// signed product of named dimensions, e.g. m¹·s⁻¹.
package units

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Unit is an immutable product of dimensions with integer exponents.
// The zero value is the unitless unit.
type Unit struct {
	dims     map[string]int
	wildcard bool
}

// Empty is the unitless unit.
var Empty = Unit{}

// Wildcard is a unit that accepts any other unit. It is used for inputs that
// are generic over units, like the index of a list.
var Wildcard = Unit{wildcard: true}

// Of returns a unit with a single dimension raised to the first power.
func Of(name string) Unit {
	if name == "" {
		return Empty
	}
	return Unit{dims: map[string]int{name: 1}}
}

// New builds a unit from the given exponents, dropping zero exponents.
func New(exponents map[string]int) Unit {
	dims := map[string]int{}
	for name, exp := range exponents {
		if exp != 0 {
			dims[name] = exp
		}
	}
	if len(dims) == 0 {
		return Empty
	}
	return Unit{dims: dims}
}

// IsUnitless reports whether the unit has no dimensions.
func (u Unit) IsUnitless() bool {
	return !u.wildcard && len(u.dims) == 0
}

// MaxExponent returns the largest exponent magnitude among the unit's
// dimensions.
func (u Unit) MaxExponent() int {
	largest := 0
	for _, exp := range u.dims {
		largest = max(largest, exp, -exp)
	}
	return largest
}

// IsWildcard reports whether the unit accepts any unit.
func (u Unit) IsWildcard() bool {
	return u.wildcard
}

// Exponent returns the exponent of the named dimension.
func (u Unit) Exponent(name string) int {
	return u.dims[name]
}

// Dimensions returns the dimension names in sorted order.
func (u Unit) Dimensions() []string {
	names := make([]string, 0, len(u.dims))
	for name := range u.dims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Product multiplies two units, adding exponents.
func (u Unit) Product(other Unit) Unit {
	if u.wildcard || other.wildcard {
		return Wildcard
	}
	dims := map[string]int{}
	for name, exp := range u.dims {
		dims[name] += exp
	}
	for name, exp := range other.dims {
		dims[name] += exp
	}
	return New(dims)
}

// Quotient divides u by other, subtracting exponents.
func (u Unit) Quotient(other Unit) Unit {
	return u.Product(other.Power(-1))
}

// Power raises every exponent of the unit to the given power.
func (u Unit) Power(n int) Unit {
	if u.wildcard {
		return Wildcard
	}
	dims := map[string]int{}
	for name, exp := range u.dims {
		dims[name] = exp * n
	}
	return New(dims)
}

// Equal reports whether both units have identical dimensions.
func (u Unit) Equal(other Unit) bool {
	if u.wildcard != other.wildcard {
		return false
	}
	if len(u.dims) != len(other.dims) {
		return false
	}
	for name, exp := range u.dims {
		if other.dims[name] != exp {
			return false
		}
	}
	return true
}

// Accepts reports whether a value of unit other may be used where u is
// expected.
func (u Unit) Accepts(other Unit) bool {
	if u.wildcard {
		return true
	}
	return u.Equal(other)
}

func (u Unit) String() string {
	if u.wildcard {
		return "*"
	}
	var num, den []string
	for _, name := range u.Dimensions() {
		exp := u.dims[name]
		switch {
		case exp > 0:
			num = append(num, power(name, exp))
		case exp < 0:
			den = append(den, name+"^"+strconv.Itoa(exp))
		}
	}
	if len(num) == 0 {
		return strings.Join(den, "·")
	}
	out := strings.Join(num, "·")
	if len(den) > 0 {
		var flipped []string
		for _, name := range u.Dimensions() {
			if exp := u.dims[name]; exp < 0 {
				flipped = append(flipped, power(name, -exp))
			}
		}
		out += "/" + strings.Join(flipped, "·")
	}
	return out
}

func power(name string, exp int) string {
	if exp == 1 {
		return name
	}
	return name + "^" + strconv.Itoa(exp)
}

var superscripts = map[rune]rune{
	'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4',
	'⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9', '⁻': '-',
}

// IsDimensionRune reports whether r may appear in a dimension name.
func IsDimensionRune(r rune) bool {
	return unicode.IsLetter(r) || r == '%' || r == '°'
}

// IsUnitRune reports whether r may appear anywhere in a unit's text form.
func IsUnitRune(r rune) bool {
	if IsDimensionRune(r) {
		return true
	}
	if _, ok := superscripts[r]; ok {
		return true
	}
	switch r {
	case '^', '/', '·', '*', '-':
		return true
	}
	return unicode.IsDigit(r)
}

// Parse reads a unit such as "m", "m/s", "m·s^-1", "kg·m/s^2" or "s⁻¹".
// The empty string is the unitless unit.
func Parse(text string) (Unit, error) {
	var normalized strings.Builder
	inSuperscript := false
	for _, r := range text {
		if d, ok := superscripts[r]; ok {
			if !inSuperscript {
				normalized.WriteRune('^')
				inSuperscript = true
			}
			normalized.WriteRune(d)
			continue
		}
		inSuperscript = false
		normalized.WriteRune(r)
	}
	text = normalized.String()
	if text == "" {
		return Empty, nil
	}

	dims := map[string]int{}
	numerator, denominator, hasDen := strings.Cut(text, "/")
	if err := parseFactors(numerator, 1, dims); err != nil {
		return Empty, err
	}
	if hasDen {
		if err := parseFactors(denominator, -1, dims); err != nil {
			return Empty, err
		}
	}
	return New(dims), nil
}

func parseFactors(text string, sign int, dims map[string]int) error {
	factors := strings.FieldsFunc(text, func(r rune) bool {
		return r == '·' || r == '*'
	})
	if len(factors) == 0 {
		return fmt.Errorf("empty unit factor in %q", text)
	}
	for _, factor := range factors {
		name, exp, hasExp := strings.Cut(factor, "^")
		if name == "" {
			return fmt.Errorf("missing dimension name in %q", factor)
		}
		for _, r := range name {
			if !IsDimensionRune(r) {
				return fmt.Errorf("invalid dimension %q", name)
			}
		}
		n := 1
		if hasExp {
			parsed, err := strconv.Atoi(exp)
			if err != nil {
				return fmt.Errorf("invalid exponent %q: %w", exp, err)
			}
			n = parsed
		}
		dims[name] += sign * n
	}
	return nil
}

// MustParse is like Parse but panics on malformed units.
func MustParse(text string) Unit {
	u, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return u
}
