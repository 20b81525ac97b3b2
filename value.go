package outkit

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Value is either a scalar or an ordered tuple of values, mirroring the device tree.
type Value struct {
	scalar float64
	items  []Value
	tuple  bool
}

func Scalar(v float64) Value {
	return Value{scalar: v}
}

func Bool(b bool) Value {
	if b {
		return Value{scalar: 1}
	}
	return Value{}
}

func Tuple(items ...Value) Value {
	return Value{items: items, tuple: true}
}

// Flat builds a tuple of scalars.
func Flat(values ...float64) Value {
	items := make([]Value, len(values))
	for i, v := range values {
		items[i] = Scalar(v)
	}
	return Tuple(items...)
}

func (v Value) IsTuple() bool {
	return v.tuple
}

// Float returns the scalar, zero for a tuple.
func (v Value) Float() float64 {
	return v.scalar
}

func (v Value) Items() []Value {
	return v.items
}

func (v Value) Len() int {
	return len(v.items)
}

// IsActive reports a non zero scalar or any active item.
func (v Value) IsActive() bool {
	if !v.tuple {
		return v.scalar != 0
	}
	for _, item := range v.items {
		if item.IsActive() {
			return true
		}
	}
	return false
}

func (v Value) Equal(other Value) bool {
	if v.tuple != other.tuple {
		return false
	}
	if !v.tuple {
		return v.scalar == other.scalar
	}
	if len(v.items) != len(other.items) {
		return false
	}
	for i := range v.items {
		if !v.items[i].Equal(other.items[i]) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	if !v.tuple {
		return strconv.FormatFloat(v.scalar, 'g', -1, 64)
	}
	parts := make([]string, len(v.items))
	for i, item := range v.items {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ParseValue reads the String form back, e.g. "0.5" or "(1, (0, 1))".
func ParseValue(text string) (Value, error) {
	p := &valueParser{text: text}
	value, err := p.parse()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.text) {
		return Value{}, configErrorf("unexpected %q at %d in value %q", p.text[p.pos:], p.pos, text)
	}
	return value, nil
}

type valueParser struct {
	text string
	pos  int
}

func (p *valueParser) skipSpace() {
	for p.pos < len(p.text) && p.text[p.pos] == ' ' {
		p.pos++
	}
}

func (p *valueParser) parse() (Value, error) {
	p.skipSpace()
	if p.pos >= len(p.text) {
		return Value{}, configErrorf("unexpected end of value %q", p.text)
	}
	if p.text[p.pos] != '(' {
		end := p.pos
		for end < len(p.text) && !strings.ContainsRune(",() ", rune(p.text[end])) {
			end++
		}
		number, err := strconv.ParseFloat(p.text[p.pos:end], 64)
		if err != nil {
			return Value{}, errors.Wrapf(ErrConfiguration, "bad number in value %q: %v", p.text, err)
		}
		if math.IsNaN(number) || math.IsInf(number, 0) {
			return Value{}, configErrorf("value %q is not a finite number", p.text)
		}
		p.pos = end
		return Scalar(number), nil
	}

	p.pos++
	var items []Value
	for {
		p.skipSpace()
		if p.pos < len(p.text) && p.text[p.pos] == ')' && len(items) == 0 {
			p.pos++
			return Tuple(), nil
		}
		item, err := p.parse()
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
		p.skipSpace()
		if p.pos >= len(p.text) {
			return Value{}, configErrorf("unclosed tuple in value %q", p.text)
		}
		switch p.text[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return Tuple(items...), nil
		default:
			return Value{}, configErrorf("unexpected %q in value %q", p.text[p.pos], p.text)
		}
	}
}
