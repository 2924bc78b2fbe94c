// Package expr evaluates the small arithmetic language used by computed
// template expressions.
//
// Expressions are parsed by a recursive-descent parser over + - * / and
// parentheses, numeric literals and identifiers bound in a fixed table. No
// code is ever constructed from the input text.
package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies the dynamic type of a Value.
type ValueKind int

const (
	KindNumber ValueKind = iota
	KindBool
	KindString
)

// Value is a typed binding or intermediate result.
type Value struct {
	Kind ValueKind
	Num  float64
	Bool bool
	Str  string
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// String returns a string Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Format renders the value the way expression results are substituted.
func (v Value) Format() string {
	switch v.Kind {
	case KindNumber:
		return formatNumber(v.Num)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

func (v Value) number() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// EvalError is returned for any parse or evaluation failure.
type EvalError struct {
	Pos int
	Msg string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("expression error at %d: %s", e.Pos, e.Msg)
}

// Sanitize strips every character outside [A-Za-z0-9_+\-*/() ]. The decimal
// point is not in the set: "2.5" comes out as "25". Fractional constants
// have to be bound as number variables.
func Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '_', c == '+', c == '-', c == '*', c == '/', c == '(', c == ')', c == ' ':
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Evaluate parses expr and evaluates it against bindings, returning the
// stringified result.
func Evaluate(expr string, bindings map[string]Value) (string, error) {
	v, err := EvaluateValue(expr, bindings)
	if err != nil {
		return "", err
	}
	return v.Format(), nil
}

// EvaluateValue is Evaluate without the final stringification.
func EvaluateValue(expr string, bindings map[string]Value) (Value, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return Value{}, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseExpression()
	if err != nil {
		return Value{}, err
	}
	if tok := p.current(); tok.kind != tokEOF {
		return Value{}, &EvalError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q", tok.text)}
	}
	return node.eval(bindings)
}
