// Package variables holds the typed name/value bindings that templates are
// expanded against.
//
// Values are always stored string-encoded exactly as the author typed them.
// The declared Type only matters when a value is bound into a computed
// expression or iterated as a list.
package variables

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conneroisu/folio/internal/expr"
)

// Type is the declared type of a variable.
type Type string

const (
	TypeText    Type = "text"
	TypeNumber  Type = "number"
	TypeDate    Type = "date"
	TypeBoolean Type = "boolean"
	TypeList    Type = "list"
)

// ParseType converts a config or CLI string into a Type. The empty string is
// text.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeText, nil
	case TypeText, TypeNumber, TypeDate, TypeBoolean, TypeList:
		return t, nil
	case "bool":
		return TypeBoolean, nil
	default:
		return TypeText, fmt.Errorf("unknown variable type %q", s)
	}
}

// Variable is a named, typed value substituted into template text.
type Variable struct {
	Name        string `yaml:"name" json:"name"`
	Value       string `yaml:"value" json:"value"`
	Type        Type   `yaml:"type,omitempty" json:"type,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// EffectiveType returns the declared type, defaulting to text.
func (v Variable) EffectiveType() Type {
	if v.Type == "" {
		return TypeText
	}
	return v.Type
}

// Truthy reports whether a raw value keeps an if block: it must be non-empty
// and not the literal "false" or "0".
func Truthy(raw string) bool {
	return raw != "" && raw != "false" && raw != "0"
}

// Binding converts a variable into the typed value used by computed
// expressions. Numbers and booleans that fail to parse bind as their raw
// string.
func Binding(v Variable) expr.Value {
	switch v.EffectiveType() {
	case TypeNumber:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64); err == nil {
			return expr.Number(f)
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(v.Value)); err == nil {
			return expr.Bool(b)
		}
	}
	return expr.String(v.Value)
}

// ParseAssignment splits a "name=value" override. An optional type may be
// given as "name:type=value".
func ParseAssignment(s string) (Variable, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return Variable{}, fmt.Errorf("invalid assignment %q: expected name=value", s)
	}

	name = strings.TrimSpace(name)
	var typ Type
	if n, t, hasType := strings.Cut(name, ":"); hasType {
		parsed, err := ParseType(t)
		if err != nil {
			return Variable{}, fmt.Errorf("invalid assignment %q: %w", s, err)
		}
		name, typ = strings.TrimSpace(n), parsed
	}

	if !ValidName(name) {
		return Variable{}, fmt.Errorf("invalid assignment %q: bad variable name", s)
	}

	return Variable{Name: name, Value: value, Type: typ}, nil
}

// ValidName reports whether name can be referenced from a template tag.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c == '-', c == '.':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
