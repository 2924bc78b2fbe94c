package variables

import "github.com/conneroisu/folio/internal/expr"

// Set is an ordered collection of variables, unique by name.
//
// A Set is not safe for concurrent use; the pipeline session serializes
// access to it.
type Set struct {
	vars  []Variable
	index map[string]int
}

// NewSet returns a set holding vars. Later duplicates replace earlier ones
// but keep the earlier position.
func NewSet(vars ...Variable) *Set {
	s := &Set{index: make(map[string]int, len(vars))}
	for _, v := range vars {
		s.Put(v)
	}
	return s
}

// Len returns the number of variables.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.vars)
}

// Get returns the named variable.
func (s *Set) Get(name string) (Variable, bool) {
	if s == nil {
		return Variable{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Variable{}, false
	}
	return s.vars[i], true
}

// Has reports whether name is declared.
func (s *Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Put adds v or mutates the existing variable of the same name in place. An
// empty Type on an update keeps the declared type.
func (s *Set) Put(v Variable) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[v.Name]; ok {
		if v.Type == "" {
			v.Type = s.vars[i].Type
		}
		if v.Description == "" {
			v.Description = s.vars[i].Description
		}
		s.vars[i] = v
		return
	}
	s.index[v.Name] = len(s.vars)
	s.vars = append(s.vars, v)
}

// Set updates only the value of name, declaring it as text if absent.
func (s *Set) Set(name, value string) {
	s.Put(Variable{Name: name, Value: value})
}

// Remove deletes the named variable. It reports whether it existed.
func (s *Set) Remove(name string) bool {
	i, ok := s.index[name]
	if !ok {
		return false
	}
	s.vars = append(s.vars[:i], s.vars[i+1:]...)
	delete(s.index, name)
	for j := i; j < len(s.vars); j++ {
		s.index[s.vars[j].Name] = j
	}
	return true
}

// Replace swaps the whole set for vars, as a template reload does.
func (s *Set) Replace(vars []Variable) {
	s.vars = nil
	s.index = make(map[string]int, len(vars))
	for _, v := range vars {
		s.Put(v)
	}
}

// All returns a copy of the variables in declaration order.
func (s *Set) All() []Variable {
	if s == nil {
		return nil
	}
	out := make([]Variable, len(s.vars))
	copy(out, s.vars)
	return out
}

// Names returns variable names in declaration order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.vars))
	for i, v := range s.vars {
		names[i] = v.Name
	}
	return names
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	return NewSet(s.All()...)
}

// Bindings returns the typed expression table for every variable.
func (s *Set) Bindings() map[string]expr.Value {
	out := make(map[string]expr.Value, s.Len())
	for _, v := range s.All() {
		out[v.Name] = Binding(v)
	}
	return out
}
