// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"
	"strings"
)

// Matchers are created by the dotted builtins generated code calls for
// patterns. A matcher binding a name always matches, so binding happens as
// soon as it is reached even if a later part of the pattern fails.

// boundMatch returns the __umatch__ method of m.
func boundMatch(m Matcher) Object {
	return &BuiltinFunction{
		Name: matchMethod,
		Value: func(c Call) (Object, error) {
			if err := c.CheckLen(1); err != nil {
				return nil, err
			}
			ok, err := m.Match(c.VM(), c.Get(0))
			if err != nil {
				return nil, err
			}
			return Bool(ok), nil
		},
	}
}

type matcherObject struct{}

func (matcherObject) TypeName() string { return "matcher" }
func (matcherObject) IsFalsy() bool    { return false }

// ValueMatcher matches values equal to Value.
type ValueMatcher struct {
	matcherObject
	Value Object
}

func (m *ValueMatcher) String() string { return fmt.Sprintf("<value %s>", Repr(m.Value)) }

// Equal implements Object interface.
func (m *ValueMatcher) Equal(right Object) bool { return Object(m) == right }

// Match implements Matcher interface.
func (m *ValueMatcher) Match(_ *VM, value Object) (bool, error) {
	return m.Value.Equal(value), nil
}

// CellMatcher binds the matched value to a cell if New is set, otherwise it
// matches values equal to the cell content.
type CellMatcher struct {
	matcherObject
	Cell *Cell
	New  bool
}

func (m *CellMatcher) String() string {
	if m.New {
		return "<new>"
	}
	return "<var>"
}

// Equal implements Object interface.
func (m *CellMatcher) Equal(right Object) bool { return Object(m) == right }

// Match implements Matcher interface.
func (m *CellMatcher) Match(_ *VM, value Object) (bool, error) {
	if m.New {
		m.Cell.Value = value
		return true, nil
	}
	if m.Cell.Value == nil {
		return false, ErrName.NewError("variable referenced before assignment")
	}
	return m.Cell.Value.Equal(value), nil
}

// GlobalMatcher is a CellMatcher for a name of a global namespace.
type GlobalMatcher struct {
	matcherObject
	Globals *Dict
	Name    string
	New     bool
}

func (m *GlobalMatcher) String() string {
	if m.New {
		return fmt.Sprintf("<gnew %s>", m.Name)
	}
	return fmt.Sprintf("<gvar %s>", m.Name)
}

// Equal implements Object interface.
func (m *GlobalMatcher) Equal(right Object) bool { return Object(m) == right }

// Match implements Matcher interface.
func (m *GlobalMatcher) Match(_ *VM, value Object) (bool, error) {
	if m.New {
		m.Globals.SetStr(m.Name, value)
		return true, nil
	}
	v, ok := m.Globals.GetStr(m.Name)
	if !ok {
		return false, ErrName.NewError(
			fmt.Sprintf("name '%s' is not defined", m.Name))
	}
	return v.Equal(value), nil
}

// AndMatcher matches values both Left and Right match.
type AndMatcher struct {
	matcherObject
	Left, Right Matcher
}

func (m *AndMatcher) String() string { return fmt.Sprintf("<and %s %s>", m.Left, m.Right) }

// Equal implements Object interface.
func (m *AndMatcher) Equal(right Object) bool { return Object(m) == right }

// Match implements Matcher interface.
func (m *AndMatcher) Match(vm *VM, value Object) (bool, error) {
	ok, err := m.Left.Match(vm, value)
	if err != nil || !ok {
		return false, err
	}
	return m.Right.Match(vm, value)
}

// RestMatcher matches the elements of a sequence, set or mapping that no
// other element of the enclosing pattern matched.
type RestMatcher struct {
	matcherObject
	Matcher Matcher
	Mapping bool
}

func (m *RestMatcher) String() string {
	if m.Mapping {
		return fmt.Sprintf("<**%s>", m.Matcher)
	}
	return fmt.Sprintf("<*%s>", m.Matcher)
}

// Equal implements Object interface.
func (m *RestMatcher) Equal(right Object) bool { return Object(m) == right }

// Match implements Matcher interface.
func (m *RestMatcher) Match(vm *VM, value Object) (bool, error) {
	return m.Matcher.Match(vm, value)
}

// SequenceMatcher matches tuples or lists element by element. At most one
// element may be a *RestMatcher which matches the remaining elements.
type SequenceMatcher struct {
	matcherObject
	List  bool
	Elems []Matcher
	rest  int
}

func newSequenceMatcher(list bool, elems []Matcher) (*SequenceMatcher, error) {
	m := &SequenceMatcher{List: list, Elems: elems, rest: -1}
	for i, e := range elems {
		if _, ok := e.(*RestMatcher); ok {
			if m.rest >= 0 {
				return nil, ErrType.NewError("multiple starred patterns")
			}
			m.rest = i
		}
	}
	return m, nil
}

func (m *SequenceMatcher) String() string {
	if m.List {
		return "<list " + joinMatchers(m.Elems) + ">"
	}
	return "<tuple " + joinMatchers(m.Elems) + ">"
}

// Equal implements Object interface.
func (m *SequenceMatcher) Equal(right Object) bool { return Object(m) == right }

// Match implements Matcher interface.
func (m *SequenceMatcher) Match(vm *VM, value Object) (bool, error) {
	var elems []Object
	switch v := value.(type) {
	case Tuple:
		if m.List {
			return false, nil
		}
		elems = v
	case List:
		if !m.List {
			return false, nil
		}
		elems = v
	default:
		return false, nil
	}

	if m.rest < 0 {
		if len(elems) != len(m.Elems) {
			return false, nil
		}
		return matchAll(vm, m.Elems, elems)
	}

	suffix := len(m.Elems) - m.rest - 1
	if len(elems) < m.rest+suffix {
		return false, nil
	}
	if ok, err := matchAll(vm, m.Elems[:m.rest], elems[:m.rest]); err != nil || !ok {
		return false, err
	}
	middle := elems[m.rest : len(elems)-suffix]
	var rest Object = append(Tuple{}, middle...)
	if m.List {
		rest = append(List{}, middle...)
	}
	if ok, err := m.Elems[m.rest].Match(vm, rest); err != nil || !ok {
		return false, err
	}
	return matchAll(vm, m.Elems[m.rest+1:], elems[len(elems)-suffix:])
}

func matchAll(vm *VM, matchers []Matcher, values []Object) (bool, error) {
	for i, mt := range matchers {
		ok, err := mt.Match(vm, values[i])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// SetMatcher matches sets. Each element matcher consumes the first unused
// member it matches. Unless there is a *RestMatcher, every member must be
// consumed.
type SetMatcher struct {
	matcherObject
	Elems []Matcher
	Rest  Matcher
}

func (m *SetMatcher) String() string { return "<set " + joinMatchers(m.Elems) + ">" }

// Equal implements Object interface.
func (m *SetMatcher) Equal(right Object) bool { return Object(m) == right }

// Match implements Matcher interface.
func (m *SetMatcher) Match(vm *VM, value Object) (bool, error) {
	s, ok := value.(*Set)
	if !ok {
		return false, nil
	}
	members := s.Elems()
	used := make([]bool, len(members))

	for _, mt := range m.Elems {
		found := false
		for i, v := range members {
			if used[i] {
				continue
			}
			ok, err := mt.Match(vm, v)
			if err != nil {
				return false, err
			}
			if ok {
				used[i], found = true, true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	var unused []Object
	for i, v := range members {
		if !used[i] {
			unused = append(unused, v)
		}
	}
	if m.Rest == nil {
		return len(unused) == 0, nil
	}
	rest, err := NewSet(unused...)
	if err != nil {
		return false, err
	}
	return m.Rest.Match(vm, rest)
}

type dictField struct {
	key     Object
	matcher Matcher
	def     Object
}

// DictMatcher matches dicts having the keys of its fields. A missing key
// matches the default of its field if any. Keys no field names are ignored
// unless there is a *RestMatcher which matches a dict of them.
type DictMatcher struct {
	matcherObject
	fields []dictField
	Rest   Matcher
}

func (m *DictMatcher) String() string {
	parts := make([]string, 0, len(m.fields)+1)
	for _, f := range m.fields {
		parts = append(parts, fmt.Sprintf("%s: %s", Repr(f.key), f.matcher))
	}
	if m.Rest != nil {
		parts = append(parts, m.Rest.String())
	}
	return "<dict " + strings.Join(parts, ", ") + ">"
}

// Equal implements Object interface.
func (m *DictMatcher) Equal(right Object) bool { return Object(m) == right }

// Match implements Matcher interface.
func (m *DictMatcher) Match(vm *VM, value Object) (bool, error) {
	d, ok := value.(*Dict)
	if !ok {
		return false, nil
	}

	var seen map[HashKey]bool
	if m.Rest != nil {
		seen = make(map[HashKey]bool, len(m.fields))
	}
	for _, f := range m.fields {
		v, ok := d.Get(f.key)
		if !ok {
			if f.def == nil {
				return false, nil
			}
			v = f.def
		} else if seen != nil {
			k, err := ToHashKey(f.key)
			if err != nil {
				return false, err
			}
			seen[k] = true
		}
		if ok, err := f.matcher.Match(vm, v); err != nil || !ok {
			return false, err
		}
	}

	if m.Rest == nil {
		return true, nil
	}
	rest := NewDict()
	keys, values := d.Keys(), d.Values()
	for i, k := range keys {
		hk, err := ToHashKey(k)
		if err != nil {
			return false, err
		}
		if !seen[hk] {
			if err := rest.Set(k, values[i]); err != nil {
				return false, err
			}
		}
	}
	return m.Rest.Match(vm, rest)
}

// CallMatcher matches values its Func destructures into parts Args and
// Kwargs match.
type CallMatcher struct {
	matcherObject
	Func   Extractor
	Args   Matcher
	Kwargs Matcher
}

func (m *CallMatcher) String() string {
	return fmt.Sprintf("<call %s %s %s>", m.Func, m.Args, m.Kwargs)
}

// Equal implements Object interface.
func (m *CallMatcher) Equal(right Object) bool { return Object(m) == right }

// Match implements Matcher interface.
func (m *CallMatcher) Match(vm *VM, value Object) (bool, error) {
	args, kwargs, ok := m.Func.Extract(value)
	if !ok {
		return false, nil
	}
	if ok, err := m.Args.Match(vm, args); err != nil || !ok {
		return false, err
	}
	return m.Kwargs.Match(vm, kwargs)
}

func joinMatchers(list []Matcher) string {
	parts := make([]string, len(list))
	for i, m := range list {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

func toMatcher(v Object) (Matcher, error) {
	m, ok := v.(Matcher)
	if !ok {
		return nil, NewArgumentTypeError("1", "matcher", v.TypeName())
	}
	return m, nil
}

func toMatchers(args []Object) ([]Matcher, error) {
	list := make([]Matcher, len(args))
	for i, a := range args {
		m, ok := a.(Matcher)
		if !ok {
			return nil, NewArgumentTypeError(
				fmt.Sprint(i+1), "matcher", a.TypeName())
		}
		list[i] = m
	}
	return list, nil
}

func builtinValueFunc(c Call) (Object, error) {
	if err := c.CheckLen(1); err != nil {
		return nil, err
	}
	return &ValueMatcher{Value: c.Get(0)}, nil
}

func cellMatcherFunc(isNew bool) func(Call) (Object, error) {
	return func(c Call) (Object, error) {
		if err := c.CheckLen(1); err != nil {
			return nil, err
		}
		cell, ok := c.Get(0).(*Cell)
		if !ok {
			return nil, NewArgumentTypeError("1", "cell", c.Get(0).TypeName())
		}
		return &CellMatcher{Cell: cell, New: isNew}, nil
	}
}

func globalMatcherFunc(isNew bool) func(Call) (Object, error) {
	return func(c Call) (Object, error) {
		if err := c.CheckLen(2); err != nil {
			return nil, err
		}
		globals, ok := c.Get(0).(*Dict)
		if !ok {
			return nil, NewArgumentTypeError("1", "dict", c.Get(0).TypeName())
		}
		name, ok := c.Get(1).(String)
		if !ok {
			return nil, NewArgumentTypeError("2", "str", c.Get(1).TypeName())
		}
		return &GlobalMatcher{Globals: globals, Name: string(name), New: isNew}, nil
	}
}

func builtinGlobalsFunc(c Call) (Object, error) {
	if err := c.CheckLen(0); err != nil {
		return nil, err
	}
	if g := c.VM().Globals(); g != nil {
		return g, nil
	}
	return NewDict(), nil
}

func builtinAndFunc(c Call) (Object, error) {
	if err := c.CheckLen(2); err != nil {
		return nil, err
	}
	list, err := toMatchers(c.Args())
	if err != nil {
		return nil, err
	}
	return &AndMatcher{Left: list[0], Right: list[1]}, nil
}

func builtinRestFunc(c Call) (Object, error) {
	if err := c.CheckLen(2); err != nil {
		return nil, err
	}
	m, err := toMatcher(c.Get(0))
	if err != nil {
		return nil, err
	}
	return &RestMatcher{Matcher: m, Mapping: !c.Get(1).IsFalsy()}, nil
}

func sequenceMatcherFunc(list bool) func(Call) (Object, error) {
	return func(c Call) (Object, error) {
		elems, err := toMatchers(c.Args())
		if err != nil {
			return nil, err
		}
		return newSequenceMatcher(list, elems)
	}
}

func builtinSetMatchFunc(c Call) (Object, error) {
	elems, err := toMatchers(c.Args())
	if err != nil {
		return nil, err
	}
	m := &SetMatcher{}
	for _, e := range elems {
		if r, ok := e.(*RestMatcher); ok {
			if m.Rest != nil {
				return nil, ErrType.NewError("multiple starred patterns")
			}
			m.Rest = r.Matcher
			continue
		}
		m.Elems = append(m.Elems, e)
	}
	return m, nil
}

func builtinDictMatchFunc(c Call) (Object, error) {
	m := &DictMatcher{}
	for i, a := range c.Args() {
		if r, ok := a.(*RestMatcher); ok {
			if m.Rest != nil {
				return nil, ErrType.NewError("multiple double starred patterns")
			}
			m.Rest = r.Matcher
			continue
		}
		t, ok := a.(Tuple)
		if !ok || len(t) < 2 || len(t) > 3 {
			return nil, NewArgumentTypeError(fmt.Sprint(i+1), "field", a.TypeName())
		}
		mt, err := toMatcher(t[1])
		if err != nil {
			return nil, err
		}
		f := dictField{key: t[0], matcher: mt}
		if len(t) == 3 {
			f.def = t[2]
		}
		m.fields = append(m.fields, f)
	}
	return m, nil
}

func builtinCallMatchFunc(c Call) (Object, error) {
	if err := c.CheckLen(3); err != nil {
		return nil, err
	}
	fn, ok := c.Get(0).(Extractor)
	if !ok {
		return nil, ErrType.NewError(fmt.Sprintf(
			"'%s' object cannot be used in a call pattern", c.Get(0).TypeName()))
	}
	list, err := toMatchers(c.Args()[1:])
	if err != nil {
		return nil, err
	}
	return &CallMatcher{Func: fn, Args: list[0], Kwargs: list[1]}, nil
}
