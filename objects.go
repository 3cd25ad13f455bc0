// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

)

// Call is a struct to pass arguments to Call methods.
type Call struct {
	vm     *VM
	args   []Object
	kwargs *Dict
}

// NewCall creates a new Call struct with the given arguments. kwargs may be
// nil.
func NewCall(vm *VM, args []Object, kwargs *Dict) Call {
	return Call{vm: vm, args: args, kwargs: kwargs}
}

// VM returns the VM of the call.
func (c *Call) VM() *VM {
	return c.vm
}

// Get returns the nth positional argument.
func (c *Call) Get(n int) Object {
	return c.args[n]
}

// Len returns the number of positional arguments.
func (c *Call) Len() int {
	return len(c.args)
}

// Args returns positional arguments.
func (c *Call) Args() Tuple {
	return Tuple(c.args)
}

// Kwargs returns keyword arguments. It never returns nil.
func (c *Call) Kwargs() *Dict {
	if c.kwargs == nil {
		return NewDict()
	}
	return c.kwargs
}

// Kwarg returns the keyword argument called name.
func (c *Call) Kwarg(name string) (Object, bool) {
	if c.kwargs == nil {
		return nil, false
	}
	return c.kwargs.GetStr(name)
}

// CheckLen checks the number of positional arguments.
func (c *Call) CheckLen(n int) error {
	if n != len(c.args) {
		return ErrWrongNumArguments.NewError(
			fmt.Sprintf("want=%d got=%d", n, len(c.args)),
		)
	}
	return nil
}

// CheckRangeLen checks the number of positional arguments is in range.
func (c *Call) CheckRangeLen(min, max int) error {
	if len(c.args) < min || len(c.args) > max {
		return ErrWrongNumArguments.NewError(
			fmt.Sprintf("want=%d..%d got=%d", min, max, len(c.args)),
		)
	}
	return nil
}

// CheckKwargs returns an error if a keyword argument not in names is given.
func (c *Call) CheckKwargs(names ...string) error {
	if c.kwargs == nil {
		return nil
	}
	for _, k := range c.kwargs.Keys() {
		s, ok := k.(String)
		if !ok {
			return ErrType.NewError("keywords must be strings")
		}
		found := false
		for _, n := range names {
			if n == string(s) {
				found = true
				break
			}
		}
		if !found {
			return ErrType.NewError(
				fmt.Sprintf("unexpected keyword argument '%s'", s))
		}
	}
	return nil
}

// NoneType represents the type of None.
type NoneType struct{}

// TypeName implements Object interface.
func (NoneType) TypeName() string { return "NoneType" }

// String implements Object interface.
func (NoneType) String() string { return "None" }

// IsFalsy implements Object interface.
func (NoneType) IsFalsy() bool { return true }

// Equal implements Object interface.
func (NoneType) Equal(right Object) bool {
	_, ok := right.(NoneType)
	return ok
}

// HashKey implements Hashable interface.
func (NoneType) HashKey() HashKey { return "n" }

// Bool represents boolean values and implements Object interface.
type Bool bool

// TypeName implements Object interface.
func (Bool) TypeName() string { return "bool" }

// String implements Object interface.
func (o Bool) String() string {
	if o {
		return "True"
	}
	return "False"
}

// IsFalsy implements Object interface.
func (o Bool) IsFalsy() bool { return bool(!o) }

// Equal implements Object interface.
func (o Bool) Equal(right Object) bool {
	v, ok := right.(Bool)
	return ok && v == o
}

// HashKey implements Hashable interface.
func (o Bool) HashKey() HashKey {
	if o {
		return "b1"
	}
	return "b0"
}

// Format implements fmt.Formatter interface.
func (o Bool) Format(s fmt.State, verb rune) {
	formatScalar(s, verb, o, bool(o))
}

// Int represents signed integer values and implements Object interface.
type Int int64

// TypeName implements Object interface.
func (Int) TypeName() string { return "int" }

// String implements Object interface.
func (o Int) String() string { return strconv.FormatInt(int64(o), 10) }

// IsFalsy implements Object interface.
func (o Int) IsFalsy() bool { return o == 0 }

// Equal implements Object interface.
func (o Int) Equal(right Object) bool {
	switch v := right.(type) {
	case Int:
		return o == v
	case Float:
		return float64(o) == float64(v)
	}
	return false
}

// HashKey implements Hashable interface.
func (o Int) HashKey() HashKey { return HashKey("i" + o.String()) }

// Format implements fmt.Formatter interface.
func (o Int) Format(s fmt.State, verb rune) {
	formatScalar(s, verb, o, int64(o))
}

// Float represents float values and implements Object interface.
type Float float64

// TypeName implements Object interface.
func (Float) TypeName() string { return "float" }

// String implements Object interface.
func (o Float) String() string {
	s := strconv.FormatFloat(float64(o), 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

// IsFalsy implements Object interface.
func (o Float) IsFalsy() bool { return o == 0 }

// Equal implements Object interface.
func (o Float) Equal(right Object) bool {
	switch v := right.(type) {
	case Float:
		return o == v
	case Int:
		return float64(o) == float64(v)
	}
	return false
}

// HashKey implements Hashable interface. Integral floats share keys with
// equal ints.
func (o Float) HashKey() HashKey {
	f := float64(o)
	if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
		return Int(int64(f)).HashKey()
	}
	return HashKey("f" + strconv.FormatFloat(f, 'g', -1, 64))
}

// Format implements fmt.Formatter interface.
func (o Float) Format(s fmt.State, verb rune) {
	formatScalar(s, verb, o, float64(o))
}

// formatScalar writes the ulan form of o for %v and %s, and lets fmt handle
// the remaining verbs with the underlying Go value.
func formatScalar(s fmt.State, verb rune, o Object, v interface{}) {
	if verb == 'v' || verb == 's' {
		_, _ = fmt.Fprintf(s, fmt.FormatString(s, 's'), o.String())
		return
	}
	_, _ = fmt.Fprintf(s, fmt.FormatString(s, verb), v)
}

// String represents string values and implements Object interface.
type String string

// TypeName implements Object interface.
func (String) TypeName() string { return "str" }

// String implements Object interface.
func (o String) String() string { return string(o) }

// IsFalsy implements Object interface.
func (o String) IsFalsy() bool { return len(o) == 0 }

// Equal implements Object interface.
func (o String) Equal(right Object) bool {
	v, ok := right.(String)
	return ok && v == o
}

// HashKey implements Hashable interface.
func (o String) HashKey() HashKey { return HashKey("s" + string(o)) }

// Len implements LengthGetter interface.
func (o String) Len() int { return utf8.RuneCountInString(string(o)) }

// Elems implements Iterable interface.
func (o String) Elems() []Object {
	out := make([]Object, 0, len(o))
	for _, r := range string(o) {
		out = append(out, String(r))
	}
	return out
}

// IndexGet implements IndexGetter interface.
func (o String) IndexGet(index Object) (Object, error) {
	runes := []rune(string(o))
	i, err := sequenceIndex(index, len(runes))
	if err != nil {
		return nil, err
	}
	return String(runes[i]), nil
}

// Tuple represents an immutable sequence of objects.
type Tuple []Object

// TypeName implements Object interface.
func (Tuple) TypeName() string { return "tuple" }

// String implements Object interface.
func (o Tuple) String() string {
	if len(o) == 1 {
		return "(" + Repr(o[0]) + ",)"
	}
	return "(" + joinRepr(o) + ")"
}

// IsFalsy implements Object interface.
func (o Tuple) IsFalsy() bool { return len(o) == 0 }

// Equal implements Object interface.
func (o Tuple) Equal(right Object) bool {
	v, ok := right.(Tuple)
	return ok && equalElems(o, v)
}

// Len implements LengthGetter interface.
func (o Tuple) Len() int { return len(o) }

// Elems implements Iterable interface.
func (o Tuple) Elems() []Object { return o }

// IndexGet implements IndexGetter interface.
func (o Tuple) IndexGet(index Object) (Object, error) {
	i, err := sequenceIndex(index, len(o))
	if err != nil {
		return nil, err
	}
	return o[i], nil
}

// List represents a list of objects.
type List []Object

// TypeName implements Object interface.
func (List) TypeName() string { return "list" }

// String implements Object interface.
func (o List) String() string { return "[" + joinRepr(o) + "]" }

// IsFalsy implements Object interface.
func (o List) IsFalsy() bool { return len(o) == 0 }

// Equal implements Object interface.
func (o List) Equal(right Object) bool {
	v, ok := right.(List)
	return ok && equalElems(o, v)
}

// Len implements LengthGetter interface.
func (o List) Len() int { return len(o) }

// Elems implements Iterable interface.
func (o List) Elems() []Object { return o }

// Copy implements Copier interface.
func (o List) Copy() Object {
	return append(List{}, o...)
}

// IndexGet implements IndexGetter interface.
func (o List) IndexGet(index Object) (Object, error) {
	i, err := sequenceIndex(index, len(o))
	if err != nil {
		return nil, err
	}
	return o[i], nil
}

// Set represents an insertion ordered set of hashable objects.
type Set struct {
	keys  []HashKey
	items map[HashKey]Object
}

// NewSet creates a Set from the given objects.
func NewSet(elems ...Object) (*Set, error) {
	s := &Set{items: make(map[HashKey]Object, len(elems))}
	for _, e := range elems {
		if err := s.Add(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add adds o to the set.
func (o *Set) Add(v Object) error {
	k, err := ToHashKey(v)
	if err != nil {
		return err
	}
	if _, ok := o.items[k]; !ok {
		o.keys = append(o.keys, k)
		o.items[k] = v
	}
	return nil
}

// Contains reports whether v is in the set.
func (o *Set) Contains(v Object) bool {
	k, err := ToHashKey(v)
	if err != nil {
		return false
	}
	_, ok := o.items[k]
	return ok
}

// TypeName implements Object interface.
func (*Set) TypeName() string { return "set" }

// String implements Object interface.
func (o *Set) String() string {
	if len(o.keys) == 0 {
		return "{/}"
	}
	return "{" + joinRepr(o.Elems()) + "}"
}

// IsFalsy implements Object interface.
func (o *Set) IsFalsy() bool { return len(o.keys) == 0 }

// Equal implements Object interface.
func (o *Set) Equal(right Object) bool {
	v, ok := right.(*Set)
	if !ok || len(v.keys) != len(o.keys) {
		return false
	}
	for _, k := range o.keys {
		if _, ok := v.items[k]; !ok {
			return false
		}
	}
	return true
}

// Len implements LengthGetter interface.
func (o *Set) Len() int { return len(o.keys) }

// Elems implements Iterable interface.
func (o *Set) Elems() []Object {
	out := make([]Object, len(o.keys))
	for i, k := range o.keys {
		out[i] = o.items[k]
	}
	return out
}

// Dict represents an insertion ordered mapping of hashable keys to values.
type Dict struct {
	keys   []Object
	values []Object
	index  map[HashKey]int
}

// NewDict creates an empty Dict.
func NewDict() *Dict {
	return &Dict{index: make(map[HashKey]int)}
}

// TypeName implements Object interface.
func (*Dict) TypeName() string { return "dict" }

// String implements Object interface.
func (o *Dict) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i := range o.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Repr(o.keys[i]))
		sb.WriteString(": ")
		sb.WriteString(Repr(o.values[i]))
	}
	sb.WriteByte('}')
	return sb.String()
}

// IsFalsy implements Object interface.
func (o *Dict) IsFalsy() bool { return len(o.keys) == 0 }

// Equal implements Object interface.
func (o *Dict) Equal(right Object) bool {
	v, ok := right.(*Dict)
	if !ok || v.Len() != o.Len() {
		return false
	}
	for i, k := range o.keys {
		rv, ok := v.Get(k)
		if !ok || !o.values[i].Equal(rv) {
			return false
		}
	}
	return true
}

// Len implements LengthGetter interface.
func (o *Dict) Len() int { return len(o.keys) }

// Elems implements Iterable interface. It returns the keys.
func (o *Dict) Elems() []Object { return o.Keys() }

// Keys returns the keys in insertion order.
func (o *Dict) Keys() []Object {
	return append([]Object(nil), o.keys...)
}

// Values returns the values in insertion order.
func (o *Dict) Values() []Object {
	return append([]Object(nil), o.values...)
}

// Get returns the value under key.
func (o *Dict) Get(key Object) (Object, bool) {
	k, err := ToHashKey(key)
	if err != nil {
		return nil, false
	}
	i, ok := o.index[k]
	if !ok {
		return nil, false
	}
	return o.values[i], true
}

// GetStr returns the value under a string key.
func (o *Dict) GetStr(key string) (Object, bool) {
	i, ok := o.index[String(key).HashKey()]
	if !ok {
		return nil, false
	}
	return o.values[i], true
}

// Set sets the value under key. The key must be hashable.
func (o *Dict) Set(key, value Object) error {
	k, err := ToHashKey(key)
	if err != nil {
		return err
	}
	if i, ok := o.index[k]; ok {
		o.values[i] = value
		return nil
	}
	o.index[k] = len(o.keys)
	o.keys = append(o.keys, key)
	o.values = append(o.values, value)
	return nil
}

// SetStr sets the value under a string key.
func (o *Dict) SetStr(key string, value Object) {
	_ = o.Set(String(key), value)
}

// Update copies the items of other into o.
func (o *Dict) Update(other *Dict) {
	for i, k := range other.keys {
		_ = o.Set(k, other.values[i])
	}
}

// Copy implements Copier interface.
func (o *Dict) Copy() Object {
	cp := NewDict()
	cp.Update(o)
	return cp
}

// IndexGet implements IndexGetter interface.
func (o *Dict) IndexGet(index Object) (Object, error) {
	if _, err := ToHashKey(index); err != nil {
		return nil, err
	}
	v, ok := o.Get(index)
	if !ok {
		return nil, ErrKey.NewError(Repr(index))
	}
	return v, nil
}

// Cell holds a variable captured by a closure or bound by a pattern. A nil
// Value means the variable is not bound yet.
type Cell struct {
	Value Object
}

// TypeName implements Object interface.
func (*Cell) TypeName() string { return "cell" }

// String implements Object interface.
func (o *Cell) String() string {
	if o.Value == nil {
		return "<cell: empty>"
	}
	return fmt.Sprintf("<cell: %s>", Repr(o.Value))
}

// IsFalsy implements Object interface.
func (*Cell) IsFalsy() bool { return false }

// Equal implements Object interface.
func (o *Cell) Equal(right Object) bool {
	v, ok := right.(*Cell)
	return ok && v == o
}

// CompiledFunction is a function created by MAKE_FUNCTION from a Code
// object.
type CompiledFunction struct {
	Name       string
	Code       *Code
	Globals    *Dict
	Defaults   Tuple
	KwDefaults *Dict
	Closure    []*Cell
}

var _ Callable = (*CompiledFunction)(nil)

// TypeName implements Object interface.
func (*CompiledFunction) TypeName() string { return "function" }

// String implements Object interface.
func (o *CompiledFunction) String() string {
	return fmt.Sprintf("<function %s>", o.Name)
}

// IsFalsy implements Object interface.
func (*CompiledFunction) IsFalsy() bool { return false }

// Equal implements Object interface.
func (o *CompiledFunction) Equal(right Object) bool {
	v, ok := right.(*CompiledFunction)
	return ok && v == o
}

// Call implements Callable interface.
func (o *CompiledFunction) Call(c Call) (Object, error) {
	if c.vm == nil {
		return nil, ErrType.NewError("function called without a VM")
	}
	return c.vm.callFunction(o, c.args, c.kwargs)
}

// Function represents a Go function that can be called from the VM.
type Function struct {
	Name  string
	Value CallableFunc
}

var _ Callable = (*Function)(nil)

// TypeName implements Object interface.
func (*Function) TypeName() string { return "function" }

// String implements Object interface.
func (o *Function) String() string {
	return fmt.Sprintf("<function %s>", o.Name)
}

// IsFalsy implements Object interface.
func (*Function) IsFalsy() bool { return false }

// Equal implements Object interface.
func (o *Function) Equal(right Object) bool {
	v, ok := right.(*Function)
	return ok && v == o
}

// Call implements Callable interface.
func (o *Function) Call(c Call) (Object, error) {
	return o.Value(c)
}

// BuiltinFunction represents a builtin function object and implements Object interface.
type BuiltinFunction struct {
	Name  string
	Value CallableFunc
}

var _ Callable = (*BuiltinFunction)(nil)

// TypeName implements Object interface.
func (*BuiltinFunction) TypeName() string { return "builtin_function" }

// String implements Object interface.
func (o *BuiltinFunction) String() string {
	return fmt.Sprintf("<built-in function %s>", o.Name)
}

// IsFalsy implements Object interface.
func (*BuiltinFunction) IsFalsy() bool { return false }

// Equal implements Object interface.
func (o *BuiltinFunction) Equal(right Object) bool {
	v, ok := right.(*BuiltinFunction)
	return ok && v == o
}

// Call implements Callable interface.
func (o *BuiltinFunction) Call(c Call) (Object, error) {
	return o.Value(c)
}

// Module represents an imported module. Attrs of a source module is its
// global namespace.
type Module struct {
	Name  string
	Attrs *Dict
}

var _ AttrGetter = (*Module)(nil)

// TypeName implements Object interface.
func (*Module) TypeName() string { return "module" }

// String implements Object interface.
func (o *Module) String() string {
	return fmt.Sprintf("<module '%s'>", o.Name)
}

// IsFalsy implements Object interface.
func (*Module) IsFalsy() bool { return false }

// Equal implements Object interface.
func (o *Module) Equal(right Object) bool {
	v, ok := right.(*Module)
	return ok && v == o
}

// GetAttr implements AttrGetter interface.
func (o *Module) GetAttr(name string) (Object, error) {
	if v, ok := o.Attrs.GetStr(name); ok {
		return v, nil
	}
	return nil, ErrAttribute.NewError(
		fmt.Sprintf("module '%s' has no attribute '%s'", o.Name, name))
}

// Type is a builtin type. Calling it converts its argument, using it as the
// function of a call pattern destructures values of the type.
type Type struct {
	Name  string
	New   func(Call) (Object, error)
	Check func(Object) bool
	// Destructure returns the parts of a checked value. If nil the value
	// itself is the only positional part.
	Destructure func(Object) (Tuple, *Dict)
}

var (
	_ Callable  = (*Type)(nil)
	_ Extractor = (*Type)(nil)
)

// TypeName implements Object interface.
func (*Type) TypeName() string { return "type" }

// String implements Object interface.
func (o *Type) String() string {
	return fmt.Sprintf("<class '%s'>", o.Name)
}

// IsFalsy implements Object interface.
func (*Type) IsFalsy() bool { return false }

// Equal implements Object interface.
func (o *Type) Equal(right Object) bool {
	v, ok := right.(*Type)
	return ok && v == o
}

// Call implements Callable interface.
func (o *Type) Call(c Call) (Object, error) {
	return o.New(c)
}

// Extract implements Extractor interface.
func (o *Type) Extract(value Object) (Tuple, *Dict, bool) {
	if !o.Check(value) {
		return nil, nil, false
	}
	if o.Destructure == nil {
		return Tuple{value}, NewDict(), true
	}
	args, kwargs := o.Destructure(value)
	if kwargs == nil {
		kwargs = NewDict()
	}
	return args, kwargs, true
}

// Error represents an exception. Value holds the object it was raised
// with, if any.
type Error struct {
	Name    string
	Message string
	Value   Object
	Cause   error
}

var (
	_ Object     = (*Error)(nil)
	_ AttrGetter = (*Error)(nil)
)

// Unwrap returns the cause of the error.
func (o *Error) Unwrap() error {
	return o.Cause
}

// TypeName implements Object interface.
func (*Error) TypeName() string {
	return "error"
}

// String implements Object interface.
func (o *Error) String() string {
	return o.Error()
}

// Error implements error interface.
func (o *Error) Error() string {
	name := o.Name
	if name == "" {
		name = "error"
	}
	if o.Message == "" {
		return name
	}
	return fmt.Sprintf("%s: %s", name, o.Message)
}

// Equal implements Object interface.
func (o *Error) Equal(right Object) bool {
	v, ok := right.(*Error)
	return ok && v == o
}

// IsFalsy implements Object interface.
func (*Error) IsFalsy() bool { return true }

// GetAttr implements AttrGetter interface.
func (o *Error) GetAttr(name string) (Object, error) {
	switch name {
	case "name":
		return String(o.Name), nil
	case "message":
		return String(o.Message), nil
	case "value":
		if o.Value == nil {
			return None, nil
		}
		return o.Value, nil
	}
	return nil, ErrAttribute.NewError(
		fmt.Sprintf("'%s' object has no attribute '%s'", o.Name, name))
}

// NewError creates a new Error and sets original Error as its cause which
// can be unwrapped.
func (o *Error) NewError(messages ...string) *Error {
	return &Error{
		Name:    o.Name,
		Message: strings.Join(messages, " "),
		Cause:   o,
	}
}

// NewErrorValue creates a new Error carrying value, setting the original
// Error as its cause.
func (o *Error) NewErrorValue(value Object) *Error {
	return &Error{
		Name:    o.Name,
		Message: Repr(value),
		Value:   value,
		Cause:   o,
	}
}

// TraceEntry is a frame of a runtime stack trace.
type TraceEntry struct {
	Filename string
	Name     string
	Line     int
}

func (e TraceEntry) String() string {
	return fmt.Sprintf("File \"%s\", line %d, in %s", e.Filename, e.Line, e.Name)
}

// StackTrace is a list of trace entries, innermost call last.
type StackTrace []TraceEntry

// Format formats the StackTrace to the fmt.Formatter interface.
func (st StackTrace) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v', 's':
		switch {
		case s.Flag('+'):
			_, _ = io.WriteString(s, "Traceback (most recent call last):")
			for _, e := range st {
				_, _ = io.WriteString(s, "\n  ")
				_, _ = io.WriteString(s, e.String())
			}
		default:
			_, _ = fmt.Fprintf(s, "%v", []TraceEntry(st))
		}
	}
}

// RuntimeError represents a runtime error that wraps Error and includes
// trace information.
type RuntimeError struct {
	Err   *Error
	Trace StackTrace
}

var _ Object = (*RuntimeError)(nil)

// Unwrap returns the wrapped Error.
func (o *RuntimeError) Unwrap() error {
	if o.Err != nil {
		return o.Err
	}
	return nil
}

func (o *RuntimeError) addTrace(e TraceEntry) {
	o.Trace = append(StackTrace{e}, o.Trace...)
}

// TypeName implements Object interface.
func (*RuntimeError) TypeName() string {
	return "error"
}

// String implements Object interface.
func (o *RuntimeError) String() string {
	return o.Error()
}

// Error implements error interface.
func (o *RuntimeError) Error() string {
	if o.Err == nil {
		return "<nil>"
	}
	return o.Err.Error()
}

// Equal implements Object interface.
func (o *RuntimeError) Equal(right Object) bool {
	if o.Err != nil {
		return o.Err.Equal(right)
	}
	return false
}

// IsFalsy implements Object interface.
func (o *RuntimeError) IsFalsy() bool { return true }

// Format implements fmt.Formater interface.
func (o *RuntimeError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v', 's':
		if s.Flag('+') && len(o.Trace) > 0 {
			_, _ = fmt.Fprintf(s, "%+v\n", o.Trace)
		}
		_, _ = io.WriteString(s, o.String())
	case 'q':
		_, _ = io.WriteString(s, strconv.Quote(o.String()))
	}
}

// Repr returns the representation of o used inside containers and by the
// repr builtin.
func Repr(o Object) string {
	if s, ok := o.(String); ok {
		return strconv.Quote(string(s))
	}
	return o.String()
}

func joinRepr(elems []Object) string {
	var sb strings.Builder
	for i, e := range elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Repr(e))
	}
	return sb.String()
}

func equalElems(a, b []Object) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func sequenceIndex(index Object, n int) (int, error) {
	v, ok := index.(Int)
	if !ok {
		return 0, NewIndexTypeError("int", index.TypeName())
	}
	i := int(v)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, ErrIndexOutOfBounds.NewError(index.String())
	}
	return i, nil
}

// ToHashKey returns the hash key of o. Tuples are hashable if their
// elements are.
func ToHashKey(o Object) (HashKey, error) {
	switch v := o.(type) {
	case Hashable:
		return v.HashKey(), nil
	case Tuple:
		var sb strings.Builder
		sb.WriteString("t(")
		for i, e := range v {
			k, err := ToHashKey(e)
			if err != nil {
				return "", err
			}
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(string(k)))
		}
		sb.WriteByte(')')
		return HashKey(sb.String()), nil
	}
	return "", ErrType.NewError(
		fmt.Sprintf("unhashable type: '%s'", o.TypeName()))
}
