// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

const (
	// True represents a true value.
	True = Bool(true)

	// False represents a false value.
	False = Bool(false)
)

// None represents the absence of a value.
var None Object = NoneType{}

// Object represents an object in the VM.
type Object interface {
	// TypeName should return the name of the type.
	TypeName() string

	// String should return a string of the type's value.
	String() string

	// IsFalsy returns true if value is falsy otherwise false.
	IsFalsy() bool

	// Equal checks equality of objects. Matchers use it to compare values.
	Equal(right Object) bool
}

// Callable is implemented by objects that can be called from the VM.
// Returned error stops VM execution and Run returns it wrapped in a
// RuntimeError.
type Callable interface {
	Object
	Call(c Call) (Object, error)
}

// AttrGetter is implemented by objects supporting value->name access and
// the LOAD_ATTR instruction.
type AttrGetter interface {
	Object
	GetAttr(name string) (Object, error)
}

// IndexGetter is implemented by objects supporting value[index].
type IndexGetter interface {
	Object
	IndexGet(index Object) (Object, error)
}

// Hashable is implemented by objects that can be used as dict keys and set
// elements. Equal objects must return equal keys.
type Hashable interface {
	Object
	HashKey() HashKey
}

// HashKey is the key of a hashable object in dicts and sets.
type HashKey string

// LengthGetter wraps the Len method to get the number of elements of an object.
type LengthGetter interface {
	Len() int
}

// Iterable is implemented by objects that can be spread with * in calls and
// displays.
type Iterable interface {
	Object
	Elems() []Object
}

// Copier wraps the Copy method to create a single copy of the object.
type Copier interface {
	Copy() Object
}

// Matcher is implemented by runtime pattern matchers. Match reports whether
// value matches and may bind names as a side effect. Generated code reaches
// Match through the __umatch__ attribute.
type Matcher interface {
	Object
	Match(vm *VM, value Object) (bool, error)
}

// Extractor is implemented by objects that may stand as the function of a
// call pattern such as int(x) or tuple(a, *b). Extract returns the
// positional and keyword parts of value, ok is false if value cannot be
// destructured.
type Extractor interface {
	Object
	Extract(value Object) (args Tuple, kwargs *Dict, ok bool)
}
