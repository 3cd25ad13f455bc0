// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	// PrintWriter is the default writer for the print builtin.
	PrintWriter io.Writer = os.Stdout
)

// BuiltinType represents a builtin type
type BuiltinType byte

// Builtins
const (
	BuiltinPrint BuiltinType = iota
	BuiltinLen
	BuiltinRepr
	BuiltinStr
	BuiltinInt
	BuiltinFloat
	BuiltinBool
	BuiltinTuple
	BuiltinList
	BuiltinDict
	BuiltinSet
	BuiltinImport

	BuiltinEq
	BuiltinNe
	BuiltinLt
	BuiltinLe
	BuiltinGt
	BuiltinGe
	BuiltinNot
	BuiltinAdd
	BuiltinSub
	BuiltinMul
	BuiltinDiv
	BuiltinMod
	BuiltinNeg

	BuiltinMatchException
	BuiltinNameError
	BuiltinTypeError

	BuiltinValueMatch
	BuiltinVarMatch
	BuiltinGlobalVarMatch
	BuiltinNewMatch
	BuiltinGlobalNewMatch
	BuiltinGlobals
	BuiltinTupleMatch
	BuiltinListMatch
	BuiltinSetMatch
	BuiltinDictMatch
	BuiltinCallMatch
	BuiltinAndMatch
	BuiltinRestMatch

	builtinCount
)

// BuiltinsMap is list of builtin types, exported for REPL.
var BuiltinsMap = map[string]BuiltinType{
	"print":      BuiltinPrint,
	"len":        BuiltinLen,
	"repr":       BuiltinRepr,
	"str":        BuiltinStr,
	"int":        BuiltinInt,
	"float":      BuiltinFloat,
	"bool":       BuiltinBool,
	"tuple":      BuiltinTuple,
	"list":       BuiltinList,
	"dict":       BuiltinDict,
	"set":        BuiltinSet,
	"__import__": BuiltinImport,

	"eq":  BuiltinEq,
	"ne":  BuiltinNe,
	"lt":  BuiltinLt,
	"le":  BuiltinLe,
	"gt":  BuiltinGt,
	"ge":  BuiltinGe,
	"not": BuiltinNot,
	"add": BuiltinAdd,
	"sub": BuiltinSub,
	"mul": BuiltinMul,
	"div": BuiltinDiv,
	"mod": BuiltinMod,
	"neg": BuiltinNeg,

	"MatchException": BuiltinMatchException,
	"NameError":      BuiltinNameError,
	"TypeError":      BuiltinTypeError,

	builtinValue:      BuiltinValueMatch,
	builtinVar:        BuiltinVarMatch,
	builtinGlobalVar:  BuiltinGlobalVarMatch,
	builtinNew:        BuiltinNewMatch,
	builtinGlobalNew:  BuiltinGlobalNewMatch,
	builtinGlobals:    BuiltinGlobals,
	builtinMatchExc:   BuiltinMatchException,
	builtinTupleMatch: BuiltinTupleMatch,
	builtinListMatch:  BuiltinListMatch,
	builtinSetMatch:   BuiltinSetMatch,
	builtinDictMatch:  BuiltinDictMatch,
	builtinCallMatch:  BuiltinCallMatch,
	builtinAndMatch:   BuiltinAndMatch,
	builtinRestMatch:  BuiltinRestMatch,
}

// BuiltinObjects is list of builtins, exported for REPL. It is populated by
// init since some builtins run code.
var BuiltinObjects [builtinCount]Object

// builtinsModule is the module "::name" expressions import names from.
var builtinsModule *Module

func init() {
	BuiltinObjects = [builtinCount]Object{
		BuiltinPrint:  &BuiltinFunction{Name: "print", Value: builtinPrintFunc},
		BuiltinLen:    &BuiltinFunction{Name: "len", Value: funcPOROe(builtinLenFunc)},
		BuiltinRepr:   &BuiltinFunction{Name: "repr", Value: funcPORO(builtinReprFunc)},
		BuiltinStr:    TypeStr,
		BuiltinInt:    TypeInt,
		BuiltinFloat:  TypeFloat,
		BuiltinBool:   TypeBool,
		BuiltinTuple:  TypeTuple,
		BuiltinList:   TypeList,
		BuiltinDict:   TypeDict,
		BuiltinSet:    TypeSet,
		BuiltinImport: &BuiltinFunction{Name: "__import__", Value: builtinImportFunc},

		BuiltinEq:  &BuiltinFunction{Name: "eq", Value: funcPOOROe(builtinEqFunc)},
		BuiltinNe:  &BuiltinFunction{Name: "ne", Value: funcPOOROe(builtinNeFunc)},
		BuiltinLt:  binaryOpFunc(opLT),
		BuiltinLe:  binaryOpFunc(opLE),
		BuiltinGt:  binaryOpFunc(opGT),
		BuiltinGe:  binaryOpFunc(opGE),
		BuiltinNot: &BuiltinFunction{Name: "not", Value: funcPORO(builtinNotFunc)},
		BuiltinAdd: binaryOpFunc(opAdd),
		BuiltinSub: binaryOpFunc(opSub),
		BuiltinMul: binaryOpFunc(opMul),
		BuiltinDiv: binaryOpFunc(opDiv),
		BuiltinMod: binaryOpFunc(opMod),
		BuiltinNeg: &BuiltinFunction{Name: "neg", Value: funcPOROe(Negate)},

		BuiltinMatchException: errorType(ErrMatchException),
		BuiltinNameError:      errorType(ErrName),
		BuiltinTypeError:      errorType(ErrType),

		BuiltinValueMatch:     &BuiltinFunction{Name: builtinValue, Value: builtinValueFunc},
		BuiltinVarMatch:       &BuiltinFunction{Name: builtinVar, Value: cellMatcherFunc(false)},
		BuiltinGlobalVarMatch: &BuiltinFunction{Name: builtinGlobalVar, Value: globalMatcherFunc(false)},
		BuiltinNewMatch:       &BuiltinFunction{Name: builtinNew, Value: cellMatcherFunc(true)},
		BuiltinGlobalNewMatch: &BuiltinFunction{Name: builtinGlobalNew, Value: globalMatcherFunc(true)},
		BuiltinGlobals:        &BuiltinFunction{Name: builtinGlobals, Value: builtinGlobalsFunc},
		BuiltinTupleMatch:     &BuiltinFunction{Name: builtinTupleMatch, Value: sequenceMatcherFunc(false)},
		BuiltinListMatch:      &BuiltinFunction{Name: builtinListMatch, Value: sequenceMatcherFunc(true)},
		BuiltinSetMatch:       &BuiltinFunction{Name: builtinSetMatch, Value: builtinSetMatchFunc},
		BuiltinDictMatch:      &BuiltinFunction{Name: builtinDictMatch, Value: builtinDictMatchFunc},
		BuiltinCallMatch:      &BuiltinFunction{Name: builtinCallMatch, Value: builtinCallMatchFunc},
		BuiltinAndMatch:       &BuiltinFunction{Name: builtinAndMatch, Value: builtinAndFunc},
		BuiltinRestMatch:      &BuiltinFunction{Name: builtinRestMatch, Value: builtinRestFunc},
	}

	attrs := NewDict()
	for name, t := range BuiltinsMap {
		if !strings.HasPrefix(name, ".") {
			attrs.SetStr(name, BuiltinObjects[t])
		}
	}
	attrs.SetStr(nameKey, String(builtinsModuleName))
	builtinsModule = &Module{Name: builtinsModuleName, Attrs: attrs}
}

// LookupBuiltin returns the builtin called name.
func LookupBuiltin(name string) (Object, bool) {
	t, ok := BuiltinsMap[name]
	if !ok {
		return nil, false
	}
	return BuiltinObjects[t], true
}

// Builtin types. Calling them converts their argument, in call patterns
// they match values of the type.
var (
	TypeInt = &Type{
		Name:  "int",
		New:   funcPOROe(builtinIntFunc),
		Check: func(o Object) bool { _, ok := o.(Int); return ok },
	}
	TypeFloat = &Type{
		Name:  "float",
		New:   funcPOROe(builtinFloatFunc),
		Check: func(o Object) bool { _, ok := o.(Float); return ok },
	}
	TypeStr = &Type{
		Name:  "str",
		New:   funcPORO(func(o Object) Object { return String(o.String()) }),
		Check: func(o Object) bool { _, ok := o.(String); return ok },
	}
	TypeBool = &Type{
		Name:  "bool",
		New:   funcPORO(builtinBoolFunc),
		Check: func(o Object) bool { _, ok := o.(Bool); return ok },
	}
	TypeTuple = &Type{
		Name: "tuple",
		New: optionalIterable(func(elems []Object) (Object, error) {
			return append(Tuple{}, elems...), nil
		}),
		Check:       func(o Object) bool { _, ok := o.(Tuple); return ok },
		Destructure: func(o Object) (Tuple, *Dict) { return o.(Tuple), nil },
	}
	TypeList = &Type{
		Name: "list",
		New: optionalIterable(func(elems []Object) (Object, error) {
			return append(List{}, elems...), nil
		}),
		Check: func(o Object) bool { _, ok := o.(List); return ok },
		Destructure: func(o Object) (Tuple, *Dict) {
			return append(Tuple{}, o.(List)...), nil
		},
	}
	TypeSet = &Type{
		Name: "set",
		New: optionalIterable(func(elems []Object) (Object, error) {
			return NewSet(elems...)
		}),
		Check: func(o Object) bool { _, ok := o.(*Set); return ok },
		Destructure: func(o Object) (Tuple, *Dict) {
			return Tuple(o.(*Set).Elems()), nil
		},
	}
	TypeDict = &Type{
		Name:  "dict",
		New:   builtinDictFunc,
		Check: func(o Object) bool { _, ok := o.(*Dict); return ok },
		Destructure: func(o Object) (Tuple, *Dict) {
			return Tuple{}, o.(*Dict).Copy().(*Dict)
		},
	}
)

func errorType(e *Error) Object {
	return &Type{
		Name: e.Name,
		New: func(c Call) (Object, error) {
			if err := c.CheckRangeLen(0, 1); err != nil {
				return nil, err
			}
			if c.Len() == 0 {
				return e.NewError(), nil
			}
			return e.NewErrorValue(c.Get(0)), nil
		},
		Check: func(o Object) bool {
			err, ok := o.(*Error)
			return ok && (err == e || err.Cause == e)
		},
		Destructure: func(o Object) (Tuple, *Dict) {
			err := o.(*Error)
			if err.Value == nil {
				return Tuple{}, nil
			}
			return Tuple{err.Value}, nil
		},
	}
}

func binaryOpFunc(op string) Object {
	return &BuiltinFunction{
		Name: op,
		Value: funcPOOROe(func(l, r Object) (Object, error) {
			return BinaryOp(op, l, r)
		}),
	}
}

func optionalIterable(fn func([]Object) (Object, error)) func(Call) (Object, error) {
	return func(c Call) (Object, error) {
		if err := c.CheckKwargs(); err != nil {
			return nil, err
		}
		if err := c.CheckRangeLen(0, 1); err != nil {
			return nil, err
		}
		if c.Len() == 0 {
			return fn(nil)
		}
		it, ok := c.Get(0).(Iterable)
		if !ok {
			return nil, NewArgumentTypeError("1", "iterable", c.Get(0).TypeName())
		}
		return fn(it.Elems())
	}
}

func builtinPrintFunc(c Call) (Object, error) {
	if err := c.CheckKwargs("sep", "end"); err != nil {
		return nil, err
	}
	sep, end := " ", "\n"
	if v, ok := c.Kwarg("sep"); ok {
		sep = v.String()
	}
	if v, ok := c.Kwarg("end"); ok {
		end = v.String()
	}

	var sb strings.Builder
	for i, arg := range c.Args() {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(arg.String())
	}
	sb.WriteString(end)
	if _, err := io.WriteString(PrintWriter, sb.String()); err != nil {
		return nil, err
	}
	return None, nil
}

func builtinLenFunc(arg Object) (Object, error) {
	if v, ok := arg.(LengthGetter); ok {
		return Int(v.Len()), nil
	}
	return nil, ErrType.NewError(
		fmt.Sprintf("object of type '%s' has no len()", arg.TypeName()))
}

func builtinReprFunc(arg Object) Object { return String(Repr(arg)) }

func builtinBoolFunc(arg Object) Object { return Bool(!arg.IsFalsy()) }

func builtinNotFunc(arg Object) Object { return Bool(arg.IsFalsy()) }

func builtinEqFunc(l, r Object) (Object, error) { return Bool(l.Equal(r)), nil }

func builtinNeFunc(l, r Object) (Object, error) { return Bool(!l.Equal(r)), nil }

func builtinIntFunc(arg Object) (Object, error) {
	switch v := arg.(type) {
	case Int:
		return v, nil
	case Float:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, ErrType.NewError("cannot convert " + v.String() + " to int")
		}
		return Int(v), nil
	case Bool:
		return boolToInt(v), nil
	case String:
		i, err := strconv.ParseInt(strings.TrimSpace(string(v)), 0, 64)
		if err != nil {
			return nil, ErrType.NewError(
				fmt.Sprintf("invalid literal for int(): %s", Repr(v)))
		}
		return Int(i), nil
	}
	return nil, NewArgumentTypeError("1", "int|float|bool|str", arg.TypeName())
}

func builtinFloatFunc(arg Object) (Object, error) {
	switch v := arg.(type) {
	case Int:
		return Float(v), nil
	case Float:
		return v, nil
	case Bool:
		return Float(boolToInt(v).(Int)), nil
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return nil, ErrType.NewError(
				fmt.Sprintf("could not convert string to float: %s", Repr(v)))
		}
		return Float(f), nil
	}
	return nil, NewArgumentTypeError("1", "int|float|bool|str", arg.TypeName())
}

func builtinDictFunc(c Call) (Object, error) {
	if err := c.CheckRangeLen(0, 1); err != nil {
		return nil, err
	}
	d := NewDict()
	if c.Len() == 1 {
		src, ok := c.Get(0).(*Dict)
		if !ok {
			return nil, NewArgumentTypeError("1", "dict", c.Get(0).TypeName())
		}
		d.Update(src)
	}
	d.Update(c.Kwargs())
	return d, nil
}

func builtinImportFunc(c Call) (Object, error) {
	if err := c.CheckKwargs("level"); err != nil {
		return nil, err
	}
	if err := c.CheckLen(1); err != nil {
		return nil, err
	}
	name, ok := c.Get(0).(String)
	if !ok {
		return nil, NewArgumentTypeError("1", "str", c.Get(0).TypeName())
	}
	level := 0
	if v, ok := c.Kwarg("level"); ok {
		i, ok := v.(Int)
		if !ok {
			return nil, NewArgumentTypeError("level", "int", v.TypeName())
		}
		level = int(i)
	}
	vm := c.VM()
	if vm == nil || vm.frame == nil {
		return nil, ErrImport.NewError("__import__ called outside of a VM")
	}
	return vm.importModule(vm.frame, string(name), level)
}
