// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"
	"math"
	"strings"
)

// Operator names of the builtins called by .op. expressions.
const (
	opAdd = "add"
	opSub = "sub"
	opMul = "mul"
	opDiv = "div"
	opMod = "mod"
	opLT  = "lt"
	opLE  = "le"
	opGT  = "gt"
	opGE  = "ge"
)

// ErrZeroDivision represents a divide by zero error.
var ErrZeroDivision = &Error{Name: "ZeroDivisionError"}

// BinaryOp applies the arithmetic or ordering operator op to left and
// right. Ints are promoted to floats when mixed with floats, bools act as
// ints.
func BinaryOp(op string, left, right Object) (Object, error) {
	left, right = boolToInt(left), boolToInt(right)

	switch l := left.(type) {
	case Int:
		switch r := right.(type) {
		case Int:
			return intOp(op, l, r)
		case Float:
			return floatOp(op, Float(l), r)
		case String:
			if op == opMul {
				return String(strings.Repeat(string(r), clampCount(l))), nil
			}
		}
	case Float:
		switch r := right.(type) {
		case Int:
			return floatOp(op, l, Float(r))
		case Float:
			return floatOp(op, l, r)
		}
	case String:
		switch r := right.(type) {
		case String:
			switch op {
			case opAdd:
				return l + r, nil
			case opLT:
				return Bool(l < r), nil
			case opLE:
				return Bool(l <= r), nil
			case opGT:
				return Bool(l > r), nil
			case opGE:
				return Bool(l >= r), nil
			}
		case Int:
			if op == opMul {
				return String(strings.Repeat(string(l), clampCount(r))), nil
			}
		}
	case Tuple:
		if r, ok := right.(Tuple); ok && op == opAdd {
			return append(append(Tuple{}, l...), r...), nil
		}
	case List:
		if r, ok := right.(List); ok && op == opAdd {
			return append(append(List{}, l...), r...), nil
		}
	}
	return nil, ErrType.NewError(fmt.Sprintf(
		"unsupported operand types for %s: '%s' and '%s'",
		op, left.TypeName(), right.TypeName()))
}

func intOp(op string, l, r Int) (Object, error) {
	switch op {
	case opAdd:
		return l + r, nil
	case opSub:
		return l - r, nil
	case opMul:
		return l * r, nil
	case opDiv:
		if r == 0 {
			return nil, ErrZeroDivision.NewError("division by zero")
		}
		return Float(l) / Float(r), nil
	case opMod:
		if r == 0 {
			return nil, ErrZeroDivision.NewError("modulo by zero")
		}
		m := l % r
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m, nil
	case opLT:
		return Bool(l < r), nil
	case opLE:
		return Bool(l <= r), nil
	case opGT:
		return Bool(l > r), nil
	case opGE:
		return Bool(l >= r), nil
	}
	return nil, ErrType.NewError("invalid operator " + op)
}

func floatOp(op string, l, r Float) (Object, error) {
	switch op {
	case opAdd:
		return l + r, nil
	case opSub:
		return l - r, nil
	case opMul:
		return l * r, nil
	case opDiv:
		if r == 0 {
			return nil, ErrZeroDivision.NewError("float division by zero")
		}
		return l / r, nil
	case opMod:
		if r == 0 {
			return nil, ErrZeroDivision.NewError("float modulo")
		}
		m := Float(math.Mod(float64(l), float64(r)))
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m, nil
	case opLT:
		return Bool(l < r), nil
	case opLE:
		return Bool(l <= r), nil
	case opGT:
		return Bool(l > r), nil
	case opGE:
		return Bool(l >= r), nil
	}
	return nil, ErrType.NewError("invalid operator " + op)
}

// Negate returns -o for numbers.
func Negate(o Object) (Object, error) {
	switch v := boolToInt(o).(type) {
	case Int:
		return -v, nil
	case Float:
		return -v, nil
	}
	return nil, ErrType.NewError(
		fmt.Sprintf("bad operand type for neg: '%s'", o.TypeName()))
}

func boolToInt(o Object) Object {
	if b, ok := o.(Bool); ok {
		if b {
			return Int(1)
		}
		return Int(0)
	}
	return o
}

func clampCount(n Int) int {
	if n < 0 {
		return 0
	}
	return int(n)
}
