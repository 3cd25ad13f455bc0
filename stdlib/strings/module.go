// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package strings provides strings module implementing simple functions to
// manipulate UTF-8 encoded strings for ulan programs. It wraps Go's strings
// package functionalities. Programs reach it as strings::Name.
package strings

import (
	"fmt"
	"strings"

	"github.com/ozanh/ulan"
)

// Module represents strings module.
var Module = map[string]ulan.Object{
	// Contains(s str, substr str) -> bool
	// Reports whether substr is within s.
	"Contains": &ulan.Function{
		Name:  "Contains",
		Value: fnASSRB(strings.Contains),
	},
	// ContainsAny(s str, chars str) -> bool
	"ContainsAny": &ulan.Function{
		Name:  "ContainsAny",
		Value: fnASSRB(strings.ContainsAny),
	},
	// Count(s str, substr str) -> int
	// Counts the number of non-overlapping instances of substr in s.
	"Count": &ulan.Function{
		Name:  "Count",
		Value: fnASSRI(strings.Count),
	},
	// EqualFold(s str, t str) -> bool
	"EqualFold": &ulan.Function{
		Name:  "EqualFold",
		Value: fnASSRB(strings.EqualFold),
	},
	// Fields(s str) -> tuple
	// Splits the string s around each instance of one or more consecutive white
	// space characters.
	"Fields": &ulan.Function{
		Name:  "Fields",
		Value: fields,
	},
	"HasPrefix": &ulan.Function{
		Name:  "HasPrefix",
		Value: fnASSRB(strings.HasPrefix),
	},
	"HasSuffix": &ulan.Function{
		Name:  "HasSuffix",
		Value: fnASSRB(strings.HasSuffix),
	},
	// Index(s str, substr str) -> int
	// Returns the index of the first byte of substr in s, or -1.
	"Index": &ulan.Function{
		Name:  "Index",
		Value: fnASSRI(strings.Index),
	},
	"LastIndex": &ulan.Function{
		Name:  "LastIndex",
		Value: fnASSRI(strings.LastIndex),
	},
	// Join(elems tuple|list, sep str) -> str
	"Join": &ulan.Function{
		Name:  "Join",
		Value: join,
	},
	// Repeat(s str, count int) -> str
	"Repeat": &ulan.Function{
		Name:  "Repeat",
		Value: repeat,
	},
	// Replace(s str, old str, new str[, n int]) -> str
	// Replaces the first n instances of old with new, all if n < 0.
	"Replace": &ulan.Function{
		Name:  "Replace",
		Value: replace,
	},
	// Split(s str, sep str[, n int]) -> tuple
	"Split": &ulan.Function{
		Name:  "Split",
		Value: fnASSIRT(strings.SplitN),
	},
	"SplitAfter": &ulan.Function{
		Name:  "SplitAfter",
		Value: fnASSIRT(strings.SplitAfterN),
	},
	"ToLower": &ulan.Function{
		Name:  "ToLower",
		Value: fnASRS(strings.ToLower),
	},
	"ToUpper": &ulan.Function{
		Name:  "ToUpper",
		Value: fnASRS(strings.ToUpper),
	},
	"Trim": &ulan.Function{
		Name:  "Trim",
		Value: fnASSRS(strings.Trim),
	},
	// Sprintf(format str, *args) -> str
	// Formats args with Go's fmt verbs. Strings are passed as Go strings.
	"Sprintf": &ulan.Function{
		Name:  "Sprintf",
		Value: sprintf,
	},
	"TrimLeft": &ulan.Function{
		Name:  "TrimLeft",
		Value: fnASSRS(strings.TrimLeft),
	},
	"TrimPrefix": &ulan.Function{
		Name:  "TrimPrefix",
		Value: fnASSRS(strings.TrimPrefix),
	},
	"TrimRight": &ulan.Function{
		Name:  "TrimRight",
		Value: fnASSRS(strings.TrimRight),
	},
	"TrimSpace": &ulan.Function{
		Name:  "TrimSpace",
		Value: fnASRS(strings.TrimSpace),
	},
	"TrimSuffix": &ulan.Function{
		Name:  "TrimSuffix",
		Value: fnASSRS(strings.TrimSuffix),
	},
}

func stringArg(c *ulan.Call, i int, pos string) (string, error) {
	s, ok := c.Get(i).(ulan.String)
	if !ok {
		return "", ulan.NewArgumentTypeError(pos, "str", c.Get(i).TypeName())
	}
	return string(s), nil
}

func intArg(c *ulan.Call, i int, pos string) (int, error) {
	v, ok := c.Get(i).(ulan.Int)
	if !ok {
		return 0, ulan.NewArgumentTypeError(pos, "int", c.Get(i).TypeName())
	}
	return int(v), nil
}

func twoStrings(c *ulan.Call) (string, string, error) {
	if err := c.CheckLen(2); err != nil {
		return "", "", err
	}
	s1, err := stringArg(c, 0, "first")
	if err != nil {
		return "", "", err
	}
	s2, err := stringArg(c, 1, "second")
	if err != nil {
		return "", "", err
	}
	return s1, s2, nil
}

func fnASSRS(fn func(string, string) string) func(ulan.Call) (ulan.Object, error) {
	return func(c ulan.Call) (ulan.Object, error) {
		s1, s2, err := twoStrings(&c)
		if err != nil {
			return nil, err
		}
		return ulan.String(fn(s1, s2)), nil
	}
}

func fnASSRB(fn func(string, string) bool) func(ulan.Call) (ulan.Object, error) {
	return func(c ulan.Call) (ulan.Object, error) {
		s1, s2, err := twoStrings(&c)
		if err != nil {
			return nil, err
		}
		return ulan.Bool(fn(s1, s2)), nil
	}
}

func fnASSRI(fn func(string, string) int) func(ulan.Call) (ulan.Object, error) {
	return func(c ulan.Call) (ulan.Object, error) {
		s1, s2, err := twoStrings(&c)
		if err != nil {
			return nil, err
		}
		return ulan.Int(fn(s1, s2)), nil
	}
}

func fnASSIRT(fn func(string, string, int) []string) func(ulan.Call) (ulan.Object, error) {
	return func(c ulan.Call) (ulan.Object, error) {
		if err := c.CheckRangeLen(2, 3); err != nil {
			return nil, err
		}
		s, err := stringArg(&c, 0, "first")
		if err != nil {
			return nil, err
		}
		sep, err := stringArg(&c, 1, "second")
		if err != nil {
			return nil, err
		}
		n := -1
		if c.Len() == 3 {
			if n, err = intArg(&c, 2, "third"); err != nil {
				return nil, err
			}
		}
		return toTuple(fn(s, sep, n)), nil
	}
}

func fnASRS(fn func(string) string) func(ulan.Call) (ulan.Object, error) {
	return func(c ulan.Call) (ulan.Object, error) {
		if err := c.CheckLen(1); err != nil {
			return nil, err
		}
		s, err := stringArg(&c, 0, "first")
		if err != nil {
			return nil, err
		}
		return ulan.String(fn(s)), nil
	}
}

func fields(c ulan.Call) (ulan.Object, error) {
	if err := c.CheckLen(1); err != nil {
		return nil, err
	}
	s, err := stringArg(&c, 0, "first")
	if err != nil {
		return nil, err
	}
	return toTuple(strings.Fields(s)), nil
}

func join(c ulan.Call) (ulan.Object, error) {
	if err := c.CheckLen(2); err != nil {
		return nil, err
	}
	it, ok := c.Get(0).(ulan.Iterable)
	if !ok {
		return nil, ulan.NewArgumentTypeError("first", "tuple|list", c.Get(0).TypeName())
	}
	sep, err := stringArg(&c, 1, "second")
	if err != nil {
		return nil, err
	}
	elems := it.Elems()
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	return ulan.String(strings.Join(parts, sep)), nil
}

func repeat(c ulan.Call) (ulan.Object, error) {
	if err := c.CheckLen(2); err != nil {
		return nil, err
	}
	s, err := stringArg(&c, 0, "first")
	if err != nil {
		return nil, err
	}
	n, err := intArg(&c, 1, "second")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	return ulan.String(strings.Repeat(s, n)), nil
}

func replace(c ulan.Call) (ulan.Object, error) {
	if err := c.CheckRangeLen(3, 4); err != nil {
		return nil, err
	}
	var args [3]string
	for i, pos := range []string{"first", "second", "third"} {
		s, err := stringArg(&c, i, pos)
		if err != nil {
			return nil, err
		}
		args[i] = s
	}
	n := -1
	if c.Len() == 4 {
		var err error
		if n, err = intArg(&c, 3, "fourth"); err != nil {
			return nil, err
		}
	}
	return ulan.String(strings.Replace(args[0], args[1], args[2], n)), nil
}

func sprintf(c ulan.Call) (ulan.Object, error) {
	if c.Len() < 1 {
		return nil, ulan.ErrWrongNumArguments.NewError("want>=1 got=0")
	}
	format, err := stringArg(&c, 0, "first")
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, c.Len()-1)
	for i := 1; i < c.Len(); i++ {
		switch v := c.Get(i).(type) {
		case ulan.String:
			args = append(args, string(v))
		default:
			args = append(args, v)
		}
	}
	return ulan.String(fmt.Sprintf(format, args...)), nil
}

func toTuple(list []string) ulan.Tuple {
	t := make(ulan.Tuple, len(list))
	for i, s := range list {
		t[i] = ulan.String(s)
	}
	return t
}
