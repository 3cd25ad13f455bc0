// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"
	"time"

	"github.com/ozanh/ulan/registry"
)

// ToObject converts a Go value to an Object. Scalars, slices and string
// keyed maps are converted recursively, functions with the CallableFunc
// signature become Function objects. Other types are looked up in the
// converters of the registry package.
func ToObject(v interface{}) (Object, error) {
	switch v := v.(type) {
	case nil:
		return None, nil
	case Object:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint8:
		return Int(v), nil
	case uint32:
		return Int(v), nil
	case float32:
		return Float(v), nil
	case float64:
		return Float(v), nil
	case string:
		return String(v), nil
	case []byte:
		return String(v), nil
	case time.Duration:
		return String(v.String()), nil
	case error:
		return &Error{Name: "error", Message: v.Error(), Cause: v}, nil
	case func(Call) (Object, error):
		return &Function{Name: "<go>", Value: v}, nil
	case []interface{}:
		list := make(List, 0, len(v))
		for _, e := range v {
			o, err := ToObject(e)
			if err != nil {
				return nil, err
			}
			list = append(list, o)
		}
		return list, nil
	case []string:
		list := make(List, 0, len(v))
		for _, e := range v {
			list = append(list, String(e))
		}
		return list, nil
	case map[string]interface{}:
		d := NewDict()
		for k, e := range v {
			o, err := ToObject(e)
			if err != nil {
				return nil, err
			}
			d.SetStr(k, o)
		}
		return d, nil
	}

	if out, ok := registry.ToObject(v); ok {
		if o, ok := out.(Object); ok {
			return o, nil
		}
	}
	return nil, ErrType.NewError(fmt.Sprintf("cannot convert %T to object", v))
}

// ToInterface converts an Object to a plain Go value. Containers are
// converted recursively, dicts with non string keys are keyed by the key
// representation.
func ToInterface(o Object) interface{} {
	if out, ok := registry.ToInterface(o); ok {
		return out
	}

	switch o := o.(type) {
	case nil:
		return nil
	case Bool:
		return bool(o)
	case Int:
		return int64(o)
	case Float:
		return float64(o)
	case String:
		return string(o)
	case Tuple:
		return toInterfaces(o)
	case List:
		return toInterfaces(o)
	case *Set:
		return toInterfaces(o.Elems())
	case *Dict:
		m := make(map[string]interface{}, o.Len())
		for _, k := range o.Keys() {
			v, _ := o.Get(k)
			key := Repr(k)
			if s, ok := k.(String); ok {
				key = string(s)
			}
			m[key] = ToInterface(v)
		}
		return m
	}
	if o == None {
		return nil
	}
	return o
}

func toInterfaces(elems []Object) []interface{} {
	out := make([]interface{}, len(elems))
	for i, e := range elems {
		out[i] = ToInterface(e)
	}
	return out
}
