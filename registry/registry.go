// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package registry keeps the converters of Go types unknown to ulan.
package registry

import (
	"reflect"
	"sync"
)

// Converter is a function that converts a value of one type to another.
type Converter func(in interface{}) (out interface{}, ok bool)

var (
	mu               sync.RWMutex
	objectConverters = map[reflect.Type]Converter{}
	anyConverters    = map[reflect.Type]Converter{}
)

// RegisterObjectConverter registers a converter for values of typ to be used
// by ulan.ToObject. The converter must return a ulan.Object.
func RegisterObjectConverter(typ reflect.Type, converter Converter) {
	mu.Lock()
	defer mu.Unlock()
	objectConverters[typ] = converter
}

// RegisterAnyConverter registers a converter for objects of typ to be used
// by ulan.ToInterface.
func RegisterAnyConverter(typ reflect.Type, converter Converter) {
	mu.Lock()
	defer mu.Unlock()
	anyConverters[typ] = converter
}

// ToObject converts in with the converter registered for its type.
func ToObject(in interface{}) (out interface{}, ok bool) {
	return convert(objectConverters, in)
}

// ToInterface converts in with the converter registered for its type.
func ToInterface(in interface{}) (out interface{}, ok bool) {
	return convert(anyConverters, in)
}

func convert(m map[reflect.Type]Converter, in interface{}) (interface{}, bool) {
	mu.RLock()
	converter, ok := m[reflect.TypeOf(in)]
	mu.RUnlock()
	if !ok {
		return nil, false
	}
	return converter(in)
}
