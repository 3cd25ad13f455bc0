// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Importable interface represents importable module instance.
type Importable interface {
	// Import should return either a *Dict of attributes or module source
	// code ([]byte).
	Import(moduleName string) (interface{}, error)
}

// ExtImporter wraps methods for a module which will be imported dynamically
// like a file.
type ExtImporter interface {
	Importable
	// Get returns the importer of moduleName, or nil if it cannot be
	// imported.
	Get(moduleName string) ExtImporter
	// Name returns the filename reported in errors of the module.
	Name() string
}

// ModuleMap represents a set of named modules. Use NewModuleMap to create a
// new module map.
type ModuleMap struct {
	mu  sync.Mutex
	m   map[string]Importable
	ext ExtImporter
}

// NewModuleMap creates a new module map.
func NewModuleMap() *ModuleMap {
	return &ModuleMap{m: make(map[string]Importable)}
}

// Add adds an importable module.
func (m *ModuleMap) Add(name string, module Importable) *ModuleMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[name] = module
	return m
}

// AddBuiltinModule adds a builtin module.
func (m *ModuleMap) AddBuiltinModule(name string, attrs map[string]Object) *ModuleMap {
	return m.Add(name, &BuiltinModule{Attrs: attrs})
}

// AddSourceModule adds a source module.
func (m *ModuleMap) AddSourceModule(name string, src []byte) *ModuleMap {
	return m.Add(name, &SourceModule{Src: src})
}

// SetExtImporter sets an ExtImporter to look up modules missing from the
// map.
func (m *ModuleMap) SetExtImporter(im ExtImporter) *ModuleMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ext = im
	return m
}

// Remove removes a named module.
func (m *ModuleMap) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, name)
}

// Get returns an import module identified by name.
// It returns nil if the name is not found.
func (m *ModuleMap) Get(name string) Importable {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if im, ok := m.m[name]; ok {
		return im
	}
	if m.ext != nil {
		if im := m.ext.Get(name); im != nil {
			return im
		}
	}
	return nil
}

// Copy creates a copy of the module map.
func (m *ModuleMap) Copy() *ModuleMap {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &ModuleMap{m: make(map[string]Importable, len(m.m)), ext: m.ext}
	for name, mod := range m.m {
		c.m[name] = mod
	}
	return c
}

// Len returns the number of modules.
func (m *ModuleMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}

// Merge merges modules from other ModuleMap.
func (m *ModuleMap) Merge(other *ModuleMap) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, mod := range other.m {
		m.m[name] = mod
	}
}

// SourceModule is an importable module written in ulan.
type SourceModule struct {
	Src []byte
}

// Import returns a module source code.
func (m *SourceModule) Import(_ string) (interface{}, error) {
	return m.Src, nil
}

// BuiltinModule is an importable module that's written in Go.
type BuiltinModule struct {
	Attrs map[string]Object
}

// Import returns the attributes of the module.
func (m *BuiltinModule) Import(moduleName string) (interface{}, error) {
	if m.Attrs == nil {
		return nil, errors.New("module attributes not set")
	}

	d := NewDict()
	for k, v := range m.Attrs {
		d.SetStr(k, v)
	}
	d.SetStr(nameKey, String(moduleName))
	return d, nil
}

// absModuleName returns the absolute name of the module name imported with
// level from the module called importer.
func absModuleName(importer, name string, level int) (string, error) {
	if level == 0 {
		return name, nil
	}
	parts := strings.Split(importer, ".")
	if level > len(parts) {
		return "", ErrImport.NewError(
			"attempted relative import beyond top-level module")
	}
	parts = parts[:len(parts)-level]
	if name != "" {
		parts = append(parts, name)
	}
	if len(parts) == 0 {
		return "", ErrImport.NewError("empty module name")
	}
	return strings.Join(parts, "."), nil
}

func (vm *VM) importModule(f *frame, name string, level int) (Object, error) {
	var importer string
	if v, ok := f.globals.GetStr(nameKey); ok {
		importer = v.String()
	}
	absName, err := absModuleName(importer, name, level)
	if err != nil {
		return nil, err
	}

	if absName == builtinsModuleName {
		return builtinsModule, nil
	}
	if m, ok := vm.modules[absName]; ok {
		return m, nil
	}
	if vm.importing[absName] {
		return nil, ErrImport.NewError(
			fmt.Sprintf("circular import of module '%s'", absName))
	}

	im := vm.moduleMap.Get(absName)
	if im == nil {
		return nil, ErrImport.NewError(
			fmt.Sprintf("no module named '%s'", absName))
	}
	data, err := im.Import(absName)
	if err != nil {
		return nil, ErrImport.NewError(
			fmt.Sprintf("module '%s': %s", absName, err))
	}

	var attrs *Dict
	switch v := data.(type) {
	case *Dict:
		attrs = v
	case []byte:
		filename := absName
		if ext, ok := im.(ExtImporter); ok {
			filename = ext.Name()
		}
		attrs, err = vm.runSource(absName, filename, v)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrImport.NewError(
			fmt.Sprintf("module '%s': invalid import value %T", absName, data))
	}

	m := &Module{Name: absName, Attrs: attrs}
	if vm.modules == nil {
		vm.modules = make(map[string]*Module)
	}
	vm.modules[absName] = m
	return m, nil
}

// runSource compiles and runs the source of a module in its own global
// namespace and returns the namespace.
func (vm *VM) runSource(name, filename string, src []byte) (*Dict, error) {
	code, err := Compile(src, CompilerOptions{Filename: filename})
	if err != nil {
		return nil, &Error{
			Name:    ErrImport.Name,
			Message: err.Error(),
			Cause:   errors.Join(ErrImport, err),
		}
	}

	if vm.importing == nil {
		vm.importing = make(map[string]bool)
	}
	vm.importing[name] = true
	defer delete(vm.importing, name)

	globals := NewDict()
	globals.SetStr(nameKey, String(name))
	if _, err := vm.execute(code, globals, nil, nil); err != nil {
		return nil, err
	}
	return globals, nil
}
