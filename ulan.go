// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package ulan compiles and runs programs of a small expression language
// built around pattern matching. Source text is scanned and parsed into a
// parse tree, transformed into a syntax tree, resolved into scopes and
// assembled into stack machine Code which is run by a VM.
package ulan

import "context"

// CallableFunc is a function signature for a Go function callable from ulan
// programs.
type CallableFunc = func(c Call) (ret Object, err error)

// Exec compiles src and runs it with a VM in the global namespace globals,
// which is created if nil. Modules can be imported from modules if it is
// not nil. The VM is aborted if ctx is done before the program ends.
func Exec(ctx context.Context, src []byte, globals *Dict, modules *ModuleMap) (*Dict, error) {
	code, err := Compile(src, DefaultCompilerOptions)
	if err != nil {
		return nil, err
	}
	if globals == nil {
		globals = NewDict()
	}

	vm := NewVM(code).SetRecover(true)
	if modules != nil {
		vm.SetModuleMap(modules)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err = vm.Run(globals)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		vm.Abort()
		<-done
		if err == nil {
			err = ctx.Err()
		}
	}
	return globals, err
}
