// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package stdlib registers the builtin modules of ulan programs.
package stdlib

import (
	"github.com/ozanh/ulan"
	"github.com/ozanh/ulan/stdlib/strings"
)

// Modules returns a module map with all standard library modules.
func Modules() *ulan.ModuleMap {
	return ulan.NewModuleMap().
		AddBuiltinModule("strings", strings.Module)
}
