// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SymbolScope represents a symbol scope.
type SymbolScope string

// List of symbol scopes
const (
	ScopeGlobal SymbolScope = "GLOBAL"
	ScopeLocal  SymbolScope = "LOCAL"
	ScopeFree   SymbolScope = "FREE"
)

// Symbol represents a symbol in the symbol table.
type Symbol struct {
	Name  string
	Scope SymbolScope
	// Index is the slot of the symbol after the owning function scope is
	// finalized. Plain locals index VarNames, captured locals and free
	// symbols index the cell slots (CellVars followed by FreeVars).
	Index int
	// Captured is set for locals stored in cells, because a closure or a
	// pattern refers to them.
	Captured bool
	// Original is the symbol of the enclosing function a free symbol
	// refers to.
	Original *Symbol
}

func (s *Symbol) String() string {
	return fmt.Sprintf("Symbol{Name:%s Index:%d Scope:%s Captured:%v Original:%s}",
		s.Name, s.Index, s.Scope, s.Captured, s.Original)
}

// Cell reports whether the symbol is accessed through a cell.
func (s *Symbol) Cell() bool {
	return s.Scope == ScopeFree || (s.Scope == ScopeLocal && s.Captured)
}

// ScopeID identifies a scope in a SymbolTable.
type ScopeID int

// NoScope is the parent of the file scope.
const NoScope ScopeID = -1

type scopeKind uint8

const (
	scopeFunction scopeKind = iota
	scopeBlock
	scopeArm
)

type scope struct {
	kind   scopeKind
	parent ScopeID
	fn     ScopeID
	store  map[string]*Symbol

	// function scopes
	symbols  []*Symbol
	frees    []*Symbol
	final    bool
	varNames []string
	cellVars []string
	freeVars []string

	// block scopes
	decls     map[string]*Symbol
	declOrder []string
}

// SymbolTable is an arena of scopes. Function scopes own symbols and
// slots. Block scopes stand for an if statement and hold the symbols
// declared in any of its arms, arm scopes buffer the bindings of one arm
// until the block is closed.
type SymbolTable struct {
	scopes []*scope
}

// NewSymbolTable creates a symbol table with the file scope.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{}
	st.add(&scope{kind: scopeFunction, parent: NoScope})
	return st
}

// FileScope is the scope of the top level of a file.
func (st *SymbolTable) FileScope() ScopeID { return 0 }

func (st *SymbolTable) add(s *scope) ScopeID {
	id := ScopeID(len(st.scopes))
	s.store = make(map[string]*Symbol)
	if s.kind == scopeFunction {
		s.fn = id
	} else {
		s.fn = st.scopes[s.parent].fn
	}
	st.scopes = append(st.scopes, s)
	return id
}

// Fork creates a function scope defined in parent.
func (st *SymbolTable) Fork(parent ScopeID) ScopeID {
	return st.add(&scope{kind: scopeFunction, parent: parent})
}

// ForkBlock creates a block scope in parent with n arms.
func (st *SymbolTable) ForkBlock(parent ScopeID, n int) (ScopeID, []ScopeID) {
	block := st.add(&scope{
		kind:   scopeBlock,
		parent: parent,
		decls:  make(map[string]*Symbol),
	})
	arms := make([]ScopeID, n)
	for i := range arms {
		arms[i] = st.add(&scope{kind: scopeArm, parent: block})
	}
	return block, arms
}

// CloseBlock merges the symbols declared in the arms of block into its
// parent.
func (st *SymbolTable) CloseBlock(block ScopeID) {
	b := st.scopes[block]
	for _, name := range b.declOrder {
		st.set(b.parent, name, b.decls[name])
	}
}

// IsGlobalScope reports whether declarations in id are globals.
func (st *SymbolTable) IsGlobalScope(id ScopeID) bool {
	return st.scopes[id].fn == 0
}

// FunctionScope returns the function scope id belongs to.
func (st *SymbolTable) FunctionScope(id ScopeID) ScopeID {
	return st.scopes[id].fn
}

func (st *SymbolTable) set(id ScopeID, name string, sym *Symbol) {
	s := st.scopes[id]
	if _, ok := s.store[name]; ok {
		panic(fmt.Errorf("symbol '%s' assigned twice", name))
	}
	s.store[name] = sym
}

// ResolveOwn looks name up without leaving the function of id.
func (st *SymbolTable) ResolveOwn(id ScopeID, name string) (*Symbol, bool) {
	for id != NoScope {
		s := st.scopes[id]
		if sym, ok := s.store[name]; ok {
			return sym, true
		}
		if s.kind == scopeFunction {
			break
		}
		id = s.parent
	}
	return nil, false
}

// Resolve looks name up in id and its enclosing scopes. A local of an
// enclosing function is returned as a free symbol of the function of id
// and is marked captured.
func (st *SymbolTable) Resolve(id ScopeID, name string) (*Symbol, bool) {
	if sym, ok := st.ResolveOwn(id, name); ok {
		return sym, true
	}

	fn := st.scopes[st.scopes[id].fn]
	if fn.parent == NoScope {
		return nil, false
	}
	outer, ok := st.Resolve(fn.parent, name)
	if !ok {
		return nil, false
	}
	if outer.Scope == ScopeGlobal {
		return outer, true
	}

	if outer.Scope == ScopeLocal {
		outer.Captured = true
	}
	sym := &Symbol{Name: name, Scope: ScopeFree, Original: outer}
	fn.frees = append(fn.frees, sym)
	fn.store[name] = sym
	return sym, true
}

// Declare declares name in id. Declarations in an arm are shared by all
// arms of the enclosing if statements and become visible outside when the
// blocks are closed.
func (st *SymbolTable) Declare(id ScopeID, name string) *Symbol {
	s := st.scopes[id]
	var sym *Symbol
	if s.kind == scopeArm {
		sym = st.blockDecl(s.parent, name)
	} else {
		sym = st.newSymbol(id, name)
	}
	st.set(id, name, sym)
	return sym
}

// DeclareHidden declares a plain local slot that cannot be referenced by
// name, such as the slot an argument is passed in.
func (st *SymbolTable) DeclareHidden(fn ScopeID, name string) *Symbol {
	return st.newSymbol(fn, name)
}

func (st *SymbolTable) blockDecl(block ScopeID, name string) *Symbol {
	b := st.scopes[block]
	if sym, ok := b.decls[name]; ok {
		return sym
	}

	var sym *Symbol
	if p := st.scopes[b.parent]; p.kind == scopeArm {
		sym = st.blockDecl(p.parent, name)
	} else {
		sym = st.newSymbol(b.parent, name)
	}
	b.decls[name] = sym
	b.declOrder = append(b.declOrder, name)
	return sym
}

func (st *SymbolTable) newSymbol(id ScopeID, name string) *Symbol {
	fnID := st.scopes[id].fn
	if fnID == 0 {
		return &Symbol{Name: name, Scope: ScopeGlobal, Index: -1}
	}
	fn := st.scopes[fnID]
	if fn.final {
		panic("declaration in a finalized scope")
	}
	sym := &Symbol{Name: name, Scope: ScopeLocal, Index: -1}
	fn.symbols = append(fn.symbols, sym)
	return sym
}

// Finalize assigns slots of the function scope fn. Plain locals get dense
// indexes into VarNames in declaration order, captured locals into
// CellVars, free symbols are numbered after the cells.
func (st *SymbolTable) Finalize(fn ScopeID) {
	s := st.scopes[fn]
	if s.kind != scopeFunction {
		panic("finalize of a non function scope")
	}
	s.varNames, s.cellVars, s.freeVars = nil, nil, nil

	for _, sym := range s.symbols {
		if sym.Captured {
			sym.Index = len(s.cellVars)
			s.cellVars = append(s.cellVars, sym.Name)
		} else {
			sym.Index = len(s.varNames)
			s.varNames = append(s.varNames, sym.Name)
		}
	}
	for i, sym := range s.frees {
		sym.Index = len(s.cellVars) + i
		s.freeVars = append(s.freeVars, sym.Name)
	}
	s.final = true
}

// Slots returns the slot tables of a finalized function scope.
func (st *SymbolTable) Slots(fn ScopeID) (varNames, cellVars, freeVars []string) {
	s := st.scopes[fn]
	return s.varNames, s.cellVars, s.freeVars
}

// Frees returns the free symbols of the function scope fn in slot order.
func (st *SymbolTable) Frees(fn ScopeID) []*Symbol {
	return st.scopes[fn].frees
}

// VisibleNames returns the sorted names visible from id.
func (st *SymbolTable) VisibleNames(id ScopeID) []string {
	seen := make(map[string]struct{})
	for id != NoScope {
		s := st.scopes[id]
		for _, name := range maps.Keys(s.store) {
			seen[name] = struct{}{}
		}
		id = s.parent
	}
	names := maps.Keys(seen)
	slices.Sort(names)
	return names
}
