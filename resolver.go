// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ozanh/ulan/ast"
	"github.com/ozanh/ulan/parser"
)

// Resolution holds the results of scope resolution of a file, indexed by
// node id.
type Resolution struct {
	Table *SymbolTable
	// symbols of Name, NamePattern, Function (the bound name) nodes and the
	// hidden slots of parameters (KeywordPattern and RestPattern nodes of
	// Arguments).
	symbols []*Symbol
	// newBinding is set for NamePattern nodes declaring their name.
	newBinding []bool
	// scopes holds the function scope of File and Function nodes.
	scopes []ScopeID
}

// Symbol returns the symbol node n refers to.
func (r *Resolution) Symbol(n ast.Node) *Symbol {
	return r.symbols[n.ID()]
}

// IsNewBinding reports whether the name pattern p declares its name.
func (r *Resolution) IsNewBinding(p *ast.NamePattern) bool {
	return r.newBinding[p.ID()]
}

// Scope returns the function scope of a File or Function node.
func (r *Resolution) Scope(n ast.Node) ScopeID {
	return r.scopes[n.ID()]
}

type scopeError struct {
	pos parser.Pos
	msg string
}

func (e *scopeError) Error() string { return e.msg }

type resolver struct {
	table    *SymbolTable
	res   *Resolution
	err   *scopeError
}

// Resolve resolves the names of file. globals are declared in the file
// scope before resolution, they are the names bound by previous inputs of
// a REPL.
func Resolve(file *ast.File, globals []string) (res *Resolution, err error) {
	table := NewSymbolTable()
	r := &resolver{
		table: table,
		res: &Resolution{
			Table:      table,
			symbols:    make([]*Symbol, file.NumIDs),
			newBinding: make([]bool, file.NumIDs),
			scopes:     make([]ScopeID, file.NumIDs),
		},
	}

	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(bailout); !ok {
				panic(v)
			}
			res, err = nil, r.err
		}
	}()

	fs := table.FileScope()
	for _, name := range globals {
		if _, ok := table.ResolveOwn(fs, name); !ok {
			table.Declare(fs, name)
		}
	}

	r.res.scopes[file.ID()] = fs
	r.stmts(file.Body, fs)
	table.Finalize(fs)
	return r.res, nil
}

type bailout struct{}

func (r *resolver) error(pos parser.Pos, msg string) {
	r.err = &scopeError{pos: pos, msg: msg}
	panic(bailout{})
}

func (r *resolver) stmts(list []ast.Stmt, scope ScopeID) {
	for _, s := range list {
		r.stmt(s, scope)
	}
}

func (r *resolver) stmt(s ast.Stmt, scope ScopeID) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		r.expr(s.X, scope)
	case *ast.Return:
		r.expr(s.Value, scope)
	case *ast.If:
		block, arms := r.table.ForkBlock(scope, 2)
		r.expr(s.Test, arms[0])
		r.stmts(s.Body, arms[0])
		r.stmts(s.Orelse, arms[1])
		r.table.CloseBlock(block)
	case *ast.Function:
		r.function(s, scope)
	default:
		panic(fmt.Errorf("unexpected statement %T", s))
	}
}

func (r *resolver) function(fn *ast.Function, scope ScopeID) {
	args := fn.Args
	for _, kw := range args.Args {
		if kw.Default != nil {
			r.expr(kw.Default, scope)
		}
	}
	for _, kw := range args.KwOnly {
		if kw.Default != nil {
			r.expr(kw.Default, scope)
		}
	}

	sym, ok := r.table.ResolveOwn(scope, fn.Name)
	if ok && sym.Scope == ScopeFree {
		r.error(fn.Pos(), fmt.Sprintf(
			"cannot define '%s', the name refers to a variable of an enclosing function",
			fn.Name))
	}
	if !ok {
		sym = r.table.Declare(scope, fn.Name)
	}
	r.res.symbols[fn.ID()] = sym

	fnScope := r.table.Fork(scope)
	r.res.scopes[fn.ID()] = fnScope

	// argument slots in the order arguments are bound by calls
	for _, kw := range args.Args {
		r.res.symbols[kw.ID()] = r.table.DeclareHidden(fnScope, "."+kw.Name)
	}
	for _, kw := range args.KwOnly {
		r.res.symbols[kw.ID()] = r.table.DeclareHidden(fnScope, "."+kw.Name)
	}
	if args.Vararg != nil {
		r.res.symbols[args.Vararg.ID()] = r.table.DeclareHidden(fnScope, ".*")
	}
	if args.Kwarg != nil {
		r.res.symbols[args.Kwarg.ID()] = r.table.DeclareHidden(fnScope, ".**")
	}

	// the body is resolved at the definition, names bound later in the
	// enclosing scope are not visible to it
	r.functionBody(fn, fnScope)
}

func (r *resolver) functionBody(fn *ast.Function, scope ScopeID) {
	args := fn.Args
	for _, kw := range args.Args {
		r.pattern(kw.Pattern, scope, true)
	}
	if args.Vararg != nil {
		r.pattern(args.Vararg.Pattern, scope, true)
	}
	for _, kw := range args.KwOnly {
		r.pattern(kw.Pattern, scope, true)
	}
	if args.Kwarg != nil {
		r.pattern(args.Kwarg.Pattern, scope, true)
	}

	r.stmts(fn.Body, scope)
	r.table.Finalize(scope)
}

func (r *resolver) exprs(list []ast.Expr, scope ScopeID) {
	for _, x := range list {
		r.expr(x, scope)
	}
}

func (r *resolver) expr(x ast.Expr, scope ScopeID) {
	switch x := x.(type) {
	case *ast.Literal, *ast.ModuleRef, *ast.ModuleAttribute:
	case *ast.Name:
		sym, ok := r.table.Resolve(scope, x.Name)
		if !ok {
			r.error(x.Pos(), r.undefined(scope, x.Name))
		}
		r.res.symbols[x.ID()] = sym
	case *ast.Attribute:
		r.expr(x.Value, scope)
	case *ast.Subscript:
		r.expr(x.Value, scope)
		r.expr(x.Index, scope)
	case *ast.Unpack:
		r.expr(x.Value, scope)
	case *ast.Tuple:
		r.exprs(x.Elems, scope)
	case *ast.List:
		r.exprs(x.Elems, scope)
	case *ast.Set:
		r.exprs(x.Elems, scope)
	case *ast.Dict:
		r.exprs(x.Elems, scope)
	case *ast.Field:
		r.expr(x.Key, scope)
		r.expr(x.Value, scope)
	case *ast.Keyword:
		r.expr(x.Value, scope)
	case *ast.Call:
		r.expr(x.Func, scope)
		r.exprs(x.Args, scope)
		r.exprs(x.Keywords, scope)
	case *ast.BinOp:
		r.operator(x.Op, scope)
		r.expr(x.Left, scope)
		r.expr(x.Right, scope)
	case *ast.UnaryOp:
		r.operator(x.Op, scope)
		r.expr(x.Operand, scope)
	case *ast.Is:
		r.expr(x.Left, scope)
		r.expr(x.Right, scope)
	case *ast.Match:
		r.pattern(x.Pattern, scope, false)
		r.expr(x.Value, scope)
	default:
		panic(fmt.Errorf("unexpected expression %T", x))
	}
}

// operator resolves the operator of a .op. expression. An operator name
// that is not bound refers to the builtin of that name.
func (r *resolver) operator(op ast.Expr, scope ScopeID) {
	if n, ok := op.(*ast.Name); ok {
		if _, ok := r.table.Resolve(scope, n.Name); !ok {
			r.res.symbols[n.ID()] = &Symbol{Name: n.Name, Scope: ScopeGlobal, Index: -1}
			return
		}
	}
	r.expr(op, scope)
}

// pattern resolves the names of pattern p. Parameter patterns only look
// names up in their own function, so a parameter shadows names of
// enclosing functions instead of checking against them.
func (r *resolver) pattern(p ast.Pattern, scope ScopeID, param bool) {
	switch p := p.(type) {
	case *ast.LiteralPattern:
	case *ast.NamePattern:
		var (
			sym *Symbol
			ok  bool
		)
		if param {
			sym, ok = r.table.ResolveOwn(scope, p.Name)
		} else {
			sym, ok = r.table.Resolve(scope, p.Name)
		}
		if !ok {
			sym = r.table.Declare(scope, p.Name)
			r.res.newBinding[p.ID()] = true
		}
		if sym.Scope == ScopeLocal {
			sym.Captured = true
		}
		r.res.symbols[p.ID()] = sym
	case *ast.KeywordPattern:
		r.pattern(p.Pattern, scope, param)
		if p.Default != nil {
			r.expr(p.Default, scope)
		}
	case *ast.AndPattern:
		r.pattern(p.Left, scope, param)
		r.pattern(p.Right, scope, param)
	case *ast.RestPattern:
		r.pattern(p.Pattern, scope, param)
	case *ast.TuplePattern:
		r.patterns(p.Elems, scope, param)
	case *ast.ListPattern:
		r.patterns(p.Elems, scope, param)
	case *ast.SetPattern:
		r.patterns(p.Elems, scope, param)
	case *ast.DictPattern:
		r.patterns(p.Elems, scope, param)
	case *ast.FieldPattern:
		r.expr(p.Key, scope)
		r.pattern(p.Pattern, scope, param)
		if p.Default != nil {
			r.expr(p.Default, scope)
		}
	case *ast.CallPattern:
		r.expr(p.Func, scope)
		r.patterns(p.Args, scope, param)
		r.patterns(p.Keywords, scope, param)
	default:
		panic(fmt.Errorf("unexpected pattern %T", p))
	}
}

func (r *resolver) patterns(list []ast.Pattern, scope ScopeID, param bool) {
	for _, p := range list {
		r.pattern(p, scope, param)
	}
}

func (r *resolver) undefined(scope ScopeID, name string) string {
	msg := fmt.Sprintf("name '%s' is not defined", name)
	if hint := closestName(name, r.table.VisibleNames(scope)); hint != "" {
		msg += fmt.Sprintf(", did you mean '%s'?", hint)
	}
	return msg
}

// closestName returns the candidate closest to name, or "" if none is
// close enough.
func closestName(name string, candidates []string) string {
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", 3
	for _, c := range candidates {
		if c == "" || c[0] == '.' {
			continue
		}
		if d := fuzzy.LevenshteinDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
