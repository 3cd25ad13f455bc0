// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"
	"strings"

	"github.com/ozanh/ulan/ast"
)

func (c *Compiler) compileStmts(list []ast.Stmt) {
	for _, s := range list {
		c.asm.SetLine(c.file.Line(s.Pos()))
		c.compileStmt(s)
	}
}

func (c *Compiler) compileStmt(s ast.Stmt) {
	if c.trace != nil {
		defer untracec(tracec(c, nodeName(s)))
	}

	switch s := s.(type) {
	case *ast.ExprStmt:
		c.compileExpr(s.X)
		if _, ok := s.X.(*ast.Match); ok {
			c.raiseIfNoMatch()
		} else {
			c.asm.Emit(OpPopTop, 0)
		}
	case *ast.Return:
		c.compileExpr(s.Value)
		c.asm.Emit(OpReturnValue, 0)
	case *ast.If:
		c.compileIf(s)
	case *ast.Function:
		c.compileFunction(s)
	default:
		panic(fmt.Errorf("unexpected statement %T", s))
	}
}

// raiseIfNoMatch consumes the value and the flag left by a Match, raising
// a match exception with the value if the flag is false.
func (c *Compiler) raiseIfNoMatch() {
	ok := c.asm.NewLabel()
	c.asm.EmitJump(OpPopJumpIfTrue, ok)
	c.asm.EmitName(OpLoadGlobal, builtinMatchExc)
	c.asm.Emit(OpRotTwo, 0)
	c.asm.Emit(OpCallFunction, 1)
	c.asm.Emit(OpRaiseVarargs, 1)
	c.asm.Mark(ok)
	c.asm.Emit(OpPopTop, 0)
}

func (c *Compiler) compileIf(s *ast.If) {
	c.compileExpr(s.Test)
	if _, ok := s.Test.(*ast.Match); ok {
		c.asm.Emit(OpRotTwo, 0)
		c.asm.Emit(OpPopTop, 0)
	}

	orelse := c.asm.NewLabel()
	end := c.asm.NewLabel()
	c.asm.EmitJump(OpPopJumpIfFalse, orelse)
	c.compileStmts(s.Body)
	c.asm.EmitJump(OpJumpForward, end)
	c.asm.Mark(orelse)
	c.compileStmts(s.Orelse)
	c.asm.Mark(end)
}

func (c *Compiler) compileFunction(fn *ast.Function) {
	args := fn.Args
	flags := 0

	var ndefaults int
	for _, kw := range args.Args {
		if kw.Default != nil {
			c.compileExpr(kw.Default)
			ndefaults++
		}
	}
	if ndefaults > 0 {
		c.asm.Emit(OpBuildTuple, ndefaults)
		flags |= MakeFunctionDefaults
	}

	var kwnames Tuple
	for _, kw := range args.KwOnly {
		if kw.Default != nil {
			c.compileExpr(kw.Default)
			kwnames = append(kwnames, String(kw.Name))
		}
	}
	if len(kwnames) > 0 {
		c.asm.EmitConst(kwnames)
		c.asm.Emit(OpBuildConstKeyMap, len(kwnames))
		flags |= MakeFunctionKwDefaults
	}

	fnScope := c.res.Scope(fn)
	if frees := c.res.Table.Frees(fnScope); len(frees) > 0 {
		for _, free := range frees {
			c.asm.Emit(OpLoadClosure, free.Original.Index)
		}
		c.asm.Emit(OpBuildTuple, len(frees))
		flags |= MakeFunctionClosure
	}

	code := c.fork(fn).compileFunctionCode(fn)
	c.asm.EmitConst(code)
	c.asm.EmitConst(String(fn.Name))
	c.asm.Emit(OpMakeFunction, flags)
	c.store(c.res.Symbol(fn))
}

// compileFunctionCode generates the code unit of fn. Each argument slot is
// matched against its pattern before the body runs. If one does not match
// the arguments are collected again and raised with a match exception.
func (c *Compiler) compileFunctionCode(fn *ast.Function) *Code {
	if c.trace != nil {
		defer untracec(tracec(c, "Function "+fn.Name))
	}

	args := fn.Args
	fail := c.asm.NewLabel()
	matchArg := func(p ast.Pattern, slot *Symbol) {
		c.compilePattern(p)
		c.asm.EmitName(OpLoadAttr, matchMethod)
		c.asm.Emit(OpLoadFast, slot.Index)
		c.asm.Emit(OpCallFunction, 1)
		c.asm.EmitJump(OpPopJumpIfFalse, fail)
	}

	flags := CodeOptimized | CodeNewLocals
	for _, kw := range args.Args {
		matchArg(kw.Pattern, c.res.Symbol(kw))
	}
	if args.Vararg != nil {
		matchArg(args.Vararg.Pattern, c.res.Symbol(args.Vararg))
		flags |= CodeVarargs
	}
	for _, kw := range args.KwOnly {
		matchArg(kw.Pattern, c.res.Symbol(kw))
	}
	if args.Kwarg != nil {
		matchArg(args.Kwarg.Pattern, c.res.Symbol(args.Kwarg))
		flags |= CodeVarKeywords
	}

	c.compileStmts(fn.Body)
	c.asm.EmitConst(None)
	c.asm.Emit(OpReturnValue, 0)

	if len(args.Args) > 0 || len(args.KwOnly) > 0 ||
		args.Vararg != nil || args.Kwarg != nil {
		c.asm.SetLine(c.file.Line(fn.Pos()))
		c.asm.Mark(fail)
		c.compileArgsValue(args)
		c.asm.EmitName(OpLoadGlobal, builtinMatchExc)
		c.asm.Emit(OpRotTwo, 0)
		c.asm.Emit(OpCallFunction, 1)
		c.asm.Emit(OpRaiseVarargs, 1)
	}

	return c.build(fn.Name, c.file.Line(fn.Pos()),
		len(args.Args), len(args.KwOnly), flags)
}

// compileArgsValue pushes the (args, kwargs) tuple of the values bound to
// the argument slots.
func (c *Compiler) compileArgsValue(args *ast.Arguments) {
	for _, kw := range args.Args {
		c.asm.Emit(OpLoadFast, c.res.Symbol(kw).Index)
	}
	c.asm.Emit(OpBuildTuple, len(args.Args))
	if args.Vararg != nil {
		c.asm.Emit(OpLoadFast, c.res.Symbol(args.Vararg).Index)
		c.asm.Emit(OpBuildTupleUnpack, 2)
	}

	if len(args.KwOnly) > 0 {
		names := make(Tuple, 0, len(args.KwOnly))
		for _, kw := range args.KwOnly {
			c.asm.Emit(OpLoadFast, c.res.Symbol(kw).Index)
			names = append(names, String(kw.Name))
		}
		c.asm.EmitConst(names)
		c.asm.Emit(OpBuildConstKeyMap, len(names))
	} else {
		c.asm.Emit(OpBuildMap, 0)
	}
	if args.Kwarg != nil {
		c.asm.Emit(OpLoadFast, c.res.Symbol(args.Kwarg).Index)
		c.asm.Emit(OpBuildMapUnpack, 2)
	}
	c.asm.Emit(OpBuildTuple, 2)
}

func (c *Compiler) load(sym *Symbol) {
	switch {
	case sym.Scope == ScopeGlobal:
		c.asm.EmitName(OpLoadGlobal, sym.Name)
	case sym.Cell():
		c.asm.Emit(OpLoadDeref, sym.Index)
	default:
		c.asm.Emit(OpLoadFast, sym.Index)
	}
}

func (c *Compiler) store(sym *Symbol) {
	switch {
	case sym.Scope == ScopeGlobal:
		c.asm.EmitName(OpStoreGlobal, sym.Name)
	case sym.Cell():
		c.asm.Emit(OpStoreDeref, sym.Index)
	default:
		c.asm.Emit(OpStoreFast, sym.Index)
	}
}

func (c *Compiler) compileExprs(list []ast.Expr) {
	for _, x := range list {
		c.compileExpr(x)
	}
}

func (c *Compiler) compileExpr(x ast.Expr) {
	if c.trace != nil {
		defer untracec(tracec(c, nodeName(x)))
	}

	switch x := x.(type) {
	case *ast.Literal:
		c.asm.EmitConst(literalObject(x.Value))
	case *ast.Name:
		c.load(c.res.Symbol(x))
	case *ast.ModuleRef:
		c.asm.EmitConst(Int(x.Level))
		c.asm.EmitConst(None)
		c.asm.EmitName(OpImportName, moduleName(x))
	case *ast.ModuleAttribute:
		c.asm.EmitConst(Int(x.Module.Level))
		c.asm.EmitConst(Tuple{String(x.Identifier)})
		c.asm.EmitName(OpImportName, moduleName(x.Module))
		c.asm.EmitName(OpImportFrom, x.Identifier)
		c.asm.Emit(OpRotTwo, 0)
		c.asm.Emit(OpPopTop, 0)
	case *ast.Attribute:
		c.compileExpr(x.Value)
		c.asm.EmitName(OpLoadAttr, x.Identifier)
	case *ast.Subscript:
		c.compileExpr(x.Value)
		c.compileExpr(x.Index)
		c.asm.Emit(OpBinarySubscr, 0)
	case *ast.Tuple:
		c.compileSequence(x.Elems, OpBuildTuple, OpBuildTupleUnpack)
	case *ast.List:
		c.compileSequence(x.Elems, OpBuildList, OpBuildListUnpack)
	case *ast.Set:
		c.compileSequence(x.Elems, OpBuildSet, OpBuildSetUnpack)
	case *ast.Dict:
		c.compileDict(x)
	case *ast.Call:
		c.compileCall(x)
	case *ast.BinOp:
		c.compileExpr(x.Op)
		c.compileExpr(x.Left)
		c.compileExpr(x.Right)
		c.asm.Emit(OpCallFunction, 2)
	case *ast.UnaryOp:
		c.compileExpr(x.Op)
		c.compileExpr(x.Operand)
		c.asm.Emit(OpCallFunction, 1)
	case *ast.Is:
		c.compileExpr(x.Left)
		c.compileExpr(x.Right)
		c.asm.Emit(OpCompareOp, CompareIs)
	case *ast.Match:
		// leaves the value and the match result
		c.compilePattern(x.Pattern)
		c.asm.EmitName(OpLoadAttr, matchMethod)
		c.compileExpr(x.Value)
		c.asm.Emit(OpDupTop, 0)
		c.asm.Emit(OpRotThree, 0)
		c.asm.Emit(OpCallFunction, 1)
	default:
		panic(fmt.Errorf("unexpected expression %T", x))
	}
}

// compileSequence builds a tuple, list or set display. Runs of plain
// elements before and between spread elements are collected in tuples.
func (c *Compiler) compileSequence(elems []ast.Expr, build, buildUnpack Opcode) {
	if !hasUnpack(elems) {
		c.compileExprs(elems)
		c.asm.Emit(build, len(elems))
		return
	}

	count, run := 0, 0
	for _, e := range elems {
		if u, ok := e.(*ast.Unpack); ok {
			if run > 0 {
				c.asm.Emit(OpBuildTuple, run)
				run = 0
				count++
			}
			c.compileExpr(u.Value)
			count++
			continue
		}
		c.compileExpr(e)
		run++
	}
	if run > 0 {
		c.asm.Emit(OpBuildTuple, run)
		count++
	}
	c.asm.Emit(buildUnpack, count)
}

func (c *Compiler) compileDict(x *ast.Dict) {
	count, run := 0, 0
	for _, e := range x.Elems {
		switch e := e.(type) {
		case *ast.Field:
			c.compileExpr(e.Key)
			c.compileExpr(e.Value)
			run++
		case *ast.Unpack:
			if run > 0 {
				c.asm.Emit(OpBuildMap, run)
				run = 0
				count++
			}
			c.compileExpr(e.Value)
			count++
		default:
			panic(fmt.Errorf("unexpected dict element %T", e))
		}
	}
	if count == 0 {
		c.asm.Emit(OpBuildMap, run)
		return
	}
	if run > 0 {
		c.asm.Emit(OpBuildMap, run)
		count++
	}
	c.asm.Emit(OpBuildMapUnpack, count)
}

// compileCall uses the plainest call instruction the arguments allow.
// Spread arguments need CALL_FUNCTION_EX with the positional arguments in a
// tuple and the keyword arguments in a dict.
func (c *Compiler) compileCall(x *ast.Call) {
	c.compileExpr(x.Func)

	argCount, tupleCount := 0, 0
	for _, arg := range x.Args {
		if u, ok := arg.(*ast.Unpack); ok {
			if argCount > 0 {
				c.asm.Emit(OpBuildTuple, argCount)
				argCount = 0
				tupleCount++
			}
			c.compileExpr(u.Value)
			tupleCount++
			continue
		}
		c.compileExpr(arg)
		argCount++
	}

	if tupleCount > 0 {
		if argCount > 0 {
			c.asm.Emit(OpBuildTuple, argCount)
			argCount = 0
			tupleCount++
		}
		c.asm.Emit(OpBuildTupleUnpackWithCall, tupleCount)
	} else if hasUnpack(x.Keywords) {
		c.asm.Emit(OpBuildTuple, argCount)
		argCount = 0
		tupleCount = 1
	}

	var kwds Tuple
	mapCount := 0
	for _, arg := range x.Keywords {
		switch arg := arg.(type) {
		case *ast.Unpack:
			if len(kwds) > 0 {
				c.asm.EmitConst(kwds)
				c.asm.Emit(OpBuildConstKeyMap, len(kwds))
				kwds = nil
				mapCount++
			}
			c.compileExpr(arg.Value)
			mapCount++
		case *ast.Keyword:
			kwds = append(kwds, String(arg.Name))
			c.compileExpr(arg.Value)
		default:
			panic(fmt.Errorf("unexpected keyword argument %T", arg))
		}
	}

	if (mapCount > 0 || tupleCount > 0) && len(kwds) > 0 {
		c.asm.EmitConst(kwds)
		c.asm.Emit(OpBuildConstKeyMap, len(kwds))
		kwds = nil
		mapCount++
	}

	switch {
	case mapCount > 0:
		c.asm.Emit(OpBuildMapUnpackWithCall, mapCount)
		c.asm.Emit(OpCallFunctionEx, 1)
	case tupleCount > 0:
		c.asm.Emit(OpCallFunctionEx, 0)
	case len(kwds) > 0:
		c.asm.EmitConst(kwds)
		c.asm.Emit(OpCallFunctionKw, argCount+len(kwds))
	default:
		c.asm.Emit(OpCallFunction, argCount)
	}
}

// compilePattern pushes a matcher for p.
func (c *Compiler) compilePattern(p ast.Pattern) {
	if c.trace != nil {
		defer untracec(tracec(c, nodeName(p)))
	}

	switch p := p.(type) {
	case *ast.LiteralPattern:
		c.asm.EmitName(OpLoadGlobal, builtinValue)
		c.asm.EmitConst(literalObject(p.Value))
		c.asm.Emit(OpCallFunction, 1)
	case *ast.NamePattern:
		c.compileNamePattern(p)
	case *ast.AndPattern:
		c.asm.EmitName(OpLoadGlobal, builtinAndMatch)
		c.compilePattern(p.Left)
		c.compilePattern(p.Right)
		c.asm.Emit(OpCallFunction, 2)
	case *ast.RestPattern:
		c.asm.EmitName(OpLoadGlobal, builtinRestMatch)
		c.compilePattern(p.Pattern)
		if p.Mapping {
			c.asm.EmitConst(True)
		} else {
			c.asm.EmitConst(False)
		}
		c.asm.Emit(OpCallFunction, 2)
	case *ast.TuplePattern:
		c.compilePatternList(builtinTupleMatch, p.Elems)
	case *ast.ListPattern:
		c.compilePatternList(builtinListMatch, p.Elems)
	case *ast.SetPattern:
		c.compilePatternList(builtinSetMatch, p.Elems)
	case *ast.DictPattern:
		c.compilePatternList(builtinDictMatch, p.Elems)
	case *ast.CallPattern:
		c.asm.EmitName(OpLoadGlobal, builtinCallMatch)
		c.compileExpr(p.Func)
		c.compilePatternList(builtinTupleMatch, p.Args)
		c.compilePatternList(builtinDictMatch, p.Keywords)
		c.asm.Emit(OpCallFunction, 3)
	default:
		panic(fmt.Errorf("unexpected pattern %T", p))
	}
}

func (c *Compiler) compileNamePattern(p *ast.NamePattern) {
	sym := c.res.Symbol(p)
	isNew := c.res.IsNewBinding(p)

	if sym.Scope == ScopeGlobal {
		if isNew {
			c.asm.EmitName(OpLoadGlobal, builtinGlobalNew)
		} else {
			c.asm.EmitName(OpLoadGlobal, builtinGlobalVar)
		}
		c.asm.EmitName(OpLoadGlobal, builtinGlobals)
		c.asm.Emit(OpCallFunction, 0)
		c.asm.EmitConst(String(sym.Name))
		c.asm.Emit(OpCallFunction, 2)
		return
	}

	if isNew {
		c.asm.EmitName(OpLoadGlobal, builtinNew)
	} else {
		c.asm.EmitName(OpLoadGlobal, builtinVar)
	}
	c.asm.Emit(OpLoadClosure, sym.Index)
	c.asm.Emit(OpCallFunction, 1)
}

// compilePatternList calls the matcher constructor builtin with a matcher
// per element. Elements of dict and keyword patterns are passed as
// (key, matcher) or (key, matcher, default) tuples.
func (c *Compiler) compilePatternList(builtin string, elems []ast.Pattern) {
	c.asm.EmitName(OpLoadGlobal, builtin)
	for _, e := range elems {
		switch e := e.(type) {
		case *ast.FieldPattern:
			c.compileExpr(e.Key)
			c.compileField(e.Pattern, e.Default)
		case *ast.KeywordPattern:
			c.asm.EmitConst(String(e.Name))
			c.compileField(e.Pattern, e.Default)
		default:
			c.compilePattern(e)
		}
	}
	c.asm.Emit(OpCallFunction, len(elems))
}

func (c *Compiler) compileField(p ast.Pattern, def ast.Expr) {
	c.compilePattern(p)
	if def == nil {
		c.asm.Emit(OpBuildTuple, 2)
		return
	}
	c.compileExpr(def)
	c.asm.Emit(OpBuildTuple, 3)
}

func hasUnpack(list []ast.Expr) bool {
	for _, x := range list {
		if _, ok := x.(*ast.Unpack); ok {
			return true
		}
	}
	return false
}

func moduleName(m *ast.ModuleRef) string {
	return strings.Join(m.Path, ".")
}

func literalObject(v interface{}) Object {
	switch v := v.(type) {
	case nil:
		return None
	case int64:
		return Int(v)
	case float64:
		return Float(v)
	case string:
		return String(v)
	case bool:
		return Bool(v)
	}
	panic(fmt.Errorf("invalid literal %T", v))
}
