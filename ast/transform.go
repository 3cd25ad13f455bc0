// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ast

import (
	"fmt"
	"strconv"

	"github.com/ozanh/ulan/parser"
	"github.com/ozanh/ulan/token"
)

// Error is returned by Transform for illegal module paths and literals.
type Error struct {
	Pos parser.SourceFilePos
	Msg string
}

func (e *Error) Error() string {
	if e.Pos.Filename != "" || e.Pos.IsValid() {
		return fmt.Sprintf("Syntax Error: %s\n\tat %s", e.Msg, e.Pos)
	}
	return "Syntax Error: " + e.Msg
}

type bailout struct{}

type transformer struct {
	file   *parser.SourceFile
	nextID ID
	err    *Error
}

// Transform rewrites a parse tree into a semantic tree. Module references are
// resolved into level/path form, attributes of modules become
// ModuleAttribute nodes and pattern positions get pattern nodes.
func Transform(pf *parser.File) (file *File, err error) {
	t := &transformer{file: pf.InputFile}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			file, err = nil, t.err
		}
	}()

	file = &File{InputFile: pf.InputFile}
	file.base = t.base(pf.Pos())
	file.Body = t.stmts(pf.Stmts)
	file.NumIDs = int(t.nextID)
	return file, nil
}

func (t *transformer) base(pos parser.Pos) base {
	id := t.nextID
	t.nextID++
	return base{id: id, pos: pos}
}

func (t *transformer) ebase(pos parser.Pos) exprBase {
	return exprBase{t.base(pos)}
}

func (t *transformer) pbase(pos parser.Pos) patternBase {
	return patternBase{t.base(pos)}
}

func (t *transformer) error(pos parser.Pos, msg string) {
	t.err = &Error{Pos: t.file.Position(pos), Msg: msg}
	panic(bailout{})
}

func (t *transformer) stmts(list []parser.Stmt) []Stmt {
	out := make([]Stmt, 0, len(list))
	for _, s := range list {
		out = append(out, t.stmt(s))
	}
	return out
}

func (t *transformer) stmt(s parser.Stmt) Stmt {
	switch s := s.(type) {
	case *parser.ExprStmt:
		return &ExprStmt{stmtBase: stmtBase{t.base(s.Pos())}, X: t.expr(s.Expr)}
	case *parser.ReturnStmt:
		n := &Return{stmtBase: stmtBase{t.base(s.Pos())}}
		if s.Result != nil {
			n.Value = t.expr(s.Result)
		} else {
			n.Value = &Literal{exprBase: t.ebase(s.Pos())}
		}
		return n
	case *parser.IfStmt:
		return &If{
			stmtBase: stmtBase{t.base(s.Pos())},
			Test:     t.expr(s.Cond),
			Body:     t.stmts(s.Body),
			Orelse:   t.stmts(s.Else),
		}
	case *parser.FuncStmt:
		return &Function{
			stmtBase: stmtBase{t.base(s.Pos())},
			Name:     s.Name.Name,
			NamePos:  s.Name.Pos(),
			Args:     t.arguments(s.Params),
			Body:     t.stmts(s.Body),
		}
	}
	panic(fmt.Errorf("unexpected statement %T", s))
}

func (t *transformer) arguments(pl *parser.ParamList) *Arguments {
	args := &Arguments{base: t.base(pl.Pos())}
	seen := make(map[string]bool)
	param := func(kw *parser.KeywordExpr) *KeywordPattern {
		if seen[kw.Name.Name] {
			t.error(kw.Pos(), fmt.Sprintf("duplicate argument '%s'", kw.Name.Name))
		}
		seen[kw.Name.Name] = true
		return t.keywordPattern(kw)
	}

	for _, kw := range pl.Args {
		args.Args = append(args.Args, param(kw))
	}
	if pl.Vararg != nil {
		args.Vararg = t.restPattern(pl.Vararg)
	}
	for _, kw := range pl.KwOnly {
		args.KwOnly = append(args.KwOnly, param(kw))
	}
	if pl.Kwarg != nil {
		args.Kwarg = t.restPattern(pl.Kwarg)
	}
	return args
}

func (t *transformer) exprs(list []parser.Expr) []Expr {
	out := make([]Expr, 0, len(list))
	for _, e := range list {
		out = append(out, t.expr(e))
	}
	return out
}

func (t *transformer) expr(x parser.Expr) Expr {
	switch x := x.(type) {
	case *parser.BasicLit:
		return &Literal{exprBase: t.ebase(x.Pos()), Value: t.literal(x)}
	case *parser.Ident:
		return &Name{exprBase: t.ebase(x.Pos()), Name: x.Name}
	case *parser.ParenExpr:
		return t.expr(x.Expr)
	case *parser.UnpackExpr:
		return &Unpack{
			exprBase: t.ebase(x.Pos()),
			Value:    t.expr(x.Expr),
			Mapping:  x.Token == token.MapUnpack,
		}
	case *parser.TupleLit:
		return &Tuple{exprBase: t.ebase(x.Pos()), Elems: t.exprs(x.Elems)}
	case *parser.ListLit:
		return &List{exprBase: t.ebase(x.Pos()), Elems: t.exprs(x.Elems)}
	case *parser.SetLit:
		return &Set{exprBase: t.ebase(x.Pos()), Elems: t.exprs(x.Elems)}
	case *parser.DictLit:
		return &Dict{exprBase: t.ebase(x.Pos()), Elems: t.exprs(x.Elems)}
	case *parser.FieldExpr:
		if x.Default != nil {
			t.error(x.Default.Pos(), "default value is not allowed in an expression")
		}
		return &Field{
			exprBase: t.ebase(x.Pos()),
			Key:      t.expr(x.Key),
			Value:    t.expr(x.Value),
		}
	case *parser.KeywordExpr:
		if x.Default != nil {
			t.error(x.Default.Pos(), "default value is not allowed in an expression")
		}
		return &Keyword{
			exprBase: t.ebase(x.Pos()),
			Name:     x.Name.Name,
			Value:    t.expr(x.Value),
		}
	case *parser.CallExpr:
		call := &Call{exprBase: t.ebase(x.Pos()), Func: t.expr(x.Func)}
		call.Args = t.exprs(x.Args)
		for _, kw := range t.exprs(x.Keywords) {
			// *x after keywords still spreads positional arguments
			if u, ok := kw.(*Unpack); ok && !u.Mapping {
				call.Args = append(call.Args, u)
				continue
			}
			call.Keywords = append(call.Keywords, kw)
		}
		return call
	case *parser.SubscriptExpr:
		return &Subscript{
			exprBase: t.ebase(x.Pos()),
			Value:    t.expr(x.Expr),
			Index:    t.expr(x.Index),
		}
	case *parser.AttrExpr:
		value := t.expr(x.Expr)
		if m, ok := value.(*ModuleRef); ok {
			return &ModuleAttribute{
				exprBase:   t.ebase(x.Pos()),
				Module:     m,
				Identifier: x.Sel.Name,
			}
		}
		return &Attribute{
			exprBase:   t.ebase(x.Pos()),
			Value:      value,
			Identifier: x.Sel.Name,
		}
	case *parser.ModuleExpr:
		return t.module(x)
	case *parser.BinaryExpr:
		return &BinOp{
			exprBase: t.ebase(x.Pos()),
			Left:     t.expr(x.X),
			Op:       t.expr(x.Op),
			Right:    t.expr(x.Y),
		}
	case *parser.UnaryExpr:
		return &UnaryOp{
			exprBase: t.ebase(x.Pos()),
			Op:       t.expr(x.Op),
			Operand:  t.expr(x.Expr),
		}
	case *parser.IsExpr:
		return &Is{
			exprBase: t.ebase(x.Pos()),
			Left:     t.expr(x.X),
			Right:    t.expr(x.Y),
		}
	case *parser.MatchExpr:
		return &Match{
			exprBase: t.ebase(x.Pos()),
			Pattern:  t.pattern(x.Pattern),
			Value:    t.expr(x.Value),
		}
	}
	t.error(x.Pos(), fmt.Sprintf("%s is not valid as an expression", x))
	return nil
}

func (t *transformer) module(x *parser.ModuleExpr) *ModuleRef {
	name := x.Name
	if name == "" {
		name = "builtins"
	}

	if x.Parent == nil {
		m := &ModuleRef{exprBase: t.ebase(x.NamePos)}
		switch name {
		case "self":
			m.Level = 1
		case "super":
			m.Level = 2
		default:
			m.Path = []string{name}
		}
		return m
	}

	parent := t.module(x.Parent)
	level, path := parent.Level, parent.Path
	switch name {
	case "self":
		t.error(x.NamePos, "self not allowed")
	case "super":
		if level < 2 || len(path) > 0 {
			t.error(x.NamePos, "super not allowed")
		}
		return &ModuleRef{exprBase: t.ebase(x.Pos()), Level: level + 1}
	}

	newPath := make([]string, len(path), len(path)+1)
	copy(newPath, path)
	return &ModuleRef{
		exprBase: t.ebase(x.Pos()),
		Level:    level,
		Path:     append(newPath, name),
	}
}

func (t *transformer) literal(x *parser.BasicLit) interface{} {
	var (
		v   interface{}
		err error
	)

	switch x.Token {
	case token.Int:
		v, err = strconv.ParseInt(x.Value, 10, 64)
	case token.Hex:
		v, err = strconv.ParseInt(x.Value[2:], 16, 64)
	case token.Oct:
		v, err = strconv.ParseInt(x.Value[2:], 8, 64)
	case token.Float:
		v, err = strconv.ParseFloat(x.Value, 64)
	case token.String, token.StripString:
		return x.Value
	default:
		t.error(x.Pos(), fmt.Sprintf("Invalid token %q", x.Value))
	}

	if err != nil {
		t.error(x.Pos(), fmt.Sprintf("invalid number literal %s", x.Value))
	}
	return v
}

func (t *transformer) patterns(list []parser.Expr) []Pattern {
	out := make([]Pattern, 0, len(list))
	for _, e := range list {
		out = append(out, t.pattern(e))
	}
	return out
}

func (t *transformer) pattern(x parser.Expr) Pattern {
	switch x := x.(type) {
	case *parser.BasicLit:
		return &LiteralPattern{patternBase: t.pbase(x.Pos()), Value: t.literal(x)}
	case *parser.Ident:
		return &NamePattern{patternBase: t.pbase(x.Pos()), Name: x.Name}
	case *parser.UnpackExpr:
		return t.restPattern(x)
	case *parser.TupleLit:
		return &TuplePattern{patternBase: t.pbase(x.Pos()), Elems: t.patterns(x.Elems)}
	case *parser.ListLit:
		return &ListPattern{patternBase: t.pbase(x.Pos()), Elems: t.patterns(x.Elems)}
	case *parser.SetLit:
		return &SetPattern{patternBase: t.pbase(x.Pos()), Elems: t.patterns(x.Elems)}
	case *parser.DictLit:
		return &DictPattern{patternBase: t.pbase(x.Pos()), Elems: t.patterns(x.Elems)}
	case *parser.FieldExpr:
		f := &FieldPattern{
			patternBase: t.pbase(x.Pos()),
			Key:         t.expr(x.Key),
			Pattern:     t.pattern(x.Value),
		}
		if x.Default != nil {
			f.Default = t.expr(x.Default)
		}
		return f
	case *parser.KeywordExpr:
		return t.keywordPattern(x)
	case *parser.CallExpr:
		return &CallPattern{
			patternBase: t.pbase(x.Pos()),
			Func:        t.expr(x.Func),
			Args:        t.patterns(x.Args),
			Keywords:    t.patterns(x.Keywords),
		}
	case *parser.IsExpr:
		return &AndPattern{
			patternBase: t.pbase(x.Pos()),
			Left:        t.pattern(x.X),
			Right:       t.pattern(x.Y),
		}
	}
	t.error(x.Pos(), fmt.Sprintf("%s is not valid as a pattern", x))
	return nil
}

func (t *transformer) keywordPattern(x *parser.KeywordExpr) *KeywordPattern {
	kw := &KeywordPattern{
		patternBase: t.pbase(x.Pos()),
		Name:        x.Name.Name,
		Pattern:     t.pattern(x.Value),
	}
	if x.Default != nil {
		kw.Default = t.expr(x.Default)
	}
	return kw
}

func (t *transformer) restPattern(x *parser.UnpackExpr) *RestPattern {
	return &RestPattern{
		patternBase: t.pbase(x.Pos()),
		Pattern:     t.pattern(x.Expr),
		Mapping:     x.Token == token.MapUnpack,
	}
}
