package ast_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ozanh/ulan/ast"
	"github.com/ozanh/ulan/parser"
)

func transform(t *testing.T, src string) *ast.File {
	t.Helper()
	pf, err := parser.ParseSource("test", []byte(src), nil)
	require.NoError(t, err, src)
	f, err := ast.Transform(pf)
	require.NoError(t, err, src)
	return f
}

func firstExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	f := transform(t, src)
	require.Len(t, f.Body, 1)
	return f.Body[0].(*ast.ExprStmt).X
}

func TestTransformModules(t *testing.T) {
	testCases := []struct {
		src   string
		level int
		path  []string
	}{
		{"::;", 0, []string{"builtins"}},
		{"mod::;", 0, []string{"mod"}},
		{"a::b::;", 0, []string{"a", "b"}},
		{"self::;", 1, nil},
		{"self::a::;", 1, []string{"a"}},
		{"super::;", 2, nil},
		{"super::super::;", 3, nil},
		{"super::super::a::;", 3, []string{"a"}},
	}
	for _, tC := range testCases {
		m, ok := firstExpr(t, tC.src).(*ast.ModuleRef)
		require.True(t, ok, tC.src)
		require.Equal(t, tC.level, m.Level, tC.src)
		require.Equal(t, tC.path, m.Path, tC.src)
	}

	attr := firstExpr(t, "a::b::c;").(*ast.ModuleAttribute)
	require.Equal(t, "c", attr.Identifier)
	require.Equal(t, []string{"a", "b"}, attr.Module.Path)

	attr = firstExpr(t, "::print;").(*ast.ModuleAttribute)
	require.Equal(t, "print", attr.Identifier)
	require.Equal(t, []string{"builtins"}, attr.Module.Path)

	plain := firstExpr(t, "p->x;").(*ast.Attribute)
	require.Equal(t, "x", plain.Identifier)
	require.IsType(t, &ast.Name{}, plain.Value)
}

func TestTransformLiterals(t *testing.T) {
	testCases := []struct {
		src    string
		expect interface{}
	}{
		{"1;", int64(1)},
		{"0x1F;", int64(31)},
		{"0o17;", int64(15)},
		{"1.5;", 1.5},
		{"1e3;", 1000.0},
		{"{[a b]};", "a b"},
		{"{-[ a ]-};", "a"},
	}
	for _, tC := range testCases {
		lit := firstExpr(t, tC.src).(*ast.Literal)
		require.Equal(t, tC.expect, lit.Value, tC.src)
	}

	ret := transform(t, "return;").Body[0].(*ast.Return)
	require.Nil(t, ret.Value.(*ast.Literal).Value)

	// parentheses leave no node
	require.IsType(t, &ast.Name{}, firstExpr(t, "((a));"))
}

func TestTransformPatterns(t *testing.T) {
	m := firstExpr(t, "let (a, *b) is [c] = x;").(*ast.Match)
	and := m.Pattern.(*ast.AndPattern)
	tuple := and.Left.(*ast.TuplePattern)
	require.Len(t, tuple.Elems, 2)
	require.Equal(t, "a", tuple.Elems[0].(*ast.NamePattern).Name)
	rest := tuple.Elems[1].(*ast.RestPattern)
	require.False(t, rest.Mapping)
	require.Equal(t, "b", rest.Pattern.(*ast.NamePattern).Name)
	require.IsType(t, &ast.ListPattern{}, and.Right)
	require.IsType(t, &ast.Name{}, m.Value)

	m = firstExpr(t, "let {1: a = 2, **r} = x;").(*ast.Match)
	dict := m.Pattern.(*ast.DictPattern)
	require.Len(t, dict.Elems, 2)
	field := dict.Elems[0].(*ast.FieldPattern)
	require.Equal(t, int64(1), field.Key.(*ast.Literal).Value)
	require.NotNil(t, field.Default)
	require.True(t, dict.Elems[1].(*ast.RestPattern).Mapping)

	m = firstExpr(t, "let f(x, 1, *y, k:z=3) = v;").(*ast.Match)
	call := m.Pattern.(*ast.CallPattern)
	require.IsType(t, &ast.Name{}, call.Func)
	require.Len(t, call.Args, 3)
	require.IsType(t, &ast.LiteralPattern{}, call.Args[1])
	require.Len(t, call.Keywords, 1)
	kw := call.Keywords[0].(*ast.KeywordPattern)
	require.Equal(t, "k", kw.Name)
	require.Equal(t, "z", kw.Pattern.(*ast.NamePattern).Name)
	require.NotNil(t, kw.Default)

	m = firstExpr(t, "let {/} = v;").(*ast.Match)
	require.Empty(t, m.Pattern.(*ast.SetPattern).Elems)
}

func TestTransformCallsAndFunctions(t *testing.T) {
	call := firstExpr(t, "f(a, b:1, *c, **d);").(*ast.Call)
	require.Len(t, call.Args, 2)
	require.IsType(t, &ast.Unpack{}, call.Args[1])
	require.Len(t, call.Keywords, 2)
	require.Equal(t, "b", call.Keywords[0].(*ast.Keyword).Name)
	require.True(t, call.Keywords[1].(*ast.Unpack).Mapping)

	f := transform(t, "def f(a, b=1, *c, d, **e): return a; end")
	fn := f.Body[0].(*ast.Function)
	require.Equal(t, "f", fn.Name)
	require.Len(t, fn.Args.Args, 2)
	require.Nil(t, fn.Args.Args[0].Default)
	require.NotNil(t, fn.Args.Args[1].Default)
	require.Equal(t, "c", fn.Args.Vararg.Pattern.(*ast.NamePattern).Name)
	require.Len(t, fn.Args.KwOnly, 1)
	require.True(t, fn.Args.Kwarg.Mapping)
	require.IsType(t, &ast.Return{}, fn.Body[0])

	ifs := transform(t, "if a: b; else if c: d; else: e; end").Body[0].(*ast.If)
	require.Len(t, ifs.Orelse, 1)
	inner := ifs.Orelse[0].(*ast.If)
	require.Len(t, inner.Orelse, 1)
}

func TestTransformIDs(t *testing.T) {
	f := transform(t, "let (a, b) = (1, 2); def g(x): return x; end")
	require.Equal(t, ast.ID(0), f.ID())

	seen := map[ast.ID]bool{f.ID(): true}
	add := func(n ast.Node) {
		require.False(t, seen[n.ID()], "duplicate id %d", n.ID())
		require.Less(t, int(n.ID()), f.NumIDs)
		seen[n.ID()] = true
	}

	m := f.Body[0].(*ast.ExprStmt).X.(*ast.Match)
	add(f.Body[0])
	add(m)
	add(m.Pattern)
	for _, p := range m.Pattern.(*ast.TuplePattern).Elems {
		add(p)
	}
	add(m.Value)
	for _, x := range m.Value.(*ast.Tuple).Elems {
		add(x)
	}
	fn := f.Body[1].(*ast.Function)
	add(fn)
	add(fn.Args)
	add(fn.Args.Args[0])
	add(fn.Args.Args[0].Pattern)
}

func TestTransformErrors(t *testing.T) {
	testCases := []struct {
		src string
		msg string
	}{
		{"self::self::;", "self not allowed"},
		{"a::super::;", "super not allowed"},
		{"self::a::super::;", "super not allowed"},
		{"def f(a, a): end", "duplicate argument 'a'"},
		{"def f(a, *b, a): end", "duplicate argument 'a'"},
		{"99999999999999999999;", "invalid number literal 99999999999999999999"},
	}
	for _, tC := range testCases {
		pf, err := parser.ParseSource("test", []byte(tC.src), nil)
		require.NoError(t, err, tC.src)
		_, err = ast.Transform(pf)
		require.Error(t, err, tC.src)
		var e *ast.Error
		require.True(t, errors.As(err, &e), tC.src)
		require.Equal(t, tC.msg, e.Msg, tC.src)
		require.Equal(t, 1, e.Pos.Line, tC.src)
	}
}
