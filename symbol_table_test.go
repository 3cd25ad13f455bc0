package ulan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymbolTable(t *testing.T) {
	st := NewSymbolTable()
	fs := st.FileScope()
	require.True(t, st.IsGlobalScope(fs))

	g := st.Declare(fs, "g")
	require.Equal(t, ScopeGlobal, g.Scope)
	require.False(t, g.Cell())

	fn := st.Fork(fs)
	require.False(t, st.IsGlobalScope(fn))
	require.Equal(t, fn, st.FunctionScope(fn))

	arg := st.DeclareHidden(fn, ".a")
	a := st.Declare(fn, "a")
	b := st.Declare(fn, "b")
	require.Equal(t, ScopeLocal, a.Scope)

	sym, ok := st.Resolve(fn, "g")
	require.True(t, ok)
	require.Same(t, g, sym)
	_, ok = st.Resolve(fn, ".a")
	require.False(t, ok)

	inner := st.Fork(fn)
	free, ok := st.Resolve(inner, "a")
	require.True(t, ok)
	require.Equal(t, ScopeFree, free.Scope)
	require.Same(t, a, free.Original)
	require.True(t, a.Captured)
	require.True(t, free.Cell())
	require.True(t, a.Cell())

	// resolved again from the same function, the free symbol is reused
	again, ok := st.Resolve(inner, "a")
	require.True(t, ok)
	require.Same(t, free, again)

	_, ok = st.ResolveOwn(inner, "b")
	require.False(t, ok)
	_, ok = st.Resolve(inner, "missing")
	require.False(t, ok)

	st.Finalize(inner)
	st.Finalize(fn)

	varNames, cellVars, freeVars := st.Slots(fn)
	require.Equal(t, []string{".a", "b"}, varNames)
	require.Equal(t, []string{"a"}, cellVars)
	require.Empty(t, freeVars)
	require.Equal(t, 0, arg.Index)
	require.Equal(t, 1, b.Index)
	require.Equal(t, 0, a.Index)

	varNames, cellVars, freeVars = st.Slots(inner)
	require.Empty(t, varNames)
	require.Empty(t, cellVars)
	require.Equal(t, []string{"a"}, freeVars)
	require.Equal(t, 0, free.Index)
	require.Equal(t, []*Symbol{free}, st.Frees(inner))

	require.Panics(t, func() { st.Declare(fn, "late") })
	require.Panics(t, func() { st.Declare(fn, "b") })
}

func TestSymbolTable_Blocks(t *testing.T) {
	st := NewSymbolTable()
	fn := st.Fork(st.FileScope())

	block, arms := st.ForkBlock(fn, 2)
	require.Len(t, arms, 2)
	require.Equal(t, fn, st.FunctionScope(arms[1]))

	x1 := st.Declare(arms[0], "x")
	_, ok := st.Resolve(arms[1], "x")
	require.False(t, ok)
	_, ok = st.Resolve(fn, "x")
	require.False(t, ok)

	// both arms bind the same symbol
	x2 := st.Declare(arms[1], "x")
	require.Same(t, x1, x2)

	// nested blocks declare in the outermost block
	nested, narms := st.ForkBlock(arms[1], 1)
	y := st.Declare(narms[0], "y")
	st.CloseBlock(nested)
	sym, ok := st.Resolve(arms[1], "y")
	require.True(t, ok)
	require.Same(t, y, sym)

	st.CloseBlock(block)
	sym, ok = st.Resolve(fn, "x")
	require.True(t, ok)
	require.Same(t, x1, sym)
	sym, ok = st.Resolve(fn, "y")
	require.True(t, ok)
	require.Same(t, y, sym)

	require.Equal(t, []string{"x", "y"}, st.VisibleNames(fn))

	st.Finalize(fn)
	varNames, _, _ := st.Slots(fn)
	require.Equal(t, []string{"x", "y"}, varNames)

	require.Panics(t, func() { st.Finalize(block) })

	// blocks of the file scope declare globals
	gblock, garms := st.ForkBlock(st.FileScope(), 1)
	z := st.Declare(garms[0], "z")
	st.CloseBlock(gblock)
	require.Equal(t, ScopeGlobal, z.Scope)
	require.True(t, st.IsGlobalScope(garms[0]))
}

func TestClosestName(t *testing.T) {
	require.Equal(t, "value", closestName("vlue", []string{"other", "value"}))
	require.Equal(t, "value", closestName("valeu", []string{"other", "value"}))
	require.Equal(t, "", closestName("zzz", []string{"value"}))
	require.Equal(t, "", closestName("x", nil))
}
