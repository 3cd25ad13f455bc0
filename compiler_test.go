package ulan_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	. "github.com/ozanh/ulan"
)

func compileError(t *testing.T, src string) *CompilerError {
	t.Helper()
	code, err := Compile([]byte(src), CompilerOptions{Filename: "test"})
	require.Error(t, err, src)
	require.Nil(t, code, src)
	var ce *CompilerError
	require.True(t, errors.As(err, &ce), src)
	return ce
}

func TestCompilerErrorKinds(t *testing.T) {
	testCases := []struct {
		src  string
		kind *Error
	}{
		{"let (a = 1;", ErrParse},
		{"if 1:", ErrIncompleteInput},
		{"def f(a):", ErrIncompleteInput},
		{"1 $ 2;", ErrLex},
		{"def f(a, a): end", ErrSyntax},
		{"self::self::x;", ErrSyntax},
		{"x;", ErrScope},
		{"def f(): return y; end", ErrScope},
		{"def f(): return y; end let y = 1;", ErrScope},
	}
	for _, tC := range testCases {
		ce := compileError(t, tC.src)
		require.Same(t, tC.kind, ce.Kind, tC.src)
		require.ErrorIs(t, ce, tC.kind, tC.src)
		require.Equal(t, "test", ce.Filename, tC.src)
		require.NotNil(t, ce.Err, tC.src)
	}
}

func TestCompilerErrorPosition(t *testing.T) {
	ce := compileError(t, "let value = 1;\nvalu;")
	require.Equal(t, 2, ce.Line)
	require.Equal(t, 1, ce.Column)
	require.Equal(t, "valu;", ce.LineText)
	require.Contains(t, ce.Msg, "name 'valu' is not defined")
	require.Contains(t, ce.Msg, "did you mean 'value'?")

	s := ce.Error()
	require.True(t, strings.HasPrefix(s, "File \"test\", line 2\n"), s)
	require.Contains(t, s, "    valu;\n    ^\n")
	require.True(t, strings.HasSuffix(s, "ScopeError: "+ce.Msg), s)

	// names bound by an earlier run are not reported
	_, err := Compile([]byte("valu;"), CompilerOptions{Globals: []string{"valu"}})
	require.NoError(t, err)
}

func TestCompilerErrorCaret(t *testing.T) {
	ce := &CompilerError{LineText: "\tab x", Column: 3}
	require.Equal(t, "\t ^", ce.Caret())
	ce = &CompilerError{LineText: "abc", Column: 1}
	require.Equal(t, "^", ce.Caret())
	ce = &CompilerError{Kind: ErrParse, Filename: "f", Line: 1, Msg: "oops"}
	require.Equal(t, "File \"f\", line 1\nParseError: oops", ce.Error())
}

func TestCompileDisassemble(t *testing.T) {
	code, err := Compile([]byte("def f(a): return a; end let x = f(1);"),
		CompilerOptions{Filename: "dir/dis.ulan"})
	require.NoError(t, err)
	require.Equal(t, "dis.ulan", code.Name)
	require.Equal(t, "dir/dis.ulan", code.Filename)

	s := code.Disassemble()
	require.Contains(t, s, "Disassembly of <code object dis.ulan")
	require.Contains(t, s, "Disassembly of <code object f")
	for _, op := range []string{"LOAD_CONST", "MAKE_FUNCTION", "CALL_FUNCTION", "RETURN_VALUE"} {
		require.Contains(t, s, op)
	}

	var fn *Code
	for _, c := range code.Consts {
		if v, ok := c.(*Code); ok {
			fn = v
		}
	}
	require.NotNil(t, fn)
	require.Equal(t, "f", fn.Name)
	require.Equal(t, 1, fn.FirstLineNo)
}

func TestCompileCellVars(t *testing.T) {
	code, err := Compile([]byte(`
def f(a, b):
	def g(): return a; end
	return (g, b);
end`), DefaultCompilerOptions)
	require.NoError(t, err)

	var f *Code
	for _, c := range code.Consts {
		if v, ok := c.(*Code); ok {
			f = v
		}
	}
	require.NotNil(t, f)
	// names bound by patterns live in cells, the hidden argument slots and
	// the function name do not
	require.ElementsMatch(t, []string{"a", "b"}, f.CellVars)
	require.ElementsMatch(t, []string{".a", ".b", "g"}, f.VarNames)

	var g *Code
	for _, c := range f.Consts {
		if v, ok := c.(*Code); ok {
			g = v
		}
	}
	require.NotNil(t, g)
	require.Equal(t, []string{"a"}, g.FreeVars)
	require.Empty(t, g.CellVars)
}

func TestCompileDeterministic(t *testing.T) {
	src := []byte(`
let {{[a]}: a, {[b]}: b, **rest} = {{[a]}: 1, {[b]}: 2};
let {x, *s} = {1, 2, 3};
def f(p, *q, k=1, **kw):
	def g(): return (p, q, k, kw); end
	return g;
end
`)
	first, err := Compile(src, DefaultCompilerOptions)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		code, err := Compile(src, DefaultCompilerOptions)
		require.NoError(t, err)
		require.Equal(t, first.Disassemble(), code.Disassemble())
	}
}

func TestCompileTrace(t *testing.T) {
	var buf bytes.Buffer
	opts := TraceCompilerOptions
	opts.Trace = &buf
	_, err := Compile([]byte("let (a, b) = (1, 2);"), opts)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "<code")
	require.Contains(t, buf.String(), "File")

	// compiler trace only
	buf.Reset()
	opts.TraceParser = false
	_, err = Compile([]byte("1;"), opts)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "<code (main)")
}

func TestCompileLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	_, err := Compile([]byte("let x = 1;"), CompilerOptions{Filename: "log", Logger: logger})
	require.NoError(t, err)

	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, e.Message)
		require.Equal(t, "log", e.Data["file"])
	}
	require.Equal(t, []string{"parsed", "transformed", "resolved", "compiled"}, msgs)
	require.Contains(t, hook.LastEntry().Data, "bytes")

	hook.Reset()
	_, err = Compile([]byte("let x"), CompilerOptions{Logger: logger})
	require.Error(t, err)
	require.Empty(t, hook.AllEntries())
}
