package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/ozanh/ulan"
	"github.com/ozanh/ulan/tests"
)

func testApp(t *testing.T, cfgPath string, out io.Writer) *app {
	t.Helper()
	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	a := newApp(cfg, false)
	a.log.SetOutput(io.Discard)
	a.stdout = out
	a.stderr = out
	return a
}

func TestConfig(t *testing.T) {
	dir := t.TempDir()
	tests.WriteFiles(t, dir, map[string]string{
		"ulan.toml": `
debug = true

[modules]
paths = ["lib"]

[trace]
parser = true

[run]
timeout = "2s"
max-frames = 64
`,
		"src/main.ulan": "let x = 1;",
	})

	path := findConfig(filepath.Join(dir, "src"))
	require.Equal(t, filepath.Join(dir, "ulan.toml"), path)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.True(t, cfg.Debug)
	require.Equal(t, []string{"lib"}, cfg.Modules.Paths)
	require.True(t, cfg.Trace.Parser)
	require.False(t, cfg.Trace.Compiler)
	require.Equal(t, 64, cfg.Run.MaxFrames)
	require.Equal(t, dir, cfg.dir)
	require.Equal(t, ".ulan", cfg.ext())

	d, err := cfg.timeout("")
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, d)
	d, err = cfg.timeout("10ms")
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, d)
	_, err = cfg.timeout("x")
	require.Error(t, err)

	cfg.setTrace("compiler")
	require.True(t, cfg.Trace.Compiler)

	cfg, err = loadConfig("")
	require.NoError(t, err)
	require.Empty(t, cfg.Modules.Paths)
	require.Equal(t, ".", cfg.dir)

	bad := t.TempDir()
	tests.WriteFiles(t, bad, map[string]string{
		"a.toml": "[modules]\next = \"ulan\"\n",
		"b.toml": "[run]\ntimeout = \"soon\"\n",
		"c.toml": "[run\n",
	})
	for _, name := range []string{"a.toml", "b.toml", "c.toml"} {
		_, err = loadConfig(filepath.Join(bad, name))
		require.Error(t, err, name)
	}
}

func TestConfig_Globals(t *testing.T) {
	buf := tests.CapturePrint(t)
	dir := t.TempDir()
	tests.WriteFiles(t, dir, map[string]string{
		"ulan.toml": `
[globals]
name = "ulan"
answer = 42
ratio = 0.5
flags = [true, false]

[globals.nested]
k = 1
`,
		"main.ulan": "::print(name, answer, ratio, ::len(flags), nested[{[k]}]);\n",
		"bad.toml":  "[globals]\nbad = 1979-05-27T07:32:00Z\n",
	})

	a := testApp(t, filepath.Join(dir, "ulan.toml"), io.Discard)
	require.Equal(t, []string{"answer", "flags", "name", "nested", "ratio"},
		a.cfg.globalNames())
	require.Equal(t, a.cfg.globalNames(), a.compilerOptions("x").Globals)

	require.NoError(t, a.runFile(context.Background(), filepath.Join(dir, "main.ulan")))
	require.Equal(t, "ulan 42 0.5 2 1\n", buf.String())

	// offset date times are converted as well
	cfg, err := loadConfig(filepath.Join(dir, "bad.toml"))
	require.NoError(t, err)
	d, err := cfg.globalDict()
	require.NoError(t, err)
	v, _ := d.GetStr("bad")
	require.Equal(t, ulan.String("1979-05-27T07:32:00Z"), v)
}

func TestApp_Run(t *testing.T) {
	buf := tests.CapturePrint(t)
	dir := t.TempDir()
	tests.WriteFiles(t, dir, map[string]string{
		"ulan.toml":      "[modules]\npaths = [\"lib\"]\n",
		"lib/util.ulan":  "let value = 41;\n",
		"main.ulan":      "let v = util::value;\n::print(v .add. 1);\n",
		"loop.ulan":      "def f(n): return f(n); end\nf(1);\n",
		"raise.ulan":     "let (a, b) = (1, 2, 3);\n",
		"strings.ulan":   "::print(strings::ToUpper({[ok]}));\n",
		"undefined.ulan": "y;\n",
	})

	a := testApp(t, filepath.Join(dir, "ulan.toml"), io.Discard)
	ctx := context.Background()

	require.NoError(t, a.runFile(ctx, filepath.Join(dir, "main.ulan")))
	require.Equal(t, "42\n", buf.String())

	buf.Reset()
	require.NoError(t, a.runFile(ctx, filepath.Join(dir, "strings.ulan")))
	require.Equal(t, "OK\n", buf.String())

	err := a.runFile(ctx, filepath.Join(dir, "raise.ulan"))
	require.ErrorIs(t, err, ulan.ErrMatchException)

	err = a.runFile(ctx, filepath.Join(dir, "undefined.ulan"))
	require.ErrorIs(t, err, ulan.ErrScope)

	a.cfg.Run.MaxFrames = 16
	err = a.runFile(ctx, filepath.Join(dir, "loop.ulan"))
	require.ErrorIs(t, err, ulan.ErrStackOverflow)

	err = a.runFile(ctx, filepath.Join(dir, "missing.ulan"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApp_Build(t *testing.T) {
	buf := tests.CapturePrint(t)
	dir := t.TempDir()
	tests.WriteFiles(t, dir, map[string]string{
		"main.ulan": "def f(a, *b): return b; end\nlet (x, y) = f(0, 1, 2);\n::print(x, y);\n",
		"bad.ulan":  "let = ;\n",
	})

	a := testApp(t, "", io.Discard)
	out, err := a.build(filepath.Join(dir, "main.ulan"), "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "main.ulc"), out)

	require.NoError(t, a.runFile(context.Background(), out))
	require.Equal(t, "1 2\n", buf.String())

	custom := filepath.Join(dir, "custom.ulc")
	out, err = a.build(filepath.Join(dir, "main.ulan"), custom)
	require.NoError(t, err)
	require.Equal(t, custom, out)

	_, err = a.build(filepath.Join(dir, "bad.ulan"), "")
	require.Error(t, err)
	_, err = os.Stat(filepath.Join(dir, "bad.ulc"))
	require.True(t, os.IsNotExist(err))
}

func TestApp_CheckAndDis(t *testing.T) {
	dir := t.TempDir()
	tests.WriteFiles(t, dir, map[string]string{
		"ok.ulan":        "let x = 1;\n",
		"sub/scope.ulan": "let a = 1;\ny;\n",
		"sub/parse.ulan": "let (a = 1;\n",
		"notes.txt":      "not a source file",
	})

	out := bytes.NewBuffer(nil)
	a := testApp(t, "", out)

	require.NoError(t, a.checkFiles(filepath.Join(dir, "ok.ulan")))

	err := a.checkFiles(dir)
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 2)

	var cerr *ulan.CompilerError
	for _, e := range merr.Errors {
		require.True(t, errors.As(e, &cerr))
	}

	printDiagnostic(out, err)
	require.Contains(t, out.String(), "ScopeError")
	require.Contains(t, out.String(), "|  y;")

	out.Reset()
	require.NoError(t, a.disassemble(filepath.Join(dir, "ok.ulan")))
	require.Contains(t, out.String(), "LOAD_CONST")
	require.Contains(t, out.String(), "RETURN_VALUE")
}

func TestPrintCompilerError(t *testing.T) {
	out := bytes.NewBuffer(nil)
	printDiagnostic(out, &ulan.CompilerError{
		Kind:     ulan.ErrScope,
		Filename: "a.ulan",
		Line:     12,
		Column:   3,
		LineText: "x y",
		Msg:      "boom",
	})
	s := out.String()
	require.Contains(t, s, "ScopeError")
	require.Contains(t, s, "a.ulan:12:3")
	require.Contains(t, s, "|  x y")
	require.Contains(t, s, "   |  ")
	require.Contains(t, s, "boom")

	out.Reset()
	printDiagnostic(out, errors.New("plain"))
	require.Contains(t, out.String(), "plain")
}

func TestREPL(t *testing.T) {
	initSuggestions()
	out := bytes.NewBuffer(nil)
	printed := tests.CapturePrint(t)

	r := newREPL(context.Background(), testApp(t, "", out), out)

	require.NoError(t, r.execute(""))
	require.NoError(t, r.execute("let x = 1;"))
	require.False(t, r.isMultiline)

	out.Reset()
	require.NoError(t, r.execute("x .add. 1;"))
	require.Contains(t, out.String(), "⇦   2")
	require.Equal(t, ulan.Int(2), r.lastResult)

	require.NoError(t, r.execute("if x .eq. 1:"))
	require.True(t, r.isMultiline)
	require.Equal(t, promptPrefix2, r.prefix())
	require.NoError(t, r.execute("::print({[one]});"))
	require.True(t, r.isMultiline)
	require.NoError(t, r.execute("end"))
	require.False(t, r.isMultiline)
	require.Equal(t, promptPrefix, r.prefix())
	require.Equal(t, "one\n", printed.String())

	out.Reset()
	require.NoError(t, r.execute(".code"))
	require.Contains(t, out.String(), "RETURN_VALUE")
	out.Reset()
	require.NoError(t, r.execute("z;"))
	require.Contains(t, out.String(), "ScopeError")
	require.False(t, r.isMultiline)

	out.Reset()
	require.NoError(t, r.execute(".globals"))
	require.Contains(t, out.String(), "x")

	require.Contains(t, complete("pri"), "print")
	require.Contains(t, complete("x"), "x")
	require.Empty(t, complete(""))

	require.Equal(t, errReset, r.execute(".reset"))
	require.Equal(t, errExit, r.execute(".exit"))
}
