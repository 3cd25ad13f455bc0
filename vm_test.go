package ulan_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/ozanh/ulan"
	"github.com/ozanh/ulan/tests"
)

type testopts struct {
	globals   *Dict
	moduleMap *ModuleMap
	maxFrames int
}

func newOpts() *testopts {
	return &testopts{}
}

func (t *testopts) Globals(globals *Dict) *testopts {
	t.globals = globals
	return t
}

func (t *testopts) MaxFrames(n int) *testopts {
	t.maxFrames = n
	return t
}

func (t *testopts) Module(name string, module interface{}) *testopts {
	if t.moduleMap == nil {
		t.moduleMap = NewModuleMap()
	}
	switch v := module.(type) {
	case string:
		t.moduleMap.AddSourceModule(name, []byte(v))
	case map[string]Object:
		t.moduleMap.AddBuiltinModule(name, v)
	case Importable:
		t.moduleMap.Add(name, v)
	default:
		panic(fmt.Errorf("invalid module type: %T", module))
	}
	return t
}

func (t *testopts) compilerOptions(traced bool, trace *bytes.Buffer) CompilerOptions {
	opts := CompilerOptions{Filename: "test"}
	if t.globals != nil {
		for _, k := range t.globals.Keys() {
			opts.Globals = append(opts.Globals, k.String())
		}
	}
	if traced {
		opts.Trace = trace
		opts.TraceParser = true
		opts.TraceCompiler = true
	}
	return opts
}

func (t *testopts) run(code *Code) (Object, error) {
	var globals *Dict
	if t.globals != nil {
		globals = t.globals.Copy().(*Dict)
	}
	return NewVM(code).
		SetModuleMap(t.moduleMap).
		SetMaxFrames(t.maxFrames).
		Run(globals)
}

// runCases compiles script with and without tracing, the generated code must
// be the same for both.
func runCases(t *testing.T, script string, opts *testopts, fn func(*testing.T, *Code, error)) {
	t.Helper()
	if opts == nil {
		opts = newOpts()
	}

	var first *Code
	for _, traced := range []bool{false, true} {
		name := "default"
		if traced {
			name = "traced"
		}
		t.Run(name, func(t *testing.T) {
			t.Helper()
			var tracer bytes.Buffer
			code, err := Compile([]byte(script), opts.compilerOptions(traced, &tracer))
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(os.Stderr, "------- Start Trace -------\n%s"+
						"\n------- End Trace -------\n", tracer.String())
					panic(r)
				}
			}()
			if err == nil {
				if first == nil {
					first = code
				} else {
					require.Equal(t, first.Code, code.Code)
					require.Equal(t, first.Names, code.Names)
				}
			}
			fn(t, code, err)
		})
	}
}

func expectRun(t *testing.T, script string, opts *testopts, expect Object) {
	t.Helper()
	if opts == nil {
		opts = newOpts()
	}
	runCases(t, script, opts, func(t *testing.T, code *Code, err error) {
		t.Helper()
		require.NoError(t, err, script)
		got, err := opts.run(code)
		require.NoErrorf(t, err, "Code:\n%s\n%s", script, code.Disassemble())
		if expect.TypeName() != got.TypeName() || !expect.Equal(got) {
			t.Fatalf("Objects not equal:\nExpected:\n%s\nGot:\n%s\nScript:\n%s\n%s\n",
				tests.Sdump(expect), tests.Sdump(got), script, code.Disassemble())
		}
	})
}

func expectOutput(t *testing.T, script string, opts *testopts, expect string) {
	t.Helper()
	if opts == nil {
		opts = newOpts()
	}
	runCases(t, script, opts, func(t *testing.T, code *Code, err error) {
		t.Helper()
		require.NoError(t, err, script)
		buf := tests.CapturePrint(t)
		_, err = opts.run(code)
		require.NoErrorf(t, err, "Code:\n%s", script)
		require.Equal(t, expect, buf.String(), script)
	})
}

func expectErrIs(t *testing.T, script string, opts *testopts, expectErr error) {
	t.Helper()
	expectErrorGen(t, script, opts, func(t *testing.T, retErr error) {
		t.Helper()
		if !errors.Is(retErr, expectErr) {
			require.Failf(t, "expectErrIs Failed",
				"expected error: %v, got: %v", expectErr, retErr)
		}
	})
}

func expectErrHas(t *testing.T, script string, opts *testopts, expectMsg string) {
	t.Helper()
	if expectMsg == "" {
		panic("expected message must not be empty")
	}
	expectErrorGen(t, script, opts, func(t *testing.T, retErr error) {
		t.Helper()
		if !strings.Contains(retErr.Error(), expectMsg) {
			require.Failf(t, "expectErrHas Failed",
				"expected error: %v, got: %v", expectMsg, retErr)
		}
	})
}

func expectErrorGen(t *testing.T, script string, opts *testopts, callback func(*testing.T, error)) {
	t.Helper()
	if opts == nil {
		opts = newOpts()
	}
	runCases(t, script, opts, func(t *testing.T, code *Code, err error) {
		t.Helper()
		if err == nil {
			tests.CapturePrint(t)
			_, err = opts.run(code)
		}
		require.Error(t, err, script)
		callback(t, err)
	})
}

func TestVMReturn(t *testing.T) {
	expectRun(t, "", nil, None)
	expectRun(t, "return;", nil, None)
	expectRun(t, "return 1;", nil, Int(1))
	expectRun(t, "return 1.5;", nil, Float(1.5))
	expectRun(t, "return {[a]};", nil, String("a"))
	expectRun(t, "return (1, {[b]});", nil, Tuple{Int(1), String("b")})
	expectRun(t, "return [1, [2]];", nil, List{Int(1), List{Int(2)}})
	expectRun(t, "return (1, *[2, 3], *(4,));", nil,
		Tuple{Int(1), Int(2), Int(3), Int(4)})
	expectRun(t, "return [*(1, 2), 3];", nil, List{Int(1), Int(2), Int(3)})

	set, err := NewSet(Int(1), Int(2), Int(3))
	require.NoError(t, err)
	expectRun(t, "return {1, 2, *[3, 1]};", nil, set)
	empty, _ := NewSet()
	expectRun(t, "return {/};", nil, empty)

	d := NewDict()
	d.SetStr("a", Int(1))
	d.SetStr("b", Int(2))
	expectRun(t, "return {{[a]}: 1, **{{[b]}: 2}};", nil, d)
	expectRun(t, "return {};", nil, NewDict())

	expectRun(t, "return (1, 2)[1];", nil, Int(2))
	expectRun(t, "return {[abc]}[0];", nil, String("a"))
	expectRun(t, "return {{[k]}: 3}[{[k]}];", nil, Int(3))
	expectErrIs(t, "return (1, 2)[2];", nil, ErrIndexOutOfBounds)
	expectErrIs(t, "return {}[1];", nil, ErrKey)
	expectErrIs(t, "return 1[1];", nil, ErrNotIndexable)
	expectErrIs(t, "return 1(1);", nil, ErrNotCallable)
	expectErrIs(t, "return (1,)->x;", nil, ErrAttribute)
}

func TestVMOperators(t *testing.T) {
	expectRun(t, "return 1 .add. 2;", nil, Int(3))
	expectRun(t, "return 1 .add. 2.5;", nil, Float(3.5))
	expectRun(t, "return 5 .sub. 7;", nil, Int(-2))
	expectRun(t, "return 3 .mul. 4;", nil, Int(12))
	expectRun(t, "return 3 .div. 2;", nil, Float(1.5))
	expectRun(t, "return (.neg. 7) .mod. 3;", nil, Int(2))
	expectRun(t, "return {[ab]} .add. {[cd]};", nil, String("abcd"))
	expectRun(t, "return {[ab]} .mul. 2;", nil, String("abab"))
	expectRun(t, "return (1,) .add. (2,);", nil, Tuple{Int(1), Int(2)})
	expectRun(t, "return 1 .lt. 2;", nil, True)
	expectRun(t, "return 2 .le. 1;", nil, False)
	expectRun(t, "return 1 .eq. 1.0;", nil, True)
	expectRun(t, "return (1, 2) .ne. (1, 2);", nil, False)
	expectRun(t, "return .not. 0;", nil, True)
	expectRun(t, "return .neg. 3;", nil, Int(-3))

	// operators are plain names, bound ones win over builtins
	expectRun(t, "def add(a, b): return a .sub. b; end return 5 .add. 3;", nil, Int(2))
	expectRun(t, "let plus = ::add; return 5 .plus. 3;", nil, Int(8))

	expectErrIs(t, "return 1 .div. 0;", nil, ErrZeroDivision)
	expectErrIs(t, "return 1 .mod. 0;", nil, ErrZeroDivision)
	expectErrIs(t, "return 1.0 .div. 0;", nil, ErrZeroDivision)
	expectErrIs(t, "return 1 .add. {[a]};", nil, ErrType)
	expectErrHas(t, "return 1 .sub. {[a]};", nil,
		"unsupported operand types for sub: 'int' and 'str'")
}

func TestVMIs(t *testing.T) {
	expectRun(t, "return 1 is 1;", nil, True)
	expectRun(t, "return {[a]} is {[a]};", nil, True)
	expectRun(t, "return [1] is [1];", nil, False)
	expectRun(t, "let a = [1]; let b = a; return b is a;", nil, True)
	expectRun(t, "let a = (1, 2); return a is a;", nil, True)
	expectRun(t, "return {} is {};", nil, False)
	expectRun(t, "let d = {}; return d is d;", nil, True)
	expectRun(t, "return () is [];", nil, False)
}

func TestVMLet(t *testing.T) {
	expectRun(t, "let x = 1; return x;", nil, Int(1))
	expectRun(t, "let x = 1; let x = 1; return x;", nil, Int(1))
	expectErrIs(t, "let x = 1; let x = 2;", nil, ErrMatchException)
	expectRun(t, "let 1 = 1; return 1;", nil, Int(1))
	expectErrIs(t, "let 1 = 2;", nil, ErrMatchException)
	expectErrHas(t, "let {[a]} = {[b]};", nil, `MatchException: "b"`)

	expectRun(t, "let (a, b) = (1, 2); return b;", nil, Int(2))
	expectRun(t, "let (a, *b, c) = (1, 2, 3, 4); return (a, b, c);", nil,
		Tuple{Int(1), Tuple{Int(2), Int(3)}, Int(4)})
	expectRun(t, "let (*a) = (); return a;", nil, Tuple{})
	expectRun(t, "let [a, *b] = [1, 2, 3]; return b;", nil, List{Int(2), Int(3)})
	expectRun(t, "let (a, (b, c)) = (1, (2, 3)); return c;", nil, Int(3))
	expectRun(t, "let (x, x) = (1, 1); return x;", nil, Int(1))
	expectErrIs(t, "let (x, x) = (1, 2);", nil, ErrMatchException)
	expectErrIs(t, "let (a, b) = [1, 2];", nil, ErrMatchException)
	expectErrIs(t, "let [a] = (1,);", nil, ErrMatchException)
	expectErrIs(t, "let (a, b) = (1, 2, 3);", nil, ErrMatchException)
	expectErrIs(t, "let (a, *b, c) = (1,);", nil, ErrMatchException)

	expectRun(t, "let x is (a, b) = (1, 2); return (x, a);", nil,
		Tuple{Tuple{Int(1), Int(2)}, Int(1)})
	expectErrIs(t, "let 1 is x = 2;", nil, ErrMatchException)

	set, _ := NewSet(Int(2), Int(3))
	expectRun(t, "let {1, *r} = {1, 2, 3}; return r;", nil, set)
	expectRun(t, "let {3, 2, 1} = {1, 2, 3}; return 0;", nil, Int(0))
	expectErrIs(t, "let {1} = {1, 2};", nil, ErrMatchException)
	expectErrIs(t, "let {4, *r} = {1, 2};", nil, ErrMatchException)
	expectRun(t, "let {/} = {/}; return 0;", nil, Int(0))

	rest := NewDict()
	rest.SetStr("c", Int(3))
	expectRun(t, "let {{[a]}: a, {[b]}: b, **r} = {{[a]}: 1, {[b]}: 2, {[c]}: 3}; return r;",
		nil, rest)
	expectRun(t, "let {{[a]}: a} = {{[a]}: 1, {[b]}: 2}; return a;", nil, Int(1))
	expectRun(t, "let {1: a = 5} = {}; return a;", nil, Int(5))
	expectRun(t, "let {1: a = 5} = {1: 6}; return a;", nil, Int(6))
	expectErrIs(t, "let {1: a} = {};", nil, ErrMatchException)
	expectErrIs(t, "let {} = [];", nil, ErrMatchException)

	expectRun(t, "let ::int(x) = 5; return x;", nil, Int(5))
	expectErrIs(t, "let ::int(x) = 5.0;", nil, ErrMatchException)
	expectRun(t, "let ::tuple(a, *b) = (1, 2, 3); return b;", nil, Tuple{Int(2), Int(3)})
	expectRun(t, "let ::list(a, b) = [1, 2]; return a;", nil, Int(1))
	expectRun(t, "let ::dict(a:x) = {{[a]}: 9}; return x;", nil, Int(9))
	expectRun(t, "let ::dict(a:x=7) = {}; return x;", nil, Int(7))
	expectRun(t, "let ::MatchException(v) = ::MatchException(3); return v;", nil, Int(3))
	expectErrIs(t, "let ::NameError(v) = ::MatchException(3);", nil, ErrMatchException)
	expectErrHas(t, "let x = 1; let x(y) = 1;", nil,
		"'int' object cannot be used in a call pattern")
}

func TestVMIf(t *testing.T) {
	expectOutput(t, "if 1: ::print(1); end", nil, "1\n")
	expectOutput(t, "if 0: ::print(1); else: ::print(2); end", nil, "2\n")
	expectOutput(t, `
if 0: ::print(1);
else if {[]}: ::print(2);
else if (1,): ::print(3);
else: ::print(4);
end`, nil, "3\n")
	expectOutput(t, `
let v = (1, 2);
if let (a, 1) = v: ::print(a);
else if let (a, b) = v: ::print(a, b);
end`, nil, "1 2\n")
	expectOutput(t, `
if let [x] = [1]: ::print(x);
else: let x = 2;
end
::print(x);`, nil, "1\n1\n")

	// the name is declared by the arm that did not run
	_, err := Compile([]byte("if let 1 = 2: let x = 2; end ::print(x);"), DefaultCompilerOptions)
	require.NoError(t, err)
	expectErrIs(t, "if let 1 = 2: let x = 2; end ::print(x);", nil, ErrName)
	expectErrHas(t, "if let 1 = 2: let x = 2; end ::print(x);", nil,
		"name 'x' is not defined")
	expectErrIs(t, `
def f():
	if 0: let y = 1; end
	return y;
end
f();`, nil, ErrName)
}


func TestVMLongBranches(t *testing.T) {
	// both arms are longer than a one byte jump argument can cover
	script := "if flag:\n" + strings.Repeat("1;\n", 100) + "let r = 1;\n" +
		"else:\n" + strings.Repeat("2;\n", 100) + "let r = 2;\n" +
		"end\n::print(r);\nreturn r;"

	code, err := Compile([]byte(script), CompilerOptions{Globals: []string{"flag"}})
	require.NoError(t, err)
	var prefixes int
	for i := 0; i < len(code.Code); i += 2 {
		if code.Code[i] == OpExtendedArg {
			prefixes++
		}
	}
	require.GreaterOrEqual(t, prefixes, 2)

	for _, flag := range []Object{True, False} {
		globals := NewDict()
		globals.SetStr("flag", flag)
		expect := Int(1)
		if flag == False {
			expect = Int(2)
		}
		expectRun(t, script, newOpts().Globals(globals), expect)
		expectOutput(t, script, newOpts().Globals(globals), expect.String()+"\n")
	}
}
func TestVMFunctions(t *testing.T) {
	expectRun(t, "def f(): return 1; end return f();", nil, Int(1))
	expectRun(t, "def f(): end return f();", nil, None)
	expectRun(t, "def f(a, b): return a .sub. b; end return f(5, 3);", nil, Int(2))
	expectRun(t, "def f(a, b): return a .sub. b; end return f(b:5, a:3);", nil, Int(-2))
	expectRun(t, "def f(a, b=10): return a .add. b; end return f(1);", nil, Int(11))
	expectRun(t, "def f(a, b=10): return a .add. b; end return f(1, 2);", nil, Int(3))
	expectRun(t, "def f(*a): return a; end return f(1, 2);", nil, Tuple{Int(1), Int(2)})
	expectRun(t, "def f(a, *b): return b; end return f(1, *[2, 3]);", nil,
		Tuple{Int(2), Int(3)})
	expectRun(t, "def f(*a, k): return (a, k); end return f(1, k:2);", nil,
		Tuple{Tuple{Int(1)}, Int(2)})
	expectRun(t, "def f(*a, k=3): return k; end return f();", nil, Int(3))

	kw := NewDict()
	kw.SetStr("x", Int(1))
	kw.SetStr("y", Int(2))
	expectRun(t, "def f(**kw): return kw; end return f(x:1, **{{[y]}: 2});", nil, kw)
	expectRun(t, "def f(a, **kw): return a; end return f{a:4};", nil, Int(4))
	expectRun(t, "def f(a, **kw): return kw; end return f(1, **{});", nil, NewDict())

	// parameters are patterns
	expectRun(t, "def f(p:(a, b)): return b; end return f((1, 2));", nil, Int(2))
	expectRun(t, "def f(x:1): return {[one]}; end return f(1);", nil, String("one"))
	expectRun(t, "def f(a, *(b,)): return b; end return f(1, 2);", nil, Int(2))
	expectRun(t, "def f(x:y is ::int(_)): return y; end return f(7);", nil, Int(7))
	expectRun(t, "def f(*c, d:(p, q)=(1, 2)): return q; end return f();", nil, Int(2))

	expectErrIs(t, "def f(a): end f();", nil, ErrMatchException)
	expectErrIs(t, "def f(a): end f(1, 2);", nil, ErrMatchException)
	expectErrIs(t, "def f(a): end f(b:1);", nil, ErrMatchException)
	expectErrIs(t, "def f(a): end f(1, a:1);", nil, ErrMatchException)
	expectErrIs(t, "def f(*a, k): end f(1);", nil, ErrMatchException)
	expectErrIs(t, "def f(x:1): end f(2);", nil, ErrMatchException)
	expectErrIs(t, "def f(p:(a, b)): end f(1);", nil, ErrMatchException)
	// extra positionals are a tuple, a list pattern does not match them
	expectErrIs(t, "def f(a, *[b]): end f(1, 2);", nil, ErrMatchException)
	expectErrHas(t, "def f(a): end f(1, 2);", nil, "MatchException: ((1, 2), {})")
	expectErrHas(t, "def f(x:1): end f(2);", nil, "MatchException: ((2,), {})")
	expectErrHas(t, "def f(*a, k): end f(1, z:0);", nil, "MatchException")

	// a failed call can be destructured like any match exception
	expectRun(t, `
def f(a): end
let e = ::MatchException(((1, 2), {}));
let ::MatchException((args, kwargs)) = e;
return args;`, nil, Tuple{Int(1), Int(2)})
}

func TestVMClosures(t *testing.T) {
	expectRun(t, `
def counter(n):
	def get(): return n; end
	return get;
end
let g = counter(5);
return g();`, nil, Int(5))

	expectRun(t, `
def outer(a):
	def middle(b):
		def inner(c): return (a, b, c); end
		return inner;
	end
	return middle;
end
return outer(1)(2)(3);`, nil, Tuple{Int(1), Int(2), Int(3)})

	expectRun(t, `
def f(x):
	let y = x .add. 1;
	def g(): return y; end
	return g();
end
return f(1);`, nil, Int(2))

	// locals bound by patterns are checked against on rebinding
	expectRun(t, `
def f(x):
	let (y, y) = (x, x);
	return y;
end
return f(3);`, nil, Int(3))
	expectErrIs(t, `
def f(x):
	let y = x;
	let y = 2;
end
f(1);`, nil, ErrMatchException)

	// parameters shadow names of enclosing functions
	expectRun(t, `
def f(x):
	def g(x): return x; end
	return g(2);
end
return f(1);`, nil, Int(2))

	expectRun(t, `
def fact(n):
	if n .le. 1: return 1; end
	return n .mul. fact(n .sub. 1);
end
return fact(10);`, nil, Int(3628800))

	// closures of the same function share the cell of the captured local
	expectRun(t, `
def f():
	let x = 5;
	def g(): return x; end
	def h(): return (x, x); end
	return (g, h);
end
let (g, h) = f();
return (g(), h());`, nil, Tuple{Int(5), Tuple{Int(5), Int(5)}})

	// function bodies only see names bound before their definition
	expectRun(t, `
def f():
	let x = 1;
	return x;
end
let r = f();
let x = 2;
return (r, x);`, nil, Tuple{Int(1), Int(2)})
	expectErrIs(t, "def f(): return later; end let later = 4; return f();", nil, ErrScope)

	// a function cannot rebind a name it reads from an enclosing function
	expectErrIs(t, `
def outer():
	let g = 1;
	def inner():
		let v = g;
		def g(): return 2; end
		return v;
	end
	return inner();
end`, nil, ErrScope)
	expectRun(t, `
def outer():
	let g = 1;
	def inner():
		def g(): return 2; end
		return g();
	end
	return (inner(), g);
end
return outer();`, nil, Tuple{Int(2), Int(1)})
}

func TestVMBuiltins(t *testing.T) {
	expectOutput(t, "::print(1, {[a]}, 1.0, (1,), [{[b]}], {/});", nil,
		"1 a 1.0 (1,) [\"b\"] {/}\n")
	expectOutput(t, "::print(1, 2, sep:{[-]}, **{{[end]}: {[.]}});", nil, "1-2.")
	expectOutput(t, "let p = ::print; p();", nil, "\n")
	expectOutput(t, "::print(::repr({[x]}), ::str(1.5), ::len((1, 2)));", nil,
		"\"x\" 1.5 2\n")
	expectErrIs(t, "::print(x:1);", nil, ErrType)

	expectRun(t, "return ::int({[12]});", nil, Int(12))
	expectRun(t, "return ::float(1);", nil, Float(1))
	expectRun(t, "return ::bool([]);", nil, False)
	expectRun(t, "return ::tuple([1]);", nil, Tuple{Int(1)})
	expectRun(t, "return ::list();", nil, List{})
	expectRun(t, "return ::len({[äb]});", nil, Int(2))
	expectErrIs(t, "return ::len(1);", nil, ErrType)
	expectErrIs(t, "return ::len();", nil, ErrWrongNumArguments)
	expectErrIs(t, "return ::nothing;", nil, ErrImport)

	expectRun(t, "return ::MatchException(1)->value;", nil, Int(1))
	expectRun(t, "return ::TypeError()->name;", nil, String("TypeError"))

	// Go functions given as globals
	globals := NewDict()
	globals.SetStr("double", &Function{
		Name: "double",
		Value: func(c Call) (Object, error) {
			if err := c.CheckLen(1); err != nil {
				return nil, err
			}
			return BinaryOp("mul", c.Get(0), Int(2))
		},
	})
	globals.SetStr("answer", Int(42))
	expectRun(t, "return double(answer);", newOpts().Globals(globals), Int(84))
	expectErrIs(t, "return double();", newOpts().Globals(globals), ErrWrongNumArguments)
}

func TestVMModules(t *testing.T) {
	opts := newOpts().
		Module("pkg.a", "let y = self::b::y .add. 1;").
		Module("pkg.b", "let y = 1;").
		Module("pkg.sub.c", "let z = super::a::y;").
		Module("m", map[string]Object{"v": Int(7)})

	expectRun(t, "return (pkg::a::y, m::v);", opts, Tuple{Int(2), Int(7)})
	expectRun(t, "return pkg::sub::c::z;", opts, Int(2))
	expectRun(t, "let mm = m::; return mm->v;", opts, Int(7))
	expectRun(t, "return m::->__name__;", opts, String("m"))
	expectRun(t, "return pkg::b::->__name__;", opts, String("pkg.b"))
	expectRun(t, "return ::->__name__;", opts, String("builtins"))

	expectErrIs(t, "return nope::x;", opts, ErrImport)
	expectErrHas(t, "return nope::x;", opts, "no module named 'nope'")
	expectErrIs(t, "return m::nope;", opts, ErrImport)
	expectErrHas(t, "return self::x;", opts, "empty module name")
	expectErrHas(t, "return super::super::x;", opts, "beyond top-level module")

	cyclic := newOpts().
		Module("c1", "let x = c2::x;").
		Module("c2", "let x = c1::x;")
	expectErrIs(t, "return c1::x;", cyclic, ErrImport)
	expectErrHas(t, "return c1::x;", cyclic, "circular import of module 'c1'")

	bad := newOpts().
		Module("bad", "let = ;").
		Module("raises", "let 1 = 2;")
	expectErrIs(t, "return bad::x;", bad, ErrImport)
	expectErrIs(t, "return bad::x;", bad, ErrParse)
	expectErrIs(t, "return raises::x;", bad, ErrMatchException)
}

func TestVMModulesRunOnce(t *testing.T) {
	buf := tests.CapturePrint(t)
	mm := NewModuleMap().AddSourceModule("once", []byte("::print({[run]}); let v = 1;"))
	code, err := Compile([]byte("let a = once::v; let b = once::v; return (a, b);"),
		DefaultCompilerOptions)
	require.NoError(t, err)

	vm := NewVM(code).SetModuleMap(mm)
	ret, err := vm.Run(nil)
	require.NoError(t, err)
	require.Equal(t, Tuple{Int(1), Int(1)}, ret)
	require.Equal(t, "run\n", buf.String())

	// cached modules are kept across runs until cleared
	_, err = vm.Run(nil)
	require.NoError(t, err)
	require.Equal(t, "run\n", buf.String())

	_, err = vm.Clear().Run(nil)
	require.NoError(t, err)
	require.Equal(t, "run\nrun\n", buf.String())

	mm2 := mm.Copy()
	mm2.Remove("once")
	require.Equal(t, 1, mm.Len())
	require.Equal(t, 0, mm2.Len())
	require.Nil(t, mm2.Get("once"))
	mm2.Merge(mm)
	require.NotNil(t, mm2.Get("once"))

	var nilMap *ModuleMap
	require.Nil(t, nilMap.Get("x"))
}

func TestVMRuntimeError(t *testing.T) {
	code, err := Compile([]byte("def f(a):\n\treturn a .div. 0;\nend\n\nf(1);\n"),
		CompilerOptions{Filename: "trace.ulan"})
	require.NoError(t, err)

	_, err = NewVM(code).Run(nil)
	require.Error(t, err)
	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr))
	require.ErrorIs(t, err, ErrZeroDivision)
	require.Len(t, rerr.Trace, 2)
	require.Equal(t, "trace.ulan", rerr.Trace[0].Filename)
	require.Equal(t, 5, rerr.Trace[0].Line)
	require.Equal(t, "f", rerr.Trace[1].Name)
	require.Equal(t, 2, rerr.Trace[1].Line)

	s := fmt.Sprintf("%+v", rerr)
	require.Contains(t, s, "ZeroDivisionError: division by zero")
	require.Contains(t, s, "File \"trace.ulan\", line 2, in f")
	require.Contains(t, s, "Traceback (most recent call last):")
}

func TestVMMaxFrames(t *testing.T) {
	script := "def f(n): return f(n); end f(1);"
	expectErrIs(t, script, nil, ErrStackOverflow)
	expectErrIs(t, script, newOpts().MaxFrames(10), ErrStackOverflow)
	expectErrHas(t, script, newOpts().MaxFrames(10), "maximum number of frames 10 exceeded")

	expectRun(t, `
def down(n):
	if n .eq. 0: return 0; end
	return down(n .sub. 1);
end
return down(8);`, newOpts().MaxFrames(10), Int(0))
}

func TestVMAbort(t *testing.T) {
	// exponential recursion that does not finish in time
	script := []byte(`
def f(n):
	if n .eq. 0: return 0; end
	f(n .sub. 1);
	return f(n .sub. 1);
end
f(60);`)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Exec(ctx, script, nil, nil)
	require.ErrorIs(t, err, ErrVMAborted)

	code, err := Compile(script, DefaultCompilerOptions)
	require.NoError(t, err)
	vm := NewVM(code)
	done := make(chan error, 1)
	go func() {
		_, err := vm.Run(nil)
		done <- err
	}()
	// Run clears the flag when it starts, abort until it returns
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case err = <-done:
			break wait
		case <-ticker.C:
			vm.Abort()
		}
	}
	require.ErrorIs(t, err, ErrVMAborted)

	// Run resets the abort flag
	_, err = vm.SetCode(mustCompile(t, "return 1;")).Run(nil)
	require.NoError(t, err)

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = Exec(ctx, []byte("return 1;"), nil, nil)
	if err != nil {
		require.True(t, errors.Is(err, context.Canceled) || errors.Is(err, ErrVMAborted))
	}
}

func TestExec(t *testing.T) {
	globals, err := Exec(context.Background(),
		[]byte("let (a, b) = (1, 2); def f(): return a; end"), nil, nil)
	require.NoError(t, err)
	a, ok := globals.GetStr("a")
	require.True(t, ok)
	require.Equal(t, Int(1), a)
	f, ok := globals.GetStr("f")
	require.True(t, ok)
	require.IsType(t, &CompiledFunction{}, f)
	name, _ := globals.GetStr("__name__")
	require.Equal(t, String("__main__"), name)

	_, err = Exec(context.Background(), []byte("y;"), nil, nil)
	require.ErrorIs(t, err, ErrScope)

	mm := NewModuleMap().AddBuiltinModule("m", map[string]Object{"v": Int(3)})
	globals, err = Exec(nil, []byte("let v = m::v;"), NewDict(), mm) // nolint:staticcheck
	require.NoError(t, err)
	v, _ := globals.GetStr("v")
	require.Equal(t, Int(3), v)
}

func TestEval(t *testing.T) {
	eval := NewEval(DefaultCompilerOptions, nil)
	ctx := context.Background()

	ret, code, err := eval.Run(ctx, []byte("let x = 1;"))
	require.NoError(t, err)
	require.NotNil(t, code)
	require.Equal(t, Int(1), ret)

	ret, _, err = eval.Run(ctx, []byte("x .add. 1;"))
	require.NoError(t, err)
	require.Equal(t, Int(2), ret)

	ret, _, err = eval.Run(ctx, []byte("def f(a): return a .mul. x; end"))
	require.NoError(t, err)
	require.Equal(t, None, ret)

	ret, _, err = eval.Run(ctx, []byte("f(3);"))
	require.NoError(t, err)
	require.Equal(t, Int(3), ret)

	ret, _, err = eval.Run(ctx, []byte("if x: 5; else: 6; end"))
	require.NoError(t, err)
	require.Equal(t, None, ret)

	// names of earlier inputs are not rebound
	_, _, err = eval.Run(ctx, []byte("let x = 1;"))
	require.NoError(t, err)
	_, _, err = eval.Run(ctx, []byte("let x = 2;"))
	require.ErrorIs(t, err, ErrMatchException)
	ret, _, err = eval.Run(ctx, []byte("x;"))
	require.NoError(t, err)
	require.Equal(t, Int(1), ret)

	_, _, err = eval.Run(ctx, []byte("let (y"))
	require.ErrorIs(t, err, ErrIncompleteInput)
	_, _, err = eval.Run(ctx, []byte("z;"))
	require.ErrorIs(t, err, ErrScope)

	require.Equal(t, []string{"__name__", "f", "x"}, eval.GlobalNames())

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = eval.Run(cctx, []byte("1;"))
	require.ErrorIs(t, err, context.Canceled)
}

func mustCompile(t *testing.T, src string) *Code {
	t.Helper()
	code, err := Compile([]byte(src), DefaultCompilerOptions)
	require.NoError(t, err)
	return code
}
