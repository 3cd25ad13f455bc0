package strings_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/ozanh/ulan"
	"github.com/ozanh/ulan/stdlib"
	ustrings "github.com/ozanh/ulan/stdlib/strings"
)

func call(name string, args ...Object) (Object, error) {
	return ustrings.Module[name].(*Function).Call(NewCall(nil, args, nil))
}

func TestModuleStrings(t *testing.T) {
	ret, err := call("Contains", String("abc"), String("b"))
	require.NoError(t, err)
	require.Equal(t, True, ret)
	ret, err = call("Contains", String("abc"), String("d"))
	require.NoError(t, err)
	require.Equal(t, False, ret)
	_, err = call("Contains", String("abc"), String("d"), String("x"))
	require.ErrorIs(t, err, ErrWrongNumArguments)
	_, err = call("Contains", String("abc"), Int(1))
	require.ErrorIs(t, err, ErrType)

	ret, err = call("Count", String("cheese"), String("e"))
	require.NoError(t, err)
	require.Equal(t, Int(3), ret)

	ret, err = call("Fields", String(" a  b c "))
	require.NoError(t, err)
	require.Equal(t, Tuple{String("a"), String("b"), String("c")}, ret)

	ret, err = call("Join", List{String("a"), Int(1)}, String("-"))
	require.NoError(t, err)
	require.Equal(t, String("a-1"), ret)

	ret, err = call("Repeat", String("ab"), Int(2))
	require.NoError(t, err)
	require.Equal(t, String("abab"), ret)
	ret, err = call("Repeat", String("ab"), Int(-1))
	require.NoError(t, err)
	require.Equal(t, String(""), ret)

	ret, err = call("Replace", String("aaa"), String("a"), String("b"))
	require.NoError(t, err)
	require.Equal(t, String("bbb"), ret)
	ret, err = call("Replace", String("aaa"), String("a"), String("b"), Int(1))
	require.NoError(t, err)
	require.Equal(t, String("baa"), ret)

	ret, err = call("Split", String("a,b,c"), String(","))
	require.NoError(t, err)
	require.Equal(t, Tuple{String("a"), String("b"), String("c")}, ret)
	ret, err = call("Split", String("a,b,c"), String(","), Int(2))
	require.NoError(t, err)
	require.Equal(t, Tuple{String("a"), String("b,c")}, ret)

	ret, err = call("ToUpper", String("abc"))
	require.NoError(t, err)
	require.Equal(t, String("ABC"), ret)

	ret, err = call("TrimSpace", String("  x "))
	require.NoError(t, err)
	require.Equal(t, String("x"), ret)

	ret, err = call("Sprintf", String("%s=%03d %.2f %t %v"),
		String("n"), Int(7), Float(1.5), True, Float(2))
	require.NoError(t, err)
	require.Equal(t, String("n=007 1.50 true 2.0"), ret)
	_, err = call("Sprintf")
	require.ErrorIs(t, err, ErrWrongNumArguments)

	ret, err = call("TrimPrefix", String("prefix-x"), String("prefix-"))
	require.NoError(t, err)
	require.Equal(t, String("x"), ret)
}

func TestModuleImport(t *testing.T) {
	code, err := Compile([]byte(`
let ({[a]}, {[b]}) = strings::Split({[a:b]}, {[:]});
let r = strings::ToUpper({[x]});
`), DefaultCompilerOptions)
	require.NoError(t, err)

	globals := NewDict()
	_, err = NewVM(code).SetModuleMap(stdlib.Modules()).Run(globals)
	require.NoError(t, err)
	r, ok := globals.GetStr("r")
	require.True(t, ok)
	require.Equal(t, String("X"), r)
}
