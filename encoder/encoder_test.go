package encoder_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/ozanh/ulan"

	. "github.com/ozanh/ulan/encoder"
)

func TestEncDecObjects(t *testing.T) {
	objects := []ulan.Object{
		ulan.None,
		ulan.True,
		ulan.False,
		ulan.Int(0), ulan.Int(-1), ulan.Int(1), ulan.Int(math.MaxInt64), ulan.Int(math.MinInt64),
		ulan.Float(0), ulan.Float(-1.5), ulan.Float(math.Inf(1)),
		ulan.String(""), ulan.String("abc"), ulan.String("çğü"),
		ulan.Tuple{},
		ulan.Tuple{ulan.String("a"), ulan.Tuple{ulan.Int(1), ulan.None}},
	}
	for _, obj := range objects {
		data, err := Tuple{obj}.MarshalBinary()
		require.NoError(t, err, obj.String())

		var v Tuple
		require.NoError(t, v.UnmarshalBinary(data), obj.String())
		require.Len(t, v, 1)
		require.True(t, obj.Equal(v[0]), "%s != %s", obj, v[0])
	}

	data, err := Int(-42).MarshalBinary()
	require.NoError(t, err)
	var i Int
	require.NoError(t, i.UnmarshalBinary(data))
	require.Equal(t, Int(-42), i)

	data, err = String("foo").MarshalBinary()
	require.NoError(t, err)
	var s String
	require.NoError(t, s.UnmarshalBinary(data))
	require.Equal(t, String("foo"), s)

	data, err = Float(1.25).MarshalBinary()
	require.NoError(t, err)
	var f Float
	require.NoError(t, f.UnmarshalBinary(data))
	require.Equal(t, Float(1.25), f)

	var b Bool
	require.Error(t, b.UnmarshalBinary(nil))
	require.Error(t, i.UnmarshalBinary([]byte{0xff}))
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Tuple{ulan.NewDict()}.MarshalBinary()
	require.Error(t, err)
}

const testSource = `
def f(a, b=2, *args, c=3, **kw):
  let (x, *rest) = (a, b, c);
  def g():
    return x;
  end
  return g();
end
if f(1) .eq. 1:
  ::print({[ok]}, end:{[]});
end
`

func TestCode_RoundTrip(t *testing.T) {
	code, err := ulan.Compile([]byte(testSource), ulan.CompilerOptions{Filename: "t.ulan"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeCodeTo(code, &buf))
	encoded := append([]byte(nil), buf.Bytes()...)

	decoded, err := DecodeCodeFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, code.Disassemble(), decoded.Disassemble())

	data, err := (*Code)(decoded).MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, encoded, data)

	var out bytes.Buffer
	orig := ulan.PrintWriter
	ulan.PrintWriter = &out
	defer func() { ulan.PrintWriter = orig }()

	_, err = ulan.NewVM(decoded).Run(nil)
	require.NoError(t, err)
	require.Equal(t, "ok", out.String())
}

func TestCode_File(t *testing.T) {
	code, err := ulan.Compile([]byte("let x = 1;"), ulan.DefaultCompilerOptions)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "x.ulanc")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, EncodeCodeTo(code, f))
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := DecodeCodeFrom(f)
	require.NoError(t, err)

	globals := ulan.NewDict()
	_, err = ulan.NewVM(decoded).Run(globals)
	require.NoError(t, err)
	v, ok := globals.GetStr("x")
	require.True(t, ok)
	require.Equal(t, ulan.Int(1), v)
}

func TestCode_InvalidHeader(t *testing.T) {
	var c Code
	require.Error(t, c.UnmarshalBinary(nil))
	require.Error(t, c.UnmarshalBinary([]byte{0, 0, 0, 0, 0, 1}))

	code, err := ulan.Compile([]byte("1;"), ulan.DefaultCompilerOptions)
	require.NoError(t, err)
	data, err := (*Code)(code).MarshalBinary()
	require.NoError(t, err)
	data[5] = 99
	require.Error(t, c.UnmarshalBinary(data))
}

func TestValidate(t *testing.T) {
	code, err := ulan.Compile([]byte(testSource), ulan.DefaultCompilerOptions)
	require.NoError(t, err)
	require.NoError(t, Validate(code))

	bad := &ulan.Code{
		Name:     "bad",
		NLocals:  0,
		VarNames: []string{"a"},
		Code: []byte{
			ulan.OpLoadConst, 3,
			ulan.OpLoadFast, 0,
			ulan.OpJumpAbsolute, 3,
			ulan.OpReturnValue, 0,
		},
	}
	err = Validate(bad)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	// nlocals, constant, local and jump target
	require.Len(t, merr.Errors, 4)

	data := mustMarshal(t, bad)
	var c Code
	require.Error(t, c.UnmarshalBinary(data))
}

func mustMarshal(t *testing.T, code *ulan.Code) []byte {
	t.Helper()
	data, err := (*Code)(code).MarshalBinary()
	require.NoError(t, err)
	return data
}
