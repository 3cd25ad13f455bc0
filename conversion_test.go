package ulan_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/ozanh/ulan"
	"github.com/ozanh/ulan/registry"
)

type point struct{ X, Y int }

func init() {
	registry.RegisterObjectConverter(reflect.TypeOf(point{}),
		func(in interface{}) (interface{}, bool) {
			p := in.(point)
			return Tuple{Int(p.X), Int(p.Y)}, true
		})
	registry.RegisterAnyConverter(reflect.TypeOf(Tuple{}),
		func(in interface{}) (interface{}, bool) {
			t := in.(Tuple)
			if len(t) != 2 {
				return nil, false
			}
			x, ok1 := t[0].(Int)
			y, ok2 := t[1].(Int)
			if !ok1 || !ok2 {
				return nil, false
			}
			return point{X: int(x), Y: int(y)}, true
		})
}

func TestToObject(t *testing.T) {
	testCases := []struct {
		in     interface{}
		expect Object
	}{
		{nil, None},
		{true, True},
		{3, Int(3)},
		{int64(-1), Int(-1)},
		{1.5, Float(1.5)},
		{"s", String("s")},
		{[]byte("b"), String("b")},
		{2 * time.Second, String("2s")},
		{[]interface{}{1, "a"}, List{Int(1), String("a")}},
		{[]string{"x"}, List{String("x")}},
		{point{1, 2}, Tuple{Int(1), Int(2)}},
		{Int(9), Int(9)},
	}
	for _, tC := range testCases {
		got, err := ToObject(tC.in)
		require.NoError(t, err, "%#v", tC.in)
		require.True(t, tC.expect.Equal(got), "%#v: got %s", tC.in, got)
		require.Equal(t, tC.expect.TypeName(), got.TypeName())
	}

	got, err := ToObject(map[string]interface{}{"a": 1, "b": []interface{}{true}})
	require.NoError(t, err)
	d := got.(*Dict)
	require.Equal(t, 2, d.Len())
	v, _ := d.GetStr("b")
	require.Equal(t, List{True}, v)

	got, err = ToObject(errors.New("boom"))
	require.NoError(t, err)
	require.Equal(t, "error: boom", got.String())

	got, err = ToObject(func(c Call) (Object, error) { return Int(c.Len()), nil })
	require.NoError(t, err)
	require.IsType(t, &Function{}, got)

	_, err = ToObject(struct{}{})
	require.ErrorIs(t, err, ErrType)
	_, err = ToObject([]interface{}{struct{}{}})
	require.ErrorIs(t, err, ErrType)
}

func TestToInterface(t *testing.T) {
	require.Nil(t, ToInterface(None))
	require.Nil(t, ToInterface(nil))
	require.Equal(t, true, ToInterface(True))
	require.Equal(t, int64(2), ToInterface(Int(2)))
	require.Equal(t, 2.5, ToInterface(Float(2.5)))
	require.Equal(t, "s", ToInterface(String("s")))
	require.Equal(t, []interface{}{int64(1), "a"}, ToInterface(List{Int(1), String("a")}))
	require.Equal(t, point{3, 4}, ToInterface(Tuple{Int(3), Int(4)}))
	require.Equal(t, []interface{}{int64(1)}, ToInterface(Tuple{Int(1)}))

	d := NewDict()
	d.SetStr("a", Int(1))
	require.NoError(t, d.Set(Int(2), Tuple{}))
	require.Equal(t, map[string]interface{}{"a": int64(1), "2": []interface{}{}},
		ToInterface(d))

	e := ErrType.NewError("x")
	require.Same(t, e, ToInterface(e))
}
