package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func responseFromWire(t *testing.T, wire string) Response {
	t.Helper()
	buf := NewRespBuf([]byte(wire), BufRegular)
	f, _, err := ParseFrame(buf)
	require.NoError(t, err)
	return FromFrame(f)
}

func TestResponse_BooleanTextualCoercion(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "OK": true, "t": true,
		"0": false, "false": false, "f": false,
	}
	for text, want := range cases {
		r := responseFromWire(t, "+"+text+"\r\n")
		got, err := r.AsBool()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestResponse_NullYieldsZeroValueTargets(t *testing.T) {
	r := responseFromWire(t, "$-1\r\n")
	var s string
	require.NoError(t, Into(r, &s))
	require.Equal(t, "", s)

	r = responseFromWire(t, "_\r\n")
	var i int
	require.NoError(t, Into(r, &i))
	require.Equal(t, 0, i)
}

func TestResponse_ErrorSurfacesAsRedisError(t *testing.T) {
	r := responseFromWire(t, "-WRONGTYPE Operation against a wrong kind of value\r\n")
	var s string
	err := Into(r, &s)
	require.Error(t, err)
	code, msg := r.Error()
	require.Equal(t, "WRONGTYPE", code)
	require.Equal(t, "Operation against a wrong kind of value", msg)
}

func TestResponse_VerbatimStripsFormatHint(t *testing.T) {
	r := responseFromWire(t, "=15\r\ntxt:Some string\r\n")
	require.Equal(t, "txt", r.VerbatimFormat())
	require.Equal(t, "Some string", r.VerbatimText())
}

func TestResponse_ArraySourceIntoSlice(t *testing.T) {
	r := responseFromWire(t, "*2\r\n$5\r\nhello\r\n$5\r\nworld\r\n")
	var out []string
	require.NoError(t, Into(r, &out))
	require.Equal(t, []string{"hello", "world"}, out)
}

func TestResponse_MapSourceIntoGoMap(t *testing.T) {
	r := responseFromWire(t, "%2\r\n+a\r\n:1\r\n+b\r\n:2\r\n")
	var out map[string]int
	require.NoError(t, Into(r, &out))
	require.Equal(t, map[string]int{"a": 1, "b": 2}, out)
}

func TestResponse_MapSourceIntoStruct(t *testing.T) {
	type rec struct {
		Name string `redis:"name"`
		Age  int    `redis:"age"`
	}
	r := responseFromWire(t, "%2\r\n$4\r\nname\r\n$3\r\nbob\r\n$3\r\nage\r\n:7\r\n")
	var out rec
	require.NoError(t, Into(r, &out))
	require.Equal(t, rec{Name: "bob", Age: 7}, out)
}

func TestResponse_EvenLengthArrayIntoStructLegacyShape(t *testing.T) {
	type rec struct {
		Name string `redis:"name"`
		Age  int    `redis:"age"`
	}
	r := responseFromWire(t, "*4\r\n$4\r\nname\r\n$3\r\nbob\r\n$3\r\nage\r\n:7\r\n")
	var out rec
	require.NoError(t, Into(r, &out))
	require.Equal(t, rec{Name: "bob", Age: 7}, out)
}

func TestResponse_MapAndLegacyArrayAgreeIntoStruct(t *testing.T) {
	type rec struct {
		A int `redis:"a"`
		B int `redis:"b"`
	}
	mapR := responseFromWire(t, "%2\r\n+a\r\n:1\r\n+b\r\n:2\r\n")
	arrR := responseFromWire(t, "*4\r\n+a\r\n:1\r\n+b\r\n:2\r\n")

	var fromMap, fromArr rec
	require.NoError(t, Into(mapR, &fromMap))
	require.NoError(t, Into(arrR, &fromArr))
	require.Equal(t, fromMap, fromArr)
}

func TestResponse_InvalidationPushWithNilPayloadIsRoutable(t *testing.T) {
	// A flush-all invalidation push carries a nil array, not a decode error.
	r := responseFromWire(t, ">2\r\n$10\r\ninvalidate\r\n*-1\r\n")
	require.True(t, r.IsPush())
	el, err := r.Elements()
	require.NoError(t, err)
	require.Len(t, el, 2)
	require.True(t, el[1].IsNil())
}

type variantTarget struct {
	Name    string
	Payload string
}

func (v *variantTarget) SetVariant(name string, payload Response) error {
	v.Name = name
	v.Payload = payload.AsString()
	return nil
}

func TestResponse_EnumShapedTargets(t *testing.T) {
	var v variantTarget
	require.NoError(t, Into(responseFromWire(t, "+Active\r\n"), &v))
	require.Equal(t, "Active", v.Name)

	v = variantTarget{}
	require.NoError(t, Into(responseFromWire(t, "%1\r\n+Sized\r\n:10\r\n"), &v))
	require.Equal(t, "Sized", v.Name)

	v = variantTarget{}
	require.NoError(t, Into(responseFromWire(t, "*2\r\n+Sized\r\n:10\r\n"), &v))
	require.Equal(t, "Sized", v.Name)
}
