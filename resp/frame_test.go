package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func parseWire(t *testing.T, wire string) Frame {
	t.Helper()
	buf := NewRespBuf([]byte(wire), BufRegular)
	f, n, err := ParseFrame(buf)
	require.NoError(t, err)
	require.Equal(t, len(wire), n)
	return f
}

func TestParseFrame_Scalars(t *testing.T) {
	f := parseWire(t, "+OK\r\n")
	require.Equal(t, TagSimpleString, f.Tag())
	require.Equal(t, "OK", string(f.Body()))

	f = parseWire(t, ":42\r\n")
	require.Equal(t, TagInteger, f.Tag())
	require.Equal(t, "42", string(f.Body()))

	f = parseWire(t, "$-1\r\n")
	require.True(t, f.IsNil())

	f = parseWire(t, "_\r\n")
	require.True(t, f.IsNil())
}

func TestParseFrame_BoundedChildIndex(t *testing.T) {
	// 3 children: all within the bounded index.
	f := parseWire(t, "*3\r\n:1\r\n:2\r\n:3\r\n")
	require.Equal(t, 3, f.Len())
	for i := 0; i < 3; i++ {
		c, err := f.Child(i)
		require.NoError(t, err)
		v, err := FromFrame(c).AsInt64()
		require.NoError(t, err)
		require.EqualValues(t, i+1, v)
	}
}

func TestParseFrame_ChildrenBeyondBoundedIndex(t *testing.T) {
	// 50 children: exercises re-scan beyond the 5-element bounded index.
	wire := "*50\r\n"
	for i := 0; i < 50; i++ {
		wire += ":" + itoa(i) + "\r\n"
	}
	f := parseWire(t, wire)
	require.Equal(t, 50, f.Len())
	for i := 0; i < 50; i++ {
		c, err := f.Child(i)
		require.NoError(t, err)
		r := FromFrame(c)
		v, err := r.AsInt64()
		require.NoError(t, err)
		require.EqualValues(t, i, v)
	}
}

func TestParseFrame_MapChildrenAreKeyValuePairs(t *testing.T) {
	f := parseWire(t, "%2\r\n+a\r\n:1\r\n+b\r\n:2\r\n")
	require.Equal(t, 2, f.Len())
	r := FromFrame(f)
	pairs, err := r.Pairs()
	require.NoError(t, err)
	require.Len(t, pairs, 4)
	require.Equal(t, "a", pairs[0].AsString())
	require.Equal(t, "b", pairs[2].AsString())
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
