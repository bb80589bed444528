// Scanner tests cover TCP fragmentation and pipelined (glued-together)
// frames against the RESP3 Scan API, plus byte-by-byte partial feeds.
package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScan_PartialFeedThenComplete(t *testing.T) {
	// Array header plus a split bulk string: "*2\r\n$5\r\nhel" then the rest.
	partial := []byte("*2\r\n$5\r\nhel")
	_, err := Scan(partial)
	require.ErrorIs(t, err, ErrNeedMoreData)

	full := []byte("*2\r\n$5\r\nhello\r\n$5\r\nworld\r\n")
	n, err := Scan(full)
	require.NoError(t, err)
	require.Equal(t, len(full), n)
}

func TestScan_EveryPrefixOfValidEncodingNeedsMoreData(t *testing.T) {
	full := []byte("*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n")
	for i := 0; i < len(full); i++ {
		_, err := Scan(full[:i])
		require.ErrorIsf(t, err, ErrNeedMoreData, "prefix length %d", i)
	}
	n, err := Scan(full)
	require.NoError(t, err)
	require.Equal(t, len(full), n)
}

func TestScan_Pipeline(t *testing.T) {
	// N PING commands glued together (as a pipeline writes them); each
	// should scan off the front independently, in order.
	const N = 1000
	one := []byte("*1\r\n$4\r\nPING\r\n")
	var data []byte
	for i := 0; i < N; i++ {
		data = append(data, one...)
	}

	got := 0
	for len(data) > 0 {
		n, err := Scan(data)
		require.NoError(t, err)
		require.Equal(t, len(one), n)
		data = data[n:]
		got++
	}
	require.Equal(t, N, got)
}

func TestScan_Fragmented(t *testing.T) {
	full := []byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n")
	for chunk := 1; chunk <= len(full); chunk++ {
		buf := []byte{}
		var n int
		var err error
		for off := 0; off < len(full); off += chunk {
			end := off + chunk
			if end > len(full) {
				end = len(full)
			}
			buf = append(buf, full[off:end]...)
			n, err = Scan(buf)
			if err == nil {
				break
			}
			require.ErrorIs(t, err, ErrNeedMoreData)
		}
		require.NoErrorf(t, err, "chunk size %d", chunk)
		require.Equal(t, len(full), n)
	}
}

func TestScan_RESP3Tags(t *testing.T) {
	cases := map[string]string{
		"simple string": "+OK\r\n",
		"error":          "-ERR bad\r\n",
		"integer":        ":1000\r\n",
		"null":           "_\r\n",
		"boolean true":   "#t\r\n",
		"boolean false":  "#f\r\n",
		"double":         ",3.14\r\n",
		"double inf":     ",inf\r\n",
		"blob error":     "!21\r\nSYNTAX invalid syntax\r\n",
		"verbatim":       "=15\r\ntxt:Some string\r\n",
		"map":            "%1\r\n+key\r\n+value\r\n",
		"set":            "~2\r\n+a\r\n+b\r\n",
		"push":           ">2\r\n+message\r\n+hello\r\n",
		"nested array":   "*2\r\n*1\r\n:1\r\n$3\r\nfoo\r\n",
	}
	for name, wire := range cases {
		n, err := Scan([]byte(wire))
		require.NoErrorf(t, err, name)
		require.Equalf(t, len(wire), n, name)
	}
}

func TestScan_MalformedFramesAreDistinguishable(t *testing.T) {
	cases := []string{
		"*1\r\n$abc\r\nhello\r\n", // bad length literal
		"#x\r\n",                  // bad boolean literal
		"$3\r\nabXY\r\n",          // missing CRLF after payload
		"^oops\r\n",               // unrecognized tag
	}
	for _, wire := range cases {
		_, err := Scan([]byte(wire))
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrNeedMoreData)
	}
}
