package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeCommand_GetSetRoundTrip(t *testing.T) {
	set := NewCommand("SET", "key", "value")
	require.Equal(t, "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n", string(EncodeCommand(set)))

	get := NewCommand("GET", "key")
	require.Equal(t, "*2\r\n$3\r\nGET\r\n$3\r\nkey\r\n", string(EncodeCommand(get)))
}

func TestEncodeCommand_UsesStaticHeaderFastPath(t *testing.T) {
	cmd := NewCommand("GET", "k")
	hdr, ok := fastHeaders["GET"]
	require.True(t, ok)
	out := EncodeCommand(cmd)
	require.Contains(t, string(out), string(hdr))
}

func TestEncodeCommand_IntAndFloatArgsFormatWithoutPanics(t *testing.T) {
	cmd := Command{Name: "INCRBY", Args: []Arg{Str("k"), Int(42)}}
	require.Equal(t, "*3\r\n$6\r\nINCRBY\r\n$1\r\nk\r\n$2\r\n42\r\n", string(EncodeCommand(cmd)))

	cmd = Command{Name: "GEOADD", Args: []Arg{Str("k"), Float(13.361389), Float(38.115556)}}
	out := EncodeCommand(cmd)
	require.Contains(t, string(out), "13.361389")
}

func TestEncodeBatch_ConcatenatesInOrder(t *testing.T) {
	cmds := []Command{
		NewCommand("SET", "k1", "v1"),
		NewCommand("SET", "k2", "v2"),
		NewCommand("GET", "k1"),
	}
	out := EncodeBatch(cmds)
	expect := string(EncodeCommand(cmds[0])) + string(EncodeCommand(cmds[1])) + string(EncodeCommand(cmds[2]))
	require.Equal(t, expect, string(out))
}
