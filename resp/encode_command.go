package resp

import (
	"strconv"
)

// fastHeaders holds the pre-rendered "$len\r\nNAME\r\n" bulk-string element
// for common commands, keyed by command name, to skip the integer-to-string
// conversion and formatting of the name on the hot path. The "*N\r\n" array
// header is still formatted per call, and arguments are appended normally.
// Populated in init() below.
var fastHeaders = map[string][]byte{}

func init() {
	for _, name := range []string{
		"GET", "SET", "DEL", "EXISTS", "EXPIRE", "PEXPIRE", "TTL", "PTTL",
		"PING", "HELLO", "AUTH", "SELECT", "HSET", "HGET", "HDEL", "HGETALL",
		"LPUSH", "RPUSH", "LPOP", "RPOP", "LRANGE", "SADD", "SREM", "SMEMBERS",
		"INCR", "DECR", "INCRBY", "MULTI", "EXEC", "DISCARD", "SUBSCRIBE",
		"UNSUBSCRIBE", "PSUBSCRIBE", "PUNSUBSCRIBE", "PUBLISH", "MONITOR",
		"RESET", "CLIENT",
	} {
		fastHeaders[name] = encodeBulkString([]byte(name))
	}
}

// EncodeCommand writes cmd to the wire as "*<1+len(Args)>\r\n" followed by
// each argument (command name first) encoded as a bulk string.
func EncodeCommand(cmd Command) []byte {
	n := len(cmd.Args) + 1
	buf := make([]byte, 0, 64)
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(n), 10)
	buf = append(buf, '\r', '\n')

	if hdr, ok := fastHeaders[cmd.Name]; ok {
		buf = append(buf, hdr...)
	} else {
		buf = appendBulkString(buf, []byte(cmd.Name))
	}

	var scratch [32]byte
	for _, a := range cmd.Args {
		dyn, isStatic, static := a.argBytes(scratch[:0])
		if isStatic {
			buf = appendBulkString(buf, static)
		} else {
			buf = appendBulkString(buf, dyn)
		}
	}
	return buf
}

func encodeBulkString(b []byte) []byte {
	return appendBulkString(nil, b)
}

func appendBulkString(buf, payload []byte) []byte {
	buf = append(buf, '$')
	buf = strconv.AppendInt(buf, int64(len(payload)), 10)
	buf = append(buf, '\r', '\n')
	buf = append(buf, payload...)
	buf = append(buf, '\r', '\n')
	return buf
}

// EncodeBatch concatenates the wire encoding of each command in order, for
// pipelines and transactions that write many commands in one flush.
func EncodeBatch(cmds []Command) []byte {
	total := 0
	encoded := make([][]byte, len(cmds))
	for i, c := range cmds {
		encoded[i] = EncodeCommand(c)
		total += len(encoded[i])
	}
	out := make([]byte, 0, total)
	for _, e := range encoded {
		out = append(out, e...)
	}
	return out
}
