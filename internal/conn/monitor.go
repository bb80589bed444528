package conn

import (
	"strconv"
	"strings"

	"redisx/internal/proto"
	"redisx/internal/rerr"
)

// parseMonitorLine parses one MONITOR feed line, shaped like:
//
//	1339518083.107412 [0 127.0.0.1:60866] "PING"
//
// This is a best-effort parser: it handles the standard quoted-argument
// format Redis emits and does not attempt to recover from lines a future
// server version reshapes.
func parseMonitorLine(s string) (proto.MonitorEvent, error) {
	sp := strings.IndexByte(s, ' ')
	if sp < 0 {
		return proto.MonitorEvent{}, rerr.New(rerr.KindProtocolDecode, "conn.parseMonitorLine", "missing timestamp")
	}
	tsField := s[:sp]
	rest := strings.TrimSpace(s[sp+1:])

	dotIdx := strings.IndexByte(tsField, '.')
	var sec, usec int64
	var err error
	if dotIdx >= 0 {
		sec, err = strconv.ParseInt(tsField[:dotIdx], 10, 64)
		if err == nil {
			usec, err = strconv.ParseInt(tsField[dotIdx+1:], 10, 64)
		}
	} else {
		sec, err = strconv.ParseInt(tsField, 10, 64)
	}
	if err != nil {
		return proto.MonitorEvent{}, rerr.Wrap(rerr.KindProtocolDecode, "conn.parseMonitorLine", err)
	}

	if !strings.HasPrefix(rest, "[") {
		return proto.MonitorEvent{}, rerr.New(rerr.KindProtocolDecode, "conn.parseMonitorLine", "missing [db addr] field")
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return proto.MonitorEvent{}, rerr.New(rerr.KindProtocolDecode, "conn.parseMonitorLine", "unterminated [db addr] field")
	}
	bracket := rest[1:end]
	fields := strings.Fields(bracket)
	if len(fields) < 2 {
		return proto.MonitorEvent{}, rerr.New(rerr.KindProtocolDecode, "conn.parseMonitorLine", "malformed [db addr] field")
	}
	db, err := strconv.Atoi(fields[0])
	if err != nil {
		return proto.MonitorEvent{}, rerr.Wrap(rerr.KindProtocolDecode, "conn.parseMonitorLine", err)
	}
	addr := fields[1]

	argv := splitQuotedArgs(strings.TrimSpace(rest[end+1:]))
	var cmdName string
	if len(argv) > 0 {
		cmdName = strings.ToUpper(argv[0])
	}

	return proto.MonitorEvent{
		UnixTimeMs:  sec*1000 + usec/1000,
		Database:    db,
		PeerAddr:    addr,
		CommandName: cmdName,
		Argv:        argv,
	}, nil
}

// splitQuotedArgs splits a sequence of double-quoted, backslash-escaped
// tokens ("SET" "key" "value") into their unquoted contents.
func splitQuotedArgs(s string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\' && inQuotes:
			escaped = true
		case c == '"':
			if inQuotes {
				out = append(out, cur.String())
				cur.Reset()
			}
			inQuotes = !inQuotes
		case c == ' ' && !inQuotes:
			// separator between quoted tokens, nothing to do
		default:
			if inQuotes {
				cur.WriteByte(c)
			}
		}
	}
	return out
}
