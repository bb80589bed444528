package proto

// idempotentCommands is the allowlist of commands eligible for transparent
// retry-on-connection-loss: a command may be retried automatically only if
// repeating it cannot change server state. Write commands are never retried
// automatically; callers that know better set SendOpts.ForceRetry on the
// client handle.
var idempotentCommands = map[string]struct{}{
	"GET": {}, "MGET": {}, "STRLEN": {}, "EXISTS": {}, "TTL": {}, "PTTL": {},
	"TYPE": {}, "DBSIZE": {}, "RANDOMKEY": {}, "KEYS": {}, "SCAN": {},
	"HGET": {}, "HGETALL": {}, "HMGET": {}, "HKEYS": {}, "HVALS": {}, "HLEN": {}, "HSCAN": {}, "HSTRLEN": {}, "HEXISTS": {},
	"LRANGE": {}, "LLEN": {}, "LINDEX": {},
	"SMEMBERS": {}, "SCARD": {}, "SISMEMBER": {}, "SMISMEMBER": {}, "SSCAN": {}, "SINTER": {}, "SUNION": {}, "SDIFF": {},
	"ZRANGE": {}, "ZSCORE": {}, "ZCARD": {}, "ZRANK": {}, "ZSCAN": {}, "ZCOUNT": {}, "ZMSCORE": {},
	"PING": {}, "ECHO": {}, "SELECT": {}, "HELLO": {}, "AUTH": {}, "CLIENT": {},
	"GETRANGE": {}, "OBJECT": {}, "MEMORY": {}, "TIME": {}, "LASTSAVE": {}, "INFO": {}, "CONFIG": {},
}

// IsIdempotent reports whether cmdName is safe to retry transparently after
// a connection loss of unknown outcome (the request may or may not have
// reached the server before the socket died).
func IsIdempotent(cmdName string) bool {
	_, ok := idempotentCommands[upper(cmdName)]
	return ok
}

func upper(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
