package resp

import (
	"errors"

	"redisx/internal/rerr"
)

// ErrNeedMoreData is returned by Scan when buf does not yet contain one
// complete top-level frame. It carries no state: callers retain their
// buffer and append more bytes before scanning again.
var ErrNeedMoreData = errors.New("resp: need more data")

// decodeErr wraps a malformed-frame cause as a KindProtocolDecode error.
// Any RESP tag/length/boolean-literal violation the scanner or parser finds
// is fatal to the connection, never recoverable by reading more bytes.
func decodeErr(op string, cause error) error {
	return rerr.Wrap(rerr.KindProtocolDecode, op, cause)
}

func decodeErrf(op, msg string) error {
	return rerr.New(rerr.KindProtocolDecode, op, msg)
}
