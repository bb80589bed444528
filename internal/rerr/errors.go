// Package rerr defines the error taxonomy shared by the codec, the network
// handler and the client front-end. Every error that can reach a caller is a
// *Error carrying one Kind; nothing below the public API panics.
package rerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for dispatch without string matching.
type Kind int

const (
	// KindProtocolDecode means the wire was corrupt; fatal for the connection.
	KindProtocolDecode Kind = iota
	// KindIO means a socket read/write failed; fatal for the connection.
	KindIO
	// KindConnectionLost means the command was in flight when the connection
	// dropped and was not retried.
	KindConnectionLost
	// KindTimeout means a per-command deadline elapsed.
	KindTimeout
	// KindRedis means the server returned a RESP error frame.
	KindRedis
	// KindTypeMismatch means RESP-to-Go deserialization failed.
	KindTypeMismatch
	// KindConfig means a URI or option failed to parse.
	KindConfig
	// KindClient means caller misuse (double DISCARD, send after close, ...).
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindProtocolDecode:
		return "protocol_decode"
	case KindIO:
		return "io"
	case KindConnectionLost:
		return "connection_lost"
	case KindTimeout:
		return "timeout"
	case KindRedis:
		return "redis"
	case KindTypeMismatch:
		return "type_mismatch"
	case KindConfig:
		return "config"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// Error is the single error type the public API returns. Op names the
// operation that failed (e.g. "resp.Scan", "conn.dial", "client.Send").
// Code carries a Redis error code (ERR, WRONGTYPE, MOVED, ...) when Kind is
// KindRedis; it is empty otherwise.
type Error struct {
	Kind    Kind
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s: %s %s", e.Op, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, rerr.Timeout) style sentinels via Kind-only
// comparison: two *Error values are "equal" for errors.Is purposes when they
// share a Kind, regardless of Op/Message/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Redis builds a KindRedis error preserving the server's error code.
func Redis(op, code, message string) *Error {
	return &Error{Kind: KindRedis, Op: op, Code: code, Message: message}
}

// sentinels usable with errors.Is(err, rerr.Timeout) etc.
var (
	Timeout        = &Error{Kind: KindTimeout}
	ConnectionLost = &Error{Kind: KindConnectionLost}
	ProtocolDecode = &Error{Kind: KindProtocolDecode}
	IOErr          = &Error{Kind: KindIO}
	ErrRedis       = &Error{Kind: KindRedis}
	ErrTypeMismatch = &Error{Kind: KindTypeMismatch}
	ErrConfig      = &Error{Kind: KindConfig}
	ErrClient      = &Error{Kind: KindClient}
)

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
