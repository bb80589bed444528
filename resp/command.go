package resp

import "strconv"

// Arg is one command argument. It is a closed set of concrete types so the
// encoder can format each without an allocation beyond the final byte
// buffer: StaticStr (a compile-time constant, never copied), Str (an owned
// string), Bytes (a binary blob), Int, Float.
type Arg interface {
	argBytes(scratch []byte) (out []byte, isStatic bool, static []byte)
}

type StaticStr string

func (s StaticStr) argBytes([]byte) ([]byte, bool, []byte) { return nil, true, []byte(s) }

type Str string

func (s Str) argBytes([]byte) ([]byte, bool, []byte) { return []byte(s), false, nil }

type Bytes []byte

func (b Bytes) argBytes([]byte) ([]byte, bool, []byte) { return []byte(b), false, nil }

type Int int64

func (i Int) argBytes(scratch []byte) ([]byte, bool, []byte) {
	return strconv.AppendInt(scratch[:0], int64(i), 10), false, nil
}

type Float float64

func (f Float) argBytes(scratch []byte) ([]byte, bool, []byte) {
	return strconv.AppendFloat(scratch[:0], float64(f), 'g', -1, 64), false, nil
}

// Command is a name plus an ordered argument sequence, the unit the codec
// serializes to the wire and the unit a Message carries to the network
// handler. KeyHashSlot is an opaque hint for cluster routing, which this
// core neither computes nor consumes.
type Command struct {
	Name        string
	Args        []Arg
	KeyHashSlot *uint16
}

// NewCommand builds a Command from a name and argument values. It accepts
// the concrete Arg types directly, or plain strings/[]byte/int64/float64
// which are coerced to Str/Bytes/Int/Float.
func NewCommand(name string, args ...any) Command {
	out := make([]Arg, 0, len(args))
	for _, a := range args {
		out = append(out, toArg(a))
	}
	return Command{Name: name, Args: out}
}

func toArg(v any) Arg {
	switch t := v.(type) {
	case Arg:
		return t
	case string:
		return Str(t)
	case []byte:
		return Bytes(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case bool:
		if t {
			return Str("1")
		}
		return Str("0")
	default:
		return Str(toFallbackString(v))
	}
}

func toFallbackString(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// WithKeyHashSlot annotates the command with a cluster-routing hint.
func (c Command) WithKeyHashSlot(slot uint16) Command {
	c.KeyHashSlot = &slot
	return c
}
