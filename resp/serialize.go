package resp

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"redisx/internal/rerr"
)

// ErrorValue, when passed to Serialize, forces `-` (or `!` if Blob is set)
// output instead of the tag Serialize would otherwise infer from its Go type.
type ErrorValue struct {
	Code    string
	Message string
	Blob    bool
}

// PushValue forces `>` output for its elements, used to synthesize
// out-of-band push frames (tests, mock servers).
type PushValue []any

// SetValue forces `~` output for its elements.
type SetValue []any

// Serialize produces RESP3 bytes for a typed Go value, the mirror image of
// Into. Bytes serialize as bulk strings; strings serialize as simple
// strings unless they contain CRLF (then bulk string, since a simple string
// cannot embed the line terminator); slices/arrays/maps require a knowable
// length, which Go's reflect already guarantees.
func Serialize(v any) ([]byte, error) {
	return serializeValue(reflect.ValueOf(v))
}

func serializeValue(rv reflect.Value) ([]byte, error) {
	if !rv.IsValid() {
		return []byte("_" + crlf), nil
	}

	switch t := rv.Interface().(type) {
	case ErrorValue:
		tag := byte('-')
		if t.Blob {
			tag = '!'
		}
		msg := t.Code
		if t.Message != "" {
			msg = t.Code + " " + t.Message
		}
		if tag == '-' {
			return []byte("-" + msg + crlf), nil
		}
		return appendBulkLike('!', []byte(msg)), nil
	case PushValue:
		return serializeAggregate('>', len(t), func(i int) (reflect.Value, error) {
			return reflect.ValueOf(t[i]), nil
		})
	case SetValue:
		return serializeAggregate('~', len(t), func(i int) (reflect.Value, error) {
			return reflect.ValueOf(t[i]), nil
		})
	}

	switch rv.Kind() {
	case reflect.Invalid:
		return []byte("_" + crlf), nil
	case reflect.Bool:
		if rv.Bool() {
			return []byte("#t" + crlf), nil
		}
		return []byte("#f" + crlf), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []byte(":" + strconv.FormatInt(rv.Int(), 10) + crlf), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return []byte(":" + strconv.FormatUint(rv.Uint(), 10) + crlf), nil
	case reflect.Float32, reflect.Float64:
		return []byte("," + strconv.FormatFloat(rv.Float(), 'g', -1, 64) + crlf), nil
	case reflect.String:
		s := rv.String()
		if strings.Contains(s, crlf) {
			return appendBulkLike('$', []byte(s)), nil
		}
		return []byte("+" + s + crlf), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return appendBulkLike('$', rv.Bytes()), nil
		}
		return serializeAggregate('*', rv.Len(), func(i int) (reflect.Value, error) {
			return rv.Index(i), nil
		})
	case reflect.Array:
		n := rv.Len()
		el := make([]reflect.Value, n)
		for i := 0; i < n; i++ {
			el[i] = rv.Index(i)
		}
		return serializeAggregate('*', n, func(i int) (reflect.Value, error) { return el[i], nil })
	case reflect.Map:
		keys := rv.MapKeys()
		var buf []byte
		buf = append(buf, '%')
		buf = strconv.AppendInt(buf, int64(len(keys)), 10)
		buf = append(buf, '\r', '\n')
		for _, k := range keys {
			kb, err := serializeValue(k)
			if err != nil {
				return nil, err
			}
			vb, err := serializeValue(rv.MapIndex(k))
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, vb...)
		}
		return buf, nil
	case reflect.Ptr:
		if rv.IsNil() {
			return []byte("_" + crlf), nil
		}
		return serializeValue(rv.Elem())
	case reflect.Struct:
		return serializeStruct(rv)
	default:
		return nil, rerr.New(rerr.KindTypeMismatch, "resp.Serialize", fmt.Sprintf("unsupported kind %s", rv.Kind()))
	}
}

func serializeAggregate(tag byte, n int, at func(int) (reflect.Value, error)) ([]byte, error) {
	var buf []byte
	buf = append(buf, tag)
	buf = strconv.AppendInt(buf, int64(n), 10)
	buf = append(buf, '\r', '\n')
	for i := 0; i < n; i++ {
		ev, err := at(i)
		if err != nil {
			return nil, err
		}
		eb, err := serializeValue(ev)
		if err != nil {
			return nil, err
		}
		buf = append(buf, eb...)
	}
	return buf, nil
}

func serializeStruct(rv reflect.Value) ([]byte, error) {
	rt := rv.Type()
	var fieldNames []string
	var fieldVals []reflect.Value
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Tag.Get("redis")
		if name == "" {
			name = sf.Name
		}
		if name == "-" {
			continue
		}
		fieldNames = append(fieldNames, name)
		fieldVals = append(fieldVals, rv.Field(i))
	}
	var buf []byte
	buf = append(buf, '%')
	buf = strconv.AppendInt(buf, int64(len(fieldNames)), 10)
	buf = append(buf, '\r', '\n')
	for i, name := range fieldNames {
		buf = append(buf, appendBulkLike('$', []byte(name))...)
		vb, err := serializeValue(fieldVals[i])
		if err != nil {
			return nil, err
		}
		buf = append(buf, vb...)
	}
	return buf, nil
}

func appendBulkLike(tag byte, payload []byte) []byte {
	var buf []byte
	buf = append(buf, tag)
	buf = strconv.AppendInt(buf, int64(len(payload)), 10)
	buf = append(buf, '\r', '\n')
	buf = append(buf, payload...)
	buf = append(buf, '\r', '\n')
	return buf
}
