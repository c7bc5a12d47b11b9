package xjson

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
)

// Mode selects how values map to and from JSON trees.
type Mode uint8

const (
	// ModeExtended encodes binary blobs as marker maps and escapes user keys
	// that look like markers. It is the zero Mode.
	ModeExtended Mode = iota

	// ModeSimple maps values to JSON verbatim and refuses anything plain JSON
	// cannot represent.
	ModeSimple
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeExtended:
		return "extended"
	case ModeSimple:
		return "simple"
	default:
		return "unknown"
	}
}

const (
	// TypeKey is the marker key of an encoded extended value.
	TypeKey = "@kv_type"

	// TypeBinary is the marker value of an encoded binary blob.
	TypeBinary = "binary"

	// DataKey holds the payload of an encoded extended value.
	DataKey = "data"
)

var markerKeyPattern = regexp.MustCompile(`^@+kv_type$`)

// IsMarkerKey reports whether key is one or more '@' followed by "kv_type".
func IsMarkerKey(key string) bool {
	return markerKeyPattern.MatchString(key)
}

func escapeKey(key string) string {
	if IsMarkerKey(key) {
		return "@" + key
	}
	return key
}

func unescapeKey(key string) string {
	if key != TypeKey && IsMarkerKey(key) {
		return key[1:]
	}
	return key
}

// An extendedDecoder builds a Value from a marker map. The map is known to
// hold TypeKey.
type extendedDecoder func(obj map[string]interface{}, path string) (Value, error)

var extendedTypes = map[string]extendedDecoder{
	TypeBinary: decodeBinary,
}

func decodeBinary(obj map[string]interface{}, path string) (Value, error) {
	raw, ok := obj[DataKey]
	if !ok {
		return Value{}, fail(ErrMalformedExtendedValue, path, "binary value has no %q", DataKey)
	}
	if len(obj) != 2 {
		return Value{}, fail(ErrMalformedExtendedValue, path, "binary value has extraneous properties")
	}
	s, ok := raw.(string)
	if !ok {
		return Value{}, fail(ErrMalformedExtendedValue, path, "binary %q is %T, not a string", DataKey, raw)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Value{}, fail(ErrMalformedExtendedValue, path, "invalid base64: %v", err)
	}
	return Value{kind: KindBinary, bin: b}, nil
}

// Encode converts v to a JSON tree made of nil, bool, json.Number, string,
// map[string]interface{} and []interface{}, suitable for json.Marshal.
func Encode(v Value, mode Mode) (interface{}, error) {
	return encode(v, mode, "")
}

func encode(v Value, mode Mode, path string) (interface{}, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.b, nil
	case KindNumber:
		if !validNumber(v.num) {
			return nil, fail(ErrInvalidNumber, path, "%q", string(v.num))
		}
		return v.num, nil
	case KindString:
		return v.str, nil
	case KindBinary:
		if mode == ModeSimple {
			return nil, fail(ErrExtendedTypePresent, path, "binary value")
		}
		return map[string]interface{}{
			TypeKey: TypeBinary,
			DataKey: base64.StdEncoding.EncodeToString(v.bin),
		}, nil
	case KindMap:
		obj := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			enc, err := encode(e, mode, keyPath(path, k))
			if err != nil {
				return nil, err
			}
			if mode == ModeExtended {
				k = escapeKey(k)
			}
			obj[k] = enc
		}
		return obj, nil
	case KindList:
		items := make([]interface{}, len(v.l))
		for i, e := range v.l {
			enc, err := encode(e, mode, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			items[i] = enc
		}
		return items, nil
	}
	return nil, fail(ErrMalformedExtendedValue, path, "unknown kind %d", v.kind)
}

// Decode converts a JSON tree, as produced by Encode or by json.Unmarshal,
// back to a Value.
func Decode(tree interface{}, mode Mode) (Value, error) {
	return decode(tree, mode, "")
}

func decode(tree interface{}, mode Mode, path string) (Value, error) {
	switch t := tree.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if !validNumber(t) {
			return Value{}, fail(ErrInvalidNumber, path, "%q", string(t))
		}
		return Number(t), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Value{}, fail(ErrInvalidNumber, path, "%v", t)
		}
		return Float(t), nil
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fail(ErrInvalidNumber, path, "%v", t)
		}
		return Number(json.Number(strconv.FormatFloat(f, 'g', -1, 32))), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint8:
		return Uint(uint64(t)), nil
	case uint16:
		return Uint(uint64(t)), nil
	case uint32:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case string:
		return String(t), nil
	case map[string]interface{}:
		if mode == ModeExtended {
			if marker, ok := t[TypeKey]; ok {
				return decodeExtended(marker, t, path)
			}
		}
		m := make(map[string]Value, len(t))
		for k, e := range t {
			dv, err := decode(e, mode, keyPath(path, k))
			if err != nil {
				return Value{}, err
			}
			if mode == ModeExtended {
				k = unescapeKey(k)
			}
			m[k] = dv
		}
		return Value{kind: KindMap, m: m}, nil
	case []interface{}:
		l := make([]Value, len(t))
		for i, e := range t {
			dv, err := decode(e, mode, indexPath(path, i))
			if err != nil {
				return Value{}, err
			}
			l[i] = dv
		}
		return Value{kind: KindList, l: l}, nil
	}
	return Value{}, fail(ErrUnsupportedNode, path, "%T", tree)
}

func decodeExtended(marker interface{}, obj map[string]interface{}, path string) (Value, error) {
	name, ok := marker.(string)
	if !ok {
		return Value{}, fail(ErrMalformedExtendedValue, path, "%s is %T, not a string", TypeKey, marker)
	}
	dec, ok := extendedTypes[name]
	if !ok {
		return Value{}, fail(ErrUnrecognizedExtendedType, path, "%s", strconv.Quote(name))
	}
	return dec(obj, path)
}
