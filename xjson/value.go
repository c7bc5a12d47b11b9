package xjson

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindBinary
	KindMap
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// A Value is an immutable typed value: null, boolean, number, string, binary
// blob, or a map or list of further values. The zero Value is null.
type Value struct {
	kind Kind

	b   bool
	num json.Number
	str string
	bin []byte
	m   map[string]Value
	l   []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer number value.
func Int(i int64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(i, 10))}
}

// Uint returns an unsigned integer number value.
func Uint(u uint64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatUint(u, 10))}
}

// Float returns a floating point number value. NaN and infinities are
// accepted here but cannot be encoded.
func Float(f float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

// Number returns a number value holding the given JSON number text verbatim.
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Binary returns a binary value. The bytes are copied.
func Binary(b []byte) Value {
	c := make([]byte, len(b))
	copy(c, b)
	return Value{kind: KindBinary, bin: c}
}

// Map returns a map value. The map is copied; a nil map yields an empty map.
func Map(m map[string]Value) Value {
	c := make(map[string]Value, len(m))
	for k, v := range m {
		c[k] = v
	}
	return Value{kind: KindMap, m: c}
}

// List returns a list value holding items in order.
func List(items ...Value) Value {
	c := make([]Value, len(items))
	copy(c, items)
	return Value{kind: KindList, l: c}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean held by v, or false.
func (v Value) Bool() bool { return v.b }

// Number returns the JSON number text held by v, or "".
func (v Value) Number() json.Number { return v.num }

// Float64 returns the number held by v as a float64.
func (v Value) Float64() (float64, error) {
	if v.kind != KindNumber {
		return 0, errors.Errorf("xjson: %s is not a number", v.kind)
	}
	return v.num.Float64()
}

// Int64 returns the number held by v as an int64.
func (v Value) Int64() (int64, error) {
	if v.kind != KindNumber {
		return 0, errors.Errorf("xjson: %s is not a number", v.kind)
	}
	return v.num.Int64()
}

// Str returns the string held by v, or "".
func (v Value) Str() string { return v.str }

// Bytes returns a copy of the binary blob held by v, or nil.
func (v Value) Bytes() []byte {
	if v.kind != KindBinary {
		return nil
	}
	c := make([]byte, len(v.bin))
	copy(c, v.bin)
	return c
}

// Map returns a copy of the map held by v, or nil.
func (v Value) Map() map[string]Value {
	if v.kind != KindMap {
		return nil
	}
	c := make(map[string]Value, len(v.m))
	for k, e := range v.m {
		c[k] = e
	}
	return c
}

// Get returns the map entry for key.
func (v Value) Get(key string) (Value, bool) {
	e, ok := v.m[key]
	return e, ok
}

// Keys returns the sorted keys of a map value.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// List returns a copy of the items held by v, or nil.
func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	c := make([]Value, len(v.l))
	copy(c, v.l)
	return c
}

// Len returns the number of entries of a map or list, the length of a
// string or blob, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len(v.str)
	case KindBinary:
		return len(v.bin)
	case KindMap:
		return len(v.m)
	case KindList:
		return len(v.l)
	}
	return 0
}

// Interface converts v to native Go values: nil, bool, json.Number, string,
// []byte, map[string]interface{} and []interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBinary:
		return v.Bytes()
	case KindMap:
		m := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			m[k] = e.Interface()
		}
		return m
	case KindList:
		l := make([]interface{}, len(v.l))
		for i, e := range v.l {
			l[i] = e.Interface()
		}
		return l
	}
	return nil
}

// Equal reports whether a and b hold the same value. Numbers compare by their
// JSON text.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindBinary:
		return bytes.Equal(a.bin, b.bin)
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindList:
		if len(a.l) != len(b.l) {
			return false
		}
		for i := range a.l {
			if !Equal(a.l[i], b.l[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// ContainsExtended reports whether a value that plain JSON cannot represent
// is reachable from v.
func ContainsExtended(v Value) bool {
	switch v.kind {
	case KindBinary:
		return true
	case KindMap:
		for _, e := range v.m {
			if ContainsExtended(e) {
				return true
			}
		}
	case KindList:
		for _, e := range v.l {
			if ContainsExtended(e) {
				return true
			}
		}
	}
	return false
}

// FromGo converts a native Go value to a Value. Supported inputs are nil,
// bool, integer and float kinds, json.Number, string, []byte, Value, and maps
// with string keys or slices of any supported input.
func FromGo(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Binary(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
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
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := FromGo(e)
			if err != nil {
				return Value{}, errors.Wrapf(err, "key %q", k)
			}
			m[k] = ev
		}
		return Value{kind: KindMap, m: m}, nil
	case []interface{}:
		l := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromGo(e)
			if err != nil {
				return Value{}, errors.Wrapf(err, "index %d", i)
			}
			l[i] = ev
		}
		return Value{kind: KindList, l: l}, nil
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return FromGo(rv.Elem().Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, errors.Errorf("xjson: map key type %s is not string", rv.Type().Key())
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ev, err := FromGo(iter.Value().Interface())
			if err != nil {
				return Value{}, errors.Wrapf(err, "key %q", iter.Key().String())
			}
			m[iter.Key().String()] = ev
		}
		return Value{kind: KindMap, m: m}, nil
	case reflect.Slice, reflect.Array:
		l := make([]Value, rv.Len())
		for i := range l {
			ev, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return Value{}, errors.Wrapf(err, "index %d", i)
			}
			l[i] = ev
		}
		return Value{kind: KindList, l: l}, nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Uint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	}
	return Value{}, errors.Errorf("xjson: cannot convert %s", rv.Type())
}

func validNumber(n json.Number) bool {
	s := string(n)
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	if s[0] != '-' && (s[0] < '0' || s[0] > '9') {
		return false
	}
	return json.Valid([]byte(s))
}
