package xjson

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Marshal returns the canonical JSON text of v: compact, with object keys in
// sorted order and no HTML escaping.
func Marshal(v Value, mode Mode) ([]byte, error) {
	tree, err := Encode(v, mode)
	if err != nil {
		return nil, err
	}
	return marshalTree(tree)
}

// MarshalIndent is like Marshal but indents the output.
func MarshalIndent(v Value, mode Mode, prefix, indent string) ([]byte, error) {
	tree, err := Encode(v, mode)
	if err != nil {
		return nil, err
	}
	text, err := marshalTree(tree)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, text, prefix, indent); err != nil {
		return nil, errors.Wrap(err, "xjson: cannot indent")
	}
	return buf.Bytes(), nil
}

func marshalTree(tree interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, errors.Wrap(err, "xjson: cannot marshal")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// Unmarshal parses JSON text and decodes it in the given mode.
func Unmarshal(data []byte, mode Mode) (Value, error) {
	tree, err := parseTree(data)
	if err != nil {
		return Value{}, err
	}
	return Decode(tree, mode)
}

func parseTree(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, errors.Wrap(err, "xjson: cannot parse JSON")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("xjson: trailing data after JSON value")
	}
	return tree, nil
}

// MarshalJSON implements json.Marshaler using the extended mode.
func (v Value) MarshalJSON() ([]byte, error) {
	return Marshal(v, ModeExtended)
}

// UnmarshalJSON implements json.Unmarshaler using the extended mode.
func (v *Value) UnmarshalJSON(data []byte) error {
	dv, err := Unmarshal(data, ModeExtended)
	if err != nil {
		return err
	}
	*v = dv
	return nil
}

// String returns the canonical extended JSON text of v, for display.
func (v Value) String() string {
	text, err := Marshal(v, ModeExtended)
	if err != nil {
		return "<invalid: " + err.Error() + ">"
	}
	return string(text)
}
