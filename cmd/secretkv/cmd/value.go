package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/sammck/secret-kv/xjson"
)

// Output formats of a value.
const (
	formatRaw    = "raw"
	formatJSON   = "json"
	formatSimple = "simple"
)

// parseValue builds the value given on the command line: the content of
// file as binary, arg as extended JSON, or arg as a plain string.
func parseValue(arg string, asJSON bool, file string) (xjson.Value, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return xjson.Value{}, errors.Wrapf(err, "cannot read %q", file)
		}
		return xjson.Binary(data), nil
	case asJSON:
		v, err := xjson.Unmarshal([]byte(arg), xjson.ModeExtended)
		return v, errors.Wrap(err, "invalid JSON value")
	default:
		return xjson.String(arg), nil
	}
}

// writeValue prints v. The raw format prints strings as is and binary
// content unencoded; other values fall back to compact extended JSON.
func writeValue(w io.Writer, v xjson.Value, format string) error {
	var out []byte
	var err error
	switch format {
	case formatSimple:
		out, err = xjson.MarshalIndent(v, xjson.ModeSimple, "", "  ")
	case formatJSON:
		out, err = xjson.MarshalIndent(v, xjson.ModeExtended, "", "  ")
	case formatRaw:
		switch v.Kind() {
		case xjson.KindString:
			out = []byte(v.Str())
		case xjson.KindBinary:
			_, err = w.Write(v.Bytes())
			return err
		default:
			out, err = xjson.Marshal(v, xjson.ModeExtended)
		}
	default:
		return errors.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}
