package xjson

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedExtendedValue is returned by Decode when a map carries the
	// type marker but its payload is missing or ill-typed.
	ErrMalformedExtendedValue = errors.New("xjson: malformed extended value")

	// ErrUnrecognizedExtendedType is returned by Decode when the type marker
	// names a type this package does not know.
	ErrUnrecognizedExtendedType = errors.New("xjson: unrecognized extended type")

	// ErrExtendedTypePresent is returned in simple JSON mode when a value
	// that plain JSON cannot represent is reachable.
	ErrExtendedTypePresent = errors.New("xjson: extended type present in simple JSON")

	// ErrInvalidNumber is returned when a number is NaN, infinite or otherwise
	// not a valid JSON number.
	ErrInvalidNumber = errors.New("xjson: invalid number")

	// ErrUnsupportedNode is returned by Decode for a tree node of a Go type
	// that has no JSON counterpart.
	ErrUnsupportedNode = errors.New("xjson: unsupported tree node")
)

// fail wraps a sentinel with the location of the offending node.
func fail(sentinel error, path string, format string, args ...interface{}) error {
	if path == "" {
		path = "$"
	}
	return errors.Wrapf(sentinel, "at %s: %s", path, fmt.Sprintf(format, args...))
}

func keyPath(path, key string) string {
	if path == "" {
		path = "$"
	}
	return path + "[" + strconv.Quote(key) + "]"
}

func indexPath(path string, i int) string {
	if path == "" {
		path = "$"
	}
	return path + "[" + strconv.Itoa(i) + "]"
}
