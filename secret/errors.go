package secret

import (
	"github.com/pkg/errors"

	"github.com/sammck/secret-kv/xjson"
)

var (
	// ErrNotFound is returned when a key, or a tag of a key, does not exist
	// in the store.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidKey is returned when a key or tag name is empty.
	ErrInvalidKey = errors.New("invalid key")

	// ErrNotInitialized is returned when the store file has not been created
	// yet, or when the store has been closed.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrExists is returned by Open with CreateOnly when the store file is
	// already present.
	ErrExists = errors.New("store already exists")

	// ErrBadPassphrase is returned when the passphrase does not decrypt the
	// store.
	ErrBadPassphrase = errors.New("incorrect passphrase or corrupt store")

	// ErrIncompatible is returned when the store was written by another
	// application or a newer format revision.
	ErrIncompatible = errors.New("incompatible store format")

	// ErrPersistence matches every *PersistenceError with errors.Is.
	ErrPersistence = errors.New("persistence failure")
)

// A PersistenceError reports a failure of the underlying storage engine.
// These are never retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + ErrPersistence.Error() + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

var passthrough = []error{
	ErrNotFound,
	ErrInvalidKey,
	ErrNotInitialized,
	ErrExists,
	ErrBadPassphrase,
	ErrIncompatible,
	ErrPersistence,
	xjson.ErrMalformedExtendedValue,
	xjson.ErrUnrecognizedExtendedType,
	xjson.ErrExtendedTypePresent,
	xjson.ErrInvalidNumber,
}

// classify leaves errors of this package and of xjson untouched and turns
// anything else into a *PersistenceError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range passthrough {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}
