package secret

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// An Engine persists opaque records under string keys. Implementations
// handle their own encryption and must make every method atomic with respect
// to the others.
type Engine interface {
	// Get returns the record for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put creates or replaces the record for key.
	Put(key string, record []byte) error

	// Update replaces the record for key with the result of fn in one
	// transaction. fn receives nil when key is absent; an error from fn
	// aborts the update and is returned unchanged.
	Update(key string, fn func(record []byte) ([]byte, error)) error

	// Delete removes the record for key, or returns ErrNotFound.
	Delete(key string) error

	// Keys returns a sorted snapshot of all keys.
	Keys() ([]string, error)

	// Clear removes all records.
	Clear() error

	// Rekey re-encrypts everything under a new passphrase.
	Rekey(passphrase string) error

	Close() error
}

// EngineKind names a persistent engine implementation.
type EngineKind string

const (
	// EngineBolt keeps one encrypted record per key in a bbolt database.
	EngineBolt EngineKind = "bolt"

	// EngineFile keeps all records in a single encrypted file.
	EngineFile EngineKind = "file"
)

// ParseEngineKind returns the engine kind for name; "" means EngineBolt.
func ParseEngineKind(name string) (EngineKind, error) {
	switch EngineKind(strings.ToLower(name)) {
	case "", EngineBolt:
		return EngineBolt, nil
	case EngineFile:
		return EngineFile, nil
	}
	return "", errors.Errorf("unknown engine %q", name)
}

// MemoryEngine is an unencrypted Engine that lives in memory only.
type MemoryEngine struct {
	mu sync.Mutex
	m  map[string][]byte
}

// NewMemoryEngine returns an empty MemoryEngine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{m: make(map[string][]byte)}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func (e *MemoryEngine) Get(key string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, ok := e.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(record), nil
}

func (e *MemoryEngine) Put(key string, record []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.m[key] = clone(record)
	return nil
}

func (e *MemoryEngine) Update(key string, fn func([]byte) ([]byte, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, err := fn(clone(e.m[key]))
	if err != nil {
		return err
	}
	e.m[key] = clone(record)
	return nil
}

func (e *MemoryEngine) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.m[key]; !ok {
		return ErrNotFound
	}
	delete(e.m, key)
	return nil
}

func (e *MemoryEngine) Keys() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.m))
	for k := range e.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (e *MemoryEngine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.m = make(map[string][]byte)
	return nil
}

// Rekey is a no-op: a MemoryEngine is not encrypted.
func (e *MemoryEngine) Rekey(passphrase string) error { return nil }

func (e *MemoryEngine) Close() error { return nil }
