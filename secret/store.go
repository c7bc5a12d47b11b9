package secret

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sammck/secret-kv/xjson"
)

// DefaultTimeout bounds how long Open waits for another process to release
// a bolt store.
const DefaultTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	// Engine selects the file format. The zero value is EngineBolt.
	Engine EngineKind

	// Create makes Open create the store when it does not exist.
	Create bool

	// CreateOnly makes Open fail with ErrExists when the store exists.
	CreateOnly bool

	// Erase removes any existing store before opening.
	Erase bool

	// Timeout bounds the wait for the bolt file lock; zero means
	// DefaultTimeout.
	Timeout time.Duration

	// Logger receives debug records for every operation. Values and
	// passphrases are never logged.
	Logger *slog.Logger
}

// An Entry is a value together with its tags.
type Entry struct {
	Key   string
	Value xjson.Value
	Tags  map[string]string
}

// A Store holds typed values and their tags under string keys, persisted by
// an encrypted Engine. The store is safe for concurrent use.
type Store struct {
	eng Engine
	log *slog.Logger
	mu  sync.RWMutex
}

// OpenStore opens an existing bolt store located at the given path and
// protected with the given passphrase.
//
// If the store does not exist, it creates a new one at the path and protected
// with the passphrase.
func OpenStore(path, passphrase string) (*Store, error) {
	return Open(path, passphrase, &Options{Create: true})
}

// Open opens the store at path according to opts; nil opts open an existing
// bolt store.
func Open(path, passphrase string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	kind, err := ParseEngineKind(string(opts.Engine))
	if err != nil {
		return nil, err
	}
	if opts.Erase {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, classify("erase", errors.Wrapf(err, "cannot erase %q", path))
		}
	}
	exists := true
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, classify("open", errors.Wrapf(err, "cannot stat store path %q", path))
		}
		exists = false
	}
	if exists && opts.CreateOnly {
		return nil, errors.Wrapf(ErrExists, "%q", path)
	}
	create := opts.Create || opts.CreateOnly

	var eng Engine
	switch kind {
	case EngineFile:
		if exists {
			eng, err = openFileEngine(path, passphrase)
		} else if create {
			eng, err = createFileEngine(path, passphrase)
		} else {
			err = errors.Wrapf(ErrNotInitialized, "%q does not exist", path)
		}
	default:
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		eng, err = openBoltEngine(path, passphrase, create, timeout)
	}
	if err != nil {
		return nil, classify("open", err)
	}
	s := NewStore(eng, opts.Logger)
	s.log.Debug("store opened", "path", path, "engine", string(kind), "created", !exists)
	return s, nil
}

// NewStore returns a Store over an already opened engine. A nil logger
// discards records.
func NewStore(eng Engine, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{eng: eng, log: logger}
}

func validKey(key string) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "key is empty")
	}
	return nil
}

// Set stores value under key, replacing any previous value. A nil tags map
// keeps the tags already attached to key; a non-nil map replaces them. To
// merge tags into the existing ones instead, call Set with nil tags and then
// SetTags(key, tags, false).
func (s *Store) Set(key string, value xjson.Value, tags map[string]string) error {
	if err := validKey(key); err != nil {
		return err
	}
	for name := range tags {
		if name == "" {
			return errors.Wrap(ErrInvalidKey, "tag name is empty")
		}
	}
	// Encode before touching the engine so a bad value changes nothing.
	if _, err := xjson.Encode(value, xjson.ModeExtended); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return ErrNotInitialized
	}

	err := s.eng.Update(key, func(current []byte) ([]byte, error) {
		keep := tags
		if keep == nil && current != nil {
			rec, err := decodeRecord(current)
			if err != nil {
				return nil, err
			}
			keep = rec.Tags
		}
		return encodeRecord(value, keep)
	})
	if err != nil {
		return classify("set", errors.Wrapf(err, "cannot set %q", key))
	}
	s.log.Debug("set", "key", key, "kind", value.Kind().String(), "tags", len(tags))
	return nil
}

// Get returns the value stored under key, decoded in the given mode. If no
// value is present, ErrNotFound is returned. In simple mode a value holding
// binary data fails with xjson.ErrExtendedTypePresent.
func (s *Store) Get(key string, mode xjson.Mode) (xjson.Value, error) {
	e, err := s.Entry(key, mode)
	if err != nil {
		return xjson.Value{}, err
	}
	return e.Value, nil
}

// Entry returns the value and tags stored under key.
func (s *Store) Entry(key string, mode xjson.Mode) (*Entry, error) {
	rec, err := s.load(key)
	if err != nil {
		return nil, err
	}
	v, err := rec.value(mode)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %q", key)
	}
	s.log.Debug("get", "key", key, "mode", mode.String())
	return &Entry{Key: key, Value: v, Tags: rec.tags()}, nil
}

func (s *Store) load(key string) (*record, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.eng == nil {
		return nil, ErrNotInitialized
	}
	data, err := s.eng.Get(key)
	if err != nil {
		return nil, classify("get", errors.Wrapf(err, "cannot get %q", key))
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, classify("get", errors.Wrapf(err, "cannot get %q", key))
	}
	return rec, nil
}

// Has reports whether key is present.
func (s *Store) Has(key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.eng == nil {
		return false, ErrNotInitialized
	}
	_, err := s.eng.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, classify("has", err)
	}
	return true, nil
}

// Delete deletes the value for a key in the store. If the key does not exist
// ErrNotFound is returned.
func (s *Store) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return ErrNotInitialized
	}
	if err := s.eng.Delete(key); err != nil {
		return classify("delete", errors.Wrapf(err, "cannot delete %q", key))
	}
	s.log.Debug("delete", "key", key)
	return nil
}

// Keys returns an iterator over the keys present when it is called, in
// sorted order. Later changes to the store are not reflected.
func (s *Store) Keys() (*KeyIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.eng == nil {
		return nil, ErrNotInitialized
	}
	keys, err := s.eng.Keys()
	if err != nil {
		return nil, classify("keys", errors.Wrap(err, "cannot list keys"))
	}
	return &KeyIterator{keys: keys}, nil
}

// Len returns the number of keys in the store.
func (s *Store) Len() (int, error) {
	it, err := s.Keys()
	if err != nil {
		return 0, err
	}
	return it.Remaining(), nil
}

// Clear removes every key. The store stays open and usable.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return ErrNotInitialized
	}
	if err := s.eng.Clear(); err != nil {
		return classify("clear", errors.Wrap(err, "cannot clear store"))
	}
	s.log.Debug("clear")
	return nil
}

// ChangePassphrase re-encrypts the store under a new passphrase.
func (s *Store) ChangePassphrase(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return ErrNotInitialized
	}
	if err := s.eng.Rekey(passphrase); err != nil {
		return classify("rekey", errors.Wrap(err, "cannot change passphrase"))
	}
	s.log.Debug("passphrase changed")
	return nil
}

// Close closes the underlying engine. Any later call fails with
// ErrNotInitialized.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return nil
	}
	err := s.eng.Close()
	s.eng = nil
	if err != nil {
		return classify("close", err)
	}
	return nil
}
