// Package passphrase keeps store passphrases in a secret storage such as the
// OS keyring, keyed by a hash of the store's config file location.
package passphrase

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
)

const (
	// DefaultService is the keyring service holding all passphrases.
	DefaultService = "secret-kv"

	// DefaultKey names the passphrase used when a store has none of its own.
	DefaultKey = "default-db-passphrase"

	keyPrefix = "fhash/"
	keySuffix = "/db-passphrase"
)

var (
	// ErrNotFound is returned by a Storage for a missing record.
	ErrNotFound = errors.New("passphrase not found")

	// ErrNoPassphrase is returned when neither the store's own nor the
	// default passphrase is recorded.
	ErrNoPassphrase = errors.New("no passphrase available")
)

// Storage reads and writes secrets by service and key.
type Storage interface {
	Get(service, key string) (string, error)
	Set(service, key, secret string) error
	Delete(service, key string) error
}

// Keyring is a Storage backed by the OS keyring.
type Keyring struct{}

func (Keyring) Get(service, key string) (string, error) {
	secret, err := keyring.Get(service, key)
	if err == keyring.ErrNotFound {
		return "", errors.Wrapf(ErrNotFound, "service %q, key %q", service, key)
	}
	if err != nil {
		return "", errors.Wrap(err, "cannot read keyring")
	}
	return secret, nil
}

func (Keyring) Set(service, key, secret string) error {
	if err := keyring.Set(service, key, secret); err != nil {
		return errors.Wrap(err, "cannot write keyring")
	}
	return nil
}

func (Keyring) Delete(service, key string) error {
	err := keyring.Delete(service, key)
	if err == keyring.ErrNotFound {
		return errors.Wrapf(ErrNotFound, "service %q, key %q", service, key)
	}
	if err != nil {
		return errors.Wrap(err, "cannot delete from keyring")
	}
	return nil
}

// Memory is a Storage that lives in memory only. The zero value is ready to
// use.
type Memory struct {
	mu sync.Mutex
	m  map[string]string
}

func (m *Memory) Get(service, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.m[service+"\x00"+key]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "service %q, key %q", service, key)
	}
	return secret, nil
}

func (m *Memory) Set(service, key, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.m == nil {
		m.m = make(map[string]string)
	}
	m.m[service+"\x00"+key] = secret
	return nil
}

func (m *Memory) Delete(service, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.m[service+"\x00"+key]; !ok {
		return errors.Wrapf(ErrNotFound, "service %q, key %q", service, key)
	}
	delete(m.m, service+"\x00"+key)
	return nil
}

// HashPath returns the hex SHA-1 of the absolute, home-expanded form of path.
func HashPath(path string) (string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum([]byte(abs))
	return hex.EncodeToString(sum[:]), nil
}

// KeyFor returns the keyring key of the passphrase of the store configured
// by configFile.
func KeyFor(configFile string) (string, error) {
	h, err := HashPath(configFile)
	if err != nil {
		return "", err
	}
	return keyPrefix + h + keySuffix, nil
}

func absPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "cannot expand ~")
		}
		path = filepath.Join(home, path[1:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "cannot resolve %q", path)
	}
	return abs, nil
}
