package passphrase

import (
	"github.com/pkg/errors"
)

// A Resolver finds the passphrase of a store in a Storage, falling back to
// the default passphrase.
type Resolver struct {
	Storage Storage

	// Service defaults to DefaultService.
	Service string

	// DefaultKey defaults to DefaultKey.
	DefaultKey string
}

// NewResolver returns a Resolver over storage with the default service and
// keys.
func NewResolver(storage Storage) *Resolver {
	return &Resolver{Storage: storage}
}

func (r *Resolver) service() string {
	if r.Service == "" {
		return DefaultService
	}
	return r.Service
}

func (r *Resolver) defaultKey() string {
	if r.DefaultKey == "" {
		return DefaultKey
	}
	return r.DefaultKey
}

// Default returns the default passphrase, or ErrNoPassphrase.
func (r *Resolver) Default() (string, error) {
	secret, err := r.Storage.Get(r.service(), r.defaultKey())
	if errors.Is(err, ErrNotFound) {
		return "", errors.Wrapf(ErrNoPassphrase, "no default passphrase set at service %q, key %q", r.service(), r.defaultKey())
	}
	return secret, err
}

// SetDefault records the default passphrase.
func (r *Resolver) SetDefault(secret string) error {
	return r.Storage.Set(r.service(), r.defaultKey(), secret)
}

// Lookup returns the passphrase recorded under key, or the default
// passphrase when there is none.
func (r *Resolver) Lookup(key string) (string, error) {
	secret, err := r.Storage.Get(r.service(), key)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	secret, err = r.Default()
	if errors.Is(err, ErrNoPassphrase) {
		return "", errors.Wrapf(ErrNoPassphrase, "no passphrase set at service %q, key %q, and no default", r.service(), key)
	}
	return secret, err
}

// Get returns the passphrase recorded under key, without the default
// fallback. A missing record is ErrNotFound.
func (r *Resolver) Get(key string) (string, error) {
	return r.Storage.Get(r.service(), key)
}

// Store records the passphrase under key.
func (r *Resolver) Store(key, secret string) error {
	return r.Storage.Set(r.service(), key, secret)
}

// Forget removes the passphrase recorded under key. A missing record is not
// an error.
func (r *Resolver) Forget(key string) error {
	err := r.Storage.Delete(r.service(), key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
