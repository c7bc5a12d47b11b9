// Package project manages secret stores that live next to the code using
// them, in a .secret-kv directory holding a TOML config and the store file.
//
// The passphrase of a project store is kept in the OS keyring under a key
// derived from the config file location. When no such record exists the
// default passphrase is used, so a user can set one default and create
// stores freely.
package project

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sammck/secret-kv/passphrase"
	"github.com/sammck/secret-kv/secret"
)

const (
	// DirName is the directory created by Create in the parent directory.
	DirName = ".secret-kv"

	// ConfigFileName is the config file inside DirName.
	ConfigFileName = "config.toml"

	// DBFileName is the store file inside DirName.
	DBFileName = "kv.db"
)

// ErrConfigNotFound is returned when no config file can be located.
var ErrConfigNotFound = errors.New("secret-kv config not found")

// Options configures Create, Open and Destroy.
type Options struct {
	// Passphrase overrides the keyring lookup when set.
	Passphrase string

	// Storage holds passphrases; nil means the OS keyring.
	Storage passphrase.Storage

	// Engine selects the store format for Create.
	Engine secret.EngineKind

	// NoScan stops Open and Destroy from searching parent directories.
	NoScan bool

	// Create, CreateOnly and Erase are passed to secret.Open by Open.
	Create     bool
	CreateOnly bool
	Erase      bool

	Logger *slog.Logger
}

func (o *Options) storage() passphrase.Storage {
	if o.Storage == nil {
		return passphrase.Keyring{}
	}
	return o.Storage
}

// A Project is a loaded config with every reference expanded.
type Project struct {
	ConfigFile string
	Config     Config

	// Expanded locations.
	DBFile        string
	PassphraseKey string

	resolver *passphrase.Resolver
}

// Load reads and expands the config file at path.
func Load(path string, storage passphrase.Storage) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve %q", path)
	}
	cfg, err := readConfig(abs)
	if err != nil {
		return nil, err
	}
	if _, err := secret.ParseEngineKind(cfg.Engine); err != nil {
		return nil, errors.Wrapf(err, "config %q", abs)
	}
	e, err := newExpander(abs)
	if err != nil {
		return nil, err
	}
	p := &Project{ConfigFile: abs, Config: *cfg}
	if p.DBFile, err = e.expand("db_file", cfg.DBFile); err != nil {
		return nil, errors.Wrapf(err, "config %q", abs)
	}
	if p.DBFile == "" {
		p.DBFile = filepath.Join(filepath.Dir(abs), DBFileName)
	}
	if p.PassphraseKey, err = e.expand("passphrase.key", cfg.Passphrase.Key); err != nil {
		return nil, errors.Wrapf(err, "config %q", abs)
	}
	if p.PassphraseKey == "" {
		if p.PassphraseKey, err = passphrase.KeyFor(abs); err != nil {
			return nil, err
		}
	}
	r := passphrase.NewResolver(storage)
	if r.Service, err = e.expand("passphrase.service", cfg.Passphrase.Service); err != nil {
		return nil, errors.Wrapf(err, "config %q", abs)
	}
	if r.DefaultKey, err = e.expand("passphrase.default_key", cfg.Passphrase.DefaultKey); err != nil {
		return nil, errors.Wrapf(err, "config %q", abs)
	}
	p.resolver = r
	return p, nil
}

// Resolver returns the passphrase resolver configured for the project.
func (p *Project) Resolver() *passphrase.Resolver { return p.resolver }

// Passphrase returns the store passphrase recorded in the keyring, or the
// default one.
func (p *Project) Passphrase() (string, error) {
	return p.resolver.Lookup(p.PassphraseKey)
}

// Locate finds the config file designated by path. A file is returned as
// is. In a directory, config.toml and .secret-kv/config.toml are tried, then
// the parent directories when scanParents is set.
func Locate(path string, scanParents bool) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "cannot resolve %q", path)
	}
	fi, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", errors.Wrapf(ErrConfigNotFound, "%q does not exist", path)
	}
	if err != nil {
		return "", errors.Wrapf(err, "cannot stat %q", path)
	}
	if !fi.IsDir() {
		return abs, nil
	}
	for dir := abs; ; {
		for _, tail := range []string{ConfigFileName, filepath.Join(DirName, ConfigFileName)} {
			candidate := filepath.Join(dir, tail)
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if !scanParents || parent == dir {
			break
		}
		dir = parent
	}
	if scanParents {
		return "", errors.Wrapf(ErrConfigNotFound, "not in %q or its parent directories", path)
	}
	return "", errors.Wrapf(ErrConfigNotFound, "not in %q", path)
}

// A Store is an open project store.
type Store struct {
	*secret.Store
	Project *Project
}

// ChangePassphrase records the new passphrase in the keyring, then
// re-encrypts the store under it. If re-encryption fails the previous
// keyring record is put back.
func (s *Store) ChangePassphrase(newPassphrase string) error {
	r, key := s.Project.resolver, s.Project.PassphraseKey
	old, err := r.Get(key)
	recorded := err == nil
	if err != nil && !errors.Is(err, passphrase.ErrNotFound) {
		return err
	}
	if err := r.Store(key, newPassphrase); err != nil {
		return errors.Wrap(err, "cannot record new passphrase")
	}
	if err := s.Store.ChangePassphrase(newPassphrase); err != nil {
		var restore error
		if recorded {
			restore = r.Store(key, old)
		} else {
			restore = r.Forget(key)
		}
		if restore != nil {
			return errors.Wrapf(err, "keyring record %q left holding the new passphrase (%v)", key, restore)
		}
		return err
	}
	return nil
}

// Create makes a .secret-kv directory in parentDir holding a new config and
// an empty store. The passphrase comes from opts or, failing that, from the
// default keyring record; it is recorded for the new store.
func Create(parentDir string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	abs, err := filepath.Abs(parentDir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve %q", parentDir)
	}
	if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
		return nil, errors.Errorf("no such directory: %q", parentDir)
	}
	kind, err := secret.ParseEngineKind(string(opts.Engine))
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(abs, DirName)
	if _, err := os.Lstat(dir); err == nil {
		return nil, errors.Wrapf(secret.ErrExists, "%q", dir)
	}

	pass := opts.Passphrase
	if pass == "" {
		pass, err = passphrase.NewResolver(opts.storage()).Default()
		if err != nil {
			return nil, errors.Wrap(err, "a passphrase must be given at creation, or a default passphrase set")
		}
	}

	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, errors.Wrapf(err, "cannot create %q", dir)
	}
	s, err := create(dir, kind, pass, opts)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return s, nil
}

func create(dir string, kind secret.EngineKind, pass string, opts *Options) (*Store, error) {
	configFile := filepath.Join(dir, ConfigFileName)
	if err := writeConfig(configFile, defaultConfig(uuid.NewString(), kind)); err != nil {
		return nil, err
	}
	p, err := Load(configFile, opts.storage())
	if err != nil {
		return nil, err
	}
	if err := p.resolver.Store(p.PassphraseKey, pass); err != nil {
		return nil, err
	}
	st, err := secret.Open(p.DBFile, pass, &secret.Options{
		Engine:     secret.EngineKind(p.Config.Engine),
		CreateOnly: true,
		Logger:     opts.Logger,
	})
	if err != nil {
		p.resolver.Forget(p.PassphraseKey)
		return nil, err
	}
	return &Store{Store: st, Project: p}, nil
}

// Open locates the config designated by path and opens its store.
func Open(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	configFile, err := Locate(path, !opts.NoScan)
	if err != nil {
		return nil, err
	}
	p, err := Load(configFile, opts.storage())
	if err != nil {
		return nil, err
	}
	pass := opts.Passphrase
	if pass == "" {
		if pass, err = p.Passphrase(); err != nil {
			return nil, err
		}
	}
	st, err := secret.Open(p.DBFile, pass, &secret.Options{
		Engine:     secret.EngineKind(p.Config.Engine),
		Create:     opts.Create,
		CreateOnly: opts.CreateOnly,
		Erase:      opts.Erase,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Store{Store: st, Project: p}, nil
}

// Destroy removes the store designated by path: its keyring record, store
// file, config file and, when empty, the .secret-kv directory. It returns
// the removed config file.
func Destroy(path string, opts *Options) (string, error) {
	if opts == nil {
		opts = &Options{}
	}
	configFile, err := Locate(path, !opts.NoScan)
	if err != nil {
		return "", err
	}
	p, err := Load(configFile, opts.storage())
	if err != nil {
		return "", err
	}
	if err := p.resolver.Forget(p.PassphraseKey); err != nil {
		return "", err
	}
	if err := os.Remove(p.DBFile); err != nil && !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "cannot remove store %q", p.DBFile)
	}
	if err := os.Remove(configFile); err != nil {
		return "", errors.Wrapf(err, "cannot remove config %q", configFile)
	}
	if dir := filepath.Dir(configFile); filepath.Base(dir) == DirName {
		if err := os.Remove(dir); err != nil {
			return "", errors.Wrapf(err, "cannot remove %q", dir)
		}
	}
	return configFile, nil
}
