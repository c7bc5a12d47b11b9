package project

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/sammck/secret-kv/passphrase"
	"github.com/sammck/secret-kv/secret"
)

// ConfigVersion is the config layout written by Create. Newer layouts are
// refused by Load.
const ConfigVersion = 1

// Config is the TOML content of a project config file. String fields may
// reference ${config_dir}, ${config_dir_hash}, ${config_file_hash} and
// ${env:NAME}.
type Config struct {
	Version    int              `toml:"version"`
	ID         string           `toml:"id"`
	Engine     string           `toml:"engine"`
	DBFile     string           `toml:"db_file"`
	Passphrase PassphraseConfig `toml:"passphrase"`
}

// PassphraseConfig locates the store passphrase in the keyring.
type PassphraseConfig struct {
	Service    string `toml:"service"`
	Key        string `toml:"key"`
	DefaultKey string `toml:"default_key"`
}

func defaultConfig(id string, engine secret.EngineKind) Config {
	return Config{
		Version: ConfigVersion,
		ID:      id,
		Engine:  string(engine),
		DBFile:  "${config_dir}/" + DBFileName,
		Passphrase: PassphraseConfig{
			Service:    passphrase.DefaultService,
			Key:        "fhash/${config_file_hash}/db-passphrase",
			DefaultKey: passphrase.DefaultKey,
		},
	}
}

var varRe = regexp.MustCompile(`\$\{([^}]*)\}`)

// expander substitutes ${name} references with the variables of one config
// file.
type expander map[string]string

func newExpander(configFile string) (expander, error) {
	fileHash, err := passphrase.HashPath(configFile)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(configFile)
	dirHash, err := passphrase.HashPath(dir)
	if err != nil {
		return nil, err
	}
	return expander{
		"config_dir":       dir,
		"config_dir_hash":  dirHash,
		"config_file_hash": fileHash,
	}, nil
}

func (e expander) expand(field, s string) (string, error) {
	var bad error
	out := varRe.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if v, ok := e[name]; ok {
			return v
		}
		if env := strings.TrimPrefix(name, "env:"); env != name {
			if v, ok := os.LookupEnv(env); ok {
				return v
			}
		}
		if bad == nil {
			bad = errors.Errorf("%s: undefined variable %q", field, name)
		}
		return ref
	})
	return out, bad
}

func readConfig(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("config %q: unknown field %q", path, undecoded[0].String())
	}
	if cfg.Version > ConfigVersion {
		return nil, errors.Wrapf(secret.ErrIncompatible, "config %q has version %d, newest supported is %d", path, cfg.Version, ConfigVersion)
	}
	return &cfg, nil
}

func writeConfig(path string, cfg Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.Wrapf(err, "cannot create config %q", path)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot write config %q", path)
	}
	return errors.Wrapf(f.Close(), "cannot write config %q", path)
}
