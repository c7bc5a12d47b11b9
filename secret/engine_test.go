package secret

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/sammck/secret-kv/xjson"
)

var kinds = []EngineKind{EngineBolt, EngineFile}

func TestReopen(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kv.db")
			opts := &Options{Engine: kind, Create: true}
			s, err := Open(path, "pass", opts)
			if err != nil {
				t.Fatal(err)
			}
			blob := xjson.Binary([]byte("top secret"))
			if err := s.Set("blob", blob, map[string]string{"t": "1"}); err != nil {
				t.Fatal(err)
			}
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}

			s, err = Open(path, "pass", &Options{Engine: kind})
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			e, err := s.Entry("blob", xjson.ModeExtended)
			if err != nil {
				t.Fatal(err)
			}
			if !xjson.Equal(e.Value, blob) || e.Tags["t"] != "1" {
				t.Errorf("Entry = %+v", e)
			}
		})
	}
}

func TestNothingInClear(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kv.db")
			s, err := Open(path, "pass", &Options{Engine: kind, Create: true})
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Set("visible-key-name", xjson.String("visible-value"), map[string]string{"visible-tag": "x"}); err != nil {
				t.Fatal(err)
			}
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			for _, needle := range []string{"visible-key-name", "visible-value", "visible-tag"} {
				if bytes.Contains(raw, []byte(needle)) {
					t.Errorf("%q found in clear in the store file", needle)
				}
			}
		})
	}
}

func TestWrongPassphrase(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kv.db")
			s, err := Open(path, "right", &Options{Engine: kind, Create: true})
			if err != nil {
				t.Fatal(err)
			}
			s.Close()

			_, err = Open(path, "wrong", &Options{Engine: kind})
			if !errors.Is(err, ErrBadPassphrase) {
				t.Errorf("error = %v; want ErrBadPassphrase", err)
			}
		})
	}
}

func TestOpenModes(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kv.db")
			if _, err := Open(path, "p", &Options{Engine: kind}); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("open missing error = %v; want ErrNotInitialized", err)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("failed open created %s", path)
			}

			s, err := Open(path, "p", &Options{Engine: kind, CreateOnly: true})
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Set("a", xjson.Null(), nil); err != nil {
				t.Fatal(err)
			}
			s.Close()

			if _, err := Open(path, "p", &Options{Engine: kind, CreateOnly: true}); !errors.Is(err, ErrExists) {
				t.Errorf("CreateOnly on existing error = %v; want ErrExists", err)
			}

			s, err = Open(path, "other", &Options{Engine: kind, Create: true, Erase: true})
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if n, err := s.Len(); err != nil || n != 0 {
				t.Errorf("erased store Len = %d, %v", n, err)
			}
		})
	}
}

func TestChangePassphrase(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kv.db")
			s, err := Open(path, "old", &Options{Engine: kind, Create: true})
			if err != nil {
				t.Fatal(err)
			}
			for _, k := range []string{"a", "b"} {
				if err := s.Set(k, xjson.String(k+"!"), map[string]string{"k": k}); err != nil {
					t.Fatal(err)
				}
			}
			if err := s.ChangePassphrase("new"); err != nil {
				t.Fatal(err)
			}
			if v, err := s.Get("a", xjson.ModeExtended); err != nil || v.Str() != "a!" {
				t.Errorf("Get after rekey = %s, %v", v, err)
			}
			s.Close()

			if _, err := Open(path, "old", &Options{Engine: kind}); !errors.Is(err, ErrBadPassphrase) {
				t.Errorf("old passphrase error = %v; want ErrBadPassphrase", err)
			}
			s, err = Open(path, "new", &Options{Engine: kind})
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			it, err := s.Keys()
			if err != nil {
				t.Fatal(err)
			}
			if keys := it.Collect(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
				t.Errorf("keys = %v", keys)
			}
			if tag, err := s.Tag("b", "k"); err != nil || tag != "b" {
				t.Errorf("Tag = %q, %v", tag, err)
			}
		})
	}
}

func TestBoltIncompatible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := Open(path, "p", &Options{Create: true})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(metaApp, []byte("someone-else"))
	})
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path, "p", nil); !errors.Is(err, ErrIncompatible) {
		t.Errorf("error = %v; want ErrIncompatible", err)
	}
}

func TestFileIncompatible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	if err := os.WriteFile(path, []byte{1}, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, "p", &Options{Engine: EngineFile}); !errors.Is(err, ErrIncompatible) {
		t.Errorf("truncated header error = %v; want ErrIncompatible", err)
	}

	header := make([]byte, headerSize)
	header[0] = 1
	if err := os.WriteFile(path, header, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, "p", &Options{Engine: EngineFile}); !errors.Is(err, ErrIncompatible) {
		t.Errorf("old revision error = %v; want ErrIncompatible", err)
	}
}

func TestHmapEncoding(t *testing.T) {
	hm := newHmap()
	for k, v := range map[string]string{"b": "2", "a:{}": "1", "ünïcode": ""} {
		if err := hm.store(k, []byte(v)); err != nil {
			t.Fatal(err)
		}
	}
	encoded := hm.encode()
	back, err := decodeHmap(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.m) != 3 {
		t.Fatalf("decoded %d pairs", len(back.m))
	}
	if v, ok := back.load("a:{}"); !ok || string(v) != "1" {
		t.Errorf("a:{} = %q, %v", v, ok)
	}
	if !bytes.Equal(encoded, back.encode()) {
		t.Error("encoding is not deterministic")
	}

	for _, bad := range []string{"x", "{YQ==", "{YQ==:MQ==:MQ==}", "{!!:MQ==}"} {
		if _, err := decodeHmap([]byte(bad)); err == nil {
			t.Errorf("decodeHmap(%q) succeeded", bad)
		}
	}
}

func TestParseEngineKind(t *testing.T) {
	for in, want := range map[string]EngineKind{"": EngineBolt, "BOLT": EngineBolt, "file": EngineFile} {
		if got, err := ParseEngineKind(in); err != nil || got != want {
			t.Errorf("ParseEngineKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseEngineKind("sqlite"); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestBoltForeignDatabase(t *testing.T) {
	dir := t.TempDir()
	foreign := filepath.Join(dir, "foreign.db")
	db, err := bolt.Open(foreign, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucket([]byte("users"))
		return err
	})
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	for _, opts := range []*Options{nil, {Create: true}} {
		if _, err := Open(foreign, "p", opts); !errors.Is(err, ErrIncompatible) {
			t.Errorf("Open(%+v) error = %v; want ErrIncompatible", opts, err)
		}
	}
	db, err = bolt.Open(foreign, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(metaBucket) != nil {
			return errors.New("foreign database was initialized")
		}
		return nil
	})
	db.Close()
	if err != nil {
		t.Error(err)
	}

	empty := filepath.Join(dir, "empty.db")
	db, err = bolt.Open(empty, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()
	if _, err := Open(empty, "p", nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("empty database error = %v; want ErrNotInitialized", err)
	}
	s, err := Open(empty, "p", &Options{Create: true})
	if err != nil {
		t.Fatalf("Create over an empty database: %v", err)
	}
	s.Close()
}
