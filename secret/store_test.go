package secret

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/sammck/secret-kv/xjson"
)

// openEngines returns one fresh store per engine kind.
func openEngines(t *testing.T) map[string]*Store {
	t.Helper()
	dir := t.TempDir()
	stores := map[string]*Store{
		"memory": NewStore(NewMemoryEngine(), nil),
	}
	for _, kind := range []EngineKind{EngineBolt, EngineFile} {
		s, err := Open(filepath.Join(dir, string(kind)+".db"), "pass", &Options{Engine: kind, Create: true})
		if err != nil {
			t.Fatalf("Open(%s): %v", kind, err)
		}
		t.Cleanup(func() { s.Close() })
		stores[string(kind)] = s
	}
	return stores
}

func TestStoreLifecycle(t *testing.T) {
	for name, s := range openEngines(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set("a", xjson.String("hello"), nil); err != nil {
				t.Fatal(err)
			}
			v, err := s.Get("a", xjson.ModeExtended)
			if err != nil {
				t.Fatal(err)
			}
			if v.Str() != "hello" {
				t.Errorf("Get(a) = %s", v)
			}

			if err := s.Delete("a"); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Get("a", xjson.ModeExtended); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after Delete error = %v; want ErrNotFound", err)
			}
			if err := s.Delete("a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete error = %v; want ErrNotFound", err)
			}

			for i := 0; i < 3; i++ {
				if err := s.Set(fmt.Sprintf("k%d", i), xjson.Int(int64(i)), nil); err != nil {
					t.Fatal(err)
				}
			}
			if err := s.Clear(); err != nil {
				t.Fatal(err)
			}
			it, err := s.Keys()
			if err != nil {
				t.Fatal(err)
			}
			if it.Next() {
				t.Errorf("Keys after Clear returned %q", it.Key())
			}

			// Still usable after Clear.
			if err := s.Set("b", xjson.Bool(true), nil); err != nil {
				t.Fatal(err)
			}
			if n, err := s.Len(); err != nil || n != 1 {
				t.Errorf("Len = %d, %v; want 1", n, err)
			}
		})
	}
}

func TestStoreUpsertAndTypes(t *testing.T) {
	value := xjson.Map(map[string]xjson.Value{
		"blob":     xjson.Binary([]byte{0x01, 0x02, 0xFF}),
		"@kv_type": xjson.String("user data"),
		"list":     xjson.List(xjson.Null(), xjson.Float(1.5)),
	})
	for name, s := range openEngines(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set("x", xjson.String("first"), nil); err != nil {
				t.Fatal(err)
			}
			if err := s.Set("x", value, nil); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get("x", xjson.ModeExtended)
			if err != nil {
				t.Fatal(err)
			}
			if !xjson.Equal(got, value) {
				t.Errorf("Get = %s; want %s", got, value)
			}
			if _, err := s.Get("x", xjson.ModeSimple); !errors.Is(err, xjson.ErrExtendedTypePresent) {
				t.Errorf("simple Get error = %v; want ErrExtendedTypePresent", err)
			}

			plain := xjson.Map(map[string]xjson.Value{"@kv_type": xjson.Int(1)})
			if err := s.Set("y", plain, nil); err != nil {
				t.Fatal(err)
			}
			got, err = s.Get("y", xjson.ModeSimple)
			if err != nil {
				t.Fatal(err)
			}
			if !xjson.Equal(got, plain) {
				t.Errorf("simple Get = %s; want %s", got, plain)
			}
		})
	}
}

func TestStoreInvalidInput(t *testing.T) {
	s := NewStore(NewMemoryEngine(), nil)
	if err := s.Set("", xjson.Null(), nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Set(\"\") error = %v; want ErrInvalidKey", err)
	}
	if _, err := s.Get("", xjson.ModeExtended); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Get(\"\") error = %v; want ErrInvalidKey", err)
	}
	if err := s.Set("k", xjson.Null(), map[string]string{"": "x"}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty tag name error = %v; want ErrInvalidKey", err)
	}
	if err := s.Set("k", xjson.Number("NaN"), nil); !errors.Is(err, xjson.ErrInvalidNumber) {
		t.Errorf("NaN error = %v; want ErrInvalidNumber", err)
	}
	if ok, err := s.Has("k"); err != nil || ok {
		t.Errorf("failed Set left k behind: %v, %v", ok, err)
	}
}

func TestStoreTags(t *testing.T) {
	for name, s := range openEngines(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SetTag("missing", "a", "b"); !errors.Is(err, ErrNotFound) {
				t.Errorf("SetTag on missing key error = %v; want ErrNotFound", err)
			}

			if err := s.Set("k", xjson.String("v"), map[string]string{"env": "prod"}); err != nil {
				t.Fatal(err)
			}
			// nil tags keep the current ones.
			if err := s.Set("k", xjson.String("v2"), nil); err != nil {
				t.Fatal(err)
			}
			if tag, err := s.Tag("k", "env"); err != nil || tag != "prod" {
				t.Errorf("Tag(env) = %q, %v", tag, err)
			}

			if err := s.SetTag("k", "owner", "me"); err != nil {
				t.Fatal(err)
			}
			tags, err := s.Tags("k")
			if err != nil {
				t.Fatal(err)
			}
			if len(tags) != 2 || tags["owner"] != "me" {
				t.Errorf("Tags = %v", tags)
			}

			if err := s.DeleteTag("k", "env"); err != nil {
				t.Fatal(err)
			}
			if err := s.DeleteTag("k", "env"); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteTag twice error = %v; want ErrNotFound", err)
			}
			if _, err := s.Tag("k", "env"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Tag after delete error = %v; want ErrNotFound", err)
			}

			if err := s.SetTags("k", map[string]string{"a": "1"}, true); err != nil {
				t.Fatal(err)
			}
			e, err := s.Entry("k", xjson.ModeSimple)
			if err != nil {
				t.Fatal(err)
			}
			if e.Value.Str() != "v2" || len(e.Tags) != 1 || e.Tags["a"] != "1" {
				t.Errorf("Entry = %+v", e)
			}

			// Non-nil tags replace.
			if err := s.Set("k", xjson.String("v3"), map[string]string{}); err != nil {
				t.Fatal(err)
			}
			if tags, err := s.Tags("k"); err != nil || len(tags) != 0 {
				t.Errorf("Tags after replace = %v, %v", tags, err)
			}
		})
	}
}

func TestKeysSnapshot(t *testing.T) {
	s := NewStore(NewMemoryEngine(), nil)
	for _, k := range []string{"c", "a", "b"} {
		if err := s.Set(k, xjson.Null(), nil); err != nil {
			t.Fatal(err)
		}
	}
	it, err := s.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("d", xjson.Null(), nil); err != nil {
		t.Fatal(err)
	}
	if got := fmt.Sprint(it.Collect()); got != "[a b c]" {
		t.Errorf("keys = %s; want [a b c]", got)
	}
	if it.Next() {
		t.Error("iterator restarted after being consumed")
	}
}

func TestClosedStore(t *testing.T) {
	s := NewStore(NewMemoryEngine(), nil)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("a", xjson.Null(), nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Set error = %v; want ErrNotInitialized", err)
	}
	if _, err := s.Get("a", xjson.ModeExtended); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Get error = %v; want ErrNotInitialized", err)
	}
	if _, err := s.Keys(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Keys error = %v; want ErrNotInitialized", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestConcurrentSet(t *testing.T) {
	s := NewStore(NewMemoryEngine(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := xjson.List(xjson.Int(int64(i)), xjson.Int(int64(i)))
			if err := s.Set("shared", v, map[string]string{"writer": fmt.Sprint(i)}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	e, err := s.Entry("shared", xjson.ModeExtended)
	if err != nil {
		t.Fatal(err)
	}
	items := e.Value.List()
	if len(items) != 2 || !xjson.Equal(items[0], items[1]) || e.Tags["writer"] != string(items[0].Number()) {
		t.Errorf("interleaved write: %+v", e)
	}
}

type failingEngine struct{ *MemoryEngine }

func (failingEngine) Get(string) ([]byte, error) { return nil, errors.New("disk on fire") }

func TestPersistenceFailure(t *testing.T) {
	s := NewStore(failingEngine{NewMemoryEngine()}, nil)
	_, err := s.Get("a", xjson.ModeExtended)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("error = %v; want ErrPersistence", err)
	}
	var perr *PersistenceError
	if !errors.As(err, &perr) || perr.Op != "get" {
		t.Errorf("error = %#v", err)
	}
}

func TestSetThenMergeTags(t *testing.T) {
	s := NewStore(NewMemoryEngine(), nil)
	if err := s.Set("k", xjson.String("v1"), map[string]string{"a": "1", "b": "1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", xjson.String("v2"), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTags("k", map[string]string{"b": "2", "c": "2"}, false); err != nil {
		t.Fatal(err)
	}
	e, err := s.Entry("k", xjson.ModeExtended)
	if err != nil {
		t.Fatal(err)
	}
	if got := fmt.Sprint(e.Tags); e.Value.Str() != "v2" || got != "map[a:1 b:2 c:2]" {
		t.Errorf("Entry = %s %s", e.Value, got)
	}
}
