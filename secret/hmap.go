package secret

import (
	"bytes"
	"encoding/base64"
	"sort"

	"github.com/pkg/errors"
)

// hmap is the plaintext content of a file engine: every key with its record,
// encoded as a sequence of {base64(key):base64(record)} pairs sorted by key.
type hmap struct {
	m map[string][]byte
}

func newHmap() *hmap {
	return &hmap{m: make(map[string][]byte)}
}

func decodeHmap(b []byte) (*hmap, error) {
	hm := newHmap()
	for i := 0; i < len(b); {
		if b[i] != '{' {
			return nil, errors.Errorf("expected '{' for new key/value pair; got '%c'", b[i])
		}

		idx := bytes.IndexByte(b[i:], '}')
		if idx == -1 {
			return nil, errors.New("missing closing '}' for key/value pair")
		}

		tuple := bytes.Split(b[i+1:i+idx], []byte{':'})
		if len(tuple) != 2 {
			return nil, errors.New("malformed key/value pair")
		}
		key, err := base64.StdEncoding.DecodeString(string(tuple[0]))
		if err != nil {
			return nil, errors.New("malformed base64 key in key/value pair")
		}
		value, err := base64.StdEncoding.DecodeString(string(tuple[1]))
		if err != nil {
			return nil, errors.New("malformed base64 value in key/value pair")
		}

		if err := hm.store(string(key), value); err != nil {
			return nil, errors.Wrap(err, "cannot load key/value pair")
		}

		i += idx + 1
	}
	return hm, nil
}

func (hm *hmap) store(key string, value []byte) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "key is empty")
	}
	hm.m[key] = value
	return nil
}

func (hm *hmap) load(key string) ([]byte, bool) {
	value, ok := hm.m[key]
	return value, ok
}

func (hm *hmap) delete(key string) bool {
	if _, ok := hm.m[key]; !ok {
		return false
	}
	delete(hm.m, key)
	return true
}

func (hm *hmap) keys() []string {
	keys := make([]string, 0, len(hm.m))
	for k := range hm.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (hm *hmap) encode() []byte {
	var buf bytes.Buffer
	for _, k := range hm.keys() {
		buf.WriteByte('{')
		buf.WriteString(base64.StdEncoding.EncodeToString([]byte(k)))
		buf.WriteByte(':')
		buf.WriteString(base64.StdEncoding.EncodeToString(hm.m[k]))
		buf.WriteByte('}')
	}
	return buf.Bytes()
}
