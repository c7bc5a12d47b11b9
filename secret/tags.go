package secret

import (
	"github.com/pkg/errors"
)

// Tags returns the tags attached to key.
func (s *Store) Tags(key string) (map[string]string, error) {
	rec, err := s.load(key)
	if err != nil {
		return nil, err
	}
	return rec.tags(), nil
}

// Tag returns one tag of key, or ErrNotFound.
func (s *Store) Tag(key, name string) (string, error) {
	rec, err := s.load(key)
	if err != nil {
		return "", err
	}
	v, ok := rec.Tags[name]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "key %q has no tag %q", key, name)
	}
	return v, nil
}

// SetTag attaches or replaces one tag of an existing key.
func (s *Store) SetTag(key, name, value string) error {
	return s.SetTags(key, map[string]string{name: value}, false)
}

// SetTags merges tags into the tags of an existing key. With clear set, the
// existing tags are dropped first.
func (s *Store) SetTags(key string, tags map[string]string, clear bool) error {
	for name := range tags {
		if name == "" {
			return errors.Wrap(ErrInvalidKey, "tag name is empty")
		}
	}
	return s.updateTags("set tags", key, func(current map[string]string) (map[string]string, error) {
		if clear {
			current = make(map[string]string, len(tags))
		}
		for k, v := range tags {
			current[k] = v
		}
		return current, nil
	})
}

// DeleteTag removes one tag of key. It fails with ErrNotFound when the key
// or the tag is missing.
func (s *Store) DeleteTag(key, name string) error {
	return s.updateTags("delete tag", key, func(current map[string]string) (map[string]string, error) {
		if _, ok := current[name]; !ok {
			return nil, errors.Wrapf(ErrNotFound, "key %q has no tag %q", key, name)
		}
		delete(current, name)
		return current, nil
	})
}

// ClearTags removes all tags of key.
func (s *Store) ClearTags(key string) error {
	return s.SetTags(key, nil, true)
}

func (s *Store) updateTags(op, key string, fn func(map[string]string) (map[string]string, error)) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return ErrNotInitialized
	}
	err := s.eng.Update(key, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, errors.Wrapf(ErrNotFound, "%q", key)
		}
		rec, err := decodeRecord(current)
		if err != nil {
			return nil, err
		}
		tags, err := fn(rec.tags())
		if err != nil {
			return nil, err
		}
		if len(tags) == 0 {
			tags = nil
		}
		rec.Tags = tags
		return encodeRecordRaw(rec)
	})
	if err != nil {
		return classify(op, err)
	}
	s.log.Debug(op, "key", key)
	return nil
}
