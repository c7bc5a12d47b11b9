package secret

import (
	"bytes"
	"encoding/binary"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const (
	boltAppName       = "secret-kv"
	boltSchemaVersion = 1
)

var (
	metaBucket    = []byte("meta")
	recordsBucket = []byte("records")

	metaApp    = []byte("app")
	metaSchema = []byte("schema_version")
	metaSalt   = []byte("salt")
	metaCheck  = []byte("check")

	checkPlaintext = []byte("secret-kv passphrase check")
)

// boltEngine keeps one record per key in a bbolt database. The meta bucket
// holds the app name, schema version, KDF salt and an encrypted check token;
// the records bucket maps HMAC(key) to AES-GCM(len(key) | key | record)
// sealed with HMAC(key) as additional data. Key names never appear in clear.
type boltEngine struct {
	db   *bolt.DB
	seal *sealer
}

func openBoltEngine(path, passphrase string, create bool, timeout time.Duration) (*boltEngine, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "cannot stat store path %q", path)
		}
		if !create {
			return nil, errors.Wrapf(ErrNotInitialized, "%q does not exist", path)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open bolt database %q", path)
	}
	e := &boltEngine{db: db}
	err = db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(metaBucket) == nil {
			if name, _ := tx.Cursor().First(); name != nil {
				return errors.Wrapf(ErrIncompatible, "bolt database holds foreign bucket %q", name)
			}
			if !create {
				return errors.Wrap(ErrNotInitialized, "bolt database has no secret store")
			}
			return e.initialize(tx, passphrase)
		}
		return e.verify(tx, passphrase)
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "cannot open secret store %q", path)
	}
	return e, nil
}

func (e *boltEngine) initialize(tx *bolt.Tx, passphrase string) error {
	meta, err := tx.CreateBucket(metaBucket)
	if err != nil {
		return errors.Wrap(err, "cannot create meta bucket")
	}
	if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
		return errors.Wrap(err, "cannot create records bucket")
	}
	if err := meta.Put(metaApp, []byte(boltAppName)); err != nil {
		return err
	}
	if err := meta.Put(metaSchema, []byte(strconv.Itoa(boltSchemaVersion))); err != nil {
		return err
	}
	return e.writeKeys(meta, passphrase)
}

func (e *boltEngine) writeKeys(meta *bolt.Bucket, passphrase string) error {
	salt, err := generateSalt()
	if err != nil {
		return err
	}
	seal, err := newSealer(passphrase, salt)
	if err != nil {
		return err
	}
	check, err := seal.seal(checkPlaintext, metaCheck)
	if err != nil {
		return err
	}
	if err := meta.Put(metaSalt, salt); err != nil {
		return err
	}
	if err := meta.Put(metaCheck, check); err != nil {
		return err
	}
	e.seal = seal
	return nil
}

func (e *boltEngine) verify(tx *bolt.Tx, passphrase string) error {
	meta := tx.Bucket(metaBucket)
	if app := string(meta.Get(metaApp)); app != boltAppName {
		return errors.Wrapf(ErrIncompatible, "registered app name %q does not match %q", app, boltAppName)
	}
	schema, err := strconv.Atoi(string(meta.Get(metaSchema)))
	if err != nil {
		return errors.Wrap(ErrIncompatible, "corrupt schema version")
	}
	if schema != boltSchemaVersion {
		return errors.Wrapf(ErrIncompatible, "schema version %d; want %d", schema, boltSchemaVersion)
	}
	if tx.Bucket(recordsBucket) == nil {
		return errors.Wrap(ErrIncompatible, "missing records bucket")
	}
	salt := clone(meta.Get(metaSalt))
	seal, err := newSealer(passphrase, salt)
	if err != nil {
		return err
	}
	check, err := seal.open(encryptedData(meta.Get(metaCheck)), metaCheck)
	if err != nil {
		return err
	}
	if !bytes.Equal(check, checkPlaintext) {
		return ErrBadPassphrase
	}
	e.seal = seal
	return nil
}

func (e *boltEngine) sealRecord(name []byte, key string, record []byte) (encryptedData, error) {
	buf := make([]byte, binary.MaxVarintLen64+len(key)+len(record))
	n := binary.PutUvarint(buf, uint64(len(key)))
	n += copy(buf[n:], key)
	n += copy(buf[n:], record)
	return e.seal.seal(buf[:n], name)
}

func (e *boltEngine) openRecord(name []byte, data []byte) (string, []byte, error) {
	plaintext, err := e.seal.open(encryptedData(data), name)
	if err != nil {
		return "", nil, err
	}
	size, n := binary.Uvarint(plaintext)
	if n <= 0 || uint64(len(plaintext)-n) < size {
		return "", nil, errors.New("corrupt record envelope")
	}
	key := string(plaintext[n : n+int(size)])
	return key, plaintext[n+int(size):], nil
}

func (e *boltEngine) Get(key string) ([]byte, error) {
	var record []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		name := e.seal.name(key)
		data := tx.Bucket(recordsBucket).Get(name)
		if data == nil {
			return ErrNotFound
		}
		var err error
		record, err = e.getRecord(name, key, data)
		return err
	})
	return record, err
}

func (e *boltEngine) getRecord(name []byte, key string, data []byte) ([]byte, error) {
	stored, record, err := e.openRecord(name, data)
	if err != nil {
		return nil, err
	}
	if stored != key {
		return nil, errors.Errorf("record for %q is filed under another key", key)
	}
	return record, nil
}

func (e *boltEngine) Put(key string, record []byte) error {
	return e.Update(key, func([]byte) ([]byte, error) { return record, nil })
}

func (e *boltEngine) Update(key string, fn func([]byte) ([]byte, error)) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		name := e.seal.name(key)
		var current []byte
		if data := b.Get(name); data != nil {
			var err error
			if current, err = e.getRecord(name, key, data); err != nil {
				return err
			}
		}
		record, err := fn(current)
		if err != nil {
			return err
		}
		sealed, err := e.sealRecord(name, key, record)
		if err != nil {
			return err
		}
		return b.Put(name, sealed)
	})
}

func (e *boltEngine) Delete(key string) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		name := e.seal.name(key)
		if b.Get(name) == nil {
			return ErrNotFound
		}
		return b.Delete(name)
	})
}

func (e *boltEngine) Keys() ([]string, error) {
	var keys []string
	err := e.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(name, data []byte) error {
			key, _, err := e.openRecord(name, data)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (e *boltEngine) Clear() error {
	return e.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(recordsBucket)
		return err
	})
}

func (e *boltEngine) Rekey(passphrase string) error {
	old := e.seal
	err := e.db.Update(func(tx *bolt.Tx) error {
		type entry struct {
			key    string
			record []byte
		}
		var entries []entry
		err := tx.Bucket(recordsBucket).ForEach(func(name, data []byte) error {
			key, record, err := e.openRecord(name, data)
			if err != nil {
				return err
			}
			entries = append(entries, entry{key, record})
			return nil
		})
		if err != nil {
			return err
		}
		if err := e.writeKeys(tx.Bucket(metaBucket), passphrase); err != nil {
			return err
		}
		if err := tx.DeleteBucket(recordsBucket); err != nil {
			return err
		}
		b, err := tx.CreateBucket(recordsBucket)
		if err != nil {
			return err
		}
		for _, en := range entries {
			name := e.seal.name(en.key)
			sealed, err := e.sealRecord(name, en.key, en.record)
			if err != nil {
				return err
			}
			if err := b.Put(name, sealed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.seal = old
	}
	return err
}

func (e *boltEngine) Close() error {
	if err := e.db.Close(); err != nil {
		return errors.Wrap(err, "cannot close bolt database")
	}
	return nil
}
