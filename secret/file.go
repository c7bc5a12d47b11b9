package secret

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// CurrentRevision represents the version of the single file format.
// The value must be incremented for every a change that breaks the
// compatibility with the existing binary format.
const CurrentRevision uint16 = 2

const revSize = 2

const headerSize = revSize + pbkdf2Size

type osFile interface {
	io.Reader
	io.Writer
	io.Closer
	io.Seeker

	Sync() error
}

// openFunc opens the files of a file engine.
type openFunc func(name string, flag int, perm os.FileMode) (osFile, error)

func openOSFile(name string, flag int, perm os.FileMode) (osFile, error) {
	return os.OpenFile(name, flag, perm)
}

type file struct {
	rw osFile
}

func newFile(f osFile) *file {
	return &file{rw: f}
}

func (f *file) readHeader() ([]byte, error) {
	if _, err := f.rw.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "cannot seek to the header")
	}
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f.rw, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrap(ErrIncompatible, "header is truncated")
		}
		return nil, errors.Wrap(err, "cannot read header")
	}
	return buf, nil
}

func (f *file) readRevision() (uint16, error) {
	header, err := f.readHeader()
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(header[:revSize]), nil
}

func (f *file) readSalt() ([]byte, error) {
	header, err := f.readHeader()
	if err != nil {
		return nil, err
	}
	return header[revSize:], nil
}

func (f *file) readData() (encryptedData, error) {
	if _, err := f.rw.Seek(headerSize, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "cannot seek to the data")
	}
	data, err := io.ReadAll(f.rw)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read data")
	}
	return encryptedData(data), nil
}

// writeImage writes header and data from the start of an empty file and
// syncs it.
func (f *file) writeImage(header []byte, data encryptedData) error {
	if _, err := f.rw.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "cannot seek to the header")
	}
	if _, err := f.rw.Write(header); err != nil {
		return errors.Wrap(err, "cannot write header")
	}
	if _, err := f.rw.Write([]byte(data)); err != nil {
		return errors.Wrap(err, "cannot write data")
	}
	if err := f.rw.Sync(); err != nil {
		return errors.Wrap(err, "cannot sync file")
	}
	return nil
}

func (f *file) close() error {
	return f.rw.Close()
}

// fileEngine keeps the whole store in one encrypted file:
//
//	revision (2 bytes, little endian) | salt (32 bytes) | nonce (12 bytes) | ciphertext
//
// The plaintext is an encoded hmap, authenticated together with the header.
// Every write builds a complete new image in a sibling temp file and renames
// it over path, so a failed write leaves the previous image in place.
type fileEngine struct {
	mu   sync.Mutex
	path string
	open openFunc
	f    *file
	salt []byte
	seal *sealer
}

func createFileEngine(path, passphrase string) (*fileEngine, error) {
	osf, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrapf(ErrExists, "%q", path)
		}
		return nil, errors.Wrap(err, "error while creating new secret store")
	}
	e := &fileEngine{path: path, open: openOSFile, f: newFile(osf)}
	if err := e.init(passphrase); err != nil {
		_ = e.f.close()
		_ = os.Remove(path)
		return nil, errors.Wrap(err, "error while creating new secret store")
	}
	return e, nil
}

func (e *fileEngine) init(passphrase string) error {
	salt, err := generateSalt()
	if err != nil {
		return err
	}
	seal, err := newSealer(passphrase, salt)
	if err != nil {
		return err
	}
	return e.save(newHmap(), salt, seal)
}

func openFileEngine(path, passphrase string) (*fileEngine, error) {
	osf, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotInitialized, "%q does not exist", path)
		}
		return nil, errors.Wrap(err, "cannot open secret store")
	}
	e, err := loadFileEngine(path, newFile(osf), passphrase)
	if err != nil {
		_ = osf.Close()
		return nil, errors.Wrapf(err, "cannot open secret store %q", path)
	}
	return e, nil
}

func loadFileEngine(path string, f *file, passphrase string) (*fileEngine, error) {
	rev, err := f.readRevision()
	if err != nil {
		return nil, err
	}
	if rev != CurrentRevision {
		return nil, errors.Wrapf(ErrIncompatible, "file revision %d; want %d", rev, CurrentRevision)
	}
	salt, err := f.readSalt()
	if err != nil {
		return nil, err
	}
	seal, err := newSealer(passphrase, salt)
	if err != nil {
		return nil, err
	}
	e := &fileEngine{path: path, open: openOSFile, f: f, salt: salt, seal: seal}
	// A wrong passphrase fails here rather than on first use.
	if _, err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

func fileHeader(salt []byte) []byte {
	h := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(h, CurrentRevision)
	copy(h[revSize:], salt)
	return h
}

func (e *fileEngine) load() (*hmap, error) {
	data, err := e.f.readData()
	if err != nil {
		return nil, err
	}
	plaintext, err := e.seal.open(data, fileHeader(e.salt))
	if err != nil {
		return nil, err
	}
	hm, err := decodeHmap(plaintext)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode hmap")
	}
	return hm, nil
}

// save commits hm encrypted under salt and seal. The engine switches to the
// new image, salt and sealer only once the image has replaced path.
func (e *fileEngine) save(hm *hmap, salt []byte, seal *sealer) error {
	header := fileHeader(salt)
	data, err := seal.seal(hm.encode(), header)
	if err != nil {
		return err
	}
	tmp := e.path + ".tmp"
	osf, err := e.open(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "cannot create temporary file")
	}
	f := newFile(osf)
	if err := f.writeImage(header, data); err != nil {
		_ = f.close()
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, e.path); err != nil {
		_ = f.close()
		_ = os.Remove(tmp)
		return errors.Wrap(err, "cannot replace store file")
	}
	// The renamed handle now reads the committed image.
	_ = e.f.close()
	e.f, e.salt, e.seal = f, salt, seal
	return nil
}

func (e *fileEngine) Get(key string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	hm, err := e.load()
	if err != nil {
		return nil, err
	}
	record, ok := hm.load(key)
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

func (e *fileEngine) Put(key string, record []byte) error {
	return e.Update(key, func([]byte) ([]byte, error) { return record, nil })
}

func (e *fileEngine) Update(key string, fn func([]byte) ([]byte, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	hm, err := e.load()
	if err != nil {
		return err
	}
	current, _ := hm.load(key)
	record, err := fn(current)
	if err != nil {
		return err
	}
	if err := hm.store(key, record); err != nil {
		return err
	}
	return e.save(hm, e.salt, e.seal)
}

func (e *fileEngine) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	hm, err := e.load()
	if err != nil {
		return err
	}
	if !hm.delete(key) {
		return ErrNotFound
	}
	return e.save(hm, e.salt, e.seal)
}

func (e *fileEngine) Keys() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	hm, err := e.load()
	if err != nil {
		return nil, err
	}
	return hm.keys(), nil
}

func (e *fileEngine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.save(newHmap(), e.salt, e.seal)
}

func (e *fileEngine) Rekey(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	hm, err := e.load()
	if err != nil {
		return err
	}
	salt, err := generateSalt()
	if err != nil {
		return err
	}
	seal, err := newSealer(passphrase, salt)
	if err != nil {
		return err
	}
	return e.save(hm, salt, seal)
}

func (e *fileEngine) Close() error {
	if err := e.f.close(); err != nil {
		return errors.Wrap(err, "cannot close encrypted file")
	}
	return nil
}
