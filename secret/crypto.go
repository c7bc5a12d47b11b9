package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const keySize = 32

const (
	pbkdf2Size = 32
	pbkdf2Iter = 20000
)

// standard GCM nonce size
const nonceSize = 12

var (
	hkdfEncryptionInfo = []byte("secret-kv encryption")
	hkdfMACInfo        = []byte("secret-kv key mac")
)

type encryptedData []byte

func newEncryptedData(nonce, ciphertext []byte) encryptedData {
	data := make(encryptedData, len(nonce)+len(ciphertext))
	copy(data[:len(nonce)], nonce)
	copy(data[len(nonce):], ciphertext)
	return data
}

func (data encryptedData) nonce() []byte {
	if len(data) < nonceSize+1 {
		return []byte{}
	}
	return data[0:nonceSize]
}

func (data encryptedData) ciphertext() []byte {
	if len(data) < nonceSize+1 {
		return []byte{}
	}
	return data[nonceSize:]
}

func newKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, pbkdf2Iter, pbkdf2Size, sha256.New)
}

func generateSalt() ([]byte, error) {
	salt := make([]byte, pbkdf2Size)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "cannot generate salt")
	}
	return salt, nil
}

func generateNonce(nonceSize int) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "cannot generate nonce")
	}
	return nonce, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create new aes block cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create new gcm cipher")
	}
	return gcm, nil
}

// A sealer encrypts and authenticates data under keys derived from a
// passphrase and salt. The PBKDF2 output is expanded with HKDF into an
// AES-256-GCM key and an HMAC-SHA256 key for naming records.
type sealer struct {
	gcm    cipher.AEAD
	macKey []byte
}

func newSealer(passphrase string, salt []byte) (*sealer, error) {
	master := newKey([]byte(passphrase), salt)
	encKey := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, salt, hkdfEncryptionInfo), encKey); err != nil {
		return nil, errors.Wrap(err, "cannot derive encryption key")
	}
	macKey := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, salt, hkdfMACInfo), macKey); err != nil {
		return nil, errors.Wrap(err, "cannot derive mac key")
	}
	gcm, err := newGCM(encKey)
	if err != nil {
		return nil, err
	}
	return &sealer{gcm: gcm, macKey: macKey}, nil
}

func (s *sealer) seal(plaintext, additional []byte) (encryptedData, error) {
	nonce, err := generateNonce(s.gcm.NonceSize())
	if err != nil {
		return nil, errors.Wrap(err, "cannot encrypt plaintext")
	}
	ciphertext := s.gcm.Seal(nil, nonce, plaintext, additional)
	return newEncryptedData(nonce, ciphertext), nil
}

// open fails with ErrBadPassphrase when data does not authenticate.
func (s *sealer) open(data encryptedData, additional []byte) ([]byte, error) {
	if len(data) < nonceSize+s.gcm.Overhead() {
		return nil, errors.Wrap(ErrBadPassphrase, "ciphertext is truncated")
	}
	plaintext, err := s.gcm.Open(nil, data.nonce(), data.ciphertext(), additional)
	if err != nil {
		return nil, errors.Wrap(ErrBadPassphrase, "cannot decrypt ciphertext")
	}
	return plaintext, nil
}

// name returns the opaque storage name of key.
func (s *sealer) name(key string) []byte {
	m := hmac.New(sha256.New, s.macKey)
	m.Write([]byte(key))
	return m.Sum(nil)
}
