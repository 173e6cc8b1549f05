// Package cryptox implements the hashing, authenticated encryption and
// password-based key derivation used by the event chain and the sealed
// report archives.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"golang.org/x/crypto/hkdf"
)

const (
	// HashSize is the output length of Hash and ChainHash.
	HashSize = sha256.Size
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is the AES-GCM standard nonce length.
	NonceSize = 12
)

// ErrAuthentication is returned when an AEAD tag does not verify: either the
// key is wrong or the ciphertext was modified.
var ErrAuthentication = errors.New("authentication failed")

// Genesis is the previous hash of the first entry of every epoch.
func Genesis() []byte {
	return make([]byte, HashSize)
}

// Hash returns SHA-256 of b.
func Hash(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

// ChainHash returns Hash(previousHash ‖ payload).
func ChainHash(previousHash, payload []byte) []byte {
	h := sha256.New()
	h.Write(previousHash)
	h.Write(payload)
	return h.Sum(nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrEncryption, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEncryption, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEncryption, err)
	}
	return aesgcm, nil
}

// EncryptWithAAD encrypts plaintext with AES-256-GCM under a fresh random
// nonce, authenticating aad alongside it.
//
// Returns:
//   - nonce: the randomly generated 12-byte nonce.
//   - ciphertext: encrypted data with the 16-byte tag appended.
//   - err: wraps common.ErrEncryption on any failure.
func EncryptWithAAD(plaintext, key, aad []byte) (nonce, ciphertext []byte, err error) {
	nonce, err = NewNonce()
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err = EncryptWithNonce(plaintext, key, nonce, aad)
	if err != nil {
		return nil, nil, err
	}
	return nonce, ciphertext, nil
}

// NewNonce returns NonceSize random bytes.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce: %w", common.ErrEncryption, err)
	}
	return nonce, nil
}

// EncryptWithNonce encrypts under a caller-chosen nonce, for formats whose
// authenticated header must carry the nonce. A nonce must never be reused
// with the same key.
func EncryptWithNonce(plaintext, key, nonce, aad []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", common.ErrEncryption, aesgcm.NonceSize(), len(nonce))
	}
	return aesgcm.Seal(nil, nonce, plaintext, aad), nil
}

// DecryptWithAAD reverses EncryptWithAAD. A tag mismatch yields
// ErrAuthentication; malformed inputs yield common.ErrEncryption.
func DecryptWithAAD(nonce, ciphertext, key, aad []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", common.ErrEncryption, aesgcm.NonceSize(), len(nonce))
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// Encrypt encrypts plaintext with no associated data.
func Encrypt(plaintext, key []byte) (nonce, ciphertext []byte, err error) {
	return EncryptWithAAD(plaintext, key, nil)
}

// Decrypt decrypts ciphertext produced by Encrypt.
func Decrypt(nonce, ciphertext, key []byte) ([]byte, error) {
	return DecryptWithAAD(nonce, ciphertext, key, nil)
}

// Seal returns nonce ‖ ciphertext ‖ tag as a single blob.
func Seal(plaintext, key []byte) ([]byte, error) {
	nonce, ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(ciphertext))
	out = append(out, nonce...)
	return append(out, ciphertext...), nil
}

// Open splits a blob produced by Seal and decrypts it.
func Open(blob, key []byte) ([]byte, error) {
	if len(blob) < NonceSize {
		return nil, fmt.Errorf("%w: blob shorter than nonce", common.ErrEncryption)
	}
	return Decrypt(blob[:NonceSize], blob[NonceSize:], key)
}

// EncryptEntry serializes entry to JSON and seals it with Seal.
//
// encoding/json writes struct fields in declaration order and sorts map
// keys, so equal values always serialize to equal plaintext.
func EncryptEntry(entry any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %w", common.ErrEncryption, err)
	}
	defer common.WipeByteArray(plaintext)

	return Seal(plaintext, key)
}

// DecryptEntry opens blob and unmarshals the resulting JSON into v.
func DecryptEntry(blob, key []byte, v any) error {
	plaintext, err := Open(blob, key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: unmarshal: %w", common.ErrEncryption, err)
	}
	return nil
}

// DeriveSubkey expands secret into a KeySize key bound to info using
// HKDF-SHA256.
func DeriveSubkey(secret []byte, info string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", common.ErrEncryption)
	}
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: hkdf: %w", common.ErrEncryption, err)
	}
	return key, nil
}
