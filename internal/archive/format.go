// Package archive writes the four daily artifacts (sealed original,
// readable copy, summary and verification text) and audits them afterwards.
//
// Sealed file layout, version 1, integers big-endian:
//
//	magic     "WWSEAL"
//	version   u8   (1)
//	kdf       u8   (1 = Argon2id)
//	time      u32
//	memory    u32  (KiB)
//	threads   u8
//	salt      u8 length, bytes
//	nonce     u8 length, bytes
//	ctLen     u64
//	ct        AES-256-GCM ciphertext and tag; the header above is the AAD
//	trailer   SHA-256 of every preceding byte
//
// The trailer lets corruption be detected without the password, so a failed
// tag on an intact file can only mean a wrong password.
package archive

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

const (
	Magic         = "WWSEAL"
	FormatVersion = 1
	KDFArgon2id   = 1

	trailerSize = sha256.Size
	gcmTagSize  = 16
	// maxCiphertext bounds ctLen so a forged header cannot request a huge
	// allocation.
	maxCiphertext = 64 << 20
)

// ErrUnknownFormat is returned for input that does not start with Magic.
var ErrUnknownFormat = errors.New("not a sealed archive")

// Header is the parsed fixed part of a sealed file.
type Header struct {
	Version uint8
	KDF     uint8
	Params  cryptox.KDFParams
	Salt    []byte
	Nonce   []byte
}

func (h *Header) marshal(ctLen int) []byte {
	var b bytes.Buffer
	b.WriteString(Magic)
	b.WriteByte(h.Version)
	b.WriteByte(h.KDF)
	_ = binary.Write(&b, binary.BigEndian, h.Params.Time)
	_ = binary.Write(&b, binary.BigEndian, h.Params.MemoryKiB)
	b.WriteByte(h.Params.Threads)
	b.WriteByte(byte(len(h.Salt)))
	b.Write(h.Salt)
	b.WriteByte(byte(len(h.Nonce)))
	b.Write(h.Nonce)
	_ = binary.Write(&b, binary.BigEndian, uint64(ctLen))
	return b.Bytes()
}

// Seal serializes r and encrypts it under a key derived from password with a
// fresh salt.
func Seal(r *models.DailyReport, password []byte, p cryptox.KDFParams) ([]byte, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	plain, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: encode report: %w", common.ErrEncryption, err)
	}
	defer common.WipeByteArray(plain)

	salt, err := cryptox.NewSalt()
	if err != nil {
		return nil, err
	}
	key, err := cryptox.DeriveKeyFromPassword(password, salt, p)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	nonce, err := cryptox.NewNonce()
	if err != nil {
		return nil, err
	}
	h := &Header{Version: FormatVersion, KDF: KDFArgon2id, Params: p, Salt: salt, Nonce: nonce}
	head := h.marshal(len(plain) + gcmTagSize)

	ct, err := cryptox.EncryptWithNonce(plain, key, nonce, head)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(head)+len(ct)+trailerSize)
	out = append(out, head...)
	out = append(out, ct...)
	return appendTrailer(out), nil
}

func appendTrailer(b []byte) []byte {
	sum := sha256.Sum256(b)
	return append(b, sum[:]...)
}

// Parse checks structure and trailer and splits a sealed file into header,
// AAD and ciphertext. Damage yields common.ErrCorrupted.
func Parse(b []byte) (*Header, []byte, []byte, error) {
	if !bytes.HasPrefix(b, []byte(Magic)) {
		return nil, nil, nil, ErrUnknownFormat
	}
	if len(b) < len(Magic)+trailerSize {
		return nil, nil, nil, fmt.Errorf("%w: truncated", common.ErrCorrupted)
	}

	body, trailer := b[:len(b)-trailerSize], b[len(b)-trailerSize:]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:], trailer) {
		return nil, nil, nil, fmt.Errorf("%w: checksum mismatch", common.ErrCorrupted)
	}

	r := &reader{b: body, off: len(Magic)}
	h := &Header{}
	h.Version = r.u8()
	h.KDF = r.u8()
	h.Params.Time = r.u32()
	h.Params.MemoryKiB = r.u32()
	h.Params.Threads = r.u8()
	h.Salt = r.bytes(int(r.u8()))
	h.Nonce = r.bytes(int(r.u8()))
	ctLen := r.u64()
	if r.err != nil {
		return nil, nil, nil, fmt.Errorf("%w: header: %w", common.ErrCorrupted, r.err)
	}
	if h.Version != FormatVersion {
		return nil, nil, nil, fmt.Errorf("%w: unsupported format version %d", common.ErrCorrupted, h.Version)
	}
	if h.KDF != KDFArgon2id {
		return nil, nil, nil, fmt.Errorf("%w: unsupported kdf %d", common.ErrCorrupted, h.KDF)
	}
	if err := h.Params.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", common.ErrCorrupted, err)
	}
	if len(h.Nonce) != cryptox.NonceSize {
		return nil, nil, nil, fmt.Errorf("%w: nonce length %d", common.ErrCorrupted, len(h.Nonce))
	}
	if ctLen > maxCiphertext || ctLen != uint64(len(body)-r.off) {
		return nil, nil, nil, fmt.Errorf("%w: ciphertext length", common.ErrCorrupted)
	}

	return h, body[:r.off], body[r.off:], nil
}

// Unseal decrypts a sealed file. It returns common.ErrCorrupted when the
// bytes were altered and common.ErrWrongPassword when they are intact but
// the password does not authenticate.
func Unseal(b, password []byte) (*models.DailyReport, error) {
	h, aad, ct, err := Parse(b)
	if errors.Is(err, ErrUnknownFormat) {
		return nil, fmt.Errorf("%w: %w", common.ErrCorrupted, err)
	}
	if err != nil {
		return nil, err
	}

	key, err := cryptox.DeriveKeyFromPassword(password, h.Salt, h.Params)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	plain, err := cryptox.DecryptWithAAD(h.Nonce, ct, key, aad)
	if errors.Is(err, cryptox.ErrAuthentication) {
		return nil, common.ErrWrongPassword
	}
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plain)

	var r models.DailyReport
	if err := json.Unmarshal(plain, &r); err != nil {
		return nil, fmt.Errorf("%w: decode report: %w", common.ErrCorrupted, err)
	}
	return &r, nil
}

type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.b) {
		r.err = errors.New("unexpected end of header")
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *reader) bytes(n int) []byte {
	if b := r.take(n); b != nil {
		return append([]byte(nil), b...)
	}
	return nil
}
