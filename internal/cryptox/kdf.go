package cryptox

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of salts produced by NewSalt.
const SaltSize = 16

// KDFParams are the Argon2id cost parameters. They are stored in every
// sealed archive header so older archives stay openable after the defaults
// change.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// Bounds accepted by Validate. The upper limits keep a crafted header from
// forcing an unbounded allocation.
const (
	MinKDFTime      = 1
	MaxKDFTime      = 16
	MinKDFMemoryKiB = 8 * 1024
	MaxKDFMemoryKiB = 1024 * 1024
	MaxKDFThreads   = 16
)

func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

func (p KDFParams) Validate() error {
	if p.Time < MinKDFTime || p.Time > MaxKDFTime {
		return fmt.Errorf("%w: kdf time %d out of range", common.ErrValidation, p.Time)
	}
	if p.MemoryKiB < MinKDFMemoryKiB || p.MemoryKiB > MaxKDFMemoryKiB {
		return fmt.Errorf("%w: kdf memory %d KiB out of range", common.ErrValidation, p.MemoryKiB)
	}
	if p.Threads == 0 || p.Threads > MaxKDFThreads {
		return fmt.Errorf("%w: kdf threads %d out of range", common.ErrValidation, p.Threads)
	}
	return nil
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("%w: salt: %w", common.ErrEncryption, err)
	}
	return salt, nil
}

// DeriveKeyFromPassword derives a KeySize key with Argon2id.
func DeriveKeyFromPassword(password, salt []byte, p KDFParams) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(salt) < 8 {
		return nil, fmt.Errorf("%w: salt too short", common.ErrValidation)
	}
	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, KeySize), nil
}
