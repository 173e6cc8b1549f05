// Package keystore stores the symmetric keys that encrypt chain payloads.
//
// Keys are addressed by alias. FileCustodian keeps each key in its own file,
// encrypted at rest under a wrapping key derived from a device secret, with
// owner-only permissions. MemoryCustodian is a process-local implementation
// for tests and dry runs.
package keystore

import (
	"errors"
	"fmt"
	"regexp"
)

// Custodian generates, fetches and deletes 256-bit keys by alias.
type Custodian interface {
	// GetOrCreateKey returns the key stored under alias, creating and
	// durably storing a fresh random key when none exists.
	GetOrCreateKey(alias string) ([]byte, error)
	Exists(alias string) (bool, error)
	// Delete removes the key. Deleting a missing alias is not an error.
	Delete(alias string) error
}

var (
	ErrInvalidAlias = errors.New("invalid key alias")
	// ErrInsecurePermissions is returned when a key file or directory is
	// readable by group or others.
	ErrInsecurePermissions = errors.New("insecure key file permissions")
	// ErrKeyCorrupted is returned when a stored key cannot be unwrapped.
	ErrKeyCorrupted = errors.New("stored key cannot be unwrapped")
)

var aliasRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func validateAlias(alias string) error {
	if !aliasRe.MatchString(alias) {
		return fmt.Errorf("%w: %q", ErrInvalidAlias, alias)
	}
	return nil
}

// VersionedAlias builds the alias under which key version v of base lives.
func VersionedAlias(base string, v int) string {
	return fmt.Sprintf("%s-v%d", base, v)
}
