// Package common defines sentinel errors and small helpers shared by every
// WorkWatch package. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Input validation (coordinates, timestamps, dates).
	ErrValidation = errors.New("validation error")

	// Crypto engine failures other than authentication.
	ErrEncryption = errors.New("encryption error")

	// AEAD authentication failed while opening a sealed archive.
	ErrWrongPassword = errors.New("wrong password")

	// Store failures; nothing was committed.
	ErrPersistence = errors.New("persistence error")

	// Hash linkage mismatch.
	ErrChainBroken = errors.New("chain broken")

	// Empty day or month.
	ErrNoData = errors.New("no data")

	ErrMissingArtifact = errors.New("missing artifact")

	// Check-out requested while no entry is open.
	ErrNoOpenSegment = errors.New("no open segment")

	// Check-in requested while an entry is still open.
	ErrAlreadyCheckedIn = errors.New("already checked in")

	// Sealed artifact bytes were altered after sealing.
	ErrCorrupted = errors.New("artifact corrupted")

	// A sealed archive already exists at the target location.
	ErrArchiveExists = errors.New("archive already exists")
)
