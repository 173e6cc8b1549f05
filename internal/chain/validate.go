// Package chain appends work events to a worker's hash chain and validates
// chain segments.
//
// Every entry commits to its predecessor:
//
//	currentHash = SHA-256(previousHash ‖ encryptedPayload)
//
// The first entry of an epoch uses 32 zero bytes as previousHash.
package chain

import (
	"bytes"
	"fmt"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

// BrokenLinkError pinpoints the first mismatch found in a segment.
type BrokenLinkError struct {
	Index   int
	EntryID int64
	Reason  string
}

func (e *BrokenLinkError) Error() string {
	return fmt.Sprintf("chain broken at index %d (entry %d): %s", e.Index, e.EntryID, e.Reason)
}

func (e *BrokenLinkError) Is(target error) bool {
	return target == common.ErrChainBroken
}

// Verify checks entries, given in creation order, against the expected
// previous hash of the first one. It returns a *BrokenLinkError on the first
// mismatch. An empty segment is valid.
func Verify(entries []models.ChainEntry, initialPreviousHash []byte) error {
	for i := range entries {
		e := &entries[i]

		if i == 0 {
			if !bytes.Equal(e.PreviousHash, initialPreviousHash) {
				return &BrokenLinkError{Index: i, EntryID: e.ID, Reason: "previous hash does not match segment start"}
			}
		} else if !bytes.Equal(e.PreviousHash, entries[i-1].CurrentHash) {
			return &BrokenLinkError{Index: i, EntryID: e.ID, Reason: "previous hash does not match predecessor"}
		}

		if !bytes.Equal(e.CurrentHash, cryptox.ChainHash(e.PreviousHash, e.EncryptedPayload)) {
			return &BrokenLinkError{Index: i, EntryID: e.ID, Reason: "current hash does not match payload"}
		}
	}
	return nil
}

// ValidateSegment reports whether the whole segment is intact. There is no
// partial validity: one mismatch invalidates the segment.
func ValidateSegment(entries []models.ChainEntry, initialPreviousHash []byte) bool {
	return Verify(entries, initialPreviousHash) == nil
}
