package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/dbx"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/dmitrijs2005/workwatch/internal/repositories/epochs"
)

// EpochVerification is the result of validating a whole epoch.
type EpochVerification struct {
	Epoch    int64
	Entries  int
	Valid    bool
	TailHash []byte
	// Broken is set when Valid is false.
	Broken *BrokenLinkError
}

// VerifyEpoch validates every entry of epoch from genesis. Zero means the
// current epoch. A broken chain is reported, never repaired.
func (a *Appender) VerifyEpoch(ctx context.Context, epoch int64) (*EpochVerification, error) {
	var res *EpochVerification
	err := a.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if epoch == 0 {
			cur, err := a.store.Epochs(tx).Current(ctx, a.cfg.WorkerID, time.Now().UTC())
			if err != nil {
				return err
			}
			epoch = cur.Number
		}
		list, err := a.store.Entries(tx).ByEpoch(ctx, a.cfg.WorkerID, epoch)
		if err != nil {
			return err
		}
		res = verifyList(epoch, list)
		return nil
	})
	if err != nil {
		return nil, persistence("verify epoch", err)
	}

	if !res.Valid {
		a.log.Warn(ctx, "chain broken", "epoch", res.Epoch, "index", res.Broken.Index, "reason", res.Broken.Reason)
	}
	return res, nil
}

func verifyList(epoch int64, list []models.ChainEntry) *EpochVerification {
	res := &EpochVerification{Epoch: epoch, Entries: len(list), Valid: true, TailHash: cryptox.Genesis()}
	if len(list) > 0 {
		res.TailHash = list[len(list)-1].CurrentHash
	}
	if err := Verify(list, cryptox.Genesis()); err != nil {
		var broken *BrokenLinkError
		errors.As(err, &broken)
		res.Valid, res.Broken = false, broken
	}
	return res
}

// monthEnd returns the first instant after the month named by label, or
// false when label is not a YYYY-MM month.
func (a *Appender) monthEnd(label string) (time.Time, bool) {
	loc := a.cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	m, err := time.ParseInLocation("2006-01", label, loc)
	if err != nil {
		return time.Time{}, false
	}
	return m.AddDate(0, 1, 0), true
}

// Rollover closes the current epoch under label and opens the next one,
// whose first entry starts again from genesis. The closing tail hash,
// entry count and validity are kept in the boundary record. Calling it again
// with the same label returns the existing boundary. When label is a YYYY-MM
// month, an epoch holding check-ins after that month is refused with
// common.ErrValidation and stays open.
func (a *Appender) Rollover(ctx context.Context, label string, at time.Time) (*models.EpochBoundary, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: rollover label is required", common.ErrValidation)
	}
	at = models.NormalizeTime(at)
	end, isMonth := a.monthEnd(label)

	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		boundary *models.EpochBoundary
		created  bool
	)
	err := a.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.store.Epochs(tx)

		done, err := repo.ByLabel(ctx, a.cfg.WorkerID, label)
		if err == nil {
			boundary = boundaryOf(done)
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		cur, err := repo.Current(ctx, a.cfg.WorkerID, at)
		if err != nil {
			return err
		}
		list, err := a.store.Entries(tx).ByEpoch(ctx, a.cfg.WorkerID, cur.Number)
		if err != nil {
			return err
		}
		if isMonth {
			for _, e := range list {
				if !e.CheckInTime.Before(end) {
					return fmt.Errorf("%w: epoch %d has a check-in at %s after month %s",
						common.ErrValidation, cur.Number, e.CheckInTime.Format(time.RFC3339), label)
				}
			}
		}
		v := verifyList(cur.Number, list)

		if _, err := repo.Close(ctx, a.cfg.WorkerID, cur.Number, epochs.Closing{
			Label: label, ClosedAt: at, TailHash: v.TailHash, EntryCount: v.Entries, ChainValid: v.Valid,
		}); err != nil {
			return err
		}
		closed, err := repo.Get(ctx, a.cfg.WorkerID, cur.Number)
		if err != nil {
			return err
		}
		boundary, created = boundaryOf(closed), true
		return nil
	})
	if err != nil {
		return nil, persistence("rollover", err)
	}

	if created {
		a.log.Info(ctx, "epoch rolled over", "label", label, "closed_epoch", boundary.ClosedEpoch,
			"entries", boundary.EntryCount, "chain_valid", boundary.ChainValid, "tail", boundary.ClosingTailHash)
		if !boundary.ChainValid {
			a.log.Warn(ctx, "closed epoch has a broken chain", "epoch", boundary.ClosedEpoch)
		}
	}
	return boundary, nil
}

func boundaryOf(e *models.Epoch) *models.EpochBoundary {
	b := &models.EpochBoundary{
		WorkerID:        e.WorkerID,
		ClosedEpoch:     e.Number,
		NextEpoch:       e.Number + 1,
		Label:           e.Label,
		ClosingTailHash: hex.EncodeToString(e.ClosingTailHash),
		EntryCount:      e.ClosingEntryCount,
	}
	if e.ClosedAt != nil {
		b.ClosedAt = *e.ClosedAt
	}
	if e.ChainValid != nil {
		b.ChainValid = *e.ChainValid
	}
	return b
}

// Boundary returns the boundary recorded for label, or common.ErrorNotFound
// when no epoch was closed under it.
func (a *Appender) Boundary(ctx context.Context, label string) (*models.EpochBoundary, error) {
	var e *models.Epoch
	err := a.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		e, err = a.store.Epochs(tx).ByLabel(ctx, a.cfg.WorkerID, label)
		return err
	})
	if errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, persistence("boundary", err)
	}
	return boundaryOf(e), nil
}
