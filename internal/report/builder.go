package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/dbx"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/dmitrijs2005/workwatch/internal/repositories/entries"
	"github.com/dmitrijs2005/workwatch/internal/repositories/trail"
)

// Store is the read side the builder needs. *storage.Store implements it.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Entries(db dbx.DBTX) entries.Repository
	Trail(db dbx.DBTX) trail.Repository
}

// Builder loads a day from the store and builds its report.
type Builder struct {
	store    Store
	workerID string
	loc      *time.Location
	device   models.DeviceInfo
	decrypt  PayloadDecryptor
	log      logging.Logger
	now      func() time.Time
}

func NewBuilder(store Store, workerID string, loc *time.Location, device models.DeviceInfo,
	decrypt PayloadDecryptor, log logging.Logger) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{store: store, workerID: workerID, loc: loc, device: device, decrypt: decrypt, log: log, now: time.Now}
}

// DayBounds returns [start, end) of the calendar day named by date in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date %q: %w", common.ErrValidation, date, err)
	}
	return day, day.AddDate(0, 0, 1), nil
}

// Build reads the day's entries and trail in one transaction so the report
// sees a consistent snapshot.
func (b *Builder) Build(ctx context.Context, date string) (*models.DailyReport, error) {
	from, to, err := DayBounds(date, b.loc)
	if err != nil {
		return nil, err
	}

	in := Input{
		Date:          date,
		WorkerID:      b.workerID,
		GeneratedAt:   b.now(),
		Device:        b.device,
		Decrypt:       b.decrypt,
		InitialHashes: map[int64][]byte{},
	}

	err = b.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := b.store.Entries(tx)

		list, err := repo.InRange(ctx, b.workerID, from, to)
		if err != nil {
			return err
		}
		in.Entries = list

		for i := range list {
			e := &list[i]
			if _, seen := in.InitialHashes[e.Epoch]; seen {
				continue
			}
			prev, err := repo.LatestBefore(ctx, b.workerID, e.Epoch, e.ID)
			switch {
			case err == nil:
				in.InitialHashes[e.Epoch] = prev.CurrentHash
			case errors.Is(err, common.ErrorNotFound):
				in.InitialHashes[e.Epoch] = cryptox.Genesis()
			default:
				return err
			}
		}

		points, err := b.store.Trail(tx).InRange(ctx, b.workerID, from, to)
		if err != nil {
			return err
		}
		in.Trail = points
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load day %s: %w", common.ErrPersistence, date, err)
	}

	r, err := Build(in)
	if err != nil {
		return nil, err
	}

	if !r.ChainValid {
		b.log.Warn(ctx, "chain broken in daily report", "date", date, "entries", r.EntryCount)
	}
	b.log.Info(ctx, "daily report built", "date", date, "entries", r.EntryCount, "incomplete", r.Incomplete)
	return r, nil
}
