package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/dbx"
	"github.com/dmitrijs2005/workwatch/internal/keystore"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/dmitrijs2005/workwatch/internal/repositories/entries"
	"github.com/dmitrijs2005/workwatch/internal/repositories/epochs"
)

// Store is the persistence the appender needs. *storage.Store implements it.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Entries(db dbx.DBTX) entries.Repository
	Epochs(db dbx.DBTX) epochs.Repository
}

// Config identifies the worker and the payload key.
type Config struct {
	WorkerID   string
	KeyAlias   string
	KeyVersion int
	Device     models.DeviceInfo
	// Location cuts month labels passed to Rollover. Nil means UTC.
	Location *time.Location
}

// CheckIn describes a check-in event. A nil Cell is recorded as
// "not available".
type CheckIn struct {
	At          time.Time
	Coordinates models.Coordinates
	Cell        *models.CellContext
}

// CheckOut describes a check-out event.
type CheckOut struct {
	At          time.Time
	Coordinates models.Coordinates
}

// Status is the worker state derived from the persisted chain.
type Status struct {
	CheckedIn bool
	Since     *time.Time
	Epoch     int64
	TailHash  []byte
	EntryID   int64
}

// Appender is the only writer of chain entries. Appends are serialized by a
// mutex within the process and by a uniqueness constraint on
// (worker, epoch, previous hash) across processes.
type Appender struct {
	store Store
	keys  keystore.Custodian
	cfg   Config
	log   logging.Logger
	mu    sync.Mutex
}

func NewAppender(store Store, keys keystore.Custodian, cfg Config, log logging.Logger) *Appender {
	if cfg.KeyVersion <= 0 {
		cfg.KeyVersion = 1
	}
	return &Appender{store: store, keys: keys, cfg: cfg, log: log.With("worker", cfg.WorkerID)}
}

func (a *Appender) key() ([]byte, error) {
	key, err := a.keys.GetOrCreateKey(keystore.VersionedAlias(a.cfg.KeyAlias, a.cfg.KeyVersion))
	if err != nil {
		return nil, fmt.Errorf("%w: payload key: %w", common.ErrEncryption, err)
	}
	return key, nil
}

func validTime(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: timestamp is required", common.ErrValidation)
	}
	if t.Year() < 2000 || t.Year() > 9999 {
		return fmt.Errorf("%w: timestamp %s out of range", common.ErrValidation, t)
	}
	return nil
}

// persistence wraps store errors that do not already carry a category.
func persistence(op string, err error) error {
	for _, known := range []error{common.ErrValidation, common.ErrEncryption, common.ErrAlreadyCheckedIn, common.ErrNoOpenSegment, common.ErrPersistence} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", common.ErrPersistence, op, err)
}

// CheckIn appends a new open entry to the current epoch. Either the fully
// hashed entry is committed or nothing is.
func (a *Appender) CheckIn(ctx context.Context, ev CheckIn) (*models.ChainEntry, error) {
	if err := ev.Coordinates.Validate(); err != nil {
		return nil, err
	}
	if err := validTime(ev.At); err != nil {
		return nil, err
	}
	cell := models.CellUnavailable("no cell source")
	if ev.Cell != nil {
		cell = *ev.Cell
	}
	if err := cell.Validate(); err != nil {
		return nil, err
	}
	at := models.NormalizeTime(ev.At)

	key, err := a.key()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	a.mu.Lock()
	defer a.mu.Unlock()

	var created *models.ChainEntry
	err = a.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.store.Entries(tx)

		latest, err := repo.Latest(ctx, a.cfg.WorkerID)
		switch {
		case err == nil && latest.Open():
			return fmt.Errorf("%w: since %s", common.ErrAlreadyCheckedIn, latest.CheckInTime.Format(time.RFC3339))
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return err
		}

		epoch, err := a.store.Epochs(tx).Current(ctx, a.cfg.WorkerID, at)
		if err != nil {
			return err
		}

		prev := cryptox.Genesis()
		tail, err := repo.Tail(ctx, a.cfg.WorkerID, epoch.Number)
		switch {
		case err == nil:
			if at.Before(tail.CheckInTime) {
				return fmt.Errorf("%w: check-in %s precedes chain tail %s", common.ErrValidation,
					at.Format(time.RFC3339), tail.CheckInTime.Format(time.RFC3339))
			}
			prev = tail.CurrentHash
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		payload := models.LogPayload{
			WorkerID:    a.cfg.WorkerID,
			CheckInTime: models.UnixMilli(at),
			Latitude:    ev.Coordinates.Latitude,
			Longitude:   ev.Coordinates.Longitude,
			Cell:        cell,
			Device:      a.cfg.Device,
		}
		blob, err := cryptox.EncryptEntry(payload, key)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrEncryption, err)
		}

		e := &models.ChainEntry{
			WorkerID:         a.cfg.WorkerID,
			Epoch:            epoch.Number,
			PreviousHash:     prev,
			CurrentHash:      cryptox.ChainHash(prev, blob),
			EncryptedPayload: blob,
			CheckInTime:      at,
			Latitude:         ev.Coordinates.Latitude,
			Longitude:        ev.Coordinates.Longitude,
			KeyVersion:       a.cfg.KeyVersion,
		}
		id, err := repo.Append(ctx, e)
		if err != nil {
			return err
		}
		e.ID = id
		created = e
		return nil
	})
	if err != nil {
		return nil, persistence("check-in", err)
	}

	a.log.Info(ctx, "check-in appended",
		"entry", created.ID, "epoch", created.Epoch, "hash", hex.EncodeToString(created.CurrentHash))
	return created, nil
}

// CheckOut closes the latest open entry in place. Hashes are not
// recomputed: they commit only the payload recorded at check-in.
func (a *Appender) CheckOut(ctx context.Context, ev CheckOut) (*models.ChainEntry, error) {
	if err := ev.Coordinates.Validate(); err != nil {
		return nil, err
	}
	if err := validTime(ev.At); err != nil {
		return nil, err
	}
	at := models.NormalizeTime(ev.At)

	a.mu.Lock()
	defer a.mu.Unlock()

	var closed *models.ChainEntry
	err := a.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.store.Entries(tx)

		open, err := repo.LatestOpen(ctx, a.cfg.WorkerID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrNoOpenSegment
		}
		if err != nil {
			return err
		}
		if at.Before(open.CheckInTime) {
			return fmt.Errorf("%w: check-out precedes check-in", common.ErrValidation)
		}

		if err := repo.SetCheckOut(ctx, open.ID, at, ev.Coordinates); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrNoOpenSegment
			}
			return err
		}

		lat, lon := ev.Coordinates.Latitude, ev.Coordinates.Longitude
		open.CheckOutTime, open.CheckOutLat, open.CheckOutLon = &at, &lat, &lon
		closed = open
		return nil
	})
	if err != nil {
		return nil, persistence("check-out", err)
	}

	a.log.Info(ctx, "check-out recorded", "entry", closed.ID,
		"duration", closed.CheckOutTime.Sub(closed.CheckInTime).String())
	return closed, nil
}

// Status derives whether the worker is checked in from the chain tail.
func (a *Appender) Status(ctx context.Context) (Status, error) {
	var st Status
	err := a.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		latest, err := a.store.Entries(tx).Latest(ctx, a.cfg.WorkerID)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		st.EntryID = latest.ID
		st.Epoch = latest.Epoch
		st.TailHash = latest.CurrentHash
		if latest.Open() {
			since := latest.CheckInTime
			st.CheckedIn, st.Since = true, &since
		}
		return nil
	})
	if err != nil {
		return Status{}, persistence("status", err)
	}
	return st, nil
}

// DecryptPayload opens the payload of e with the key version it was
// written under.
func (a *Appender) DecryptPayload(e *models.ChainEntry) (*models.LogPayload, error) {
	return DecryptPayload(a.keys, a.cfg.KeyAlias, e)
}

// DecryptPayload opens the payload of e using keys.
func DecryptPayload(keys keystore.Custodian, alias string, e *models.ChainEntry) (*models.LogPayload, error) {
	version := e.KeyVersion
	if version <= 0 {
		version = 1
	}
	name := keystore.VersionedAlias(alias, version)
	ok, err := keys.Exists(name)
	if err != nil {
		return nil, fmt.Errorf("%w: payload key: %w", common.ErrEncryption, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: payload key %s is missing", common.ErrEncryption, name)
	}
	key, err := keys.GetOrCreateKey(name)
	if err != nil {
		return nil, fmt.Errorf("%w: payload key: %w", common.ErrEncryption, err)
	}
	defer common.WipeByteArray(key)

	var p models.LogPayload
	if err := cryptox.DecryptEntry(e.EncryptedPayload, key, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
