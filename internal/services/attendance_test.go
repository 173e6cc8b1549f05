package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/chain"
	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/keystore"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/dmitrijs2005/workwatch/internal/sensors"
	"github.com/dmitrijs2005/workwatch/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0   = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	here = models.Coordinates{Latitude: 41.0, Longitude: 29.0}
)

type harness struct {
	svc      AttendanceService
	appender *chain.Appender
	store    *storage.Store
	clock    *sensors.FixedClock
}

func newHarness(t *testing.T, loc sensors.LocationProvider, cell sensors.CellNetwork, opts Options) *harness {
	t.Helper()
	ctx := context.Background()
	s, err := storage.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.RunMigrations(ctx))

	clock := &sensors.FixedClock{T: t0}
	if loc == nil {
		loc = sensors.StaticLocation{Coordinates: here, Accuracy: 4, Provider: "gps", Clock: clock}
	}
	opts.WorkerID = "w1"
	a := chain.NewAppender(s, keystore.NewMemoryCustodian(), chain.Config{WorkerID: "w1", KeyAlias: "chain"}, logging.NewNop())
	svc := NewAttendanceService(a, s.Trail(s.DB), loc, cell, clock, opts, logging.NewNop())
	return &harness{svc: svc, appender: a, store: s, clock: clock}
}

func TestToggle(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})
	ctx := context.Background()

	act, e, err := h.svc.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionCheckIn, act)
	assert.Equal(t, cryptox.Genesis(), e.PreviousHash)

	st, err := h.svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.CheckedIn)
	require.NotNil(t, st.Since)
	assert.True(t, st.Since.Equal(t0))

	h.clock.Advance(8 * time.Hour)
	act, e, err = h.svc.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionCheckOut, act)
	require.NotNil(t, e.CheckOutTime)
	assert.True(t, e.CheckOutTime.Equal(t0.Add(8*time.Hour)))

	st, err = h.svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.CheckedIn)
}

func TestCheckIn_RecordsCellContext(t *testing.T) {
	tower := models.CellTower{CellID: "1234", AreaCode: "56", MCC: "286", MNC: "01", NetworkType: "LTE", SignalStrength: -90}
	h := newHarness(t, nil, sensors.StaticCell{Context: models.CellFromTower(tower)}, Options{})
	ctx := context.Background()

	e, err := h.svc.CheckIn(ctx)
	require.NoError(t, err)

	p, err := h.appender.DecryptPayload(e)
	require.NoError(t, err)
	assert.Equal(t, models.CellAvailable, p.Cell.Status)
	require.NotNil(t, p.Cell.Tower)
	assert.Equal(t, "1234", p.Cell.Tower.CellID)
}

type slowCell struct{}

func (slowCell) Sample(ctx context.Context) models.CellContext {
	<-ctx.Done()
	return models.CellFromTower(models.CellTower{CellID: "late"})
}

func TestCheckIn_SlowCellIsUnavailable(t *testing.T) {
	h := newHarness(t, nil, slowCell{}, Options{CellTimeout: 10 * time.Millisecond})

	e, err := h.svc.CheckIn(context.Background())
	require.NoError(t, err)

	p, err := h.appender.DecryptPayload(e)
	require.NoError(t, err)
	assert.Equal(t, models.CellNotAvailable, p.Cell.Status)
	assert.Equal(t, "cell lookup timed out", p.Cell.Reason)
}

func TestCheckIn_LocationDenied(t *testing.T) {
	h := newHarness(t, sensors.DeniedLocation{}, nil, Options{})

	_, err := h.svc.CheckIn(context.Background())
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.ErrorIs(t, err, sensors.ErrLocationUnavailable)

	st, err := h.svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.CheckedIn)
}

func TestCheckOut_WithoutCheckIn(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})

	_, err := h.svc.CheckOut(context.Background())
	assert.ErrorIs(t, err, common.ErrNoOpenSegment)
}

func TestRecordTrailPoint(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})
	ctx := context.Background()

	_, err := h.svc.RecordTrailPoint(ctx)
	assert.ErrorIs(t, err, common.ErrNoOpenSegment)

	_, err = h.svc.CheckIn(ctx)
	require.NoError(t, err)
	h.clock.Advance(30 * time.Minute)

	p, err := h.svc.RecordTrailPoint(ctx)
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "gps", p.Provider)

	list, err := h.store.Trail(h.store.DB).InRange(ctx, "w1", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Timestamp.Equal(t0.Add(30*time.Minute)))
}

func TestPruneTrail(t *testing.T) {
	h := newHarness(t, nil, nil, Options{TrailRetention: 24 * time.Hour})
	ctx := context.Background()

	_, err := h.svc.CheckIn(ctx)
	require.NoError(t, err)
	_, err = h.svc.RecordTrailPoint(ctx)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Hour)
	_, err = h.svc.RecordTrailPoint(ctx)
	require.NoError(t, err)

	h.clock.Advance(23 * time.Hour)
	n, err := h.svc.PruneTrail(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := h.store.Trail(h.store.DB).InRange(ctx, "w1", t0, t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPruneTrail_DisabledKeepsEverything(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})
	n, err := h.svc.PruneTrail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
