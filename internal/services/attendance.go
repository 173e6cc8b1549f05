package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/chain"
	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/dmitrijs2005/workwatch/internal/repositories/trail"
	"github.com/dmitrijs2005/workwatch/internal/sensors"
)

// Action is what Toggle did.
type Action string

const (
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
)

type AttendanceService interface {
	CheckIn(ctx context.Context) (*models.ChainEntry, error)
	CheckOut(ctx context.Context) (*models.ChainEntry, error)
	// Toggle checks in when not checked in and checks out otherwise.
	Toggle(ctx context.Context) (Action, *models.ChainEntry, error)
	Status(ctx context.Context) (chain.Status, error)
	// RecordTrailPoint stores the current fix. It is only accepted while
	// checked in.
	RecordTrailPoint(ctx context.Context) (*models.TrailPoint, error)
	// PruneTrail drops trail points older than the retention period.
	PruneTrail(ctx context.Context) (int64, error)
}

// Appender is the chain writer the service drives. *chain.Appender
// implements it.
type Appender interface {
	CheckIn(ctx context.Context, ev chain.CheckIn) (*models.ChainEntry, error)
	CheckOut(ctx context.Context, ev chain.CheckOut) (*models.ChainEntry, error)
	Status(ctx context.Context) (chain.Status, error)
}

// Options configures the attendance service.
type Options struct {
	WorkerID string
	// CellTimeout bounds the cell lookup; zero means 5s.
	CellTimeout time.Duration
	// TrailRetention is how long trail points are kept; zero keeps them
	// forever.
	TrailRetention time.Duration
}

type attendanceService struct {
	appender Appender
	trail    trail.Repository
	location sensors.LocationProvider
	cell     sensors.CellNetwork
	clock    sensors.Clock
	opts     Options
	log      logging.Logger
}

func NewAttendanceService(appender Appender, trailRepo trail.Repository, location sensors.LocationProvider,
	cell sensors.CellNetwork, clock sensors.Clock, opts Options, log logging.Logger) AttendanceService {
	if opts.CellTimeout <= 0 {
		opts.CellTimeout = 5 * time.Second
	}
	if cell == nil {
		cell = sensors.NoCell{}
	}
	if clock == nil {
		clock = sensors.SystemClock{}
	}
	return &attendanceService{
		appender: appender,
		trail:    trailRepo,
		location: location,
		cell:     cell,
		clock:    clock,
		opts:     opts,
		log:      log,
	}
}

func (s *attendanceService) locate(ctx context.Context) (sensors.Fix, error) {
	fix, err := s.location.Locate(ctx)
	if err != nil {
		return sensors.Fix{}, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return fix, nil
}

func (s *attendanceService) sampleCell(ctx context.Context) models.CellContext {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CellTimeout)
	defer cancel()

	c := s.cell.Sample(ctx)
	if ctx.Err() != nil {
		return models.CellUnavailable("cell lookup timed out")
	}
	if err := c.Validate(); err != nil {
		s.log.Warn(ctx, "cell source returned an invalid context", "error", err)
		return models.CellUnavailable("invalid cell context")
	}
	return c
}

func (s *attendanceService) CheckIn(ctx context.Context) (*models.ChainEntry, error) {
	fix, err := s.locate(ctx)
	if err != nil {
		return nil, err
	}
	cell := s.sampleCell(ctx)

	return s.appender.CheckIn(ctx, chain.CheckIn{At: s.clock.Now(), Coordinates: fix.Coordinates, Cell: &cell})
}

func (s *attendanceService) CheckOut(ctx context.Context) (*models.ChainEntry, error) {
	fix, err := s.locate(ctx)
	if err != nil {
		return nil, err
	}
	return s.appender.CheckOut(ctx, chain.CheckOut{At: s.clock.Now(), Coordinates: fix.Coordinates})
}

func (s *attendanceService) Toggle(ctx context.Context) (Action, *models.ChainEntry, error) {
	st, err := s.appender.Status(ctx)
	if err != nil {
		return "", nil, err
	}
	if st.CheckedIn {
		e, err := s.CheckOut(ctx)
		return ActionCheckOut, e, err
	}
	e, err := s.CheckIn(ctx)
	return ActionCheckIn, e, err
}

func (s *attendanceService) Status(ctx context.Context) (chain.Status, error) {
	return s.appender.Status(ctx)
}

func (s *attendanceService) RecordTrailPoint(ctx context.Context) (*models.TrailPoint, error) {
	st, err := s.appender.Status(ctx)
	if err != nil {
		return nil, err
	}
	if !st.CheckedIn {
		return nil, fmt.Errorf("%w: trail points are recorded only while checked in", common.ErrNoOpenSegment)
	}

	fix, err := s.locate(ctx)
	if err != nil {
		return nil, err
	}
	if err := fix.Coordinates.Validate(); err != nil {
		return nil, err
	}
	at := fix.Timestamp
	if at.IsZero() {
		at = s.clock.Now()
	}

	p := &models.TrailPoint{
		WorkerID:  s.opts.WorkerID,
		Timestamp: models.NormalizeTime(at),
		Latitude:  fix.Coordinates.Latitude,
		Longitude: fix.Coordinates.Longitude,
		Altitude:  fix.Altitude,
		Accuracy:  fix.Accuracy,
		Speed:     fix.Speed,
		Bearing:   fix.Bearing,
		Provider:  fix.Provider,
	}
	id, err := s.trail.Add(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	p.ID = id

	s.log.Debug(ctx, "trail point recorded", "id", id, "provider", p.Provider)
	return p, nil
}

func (s *attendanceService) PruneTrail(ctx context.Context) (int64, error) {
	if s.opts.TrailRetention <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.opts.TrailRetention)
	n, err := s.trail.DeleteBefore(ctx, s.opts.WorkerID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if n > 0 {
		s.log.Info(ctx, "trail pruned", "deleted", n, "before", cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}
