// Package sensors declares the collaborators that feed work events:
// location, cell network context, wall clock and password entry, with
// static implementations for the CLI and tests.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/models"
)

// ErrLocationUnavailable is returned when no fix can be obtained or the
// location permission is denied.
var ErrLocationUnavailable = errors.New("location unavailable")

// Fix is one location reading.
type Fix struct {
	Coordinates models.Coordinates
	Altitude    float64
	Accuracy    float64
	Speed       float64
	Bearing     float64
	Provider    string
	Timestamp   time.Time
}

type LocationProvider interface {
	Locate(ctx context.Context) (Fix, error)
}

// CellNetwork reports the serving cell. It never fails: absence is
// expressed through the CellContext variant.
type CellNetwork interface {
	Sample(ctx context.Context) models.CellContext
}

type Clock interface {
	Now() time.Time
}

// PasswordPrompt supplies archive passwords. With confirm set the
// implementation asks twice and fails on mismatch.
type PasswordPrompt interface {
	Password(ctx context.Context, prompt string, confirm bool) ([]byte, error)
}

// StaticLocation always returns the same position.
type StaticLocation struct {
	Coordinates models.Coordinates
	Accuracy    float64
	Provider    string
	Clock       Clock
}

func (s StaticLocation) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}
	p := s.Provider
	if p == "" {
		p = "static"
	}
	clock := s.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return Fix{Coordinates: s.Coordinates, Accuracy: s.Accuracy, Provider: p, Timestamp: clock.Now()}, nil
}

// DeniedLocation models a revoked location permission.
type DeniedLocation struct{}

func (DeniedLocation) Locate(context.Context) (Fix, error) {
	return Fix{}, fmt.Errorf("%w: permission denied", ErrLocationUnavailable)
}

// StaticCell returns a fixed context.
type StaticCell struct {
	Context models.CellContext
}

func (s StaticCell) Sample(ctx context.Context) models.CellContext {
	if ctx.Err() != nil {
		return models.CellUnavailable("cell lookup cancelled")
	}
	return s.Context
}

// NoCell is used on hosts without a modem.
type NoCell struct{}

func (NoCell) Sample(context.Context) models.CellContext {
	return models.CellUnavailable("no cellular modem")
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns T until advanced.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// StaticPassword returns the same password for every prompt.
type StaticPassword []byte

func (p StaticPassword) Password(ctx context.Context, _ string, _ bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]byte(nil), p...), nil
}
