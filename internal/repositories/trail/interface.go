// Package trail persists GPS trail points.
package trail

import (
	"context"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/models"
)

// Repository stores TrailPoint rows.
type Repository interface {
	Add(ctx context.Context, p *models.TrailPoint) (int64, error)
	// InRange returns points with timestamps in [from, to), oldest first.
	InRange(ctx context.Context, workerID string, from, to time.Time) ([]models.TrailPoint, error)
	// DeleteBefore removes points older than cutoff and returns how many.
	DeleteBefore(ctx context.Context, workerID string, cutoff time.Time) (int64, error)
}
