// Package entries persists chain entries.
package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/models"
)

// Repository stores and queries ChainEntry rows. Lookups that find nothing
// return common.ErrorNotFound. Lists are ordered by creation.
type Repository interface {
	// Append inserts a new entry and returns its id. The store rejects a
	// second entry claiming the same (worker, epoch, previous hash).
	Append(ctx context.Context, e *models.ChainEntry) (int64, error)

	// Latest returns the most recently appended entry of any epoch.
	Latest(ctx context.Context, workerID string) (*models.ChainEntry, error)

	// Tail returns the most recent entry of epoch.
	Tail(ctx context.Context, workerID string, epoch int64) (*models.ChainEntry, error)

	// LatestOpen returns the most recent entry without a check-out time.
	LatestOpen(ctx context.Context, workerID string) (*models.ChainEntry, error)

	// InRange returns entries whose check-in falls in [from, to).
	InRange(ctx context.Context, workerID string, from, to time.Time) ([]models.ChainEntry, error)

	// LatestBefore returns the entry preceding id within epoch.
	LatestBefore(ctx context.Context, workerID string, epoch, id int64) (*models.ChainEntry, error)

	// ByEpoch returns the whole epoch.
	ByEpoch(ctx context.Context, workerID string, epoch int64) ([]models.ChainEntry, error)

	// SetCheckOut records the check-out of an open entry. It returns
	// common.ErrorNotFound when id is not open.
	SetCheckOut(ctx context.Context, id int64, at time.Time, c models.Coordinates) error
}
