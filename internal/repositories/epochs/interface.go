// Package epochs persists chain epochs and their closing boundary records.
package epochs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/models"
)

// Closing is what gets recorded when an epoch ends.
type Closing struct {
	Label      string
	ClosedAt   time.Time
	TailHash   []byte
	EntryCount int
	ChainValid bool
}

// Repository stores Epoch rows. Each worker has at most one open epoch.
type Repository interface {
	// Current returns the open epoch, creating epoch 1 on first use.
	Current(ctx context.Context, workerID string, now time.Time) (*models.Epoch, error)
	// Get returns a specific epoch or common.ErrorNotFound.
	Get(ctx context.Context, workerID string, number int64) (*models.Epoch, error)
	// ByLabel returns the epoch closed under label or common.ErrorNotFound.
	ByLabel(ctx context.Context, workerID, label string) (*models.Epoch, error)
	// Close records c on the open epoch number and opens number+1.
	Close(ctx context.Context, workerID string, number int64, c Closing) (*models.Epoch, error)
}
