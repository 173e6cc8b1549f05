// Package openings keeps the ledger of sealed archives that were opened.
package openings

import (
	"context"

	"github.com/dmitrijs2005/workwatch/internal/models"
)

type Repository interface {
	Record(ctx context.Context, o *models.ArchiveOpening) (int64, error)
	// ListByArchive returns openings of the archive with the given content
	// hash, oldest first.
	ListByArchive(ctx context.Context, archiveHash string) ([]models.ArchiveOpening, error)
}
