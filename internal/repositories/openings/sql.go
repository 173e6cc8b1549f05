package openings

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/workwatch/internal/dbx"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

func (r *SQLRepository) Record(ctx context.Context, o *models.ArchiveOpening) (int64, error) {
	query := `insert into archive_openings (archive_hash, path, opened_at, action) values (?, ?, ?, ?) returning id`

	var id int64
	if err := r.db.QueryRowContext(ctx, r.d.Rebind(query),
		o.ArchiveHash, o.Path, models.UnixMilli(o.OpenedAt), o.Action).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert archive opening: %w", err)
	}
	return id, nil
}

func (r *SQLRepository) ListByArchive(ctx context.Context, archiveHash string) ([]models.ArchiveOpening, error) {
	query := `select id, archive_hash, path, opened_at, action from archive_openings where archive_hash = ? order by id`
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(query), archiveHash)
	if err != nil {
		return nil, fmt.Errorf("failed to select archive openings: %w", err)
	}
	defer rows.Close()

	result := []models.ArchiveOpening{}
	for rows.Next() {
		var (
			o  models.ArchiveOpening
			at int64
		)
		if err := rows.Scan(&o.ID, &o.ArchiveHash, &o.Path, &at, &o.Action); err != nil {
			return nil, err
		}
		o.OpenedAt = models.FromUnixMilli(at)
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
