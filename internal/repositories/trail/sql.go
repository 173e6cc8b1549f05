package trail

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/dbx"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

// SQLRepository implements Repository over DBTX.
type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

func (r *SQLRepository) Add(ctx context.Context, p *models.TrailPoint) (int64, error) {
	query := `insert into trail_points (worker_id, ts, latitude, longitude, altitude, accuracy, speed, bearing, provider)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?)
		returning id`

	var id int64
	err := r.db.QueryRowContext(ctx, r.d.Rebind(query),
		p.WorkerID, models.UnixMilli(p.Timestamp), p.Latitude, p.Longitude,
		p.Altitude, p.Accuracy, p.Speed, p.Bearing, p.Provider,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trail point: %w", err)
	}
	return id, nil
}

func (r *SQLRepository) InRange(ctx context.Context, workerID string, from, to time.Time) ([]models.TrailPoint, error) {
	query := `select id, worker_id, ts, latitude, longitude, altitude, accuracy, speed, bearing, provider
		from trail_points where worker_id = ? and ts >= ? and ts < ? order by ts, id`

	rows, err := r.db.QueryContext(ctx, r.d.Rebind(query), workerID, models.UnixMilli(from), models.UnixMilli(to))
	if err != nil {
		return nil, fmt.Errorf("failed to select trail points: %w", err)
	}
	defer rows.Close()

	result := []models.TrailPoint{}
	for rows.Next() {
		var (
			p  models.TrailPoint
			ts int64
		)
		if err := rows.Scan(&p.ID, &p.WorkerID, &ts, &p.Latitude, &p.Longitude,
			&p.Altitude, &p.Accuracy, &p.Speed, &p.Bearing, &p.Provider); err != nil {
			return nil, err
		}
		p.Timestamp = models.FromUnixMilli(ts)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLRepository) DeleteBefore(ctx context.Context, workerID string, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`delete from trail_points where worker_id = ? and ts < ?`),
		workerID, models.UnixMilli(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete trail points: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
