package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/dbx"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

// SQLRepository implements Repository over DBTX (either *sql.DB or *sql.Tx)
// for both SQLite and Postgres.
type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

// NewSQLRepository returns a repository bound to db.
func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

const selectColumns = `select id, worker_id, epoch, previous_hash, current_hash, encrypted_payload,
	check_in_time, check_out_time, latitude, longitude, check_out_latitude, check_out_longitude,
	synced, key_version from chain_entries`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.ChainEntry, error) {
	var (
		e        models.ChainEntry
		checkIn  int64
		checkOut sql.NullInt64
		outLat   sql.NullFloat64
		outLon   sql.NullFloat64
	)
	err := s.Scan(&e.ID, &e.WorkerID, &e.Epoch, &e.PreviousHash, &e.CurrentHash, &e.EncryptedPayload,
		&checkIn, &checkOut, &e.Latitude, &e.Longitude, &outLat, &outLon, &e.Synced, &e.KeyVersion)
	if err != nil {
		return nil, err
	}

	e.CheckInTime = models.FromUnixMilli(checkIn)
	if checkOut.Valid {
		t := models.FromUnixMilli(checkOut.Int64)
		e.CheckOutTime = &t
	}
	if outLat.Valid && outLon.Valid {
		e.CheckOutLat, e.CheckOutLon = &outLat.Float64, &outLon.Float64
	}
	return &e, nil
}

func (r *SQLRepository) one(ctx context.Context, what, query string, args ...any) (*models.ChainEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, r.d.Rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", what, err)
	}
	return e, nil
}

func (r *SQLRepository) many(ctx context.Context, query string, args ...any) ([]models.ChainEntry, error) {
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []models.ChainEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLRepository) Append(ctx context.Context, e *models.ChainEntry) (int64, error) {
	query := `insert into chain_entries (worker_id, epoch, previous_hash, current_hash, encrypted_payload,
			check_in_time, latitude, longitude, synced, key_version)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		returning id`

	var id int64
	err := r.db.QueryRowContext(ctx, r.d.Rebind(query),
		e.WorkerID, e.Epoch, e.PreviousHash, e.CurrentHash, e.EncryptedPayload,
		models.UnixMilli(e.CheckInTime), e.Latitude, e.Longitude, e.Synced, e.KeyVersion,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}
	return id, nil
}

func (r *SQLRepository) Latest(ctx context.Context, workerID string) (*models.ChainEntry, error) {
	return r.one(ctx, "latest entry", selectColumns+` where worker_id = ? order by id desc limit 1`, workerID)
}

func (r *SQLRepository) Tail(ctx context.Context, workerID string, epoch int64) (*models.ChainEntry, error) {
	return r.one(ctx, "chain tail", selectColumns+` where worker_id = ? and epoch = ? order by id desc limit 1`, workerID, epoch)
}

func (r *SQLRepository) LatestOpen(ctx context.Context, workerID string) (*models.ChainEntry, error) {
	return r.one(ctx, "open entry",
		selectColumns+` where worker_id = ? and check_out_time is null order by id desc limit 1`, workerID)
}

func (r *SQLRepository) InRange(ctx context.Context, workerID string, from, to time.Time) ([]models.ChainEntry, error) {
	return r.many(ctx, selectColumns+` where worker_id = ? and check_in_time >= ? and check_in_time < ? order by id`,
		workerID, models.UnixMilli(from), models.UnixMilli(to))
}

func (r *SQLRepository) LatestBefore(ctx context.Context, workerID string, epoch, id int64) (*models.ChainEntry, error) {
	return r.one(ctx, "previous entry",
		selectColumns+` where worker_id = ? and epoch = ? and id < ? order by id desc limit 1`, workerID, epoch, id)
}

func (r *SQLRepository) ByEpoch(ctx context.Context, workerID string, epoch int64) ([]models.ChainEntry, error) {
	return r.many(ctx, selectColumns+` where worker_id = ? and epoch = ? order by id`, workerID, epoch)
}

func (r *SQLRepository) SetCheckOut(ctx context.Context, id int64, at time.Time, c models.Coordinates) error {
	query := `update chain_entries set check_out_time = ?, check_out_latitude = ?, check_out_longitude = ?
		where id = ? and check_out_time is null`
	res, err := r.db.ExecContext(ctx, r.d.Rebind(query), models.UnixMilli(at), c.Latitude, c.Longitude, id)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}
