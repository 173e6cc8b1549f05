package epochs

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

// SQLRepository implements Repository over DBTX. Current and Close issue
// several statements and should run inside a transaction.
type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

const selectColumns = `select worker_id, number, started_at, closed_at, label, closing_tail_hash,
	closing_entry_count, chain_valid from epochs`

func (r *SQLRepository) one(ctx context.Context, query string, args ...any) (*models.Epoch, error) {
	var (
		e        models.Epoch
		started  int64
		closed   sql.NullInt64
		label    sql.NullString
		count    sql.NullInt64
		valid    sql.NullBool
		tailHash []byte
	)
	err := r.db.QueryRowContext(ctx, r.d.Rebind(query), args...).
		Scan(&e.WorkerID, &e.Number, &started, &closed, &label, &tailHash, &count, &valid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select epoch: %w", err)
	}

	e.StartedAt = models.FromUnixMilli(started)
	if closed.Valid {
		t := models.FromUnixMilli(closed.Int64)
		e.ClosedAt = &t
	}
	e.Label = label.String
	e.ClosingTailHash = tailHash
	e.ClosingEntryCount = int(count.Int64)
	if valid.Valid {
		v := valid.Bool
		e.ChainValid = &v
	}
	return &e, nil
}

func (r *SQLRepository) insert(ctx context.Context, workerID string, number int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.d.Rebind(`insert into epochs (worker_id, number, started_at) values (?, ?, ?)`),
		workerID, number, models.UnixMilli(at))
	if err != nil {
		return fmt.Errorf("failed to insert epoch: %w", err)
	}
	return nil
}

func (r *SQLRepository) Current(ctx context.Context, workerID string, now time.Time) (*models.Epoch, error) {
	e, err := r.one(ctx, selectColumns+` where worker_id = ? and closed_at is null order by number desc limit 1`, workerID)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	var last sql.NullInt64
	if err := r.db.QueryRowContext(ctx, r.d.Rebind(`select max(number) from epochs where worker_id = ?`), workerID).
		Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to select last epoch: %w", err)
	}

	next := last.Int64 + 1
	if err := r.insert(ctx, workerID, next, now); err != nil {
		return nil, err
	}
	return r.Get(ctx, workerID, next)
}

func (r *SQLRepository) Get(ctx context.Context, workerID string, number int64) (*models.Epoch, error) {
	return r.one(ctx, selectColumns+` where worker_id = ? and number = ?`, workerID, number)
}

func (r *SQLRepository) ByLabel(ctx context.Context, workerID, label string) (*models.Epoch, error) {
	return r.one(ctx, selectColumns+` where worker_id = ? and label = ?`, workerID, label)
}

func (r *SQLRepository) Close(ctx context.Context, workerID string, number int64, c Closing) (*models.Epoch, error) {
	query := `update epochs set closed_at = ?, label = ?, closing_tail_hash = ?, closing_entry_count = ?, chain_valid = ?
		where worker_id = ? and number = ? and closed_at is null`
	res, err := r.db.ExecContext(ctx, r.d.Rebind(query),
		models.UnixMilli(c.ClosedAt), c.Label, c.TailHash, c.EntryCount, c.ChainValid, workerID, number)
	if err != nil {
		return nil, fmt.Errorf("failed to close epoch: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return nil, common.ErrorNotFound
	}

	if err := r.insert(ctx, workerID, number+1, c.ClosedAt); err != nil {
		return nil, err
	}
	return r.Get(ctx, workerID, number+1)
}
