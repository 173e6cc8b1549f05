// Package monthly aggregates a month of daily artifact sets into a ZIP
// bundle with totals, and closes the month by rolling the chain epoch.
package monthly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/archive"
	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/filex"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

// MonthLayout is the label format of a month, also used as the rollover
// label.
const MonthLayout = "2006-01"

// Epochs closes and looks up chain epochs. *chain.Appender implements it.
type Epochs interface {
	Rollover(ctx context.Context, label string, at time.Time) (*models.EpochBoundary, error)
	Boundary(ctx context.Context, label string) (*models.EpochBoundary, error)
}

// Auditor is the artifact inspection the aggregator relies on.
// *archive.Auditor implements it.
type Auditor interface {
	VerifyMonth(ctx context.Context, root, month string) (*archive.BatchResult, error)
	VerifyReadableCopy(path string) (*models.DailyReport, error)
}

// Aggregator builds monthly summaries from the artifacts under reportsDir.
type Aggregator struct {
	auditor    Auditor
	epochs     Epochs
	reportsDir string
	exportDir  string
	workerID   string
	log        logging.Logger
	now        func() time.Time
}

func NewAggregator(auditor Auditor, epochs Epochs, reportsDir, exportDir, workerID string, log logging.Logger) *Aggregator {
	return &Aggregator{
		auditor:    auditor,
		epochs:     epochs,
		reportsDir: reportsDir,
		exportDir:  exportDir,
		workerID:   workerID,
		log:        log,
		now:        time.Now,
	}
}

// MonthLabel formats year and month as YYYY-MM.
func MonthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summarize audits every day of month and totals the work time. Durations
// come from the readable copies so no seal is broken; a copy whose hashes
// disagree with its verification artifact is flagged and not counted. A
// month with no day directories fails with common.ErrNoData.
func (a *Aggregator) Summarize(ctx context.Context, month string) (*models.MonthlySummary, *archive.BatchResult, error) {
	batch, err := a.auditor.VerifyMonth(ctx, a.reportsDir, month)
	if err != nil {
		return nil, nil, err
	}
	if batch.Total == 0 {
		return nil, nil, fmt.Errorf("%w: no daily reports for %s", common.ErrNoData, month)
	}

	s := &models.MonthlySummary{
		WorkerID:    a.workerID,
		Month:       month,
		GeneratedAt: models.NormalizeTime(a.now()),
		AllSealed:   batch.AllSealed,
		Days:        make([]models.DaySummary, 0, len(batch.Days)),
	}

	for _, d := range batch.Days {
		ds := models.DaySummary{
			Date:                d.Date,
			Status:              string(d.Sealed.Status),
			SealedHash:          d.Sealed.FileHash,
			VerificationMatches: d.VerificationMatches,
			Problem:             d.Problem,
		}
		if d.Verification != nil {
			ds.ChainValid = d.Verification.ChainValid
		}

		r, err := a.auditor.VerifyReadableCopy(d.Set.Readable)
		switch {
		case err == nil && d.Verification != nil && !copyMatches(r, d.Verification):
			if ds.Problem == "" {
				ds.Problem = "readable copy does not match verification record"
			}
		case err == nil:
			ds.WorkDurationSeconds = r.WorkDurationSeconds
			ds.Incomplete = r.Incomplete
			if d.Verification == nil {
				ds.ChainValid = r.ChainValid
			}
		case errors.Is(err, common.ErrMissingArtifact), errors.Is(err, common.ErrCorrupted):
			if ds.Problem == "" {
				ds.Problem = "readable copy: " + err.Error()
			}
		default:
			return nil, nil, err
		}

		s.TotalSeconds += ds.WorkDurationSeconds
		if ds.Incomplete {
			s.IncompleteDays++
		}
		if !ds.ChainValid {
			s.InvalidChainDays++
		}
		s.Days = append(s.Days, ds)
	}

	s.TotalDays = len(s.Days)
	s.TotalHours = round2(float64(s.TotalSeconds) / 3600)
	s.AverageHoursPerDay = round2(float64(s.TotalSeconds) / 3600 / float64(s.TotalDays))

	if b, err := a.epochs.Boundary(ctx, month); err == nil {
		s.Boundary = b
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, err
	}
	return s, batch, nil
}

// copyMatches reports whether a readable copy names the same day and chain
// hashes as the verification artifact written beside it.
func copyMatches(r *models.DailyReport, v *archive.Verification) bool {
	return r.Date == v.Date && r.WorkerID == v.WorkerID &&
		r.TodayHash == v.TodayHash && r.PreviousEpochHash == v.PreviousEpochHash
}

// BundleName is the file name of the monthly ZIP.
func BundleName(month string) string {
	return "WORKWATCH_MONTHLY_" + month + ".zip"
}

// Export writes the monthly bundle into the export directory and returns
// its path.
func (a *Aggregator) Export(ctx context.Context, month string) (string, *models.MonthlySummary, error) {
	s, batch, err := a.Summarize(ctx, month)
	if err != nil {
		return "", nil, err
	}

	data, err := buildBundle(s, batch)
	if err != nil {
		return "", nil, err
	}

	dir, err := filex.EnsureDir(a.exportDir, 0o700)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	path := filepath.Join(dir, BundleName(month))
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	a.log.Info(ctx, "monthly bundle exported", "month", month, "path", path,
		"days", s.TotalDays, "hours", s.TotalHours, "all_sealed", s.AllSealed)
	if !s.AllSealed {
		a.log.Warn(ctx, "month contains opened or damaged archives", "month", month)
	}
	return path, s, nil
}

// CloseMonth verifies the month, closes the chain epoch under the month
// label and exports the bundle with the boundary record. Running it again
// for the same month reuses the recorded boundary.
func (a *Aggregator) CloseMonth(ctx context.Context, month string, at time.Time) (string, *models.MonthlySummary, error) {
	if _, err := time.Parse(MonthLayout, month); err != nil {
		return "", nil, fmt.Errorf("%w: month %q", common.ErrValidation, month)
	}
	if _, _, err := a.Summarize(ctx, month); err != nil {
		return "", nil, err
	}
	if _, err := a.epochs.Rollover(ctx, month, at); err != nil {
		return "", nil, err
	}
	return a.Export(ctx, month)
}
