package monthly

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/workwatch/internal/archive"
	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

// Bundle entry names.
const (
	SummaryTextName = "MONTHLY_SUMMARY.txt"
	SummaryJSONName = "monthly_summary.json"
	ReadmeName      = "README.txt"
	BoundaryName    = "EPOCH_BOUNDARY.txt"
	DailyDir        = "daily_reports"
)

func buildBundle(s *models.MonthlySummary, batch *archive.BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	add := func(name string, data []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("%w: bundle %s: %w", common.ErrPersistence, name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("%w: bundle %s: %w", common.ErrPersistence, name, err)
		}
		return nil
	}

	js, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode monthly summary: %w", err)
	}
	if err := add(SummaryTextName, RenderSummary(s)); err != nil {
		return nil, err
	}
	if err := add(SummaryJSONName, js); err != nil {
		return nil, err
	}
	if err := add(ReadmeName, RenderReadme(s)); err != nil {
		return nil, err
	}
	if s.Boundary != nil {
		if err := add(BoundaryName, RenderBoundary(s.Boundary)); err != nil {
			return nil, err
		}
	}

	for _, d := range batch.Days {
		for _, p := range []string{d.Set.Sealed, d.Set.Readable, d.Set.Summary, d.Set.Verification} {
			data, err := os.ReadFile(p)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%w: read %s: %w", common.ErrPersistence, p, err)
			}
			if err := add(DailyDir+"/"+d.Date+"/"+filepath.Base(p), data); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: close bundle: %w", common.ErrPersistence, err)
	}
	return buf.Bytes(), nil
}

func mark(ok bool) string {
	if ok {
		return "OK"
	}
	return "!!"
}

// RenderSummary produces MONTHLY_SUMMARY.txt.
func RenderSummary(s *models.MonthlySummary) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "MONTHLY WORK SUMMARY %s\n", s.Month)
	b.WriteString("=====================================\n\n")
	fmt.Fprintf(&b, "Worker:             %s\n", s.WorkerID)
	fmt.Fprintf(&b, "Generated:          %s\n\n", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Days worked:        %d\n", s.TotalDays)
	fmt.Fprintf(&b, "Total hours:        %.2f\n", s.TotalHours)
	fmt.Fprintf(&b, "Average hours/day:  %.2f\n", s.AverageHoursPerDay)
	fmt.Fprintf(&b, "Incomplete days:    %d\n", s.IncompleteDays)
	fmt.Fprintf(&b, "Broken chain days:  %d\n", s.InvalidChainDays)
	fmt.Fprintf(&b, "All sealed intact:  %v\n\n", s.AllSealed)

	b.WriteString("DAYS\n")
	for _, d := range s.Days {
		fmt.Fprintf(&b, "  %s  %s  %-14s %7.2fh", mark(d.Problem == "" && d.ChainValid), d.Date, d.Status,
			float64(d.WorkDurationSeconds)/3600)
		if d.Incomplete {
			b.WriteString("  incomplete")
		}
		if d.Problem != "" {
			fmt.Fprintf(&b, "  %s", d.Problem)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// RenderReadme describes the bundle layout.
func RenderReadme(s *models.MonthlySummary) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "WorkWatch monthly bundle %s\n\n", s.Month)
	b.WriteString("Contents\n")
	fmt.Fprintf(&b, "  %-24s totals and per-day table\n", SummaryTextName)
	fmt.Fprintf(&b, "  %-24s the same summary as JSON\n", SummaryJSONName)
	if s.Boundary != nil {
		fmt.Fprintf(&b, "  %-24s how the chain epoch for this month was closed\n", BoundaryName)
	}
	fmt.Fprintf(&b, "  %-24s one directory per day with four files:\n", DailyDir+"/<date>/")
	b.WriteString("      SEALED_ORIGINAL_<date>.wwseal  encrypted original, the only evidentiary file\n")
	b.WriteString("      READABLE_COPY_<date>.json      watermarked plaintext copy, view only\n")
	b.WriteString("      SUMMARY_<date>.txt             condensed day summary\n")
	b.WriteString("      VERIFICATION_<date>.txt        hashes and verification procedure\n\n")
	b.WriteString("Verification\n")
	b.WriteString("  Compare the SHA-256 of each sealed original with the value in its verification file.\n")
	b.WriteString("  An unopened sealed original with a matching hash is valid. An opened one is suspect.\n")
	b.WriteString("  A mismatching hash means the file was altered.\n")
	return []byte(b.String())
}

// RenderBoundary produces EPOCH_BOUNDARY.txt.
func RenderBoundary(e *models.EpochBoundary) []byte {
	var b strings.Builder
	b.WriteString("CHAIN EPOCH BOUNDARY\n")
	b.WriteString("=====================================\n\n")
	fmt.Fprintf(&b, "Label:              %s\n", e.Label)
	fmt.Fprintf(&b, "Worker:             %s\n", e.WorkerID)
	fmt.Fprintf(&b, "Closed epoch:       %d\n", e.ClosedEpoch)
	fmt.Fprintf(&b, "Next epoch:         %d\n", e.NextEpoch)
	fmt.Fprintf(&b, "Closed at:          %s\n", e.ClosedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Entries:            %d\n", e.EntryCount)
	fmt.Fprintf(&b, "Closing tail hash:  %s\n", e.ClosingTailHash)
	fmt.Fprintf(&b, "Chain valid:        %v\n\n", e.ChainValid)
	b.WriteString("Entries after this boundary start again from the genesis hash. The closing tail\n")
	b.WriteString("hash above is the last link of the closed epoch.\n")
	return []byte(b.String())
}
