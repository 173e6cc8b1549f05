package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"golang.org/x/sync/errgroup"
)

// MaxParallel bounds concurrent per-day checks.
const MaxParallel = 4

// DayCheck is the audited state of one day's artifact set.
type DayCheck struct {
	Date         string
	Set          ArtifactSet
	Sealed       *IntegrityResult
	Verification *Verification
	// VerificationMatches is true when the verification artifact names the
	// sealed file's current hash.
	VerificationMatches bool
	Problem             string
}

// BatchResult summarizes a month of sealed archives.
type BatchResult struct {
	Month     string
	Total     int
	AllSealed bool
	Days      []DayCheck
}

// MonthDays returns the day directories under root that belong to month
// (YYYY-MM), sorted.
func MonthDays(root, month string) ([]string, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, fmt.Errorf("%w: month %q", common.ErrValidation, month)
	}
	list, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrPersistence, root, err)
	}

	var days []string
	for _, e := range list {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), month+"-") {
			continue
		}
		if _, err := time.Parse(models.DateLayout, e.Name()); err != nil {
			continue
		}
		days = append(days, e.Name())
	}
	sort.Strings(days)
	return days, nil
}

// CheckDay audits the artifacts of date under root.
func (a *Auditor) CheckDay(ctx context.Context, root, date string) (*DayCheck, error) {
	set := SetFor(root, date)
	dc := &DayCheck{Date: date, Set: set}

	res, err := a.CheckIntegrity(ctx, set.Sealed)
	if err != nil {
		return nil, err
	}
	dc.Sealed = res

	v, err := a.ReadVerification(set.Verification)
	switch {
	case err == nil:
		dc.Verification = v
		dc.VerificationMatches = res.Status == StatusSealed && v.SealedHash == res.FileHash
	case errors.Is(err, common.ErrMissingArtifact), errors.Is(err, common.ErrCorrupted):
		dc.Problem = err.Error()
	default:
		return nil, err
	}

	switch {
	case res.Status != StatusSealed:
		dc.Problem = fmt.Sprintf("sealed original is %s", res.Status)
	case res.Opened():
		dc.Problem = fmt.Sprintf("sealed original opened %d time(s)", res.OpenCount)
	case dc.Verification != nil && !dc.VerificationMatches:
		dc.Problem = "sealed hash differs from verification record"
	}
	return dc, nil
}

// VerifyMonth audits every day of month under root. Days are checked in
// parallel; the result keeps date order.
func (a *Auditor) VerifyMonth(ctx context.Context, root, month string) (*BatchResult, error) {
	days, err := MonthDays(root, month)
	if err != nil {
		return nil, err
	}

	checks := make([]DayCheck, len(days))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallel)
	for i, d := range days {
		g.Go(func() error {
			dc, err := a.CheckDay(ctx, root, d)
			if err != nil {
				return fmt.Errorf("check %s: %w", d, err)
			}
			checks[i] = *dc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &BatchResult{Month: month, Total: len(checks), AllSealed: len(checks) > 0, Days: checks}
	for _, c := range checks {
		if c.Sealed.Status != StatusSealed || c.Sealed.Opened() {
			res.AllSealed = false
		}
	}
	return res, nil
}
