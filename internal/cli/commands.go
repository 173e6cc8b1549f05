package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/dmitrijs2005/workwatch/internal/monthly"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUsage, fs.Name(), err)
	}
	return nil
}

func (a *App) printEntry(verb string, e *models.ChainEntry) {
	fmt.Fprintf(a.out, "%s at %s (entry %d, epoch %d, hash %s)\n", verb,
		e.CheckInTime.In(a.loc).Format(time.RFC3339), e.ID, e.Epoch, hex.EncodeToString(e.CurrentHash)[:16])
}

func (a *App) checkIn(ctx context.Context) error {
	e, err := a.attendance.CheckIn(ctx)
	if err != nil {
		return err
	}
	a.printEntry("Checked in", e)
	return nil
}

func (a *App) checkOut(ctx context.Context) error {
	e, err := a.attendance.CheckOut(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Checked out at %s after %s (entry %d)\n",
		e.CheckOutTime.In(a.loc).Format(time.RFC3339), e.CheckOutTime.Sub(e.CheckInTime).Round(time.Minute), e.ID)
	return nil
}

func (a *App) toggle(ctx context.Context) error {
	_, e, err := a.attendance.Toggle(ctx)
	if err != nil {
		return err
	}
	if e.Open() {
		a.printEntry("Checked in", e)
	} else {
		fmt.Fprintf(a.out, "Checked out at %s (entry %d)\n", e.CheckOutTime.In(a.loc).Format(time.RFC3339), e.ID)
	}
	return nil
}

func (a *App) status(ctx context.Context) error {
	st, err := a.attendance.Status(ctx)
	if err != nil {
		return err
	}
	if st.CheckedIn {
		fmt.Fprintf(a.out, "Checked in since %s\n", st.Since.In(a.loc).Format(time.RFC3339))
	} else {
		fmt.Fprintln(a.out, "Not checked in")
	}
	if st.EntryID != 0 {
		fmt.Fprintf(a.out, "Epoch %d, tail %s\n", st.Epoch, hex.EncodeToString(st.TailHash))
	}
	return nil
}

func (a *App) trail(ctx context.Context) error {
	p, err := a.attendance.RecordTrailPoint(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Trail point %d at %.6f, %.6f\n", p.ID, p.Latitude, p.Longitude)
	return nil
}

func (a *App) prune(ctx context.Context) error {
	n, err := a.attendance.PruneTrail(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %d trail point(s)\n", n)
	return nil
}

func (a *App) validate(ctx context.Context, args []string) error {
	fs := newFlagSet("validate")
	epoch := fs.Int64("epoch", 0, "epoch number; 0 means current")
	if err := parse(fs, args); err != nil {
		return err
	}

	v, err := a.appender.VerifyEpoch(ctx, *epoch)
	if err != nil {
		return err
	}
	if !v.Valid {
		fmt.Fprintf(a.out, "Epoch %d: BROKEN after %d entries checked\n", v.Epoch, v.Entries)
		return v.Broken
	}
	fmt.Fprintf(a.out, "Epoch %d: valid, %d entries, tail %s\n", v.Epoch, v.Entries, hex.EncodeToString(v.TailHash))
	return nil
}

func (a *App) today() string {
	return a.clock.Now().In(a.loc).Format(models.DateLayout)
}

func (a *App) report(ctx context.Context, args []string) error {
	fs := newFlagSet("report")
	date := fs.String("date", a.today(), "day to report, YYYY-MM-DD")
	printOnly := fs.Bool("print", false, "print the report as JSON instead of sealing it")
	if err := parse(fs, args); err != nil {
		return err
	}

	r, err := a.builder.Build(ctx, *date)
	if err != nil {
		return err
	}
	if *printOnly {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	pw, err := a.prompt.Password(ctx, "Archive password: ", true)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	set, err := a.writer.Seal(ctx, r, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sealed %s: %s\n", r.Date, set.Dir)
	fmt.Fprintf(a.out, "  duration %s, chain valid %v, incomplete %v\n", r.WorkDuration, r.ChainValid, r.Incomplete)
	fmt.Fprintf(a.out, "  sealed sha256 %s\n", set.SealedHash)
	return nil
}

func oneArg(name string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: %s takes exactly one file", ErrUsage, name)
	}
	return args[0], nil
}

func (a *App) check(ctx context.Context, args []string) error {
	path, err := oneArg("check", args)
	if err != nil {
		return err
	}
	res, err := a.auditor.CheckIntegrity(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s\n", path, res.Status)
	if res.FileHash != "" {
		fmt.Fprintf(a.out, "  sha256 %s, %d bytes, opened %d time(s)\n", res.FileHash, res.SizeBytes, res.OpenCount)
	}
	if res.Problem != "" {
		fmt.Fprintf(a.out, "  %s\n", res.Problem)
	}
	return nil
}

func (a *App) open(ctx context.Context, args []string) error {
	fs := newFlagSet("open")
	yes := fs.Bool("yes", false, "confirm that the seal will be broken")
	if err := parse(fs, args); err != nil {
		return err
	}
	path, err := oneArg("open", fs.Args())
	if err != nil {
		return err
	}

	if !*yes {
		res, err := a.auditor.Open(ctx, path, nil, false)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, res.WarningText)
		return nil
	}

	pw, err := a.prompt.Password(ctx, "Archive password: ", false)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	res, err := a.auditor.Open(ctx, path, pw, true)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.WarningText)
	fmt.Fprintf(a.out, "Opened %d time(s)\n", res.Integrity.OpenCount)
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Report)
}

func (a *App) compare(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: compare takes two files", ErrUsage)
	}
	c, err := a.auditor.Compare(args[0], args[1])
	if err != nil {
		return err
	}
	if c.Identical {
		fmt.Fprintf(a.out, "Identical (%s)\n", c.Hash1)
		return nil
	}
	fmt.Fprintf(a.out, "Different\n  %s  %s\n  %s  %s\n", c.Hash1, args[0], c.Hash2, args[1])
	return nil
}

func (a *App) readable(args []string) error {
	path, err := oneArg("readable", args)
	if err != nil {
		return err
	}
	r, err := a.auditor.VerifyReadableCopy(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Readable copy of %s for %s, today hash %s\n", r.Date, r.WorkerID, r.TodayHash)
	return nil
}

func (a *App) lastMonth() string {
	now := a.clock.Now().In(a.loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, a.loc)
	prev := first.AddDate(0, -1, 0)
	return monthly.MonthLabel(prev.Year(), prev.Month())
}

func (a *App) monthFlag(name string, args []string) (string, error) {
	fs := newFlagSet(name)
	month := fs.String("month", a.lastMonth(), "month, YYYY-MM")
	if err := parse(fs, args); err != nil {
		return "", err
	}
	return *month, nil
}

func (a *App) verifyMonth(ctx context.Context, args []string) error {
	month, err := a.monthFlag("verify-month", args)
	if err != nil {
		return err
	}
	res, err := a.auditor.VerifyMonth(ctx, a.config.ReportsDir, month)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d day(s), all sealed %v\n", month, res.Total, res.AllSealed)
	for _, d := range res.Days {
		line := fmt.Sprintf("  %s  %s", d.Date, d.Sealed.Status)
		if d.Problem != "" {
			line += "  " + d.Problem
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func (a *App) printMonthly(path string, s *models.MonthlySummary) {
	fmt.Fprintf(a.out, "Exported %s\n", path)
	fmt.Fprintf(a.out, "  %d day(s), %.2fh total, %.2fh/day, %d incomplete, all sealed %v\n",
		s.TotalDays, s.TotalHours, s.AverageHoursPerDay, s.IncompleteDays, s.AllSealed)
	if s.Boundary != nil {
		fmt.Fprintf(a.out, "  epoch %d closed, tail %s\n", s.Boundary.ClosedEpoch, s.Boundary.ClosingTailHash)
	}
}

func (a *App) exportMonth(ctx context.Context, args []string) error {
	month, err := a.monthFlag("month", args)
	if err != nil {
		return err
	}
	path, s, err := a.aggregator.Export(ctx, month)
	if err != nil {
		return err
	}
	a.printMonthly(path, s)
	return nil
}

func (a *App) closeMonth(ctx context.Context, args []string) error {
	month, err := a.monthFlag("close-month", args)
	if err != nil {
		return err
	}
	path, s, err := a.aggregator.CloseMonth(ctx, month, a.clock.Now())
	if err != nil {
		return err
	}
	a.printMonthly(path, s)
	return nil
}
