package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

// Artifact file names for a day.
func SealedName(date string) string       { return sealedPrefix + date + sealedExt }
func ReadableName(date string) string     { return "READABLE_COPY_" + date + ".json" }
func SummaryName(date string) string      { return "SUMMARY_" + date + ".txt" }
func VerificationName(date string) string { return "VERIFICATION_" + date + ".txt" }

const (
	sealedPrefix = "SEALED_ORIGINAL_"
	sealedExt    = ".wwseal"
)

// IsSealedName reports whether path is named like a sealed original.
func IsSealedName(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, sealedPrefix) || strings.HasSuffix(base, sealedExt)
}

// Watermark is the banner that opens every readable copy.
const Watermark = `=====================================================
  THIS IS A COPY - THE ORIGINAL REMAINS UNCHANGED
  View only. This file carries no evidentiary weight.
  Only the sealed original is valid as evidence.
=====================================================
`

// RenderReadable produces the watermarked plaintext copy of r. The copy's
// integrity is always sealed=false, openCount=-1.
func RenderReadable(r *models.DailyReport) ([]byte, error) {
	cp := *r
	cp.Integrity = models.Integrity{
		Sealed:      false,
		OpenCount:   models.ReadableCopyOpenCount,
		OpenHistory: []models.AuditEvent{},
	}
	body, err := json.MarshalIndent(&cp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode readable copy: %w", err)
	}

	var b bytes.Buffer
	b.WriteString(Watermark)
	b.WriteByte('\n')
	b.Write(body)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// ParseReadable strips the watermark and decodes the report. A copy without
// the banner, or one that claims to be sealed, is rejected with
// common.ErrCorrupted.
func ParseReadable(b []byte) (*models.DailyReport, error) {
	if !bytes.HasPrefix(b, []byte(Watermark)) {
		return nil, fmt.Errorf("%w: watermark missing", common.ErrCorrupted)
	}
	var r models.DailyReport
	if err := json.Unmarshal(b[len(Watermark):], &r); err != nil {
		return nil, fmt.Errorf("%w: readable copy: %w", common.ErrCorrupted, err)
	}
	if r.Integrity.Sealed || r.Integrity.OpenCount != models.ReadableCopyOpenCount {
		return nil, fmt.Errorf("%w: readable copy integrity marker altered", common.ErrCorrupted)
	}
	return &r, nil
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

// RenderSummary produces the condensed human-readable day summary.
func RenderSummary(r *models.DailyReport) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "WORK DAY SUMMARY %s\n", r.Date)
	b.WriteString("=====================================\n\n")
	fmt.Fprintf(&b, "Worker:        %s\n", r.WorkerID)
	fmt.Fprintf(&b, "Generated:     %s\n\n", stamp(r.GeneratedAt))

	if c := r.CheckIn; c != nil {
		fmt.Fprintf(&b, "Check-in:      %s\n", stamp(c.Timestamp))
		fmt.Fprintf(&b, "  Location:    %.6f, %.6f\n", c.Coordinates.Latitude, c.Coordinates.Longitude)
		fmt.Fprintf(&b, "  Hash:        %s\n", c.HashFragment)
		if c.Cell != nil {
			fmt.Fprintf(&b, "  Cell:        %s\n", c.Cell.String())
		}
	}
	if c := r.CheckOut; c != nil {
		fmt.Fprintf(&b, "Check-out:     %s\n", stamp(c.Timestamp))
		fmt.Fprintf(&b, "  Location:    %.6f, %.6f\n", c.Coordinates.Latitude, c.Coordinates.Longitude)
		fmt.Fprintf(&b, "  Hash:        %s\n", c.HashFragment)
	} else {
		b.WriteString("Check-out:     none (day incomplete)\n")
	}

	fmt.Fprintf(&b, "\nWork duration: %s\n", r.WorkDuration)
	fmt.Fprintf(&b, "Entries:       %d\n", r.EntryCount)
	fmt.Fprintf(&b, "GPS points:    %d\n", len(r.GPSTrail))
	if r.MapLink != "" {
		fmt.Fprintf(&b, "Map:           %s\n", r.MapLink)
	}

	b.WriteString("\nCHAIN\n")
	fmt.Fprintf(&b, "Previous hash: %s\n", short(r.PreviousEpochHash))
	fmt.Fprintf(&b, "Today hash:    %s\n", short(r.TodayHash))
	fmt.Fprintf(&b, "Chain valid:   %s\n", yesNo(r.ChainValid))
	b.WriteString("\nThis summary is informational. The sealed original is the evidentiary record.\n")
	return []byte(b.String())
}

// Verification holds the machine-readable fields of a verification
// artifact.
type Verification struct {
	Date              string
	WorkerID          string
	PreviousEpochHash string
	TodayHash         string
	ChainValid        bool
	SealedHash        string
	CheckInCell       models.CellContext
}

const (
	keyDate       = "Date"
	keyWorker     = "Worker"
	keyPrevious   = "Previous epoch hash"
	keyToday      = "Today hash"
	keyChainValid = "Chain valid"
	keySealedHash = "Sealed file SHA-256"
	keyCell       = "Check-in cell"
)

// notRecordedReason marks a report without a check-in cell context.
const notRecordedReason = "not recorded"

func checkInCell(r *models.DailyReport) models.CellContext {
	if r.CheckIn == nil || r.CheckIn.Cell == nil {
		return models.CellUnavailable(notRecordedReason)
	}
	return *r.CheckIn.Cell
}

// RenderVerification produces the verification artifact: full hashes, the
// check-in cell context, the artifact list and the decision procedure for an
// examiner.
func RenderVerification(r *models.DailyReport, sealedHash string) ([]byte, error) {
	cell, err := json.Marshal(checkInCell(r))
	if err != nil {
		return nil, fmt.Errorf("encode check-in cell: %w", err)
	}

	var b strings.Builder
	b.WriteString("VERIFICATION\n")
	b.WriteString("=====================================\n\n")
	fmt.Fprintf(&b, "%s: %s\n", keyDate, r.Date)
	fmt.Fprintf(&b, "%s: %s\n", keyWorker, r.WorkerID)
	fmt.Fprintf(&b, "%s: %s\n", keyPrevious, r.PreviousEpochHash)
	fmt.Fprintf(&b, "%s: %s\n", keyToday, r.TodayHash)
	fmt.Fprintf(&b, "%s: %s\n", keyChainValid, yesNo(r.ChainValid))
	fmt.Fprintf(&b, "%s: %s\n", keySealedHash, sealedHash)
	fmt.Fprintf(&b, "%s: %s\n", keyCell, cell)

	b.WriteString("\nFILES\n")
	fmt.Fprintf(&b, "  %s  sealed original, evidentiary\n", SealedName(r.Date))
	fmt.Fprintf(&b, "  %s  readable copy, view only\n", ReadableName(r.Date))
	fmt.Fprintf(&b, "  %s  summary, informational\n", SummaryName(r.Date))
	fmt.Fprintf(&b, "  %s  this file\n", VerificationName(r.Date))

	b.WriteString("\nHOW TO VERIFY\n")
	b.WriteString("  1. Sealed original never opened and its SHA-256 matches the value above: VALID.\n")
	b.WriteString("  2. Sealed original was opened: SUSPICIOUS, compare the hashes against the chain.\n")
	b.WriteString("  3. Hashes do not match: the record was ALTERED.\n")
	return []byte(b.String()), nil
}

// ParseVerification reads back the fields written by RenderVerification.
func ParseVerification(b []byte) (*Verification, error) {
	fields := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), ": ")
		if !ok || strings.HasPrefix(k, " ") {
			continue
		}
		fields[k] = strings.TrimSpace(v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: verification: %w", common.ErrCorrupted, err)
	}

	for _, k := range []string{keyDate, keyPrevious, keyToday, keyChainValid, keySealedHash, keyCell} {
		if _, ok := fields[k]; !ok {
			return nil, fmt.Errorf("%w: verification is missing %q", common.ErrCorrupted, k)
		}
	}

	var cell models.CellContext
	if err := json.Unmarshal([]byte(fields[keyCell]), &cell); err != nil {
		return nil, fmt.Errorf("%w: verification check-in cell: %w", common.ErrCorrupted, err)
	}
	if err := cell.Validate(); err != nil {
		return nil, fmt.Errorf("%w: verification check-in cell: %w", common.ErrCorrupted, err)
	}

	return &Verification{
		Date:              fields[keyDate],
		WorkerID:          fields[keyWorker],
		PreviousEpochHash: fields[keyPrevious],
		TodayHash:         fields[keyToday],
		ChainValid:        fields[keyChainValid] == "YES",
		SealedHash:        fields[keySealedHash],
		CheckInCell:       cell,
	}, nil
}
