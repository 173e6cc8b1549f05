package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/filex"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

// Status classifies an artifact file.
type Status string

const (
	StatusSealed       Status = "sealed"
	StatusReadableCopy Status = "readable_copy"
	StatusMissing      Status = "missing"
	StatusCorrupted    Status = "corrupted"
	StatusUnknown      Status = "unknown"
)

// IntegrityResult is the outcome of CheckIntegrity. FileHash, SizeBytes and
// OpenCount are only meaningful for StatusSealed.
type IntegrityResult struct {
	Path      string `json:"path"`
	Status    Status `json:"status"`
	FileHash  string `json:"file_hash,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	OpenCount int    `json:"open_count"`
	Problem   string `json:"problem,omitempty"`
}

// Opened reports whether a sealed artifact has a recorded opening.
func (r *IntegrityResult) Opened() bool {
	return r.OpenCount > 0
}

// Ledger is where openings of sealed archives are recorded.
// openings.Repository implements it.
type Ledger interface {
	Record(ctx context.Context, o *models.ArchiveOpening) (int64, error)
	ListByArchive(ctx context.Context, archiveHash string) ([]models.ArchiveOpening, error)
}

// Auditor inspects artifacts and runs the two-phase open workflow.
type Auditor struct {
	ledger Ledger
	log    logging.Logger
	now    func() time.Time
}

func NewAuditor(ledger Ledger, log logging.Logger) *Auditor {
	return &Auditor{ledger: ledger, log: log, now: time.Now}
}

func readArtifact(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", common.ErrMissingArtifact, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrPersistence, path, err)
	}
	return b, nil
}

func hashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// CheckIntegrity classifies the file at path without decrypting it. A file
// named like a sealed original, or carrying the sealed magic, is either
// sealed or corrupted; it is never unknown.
func (a *Auditor) CheckIntegrity(ctx context.Context, path string) (*IntegrityResult, error) {
	res := &IntegrityResult{Path: path}

	b, err := readArtifact(path)
	if errors.Is(err, common.ErrMissingArtifact) {
		res.Status = StatusMissing
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	switch {
	case IsSealedName(path) || bytes.HasPrefix(b, []byte(Magic)):
		if len(b) == 0 {
			res.Status, res.Problem = StatusCorrupted, "sealed original is empty"
			return res, nil
		}
		if _, _, _, err := Parse(b); err != nil {
			res.Status, res.Problem = StatusCorrupted, err.Error()
			return res, nil
		}
		res.Status = StatusSealed
		res.FileHash = hashOf(b)
		res.SizeBytes = int64(len(b))
		if a.ledger != nil {
			list, err := a.ledger.ListByArchive(ctx, res.FileHash)
			if err != nil {
				return nil, fmt.Errorf("%w: openings: %w", common.ErrPersistence, err)
			}
			res.OpenCount = len(list)
		}
	case bytes.HasPrefix(b, []byte(Watermark)):
		res.Status = StatusReadableCopy
		res.OpenCount = models.ReadableCopyOpenCount
	default:
		res.Status = StatusUnknown
	}
	return res, nil
}

// ConfirmationWarning is returned by Open when confirm is false.
const ConfirmationWarning = "Opening a sealed original is irreversible. The opening is recorded " +
	"permanently and the archive will be treated as tampered-with from then on, even though its " +
	"content is unchanged. Use the readable copy to view the report. Repeat with confirmation to proceed."

// OpenedWarning accompanies every successful Open.
const OpenedWarning = "The seal is broken. This archive now has a recorded opening and is no longer " +
	"pristine evidence. Produce a new sealed archive if a pristine original is required."

// OpenResult is the outcome of Open. With NeedsConfirmation set nothing
// was read or recorded; otherwise Report is the decrypted report exactly as
// sealed and Integrity is the archive's audit state after this opening.
type OpenResult struct {
	NeedsConfirmation bool
	WarningText       string
	Report            *models.DailyReport
	Integrity         models.Integrity
	ArchiveHash       string
}

// Open decrypts a sealed archive. Without confirm it only returns the
// warning text. With confirm, tampered bytes yield common.ErrCorrupted and
// an intact archive with the wrong password yields common.ErrWrongPassword;
// neither records an opening.
func (a *Auditor) Open(ctx context.Context, path string, password []byte, confirm bool) (*OpenResult, error) {
	if !confirm {
		if ok, err := filex.Exists(path); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
		} else if !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrMissingArtifact, path)
		}
		return &OpenResult{NeedsConfirmation: true, WarningText: ConfirmationWarning}, nil
	}

	if a.ledger == nil {
		return nil, fmt.Errorf("%w: no openings ledger", common.ErrPersistence)
	}
	b, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	r, err := Unseal(b, password)
	if err != nil {
		if errors.Is(err, common.ErrWrongPassword) {
			a.log.Warn(ctx, "sealed archive open rejected", "path", path, "reason", "wrong password")
		}
		return nil, err
	}

	h := hashOf(b)
	at := models.NormalizeTime(a.now())
	if _, err := a.ledger.Record(ctx, &models.ArchiveOpening{
		ArchiveHash: h, Path: path, OpenedAt: at, Action: models.AuditActionOpened,
	}); err != nil {
		return nil, fmt.Errorf("%w: record opening: %w", common.ErrPersistence, err)
	}
	list, err := a.ledger.ListByArchive(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("%w: openings: %w", common.ErrPersistence, err)
	}

	history := make([]models.AuditEvent, 0, len(list))
	for _, o := range list {
		history = append(history, models.AuditEvent{Timestamp: o.OpenedAt, Action: o.Action})
	}

	a.log.Warn(ctx, "sealed archive opened", "path", path, "sha256", h, "open_count", len(list))
	return &OpenResult{
		WarningText: OpenedWarning,
		Report:      r,
		Integrity: models.Integrity{
			Sealed:      true,
			Tampered:    true,
			OpenCount:   len(list),
			OpenHistory: history,
		},
		ArchiveHash: h,
	}, nil
}

// Comparison is the outcome of Compare.
type Comparison struct {
	Identical bool
	Hash1     string
	Hash2     string
}

func hashFile(path string) (string, error) {
	h, _, err := filex.HashFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", common.ErrMissingArtifact, path)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return h, nil
}

// Compare reports whether two files are byte-identical by content hash.
// Files are hashed as streams.
func (a *Auditor) Compare(pathA, pathB string) (*Comparison, error) {
	ha, err := hashFile(pathA)
	if err != nil {
		return nil, err
	}
	hb, err := hashFile(pathB)
	if err != nil {
		return nil, err
	}
	return &Comparison{Identical: ha == hb, Hash1: ha, Hash2: hb}, nil
}

// VerifyReadableCopy checks the watermark and copy markers of a readable
// copy and returns its report.
func (a *Auditor) VerifyReadableCopy(path string) (*models.DailyReport, error) {
	b, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	return ParseReadable(b)
}

// ReadVerification parses a verification artifact.
func (a *Auditor) ReadVerification(path string) (*Verification, error) {
	b, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	return ParseVerification(b)
}
