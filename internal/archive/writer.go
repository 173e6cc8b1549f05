package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/filex"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// ArtifactSet lists the files written for one day.
type ArtifactSet struct {
	Date         string
	Dir          string
	Sealed       string
	Readable     string
	Summary      string
	Verification string
	SealedHash   string
}

// SetFor returns the artifact paths of date under root.
func SetFor(root, date string) ArtifactSet {
	dir := filepath.Join(root, date)
	return ArtifactSet{
		Date:         date,
		Dir:          dir,
		Sealed:       filepath.Join(dir, SealedName(date)),
		Readable:     filepath.Join(dir, ReadableName(date)),
		Summary:      filepath.Join(dir, SummaryName(date)),
		Verification: filepath.Join(dir, VerificationName(date)),
	}
}

// Writer seals daily reports into <root>/<date>/.
type Writer struct {
	root string
	kdf  cryptox.KDFParams
	log  logging.Logger
}

func NewWriter(root string, kdf cryptox.KDFParams, log logging.Logger) *Writer {
	return &Writer{root: root, kdf: kdf, log: log}
}

// Seal writes all four artifacts for r. Every file goes through a temp
// file and rename, and the sealed original is renamed into place last, so
// an interrupted run never leaves a sealed file behind. An existing sealed
// original is never overwritten: an opened archive has to be replaced by a
// new one written elsewhere.
func (w *Writer) Seal(ctx context.Context, r *models.DailyReport, password []byte) (*ArtifactSet, error) {
	if !r.Integrity.Sealed || r.Integrity.OpenCount != 0 {
		return nil, fmt.Errorf("%w: report integrity is not fresh", common.ErrValidation)
	}
	if _, err := time.Parse(models.DateLayout, r.Date); err != nil {
		return nil, fmt.Errorf("%w: report date %q", common.ErrValidation, r.Date)
	}
	set := SetFor(w.root, r.Date)

	exists, err := filex.Exists(set.Sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", common.ErrArchiveExists, set.Sealed)
	}

	sealed, err := Seal(r, password, w.kdf)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(sealed)
	set.SealedHash = hex.EncodeToString(sum[:])

	readable, err := RenderReadable(r)
	if err != nil {
		return nil, err
	}
	verification, err := RenderVerification(r, set.SealedHash)
	if err != nil {
		return nil, err
	}

	if _, err := filex.EnsureDir(set.Dir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	files := []struct {
		path string
		data []byte
	}{
		{set.Readable, readable},
		{set.Summary, RenderSummary(r)},
		{set.Verification, verification},
		{set.Sealed, sealed},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		write := filex.WriteFileAtomic
		if f.path == set.Sealed {
			write = filex.WriteFileExclusive
		}
		err := write(f.path, f.data, filePerm)
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrArchiveExists, f.path)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
		}
	}

	w.log.Info(ctx, "daily archive sealed", "date", r.Date, "dir", set.Dir, "sha256", set.SealedHash)
	return &set, nil
}
