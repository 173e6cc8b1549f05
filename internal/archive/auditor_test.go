package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sealed(t *testing.T, date string) (*ArtifactSet, *models.DailyReport, string) {
	t.Helper()
	w, root := newWriter(t)
	r := sampleReport(date)
	set, err := w.Seal(context.Background(), r, []byte("pw1"))
	require.NoError(t, err)
	return set, r, root
}

func newAuditor(t *testing.T) *Auditor {
	t.Helper()
	a := NewAuditor(newLedger(t), logging.NewNop())
	a.now = func() time.Time { return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC) }
	return a
}

func TestCheckIntegrity_Classifies(t *testing.T) {
	set, _, root := sealed(t, "2025-03-10")
	a := newAuditor(t)
	ctx := context.Background()

	res, err := a.CheckIntegrity(ctx, set.Sealed)
	require.NoError(t, err)
	assert.Equal(t, StatusSealed, res.Status)
	assert.Equal(t, set.SealedHash, res.FileHash)
	fi, _ := os.Stat(set.Sealed)
	assert.Equal(t, fi.Size(), res.SizeBytes)
	assert.Equal(t, 0, res.OpenCount)

	res, err = a.CheckIntegrity(ctx, set.Readable)
	require.NoError(t, err)
	assert.Equal(t, StatusReadableCopy, res.Status)

	res, err = a.CheckIntegrity(ctx, filepath.Join(root, "nope.wwseal"))
	require.NoError(t, err)
	assert.Equal(t, StatusMissing, res.Status)

	res, err = a.CheckIntegrity(ctx, set.Summary)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, res.Status)
}

func TestCheckIntegrity_FlippedByteIsCorrupted(t *testing.T) {
	set, _, _ := sealed(t, "2025-03-10")
	a := newAuditor(t)
	ctx := context.Background()
	orig := mustRead(t, set.Sealed)

	for i := range orig {
		b := bytes.Clone(orig)
		b[i] ^= 0x80
		require.NoError(t, os.WriteFile(set.Sealed, b, 0o600))

		res, err := a.CheckIntegrity(ctx, set.Sealed)
		require.NoError(t, err)
		require.Equal(t, StatusCorrupted, res.Status, "byte %d", i)

		_, err = a.Open(ctx, set.Sealed, []byte("pw1"), true)
		require.ErrorIs(t, err, common.ErrCorrupted, "byte %d", i)
	}
}

func TestCheckIntegrity_EmptySealedIsCorrupted(t *testing.T) {
	set, _, _ := sealed(t, "2025-03-10")
	a := newAuditor(t)
	require.NoError(t, os.WriteFile(set.Sealed, nil, 0o600))

	res, err := a.CheckIntegrity(context.Background(), set.Sealed)
	require.NoError(t, err)
	assert.Equal(t, StatusCorrupted, res.Status)
	assert.NotEmpty(t, res.Problem)
}

func TestCheckIntegrity_CopiedSealedKeepsClass(t *testing.T) {
	set, _, root := sealed(t, "2025-03-10")
	a := newAuditor(t)
	ctx := context.Background()

	cp := filepath.Join(root, "evidence.bin")
	require.NoError(t, os.WriteFile(cp, mustRead(t, set.Sealed), 0o600))
	res, err := a.CheckIntegrity(ctx, cp)
	require.NoError(t, err)
	assert.Equal(t, StatusSealed, res.Status)

	renamed := filepath.Join(root, "day.wwseal")
	require.NoError(t, os.WriteFile(renamed, []byte("not a seal"), 0o600))
	res, err = a.CheckIntegrity(ctx, renamed)
	require.NoError(t, err)
	assert.Equal(t, StatusCorrupted, res.Status)
}

func TestOpen_RequiresConfirmation(t *testing.T) {
	set, _, _ := sealed(t, "2025-03-10")
	a := newAuditor(t)
	ctx := context.Background()

	res, err := a.Open(ctx, set.Sealed, []byte("pw1"), false)
	require.NoError(t, err)
	assert.True(t, res.NeedsConfirmation)
	assert.Equal(t, ConfirmationWarning, res.WarningText)
	assert.Nil(t, res.Report)

	check, err := a.CheckIntegrity(ctx, set.Sealed)
	require.NoError(t, err)
	assert.Equal(t, 0, check.OpenCount, "unconfirmed open records nothing")
}

func TestOpen_WrongPasswordIsDistinct(t *testing.T) {
	set, _, _ := sealed(t, "2025-03-10")
	a := newAuditor(t)
	ctx := context.Background()

	_, err := a.Open(ctx, set.Sealed, []byte("pw2"), true)
	assert.ErrorIs(t, err, common.ErrWrongPassword)
	assert.NotErrorIs(t, err, common.ErrCorrupted)

	check, err := a.CheckIntegrity(ctx, set.Sealed)
	require.NoError(t, err)
	assert.Equal(t, StatusSealed, check.Status)
	assert.Equal(t, 0, check.OpenCount)
}

func TestOpen_RecordsEveryOpening(t *testing.T) {
	set, r, _ := sealed(t, "2025-03-10")
	a := newAuditor(t)
	ctx := context.Background()

	res, err := a.Open(ctx, set.Sealed, []byte("pw1"), true)
	require.NoError(t, err)
	if diff := cmp.Diff(r, res.Report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, OpenedWarning, res.WarningText)
	assert.True(t, res.Integrity.Tampered)
	assert.Equal(t, 1, res.Integrity.OpenCount)
	require.Len(t, res.Integrity.OpenHistory, 1)
	assert.Equal(t, models.AuditActionOpened, res.Integrity.OpenHistory[0].Action)

	res, err = a.Open(ctx, set.Sealed, []byte("pw1"), true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Integrity.OpenCount)

	check, err := a.CheckIntegrity(ctx, set.Sealed)
	require.NoError(t, err)
	assert.Equal(t, 2, check.OpenCount)
	assert.True(t, check.Opened())
}

func TestOpen_Missing(t *testing.T) {
	a := newAuditor(t)
	path := filepath.Join(t.TempDir(), "gone.wwseal")

	_, err := a.Open(context.Background(), path, []byte("pw1"), false)
	assert.ErrorIs(t, err, common.ErrMissingArtifact)
	_, err = a.Open(context.Background(), path, []byte("pw1"), true)
	assert.ErrorIs(t, err, common.ErrMissingArtifact)
}

func TestCompare(t *testing.T) {
	set, _, _ := sealed(t, "2025-03-10")
	a := newAuditor(t)

	cp := filepath.Join(t.TempDir(), "copy.wwseal")
	require.NoError(t, os.WriteFile(cp, mustRead(t, set.Sealed), 0o600))

	c, err := a.Compare(set.Sealed, cp)
	require.NoError(t, err)
	assert.True(t, c.Identical)
	assert.Equal(t, c.Hash1, c.Hash2)

	c, err = a.Compare(set.Sealed, set.Readable)
	require.NoError(t, err)
	assert.False(t, c.Identical)
	assert.NotEqual(t, c.Hash1, c.Hash2)

	_, err = a.Compare(set.Sealed, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, common.ErrMissingArtifact)
}

func TestVerifyReadableCopy(t *testing.T) {
	set, r, _ := sealed(t, "2025-03-10")
	a := newAuditor(t)

	cp, err := a.VerifyReadableCopy(set.Readable)
	require.NoError(t, err)
	assert.Equal(t, r.TodayHash, cp.TodayHash)

	b := mustRead(t, set.Readable)
	require.NoError(t, os.WriteFile(set.Readable, b[len(Watermark):], 0o600))
	_, err = a.VerifyReadableCopy(set.Readable)
	assert.ErrorIs(t, err, common.ErrCorrupted)
}

func TestVerifyMonth(t *testing.T) {
	w, root := newWriter(t)
	ctx := context.Background()
	for _, d := range []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-04-01"} {
		_, err := w.Seal(ctx, sampleReport(d), []byte("pw1"))
		require.NoError(t, err)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2025-03-notaday"), 0o700))

	a := newAuditor(t)
	res, err := a.VerifyMonth(ctx, root, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.True(t, res.AllSealed)
	assert.Equal(t, "2025-03-01", res.Days[0].Date)
	for _, d := range res.Days {
		assert.True(t, d.VerificationMatches, d.Date)
		assert.Empty(t, d.Problem, d.Date)
	}

	_, err = a.Open(ctx, SetFor(root, "2025-03-02").Sealed, []byte("pw1"), true)
	require.NoError(t, err)

	res, err = a.VerifyMonth(ctx, root, "2025-03")
	require.NoError(t, err)
	assert.False(t, res.AllSealed)
	assert.Contains(t, res.Days[1].Problem, "opened")
}

func TestVerifyMonth_Empty(t *testing.T) {
	a := newAuditor(t)
	res, err := a.VerifyMonth(context.Background(), t.TempDir(), "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.False(t, res.AllSealed)

	_, err = a.VerifyMonth(context.Background(), t.TempDir(), "March")
	assert.ErrorIs(t, err, common.ErrValidation)
}
