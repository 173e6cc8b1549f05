package chain

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollover_NextEntryStartsFromGenesis(t *testing.T) {
	a, s, _ := newAppender(t)
	ctx := context.Background()
	shift(t, a, t0, t0.Add(8*time.Hour))
	shift(t, a, t0.Add(24*time.Hour), t0.Add(32*time.Hour))
	tail := epochEntries(t, s, 1)[1].CurrentHash

	b, err := a.Rollover(ctx, "2025-01", t0.Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.ClosedEpoch)
	assert.Equal(t, int64(2), b.NextEpoch)
	assert.Equal(t, 2, b.EntryCount)
	assert.True(t, b.ChainValid)
	assert.Equal(t, hex.EncodeToString(tail), b.ClosingTailHash)

	e, err := a.CheckIn(ctx, CheckIn{At: t0.Add(31 * 24 * time.Hour), Coordinates: here})
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Epoch)
	assert.Equal(t, cryptox.Genesis(), e.PreviousHash)

	v, err := a.VerifyEpoch(ctx, 1)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, 2, v.Entries)

	v, err = a.VerifyEpoch(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Epoch)
	assert.Equal(t, 1, v.Entries)
}

func TestRollover_IdempotentByLabel(t *testing.T) {
	a, _, _ := newAppender(t)
	ctx := context.Background()
	shift(t, a, t0, t0.Add(time.Hour))

	first, err := a.Rollover(ctx, "2025-01", t0.Add(48*time.Hour))
	require.NoError(t, err)
	second, err := a.Rollover(ctx, "2025-01", t0.Add(72*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.ClosedEpoch, second.ClosedEpoch)
	assert.True(t, first.ClosedAt.Equal(second.ClosedAt))
}

func TestRollover_EmptyEpochRecordsGenesisTail(t *testing.T) {
	a, _, _ := newAppender(t)
	b, err := a.Rollover(context.Background(), "2025-01", t0)
	require.NoError(t, err)
	assert.Equal(t, 0, b.EntryCount)
	assert.True(t, b.ChainValid)
	assert.Equal(t, hex.EncodeToString(cryptox.Genesis()), b.ClosingTailHash)
}

func TestRollover_RecordsBrokenChain(t *testing.T) {
	a, s, _ := newAppender(t)
	ctx := context.Background()
	shift(t, a, t0, t0.Add(time.Hour))
	shift(t, a, t0.Add(24*time.Hour), t0.Add(25*time.Hour))

	_, err := s.DB.Exec(`update chain_entries set encrypted_payload = x'00' where id = 1`)
	require.NoError(t, err)

	v, err := a.VerifyEpoch(ctx, 1)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	require.NotNil(t, v.Broken)
	assert.Equal(t, 0, v.Broken.Index)

	b, err := a.Rollover(ctx, "2025-01", t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.False(t, b.ChainValid)
}

func TestRollover_RefusesEntriesAfterMonth(t *testing.T) {
	a, s, _ := newAppender(t)
	ctx := context.Background()
	mar30 := time.Date(2025, 3, 30, 9, 0, 0, 0, time.UTC)
	apr2 := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	shift(t, a, mar30, mar30.Add(8*time.Hour))
	shift(t, a, apr2, apr2.Add(8*time.Hour))

	_, err := a.Rollover(ctx, "2025-03", apr2.Add(24*time.Hour))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = a.Boundary(ctx, "2025-03")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	e, err := a.CheckIn(ctx, CheckIn{At: apr2.Add(48 * time.Hour), Coordinates: here})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Epoch)
	assert.Len(t, epochEntries(t, s, 1), 3)

	// a free-form label is not tied to a month
	b, err := a.Rollover(ctx, "manual", apr2.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, b.EntryCount)
}

func TestRollover_MonthCutInConfiguredZone(t *testing.T) {
	a, _, _ := newAppender(t)
	a.cfg.Location = time.FixedZone("UTC+3", 3*3600)
	ctx := context.Background()
	// 2025-03-31 22:00 UTC is already April in UTC+3
	late := time.Date(2025, 3, 31, 22, 0, 0, 0, time.UTC)
	shift(t, a, late, late.Add(time.Hour))

	_, err := a.Rollover(ctx, "2025-03", late.Add(24*time.Hour))
	assert.ErrorIs(t, err, common.ErrValidation)
	b, err := a.Rollover(ctx, "2025-04", late.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, b.EntryCount)
}

func TestRollover_RequiresLabel(t *testing.T) {
	a, _, _ := newAppender(t)
	_, err := a.Rollover(context.Background(), "", t0)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestBoundary(t *testing.T) {
	a, _, _ := newAppender(t)
	ctx := context.Background()

	_, err := a.Boundary(ctx, "2025-01")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	shift(t, a, t0, t0.Add(8*time.Hour))
	want, err := a.Rollover(ctx, "2025-01", t0.Add(30*24*time.Hour))
	require.NoError(t, err)

	got, err := a.Boundary(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, want.ClosingTailHash, got.ClosingTailHash)
	assert.Equal(t, want.EntryCount, got.EntryCount)
	assert.True(t, want.ClosedAt.Equal(got.ClosedAt))
}
