package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/dmitrijs2005/workwatch/internal/storage"
	"github.com/stretchr/testify/require"
)

var testKDF = cryptox.KDFParams{Time: 1, MemoryKiB: cryptox.MinKDFMemoryKiB, Threads: 1}

func sampleReport(date string) *models.DailyReport {
	day, _ := time.Parse(models.DateLayout, date)
	in := day.Add(8 * time.Hour)
	out := in.Add(8 * time.Hour)
	cell := models.CellUnavailable("airplane mode")
	return &models.DailyReport{
		ID:          "rep-" + date,
		Date:        date,
		WorkerID:    "w1",
		GeneratedAt: out.Add(time.Hour),
		CheckIn: &models.CheckSummary{
			Timestamp:       in,
			Coordinates:     models.Coordinates{Latitude: 41.0, Longitude: 29.0},
			Device:          models.DeviceInfo{Model: "m", OS: "linux", AppVersion: "1.0.0"},
			HashFragment:    "0123456789abcdef",
			Cell:            &cell,
			PayloadVerified: true,
		},
		CheckOut: &models.CheckSummary{
			Timestamp:    out,
			Coordinates:  models.Coordinates{Latitude: 41.0, Longitude: 29.0},
			Device:       models.DeviceInfo{Model: "m", OS: "linux", AppVersion: "1.0.0"},
			HashFragment: "0123456789abcdef",
		},
		WorkDurationSeconds: 8 * 3600,
		WorkDuration:        "8h 0m",
		EntryCount:          1,
		GPSTrail: []models.TrailPoint{
			{Timestamp: in.Add(time.Minute), Latitude: 41.0001, Longitude: 29.0001, Accuracy: 5, Provider: "gps"},
		},
		MapLink:           "https://maps.google.com/?q=41,29",
		PreviousEpochHash: "00000000000000000000000000000000000000000000000000000000000000ff",
		TodayHash:         "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		ChainValid:        true,
		Integrity:         models.Integrity{Sealed: true, OpenHistory: []models.AuditEvent{}},
	}
}

func newLedger(t *testing.T) Ledger {
	t.Helper()
	ctx := context.Background()
	s, err := storage.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.RunMigrations(ctx))
	return s.Openings(s.DB)
}

func newWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	return NewWriter(root, testKDF, logging.NewNop()), root
}
