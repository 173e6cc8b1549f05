package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/archive"
	"github.com/dmitrijs2005/workwatch/internal/chain"
	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/config"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/keystore"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type testApp struct {
	*App
	buf    *bytes.Buffer
	clock  *sensors.FixedClock
	prompt *switchPrompt
}

type switchPrompt struct {
	pw []byte
}

func (p *switchPrompt) Password(ctx context.Context, _ string, _ bool) ([]byte, error) {
	return append([]byte(nil), p.pw...), nil
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()

	var c config.Config
	c.LoadDefaults()
	c.DataDir = dir
	c.DBDSN = filepath.Join(dir, "ww.db")
	c.ReportsDir = filepath.Join(dir, "reports")
	c.ExportDir = filepath.Join(dir, "exports")
	c.KeysDir = filepath.Join(dir, "keys")
	c.WorkerID = "w1"
	c.TimeZone = "UTC"
	c.Latitude, c.Longitude = 41.0, 29.0
	c.KDFTime, c.KDFMemoryKiB, c.KDFThreads = 1, cryptox.MinKDFMemoryKiB, 1
	require.NoError(t, c.Validate())

	buf := &bytes.Buffer{}
	clock := &sensors.FixedClock{T: t0}
	prompt := &switchPrompt{pw: []byte("pw1")}
	app, err := NewApp(context.Background(), &c, logging.NewNop(), Deps{
		Keys:   keystore.NewMemoryCustodian(),
		Clock:  clock,
		Prompt: prompt,
		Out:    buf,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return &testApp{App: app, buf: buf, clock: clock, prompt: prompt}
}

func (a *testApp) run(t *testing.T, cmd string, args ...string) string {
	t.Helper()
	a.buf.Reset()
	require.NoError(t, a.Run(context.Background(), cmd, args))
	return a.buf.String()
}

func TestApp_AttendanceFlow(t *testing.T) {
	a := newTestApp(t)

	assert.Contains(t, a.run(t, "status"), "Not checked in")
	assert.Contains(t, a.run(t, "checkin"), "Checked in at 2025-03-10T08:00:00Z")
	assert.Contains(t, a.run(t, "status"), "Checked in since 2025-03-10T08:00:00Z")

	a.clock.Advance(10 * time.Minute)
	assert.Contains(t, a.run(t, "trail"), "Trail point 1")

	a.clock.Advance(50 * time.Minute)
	assert.Contains(t, a.run(t, "checkout"), "after 1h0m0s")

	a.clock.Advance(time.Hour)
	assert.Contains(t, a.run(t, "toggle"), "Checked in")
	a.clock.Advance(time.Hour)
	assert.Contains(t, a.run(t, "toggle"), "Checked out")

	assert.Contains(t, a.run(t, "validate"), "Epoch 1: valid, 2 entries")
}

func TestApp_CheckOutWithoutCheckIn(t *testing.T) {
	a := newTestApp(t)
	err := a.Run(context.Background(), "checkout", nil)
	assert.ErrorIs(t, err, common.ErrNoOpenSegment)
	assert.Equal(t, 1, ExitCode(err))
}

func TestApp_ReportSealAndAudit(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	a.run(t, "checkin")
	a.clock.Advance(8 * time.Hour)
	a.run(t, "checkout")

	out := a.run(t, "report", "-date", "2025-03-10")
	assert.Contains(t, out, "Sealed 2025-03-10")
	assert.Contains(t, out, "duration 8h 0m")

	set := archive.SetFor(a.config.ReportsDir, "2025-03-10")
	assert.Contains(t, a.run(t, "check", set.Sealed), "sealed")
	assert.Contains(t, a.run(t, "check", set.Readable), "readable_copy")
	assert.Contains(t, a.run(t, "readable", set.Readable), "Readable copy of 2025-03-10")
	assert.Contains(t, a.run(t, "compare", set.Sealed, set.Sealed), "Identical")
	assert.Contains(t, a.run(t, "compare", set.Sealed, set.Readable), "Different")

	assert.Contains(t, a.run(t, "open", set.Sealed), "irreversible")
	assert.Contains(t, a.run(t, "check", set.Sealed), "opened 0 time(s)")

	a.prompt.pw = []byte("pw2")
	err := a.Run(ctx, "open", []string{"-yes", set.Sealed})
	assert.ErrorIs(t, err, common.ErrWrongPassword)
	assert.Equal(t, 3, ExitCode(err))

	a.prompt.pw = []byte("pw1")
	out = a.run(t, "open", "-yes", set.Sealed)
	assert.Contains(t, out, "Opened 1 time(s)")
	assert.Contains(t, out, `"today_hash"`)

	err = a.Run(ctx, "report", []string{"-date", "2025-03-10"})
	assert.ErrorIs(t, err, common.ErrArchiveExists)
}

func TestApp_ReportPrint(t *testing.T) {
	a := newTestApp(t)
	a.run(t, "checkin")

	out := a.run(t, "report", "-print")
	assert.Contains(t, out, `"incomplete": true`)

	_, err := os.Stat(archive.SetFor(a.config.ReportsDir, "2025-03-10").Sealed)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApp_ReportEmptyDay(t *testing.T) {
	a := newTestApp(t)
	err := a.Run(context.Background(), "report", []string{"-date", "2025-03-11"})
	assert.ErrorIs(t, err, common.ErrNoData)
}

func TestApp_MonthLifecycle(t *testing.T) {
	a := newTestApp(t)
	for i := 0; i < 2; i++ {
		a.run(t, "checkin")
		a.clock.Advance(8 * time.Hour)
		a.run(t, "checkout")
		a.run(t, "report")
		a.clock.Advance(16 * time.Hour)
	}

	assert.Contains(t, a.run(t, "verify-month", "-month", "2025-03"), "2 day(s), all sealed true")
	assert.Contains(t, a.run(t, "month", "-month", "2025-03"), "16.00h total")

	a.clock.T = time.Date(2025, 4, 1, 0, 5, 0, 0, time.UTC)
	out := a.run(t, "close-month")
	assert.Contains(t, out, "epoch 1 closed")

	ctx := context.Background()
	st, err := a.appender.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Epoch)

	a.run(t, "checkin")
	st, err = a.appender.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Epoch)

	_, err = os.Stat(filepath.Join(a.config.ExportDir, "WORKWATCH_MONTHLY_2025-03.zip"))
	assert.NoError(t, err)
}

func TestApp_UsageErrors(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	err := a.Run(ctx, "frobnicate", nil)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Equal(t, 2, ExitCode(err))

	assert.ErrorIs(t, a.Run(ctx, "check", nil), ErrUsage)
	assert.ErrorIs(t, a.Run(ctx, "compare", []string{"one"}), ErrUsage)
	assert.ErrorIs(t, a.Run(ctx, "validate", []string{"-epoch", "x"}), ErrUsage)

	a.buf.Reset()
	require.NoError(t, a.Run(ctx, "help", nil))
	assert.Contains(t, a.buf.String(), "Available commands")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 4, ExitCode(common.ErrCorrupted))
	assert.Equal(t, 5, ExitCode(&chain.BrokenLinkError{}))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}
