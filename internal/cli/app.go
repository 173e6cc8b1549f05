package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/archive"
	"github.com/dmitrijs2005/workwatch/internal/chain"
	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/config"
	"github.com/dmitrijs2005/workwatch/internal/keystore"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/dmitrijs2005/workwatch/internal/monthly"
	"github.com/dmitrijs2005/workwatch/internal/report"
	"github.com/dmitrijs2005/workwatch/internal/sensors"
	"github.com/dmitrijs2005/workwatch/internal/services"
	"github.com/dmitrijs2005/workwatch/internal/storage"
)

// Deps are the collaborators NewApp does not build from config. Zero
// fields get the production implementation.
type Deps struct {
	Keys     keystore.Custodian
	Location sensors.LocationProvider
	Cell     sensors.CellNetwork
	Clock    sensors.Clock
	Prompt   sensors.PasswordPrompt
	Out      io.Writer
}

type App struct {
	config     *config.Config
	logger     logging.Logger
	loc        *time.Location
	store      *storage.Store
	appender   *chain.Appender
	attendance services.AttendanceService
	builder    *report.Builder
	writer     *archive.Writer
	auditor    *archive.Auditor
	aggregator *monthly.Aggregator
	clock      sensors.Clock
	prompt     sensors.PasswordPrompt
	out        io.Writer
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger, deps Deps) (*App, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	if c.DBDriver == "sqlite" {
		if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("data dir: %w", err)
		}
	}
	store, err := storage.Open(ctx, c.DBDriver, c.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := store.RunMigrations(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	keys := deps.Keys
	if keys == nil {
		fc, err := keystore.NewFileCustodian(c.KeysDir, []byte(c.KeySecret))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("keystore: %w", err)
		}
		keys = fc
	}

	clock := deps.Clock
	if clock == nil {
		clock = sensors.SystemClock{}
	}
	location := deps.Location
	if location == nil {
		location = sensors.StaticLocation{
			Coordinates: models.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude},
			Clock:       clock,
		}
	}
	prompt := deps.Prompt
	if prompt == nil {
		prompt = NewTermPrompt(os.Stdin, os.Stderr)
	}
	out := deps.Out
	if out == nil {
		out = os.Stdout
	}

	device := c.Device()
	appender := chain.NewAppender(store, keys, chain.Config{
		WorkerID: c.WorkerID, KeyAlias: c.KeyAlias, KeyVersion: c.KeyVersion, Device: device, Location: loc,
	}, logger)
	attendance := services.NewAttendanceService(appender, store.Trail(store.DB), location, deps.Cell, clock,
		services.Options{WorkerID: c.WorkerID, CellTimeout: c.CellTimeout, TrailRetention: c.TrailRetention}, logger)
	auditor := archive.NewAuditor(store.Openings(store.DB), logger)

	return &App{
		config:     c,
		logger:     logger,
		loc:        loc,
		store:      store,
		appender:   appender,
		attendance: attendance,
		builder:    report.NewBuilder(store, c.WorkerID, loc, device, appender.DecryptPayload, logger),
		writer:     archive.NewWriter(c.ReportsDir, c.KDFParams(), logger),
		auditor:    auditor,
		aggregator: monthly.NewAggregator(auditor, appender, c.ReportsDir, c.ExportDir, c.WorkerID, logger),
		clock:      clock,
		prompt:     prompt,
		out:        out,
	}, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

// Run executes one command.
func (a *App) Run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "checkin":
		return a.checkIn(ctx)
	case "checkout":
		return a.checkOut(ctx)
	case "toggle":
		return a.toggle(ctx)
	case "status":
		return a.status(ctx)
	case "trail":
		return a.trail(ctx)
	case "prune":
		return a.prune(ctx)
	case "validate":
		return a.validate(ctx, args)
	case "report":
		return a.report(ctx, args)
	case "check":
		return a.check(ctx, args)
	case "open":
		return a.open(ctx, args)
	case "compare":
		return a.compare(args)
	case "readable":
		return a.readable(args)
	case "verify-month":
		return a.verifyMonth(ctx, args)
	case "month":
		return a.exportMonth(ctx, args)
	case "close-month":
		return a.closeMonth(ctx, args)
	case "", "help":
		a.help()
		return nil
	default:
		a.help()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

// ErrUsage marks bad command-line input.
var ErrUsage = errors.New("usage error")

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	case errors.Is(err, common.ErrWrongPassword):
		return 3
	case errors.Is(err, common.ErrCorrupted):
		return 4
	case errors.Is(err, common.ErrChainBroken):
		return 5
	default:
		return 1
	}
}

func (a *App) help() {
	fmt.Fprintln(a.out, "Available commands: checkin, checkout, toggle, status, trail, prune, validate,")
	fmt.Fprintln(a.out, "  report, check, open, compare, readable, verify-month, month, close-month")
}
