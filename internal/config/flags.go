package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/workwatch/internal/flagx"
)

// GlobalFlags are the flags parseFlags understands. Each takes a value.
var GlobalFlags = []string{
	"c", "config", "db-driver", "db-dsn", "data-dir", "reports-dir", "export-dir", "keys-dir",
	"worker", "tz", "lat", "lon", "log-level", "log-format", "log-file",
}

// FlagArgs lists GlobalFlags with one and two leading dashes, the form
// flagx.FilterArgs and flagx.SplitCommand expect.
func FlagArgs() []string {
	out := make([]string, 0, 2*len(GlobalFlags))
	for _, f := range GlobalFlags {
		out = append(out, "-"+f, "--"+f)
	}
	return out
}

// parseFlags populates selected Config fields from command-line flags.
// args is filtered with flagx.FilterArgs first so subcommand flags do not
// interfere.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, FlagArgs())

	fs := flag.NewFlagSet("workwatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var ignored string
	fs.StringVar(&ignored, "c", "", "path to JSON config")
	fs.StringVar(&ignored, "config", "", "path to JSON config")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "database driver: sqlite or pgx")
	fs.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "database DSN or SQLite file")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "base directory for data")
	fs.StringVar(&cfg.ReportsDir, "reports-dir", cfg.ReportsDir, "directory for daily artifacts")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "directory for monthly bundles")
	fs.StringVar(&cfg.KeysDir, "keys-dir", cfg.KeysDir, "directory for payload keys")
	fs.StringVar(&cfg.WorkerID, "worker", cfg.WorkerID, "worker identity")
	fs.StringVar(&cfg.TimeZone, "tz", cfg.TimeZone, "IANA time zone for day boundaries")
	fs.Float64Var(&cfg.Latitude, "lat", cfg.Latitude, "latitude of the static location")
	fs.Float64Var(&cfg.Longitude, "lon", cfg.Longitude, "longitude of the static location")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "text or json")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "log file with rotation; empty logs to stderr")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
