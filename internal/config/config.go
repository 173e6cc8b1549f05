package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/dbx"
	"github.com/dmitrijs2005/workwatch/internal/logging"
	"github.com/dmitrijs2005/workwatch/internal/models"
)

// Version is stamped into device info.
var Version = "dev"

// LogConfig mirrors logging.Options.
type LogConfig struct {
	Level      string `env:"LOG_LEVEL"`
	Format     string `env:"LOG_FORMAT"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS"`
	Compress   bool   `env:"LOG_COMPRESS"`
}

// Config holds runtime settings for the WorkWatch CLI.
type Config struct {
	DBDriver string `env:"DB_DRIVER"`
	DBDSN    string `env:"DB_DSN"`

	DataDir    string `env:"DATA_DIR"`
	ReportsDir string `env:"REPORTS_DIR"`
	ExportDir  string `env:"EXPORT_DIR"`
	KeysDir    string `env:"KEYS_DIR"`
	KeySecret  string `env:"KEY_SECRET"`

	WorkerID    string `env:"WORKER_ID"`
	KeyAlias    string `env:"KEY_ALIAS"`
	KeyVersion  int    `env:"KEY_VERSION"`
	TimeZone    string `env:"TIMEZONE"`
	DeviceModel string `env:"DEVICE_MODEL"`

	// Latitude and Longitude feed the static location provider.
	Latitude  float64 `env:"LATITUDE"`
	Longitude float64 `env:"LONGITUDE"`

	KDFTime      uint32 `env:"KDF_TIME"`
	KDFMemoryKiB uint32 `env:"KDF_MEMORY_KIB"`
	KDFThreads   uint8  `env:"KDF_THREADS"`

	TrailRetention time.Duration `env:"TRAIL_RETENTION"`
	CellTimeout    time.Duration `env:"CELL_TIMEOUT"`

	Log LogConfig
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	kdf := cryptox.DefaultKDFParams()

	*c = Config{
		DBDriver:       dbx.SQLite.DriverName(),
		DataDir:        filepath.Join(home, ".workwatch"),
		WorkerID:       host,
		KeyAlias:       "workwatch-chain",
		KeyVersion:     1,
		TimeZone:       "Local",
		DeviceModel:    host,
		KDFTime:        kdf.Time,
		KDFMemoryKiB:   kdf.MemoryKiB,
		KDFThreads:     kdf.Threads,
		TrailRetention: 90 * 24 * time.Hour,
		CellTimeout:    5 * time.Second,
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadConfig builds a Config from defaults, the JSON file, the environment
// and args (usually os.Args[1:]), in that order.
func LoadConfig(args []string) (*Config, error) {
	return load(args, nil)
}

func load(args []string, environ map[string]string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, environ); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	cfg.derivePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) derivePaths() {
	if c.ReportsDir == "" {
		c.ReportsDir = filepath.Join(c.DataDir, "reports")
	}
	if c.ExportDir == "" {
		c.ExportDir = filepath.Join(c.DataDir, "exports")
	}
	if c.KeysDir == "" {
		c.KeysDir = filepath.Join(c.DataDir, "keys")
	}
	if c.DBDSN == "" && c.DBDriver == dbx.SQLite.DriverName() {
		c.DBDSN = filepath.Join(c.DataDir, "workwatch.db")
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := dbx.DialectFor(c.DBDriver); err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("%w: database dsn is required for %s", common.ErrValidation, c.DBDriver)
	}
	if c.WorkerID == "" {
		return fmt.Errorf("%w: worker id is required", common.ErrValidation)
	}
	if c.KeyVersion < 1 {
		return fmt.Errorf("%w: key version must be at least 1", common.ErrValidation)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.KDFParams().Validate(); err != nil {
		return err
	}
	if err := (models.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}).Validate(); err != nil {
		return err
	}
	if c.TrailRetention < 0 {
		return fmt.Errorf("%w: trail retention must not be negative", common.ErrValidation)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return nil
}

// Location resolves TimeZone. Calendar days of reports are cut in it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %w", common.ErrValidation, c.TimeZone, err)
	}
	return loc, nil
}

func (c *Config) KDFParams() cryptox.KDFParams {
	return cryptox.KDFParams{Time: c.KDFTime, MemoryKiB: c.KDFMemoryKiB, Threads: c.KDFThreads}
}

func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

func (c *Config) Device() models.DeviceInfo {
	return models.DeviceInfo{Model: c.DeviceModel, OS: runtime.GOOS + "/" + runtime.GOARCH, AppVersion: Version}
}
