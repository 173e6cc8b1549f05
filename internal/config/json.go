package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/flagx"
	"github.com/dmitrijs2005/workwatch/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from a zero value so only keys present in the
// file override defaults.
type JsonConfig struct {
	DBDriver       *string         `json:"db_driver"`
	DBDSN          *string         `json:"db_dsn"`
	DataDir        *string         `json:"data_dir"`
	ReportsDir     *string         `json:"reports_dir"`
	ExportDir      *string         `json:"export_dir"`
	KeysDir        *string         `json:"keys_dir"`
	WorkerID       *string         `json:"worker_id"`
	KeyAlias       *string         `json:"key_alias"`
	KeyVersion     *int            `json:"key_version"`
	TimeZone       *string         `json:"timezone"`
	DeviceModel    *string         `json:"device_model"`
	Latitude       *float64        `json:"latitude"`
	Longitude      *float64        `json:"longitude"`
	KDFTime        *uint32         `json:"kdf_time"`
	KDFMemoryKiB   *uint32         `json:"kdf_memory_kib"`
	KDFThreads     *uint8          `json:"kdf_threads"`
	TrailRetention *timex.Duration `json:"trail_retention"`
	CellTimeout    *timex.Duration `json:"cell_timeout"`
	Log            *jsonLog        `json:"log"`
}

type jsonLog struct {
	Level      *string `json:"level"`
	Format     *string `json:"format"`
	File       *string `json:"file"`
	MaxSizeMB  *int    `json:"max_size_mb"`
	MaxBackups *int    `json:"max_backups"`
	MaxAgeDays *int    `json:"max_age_days"`
	Compress   *bool   `json:"compress"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

// parseJson overlays cfg with the JSON file named by -c/-config in args.
// No flag means no file.
func parseJson(cfg *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&cfg.DBDriver, jc.DBDriver)
	set(&cfg.DBDSN, jc.DBDSN)
	set(&cfg.DataDir, jc.DataDir)
	set(&cfg.ReportsDir, jc.ReportsDir)
	set(&cfg.ExportDir, jc.ExportDir)
	set(&cfg.KeysDir, jc.KeysDir)
	set(&cfg.WorkerID, jc.WorkerID)
	set(&cfg.KeyAlias, jc.KeyAlias)
	set(&cfg.KeyVersion, jc.KeyVersion)
	set(&cfg.TimeZone, jc.TimeZone)
	set(&cfg.DeviceModel, jc.DeviceModel)
	set(&cfg.Latitude, jc.Latitude)
	set(&cfg.Longitude, jc.Longitude)
	set(&cfg.KDFTime, jc.KDFTime)
	set(&cfg.KDFMemoryKiB, jc.KDFMemoryKiB)
	set(&cfg.KDFThreads, jc.KDFThreads)
	setDuration(&cfg.TrailRetention, jc.TrailRetention)
	setDuration(&cfg.CellTimeout, jc.CellTimeout)

	if l := jc.Log; l != nil {
		set(&cfg.Log.Level, l.Level)
		set(&cfg.Log.Format, l.Format)
		set(&cfg.Log.File, l.File)
		set(&cfg.Log.MaxSizeMB, l.MaxSizeMB)
		set(&cfg.Log.MaxBackups, l.MaxBackups)
		set(&cfg.Log.MaxAgeDays, l.MaxAgeDays)
		set(&cfg.Log.Compress, l.Compress)
	}
	return nil
}
