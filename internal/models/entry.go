// Package models defines the WorkWatch domain values: chain entries and
// their encrypted payloads, GPS trail points, daily reports and monthly
// summaries.
package models

import (
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
)

// ChainEntry is one persisted work event.
//
// CurrentHash commits PreviousHash and EncryptedPayload only. CheckOutTime
// and the check-out coordinates are set once, in place, at check-out and do
// not participate in the hash. Latitude and Longitude duplicate the
// encrypted values for querying and carry no evidentiary weight.
type ChainEntry struct {
	ID               int64
	WorkerID         string
	Epoch            int64
	PreviousHash     []byte
	CurrentHash      []byte
	EncryptedPayload []byte
	CheckInTime      time.Time
	CheckOutTime     *time.Time
	Latitude         float64
	Longitude        float64
	CheckOutLat      *float64
	CheckOutLon      *float64
	Synced           bool
	KeyVersion       int
}

// Open reports whether the entry still waits for a check-out.
func (e *ChainEntry) Open() bool {
	return e.CheckOutTime == nil
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return fmt.Errorf("%w: coordinates must be numbers", common.ErrValidation)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", common.ErrValidation, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", common.ErrValidation, c.Longitude)
	}
	return nil
}

// DeviceInfo identifies the recording device.
type DeviceInfo struct {
	Model      string `json:"model"`
	OS         string `json:"os"`
	AppVersion string `json:"app_version"`
}

// LogPayload is the plaintext sealed into ChainEntry.EncryptedPayload.
// Times are Unix milliseconds so the JSON form does not depend on the
// process time zone.
type LogPayload struct {
	WorkerID     string      `json:"worker_id"`
	CheckInTime  int64       `json:"check_in_time"`
	CheckOutTime *int64      `json:"check_out_time,omitempty"`
	Latitude     float64     `json:"latitude"`
	Longitude    float64     `json:"longitude"`
	Cell         CellContext `json:"cell"`
	Device       DeviceInfo  `json:"device"`
}

// UnixMilli converts t to the payload time format.
func UnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMilli converts a payload time back to UTC.
func FromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NormalizeTime drops sub-millisecond precision and the monotonic reading
// so a time survives a round trip through the store unchanged.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
