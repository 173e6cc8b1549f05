package models

import "time"

// CheckSummary is the check-in or check-out half of a daily report.
type CheckSummary struct {
	Timestamp    time.Time   `json:"timestamp"`
	Coordinates  Coordinates `json:"coordinates"`
	Device       DeviceInfo  `json:"device"`
	HashFragment string      `json:"hash_fragment"`
	// Cell is set on check-in summaries. It comes from the decrypted payload,
	// or is not_available when the payload could not be opened.
	Cell *CellContext `json:"cell,omitempty"`
	// PayloadVerified is true when the encrypted payload decrypted and
	// matched the plaintext columns.
	PayloadVerified bool `json:"payload_verified"`
}

// AuditEvent is one entry of Integrity.OpenHistory.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
}

const AuditActionOpened = "opened"

// Integrity describes the evidentiary state of a report artifact.
// OpenCount -1 marks a readable copy.
type Integrity struct {
	Sealed      bool         `json:"sealed"`
	Tampered    bool         `json:"tampered"`
	OpenCount   int          `json:"open_count"`
	OpenHistory []AuditEvent `json:"open_history"`
}

// ReadableCopyOpenCount is the OpenCount sentinel of readable copies.
const ReadableCopyOpenCount = -1

// DailyReport aggregates one worker's day.
type DailyReport struct {
	ID                  string        `json:"id"`
	Date                string        `json:"date"`
	WorkerID            string        `json:"worker_id"`
	GeneratedAt         time.Time     `json:"generated_at"`
	CheckIn             *CheckSummary `json:"check_in"`
	CheckOut            *CheckSummary `json:"check_out,omitempty"`
	WorkDurationSeconds int64         `json:"work_duration_seconds"`
	WorkDuration        string        `json:"work_duration"`
	Incomplete          bool          `json:"incomplete"`
	EntryCount          int           `json:"entry_count"`
	GPSTrail            []TrailPoint  `json:"gps_trail"`
	MapLink             string        `json:"map_link,omitempty"`
	PreviousEpochHash   string        `json:"previous_epoch_hash"`
	TodayHash           string        `json:"today_hash"`
	ChainValid          bool          `json:"chain_valid"`
	Integrity           Integrity     `json:"integrity"`
}

// DateLayout is the calendar-day format used in reports and artifact names.
const DateLayout = "2006-01-02"
