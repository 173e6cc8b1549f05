package models

import "time"

// Epoch is one segment of a worker's chain between genesis resets.
type Epoch struct {
	WorkerID          string
	Number            int64
	StartedAt         time.Time
	ClosedAt          *time.Time
	Label             string
	ClosingTailHash   []byte
	ClosingEntryCount int
	ChainValid        *bool
}

// EpochBoundary records how an epoch ended.
type EpochBoundary struct {
	WorkerID        string    `json:"worker_id"`
	ClosedEpoch     int64     `json:"closed_epoch"`
	NextEpoch       int64     `json:"next_epoch"`
	Label           string    `json:"label"`
	ClosedAt        time.Time `json:"closed_at"`
	ClosingTailHash string    `json:"closing_tail_hash"`
	EntryCount      int       `json:"entry_count"`
	ChainValid      bool      `json:"chain_valid"`
}

// DaySummary is one row of a monthly summary.
type DaySummary struct {
	Date                string `json:"date"`
	Status              string `json:"status"`
	SealedHash          string `json:"sealed_hash,omitempty"`
	VerificationMatches bool   `json:"verification_matches"`
	WorkDurationSeconds int64  `json:"work_duration_seconds"`
	Incomplete          bool   `json:"incomplete"`
	ChainValid          bool   `json:"chain_valid"`
	Problem             string `json:"problem,omitempty"`
}

// MonthlySummary aggregates a month of daily artifacts.
type MonthlySummary struct {
	WorkerID           string         `json:"worker_id"`
	Month              string         `json:"month"` // YYYY-MM
	GeneratedAt        time.Time      `json:"generated_at"`
	TotalDays          int            `json:"total_days"`
	TotalSeconds       int64          `json:"total_seconds"`
	TotalHours         float64        `json:"total_hours"`
	AverageHoursPerDay float64        `json:"average_hours_per_day"`
	IncompleteDays     int            `json:"incomplete_days"`
	InvalidChainDays   int            `json:"invalid_chain_days"`
	AllSealed          bool           `json:"all_sealed"`
	Days               []DaySummary   `json:"days"`
	Boundary           *EpochBoundary `json:"boundary,omitempty"`
}

// ArchiveOpening is a persisted record of a sealed archive being opened.
type ArchiveOpening struct {
	ID          int64
	ArchiveHash string
	Path        string
	OpenedAt    time.Time
	Action      string
}
