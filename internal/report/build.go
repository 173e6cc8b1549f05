// Package report builds the DailyReport value for one worker-day from chain
// entries and GPS trail points.
package report

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/chain"
	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/dmitrijs2005/workwatch/internal/timex"
	"github.com/google/uuid"
)

// HashFragmentLen is the number of hex characters of an entry hash quoted
// in check summaries.
const HashFragmentLen = 16

// UnverifiableCellReason is the not_available reason recorded on a check-in
// whose payload could not be opened.
const UnverifiableCellReason = "payload unverifiable"

// PayloadDecryptor opens an entry payload. It may be nil.
type PayloadDecryptor func(e *models.ChainEntry) (*models.LogPayload, error)

// Input is everything Build needs. Entries must be in creation order and be
// all the entries whose check-in falls on Date.
type Input struct {
	ID          string
	Date        string
	WorkerID    string
	GeneratedAt time.Time
	Entries     []models.ChainEntry
	Trail       []models.TrailPoint
	// InitialHashes maps each epoch present in Entries to the hash that
	// precedes its first entry of the day: the previous entry's current hash
	// or genesis.
	InitialHashes map[int64][]byte
	Device        models.DeviceInfo
	Decrypt       PayloadDecryptor
}

// Build assembles the report. It fails with common.ErrNoData for a day with
// no entries instead of emitting a placeholder.
func Build(in Input) (*models.DailyReport, error) {
	if len(in.Entries) == 0 {
		return nil, fmt.Errorf("%w: no entries on %s", common.ErrNoData, in.Date)
	}
	if _, err := time.Parse(models.DateLayout, in.Date); err != nil {
		return nil, fmt.Errorf("%w: date %q: %w", common.ErrValidation, in.Date, err)
	}

	first := &in.Entries[0]
	last := &in.Entries[len(in.Entries)-1]

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	r := &models.DailyReport{
		ID:                id,
		Date:              in.Date,
		WorkerID:          in.WorkerID,
		GeneratedAt:       models.NormalizeTime(generated),
		EntryCount:        len(in.Entries),
		GPSTrail:          in.Trail,
		PreviousEpochHash: hex.EncodeToString(initialHash(in, first.Epoch)),
		TodayHash:         hex.EncodeToString(last.CurrentHash),
		ChainValid:        validate(in),
		MapLink:           MapLink(first.Latitude, first.Longitude),
		Integrity: models.Integrity{
			Sealed:      true,
			OpenCount:   0,
			OpenHistory: []models.AuditEvent{},
		},
	}
	if r.GPSTrail == nil {
		r.GPSTrail = []models.TrailPoint{}
	}

	r.CheckIn = checkInSummary(first, in)

	if last.CheckOutTime != nil {
		r.CheckOut = checkOutSummary(last, in)
		r.WorkDurationSeconds = int64(last.CheckOutTime.Sub(first.CheckInTime) / time.Second)
	} else {
		r.Incomplete = true
		r.WorkDurationSeconds = 0
	}
	r.WorkDuration = timex.HumanDuration(r.WorkDurationSeconds)

	return r, nil
}

func initialHash(in Input, epoch int64) []byte {
	if h, ok := in.InitialHashes[epoch]; ok {
		return h
	}
	return cryptox.Genesis()
}

// validate checks each epoch's run of entries against its initial hash.
// A day spanning a rollover has one run per epoch.
func validate(in Input) bool {
	start := 0
	for i := 1; i <= len(in.Entries); i++ {
		if i < len(in.Entries) && in.Entries[i].Epoch == in.Entries[start].Epoch {
			continue
		}
		run := in.Entries[start:i]
		if !chain.ValidateSegment(run, initialHash(in, run[0].Epoch)) {
			return false
		}
		start = i
	}
	return true
}

func fragment(h []byte) string {
	s := hex.EncodeToString(h)
	if len(s) > HashFragmentLen {
		return s[:HashFragmentLen]
	}
	return s
}

func checkInSummary(e *models.ChainEntry, in Input) *models.CheckSummary {
	s := &models.CheckSummary{
		Timestamp:    e.CheckInTime,
		Coordinates:  models.Coordinates{Latitude: e.Latitude, Longitude: e.Longitude},
		Device:       in.Device,
		HashFragment: fragment(e.CurrentHash),
	}
	p := decrypt(e, in)
	if p == nil {
		cell := models.CellUnavailable(UnverifiableCellReason)
		s.Cell = &cell
		return s
	}
	cell := p.Cell
	s.Cell = &cell
	s.Device = p.Device
	s.PayloadVerified = p.CheckInTime == models.UnixMilli(e.CheckInTime) &&
		p.Latitude == e.Latitude && p.Longitude == e.Longitude
	return s
}

func checkOutSummary(e *models.ChainEntry, in Input) *models.CheckSummary {
	s := &models.CheckSummary{
		Timestamp:    *e.CheckOutTime,
		Coordinates:  models.Coordinates{Latitude: e.Latitude, Longitude: e.Longitude},
		Device:       in.Device,
		HashFragment: fragment(e.CurrentHash),
	}
	if e.CheckOutLat != nil && e.CheckOutLon != nil {
		s.Coordinates = models.Coordinates{Latitude: *e.CheckOutLat, Longitude: *e.CheckOutLon}
	}
	if p := decrypt(e, in); p != nil {
		s.Device = p.Device
		s.PayloadVerified = p.CheckInTime == models.UnixMilli(e.CheckInTime)
	}
	return s
}

func decrypt(e *models.ChainEntry, in Input) *models.LogPayload {
	if in.Decrypt == nil {
		return nil
	}
	// a payload that no longer matches its hash is not trusted even if it decrypts
	if !bytes.Equal(e.CurrentHash, cryptox.ChainHash(e.PreviousHash, e.EncryptedPayload)) {
		return nil
	}
	p, err := in.Decrypt(e)
	if err != nil {
		return nil
	}
	return p
}

// MapLink returns a map URL for the coordinates.
func MapLink(lat, lon float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%v,%v", lat, lon)
}
