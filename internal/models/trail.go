package models

import "time"

// TrailPoint is one GPS fix recorded while checked in.
type TrailPoint struct {
	ID        int64     `json:"-"`
	WorkerID  string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Accuracy  float64   `json:"accuracy"`
	Speed     float64   `json:"speed"`
	Bearing   float64   `json:"bearing"`
	Provider  string    `json:"provider"`
}
