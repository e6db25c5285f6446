package entities

import (
	"time"
)

const (
	DefaultPositionTimeout    = 15000 * time.Millisecond
	DefaultPositionMaximumAge = 60000 * time.Millisecond
)

type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

func (p Position) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.Timestamp)
}

// PositionOptions mirrors what a host geolocation API accepts: how long a
// lookup may take, and how stale a previously obtained fix may be.
type PositionOptions struct {
	Timeout    time.Duration
	MaximumAge time.Duration
}

func DefaultPositionOptions() PositionOptions {
	return PositionOptions{
		Timeout:    DefaultPositionTimeout,
		MaximumAge: DefaultPositionMaximumAge,
	}
}
