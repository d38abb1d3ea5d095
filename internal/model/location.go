package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location is a single position sample reported by a worker.
type Location struct {
	ID         int64           `json:"id"`
	WorkerID   int64           `json:"worker_id"`
	Latitude   decimal.Decimal `json:"latitude"`
	Longitude  decimal.Decimal `json:"longitude"`
	RecordedAt time.Time       `json:"timestamp"`

	// Joined fields (not always populated).
	WorkerName string `json:"worker_name,omitempty"`
}

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// ValidCoordinates reports whether lat/lng lie within WGS84 bounds.
func ValidCoordinates(lat, lng decimal.Decimal) bool {
	return lat.Abs().LessThanOrEqual(maxLatitude) && lng.Abs().LessThanOrEqual(maxLongitude)
}

// Member is a worker together with what they hold and where they were last seen.
type Member struct {
	User
	Assignments  []Assignment `json:"assigned_items"`
	LastLocation *Location    `json:"last_location"`
}
