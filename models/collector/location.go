package collector

import (
	"time"
)

// LocationStatus is the availability state carried by a location sample.
type LocationStatus string

const (
	LocationStatusAvailable LocationStatus = "available"
	LocationStatusBusy      LocationStatus = "busy"
	LocationStatusOffline   LocationStatus = "offline"
)

func (ls LocationStatus) IsValid() bool {
	switch ls {
	case LocationStatusAvailable, LocationStatusBusy, LocationStatusOffline:
		return true
	default:
		return false
	}
}

// LocationSample holds the most recent known position of a collector. One
// row per collector; a write carrying an older SampledAt than the stored row
// is discarded, so ordering is by event time, not arrival time.
type LocationSample struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	// User id of the collector, matching bookings.collector_id
	CollectorID uint `gorm:"not null;uniqueIndex" json:"collector_id"`

	Latitude  float64        `gorm:"not null" json:"latitude"`
	Longitude float64        `gorm:"not null" json:"longitude"`
	Status    LocationStatus `gorm:"type:varchar(20);not null;default:available" json:"status"`

	// Event time reported by the device, authoritative for ordering
	SampledAt time.Time `gorm:"not null;index" json:"sampled_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name for the LocationSample model
func (LocationSample) TableName() string {
	return "collector_locations"
}
