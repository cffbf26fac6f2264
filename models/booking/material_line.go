package booking

import (
	"time"

	"scrap-pickup/models/material"
)

// MaterialLine is one material position of a booking. UnitPrice is a
// point-in-time copy of the catalog price taken when the booking was created
// and is never recomputed, so later catalog changes cannot corrupt
// historical bookings.
type MaterialLine struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	BookingID string `gorm:"type:varchar(36);not null;index" json:"booking_id"`

	MaterialID uint              `gorm:"not null;index" json:"material_id"`
	Material   material.Material `gorm:"foreignKey:MaterialID" json:"material"`

	Quantity   float64 `gorm:"not null" json:"quantity"`
	UnitPrice  float64 `gorm:"not null" json:"unit_price"`
	TotalPrice float64 `gorm:"not null" json:"total_price"`

	// Filled by the collector on completion
	ActualQuantity *float64 `json:"actual_quantity,omitempty"`
	ActualPrice    *float64 `json:"actual_price,omitempty"`

	Notes *string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name for the MaterialLine model
func (MaterialLine) TableName() string {
	return "booking_materials"
}
