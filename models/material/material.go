package material

import (
	"time"
)

// Material is a catalog entry with the current per-kg price. Bookings copy
// the price into their lines at creation time.
type Material struct {
	ID         uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string  `gorm:"type:varchar(255);not null;unique" json:"name"`
	Category   string  `gorm:"type:varchar(255);index" json:"category"`
	PricePerKg float64 `gorm:"not null" json:"price_per_kg"`
	Unit       string  `gorm:"type:varchar(20);default:kg" json:"unit"`
	ImageURL   *string `gorm:"type:varchar(2048)" json:"image_url,omitempty"`
	IsActive   bool    `gorm:"default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
