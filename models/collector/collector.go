package collector

import (
	"time"

	"scrap-pickup/models/user"
)

// Collector is the field-worker profile of a user with the collector role.
type Collector struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID uint      `gorm:"not null;unique" json:"user_id"`
	User   user.User `gorm:"foreignKey:UserID" json:"user"`

	IsActive   bool `gorm:"default:true;index" json:"is_active"`
	IsVerified bool `gorm:"default:false" json:"is_verified"`

	// Running average over completed bookings, null until first review
	Rating *float64 `json:"rating,omitempty"`

	MaxDailyCapacity int `gorm:"not null;default:10" json:"max_daily_capacity"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
