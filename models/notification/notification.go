package notification

import (
	"time"
)

// Notification is a persisted best-effort notification. Push delivery to the
// device is fire-and-forget; the row is the durable record.
type Notification struct {
	ID     uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	Title   string `gorm:"type:varchar(255);not null" json:"title"`
	Body    string `gorm:"type:text;not null" json:"body"`
	Type    string `gorm:"type:varchar(50);index" json:"type"`
	Payload string `gorm:"type:text" json:"payload,omitempty"`

	Status string `gorm:"type:varchar(20);not null;default:unread;index" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
