package booking

import (
	"time"
)

// StatusHistoryEntry is one row of the append-only audit trail. Exactly one
// entry is written per transition; the first entry of a booking has a null
// previous status.
type StatusHistoryEntry struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	BookingID string `gorm:"type:varchar(36);not null;index" json:"booking_id"`

	Status         BookingStatus  `gorm:"type:varchar(50);not null;index" json:"status"`
	PreviousStatus *BookingStatus `gorm:"type:varchar(50)" json:"previous_status,omitempty"`

	Notes         string    `gorm:"type:text" json:"notes"`
	ChangedBy     string    `gorm:"type:varchar(255);index" json:"changed_by"`
	ChangedByRole string    `gorm:"type:varchar(50)" json:"changed_by_role"`
	ChangedAt     time.Time `gorm:"not null;index" json:"changed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName sets the table name for the StatusHistoryEntry model
func (StatusHistoryEntry) TableName() string {
	return "booking_status_history"
}
