package booking

import (
	"time"

	"scrap-pickup/models/user"
)

// Booking represents a single pickup request moving through the lifecycle
// state machine. Milestone timestamps are nullable and set at most once.
type Booking struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	// Foreign key for customer relationship
	CustomerID uint      `gorm:"not null;index" json:"customer_id"`
	Customer   user.User `gorm:"foreignKey:CustomerID" json:"customer"`

	// Collector stays null until the booking is assigned
	CollectorID *uint      `gorm:"index" json:"collector_id,omitempty"`
	Collector   *user.User `gorm:"foreignKey:CollectorID" json:"collector,omitempty"`

	Status BookingStatus `gorm:"type:varchar(50);not null;index" json:"status"`

	PickupAddress       string  `gorm:"type:text;not null" json:"pickup_address"`
	Landmark            *string `gorm:"type:varchar(255)" json:"landmark,omitempty"`
	City                string  `gorm:"type:varchar(255)" json:"city"`
	Latitude            float64 `gorm:"not null" json:"latitude"`
	Longitude           float64 `gorm:"not null" json:"longitude"`
	ContactPerson       string  `gorm:"type:varchar(255)" json:"contact_person"`
	ContactPhone        string  `gorm:"type:varchar(20)" json:"contact_phone"`
	SpecialInstructions *string `gorm:"type:text" json:"special_instructions,omitempty"`

	ScheduledAt time.Time `gorm:"not null;index" json:"scheduled_at"`
	TimeSlot    string    `gorm:"type:varchar(50)" json:"time_slot"`

	// Estimated value is the sum of line quantity x unit price snapshot taken
	// at creation time. Actual value is set once on completion and never
	// mutated afterwards.
	EstimatedWeight float64  `json:"estimated_weight"`
	EstimatedValue  float64  `json:"estimated_value"`
	ActualValue     *float64 `json:"actual_value,omitempty"`

	Images user.StringSlice `gorm:"type:text" json:"images,omitempty"`

	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Materials []MaterialLine `gorm:"foreignKey:BookingID" json:"materials,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MilestoneColumn returns the timestamp column set by a transition into the
// given status, or empty if the status carries no milestone.
func MilestoneColumn(status BookingStatus) string {
	switch status {
	case BookingStatusAssigned:
		return "assigned_at"
	case BookingStatusInProgress:
		return "started_at"
	case BookingStatusCompleted:
		return "completed_at"
	case BookingStatusCancelled:
		return "cancelled_at"
	}
	return ""
}
