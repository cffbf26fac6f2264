package types

import (
	"time"

	"scrap-pickup/apperrors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct tag validation and converts the first failure into
// the service error taxonomy so controllers can map it uniformly.
func Validate(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		f := verrs[0]
		return &apperrors.ValidationError{Field: f.Field(), Reason: "failed '" + f.Tag() + "' validation"}
	}
	return &apperrors.ValidationError{Reason: err.Error()}
}

type MaterialLineRequest struct {
	MaterialID uint    `json:"material_id" validate:"required"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
	Notes      string  `json:"notes" validate:"omitempty,max=500"`
}

type BookingCreateRequest struct {
	PickupAddress       string                `json:"pickup_address" validate:"required,min=1,max=500"`
	Landmark            string                `json:"landmark" validate:"omitempty,max=255"`
	City                string                `json:"city" validate:"omitempty,max=100"`
	Latitude            float64               `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude           float64               `json:"longitude" validate:"required,gte=-180,lte=180"`
	ContactPerson       string                `json:"contact_person" validate:"omitempty,max=255"`
	ContactPhone        string                `json:"contact_phone" validate:"omitempty,max=20"`
	SpecialInstructions string                `json:"special_instructions" validate:"omitempty,max=1000"`
	ScheduledAt         time.Time             `json:"scheduled_at" validate:"required"`
	TimeSlot            string                `json:"time_slot" validate:"omitempty,max=50"`
	Images              []string              `json:"images" validate:"omitempty,max=10"`
	Materials           []MaterialLineRequest `json:"materials" validate:"required,min=1,dive"`
}

type BookingTransitionRequest struct {
	TargetStatus string `json:"target_status" validate:"required"`
	Notes        string `json:"notes" validate:"omitempty,max=1000"`
}

type BookingAssignRequest struct {
	CollectorID uint   `json:"collector_id" validate:"required"`
	Notes       string `json:"notes" validate:"omitempty,max=1000"`
}

type BookingCancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

type ActualWeightRequest struct {
	MaterialID uint    `json:"material_id" validate:"required"`
	Quantity   float64 `json:"quantity" validate:"gte=0"`
}

type BookingCompleteRequest struct {
	Weights []ActualWeightRequest `json:"weights" validate:"required,min=1,dive"`
	Images  []string              `json:"images" validate:"omitempty,max=10"`
}

type BookingUpdateRequest struct {
	PickupAddress       *string    `json:"pickup_address" validate:"omitempty,min=1,max=500"`
	Landmark            *string    `json:"landmark" validate:"omitempty,max=255"`
	ContactPerson       *string    `json:"contact_person" validate:"omitempty,max=255"`
	ContactPhone        *string    `json:"contact_phone" validate:"omitempty,max=20"`
	SpecialInstructions *string    `json:"special_instructions" validate:"omitempty,max=1000"`
	ScheduledAt         *time.Time `json:"scheduled_at"`
	TimeSlot            *string    `json:"time_slot" validate:"omitempty,max=50"`
}

type LocationUpdateRequest struct {
	Latitude  float64    `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64    `json:"longitude" validate:"gte=-180,lte=180"`
	Status    string     `json:"status" validate:"omitempty,oneof=available busy offline"`
	SampledAt *time.Time `json:"sampled_at"`
}

type SendMessageRequest struct {
	BookingID   string `json:"booking_id" validate:"required,uuid4"`
	ReceiverID  uint   `json:"receiver_id" validate:"required"`
	Message     string `json:"message" validate:"required,min=1,max=2000"`
	MessageType string `json:"message_type" validate:"omitempty,oneof=text image location system"`
}
