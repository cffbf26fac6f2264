package realtime

import "time"

// Outbound event types.
const (
	EventAuthenticated           = "authenticated"
	EventJoinedBooking           = "joined_booking"
	EventLeftBooking             = "left_booking"
	EventBookingStatusUpdate     = "booking_status_update"
	EventCollectorLocationUpdate = "collector_location_update"
	EventLocationAccepted        = "location_accepted"
	EventLocationDiscarded       = "location_discarded"
	EventNewMessage              = "new_message"
	EventError                   = "error"
)

// Inbound command types.
const (
	CommandJoinBooking    = "join_booking"
	CommandLeaveBooking   = "leave_booking"
	CommandLocationUpdate = "location_update"
	CommandStatusUpdate   = "status_update"
	CommandSendMessage    = "send_message"
)

// Event is the envelope every outbound frame uses. Timestamp is assigned by
// the server at emit time.
type Event struct {
	Type      string      `json:"type"`
	BookingID string      `json:"booking_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Command is the envelope for inbound frames from a connected client.
type Command struct {
	Type      string `json:"type"`
	BookingID string `json:"booking_id,omitempty"`

	// location_update fields
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Status    string  `json:"status,omitempty"`
	SampledAt string  `json:"sampled_at,omitempty"`

	// status_update fields
	TargetStatus string `json:"target_status,omitempty"`
	Notes        string `json:"notes,omitempty"`

	// send_message fields
	ReceiverID  uint   `json:"receiver_id,omitempty"`
	Body        string `json:"body,omitempty"`
	MessageType string `json:"message_type,omitempty"`
}
