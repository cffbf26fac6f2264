package message

import (
	"time"

	"scrap-pickup/models/user"
)

// MessageType categorizes chat payloads.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeLocation MessageType = "location"
	MessageTypeSystem   MessageType = "system"
)

func (mt MessageType) IsValid() bool {
	switch mt {
	case MessageTypeText, MessageTypeImage, MessageTypeLocation, MessageTypeSystem:
		return true
	default:
		return false
	}
}

// Message is a chat message scoped to a booking. Rows are append-only except
// for the read-state mutation.
type Message struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	BookingID string `gorm:"type:varchar(36);not null;index" json:"booking_id"`

	SenderID uint      `gorm:"not null;index" json:"sender_id"`
	Sender   user.User `gorm:"foreignKey:SenderID" json:"sender"`

	ReceiverID uint      `gorm:"not null;index" json:"receiver_id"`
	Receiver   user.User `gorm:"foreignKey:ReceiverID" json:"-"`

	Body string      `gorm:"type:text;not null" json:"body"`
	Type MessageType `gorm:"type:varchar(20);not null;default:text" json:"type"`

	AttachmentURL *string `gorm:"type:varchar(500)" json:"attachment_url,omitempty"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
