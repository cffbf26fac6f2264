package message

import (
	"time"

	"scrap-pickup/apperrors"
	messageModel "scrap-pickup/models/message"
	bookingSvc "scrap-pickup/services/booking"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service persists booking-scoped chat messages and hands committed rows to
// the broadcaster for delivery.
type Service struct {
	db          *gorm.DB
	bookings    *bookingSvc.Service
	broadcaster bookingSvc.Broadcaster
}

// NewService creates a message service. The broadcaster may be nil.
func NewService(db *gorm.DB, bookings *bookingSvc.Service, broadcaster bookingSvc.Broadcaster) *Service {
	return &Service{db: db, bookings: bookings, broadcaster: broadcaster}
}

// SendInput carries a sendMessage command.
type SendInput struct {
	BookingID  string
	ReceiverID uint
	Body       string
	Type       messageModel.MessageType
}

// Send persists a message and then delivers it to the receiver's connection
// and the booking room. The sender must be party to the booking.
func (s *Service) Send(actor bookingSvc.Actor, input SendInput) (*messageModel.Message, error) {
	if input.Body == "" {
		return nil, &apperrors.ValidationError{Field: "body", Reason: "is required"}
	}
	if input.Type == "" {
		input.Type = messageModel.MessageTypeText
	}
	if !input.Type.IsValid() {
		return nil, &apperrors.ValidationError{Field: "type", Reason: "unknown message type"}
	}

	b, err := s.bookings.GetForActor(input.BookingID, actor)
	if err != nil {
		return nil, err
	}
	if input.ReceiverID != b.CustomerID && (b.CollectorID == nil || input.ReceiverID != *b.CollectorID) {
		return nil, &apperrors.ValidationError{Field: "receiver_id", Reason: "receiver is not party to this booking"}
	}

	msg := messageModel.Message{
		ID:         uuid.NewString(),
		BookingID:  input.BookingID,
		SenderID:   actor.ID,
		ReceiverID: input.ReceiverID,
		Body:       input.Body,
		Type:       input.Type,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		payload := map[string]interface{}{
			"id":           msg.ID,
			"booking_id":   msg.BookingID,
			"sender_id":    msg.SenderID,
			"receiver_id":  msg.ReceiverID,
			"body":         msg.Body,
			"message_type": msg.Type,
		}
		s.broadcaster.SendToUser(msg.ReceiverID, "new_message", payload)
		s.broadcaster.BroadcastToBooking(msg.BookingID, "new_message", payload)
	}

	return &msg, nil
}

// List returns a booking's messages oldest first, paged.
func (s *Service) List(actor bookingSvc.Actor, bookingID string, limit, offset int) ([]messageModel.Message, error) {
	if _, err := s.bookings.GetForActor(bookingID, actor); err != nil {
		return nil, err
	}

	var messages []messageModel.Message
	err := s.db.Preload("Sender").
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").Limit(limit).Offset(offset).
		Find(&messages).Error
	return messages, err
}

// MarkRead flags every unread message addressed to the actor in the booking
// as read. Messages are otherwise append-only.
func (s *Service) MarkRead(actor bookingSvc.Actor, bookingID string) (int64, error) {
	if _, err := s.bookings.GetForActor(bookingID, actor); err != nil {
		return 0, err
	}

	res := s.db.Model(&messageModel.Message{}).
		Where("booking_id = ? AND receiver_id = ? AND is_read = ?", bookingID, actor.ID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}
