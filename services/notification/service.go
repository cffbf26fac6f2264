package notification

import (
	"encoding/json"
	"fmt"

	"scrap-pickup/logger"
	notificationModel "scrap-pickup/models/notification"

	"gorm.io/gorm"
)

// Service is a best-effort notification queue. Notify enqueues without
// blocking the caller; a worker goroutine persists the row and hands the
// push off to the transport. Delivery failures are logged, never propagated
// back into the state change that triggered them.
type Service struct {
	db    *gorm.DB
	queue chan item
	done  chan struct{}
}

type item struct {
	UserID  uint
	Title   string
	Body    string
	Type    string
	Payload map[string]interface{}
}

// NewService creates a notification service with a bounded queue.
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:    db,
		queue: make(chan item, 256),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until Close is called. Start it in a goroutine.
func (s *Service) Run() {
	defer close(s.done)
	for it := range s.queue {
		s.deliver(it)
	}
}

// Close stops the worker after the queue drains.
func (s *Service) Close() {
	close(s.queue)
	<-s.done
}

// Notify queues a notification. If the queue is full the notification is
// dropped and logged; the caller is never blocked.
func (s *Service) Notify(userID uint, title, body, notifType string, payload map[string]interface{}) {
	select {
	case s.queue <- item{UserID: userID, Title: title, Body: body, Type: notifType, Payload: payload}:
	default:
		logger.Warning(fmt.Sprintf("notification queue full, dropping %q for user %d", title, userID))
	}
}

func (s *Service) deliver(it item) {
	payload := ""
	if len(it.Payload) > 0 {
		raw, err := json.Marshal(it.Payload)
		if err != nil {
			logger.Error("Failed to marshal notification payload", err)
		} else {
			payload = string(raw)
		}
	}

	row := notificationModel.Notification{
		UserID:  it.UserID,
		Title:   it.Title,
		Body:    it.Body,
		Type:    it.Type,
		Payload: payload,
		Status:  "unread",
	}
	if err := s.db.Create(&row).Error; err != nil {
		logger.Error(fmt.Sprintf("Failed to persist notification for user %d", it.UserID), err)
		return
	}

	// Push transport is an external collaborator; delivery here is a log
	// line standing in for the fire-and-forget handoff.
	logger.Info(fmt.Sprintf("📱 push queued for user %d: %s", it.UserID, it.Title))
}

// ListForUser returns a user's notifications, newest first.
func (s *Service) ListForUser(userID uint, limit, offset int) ([]notificationModel.Notification, error) {
	var rows []notificationModel.Notification
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, err
}

// MarkRead flips a notification to read for its owner.
func (s *Service) MarkRead(userID uint, notificationID uint) error {
	return s.db.Model(&notificationModel.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("status", "read").Error
}
