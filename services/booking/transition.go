package booking

import (
	"fmt"
	"time"

	"scrap-pickup/apperrors"
	"scrap-pickup/constants"
	bookingModel "scrap-pickup/models/booking"
	collectorModel "scrap-pickup/models/collector"
	materialModel "scrap-pickup/models/material"
	"scrap-pickup/models/user"
	"scrap-pickup/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transition applies one state-machine edge under optimistic concurrency.
// expected is the status the caller observed before deciding to transition;
// if the stored status no longer matches, the caller lost a race and gets a
// ConflictError. The status update and the history append commit as one
// transaction, and the broadcast fires only after the commit.
func (s *Service) Transition(bookingID string, expected, target bookingModel.BookingStatus, actor Actor, notes string) (*bookingModel.Booking, error) {
	if !target.IsValid() {
		return nil, &apperrors.ValidationError{Field: "status", Reason: "unknown target status"}
	}
	// Assignment must carry a collector and goes through AssignCollector,
	// which re-validates capacity inside the commit transaction.
	if target == bookingModel.BookingStatusAssigned {
		return nil, &apperrors.ValidationError{Field: "status", Reason: "assignment requires a collector"}
	}
	if !expected.CanTransitionTo(target) {
		return nil, &apperrors.InvalidTransitionError{From: expected.String(), To: target.String()}
	}

	var prev bookingModel.BookingStatus

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var b bookingModel.Booking
		if err := tx.First(&b, "id = ?", bookingID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &apperrors.NotFoundError{Entity: "booking", ID: bookingID}
			}
			return err
		}
		if err := ensureParty(&b, actor); err != nil {
			return err
		}
		if b.Status != expected {
			return &apperrors.ConflictError{
				Reason: fmt.Sprintf("booking is %s, caller assumed %s", b.Status, expected),
			}
		}

		prev = b.Status
		return applyTransition(tx, &b, target, actor, notes, nil)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(bookingID, prev, target, actor, notes)
	return s.GetByID(bookingID)
}

// ActualWeight is the measured quantity of one material at pickup time.
type ActualWeight struct {
	MaterialID uint    `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

// Complete finishes an in-progress booking. Actual value is recomputed from
// the supplied weights times the catalog price at completion time, and the
// per-line actuals are stored alongside the snapshots.
func (s *Service) Complete(bookingID string, actor Actor, weights []ActualWeight, images []string) (*bookingModel.Booking, error) {
	if len(weights) == 0 {
		return nil, &apperrors.ValidationError{Field: "weights", Reason: "actual material weights are required"}
	}
	for _, w := range weights {
		if w.Quantity < 0 {
			return nil, &apperrors.ValidationError{Field: "weights", Reason: "quantity cannot be negative"}
		}
	}

	var prev bookingModel.BookingStatus

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var b bookingModel.Booking
		if err := tx.Preload("Materials").First(&b, "id = ?", bookingID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &apperrors.NotFoundError{Entity: "booking", ID: bookingID}
			}
			return err
		}
		if err := ensureParty(&b, actor); err != nil {
			return err
		}
		if b.Status != bookingModel.BookingStatusInProgress {
			return &apperrors.InvalidTransitionError{
				From: b.Status.String(),
				To:   bookingModel.BookingStatusCompleted.String(),
			}
		}

		byMaterial := make(map[uint]float64, len(weights))
		for _, w := range weights {
			if _, ok := lineFor(b.Materials, w.MaterialID); !ok {
				return &apperrors.ValidationError{
					Field:  "weights",
					Reason: fmt.Sprintf("material %d is not part of this booking", w.MaterialID),
				}
			}
			byMaterial[w.MaterialID] = w.Quantity
		}

		var actualValue float64
		for i := range b.Materials {
			line := &b.Materials[i]
			qty := byMaterial[line.MaterialID]

			var mat materialModel.Material
			if err := tx.First(&mat, line.MaterialID).Error; err != nil {
				return err
			}
			price := qty * mat.PricePerKg
			actualValue += price

			if err := tx.Model(&bookingModel.MaterialLine{}).
				Where("id = ?", line.ID).
				Updates(map[string]interface{}{
					"actual_quantity": qty,
					"actual_price":    price,
				}).Error; err != nil {
				return err
			}
		}

		prev = b.Status
		extra := map[string]interface{}{"actual_value": actualValue}
		if len(images) > 0 {
			extra["images"] = user.StringSlice(images)
		}
		return applyTransition(tx, &b, bookingModel.BookingStatusCompleted, actor, "Pickup completed", extra)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(bookingID, prev, bookingModel.BookingStatusCompleted, actor, "Pickup completed")
	return s.GetByID(bookingID)
}

// Cancel moves a non-terminal booking to cancelled. Cancellation is an
// ordinary transition and shares the same atomic commit and broadcast path.
func (s *Service) Cancel(bookingID string, actor Actor, reason string) (*bookingModel.Booking, error) {
	b, err := s.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	notes := "Cancelled"
	if reason != "" {
		notes = fmt.Sprintf("Cancelled: %s", reason)
	}
	return s.Transition(bookingID, b.Status, bookingModel.BookingStatusCancelled, actor, notes)
}

// AssignCollector commits a pending booking to a collector. The collector's
// remaining daily capacity is re-validated inside the same transaction that
// performs the transition, so two bookings racing for the last slot cannot
// both commit.
func (s *Service) AssignCollector(bookingID string, collectorUserID uint, actor Actor, notes string) (*bookingModel.Booking, error) {
	var (
		prev bookingModel.BookingStatus
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var b bookingModel.Booking
		if err := tx.First(&b, "id = ?", bookingID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &apperrors.NotFoundError{Entity: "booking", ID: bookingID}
			}
			return err
		}
		if b.Status != bookingModel.BookingStatusPending {
			return &apperrors.ConflictError{
				Reason: fmt.Sprintf("booking is %s, only pending bookings can be assigned", b.Status),
			}
		}

		var prof collectorModel.Collector
		if err := tx.Where("user_id = ?", collectorUserID).First(&prof).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &apperrors.NotFoundError{Entity: "collector", ID: utils.FormatActorID(collectorUserID)}
			}
			return err
		}
		if !prof.IsActive {
			return &apperrors.ValidationError{Field: "collector", Reason: "collector is not active"}
		}

		// Take a write lock on the collector row so concurrent dispatchers
		// recount capacity serially, not against a shared stale snapshot.
		if err := tx.Model(&collectorModel.Collector{}).
			Where("id = ?", prof.ID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		dayStart, dayEnd := utils.DayWindow(b.ScheduledAt)
		var activeCount int64
		if err := tx.Model(&bookingModel.Booking{}).
			Where("collector_id = ?", collectorUserID).
			Where("status IN ?", []bookingModel.BookingStatus{
				bookingModel.BookingStatusAssigned,
				bookingModel.BookingStatusInProgress,
			}).
			Where("scheduled_at BETWEEN ? AND ?", dayStart, dayEnd).
			Count(&activeCount).Error; err != nil {
			return err
		}
		if int(activeCount) >= prof.MaxDailyCapacity {
			return &apperrors.ConflictError{
				Reason: fmt.Sprintf("collector %d has no remaining capacity", collectorUserID),
			}
		}

		prev = b.Status
		if notes == "" {
			notes = "Assigned to collector"
		}
		extra := map[string]interface{}{"collector_id": collectorUserID}
		return applyTransition(tx, &b, bookingModel.BookingStatusAssigned, actor, notes, extra)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(bookingID, prev, bookingModel.BookingStatusAssigned, actor, notes)
	return s.GetByID(bookingID)
}

// applyTransition performs the guarded status update plus the history append
// inside the caller's transaction. The WHERE guard on the previous status is
// the authoritative optimistic-concurrency check: zero affected rows means a
// concurrent writer got there first.
func applyTransition(tx *gorm.DB, b *bookingModel.Booking, target bookingModel.BookingStatus, actor Actor, notes string, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": target}
	if col := bookingModel.MilestoneColumn(target); col != "" {
		updates[col] = time.Now()
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := tx.Model(&bookingModel.Booking{}).
		Where("id = ? AND status = ?", b.ID, b.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &apperrors.ConflictError{
			Reason: fmt.Sprintf("booking %s changed concurrently", b.ID),
		}
	}

	previous := b.Status
	history := bookingModel.StatusHistoryEntry{
		ID:             uuid.NewString(),
		BookingID:      b.ID,
		Status:         target,
		PreviousStatus: &previous,
		Notes:          notes,
		ChangedBy:      actor.historyID(),
		ChangedByRole:  actor.Role,
		ChangedAt:      time.Now(),
	}
	return tx.Create(&history).Error
}

// afterTransition emits the status-changed broadcast and queues
// notifications for the counterpart participants. Runs strictly after the
// commit so uncommitted state is never announced.
func (s *Service) afterTransition(bookingID string, prev, target bookingModel.BookingStatus, actor Actor, notes string) {
	b, err := s.GetByID(bookingID)
	if err != nil {
		return
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToBooking(bookingID, "booking_status_update", map[string]interface{}{
			"booking_id":      bookingID,
			"status":          target,
			"previous_status": prev,
			"changed_by":      actor.historyID(),
			"changed_by_role": actor.Role,
			"notes":           notes,
		})
	}

	if s.notifier == nil {
		return
	}
	payload := map[string]interface{}{"booking_id": bookingID, "status": string(target)}
	if actor.ID != b.CustomerID {
		if title, body, ok := statusCopy(target, constants.RoleCustomer); ok {
			s.notifier.Notify(b.CustomerID, title, body, "booking_"+string(target), payload)
		}
	}
	if b.CollectorID != nil && actor.ID != *b.CollectorID {
		if title, body, ok := statusCopy(target, constants.RoleCollector); ok {
			s.notifier.Notify(*b.CollectorID, title, body, "booking_"+string(target), payload)
		}
	}
}

// statusCopy returns the notification title and body shown to the given
// audience for a status change.
func statusCopy(status bookingModel.BookingStatus, audience string) (string, string, bool) {
	type copyPair struct{ title, body string }

	customer := map[bookingModel.BookingStatus]copyPair{
		bookingModel.BookingStatusAssigned:   {"Collector Assigned", "A collector has been assigned to your pickup"},
		bookingModel.BookingStatusInProgress: {"Pickup Started", "Your collector has started the pickup"},
		bookingModel.BookingStatusCompleted:  {"Pickup Completed", "Your pickup has been completed successfully"},
		bookingModel.BookingStatusCancelled:  {"Pickup Cancelled", "Your pickup has been cancelled"},
	}
	collector := map[bookingModel.BookingStatus]copyPair{
		bookingModel.BookingStatusAssigned:   {"New Assignment", "You have been assigned a new pickup"},
		bookingModel.BookingStatusInProgress: {"Pickup Started", "You have started the pickup"},
		bookingModel.BookingStatusCompleted:  {"Pickup Completed", "Pickup completed successfully"},
		bookingModel.BookingStatusCancelled:  {"Pickup Cancelled", "The pickup has been cancelled"},
	}

	var pair copyPair
	var ok bool
	switch audience {
	case constants.RoleCollector:
		pair, ok = collector[status]
	default:
		pair, ok = customer[status]
	}
	return pair.title, pair.body, ok
}

func lineFor(lines []bookingModel.MaterialLine, materialID uint) (*bookingModel.MaterialLine, bool) {
	for i := range lines {
		if lines[i].MaterialID == materialID {
			return &lines[i], true
		}
	}
	return nil, false
}
