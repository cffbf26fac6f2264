package booking

import (
	"fmt"
	"time"

	"scrap-pickup/apperrors"
	"scrap-pickup/constants"
	bookingModel "scrap-pickup/models/booking"
	materialModel "scrap-pickup/models/material"
	"scrap-pickup/models/user"
	"scrap-pickup/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Broadcaster fans out committed state changes to live connections. Calls
// must never block the committing operation.
type Broadcaster interface {
	BroadcastToBooking(bookingID string, event string, data interface{})
	SendToUser(userID uint, event string, data interface{})
}

// Notifier queues a best-effort notification. Failures are logged and never
// roll back the state change that triggered them.
type Notifier interface {
	Notify(userID uint, title, body, notifType string, payload map[string]interface{})
}

// Actor identifies who is performing an operation.
type Actor struct {
	ID   uint
	Role string
}

// SystemActor is used for machine-initiated transitions such as dispatch.
var SystemActor = Actor{ID: 0, Role: constants.RoleSystem}

func (a Actor) historyID() string {
	if a.Role == constants.RoleSystem {
		return constants.RoleSystem
	}
	return utils.FormatActorID(a.ID)
}

// Service owns all Booking, MaterialLine and StatusHistoryEntry mutation.
type Service struct {
	db          *gorm.DB
	broadcaster Broadcaster
	notifier    Notifier
}

// NewService creates a booking service. Broadcaster and notifier may be nil,
// in which case the corresponding side effects are skipped.
func NewService(db *gorm.DB, broadcaster Broadcaster, notifier Notifier) *Service {
	return &Service{
		db:          db,
		broadcaster: broadcaster,
		notifier:    notifier,
	}
}

// MaterialLineInput is one requested material position.
type MaterialLineInput struct {
	MaterialID uint    `json:"material_id"`
	Quantity   float64 `json:"quantity"`
	Notes      string  `json:"notes"`
}

// CreateInput carries a validated createBooking command.
type CreateInput struct {
	CustomerID          uint
	PickupAddress       string
	Landmark            string
	City                string
	Latitude            float64
	Longitude           float64
	ContactPerson       string
	ContactPhone        string
	SpecialInstructions string
	ScheduledAt         time.Time
	TimeSlot            string
	Images              []string
	Materials           []MaterialLineInput
}

// Create stores a new booking in pending state along with its material lines
// and the initial status history entry, all in one transaction. Unit prices
// are snapshotted from the catalog at this moment.
func (s *Service) Create(input CreateInput) (*bookingModel.Booking, error) {
	if input.PickupAddress == "" {
		return nil, &apperrors.ValidationError{Field: "pickup_address", Reason: "is required"}
	}
	if !utils.ValidCoordinates(input.Latitude, input.Longitude) {
		return nil, &apperrors.ValidationError{Field: "latitude/longitude", Reason: "out of range"}
	}
	if len(input.Materials) == 0 {
		return nil, &apperrors.ValidationError{Field: "materials", Reason: "at least one material line is required"}
	}
	for _, line := range input.Materials {
		if line.Quantity <= 0 {
			return nil, &apperrors.ValidationError{Field: "materials", Reason: "quantity must be positive"}
		}
	}
	if input.ScheduledAt.IsZero() {
		return nil, &apperrors.ValidationError{Field: "scheduled_at", Reason: "is required"}
	}

	var created bookingModel.Booking

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var customer user.User
		if err := tx.First(&customer, input.CustomerID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &apperrors.NotFoundError{Entity: "customer", ID: utils.FormatActorID(input.CustomerID)}
			}
			return err
		}

		bookingID := uuid.NewString()
		var (
			estimatedWeight float64
			estimatedValue  float64
			lines           []bookingModel.MaterialLine
		)

		for _, line := range input.Materials {
			var mat materialModel.Material
			if err := tx.Where("id = ? AND is_active = ?", line.MaterialID, true).First(&mat).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return &apperrors.NotFoundError{Entity: "material", ID: utils.FormatActorID(line.MaterialID)}
				}
				return err
			}

			total := line.Quantity * mat.PricePerKg
			estimatedWeight += line.Quantity
			estimatedValue += total

			ml := bookingModel.MaterialLine{
				ID:         uuid.NewString(),
				BookingID:  bookingID,
				MaterialID: mat.ID,
				Quantity:   line.Quantity,
				UnitPrice:  mat.PricePerKg,
				TotalPrice: total,
			}
			if line.Notes != "" {
				notes := line.Notes
				ml.Notes = &notes
			}
			lines = append(lines, ml)
		}

		created = bookingModel.Booking{
			ID:              bookingID,
			CustomerID:      input.CustomerID,
			Status:          bookingModel.BookingStatusPending,
			PickupAddress:   input.PickupAddress,
			City:            input.City,
			Latitude:        input.Latitude,
			Longitude:       input.Longitude,
			ContactPerson:   input.ContactPerson,
			ContactPhone:    input.ContactPhone,
			ScheduledAt:     input.ScheduledAt,
			TimeSlot:        input.TimeSlot,
			EstimatedWeight: estimatedWeight,
			EstimatedValue:  estimatedValue,
		}
		if input.Landmark != "" {
			created.Landmark = &input.Landmark
		}
		if input.SpecialInstructions != "" {
			created.SpecialInstructions = &input.SpecialInstructions
		}
		if len(input.Images) > 0 {
			created.Images = user.StringSlice(input.Images)
		}

		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}

		history := bookingModel.StatusHistoryEntry{
			ID:            uuid.NewString(),
			BookingID:     bookingID,
			Status:        bookingModel.BookingStatusPending,
			Notes:         "Booking created",
			ChangedBy:     utils.FormatActorID(input.CustomerID),
			ChangedByRole: constants.RoleCustomer,
			ChangedAt:     time.Now(),
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(created.CustomerID,
			"Booking Confirmed",
			fmt.Sprintf("Your pickup has been scheduled for %s", created.ScheduledAt.Format("2006-01-02")),
			"booking_created",
			map[string]interface{}{"booking_id": created.ID},
		)
	}

	return s.GetByID(created.ID)
}

// GetByID loads a booking with its material lines.
func (s *Service) GetByID(bookingID string) (*bookingModel.Booking, error) {
	var b bookingModel.Booking
	err := s.db.Preload("Materials").Preload("Materials.Material").
		Preload("Customer").Preload("Collector").
		First(&b, "id = ?", bookingID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &apperrors.NotFoundError{Entity: "booking", ID: bookingID}
		}
		return nil, err
	}
	return &b, nil
}

// GetForActor loads a booking and verifies the actor is party to it.
func (s *Service) GetForActor(bookingID string, actor Actor) (*bookingModel.Booking, error) {
	b, err := s.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if err := ensureParty(b, actor); err != nil {
		return nil, err
	}
	return b, nil
}

// ListForCustomer returns a customer's bookings, optionally filtered by
// status, newest first.
func (s *Service) ListForCustomer(customerID uint, status string, limit, offset int) ([]bookingModel.Booking, error) {
	return s.list("customer_id = ?", customerID, status, limit, offset)
}

// ListForCollector returns a collector's assigned bookings, optionally
// filtered by status, newest first.
func (s *Service) ListForCollector(collectorUserID uint, status string, limit, offset int) ([]bookingModel.Booking, error) {
	return s.list("collector_id = ?", collectorUserID, status, limit, offset)
}

func (s *Service) list(cond string, id uint, status string, limit, offset int) ([]bookingModel.Booking, error) {
	query := s.db.Preload("Materials").Preload("Materials.Material").
		Preload("Customer").Preload("Collector").
		Where(cond, id)

	if status != "" {
		if !bookingModel.BookingStatus(status).IsValid() {
			return nil, &apperrors.ValidationError{Field: "status", Reason: "unknown status filter"}
		}
		query = query.Where("status = ?", status)
	}

	var bookings []bookingModel.Booking
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&bookings).Error
	return bookings, err
}

// GetHistory returns the audit trail of a booking ordered by change time.
func (s *Service) GetHistory(bookingID string, actor Actor) ([]bookingModel.StatusHistoryEntry, error) {
	if _, err := s.GetForActor(bookingID, actor); err != nil {
		return nil, err
	}
	var entries []bookingModel.StatusHistoryEntry
	err := s.db.Where("booking_id = ?", bookingID).
		Order("changed_at ASC").Find(&entries).Error
	return entries, err
}

// UpdateDetailsInput carries the mutable booking fields.
type UpdateDetailsInput struct {
	PickupAddress       *string
	Landmark            *string
	ContactPerson       *string
	ContactPhone        *string
	SpecialInstructions *string
	ScheduledAt         *time.Time
	TimeSlot            *string
}

// UpdateDetails changes non-lifecycle booking fields. Rejected once the
// booking is terminal.
func (s *Service) UpdateDetails(bookingID string, actor Actor, input UpdateDetailsInput) (*bookingModel.Booking, error) {
	b, err := s.GetForActor(bookingID, actor)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		return nil, &apperrors.ValidationError{Field: "status", Reason: "cannot update a completed or cancelled booking"}
	}

	updates := map[string]interface{}{}
	if input.PickupAddress != nil {
		updates["pickup_address"] = *input.PickupAddress
	}
	if input.Landmark != nil {
		updates["landmark"] = *input.Landmark
	}
	if input.ContactPerson != nil {
		updates["contact_person"] = *input.ContactPerson
	}
	if input.ContactPhone != nil {
		updates["contact_phone"] = *input.ContactPhone
	}
	if input.SpecialInstructions != nil {
		updates["special_instructions"] = *input.SpecialInstructions
	}
	if input.ScheduledAt != nil {
		updates["scheduled_at"] = *input.ScheduledAt
	}
	if input.TimeSlot != nil {
		updates["time_slot"] = *input.TimeSlot
	}
	if len(updates) == 0 {
		return nil, &apperrors.ValidationError{Reason: "no valid fields to update"}
	}

	if err := s.db.Model(&bookingModel.Booking{}).
		Where("id = ?", bookingID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetByID(bookingID)
}

// ensureParty verifies the actor may touch the booking. Admin and system
// actors are always party; customers and collectors only to their own.
func ensureParty(b *bookingModel.Booking, actor Actor) error {
	switch actor.Role {
	case constants.RoleAdmin, constants.RoleSystem:
		return nil
	case constants.RoleCustomer:
		if b.CustomerID == actor.ID {
			return nil
		}
	case constants.RoleCollector:
		if b.CollectorID != nil && *b.CollectorID == actor.ID {
			return nil
		}
	}
	return &apperrors.PermissionError{Reason: "actor is not party to this booking"}
}
