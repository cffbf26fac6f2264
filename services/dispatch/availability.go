package dispatch

import (
	"time"

	"scrap-pickup/apperrors"
	bookingModel "scrap-pickup/models/booking"
	collectorModel "scrap-pickup/models/collector"
	"scrap-pickup/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Availability is a collector's workload for one calendar day. Advisory
// outside a transaction; the authoritative recount happens at assignment
// commit time inside the Booking Store.
type Availability struct {
	CurrentLoad       int  `json:"current_load"`
	MaxCapacity       int  `json:"max_capacity"`
	RemainingCapacity int  `json:"remaining_capacity"`
	IsAvailable       bool `json:"is_available"`
}

// CollectorAvailability computes a collector's remaining capacity for the
// calendar day containing t, counting bookings in assigned or in_progress.
func (s *Service) CollectorAvailability(collectorUserID uint, maxCapacity int, t time.Time) (Availability, error) {
	dayStart, dayEnd := utils.DayWindow(t)

	var activeCount int64
	err := s.db.Model(&bookingModel.Booking{}).
		Where("collector_id = ?", collectorUserID).
		Where("status IN ?", []bookingModel.BookingStatus{
			bookingModel.BookingStatusAssigned,
			bookingModel.BookingStatusInProgress,
		}).
		Where("scheduled_at BETWEEN ? AND ?", dayStart, dayEnd).
		Count(&activeCount).Error
	if err != nil {
		return Availability{}, err
	}

	load := int(activeCount)
	return Availability{
		CurrentLoad:       load,
		MaxCapacity:       maxCapacity,
		RemainingCapacity: maxCapacity - load,
		IsAvailable:       load < maxCapacity,
	}, nil
}

// UpdateLocation upserts a collector's location sample. A sample older than
// the stored one by event time is discarded and applied=false is returned;
// ordering is last-write-wins by event time, never by arrival time.
func (s *Service) UpdateLocation(collectorUserID uint, latitude, longitude float64, status collectorModel.LocationStatus, sampledAt time.Time) (*collectorModel.LocationSample, bool, error) {
	if !utils.ValidCoordinates(latitude, longitude) {
		return nil, false, &apperrors.ValidationError{Field: "latitude/longitude", Reason: "out of range"}
	}
	if !status.IsValid() {
		return nil, false, &apperrors.ValidationError{Field: "status", Reason: "unknown location status"}
	}
	if sampledAt.IsZero() {
		sampledAt = time.Now()
	}

	var (
		sample  collectorModel.LocationSample
		applied bool
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing collectorModel.LocationSample
		err := tx.Where("collector_id = ?", collectorUserID).First(&existing).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			sample = collectorModel.LocationSample{
				ID:          uuid.NewString(),
				CollectorID: collectorUserID,
				Latitude:    latitude,
				Longitude:   longitude,
				Status:      status,
				SampledAt:   sampledAt,
			}
			applied = true
			return tx.Create(&sample).Error
		case err != nil:
			return err
		}

		if !sampledAt.After(existing.SampledAt) {
			// Stale by event time, keep the stored sample.
			sample = existing
			applied = false
			return nil
		}

		res := tx.Model(&collectorModel.LocationSample{}).
			Where("collector_id = ? AND sampled_at = ?", collectorUserID, existing.SampledAt).
			Updates(map[string]interface{}{
				"latitude":   latitude,
				"longitude":  longitude,
				"status":     status,
				"sampled_at": sampledAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A newer sample landed concurrently; ours is stale now.
			applied = false
			return tx.Where("collector_id = ?", collectorUserID).First(&sample).Error
		}

		applied = true
		sample = existing
		sample.Latitude = latitude
		sample.Longitude = longitude
		sample.Status = status
		sample.SampledAt = sampledAt
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &sample, applied, nil
}

// Performance summarizes a collector's outcomes over the trailing N days.
type Performance struct {
	TotalBookings     int64    `json:"total_bookings"`
	CompletedBookings int64    `json:"completed_bookings"`
	CancelledBookings int64    `json:"cancelled_bookings"`
	CompletionRate    float64  `json:"completion_rate"`
	Rating            *float64 `json:"rating,omitempty"`
}

// CollectorPerformance computes completion metrics for a collector.
func (s *Service) CollectorPerformance(collectorUserID uint, days int) (*Performance, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	var prof collectorModel.Collector
	if err := s.db.Where("user_id = ?", collectorUserID).First(&prof).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &apperrors.NotFoundError{Entity: "collector", ID: utils.FormatActorID(collectorUserID)}
		}
		return nil, err
	}

	base := s.db.Model(&bookingModel.Booking{}).
		Where("collector_id = ? AND created_at >= ?", collectorUserID, since)

	var perf Performance
	if err := base.Session(&gorm.Session{}).Count(&perf.TotalBookings).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", bookingModel.BookingStatusCompleted).
		Count(&perf.CompletedBookings).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", bookingModel.BookingStatusCancelled).
		Count(&perf.CancelledBookings).Error; err != nil {
		return nil, err
	}

	if perf.TotalBookings > 0 {
		perf.CompletionRate = float64(perf.CompletedBookings) / float64(perf.TotalBookings) * 100
	}
	perf.Rating = prof.Rating
	return &perf, nil
}
