package dispatch

import (
	"fmt"
	"sort"
	"time"

	"scrap-pickup/apperrors"
	"scrap-pickup/logger"
	bookingModel "scrap-pickup/models/booking"
	collectorModel "scrap-pickup/models/collector"
	bookingSvc "scrap-pickup/services/booking"
	"scrap-pickup/utils"

	"gorm.io/gorm"
)

// Scoring weights, each component normalized to [0, 1] before weighting.
const (
	distanceWeight       = 0.40
	capacityWeight       = 0.30
	ratingWeight         = 0.20
	responsivenessWeight = 0.10

	defaultRating = 3.0

	// Estimated minutes for a collector to respond, derived from distance.
	responseMinutesPerKm = 2.0
	maxResponseMinutes   = 60.0
)

// Defaults for the candidate search.
const (
	DefaultSearchRadiusKm  = 15.0
	DefaultStalenessWindow = 60 * time.Minute
	DefaultMaxAssignRounds = 3
)

// Service is the dispatch engine. It reads collector and location data,
// ranks candidates for a pending booking and proposes an assignment, which
// the Booking Store commits.
type Service struct {
	db       *gorm.DB
	bookings *bookingSvc.Service

	SearchRadiusKm  float64
	StalenessWindow time.Duration
	MaxAssignRounds int
}

// NewService creates a dispatch engine with default search parameters.
func NewService(db *gorm.DB, bookings *bookingSvc.Service) *Service {
	return &Service{
		db:              db,
		bookings:        bookings,
		SearchRadiusKm:  DefaultSearchRadiusKm,
		StalenessWindow: DefaultStalenessWindow,
		MaxAssignRounds: DefaultMaxAssignRounds,
	}
}

// Candidate is one collector under consideration for a booking.
type Candidate struct {
	Profile      collectorModel.Collector `json:"collector"`
	Latitude     float64                  `json:"latitude"`
	Longitude    float64                  `json:"longitude"`
	DistanceKm   float64                  `json:"distance_km"`
	Availability Availability             `json:"availability"`
	Score        float64                  `json:"score"`
}

// FindNearby returns active, verified collectors whose latest location
// sample is available, within the staleness window and within radiusKm of
// the given point, ordered by distance.
func (s *Service) FindNearby(latitude, longitude, radiusKm float64) ([]Candidate, error) {
	cutoff := time.Now().Add(-s.StalenessWindow)

	var samples []collectorModel.LocationSample
	err := s.db.
		Where("status = ? AND sampled_at > ?", collectorModel.LocationStatusAvailable, cutoff).
		Find(&samples).Error
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, sample := range samples {
		distance := utils.DistanceKm(latitude, longitude, sample.Latitude, sample.Longitude)
		if distance > radiusKm {
			continue
		}

		var prof collectorModel.Collector
		err := s.db.Preload("User").
			Where("user_id = ? AND is_active = ? AND is_verified = ?", sample.CollectorID, true, true).
			First(&prof).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, Candidate{
			Profile:    prof,
			Latitude:   sample.Latitude,
			Longitude:  sample.Longitude,
			DistanceKm: distance,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})
	return candidates, nil
}

// score computes the weighted multi-criteria score for a candidate.
func (s *Service) score(c *Candidate, radiusKm float64) float64 {
	distanceScore := 1 - c.DistanceKm/radiusKm
	if distanceScore < 0 {
		distanceScore = 0
	}

	capacityScore := 0.0
	if c.Availability.MaxCapacity > 0 {
		capacityScore = float64(c.Availability.RemainingCapacity) / float64(c.Availability.MaxCapacity)
	}

	rating := defaultRating
	if c.Profile.Rating != nil {
		rating = *c.Profile.Rating
	}
	ratingScore := rating / 5.0

	responseMinutes := c.DistanceKm * responseMinutesPerKm
	responsivenessScore := 1 - responseMinutes/maxResponseMinutes
	if responsivenessScore < 0 {
		responsivenessScore = 0
	}

	return distanceScore*distanceWeight +
		capacityScore*capacityWeight +
		ratingScore*ratingWeight +
		responsivenessScore*responsivenessWeight
}

// rank orders candidates by score descending; ties break by lower distance,
// then lower current load, then collector user id for determinism.
func rank(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.Availability.CurrentLoad != b.Availability.CurrentLoad {
			return a.Availability.CurrentLoad < b.Availability.CurrentLoad
		}
		return a.Profile.UserID < b.Profile.UserID
	})
}

// AssignmentResult describes a committed auto-assignment.
type AssignmentResult struct {
	Booking         *bookingModel.Booking `json:"booking"`
	CollectorUserID uint                  `json:"collector_user_id"`
	DistanceKm      float64               `json:"distance_km"`
	Score           float64               `json:"score"`
	Rounds          int                   `json:"rounds"`
}

// AutoAssign finds, scores and commits the best collector for a pending
// booking. Scoring runs outside any transaction; the capacity re-check and
// the assignment commit share one transaction inside the Booking Store. On
// a capacity conflict the losing candidate is excluded and selection reruns,
// bounded by MaxAssignRounds.
func (s *Service) AutoAssign(bookingID string) (*AssignmentResult, error) {
	b, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != bookingModel.BookingStatusPending {
		return nil, &apperrors.ConflictError{
			Reason: fmt.Sprintf("booking is %s, dispatch requires pending", b.Status),
		}
	}

	candidates, err := s.candidatesFor(b)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &apperrors.NoCandidateError{
			BookingID: bookingID,
			Reason:    "no available collectors in range",
		}
	}

	excluded := make(map[uint]bool)
	for round := 1; round <= s.MaxAssignRounds; round++ {
		best := pickBest(candidates, excluded)
		if best == nil {
			break
		}

		_, err := s.bookings.AssignCollector(bookingID, best.Profile.UserID, bookingSvc.SystemActor, "Auto-assigned by dispatch")
		if err == nil {
			updated, loadErr := s.bookings.GetByID(bookingID)
			if loadErr != nil {
				return nil, loadErr
			}
			return &AssignmentResult{
				Booking:         updated,
				CollectorUserID: best.Profile.UserID,
				DistanceKm:      best.DistanceKm,
				Score:           best.Score,
				Rounds:          round,
			}, nil
		}

		if !apperrors.IsConflict(err) {
			return nil, err
		}

		// Either the booking left pending or this collector's last slot was
		// claimed concurrently. Re-read to tell the two apart.
		current, loadErr := s.bookings.GetByID(bookingID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status != bookingModel.BookingStatusPending {
			return nil, err
		}

		logger.Warning(fmt.Sprintf("dispatch: collector %d lost capacity race for booking %s, rescoring", best.Profile.UserID, bookingID))
		excluded[best.Profile.UserID] = true
	}

	return nil, &apperrors.NoCandidateError{
		BookingID: bookingID,
		Reason:    "assignment conflicts exhausted retries",
	}
}

// candidatesFor gathers, filters and scores candidates for a booking,
// expanding the search radius once on an empty result.
func (s *Service) candidatesFor(b *bookingModel.Booking) ([]Candidate, error) {
	radius := s.SearchRadiusKm

	nearby, err := s.FindNearby(b.Latitude, b.Longitude, radius)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		// Retry once at double radius before giving up.
		radius = s.SearchRadiusKm * 2
		nearby, err = s.FindNearby(b.Latitude, b.Longitude, radius)
		if err != nil {
			return nil, err
		}
	}

	var candidates []Candidate
	for _, c := range nearby {
		avail, err := s.CollectorAvailability(c.Profile.UserID, c.Profile.MaxDailyCapacity, b.ScheduledAt)
		if err != nil {
			return nil, err
		}
		if !avail.IsAvailable {
			continue
		}
		c.Availability = avail
		c.Score = s.score(&c, radius)
		candidates = append(candidates, c)
	}

	rank(candidates)
	return candidates, nil
}

func pickBest(candidates []Candidate, excluded map[uint]bool) *Candidate {
	for i := range candidates {
		if !excluded[candidates[i].Profile.UserID] {
			return &candidates[i]
		}
	}
	return nil
}
